package deviceapi

// API paths
const (
	PathHealth       = "/api/health"
	PathConfigUpload = "/api/config/upload"
	PathImageUpload  = "/api/image/upload"
	PathSDUsage      = "/api/sd/usage"
	PathSDList       = "/api/sd/list"
	PathSDDelete     = "/api/sd/delete"
)

// Multipart field names
const (
	FieldConfig = "config"
	FieldImage  = "image"
	FieldKind   = "kind"
)

// ImageKind is sent with every image upload so the firmware can file it.
type ImageKind string

const (
	KindIcon       ImageKind = "icon"
	KindBackground ImageKind = "background"
)

// ConfigUploadResult is the body of a config upload response.
type ConfigUploadResult struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Attempts int    `json:"-"`
}

// ImageUploadResult is the body of an image upload response.
type ImageUploadResult struct {
	Success bool   `json:"success"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StorageUsage reports SD card capacity in megabytes.
type StorageUsage struct {
	TotalMB float64 `json:"total_mb"`
	UsedMB  float64 `json:"used_mb"`
	FreeMB  float64 `json:"free_mb"`
}

// FileEntry is one item of a directory listing.
type FileEntry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Dir  bool   `json:"dir"`
}

// Listing is the body of a directory listing response.
type Listing struct {
	Path  string      `json:"path"`
	Files []FileEntry `json:"files"`
}

// DeleteRequest is the body of a delete request.
type DeleteRequest struct {
	Path string `json:"path"`
}

// StatusResponse is the generic {success, error} body.
type StatusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse is the body of a 4xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
