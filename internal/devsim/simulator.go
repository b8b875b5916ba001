package devsim

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/deskpanel/deskpanel/internal/deviceapi"
	"github.com/deskpanel/deskpanel/internal/imagecodec"
	"github.com/deskpanel/deskpanel/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
)

const (
	// DefaultCapacity is the simulated SD card size (8 GB card, FAT overhead).
	DefaultCapacity int64 = 7580 << 20

	// DefaultMaxUpload bounds a single multipart request body.
	DefaultMaxUpload int64 = 4 << 20

	iconDir       = "/images"
	backgroundDir = "/backgrounds"
)

// Options configures a Simulator.
type Options struct {
	// Capacity is the SD card size in bytes
	Capacity int64

	// MaxUpload bounds one request body in bytes
	MaxUpload int64

	// DropConfigUploads hangs up on this many config uploads before
	// accepting one
	DropConfigUploads int

	// Latency is added before every API response
	Latency time.Duration

	// Seed pre-populates the card, path → contents
	Seed map[string][]byte

	// AllowedOrigins enables CORS for browser-based layout editors.
	// Empty disables CORS headers.
	AllowedOrigins []string

	// RateLimit caps API requests per second per client address, as the
	// firmware's single-task HTTP server does. Zero means unlimited.
	RateLimit int

	Logger *zap.Logger
}

// Simulator serves the device API from memory.
type Simulator struct {
	opts    Options
	card    *card
	metrics *metrics
	logger  *zap.Logger

	mu            sync.Mutex
	dropRemaining int
	configUploads int
}

// New creates a Simulator with /system/firmware.bin present.
func New(opts Options) *Simulator {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = DefaultMaxUpload
	}

	s := &Simulator{
		opts:          opts,
		card:          newCard(opts.Capacity),
		metrics:       newMetrics(),
		logger:        logging.Or(opts.Logger),
		dropRemaining: opts.DropConfigUploads,
	}

	_ = s.card.write("/system/firmware.bin", bytes.Repeat([]byte{0xE9}, 4096))
	for p, d := range opts.Seed {
		if clean, err := cleanPath(p); err == nil {
			_ = s.card.write(clean, d)
		}
	}
	return s
}

// Handler returns the HTTP handler for the device API and /metrics.
func (s *Simulator) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	if len(s.opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         int((10 * time.Minute).Seconds()),
		}))
	}

	r.Handle("/metrics", s.metrics.handler())

	r.Group(func(r chi.Router) {
		if s.opts.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.opts.RateLimit, time.Second))
		}
		if s.opts.Latency > 0 {
			r.Use(s.delay)
		}
		r.Get(deviceapi.PathHealth, s.handleHealth)
		r.Post(deviceapi.PathConfigUpload, s.handleConfigUpload)
		r.Post(deviceapi.PathImageUpload, s.handleImageUpload)
		r.Get(deviceapi.PathSDUsage, s.handleUsage)
		r.Get(deviceapi.PathSDList, s.handleList)
		r.Post(deviceapi.PathSDDelete, s.handleDelete)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no such endpoint")
	})
	return r
}

// Config returns the most recently accepted layout.
func (s *Simulator) Config() ([]byte, bool) {
	return s.card.read(ConfigPath)
}

// File returns the stored contents of p.
func (s *Simulator) File(p string) ([]byte, bool) {
	clean, err := cleanPath(p)
	if err != nil {
		return nil, false
	}
	return s.card.read(clean)
}

// ConfigUploads returns how many config upload requests arrived,
// including dropped ones.
func (s *Simulator) ConfigUploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configUploads
}

// observe logs each request and counts it by route pattern.
func (s *Simulator) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, r.ContentLength)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		code := "hijacked"
		if ww.Status() != 0 {
			code = strconv.Itoa(ww.Status())
		}
		s.metrics.requests.WithLabelValues(route, code).Inc()

		logging.LogHTTPResponse(r.RemoteAddr, r.URL.Path, ww.Status(), ww.BytesWritten())
	})
}

func (s *Simulator) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(s.opts.Latency):
		case <-r.Context().Done():
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Simulator) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Simulator) handleConfigUpload(w http.ResponseWriter, r *http.Request) {
	if s.shouldDrop() {
		s.metrics.dropped.Inc()
		s.logger.Info("Dropping config upload", zap.String("remote_addr", r.RemoteAddr))
		hangUp(w)
		return
	}

	data, _, err := s.formFile(w, r, deviceapi.FieldConfig)
	if err != nil {
		s.metrics.rejected.WithLabelValues("config").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var layout map[string]json.RawMessage
	if err := json.Unmarshal(data, &layout); err != nil {
		s.metrics.rejected.WithLabelValues("config").Inc()
		writeError(w, http.StatusBadRequest, "config must be a JSON object: "+err.Error())
		return
	}

	if err := s.card.write(ConfigPath, data); err != nil {
		writeError(w, http.StatusInsufficientStorage, err.Error())
		return
	}

	s.metrics.uploads.WithLabelValues("config").Inc()
	s.metrics.uploadBytes.WithLabelValues("config").Add(float64(len(data)))
	s.logger.Info("Accepted config", zap.Int("bytes", len(data)), zap.Int("keys", len(layout)))
	writeJSON(w, http.StatusOK, deviceapi.ConfigUploadResult{Success: true})
}

func (s *Simulator) shouldDrop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configUploads++
	if s.dropRemaining > 0 {
		s.dropRemaining--
		return true
	}
	return false
}

func (s *Simulator) handleImageUpload(w http.ResponseWriter, r *http.Request) {
	data, filename, err := s.formFile(w, r, deviceapi.FieldImage)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	kind := deviceapi.ImageKind(r.FormValue(deviceapi.FieldKind))
	if kind == "" {
		kind = deviceapi.KindIcon
	}

	var dir string
	switch kind {
	case deviceapi.KindIcon:
		dir = iconDir
		if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
			s.metrics.rejected.WithLabelValues(string(kind)).Inc()
			writeError(w, http.StatusBadRequest, "icon is not a PNG: "+err.Error())
			return
		}
	case deviceapi.KindBackground:
		dir = backgroundDir
		sj, err := imagecodec.ParseSJPG(data)
		if err == nil {
			err = sj.Validate()
		}
		if err != nil {
			s.metrics.rejected.WithLabelValues(string(kind)).Inc()
			writeError(w, http.StatusBadRequest, "background is not valid SJPG: "+err.Error())
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown kind "+strconv.Quote(string(kind)))
		return
	}

	if !validFilename(filename) {
		writeError(w, http.StatusBadRequest, "invalid filename "+strconv.Quote(filename))
		return
	}

	dest := dir + "/" + filename
	if err := s.card.write(dest, data); err != nil {
		writeError(w, http.StatusInsufficientStorage, err.Error())
		return
	}

	s.metrics.uploads.WithLabelValues(string(kind)).Inc()
	s.metrics.uploadBytes.WithLabelValues(string(kind)).Add(float64(len(data)))
	s.logger.Info("Stored image", zap.String("path", dest), zap.Int("bytes", len(data)))
	writeJSON(w, http.StatusOK, deviceapi.ImageUploadResult{Success: true, Path: dest})
}

func (s *Simulator) handleUsage(w http.ResponseWriter, r *http.Request) {
	total, used := s.card.usage()
	writeJSON(w, http.StatusOK, deviceapi.StorageUsage{
		TotalMB: mb(total),
		UsedMB:  mb(used),
		FreeMB:  mb(total - used),
	})
}

func (s *Simulator) handleList(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("path")
	if dir == "" {
		dir = "/"
	}
	clean, err := cleanPath(dir)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.card.list(clean)
	if err != nil {
		status := http.StatusNotFound
		if errors.Is(err, errBadPath) {
			status = http.StatusBadRequest
		}
		writeError(w, status, clean+": "+err.Error())
		return
	}

	listing := deviceapi.Listing{Path: clean, Files: make([]deviceapi.FileEntry, len(entries))}
	for i, e := range entries {
		listing.Files[i] = deviceapi.FileEntry{Name: e.name, Size: e.size, Dir: e.dir}
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Simulator) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deviceapi.DeleteRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	clean, err := cleanPath(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch err := s.card.remove(clean); {
	case errors.Is(err, errProtected):
		s.logger.Warn("Refused delete of protected path", zap.String("path", clean))
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, errNotFound):
		writeError(w, http.StatusNotFound, clean+": "+err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.logger.Info("Deleted file", zap.String("path", clean))
		writeJSON(w, http.StatusOK, deviceapi.StatusResponse{Success: true})
	}
}

// formFile reads one multipart file field, bounded by MaxUpload.
func (s *Simulator) formFile(w http.ResponseWriter, r *http.Request, field string) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUpload)
	if err := r.ParseMultipartForm(s.opts.MaxUpload); err != nil {
		return nil, "", errors.New("invalid multipart body: " + err.Error())
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", errors.New("missing field " + strconv.Quote(field))
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}

// validFilename accepts the characters the host-side sanitizer emits plus
// a single extension dot.
func validFilename(name string) bool {
	if name == "" || len(name) > 64 || name[0] == '.' {
		return false
	}
	dots := 0
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return dots <= 1
}

func hangUp(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	_ = conn.Close()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, deviceapi.ErrorResponse{Error: msg})
}

func mb(n int64) float64 {
	return float64(n) / (1 << 20)
}
