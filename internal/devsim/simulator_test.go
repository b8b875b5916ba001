package devsim

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/deskpanel/deskpanel/internal/deviceapi"
	"github.com/deskpanel/deskpanel/internal/imagecodec"
)

func newServer(t *testing.T, opts Options) (*Simulator, *deviceapi.Client) {
	t.Helper()
	sim := New(opts)
	srv := httptest.NewServer(sim.Handler())
	t.Cleanup(srv.Close)

	client := deviceapi.NewClient(srv.URL, nil)
	client.SetRetry(deviceapi.DefaultMaxAttempts, 5*time.Millisecond)
	client.SetTimeout(2 * time.Second)
	return sim, client
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func sjpgBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	data, err := imagecodec.EncodeSJPG(image.NewRGBA(image.Rect(0, 0, w, h)), imagecodec.DefaultQuality)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestHealth(t *testing.T) {
	_, client := newServer(t, Options{})
	if !client.HealthCheck(context.Background()) {
		t.Error("HealthCheck() = false, want true")
	}
}

func TestConfigUpload(t *testing.T) {
	sim, client := newServer(t, Options{})

	if _, err := client.UploadConfig(context.Background(), `{"screens":[]}`); err != nil {
		t.Fatalf("UploadConfig() error = %v", err)
	}
	got, ok := sim.Config()
	if !ok || string(got) != `{"screens":[]}` {
		t.Errorf("Config() = %q, %v", got, ok)
	}
}

func TestConfigUploadRejectsNonObject(t *testing.T) {
	tests := []string{`[1,2]`, `"text"`, `{`, ``}

	for _, body := range tests {
		sim, client := newServer(t, Options{})
		_, err := client.UploadConfig(context.Background(), body)
		if !deviceapi.IsValidationRejected(err) {
			t.Errorf("UploadConfig(%q) error = %v, want validation rejection", body, err)
		}
		if sim.ConfigUploads() != 1 {
			t.Errorf("UploadConfig(%q) made %d requests, want 1", body, sim.ConfigUploads())
		}
	}
}

func TestConfigUploadDroppedThenAccepted(t *testing.T) {
	sim, client := newServer(t, Options{DropConfigUploads: 2})

	result, err := client.UploadConfig(context.Background(), `{}`)
	if err != nil {
		t.Fatalf("UploadConfig() error = %v", err)
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
	if sim.ConfigUploads() != 3 {
		t.Errorf("ConfigUploads() = %d, want 3", sim.ConfigUploads())
	}
}

func TestConfigUploadDroppedExhausts(t *testing.T) {
	sim, client := newServer(t, Options{DropConfigUploads: 5})

	_, err := client.UploadConfig(context.Background(), `{}`)
	if !deviceapi.IsExhausted(err) {
		t.Fatalf("UploadConfig() error = %v, want exhausted", err)
	}
	if sim.ConfigUploads() != 3 {
		t.Errorf("ConfigUploads() = %d, want 3", sim.ConfigUploads())
	}
	if _, ok := sim.Config(); ok {
		t.Error("config stored despite every upload being dropped")
	}
}

func TestImageUpload(t *testing.T) {
	sim, client := newServer(t, Options{})
	ctx := context.Background()

	icon := pngBytes(t)
	res, err := client.UploadImage(ctx, "clock.png", icon)
	if err != nil {
		t.Fatalf("UploadImage() error = %v", err)
	}
	if res.Path != "/images/clock.png" {
		t.Errorf("Path = %s, want /images/clock.png", res.Path)
	}
	if got, _ := sim.File("/images/clock.png"); !bytes.Equal(got, icon) {
		t.Error("stored icon differs from upload")
	}

	res, err = client.UploadBackground(ctx, "wall.sjpg", sjpgBytes(t, 40, 40))
	if err != nil {
		t.Fatalf("UploadBackground() error = %v", err)
	}
	if res.Path != "/backgrounds/wall.sjpg" {
		t.Errorf("Path = %s, want /backgrounds/wall.sjpg", res.Path)
	}
}

func TestImageUploadRejected(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     func(*testing.T) []byte
		upload   func(*deviceapi.Client, context.Context, string, []byte) (*deviceapi.ImageUploadResult, error)
	}{
		{"icon not png", "a.png", func(*testing.T) []byte { return []byte("GIF89a") }, (*deviceapi.Client).UploadImage},
		{"background not sjpg", "a.sjpg", pngBytes, (*deviceapi.Client).UploadBackground},
		{"traversal filename", "..png", pngBytes, (*deviceapi.Client).UploadImage},
		{"bad characters", "a b.png", pngBytes, (*deviceapi.Client).UploadImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newServer(t, Options{})
			if _, err := tt.upload(client, context.Background(), tt.filename, tt.data(t)); err == nil {
				t.Error("upload error = nil, want rejection")
			}
		})
	}
}

func TestImageUploadOutOfSpace(t *testing.T) {
	_, client := newServer(t, Options{Capacity: 4096 + 10})

	_, err := client.UploadImage(context.Background(), "big.png", pngBytes(t))
	var he *deviceapi.HTTPError
	if err == nil {
		t.Fatal("UploadImage() error = nil, want insufficient storage")
	}
	if !asHTTP(err, &he) || he.StatusCode != http.StatusInsufficientStorage {
		t.Errorf("error = %v, want HTTP 507", err)
	}
}

func TestStorageListAndDelete(t *testing.T) {
	sim, client := newServer(t, Options{Seed: map[string][]byte{
		"/images/a.png":      {1, 2, 3},
		"/images/b.png":      {4},
		"/images/old/c.png":  {5, 6},
		"/backgrounds/x.sjp": {7},
	}})
	ctx := context.Background()

	root, err := client.ListFiles(ctx, "/")
	if err != nil {
		t.Fatalf("ListFiles(/) error = %v", err)
	}
	var names []string
	for _, f := range root.Files {
		names = append(names, f.Name)
	}
	if got := strings.Join(names, ","); got != "backgrounds,images,system" {
		t.Errorf("root entries = %s, want backgrounds,images,system", got)
	}

	images, err := client.ListFiles(ctx, "/images")
	if err != nil {
		t.Fatalf("ListFiles(/images) error = %v", err)
	}
	if len(images.Files) != 3 || !images.Files[0].Dir || images.Files[0].Name != "old" {
		t.Errorf("images listing = %+v, want dir old first then 2 files", images.Files)
	}
	if images.Files[1].Name != "a.png" || images.Files[1].Size != 3 {
		t.Errorf("Files[1] = %+v, want a.png size 3", images.Files[1])
	}

	if _, err := client.ListFiles(ctx, "/nope"); err == nil {
		t.Error("ListFiles(/nope) error = nil, want 404")
	}

	if err := client.DeleteFile(ctx, "/images/a.png"); err != nil {
		t.Fatalf("DeleteFile() error = %v", err)
	}
	if _, ok := sim.File("/images/a.png"); ok {
		t.Error("file still present after delete")
	}
	if err := client.DeleteFile(ctx, "/images/a.png"); err == nil || deviceapi.IsForbidden(err) {
		t.Errorf("second DeleteFile() error = %v, want not found", err)
	}
}

func TestDeleteProtected(t *testing.T) {
	_, client := newServer(t, Options{})
	ctx := context.Background()

	if _, err := client.UploadConfig(ctx, `{}`); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"/config.json", "/system/firmware.bin", "/system", "//system//firmware.bin"} {
		if err := client.DeleteFile(ctx, p); !deviceapi.IsForbidden(err) {
			t.Errorf("DeleteFile(%q) error = %v, want forbidden", p, err)
		}
	}

	err := client.DeleteFile(ctx, "/images/../config.json")
	if err == nil || deviceapi.IsForbidden(err) {
		t.Errorf("DeleteFile with .. error = %v, want bad request", err)
	}
}

func TestStorageUsage(t *testing.T) {
	_, client := newServer(t, Options{Capacity: 10 << 20})

	usage, err := client.StorageUsage(context.Background())
	if err != nil {
		t.Fatalf("StorageUsage() error = %v", err)
	}
	if usage.TotalMB != 10 {
		t.Errorf("TotalMB = %v, want 10", usage.TotalMB)
	}
	if usage.UsedMB <= 0 || usage.UsedMB+usage.FreeMB != usage.TotalMB {
		t.Errorf("usage = %+v, want used > 0 and used+free == total", usage)
	}
}

func TestMetrics(t *testing.T) {
	sim := New(Options{DropConfigUploads: 1})
	srv := httptest.NewServer(sim.Handler())
	defer srv.Close()

	client := deviceapi.NewClient(srv.URL, nil)
	client.SetRetry(3, time.Millisecond)
	if _, err := client.UploadConfig(context.Background(), `{}`); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		"deskpanel_sim_dropped_config_uploads_total 1",
		`deskpanel_sim_uploads_total{kind="config"} 1`,
		`deskpanel_sim_requests_total{code="200",route="/api/config/upload"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestUnknownEndpoint(t *testing.T) {
	sim := New(Options{})
	rec := httptest.NewRecorder()
	sim.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	sim := New(Options{AllowedOrigins: []string{"http://editor.local"}})

	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{"allowed origin", "http://editor.local", "http://editor.local"},
		{"other origin", "http://elsewhere.local", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, deviceapi.PathConfigUpload, nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()
			sim.Handler().ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	sim := New(Options{RateLimit: 2})
	h := sim.Handler()

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, deviceapi.PathHealth, nil)
		req.RemoteAddr = "192.168.4.2:50000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("first two codes = %v, want 200", codes[:2])
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("third code = %d, want 429", codes[2])
	}
}
