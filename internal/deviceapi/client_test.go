package deviceapi

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// hangUp closes the connection without writing a response.
func hangUp(t *testing.T, w http.ResponseWriter) {
	t.Helper()
	hj, ok := w.(http.Hijacker)
	if !ok {
		t.Fatal("response writer does not support hijacking")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		t.Fatalf("Hijack() error = %v", err)
	}
	_ = conn.Close()
}

func newTestClient(url string) *Client {
	c := NewClient(url, nil)
	c.SetRetry(DefaultMaxAttempts, 10*time.Millisecond)
	c.SetTimeout(2 * time.Second)
	return c
}

func TestNewClient(t *testing.T) {
	c := NewClient("http://10.0.0.5/", nil)

	if c.BaseURL != "http://10.0.0.5" {
		t.Errorf("BaseURL = %s, want http://10.0.0.5", c.BaseURL)
	}
	if c.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", c.MaxAttempts, DefaultMaxAttempts)
	}
	if c.RetryDelay != DefaultRetryDelay {
		t.Errorf("RetryDelay = %v, want %v", c.RetryDelay, DefaultRetryDelay)
	}
	if c.HTTPClient.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.HTTPClient.Timeout, DefaultTimeout)
	}

	if got := NewClient("", nil).BaseURL; got != DefaultBaseURL {
		t.Errorf("default BaseURL = %s, want %s", got, DefaultBaseURL)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"ok", http.StatusOK, true},
		{"server error", http.StatusInternalServerError, false},
		{"not found", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != PathHealth {
					t.Errorf("path = %s, want %s", r.URL.Path, PathHealth)
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			if got := newTestClient(server.URL).HealthCheck(context.Background()); got != tt.want {
				t.Errorf("HealthCheck() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHealthCheckUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	if newTestClient(url).HealthCheck(context.Background()) {
		t.Error("HealthCheck() = true for closed server, want false")
	}
}

func TestWaitForDevice(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if !c.WaitForDevice(context.Background(), 2*time.Second, 5*time.Millisecond) {
		t.Fatal("WaitForDevice() = false, want true")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("probes = %d, want 3", got)
	}
}

func TestWaitForDeviceTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	start := time.Now()
	if newTestClient(server.URL).WaitForDevice(context.Background(), 50*time.Millisecond, 10*time.Millisecond) {
		t.Fatal("WaitForDevice() = true, want false")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("WaitForDevice() took %v, want well under 1s", elapsed)
	}
}

func TestUploadConfigSuccess(t *testing.T) {
	layout := `{"screens":[{"name":"main"}]}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != PathConfigUpload {
			t.Errorf("path = %s, want %s", r.URL.Path, PathConfigUpload)
		}
		file, _, err := r.FormFile(FieldConfig)
		if err != nil {
			t.Fatalf("FormFile(%q) error = %v", FieldConfig, err)
		}
		got, _ := io.ReadAll(file)
		if string(got) != layout {
			t.Errorf("config = %s, want %s", got, layout)
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).UploadConfig(context.Background(), layout)
	if err != nil {
		t.Fatalf("UploadConfig() error = %v", err)
	}
	if !result.Success {
		t.Error("Success = false, want true")
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
}

func TestUploadConfigRetriesConnectionFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		hangUp(t, w)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).UploadConfig(context.Background(), `{}`)
	if err == nil {
		t.Fatal("UploadConfig() error = nil, want error")
	}
	if !IsExhausted(err) {
		t.Errorf("IsExhausted(%v) = false, want true", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}

	var he *HTTPError
	if !asHTTPError(err, &he) || he.Attempts != 3 {
		t.Errorf("HTTPError.Attempts = %v, want 3", he)
	}
	if !IsConnectionFailed(he.Err) {
		t.Errorf("last error = %v, want connection failure", he.Err)
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestUploadConfigRetriesDNSFailure(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient("http://deskpanel.local")
	c.HTTPClient.Transport = roundTripperFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, &net.DNSError{Name: "deskpanel.local", Err: "no such host"}
	})

	_, err := c.UploadConfig(context.Background(), `{}`)
	if !IsExhausted(err) {
		t.Fatalf("IsExhausted(%v) = false, want true", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	var he *HTTPError
	if !asHTTPError(err, &he) || !IsConnectionFailed(he.Err) {
		t.Errorf("last error = %v, want connection failure", he)
	}
}

func TestUploadConfigRecoversOnSecondAttempt(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			hangUp(t, w)
			return
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).UploadConfig(context.Background(), `{}`)
	if err != nil {
		t.Fatalf("UploadConfig() error = %v", err)
	}
	if result.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", result.Attempts)
	}
}

func TestUploadConfigRetriesTimeout(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	c.SetTimeout(30 * time.Millisecond)

	_, err := c.UploadConfig(context.Background(), `{}`)
	if !IsExhausted(err) {
		t.Fatalf("UploadConfig() error = %v, want exhausted", err)
	}
	var he *HTTPError
	asHTTPError(err, &he)
	if !IsTimeout(he.Err) {
		t.Errorf("last error = %v, want timeout", he.Err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestUploadConfigNoRetry(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		validate  func(error) bool
		checkName string
	}{
		{"bad request", http.StatusBadRequest, `{"error":"screens missing"}`, IsValidationRejected, "IsValidationRejected"},
		{"success false", http.StatusOK, `{"success":false,"error":"too many screens"}`, IsValidationRejected, "IsValidationRejected"},
		{"server error", http.StatusInternalServerError, `boom`, func(err error) bool { return isType(err, ErrTypeStatus) }, "ErrTypeStatus"},
		{"garbage body", http.StatusOK, `not json`, func(err error) bool { return isType(err, ErrTypeParse) }, "ErrTypeParse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).UploadConfig(context.Background(), `{}`)
			if !tt.validate(err) {
				t.Errorf("%s(%v) = false, want true", tt.checkName, err)
			}
			if got := calls.Load(); got != 1 {
				t.Errorf("attempts = %d, want 1", got)
			}
		})
	}
}

func TestUploadConfigValidationMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"screens missing"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).UploadConfig(context.Background(), `{}`)
	if err == nil || !strings.Contains(err.Error(), "screens missing") {
		t.Errorf("error = %v, want message containing %q", err, "screens missing")
	}
}

func TestUploadConfigCancelledDuringDelay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hangUp(t, w)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	c.SetRetry(3, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		_, err := c.UploadConfig(ctx, `{}`)
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("UploadConfig() error = nil, want error")
		}
		if IsExhausted(err) {
			t.Errorf("error = %v, want interruption rather than exhaustion", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("UploadConfig() did not return after cancellation")
	}
}

func TestUploadImage(t *testing.T) {
	tests := []struct {
		name     string
		upload   func(*Client, context.Context, string, []byte) (*ImageUploadResult, error)
		wantKind ImageKind
	}{
		{"icon", (*Client).UploadImage, KindIcon},
		{"background", (*Client).UploadBackground, KindBackground},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != PathImageUpload {
					t.Errorf("path = %s, want %s", r.URL.Path, PathImageUpload)
				}
				if got := r.FormValue(FieldKind); got != string(tt.wantKind) {
					t.Errorf("kind = %q, want %q", got, tt.wantKind)
				}
				file, header, err := r.FormFile(FieldImage)
				if err != nil {
					t.Fatalf("FormFile(%q) error = %v", FieldImage, err)
				}
				data, _ := io.ReadAll(file)
				if string(data) != "payload" {
					t.Errorf("data = %q, want %q", data, "payload")
				}
				_ = json.NewEncoder(w).Encode(ImageUploadResult{Success: true, Path: "/images/" + header.Filename})
			}))
			defer server.Close()

			result, err := tt.upload(newTestClient(server.URL), context.Background(), "clock.png", []byte("payload"))
			if err != nil {
				t.Fatalf("upload error = %v", err)
			}
			if result.Path != "/images/clock.png" {
				t.Errorf("Path = %s, want /images/clock.png", result.Path)
			}
		})
	}
}

func TestUploadImageNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		hangUp(t, w)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).UploadImage(context.Background(), "a.png", []byte{1})
	if !IsConnectionFailed(err) {
		t.Errorf("IsConnectionFailed(%v) = false, want true", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestUploadImageRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = w.Write([]byte(`{"error":"file too large"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).UploadImage(context.Background(), "big.png", []byte{1})
	var he *HTTPError
	if !asHTTPError(err, &he) {
		t.Fatalf("error = %v, want *HTTPError", err)
	}
	if he.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("StatusCode = %d, want %d", he.StatusCode, http.StatusRequestEntityTooLarge)
	}
	if !strings.Contains(he.Message, "file too large") {
		t.Errorf("Message = %q, want it to contain %q", he.Message, "file too large")
	}
}
