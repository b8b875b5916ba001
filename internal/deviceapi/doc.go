// Package deviceapi talks to the HTTP server the display runs while it is
// in configuration AP mode.
//
// # Endpoints
//
//	GET  /api/health              liveness probe
//	POST /api/config/upload       multipart field "config", JSON layout
//	POST /api/image/upload        multipart field "image", one icon or background
//	GET  /api/sd/usage            storage statistics
//	GET  /api/sd/list?path=/      directory listing
//	POST /api/sd/delete           JSON {"path": "..."}; 403 for protected files
//
// # Retry Semantics
//
// Only UploadConfig retries. It makes up to MaxAttempts attempts with a
// fixed RetryDelay between them, and only for timeouts and connection
// failures. A 400 validation response is deterministic and returned at
// once. When every attempt fails the error is an HTTPError of type
// ErrTypeExhausted wrapping the last failure.
//
// All other calls are single requests. HealthCheck never returns an error;
// it is meant to be polled, and WaitForDevice does exactly that.
//
// # Error Handling
//
// Every error returned by this package is an *HTTPError:
//
//	if _, err := client.UploadConfig(ctx, layout); err != nil {
//	    if deviceapi.IsValidationRejected(err) {
//	        fmt.Println("Device rejected layout:", err)
//	    }
//	    fmt.Println(deviceapi.GetTroubleshootingHint(err))
//	}
package deviceapi
