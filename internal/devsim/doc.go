// Package devsim emulates the HTTP API a display serves in configuration
// AP mode.
//
// It keeps an in-memory SD card and applies the same rules as the
// firmware: the layout must be a JSON object, backgrounds must be valid
// SJPG, and /config.json plus everything under /system cannot be deleted.
// DropConfigUploads makes the first N config uploads hang up without a
// response so client retries can be exercised end to end.
//
// Request counts and upload volumes are exported on /metrics.
//
//	sim := devsim.New(devsim.Options{DropConfigUploads: 1})
//	srv := httptest.NewServer(sim.Handler())
//	client := deviceapi.NewClient(srv.URL, nil)
package devsim
