// Package deploy sequences a full deployment of a layout and its images to
// the display.
//
// A run walks a fixed list of steps:
//
//	Bridge → ConfigMode → APWait → WiFiConnect → Health → Images → Config → ConfigDone → WiFiRestore
//
// Bridge opens the USB HID control channel and ConfigMode tells the display
// to bring up its setup access point. The host then waits for the AP, joins
// it, and polls the display's health endpoint. Images are uploaded one at a
// time; a failed upload is recorded as a warning and the run continues. The
// config upload is fatal on failure. ConfigDone sends the exit message and
// WiFiRestore rejoins the network the host was on before the run.
//
// # Cleanup
//
// When any step fails, or the context is cancelled between steps, the
// orchestrator sends the exit-config-mode report once (if a bridge handle
// was opened), restores the previous WiFi association once, and closes the
// bridge. Cleanup never returns an error of its own; if the exit report
// cannot be delivered the result is flagged DeviceMayBeStuck and a
// dedicated warning event is emitted.
//
// # Concurrency
//
// An Orchestrator runs one plan at a time. A second Start or Deploy while a
// run is active fails immediately with ErrRunInProgress.
//
//	events, err := orch.Start(ctx, plan)
//	if err != nil {
//	    return err
//	}
//	for ev := range events {
//	    fmt.Println(ev)
//	}
package deploy
