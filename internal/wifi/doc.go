// Package wifi moves the host onto the display's configuration access
// point and back.
//
// A Switcher remembers the SSID the host was associated with before
// ConnectTo, waits for the display's AP to start broadcasting, joins it,
// and verifies the association. RestorePrevious reconnects to the
// remembered network exactly once; later calls are no-ops.
//
// Host WiFi control goes through a Backend. The shipped backend drives
// NetworkManager's nmcli in terse mode through a Runner, which tests
// replace with a scripted fake:
//
//	runner := wifi.NewExecRunner(10*time.Second, logger)
//	sw := wifi.New(wifi.NewNMCLI(runner, logger), wifi.Options{Logger: logger})
//	if err := sw.ConnectTo(ctx, "DeskPanel-Setup", 15*time.Second); err != nil {
//	    return err
//	}
//	defer sw.RestorePrevious(ctx)
package wifi
