// Package discovery finds deskpanel displays and simulators on the local
// network over mDNS, and advertises the simulator.
//
// Both advertise the "_deskpanel._tcp" service type with TXT records:
//
//	serial=DP0042   required
//	model=DP-7
//	fw=1.4.2
//	sim=1           set by deskpanel-sim
//
// A display is only reachable this way while it is on the user's normal
// network; in configuration AP mode it answers at the fixed address in the
// profile instead.
//
//	devices, err := discovery.NewScanner().ScanForDevices(ctx)
//	for _, d := range devices {
//	    fmt.Println(d, d.BaseURL())
//	}
package discovery
