package discovery

import (
	"fmt"
	"sort"

	"github.com/grandcat/zeroconf"
)

// Advertisement is a registered mDNS service.
type Advertisement struct {
	server *zeroconf.Server
}

// Advertise registers instance under ServiceType on port. txt is written
// as key=value records; serial is required so scanners can identify it.
func Advertise(instance string, port int, txt map[string]string) (*Advertisement, error) {
	if txt[TXTSerial] == "" {
		return nil, fmt.Errorf("advertisement for %q needs a %s TXT record", instance, TXTSerial)
	}

	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, formatTXT(txt), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	return &Advertisement{server: server}, nil
}

// Shutdown withdraws the advertisement.
func (a *Advertisement) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

func formatTXT(txt map[string]string) []string {
	keys := make([]string, 0, len(txt))
	for k := range txt {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([]string, 0, len(keys))
	for _, k := range keys {
		if txt[k] == "" {
			records = append(records, k)
			continue
		}
		records = append(records, k+"="+txt[k])
	}
	return records
}
