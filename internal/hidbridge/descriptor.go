package hidbridge

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// vendorUsagePageMin is the first vendor-defined HID usage page.
const vendorUsagePageMin = 0xFF00

// Interface is one HID interface visible to the host.
type Interface struct {
	Node       string // e.g. "hidraw3"
	DevPath    string // e.g. "/dev/hidraw3"
	Bus        uint16
	VendorID   uint16
	ProductID  uint16
	Name       string
	VendorPage bool // report descriptor declares a vendor-defined usage page
}

// String returns a debug representation of the interface
func (i Interface) String() string {
	return fmt.Sprintf("%s %04x:%04x %q vendor_page=%v", i.DevPath, i.VendorID, i.ProductID, i.Name, i.VendorPage)
}

// parseUevent extracts bus, vendor, product and name from a hidraw parent
// device's uevent file, e.g.
//
//	HID_ID=0003:0000303A:00001001
//	HID_NAME=Espressif DeskPanel
func parseUevent(content string, iface *Interface) error {
	var haveID bool
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case "HID_ID":
			parts := strings.Split(value, ":")
			if len(parts) != 3 {
				return fmt.Errorf("malformed HID_ID %q", value)
			}
			var ids [3]uint64
			for n, p := range parts {
				v, err := strconv.ParseUint(p, 16, 32)
				if err != nil {
					return fmt.Errorf("malformed HID_ID %q: %w", value, err)
				}
				ids[n] = v
			}
			iface.Bus = uint16(ids[0])
			iface.VendorID = uint16(ids[1])
			iface.ProductID = uint16(ids[2])
			haveID = true
		case "HID_NAME":
			iface.Name = value
		}
	}
	if !haveID {
		return fmt.Errorf("uevent has no HID_ID")
	}
	return nil
}

// hasVendorUsagePage walks the short items of a HID report descriptor and
// reports whether any Usage Page item selects a vendor-defined page.
func hasVendorUsagePage(desc []byte) bool {
	for i := 0; i < len(desc); {
		prefix := desc[i]

		// Long item: 0xFE, data size, long tag, data
		if prefix == 0xFE {
			if i+1 >= len(desc) {
				return false
			}
			i += 3 + int(desc[i+1])
			continue
		}

		size := int(prefix & 0x03)
		if size == 3 {
			size = 4
		}
		if i+1+size > len(desc) {
			return false
		}

		// Global item (type 1), tag 0 = Usage Page
		if prefix&0xFC == 0x04 {
			var page uint32
			for n := 0; n < size; n++ {
				page |= uint32(desc[i+1+n]) << (8 * n)
			}
			if page >= vendorUsagePageMin && page <= 0xFFFF {
				return true
			}
		}
		i += 1 + size
	}
	return false
}

// selectInterface picks the control interface for cfg. Among interfaces
// matching the vendor, product and name, a vendor usage page wins.
// Otherwise the first of those interfaces is used.
func selectInterface(ifaces []Interface, cfg Config) (Interface, error) {
	var nameMatch *Interface
	for i := range ifaces {
		iface := &ifaces[i]
		if !idsMatch(*iface, cfg) || !nameMatches(iface.Name, cfg.ProductName) {
			continue
		}
		if nameMatch == nil {
			nameMatch = iface
		}
		if iface.VendorPage {
			return *iface, nil
		}
	}
	if nameMatch != nil {
		return *nameMatch, nil
	}
	return Interface{}, &BridgeError{
		Kind:    ErrNotFound,
		Message: fmt.Sprintf("no HID interface for %04x:%04x %q", cfg.VendorID, cfg.ProductID, cfg.ProductName),
	}
}

func nameMatches(name, want string) bool {
	if want == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(want))
}

// idsMatch treats a zero vendor or product in cfg as a wildcard.
func idsMatch(iface Interface, cfg Config) bool {
	if cfg.VendorID != 0 && iface.VendorID != cfg.VendorID {
		return false
	}
	if cfg.ProductID != 0 && iface.ProductID != cfg.ProductID {
		return false
	}
	return true
}
