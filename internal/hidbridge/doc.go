// Package hidbridge toggles the display between normal operation and its
// configuration access-point mode over USB HID.
//
// The display exposes a vendor-defined HID interface (usage page 0xFF00 or
// above). Two fixed 64-byte output reports drive it:
//
//	byte 0      report ID 0x06
//	byte 1      0x09 enter config mode, 0x0A exit config mode and reload
//	byte 2..63  zero
//
// On Linux the interface is located by scanning /sys/class/hidraw for a node
// whose HID_ID and HID_NAME match the profile and whose report descriptor
// declares a vendor usage page. If no vendor-page interface matches, the
// first node with a matching product name is used instead.
//
// Usage:
//
//	b, err := hidbridge.Open(hidbridge.Config{
//	    VendorID:    0x303a,
//	    ProductID:   0x1001,
//	    ProductName: "DeskPanel",
//	})
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//	return b.SendEnterConfigMode()
//
// A Bridge is a stateless command sender; it never retries a failed write.
package hidbridge
