//go:build linux

package hidbridge

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// hidiocGRawInfo encodes _IOR('H', 0x03, struct hidraw_devinfo), where the
// struct is {u32 bustype; s16 vendor; s16 product}.
//
// Bit layout: direction(2=read) << 30 | size(8) << 16 | type('H') << 8 | nr(0x03)
const hidiocGRawInfo = 0x80084803

type hidrawDevinfo struct {
	bustype uint32
	vendor  int16
	product int16
}

// Enumerate lists the HID interfaces currently visible through hidraw.
func Enumerate() ([]Interface, error) {
	return enumerate("", "")
}

func enumerate(sysRoot, devRoot string) ([]Interface, error) {
	if sysRoot == "" {
		sysRoot = "/sys"
	}
	if devRoot == "" {
		devRoot = "/dev"
	}

	classDir := filepath.Join(sysRoot, "class", "hidraw")
	entries, err := os.ReadDir(classDir)
	if err != nil {
		return nil, err
	}

	var ifaces []Interface
	for _, entry := range entries {
		node := entry.Name()
		if !strings.HasPrefix(node, "hidraw") {
			continue
		}

		deviceDir := filepath.Join(classDir, node, "device")
		uevent, err := os.ReadFile(filepath.Join(deviceDir, "uevent"))
		if err != nil {
			continue
		}

		iface := Interface{Node: node, DevPath: filepath.Join(devRoot, node)}
		if err := parseUevent(string(uevent), &iface); err != nil {
			continue
		}

		if desc, err := os.ReadFile(filepath.Join(deviceDir, "report_descriptor")); err == nil {
			iface.VendorPage = hasVendorUsagePage(desc)
		}

		ifaces = append(ifaces, iface)
	}

	sort.Slice(ifaces, func(i, j int) bool {
		return nodeIndex(ifaces[i].Node) < nodeIndex(ifaces[j].Node)
	})
	return ifaces, nil
}

func nodeIndex(node string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(node, "hidraw"))
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}

func openDevice(iface Interface, logger *zap.Logger) (*os.File, error) {
	f, err := os.OpenFile(iface.DevPath, os.O_RDWR, 0)
	if err != nil {
		return nil, &BridgeError{Kind: ErrOpenFailed, Device: iface.DevPath, Err: err}
	}

	info, err := rawInfo(f.Fd())
	switch {
	case errors.Is(err, unix.ENOTTY):
		logger.Debug("Node does not answer HIDIOCGRAWINFO", zap.String("device", iface.DevPath))
	case err != nil:
		f.Close()
		return nil, &BridgeError{Kind: ErrOpenFailed, Device: iface.DevPath, Message: "HIDIOCGRAWINFO failed", Err: err}
	case uint16(info.vendor) != iface.VendorID || uint16(info.product) != iface.ProductID:
		f.Close()
		return nil, &BridgeError{
			Kind:    ErrOpenFailed,
			Device:  iface.DevPath,
			Message: "device identity changed between enumeration and open",
		}
	}

	return f, nil
}

func rawInfo(fd uintptr) (hidrawDevinfo, error) {
	var info hidrawDevinfo
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		fd,
		uintptr(hidiocGRawInfo),
		uintptr(unsafe.Pointer(&info)),
	)
	if errno != 0 {
		return info, errno
	}
	return info, nil
}
