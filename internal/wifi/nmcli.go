package wifi

import (
	"context"
	"os/exec"
	"strings"

	"github.com/deskpanel/deskpanel/internal/logging"
	"go.uber.org/zap"
)

// Backend is the host's WiFi control surface.
type Backend interface {
	// ActiveSSID returns the associated SSID, or false if none.
	ActiveSSID(ctx context.Context) (string, bool)
	// Rescan asks the radio for a fresh scan. Failures are advisory.
	Rescan(ctx context.Context) error
	// VisibleSSIDs lists the networks seen in the latest scan.
	VisibleSSIDs(ctx context.Context) ([]string, error)
	// Connect joins ssid, using password when non-empty.
	Connect(ctx context.Context, ssid, password string) error
	// Reconnect rejoins a network the host already has credentials for.
	Reconnect(ctx context.Context, ssid string) error
}

// NMCLIBinary is the NetworkManager command-line client.
const NMCLIBinary = "nmcli"

// NMCLI is a Backend that drives NetworkManager.
type NMCLI struct {
	runner Runner
	logger *zap.Logger
}

// NewNMCLI creates an nmcli backend over runner.
func NewNMCLI(runner Runner, logger *zap.Logger) *NMCLI {
	return &NMCLI{runner: runner, logger: logging.Or(logger)}
}

// LookupNMCLI returns the resolved nmcli path, or an error if it is not
// installed.
func LookupNMCLI() (string, error) {
	return exec.LookPath(NMCLIBinary)
}

// wifiList returns (active, ssid) pairs from the cached scan results.
func (n *NMCLI) wifiList(ctx context.Context) ([][2]string, error) {
	out, err := n.runner.Run(ctx, NMCLIBinary, "-t", "-f", "ACTIVE,SSID", "device", "wifi", "list", "--rescan", "no")
	if err != nil {
		return nil, err
	}

	var rows [][2]string
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		fields := splitTerse(line)
		if len(fields) < 2 {
			continue
		}
		rows = append(rows, [2]string{fields[0], fields[1]})
	}
	return rows, nil
}

// ActiveSSID implements Backend.
func (n *NMCLI) ActiveSSID(ctx context.Context) (string, bool) {
	rows, err := n.wifiList(ctx)
	if err != nil {
		n.logger.Debug("nmcli query failed", zap.Error(err))
		return "", false
	}
	for _, row := range rows {
		if row[0] == "yes" && row[1] != "" {
			return row[1], true
		}
	}
	return "", false
}

// Rescan implements Backend.
func (n *NMCLI) Rescan(ctx context.Context) error {
	_, err := n.runner.Run(ctx, NMCLIBinary, "device", "wifi", "rescan")
	return err
}

// VisibleSSIDs implements Backend.
func (n *NMCLI) VisibleSSIDs(ctx context.Context) ([]string, error) {
	rows, err := n.wifiList(ctx)
	if err != nil {
		return nil, err
	}
	ssids := make([]string, 0, len(rows))
	for _, row := range rows {
		if row[1] != "" {
			ssids = append(ssids, row[1])
		}
	}
	return ssids, nil
}

// Connect implements Backend.
func (n *NMCLI) Connect(ctx context.Context, ssid, password string) error {
	args := []string{"device", "wifi", "connect", ssid}
	if password != "" {
		args = append(args, "password", password)
	}
	_, err := n.runner.Run(ctx, NMCLIBinary, args...)
	return err
}

// Reconnect implements Backend. The saved connection profile named after
// the SSID is tried first.
func (n *NMCLI) Reconnect(ctx context.Context, ssid string) error {
	_, err := n.runner.Run(ctx, NMCLIBinary, "connection", "up", "id", ssid)
	if err == nil {
		return nil
	}
	n.logger.Debug("nmcli connection up failed, trying device connect", zap.String("ssid", ssid), zap.Error(err))
	_, err = n.runner.Run(ctx, NMCLIBinary, "device", "wifi", "connect", ssid)
	return err
}

// splitTerse splits one line of nmcli -t output on unescaped colons.
func splitTerse(line string) []string {
	var fields []string
	var cur strings.Builder
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line):
			i++
			cur.WriteByte(line[i])
		case c == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(fields, cur.String())
}
