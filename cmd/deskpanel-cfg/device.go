package main

import (
	"fmt"
	"path"
	"time"

	"github.com/spf13/cobra"

	"github.com/deskpanel/deskpanel/internal/deviceapi"
	"github.com/deskpanel/deskpanel/internal/discovery"
	"github.com/deskpanel/deskpanel/internal/ui"
)

var (
	healthWait  time.Duration
	scanTimeout time.Duration
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the device API answers",
	Long: `Probe GET /api/health on the device. The host must already be joined to
the display's setup access point (or --device must point at a simulator).`,
	Example: `  deskpanel-cfg health
  deskpanel-cfg health --device http://localhost:8080 --wait 10s`,
	RunE: runHealth,
}

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect and manage the display's SD card",
}

var storageUsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show SD card usage",
	RunE:  runStorageUsage,
}

var storageListCmd = &cobra.Command{
	Use:     "ls [path]",
	Short:   "List a directory on the SD card",
	Args:    cobra.MaximumNArgs(1),
	Example: `  deskpanel-cfg storage ls /images`,
	RunE:    runStorageList,
}

var storageRemoveCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete a file from the SD card",
	Long: `Delete a file from the SD card. The layout file and firmware files are
protected and cannot be deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: runStorageRemove,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find displays and simulators over mDNS",
	Long: `Browse for ` + discovery.ServiceType + ` services. Displays advertise while
in config mode; deskpanel-sim advertises when started with --mdns.`,
	RunE: runScan,
}

func init() {
	healthCmd.Flags().DurationVar(&healthWait, "wait", 0, "Keep probing for this long before giving up")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "Scan timeout")

	storageCmd.AddCommand(storageUsageCmd, storageListCmd, storageRemoveCmd)
	rootCmd.AddCommand(healthCmd, storageCmd, scanCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	client := newClient(p)

	var healthy bool
	if healthWait > 0 {
		healthy = client.WaitForDevice(cmd.Context(), healthWait, p.Timing.HealthInterval.Duration)
	} else {
		healthy = client.HealthCheck(cmd.Context())
	}

	if jsonOutput() {
		if err := writeJSON(cmd.OutOrStdout(), map[string]interface{}{"device": client.BaseURL, "healthy": healthy}); err != nil {
			return err
		}
	} else if healthy {
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Device API is up", map[string]string{"Device": client.BaseURL})
	}

	if !healthy {
		return fmt.Errorf("device at %s is not responding", client.BaseURL)
	}
	return nil
}

func runStorageUsage(cmd *cobra.Command, args []string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	usage, err := newClient(p).StorageUsage(cmd.Context())
	if err != nil {
		return withHint(err, deviceapi.GetTroubleshootingHint(err))
	}

	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), usage)
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("SD card usage", map[string]string{
		"Total": fmt.Sprintf("%.1f MB", usage.TotalMB),
		"Used":  fmt.Sprintf("%.1f MB", usage.UsedMB),
		"Free":  fmt.Sprintf("%.1f MB", usage.FreeMB),
	})
	return nil
}

func runStorageList(cmd *cobra.Command, args []string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	dir := "/"
	if len(args) == 1 {
		dir = args[0]
	}

	listing, err := newClient(p).ListFiles(cmd.Context(), dir)
	if err != nil {
		return withHint(err, deviceapi.GetTroubleshootingHint(err))
	}

	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), listing)
	}

	rows := [][]string{{"NAME", "SIZE"}}
	for _, f := range listing.Files {
		if f.Dir {
			rows = append(rows, []string{f.Name + "/", "-"})
			continue
		}
		rows = append(rows, []string{f.Name, fmt.Sprintf("%d", f.Size)})
	}
	content := ui.Table(rows)
	if len(listing.Files) == 0 {
		content = "(empty)"
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintPanel(listing.Path, content)
	return nil
}

func runStorageRemove(cmd *cobra.Command, args []string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	target := path.Clean("/" + args[0])

	if !assumeYes && !ui.ConfirmDelete(cmd.InOrStdin(), cmd.OutOrStdout(), target) {
		return nil
	}

	if err := newClient(p).DeleteFile(cmd.Context(), target); err != nil {
		return withHint(err, deviceapi.GetTroubleshootingHint(err))
	}

	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"deleted": target})
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("File deleted", map[string]string{"Path": target})
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	scanner := discovery.NewScanner()
	scanner.Timeout = scanTimeout

	if !jsonOutput() {
		fmt.Fprintf(cmd.OutOrStdout(), "Scanning for DeskPanel devices (timeout: %s)...\n\n", scanTimeout)
	}

	devices, err := scanner.ScanForDevices(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if jsonOutput() {
		type entry struct {
			Serial    string `json:"serial"`
			Instance  string `json:"instance"`
			URL       string `json:"url"`
			Model     string `json:"model,omitempty"`
			Firmware  string `json:"firmware,omitempty"`
			Simulated bool   `json:"simulated"`
		}
		out := make([]entry, len(devices))
		for i, d := range devices {
			out[i] = entry{d.Serial, d.Instance, d.BaseURL(), d.Model, d.Firmware, d.Simulated}
		}
		return writeJSON(cmd.OutOrStdout(), out)
	}

	if len(devices) == 0 {
		ui.NewPrinter(cmd.OutOrStdout()).PrintWarning("No devices found", map[string]string{
			"Service": discovery.ServiceType,
			"Hint":    "displays only advertise while in config mode",
		})
		return nil
	}

	rows := [][]string{{"SERIAL", "URL", "MODEL", "FIRMWARE"}}
	for _, d := range devices {
		model := d.Model
		if d.Simulated {
			model += " (sim)"
		}
		rows = append(rows, []string{d.Serial, d.BaseURL(), model, d.Firmware})
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintPanel(fmt.Sprintf("Found %d device(s)", len(devices)), ui.Table(rows))
	return nil
}
