package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deskpanel/deskpanel/internal/config"
	"github.com/deskpanel/deskpanel/internal/hidbridge"
	"github.com/deskpanel/deskpanel/internal/logging"
	"github.com/deskpanel/deskpanel/internal/ui"
)

var modeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Send config mode reports over USB",
	Long: `Switch the display in or out of configuration mode without deploying.

Useful to recover a display left in config mode by an interrupted run.`,
}

var modeEnterCmd = &cobra.Command{
	Use:   "enter",
	Short: "Tell the display to enter config mode",
	RunE:  func(cmd *cobra.Command, args []string) error { return sendMode(cmd, true) },
}

var modeExitCmd = &cobra.Command{
	Use:   "exit",
	Short: "Tell the display to leave config mode",
	RunE:  func(cmd *cobra.Command, args []string) error { return sendMode(cmd, false) },
}

var modeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List HID interfaces and mark the one deploy would use",
	RunE:  runModeList,
}

var wifiCmd = &cobra.Command{
	Use:   "wifi",
	Short: "Show host WiFi state",
}

var wifiStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active network and whether the setup AP is visible",
	RunE:  runWiFiStatus,
}

func init() {
	modeCmd.AddCommand(modeEnterCmd, modeExitCmd, modeListCmd)
	wifiCmd.AddCommand(wifiStatusCmd)
	rootCmd.AddCommand(modeCmd, wifiCmd)
}

func bridgeConfig(p *config.Profile) hidbridge.Config {
	return hidbridge.Config{
		VendorID:    p.USB.VendorID,
		ProductID:   p.USB.ProductID,
		ProductName: p.USB.ProductName,
		Logger:      logging.GetLogger(),
	}
}

func sendMode(cmd *cobra.Command, enter bool) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}

	b, err := hidbridge.Open(bridgeConfig(p))
	if err != nil {
		return withHint(err, hidbridge.GetTroubleshootingHint(err))
	}
	defer b.Close()

	title := "Exit report sent"
	if enter {
		title = "Enter report sent"
		err = b.SendEnterConfigMode()
	} else {
		err = b.SendExitConfigMode()
	}
	if err != nil {
		return withHint(err, hidbridge.GetTroubleshootingHint(err))
	}

	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"device": b.Interface().DevPath, "enter": enter})
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess(title, map[string]string{
		"Interface": b.Interface().DevPath,
		"Name":      b.Interface().Name,
	})
	return nil
}

func runModeList(cmd *cobra.Command, args []string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}

	ifaces, err := hidbridge.Enumerate()
	if err != nil {
		return err
	}

	selected := ""
	if b, err := hidbridge.Open(bridgeConfig(p)); err == nil {
		selected = b.Interface().DevPath
		b.Close()
	}

	if jsonOutput() {
		type entry struct {
			Device     string `json:"device"`
			VendorID   string `json:"vendor_id"`
			ProductID  string `json:"product_id"`
			Name       string `json:"name"`
			VendorPage bool   `json:"vendor_page"`
			Selected   bool   `json:"selected"`
		}
		out := make([]entry, len(ifaces))
		for i, f := range ifaces {
			out[i] = entry{f.DevPath, fmt.Sprintf("%04x", f.VendorID), fmt.Sprintf("%04x", f.ProductID), f.Name, f.VendorPage, f.DevPath == selected}
		}
		return writeJSON(cmd.OutOrStdout(), out)
	}

	rows := [][]string{{"", "DEVICE", "ID", "NAME", "VENDOR PAGE"}}
	for _, f := range ifaces {
		mark := ""
		if f.DevPath == selected {
			mark = ui.StepMarkerRunning
		}
		rows = append(rows, []string{mark, f.DevPath, fmt.Sprintf("%04x:%04x", f.VendorID, f.ProductID), f.Name, fmt.Sprintf("%v", f.VendorPage)})
	}
	content := ui.Table(rows)
	if len(ifaces) == 0 {
		content = "(no HID interfaces)"
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintPanel("HID interfaces", content)
	return nil
}

func runWiFiStatus(cmd *cobra.Command, args []string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	sw, err := newSwitcher(p)
	if err != nil {
		return err
	}

	active, connected := sw.CurrentSSID(cmd.Context())
	apVisible := sw.WaitForAP(cmd.Context(), p.Device.APSSID, 0)

	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
			"active":     active,
			"connected":  connected,
			"ap_ssid":    p.Device.APSSID,
			"ap_visible": apVisible,
		})
	}

	if !connected {
		active = "(none)"
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("WiFi status", map[string]string{
		"Active":     active,
		"Setup AP":   p.Device.APSSID,
		"AP visible": fmt.Sprintf("%v", apVisible),
	})
	return nil
}
