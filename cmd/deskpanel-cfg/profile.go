package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/deskpanel/deskpanel/internal/config"
	"github.com/deskpanel/deskpanel/internal/ui"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the device profile",
}

var profileInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a profile with factory defaults",
	Long: `Write a profile with factory defaults, applying --device and --ssid.
An existing profile is only replaced with --yes.`,
	RunE: runProfileInit,
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective profile",
	RunE:  runProfileShow,
}

func init() {
	profileCmd.AddCommand(profileInitCmd, profileShowCmd)
	rootCmd.AddCommand(profileCmd)
}

func resolvedProfilePath() (string, error) {
	if profilePath != "" {
		return profilePath, nil
	}
	return config.GetProfilePath()
}

func runProfileInit(cmd *cobra.Command, args []string) error {
	path, err := resolvedProfilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !assumeYes {
		return fmt.Errorf("%s already exists (use --yes to overwrite)", path)
	}

	p := config.NewProfile()
	if deviceURL != "" {
		p.Device.APIBase = deviceURL
	}
	if ssidOverride != "" {
		p.Device.APSSID = ssidOverride
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := p.Save(path); err != nil {
		return err
	}

	ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Profile written", map[string]string{
		"Path":   path,
		"Device": p.Device.APIBase,
		"SSID":   p.Device.APSSID,
	})
	return nil
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}

	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), p)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	path, _ := resolvedProfilePath()
	ui.NewPrinter(cmd.OutOrStdout()).PrintPanel(path, string(data))
	return nil
}
