package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deskpanel/deskpanel/internal/config"
	"github.com/deskpanel/deskpanel/internal/deploy"
	"github.com/deskpanel/deskpanel/internal/hidbridge"
	"github.com/deskpanel/deskpanel/internal/logging"
	"github.com/deskpanel/deskpanel/internal/ui"
	"github.com/deskpanel/deskpanel/internal/wifi"
)

var (
	layoutPath      string
	iconPaths       []string
	backgroundPaths []string
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a layout and its images to the display",
	Long: `Deploy a layout JSON file plus icons and backgrounds to the display.

The run:
  1. opens the USB control channel and enters config mode
  2. waits for the setup access point and joins it
  3. waits for the device API, uploads images, then the layout
  4. exits config mode and restores the previous WiFi network

Images that fail to encode or upload are reported as warnings; the layout
is still deployed. Any other failure stops the run, after which the display
is always told to leave config mode and the host's WiFi is restored.`,
	Example: `  # Deploy a layout with two icons and a background
  deskpanel-cfg deploy --config layout.json --icon clock.svg --icon mail.png --background desk.jpg

  # Plain output for CI logs
  deskpanel-cfg deploy --config layout.json --plain`,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().StringVarP(&layoutPath, "config", "c", "", "Layout JSON file (required)")
	deployCmd.Flags().StringArrayVar(&iconPaths, "icon", nil, "Icon source image (PNG, JPEG or SVG); repeatable")
	deployCmd.Flags().StringArrayVar(&backgroundPaths, "background", nil, "Background source image; repeatable")
	_ = deployCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	profile, err := loadProfile()
	if err != nil {
		return err
	}

	layout, err := os.ReadFile(layoutPath)
	if err != nil {
		return fmt.Errorf("failed to read layout: %w", err)
	}

	plan, err := deploy.BuildPlan(deploy.PlanInput{
		ConfigJSON:  string(layout),
		Icons:       iconPaths,
		Backgrounds: backgroundPaths,
		IconWidth:   profile.Display.IconWidth,
		IconHeight:  profile.Display.IconHeight,
		Width:       profile.Display.Width,
		Height:      profile.Display.Height,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", layoutPath, err)
	}

	network, err := newSwitcher(profile)
	if err != nil {
		return err
	}

	orch := deploy.New(bridgeOpener(profile), network, newClient(profile), deploy.Options{
		SSID:            profile.Device.APSSID,
		ConfigModeDelay: profile.Timing.ConfigModeDelay.Duration,
		APWait:          profile.Timing.APWait.Duration,
		WiFiVerify:      profile.Timing.WiFiVerify.Duration,
		HealthWait:      profile.Timing.HealthWait.Duration,
		HealthInterval:  profile.Timing.HealthInterval.Duration,
		Logger:          logging.GetLogger(),
	})

	// Interrupts cancel the run at the next step boundary; cleanup still
	// exits config mode and restores WiFi before the process ends.
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	events, err := orch.Start(ctx, plan)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var res *deploy.Result
	switch {
	case jsonOutput():
		for ev := range events {
			if ev.Kind.Terminal() {
				res = ev.Result
			}
		}
		if err := writeJSON(out, deployReport(res, plan)); err != nil {
			return err
		}
	case plainOutput || !ui.IsTerminal():
		runner := ui.NewDeployRunner(out)
		runner.PrintHeader("deskpanel-cfg deploy", deployParams(profile, plan))
		res = runner.Consume(events)
		runner.PrintResult(res)
	default:
		p := ui.NewPrinter(out)
		p.PrintHeader("Deploy Layout", "deskpanel-cfg deploy", deployParams(profile, plan))
		res, err = ui.RunLive(events, cancel, os.Stdin, out)
		if err != nil {
			// The run keeps going without a display; wait for cleanup.
			for ev := range events {
				if ev.Kind.Terminal() {
					res = ev.Result
				}
			}
		}
		if res != nil {
			p.PrintResult(ui.DeployResultBox(res))
		}
	}

	if res == nil {
		return fmt.Errorf("deployment ended without a result")
	}
	if !res.Succeeded() {
		return fmt.Errorf("deployment failed: %w", res.Err)
	}
	return nil
}

func deployParams(p *config.Profile, plan *deploy.Plan) map[string]string {
	return map[string]string{
		"Device":      p.Device.APIBase,
		"SSID":        p.Device.APSSID,
		"Layout":      layoutPath,
		"Icons":       fmt.Sprintf("%d", len(plan.Icons)),
		"Backgrounds": fmt.Sprintf("%d", len(plan.Backgrounds)),
	}
}

type deployJSON struct {
	RunID            string   `json:"run_id"`
	Success          bool     `json:"success"`
	Error            string   `json:"error,omitempty"`
	FailedStep       string   `json:"failed_step,omitempty"`
	DurationMS       int64    `json:"duration_ms"`
	ConfigAttempts   int      `json:"config_attempts"`
	Icons            []string `json:"icons"`
	Backgrounds      []string `json:"backgrounds"`
	Warnings         []string `json:"warnings,omitempty"`
	DeviceMayBeStuck bool     `json:"device_may_be_stuck,omitempty"`
}

func deployReport(res *deploy.Result, plan *deploy.Plan) deployJSON {
	report := deployJSON{
		Icons:       plan.IconNames(),
		Backgrounds: plan.BackgroundNames(),
	}
	if res == nil {
		return report
	}
	report.RunID = res.RunID
	report.Success = res.Succeeded()
	report.DurationMS = res.Duration.Milliseconds()
	report.ConfigAttempts = res.ConfigAttempts
	report.DeviceMayBeStuck = res.DeviceMayBeStuck
	if res.Err != nil {
		report.Error = res.Err.Error()
		if step, ok := deploy.FailedStep(res.Err); ok {
			report.FailedStep = step.String()
		}
	}
	for _, w := range res.Warnings {
		report.Warnings = append(report.Warnings, w.String())
	}
	return report
}

// bridgeOpener opens the HID control channel described by the profile.
func bridgeOpener(p *config.Profile) deploy.BridgeOpener {
	return func() (deploy.ControlChannel, error) {
		b, err := hidbridge.Open(bridgeConfig(p))
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

// newSwitcher builds the nmcli-backed WiFi switcher.
func newSwitcher(p *config.Profile) (*wifi.Switcher, error) {
	if _, err := wifi.LookupNMCLI(); err != nil {
		return nil, fmt.Errorf("nmcli not found; NetworkManager is needed to switch WiFi: %w", err)
	}
	logger := logging.GetLogger()
	runner := wifi.NewExecRunner(p.Timing.WiFiVerify.Duration, logger)
	return wifi.New(wifi.NewNMCLI(runner, logger), wifi.Options{
		APPassword: p.Device.APPassword,
		Logger:     logger,
	}), nil
}
