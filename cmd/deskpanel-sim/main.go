// Deskpanel-sim serves the display's configuration-mode HTTP API from
// memory so deployments can be exercised without hardware.
//
// It keeps uploaded layouts and images on a simulated SD card, can drop
// config uploads to exercise client retries, and optionally advertises
// itself over mDNS so 'deskpanel-cfg scan' finds it.
//
// Usage:
//
//	deskpanel-sim [flags]
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deskpanel/deskpanel/internal/devsim"
	"github.com/deskpanel/deskpanel/internal/discovery"
	"github.com/deskpanel/deskpanel/internal/logging"
	"github.com/deskpanel/deskpanel/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var (
	host       string
	port       int
	logLevel   string
	dropConfig int
	capacityMB int64
	maxUpload  int64
	latency    time.Duration
	mdns       bool
	serial     string
	origins    []string
	rateLimit  int
)

var rootCmd = &cobra.Command{
	Use:   "deskpanel-sim",
	Short: "DeskPanel device API simulator",
	Long: `Serve the DeskPanel configuration-mode HTTP API from memory.

The simulator accepts layout and image uploads exactly as the display does,
keeps them on an in-memory SD card and exposes Prometheus counters on
/metrics. Point deskpanel-cfg at it with --device.`,
	Version: version.Version,
	Example: `  # Serve on :8080
  deskpanel-sim

  # Hang up on the first two config uploads to exercise retries
  deskpanel-sim --drop-config 2 --log-level debug

  # Advertise over mDNS as serial SIM0001
  deskpanel-sim --mdns --serial SIM0001`,
	SilenceUsage: true,
	RunE:         runSim,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.Flags().StringVar(&host, "host", "", "Listen host (empty = all interfaces)")
	rootCmd.Flags().IntVar(&port, "port", 8080, "Listen port")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().IntVar(&dropConfig, "drop-config", 0, "Hang up on this many config uploads before accepting one")
	rootCmd.Flags().Int64Var(&capacityMB, "capacity-mb", devsim.DefaultCapacity>>20, "Simulated SD card size in MB")
	rootCmd.Flags().Int64Var(&maxUpload, "max-upload", devsim.DefaultMaxUpload, "Largest accepted request body in bytes")
	rootCmd.Flags().DurationVar(&latency, "latency", 0, "Delay added before every API response")
	rootCmd.Flags().StringSliceVar(&origins, "cors-origin", nil, "Allow browser requests from these origins; repeatable")
	rootCmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "Requests per second per client before 429 (0 = unlimited)")
	rootCmd.Flags().BoolVar(&mdns, "mdns", false, "Advertise over mDNS")
	rootCmd.Flags().StringVar(&serial, "serial", "SIM0001", "Serial number advertised over mDNS")
}

func runSim(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}
	defer logging.Sync()
	logger := logging.GetLogger()

	if capacityMB <= 0 {
		return fmt.Errorf("--capacity-mb must be positive")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := devsim.New(devsim.Options{
		Capacity:          capacityMB << 20,
		MaxUpload:         maxUpload,
		DropConfigUploads: dropConfig,
		Latency:           latency,
		AllowedOrigins:    origins,
		RateLimit:         rateLimit,
		Logger:            logger,
	})

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           sim.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if mdns {
		ad, err := discovery.Advertise("DeskPanel "+serial, port, map[string]string{
			discovery.TXTSerial:   serial,
			discovery.TXTModel:    "sim",
			discovery.TXTFirmware: version.Version,
			discovery.TXTSim:      "1",
		})
		if err != nil {
			_ = listener.Close()
			return err
		}
		defer ad.Shutdown()
		logger.Info("Advertising over mDNS", zap.String("service", discovery.ServiceType), zap.String("serial", serial))
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting deskpanel-sim", zap.String("addr", listener.Addr().String()))
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "deskpanel-sim listening on http://%s\n", listener.Addr())

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
	}
	logger.Info("Simulator stopped", zap.Int("config_uploads", sim.ConfigUploads()))
	return nil
}
