package wifi

import (
	"context"
	"sync"
	"time"

	"github.com/deskpanel/deskpanel/internal/logging"
	"go.uber.org/zap"
)

// DefaultPollInterval is the scan and verify cadence.
const DefaultPollInterval = time.Second

// Options configures a Switcher.
type Options struct {
	// APPassword is used when joining the display's AP. Empty for an open AP.
	APPassword string

	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration

	Logger *zap.Logger
}

// Switcher hands the host's WiFi association over to the display's AP and
// back. The remembered previous SSID lives only as long as one run.
type Switcher struct {
	backend Backend
	opts    Options
	logger  *zap.Logger

	mu          sync.Mutex
	previous    string
	hasPrevious bool
}

// New creates a Switcher over backend.
func New(backend Backend, opts Options) *Switcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Switcher{
		backend: backend,
		opts:    opts,
		logger:  logging.Or(opts.Logger),
	}
}

// CurrentSSID returns the host's active association, or false when it is
// not associated or WiFi state cannot be queried.
func (s *Switcher) CurrentSSID(ctx context.Context) (string, bool) {
	return s.backend.ActiveSSID(ctx)
}

// PreviousSSID returns the association recorded by the last ConnectTo that
// has not yet been restored.
func (s *Switcher) PreviousSSID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previous, s.hasPrevious
}

// WaitForAP rescans about once per PollInterval until ssid is visible or
// timeout elapses.
func (s *Switcher) WaitForAP(ctx context.Context, ssid string, timeout time.Duration) bool {
	s.logger.Info("Waiting for access point", zap.String("ssid", ssid), zap.Duration("timeout", timeout))

	return s.poll(ctx, timeout, func() bool {
		if err := s.backend.Rescan(ctx); err != nil {
			// NetworkManager rate-limits rescans; the cached list is still useful
			s.logger.Debug("Rescan refused", zap.Error(err))
		}
		visible, err := s.backend.VisibleSSIDs(ctx)
		if err != nil {
			s.logger.Debug("Listing networks failed", zap.Error(err))
			return false
		}
		for _, v := range visible {
			if v == ssid {
				return true
			}
		}
		return false
	})
}

// ConnectTo records the current association, waits for ssid to appear,
// joins it and verifies the association, each phase bounded by timeout.
func (s *Switcher) ConnectTo(ctx context.Context, ssid string, timeout time.Duration) error {
	current, ok := s.CurrentSSID(ctx)

	s.mu.Lock()
	s.previous, s.hasPrevious = current, ok && current != ssid
	s.mu.Unlock()

	s.logger.Info("Switching WiFi",
		zap.String("ssid", ssid),
		zap.String("previous_ssid", current),
		zap.Bool("has_previous", ok && current != ssid),
	)

	if !s.WaitForAP(ctx, ssid, timeout) {
		return &NetworkError{Kind: ErrAPNotFound, SSID: ssid}
	}

	if err := s.backend.Connect(ctx, ssid, s.opts.APPassword); err != nil {
		return &NetworkError{Kind: ErrConnectFailed, SSID: ssid, Err: err}
	}

	verified := s.poll(ctx, timeout, func() bool {
		active, ok := s.CurrentSSID(ctx)
		return ok && active == ssid
	})
	if !verified {
		return &NetworkError{Kind: ErrVerifyTimeout, SSID: ssid}
	}

	s.logger.Info("Joined access point", zap.String("ssid", ssid))
	return nil
}

// RestorePrevious reconnects to the association recorded by ConnectTo.
// Failures are logged only. The record is cleared before reconnecting, so
// later calls do nothing.
func (s *Switcher) RestorePrevious(ctx context.Context) {
	s.mu.Lock()
	ssid, ok := s.previous, s.hasPrevious
	s.previous, s.hasPrevious = "", false
	s.mu.Unlock()

	if !ok {
		s.logger.Debug("No previous WiFi association to restore")
		return
	}

	if active, ok := s.CurrentSSID(ctx); ok && active == ssid {
		s.logger.Debug("Still associated with previous network", zap.String("ssid", ssid))
		return
	}

	s.logger.Info("Restoring WiFi", zap.String("ssid", ssid))
	if err := s.backend.Reconnect(ctx, ssid); err != nil {
		s.logger.Warn("Restoring WiFi failed", zap.String("ssid", ssid), zap.Error(err))
	}
}

// poll evaluates check immediately and then every PollInterval until it
// returns true, timeout elapses or ctx is done.
func (s *Switcher) poll(ctx context.Context, timeout time.Duration, check func() bool) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		if check() {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
