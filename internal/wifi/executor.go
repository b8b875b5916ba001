package wifi

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/deskpanel/deskpanel/internal/logging"
	"go.uber.org/zap"
)

// secretFlags are nmcli arguments whose following value is a credential.
var secretFlags = map[string]bool{
	"password":                     true,
	"wifi-sec.psk":                 true,
	"802-11-wireless-security.psk": true,
}

const redacted = "***"

// redactArgs joins name and args for display with credential values
// masked, and returns those values so they can be scrubbed from output.
func redactArgs(name string, args []string) (string, []string) {
	shown := make([]string, 0, len(args)+1)
	shown = append(shown, name)
	var secrets []string
	for i := 0; i < len(args); i++ {
		shown = append(shown, args[i])
		if secretFlags[args[i]] && i+1 < len(args) {
			i++
			shown = append(shown, redacted)
			if args[i] != "" {
				secrets = append(secrets, args[i])
			}
		}
	}
	return strings.Join(shown, " "), secrets
}

func scrub(s string, secrets []string) string {
	for _, secret := range secrets {
		s = strings.ReplaceAll(s, secret, redacted)
	}
	return s
}

// Runner executes a host command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands via os/exec, each under its own timeout.
type ExecRunner struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewExecRunner creates a runner that kills commands after timeout.
func NewExecRunner(timeout time.Duration, logger *zap.Logger) *ExecRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ExecRunner{timeout: timeout, logger: logging.Or(logger)}
}

// Run executes name with args. A non-zero exit yields a *CommandError and an
// expired deadline a *TimeoutError. Credential values never appear in logs
// or returned errors.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd := exec.CommandContext(timeoutCtx, name, args...)
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	// nmcli localizes "yes"/"no" in terse output
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	stdout := stdoutBuf.String()
	command, secrets := redactArgs(name, args)
	stderr := scrub(stderrBuf.String(), secrets)

	r.logger.Debug("host command complete",
		zap.String("command", command),
		zap.Duration("duration", time.Since(start)),
		zap.String("stdout", scrub(stdout, secrets)),
		zap.String("stderr", stderr),
		zap.Error(scrubError(err, secrets)),
	)

	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return stdout, &TimeoutError{Command: command, Timeout: r.timeout.String()}
	}
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return stdout, &CommandError{Command: command, ExitCode: exitCode, Stderr: stderr, Err: scrubError(err, secrets)}
	}
	return stdout, nil
}

// scrubError masks secrets in err's text.
func scrubError(err error, secrets []string) error {
	if err == nil || len(secrets) == 0 {
		return err
	}
	msg := err.Error()
	if clean := scrub(msg, secrets); clean != msg {
		return errors.New(clean)
	}
	return err
}
