package wifi

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := name + " " + strings.Join(args, " ")
	r.calls = append(r.calls, cmd)
	if err, ok := r.errs[cmd]; ok {
		return "", err
	}
	return r.outputs[cmd], nil
}

const listCmd = "nmcli -t -f ACTIVE,SSID device wifi list --rescan no"

func TestSplitTerse(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"yes:HomeNet", []string{"yes", "HomeNet"}},
		{`no:Cafe\:Guest`, []string{"no", "Cafe:Guest"}},
		{`no:back\\slash`, []string{"no", `back\slash`}},
		{"no:", []string{"no", ""}},
	}

	for _, tt := range tests {
		if got := splitTerse(tt.line); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitTerse(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestNMCLIActiveSSID(t *testing.T) {
	tests := []struct {
		name   string
		output string
		err    error
		want   string
		wantOK bool
	}{
		{"associated", "no:Neighbour\nyes:HomeNet\nno:\n", nil, "HomeNet", true},
		{"not associated", "no:Neighbour\n", nil, "", false},
		{"nmcli missing", "", errors.New(`exec: "nmcli": executable file not found in $PATH`), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{outputs: map[string]string{listCmd: tt.output}}
			if tt.err != nil {
				r.errs = map[string]error{listCmd: tt.err}
			}
			got, ok := NewNMCLI(r, nil).ActiveSSID(context.Background())
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ActiveSSID() = %q, %v, want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNMCLIVisibleSSIDs(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{listCmd: "no:DeskPanel-Setup\nyes:HomeNet\nno:\n"}}
	got, err := NewNMCLI(r, nil).VisibleSSIDs(context.Background())
	if err != nil {
		t.Fatalf("VisibleSSIDs() error = %v", err)
	}
	want := []string{"DeskPanel-Setup", "HomeNet"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("VisibleSSIDs() = %v, want %v", got, want)
	}
}

func TestNMCLIConnect(t *testing.T) {
	tests := []struct {
		password string
		want     string
	}{
		{"", "nmcli device wifi connect DeskPanel-Setup"},
		{"setup123", "nmcli device wifi connect DeskPanel-Setup password setup123"},
	}

	for _, tt := range tests {
		r := &fakeRunner{}
		if err := NewNMCLI(r, nil).Connect(context.Background(), "DeskPanel-Setup", tt.password); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if len(r.calls) != 1 || r.calls[0] != tt.want {
			t.Errorf("calls = %v, want [%s]", r.calls, tt.want)
		}
	}
}

func TestNMCLIReconnectFallsBack(t *testing.T) {
	r := &fakeRunner{errs: map[string]error{
		"nmcli connection up id HomeNet": &CommandError{Command: "nmcli", ExitCode: 10},
	}}
	if err := NewNMCLI(r, nil).Reconnect(context.Background(), "HomeNet"); err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}
	want := []string{"nmcli connection up id HomeNet", "nmcli device wifi connect HomeNet"}
	if !reflect.DeepEqual(r.calls, want) {
		t.Errorf("calls = %v, want %v", r.calls, want)
	}
}

func TestSwitcherOverNMCLI(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{listCmd: "yes:DeskPanel-Setup\n"}}
	sw := New(NewNMCLI(r, nil), Options{PollInterval: time.Millisecond})

	if err := sw.ConnectTo(context.Background(), "DeskPanel-Setup", 20*time.Millisecond); err != nil {
		t.Fatalf("ConnectTo() error = %v", err)
	}
	if _, ok := sw.PreviousSSID(); ok {
		t.Error("already on the AP, nothing should be recorded")
	}
}

func TestExecRunner(t *testing.T) {
	r := NewExecRunner(5*time.Second, nil)

	out, err := r.Run(context.Background(), "sh", "-c", "echo hello")
	if err != nil {
		t.Skipf("sh unavailable: %v", err)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Errorf("Run() = %q, want hello", out)
	}

	_, err = r.Run(context.Background(), "sh", "-c", "echo oops >&2; exit 3")
	var ce *CommandError
	if !errors.As(err, &ce) {
		t.Fatalf("Run() error = %v, want *CommandError", err)
	}
	if ce.ExitCode != 3 || !strings.Contains(ce.Error(), "oops") {
		t.Errorf("CommandError = %v", ce)
	}
}

func TestExecRunnerTimeout(t *testing.T) {
	r := NewExecRunner(20*time.Millisecond, nil)
	_, err := r.Run(context.Background(), "sh", "-c", "exec sleep 5")
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Errorf("Run() error = %v, want *TimeoutError", err)
	}
}

func TestRedactArgs(t *testing.T) {
	tests := []struct {
		args    []string
		want    string
		secrets []string
	}{
		{[]string{"device", "wifi", "connect", "Lab"}, "nmcli device wifi connect Lab", nil},
		{[]string{"device", "wifi", "connect", "Lab", "password", "s3cret"}, "nmcli device wifi connect Lab password ***", []string{"s3cret"}},
		{[]string{"connection", "modify", "Lab", "wifi-sec.psk", "s3cret"}, "nmcli connection modify Lab wifi-sec.psk ***", []string{"s3cret"}},
		{[]string{"device", "wifi", "connect", "password"}, "nmcli device wifi connect password", nil},
	}

	for _, tt := range tests {
		got, secrets := redactArgs("nmcli", tt.args)
		if got != tt.want {
			t.Errorf("redactArgs(%v) = %q, want %q", tt.args, got, tt.want)
		}
		if !reflect.DeepEqual(secrets, tt.secrets) {
			t.Errorf("redactArgs(%v) secrets = %v, want %v", tt.args, secrets, tt.secrets)
		}
	}
}

func TestConnectErrorHidesPassword(t *testing.T) {
	const secret = "hunter2secret"
	t.Setenv("PATH", t.TempDir())
	core, logs := observer.New(zap.DebugLevel)
	runner := NewExecRunner(2*time.Second, zap.New(core))

	err := NewNMCLI(runner, nil).Connect(context.Background(), "DeskPanel-Setup", secret)
	if err == nil {
		t.Fatal("Connect() error = nil, want failure for a missing binary")
	}

	surfaced := (&NetworkError{Kind: ErrConnectFailed, SSID: "DeskPanel-Setup", Err: err}).Error()
	if strings.Contains(surfaced, secret) {
		t.Errorf("error text leaks password: %s", surfaced)
	}
	if !strings.Contains(surfaced, "password ***") {
		t.Errorf("error text = %s, want masked password argument", surfaced)
	}

	for _, entry := range logs.All() {
		for _, v := range entry.ContextMap() {
			if s, ok := v.(string); ok && strings.Contains(s, secret) {
				t.Errorf("log field leaks password: %q", s)
			}
		}
	}
}

func TestExecRunnerScrubsStderr(t *testing.T) {
	r := NewExecRunner(5*time.Second, nil)
	_, err := r.Run(context.Background(), "sh", "-c", `echo "bad key $1" >&2; exit 4`, "password", "hunter2secret")
	var ce *CommandError
	if !errors.As(err, &ce) {
		t.Skipf("sh unavailable: %v", err)
	}
	if strings.Contains(ce.Error(), "hunter2secret") {
		t.Errorf("CommandError leaks password: %v", ce)
	}
	if !strings.Contains(ce.Stderr, "bad key ***") {
		t.Errorf("Stderr = %q, want scrubbed value", ce.Stderr)
	}
}
