package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/payflow/internal/auth"
	"github.com/mrz1836/payflow/internal/config"
	"github.com/mrz1836/payflow/internal/ledger/ledgertest"
	"github.com/mrz1836/payflow/internal/metrics"
	"github.com/mrz1836/payflow/internal/output"
)

const testAddress = "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"

// withMockPrompts replaces prompt functions for testing and restores on cleanup.
// lines are returned in order by the visible prompt; io.EOF once exhausted.
func withMockPrompts(t *testing.T, password string, lines []string, confirm bool) {
	t.Helper()
	origPW := promptPasswordFn
	origLine := promptLineFn
	origConfirm := promptConfirmFn
	t.Cleanup(func() {
		promptPasswordFn = origPW
		promptLineFn = origLine
		promptConfirmFn = origConfirm
	})

	promptPasswordFn = func(_ string) ([]byte, error) {
		return []byte(password), nil
	}
	queue := append([]string(nil), lines...)
	promptLineFn = func(_ string) (string, error) {
		if len(queue) == 0 {
			return "", io.EOF
		}
		line := queue[0]
		queue = queue[1:]
		return line, nil
	}
	promptConfirmFn = func(_ string) bool { return confirm }
}

// testEnv is a command context wired to a fake ledger and a temporary home.
type testEnv struct {
	srv    *ledgertest.Server
	cfg    *config.Config
	cc     *CommandContext
	out    bytes.Buffer
	errOut bytes.Buffer
}

func newTestEnv(t *testing.T, opts ledgertest.SimOptions) *testEnv {
	t.Helper()

	origKeyring := systemKeyring
	systemKeyring = func() auth.Keyring { return nil }
	t.Cleanup(func() { systemKeyring = origKeyring })

	env := &testEnv{srv: ledgertest.NewSimulator(opts)}
	url := env.srv.Start()
	t.Cleanup(env.srv.Close)

	home := t.TempDir()
	env.cfg = config.Defaults()
	env.cfg.Home = home
	env.cfg.Ledger.URL = url
	env.cfg.Ledger.RatePerSecond = -1
	env.cfg.Presets.PollIntervalMS = 10
	env.cfg.Auth.TokenFile = filepath.Join(home, "token.age")
	env.cfg.Auth.IdentityFile = filepath.Join(home, "identity.age")
	env.cfg.Logging.Level = "off"

	env.cc = NewCommandContext(env.cfg, config.NullLogger(), output.NewFormatter(output.FormatText, &env.out), metrics.New())
	return env
}

// useJSON switches the environment to JSON output.
func (e *testEnv) useJSON() {
	e.cc.Formatter = output.NewFormatter(output.FormatJSON, &e.out)
}

// run invokes a command's RunE against the environment with fresh output buffers.
func (e *testEnv) run(fn func(*cobra.Command, []string) error, args ...string) error {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	SetCmdContext(cmd, e.cc)
	e.out.Reset()
	e.errOut.Reset()
	cmd.SetOut(&e.out)
	cmd.SetErr(&e.errOut)
	return fn(cmd, args)
}

// login stores a token for me@example.com.
func (e *testEnv) login(t *testing.T) {
	t.Helper()
	withMockPrompts(t, "hunter2", nil, true)
	setFlag(t, &loginEmail, "me@example.com")
	require.NoError(t, e.run(runLogin))
}

// setFlag assigns a flag variable and restores its zero value on cleanup.
func setFlag[T any](t *testing.T, dst *T, value T) {
	t.Helper()
	var zero T
	*dst = value
	t.Cleanup(func() { *dst = zero })
}
