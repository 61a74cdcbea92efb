package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"webauthz/pkg/webauthz"
)

// resetFlags restores every flag to its default so executions do not leak
// into each other.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// executeCommand runs the root command with args and returns its stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// emptyConfigDir returns a configuration directory with no config.yaml and
// clears environment overrides.
func emptyConfigDir(t *testing.T) string {
	t.Helper()
	for _, key := range []string{"WEBAUTHZ_STORE_TYPE", "WEBAUTHZ_STORE_DSN", "WEBAUTHZ_REDIS_ADDR", "WEBAUTHZ_LOG_LEVEL", "WEBAUTHZ_LOG_FORMAT"} {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatal(err)
		}
	}
	return t.TempDir()
}

// sqliteConfigDir returns a configuration directory using a SQLite file, so
// separate command executions share state.
func sqliteConfigDir(t *testing.T) string {
	t.Helper()
	dir := emptyConfigDir(t)
	cfg := fmt.Sprintf("store:\n  type: sqlite\n  dsn: %s\n", filepath.Join(dir, "webauthz.db"))
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestSetVersion(t *testing.T) {
	original := rootCmd.Version
	defer func() { rootCmd.Version = original }()

	SetVersion("1.2.3-test")
	if GetVersion() != "1.2.3-test" {
		t.Errorf("Expected version to be 1.2.3-test, got %s", GetVersion())
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "webauthz" {
		t.Errorf("Expected Use to be 'webauthz', got %s", rootCmd.Use)
	}
	if rootCmd.Short == "" || rootCmd.Long == "" {
		t.Error("Expected descriptions to be set")
	}
	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}

	for _, name := range []string{"serve", "challenge", "negotiation", "exchange", "resolve", "version"} {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected subcommand %q to be registered", name)
		}
	}

	for _, flag := range []string{"config", "debug"} {
		if rootCmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("Expected persistent flag --%s", flag)
		}
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitCodeSuccess},
		{"plain error", errors.New("boom"), ExitCodeError},
		{"no result", &NoResultError{Message: "none"}, ExitCodeNoResult},
		{"wrapped no result", fmt.Errorf("resolve: %w", &NoResultError{Message: "none"}), ExitCodeNoResult},
		{"engine error", webauthz.ErrAccessDenied, ExitCodeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getExitCode(tt.err); got != tt.want {
				t.Errorf("getExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestChallengeParse(t *testing.T) {
	out, err := executeCommand(t, "challenge", "parse",
		`Bearer realm="contacts", path="/api", webauthz_discovery_uri="https://auth.example/d"`)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, want := range []string{"https://auth.example/d", "contacts", "/api"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}

	_, err = executeCommand(t, "challenge", "parse", `Basic realm="legacy"`)
	if getExitCode(err) != ExitCodeNoResult {
		t.Errorf("Expected exit code %d for a non-webauthz header, got %v", ExitCodeNoResult, err)
	}
}

func TestExchange_FlagValidation(t *testing.T) {
	dir := emptyConfigDir(t)

	_, err := executeCommand(t, "--config", dir, "exchange", "--user", "u", "--client-id", "c", "--client-state", "s")
	if err == nil {
		t.Error("Expected an error when neither --grant-token nor --refresh is given")
	}

	_, err = executeCommand(t, "--config", dir, "exchange", "--user", "u", "--client-id", "c", "--client-state", "s",
		"--grant-token", "g", "--refresh")
	if err == nil {
		t.Error("Expected an error when both --grant-token and --refresh are given")
	}
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "unknown access request",
			err:  &webauthz.Error{Kind: webauthz.KindNotFound, Op: "exchange"},
			want: "no such access request",
		},
		{
			name: "another user's request",
			err:  &webauthz.Error{Kind: webauthz.KindAccessDenied, Op: "exchange", Err: errors.New("access request belongs to another user")},
			want: "access denied: access request belongs to another user",
		},
		{
			name: "expired refresh token",
			err:  &webauthz.Error{Kind: webauthz.KindAccessDenied, Op: "exchange", Err: errors.New("refresh token expired")},
			want: "access denied: refresh token expired",
		},
		{
			name: "server refusal",
			err:  fmt.Errorf("wrapped: %w", &webauthz.Error{Kind: webauthz.KindAccessDenied, Err: errors.New("authorization server issued no access token")}),
			want: "access denied: authorization server issued no access token",
		},
		{
			name: "denial without cause",
			err:  webauthz.ErrAccessDenied,
			want: "access denied",
		},
		{
			name: "other kinds pass through",
			err:  &webauthz.Error{Kind: webauthz.KindExchangeFailed, Op: "exchange"},
			want: "exchange: exchange failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeError(tt.err).Error(); got != tt.want {
				t.Errorf("describeError() = %q, want %q", got, tt.want)
			}
		})
	}
}
