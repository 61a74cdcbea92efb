package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"webauthz/pkg/webauthz"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeNoResult indicates there was nothing to report: no access token
	// for the resource, or no webauthz challenge in a header.
	ExitCodeNoResult = 2
)

var (
	// configPath is the directory holding config.yaml.
	configPath string
	// debug enables verbose logging.
	debug bool
)

// rootCmd represents the base command for the webauthz application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "webauthz",
	Short: "Obtain and manage webauthz access tokens",
	Long: `webauthz is the client side of the webauthz protocol. It turns a
WWW-Authenticate challenge from a protected resource into an access request,
exchanges the grant it gets back for an access token, and finds (and
refreshes) the right token for later requests.

Run 'webauthz serve' to expose these operations over HTTP to your application,
or use the subcommands directly for scripting and debugging.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// NoResultError reports that a command completed without finding anything.
type NoResultError struct {
	Message string
}

func (e *NoResultError) Error() string {
	return e.Message
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "webauthz version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var noResult *NoResultError
	if errors.As(err, &noResult) {
		return ExitCodeNoResult
	}

	return ExitCodeError
}

// describeError turns engine errors into messages for the terminal. Access
// denials name their cause, which may be local (another user's request, an
// expired refresh token) or the authorization server's refusal.
func describeError(err error) error {
	switch webauthz.KindOf(err) {
	case webauthz.KindNotFound:
		return errors.New("no such access request")
	case webauthz.KindAccessDenied:
		var e *webauthz.Error
		if errors.As(err, &e) && e.Err != nil {
			return fmt.Errorf("access denied: %v", e.Err)
		}
		return errors.New("access denied")
	default:
		return err
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration directory (default is $HOME/.config/webauthz)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newChallengeCmd())
	rootCmd.AddCommand(newNegotiationCmd())
	rootCmd.AddCommand(newExchangeCmd())
	rootCmd.AddCommand(newResolveCmd())
}
