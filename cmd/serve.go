package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"webauthz/internal/server"
	"webauthz/pkg/logging"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webauthz HTTP API",
		Long: `Starts the HTTP API that lets an application start negotiations,
receive grant redirects, exchange tokens and resolve access tokens.

Put the API behind your application's authentication: the caller's user id
is read from a trusted header (server.userHeader, X-Webauthz-User by
default). The grant redirect URI registered with authorization servers
(client.grantRedirectURI) should point at /v1/grant on this server.

The server shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := newEngine(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(e.client, server.Options{
		ListenAddr: e.config.Server.ListenAddr,
		UserHeader: e.config.Server.UserHeader,
		Debug:      debug,
	})
	if err := srv.Serve(ctx); err != nil {
		return err
	}
	logging.Info("CLI", "Server stopped")
	return nil
}
