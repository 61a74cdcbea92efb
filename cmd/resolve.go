package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resolveUser string

func newResolveCmd() *cobra.Command {
	resolveCmd := &cobra.Command{
		Use:   "resolve <resource-uri>",
		Short: "Print the access token to use for a resource",
		Long: `Finds the access token stored for the most specific path covering the
resource URI and prints it. An expired token is refreshed when possible.
Exits with code 2 when no usable token exists.

Example:
  curl -H "Authorization: Bearer $(webauthz resolve --user alice https://api.example/contacts/1)" \
    https://api.example/contacts/1`,
		Args: cobra.ExactArgs(1),
		RunE: runResolve,
	}
	resolveCmd.Flags().StringVar(&resolveUser, "user", "", "User to resolve the token for")
	_ = resolveCmd.MarkFlagRequired("user")
	return resolveCmd
}

func runResolve(cmd *cobra.Command, args []string) error {
	e, err := newEngine(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	tok, err := e.client.Resolve(cmd.Context(), resolveUser, args[0])
	if err != nil {
		return describeError(err)
	}
	if tok == nil {
		return &NoResultError{Message: "no access token for " + args[0]}
	}

	fmt.Fprintln(cmd.OutOrStdout(), tok.AccessToken)
	return nil
}
