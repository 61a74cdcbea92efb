package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	pkgstrings "webauthz/pkg/strings"
	"webauthz/pkg/webauthz"
)

var (
	negotiationUser     string
	negotiationResource string
	negotiationHeader   string
	negotiationContext  string
)

func newNegotiationCmd() *cobra.Command {
	negotiationCmd := &cobra.Command{
		Use:   "negotiation",
		Short: "Start and inspect access requests",
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start a negotiation from a WWW-Authenticate challenge",
		Long: `Records a new access request for the challenge in --header and prints
the access request URI the user must visit to approve it.

Example:
  webauthz negotiation start --user alice \
    --resource https://api.example/contacts/1 \
    --header 'Bearer webauthz_discovery_uri="https://auth.example/.well-known/webauthz.json", path="/contacts"'`,
		Args: cobra.NoArgs,
		RunE: runNegotiationStart,
	}
	startCmd.Flags().StringVar(&negotiationUser, "user", "", "User the access request belongs to")
	startCmd.Flags().StringVar(&negotiationResource, "resource", "", "URI of the resource that returned the challenge")
	startCmd.Flags().StringVar(&negotiationHeader, "header", "", "WWW-Authenticate header value")
	startCmd.Flags().StringVar(&negotiationContext, "context", "", "Opaque application context stored with the request")
	_ = startCmd.MarkFlagRequired("user")
	_ = startCmd.MarkFlagRequired("resource")
	_ = startCmd.MarkFlagRequired("header")

	getCmd := &cobra.Command{
		Use:   "get <client-state>",
		Short: "Show an access request",
		Args:  cobra.ExactArgs(1),
		RunE:  runNegotiationGet,
	}
	getCmd.Flags().StringVar(&negotiationUser, "user", "", "User the access request belongs to")
	_ = getCmd.MarkFlagRequired("user")

	negotiationCmd.AddCommand(startCmd, getCmd)
	return negotiationCmd
}

func runNegotiationStart(cmd *cobra.Command, args []string) error {
	challenge := webauthz.ParseChallengeHeader(negotiationHeader)
	if challenge == nil {
		return &NoResultError{Message: "no webauthz challenge found in --header"}
	}
	challenge.ResourceURI = negotiationResource
	challenge.UserID = negotiationUser

	e, err := newEngine(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	neg, err := e.client.StartNegotiation(cmd.Context(), challenge, negotiationContext)
	if err != nil {
		return describeError(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "client_state:       %s\n", neg.ClientState)
	fmt.Fprintf(out, "access_request_uri: %s\n", neg.AccessRequestURI)
	return nil
}

func runNegotiationGet(cmd *cobra.Command, args []string) error {
	e, err := newEngine(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	view, err := e.client.GetNegotiation(cmd.Context(), args[0], negotiationUser)
	if err != nil {
		return describeError(err)
	}

	renderAccessRequest(cmd, view)
	return nil
}

func renderAccessRequest(cmd *cobra.Command, view *webauthz.AccessRequestView) {
	refresh := "none"
	if view.RefreshTokenExists {
		refresh = "until " + formatTime(view.RefreshTokenNotAfter)
	}

	t := newTable(cmd.OutOrStdout())
	t.AppendHeader(table.Row{headerCell("FIELD"), headerCell("VALUE")})
	t.AppendRows([]table.Row{
		{"Client state", view.ClientState},
		{"Status", formatStatus(view.Status)},
		{"User", view.UserID},
		{"Resource", view.ResourceURI},
		{"Realm", orDash(view.Realm)},
		{"Scope", orDash(view.Scope)},
		{"Path", orDash(view.Path)},
		{"Discovery URI", view.DiscoveryURI},
		{"Access request URI", pkgstrings.Middle(view.AccessRequestURI, pkgstrings.DefaultCellMaxLen)},
		{"Context", orDash(pkgstrings.TruncateCell(view.Context, pkgstrings.DefaultCellMaxLen))},
		{"Refresh token", refresh},
	})
	t.Render()
}
