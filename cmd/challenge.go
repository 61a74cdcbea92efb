package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"webauthz/pkg/webauthz"
)

func newChallengeCmd() *cobra.Command {
	challengeCmd := &cobra.Command{
		Use:   "challenge",
		Short: "Work with WWW-Authenticate challenges",
	}

	challengeCmd.AddCommand(&cobra.Command{
		Use:   "parse <header-value>",
		Short: "Parse a WWW-Authenticate header value",
		Long: `Parses a WWW-Authenticate header value and prints the webauthz
challenge it carries. Exits with code 2 when the value holds no webauthz
challenge.

Example:
  webauthz challenge parse 'Bearer realm="contacts", webauthz_discovery_uri="https://auth.example/.well-known/webauthz.json"'`,
		Args: cobra.ExactArgs(1),
		RunE: runChallengeParse,
	})

	return challengeCmd
}

func runChallengeParse(cmd *cobra.Command, args []string) error {
	challenge := webauthz.ParseChallengeHeader(args[0])
	if challenge == nil {
		return &NoResultError{Message: "no webauthz challenge found"}
	}

	t := newTable(cmd.OutOrStdout())
	t.AppendHeader(table.Row{headerCell("FIELD"), headerCell("VALUE")})
	t.AppendRows([]table.Row{
		{"Discovery URI", challenge.DiscoveryURI},
		{"Realm", orDash(challenge.Realm)},
		{"Scope", orDash(challenge.Scope)},
		{"Path", orDash(challenge.Path)},
	})
	t.Render()
	return nil
}
