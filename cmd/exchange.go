package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"webauthz/pkg/webauthz"
)

var (
	exchangeUser        string
	exchangeClientID    string
	exchangeClientState string
	exchangeGrantToken  string
	exchangeRefresh     bool
)

func newExchangeCmd() *cobra.Command {
	exchangeCmd := &cobra.Command{
		Use:   "exchange",
		Short: "Exchange a grant token, or refresh, for an access token",
		Long: `Exchanges the grant token an authorization server sent back with the
user, or the refresh token stored for the access request, for a new access
token. Exactly one of --grant-token and --refresh must be given.`,
		Args: cobra.NoArgs,
		RunE: runExchange,
	}
	exchangeCmd.Flags().StringVar(&exchangeUser, "user", "", "User the access request belongs to")
	exchangeCmd.Flags().StringVar(&exchangeClientID, "client-id", "", "client_id from the grant redirect")
	exchangeCmd.Flags().StringVar(&exchangeClientState, "client-state", "", "client_state from the grant redirect")
	exchangeCmd.Flags().StringVar(&exchangeGrantToken, "grant-token", "", "grant_token from the grant redirect")
	exchangeCmd.Flags().BoolVar(&exchangeRefresh, "refresh", false, "Use the stored refresh token")
	_ = exchangeCmd.MarkFlagRequired("user")
	_ = exchangeCmd.MarkFlagRequired("client-id")
	_ = exchangeCmd.MarkFlagRequired("client-state")
	exchangeCmd.MarkFlagsMutuallyExclusive("grant-token", "refresh")
	exchangeCmd.MarkFlagsOneRequired("grant-token", "refresh")
	return exchangeCmd
}

func runExchange(cmd *cobra.Command, args []string) error {
	e, err := newEngine(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	result, err := e.client.Exchange(cmd.Context(), webauthz.ExchangeRequest{
		ClientID:    exchangeClientID,
		ClientState: exchangeClientState,
		GrantToken:  exchangeGrantToken,
		Refresh:     exchangeRefresh,
		UserID:      exchangeUser,
	})
	if err != nil {
		return describeError(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "status:       %s\n", formatStatus(result.Status))
	fmt.Fprintf(out, "resource:     %s\n", result.ResourceURI)
	fmt.Fprintf(out, "access_token: %s\n", result.AccessToken)
	fmt.Fprintf(out, "not_after:    %s\n", formatTime(result.AccessTokenNotAfter))
	return nil
}
