package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aaronsmithtv/sesiweb"
)

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for use with curl or scripts",
		Long: `Exchange the configured credentials for a bearer token and print it.

The token is cached between runs, so repeated calls reuse it until it
expires. Pass it to curl as "Authorization: Bearer <token>".`,
		Args: cobra.NoArgs,
		RunE: runToken,
	}
}

func runToken(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := buildLogger()

	client, err := newAPIClient(ctx, logger)
	if err != nil {
		return err
	}

	tok := client.Token()

	if flagJSON {
		return printTokenJSON(tok)
	}

	fmt.Println(tok.Token)

	return nil
}

// tokenJSONOutput is the JSON output schema for the token command.
type tokenJSONOutput struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

func printTokenJSON(tok sesiweb.AccessToken) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(tokenJSONOutput{
		AccessToken: tok.Token,
		ExpiresAt:   tok.Expiry.UTC().Format(time.RFC3339),
	})
}
