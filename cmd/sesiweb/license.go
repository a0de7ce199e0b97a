package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aaronsmithtv/sesiweb"
)

func newLicenseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "license",
		Short: "Acquire non-commercial license keys for a license server",
		Long: `Acquire non-commercial license keys tied to a license server.

The keys are printed one per line, server key last, ready to be piped
into sesictrl or saved to a licenses file.`,
		Args: cobra.NoArgs,
		RunE: runLicense,
	}

	cmd.Flags().String("server-name", "", "license server hostname")
	cmd.Flags().String("server-code", "", "license server host code")
	cmd.Flags().String("version", "", "Houdini version to license (e.g. 19.5)")
	cmd.Flags().String("products", "HOUDINI-NC", "product keystring to license")

	return cmd
}

func runLicense(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := buildLogger()

	serverName, err := cmd.Flags().GetString("server-name")
	if err != nil {
		return err
	}

	serverCode, err := cmd.Flags().GetString("server-code")
	if err != nil {
		return err
	}

	version, err := cmd.Flags().GetString("version")
	if err != nil {
		return err
	}

	products, err := cmd.Flags().GetString("products")
	if err != nil {
		return err
	}

	client, err := newAPIClient(ctx, logger)
	if err != nil {
		return err
	}

	server := sesiweb.LicenseServer{
		ServerName: serverName,
		ServerCode: serverCode,
		Version:    version,
		Products:   products,
	}

	lic, err := client.NonCommercialLicense(ctx, server)
	if err != nil {
		return fmt.Errorf("acquiring license for %q: %w", serverName, err)
	}

	if flagJSON {
		return printLicenseJSON(lic)
	}

	for _, key := range lic.LicenseKeys {
		fmt.Println(key)
	}

	if lic.ServerKey != "" {
		fmt.Println(lic.ServerKey)
	}

	return nil
}

// licenseJSONOutput is the JSON output schema for the license command.
type licenseJSONOutput struct {
	LicenseKeys []string `json:"license_keys"`
	ServerKey   string   `json:"server_key"`
}

func printLicenseJSON(lic *sesiweb.License) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(licenseJSONOutput{
		LicenseKeys: lic.LicenseKeys,
		ServerKey:   lic.ServerKey,
	})
}
