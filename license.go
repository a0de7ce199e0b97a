package sesiweb

import (
	"context"
	"log/slog"
)

// License-service command names.
const cmdNonCommercialLicense = "license.get_non_commercial_license"

// NonCommercialLicense issues a non-commercial key set for the given license
// server, returning the keys and the matching server key.
func (c *Client) NonCommercialLicense(ctx context.Context, server LicenseServer) (*License, error) {
	if err := checkRecord(server); err != nil {
		return nil, err
	}

	c.logger.Info("requesting non-commercial license",
		slog.String("server_name", server.ServerName),
		slog.String("version", server.Version))

	var lic License
	if err := c.Call(ctx, cmdNonCommercialLicense, server, &lic); err != nil {
		return nil, err
	}

	c.logger.Debug("license issued", slog.Int("keys", len(lic.LicenseKeys)))
	return &lic, nil
}
