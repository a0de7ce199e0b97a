package sesiweb

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonCommercialLicense(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		command, kwargs := decodeEnvelope(t, r)
		assert.Equal(t, "license.get_non_commercial_license", command)
		assert.Equal(t, map[string]any{
			"server_name": "workstation",
			"server_code": "0ac1-b241",
			"version":     "20.5",
			"products":    "HOUDINI-NC",
		}, kwargs)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"license_keys":["LICENSE A", "LICENSE B"],
			"server_key":"SERVER KEY"
		}`)
	})

	lic, err := c.NonCommercialLicense(context.Background(), LicenseServer{
		ServerName: "workstation",
		ServerCode: "0ac1-b241",
		Version:    "20.5",
		Products:   "HOUDINI-NC",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"LICENSE A", "LICENSE B"}, lic.LicenseKeys)
	assert.Equal(t, "SERVER KEY", lic.ServerKey)
}

func TestNonCommercialLicenseInvalidServer(t *testing.T) {
	c, _ := newTestClient(t, func(http.ResponseWriter, *http.Request) {})

	_, err := c.NonCommercialLicense(context.Background(), LicenseServer{
		ServerName: "workstation",
		Version:    "20.5",
	})

	var fields FieldErrors
	require.ErrorAs(t, err, &fields)
	require.Len(t, fields, 2)
	assert.Equal(t, "server_code", fields[0].Field)
	assert.Equal(t, "products", fields[1].Field)
}

func TestNonCommercialLicenseAPIError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "Invalid server code.")
	})

	_, err := c.NonCommercialLicense(context.Background(), LicenseServer{
		ServerName: "workstation",
		ServerCode: "0ac1-b241",
		Version:    "20.5",
		Products:   "HOUDINI-NC",
	})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Invalid server code.", apiErr.Message)
}
