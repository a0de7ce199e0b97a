package sesiweb

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const buildsListingJSON = `[
	{"product":"houdini","platform":"linux_x86_64_gcc11.2","version":"20.5","build":"445","date":"2025/07/01","release":"gold","status":"good"},
	{"product":"houdini","platform":"linux_x86_64_gcc11.2","version":"20.5","build":"430","date":"2025/06/20","release":"gold","status":"bad"}
]`

func TestLatestBuilds(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		command, kwargs := decodeEnvelope(t, r)
		assert.Equal(t, "download.get_daily_builds_list", command)
		assert.Equal(t, map[string]any{
			"product":         "houdini",
			"platform":        "linux",
			"only_production": true,
		}, kwargs)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, buildsListingJSON)
	})

	builds, err := c.LatestBuilds(context.Background(), ProductSpec{Product: "houdini", Platform: "linux"})
	require.NoError(t, err)
	require.Len(t, builds, 2)
	assert.Equal(t, "445", builds[0].Build)
	assert.Equal(t, "20.5", builds[0].Version)
	assert.Equal(t, "gold", builds[0].Release)
	assert.Equal(t, "2025/07/01", builds[0].Date)
}

func TestLatestBuildsIncludesDaily(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, kwargs := decodeEnvelope(t, r)
		assert.Equal(t, false, kwargs["only_production"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[]`)
	})

	_, err := c.LatestBuilds(context.Background(),
		ProductSpec{Product: "houdini", Platform: "linux"},
		OnlyProduction(false))
	require.NoError(t, err)
}

func TestLatestBuildsFiltered(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, buildsListingJSON)
	})

	builds, err := c.LatestBuilds(context.Background(),
		ProductSpec{Product: "houdini", Platform: "linux"},
		FilterBy(BuildFilter{"status": "good"}))
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, "445", builds[0].Build)
}

func TestLatestBuildsBadFilterKey(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, buildsListingJSON)
	})

	_, err := c.LatestBuilds(context.Background(),
		ProductSpec{Product: "houdini", Platform: "linux"},
		FilterBy(BuildFilter{"colour": "blue"}))
	assert.ErrorIs(t, err, ErrUnknownFilterKey)
}

func TestLatestBuildsInvalidSpec(t *testing.T) {
	var called bool
	c, _ := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		called = true
	})

	_, err := c.LatestBuilds(context.Background(), ProductSpec{Product: "houdini"})

	var fields FieldErrors
	require.ErrorAs(t, err, &fields)
	assert.False(t, called, "an invalid spec must not reach the server")
}

func TestLatestBuild(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, buildsListingJSON)
	})

	build, err := c.LatestBuild(context.Background(), ProductSpec{Product: "houdini", Platform: "linux"})
	require.NoError(t, err)
	assert.Equal(t, "445", build.Build)
}

func TestLatestBuildEmpty(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[]`)
	})

	build, err := c.LatestBuild(context.Background(), ProductSpec{Product: "houdini", Platform: "linux"})
	assert.Nil(t, build)
	assert.ErrorIs(t, err, ErrNoBuilds)
}

func TestLatestBuildFilteredToEmpty(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, buildsListingJSON)
	})

	_, err := c.LatestBuild(context.Background(),
		ProductSpec{Product: "houdini", Platform: "linux"},
		FilterBy(BuildFilter{"status": "excellent"}))
	assert.ErrorIs(t, err, ErrNoBuilds)
}

func TestBuildDownload(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		command, kwargs := decodeEnvelope(t, r)
		assert.Equal(t, "download.get_daily_build_download", command)
		assert.Equal(t, map[string]any{
			"product":  "houdini",
			"platform": "linux",
			"version":  "20.5",
			"build":    "445",
		}, kwargs)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"download_url":"https://example.com/houdini-20.5.445.tar.gz?sig=abc",
			"filename":"houdini-20.5.445-linux_x86_64_gcc11.2.tar.gz",
			"hash":"0f343b0931126a20f133d67c2b018a3b",
			"date":"2025/07/01",
			"releases_list":"gold",
			"status":"good",
			"size":2147483648
		}`)
	})

	dl, err := c.BuildDownload(context.Background(), BuildSpec{
		Product:  "houdini",
		Platform: "linux",
		Version:  "20.5",
		Build:    "445",
	})
	require.NoError(t, err)
	assert.Equal(t, "houdini-20.5.445-linux_x86_64_gcc11.2.tar.gz", dl.Filename)
	assert.Equal(t, "0f343b0931126a20f133d67c2b018a3b", dl.Hash)
	assert.Equal(t, int64(2147483648), dl.Size)
}

func TestBuildDownloadOmitsEmptySelectors(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, kwargs := decodeEnvelope(t, r)
		assert.NotContains(t, kwargs, "version")
		assert.NotContains(t, kwargs, "build")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"download_url":"https://example.com/x","filename":"x","hash":"","size":1}`)
	})

	_, err := c.BuildDownload(context.Background(), BuildSpec{Product: "houdini", Platform: "linux"})
	require.NoError(t, err)
}

func TestBuildDownloadInvalidSpec(t *testing.T) {
	c, _ := newTestClient(t, func(http.ResponseWriter, *http.Request) {})

	_, err := c.BuildDownload(context.Background(), BuildSpec{Platform: "linux"})

	var fields FieldErrors
	require.ErrorAs(t, err, &fields)
	require.Len(t, fields, 1)
	assert.Equal(t, "product", fields[0].Field)
}
