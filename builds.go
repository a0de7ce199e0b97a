package sesiweb

import (
	"context"
	"log/slog"
)

// Download-service command names.
const (
	cmdDailyBuildsList    = "download.get_daily_builds_list"
	cmdDailyBuildDownload = "download.get_daily_build_download"
)

type listOptions struct {
	onlyProduction bool
	filter         BuildFilter
}

// ListOption adjusts a latest-builds query.
type ListOption func(*listOptions)

// OnlyProduction limits the listing to production builds when true, the
// default, or includes daily development builds when false.
func OnlyProduction(v bool) ListOption {
	return func(o *listOptions) { o.onlyProduction = v }
}

// FilterBy drops listing entries that do not match every filter pair. The
// filtering happens client-side, after the server answers.
func FilterBy(f BuildFilter) ListOption {
	return func(o *listOptions) { o.filter = f }
}

// buildsListRequest is the kwargs record for download.get_daily_builds_list.
type buildsListRequest struct {
	Product        string `json:"product"`
	Platform       string `json:"platform"`
	OnlyProduction bool   `json:"only_production"`
}

// LatestBuilds lists the newest builds of a product on one platform, most
// recent first, with release and status metadata per entry.
func (c *Client) LatestBuilds(ctx context.Context, spec ProductSpec, opts ...ListOption) ([]DailyBuild, error) {
	settings := listOptions{onlyProduction: true}
	for _, opt := range opts {
		opt(&settings)
	}

	if err := checkRecord(spec); err != nil {
		return nil, err
	}

	c.logger.Info("listing latest builds",
		slog.String("product", spec.Product),
		slog.String("platform", spec.Platform),
		slog.Bool("only_production", settings.onlyProduction))

	req := buildsListRequest{
		Product:        spec.Product,
		Platform:       spec.Platform,
		OnlyProduction: settings.onlyProduction,
	}

	var builds []DailyBuild
	if err := c.Call(ctx, cmdDailyBuildsList, req, &builds); err != nil {
		return nil, err
	}

	if settings.filter != nil {
		var err error
		builds, err = filterBuilds(builds, settings.filter)
		if err != nil {
			return nil, err
		}
	}

	c.logger.Debug("listed builds", slog.Int("count", len(builds)))
	return builds, nil
}

// LatestBuild returns the newest entry of LatestBuilds, or ErrNoBuilds when
// the listing, after filtering, is empty.
func (c *Client) LatestBuild(ctx context.Context, spec ProductSpec, opts ...ListOption) (*DailyBuild, error) {
	builds, err := c.LatestBuilds(ctx, spec, opts...)
	if err != nil {
		return nil, err
	}
	if len(builds) == 0 {
		return nil, ErrNoBuilds
	}
	return &builds[0], nil
}

// BuildDownload resolves the signed download URL, filename, size and MD5
// digest for the build the spec selects. With Version and Build empty the
// server picks the latest build of the product.
func (c *Client) BuildDownload(ctx context.Context, spec BuildSpec) (*BuildDownload, error) {
	if err := checkRecord(spec); err != nil {
		return nil, err
	}

	c.logger.Info("resolving build download",
		slog.String("product", spec.Product),
		slog.String("platform", spec.Platform),
		slog.String("version", spec.Version),
		slog.String("build", spec.Build))

	var dl BuildDownload
	if err := c.Call(ctx, cmdDailyBuildDownload, spec, &dl); err != nil {
		return nil, err
	}

	c.logger.Debug("resolved build download",
		slog.String("filename", dl.Filename),
		slog.Int64("size", dl.Size))
	return &dl, nil
}
