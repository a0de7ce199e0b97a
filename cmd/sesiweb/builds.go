package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aaronsmithtv/sesiweb"
)

// platformAll fans the listing query out over every known platform.
const platformAll = "all"

// allPlatforms holds every platform identifier the download API serves.
var allPlatforms = []string{"win64", "macos", "macosx_arm64", "linux"}

// maxPlatformQueries caps concurrent listing calls for --platform all.
const maxPlatformQueries = 4

func newBuildsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "builds",
		Short: "List daily builds available for download",
		Long: `List the daily builds available for download, newest first.

By default only production builds are shown. Use --daily to also list
in-development daily builds, and --platform all to query every platform
at once. --filter narrows the listing on any record field, e.g.
--filter status=good --filter release=gold.`,
		Args: cobra.NoArgs,
		RunE: runBuilds,
	}

	cmd.Flags().String("product", "houdini", "product to list (e.g. houdini, houdini-py39)")
	cmd.Flags().String("platform", "linux", `platform to list, or "all" for every platform`)
	cmd.Flags().Bool("daily", false, "include in-development daily builds")
	cmd.Flags().StringArray("filter", nil, "keep only builds matching key=value (repeatable)")
	cmd.Flags().Int("limit", 0, "show at most this many builds per platform (0 = all)")

	return cmd
}

func runBuilds(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := buildLogger()

	product, err := cmd.Flags().GetString("product")
	if err != nil {
		return err
	}

	platform, err := cmd.Flags().GetString("platform")
	if err != nil {
		return err
	}

	daily, err := cmd.Flags().GetBool("daily")
	if err != nil {
		return err
	}

	filterPairs, err := cmd.Flags().GetStringArray("filter")
	if err != nil {
		return err
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	filter, err := parseFilter(filterPairs)
	if err != nil {
		return err
	}

	client, err := newAPIClient(ctx, logger)
	if err != nil {
		return err
	}

	platforms := []string{platform}
	if platform == platformAll {
		platforms = allPlatforms
	}

	opts := []sesiweb.ListOption{sesiweb.OnlyProduction(!daily)}
	if len(filter) > 0 {
		opts = append(opts, sesiweb.FilterBy(filter))
	}

	builds, err := queryPlatforms(ctx, client, product, platforms, limit, opts)
	if err != nil {
		return err
	}

	if flagJSON {
		return printBuildsJSON(builds)
	}

	if len(builds) == 0 {
		statusf("No builds matched.\n")
		return nil
	}

	printBuildsTable(builds)

	return nil
}

// parseFilter converts repeated key=value flags into a build filter. Key
// validity is checked by the filter itself, not here.
func parseFilter(pairs []string) (sesiweb.BuildFilter, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	filter := make(sesiweb.BuildFilter, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --filter %q, want key=value", pair)
		}

		filter[key] = value
	}

	return filter, nil
}

// queryPlatforms fetches the build listing for each platform concurrently
// and returns the combined result in platform order. Each platform's
// listing is capped at limit entries when limit is positive.
func queryPlatforms(ctx context.Context, client *sesiweb.Client, product string, platforms []string, limit int, opts []sesiweb.ListOption) ([]sesiweb.DailyBuild, error) {
	results := make([][]sesiweb.DailyBuild, len(platforms))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPlatformQueries)

	for i, platform := range platforms {
		g.Go(func() error {
			spec := sesiweb.ProductSpec{Product: product, Platform: platform}

			builds, err := client.LatestBuilds(gctx, spec, opts...)
			if err != nil {
				return fmt.Errorf("listing %s builds for %s: %w", product, platform, err)
			}

			if limit > 0 && len(builds) > limit {
				builds = builds[:limit]
			}

			results[i] = builds

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var combined []sesiweb.DailyBuild
	for _, builds := range results {
		combined = append(combined, builds...)
	}

	return combined, nil
}

// buildJSONItem is the JSON output schema for a single build listing entry.
type buildJSONItem struct {
	Product  string `json:"product"`
	Platform string `json:"platform"`
	Version  string `json:"version"`
	Build    string `json:"build"`
	Date     string `json:"date"`
	Release  string `json:"release"`
	Status   string `json:"status"`
}

func printBuildsJSON(builds []sesiweb.DailyBuild) error {
	out := make([]buildJSONItem, 0, len(builds))
	for i := range builds {
		out = append(out, buildJSONItem{
			Product:  builds[i].Product,
			Platform: builds[i].Platform,
			Version:  builds[i].Version,
			Build:    builds[i].Build,
			Date:     builds[i].Date,
			Release:  builds[i].Release,
			Status:   builds[i].Status,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

func printBuildsTable(builds []sesiweb.DailyBuild) {
	headers := []string{"PRODUCT", "PLATFORM", "VERSION", "BUILD", "DATE", "RELEASE", "STATUS"}
	rows := make([][]string, 0, len(builds))

	for i := range builds {
		rows = append(rows, []string{
			builds[i].Product,
			builds[i].Platform,
			builds[i].Version,
			builds[i].Build,
			builds[i].Date,
			builds[i].Release,
			builds[i].Status,
		})
	}

	printTable(os.Stdout, headers, rows)
}
