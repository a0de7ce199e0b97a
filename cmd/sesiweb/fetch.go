package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/aaronsmithtv/sesiweb"
	"github.com/aaronsmithtv/sesiweb/internal/buildcache"
)

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download a build installer and record it in the manifest",
		Long: `Download a build installer, verify its size and MD5 digest, and record
the file in the local download manifest.

Without --version and --build the newest matching production build is
fetched. A build whose digest is already in the manifest with its file
still on disk is skipped unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: runFetch,
	}

	cmd.Flags().String("product", "houdini", "product to fetch (e.g. houdini, houdini-py39)")
	cmd.Flags().String("platform", "linux", "platform to fetch")
	cmd.Flags().String("version", "", "major.minor version to fetch (defaults to newest)")
	cmd.Flags().String("build", "", "build number to fetch (defaults to newest)")
	cmd.Flags().Bool("daily", false, "resolve against daily builds, not just production ones")
	cmd.Flags().String("dir", "", "directory to download into (defaults to download.dir)")
	cmd.Flags().Bool("force", false, "re-download even when the manifest already has this build")

	return cmd
}

func runFetch(cmd *cobra.Command, args []string) error {
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

	version, err := cmd.Flags().GetString("version")
	if err != nil {
		return err
	}

	build, err := cmd.Flags().GetString("build")
	if err != nil {
		return err
	}

	daily, err := cmd.Flags().GetBool("daily")
	if err != nil {
		return err
	}

	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if dir == "" {
		dir = resolvedCfg.Download.Dir
	}

	store, err := openManifest(ctx, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := newAPIClient(ctx, logger)
	if err != nil {
		return err
	}

	spec, err := resolveSpec(ctx, client, product, platform, version, build, daily)
	if err != nil {
		return fmt.Errorf("resolving %s build for %s: %w", product, platform, err)
	}

	logger.Debug("fetch",
		"product", spec.Product, "platform", spec.Platform,
		"version", spec.Version, "build", spec.Build)

	dl, err := client.BuildDownload(ctx, spec)
	if err != nil {
		return fmt.Errorf("requesting download for %s-%s.%s: %w", spec.Product, spec.Version, spec.Build, err)
	}

	// Skip only when the recorded digest matches this download and the file
	// is still on disk; a rebuilt installer under the same number re-fetches.
	if !force {
		prior, err := store.Lookup(ctx, spec.Product, spec.Platform, spec.Version, spec.Build)
		if err != nil {
			return err
		}

		if prior != nil && prior.Hash == dl.Hash {
			if _, statErr := os.Stat(prior.Path); statErr == nil {
				if flagJSON {
					return printFetchJSON(prior, false)
				}

				statusf("Already fetched %s (use --force to re-download)\n", prior.Path)

				return nil
			}

			logger.Debug("manifest entry has no file, fetching again", "path", prior.Path)
		}
	}

	destPath, err := filepath.Abs(filepath.Join(dir, dl.Filename))
	if err != nil {
		return fmt.Errorf("resolving download path: %w", err)
	}

	statusf("Fetching %s (%s)...\n", dl.Filename, formatSize(dl.Size))

	if err := client.SaveBuild(ctx, dl, destPath); err != nil {
		return fmt.Errorf("downloading %s: %w", dl.Filename, err)
	}

	entry := &buildcache.Entry{
		Product:   spec.Product,
		Platform:  spec.Platform,
		Version:   spec.Version,
		Build:     spec.Build,
		Filename:  dl.Filename,
		Hash:      dl.Hash,
		Size:      dl.Size,
		Path:      destPath,
		FetchedAt: time.Now().UTC(),
	}

	if err := store.Record(ctx, entry); err != nil {
		return fmt.Errorf("recording download: %w", err)
	}

	if flagJSON {
		return printFetchJSON(entry, true)
	}

	statusf("Fetched %s (%s)\n", destPath, formatSize(dl.Size))

	return nil
}

// resolveSpec pins the exact build to fetch. Explicit --version and --build
// together skip the listing round trip; otherwise the newest listing entry
// matching the given selectors wins, so the manifest always records a
// concrete version and build number.
func resolveSpec(ctx context.Context, client *sesiweb.Client, product, platform, version, build string, daily bool) (sesiweb.BuildSpec, error) {
	spec := sesiweb.BuildSpec{
		Product:  product,
		Platform: platform,
		Version:  version,
		Build:    build,
	}

	if version != "" && build != "" {
		return spec, nil
	}

	filter := sesiweb.BuildFilter{}
	if version != "" {
		filter["version"] = version
	}
	if build != "" {
		filter["build"] = build
	}

	opts := []sesiweb.ListOption{sesiweb.OnlyProduction(!daily)}
	if len(filter) > 0 {
		opts = append(opts, sesiweb.FilterBy(filter))
	}

	latest, err := client.LatestBuild(ctx, sesiweb.ProductSpec{Product: product, Platform: platform}, opts...)
	if err != nil {
		return sesiweb.BuildSpec{}, err
	}

	spec.Version = latest.Version
	spec.Build = latest.Build

	return spec, nil
}

// openManifest opens the download manifest at its configured location.
func openManifest(ctx context.Context, logger *slog.Logger) (*buildcache.Store, error) {
	path := resolvedCfg.ManifestPath()
	if path == "" {
		return nil, fmt.Errorf("cannot determine manifest path")
	}

	return buildcache.Open(ctx, path, logger)
}

// fetchJSONOutput is the JSON output schema for the fetch command.
type fetchJSONOutput struct {
	Product   string `json:"product"`
	Platform  string `json:"platform"`
	Version   string `json:"version"`
	Build     string `json:"build"`
	Filename  string `json:"filename"`
	Hash      string `json:"hash"`
	Size      int64  `json:"size"`
	Path      string `json:"path"`
	FetchedAt string `json:"fetched_at"`
	Fetched   bool   `json:"fetched"`
}

func printFetchJSON(e *buildcache.Entry, fetched bool) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(fetchJSONOutput{
		Product:   e.Product,
		Platform:  e.Platform,
		Version:   e.Version,
		Build:     e.Build,
		Filename:  e.Filename,
		Hash:      e.Hash,
		Size:      e.Size,
		Path:      e.Path,
		FetchedAt: e.FetchedAt.UTC().Format(time.RFC3339),
		Fetched:   fetched,
	})
}
