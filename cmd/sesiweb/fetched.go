package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aaronsmithtv/sesiweb/internal/buildcache"
)

func newFetchedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetched",
		Short: "List builds recorded in the download manifest",
		Args:  cobra.NoArgs,
		RunE:  runFetched,
	}

	cmd.Flags().Bool("prune", false, "drop manifest entries whose file no longer exists")

	return cmd
}

func runFetched(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := buildLogger()

	prune, err := cmd.Flags().GetBool("prune")
	if err != nil {
		return err
	}

	store, err := openManifest(ctx, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(ctx)
	if err != nil {
		return err
	}

	if prune {
		entries, err = pruneEntries(ctx, store, entries)
		if err != nil {
			return err
		}
	}

	if flagJSON {
		return printFetchedJSON(entries)
	}

	if len(entries) == 0 {
		statusf("No fetched builds.\n")
		return nil
	}

	printFetchedTable(entries)

	return nil
}

// pruneEntries removes manifest entries whose downloaded file has gone
// missing and returns the entries that remain.
func pruneEntries(ctx context.Context, store *buildcache.Store, entries []*buildcache.Entry) ([]*buildcache.Entry, error) {
	kept := entries[:0]

	for _, e := range entries {
		if _, err := os.Stat(e.Path); err == nil {
			kept = append(kept, e)
			continue
		}

		if err := store.Remove(ctx, e.Product, e.Platform, e.Version, e.Build); err != nil {
			return nil, fmt.Errorf("pruning %s: %w", e.Filename, err)
		}

		statusf("Pruned %s (file missing)\n", e.Path)
	}

	return kept, nil
}

// fetchedJSONItem is the JSON output schema for one manifest entry.
type fetchedJSONItem struct {
	Product   string `json:"product"`
	Platform  string `json:"platform"`
	Version   string `json:"version"`
	Build     string `json:"build"`
	Filename  string `json:"filename"`
	Hash      string `json:"hash"`
	Size      int64  `json:"size"`
	Path      string `json:"path"`
	FetchedAt string `json:"fetched_at"`
}

func printFetchedJSON(entries []*buildcache.Entry) error {
	out := make([]fetchedJSONItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, fetchedJSONItem{
			Product:   e.Product,
			Platform:  e.Platform,
			Version:   e.Version,
			Build:     e.Build,
			Filename:  e.Filename,
			Hash:      e.Hash,
			Size:      e.Size,
			Path:      e.Path,
			FetchedAt: e.FetchedAt.UTC().Format(time.RFC3339),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

func printFetchedTable(entries []*buildcache.Entry) {
	headers := []string{"PRODUCT", "PLATFORM", "VERSION", "BUILD", "SIZE", "FETCHED", "PATH"}
	rows := make([][]string, 0, len(entries))

	for _, e := range entries {
		rows = append(rows, []string{
			e.Product,
			e.Platform,
			e.Version,
			e.Build,
			formatSize(e.Size),
			formatTime(e.FetchedAt),
			e.Path,
		})
	}

	printTable(os.Stdout, headers, rows)
}
