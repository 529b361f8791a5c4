package main

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"leetee/internal/content"
	"leetee/internal/sections"
)

var (
	validateDir string
	validateURL string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check episode content for schema problems and unknown section types",
	Long: `Loads the built-in episodes plus any directory or URL given, and reports
every episode that fails validation or uses a section type without a
renderer. Exits non-zero when anything is wrong.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateDir, "content", "", "Episode directory (default: CONTENT_DIR)")
	validateCmd.Flags().StringVar(&validateURL, "url", "", "Episode base URL (default: CONTENT_URL)")
}

var errContentInvalid = errors.New("content has problems")

func runValidate(cmd *cobra.Command, args []string) error {
	dir, url := validateDir, validateURL
	if dir == "" {
		dir = cfg.ContentDir
	}
	if url == "" {
		url = cfg.ContentURL
	}

	sources := []content.Source{content.Embedded()}
	if dir != "" {
		sources = append(sources, content.NewFSSource(dir, os.DirFS(dir)))
	}
	if url != "" {
		sources = append(sources, content.NewHTTPSource(url, nil))
	}

	catalog := content.NewCatalog(log, sources...)
	report, err := catalog.Load(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	bad := false
	for _, name := range slices.Sorted(maps.Keys(report.Failed)) {
		fmt.Fprintf(out, "SOURCE %s: %v\n", name, report.Failed[name])
		bad = true
	}
	for _, id := range slices.Sorted(maps.Keys(report.Invalid)) {
		fmt.Fprintf(out, "INVALID %s: %v\n", id, report.Invalid[id])
		bad = true
	}

	registry, err := sections.NewRegistry(log)
	if err != nil {
		return err
	}
	if err := registry.Validate(catalog.Episodes()...); err != nil {
		for _, e := range unwrapJoined(err) {
			fmt.Fprintf(out, "UNKNOWN %v\n", e)
		}
		bad = true
	}

	for _, id := range report.Loaded {
		fmt.Fprintf(out, "OK %s\n", id)
	}
	if bad {
		return errContentInvalid
	}
	return nil
}

func unwrapJoined(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
