package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/lmsfoundry/scormhost/content"
	"github.com/lmsfoundry/scormhost/fetch"
	"github.com/lmsfoundry/scormhost/log"
	"github.com/lmsfoundry/scormhost/metrics"
	"github.com/lmsfoundry/scormhost/types"
)

// InspectResponse is the response for the inspect command.
type InspectResponse struct {
	Ref           string `json:"ref"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	SchemaVersion string `json:"schema_version"`
	EntryPoint    string `json:"entry_point,omitempty"`
	Fallback      bool   `json:"fallback"`
	Root          string `json:"root,omitempty"`
}

// InspectCommand returns the inspect command. It runs the ingestion
// pipeline once against a package reference and reports what was
// resolved, without serving anything.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Resolve a package reference and show its manifest and entry point",
		ArgsUsage: "<package-ref>",
		Flags: []cli.Flag{
			ConfigFlag,
			&cli.StringFlag{
				Name:  "scratch-dir",
				Usage: "Directory for the extracted package tree (default: temp dir)",
			},
			&cli.BoolFlag{
				Name:  "keep",
				Usage: "Keep the extracted tree instead of deleting it",
			},
		},
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	ref := c.Args().First()
	if ref == "" {
		return cli.Exit("inspect requires a package reference argument", 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	scratch := c.String("scratch-dir")
	if scratch == "" {
		scratch = cfg.ScratchDir
	}
	if scratch == "" {
		scratch, err = os.MkdirTemp("", "scormhost-inspect-")
		if err != nil {
			return fmt.Errorf("create scratch directory: %w", err)
		}
		if !c.Bool("keep") {
			defer func() { _ = os.RemoveAll(scratch) }()
		}
	}

	// Inspection output goes to stdout; pipeline logs would pollute it.
	logger := log.NewLogger("inspect").WithOutput(io.Discard)

	fetcher := fetch.New(fetch.Config{
		Timeout:         cfg.Fetch.Timeout.Duration,
		MaxArchiveBytes: cfg.Fetch.MaxArchiveBytes,
		S3: fetch.S3Config{
			Region:       cfg.Fetch.S3.Region,
			Endpoint:     cfg.Fetch.S3.Endpoint,
			UsePathStyle: cfg.Fetch.S3.PathStyle,
		},
	}, logger)

	cache, err := content.NewCache(content.CacheConfig{
		ScratchDir:      scratch,
		PipelineTimeout: cfg.Cache.PipelineTimeout.Duration,
	}, fetcher, logger, metrics.NewCollector())
	if err != nil {
		return err
	}
	if !c.Bool("keep") {
		defer func() { _ = cache.Close() }()
	}

	pkg := cache.Resolve(c.Context, types.PackageRef(ref))

	resp := InspectResponse{
		Ref:           string(pkg.Ref),
		Title:         pkg.Manifest.Title,
		Description:   pkg.Manifest.Description,
		SchemaVersion: pkg.Manifest.SchemaVersion,
		EntryPoint:    pkg.EntryPoint,
		Fallback:      pkg.Fallback,
	}
	if c.Bool("keep") {
		resp.Root = pkg.Root
		// Resolve to an absolute path so the output is usable from
		// any working directory.
		if abs, err := filepath.Abs(pkg.Root); err == nil {
			resp.Root = abs
		}
	}

	return printJSON(resp)
}
