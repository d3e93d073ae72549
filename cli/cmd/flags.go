// Package cmd provides CLI commands for the scormhost binary.
package cmd

import (
	"encoding/json"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/lmsfoundry/scormhost/cli/config"
)

// ConfigFlag points commands at a scormhost.yaml config file.
// CLI flags always override config values.
var ConfigFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to scormhost.yaml config file",
}

// loadConfig loads the config file named by --config, or returns the
// zero config when the flag is absent.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

// printJSON writes indented JSON to stdout. All read-only commands
// report through it.
func printJSON(data any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
