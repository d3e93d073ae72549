package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/lmsfoundry/scormhost/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// VersionCommand returns the version command. It must not touch the
// network or the scratch volume.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(_ *cli.Context) error {
		return printJSON(VersionResponse{
			Version: types.Version,
			Commit:  commit,
		})
	}
}
