package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoEntryPoint indicates neither the declared launch path nor any
// conventional launch filename exists under the extraction root. This is
// the one unrecoverable failure of the discovery phase: there is nothing
// left to serve.
var ErrNoEntryPoint = errors.New("no entry point found")

// conventionalLaunchFiles is the ordered fallback search list applied
// when the descriptor declares no launch path, or declares one that does
// not exist. Order matters: earlier names win.
var conventionalLaunchFiles = []string{
	"index.html",
	"index.htm",
	"start.html",
	"start.htm",
	"launch.html",
	"launch.htm",
	"course.html",
	"course.htm",
	"main.html",
	"default.html",
	"default.htm",
}

// ResolveEntryPoint returns the launch file relative to root, verified
// to exist on disk. The declared path wins when present; otherwise the
// conventional names are probed in order. Returns ErrNoEntryPoint when
// nothing resolves.
func ResolveEntryPoint(root, declared string) (string, error) {
	if declared != "" {
		if rel, ok := verify(root, declared); ok {
			return rel, nil
		}
	}

	for _, name := range conventionalLaunchFiles {
		if rel, ok := verify(root, name); ok {
			return rel, nil
		}
	}

	return "", ErrNoEntryPoint
}

// verify checks that rel names a regular file under root. Descriptor
// hrefs use forward slashes and may carry query fragments, which are
// stripped before the disk probe.
func verify(root, rel string) (string, bool) {
	cleaned := rel
	if i := strings.IndexAny(cleaned, "?#"); i >= 0 {
		cleaned = cleaned[:i]
	}
	cleaned = filepath.FromSlash(cleaned)
	if !filepath.IsLocal(cleaned) {
		return "", false
	}

	info, err := os.Stat(filepath.Join(root, cleaned))
	if err != nil || info.IsDir() {
		return "", false
	}
	return filepath.ToSlash(cleaned), true
}
