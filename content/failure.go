package content

import (
	"errors"
	"html/template"
	"os"
	"path/filepath"

	"github.com/lmsfoundry/scormhost/archive"
	"github.com/lmsfoundry/scormhost/fetch"
	"github.com/lmsfoundry/scormhost/iox"
	"github.com/lmsfoundry/scormhost/manifest"
	"github.com/lmsfoundry/scormhost/types"
)

// FailureEntryName is the synthesized diagnostic document of a fallback
// failure package, written at the extraction root so the entry-point
// invariant (resolved path exists on disk) holds for failures too.
const FailureEntryName = "error.html"

// diagnosticTemplate renders the learner-facing failure page. Kept
// deliberately plain: it must render even when everything else about
// the package went wrong.
var diagnosticTemplate = template.Must(template.New("diagnostic").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Course unavailable</title></head>
<body>
<h1>This course could not be loaded</h1>
<p>{{.Class}}</p>
<p>Package: <code>{{.Ref}}</code></p>
<p><small>{{.Detail}}</small></p>
</body>
</html>
`))

type diagnosticData struct {
	Class  string
	Ref    string
	Detail string
}

// fallback synthesizes the degenerate package for a failed pipeline:
// a diagnostic entry-point document under root and metadata carrying
// the failure message. The failure is logged here, then absorbed; the
// caller of Resolve sees a servable package, never the error.
func (c *Cache) fallback(ref types.PackageRef, root string, cause error) *types.ExtractedPackage {
	c.logger.Warn("pipeline failed, synthesizing fallback package", map[string]any{
		"ref":   string(ref),
		"class": failureClass(cause),
		"error": cause.Error(),
	})

	pkg := &types.ExtractedPackage{
		Ref: ref,
		Manifest: types.ManifestMeta{
			Title:         types.FailureTitle,
			Description:   cause.Error(),
			SchemaVersion: types.DefaultSchemaVersion,
		},
		Fallback: true,
	}

	if err := writeDiagnostic(root, ref, cause); err != nil {
		// Scratch storage itself is failing. Leave Root empty; the
		// document synthesizer renders its built-in page instead.
		c.logger.Error("diagnostic document write failed", map[string]any{
			"ref":   string(ref),
			"error": err.Error(),
		})
		return pkg
	}

	pkg.Root = root
	pkg.EntryPoint = FailureEntryName
	return pkg
}

func writeDiagnostic(root string, ref types.PackageRef, cause error) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(root, FailureEntryName))
	if err != nil {
		return err
	}
	defer iox.DiscardClose(f)

	return diagnosticTemplate.Execute(f, diagnosticData{
		Class:  failureClass(cause),
		Ref:    string(ref),
		Detail: cause.Error(),
	})
}

// failureClass maps a pipeline error to the learner-facing explanation.
func failureClass(err error) string {
	switch {
	case errors.Is(err, fetch.ErrTimeout):
		return "The course package took too long to download."
	case errors.Is(err, fetch.ErrRemoteStatus), errors.Is(err, fetch.ErrNetwork), errors.Is(err, fetch.ErrUnsupportedScheme):
		return "The course package could not be downloaded."
	case errors.Is(err, archive.ErrPathTraversal):
		return "The course package was rejected for containing unsafe file paths."
	case errors.Is(err, archive.ErrCorruptArchive), errors.Is(err, archive.ErrTooLarge), errors.Is(err, archive.ErrEntryWrite):
		return "The course package could not be unpacked."
	case errors.Is(err, manifest.ErrNoEntryPoint):
		return "The course package has no launchable content."
	default:
		return "The course package could not be prepared."
	}
}
