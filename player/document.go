// Package player synthesizes the hostable runtime document for an
// extracted course package.
//
// The document embeds the resolved entry-point file verbatim inside a
// minimal frame carrying the course title, and injects the content
// runtime API shim parameterized with the learner and attempt identity.
// Embedded package content is organization-supplied, trusted content:
// it is not transformed or sanitized beyond what keeps the hosting
// document well-formed.
package player

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"html/template"
	"os"
	"path/filepath"

	"github.com/lmsfoundry/scormhost/log"
	"github.com/lmsfoundry/scormhost/types"
)

// runtimeScript is the content runtime API shim bundled at build time,
// so the binary is self-contained.
//
//go:embed runtime.js
var runtimeScript string

// Params identifies the learner attempt a document is rendered for.
type Params struct {
	LearnerID   string
	LearnerName string
	AttemptID   string
}

// shimConfig is the identity block handed to the injected shim.
type shimConfig struct {
	LearnerID   string `json:"learner_id"`
	LearnerName string `json:"learner_name"`
	AttemptID   string `json:"attempt_id"`
	PackageRef  string `json:"package_ref"`
	Version     string `json:"version"`
}

var documentTemplate = template.Must(template.New("player").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<header><h1>{{.Title}}</h1></header>
<script>window.__SCORMHOST__ = {{.Config}};</script>
<script>
{{.Runtime}}
</script>
<main>
{{.Entry}}
</main>
</body>
</html>
`))

type documentData struct {
	Title   string
	Config  template.JS
	Runtime template.JS
	Entry   template.HTML
}

// unreadableEntry replaces the embedded content when the resolved entry
// file vanished between resolution and render (eviction race, manual
// scratch cleanup). Rare enough that a plain message suffices.
const unreadableEntry = `<h2>This course could not be loaded</h2><p>The course content is temporarily unavailable. Please try again.</p>`

// Synthesizer renders runtime documents.
type Synthesizer struct {
	logger *log.Logger
}

// NewSynthesizer creates a document synthesizer.
func NewSynthesizer(logger *log.Logger) *Synthesizer {
	return &Synthesizer{logger: logger}
}

// Render produces the hosting document for pkg and the given attempt
// identity. It never fails: an unreadable entry file degrades to a
// built-in diagnostic body inside an otherwise normal document.
func (s *Synthesizer) Render(pkg *types.ExtractedPackage, p Params) []byte {
	entry := s.entryContent(pkg)

	config, err := json.Marshal(shimConfig{
		LearnerID:   p.LearnerID,
		LearnerName: p.LearnerName,
		AttemptID:   p.AttemptID,
		PackageRef:  string(pkg.Ref),
		Version:     types.Version,
	})
	if err != nil {
		// Marshal of a flat string struct cannot fail; guard anyway.
		config = []byte("{}")
	}

	var buf bytes.Buffer
	err = documentTemplate.Execute(&buf, documentData{
		Title:   pkg.Manifest.Title,
		Config:  template.JS(config),
		Runtime: template.JS(runtimeScript),
		Entry:   template.HTML(entry),
	})
	if err != nil {
		s.logger.Error("document render failed", map[string]any{
			"ref":   string(pkg.Ref),
			"error": err.Error(),
		})
		return []byte(unreadableEntry)
	}
	return buf.Bytes()
}

// entryContent loads the resolved entry-point bytes verbatim.
func (s *Synthesizer) entryContent(pkg *types.ExtractedPackage) []byte {
	if pkg.Root == "" || pkg.EntryPoint == "" {
		return []byte(unreadableEntry)
	}
	data, err := os.ReadFile(filepath.Join(pkg.Root, filepath.FromSlash(pkg.EntryPoint)))
	if err != nil {
		s.logger.Error("entry point unreadable", map[string]any{
			"ref":         string(pkg.Ref),
			"entry_point": pkg.EntryPoint,
			"error":       err.Error(),
		})
		return []byte(unreadableEntry)
	}
	return data
}
