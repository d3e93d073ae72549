// Package types defines the core data model shared across scormhost
// packages. It is a leaf package with no internal dependencies.
package types

// PackageRef is the opaque identifier of a course package: the URL the
// archive is fetched from. It is the extraction cache key and is never
// interpreted beyond scheme dispatch in the fetcher.
type PackageRef string

// Manifest metadata defaults, applied field-by-field when the descriptor
// is absent or missing an optional element.
const (
	DefaultTitle         = "Untitled course"
	DefaultDescription   = ""
	DefaultSchemaVersion = "1.2"
)

// FailureTitle is the manifest title of a fallback failure package.
const FailureTitle = "Course unavailable"

// ManifestMeta holds the best-effort metadata recovered from a package
// descriptor. Any field may carry its default if the descriptor was
// absent or the element unparsable.
type ManifestMeta struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	SchemaVersion string `json:"schema_version"`

	// LaunchHref is the declared entry-point path relative to the
	// extraction root, empty if the descriptor declared none.
	LaunchHref string `json:"launch_href,omitempty"`
}

// ExtractedPackage is the memoized result of the fetch → extract →
// resolve pipeline for one PackageRef. Immutable after creation; the
// extraction cache owns Root exclusively and deletes it on eviction.
type ExtractedPackage struct {
	Ref PackageRef `json:"ref"`

	// Root is the scratch directory the archive was unpacked into.
	Root string `json:"root"`

	Manifest ManifestMeta `json:"manifest"`

	// EntryPoint is the resolved launch file, relative to Root. The
	// resolver verified its existence on disk before returning it.
	EntryPoint string `json:"entry_point"`

	// Fallback marks a synthesized failure package: EntryPoint is a
	// generated diagnostic document, and Manifest carries the failure
	// class in its description.
	Fallback bool `json:"fallback,omitempty"`
}
