package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lmsfoundry/scormhost/types"
)

const fullDescriptor = `<?xml version="1.0"?>
<manifest identifier="course-1" xmlns="http://www.imsproject.org/xsd/imscp_rootv1p1p2">
  <metadata>
    <schemaversion>1.2</schemaversion>
  </metadata>
  <organizations default="ORG-1">
    <organization identifier="ORG-1">
      <title>Workplace Safety Basics</title>
      <description>Mandatory annual training.</description>
      <item identifier="ITEM-1" identifierref="RES-1">
        <title>Module 1</title>
      </item>
    </organization>
  </organizations>
  <resources>
    <resource identifier="RES-1" type="webcontent" adlcp:scormtype="sco" href="content/launch.html" xmlns:adlcp="http://www.adlnet.org/xsd/adlcp_rootv1p2"/>
    <resource identifier="RES-2" type="webcontent" href="content/extra.html"/>
  </resources>
</manifest>`

func writeDescriptor(t *testing.T, body string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, DescriptorName), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestParse_FullDescriptor(t *testing.T) {
	root := writeDescriptor(t, fullDescriptor)

	meta := Parse(root)
	if meta.Title != "Workplace Safety Basics" {
		t.Errorf("title: got %q", meta.Title)
	}
	if meta.Description != "Mandatory annual training." {
		t.Errorf("description: got %q", meta.Description)
	}
	if meta.SchemaVersion != "1.2" {
		t.Errorf("schema version: got %q", meta.SchemaVersion)
	}
	if meta.LaunchHref != "content/launch.html" {
		t.Errorf("launch href: got %q", meta.LaunchHref)
	}
}

func TestParse_AbsentDescriptorYieldsDefaults(t *testing.T) {
	meta := Parse(t.TempDir())
	if meta.Title != types.DefaultTitle {
		t.Errorf("expected default title, got %q", meta.Title)
	}
	if meta.SchemaVersion != types.DefaultSchemaVersion {
		t.Errorf("expected default schema version, got %q", meta.SchemaVersion)
	}
	if meta.LaunchHref != "" {
		t.Errorf("expected empty launch href, got %q", meta.LaunchHref)
	}
}

func TestParse_MalformedDescriptorYieldsDefaults(t *testing.T) {
	root := writeDescriptor(t, "<manifest><organizations></manifest>")

	meta := Parse(root)
	if meta.Title != types.DefaultTitle {
		t.Errorf("expected default title, got %q", meta.Title)
	}
}

func TestParse_FieldLevelDefaults(t *testing.T) {
	// Title missing, schema version present: only the title defaults.
	root := writeDescriptor(t, `<manifest>
  <metadata><schemaversion>2004 3rd Edition</schemaversion></metadata>
  <organizations><organization identifier="ORG-1"></organization></organizations>
  <resources><resource identifier="RES-1" href="index.html"/></resources>
</manifest>`)

	meta := Parse(root)
	if meta.Title != types.DefaultTitle {
		t.Errorf("expected default title, got %q", meta.Title)
	}
	if meta.SchemaVersion != "2004 3rd Edition" {
		t.Errorf("schema version: got %q", meta.SchemaVersion)
	}
	if meta.LaunchHref != "index.html" {
		t.Errorf("launch href: got %q", meta.LaunchHref)
	}
}

func TestParse_FirstResourceFallbackWhenNoItemRef(t *testing.T) {
	root := writeDescriptor(t, `<manifest>
  <organizations><organization identifier="ORG-1"><title>T</title></organization></organizations>
  <resources>
    <resource identifier="RES-1" href="a.html"/>
    <resource identifier="RES-2" href="b.html"/>
  </resources>
</manifest>`)

	meta := Parse(root)
	if meta.LaunchHref != "a.html" {
		t.Errorf("expected first resource href, got %q", meta.LaunchHref)
	}
}

func TestResolveEntryPoint_DeclaredWins(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, "content/launch.html")
	mustWrite(t, root, "index.html")

	got, err := ResolveEntryPoint(root, "content/launch.html")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "content/launch.html" {
		t.Errorf("expected declared path, got %q", got)
	}
}

func TestResolveEntryPoint_DeclaredMissingFallsBack(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, "index.html")

	got, err := ResolveEntryPoint(root, "content/gone.html")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "index.html" {
		t.Errorf("expected index.html fallback, got %q", got)
	}
}

func TestResolveEntryPoint_ConventionalOrder(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, "start.html")
	mustWrite(t, root, "launch.html")

	got, err := ResolveEntryPoint(root, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "start.html" {
		t.Errorf("start.html precedes launch.html in the search order, got %q", got)
	}
}

func TestResolveEntryPoint_QueryStringStripped(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, "index.html")

	got, err := ResolveEntryPoint(root, "index.html?lang=en")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "index.html" {
		t.Errorf("expected index.html, got %q", got)
	}
}

func TestResolveEntryPoint_NothingFound(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, "readme.txt")

	_, err := ResolveEntryPoint(root, "")
	if err != ErrNoEntryPoint {
		t.Errorf("expected ErrNoEntryPoint, got %v", err)
	}
}

func TestResolveEntryPoint_DeclaredEscapeIgnored(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, "index.html")

	got, err := ResolveEntryPoint(root, "../outside.html")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "index.html" {
		t.Errorf("escaping declared path must fall through to conventions, got %q", got)
	}
}

func mustWrite(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}
}
