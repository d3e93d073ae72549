// Package manifest recovers package metadata and resolves the launch
// entry point of an extracted course package.
//
// The descriptor is imsmanifest.xml at the extraction root. Its absence
// is expected for some packages and is never an error: every metadata
// field falls back to a fixed default independently, so a descriptor
// missing its title still contributes its schema version.
package manifest

import (
	"encoding/xml"
	"os"
	"path/filepath"

	"github.com/lmsfoundry/scormhost/types"
)

// DescriptorName is the well-known descriptor filename at the
// extraction root.
const DescriptorName = "imsmanifest.xml"

// xmlManifest mirrors the subset of the descriptor schema we consume.
// Unknown elements are ignored by encoding/xml, which is exactly the
// tolerance the pipeline needs.
type xmlManifest struct {
	XMLName  xml.Name `xml:"manifest"`
	Metadata struct {
		SchemaVersion string `xml:"schemaversion"`
	} `xml:"metadata"`
	Organizations struct {
		Default       string            `xml:"default,attr"`
		Organizations []xmlOrganization `xml:"organization"`
	} `xml:"organizations"`
	Resources struct {
		Resources []xmlResource `xml:"resource"`
	} `xml:"resources"`
}

type xmlOrganization struct {
	Identifier  string    `xml:"identifier,attr"`
	Title       string    `xml:"title"`
	Description string    `xml:"description"`
	Items       []xmlItem `xml:"item"`
}

type xmlItem struct {
	IdentifierRef string    `xml:"identifierref,attr"`
	Title         string    `xml:"title"`
	Items         []xmlItem `xml:"item"`
}

type xmlResource struct {
	Identifier string `xml:"identifier,attr"`
	Href       string `xml:"href,attr"`
}

// Parse reads the descriptor under root and returns best-effort
// metadata. Absent or unparsable descriptors yield pure defaults; a
// parsable descriptor with missing optional elements yields defaults
// for exactly those fields.
func Parse(root string) types.ManifestMeta {
	meta := types.ManifestMeta{
		Title:         types.DefaultTitle,
		Description:   types.DefaultDescription,
		SchemaVersion: types.DefaultSchemaVersion,
	}

	data, err := os.ReadFile(filepath.Join(root, DescriptorName))
	if err != nil {
		return meta
	}

	var m xmlManifest
	if err := xml.Unmarshal(data, &m); err != nil {
		return meta
	}

	org := defaultOrganization(&m)
	if org != nil && org.Title != "" {
		meta.Title = org.Title
	}
	if org != nil && org.Description != "" {
		meta.Description = org.Description
	}
	if m.Metadata.SchemaVersion != "" {
		meta.SchemaVersion = m.Metadata.SchemaVersion
	}
	meta.LaunchHref = launchHref(&m, org)

	return meta
}

// defaultOrganization picks the organization named by the default
// attribute, falling back to the first one declared.
func defaultOrganization(m *xmlManifest) *xmlOrganization {
	orgs := m.Organizations.Organizations
	if len(orgs) == 0 {
		return nil
	}
	if id := m.Organizations.Default; id != "" {
		for i := range orgs {
			if orgs[i].Identifier == id {
				return &orgs[i]
			}
		}
	}
	return &orgs[0]
}

// launchHref resolves the declared entry point: the resource referenced
// by the default organization's first launchable item, or failing that
// the first resource carrying an href at all.
func launchHref(m *xmlManifest, org *xmlOrganization) string {
	byID := make(map[string]string, len(m.Resources.Resources))
	for _, r := range m.Resources.Resources {
		if r.Identifier != "" && r.Href != "" {
			byID[r.Identifier] = r.Href
		}
	}

	if org != nil {
		if href := itemLaunch(org.Items, byID); href != "" {
			return href
		}
	}

	for _, r := range m.Resources.Resources {
		if r.Href != "" {
			return r.Href
		}
	}
	return ""
}

// itemLaunch walks items depth-first for the first identifierref that
// resolves to a resource with an href.
func itemLaunch(items []xmlItem, byID map[string]string) string {
	for _, item := range items {
		if href, ok := byID[item.IdentifierRef]; ok {
			return href
		}
		if href := itemLaunch(item.Items, byID); href != "" {
			return href
		}
	}
	return ""
}
