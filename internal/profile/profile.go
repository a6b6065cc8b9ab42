// Package profile encodes setting entries as portable YAML documents.
package profile

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/geto-app/geto/internal/domain"
)

// CurrentVersion is the document version written by Encode.
const CurrentVersion = 1

// Document is the on-disk form of one exported profile.
type Document struct {
	Version int     `yaml:"version"`
	Package string  `yaml:"package"`
	Entries []Entry `yaml:"entries"`
}

// Entry is one setting inside a Document.
type Entry struct {
	Label         string       `yaml:"label,omitempty"`
	Scope         domain.Scope `yaml:"scope"`
	Key           string       `yaml:"key"`
	ValueOnLaunch string       `yaml:"value_on_launch"`
	ValueOnRevert string       `yaml:"value_on_revert"`
	Enabled       bool         `yaml:"enabled"`
	SafeToWrite   bool         `yaml:"safe_to_write,omitempty"`
}

// FromEntries builds a Document for pkg.
func FromEntries(pkg string, entries []domain.SettingEntry) Document {
	doc := Document{Version: CurrentVersion, Package: pkg, Entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		doc.Entries = append(doc.Entries, Entry{
			Label:         e.Label,
			Scope:         e.Scope,
			Key:           e.Key,
			ValueOnLaunch: e.ValueOnLaunch,
			ValueOnRevert: e.ValueOnRevert,
			Enabled:       e.Enabled,
			SafeToWrite:   e.SafeToWrite,
		})
	}
	return doc
}

// SettingEntries converts the document back into unsaved entries. A
// non-empty target overrides the document's package.
func (d Document) SettingEntries(target string) []domain.SettingEntry {
	pkg := strings.TrimSpace(target)
	if pkg == "" {
		pkg = d.Package
	}
	out := make([]domain.SettingEntry, 0, len(d.Entries))
	for _, e := range d.Entries {
		out = append(out, domain.SettingEntry{
			Enabled:       e.Enabled,
			Scope:         e.Scope,
			Package:       pkg,
			Label:         e.Label,
			Key:           e.Key,
			ValueOnLaunch: e.ValueOnLaunch,
			ValueOnRevert: e.ValueOnRevert,
			SafeToWrite:   e.SafeToWrite,
		})
	}
	return out
}

// Encode writes doc as YAML.
func Encode(w io.Writer, doc Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("profile: encode: %w", err)
	}
	return enc.Close()
}

// Decode reads and validates a YAML document.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Document{}, fmt.Errorf("profile: empty document")
		}
		return Document{}, fmt.Errorf("profile: decode: %w", err)
	}
	if doc.Version == 0 {
		doc.Version = CurrentVersion
	}
	if doc.Version > CurrentVersion {
		return Document{}, fmt.Errorf("profile: unsupported version %d", doc.Version)
	}
	if strings.TrimSpace(doc.Package) == "" {
		return Document{}, fmt.Errorf("profile: package is required")
	}
	for i, e := range doc.Entries {
		if !e.Scope.Valid() {
			return Document{}, fmt.Errorf("profile: entry %d: unknown scope %q", i, e.Scope)
		}
		if strings.TrimSpace(e.Key) == "" {
			return Document{}, fmt.Errorf("profile: entry %d: key is required", i)
		}
	}
	return doc, nil
}
