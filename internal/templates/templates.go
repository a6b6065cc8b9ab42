// Package templates ships a catalog of commonly toggled settings.
package templates

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/geto-app/geto/internal/domain"
)

//go:embed templates.yaml
var catalogYAML []byte

// Template is one reusable setting preset.
type Template struct {
	ID            string       `yaml:"id" json:"id"`
	Label         string       `yaml:"label" json:"label"`
	Description   string       `yaml:"description" json:"description"`
	Scope         domain.Scope `yaml:"scope" json:"scope"`
	Key           string       `yaml:"key" json:"key"`
	ValueOnLaunch string       `yaml:"value_on_launch" json:"value_on_launch"`
	ValueOnRevert string       `yaml:"value_on_revert" json:"value_on_revert"`
}

// ToEntry instantiates the template as an enabled entry for pkg.
func (t Template) ToEntry(pkg string) domain.SettingEntry {
	return domain.SettingEntry{
		Enabled:       true,
		Scope:         t.Scope,
		Package:       pkg,
		Label:         t.Label,
		Key:           t.Key,
		ValueOnLaunch: t.ValueOnLaunch,
		ValueOnRevert: t.ValueOnRevert,
	}
}

type catalog struct {
	Templates []Template `yaml:"templates"`
}

var (
	loadOnce sync.Once
	loaded   []Template
	loadErr  error
)

// Load returns the embedded catalog sorted by ID.
func Load() ([]Template, error) {
	loadOnce.Do(func() {
		loaded, loadErr = Parse(catalogYAML)
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return append([]Template(nil), loaded...), nil
}

// Parse decodes and validates a template catalog.
func Parse(data []byte) ([]Template, error) {
	var c catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("templates: decode catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Templates))
	for i, t := range c.Templates {
		if strings.TrimSpace(t.ID) == "" {
			return nil, fmt.Errorf("templates: entry %d: id is required", i)
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("templates: duplicate id %q", t.ID)
		}
		seen[t.ID] = struct{}{}
		if !t.Scope.Valid() {
			return nil, fmt.Errorf("templates: %s: unknown scope %q", t.ID, t.Scope)
		}
		if strings.TrimSpace(t.Key) == "" {
			return nil, fmt.Errorf("templates: %s: key is required", t.ID)
		}
	}

	sort.Slice(c.Templates, func(i, j int) bool { return c.Templates[i].ID < c.Templates[j].ID })
	return c.Templates, nil
}

// Find returns the template with the given id.
func Find(id string) (Template, bool, error) {
	all, err := Load()
	if err != nil {
		return Template{}, false, err
	}
	for _, t := range all {
		if t.ID == id {
			return t, true, nil
		}
	}
	return Template{}, false, nil
}
