package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"lodgeline/internal/blob"
)

// Rule is one compliance obligation.
type Rule struct {
	TaskID      string `json:"task_id" yaml:"task_id"`
	Label       string `json:"label" yaml:"label"`
	Type        string `json:"type" yaml:"type" enum:"upload,confirmation"`
	Frequency   string `json:"frequency" yaml:"frequency"`
	Points      int    `json:"points" yaml:"points"`
	Category    string `json:"category" yaml:"category"`
	InfoPopup   string `json:"info_popup,omitempty" yaml:"info_popup,omitempty"`
	NeedsReport string `json:"needs_report,omitempty" yaml:"needs_report,omitempty"`
}

// Section groups rules, preserving catalog order.
type Section struct {
	Name  string `json:"name" yaml:"name"`
	Tasks []Rule `json:"tasks" yaml:"tasks"`
}

// Catalog is the ordered list of compliance rule sections.
type Catalog struct {
	Sections []Section
}

const (
	// TypeUpload tasks require a periodic document upload.
	TypeUpload = "upload"
	// TypeConfirmation tasks require a periodic human confirmation.
	TypeConfirmation = "confirmation"
)

// Load reads the catalog from path, or the embedded default when path
// is empty. A catalog that cannot be read or parsed is a hard error:
// every downstream component depends on it.
func Load(path string) (Catalog, error) {
	data := []byte(defaultCatalog)
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
		}
	}
	var sections []Section
	if err := yaml.Unmarshal(data, &sections); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	c := Catalog{Sections: sections}
	if err := c.validate(); err != nil {
		return Catalog{}, fmt.Errorf("invalid catalog: %w", err)
	}
	return c, nil
}

func (c Catalog) validate() error {
	if len(c.Sections) == 0 {
		return fmt.Errorf("no sections")
	}
	seen := map[string]bool{}
	for _, s := range c.Sections {
		for _, t := range s.Tasks {
			if t.TaskID == "" {
				return fmt.Errorf("section %s has a task without task_id", s.Name)
			}
			if seen[t.TaskID] {
				return fmt.Errorf("duplicate task_id %s", t.TaskID)
			}
			seen[t.TaskID] = true
			if t.Type != TypeUpload && t.Type != TypeConfirmation {
				return fmt.Errorf("task %s has unknown type %q", t.TaskID, t.Type)
			}
			if t.Label == "" {
				return fmt.Errorf("task %s has no label", t.TaskID)
			}
		}
	}
	return nil
}

// Rules flattens the catalog in section order.
func (c Catalog) Rules() []Rule {
	var out []Rule
	for _, s := range c.Sections {
		out = append(out, s.Tasks...)
	}
	return out
}

// TaskLabels maps every task_id to its display label.
func (c Catalog) TaskLabels() map[string]string {
	labels := map[string]string{}
	for _, r := range c.Rules() {
		labels[r.TaskID] = r.Label
	}
	return labels
}

// Find returns the rule for a task_id.
func (c Catalog) Find(taskID string) (Rule, bool) {
	for _, r := range c.Rules() {
		if r.TaskID == taskID {
			return r, true
		}
	}
	return Rule{}, false
}

// OverrideKey is the blob key holding a hotel-specific catalog.
func OverrideKey(hotelID string) string {
	return "hotels/facilities/" + hotelID + "tasks.json"
}

type overrideFile struct {
	ComplianceData []Section `json:"complianceData"`
}

// ForHotel returns the hotel's catalog override when one is stored,
// falling back to the default catalog when the override is absent or
// unreadable.
func ForHotel(ctx context.Context, store blob.Store, def Catalog, hotelID string) Catalog {
	data, err := store.Get(ctx, OverrideKey(hotelID))
	if err != nil {
		return def
	}
	var f overrideFile
	if err := json.Unmarshal(data, &f); err != nil || len(f.ComplianceData) == 0 {
		return def
	}
	c := Catalog{Sections: f.ComplianceData}
	if err := c.validate(); err != nil {
		return def
	}
	return c
}
