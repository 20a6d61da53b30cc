// Package gameconfig reads and updates the game_config.json document the
// overlay application loads at runtime. The pipeline only ever appends to
// it; layout, ordering and fields it does not know about belong to the
// downstream tool and are carried through untouched.
package gameconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Detection tiers. A label name lives in at most one tier; the tier
// decides how prominently the overlay surfaces a detection.
const (
	TierPrimary   = "primaryLabels"
	TierSecondary = "secondaryLabels"
	TierTertiary  = "tertiaryLabels"
)

// DefaultTier is where class names with no tier assignment land.
const DefaultTier = TierPrimary

// Label is one entry of the document's labels collection.
type Label struct {
	Name        string
	Description string
}

// Document is a loaded game_config.json. Fields the pipeline does not
// model are preserved verbatim across a load/save round trip.
type Document struct {
	fields map[string]any
}

// New creates an empty document.
func New() *Document {
	return &Document{fields: make(map[string]any)}
}

// Load reads and parses the document at path. A missing file surfaces
// as fs.ErrNotExist for callers that treat absence as non-fatal.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read game config %s: %w", path, err)
	}

	// UseNumber keeps numeric values exactly as written.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("failed to parse game config %s: %w", path, err)
	}
	return &Document{fields: fields}, nil
}

// Save writes the document atomically: the new content lands in a
// sibling temp file which then replaces the original.
func (d *Document) Save(path string) error {
	data, err := json.MarshalIndent(d.fields, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode game config: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write game config %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace game config %s: %w", path, err)
	}
	return nil
}

// ModelFile returns the model file name the overlay currently points at.
func (d *Document) ModelFile() string {
	name, _ := d.fields["modelFile"].(string)
	return name
}

// SetModelFile points the overlay at a new model file.
func (d *Document) SetModelFile(name string) {
	d.fields["modelFile"] = name
}

// Labels returns the document's label entries in document order.
func (d *Document) Labels() []Label {
	raw, _ := d.fields["labels"].([]any)
	out := make([]Label, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		desc, _ := entry["description"].(string)
		out = append(out, Label{Name: name, Description: desc})
	}
	return out
}

// Tier returns the class names assigned to the given tier, in document
// order.
func (d *Document) Tier(tier string) []string {
	raw, _ := d.fields[tier].([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if name, ok := item.(string); ok {
			out = append(out, name)
		}
	}
	return out
}

// MergeClasses folds the trained class list into the document. Classes
// missing from labels are appended with an empty description; classes
// assigned to no tier are appended to the default tier. Nothing is ever
// removed, renamed or reordered, so merging the same classes again is a
// no-op. Returns the names newly added to labels.
func (d *Document) MergeClasses(classes []string) []string {
	known := make(map[string]bool)
	for _, label := range d.Labels() {
		known[label.Name] = true
	}
	tiered := make(map[string]bool)
	for _, tier := range []string{TierPrimary, TierSecondary, TierTertiary} {
		for _, name := range d.Tier(tier) {
			tiered[name] = true
		}
	}

	labels, _ := d.fields["labels"].([]any)
	defaultTier, _ := d.fields[DefaultTier].([]any)

	var added []string
	for _, class := range classes {
		if !known[class] {
			labels = append(labels, map[string]any{"name": class, "description": ""})
			known[class] = true
			added = append(added, class)
		}
		if !tiered[class] {
			defaultTier = append(defaultTier, class)
			tiered[class] = true
		}
	}

	d.fields["labels"] = labels
	d.fields[DefaultTier] = defaultTier
	return added
}
