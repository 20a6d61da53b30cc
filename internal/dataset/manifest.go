package dataset

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// manifestDoc is the dataset description the model engine consumes.
// Train and val are relative to path.
type manifestDoc struct {
	Path  string         `yaml:"path"`
	Train string         `yaml:"train"`
	Val   string         `yaml:"val"`
	Names map[int]string `yaml:"names"`
}

// WriteManifest writes dataset.yaml describing the materialized split.
// Class index order follows the supplied class list.
func (p *Partitioner) WriteManifest(classes []string) error {
	names := make(map[int]string, len(classes))
	for i, name := range classes {
		names[i] = name
	}

	doc := manifestDoc{
		Path:  p.cfg.TrainingDataDir,
		Train: "train/images",
		Val:   "val/images",
		Names: names,
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode dataset manifest: %w", err)
	}
	if err := os.WriteFile(p.cfg.DatasetYAML, data, 0644); err != nil {
		return fmt.Errorf("failed to write dataset manifest %s: %w", p.cfg.DatasetYAML, err)
	}
	return nil
}

// ReadClasses reads the newline-separated class list. Line order is the
// class index order used everywhere downstream.
func ReadClasses(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read class list %s: %w", path, err)
	}

	var classes []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			classes = append(classes, line)
		}
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("class list %s is empty", path)
	}
	return classes, nil
}
