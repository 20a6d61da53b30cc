package dataset

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/gamesight/training-pipeline/internal/config"
)

// Annotation exclusion reasons. Images without a usable annotation are
// reported, never treated as negative examples.
const (
	ReasonMissingAnnotation = "missing annotation"
	ReasonEmptyAnnotation   = "empty annotation"
)

// LabeledImage pairs an image file with its same-stem annotation file.
type LabeledImage struct {
	Stem      string
	ImagePath string
	LabelPath string
}

// Exclusion records an image left out of the split and why.
type Exclusion struct {
	ImagePath string
	Reason    string
}

// SplitManifest is the outcome of one partition pass. Train and Val are
// disjoint and together cover every included image.
type SplitManifest struct {
	Train []LabeledImage
	Val   []LabeledImage
	Ratio float64
	Seed  int64
}

// Partitioner splits the labeled image pool into train and val sets and
// lays the result out on disk.
type Partitioner struct {
	cfg *config.Config
}

// NewPartitioner creates a partitioner for the resolved configuration.
func NewPartitioner(cfg *config.Config) *Partitioner {
	return &Partitioner{cfg: cfg}
}

// Partition enumerates the images directory, filters out images without
// a non-empty annotation, and splits the survivors at floor(n*ratio)
// after a seeded shuffle. The same pool, ratio and seed always produce
// the same partition.
func (p *Partitioner) Partition() (*SplitManifest, []Exclusion, error) {
	entries, err := os.ReadDir(p.cfg.ImagesDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read images directory %s: %w", p.cfg.ImagesDir, err)
	}

	var included []LabeledImage
	var excluded []Exclusion
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".jpg" && ext != ".png" {
			continue
		}

		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		imagePath := filepath.Join(p.cfg.ImagesDir, entry.Name())
		labelPath := filepath.Join(p.cfg.LabelsDir, stem+".txt")

		data, err := os.ReadFile(labelPath)
		if err != nil {
			if os.IsNotExist(err) {
				excluded = append(excluded, Exclusion{ImagePath: imagePath, Reason: ReasonMissingAnnotation})
				continue
			}
			return nil, nil, fmt.Errorf("failed to read annotation %s: %w", labelPath, err)
		}
		if len(bytes.TrimSpace(data)) == 0 {
			excluded = append(excluded, Exclusion{ImagePath: imagePath, Reason: ReasonEmptyAnnotation})
			continue
		}

		included = append(included, LabeledImage{Stem: stem, ImagePath: imagePath, LabelPath: labelPath})
	}

	if len(included) == 0 {
		return nil, excluded, ErrEmptyDataset
	}

	rng := rand.New(rand.NewSource(p.cfg.SplitSeed))
	rng.Shuffle(len(included), func(i, j int) {
		included[i], included[j] = included[j], included[i]
	})

	cut := int(float64(len(included)) * p.cfg.SplitRatio)
	return &SplitManifest{
		Train: included[:cut],
		Val:   included[cut:],
		Ratio: p.cfg.SplitRatio,
		Seed:  p.cfg.SplitSeed,
	}, excluded, nil
}
