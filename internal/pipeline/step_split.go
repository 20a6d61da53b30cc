package pipeline

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/gamesight/training-pipeline/internal/dataset"
)

// SplitStep partitions the labeled image pool into train and val sets,
// lays the result out on disk and writes the dataset manifest.
type SplitStep struct{}

// NewSplitStep creates the split stage.
func NewSplitStep() *SplitStep {
	return &SplitStep{}
}

// Name returns the stage name
func (s *SplitStep) Name() string { return "Split" }

// Number returns the stage position
func (s *SplitStep) Number() int { return 2 }

// Execute runs the split stage.
func (s *SplitStep) Execute(sctx *StepContext) *StepResult {
	cfg := sctx.Cfg

	if result := requireDir(cfg.ImagesDir, "images directory", "capture and label screenshots first"); result != nil {
		return result
	}
	if result := requireDir(cfg.LabelsDir, "labels directory", "capture and label screenshots first"); result != nil {
		return result
	}
	if result := requireFile(cfg.ClassesFile, "class list", "export classes.txt from the labeling tool"); result != nil {
		return result
	}

	classes, err := dataset.ReadClasses(cfg.ClassesFile)
	if err != nil {
		return &StepResult{Status: StatusFailed, Err: err}
	}

	partitioner := dataset.NewPartitioner(cfg)
	manifest, excluded, err := partitioner.Partition()
	if err != nil {
		return &StepResult{Status: StatusFailed, Err: err}
	}

	for _, ex := range excluded {
		log.Printf("[%s] Excluded %s: %s", sctx.RunID, filepath.Base(ex.ImagePath), ex.Reason)
	}
	log.Printf("[%s] Split %d labeled images: %d train / %d val (ratio %.2f, seed %d)",
		sctx.RunID, len(manifest.Train)+len(manifest.Val),
		len(manifest.Train), len(manifest.Val), manifest.Ratio, manifest.Seed)
	if len(manifest.Val) < 5 {
		log.Printf("[%s] Warning: very small validation set (%d images)", sctx.RunID, len(manifest.Val))
	}

	if cfg.AuditImages {
		all := append(append([]dataset.LabeledImage(nil), manifest.Train...), manifest.Val...)
		report := dataset.Audit(all)
		for _, corrupt := range report.Corrupt {
			log.Printf("[%s] Warning: %s failed to decode: %v", sctx.RunID, filepath.Base(corrupt.Path), corrupt.Err)
		}
		if report.Checked > 0 {
			log.Printf("[%s] Audit: %d images decoded, dimensions %dx%d to %dx%d",
				sctx.RunID, report.Checked,
				report.MinWidth, report.MinHeight, report.MaxWidth, report.MaxHeight)
		}
	}

	if err := partitioner.Materialize(manifest); err != nil {
		return &StepResult{Status: StatusFailed, Err: err}
	}
	if err := partitioner.WriteManifest(classes); err != nil {
		return &StepResult{Status: StatusFailed, Err: err}
	}

	log.Printf("[%s] ✓ Dataset written under %s", sctx.RunID, cfg.TrainingDataDir)
	return &StepResult{
		Status: StatusSucceeded,
		Detail: fmt.Sprintf("%d train / %d val", len(manifest.Train), len(manifest.Val)),
		Outputs: map[string]any{
			"train_images": len(manifest.Train),
			"val_images":   len(manifest.Val),
			"excluded":     len(excluded),
		},
	}
}
