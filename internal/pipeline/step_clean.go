package pipeline

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/gamesight/training-pipeline/internal/storage"
)

// CleanStep removes the previous split so the next partition starts
// from a clean slate. The source images and labels are untouched.
type CleanStep struct{}

// NewCleanStep creates the clean stage.
func NewCleanStep() *CleanStep {
	return &CleanStep{}
}

// Name returns the stage name
func (s *CleanStep) Name() string { return "Clean" }

// Number returns the stage position
func (s *CleanStep) Number() int { return 1 }

// Execute removes the train and val directories.
func (s *CleanStep) Execute(sctx *StepContext) *StepResult {
	trainDir := filepath.Join(sctx.Cfg.TrainingDataDir, "train")
	valDir := filepath.Join(sctx.Cfg.TrainingDataDir, "val")

	total := 0
	for _, dir := range []string{trainDir, valDir} {
		n, err := storage.CountTree(dir)
		if err != nil {
			return &StepResult{Status: StatusFailed, Err: err}
		}
		total += n
	}

	if total == 0 {
		log.Printf("[%s] Nothing to clean", sctx.RunID)
		return &StepResult{Status: StatusSucceeded, Detail: "nothing to clean"}
	}

	for _, dir := range []string{trainDir, valDir} {
		if err := os.RemoveAll(dir); err != nil {
			return &StepResult{
				Status: StatusFailed,
				Err:    fmt.Errorf("failed to remove %s: %w", dir, err),
			}
		}
	}

	log.Printf("[%s] ✓ Removed previous split (%d files)", sctx.RunID, total)
	return &StepResult{
		Status: StatusSucceeded,
		Detail: fmt.Sprintf("removed %d files", total),
		Outputs: map[string]any{
			"removed_files": total,
		},
	}
}
