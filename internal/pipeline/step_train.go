package pipeline

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gamesight/training-pipeline/internal/engine"
	"github.com/gamesight/training-pipeline/internal/storage"
)

// TrainStep runs the model engine over the materialized dataset.
type TrainStep struct {
	eng engine.Engine
}

// NewTrainStep creates the train stage.
func NewTrainStep(eng engine.Engine) *TrainStep {
	return &TrainStep{eng: eng}
}

// Name returns the stage name
func (s *TrainStep) Name() string { return "Train" }

// Number returns the stage position
func (s *TrainStep) Number() int { return 3 }

// Execute runs the train stage.
func (s *TrainStep) Execute(sctx *StepContext) *StepResult {
	cfg := sctx.Cfg

	if result := requireFile(cfg.DatasetYAML, "dataset manifest", "run the split step first"); result != nil {
		return result
	}
	if result := requireDir(cfg.TrainImagesDir, "training images", "run the split step first"); result != nil {
		return result
	}
	trainImages, err := storage.CountFiles(cfg.TrainImagesDir, ".jpg", ".png")
	if err != nil {
		return &StepResult{Status: StatusFailed, Err: err}
	}
	if trainImages == 0 {
		return &StepResult{
			Status: StatusFailed,
			Err:    &PreconditionError{Missing: "training images", Path: cfg.TrainImagesDir, Remedy: "run the split step first"},
		}
	}

	// Val count is informational; a missing val dir just reads as zero.
	valImages := 0
	if ok, _ := storage.DirExists(cfg.ValImagesDir); ok {
		if n, err := storage.CountFiles(cfg.ValImagesDir, ".jpg", ".png"); err == nil {
			valImages = n
		}
	}

	model := cfg.BaseModel
	mode := "base"
	switch {
	case cfg.Resume:
		model = filepath.Join(cfg.WeightsDir, "last.pt")
		mode = "resume"
		if result := requireFile(model, "resume checkpoint", "run training once before resuming"); result != nil {
			return result
		}
	case cfg.FineTuneModelPath != "":
		model = cfg.FineTuneModelPath
		mode = "fine-tune"
		if result := requireFile(model, "fine-tune weights", "point --fine-tune-model-path at an exported .pt file"); result != nil {
			return result
		}
	}

	log.Printf("[%s] Training %s from %s (%d train / %d val images, %s mode)",
		sctx.RunID, cfg.RunName(), model, trainImages, valImages, mode)

	outcome, err := s.eng.Train(sctx.Ctx, engine.TrainSpec{
		Model:   model,
		Data:    cfg.DatasetYAML,
		Project: cfg.RunsDir,
		RunName: cfg.RunName(),
		Resume:  cfg.Resume,
		Params:  cfg.Train,
	})
	if err != nil {
		return &StepResult{Status: StatusFailed, Err: err}
	}

	log.Printf("[%s] ✓ Training finished in %s", sctx.RunID, outcome.Duration.Round(time.Second))
	log.Printf("[%s]   best: %s", sctx.RunID, outcome.BestPath)
	log.Printf("[%s]   last: %s", sctx.RunID, outcome.LastPath)

	if cfg.StatsOutputPath != "" {
		stats := trainStats{
			RunID:           sctx.RunID,
			GameID:          cfg.GameID,
			Mode:            mode,
			TrainImages:     trainImages,
			ValImages:       valImages,
			DurationSeconds: outcome.Duration.Seconds(),
			WeightsDir:      outcome.WeightsDir,
			BestWeights:     outcome.BestPath,
			LastWeights:     outcome.LastPath,
		}
		if err := writeTrainStats(cfg.StatsOutputPath, stats); err != nil {
			return &StepResult{Status: StatusFailed, Err: err}
		}
		log.Printf("[%s] ✓ Run stats written to %s", sctx.RunID, cfg.StatsOutputPath)
	}

	return &StepResult{
		Status: StatusSucceeded,
		Detail: fmt.Sprintf("%s mode, %d train images", mode, trainImages),
		Outputs: map[string]any{
			"mode":        mode,
			"weights_dir": outcome.WeightsDir,
			"best":        outcome.BestPath,
			"last":        outcome.LastPath,
		},
	}
}

// trainStats is the machine-readable run summary written for
// automation callers.
type trainStats struct {
	RunID           string  `json:"run_id"`
	GameID          string  `json:"game_id"`
	Mode            string  `json:"mode"`
	TrainImages     int     `json:"train_images"`
	ValImages       int     `json:"val_images"`
	DurationSeconds float64 `json:"duration_seconds"`
	WeightsDir      string  `json:"weights_dir"`
	BestWeights     string  `json:"best_weights"`
	LastWeights     string  `json:"last_weights"`
}

func writeTrainStats(path string, stats trainStats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run stats: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run stats %s: %w", path, err)
	}
	return nil
}
