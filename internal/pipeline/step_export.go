package pipeline

import (
	"fmt"
	"log"

	"github.com/gamesight/training-pipeline/internal/engine"
	"github.com/gamesight/training-pipeline/internal/export"
)

// ExportStep converts trained weights into deployed, versioned
// artifacts and updates the downstream game config.
type ExportStep struct {
	eng engine.Engine
}

// NewExportStep creates the export stage.
func NewExportStep(eng engine.Engine) *ExportStep {
	return &ExportStep{eng: eng}
}

// Name returns the stage name
func (s *ExportStep) Name() string { return "Export" }

// Number returns the stage position
func (s *ExportStep) Number() int { return 4 }

// Execute shows the export plan, asks for confirmation, then runs the
// exporter.
func (s *ExportStep) Execute(sctx *StepContext) *StepResult {
	cfg := sctx.Cfg

	log.Printf("[%s] Export plan: %d size(s) %v, naming %s_v<version>_<size>",
		sctx.RunID, len(cfg.ExportSizes), cfg.ExportSizes, cfg.ModelName)
	if cfg.NoDeploy {
		log.Printf("[%s]   deploy skipped: exports stay next to the weights", sctx.RunID)
	} else {
		log.Printf("[%s]   deploying to %s", sctx.RunID, cfg.ArtifactsDir)
	}

	if !sctx.Confirm("Proceed with export?", true) {
		return &StepResult{Status: StatusSkipped, Detail: "declined at export plan"}
	}

	artifacts, err := export.New(cfg, s.eng).Run(sctx.Ctx, sctx.RunID)
	if err != nil {
		return &StepResult{Status: StatusFailed, Err: err}
	}

	outputs := map[string]any{"artifacts": len(artifacts)}
	if len(artifacts) > 0 {
		outputs["version"] = artifacts[0].Version
	}
	return &StepResult{
		Status:  StatusSucceeded,
		Detail:  fmt.Sprintf("%d artifact(s)", len(artifacts)),
		Outputs: outputs,
	}
}
