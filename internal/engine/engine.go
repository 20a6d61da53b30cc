package engine

import (
	"context"
	"fmt"
	"time"
)

// TrainSpec describes one training invocation. Params pass through to
// the engine as-is; the named fields override any matching param keys.
type TrainSpec struct {
	// Model is the checkpoint training starts from
	Model string

	// Data is the dataset manifest path
	Data string

	// Project and RunName locate the engine's run directory
	Project string
	RunName string

	// Resume re-enters the run from its last checkpoint
	Resume bool

	// Params is the hyperparameter bag
	Params map[string]any
}

// TrainOutcome reports where a finished run left its weights.
type TrainOutcome struct {
	WeightsDir string
	BestPath   string
	LastPath   string
	Duration   time.Duration
}

// ExportSpec describes one export invocation.
type ExportSpec struct {
	// Weights is the trained checkpoint to convert
	Weights string

	// ImageSize is the input resolution baked into the exported model
	ImageSize int

	// Params is the export parameter bag (format, opset, ...)
	Params map[string]any
}

// Engine is the model training/export boundary. Implementations run the
// actual model toolchain; the pipeline only sequences and supervises.
type Engine interface {
	// Train runs a full training pass and reports the weight locations
	Train(ctx context.Context, spec TrainSpec) (TrainOutcome, error)

	// Export converts trained weights into a deployable model file and
	// returns the produced file's path
	Export(ctx context.Context, spec ExportSpec) (string, error)
}

// EngineError wraps a failed engine invocation with the command that ran.
type EngineError struct {
	Command string
	Err     error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("model engine command failed: %s: %v", e.Command, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
