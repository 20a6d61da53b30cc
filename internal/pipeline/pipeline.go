package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/gamesight/training-pipeline/internal/config"
	"github.com/gamesight/training-pipeline/internal/history"
)

// Status is a step's terminal state. A skipped step is not a failure:
// the run moves on to the next stage.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// StepResult contains the result of one step execution.
type StepResult struct {
	Status  Status
	Err     error
	Detail  string
	Outputs map[string]any
}

// StepContext contains context for step execution.
type StepContext struct {
	Ctx     context.Context
	Cfg     *config.Config
	RunID   string
	Confirm ConfirmFunc
}

// Step defines the interface for pipeline stages.
type Step interface {
	// Execute runs the stage
	Execute(sctx *StepContext) *StepResult

	// Name returns the stage name
	Name() string

	// Number returns the stage's 1-based position
	Number() int
}

// StepOutcome is one step's result as reported for the whole run.
type StepOutcome struct {
	Number int
	Name   string
	Status Status
	Detail string
	Err    error
}

// RunReport summarizes a pipeline run.
type RunReport struct {
	RunID    string
	Declined bool
	Outcomes []StepOutcome
}

// Orchestrator executes the registered steps in order, gating each one
// on confirmation and halting the run at the first failure.
type Orchestrator struct {
	cfg     *config.Config
	confirm ConfirmFunc
	ledger  *history.Ledger
	steps   []Step
}

// NewOrchestrator creates an orchestrator. The ledger may be nil; run
// history is then simply not recorded.
func NewOrchestrator(cfg *config.Config, confirm ConfirmFunc, ledger *history.Ledger) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		confirm: confirm,
		ledger:  ledger,
	}
}

// Register appends a step. Steps run in registration order.
func (o *Orchestrator) Register(step Step) {
	o.steps = append(o.steps, step)
}

// Run executes the pipeline starting at the step numbered startAt.
// Earlier steps are the caller's responsibility: their outputs must
// already exist or the entry step fails its preconditions.
func (o *Orchestrator) Run(ctx context.Context, startAt int) (*RunReport, error) {
	entry := o.stepByNumber(startAt)
	if entry == nil {
		return nil, fmt.Errorf("%w: %d (valid: 1-%d)", ErrUnknownStep, startAt, len(o.steps))
	}

	runID := uuid.New().String()
	report := &RunReport{RunID: runID}

	log.Printf("[%s] Training pipeline for %s (%d stages)", runID, o.cfg.GameID, len(o.steps))
	if !o.confirm(fmt.Sprintf("Start the pipeline at step %d (%s)?", startAt, entry.Name()), true) {
		log.Printf("[%s] Run declined", runID)
		report.Declined = true
		return report, nil
	}

	if err := o.ledger.BeginRun(ctx, runID, o.cfg.GameID); err != nil {
		log.Printf("[%s] Warning: run ledger unavailable: %v", runID, err)
	}

	for _, step := range o.steps {
		if step.Number() < startAt {
			continue
		}
		if err := ctx.Err(); err != nil {
			o.finishRun(runID, StatusFailed)
			return report, fmt.Errorf("pipeline interrupted: %w", err)
		}

		log.Printf("[%s] === Step %d: %s ===", runID, step.Number(), step.Name())

		if !o.confirm(fmt.Sprintf("Run step %d (%s)?", step.Number(), step.Name()), true) {
			log.Printf("[%s] Step %d (%s) skipped", runID, step.Number(), step.Name())
			report.Outcomes = append(report.Outcomes, StepOutcome{
				Number: step.Number(),
				Name:   step.Name(),
				Status: StatusSkipped,
				Detail: "declined",
			})
			o.recordStep(ctx, runID, step.Name(), StatusSkipped, "declined")
			continue
		}

		result := step.Execute(&StepContext{
			Ctx:     ctx,
			Cfg:     o.cfg,
			RunID:   runID,
			Confirm: o.confirm,
		})

		report.Outcomes = append(report.Outcomes, StepOutcome{
			Number: step.Number(),
			Name:   step.Name(),
			Status: result.Status,
			Detail: result.Detail,
			Err:    result.Err,
		})

		detail := result.Detail
		if result.Err != nil {
			detail = result.Err.Error()
		}
		o.recordStep(ctx, runID, step.Name(), result.Status, detail)

		if result.Status == StatusFailed {
			err := result.Err
			if err == nil {
				err = ErrStepFailed
			}
			log.Printf("[%s] Step %d (%s) failed: %v", runID, step.Number(), step.Name(), err)
			o.finishRun(runID, StatusFailed)
			return report, fmt.Errorf("step %d (%s) failed: %w", step.Number(), step.Name(), err)
		}
		log.Printf("[%s] ✓ Step %d (%s) %s", runID, step.Number(), step.Name(), result.Status)
	}

	o.finishRun(runID, StatusSucceeded)
	log.Printf("[%s] ✓ Pipeline complete", runID)
	return report, nil
}

func (o *Orchestrator) stepByNumber(number int) Step {
	for _, step := range o.steps {
		if step.Number() == number {
			return step
		}
	}
	return nil
}

func (o *Orchestrator) recordStep(ctx context.Context, runID, step string, status Status, detail string) {
	if err := o.ledger.RecordStep(ctx, runID, step, string(status), detail); err != nil {
		log.Printf("[%s] Warning: failed to record step outcome: %v", runID, err)
	}
}

// finishRun uses a fresh context so the terminal status still lands
// when the run context was canceled.
func (o *Orchestrator) finishRun(runID string, status Status) {
	if err := o.ledger.FinishRun(context.Background(), runID, string(status)); err != nil {
		log.Printf("[%s] Warning: failed to record run finish: %v", runID, err)
	}
}
