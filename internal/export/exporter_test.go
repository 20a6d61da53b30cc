package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gamesight/training-pipeline/internal/config"
	"github.com/gamesight/training-pipeline/internal/engine"
	"github.com/gamesight/training-pipeline/pkg/gameconfig"
)

// fakeEngine writes a marker file where the real engine would leave its
// export and records every spec it saw.
type fakeEngine struct {
	exports []engine.ExportSpec
	failAt  int // size whose export fails, 0 for none
}

func (f *fakeEngine) Train(ctx context.Context, spec engine.TrainSpec) (engine.TrainOutcome, error) {
	return engine.TrainOutcome{}, nil
}

func (f *fakeEngine) Export(ctx context.Context, spec engine.ExportSpec) (string, error) {
	f.exports = append(f.exports, spec)
	if f.failAt != 0 && spec.ImageSize == f.failAt {
		return "", &engine.EngineError{Command: "yolo export", Err: errors.New("exit status 1")}
	}
	path := strings.TrimSuffix(spec.Weights, ".pt") + ".onnx"
	if err := os.WriteFile(path, []byte(fmt.Sprintf("onnx@%d", spec.ImageSize)), 0644); err != nil {
		return "", err
	}
	return path, nil
}

type fixtureOpts struct {
	noBest    bool
	noLast    bool
	useLast   bool
	noDeploy  bool
	sizes     []int
	overrideW string
}

func exportFixture(t *testing.T, opts fixtureOpts) (*config.Config, *Exporter, *fakeEngine) {
	t.Helper()
	root := t.TempDir()
	cfg, err := config.Resolve(config.Overrides{
		GameID:      "frontier",
		ModelName:   "FrontierModel",
		ToolRoot:    filepath.Join(root, "tool"),
		ProjectRoot: root,
		ExportSizes: opts.sizes,
		UseLast:     opts.useLast,
		NoDeploy:    opts.noDeploy,
		WeightsPath: opts.overrideW,
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if err := os.MkdirAll(cfg.WeightsDir, 0755); err != nil {
		t.Fatalf("mkdir weights: %v", err)
	}
	if !opts.noBest {
		if err := os.WriteFile(filepath.Join(cfg.WeightsDir, "best.pt"), []byte("best"), 0644); err != nil {
			t.Fatalf("write best.pt: %v", err)
		}
	}
	if !opts.noLast {
		if err := os.WriteFile(filepath.Join(cfg.WeightsDir, "last.pt"), []byte("last"), 0644); err != nil {
			t.Fatalf("write last.pt: %v", err)
		}
	}

	if err := os.MkdirAll(cfg.LabelsDir, 0755); err != nil {
		t.Fatalf("mkdir labels: %v", err)
	}
	if err := os.WriteFile(cfg.ClassesFile, []byte("enemy\nammo\ncrate\n"), 0644); err != nil {
		t.Fatalf("write classes: %v", err)
	}

	eng := &fakeEngine{}
	exp := New(cfg, eng)
	exp.now = func() time.Time {
		return time.Date(2025, 8, 14, 9, 30, 0, 0, time.UTC)
	}
	return cfg, exp, eng
}

func TestRunProducesVersionedCohort(t *testing.T) {
	cfg, exp, eng := exportFixture(t, fixtureOpts{})

	artifacts, err := exp.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("artifacts = %d, want 2", len(artifacts))
	}

	for i, want := range []struct {
		size int
		name string
	}{
		{640, "FrontierModel_v20250814_093000_640.onnx"},
		{1440, "FrontierModel_v20250814_093000_1440.onnx"},
	} {
		a := artifacts[i]
		if a.Resolution != want.size {
			t.Errorf("artifact %d resolution = %d, want %d", i, a.Resolution, want.size)
		}
		if a.Version != "20250814_093000" {
			t.Errorf("artifact %d version = %q", i, a.Version)
		}
		if filepath.Base(a.ModelPath) != want.name {
			t.Errorf("artifact %d name = %q, want %q", i, filepath.Base(a.ModelPath), want.name)
		}
		if _, err := os.Stat(a.ModelPath); err != nil {
			t.Errorf("artifact %d not deployed: %v", i, err)
		}

		labels, err := os.ReadFile(a.LabelsPath)
		if err != nil {
			t.Fatalf("labels file missing: %v", err)
		}
		if string(labels) != "enemy\nammo\ncrate\n" {
			t.Errorf("labels content = %q", labels)
		}
	}

	if len(eng.exports) != 2 || eng.exports[0].ImageSize != 640 || eng.exports[1].ImageSize != 1440 {
		t.Errorf("engine saw %v", eng.exports)
	}

	// The engine's transient output is removed after deployment.
	if _, err := os.Stat(filepath.Join(cfg.WeightsDir, "best.onnx")); !os.IsNotExist(err) {
		t.Error("transient export file left behind")
	}

	// The raw weights were copied for future fine-tune runs.
	ftCopy := filepath.Join(cfg.ArtifactsDir, "FrontierModel_v20250814_093000.pt")
	if _, err := os.Stat(ftCopy); err != nil {
		t.Errorf("fine-tune weights copy missing: %v", err)
	}
}

func TestRunMissingWeights(t *testing.T) {
	cfg, exp, _ := exportFixture(t, fixtureOpts{noBest: true, noLast: true})

	_, err := exp.Run(context.Background(), "run-1")

	var missing *MissingWeightsError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want MissingWeightsError", err)
	}
	if !strings.Contains(missing.Best, "best.pt") || !strings.Contains(missing.Last, "last.pt") {
		t.Errorf("error does not name both candidates: %+v", missing)
	}
	if _, err := os.Stat(cfg.ArtifactsDir); !os.IsNotExist(err) {
		t.Error("artifacts directory created despite missing weights")
	}
}

func TestRunWeightsSelection(t *testing.T) {
	tests := []struct {
		name string
		opts fixtureOpts
		want string
	}{
		{"best preferred", fixtureOpts{}, "best.pt"},
		{"use last", fixtureOpts{useLast: true}, "last.pt"},
		{"fallback to last", fixtureOpts{noBest: true}, "last.pt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, exp, eng := exportFixture(t, tt.opts)
			if _, err := exp.Run(context.Background(), "run-1"); err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if got := filepath.Base(eng.exports[0].Weights); got != tt.want {
				t.Errorf("exported weights = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunExplicitWeightsOverride(t *testing.T) {
	root := t.TempDir()
	override := filepath.Join(root, "handoff.pt")
	if err := os.WriteFile(override, []byte("handoff"), 0644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	_, exp, eng := exportFixture(t, fixtureOpts{noBest: true, noLast: true, overrideW: override})
	if _, err := exp.Run(context.Background(), "run-1"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if eng.exports[0].Weights != override {
		t.Errorf("exported weights = %q, want the override", eng.exports[0].Weights)
	}
}

func TestRunHaltsOnFirstFailedSize(t *testing.T) {
	cfg, exp, eng := exportFixture(t, fixtureOpts{})
	eng.failAt = 1440

	artifacts, err := exp.Run(context.Background(), "run-1")
	if err == nil {
		t.Fatal("Run succeeded despite engine failure")
	}
	var engErr *engine.EngineError
	if !errors.As(err, &engErr) {
		t.Errorf("cause = %v, want EngineError", err)
	}

	// The 640 artifact was already deployed and stays in place.
	if len(artifacts) != 1 || artifacts[0].Resolution != 640 {
		t.Fatalf("artifacts = %v, want just the 640", artifacts)
	}
	if _, err := os.Stat(artifacts[0].ModelPath); err != nil {
		t.Errorf("deployed artifact rolled back: %v", err)
	}

	// The game config merge never ran.
	if _, err := os.Stat(cfg.GameConfigPath); !os.IsNotExist(err) {
		t.Error("game config written despite halted export")
	}
}

func TestRunMergesGameConfig(t *testing.T) {
	cfg, exp, _ := exportFixture(t, fixtureOpts{})
	if err := os.MkdirAll(cfg.ArtifactsDir, 0755); err != nil {
		t.Fatalf("mkdir artifacts: %v", err)
	}
	seed := `{
  "gameName": "Frontier Extraction",
  "modelFile": "old.onnx",
  "labels": [{"name": "enemy", "description": "hostile"}, {"name": "ammo", "description": ""}],
  "primaryLabels": ["enemy"],
  "secondaryLabels": ["ammo"]
}`
	if err := os.WriteFile(cfg.GameConfigPath, []byte(seed), 0644); err != nil {
		t.Fatalf("write game config: %v", err)
	}

	if _, err := exp.Run(context.Background(), "run-1"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	doc, err := gameconfig.Load(cfg.GameConfigPath)
	if err != nil {
		t.Fatalf("reload game config: %v", err)
	}
	if doc.ModelFile() != "FrontierModel_v20250814_093000_640.onnx" {
		t.Errorf("modelFile = %q", doc.ModelFile())
	}
	secondary := doc.Tier(gameconfig.TierSecondary)
	if len(secondary) != 1 || secondary[0] != "ammo" {
		t.Errorf("secondary = %v, want [ammo]", secondary)
	}
	primary := doc.Tier(gameconfig.TierPrimary)
	if len(primary) != 2 || primary[1] != "crate" {
		t.Errorf("primary = %v, want [enemy crate]", primary)
	}
}

func TestRunContinuesWithoutGameConfig(t *testing.T) {
	cfg, exp, _ := exportFixture(t, fixtureOpts{})

	if _, err := exp.Run(context.Background(), "run-1"); err != nil {
		t.Fatalf("Run failed without a game config: %v", err)
	}
	if _, err := os.Stat(cfg.GameConfigPath); !os.IsNotExist(err) {
		t.Error("merge created a game config; creation belongs downstream")
	}
}

func TestRunNoDeployLeavesEngineOutput(t *testing.T) {
	cfg, exp, _ := exportFixture(t, fixtureOpts{noDeploy: true, sizes: []int{640}})

	artifacts, err := exp.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("artifacts = %d, want 1", len(artifacts))
	}

	produced := filepath.Join(cfg.WeightsDir, "best.onnx")
	if artifacts[0].ModelPath != produced {
		t.Errorf("ModelPath = %q, want the in-place engine output %q", artifacts[0].ModelPath, produced)
	}
	if _, err := os.Stat(produced); err != nil {
		t.Errorf("engine output missing: %v", err)
	}
	if artifacts[0].LabelsPath != "" {
		t.Errorf("labels written in no-deploy mode: %q", artifacts[0].LabelsPath)
	}
	if _, err := os.Stat(cfg.ArtifactsDir); !os.IsNotExist(err) {
		t.Error("artifacts directory created in no-deploy mode")
	}
}

func TestCanonicalArtifact(t *testing.T) {
	low := Artifact{Resolution: 640}
	high := Artifact{Resolution: 1440}

	if got := canonicalArtifact([]Artifact{high, low}); got.Resolution != 640 {
		t.Errorf("canonical = %d, want 640", got.Resolution)
	}
	if got := canonicalArtifact([]Artifact{high}); got.Resolution != 1440 {
		t.Errorf("canonical = %d, want the only artifact", got.Resolution)
	}
}
