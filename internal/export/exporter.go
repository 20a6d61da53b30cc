package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gamesight/training-pipeline/internal/config"
	"github.com/gamesight/training-pipeline/internal/dataset"
	"github.com/gamesight/training-pipeline/internal/engine"
	"github.com/gamesight/training-pipeline/internal/storage"
	"github.com/gamesight/training-pipeline/pkg/gameconfig"
)

// VersionStampLayout renders the version stamp shared by every artifact
// of one export run.
const VersionStampLayout = "20060102_150405"

// Artifact is one deployable model produced by an export run.
type Artifact struct {
	Resolution int
	Version    string
	ModelPath  string
	LabelsPath string
}

// MissingWeightsError reports that no trained checkpoint exists at
// either candidate location.
type MissingWeightsError struct {
	Best string
	Last string
}

func (e *MissingWeightsError) Error() string {
	return fmt.Sprintf("no trained weights found (looked for %s and %s); run the training step first", e.Best, e.Last)
}

// Exporter turns trained weights into versioned, deployed artifacts and
// keeps the downstream game config in sync with them.
type Exporter struct {
	cfg *config.Config
	eng engine.Engine
	now func() time.Time
}

// New creates an exporter for the resolved configuration.
func New(cfg *config.Config, eng engine.Engine) *Exporter {
	return &Exporter{cfg: cfg, eng: eng, now: time.Now}
}

// Run executes the full export: weights discovery, one engine export
// per requested size, deployment into the artifacts directory, and the
// game config merge. The first failing size halts the run; artifacts
// already deployed stay in place.
func (e *Exporter) Run(ctx context.Context, runID string) ([]Artifact, error) {
	weights, err := e.resolveWeights()
	if err != nil {
		return nil, err
	}
	log.Printf("[%s] Using weights: %s", runID, weights)

	classes, err := dataset.ReadClasses(e.cfg.ClassesFile)
	if err != nil {
		return nil, err
	}

	version := e.now().Format(VersionStampLayout)
	log.Printf("[%s] Version stamp: %s", runID, version)

	deploy := !e.cfg.NoDeploy
	if deploy {
		if err := storage.EnsureDir(e.cfg.ArtifactsDir); err != nil {
			return nil, err
		}
		// Versioned copy of the raw weights, the starting point for
		// future fine-tune runs.
		weightsCopy := filepath.Join(e.cfg.ArtifactsDir, fmt.Sprintf("%s_v%s.pt", e.cfg.ModelName, version))
		if err := storage.CopyFile(weights, weightsCopy); err != nil {
			return nil, err
		}
		log.Printf("[%s] ✓ Saved fine-tune weights: %s", runID, weightsCopy)
	}

	var artifacts []Artifact
	for _, size := range e.cfg.ExportSizes {
		log.Printf("[%s] Exporting %dpx model...", runID, size)
		produced, err := e.eng.Export(ctx, engine.ExportSpec{
			Weights:   weights,
			ImageSize: size,
			Params:    e.cfg.Export,
		})
		if err != nil {
			return artifacts, fmt.Errorf("export at size %d failed: %w", size, err)
		}

		artifact := Artifact{Resolution: size, Version: version}
		if deploy {
			base := fmt.Sprintf("%s_v%s_%d", e.cfg.ModelName, version, size)
			artifact.ModelPath = filepath.Join(e.cfg.ArtifactsDir, base+filepath.Ext(produced))
			if err := storage.CopyFile(produced, artifact.ModelPath); err != nil {
				return artifacts, err
			}

			artifact.LabelsPath = filepath.Join(e.cfg.ArtifactsDir, base+".txt")
			if err := writeLabels(artifact.LabelsPath, classes); err != nil {
				return artifacts, err
			}

			// The engine's output file is transient once deployed.
			if err := os.Remove(produced); err != nil {
				return artifacts, fmt.Errorf("failed to remove transient export %s: %w", produced, err)
			}
			log.Printf("[%s] ✓ Deployed %s", runID, filepath.Base(artifact.ModelPath))
		} else {
			artifact.ModelPath = produced
			log.Printf("[%s] ✓ Exported %s (deploy skipped)", runID, produced)
		}
		artifacts = append(artifacts, artifact)
	}

	if deploy {
		if err := e.updateGameConfig(runID, canonicalArtifact(artifacts), classes); err != nil {
			return artifacts, err
		}
	}
	return artifacts, nil
}

// resolveWeights picks the checkpoint to export: the explicit override
// when set, otherwise best.pt with last.pt as fallback (reversed when
// the run prefers last).
func (e *Exporter) resolveWeights() (string, error) {
	if e.cfg.WeightsPath != "" {
		ok, err := storage.FileExists(e.cfg.WeightsPath)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("weights override %s does not exist", e.cfg.WeightsPath)
		}
		return e.cfg.WeightsPath, nil
	}

	best := filepath.Join(e.cfg.WeightsDir, "best.pt")
	last := filepath.Join(e.cfg.WeightsDir, "last.pt")
	candidates := []string{best, last}
	if e.cfg.UseLast {
		candidates = []string{last, best}
	}
	for _, candidate := range candidates {
		ok, err := storage.FileExists(candidate)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
	}
	return "", &MissingWeightsError{Best: best, Last: last}
}

// canonicalArtifact picks the model the overlay loads by default: the
// low-latency size when produced, otherwise the first of the run.
func canonicalArtifact(artifacts []Artifact) Artifact {
	for _, artifact := range artifacts {
		if artifact.Resolution == config.CanonicalExportSize {
			return artifact
		}
	}
	return artifacts[0]
}

func (e *Exporter) updateGameConfig(runID string, canonical Artifact, classes []string) error {
	doc, err := gameconfig.Load(e.cfg.GameConfigPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Printf("[%s] Warning: no game config at %s - merge skipped", runID, e.cfg.GameConfigPath)
			return nil
		}
		return err
	}

	doc.SetModelFile(filepath.Base(canonical.ModelPath))
	added := doc.MergeClasses(classes)
	if err := doc.Save(e.cfg.GameConfigPath); err != nil {
		return err
	}

	if len(added) > 0 {
		log.Printf("[%s] ✓ Added %d new label(s) to game config: %s", runID, len(added), strings.Join(added, ", "))
	}
	log.Printf("[%s] ✓ Game config now points at %s", runID, filepath.Base(canonical.ModelPath))
	return nil
}

func writeLabels(path string, classes []string) error {
	content := strings.Join(classes, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write labels file %s: %w", path, err)
	}
	return nil
}
