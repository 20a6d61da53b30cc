package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// UltralyticsCLI drives the yolo executable as a subprocess. Arguments
// are rendered as key=value pairs in sorted key order so invocations
// are reproducible, and engine output streams straight to the console.
type UltralyticsCLI struct {
	// Bin is the yolo executable name or path
	Bin string

	// Stdout and Stderr receive the engine's output
	Stdout io.Writer
	Stderr io.Writer
}

// NewUltralyticsCLI creates an adapter for the given executable.
func NewUltralyticsCLI(bin string) *UltralyticsCLI {
	return &UltralyticsCLI{
		Bin:    bin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Train runs `yolo detect train` and blocks until it finishes.
func (u *UltralyticsCLI) Train(ctx context.Context, spec TrainSpec) (TrainOutcome, error) {
	args := trainArgs(spec)

	start := time.Now()
	if err := u.run(ctx, args); err != nil {
		return TrainOutcome{}, err
	}

	weightsDir := filepath.Join(spec.Project, spec.RunName, "weights")
	return TrainOutcome{
		WeightsDir: weightsDir,
		BestPath:   filepath.Join(weightsDir, "best.pt"),
		LastPath:   filepath.Join(weightsDir, "last.pt"),
		Duration:   time.Since(start),
	}, nil
}

// Export runs `yolo export` and returns the path of the produced file.
// The engine writes it next to the weights, named after the weights
// stem and the export format.
func (u *UltralyticsCLI) Export(ctx context.Context, spec ExportSpec) (string, error) {
	args := exportArgs(spec)

	if err := u.run(ctx, args); err != nil {
		return "", err
	}

	produced := exportedPath(spec)
	if _, err := os.Stat(produced); err != nil {
		return "", fmt.Errorf("engine reported success but produced no file at %s: %w", produced, err)
	}
	return produced, nil
}

func (u *UltralyticsCLI) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, u.Bin, args...)
	cmd.Stdout = u.Stdout
	cmd.Stderr = u.Stderr
	if err := cmd.Run(); err != nil {
		return &EngineError{
			Command: u.Bin + " " + strings.Join(args, " "),
			Err:     err,
		}
	}
	return nil
}

func trainArgs(spec TrainSpec) []string {
	bag := make(map[string]any, len(spec.Params)+6)
	for k, v := range spec.Params {
		bag[k] = v
	}
	bag["data"] = spec.Data
	bag["model"] = spec.Model
	bag["project"] = spec.Project
	bag["name"] = spec.RunName
	bag["exist_ok"] = true
	if spec.Resume {
		bag["resume"] = true
	}
	return append([]string{"detect", "train"}, formatArgs(bag)...)
}

func exportArgs(spec ExportSpec) []string {
	bag := make(map[string]any, len(spec.Params)+2)
	for k, v := range spec.Params {
		bag[k] = v
	}
	bag["model"] = spec.Weights
	bag["imgsz"] = spec.ImageSize
	return append([]string{"export"}, formatArgs(bag)...)
}

func exportedPath(spec ExportSpec) string {
	format := "onnx"
	if f, ok := spec.Params["format"].(string); ok && f != "" {
		format = f
	}
	stem := strings.TrimSuffix(spec.Weights, filepath.Ext(spec.Weights))
	return stem + "." + format
}

// formatArgs renders the bag as sorted key=value strings.
func formatArgs(bag map[string]any) []string {
	keys := make([]string, 0, len(bag))
	for k := range bag {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, k+"="+formatValue(bag[k]))
	}
	return args
}

// formatValue renders a param value the way the engine's CLI expects,
// booleans included (True/False).
func formatValue(v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}
