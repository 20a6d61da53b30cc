package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Default identity used when neither environment nor flags name a game.
const (
	DefaultGameID    = "arc_raiders"
	DefaultModelName = "ArcRaidersModel"
	DefaultBaseModel = "yolo11n.pt"
)

// Split defaults. The seed is fixed so repeated splits over the same
// image set land every file in the same partition.
const (
	DefaultSplitRatio = 0.8
	DefaultSplitSeed  = 42
)

// CanonicalExportSize is the low-latency resolution the downstream
// application loads by default.
const CanonicalExportSize = 640

// DefaultExportSizes lists every resolution an export run produces when
// no override narrows it.
var DefaultExportSizes = []int{640, 1440}

// Config holds the fully resolved settings for one pipeline run.
// All paths are derived from the identity fields at resolve time;
// treat the struct as read-only once Resolve returns it.
type Config struct {
	// GameID namespaces all training data, runs and artifacts
	GameID string

	// ModelName is the artifact file prefix consumed by the overlay app
	ModelName string

	// BaseModel is the pretrained checkpoint training starts from
	BaseModel string

	// ToolRoot is the directory this tool keeps its working data under
	ToolRoot string

	// ProjectRoot is the enclosing project the artifacts deploy into
	ProjectRoot string

	// Derived data locations
	TrainingDataDir string
	ImagesDir       string
	LabelsDir       string
	ClassesFile     string
	DatasetYAML     string
	TrainImagesDir  string
	TrainLabelsDir  string
	ValImagesDir    string
	ValLabelsDir    string

	// Derived run/output locations
	RunsDir        string
	WeightsDir     string
	ArtifactsDir   string
	GameConfigPath string
	LedgerPath     string

	// Optional mode inputs
	FineTuneModelPath string
	WeightsPath       string
	StatsOutputPath   string

	// Split settings
	SplitRatio  float64
	SplitSeed   int64
	AuditImages bool

	// Export settings
	ExportSizes []int
	UseLast     bool
	NoDeploy    bool

	// Resume re-enters training from the run's last checkpoint
	Resume bool

	// YoloBin is the model engine executable
	YoloBin string

	// Train and Export are the parameter bags handed to the engine
	Train  map[string]any
	Export map[string]any
}

// Overrides carries caller-supplied values layered over the compiled
// defaults. Zero values mean "not set"; parameter maps merge key by key.
type Overrides struct {
	GameID    string
	ModelName string
	BaseModel string

	ToolRoot        string
	ProjectRoot     string
	TrainingDataDir string
	ArtifactsDir    string

	FineTuneModelPath string
	WeightsPath       string
	StatsOutputPath   string

	SplitRatio  float64
	SplitSeed   int64
	AuditImages bool

	ExportSizes []int
	UseLast     bool
	NoDeploy    bool
	Resume      bool

	YoloBin string

	Train  map[string]any
	Export map[string]any
}

// Merge layers a later set of overrides on top of o. Later scalar values
// win when set; parameter maps merge key by key so an override touches
// exactly the keys it names.
func (o Overrides) Merge(later Overrides) Overrides {
	out := o
	if later.GameID != "" {
		out.GameID = later.GameID
	}
	if later.ModelName != "" {
		out.ModelName = later.ModelName
	}
	if later.BaseModel != "" {
		out.BaseModel = later.BaseModel
	}
	if later.ToolRoot != "" {
		out.ToolRoot = later.ToolRoot
	}
	if later.ProjectRoot != "" {
		out.ProjectRoot = later.ProjectRoot
	}
	if later.TrainingDataDir != "" {
		out.TrainingDataDir = later.TrainingDataDir
	}
	if later.ArtifactsDir != "" {
		out.ArtifactsDir = later.ArtifactsDir
	}
	if later.FineTuneModelPath != "" {
		out.FineTuneModelPath = later.FineTuneModelPath
	}
	if later.WeightsPath != "" {
		out.WeightsPath = later.WeightsPath
	}
	if later.StatsOutputPath != "" {
		out.StatsOutputPath = later.StatsOutputPath
	}
	if later.SplitRatio != 0 {
		out.SplitRatio = later.SplitRatio
	}
	if later.SplitSeed != 0 {
		out.SplitSeed = later.SplitSeed
	}
	if later.AuditImages {
		out.AuditImages = true
	}
	if later.ExportSizes != nil {
		out.ExportSizes = later.ExportSizes
	}
	if later.UseLast {
		out.UseLast = true
	}
	if later.NoDeploy {
		out.NoDeploy = true
	}
	if later.Resume {
		out.Resume = true
	}
	if later.YoloBin != "" {
		out.YoloBin = later.YoloBin
	}
	out.Train = mergeParams(o.Train, later.Train)
	out.Export = mergeParams(o.Export, later.Export)
	return out
}

// Resolve produces the effective configuration for a run: compiled
// defaults first, then the supplied overrides. Paths are derived, never
// checked for existence; missing inputs surface as step preconditions.
func Resolve(ov Overrides) (*Config, error) {
	cfg := &Config{
		GameID:      DefaultGameID,
		ModelName:   DefaultModelName,
		BaseModel:   DefaultBaseModel,
		SplitRatio:  DefaultSplitRatio,
		SplitSeed:   DefaultSplitSeed,
		ExportSizes: append([]int(nil), DefaultExportSizes...),
		YoloBin:     "yolo",
	}

	if ov.GameID != "" {
		cfg.GameID = ov.GameID
	}
	if ov.ModelName != "" {
		cfg.ModelName = ov.ModelName
	}
	if ov.BaseModel != "" {
		cfg.BaseModel = ov.BaseModel
	}
	if ov.SplitRatio != 0 {
		cfg.SplitRatio = ov.SplitRatio
	}
	if ov.SplitSeed != 0 {
		cfg.SplitSeed = ov.SplitSeed
	}
	if ov.ExportSizes != nil {
		cfg.ExportSizes = append([]int(nil), ov.ExportSizes...)
	}
	if ov.YoloBin != "" {
		cfg.YoloBin = ov.YoloBin
	}

	cfg.AuditImages = ov.AuditImages
	cfg.UseLast = ov.UseLast
	cfg.NoDeploy = ov.NoDeploy
	cfg.Resume = ov.Resume
	cfg.FineTuneModelPath = ov.FineTuneModelPath
	cfg.WeightsPath = ov.WeightsPath
	cfg.StatsOutputPath = ov.StatsOutputPath

	if cfg.SplitRatio <= 0 || cfg.SplitRatio >= 1 {
		return nil, fmt.Errorf("train ratio must be between 0 and 1 exclusive, got %v", cfg.SplitRatio)
	}
	if len(cfg.ExportSizes) == 0 {
		return nil, fmt.Errorf("at least one export size is required")
	}
	for _, size := range cfg.ExportSizes {
		if !validExportSize(size) {
			return nil, fmt.Errorf("unsupported export size %d (supported: %v)", size, DefaultExportSizes)
		}
	}

	cfg.ToolRoot = ov.ToolRoot
	if cfg.ToolRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		cfg.ToolRoot = wd
	}
	cfg.ProjectRoot = ov.ProjectRoot
	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = filepath.Dir(cfg.ToolRoot)
	}

	cfg.TrainingDataDir = ov.TrainingDataDir
	if cfg.TrainingDataDir == "" {
		cfg.TrainingDataDir = filepath.Join(cfg.ToolRoot, "training_data", cfg.GameID)
	}
	cfg.ImagesDir = filepath.Join(cfg.TrainingDataDir, "images")
	cfg.LabelsDir = filepath.Join(cfg.TrainingDataDir, "labels")
	cfg.ClassesFile = filepath.Join(cfg.LabelsDir, "classes.txt")
	cfg.DatasetYAML = filepath.Join(cfg.TrainingDataDir, "dataset.yaml")
	cfg.TrainImagesDir = filepath.Join(cfg.TrainingDataDir, "train", "images")
	cfg.TrainLabelsDir = filepath.Join(cfg.TrainingDataDir, "train", "labels")
	cfg.ValImagesDir = filepath.Join(cfg.TrainingDataDir, "val", "images")
	cfg.ValLabelsDir = filepath.Join(cfg.TrainingDataDir, "val", "labels")

	cfg.RunsDir = filepath.Join(cfg.ToolRoot, "runs", "detect")
	cfg.WeightsDir = filepath.Join(cfg.RunsDir, cfg.RunName(), "weights")
	cfg.ArtifactsDir = ov.ArtifactsDir
	if cfg.ArtifactsDir == "" {
		cfg.ArtifactsDir = filepath.Join(cfg.ProjectRoot, "artifacts", cfg.GameID)
	}
	cfg.GameConfigPath = filepath.Join(cfg.ArtifactsDir, "game_config.json")
	cfg.LedgerPath = filepath.Join(cfg.ToolRoot, "runs", "history.db")

	cfg.Train = mergeParams(defaultTrainParams(), ov.Train)
	cfg.Export = mergeParams(defaultExportParams(), ov.Export)

	return cfg, nil
}

// RunName is the engine run directory name under RunsDir.
func (c *Config) RunName() string {
	return c.GameID + "_model"
}

func validExportSize(size int) bool {
	for _, s := range DefaultExportSizes {
		if s == size {
			return true
		}
	}
	return false
}
