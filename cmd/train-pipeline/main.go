package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/gamesight/training-pipeline/internal/config"
	"github.com/gamesight/training-pipeline/internal/engine"
	"github.com/gamesight/training-pipeline/internal/history"
	"github.com/gamesight/training-pipeline/internal/pipeline"
)

// Interactive front end for the training pipeline.
// Runs clean, split, train and export in order, each gated on a
// confirmation prompt, starting at whatever step --skip-to names.
func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// A .env beside the invocation is optional; explicit flags still win.
	if err := godotenv.Load(); err == nil {
		log.Printf("✓ Loaded .env")
	}

	opts, err := parseArgs(args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}

	cfg, err := config.Resolve(envOverrides().Merge(opts.overrides))
	if err != nil {
		log.Printf("Invalid configuration: %v", err)
		return 2
	}

	log.Printf("Training pipeline")
	log.Printf("  Game: %s", cfg.GameID)
	log.Printf("  Model: %s (base %s)", cfg.ModelName, cfg.BaseModel)
	log.Printf("  Training data: %s", cfg.TrainingDataDir)
	log.Printf("  Artifacts: %s", cfg.ArtifactsDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := history.Open(cfg.LedgerPath)
	if err != nil {
		log.Printf("Warning: run ledger unavailable: %v", err)
		ledger = nil
	}
	defer ledger.Close()

	eng := engine.NewUltralyticsCLI(cfg.YoloBin)

	confirm := pipeline.StdinConfirm(os.Stdin, os.Stdout)
	if opts.autoYes {
		confirm = pipeline.AutoConfirm()
	}

	orch := pipeline.NewOrchestrator(cfg, confirm, ledger)
	orch.Register(pipeline.NewCleanStep())
	orch.Register(pipeline.NewSplitStep())
	orch.Register(pipeline.NewTrainStep(eng))
	orch.Register(pipeline.NewExportStep(eng))

	report, err := orch.Run(ctx, opts.skipTo)
	if err != nil {
		if errors.Is(err, pipeline.ErrUnknownStep) {
			log.Printf("%v", err)
			return 2
		}
		printSummary(report)
		log.Printf("Pipeline failed: %v", err)
		return 1
	}

	printSummary(report)
	return 0
}

// cliOptions is everything the command line contributes to a run.
type cliOptions struct {
	overrides config.Overrides
	skipTo    int
	autoYes   bool
}

func parseArgs(args []string) (*cliOptions, error) {
	fs := flag.NewFlagSet("train-pipeline", flag.ContinueOnError)

	skipTo := fs.Int("skip-to", 1, "step to start from (1=clean 2=split 3=train 4=export)")
	autoYes := fs.Bool("auto-yes", false, "answer every confirmation with its default")

	gameID := fs.String("game-id", "", "game whose data and artifacts this run works on")
	modelName := fs.String("model-name", "", "artifact file prefix")
	baseModel := fs.String("base-model", "", "pretrained checkpoint training starts from")
	toolRoot := fs.String("tool-root", "", "directory the tool keeps training data and runs under")
	projectRoot := fs.String("project-root", "", "project directory artifacts deploy into")
	trainingData := fs.String("training-data-path", "", "training data directory override")
	artifacts := fs.String("artifacts-path", "", "artifact deploy directory override")
	yoloBin := fs.String("yolo-bin", "", "model engine executable")

	trainRatio := fs.Float64("train-ratio", 0, "fraction of labeled images used for training")
	seed := fs.Int64("seed", 0, "shuffle seed for the split")
	audit := fs.Bool("audit", false, "decode every split image and report dimensions")

	epochs := fs.Int("epochs", 0, "training epochs")
	imgsz := fs.Int("imgsz", 0, "training image size")
	batch := fs.Float64("batch", 0, "batch size, or a 0-1 GPU memory fraction")
	patience := fs.Int("patience", 0, "early stopping patience in epochs")
	lr0 := fs.Float64("lr0", 0, "initial learning rate")
	device := fs.String("device", "", "training device (cuda, cpu, mps)")
	workers := fs.Int("workers", 0, "dataloader worker count")
	cache := fs.Bool("cache", true, "cache the dataset during training")
	noCache := fs.Bool("no-cache", false, "disable dataset caching during training")
	amp := fs.Bool("amp", true, "train with mixed precision")
	noAMP := fs.Bool("no-amp", false, "disable mixed precision training")

	resume := fs.Bool("resume", false, "resume training from the run's last checkpoint")
	fineTune := fs.String("fine-tune-model-path", "", "exported .pt to fine-tune instead of the base model")
	statsOutput := fs.String("stats-output-path", "", "write a JSON training summary to this file")

	size := fs.Int("size", 0, "export only this resolution")
	useLast := fs.Bool("use-last", false, "export last.pt instead of best.pt")
	weightsPath := fs.String("weights-path", "", "export these weights instead of the run's")
	noDeploy := fs.Bool("no-deploy", false, "keep exports next to the weights instead of deploying")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(fs.Output(), "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	// Zero is a real value for several engine parameters, so only the
	// flags the caller actually set are forwarded.
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	ov := config.Overrides{
		GameID:            *gameID,
		ModelName:         *modelName,
		BaseModel:         *baseModel,
		ToolRoot:          *toolRoot,
		ProjectRoot:       *projectRoot,
		TrainingDataDir:   *trainingData,
		ArtifactsDir:      *artifacts,
		YoloBin:           *yoloBin,
		SplitRatio:        *trainRatio,
		SplitSeed:         *seed,
		AuditImages:       *audit,
		Resume:            *resume,
		FineTuneModelPath: *fineTune,
		StatsOutputPath:   *statsOutput,
		UseLast:           *useLast,
		WeightsPath:       *weightsPath,
		NoDeploy:          *noDeploy,
	}

	train := map[string]any{}
	if set["epochs"] {
		train["epochs"] = *epochs
	}
	if set["imgsz"] {
		train["imgsz"] = *imgsz
	}
	if set["batch"] {
		train["batch"] = *batch
	}
	if set["patience"] {
		train["patience"] = *patience
	}
	if set["lr0"] {
		train["lr0"] = *lr0
	}
	if set["device"] {
		train["device"] = *device
	}
	if set["workers"] {
		train["workers"] = *workers
	}
	if set["cache"] {
		train["cache"] = *cache
	}
	if *noCache {
		train["cache"] = false
	}
	if set["amp"] {
		train["amp"] = *amp
	}
	if *noAMP {
		train["amp"] = false
	}
	if len(train) > 0 {
		ov.Train = train
	}

	if set["size"] {
		ov.ExportSizes = []int{*size}
	}

	return &cliOptions{overrides: ov, skipTo: *skipTo, autoYes: *autoYes}, nil
}

// envOverrides reads the TRAINPIPE_* environment, the layer between
// compiled defaults and flags.
func envOverrides() config.Overrides {
	return config.Overrides{
		GameID:          os.Getenv("TRAINPIPE_GAME_ID"),
		ModelName:       os.Getenv("TRAINPIPE_MODEL_NAME"),
		BaseModel:       os.Getenv("TRAINPIPE_BASE_MODEL"),
		ToolRoot:        os.Getenv("TRAINPIPE_TOOL_ROOT"),
		TrainingDataDir: os.Getenv("TRAINPIPE_TRAINING_DATA_PATH"),
		ArtifactsDir:    os.Getenv("TRAINPIPE_ARTIFACTS_PATH"),
		YoloBin:         os.Getenv("TRAINPIPE_YOLO_BIN"),
	}
}

func printSummary(report *pipeline.RunReport) {
	if report == nil || len(report.Outcomes) == 0 {
		return
	}
	log.Printf("Run %s:", report.RunID)
	for _, outcome := range report.Outcomes {
		line := fmt.Sprintf("  %d. %s: %s", outcome.Number, outcome.Name, outcome.Status)
		if outcome.Detail != "" {
			line += " (" + outcome.Detail + ")"
		}
		log.Print(line)
	}
}
