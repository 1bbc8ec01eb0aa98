package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/swarnim-j/micrograd/internal/config"
	"github.com/swarnim-j/micrograd/internal/ctxlog"
	"github.com/swarnim-j/micrograd/internal/server"
)

const usage = `
micrograd - a scalar reverse-mode autograd engine with a tiny MLP on top.

Usage:
  micrograd train [options]   train on a config file (or the built-in toy set)
  micrograd serve [options]   serve the JSON API

Run 'micrograd <command> -h' for the options of a command.
`

// ExitError carries a specific process exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// logFlags are shared by every subcommand.
type logFlags struct {
	level  string
	format string
}

func (l *logFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&l.level, "log-level", "info", "Logging level: 'debug', 'info', 'warn' or 'error'.")
	fs.StringVar(&l.format, "log-format", "text", "Log output format: 'text' or 'json'.")
}

func (l *logFlags) logger(w io.Writer) (*slog.Logger, error) {
	switch strings.ToLower(l.level) {
	case "debug", "info", "warn", "error":
	default:
		return nil, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	switch strings.ToLower(l.format) {
	case "text", "json":
	default:
		return nil, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	return ctxlog.New(w, l.level, l.format), nil
}

// run dispatches to a subcommand. Results go to stdout, logs to stderr.
func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return nil
	}

	switch args[0] {
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return nil
	case "train":
		return runTrain(ctx, stdout, stderr, args[1:])
	case "serve":
		return runServe(ctx, stdout, stderr, args[1:])
	}
	return &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q", args[0])}
}

// parseFlags parses args into fs. shouldExit is true after -h.
func parseFlags(fs *flag.FlagSet, args []string) (shouldExit bool, err error) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return true, nil
		}
		return false, &ExitError{Code: 2, Message: err.Error()}
	}
	if fs.NArg() > 0 {
		return false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected arguments: %v", fs.Args())}
	}
	return false, nil
}

func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	if path == "" {
		ctxlog.FromContext(ctx).Debug("No config file given, using the built-in toy dataset")
		return config.Default(), nil
	}
	return config.Load(ctx, path)
}

func runTrain(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("micrograd train", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", "", "Path to an HCL training config. Empty uses the built-in toy dataset.")
	steps := fs.Int("steps", 0, "Override train.steps from the config.")
	var lf logFlags
	lf.register(fs)

	if exit, err := parseFlags(fs, args); exit || err != nil {
		return err
	}
	logger, err := lf.logger(stderr)
	if err != nil {
		return err
	}
	ctx = ctxlog.WithLogger(ctx, logger)

	cfg, err := loadConfig(ctx, *configPath)
	if err != nil {
		return err
	}
	if *steps < 0 {
		return &ExitError{Code: 2, Message: "invalid steps: must not be negative"}
	}
	if *steps > 0 {
		cfg.Train.Steps = *steps
	}

	trainer, err := cfg.NewTrainer()
	if err != nil {
		return err
	}
	logger.Info("Training started",
		"params", len(trainer.Model.Parameters()),
		"samples", len(trainer.Samples),
		"optimizer", cfg.Train.Optimizer,
		"steps", cfg.Train.Steps,
	)

	last, err := trainer.Run(ctx, cfg.Train.Steps, cfg.Train.LogEvery)
	if err != nil {
		return fmt.Errorf("training stopped after %d steps: %w", trainer.Steps(), err)
	}

	fmt.Fprintf(stdout, "model: %v\n", trainer.Model)
	fmt.Fprintf(stdout, "steps: %d\n", last.Step)
	fmt.Fprintf(stdout, "final loss: %.6f\n", last.Loss)
	for i, s := range trainer.Samples {
		pred, err := trainer.Predict(s.Inputs)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "sample %d: inputs=%v target=%v prediction=%.4f\n", i, s.Inputs, s.Target, pred)
	}
	return nil
}

func runServe(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("micrograd serve", flag.ContinueOnError)
	fs.SetOutput(stdout)
	addr := fs.String("addr", ":8080", "Address to listen on.")
	configPath := fs.String("config", "", "Optional HCL config used to initialize a model at startup.")
	var lf logFlags
	lf.register(fs)

	if exit, err := parseFlags(fs, args); exit || err != nil {
		return err
	}
	logger, err := lf.logger(stderr)
	if err != nil {
		return err
	}
	ctx = ctxlog.WithLogger(ctx, logger)

	srv := server.New(logger)
	if *configPath != "" {
		cfg, err := config.Load(ctx, *configPath)
		if err != nil {
			return err
		}
		params, err := srv.Init(cfg)
		if err != nil {
			return err
		}
		logger.Info("Model initialized from config", "path", *configPath, "params", params)
	}
	return srv.ListenAndServe(ctx, *addr)
}
