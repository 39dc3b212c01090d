// Utter - Single-shot text-to-speech CLI
// License: MIT
//
// Copyright (c) 2026 Utter contributors

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/utterhq/utter/pkg/config"
	"github.com/utterhq/utter/pkg/job"
	"github.com/utterhq/utter/pkg/lock"
	"github.com/utterhq/utter/pkg/logger"
	"github.com/utterhq/utter/pkg/synth"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	exitCode := job.ExitOK

	cmd := newRootCmd(&exitCode)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return job.ExitError
	}
	return exitCode
}

type rootFlags struct {
	textFile    string
	text        string
	output      string
	voice       string
	play        bool
	accel       bool
	skipLocked  bool
	lockTimeout time.Duration
	noLock      bool
	lockPath    string
	engineURL   string
	logLevel    string
}

func newRootCmd(exitCode *int) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "utter",
		Short: "Convert text to speech using a local Piper engine",
		Long: `Utter converts text to synthesized speech in a single shot.

Concurrent invocations are serialized through a cross-process lock so
they do not fight over the synthesis engine and its accelerator.

Exit codes: 0 spoken, 1 error, 2 skipped (lock busy, --skip-if-locked),
3 timed out (--lock-timeout exceeded).`,
		Version: version,
		Example: `  utter -f examples/hello-world.txt
  utter -t "Hello, world!" -o output/hello.wav
  utter -t "Hello" --accel --skip-if-locked
  utter -f input.txt -p`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSpeak(cmd, flags, exitCode)
		},
	}

	cmd.Flags().StringVarP(&flags.textFile, "file", "f", "", "Input text file to convert to speech")
	cmd.Flags().StringVarP(&flags.text, "text", "t", "", "Text to convert to speech (alternative to --file)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output WAV file path")
	cmd.Flags().StringVar(&flags.voice, "voice", "", "Voice model name")
	cmd.Flags().BoolVarP(&flags.play, "play", "p", false, "Play audio after generation")
	cmd.Flags().BoolVar(&flags.accel, "accel", false, "Prefer hardware acceleration (CUDA/TensorRT) when available")
	cmd.Flags().BoolVar(&flags.skipLocked, "skip-if-locked", false, "Skip if another instance is speaking")
	cmd.Flags().DurationVar(&flags.lockTimeout, "lock-timeout", 0, "Give up waiting for the lock after this duration")
	cmd.Flags().BoolVar(&flags.noLock, "no-lock", false, "Disable locking (allow concurrent instances)")
	cmd.Flags().StringVar(&flags.lockPath, "lock-path", "", "Lock file location")
	cmd.Flags().StringVar(&flags.engineURL, "engine-url", "", "Piper engine base URL")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	return cmd
}

func runSpeak(cmd *cobra.Command, flags *rootFlags, exitCode *int) error {
	if flags.textFile == "" && flags.text == "" {
		return fmt.Errorf("must provide either --file or --text")
	}
	if flags.skipLocked && flags.lockTimeout > 0 {
		return fmt.Errorf("--skip-if-locked and --lock-timeout are mutually exclusive")
	}

	cfg, err := config.LoadConfig(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cmd, flags, cfg)

	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	if cfg.Log.File != "" {
		if err := logger.EnableFileLogging(cfg.Log.File); err != nil {
			logger.WarnCF("main", "File logging unavailable", map[string]any{"error": err.Error()})
		}
	}

	strategy, err := resolveStrategy(flags, cfg)
	if err != nil {
		return err
	}

	var locks lock.Manager
	if flags.noLock || cfg.Lock.Disabled {
		locks = lock.NopManager{}
	} else {
		locks = lock.NewFileLock(cfg.Lock.Path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := synth.NewPiperClient(cfg.Engine.BaseURL, cfg.Engine.Voice)

	j := job.New(job.Options{
		TextFile:   flags.textFile,
		Text:       flags.text,
		OutputPath: cfg.Output.Path,
		Voice:      cfg.Engine.Voice,
		Accel:      cfg.Engine.Accel,
		Play:       flags.play || cfg.Output.Play,
		Strategy:   strategy,
	}, locks, engine)

	*exitCode = j.Run(ctx)
	return nil
}

// applyFlags overlays explicitly set flags onto the loaded config, so
// precedence is flag > environment > config file > default.
func applyFlags(cmd *cobra.Command, flags *rootFlags, cfg *config.Config) {
	if cmd.Flags().Changed("output") {
		cfg.Output.Path = flags.output
	}
	if cmd.Flags().Changed("voice") {
		cfg.Engine.Voice = flags.voice
	}
	if cmd.Flags().Changed("accel") {
		cfg.Engine.Accel = flags.accel
	}
	if cmd.Flags().Changed("lock-path") {
		cfg.Lock.Path = flags.lockPath
	}
	if cmd.Flags().Changed("engine-url") {
		cfg.Engine.BaseURL = flags.engineURL
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
}

func resolveStrategy(flags *rootFlags, cfg *config.Config) (lock.Strategy, error) {
	switch {
	case flags.skipLocked:
		return lock.FailFast(), nil
	case flags.lockTimeout > 0:
		return lock.TimedWait(flags.lockTimeout), nil
	default:
		strategy, err := lock.ParseStrategy(cfg.Lock.Strategy)
		if err != nil {
			return lock.Strategy{}, fmt.Errorf("invalid lock strategy in config: %w", err)
		}
		return strategy, nil
	}
}
