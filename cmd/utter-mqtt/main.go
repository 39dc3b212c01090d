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

	"github.com/utterhq/utter/pkg/bridge"
	"github.com/utterhq/utter/pkg/config"
	"github.com/utterhq/utter/pkg/logger"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type bridgeFlags struct {
	server      string
	topic       string
	port        int
	username    string
	password    string
	accel       bool
	skipLocked  bool
	lockTimeout time.Duration
	noLock      bool
	output      string
	speakBin    string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	flags := &bridgeFlags{}

	cmd := &cobra.Command{
		Use:   "utter-mqtt",
		Short: "MQTT to TTS bridge",
		Long: `utter-mqtt listens to an MQTT topic and speaks every incoming
message by invoking utter as a subprocess. Runs until interrupted.`,
		Version: version,
		Example: `  utter-mqtt -s mqtt.example.com -t tts/speak
  utter-mqtt -s localhost -t home/tts -u user -P pass
  utter-mqtt -s mqtt.local -t alerts --accel --skip-if-locked`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBridge(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.server, "server", "s", "", "MQTT broker address")
	cmd.Flags().StringVarP(&flags.topic, "topic", "t", "", "MQTT topic to subscribe")
	cmd.Flags().IntVar(&flags.port, "port", 0, "MQTT broker port")
	cmd.Flags().StringVarP(&flags.username, "username", "u", "", "MQTT username")
	cmd.Flags().StringVarP(&flags.password, "password", "P", "", "MQTT password")
	cmd.Flags().BoolVar(&flags.accel, "accel", false, "Enable hardware acceleration for speak runs")
	cmd.Flags().BoolVar(&flags.skipLocked, "skip-if-locked", false, "Skip messages while another instance is speaking")
	cmd.Flags().DurationVar(&flags.lockTimeout, "lock-timeout", 0, "Lock wait timeout for speak runs")
	cmd.Flags().BoolVar(&flags.noLock, "no-lock", false, "Disable locking for speak runs")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output WAV file path for speak runs")
	cmd.Flags().StringVar(&flags.speakBin, "speak-bin", "", "Path to the utter binary (default: utter on PATH)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	return cmd
}

func runBridge(cmd *cobra.Command, flags *bridgeFlags) error {
	cfg, err := config.LoadConfig(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("server") {
		cfg.MQTT.Broker = flags.server
	}
	if cmd.Flags().Changed("topic") {
		cfg.MQTT.Topic = flags.topic
	}
	if cmd.Flags().Changed("port") {
		cfg.MQTT.Port = flags.port
	}
	if cmd.Flags().Changed("username") {
		cfg.MQTT.Username = flags.username
		cfg.MQTT.Password = flags.password
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}

	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("MQTT broker is required (--server or config)")
	}
	if cfg.MQTT.Topic == "" {
		return fmt.Errorf("MQTT topic is required (--topic or config)")
	}

	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	if cfg.Log.File != "" {
		if err := logger.EnableFileLogging(cfg.Log.File); err != nil {
			logger.WarnCF("main", "File logging unavailable", map[string]any{"error": err.Error()})
		}
	}

	runner := &bridge.ExecRunner{
		Binary: flags.speakBin,
		Args:   speakArgs(flags),
	}

	b := bridge.New(bridge.Options{
		Broker:   cfg.MQTT.Broker,
		Port:     cfg.MQTT.Port,
		Topic:    cfg.MQTT.Topic,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
	}, runner)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return b.Run(ctx)
}

// speakArgs builds the flags forwarded to every speak subprocess.
func speakArgs(flags *bridgeFlags) []string {
	var args []string
	if flags.accel {
		args = append(args, "--accel")
	}
	if flags.skipLocked {
		args = append(args, "--skip-if-locked")
	}
	if flags.lockTimeout > 0 {
		args = append(args, "--lock-timeout", flags.lockTimeout.String())
	}
	if flags.noLock {
		args = append(args, "--no-lock")
	}
	if flags.output != "" {
		args = append(args, "--output", flags.output)
	}
	return args
}
