// Utter - Single-shot text-to-speech CLI
// License: MIT
//
// Copyright (c) 2026 Utter contributors

// Package bridge subscribes to an MQTT topic and speaks every message
// it receives by invoking the utter binary as a subprocess. The
// subprocess exit codes carry the contention outcome, so a busy
// engine shows up here as "skipped", not as an error.
package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/utterhq/utter/pkg/job"
	"github.com/utterhq/utter/pkg/logger"
)

const disconnectQuiesceMs = 250

// Options configures the MQTT connection.
type Options struct {
	Broker   string
	Port     int
	Topic    string
	Username string
	Password string
}

// Bridge is the MQTT to TTS forwarder.
type Bridge struct {
	opts   Options
	runner Runner
	client mqtt.Client

	// run context, set for the lifetime of Run so message handlers
	// can abort in-flight subprocesses on shutdown.
	ctx context.Context
}

func New(opts Options, runner Runner) *Bridge {
	return &Bridge{
		opts:   opts,
		runner: runner,
	}
}

// Run connects, subscribes, and blocks until ctx is cancelled. Paho
// delivers messages to the handler in order, so at most one speak
// subprocess runs per bridge at a time.
func (b *Bridge) Run(ctx context.Context) error {
	b.ctx = ctx

	clientOpts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", b.opts.Broker, b.opts.Port)).
		SetClientID("utter-mqtt-" + uuid.NewString()[:8]).
		SetKeepAlive(60 * time.Second).
		SetAutoReconnect(true).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(b.onConnectionLost)

	if b.opts.Username != "" {
		clientOpts.SetUsername(b.opts.Username)
		clientOpts.SetPassword(b.opts.Password)
	}

	b.client = mqtt.NewClient(clientOpts)

	logger.InfoCF("bridge", "Connecting to MQTT broker", map[string]any{
		"broker": b.opts.Broker,
		"port":   b.opts.Port,
	})

	token := b.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to %s:%d: %w", b.opts.Broker, b.opts.Port, err)
	}

	<-ctx.Done()

	logger.InfoC("bridge", "Shutting down")
	b.client.Disconnect(disconnectQuiesceMs)
	return nil
}

func (b *Bridge) onConnect(client mqtt.Client) {
	logger.InfoCF("bridge", "Connected, subscribing", map[string]any{
		"topic": b.opts.Topic,
	})

	token := client.Subscribe(b.opts.Topic, 0, b.onMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		logger.ErrorCF("bridge", "Subscribe failed", map[string]any{
			"topic": b.opts.Topic,
			"error": err.Error(),
		})
	}
}

func (b *Bridge) onConnectionLost(_ mqtt.Client, err error) {
	logger.WarnCF("bridge", "Connection lost", map[string]any{
		"error": err.Error(),
	})
}

func (b *Bridge) onMessage(_ mqtt.Client, msg mqtt.Message) {
	text := strings.TrimSpace(string(msg.Payload()))
	if text == "" {
		return
	}

	msgID := uuid.NewString()
	logger.InfoCF("bridge", "Message received", map[string]any{
		"msg_id":      msgID,
		"topic":       msg.Topic(),
		"text_length": len(text),
	})

	b.speak(msgID, text)
}

func (b *Bridge) speak(msgID, text string) {
	code, stderr, err := b.runner.Speak(b.ctx, text)
	if err != nil {
		logger.ErrorCF("bridge", "Failed to run speak process", map[string]any{
			"msg_id": msgID,
			"error":  err.Error(),
		})
		return
	}

	switch code {
	case job.ExitOK:
		logger.InfoCF("bridge", "Spoken", map[string]any{"msg_id": msgID})
	case job.ExitSkipped:
		logger.InfoCF("bridge", "Skipped, another instance is speaking", map[string]any{"msg_id": msgID})
	case job.ExitTimedOut:
		logger.InfoCF("bridge", "Timed out waiting for the speaker", map[string]any{"msg_id": msgID})
	default:
		logger.ErrorCF("bridge", "Speak process failed", map[string]any{
			"msg_id":    msgID,
			"exit_code": code,
			"stderr":    stderr,
		})
	}
}
