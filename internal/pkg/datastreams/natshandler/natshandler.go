// Package natshandler streams records, frontier points and scenario rows to
// a NATS server as JSON, so remote dashboards can follow a long sweep.
package natshandler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ohowland/energyhub/internal/pkg/msg"
	"github.com/rs/zerolog"

	nats "github.com/nats-io/nats.go"
)

// Config locates the server and names the subject prefix.
type Config struct {
	Server string `json:"Server" mapstructure:"server"`
	Prefix string `json:"Prefix" mapstructure:"prefix"`
}

// Conn is the part of *nats.Conn the handler publishes through.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Handler subscribes to the hub topics and forwards each message to NATS.
type Handler struct {
	pid    uuid.UUID
	inbox  <-chan msg.Msg
	system msg.Publisher
	config Config
}

// New subscribes a Handler to every topic of system.
func New(cfg Config, system msg.Publisher) (Handler, error) {
	if cfg.Server == "" {
		cfg.Server = nats.DefaultURL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "energyhub"
	}
	pid := uuid.New()
	inbox, err := msg.SubscribeAll(system, pid, msg.Topics...)
	if err != nil {
		return Handler{}, err
	}
	return Handler{
		pid:    pid,
		inbox:  inbox,
		system: system,
		config: cfg,
	}, nil
}

// PID is a getter for the handler PID
func (h Handler) PID() uuid.UUID {
	return h.pid
}

// Stop unsubscribes the handler. Process returns once the inbox is drained.
func (h Handler) Stop() {
	h.system.Unsubscribe(h.pid)
}

// Subject is the NATS subject a message is published on:
// <prefix>.<sender pid>.<topic>.
func (h Handler) Subject(m msg.Msg) string {
	return fmt.Sprintf("%s.%s.%s", h.config.Prefix, m.PID(), m.Topic())
}

// Process connects to the configured server and forwards messages until
// the handler is stopped or ctx is done.
func (h Handler) Process(ctx context.Context) error {
	nc, err := nats.Connect(h.config.Server, nats.Name("energyhub"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	if err := h.Run(ctx, nc); err != nil {
		return err
	}
	return nc.Flush()
}

// Run forwards messages through nc until the inbox closes or ctx is done.
// Messages that cannot be encoded or published are logged and skipped.
func (h Handler) Run(ctx context.Context, nc Conn) error {
	logger := zerolog.Ctx(ctx).With().Str("component", "nats").Logger()
	logger.Info().Str("server", h.config.Server).Msg("process started")
	for {
		select {
		case m, ok := <-h.inbox:
			if !ok {
				logger.Info().Msg("process shutdown")
				return nil
			}
			data, err := json.Marshal(m.Payload())
			if err != nil {
				logger.Error().Err(err).Stringer("topic", m.Topic()).Msg("encode failed")
				continue
			}
			if err := nc.Publish(h.Subject(m), data); err != nil {
				logger.Error().Err(err).Msg("unable to publish to nats server")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
