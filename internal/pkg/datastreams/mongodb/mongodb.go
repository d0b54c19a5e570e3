// Package mongodb stores every published record, frontier point and
// scenario row as a document, one collection per topic.
package mongodb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/energyhub/internal/pkg/msg"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config locates the database.
type Config struct {
	URI      string `json:"URI" mapstructure:"uri"`
	Database string `json:"Database" mapstructure:"database"`
}

// Inserter is the part of *mongo.Collection the handler writes through.
type Inserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// Handler subscribes to the hub topics and writes each message to MongoDB.
type Handler struct {
	pid    uuid.UUID
	inbox  <-chan msg.Msg
	system msg.Publisher
	config Config
}

// New subscribes a Handler to every topic of system.
func New(cfg Config, system msg.Publisher) (Handler, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "energyhub"
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

// Collection names the collection a topic is stored in.
func Collection(t msg.Topic) string {
	return t.String() + "s"
}

func document(m msg.Msg, at time.Time) bson.D {
	//TODO: PID should be written as a binary of subtype 0x04 (UUID standard).
	// currently written as a string.
	return bson.D{
		{Key: "pid", Value: m.PID().String()},
		{Key: "topic", Value: m.Topic().String()},
		{Key: "stored", Value: at},
		{Key: "data", Value: m.Payload()},
	}
}

// Process connects to the configured database and stores messages until
// the handler is stopped or ctx is done.
func (h Handler) Process(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(h.config.URI))
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	db := client.Database(h.config.Database)
	return h.Run(ctx, func(name string) Inserter {
		return db.Collection(name)
	})
}

// Run stores messages through collection until the inbox closes or ctx is
// done. A failed insert is logged and skipped.
func (h Handler) Run(ctx context.Context, collection func(name string) Inserter) error {
	logger := zerolog.Ctx(ctx).With().Str("component", "mongodb").Logger()
	logger.Info().Str("database", h.config.Database).Msg("process started")
	for {
		select {
		case m, ok := <-h.inbox:
			if !ok {
				logger.Info().Msg("process shutdown")
				return nil
			}
			name := Collection(m.Topic())
			if _, err := collection(name).InsertOne(ctx, document(m, time.Now().UTC())); err != nil {
				logger.Error().Err(err).Str("collection", name).Msg("insert failed")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
