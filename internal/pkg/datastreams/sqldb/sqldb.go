// Package sqldb keeps a relational summary of every record, frontier point
// and scenario row in MySQL. The full payload is stored alongside as JSON.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/energyhub/internal/pkg/hub"
	"github.com/ohowland/energyhub/internal/pkg/msg"
	"github.com/ohowland/energyhub/internal/pkg/pareto"
	"github.com/ohowland/energyhub/internal/pkg/scenario"
	"github.com/ohowland/energyhub/internal/pkg/solver"
	"github.com/rs/zerolog"

	"github.com/go-sql-driver/mysql"
)

const writeTimeout = time.Second

// Config locates the database.
type Config struct {
	Server   string `json:"Server" mapstructure:"server"`
	Port     int    `json:"Port" mapstructure:"port"`
	Username string `json:"Username" mapstructure:"username"`
	Password string `json:"Password" mapstructure:"password"`
	Database string `json:"Database" mapstructure:"database"`
}

// Handler subscribes to the hub topics and writes one row per message.
type Handler struct {
	pid    uuid.UUID
	inbox  <-chan msg.Msg
	system msg.Publisher
	config Config
}

// New subscribes a Handler to every topic of system.
func New(cfg Config, system msg.Publisher) (Handler, error) {
	if cfg.Server == "" {
		cfg.Server = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 3306
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

// DSN is the driver connection string for the configured database.
func (h Handler) DSN() string {
	c := mysql.NewConfig()
	c.User = h.config.Username
	c.Passwd = h.config.Password
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", h.config.Server, h.config.Port)
	c.DBName = h.config.Database
	c.ParseTime = true
	return c.FormatDSN()
}

// DB opens the configured database.
func (h Handler) DB() (*sql.DB, error) {
	return sql.Open("mysql", h.DSN())
}

// Process opens the database and writes messages until the handler is
// stopped or ctx is done.
func (h Handler) Process(ctx context.Context) error {
	db, err := h.DB()
	if err != nil {
		return err
	}
	defer db.Close()
	return h.Run(ctx, db)
}

// Run creates the results table if needed and writes messages to db until
// the inbox closes or ctx is done. A failed write is logged and skipped.
func (h Handler) Run(ctx context.Context, db *sql.DB) error {
	logger := zerolog.Ctx(ctx).With().Str("component", "sqldb").Logger()
	if err := initDBTables(ctx, db); err != nil {
		return fmt.Errorf("init tables: %w", err)
	}
	logger.Info().Str("database", h.config.Database).Msg("process started")
	for {
		select {
		case m, ok := <-h.inbox:
			if !ok {
				logger.Info().Msg("process shutdown")
				return nil
			}
			e, err := entryOf(m)
			if err != nil {
				logger.Error().Err(err).Stringer("topic", m.Topic()).Msg("encode failed")
				continue
			}
			if err := insertRow(ctx, db, e); err != nil {
				logger.Error().Err(err).Str("id", e.id).Msg("error updating db")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

const createResults = `CREATE TABLE IF NOT EXISTS results(
	id VARCHAR(36) PRIMARY KEY,
	hub VARCHAR(36) NOT NULL,
	topic VARCHAR(16) NOT NULL,
	label VARCHAR(64),
	status VARCHAR(16) NOT NULL,
	cost DOUBLE,
	emissions DOUBLE,
	jobs DOUBLE,
	investment DOUBLE,
	payload JSON,
	created DATETIME(6) NOT NULL)`

const insertResult = `INSERT INTO results
	(id, hub, topic, label, status, cost, emissions, jobs, investment, payload, created)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func initDBTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, createResults)
	return err
}

// entry is one row of the results table.
type entry struct {
	id         string
	hub        string
	topic      string
	label      string
	status     string
	cost       float64
	emissions  float64
	jobs       float64
	investment float64
	payload    []byte
	created    time.Time
}

func fromRecord(e *entry, r hub.Record) {
	e.cost, e.emissions, e.jobs, e.investment = r.Cost, r.Emissions, r.Jobs, r.Investment
}

// entryOf summarizes a message payload. Points and rows that did not solve
// carry zero values and their status.
func entryOf(m msg.Msg) (entry, error) {
	e := entry{
		id:      uuid.New().String(),
		hub:     m.PID().String(),
		topic:   m.Topic().String(),
		status:  solver.Optimal.String(),
		created: time.Now().UTC(),
	}
	switch p := m.Payload().(type) {
	case hub.Record:
		e.id = p.ID.String()
		e.hub = p.Hub.String()
		e.label = p.Objective.String()
		e.created = p.Created
		fromRecord(&e, p)
	case pareto.Point:
		e.label = fmt.Sprintf("%s eta=%.3f", p.Kind, p.Eta)
		e.status = p.Status.String()
		if p.Record != nil {
			fromRecord(&e, *p.Record)
		}
	case scenario.Row:
		e.label = p.Name
		e.status = p.Status.String()
		e.cost, e.emissions, e.jobs, e.investment = p.Cost, p.Emissions, p.Jobs, p.Investment
	default:
		return entry{}, fmt.Errorf("unsupported payload %T", p)
	}
	payload, err := json.Marshal(m.Payload())
	if err != nil {
		return entry{}, err
	}
	e.payload = payload
	return e, nil
}

func insertRow(ctx context.Context, db *sql.DB, e entry) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := db.ExecContext(ctx, insertResult,
		e.id, e.hub, e.topic, e.label, e.status,
		e.cost, e.emissions, e.jobs, e.investment,
		e.payload, e.created)
	return err
}
