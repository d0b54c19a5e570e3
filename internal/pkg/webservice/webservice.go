// Package webservice serves the results published during a run over HTTP.
// Records, frontier points and scenario rows are collected from the message
// bus into memory and exposed as JSON.
package webservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/ohowland/energyhub/internal/pkg/hub"
	"github.com/ohowland/energyhub/internal/pkg/msg"
	"github.com/ohowland/energyhub/internal/pkg/pareto"
	"github.com/ohowland/energyhub/internal/pkg/scenario"
	"github.com/rs/zerolog"
)

const contentType = "application/json; charset=UTF-8"

// Service collects published results and serves them.
type Service struct {
	mux    *sync.RWMutex
	pid    uuid.UUID
	inbox  <-chan msg.Msg
	system msg.Publisher

	records   []hub.Record
	byID      map[uuid.UUID]int
	points    map[int]pareto.Point
	scenarios map[int]scenario.Row
}

// New subscribes a Service to every topic of system.
func New(system msg.Publisher) (*Service, error) {
	pid := uuid.New()
	inbox, err := msg.SubscribeAll(system, pid, msg.Topics...)
	if err != nil {
		return nil, err
	}
	return &Service{
		mux:       &sync.RWMutex{},
		pid:       pid,
		inbox:     inbox,
		system:    system,
		byID:      make(map[uuid.UUID]int),
		points:    make(map[int]pareto.Point),
		scenarios: make(map[int]scenario.Row),
	}, nil
}

// PID is a getter for the service PID
func (s *Service) PID() uuid.UUID {
	return s.pid
}

// Stop unsubscribes the service. Run returns once the inbox is drained.
func (s *Service) Stop() {
	s.system.Unsubscribe(s.pid)
}

// Run collects messages until the inbox closes or ctx is done.
func (s *Service) Run(ctx context.Context) error {
	for {
		select {
		case m, ok := <-s.inbox:
			if !ok {
				return nil
			}
			s.collect(m)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// collect stores a payload. A later point or row with the same index
// replaces the earlier one.
func (s *Service) collect(m msg.Msg) {
	s.mux.Lock()
	defer s.mux.Unlock()
	switch p := m.Payload().(type) {
	case hub.Record:
		s.byID[p.ID] = len(s.records)
		s.records = append(s.records, p)
	case pareto.Point:
		s.points[p.Index] = p
	case scenario.Row:
		s.scenarios[p.Index] = p
	}
}

// Router returns the service routes.
func (s *Service) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.BaseHandler).Methods("GET")
	r.HandleFunc("/records", s.RecordsHandler).Methods("GET")
	r.HandleFunc("/records/{id}", s.RecordHandler).Methods("GET")
	r.HandleFunc("/frontier", s.FrontierHandler).Methods("GET")
	r.HandleFunc("/scenarios", s.ScenariosHandler).Methods("GET")
	return r
}

// ListenAndServe collects results and serves them on addr until ctx is done.
func (s *Service) ListenAndServe(ctx context.Context, addr string) error {
	logger := zerolog.Ctx(ctx).With().Str("component", "webservice").Logger()
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("collector stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	logger.Info().Str("addr", addr).Msg("starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", contentType)
	body, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(code)
	w.Write(body)
}

type errorBody struct {
	Error string `json:"error"`
}

// BaseHandler reports how many results have been collected.
func (s *Service) BaseHandler(w http.ResponseWriter, r *http.Request) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	writeJSON(w, http.StatusOK, map[string]int{
		"records":   len(s.records),
		"points":    len(s.points),
		"scenarios": len(s.scenarios),
	})
}

// RecordsHandler lists records in arrival order, without hourly flows.
func (s *Service) RecordsHandler(w http.ResponseWriter, r *http.Request) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	out := make([]hub.Record, len(s.records))
	for i, rec := range s.records {
		rec.Flows = nil
		out[i] = rec
	}
	writeJSON(w, http.StatusOK, out)
}

// RecordHandler returns one record, hourly flows included.
func (s *Service) RecordHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{"malformed UUID: " + err.Error()})
		return
	}
	s.mux.RLock()
	defer s.mux.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{"record not found"})
		return
	}
	writeJSON(w, http.StatusOK, s.records[i])
}

// FrontierHandler returns the collected frontier points by index.
func (s *Service) FrontierHandler(w http.ResponseWriter, r *http.Request) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	out := make([]pareto.Point, 0, len(s.points))
	for _, p := range s.points {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	writeJSON(w, http.StatusOK, out)
}

// ScenariosHandler returns the collected scenario rows by index.
func (s *Service) ScenariosHandler(w http.ResponseWriter, r *http.Request) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	out := make([]scenario.Row, 0, len(s.scenarios))
	for _, row := range s.scenarios {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	writeJSON(w, http.StatusOK, out)
}
