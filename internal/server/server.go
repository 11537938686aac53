// Package server exposes a session's channel over HTTP.
//
// Routes:
//
//	POST /agent    AG-UI RunAgentInput in, the run's AG-UI events out as SSE
//	POST /runs     submit a prompt without waiting; 202 on acceptance
//	GET  /events   every event of every run, as AG-UI SSE, until disconnect
//	GET  /history  the conversation ledger as AG-UI messages
//	GET  /health   liveness
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	aguievents "github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/spetersoncode/codison/agui"
	"github.com/spetersoncode/codison/channel"
	"github.com/spetersoncode/codison/event"
	"github.com/spetersoncode/codison/history"
)

// Server serves one channel and its history.
type Server struct {
	channel *channel.Channel
	history *history.History
	logger  zerolog.Logger
	mux     *http.ServeMux
}

// New creates a Server.
func New(ch *channel.Channel, hist *history.History, logger zerolog.Logger) *Server {
	s := &Server{
		channel: ch,
		history: hist,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /agent", s.handleAgent)
	s.mux.HandleFunc("POST /runs", s.handleSubmit)
	s.mux.HandleFunc("GET /events", s.handleEvents)
	s.mux.HandleFunc("GET /history", s.handleHistory)
	s.mux.HandleFunc("GET /health", healthHandler)
	return s
}

// Handler returns the routes wrapped in CORS headers.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.mux)
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info().Msg("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

type submitRequest struct {
	Prompt string `json:"prompt"`
}

type submitResponse struct {
	Status  string `json:"status"`
	Pending int    `json:"pending"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.channel.Submit(channel.RunRequest{Prompt: req.Prompt}); err != nil {
		s.logger.Warn().Err(err).Msg("submit rejected")
		http.Error(w, err.Error(), submitStatus(err))
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{Status: "accepted", Pending: s.channel.Pending()})
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var input agui.RunAgentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.logger.Warn().Err(err).Msg("invalid request body")
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	log := s.logger.With().Str("thread_id", input.ThreadID).Str("request_id", gonanoid.Must()).Logger()

	prompt, err := input.Prompt()
	if err != nil {
		log.Warn().Err(err).Msg("invalid input")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error().Msg("streaming not supported")
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	events, err := s.channel.Stream(r.Context(), prompt)
	if err != nil {
		log.Warn().Err(err).Msg("run rejected")
		http.Error(w, err.Error(), submitStatus(err))
		return
	}

	log.Info().Msg("request started")
	setSSEHeaders(w)

	n, err := s.stream(w, flusher, agui.NewMapper(input.ThreadID), events)
	if err != nil {
		log.Error().Err(err).Int("events_sent", n).Msg("request failed")
		return
	}
	log.Info().
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Int("events_sent", n).
		Msg("request completed")
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sub := s.channel.Subscribe()
	defer sub.Close()

	// Close the subscription when the client leaves so the stream ends.
	go func() {
		<-r.Context().Done()
		sub.Close()
	}()

	setSSEHeaders(w)
	flusher.Flush()

	mapper := agui.NewMapper(r.URL.Query().Get("threadId"))
	if _, err := s.stream(w, flusher, mapper, sub.Events()); err != nil {
		s.logger.Debug().Err(err).Msg("event stream ended")
	}
}

func (s *Server) stream(w http.ResponseWriter, flusher http.Flusher, mapper *agui.Mapper, events <-chan event.Event) (int, error) {
	var n int
	mapped := mapper.MapStream(events)
	for ev := range mapped {
		if err := writeSSE(w, flusher, ev); err != nil {
			// The client is gone; its context ends events, which ends mapped.
			for range mapped {
			}
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, agui.FromMessages(s.history.Messages()))
}

func submitStatus(err error) int {
	switch {
	case errors.Is(err, channel.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, channel.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, channel.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// writeSSE writes an AG-UI event in SSE format.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev aguievents.Event) error {
	data, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type(), data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	flusher.Flush()
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// corsMiddleware adds CORS headers for cross-origin frontend requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
