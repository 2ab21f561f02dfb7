package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tm1ddleton/analytics/internal/analytics/dag"
	"github.com/tm1ddleton/analytics/internal/analytics/key"
	"github.com/tm1ddleton/analytics/internal/analytics/push"
	"github.com/tm1ddleton/analytics/internal/analytics/types"
)

// replayRequest is the POST /replay body: the assets to feed, the
// analytic node keys to watch, and the date range to replay.
type replayRequest struct {
	Assets    []string      `json:"assets"`
	Analytics []key.NodeKey `json:"analytics"`
	StartDate string        `json:"start_date"`
	EndDate   string        `json:"end_date"`
}

type replayEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// handleReplay implements POST /replay: it drives a push engine across
// the requested range and streams update/complete/error events over
// Server-Sent Events as the engine's Initialize call replays ticks. No
// progress event is sent.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	var req replayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("replay: malformed request body: %w", err))
		return
	}

	sessionID := uuid.NewString()
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	emit := func(ev replayEvent) {
		payload, _ := json.Marshal(ev.Data)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event, payload)
		flusher.Flush()
	}

	if _, _, err := s.buildSessionWithCallbacks(r.Context(), req, sessionID, emit); err != nil {
		emit(replayEvent{Event: "error", Data: map[string]string{"reason": err.Error()}})
		return
	}

	emit(replayEvent{Event: "complete", Data: map[string]string{"session_id": sessionID}})
}

// buildSessionWithCallbacks wires an update-emitting callback onto every
// watched node before Initialize runs, so the SSE stream sees each tick's
// emissions as Initialize replays them. It reports no progress of its own;
// the caller emits complete or error once replay finishes.
func (s *Server) buildSessionWithCallbacks(ctx context.Context, req replayRequest, sessionID string, emit func(replayEvent)) (*push.Engine, []dag.NodeID, error) {
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, nil, fmt.Errorf("replay: malformed start_date: %w", err)
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return nil, nil, fmt.Errorf("replay: malformed end_date: %w", err)
	}
	rng := key.DateRange{Start: start, End: end}

	sessionGraph := dag.New()
	resolver := dag.NewResolver(sessionGraph, s.registry)

	watched := make([]dag.NodeID, 0, len(req.Analytics))
	for _, k := range req.Analytics {
		if k.Range == nil {
			k.Range = &rng
		}
		id, resolveErr := resolver.Resolve(k)
		if resolveErr != nil {
			return nil, nil, resolveErr
		}
		watched = append(watched, id)
	}

	engine, err := push.New(sessionGraph, s.registry)
	if err != nil {
		return nil, nil, err
	}

	for _, nodeID := range watched {
		id := nodeID
		node, _ := sessionGraph.Node(id)
		engine.RegisterCallback(id, func(nodeID dag.NodeID, output types.Point) {
			emit(replayEvent{Event: "update", Data: map[string]interface{}{
				"session_id": sessionID,
				"node_key":   key.Canonical(node.Key),
				"timestamp":  output.Timestamp.Format("2006-01-02"),
				"value":      output.Value,
			}})
		})
	}

	if err := engine.Initialize(ctx, s.provider, req.Assets, end, end.Sub(start)); err != nil {
		return nil, nil, err
	}

	return engine, watched, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleReplayWS is the supplementary websocket transport for the same
// replay event stream POST /replay serves over SSE.
func (s *Server) handleReplayWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	defer conn.Close()

	var req replayRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(replayEvent{Event: "error", Data: map[string]string{"reason": err.Error()}})
		return
	}

	sessionID := uuid.NewString()
	emit := func(ev replayEvent) {
		_ = conn.WriteJSON(ev)
	}

	_, _, err = s.buildSessionWithCallbacks(r.Context(), req, sessionID, emit)
	if err != nil {
		emit(replayEvent{Event: "error", Data: map[string]string{"reason": err.Error()}})
		return
	}

	emit(replayEvent{Event: "complete", Data: map[string]string{"session_id": sessionID}})
}
