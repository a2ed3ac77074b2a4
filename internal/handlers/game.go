package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jmswank/neural-link/internal/engine"
	"github.com/jmswank/neural-link/pkg/room"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// Action names accepted by the game endpoint.
const (
	ActionCreateRoom  = "CREATE_ROOM"
	ActionJoinRoom    = "JOIN_ROOM"
	ActionStartGame   = "START_GAME"
	ActionMakeMove    = "MAKE_MOVE"
	ActionPreloadTurn = "PRELOAD_TURN"
)

type GameRequest struct {
	Action   string        `json:"action"`
	RoomID   string        `json:"room_id,omitempty"`
	PlayerID string        `json:"player_id,omitempty"`
	Choice   string        `json:"choice,omitempty"`
	Profile  *room.Profile `json:"profile,omitempty"`
}

type GameResponse struct {
	engine.Outcome
	PlayerID string `json:"player_id,omitempty"`
}

// GameHandler dispatches player actions to the turn resolver.
type GameHandler struct {
	resolver *engine.Resolver
	logger   *slog.Logger
}

func NewGameHandler(resolver *engine.Resolver, logger *slog.Logger) *GameHandler {
	return &GameHandler{
		resolver: resolver,
		logger:   logger,
	}
}

// ServeHTTP handles POST /v1/game. Every request carries an action
// token; the resolver's outcome status decides the HTTP code.
func (h *GameHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		writeJSON(w, h.logger, ErrorResponse{Error: "Method not allowed"})
		return
	}

	var req GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid game request body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, h.logger, ErrorResponse{Error: "Invalid request body"})
		return
	}

	// Hosts creating a room may omit their id; one is minted for them.
	if req.PlayerID == "" && req.Action == ActionCreateRoom {
		req.PlayerID = uuid.NewString()
	}
	if req.PlayerID == "" {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, h.logger, ErrorResponse{Error: "player_id is required"})
		return
	}

	var profile room.Profile
	if req.Profile != nil {
		profile = *req.Profile
	}

	var (
		outcome *engine.Outcome
		err     error
	)
	switch req.Action {
	case ActionCreateRoom:
		outcome, err = h.resolver.CreateRoom(r.Context(), req.PlayerID, profile)
	case ActionJoinRoom:
		outcome, err = h.resolver.JoinRoom(r.Context(), req.RoomID, req.PlayerID, profile)
	case ActionStartGame:
		outcome, err = h.resolver.StartGame(r.Context(), req.RoomID, req.PlayerID)
	case ActionMakeMove:
		if req.Choice == "" {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, h.logger, ErrorResponse{Error: "choice is required for MAKE_MOVE"})
			return
		}
		outcome, err = h.resolver.SubmitChoice(r.Context(), req.RoomID, req.PlayerID, req.Choice)
	case ActionPreloadTurn:
		outcome, err = h.resolver.PreloadTurn(r.Context(), req.RoomID, req.PlayerID)
	default:
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, h.logger, ErrorResponse{Error: "Unknown action: " + req.Action})
		return
	}

	if err != nil {
		h.logger.Error("Action failed", "action", req.Action, "room_id", req.RoomID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, h.logger, ErrorResponse{Error: "Internal server error"})
		return
	}

	w.WriteHeader(statusCode(outcome.Status))
	writeJSON(w, h.logger, GameResponse{Outcome: *outcome, PlayerID: req.PlayerID})
}

// RoomHandler serves room state reads for polling clients.
type RoomHandler struct {
	resolver *engine.Resolver
	logger   *slog.Logger
}

func NewRoomHandler(resolver *engine.Resolver, logger *slog.Logger) *RoomHandler {
	return &RoomHandler{
		resolver: resolver,
		logger:   logger,
	}
}

// ServeHTTP handles GET /v1/rooms/{id}.
func (h *RoomHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		writeJSON(w, h.logger, ErrorResponse{Error: "Method not allowed"})
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/rooms"), "/")
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, h.logger, ErrorResponse{Error: "Room ID is required"})
		return
	}

	outcome, err := h.resolver.GetRoom(r.Context(), id)
	if err != nil {
		h.logger.Error("Room read failed", "room_id", id, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, h.logger, ErrorResponse{Error: "Internal server error"})
		return
	}

	w.WriteHeader(statusCode(outcome.Status))
	writeJSON(w, h.logger, outcome)
}

func statusCode(status string) int {
	switch status {
	case engine.StatusNotFound:
		return http.StatusNotFound
	case engine.StatusQuotaExceeded:
		return http.StatusTooManyRequests
	case engine.StatusInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}
