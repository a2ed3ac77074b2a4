// Package engine implements the turn-resolution core: readiness
// gating, pacing, generation, normalization, reconciliation and the
// speculative prebuffer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/jmswank/neural-link/internal/services"
	"github.com/jmswank/neural-link/pkg/pacing"
	"github.com/jmswank/neural-link/pkg/prompts"
	"github.com/jmswank/neural-link/pkg/room"
)

const (
	// DefaultLLMTimeout bounds a single provider call.
	DefaultLLMTimeout = 30 * time.Second

	// roomCodeAttempts bounds the retry loop for a free 4-digit code.
	roomCodeAttempts = 20
)

// lockedRand makes a rand.Rand safe for the background precompute
// goroutines that share the resolver's randomness.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// Resolver orchestrates inbound player actions against the room store
// and the generation provider. One invocation runs per action; races on
// the same room are resolved by re-validating the turn counter before
// persisting.
type Resolver struct {
	storage    services.Storage
	llm        services.LLMService
	gate       *AdmissionGate
	norm       *Normalizer
	logger     *slog.Logger
	rng        pacing.Source
	llmTimeout time.Duration

	bg sync.WaitGroup
}

// NewResolver creates a resolver with a time-seeded randomness source.
func NewResolver(storage services.Storage, llm services.LLMService, gate *AdmissionGate, logger *slog.Logger, llmTimeout time.Duration) *Resolver {
	if llmTimeout <= 0 {
		llmTimeout = DefaultLLMTimeout
	}
	rng := &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
	return &Resolver{
		storage:    storage,
		llm:        llm,
		gate:       gate,
		norm:       NewNormalizer(rng),
		logger:     logger,
		rng:        rng,
		llmTimeout: llmTimeout,
	}
}

// SetRand replaces the randomness source. Intended for deterministic
// tests; not safe once requests are in flight.
func (r *Resolver) SetRand(rnd *rand.Rand) {
	src := &lockedRand{r: rnd}
	r.rng = src
	r.norm = NewNormalizer(src)
}

// Wait blocks until all fire-and-forget precompute work has finished.
func (r *Resolver) Wait() {
	r.bg.Wait()
}

// CreateRoom allocates a free 4-digit room code, creates the room and
// joins the host.
func (r *Resolver) CreateRoom(ctx context.Context, hostID string, profile room.Profile) (*Outcome, error) {
	if profile.Public.HP <= 0 {
		profile.Public.HP = room.DefaultHP
	}

	var rm *room.Room
	for i := 0; i < roomCodeAttempts; i++ {
		code := strconv.Itoa(1000 + r.rng.Intn(9000))
		_, err := r.storage.GetRoom(ctx, code)
		if errors.Is(err, services.ErrRoomNotFound) {
			rm = room.NewRoom(code)
			break
		}
		if err != nil {
			return internalError(err), nil
		}
	}
	if rm == nil {
		return internalError(fmt.Errorf("no free room code after %d attempts", roomCodeAttempts)), nil
	}

	rm.AddPlayer(hostID, profile)
	if err := r.storage.PutRoom(ctx, rm); err != nil {
		return internalError(err), nil
	}

	r.logger.Info("Room created", "room_id", rm.ID, "host_id", hostID)
	return &Outcome{Status: StatusRoomCreated, RoomID: rm.ID, Room: rm}, nil
}

// JoinRoom adds a player to a room that has not started. Rejoining an
// active room is idempotent for existing members.
func (r *Resolver) JoinRoom(ctx context.Context, roomID, playerID string, profile room.Profile) (*Outcome, error) {
	rm, err := r.storage.GetRoom(ctx, roomID)
	if errors.Is(err, services.ErrRoomNotFound) {
		return &Outcome{Status: StatusNotFound, Error: "room not found"}, nil
	}
	if err != nil {
		return internalError(err), nil
	}

	if _, member := rm.Players[playerID]; rm.Status == room.StatusPlaying && !member {
		return &Outcome{Status: StatusNotFound, Error: "game already started"}, nil
	}

	if profile.Public.HP <= 0 {
		profile.Public.HP = room.DefaultHP
	}
	rm.AddPlayer(playerID, profile)
	if err := r.storage.PutRoom(ctx, rm); err != nil {
		return internalError(err), nil
	}

	r.logger.Info("Player joined", "room_id", roomID, "player_id", playerID)
	return &Outcome{Status: StatusJoined, RoomID: roomID, Room: rm}, nil
}

// GetRoom reads current room state for polling clients. The status
// token tells the poller whether turns are advancing yet.
func (r *Resolver) GetRoom(ctx context.Context, roomID string) (*Outcome, error) {
	rm, err := r.storage.GetRoom(ctx, roomID)
	if errors.Is(err, services.ErrRoomNotFound) {
		return &Outcome{Status: StatusNotFound, Error: "room not found"}, nil
	}
	if err != nil {
		return internalError(err), nil
	}

	status := StatusWaiting
	if rm.Status == room.StatusPlaying {
		status = StatusNewTurn
	}
	return &Outcome{Status: status, RoomID: roomID, Room: rm}, nil
}

// StartGame forces the opening turn. Only a joined player may start,
// and only while the room is still in SOLO.
func (r *Resolver) StartGame(ctx context.Context, roomID, playerID string) (*Outcome, error) {
	rm, err := r.storage.GetRoom(ctx, roomID)
	if errors.Is(err, services.ErrRoomNotFound) {
		return &Outcome{Status: StatusNotFound, Error: "room not found"}, nil
	}
	if err != nil {
		return internalError(err), nil
	}

	if rm.Status == room.StatusPlaying {
		return &Outcome{Status: StatusStarted, RoomID: roomID, Room: rm}, nil
	}
	if p, ok := rm.Players[playerID]; !ok || !p.Joined {
		return &Outcome{Status: StatusNotFound, Error: "player not in room"}, nil
	}

	if err := r.gate.Admit(ctx); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			return &Outcome{Status: StatusQuotaExceeded, Error: err.Error()}, nil
		}
		return internalError(err), nil
	}

	living := rm.LivingPlayerIDs()
	d := pacing.Decide(rm.Turn, rm.NextSceneChangeTurn, rm.HPEventOccurred, r.rng)
	result := r.generateTurn(ctx, rm, living, d, true)

	outcome, err := r.commitTurn(ctx, rm, result, true)
	if err != nil {
		return internalError(err), nil
	}
	if outcome.Status == StatusNewTurn {
		outcome.Status = StatusStarted
	}
	return outcome, nil
}

// SubmitChoice records a player's choice and, when it completes the
// readiness set, resolves the turn.
func (r *Resolver) SubmitChoice(ctx context.Context, roomID, playerID, label string) (*Outcome, error) {
	rm, err := r.storage.GetRoom(ctx, roomID)
	if errors.Is(err, services.ErrRoomNotFound) {
		return &Outcome{Status: StatusNotFound, Error: "room not found"}, nil
	}
	if err != nil {
		return internalError(err), nil
	}

	if rm.Status != room.StatusPlaying {
		return &Outcome{Status: StatusWaiting, RoomID: roomID, Room: rm, Error: "game not started"}, nil
	}
	p, ok := rm.Players[playerID]
	if !ok {
		return &Outcome{Status: StatusNotFound, Error: "player not in room"}, nil
	}
	if p.Dead {
		return &Outcome{Status: StatusWaiting, RoomID: roomID, Room: rm}, nil
	}

	p.Choice = label
	if !rm.AllChoicesIn() {
		if err := r.storage.PutRoom(ctx, rm); err != nil {
			return internalError(err), nil
		}
		return &Outcome{Status: StatusWaiting, RoomID: roomID, Room: rm}, nil
	}

	// Last submitter resolves the turn.
	turn := rm.Turn
	living := rm.LivingPlayerIDs()

	result := rm.ConsumePrebuffer(playerID, label, turn)
	if result != nil {
		r.logger.Debug("Prebuffer hit", "room_id", roomID, "player_id", playerID, "turn", turn)
	} else {
		if err := r.gate.Admit(ctx); err != nil {
			if errors.Is(err, ErrQuotaExceeded) {
				return &Outcome{Status: StatusQuotaExceeded, RoomID: roomID, Error: err.Error()}, nil
			}
			return internalError(err), nil
		}
		d := pacing.Decide(turn, rm.NextSceneChangeTurn, rm.HPEventOccurred, r.rng)
		result = r.generateTurn(ctx, rm, living, d, false)
	}

	outcome, err := r.commitTurn(ctx, rm, result, false)
	if err != nil {
		return internalError(err), nil
	}
	return outcome, nil
}

// PreloadTurn triggers speculative precomputation for a player on
// demand, instead of waiting for the post-commit trigger.
func (r *Resolver) PreloadTurn(ctx context.Context, roomID, playerID string) (*Outcome, error) {
	err := r.Precompute(ctx, roomID, playerID)
	switch {
	case errors.Is(err, services.ErrRoomNotFound):
		return &Outcome{Status: StatusNotFound, Error: "room not found"}, nil
	case errors.Is(err, ErrQuotaExceeded):
		return &Outcome{Status: StatusQuotaExceeded, Error: err.Error()}, nil
	case err != nil:
		return internalError(err), nil
	}
	return &Outcome{Status: StatusWaiting, RoomID: roomID}, nil
}

// generateTurn runs prompt build, provider call and normalization.
// Any failure degrades to the fallback result; the turn still commits.
func (r *Resolver) generateTurn(ctx context.Context, rm *room.Room, living []string, d pacing.Decision, opening bool) *room.TurnResult {
	b := prompts.New().
		WithPlayers(living, rm.Players).
		WithPacing(d.IsSceneChange, d.IsHPEvent)
	if opening {
		b.AsOpening()
	} else {
		b.WithHistory(rm.History)
	}

	prompt, err := b.Build()
	if err != nil {
		r.logger.Error("Prompt build failed", "room_id", rm.ID, "error", err)
		return r.norm.Fallback(living, d)
	}

	gctx, cancel := context.WithTimeout(ctx, r.llmTimeout)
	defer cancel()

	raw, err := r.llm.Generate(gctx, prompt)
	if err != nil {
		r.logger.Error("Generation failed", "room_id", rm.ID, "error", err)
		return r.norm.Fallback(living, d)
	}
	return r.norm.Normalize(raw, living, d)
}

// commitTurn re-validates the turn counter against a fresh read,
// reconciles the result into the room and persists it. A counter
// mismatch means another invocation already committed this turn; the
// result is dropped and the fresh state returned.
func (r *Resolver) commitTurn(ctx context.Context, rm *room.Room, result *room.TurnResult, opening bool) (*Outcome, error) {
	fresh, err := r.storage.GetRoom(ctx, rm.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read room before commit: %w", err)
	}
	if fresh.Turn != rm.Turn {
		r.logger.Warn("Dropping duplicate turn commit", "room_id", rm.ID, "expected_turn", rm.Turn, "actual_turn", fresh.Turn)
		return &Outcome{Status: StatusNewTurn, RoomID: rm.ID, Room: fresh}, nil
	}

	r.reconcile(rm, result, opening)

	if err := r.storage.PutRoom(ctx, rm); err != nil {
		return nil, fmt.Errorf("failed to persist room: %w", err)
	}

	r.logger.Info("Turn committed", "room_id", rm.ID, "turn", rm.Turn, "scene_change", result.IsSceneChange, "hp_event", result.IsHPEvent)

	// Speculation for the next turn runs off the request path.
	for _, id := range rm.LivingPlayerIDs() {
		r.spawnPrecompute(rm.ID, id)
	}

	return &Outcome{Status: StatusNewTurn, RoomID: rm.ID, Room: rm}, nil
}

// reconcile applies a turn result to the room: hp deltas with clamping
// and terminal death, choice reset, counter advancement and scene
// bookkeeping.
func (r *Resolver) reconcile(rm *room.Room, result *room.TurnResult, opening bool) {
	turn := rm.Turn

	for id, v := range result.Views {
		if v.HPChange != 0 {
			_, died := rm.ApplyHPChange(id, v.HPChange)
			if died {
				v.IsDead = true
			}
		}
		if p, ok := rm.Players[id]; ok && p.Dead {
			v.IsDead = true
		}
	}

	rm.ClearChoices()
	rm.Turn = turn + 1
	rm.Status = room.StatusPlaying

	if result.IsSceneChange {
		rm.LastSceneChangeTurn = rm.Turn
		rm.NextSceneChangeTurn = pacing.ScheduleNext(turn, r.rng)
		rm.HPEventOccurred = false
	} else if result.IsHPEvent {
		rm.HPEventOccurred = true
	}
	if rm.NextSceneChangeTurn == 0 {
		rm.NextSceneChangeTurn = pacing.ScheduleNext(turn, r.rng)
	}

	rm.CurrentScene = result.Views
	if opening {
		rm.AppendHistory("[opening] " + result.Summary)
	} else {
		rm.AppendHistory("[event] " + result.Summary)
	}

	// Everything cached was computed against the previous counter.
	rm.ClearPrebuffer()
}

func (r *Resolver) spawnPrecompute(roomID, playerID string) {
	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*r.llmTimeout)
		defer cancel()
		if err := r.Precompute(ctx, roomID, playerID); err != nil {
			r.logger.Debug("Precompute skipped", "room_id", roomID, "player_id", playerID, "error", err)
		}
	}()
}

func internalError(err error) *Outcome {
	return &Outcome{Status: StatusInternalError, Error: err.Error()}
}
