package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jmswank/neural-link/pkg/pacing"
	"github.com/jmswank/neural-link/pkg/prompts"
	"github.com/jmswank/neural-link/pkg/room"
)

// Precompute speculatively generates the next turn for each of the
// player's currently offered choice labels and stores the results in
// the room's prebuffer. The pacing decision is computed once and shared
// by both branches; pacing depends only on room counters, never on the
// choice taken.
//
// Precomputation is discardable: a failed branch is simply omitted, and
// results are thrown away if the room's turn counter moved while they
// were being generated. A missing prebuffer entry is only ever a cache
// miss for the consumer.
func (r *Resolver) Precompute(ctx context.Context, roomID, playerID string) error {
	rm, err := r.storage.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if rm.Status != room.StatusPlaying {
		return nil
	}
	p, ok := rm.Players[playerID]
	if !ok || p.Dead {
		return nil
	}
	view, ok := rm.CurrentScene[playerID]
	if !ok || len(view.Choices) == 0 {
		return nil
	}

	turn := rm.Turn
	living := rm.LivingPlayerIDs()
	d := pacing.Decide(turn, rm.NextSceneChangeTurn, rm.HPEventOccurred, r.rng)

	type branch struct {
		label  string
		prompt string
	}
	branches := make([]branch, 0, len(view.Choices))
	for _, c := range view.Choices {
		if err := r.gate.Admit(ctx); err != nil {
			if errors.Is(err, ErrQuotaExceeded) && len(branches) > 0 {
				// Partial speculation is still useful.
				break
			}
			return err
		}

		p.Choice = c.Text
		prompt, err := prompts.New().
			WithHistory(rm.History).
			WithPlayers(living, rm.Players).
			WithPacing(d.IsSceneChange, d.IsHPEvent).
			Build()
		p.Choice = ""
		if err != nil {
			return fmt.Errorf("failed to build precompute prompt: %w", err)
		}
		branches = append(branches, branch{label: c.Text, prompt: prompt})
	}

	results := make([]*room.TurnResult, len(branches))
	var wg sync.WaitGroup
	for i := range branches {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			gctx, cancel := context.WithTimeout(ctx, r.llmTimeout)
			defer cancel()

			raw, err := r.llm.Generate(gctx, branches[i].prompt)
			if err != nil {
				r.logger.Debug("Precompute branch failed", "room_id", roomID, "player_id", playerID, "label", branches[i].label, "error", err)
				return
			}
			results[i] = r.norm.Normalize(raw, living, d)
		}(i)
	}
	wg.Wait()

	// Store against a fresh read so a turn that committed meanwhile
	// invalidates everything computed here.
	fresh, err := r.storage.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if fresh.Turn != turn {
		r.logger.Debug("Discarding stale precompute", "room_id", roomID, "player_id", playerID, "computed_for_turn", turn, "actual_turn", fresh.Turn)
		return nil
	}

	stored := 0
	for i, result := range results {
		if result == nil {
			continue
		}
		result.ForTurn = turn
		fresh.SetPrebuffer(playerID, branches[i].label, result)
		stored++
	}
	if stored == 0 {
		return nil
	}

	if err := r.storage.PutRoom(ctx, fresh); err != nil {
		return fmt.Errorf("failed to persist prebuffer: %w", err)
	}

	r.logger.Debug("Prebuffer populated", "room_id", roomID, "player_id", playerID, "turn", turn, "branches", stored)
	return nil
}
