package room

// Choice is one forward option offered to a player.
type Choice struct {
	Text string `json:"text"`
}

// SceneView is one player's rendering of a shared turn event.
// Field names match the client wire format.
type SceneView struct {
	Environment  *string  `json:"stage_1_env"` // nil outside scene-change turns
	Event        string   `json:"stage_2_event"`
	Analysis     string   `json:"stage_3_analysis"`
	ImageKeyword string   `json:"image_keyword"`
	HPChange     int      `json:"hp_change"`
	Choices      []Choice `json:"choices"`
	IsDead       bool     `json:"is_dead,omitempty"`
}

// TurnResult is the unit produced by one generation: every player's view
// of the turn plus a one-line summary for the history log. ForTurn pins
// the room turn counter the result was computed against; a prebuffered
// result is only valid while the counter still matches.
type TurnResult struct {
	Views         map[string]*SceneView `json:"views"`
	Summary       string                `json:"summary"`
	IsSceneChange bool                  `json:"is_scene_change"`
	IsHPEvent     bool                  `json:"is_hp_event"`
	ForTurn       int                   `json:"for_turn"`
}

// SetPrebuffer stores a precomputed result for (player, choice label).
func (r *Room) SetPrebuffer(playerID, label string, result *TurnResult) {
	if r.Prebuffer == nil {
		r.Prebuffer = make(map[string]map[string]*TurnResult)
	}
	if r.Prebuffer[playerID] == nil {
		r.Prebuffer[playerID] = make(map[string]*TurnResult)
	}
	r.Prebuffer[playerID][label] = result
}

// ConsumePrebuffer removes and returns the precomputed result for
// (player, label) if one exists and was computed for the given turn.
// Consumption is delete-on-read: a stale or missing entry returns nil
// and the entry (if any) is discarded either way.
func (r *Room) ConsumePrebuffer(playerID, label string, turn int) *TurnResult {
	byLabel, ok := r.Prebuffer[playerID]
	if !ok {
		return nil
	}
	result, ok := byLabel[label]
	if !ok {
		return nil
	}
	delete(byLabel, label)
	if len(byLabel) == 0 {
		delete(r.Prebuffer, playerID)
	}
	if result == nil || result.ForTurn != turn {
		return nil
	}
	return result
}

// ClearPrebuffer drops every cached result; called when a turn commits,
// since all entries were computed against the previous counter.
func (r *Room) ClearPrebuffer() {
	r.Prebuffer = nil
}
