package room

import (
	"sort"
	"time"
)

// Status is the lifecycle state of a room.
type Status string

const (
	// StatusSolo is a freshly created room that has not started playing.
	StatusSolo Status = "SOLO"
	// StatusPlaying is a room whose turns are advancing.
	StatusPlaying Status = "PLAYING"
)

// HistoryLimit bounds the turn summaries kept as generation context.
const HistoryLimit = 12

// DefaultHP is the starting health for a profile that does not set one.
const DefaultHP = 100

// Stats holds the public, engine-visible portion of a player profile.
// HP is the only field the engine ever mutates.
type Stats struct {
	HP int `json:"hp"`
}

// Profile describes a player. Private fields are opaque to the engine
// and only forwarded as generation context.
type Profile struct {
	Name    string            `json:"name"`
	Role    string            `json:"role"`
	Public  Stats             `json:"public"`
	Private map[string]string `json:"private,omitempty"`
}

// PlayerState is the per-player slice of a room document.
type PlayerState struct {
	Joined  bool    `json:"joined"`
	Choice  string  `json:"choice,omitempty"`
	Dead    bool    `json:"dead,omitempty"`
	Profile Profile `json:"profile"`
}

// Room is one running game instance, persisted as a whole document.
type Room struct {
	ID                  string                             `json:"id"`
	Status              Status                             `json:"status"`
	Turn                int                                `json:"turn"`
	LastSceneChangeTurn int                                `json:"last_scene_change_turn"`
	NextSceneChangeTurn int                                `json:"next_scene_change_turn"` // 0 means unset
	HPEventOccurred     bool                               `json:"hp_event_occurred"`
	Players             map[string]*PlayerState            `json:"players"`
	CurrentScene        map[string]*SceneView              `json:"current_scene,omitempty"`
	History             []string                           `json:"history,omitempty"`
	Prebuffer           map[string]map[string]*TurnResult  `json:"prebuffer,omitempty"`
	CreatedAt           time.Time                          `json:"created_at"`
	UpdatedAt           time.Time                          `json:"updated_at"`
}

// NewRoom creates a room in SOLO state with all counters zeroed.
func NewRoom(id string) *Room {
	return &Room{
		ID:        id,
		Status:    StatusSolo,
		Players:   make(map[string]*PlayerState),
		CreatedAt: time.Now(),
	}
}

// AddPlayer joins a player to the room. Rejoining is idempotent and
// preserves existing state.
func (r *Room) AddPlayer(playerID string, profile Profile) {
	if r.Players == nil {
		r.Players = make(map[string]*PlayerState)
	}
	if p, ok := r.Players[playerID]; ok {
		p.Joined = true
		return
	}
	r.Players[playerID] = &PlayerState{
		Joined:  true,
		Profile: profile,
	}
}

// LivingPlayerIDs returns the IDs of joined, living players in sorted
// order so callers behave deterministically.
func (r *Room) LivingPlayerIDs() []string {
	ids := make([]string, 0, len(r.Players))
	for id, p := range r.Players {
		if p.Joined && !p.Dead {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// AllChoicesIn reports whether every living player has a pending choice.
// A room with no living players is never ready.
func (r *Room) AllChoicesIn() bool {
	living := r.LivingPlayerIDs()
	if len(living) == 0 {
		return false
	}
	for _, id := range living {
		if r.Players[id].Choice == "" {
			return false
		}
	}
	return true
}

// ClearChoices wipes every player's pending choice after a turn commits.
func (r *Room) ClearChoices() {
	for _, p := range r.Players {
		p.Choice = ""
	}
}

// ApplyHPChange applies a signed delta to a player's hp, clamped at zero.
// Reaching zero marks the player dead permanently. Deltas against an
// already-dead player are no-ops. It returns the resulting hp and whether
// the player died on this application.
func (r *Room) ApplyHPChange(playerID string, delta int) (hp int, died bool) {
	p, ok := r.Players[playerID]
	if !ok {
		return 0, false
	}
	if p.Dead {
		return p.Profile.Public.HP, false
	}
	hp = p.Profile.Public.HP + delta
	if hp <= 0 {
		hp = 0
		p.Dead = true
		died = true
	}
	p.Profile.Public.HP = hp
	return hp, died
}

// AppendHistory appends a turn summary, trimming the oldest entries
// beyond HistoryLimit.
func (r *Room) AppendHistory(entry string) {
	r.History = append(r.History, entry)
	if len(r.History) > HistoryLimit {
		r.History = r.History[len(r.History)-HistoryLimit:]
	}
}

// RecentHistory returns up to n of the newest history entries.
func (r *Room) RecentHistory(n int) []string {
	if n <= 0 || len(r.History) <= n {
		return r.History
	}
	return r.History[len(r.History)-n:]
}
