// Package prompts assembles the structured generation prompt sent to the
// content provider. The provider is always asked to echo back the exact
// player identifiers it is given; the normalizer depends on that contract.
package prompts

import (
	"fmt"
	"strings"

	"github.com/jmswank/neural-link/pkg/room"
)

const systemPrompt = `ROLE: You are the game master of a multiplayer cyberpunk text adventure.
STYLE: high tech, low life, neon, tense, concrete.
PERSPECTIVE: write an independent second-person view for EVERY player id listed below. Players witness the same event from different angles; their texts must differ.
FORMAT: respond with JSON ONLY, no prose, no markdown fences.`

const outputContract = `OUTPUT JSON SHAPE:
{
  "summary": "one sentence recap of this turn's shared event",
  "views": {
    "<player id, verbatim from the player list>": {
      "image_keyword": "one English visual noun",
      "stage_1_env": "environment description, ~100 words",
      "stage_2_event": "sudden event, ~80 words",
      "stage_3_analysis": "consequences and stakes, ~50 words",
      "hp_change": 0,
      "choices": [{"text": "option A"}, {"text": "option B"}]
    }
  }
}
Use every player id exactly as given. Do not invent ids.`

// Builder constructs a generation prompt using a fluent interface,
// keeping prompt assembly out of the turn resolver.
type Builder struct {
	history     []string
	players     map[string]*room.PlayerState
	order       []string
	sceneChange bool
	hpEvent     bool
	opening     bool
}

// New creates an empty prompt builder.
func New() *Builder {
	return &Builder{}
}

// WithHistory sets the recent-turn summaries used as compressed context.
func (b *Builder) WithHistory(history []string) *Builder {
	b.history = history
	return b
}

// WithPlayers sets the living players, in the given id order. Profile
// public and private fields are forwarded as context; pending choices
// become the turn's declared actions.
func (b *Builder) WithPlayers(order []string, players map[string]*room.PlayerState) *Builder {
	b.order = order
	b.players = players
	return b
}

// WithPacing sets the scheduler's explicit flags for this turn.
func (b *Builder) WithPacing(sceneChange, hpEvent bool) *Builder {
	b.sceneChange = sceneChange
	b.hpEvent = hpEvent
	return b
}

// AsOpening marks the prompt as the game-start turn.
func (b *Builder) AsOpening() *Builder {
	b.opening = true
	return b
}

// Build renders the final prompt string.
func (b *Builder) Build() (string, error) {
	if len(b.order) == 0 {
		return "", fmt.Errorf("at least one player is required")
	}

	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n\n")

	if b.opening {
		sb.WriteString("GAME START. Generate the first scene.\n")
	} else if len(b.history) > 0 {
		sb.WriteString("[History]\n")
		for _, h := range b.history {
			sb.WriteString(h)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n[Players]\n")
	for _, id := range b.order {
		p, ok := b.players[id]
		if !ok {
			return "", fmt.Errorf("player %s missing from state", id)
		}
		sb.WriteString(fmt.Sprintf("- id=%s name=%q role=%q hp=%d", id, p.Profile.Name, p.Profile.Role, p.Profile.Public.HP))
		for k, v := range p.Profile.Private {
			sb.WriteString(fmt.Sprintf(" %s=%q", k, v))
		}
		if !b.opening && p.Choice != "" {
			sb.WriteString(fmt.Sprintf(" chose=%q", p.Choice))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n[Directives]\n")
	if b.sceneChange {
		sb.WriteString("- SCENE CHANGE: describe a fresh location in stage_1_env for every player.\n")
	} else {
		sb.WriteString("- NO scene change: set stage_1_env to null; continue inside the current location.\n")
	}
	if b.hpEvent {
		sb.WriteString("- HEALTH EVENT: at least one player's hp_change must be non-zero this turn.\n")
	} else {
		sb.WriteString("- NO health event: every hp_change must be 0.\n")
	}

	sb.WriteString("\n")
	sb.WriteString(outputContract)
	return sb.String(), nil
}
