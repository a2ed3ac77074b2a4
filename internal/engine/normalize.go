package engine

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/jmswank/neural-link/pkg/pacing"
	"github.com/jmswank/neural-link/pkg/room"
)

const (
	// DefaultImageKeyword is the mood keyword used when the provider
	// omits one.
	DefaultImageKeyword = "cyberpunk"

	// ForcedHPMagnitude is the hp delta synthesized when a mandated
	// health event came back with all-zero deltas.
	ForcedHPMagnitude = 10

	forcedDamageClause = " A stray arc of feedback bites through your interface."
	forcedHealClause   = " A medpatch subroutine kicks in and knits you back together."

	fallbackEvent    = "Your neural link flickers and the feed cuts out. Static floods the channel."
	fallbackAnalysis = "The connection is unstable. Nothing has changed on the other side yet."
	fallbackSummary  = "The neural link was interrupted."
)

var defaultChoices = []room.Choice{
	{Text: "Press on"},
	{Text: "Hold position"},
}

var fallbackChoices = []room.Choice{
	{Text: "Re-establish the link"},
	{Text: "Wait for the feed to stabilize"},
}

// flexInt tolerates numbers the provider quotes or writes with a
// fractional part.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(int(v))
	return nil
}

type rawChoice struct {
	Text string `json:"text"`
}

type rawView struct {
	Environment  *string     `json:"stage_1_env"`
	Event        string      `json:"stage_2_event"`
	Analysis     string      `json:"stage_3_analysis"`
	ImageKeyword string      `json:"image_keyword"`
	HPChange     flexInt     `json:"hp_change"`
	Choices      []rawChoice `json:"choices"`
}

type rawTurn struct {
	Summary string                     `json:"summary"`
	Views   map[string]json.RawMessage `json:"views"`
}

// Normalizer converts raw provider output into a valid TurnResult. It
// is total: any input, including garbage, yields a result the engine
// can commit.
type Normalizer struct {
	rng pacing.Source
}

// NewNormalizer creates a normalizer using the given randomness source
// for synthesized health events.
func NewNormalizer(rng pacing.Source) *Normalizer {
	return &Normalizer{rng: rng}
}

// Normalize parses raw output against the living player set and the
// pacing decision, remapping, defaulting and enforcing as needed. The
// returned result always has one view per living player, exactly two
// choices per view, and hp deltas consistent with the decision.
func (n *Normalizer) Normalize(raw string, living []string, d pacing.Decision) *room.TurnResult {
	if len(living) == 0 {
		return n.Fallback(living, d)
	}

	parsed, ok := parseRawTurn(raw)
	if !ok || len(parsed.Views) == 0 {
		return n.Fallback(living, d)
	}

	views := remapViews(parsed.Views, living)
	if len(views) == 0 {
		return n.Fallback(living, d)
	}

	result := &room.TurnResult{
		Views:         make(map[string]*room.SceneView, len(living)),
		Summary:       strings.TrimSpace(parsed.Summary),
		IsSceneChange: d.IsSceneChange,
		IsHPEvent:     d.IsHPEvent,
	}

	for _, id := range living {
		rv, ok := views[id]
		if !ok {
			rv = rawView{}
		}
		result.Views[id] = n.buildView(rv, d)
	}

	if d.IsHPEvent {
		n.enforceHPEvent(result, living)
	}

	if result.Summary == "" {
		result.Summary = firstSentence(result.Views[living[0]].Event)
	}

	return result
}

// Fallback produces the safe result used when provider output is
// absent or unusable. It never carries a scene change or health event;
// the window's obligations stay pending for a later turn.
func (n *Normalizer) Fallback(living []string, d pacing.Decision) *room.TurnResult {
	result := &room.TurnResult{
		Views:   make(map[string]*room.SceneView, len(living)),
		Summary: fallbackSummary,
	}
	for _, id := range living {
		result.Views[id] = &room.SceneView{
			Event:        fallbackEvent,
			Analysis:     fallbackAnalysis,
			ImageKeyword: DefaultImageKeyword,
			Choices:      append([]room.Choice(nil), fallbackChoices...),
		}
	}
	return result
}

func parseRawTurn(raw string) (rawTurn, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return rawTurn{}, false
	}

	var parsed rawTurn
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil && len(parsed.Views) > 0 {
		return parsed, true
	}

	// Some replies skip the wrapper and key views at the top level.
	var flat map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &flat); err != nil {
		return rawTurn{}, false
	}
	parsed.Views = make(map[string]json.RawMessage)
	for k, v := range flat {
		switch k {
		case "summary":
			_ = json.Unmarshal(v, &parsed.Summary)
		case "views":
		default:
			parsed.Views[k] = v
		}
	}
	return parsed, len(parsed.Views) > 0
}

// remapViews matches provider view keys to living player ids. Exact
// matches win; leftover views are assigned positionally to the still
// unmatched players in sorted order.
func remapViews(raw map[string]json.RawMessage, living []string) map[string]rawView {
	decoded := make(map[string]rawView, len(raw))
	keys := make([]string, 0, len(raw))
	for k, v := range raw {
		var rv rawView
		if err := json.Unmarshal(v, &rv); err != nil {
			continue
		}
		decoded[k] = rv
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]rawView, len(living))
	used := make(map[string]bool, len(keys))
	for _, id := range living {
		if rv, ok := decoded[id]; ok {
			out[id] = rv
			used[id] = true
		}
	}

	var spare []string
	for _, k := range keys {
		if !used[k] {
			spare = append(spare, k)
		}
	}
	for _, id := range living {
		if _, ok := out[id]; ok {
			continue
		}
		if len(spare) == 0 {
			break
		}
		out[id] = decoded[spare[0]]
		spare = spare[1:]
	}
	return out
}

func (n *Normalizer) buildView(rv rawView, d pacing.Decision) *room.SceneView {
	v := &room.SceneView{
		Event:        strings.TrimSpace(rv.Event),
		Analysis:     strings.TrimSpace(rv.Analysis),
		ImageKeyword: strings.TrimSpace(rv.ImageKeyword),
		HPChange:     int(rv.HPChange),
	}

	if d.IsSceneChange {
		if rv.Environment != nil && strings.TrimSpace(*rv.Environment) != "" {
			env := strings.TrimSpace(*rv.Environment)
			v.Environment = &env
		} else {
			env := "The scene resolves slowly, detail by detail, as your link re-syncs."
			v.Environment = &env
		}
	}

	if v.Event == "" {
		v.Event = fallbackEvent
	}
	if v.ImageKeyword == "" {
		v.ImageKeyword = DefaultImageKeyword
	}
	if !d.IsHPEvent {
		v.HPChange = 0
	}

	for _, c := range rv.Choices {
		if t := strings.TrimSpace(c.Text); t != "" {
			v.Choices = append(v.Choices, room.Choice{Text: t})
		}
	}
	for i := 0; len(v.Choices) < 2; i++ {
		v.Choices = append(v.Choices, defaultChoices[i%len(defaultChoices)])
	}
	v.Choices = v.Choices[:2]

	return v
}

// enforceHPEvent guarantees a mandated health event carries at least
// one non-zero delta, synthesizing one when the provider supplied none.
// Damage is drawn three times as often as healing.
func (n *Normalizer) enforceHPEvent(result *room.TurnResult, living []string) {
	for _, v := range result.Views {
		if v.HPChange != 0 {
			return
		}
	}

	target := result.Views[living[0]]
	if n.rng.Float64() < 0.75 {
		target.HPChange = -ForcedHPMagnitude
		target.Event += forcedDamageClause
	} else {
		target.HPChange = ForcedHPMagnitude
		target.Event += forcedHealClause
	}
}

func firstSentence(s string) string {
	if idx := strings.IndexAny(s, ".!?"); idx >= 0 {
		return s[:idx+1]
	}
	return s
}
