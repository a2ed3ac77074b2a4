package engine

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/jmswank/neural-link/pkg/pacing"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(rand.New(rand.NewSource(1)))
}

const validReply = `{
	"summary": "The maglev doors slam shut.",
	"views": {
		"p1": {
			"stage_1_env": "A rain-slick maglev platform.",
			"stage_2_event": "The doors slam shut behind you.",
			"stage_3_analysis": "You are sealed in.",
			"image_keyword": "maglev",
			"hp_change": 0,
			"choices": [{"text": "Force the doors"}, {"text": "Move deeper in"}]
		},
		"p2": {
			"stage_1_env": "The far end of the platform.",
			"stage_2_event": "You watch the doors close on your partner.",
			"stage_3_analysis": "You are alone out here.",
			"image_keyword": "platform",
			"hp_change": 0,
			"choices": [{"text": "Pry at the seam"}, {"text": "Find another way"}]
		}
	}
}`

func TestNormalize_ValidReply(t *testing.T) {
	n := newTestNormalizer()
	living := []string{"p1", "p2"}
	d := pacing.Decision{IsSceneChange: true}

	result := n.Normalize(validReply, living, d)

	if result.Summary != "The maglev doors slam shut." {
		t.Errorf("Unexpected summary %q", result.Summary)
	}
	if len(result.Views) != 2 {
		t.Fatalf("Expected 2 views, got %d", len(result.Views))
	}
	v := result.Views["p1"]
	if v.Environment == nil || *v.Environment != "A rain-slick maglev platform." {
		t.Error("Scene-change turn must keep environment text")
	}
	if len(v.Choices) != 2 {
		t.Errorf("Expected exactly 2 choices, got %d", len(v.Choices))
	}
	if !result.IsSceneChange {
		t.Error("Decision flags must be carried onto the result")
	}
}

func TestNormalize_TotalOnGarbage(t *testing.T) {
	n := newTestNormalizer()
	living := []string{"p1", "p2"}
	d := pacing.Decision{}

	for _, raw := range []string{
		"",
		"not json at all",
		"{",
		"[]",
		"42",
		`{"summary": "no views"}`,
		`{"views": {}}`,
	} {
		result := n.Normalize(raw, living, d)
		if result == nil {
			t.Fatalf("Normalize(%q) returned nil", raw)
		}
		for _, id := range living {
			v, ok := result.Views[id]
			if !ok || v == nil {
				t.Fatalf("Normalize(%q) missing view for %s", raw, id)
			}
			if v.Event == "" {
				t.Errorf("Normalize(%q): empty event text for %s", raw, id)
			}
			if len(v.Choices) != 2 {
				t.Errorf("Normalize(%q): expected 2 choices for %s, got %d", raw, id, len(v.Choices))
			}
		}
	}
}

func TestNormalize_HallucinatedKeysRemapped(t *testing.T) {
	n := newTestNormalizer()
	living := []string{"real-a", "real-b"}
	d := pacing.Decision{}

	raw := `{
		"summary": "s",
		"views": {
			"player_one": {"stage_2_event": "first view", "choices": [{"text": "A"}, {"text": "B"}]},
			"real-b": {"stage_2_event": "exact match", "choices": [{"text": "A"}, {"text": "B"}]}
		}
	}`

	result := n.Normalize(raw, living, d)

	if result.Views["real-b"].Event != "exact match" {
		t.Error("Exact id match must win")
	}
	if result.Views["real-a"].Event != "first view" {
		t.Error("Leftover view must be assigned to the unmatched player")
	}
}

func TestNormalize_PostHocEnvNulled(t *testing.T) {
	n := newTestNormalizer()
	d := pacing.Decision{IsSceneChange: false}

	result := n.Normalize(validReply, []string{"p1", "p2"}, d)
	for id, v := range result.Views {
		if v.Environment != nil {
			t.Errorf("Non-scene turn must null environment for %s", id)
		}
	}
}

func TestNormalize_PostHocHPZeroed(t *testing.T) {
	n := newTestNormalizer()
	d := pacing.Decision{}

	raw := strings.Replace(validReply, `"hp_change": 0`, `"hp_change": -25`, 1)
	result := n.Normalize(raw, []string{"p1", "p2"}, d)
	for id, v := range result.Views {
		if v.HPChange != 0 {
			t.Errorf("Non-event turn must zero hp_change for %s, got %d", id, v.HPChange)
		}
	}
}

func TestNormalize_ForcedEventSynthesized(t *testing.T) {
	n := newTestNormalizer()
	d := pacing.Decision{IsHPEvent: true}
	living := []string{"p1", "p2"}

	result := n.Normalize(validReply, living, d)

	var nonZero int
	for _, v := range result.Views {
		if v.HPChange != 0 {
			nonZero++
			if v.HPChange != ForcedHPMagnitude && v.HPChange != -ForcedHPMagnitude {
				t.Errorf("Synthesized delta must have magnitude %d, got %d", ForcedHPMagnitude, v.HPChange)
			}
		}
	}
	if nonZero != 1 {
		t.Fatalf("Expected exactly one synthesized delta, got %d", nonZero)
	}

	// The first living player takes the synthesized hit, with a canned
	// clause appended so the narrative acknowledges it.
	v := result.Views[living[0]]
	if v.HPChange == 0 {
		t.Fatal("Synthesized delta must land on the first living player")
	}
	if !strings.Contains(v.Event, "The doors slam shut behind you.") {
		t.Error("Original event text must be preserved")
	}
	if v.Event == "The doors slam shut behind you." {
		t.Error("A clause must be appended to the event text")
	}
}

func TestNormalize_EventKeptWhenProviderDelivers(t *testing.T) {
	n := newTestNormalizer()
	d := pacing.Decision{IsHPEvent: true}

	raw := strings.Replace(validReply, `"hp_change": 0,
			"choices": [{"text": "Pry at the seam"}`, `"hp_change": -15,
			"choices": [{"text": "Pry at the seam"}`, 1)
	result := n.Normalize(raw, []string{"p1", "p2"}, d)

	if result.Views["p2"].HPChange != -15 {
		t.Errorf("Provider's own delta must be kept, got %d", result.Views["p2"].HPChange)
	}
	if result.Views["p1"].HPChange != 0 {
		t.Error("No synthesis when the provider already delivered an event")
	}
}

func TestNormalize_QuotedHPChange(t *testing.T) {
	n := newTestNormalizer()
	d := pacing.Decision{IsHPEvent: true}

	raw := strings.Replace(validReply, `"hp_change": 0,
			"choices": [{"text": "Force the doors"}`, `"hp_change": "-5",
			"choices": [{"text": "Force the doors"}`, 1)
	result := n.Normalize(raw, []string{"p1", "p2"}, d)

	if result.Views["p1"].HPChange != -5 {
		t.Errorf("Quoted numbers must parse, got %d", result.Views["p1"].HPChange)
	}
}

func TestNormalize_ChoicePadding(t *testing.T) {
	n := newTestNormalizer()
	d := pacing.Decision{}

	raw := `{"summary": "s", "views": {"p1": {"stage_2_event": "e", "choices": [{"text": "only one"}]}}}`
	result := n.Normalize(raw, []string{"p1"}, d)

	v := result.Views["p1"]
	if len(v.Choices) != 2 {
		t.Fatalf("Expected 2 choices, got %d", len(v.Choices))
	}
	if v.Choices[0].Text != "only one" {
		t.Error("Provided choice must be kept first")
	}
}

func TestNormalize_DefaultSummary(t *testing.T) {
	n := newTestNormalizer()
	d := pacing.Decision{}

	raw := `{"views": {"p1": {"stage_2_event": "Sirens wail. Glass rains down.", "choices": [{"text": "A"}, {"text": "B"}]}}}`
	result := n.Normalize(raw, []string{"p1"}, d)

	if result.Summary != "Sirens wail." {
		t.Errorf("Summary must default to the first sentence, got %q", result.Summary)
	}
}

func TestFallback(t *testing.T) {
	n := newTestNormalizer()
	living := []string{"p1", "p2"}

	result := n.Fallback(living, pacing.Decision{IsSceneChange: true, IsHPEvent: true})

	if result.IsSceneChange || result.IsHPEvent {
		t.Error("Fallback must never carry scene or event flags")
	}
	for _, id := range living {
		v := result.Views[id]
		if v == nil {
			t.Fatalf("Fallback missing view for %s", id)
		}
		if v.HPChange != 0 {
			t.Error("Fallback must not touch hp")
		}
		if len(v.Choices) != 2 {
			t.Errorf("Fallback must offer retry/wait, got %v", v.Choices)
		}
	}
}
