package prompts

import (
	"strings"
	"testing"

	"github.com/jmswank/neural-link/pkg/room"
)

func testPlayers() (order []string, players map[string]*room.PlayerState) {
	players = map[string]*room.PlayerState{
		"p1": {
			Joined: true,
			Choice: "run for the exit",
			Profile: room.Profile{
				Name:    "Nyx",
				Role:    "netrunner",
				Public:  room.Stats{HP: 80},
				Private: map[string]string{"secret": "wanted by the syndicate"},
			},
		},
		"p2": {
			Joined: true,
			Profile: room.Profile{
				Name:   "Brick",
				Role:   "enforcer",
				Public: room.Stats{HP: 100},
			},
		},
	}
	return []string{"p1", "p2"}, players
}

func TestBuilder_Build(t *testing.T) {
	order, players := testPlayers()

	prompt, err := New().
		WithHistory([]string{"[opening] The crew jacked in."}).
		WithPlayers(order, players).
		WithPacing(true, false).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for _, want := range []string{
		"id=p1", "id=p2",
		`name="Nyx"`, `role="netrunner"`, "hp=80",
		`secret="wanted by the syndicate"`,
		`chose="run for the exit"`,
		"[opening] The crew jacked in.",
		"SCENE CHANGE",
		"NO health event",
		"views",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}
}

func TestBuilder_PacingDirectives(t *testing.T) {
	order, players := testPlayers()

	prompt, err := New().
		WithPlayers(order, players).
		WithPacing(false, true).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if !strings.Contains(prompt, "NO scene change") {
		t.Error("Expected the no-scene-change directive")
	}
	if !strings.Contains(prompt, "HEALTH EVENT") {
		t.Error("Expected the health-event directive")
	}
}

func TestBuilder_Opening(t *testing.T) {
	order, players := testPlayers()

	prompt, err := New().
		WithHistory([]string{"should not appear"}).
		WithPlayers(order, players).
		WithPacing(true, false).
		AsOpening().
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if !strings.Contains(prompt, "GAME START") {
		t.Error("Opening prompt must announce game start")
	}
	if strings.Contains(prompt, "should not appear") {
		t.Error("Opening prompt must not carry history")
	}
	if strings.Contains(prompt, "chose=") {
		t.Error("Opening prompt must not carry choices")
	}
}

func TestBuilder_RequiresPlayers(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Error("Build without players must fail")
	}
}

func TestBuilder_MissingPlayerState(t *testing.T) {
	_, players := testPlayers()
	if _, err := New().WithPlayers([]string{"ghost"}, players).Build(); err == nil {
		t.Error("Build with an unknown id must fail")
	}
}
