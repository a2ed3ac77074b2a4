//go:build integration
// +build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jmswank/neural-link/internal/engine"
	"github.com/jmswank/neural-link/pkg/room"
)

// These tests drive a running API end to end, live LLM included.
// Start the stack first, then: go test -tags=integration ./integration/
var baseURL string

func TestMain(m *testing.M) {
	baseURL = os.Getenv("API_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	fmt.Printf("Running Neural Link Integration Tests\n")
	fmt.Printf("   API Base URL: %s\n", baseURL)

	os.Exit(m.Run())
}

type gameRequest struct {
	Action   string        `json:"action"`
	RoomID   string        `json:"room_id,omitempty"`
	PlayerID string        `json:"player_id,omitempty"`
	Choice   string        `json:"choice,omitempty"`
	Profile  *room.Profile `json:"profile,omitempty"`
}

type gameResponse struct {
	Status   string     `json:"status"`
	RoomID   string     `json:"room_id,omitempty"`
	PlayerID string     `json:"player_id,omitempty"`
	Room     *room.Room `json:"room,omitempty"`
	Error    string     `json:"error,omitempty"`
}

func postGame(t *testing.T, client *http.Client, req gameRequest) gameResponse {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	resp, err := client.Post(baseURL+"/v1/game", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("failed to send request: %v", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	var out gameResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response (status %d): %v", resp.StatusCode, err)
	}
	return out
}

func TestSoloGameFlow(t *testing.T) {
	client := &http.Client{Timeout: 120 * time.Second}
	playerID := uuid.NewString()

	created := postGame(t, client, gameRequest{
		Action:   "CREATE_ROOM",
		PlayerID: playerID,
		Profile:  &room.Profile{Name: "integration", Role: "netrunner"},
	})
	if created.Status != engine.StatusRoomCreated {
		t.Fatalf("CREATE_ROOM returned %s: %s", created.Status, created.Error)
	}
	roomID := created.RoomID

	started := postGame(t, client, gameRequest{
		Action:   "START_GAME",
		RoomID:   roomID,
		PlayerID: playerID,
	})
	if started.Status == engine.StatusQuotaExceeded {
		t.Skip("daily generation cap reached, skipping live flow")
	}
	if started.Status != engine.StatusStarted {
		t.Fatalf("START_GAME returned %s: %s", started.Status, started.Error)
	}
	if started.Room == nil || started.Room.Turn != 1 {
		t.Fatalf("opening turn not committed: %+v", started.Room)
	}

	view, ok := started.Room.CurrentScene[playerID]
	if !ok || len(view.Choices) != 2 {
		t.Fatalf("opening view missing or malformed: %+v", started.Room.CurrentScene)
	}

	moved := postGame(t, client, gameRequest{
		Action:   "MAKE_MOVE",
		RoomID:   roomID,
		PlayerID: playerID,
		Choice:   view.Choices[0].Text,
	})
	if moved.Status == engine.StatusQuotaExceeded {
		t.Skip("daily generation cap reached mid-flow")
	}
	if moved.Status != engine.StatusNewTurn {
		t.Fatalf("MAKE_MOVE returned %s: %s", moved.Status, moved.Error)
	}
	if moved.Room.Turn != 2 {
		t.Fatalf("turn did not advance, got %d", moved.Room.Turn)
	}
	if moved.Room.Players[playerID].Choice != "" {
		t.Fatalf("choice not cleared after resolution")
	}
}

func TestLateJoinRejected(t *testing.T) {
	client := &http.Client{Timeout: 120 * time.Second}
	hostID := uuid.NewString()

	created := postGame(t, client, gameRequest{
		Action:   "CREATE_ROOM",
		PlayerID: hostID,
		Profile:  &room.Profile{Name: "host", Role: "fixer"},
	})
	if created.Status != engine.StatusRoomCreated {
		t.Fatalf("CREATE_ROOM returned %s: %s", created.Status, created.Error)
	}

	started := postGame(t, client, gameRequest{
		Action:   "START_GAME",
		RoomID:   created.RoomID,
		PlayerID: hostID,
	})
	if started.Status == engine.StatusQuotaExceeded {
		t.Skip("daily generation cap reached, skipping live flow")
	}
	if started.Status != engine.StatusStarted {
		t.Fatalf("START_GAME returned %s: %s", started.Status, started.Error)
	}

	late := postGame(t, client, gameRequest{
		Action:   "JOIN_ROOM",
		RoomID:   created.RoomID,
		PlayerID: uuid.NewString(),
		Profile:  &room.Profile{Name: "latecomer"},
	})
	if late.Status != engine.StatusNotFound {
		t.Fatalf("late join must be rejected, got %s", late.Status)
	}
}
