package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jmswank/neural-link/pkg/room"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// GameRequest mirrors the API's action envelope.
type GameRequest struct {
	Action   string        `json:"action"`
	RoomID   string        `json:"room_id,omitempty"`
	PlayerID string        `json:"player_id,omitempty"`
	Choice   string        `json:"choice,omitempty"`
	Profile  *room.Profile `json:"profile,omitempty"`
}

// GameResponse mirrors the API's outcome envelope.
type GameResponse struct {
	Status   string     `json:"status"`
	RoomID   string     `json:"room_id,omitempty"`
	PlayerID string     `json:"player_id,omitempty"`
	Room     *room.Room `json:"room,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// APIClient talks to the game server on behalf of one player.
type APIClient struct {
	baseURL  string
	client   *http.Client
	playerID string
	profile  room.Profile
}

func NewAPIClient(baseURL string, client *http.Client, playerID string, profile room.Profile) *APIClient {
	return &APIClient{
		baseURL:  baseURL,
		client:   client,
		playerID: playerID,
		profile:  profile,
	}
}

func (c *APIClient) TestConnection() bool {
	resp, err := c.client.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func (c *APIClient) CreateRoom() (*GameResponse, error) {
	return c.postAction(GameRequest{
		Action:   "CREATE_ROOM",
		PlayerID: c.playerID,
		Profile:  &c.profile,
	})
}

func (c *APIClient) JoinRoom(roomID string) (*GameResponse, error) {
	return c.postAction(GameRequest{
		Action:   "JOIN_ROOM",
		RoomID:   roomID,
		PlayerID: c.playerID,
		Profile:  &c.profile,
	})
}

func (c *APIClient) StartGame(roomID string) (*GameResponse, error) {
	return c.postAction(GameRequest{
		Action:   "START_GAME",
		RoomID:   roomID,
		PlayerID: c.playerID,
	})
}

func (c *APIClient) MakeMove(roomID, choice string) (*GameResponse, error) {
	return c.postAction(GameRequest{
		Action:   "MAKE_MOVE",
		RoomID:   roomID,
		PlayerID: c.playerID,
		Choice:   choice,
	})
}

func (c *APIClient) PreloadTurn(roomID string) (*GameResponse, error) {
	return c.postAction(GameRequest{
		Action:   "PRELOAD_TURN",
		RoomID:   roomID,
		PlayerID: c.playerID,
	})
}

func (c *APIClient) GetRoom(roomID string) (*GameResponse, error) {
	resp, err := c.client.Get(fmt.Sprintf("%s/v1/rooms/%s", c.baseURL, roomID))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	return parseGameResponse(resp)
}

func (c *APIClient) postAction(req GameRequest) (*GameResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.client.Post(
		c.baseURL+"/v1/game",
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	return parseGameResponse(resp)
}

func parseGameResponse(resp *http.Response) (*GameResponse, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var gameResp GameResponse
	if err := json.Unmarshal(body, &gameResp); err != nil {
		var errorResp ErrorResponse
		if jsonErr := json.Unmarshal(body, &errorResp); jsonErr == nil && errorResp.Error != "" {
			return nil, fmt.Errorf("API error: %s", errorResp.Error)
		}
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	// Outcome statuses carry their own semantics; only transport-level
	// failures without an outcome are errors here.
	if gameResp.Status == "" {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}
	return &gameResp, nil
}
