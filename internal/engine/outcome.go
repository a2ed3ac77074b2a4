package engine

import "github.com/jmswank/neural-link/pkg/room"

// Status tokens returned to clients. Every inbound action resolves to
// exactly one of these.
const (
	StatusRoomCreated   = "ROOM_CREATED"
	StatusJoined        = "JOINED"
	StatusStarted       = "STARTED"
	StatusWaiting       = "WAITING"
	StatusNewTurn       = "NEW_TURN"
	StatusNotFound      = "NOT_FOUND"
	StatusQuotaExceeded = "QUOTA_EXCEEDED"
	StatusInternalError = "INTERNAL_ERROR"
)

// Outcome is the resolver's reply to one inbound action.
type Outcome struct {
	Status string     `json:"status"`
	RoomID string     `json:"room_id,omitempty"`
	Room   *room.Room `json:"room,omitempty"`
	Error  string     `json:"error,omitempty"`
}
