package services

import (
	"context"
	"errors"

	"github.com/jmswank/neural-link/pkg/room"
)

// ErrRoomNotFound is returned when a room id resolves to nothing.
var ErrRoomNotFound = errors.New("room not found")

// Storage is the interface for room persistence and the daily usage counter.
type Storage interface {
	Ping(ctx context.Context) error
	Close() error

	// GetRoom loads a room document. Returns ErrRoomNotFound when missing.
	GetRoom(ctx context.Context, id string) (*room.Room, error)

	// PutRoom persists the full room document.
	PutRoom(ctx context.Context, r *room.Room) error

	DeleteRoom(ctx context.Context, id string) error

	// IncrDailyUsage atomically increments the generation counter for the
	// given date key and returns the new total.
	IncrDailyUsage(ctx context.Context, dateKey string) (int64, error)
}
