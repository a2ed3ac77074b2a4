package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jmswank/neural-link/pkg/room"
)

// MockStorage is an in-memory implementation of Storage for testing.
// Documents round-trip through JSON so tests observe the same copy
// semantics as the real adapter.
type MockStorage struct {
	GetRoomFunc        func(ctx context.Context, id string) (*room.Room, error)
	PutRoomFunc        func(ctx context.Context, r *room.Room) error
	DeleteRoomFunc     func(ctx context.Context, id string) error
	IncrDailyUsageFunc func(ctx context.Context, dateKey string) (int64, error)
	PingFunc           func(ctx context.Context) error

	// Track calls for testing
	PutRoomCalls []string

	rooms map[string][]byte
	usage map[string]int64
	mu    sync.Mutex // protects all fields above
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		rooms:        make(map[string][]byte),
		usage:        make(map[string]int64),
		PutRoomCalls: make([]string, 0),
	}
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) GetRoom(ctx context.Context, id string) (*room.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetRoomFunc != nil {
		return m.GetRoomFunc(ctx, id)
	}

	data, ok := m.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	var rm room.Room
	if err := json.Unmarshal(data, &rm); err != nil {
		return nil, err
	}
	return &rm, nil
}

func (m *MockStorage) PutRoom(ctx context.Context, r *room.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PutRoomCalls = append(m.PutRoomCalls, r.ID)

	if m.PutRoomFunc != nil {
		return m.PutRoomFunc(ctx, r)
	}

	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	m.rooms[r.ID] = data
	return nil
}

func (m *MockStorage) DeleteRoom(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteRoomFunc != nil {
		return m.DeleteRoomFunc(ctx, id)
	}

	delete(m.rooms, id)
	return nil
}

func (m *MockStorage) IncrDailyUsage(ctx context.Context, dateKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IncrDailyUsageFunc != nil {
		return m.IncrDailyUsageFunc(ctx, dateKey)
	}

	m.usage[dateKey]++
	return m.usage[dateKey], nil
}

// GetPutRoomCalls returns a copy of the tracked PutRoom room ids
func (m *MockStorage) GetPutRoomCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]string, len(m.PutRoomCalls))
	copy(calls, m.PutRoomCalls)
	return calls
}
