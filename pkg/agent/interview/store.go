// Package interview tracks pending interview requests in Redis so the
// agent worker and the platform API share one view of who is waiting for
// a session.
package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no interview request exists for a user.
var ErrNotFound = errors.New("interview: request not found")

// Request is a queued interview for one candidate.
type Request struct {
	UserID    string    `json:"user_id"`
	JobID     int64     `json:"job_id,omitempty"`
	RoomName  string    `json:"room_name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists interview requests keyed by user.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a store. ttl of zero keeps requests until deleted.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func requestKey(userID string) string { return "user:" + userID }

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get returns the pending request for a user, or ErrNotFound.
func (s *Store) Get(ctx context.Context, userID string) (*Request, error) {
	data, err := s.client.Get(ctx, requestKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("interview: get request for %s: %w", userID, err)
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("interview: decode request for %s: %w", userID, err)
	}
	return &req, nil
}

// Set stores or replaces a user's pending request.
func (s *Store) Set(ctx context.Context, req *Request) error {
	if req.UserID == "" {
		return fmt.Errorf("interview: request has no user id")
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("interview: encode request for %s: %w", req.UserID, err)
	}
	if err := s.client.Set(ctx, requestKey(req.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("interview: set request for %s: %w", req.UserID, err)
	}
	return nil
}

// Delete removes a user's pending request. Deleting a missing request is
// not an error.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, requestKey(userID)).Err(); err != nil {
		return fmt.Errorf("interview: delete request for %s: %w", userID, err)
	}
	return nil
}
