package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateChatRoom creates a conversation room with the given members.
// A non-group request for exactly two users returns the existing direct
// room between them when one exists. Every user must exist.
func (s *Store) CreateChatRoom(ctx context.Context, name string, isGroup bool, userIDs []int64) (*ChatRoom, error) {
	if !isGroup && len(userIDs) == 2 {
		room, err := s.findDirectRoom(ctx, userIDs[0], userIDs[1])
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	if err := s.checkUsersExist(ctx, userIDs); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	id := uuid.NewString()
	if _, err := tx.Exec(ctx,
		`INSERT INTO chat_rooms (id, is_group, name) VALUES ($1, $2, $3)`,
		id, isGroup, name,
	); err != nil {
		return nil, fmt.Errorf("store: create chat room: %w", err)
	}
	for _, userID := range userIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO chat_room_members (room_id, user_id)
			 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			id, userID,
		); err != nil {
			return nil, fmt.Errorf("store: add chat room member: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("store: commit chat room: %w", err)
	}
	return s.GetChatRoom(ctx, id)
}

// findDirectRoom returns the non-group room whose member set is exactly
// the two users, or ErrNotFound.
func (s *Store) findDirectRoom(ctx context.Context, a, b int64) (*ChatRoom, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT r.id
		 FROM chat_rooms r
		 JOIN chat_room_members m ON m.room_id = r.id
		 WHERE r.is_group = FALSE
		 GROUP BY r.id
		 HAVING COUNT(*) = 2 AND COUNT(*) FILTER (WHERE m.user_id IN ($1, $2)) = 2
		 LIMIT 1`, a, b,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find direct room: %w", err)
	}
	return s.GetChatRoom(ctx, id)
}

func (s *Store) checkUsersExist(ctx context.Context, userIDs []int64) error {
	rows, err := s.pool.Query(ctx, `SELECT id FROM users WHERE id = ANY($1)`, userIDs)
	if err != nil {
		return fmt.Errorf("store: check users: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]bool, len(userIDs))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("store: scan user id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("store: check users: %w", err)
	}
	for _, id := range userIDs {
		if !found[id] {
			return fmt.Errorf("%w: user %d", ErrNotFound, id)
		}
	}
	return nil
}

// GetChatRoom returns one room with its member list.
func (s *Store) GetChatRoom(ctx context.Context, id string) (*ChatRoom, error) {
	var r ChatRoom
	err := s.pool.QueryRow(ctx,
		`SELECT id, is_group, name, created_at FROM chat_rooms WHERE id = $1`, id,
	).Scan(&r.ID, &r.IsGroup, &r.Name, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get chat room: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT user_id FROM chat_room_members WHERE room_id = $1 ORDER BY user_id`, id)
	if err != nil {
		return nil, fmt.Errorf("store: get chat room members: %w", err)
	}
	defer rows.Close()

	r.MemberIDs = []int64{}
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("store: scan chat room member: %w", err)
		}
		r.MemberIDs = append(r.MemberIDs, userID)
	}
	return &r, rows.Err()
}

// ListChatRooms returns all rooms with their member lists, newest first.
func (s *Store) ListChatRooms(ctx context.Context) ([]ChatRoom, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.is_group, r.name, r.created_at,
		        COALESCE(array_agg(m.user_id ORDER BY m.user_id)
		                 FILTER (WHERE m.user_id IS NOT NULL), '{}')
		 FROM chat_rooms r
		 LEFT JOIN chat_room_members m ON m.room_id = r.id
		 GROUP BY r.id
		 ORDER BY r.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list chat rooms: %w", err)
	}
	defer rows.Close()

	var out []ChatRoom
	for rows.Next() {
		var r ChatRoom
		if err := rows.Scan(&r.ID, &r.IsGroup, &r.Name, &r.CreatedAt, &r.MemberIDs); err != nil {
			return nil, fmt.Errorf("store: scan chat room: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddChatRoomMembers adds users to a room, skipping users already in it.
func (s *Store) AddChatRoomMembers(ctx context.Context, roomID string, userIDs []int64) (*ChatRoom, error) {
	if _, err := s.GetChatRoom(ctx, roomID); err != nil {
		return nil, err
	}
	if err := s.checkUsersExist(ctx, userIDs); err != nil {
		return nil, err
	}

	for _, userID := range userIDs {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO chat_room_members (room_id, user_id)
			 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			roomID, userID,
		); err != nil {
			return nil, fmt.Errorf("store: add chat room member: %w", err)
		}
	}
	return s.GetChatRoom(ctx, roomID)
}

// RemoveChatRoomMember removes one user from a room. A user not in the
// room is ErrNotFound.
func (s *Store) RemoveChatRoomMember(ctx context.Context, roomID string, userID int64) (*ChatRoom, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM chat_room_members WHERE room_id = $1 AND user_id = $2`,
		roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("store: remove chat room member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: user %d not in room", ErrNotFound, userID)
	}
	return s.GetChatRoom(ctx, roomID)
}
