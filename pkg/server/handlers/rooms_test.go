package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hireloop/interviewd/pkg/store"
)

func TestCreateGroupRoom(t *testing.T) {
	h := NewRoomsHandler(newFakeChatRooms(1, 2, 3))

	req := asUser(jsonRequest(http.MethodPost, "/rooms", map[string]any{
		"user_ids": []int64{1, 2, 3},
		"is_group": true,
		"name":     "hiring panel",
	}), 1, store.RoleRecruiter)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var room store.ChatRoom
	decodeBody(t, rec, &room)
	if !room.IsGroup || room.Name != "hiring panel" {
		t.Errorf("room = %+v", room)
	}
	if len(room.MemberIDs) != 3 {
		t.Errorf("members = %v, want 3", room.MemberIDs)
	}
}

func TestCreateDirectRoomIsDeduplicated(t *testing.T) {
	h := NewRoomsHandler(newFakeChatRooms(1, 2))

	create := func() store.ChatRoom {
		t.Helper()
		req := asUser(jsonRequest(http.MethodPost, "/rooms", map[string]any{
			"user_ids": []int64{1, 2},
		}), 1, store.RoleJobSeeker)
		rec := httptest.NewRecorder()
		h.Create(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var room store.ChatRoom
		decodeBody(t, rec, &room)
		return room
	}

	first := create()
	second := create()
	if first.ID != second.ID {
		t.Errorf("direct rooms differ: %q vs %q", first.ID, second.ID)
	}
}

func TestCreateRoomUnknownUser(t *testing.T) {
	h := NewRoomsHandler(newFakeChatRooms(1))

	req := asUser(jsonRequest(http.MethodPost, "/rooms", map[string]any{
		"user_ids": []int64{1, 99},
		"is_group": true,
	}), 1, store.RoleRecruiter)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCreateRoomRequiresUserIDs(t *testing.T) {
	h := NewRoomsHandler(newFakeChatRooms())

	req := asUser(jsonRequest(http.MethodPost, "/rooms", map[string]any{
		"is_group": true,
	}), 1, store.RoleRecruiter)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetRoomNotFound(t *testing.T) {
	h := NewRoomsHandler(newFakeChatRooms())

	req := asUser(jsonRequest(http.MethodGet, "/rooms/nope", nil), 1, store.RoleJobSeeker)
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListRoomsEmpty(t *testing.T) {
	h := NewRoomsHandler(newFakeChatRooms())

	req := asUser(jsonRequest(http.MethodGet, "/rooms", nil), 1, store.RoleJobSeeker)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want empty list", got)
	}
}

func TestAddParticipantsSkipsExisting(t *testing.T) {
	rooms := newFakeChatRooms(1, 2, 3)
	h := NewRoomsHandler(rooms)

	seeded, err := rooms.CreateChatRoom(context.Background(), "panel", true, []int64{1, 2})
	if err != nil {
		t.Fatal(err)
	}

	req := asUser(jsonRequest(http.MethodPost, "/rooms/"+seeded.ID+"/participants", map[string]any{
		"user_ids": []int64{2, 3},
	}), 1, store.RoleRecruiter)
	req.SetPathValue("id", seeded.ID)
	rec := httptest.NewRecorder()
	h.AddParticipants(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var room store.ChatRoom
	decodeBody(t, rec, &room)
	if len(room.MemberIDs) != 3 {
		t.Errorf("members = %v, want 3", room.MemberIDs)
	}
}

func TestRemoveParticipant(t *testing.T) {
	rooms := newFakeChatRooms(1, 2)
	h := NewRoomsHandler(rooms)

	seeded, err := rooms.CreateChatRoom(context.Background(), "", true, []int64{1, 2})
	if err != nil {
		t.Fatal(err)
	}

	remove := func(userID string) *httptest.ResponseRecorder {
		req := asUser(jsonRequest(http.MethodDelete, "/rooms/"+seeded.ID+"/participants/"+userID, nil), 1, store.RoleRecruiter)
		req.SetPathValue("id", seeded.ID)
		req.SetPathValue("user_id", userID)
		rec := httptest.NewRecorder()
		h.RemoveParticipant(rec, req)
		return rec
	}

	rec := remove("2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var room store.ChatRoom
	decodeBody(t, rec, &room)
	if len(room.MemberIDs) != 1 || room.MemberIDs[0] != 1 {
		t.Errorf("members after removal = %v", room.MemberIDs)
	}

	// Removing again is a 404: the user is no longer in the room.
	if rec := remove("2"); rec.Code != http.StatusNotFound {
		t.Errorf("repeat removal status = %d, want 404", rec.Code)
	}
}
