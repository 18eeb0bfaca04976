package handlers

import (
	"net/http"
	"strconv"

	"github.com/hireloop/interviewd/pkg/server/apierror"
	"github.com/hireloop/interviewd/pkg/store"
)

// RoomsHandler serves direct and group conversation rooms.
type RoomsHandler struct {
	rooms ChatRoomStore
}

// NewRoomsHandler creates the room endpoints.
func NewRoomsHandler(rooms ChatRoomStore) *RoomsHandler {
	return &RoomsHandler{rooms: rooms}
}

type chatRoomRequest struct {
	UserIDs []int64 `json:"user_ids"`
	IsGroup bool    `json:"is_group"`
	Name    string  `json:"name"`
}

// Create handles POST /rooms. A non-group request for exactly two users
// returns the existing direct room between them when one exists.
func (h *RoomsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req chatRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.UserIDs) == 0 {
		writeError(w, r, &apierror.Error{Type: apierror.ErrInvalidRequest, Message: "user_ids required", Param: "user_ids"})
		return
	}

	room, err := h.rooms.CreateChatRoom(r.Context(), req.Name, req.IsGroup, req.UserIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// List handles GET /rooms.
func (h *RoomsHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.ListChatRooms(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rooms == nil {
		rooms = []store.ChatRoom{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

// Get handles GET /rooms/{id}.
func (h *RoomsHandler) Get(w http.ResponseWriter, r *http.Request) {
	room, err := h.rooms.GetChatRoom(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

type addParticipantsRequest struct {
	UserIDs []int64 `json:"user_ids"`
}

// AddParticipants handles POST /rooms/{id}/participants. Users already
// in the room are skipped.
func (h *RoomsHandler) AddParticipants(w http.ResponseWriter, r *http.Request) {
	var req addParticipantsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.UserIDs) == 0 {
		writeError(w, r, &apierror.Error{Type: apierror.ErrInvalidRequest, Message: "user_ids required", Param: "user_ids"})
		return
	}

	room, err := h.rooms.AddChatRoomMembers(r.Context(), r.PathValue("id"), req.UserIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// RemoveParticipant handles DELETE /rooms/{id}/participants/{user_id}.
func (h *RoomsHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("user_id"), 10, 64)
	if err != nil {
		writeError(w, r, &apierror.Error{Type: apierror.ErrInvalidRequest, Message: "invalid user id", Param: "user_id"})
		return
	}

	room, err := h.rooms.RemoveChatRoomMember(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}
