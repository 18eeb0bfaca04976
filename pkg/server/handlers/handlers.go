// Package handlers implements the platform API endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hireloop/interviewd/pkg/agent/interview"
	"github.com/hireloop/interviewd/pkg/blob"
	"github.com/hireloop/interviewd/pkg/media"
	"github.com/hireloop/interviewd/pkg/server/apierror"
	"github.com/hireloop/interviewd/pkg/server/mw"
	"github.com/hireloop/interviewd/pkg/store"
)

// UserStore is the user persistence the handlers need.
type UserStore interface {
	CreateUser(ctx context.Context, u *store.User) (*store.User, error)
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	GetUser(ctx context.Context, id int64) (*store.User, error)
	UpsertProfile(ctx context.Context, p *store.JobSeekerProfile) error
	GetProfile(ctx context.Context, userID int64) (*store.JobSeekerProfile, error)
}

// JobStore is the job persistence the handlers need.
type JobStore interface {
	CreateJob(ctx context.Context, j *store.Job) (*store.Job, error)
	GetJob(ctx context.Context, id int64) (*store.Job, error)
	ListJobs(ctx context.Context, limit int) ([]store.Job, error)
	DeleteJob(ctx context.Context, id, recruiterID int64) error
}

// ApplicationStore is the application persistence the handlers need.
type ApplicationStore interface {
	CreateApplication(ctx context.Context, a *store.Application) (*store.Application, error)
	ListApplicationsByUser(ctx context.Context, userID int64) ([]store.Application, error)
	ListApplicationsByJob(ctx context.Context, jobID int64) ([]store.Application, error)
	UpdateApplicationStatus(ctx context.Context, id int64, status string) error
}

// RoomStore is the room persistence the handlers need.
type RoomStore interface {
	GetOrCreateRoom(ctx context.Context, userID int64, name string) (*store.Room, error)
	GetRoomByUser(ctx context.Context, userID int64) (*store.Room, error)
}

// ChatRoomStore is the conversation-room persistence the handlers need.
type ChatRoomStore interface {
	CreateChatRoom(ctx context.Context, name string, isGroup bool, userIDs []int64) (*store.ChatRoom, error)
	GetChatRoom(ctx context.Context, id string) (*store.ChatRoom, error)
	ListChatRooms(ctx context.Context) ([]store.ChatRoom, error)
	AddChatRoomMembers(ctx context.Context, roomID string, userIDs []int64) (*store.ChatRoom, error)
	RemoveChatRoomMember(ctx context.Context, roomID string, userID int64) (*store.ChatRoom, error)
}

// RoomControl is the media server control surface. Satisfied by
// *media.RoomService.
type RoomControl interface {
	CreateRoom(ctx context.Context, name string) (*media.RoomInfo, error)
	DeleteRoom(ctx context.Context, name string) error
	StartCompositeEgress(ctx context.Context, room string, output media.EgressS3Output) (*media.EgressInfo, error)
}

// Artifacts is the object-store surface for recordings and transcripts.
// Satisfied by *blob.Store.
type Artifacts interface {
	List(ctx context.Context, prefix string) ([]blob.Object, error)
	Get(ctx context.Context, key string) ([]byte, error)
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
}

// InterviewStore is the pending-interview surface. Satisfied by
// *interview.Store.
type InterviewStore interface {
	Get(ctx context.Context, userID string) (*interview.Request, error)
	Set(ctx context.Context, req *interview.Request) error
	Delete(ctx context.Context, userID string) error
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &apierror.Error{Type: apierror.ErrInvalidRequest, Message: "invalid request body: " + err.Error()}
	}
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	apierror.Write(w, err, reqID)
}
