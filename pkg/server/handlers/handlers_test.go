package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/hireloop/interviewd/pkg/agent/interview"
	"github.com/hireloop/interviewd/pkg/blob"
	"github.com/hireloop/interviewd/pkg/llm"
	"github.com/hireloop/interviewd/pkg/media"
	"github.com/hireloop/interviewd/pkg/server/auth"
	"github.com/hireloop/interviewd/pkg/store"
)

// --- in-memory stores ---

type fakeUsers struct {
	users    map[int64]*store.User
	profiles map[int64]*store.JobSeekerProfile
	nextID   int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		users:    make(map[int64]*store.User),
		profiles: make(map[int64]*store.JobSeekerProfile),
	}
}

func (f *fakeUsers) CreateUser(_ context.Context, u *store.User) (*store.User, error) {
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return nil, store.ErrConflict
		}
	}
	f.nextID++
	created := *u
	created.ID = f.nextID
	created.CreatedAt = time.Now()
	f.users[created.ID] = &created
	return &created, nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) GetUser(_ context.Context, id int64) (*store.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *u
	if p, ok := f.profiles[id]; ok {
		cp := *p
		out.JobSeekerProfile = &cp
	}
	return &out, nil
}

func (f *fakeUsers) UpsertProfile(_ context.Context, p *store.JobSeekerProfile) error {
	cp := *p
	f.profiles[p.UserID] = &cp
	return nil
}

func (f *fakeUsers) GetProfile(_ context.Context, userID int64) (*store.JobSeekerProfile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *p
	return &out, nil
}

type fakeJobs struct {
	jobs   map[int64]*store.Job
	nextID int64
}

func newFakeJobs() *fakeJobs { return &fakeJobs{jobs: make(map[int64]*store.Job)} }

func (f *fakeJobs) CreateJob(_ context.Context, j *store.Job) (*store.Job, error) {
	f.nextID++
	created := *j
	created.ID = f.nextID
	created.CreatedAt = time.Now()
	f.jobs[created.ID] = &created
	return &created, nil
}

func (f *fakeJobs) GetJob(_ context.Context, id int64) (*store.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *j
	return &out, nil
}

func (f *fakeJobs) ListJobs(_ context.Context, limit int) ([]store.Job, error) {
	var out []store.Job
	for _, j := range f.jobs {
		out = append(out, *j)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeJobs) DeleteJob(_ context.Context, id, recruiterID int64) error {
	j, ok := f.jobs[id]
	if !ok || j.RecruiterID != recruiterID {
		return store.ErrNotFound
	}
	delete(f.jobs, id)
	return nil
}

type fakeApplications struct {
	apps   map[int64]*store.Application
	nextID int64
}

func newFakeApplications() *fakeApplications {
	return &fakeApplications{apps: make(map[int64]*store.Application)}
}

func (f *fakeApplications) CreateApplication(_ context.Context, a *store.Application) (*store.Application, error) {
	for _, existing := range f.apps {
		if existing.JobID == a.JobID && existing.UserID == a.UserID {
			return nil, store.ErrConflict
		}
	}
	f.nextID++
	created := *a
	created.ID = f.nextID
	created.Status = store.ApplicationPending
	created.CreatedAt = time.Now()
	f.apps[created.ID] = &created
	return &created, nil
}

func (f *fakeApplications) ListApplicationsByUser(_ context.Context, userID int64) ([]store.Application, error) {
	var out []store.Application
	for _, a := range f.apps {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeApplications) ListApplicationsByJob(_ context.Context, jobID int64) ([]store.Application, error) {
	var out []store.Application
	for _, a := range f.apps {
		if a.JobID == jobID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeApplications) UpdateApplicationStatus(_ context.Context, id int64, status string) error {
	a, ok := f.apps[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Status = status
	return nil
}

type fakeRooms struct {
	rooms map[int64]*store.Room
}

func newFakeRooms() *fakeRooms { return &fakeRooms{rooms: make(map[int64]*store.Room)} }

func (f *fakeRooms) GetOrCreateRoom(_ context.Context, userID int64, name string) (*store.Room, error) {
	if r, ok := f.rooms[userID]; ok {
		out := *r
		return &out, nil
	}
	r := &store.Room{ID: int64(len(f.rooms) + 1), UserID: userID, Name: name, CreatedAt: time.Now()}
	f.rooms[userID] = r
	out := *r
	return &out, nil
}

func (f *fakeRooms) GetRoomByUser(_ context.Context, userID int64) (*store.Room, error) {
	r, ok := f.rooms[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *r
	return &out, nil
}

type fakeChatRooms struct {
	users map[int64]bool
	rooms map[string]*store.ChatRoom
	seq   int
}

func newFakeChatRooms(userIDs ...int64) *fakeChatRooms {
	f := &fakeChatRooms{users: make(map[int64]bool), rooms: make(map[string]*store.ChatRoom)}
	for _, id := range userIDs {
		f.users[id] = true
	}
	return f
}

func (f *fakeChatRooms) checkUsers(userIDs []int64) error {
	for _, id := range userIDs {
		if !f.users[id] {
			return fmt.Errorf("%w: user %d", store.ErrNotFound, id)
		}
	}
	return nil
}

func memberSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func sortedMembers(set map[int64]bool) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (f *fakeChatRooms) CreateChatRoom(_ context.Context, name string, isGroup bool, userIDs []int64) (*store.ChatRoom, error) {
	if !isGroup && len(userIDs) == 2 && userIDs[0] != userIDs[1] {
		for _, r := range f.rooms {
			if r.IsGroup || len(r.MemberIDs) != 2 {
				continue
			}
			set := memberSet(r.MemberIDs)
			if set[userIDs[0]] && set[userIDs[1]] {
				out := *r
				return &out, nil
			}
		}
	}
	if err := f.checkUsers(userIDs); err != nil {
		return nil, err
	}
	f.seq++
	r := &store.ChatRoom{
		ID:        fmt.Sprintf("room-%d", f.seq),
		IsGroup:   isGroup,
		Name:      name,
		CreatedAt: time.Now(),
		MemberIDs: sortedMembers(memberSet(userIDs)),
	}
	f.rooms[r.ID] = r
	out := *r
	return &out, nil
}

func (f *fakeChatRooms) GetChatRoom(_ context.Context, id string) (*store.ChatRoom, error) {
	r, ok := f.rooms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *r
	return &out, nil
}

func (f *fakeChatRooms) ListChatRooms(_ context.Context) ([]store.ChatRoom, error) {
	var out []store.ChatRoom
	for _, r := range f.rooms {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeChatRooms) AddChatRoomMembers(_ context.Context, roomID string, userIDs []int64) (*store.ChatRoom, error) {
	r, ok := f.rooms[roomID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if err := f.checkUsers(userIDs); err != nil {
		return nil, err
	}
	set := memberSet(r.MemberIDs)
	for _, id := range userIDs {
		set[id] = true
	}
	r.MemberIDs = sortedMembers(set)
	out := *r
	return &out, nil
}

func (f *fakeChatRooms) RemoveChatRoomMember(_ context.Context, roomID string, userID int64) (*store.ChatRoom, error) {
	r, ok := f.rooms[roomID]
	if !ok {
		return nil, store.ErrNotFound
	}
	set := memberSet(r.MemberIDs)
	if !set[userID] {
		return nil, fmt.Errorf("%w: user %d not in room", store.ErrNotFound, userID)
	}
	delete(set, userID)
	r.MemberIDs = sortedMembers(set)
	out := *r
	return &out, nil
}

type fakeControl struct {
	created []string
	deleted []string
	egress  []string
}

func (f *fakeControl) CreateRoom(_ context.Context, name string) (*media.RoomInfo, error) {
	f.created = append(f.created, name)
	return &media.RoomInfo{Name: name}, nil
}

func (f *fakeControl) DeleteRoom(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeControl) StartCompositeEgress(_ context.Context, room string, _ media.EgressS3Output) (*media.EgressInfo, error) {
	f.egress = append(f.egress, room)
	return &media.EgressInfo{EgressID: "eg_1", RoomName: room}, nil
}

type fakeArtifacts struct {
	objects map[string][]byte
}

func newFakeArtifacts() *fakeArtifacts { return &fakeArtifacts{objects: make(map[string][]byte)} }

func (f *fakeArtifacts) List(_ context.Context, prefix string) ([]blob.Object, error) {
	var out []blob.Object
	for key, data := range f.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			out = append(out, blob.Object{Key: key, FileName: key, Size: int64(len(data)), LastModified: time.Now()})
		}
	}
	return out, nil
}

func (f *fakeArtifacts) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

func (f *fakeArtifacts) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example.com/" + key, nil
}

type fakeInterviews struct {
	requests map[string]*interview.Request
}

func newFakeInterviews() *fakeInterviews {
	return &fakeInterviews{requests: make(map[string]*interview.Request)}
}

func (f *fakeInterviews) Get(_ context.Context, userID string) (*interview.Request, error) {
	r, ok := f.requests[userID]
	if !ok {
		return nil, interview.ErrNotFound
	}
	out := *r
	return &out, nil
}

func (f *fakeInterviews) Set(_ context.Context, req *interview.Request) error {
	cp := *req
	f.requests[req.UserID] = &cp
	return nil
}

func (f *fakeInterviews) Delete(_ context.Context, userID string) error {
	delete(f.requests, userID)
	return nil
}

type fakeFeedbackLLM struct {
	lastReq *llm.Request
	text    string
}

func (f *fakeFeedbackLLM) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	f.lastReq = req
	return &llm.Response{Text: f.text}, nil
}

func (f *fakeFeedbackLLM) StreamComplete(context.Context, *llm.Request) (llm.Stream, error) {
	panic("not used")
}

// --- request helpers ---

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asUser(req *http.Request, userID int64, role string) *http.Request {
	claims := &auth.Claims{UserID: userID, Role: role}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
