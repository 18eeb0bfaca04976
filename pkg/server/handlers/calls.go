package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hireloop/interviewd/pkg/agent/interview"
	"github.com/hireloop/interviewd/pkg/core/types"
	"github.com/hireloop/interviewd/pkg/llm"
	"github.com/hireloop/interviewd/pkg/media"
	"github.com/hireloop/interviewd/pkg/server/apierror"
	"github.com/hireloop/interviewd/pkg/server/auth"
)

// CallsConfig carries the media and storage settings the call endpoints
// need.
type CallsConfig struct {
	MediaURL       string
	MediaAPIKey    string
	MediaAPISecret string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	PresignTTL    time.Duration
	FeedbackModel string
}

// CallsHandler serves interview rooms, pending interview requests, call
// artifacts, and transcript feedback.
type CallsHandler struct {
	cfg        CallsConfig
	rooms      RoomStore
	control    RoomControl
	artifacts  Artifacts
	interviews InterviewStore
	model      llm.Client
}

// NewCallsHandler creates the call endpoints. model may be nil when
// feedback analysis is not configured.
func NewCallsHandler(cfg CallsConfig, rooms RoomStore, control RoomControl, artifacts Artifacts, interviews InterviewStore, model llm.Client) *CallsHandler {
	if cfg.PresignTTL == 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
	return &CallsHandler{cfg: cfg, rooms: rooms, control: control, artifacts: artifacts, interviews: interviews, model: model}
}

func (h *CallsHandler) requireControl(w http.ResponseWriter, r *http.Request) bool {
	if h.control == nil {
		writeError(w, r, &apierror.Error{Type: apierror.ErrAPI, Message: "media server not configured"})
		return false
	}
	return true
}

func (h *CallsHandler) requireArtifacts(w http.ResponseWriter, r *http.Request) bool {
	if h.artifacts == nil {
		writeError(w, r, &apierror.Error{Type: apierror.ErrAPI, Message: "artifact storage not configured"})
		return false
	}
	return true
}

type roomResponse struct {
	Room  string `json:"room"`
	Token string `json:"token"`
	URL   string `json:"url"`
}

// CreateRoom handles POST /calls/room: returns the caller's dedicated
// room with a fresh join token, creating both on first use.
func (h *CallsHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, r, &apierror.Error{Type: apierror.ErrAuthentication, Message: "authentication required"})
		return
	}
	if !h.requireControl(w, r) {
		return
	}

	name := fmt.Sprintf("interview-%d", claims.UserID)
	room, err := h.rooms.GetOrCreateRoom(r.Context(), claims.UserID, name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := h.control.CreateRoom(r.Context(), room.Name); err != nil {
		writeError(w, r, err)
		return
	}

	token, err := media.NewAccessToken(h.cfg.MediaAPIKey, h.cfg.MediaAPISecret).
		SetIdentity(fmt.Sprintf("%d", claims.UserID)).
		SetVideoGrant(media.VideoGrant{RoomJoin: true, Room: room.Name}).
		SetValidFor(2 * time.Hour).
		ToJWT()
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, roomResponse{Room: room.Name, Token: token, URL: h.cfg.MediaURL})
}

// DeleteRoom handles DELETE /calls/room: disconnects everyone from the
// caller's room on the media server.
func (h *CallsHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, r, &apierror.Error{Type: apierror.ErrAuthentication, Message: "authentication required"})
		return
	}
	if !h.requireControl(w, r) {
		return
	}

	room, err := h.rooms.GetRoomByUser(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.control.DeleteRoom(r.Context(), room.Name); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type interviewRequestBody struct {
	JobID int64 `json:"job_id"`
}

// RequestInterview handles POST /calls/interview: queues the caller for
// an agent session.
func (h *CallsHandler) RequestInterview(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, r, &apierror.Error{Type: apierror.ErrAuthentication, Message: "authentication required"})
		return
	}

	var body interviewRequestBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	room, err := h.rooms.GetOrCreateRoom(r.Context(), claims.UserID, fmt.Sprintf("interview-%d", claims.UserID))
	if err != nil {
		writeError(w, r, err)
		return
	}

	req := &interview.Request{
		UserID:   fmt.Sprintf("%d", claims.UserID),
		JobID:    body.JobID,
		RoomName: room.Name,
		Status:   "pending",
	}
	if err := h.interviews.Set(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// GetInterview handles GET /calls/interview.
func (h *CallsHandler) GetInterview(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, r, &apierror.Error{Type: apierror.ErrAuthentication, Message: "authentication required"})
		return
	}

	req, err := h.interviews.Get(r.Context(), fmt.Sprintf("%d", claims.UserID))
	if errors.Is(err, interview.ErrNotFound) {
		writeError(w, r, &apierror.Error{Type: apierror.ErrNotFound, Message: "no pending interview"})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// CancelInterview handles DELETE /calls/interview.
func (h *CallsHandler) CancelInterview(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, r, &apierror.Error{Type: apierror.ErrAuthentication, Message: "authentication required"})
		return
	}

	if err := h.interviews.Delete(r.Context(), fmt.Sprintf("%d", claims.UserID)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type recordingEntry struct {
	Key          string    `json:"key"`
	FileName     string    `json:"file_name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	URL          string    `json:"url"`
}

// ListRecordings handles GET /calls/recordings: the caller's stored call
// artifacts with time-limited download links.
func (h *CallsHandler) ListRecordings(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, r, &apierror.Error{Type: apierror.ErrAuthentication, Message: "authentication required"})
		return
	}
	if !h.requireArtifacts(w, r) {
		return
	}

	prefix := fmt.Sprintf("calls/%d/", claims.UserID)
	objects, err := h.artifacts.List(r.Context(), prefix)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries := make([]recordingEntry, 0, len(objects))
	for _, obj := range objects {
		url, err := h.artifacts.PresignGet(r.Context(), obj.Key, h.cfg.PresignTTL)
		if err != nil {
			writeError(w, r, err)
			return
		}
		entries = append(entries, recordingEntry{
			Key:          obj.Key,
			FileName:     obj.FileName,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			URL:          url,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

// StartEgress handles POST /calls/egress: starts a composite recording
// of the caller's room into object storage.
func (h *CallsHandler) StartEgress(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, r, &apierror.Error{Type: apierror.ErrAuthentication, Message: "authentication required"})
		return
	}
	if !h.requireControl(w, r) {
		return
	}

	room, err := h.rooms.GetRoomByUser(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	info, err := h.control.StartCompositeEgress(r.Context(), room.Name, media.EgressS3Output{
		Bucket:    h.cfg.S3Bucket,
		Region:    h.cfg.S3Region,
		Endpoint:  h.cfg.S3Endpoint,
		AccessKey: h.cfg.S3AccessKey,
		SecretKey: h.cfg.S3SecretKey,
		KeyPrefix: fmt.Sprintf("calls/%d/", claims.UserID),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type analyzeRequest struct {
	Key string `json:"key"`
}

type qaPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type analyzeResponse struct {
	Pairs    []qaPair `json:"pairs"`
	Feedback string   `json:"feedback,omitempty"`
}

// AnalyzeLog handles POST /calls/analyze: pairs the transcript's agent
// questions with candidate answers and, when a model is configured,
// generates interview feedback.
func (h *CallsHandler) AnalyzeLog(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, r, &apierror.Error{Type: apierror.ErrAuthentication, Message: "authentication required"})
		return
	}

	if !h.requireArtifacts(w, r) {
		return
	}

	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	prefix := fmt.Sprintf("calls/%d/", claims.UserID)
	if req.Key == "" || !strings.HasPrefix(req.Key, prefix) {
		writeError(w, r, &apierror.Error{Type: apierror.ErrPermission, Message: "key outside caller's artifacts", Param: "key"})
		return
	}

	data, err := h.artifacts.Get(r.Context(), req.Key)
	if err != nil {
		writeError(w, r, err)
		return
	}

	pairs := pairTranscript(string(data))
	resp := analyzeResponse{Pairs: pairs}

	if h.model != nil && len(pairs) > 0 {
		feedback, err := h.generateFeedback(r.Context(), pairs)
		if err != nil {
			// Pairing alone is still useful; feedback is best effort.
			writeJSON(w, http.StatusOK, resp)
			return
		}
		resp.Feedback = feedback
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CallsHandler) generateFeedback(ctx context.Context, pairs []qaPair) (string, error) {
	var b strings.Builder
	b.WriteString("Review this job interview transcript and give the candidate concise, constructive feedback on their answers.\n\n")
	for _, p := range pairs {
		b.WriteString("Q: " + p.Question + "\n")
		b.WriteString("A: " + p.Answer + "\n\n")
	}

	resp, err := h.model.Complete(ctx, &llm.Request{
		Model:  h.cfg.FeedbackModel,
		System: "You are an experienced interview coach.",
		Messages: []types.Message{
			{Role: types.RoleUser, Content: b.String()},
		},
		MaxTokens: 1024,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// pairTranscript pairs each AGENT line with the USER lines that follow
// it, up to the next AGENT line. Lines look like
// "[timestamp] SPEAKER: text".
func pairTranscript(content string) []qaPair {
	var pairs []qaPair
	var current *qaPair

	for _, line := range strings.Split(content, "\n") {
		speaker, text, ok := parseTranscriptLine(line)
		if !ok {
			continue
		}

		switch speaker {
		case "AGENT":
			if current != nil && current.Answer != "" {
				pairs = append(pairs, *current)
			}
			current = &qaPair{Question: text}
		case "USER":
			if current == nil {
				continue
			}
			if current.Answer != "" {
				current.Answer += " "
			}
			current.Answer += text
		}
	}

	if current != nil && current.Answer != "" {
		pairs = append(pairs, *current)
	}
	return pairs
}

func parseTranscriptLine(line string) (speaker, text string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") {
		return "", "", false
	}
	end := strings.Index(line, "] ")
	if end < 0 {
		return "", "", false
	}
	rest := line[end+2:]

	for _, s := range []string{"AGENT", "USER"} {
		if strings.HasPrefix(rest, s+": ") {
			return s, strings.TrimPrefix(rest, s+": "), true
		}
	}
	return "", "", false
}
