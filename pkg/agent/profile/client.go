// Package profile fetches candidate profiles from the platform API and
// turns them into interviewer instructions.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// JobSeekerProfile is the candidate-facing profile attached to a user.
type JobSeekerProfile struct {
	Headline        string `json:"headline"`
	Summary         string `json:"summary"`
	Skills          string `json:"skills"`
	ExperienceYears int    `json:"experience_years"`
	Education       string `json:"education"`
}

// Profile is the platform user joined with their candidate profile.
type Profile struct {
	ID               int64             `json:"id"`
	Email            string            `json:"email"`
	FullName         string            `json:"full_name"`
	Role             string            `json:"role"`
	JobSeekerProfile *JobSeekerProfile `json:"job_seeker_profile,omitempty"`
}

// Client fetches profiles over the platform's HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a profile client for the given API base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch retrieves the profile for a participant identity. Any non-200
// response is an error: a session cannot be personalized without the
// profile, and the caller treats this as fatal to startup.
func (c *Client) Fetch(ctx context.Context, identity string) (*Profile, error) {
	url := c.baseURL + "/users/" + identity
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("profile: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile: fetch %s: %w", identity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("profile: fetch %s: status %d: %s", identity, resp.StatusCode, string(body))
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("profile: decode %s: %w", identity, err)
	}
	return &p, nil
}

// Instructions renders the profile into the interviewer's system prompt.
func (p *Profile) Instructions() string {
	var b strings.Builder
	b.WriteString("You are a professional job interviewer conducting a voice interview. ")
	b.WriteString("Ask one question at a time, keep responses concise, and never use unpronounceable formatting.\n\n")
	b.WriteString("Candidate: " + p.FullName + "\n")

	if jsp := p.JobSeekerProfile; jsp != nil {
		if jsp.Headline != "" {
			b.WriteString("Headline: " + jsp.Headline + "\n")
		}
		if jsp.Summary != "" {
			b.WriteString("Summary: " + jsp.Summary + "\n")
		}
		if jsp.Skills != "" {
			b.WriteString("Skills: " + jsp.Skills + "\n")
		}
		if jsp.ExperienceYears > 0 {
			fmt.Fprintf(&b, "Years of experience: %d\n", jsp.ExperienceYears)
		}
		if jsp.Education != "" {
			b.WriteString("Education: " + jsp.Education + "\n")
		}
	}

	b.WriteString("\nTailor your questions to the candidate's background.")
	return b.String()
}
