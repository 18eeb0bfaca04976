package store

import "time"

// Roles a platform user can hold.
const (
	RoleJobSeeker = "job_seeker"
	RoleRecruiter = "recruiter"
)

// User is a platform account.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`

	// JobSeekerProfile is populated on single-user reads for job seekers.
	JobSeekerProfile *JobSeekerProfile `json:"job_seeker_profile,omitempty"`
}

// JobSeekerProfile is the candidate profile attached to a job-seeker user.
type JobSeekerProfile struct {
	UserID          int64  `json:"-"`
	Headline        string `json:"headline"`
	Summary         string `json:"summary"`
	Skills          string `json:"skills"`
	ExperienceYears int    `json:"experience_years"`
	Education       string `json:"education"`
}

// Job is a posted position.
type Job struct {
	ID          int64     `json:"id"`
	RecruiterID int64     `json:"recruiter_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	CreatedAt   time.Time `json:"created_at"`
}

// Application statuses.
const (
	ApplicationPending  = "pending"
	ApplicationReviewed = "reviewed"
	ApplicationAccepted = "accepted"
	ApplicationRejected = "rejected"
)

// Application links a job seeker to a job.
type Application struct {
	ID        int64     `json:"id"`
	JobID     int64     `json:"job_id"`
	UserID    int64     `json:"user_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Room is a user's dedicated interview room. Each user has at most one.
type Room struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatRoom is a direct or group conversation between platform users.
// Direct rooms hold exactly two members and are deduplicated per pair.
type ChatRoom struct {
	ID        string    `json:"id"`
	IsGroup   bool      `json:"is_group"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	MemberIDs []int64   `json:"member_ids"`
}
