// Package store is the Postgres persistence layer for the platform API.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a unique constraint rejects a write.
var ErrConflict = errors.New("store: conflict")

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// Open connects the pool and verifies connectivity.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{pool: pool, log: logger}, nil
}

// Pool exposes the underlying pool for migrations.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// --- users ---

// CreateUser inserts a user and returns it with the assigned ID.
func (s *Store) CreateUser(ctx context.Context, u *User) (*User, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, full_name, role)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING id, created_at`,
		u.Email, u.PasswordHash, u.FullName, u.Role,
	).Scan(&u.ID, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: email %s already registered", ErrConflict, u.Email)
	}
	if err != nil {
		return nil, fmt.Errorf("store: create user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns a user with the password hash for credential
// checks.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, full_name, role, created_at
		 FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user by email: %w", err)
	}
	return &u, nil
}

// GetUser returns a user by ID, with the job-seeker profile joined when
// one exists.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, full_name, role, created_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}

	profile, err := s.GetProfile(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	u.JobSeekerProfile = profile
	return &u, nil
}

// --- profiles ---

// UpsertProfile creates or replaces a user's candidate profile.
func (s *Store) UpsertProfile(ctx context.Context, p *JobSeekerProfile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_seeker_profiles (user_id, headline, summary, skills, experience_years, education)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET
		   headline = EXCLUDED.headline,
		   summary = EXCLUDED.summary,
		   skills = EXCLUDED.skills,
		   experience_years = EXCLUDED.experience_years,
		   education = EXCLUDED.education`,
		p.UserID, p.Headline, p.Summary, p.Skills, p.ExperienceYears, p.Education,
	)
	if err != nil {
		return fmt.Errorf("store: upsert profile: %w", err)
	}
	return nil
}

// GetProfile returns a user's candidate profile.
func (s *Store) GetProfile(ctx context.Context, userID int64) (*JobSeekerProfile, error) {
	var p JobSeekerProfile
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, headline, summary, skills, experience_years, education
		 FROM job_seeker_profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.Headline, &p.Summary, &p.Skills, &p.ExperienceYears, &p.Education)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get profile: %w", err)
	}
	return &p, nil
}

// --- jobs ---

// CreateJob inserts a job posting.
func (s *Store) CreateJob(ctx context.Context, j *Job) (*Job, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO jobs (recruiter_id, title, description, location)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		j.RecruiterID, j.Title, j.Description, j.Location,
	).Scan(&j.ID, &j.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: create job: %w", err)
	}
	return j, nil
}

// GetJob returns one job posting.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	var j Job
	err := s.pool.QueryRow(ctx,
		`SELECT id, recruiter_id, title, description, location, created_at
		 FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.RecruiterID, &j.Title, &j.Description, &j.Location, &j.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get job: %w", err)
	}
	return &j, nil
}

// ListJobs returns postings newest first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, recruiter_id, title, description, location, created_at
		 FROM jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.RecruiterID, &j.Title, &j.Description, &j.Location, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// DeleteJob removes a posting owned by the recruiter.
func (s *Store) DeleteJob(ctx context.Context, id, recruiterID int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM jobs WHERE id = $1 AND recruiter_id = $2`, id, recruiterID)
	if err != nil {
		return fmt.Errorf("store: delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- applications ---

// CreateApplication submits an application. A duplicate submission for
// the same job returns ErrConflict.
func (s *Store) CreateApplication(ctx context.Context, a *Application) (*Application, error) {
	if a.Status == "" {
		a.Status = ApplicationPending
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO applications (job_id, user_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (job_id, user_id) DO NOTHING
		 RETURNING id, created_at`,
		a.JobID, a.UserID, a.Status,
	).Scan(&a.ID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: already applied to job %d", ErrConflict, a.JobID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: create application: %w", err)
	}
	return a, nil
}

// ListApplicationsByUser returns a candidate's applications newest first.
func (s *Store) ListApplicationsByUser(ctx context.Context, userID int64) ([]Application, error) {
	return s.listApplications(ctx,
		`SELECT id, job_id, user_id, status, created_at
		 FROM applications WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListApplicationsByJob returns a posting's applications newest first.
func (s *Store) ListApplicationsByJob(ctx context.Context, jobID int64) ([]Application, error) {
	return s.listApplications(ctx,
		`SELECT id, job_id, user_id, status, created_at
		 FROM applications WHERE job_id = $1 ORDER BY created_at DESC`, jobID)
}

func (s *Store) listApplications(ctx context.Context, query string, arg any) ([]Application, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("store: list applications: %w", err)
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		var a Application
		if err := rows.Scan(&a.ID, &a.JobID, &a.UserID, &a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan application: %w", err)
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// UpdateApplicationStatus transitions an application.
func (s *Store) UpdateApplicationStatus(ctx context.Context, id int64, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE applications SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("store: update application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- rooms ---

// GetOrCreateRoom returns the user's dedicated interview room, creating
// it on first use. The unique constraint on user_id makes concurrent
// first calls converge on one room.
func (s *Store) GetOrCreateRoom(ctx context.Context, userID int64, name string) (*Room, error) {
	var r Room
	err := s.pool.QueryRow(ctx,
		`INSERT INTO rooms (user_id, name)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING id, user_id, name, created_at`,
		userID, name,
	).Scan(&r.ID, &r.UserID, &r.Name, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: get or create room: %w", err)
	}
	return &r, nil
}

// GetRoomByUser returns the user's room, or ErrNotFound.
func (s *Store) GetRoomByUser(ctx context.Context, userID int64) (*Room, error) {
	var r Room
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, name, created_at FROM rooms WHERE user_id = $1`, userID,
	).Scan(&r.ID, &r.UserID, &r.Name, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get room: %w", err)
	}
	return &r, nil
}
