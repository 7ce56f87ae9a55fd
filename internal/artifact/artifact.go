// Package artifact records the outcome of long-running exports so that
// only completed outputs are ever treated as valid files.
package artifact

import (
	"context"
	"errors"
	"time"

	"backend-railjourney/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusCanceled Status = "canceled"
	StatusFailed   Status = "failed"
)

var ErrArtifactNotFound = errors.New("artifact not found")

type Artifact struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Status    Status    `json:"status"`
	Path      string    `json:"path,omitempty"`
	Frames    int       `json:"frames"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, sessionID, kind string) (Artifact, error) {
	a := Artifact{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Kind:      kind,
		Status:    StatusPending,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO export_artifacts (id, session_id, kind, status)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at, updated_at
	`, a.ID, a.SessionID, a.Kind, a.Status)
	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return Artifact{}, err
	}
	return a, nil
}

func (s *Service) Complete(ctx context.Context, id, path string, frames int) error {
	_, err := s.db.Exec(ctx, `
		UPDATE export_artifacts
		SET status=$2, path=$3, frames=$4, updated_at=now()
		WHERE id=$1
	`, id, StatusComplete, path, frames)
	return err
}

// Fail marks an artifact as unusable. Its path is cleared so no partial file
// is ever referenced.
func (s *Service) Fail(ctx context.Context, id string, status Status, reason string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE export_artifacts
		SET status=$2, path=NULL, reason=$3, updated_at=now()
		WHERE id=$1
	`, id, status, reason)
	return err
}

func (s *Service) Get(ctx context.Context, id string) (Artifact, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, session_id, kind, status, COALESCE(path,''), frames, COALESCE(reason,''), created_at, updated_at
		FROM export_artifacts WHERE id=$1
	`, id)
	a, err := scanArtifact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Artifact{}, ErrArtifactNotFound
	}
	return a, err
}

func (s *Service) ForSession(ctx context.Context, sessionID string) ([]Artifact, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, kind, status, COALESCE(path,''), frames, COALESCE(reason,''), created_at, updated_at
		FROM export_artifacts WHERE session_id=$1
		ORDER BY created_at DESC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanArtifact(row pgx.Row) (Artifact, error) {
	var (
		a      Artifact
		status string
	)
	if err := row.Scan(&a.ID, &a.SessionID, &a.Kind, &status, &a.Path, &a.Frames, &a.Reason, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Artifact{}, err
	}
	a.Status = Status(status)
	return a, nil
}
