package archive

import (
	"context"
	"database/sql"

	"chatarchive/internal/storage"
)

// Service reads and writes projects, conversations and messages.
type Service struct {
	db   *sql.DB
	cols storage.Columns
}

// NewService builds a new archive service over db using the resolved column names.
func NewService(db *sql.DB, cols storage.Columns) *Service {
	return &Service{db: db, cols: cols}
}

// Ping checks the database connection.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
