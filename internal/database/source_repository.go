package database

import (
	"database/sql"
	"fmt"
)

// SourceRepository handles database operations for the source table
type SourceRepository struct{}

// NewSourceRepository creates a new SourceRepository
func NewSourceRepository() *SourceRepository {
	return &SourceRepository{}
}

// Claim atomically registers (archive, filename) as ingested. The insert is
// the idempotence marker for the whole batch: if the row already exists the
// document was ingested by a previous run and claimed is false. Run inside
// the document's transaction so a rolled-back document releases its claim.
func (r *SourceRepository) Claim(q Queryer, archive, filename string) (sourceID int64, claimed bool, err error) {
	query := `
		INSERT INTO source (archive, filename)
		VALUES ($1, $2)
		ON CONFLICT (archive, filename) DO NOTHING
		RETURNING source_id
	`

	err = q.QueryRow(query, archive, filename).Scan(&sourceID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to claim source %s/%s: %w", archive, filename, err)
	}

	return sourceID, true, nil
}
