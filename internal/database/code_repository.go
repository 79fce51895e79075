package database

import (
	"database/sql"
	"fmt"
)

// CodeRepository interns natural-key text to stable integer ids. Identity
// assignment is decoupled from entity payloads: a code can be interned from
// a referencing element long before (or after) its defining element is
// seen, on either side of a document boundary, and always resolves to the
// same id. The unique constraint is the source of truth: two callers racing
// to create the same key both end up with the winner's id.
type CodeRepository struct{}

// NewCodeRepository creates a new CodeRepository
func NewCodeRepository() *CodeRepository {
	return &CodeRepository{}
}

// Intern returns the id for (kind, sourceID, code), creating it if absent.
// Ordinary entity codes are scoped to their source document; the same text
// in another document gets an independent id.
func (r *CodeRepository) Intern(q Queryer, kind string, sourceID int64, code string) (int64, error) {
	insert := `
		INSERT INTO interned_code (kind, source_id, code)
		VALUES ($1, $2, $3)
		ON CONFLICT (kind, source_id, code) DO NOTHING
		RETURNING code_id
	`

	var id int64
	err := q.QueryRow(insert, kind, sourceID, code).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to intern %s code %q: %w", kind, code, err)
	}

	// Lost the insert race (or the code was interned earlier): read the
	// winner's id.
	err = q.Get(&id, `SELECT code_id FROM interned_code WHERE kind = $1 AND source_id = $2 AND code = $3`,
		kind, sourceID, code)
	if err != nil {
		return 0, fmt.Errorf("failed to read interned %s code %q: %w", kind, code, err)
	}

	return id, nil
}
