package database

import (
	"database/sql"
	"fmt"

	"github.com/openbusmap/frequency-backend/internal/models"
)

// StopRepository handles the globally-interned stoppoint table. ATCO codes
// are not source-scoped: every document referencing the same physical stop
// resolves to the same row.
type StopRepository struct{}

// NewStopRepository creates a new StopRepository
func NewStopRepository() *StopRepository {
	return &StopRepository{}
}

// Intern returns the stop id for atcocode, creating a bare row (null
// descriptive fields) on first reference from any document.
func (r *StopRepository) Intern(q Queryer, atcocode string) (int64, error) {
	insert := `
		INSERT INTO stoppoint (atcocode)
		VALUES ($1)
		ON CONFLICT (atcocode) DO NOTHING
		RETURNING stoppoint_id
	`

	var id int64
	err := q.QueryRow(insert, atcocode).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to intern stop %q: %w", atcocode, err)
	}

	err = q.Get(&id, `SELECT stoppoint_id FROM stoppoint WHERE atcocode = $1`, atcocode)
	if err != nil {
		return 0, fmt.Errorf("failed to read interned stop %q: %w", atcocode, err)
	}

	return id, nil
}

// AttachDescription fills in the registry-sourced fields on a stop,
// interning it first if no document has referenced it yet. The stop's id
// never changes; only the descriptive payload is updated.
func (r *StopRepository) AttachDescription(q Queryer, atcocode string, shortcode, name *string, latitude, longitude *float64) (int64, error) {
	id, err := r.Intern(q, atcocode)
	if err != nil {
		return 0, err
	}

	update := `
		UPDATE stoppoint
		SET shortcode = $2, name = $3, latitude = $4, longitude = $5
		WHERE stoppoint_id = $1
	`
	if _, err := q.Exec(update, id, shortcode, name, latitude, longitude); err != nil {
		return 0, fmt.Errorf("failed to describe stop %q: %w", atcocode, err)
	}

	return id, nil
}

// GetByAtcoCode retrieves one stop row
func (r *StopRepository) GetByAtcoCode(q Queryer, atcocode string) (*models.Stop, error) {
	stop := &models.Stop{}
	err := q.Get(stop, `
		SELECT stoppoint_id, atcocode, shortcode, name, latitude, longitude
		FROM stoppoint
		WHERE atcocode = $1
	`, atcocode)
	if err != nil {
		return nil, fmt.Errorf("failed to get stop %q: %w", atcocode, err)
	}
	return stop, nil
}

// CreateAnnotation records the per-document descriptive reference an
// AnnotatedStopPointRef element carries. Insert-if-absent: reprocessing
// runs and repeated references inside one document are no-ops.
func (r *StopRepository) CreateAnnotation(q Queryer, a *models.StopAnnotation) error {
	query := `
		INSERT INTO stoppoint_annotation (source_id, stoppoint_id, name, indicator, locality_name, locality_qualifier)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_id, stoppoint_id) DO NOTHING
	`

	_, err := q.Exec(query, a.SourceID, a.StopID, a.Name, a.Indicator, a.LocalityName, a.LocalityQualifier)
	if err != nil {
		return fmt.Errorf("failed to create stop annotation: %w", err)
	}
	return nil
}

// SelectInBoundingBox returns the described stops inside the box, for the
// presentation layer's map queries.
func (r *StopRepository) SelectInBoundingBox(q Queryer, minLat, minLng, maxLat, maxLng float64) ([]models.Stop, error) {
	stops := []models.Stop{}
	err := q.Select(&stops, `
		SELECT stoppoint_id, atcocode, shortcode, name, latitude, longitude
		FROM stoppoint
		WHERE latitude BETWEEN $1 AND $3
		  AND longitude BETWEEN $2 AND $4
	`, minLat, minLng, maxLat, maxLng)
	if err != nil {
		return nil, fmt.Errorf("failed to select stops in bounding box: %w", err)
	}
	return stops, nil
}
