package database

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/openbusmap/frequency-backend/internal/models"
)

// FrequencyRepository handles the frequency_link aggregate table. The table
// is a materialized summary: it is rebuilt in full from the normalized
// tables and never mutated row-by-row.
type FrequencyRepository struct{}

// NewFrequencyRepository creates a new FrequencyRepository
func NewFrequencyRepository() *FrequencyRepository {
	return &FrequencyRepository{}
}

// Rebuild replaces the whole frequency_link table with links. Run inside
// one transaction so readers always see a complete, consistent summary.
func (r *FrequencyRepository) Rebuild(q Queryer, links []models.FrequencyLink) error {
	if _, err := q.Exec(`DELETE FROM frequency_link`); err != nil {
		return fmt.Errorf("failed to clear frequency links: %w", err)
	}

	insert := `
		INSERT INTO frequency_link (
			from_stoppoint_id, to_stoppoint_id, weekday,
			total_by_hour, best_by_hour,
			min_runtime_seconds, max_runtime_seconds,
			from_latitude, from_longitude, to_latitude, to_longitude,
			min_latitude, min_longitude, max_latitude, max_longitude
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	for _, link := range links {
		total := make([]int64, len(link.TotalByHour))
		best := make([]int64, len(link.BestByHour))
		for i := range link.TotalByHour {
			total[i] = int64(link.TotalByHour[i])
			best[i] = int64(link.BestByHour[i])
		}

		var fromLat, fromLng, toLat, toLng, minLat, minLng, maxLat, maxLng interface{}
		if g := link.Geometry; g != nil {
			fromLat, fromLng, toLat, toLng = g.FromLatitude, g.FromLongitude, g.ToLatitude, g.ToLongitude
			bMinLat, bMinLng, bMaxLat, bMaxLng := g.BoundingBox()
			minLat, minLng, maxLat, maxLng = bMinLat, bMinLng, bMaxLat, bMaxLng
		}

		_, err := q.Exec(insert,
			link.FromStopID, link.ToStopID, link.Weekday,
			pq.Array(total), pq.Array(best),
			link.MinRuntimeSeconds, link.MaxRuntimeSeconds,
			fromLat, fromLng, toLat, toLng,
			minLat, minLng, maxLat, maxLng,
		)
		if err != nil {
			return fmt.Errorf("failed to insert frequency link %d->%d weekday %d: %w",
				link.FromStopID, link.ToStopID, link.Weekday, err)
		}
	}

	return nil
}

// SelectInBoundingBox returns the frequency links for one weekday whose
// segment bounding box overlaps the requested box. This is the read query
// the (external) presentation layer renders from.
func (r *FrequencyRepository) SelectInBoundingBox(q Queryer, weekday int, minLat, minLng, maxLat, maxLng float64) ([]models.FrequencyLink, error) {
	if weekday < 0 || weekday > 6 {
		return nil, fmt.Errorf("weekday %d out of range", weekday)
	}

	rows, err := q.Query(`
		SELECT
			from_stoppoint_id, to_stoppoint_id, weekday,
			total_by_hour, best_by_hour,
			min_runtime_seconds, max_runtime_seconds,
			from_latitude, from_longitude, to_latitude, to_longitude
		FROM frequency_link
		WHERE weekday = $1
		  AND min_latitude <= $4 AND max_latitude >= $2
		  AND min_longitude <= $5 AND max_longitude >= $3
		ORDER BY from_stoppoint_id, to_stoppoint_id
	`, weekday, minLat, minLng, maxLat, maxLng)
	if err != nil {
		return nil, fmt.Errorf("failed to select frequency links: %w", err)
	}
	defer rows.Close()

	links := []models.FrequencyLink{}
	for rows.Next() {
		link, err := scanFrequencyLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *link)
	}

	return links, rows.Err()
}

func scanFrequencyLink(row interface{ Scan(dest ...interface{}) error }) (*models.FrequencyLink, error) {
	link := &models.FrequencyLink{}
	var total, best []int64
	var fromLat, fromLng, toLat, toLng sql.NullFloat64

	err := row.Scan(
		&link.FromStopID, &link.ToStopID, &link.Weekday,
		pq.Array(&total), pq.Array(&best),
		&link.MinRuntimeSeconds, &link.MaxRuntimeSeconds,
		&fromLat, &fromLng, &toLat, &toLng,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan frequency link: %w", err)
	}

	for i := 0; i < len(link.TotalByHour) && i < len(total); i++ {
		link.TotalByHour[i] = int(total[i])
	}
	for i := 0; i < len(link.BestByHour) && i < len(best); i++ {
		link.BestByHour[i] = int(best[i])
	}

	if fromLat.Valid && fromLng.Valid && toLat.Valid && toLng.Valid {
		link.Geometry = &models.Segment{
			FromLatitude:  fromLat.Float64,
			FromLongitude: fromLng.Float64,
			ToLatitude:    toLat.Float64,
			ToLongitude:   toLng.Float64,
		}
	}

	return link, nil
}
