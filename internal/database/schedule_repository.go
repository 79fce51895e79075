package database

import (
	"fmt"

	"github.com/openbusmap/frequency-backend/internal/models"
)

// ScheduleRepository handles the normalized schedule-graph tables. Rows are
// inserted, never updated in place; ON CONFLICT DO NOTHING makes repeated
// definitions of the same interned entity idempotent.
type ScheduleRepository struct{}

// NewScheduleRepository creates a new ScheduleRepository
func NewScheduleRepository() *ScheduleRepository {
	return &ScheduleRepository{}
}

// CreateOperator inserts an operator row if absent
func (r *ScheduleRepository) CreateOperator(q Queryer, o *models.Operator) error {
	query := `
		INSERT INTO operator (operator_id, source_id, shortname)
		VALUES ($1, $2, $3)
		ON CONFLICT (operator_id) DO NOTHING
	`

	if _, err := q.Exec(query, o.ID, o.SourceID, o.ShortName); err != nil {
		return fmt.Errorf("failed to create operator: %w", err)
	}
	return nil
}

// CreateService inserts a service row if absent
func (r *ScheduleRepository) CreateService(q Queryer, s *models.Service) error {
	query := `
		INSERT INTO service (service_id, source_id, operator_id, privatecode, mode, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (service_id) DO NOTHING
	`

	if _, err := q.Exec(query, s.ID, s.SourceID, s.OperatorID, s.PrivateCode, s.Mode, s.Description); err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return nil
}

// CreateLine inserts a line row if absent
func (r *ScheduleRepository) CreateLine(q Queryer, l *models.Line) error {
	query := `
		INSERT INTO line (line_id, source_id, service_id, line_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (line_id) DO NOTHING
	`

	if _, err := q.Exec(query, l.ID, l.SourceID, l.ServiceID, l.LineName); err != nil {
		return fmt.Errorf("failed to create line: %w", err)
	}
	return nil
}

// CreateRoute inserts a route row if absent
func (r *ScheduleRepository) CreateRoute(q Queryer, rt *models.Route) error {
	query := `
		INSERT INTO route (route_id, source_id, privatecode, routesection_id, description)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (route_id) DO NOTHING
	`

	if _, err := q.Exec(query, rt.ID, rt.SourceID, rt.PrivateCode, rt.RouteSectionID, rt.Description); err != nil {
		return fmt.Errorf("failed to create route: %w", err)
	}
	return nil
}

// CreateRouteLink inserts a route link row if absent
func (r *ScheduleRepository) CreateRouteLink(q Queryer, rl *models.RouteLink) error {
	query := `
		INSERT INTO routelink (routelink_id, source_id, routesection_id, from_stoppoint_id, to_stoppoint_id, direction)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (routelink_id) DO NOTHING
	`

	if _, err := q.Exec(query, rl.ID, rl.SourceID, rl.RouteSectionID, rl.FromStopID, rl.ToStopID, rl.Direction); err != nil {
		return fmt.Errorf("failed to create route link: %w", err)
	}
	return nil
}

// CreateJourneyPattern inserts a journey pattern row if absent
func (r *ScheduleRepository) CreateJourneyPattern(q Queryer, jp *models.JourneyPattern) error {
	query := `
		INSERT INTO journeypattern (journeypattern_id, source_id, service_id, route_id, direction)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (journeypattern_id) DO NOTHING
	`

	if _, err := q.Exec(query, jp.ID, jp.SourceID, jp.ServiceID, jp.RouteID, jp.Direction); err != nil {
		return fmt.Errorf("failed to create journey pattern: %w", err)
	}
	return nil
}

// AddJourneyPatternSection links a journey pattern to one of its sections
func (r *ScheduleRepository) AddJourneyPatternSection(q Queryer, sourceID, journeyPatternID, sectionID int64) error {
	query := `
		INSERT INTO journeypattern_section (source_id, journeypattern_id, jpsection_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (journeypattern_id, jpsection_id) DO NOTHING
	`

	if _, err := q.Exec(query, sourceID, journeyPatternID, sectionID); err != nil {
		return fmt.Errorf("failed to add journey pattern section: %w", err)
	}
	return nil
}

// CreateTimingLink inserts a timing link row if absent
func (r *ScheduleRepository) CreateTimingLink(q Queryer, tl *models.TimingLink) error {
	query := `
		INSERT INTO jptiminglink (
			jptiminglink_id, source_id, jpsection_id, routelink_id, runtime_seconds,
			from_sequence, from_stoppoint_id, to_sequence, to_stoppoint_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (jptiminglink_id) DO NOTHING
	`

	_, err := q.Exec(query,
		tl.ID, tl.SourceID, tl.SectionID, tl.RouteLinkID, tl.RuntimeSeconds,
		tl.FromSequence, tl.FromStopID, tl.ToSequence, tl.ToStopID,
	)
	if err != nil {
		return fmt.Errorf("failed to create timing link: %w", err)
	}
	return nil
}

// CreateVehicleJourney inserts a vehicle journey row if absent
func (r *ScheduleRepository) CreateVehicleJourney(q Queryer, vj *models.VehicleJourney) error {
	query := `
		INSERT INTO vehiclejourney (
			vehiclejourney_id, source_id, journeypattern_id, other_vehiclejourney_id,
			line_id, privatecode, days_mask, deptime, deptime_seconds
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (vehiclejourney_id) DO NOTHING
	`

	_, err := q.Exec(query,
		vj.ID, vj.SourceID, vj.JourneyPatternID, vj.OtherJourneyID,
		vj.LineID, vj.PrivateCode, vj.DaysMask, vj.DepartureTime, vj.DepartureSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to create vehicle journey: %w", err)
	}
	return nil
}

// SelectJourneyDepartures returns every vehicle journey with its effective
// journey pattern resolved. The adopted-pattern indirection is at most one
// hop, so a single self-join resolves it; journeys where neither side
// yields a pattern are dropped here.
func (r *ScheduleRepository) SelectJourneyDepartures(q Queryer) ([]models.JourneyDeparture, error) {
	departures := []models.JourneyDeparture{}
	err := q.Select(&departures, `
		SELECT
			vj.vehiclejourney_id,
			COALESCE(vj.journeypattern_id, other.journeypattern_id) AS journeypattern_id,
			vj.line_id,
			(vj.journeypattern_id IS NULL) AS adopted,
			vj.days_mask,
			vj.deptime_seconds,
			COALESCE(line.line_name, '') AS line_name
		FROM vehiclejourney vj
		LEFT JOIN vehiclejourney other ON other.vehiclejourney_id = vj.other_vehiclejourney_id
		LEFT JOIN line ON line.line_id = vj.line_id
		WHERE COALESCE(vj.journeypattern_id, other.journeypattern_id) IS NOT NULL
		ORDER BY vj.vehiclejourney_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to select journey departures: %w", err)
	}
	return departures, nil
}

// SelectPatternEdges returns every timing-link edge keyed by the journey
// pattern it belongs to, joined with stop coordinates for geometry.
func (r *ScheduleRepository) SelectPatternEdges(q Queryer) ([]models.PatternEdge, error) {
	edges := []models.PatternEdge{}
	err := q.Select(&edges, `
		SELECT
			section.journeypattern_id,
			timing.from_stoppoint_id,
			timing.to_stoppoint_id,
			timing.runtime_seconds,
			s_from.latitude AS from_latitude,
			s_from.longitude AS from_longitude,
			s_to.latitude AS to_latitude,
			s_to.longitude AS to_longitude
		FROM jptiminglink timing
		JOIN journeypattern_section section ON section.jpsection_id = timing.jpsection_id
		JOIN stoppoint s_from ON s_from.stoppoint_id = timing.from_stoppoint_id
		JOIN stoppoint s_to ON s_to.stoppoint_id = timing.to_stoppoint_id
		ORDER BY section.journeypattern_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to select pattern edges: %w", err)
	}
	return edges, nil
}
