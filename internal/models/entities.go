package models

import "time"

// Code kinds used by the interner. Every cross-referenced natural key in a
// timetable document belongs to exactly one of these, scoped to its source
// document. Stop codes are deliberately absent: the same physical stop is
// referenced from many documents and is interned globally as a Stop row.
const (
	KindOperator       = "operator"
	KindService        = "service"
	KindLine           = "line"
	KindRoute          = "route"
	KindRouteSection   = "routesection"
	KindRouteLink      = "routelink"
	KindJourneyPattern = "journeypattern"
	KindJPSection      = "jpsection"
	KindJPTimingLink   = "jptiminglink"
	KindVehicleJourney = "vehiclejourney"
)

// Source identifies one ingested document inside one archive. Its existence
// is the idempotence marker: a document with a Source row is never re-read.
type Source struct {
	ID         int64     `db:"source_id"`
	Archive    string    `db:"archive"`
	Filename   string    `db:"filename"`
	ImportedAt time.Time `db:"imported_at"`
}

// Stop is a physical stop, interned globally by ATCO code. Name, short code
// and coordinates stay null until the stop-registry feed is loaded.
type Stop struct {
	ID        int64    `db:"stoppoint_id"`
	AtcoCode  string   `db:"atcocode"`
	ShortCode *string  `db:"shortcode"`
	Name      *string  `db:"name"`
	Latitude  *float64 `db:"latitude"`
	Longitude *float64 `db:"longitude"`
}

// Operator is a transport operator as declared by one document.
type Operator struct {
	ID        int64  `db:"operator_id"`
	SourceID  int64  `db:"source_id"`
	ShortName string `db:"shortname"`
}

// Service groups the lines and journey patterns of one registered service.
type Service struct {
	ID          int64   `db:"service_id"`
	SourceID    int64   `db:"source_id"`
	OperatorID  int64   `db:"operator_id"`
	PrivateCode *string `db:"privatecode"`
	Mode        *string `db:"mode"`
	Description string  `db:"description"`
}

// Line is a passenger-facing line name belonging to a service.
type Line struct {
	ID        int64  `db:"line_id"`
	SourceID  int64  `db:"source_id"`
	ServiceID int64  `db:"service_id"`
	LineName  string `db:"line_name"`
}

// Route is a named route referencing one route section.
type Route struct {
	ID             int64   `db:"route_id"`
	SourceID       int64   `db:"source_id"`
	PrivateCode    *string `db:"privatecode"`
	RouteSectionID int64   `db:"routesection_id"`
	Description    string  `db:"description"`
}

// RouteLink is one directed edge of a route section.
type RouteLink struct {
	ID             int64  `db:"routelink_id"`
	SourceID       int64  `db:"source_id"`
	RouteSectionID int64  `db:"routesection_id"`
	FromStopID     int64  `db:"from_stoppoint_id"`
	ToStopID       int64  `db:"to_stoppoint_id"`
	Direction      string `db:"direction"`
}

// JourneyPattern is a named stop sequence of a service, realized through
// its journey pattern sections.
type JourneyPattern struct {
	ID        int64  `db:"journeypattern_id"`
	SourceID  int64  `db:"source_id"`
	ServiceID int64  `db:"service_id"`
	RouteID   *int64 `db:"route_id"`
	Direction string `db:"direction"`
}

// TimingLink is the atomic schedule-graph edge: one hop between two
// consecutive stops with a scheduled running time.
type TimingLink struct {
	ID             int64  `db:"jptiminglink_id"`
	SourceID       int64  `db:"source_id"`
	SectionID      int64  `db:"jpsection_id"`
	RouteLinkID    *int64 `db:"routelink_id"`
	RuntimeSeconds int    `db:"runtime_seconds"`
	FromSequence   *int   `db:"from_sequence"`
	FromStopID     int64  `db:"from_stoppoint_id"`
	ToSequence     *int   `db:"to_sequence"`
	ToStopID       int64  `db:"to_stoppoint_id"`
}

// VehicleJourney is one concrete scheduled run. It carries either a direct
// journey pattern reference or a reference to another journey whose pattern
// it adopts; exactly one of the two is set.
type VehicleJourney struct {
	ID               int64   `db:"vehiclejourney_id"`
	SourceID         int64   `db:"source_id"`
	JourneyPatternID *int64  `db:"journeypattern_id"`
	OtherJourneyID   *int64  `db:"other_vehiclejourney_id"`
	LineID           int64   `db:"line_id"`
	PrivateCode      *string `db:"privatecode"`
	DaysMask         uint8   `db:"days_mask"`
	DepartureTime    string  `db:"deptime"`
	DepartureSeconds int     `db:"deptime_seconds"`
}

// StopAnnotation is the per-document descriptive record a timetable feed
// attaches to a stop (AnnotatedStopPointRef). It never overwrites the
// registry-sourced fields on the Stop row itself.
type StopAnnotation struct {
	SourceID          int64   `db:"source_id"`
	StopID            int64   `db:"stoppoint_id"`
	Name              string  `db:"name"`
	Indicator         *string `db:"indicator"`
	LocalityName      *string `db:"locality_name"`
	LocalityQualifier *string `db:"locality_qualifier"`
}
