package models

// HourlyCounts holds one departure counter per hour of the day.
type HourlyCounts [24]int

// Add adds other element-wise.
func (h *HourlyCounts) Add(other HourlyCounts) {
	for i := range h {
		h[i] += other[i]
	}
}

// Max raises each element to the maximum of itself and other.
func (h *HourlyCounts) Max(other HourlyCounts) {
	for i := range h {
		if other[i] > h[i] {
			h[i] = other[i]
		}
	}
}

// Total is the sum over all hours.
func (h HourlyCounts) Total() int {
	total := 0
	for _, n := range h {
		total += n
	}
	return total
}

// Segment is the straight-line geometry between the two stops of a link,
// present only when both stops have registry coordinates.
type Segment struct {
	FromLatitude  float64 `db:"from_latitude"`
	FromLongitude float64 `db:"from_longitude"`
	ToLatitude    float64 `db:"to_latitude"`
	ToLongitude   float64 `db:"to_longitude"`
}

// BoundingBox returns the axis-aligned box around the segment.
func (s Segment) BoundingBox() (minLat, minLng, maxLat, maxLng float64) {
	minLat, maxLat = s.FromLatitude, s.ToLatitude
	if minLat > maxLat {
		minLat, maxLat = maxLat, minLat
	}
	minLng, maxLng = s.FromLongitude, s.ToLongitude
	if minLng > maxLng {
		minLng, maxLng = maxLng, minLng
	}
	return
}

// FrequencyLink is the aggregated departure summary for one directed
// stop-pair on one weekday (0=Monday..6=Sunday). TotalByHour sums across
// all lines; BestByHour is the element-wise maximum over per-line counts,
// answering "how good is the best single service" rather than "how many
// buses total". Rebuilt in full on every aggregation run.
type FrequencyLink struct {
	FromStopID        int64
	ToStopID          int64
	Weekday           int
	TotalByHour       HourlyCounts
	BestByHour        HourlyCounts
	MinRuntimeSeconds int
	MaxRuntimeSeconds int
	Geometry          *Segment
}

// JourneyDeparture is one aggregation input row: a vehicle journey with its
// effective journey pattern already resolved (one indirection hop at most).
type JourneyDeparture struct {
	JourneyID        int64  `db:"vehiclejourney_id"`
	JourneyPatternID int64  `db:"journeypattern_id"`
	LineID           int64  `db:"line_id"`
	Adopted          bool   `db:"adopted"`
	DaysMask         uint8  `db:"days_mask"`
	DepartureSeconds int    `db:"deptime_seconds"`
	LineName         string `db:"line_name"`
}

// PatternEdge is one timing-link edge of a journey pattern, joined with the
// stop coordinates the geometry is derived from.
type PatternEdge struct {
	JourneyPatternID int64    `db:"journeypattern_id"`
	FromStopID       int64    `db:"from_stoppoint_id"`
	ToStopID         int64    `db:"to_stoppoint_id"`
	RuntimeSeconds   int      `db:"runtime_seconds"`
	FromLatitude     *float64 `db:"from_latitude"`
	FromLongitude    *float64 `db:"from_longitude"`
	ToLatitude       *float64 `db:"to_latitude"`
	ToLongitude      *float64 `db:"to_longitude"`
}
