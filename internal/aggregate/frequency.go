package aggregate

import (
	"fmt"
	"sort"

	"github.com/openbusmap/frequency-backend/internal/database"
	"github.com/openbusmap/frequency-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Aggregator rolls the normalized schedule graph up into frequency links.
// It runs after a batch (or on demand) and rebuilds the summary in full
// inside one transaction, so readers always see a state consistent with the
// normalized tables at the instant it was built.
type Aggregator struct {
	db     database.DB
	logger *logrus.Logger

	sched *database.ScheduleRepository
	freq  *database.FrequencyRepository
}

// NewAggregator creates a new Aggregator
func NewAggregator(db database.DB, logger *logrus.Logger) *Aggregator {
	return &Aggregator{
		db:     db,
		logger: logger,
		sched:  database.NewScheduleRepository(),
		freq:   database.NewFrequencyRepository(),
	}
}

// Refresh rebuilds the frequency_link table from the current normalized
// tables. Returns the number of links written.
func (a *Aggregator) Refresh() (int, error) {
	tx, err := a.db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("failed to begin aggregation transaction: %w", err)
	}

	departures, err := a.sched.SelectJourneyDepartures(tx)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	edges, err := a.sched.SelectPatternEdges(tx)
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	links := BuildFrequencyLinks(departures, edges)

	if err := a.freq.Rebuild(tx, links); err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit aggregation: %w", err)
	}

	a.logger.WithFields(logrus.Fields{
		"journeys": len(departures),
		"edges":    len(edges),
		"links":    len(links),
	}).Info("Frequency links rebuilt")

	return len(links), nil
}

// linkKey identifies one directed stop-pair on one weekday.
type linkKey struct {
	fromStopID int64
	toStopID   int64
	weekday    int
}

// linkAccumulator collects the per-line hourly counts and runtime extremes
// for one link while journeys are being scanned.
type linkAccumulator struct {
	perLine    map[int64]*models.HourlyCounts
	minRuntime int
	maxRuntime int
	geometry   *models.Segment
}

// BuildFrequencyLinks is the two-stage rollup. Stage one buckets each
// deduplicated journey's departure hour into per-(stop-pair, line, weekday)
// counters, fanned out over the timing-link edges of the journey's
// effective pattern. Stage two collapses lines: element-wise sum for the
// total array, element-wise max for the best-single-service array.
func BuildFrequencyLinks(departures []models.JourneyDeparture, edges []models.PatternEdge) []models.FrequencyLink {
	departures = dedupeAdoptedJourneys(departures)

	edgesByPattern := make(map[int64][]models.PatternEdge)
	for _, edge := range edges {
		edgesByPattern[edge.JourneyPatternID] = append(edgesByPattern[edge.JourneyPatternID], edge)
	}

	links := make(map[linkKey]*linkAccumulator)
	for _, journey := range departures {
		hour := journey.DepartureSeconds / 3600
		if hour < 0 || hour > 23 {
			continue
		}

		for weekday := 0; weekday < 7; weekday++ {
			if journey.DaysMask&(1<<weekday) == 0 {
				continue
			}
			for _, edge := range edgesByPattern[journey.JourneyPatternID] {
				key := linkKey{edge.FromStopID, edge.ToStopID, weekday}
				acc := links[key]
				if acc == nil {
					acc = &linkAccumulator{
						perLine:    make(map[int64]*models.HourlyCounts),
						minRuntime: edge.RuntimeSeconds,
						maxRuntime: edge.RuntimeSeconds,
						geometry:   edgeSegment(edge),
					}
					links[key] = acc
				}

				counts := acc.perLine[journey.LineID]
				if counts == nil {
					counts = &models.HourlyCounts{}
					acc.perLine[journey.LineID] = counts
				}
				counts[hour]++

				if edge.RuntimeSeconds < acc.minRuntime {
					acc.minRuntime = edge.RuntimeSeconds
				}
				if edge.RuntimeSeconds > acc.maxRuntime {
					acc.maxRuntime = edge.RuntimeSeconds
				}
			}
		}
	}

	out := make([]models.FrequencyLink, 0, len(links))
	for key, acc := range links {
		link := models.FrequencyLink{
			FromStopID:        key.fromStopID,
			ToStopID:          key.toStopID,
			Weekday:           key.weekday,
			MinRuntimeSeconds: acc.minRuntime,
			MaxRuntimeSeconds: acc.maxRuntime,
			Geometry:          acc.geometry,
		}
		for _, counts := range acc.perLine {
			link.TotalByHour.Add(*counts)
			link.BestByHour.Max(*counts)
		}
		out = append(out, link)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FromStopID != out[j].FromStopID {
			return out[i].FromStopID < out[j].FromStopID
		}
		if out[i].ToStopID != out[j].ToStopID {
			return out[i].ToStopID < out[j].ToStopID
		}
		return out[i].Weekday < out[j].Weekday
	})

	return out
}

// journeyTuple is the identity under which adopted journeys collapse.
type journeyTuple struct {
	journeyPatternID int64
	lineID           int64
	departureSeconds int
	daysMask         uint8
}

// dedupeAdoptedJourneys drops journeys that adopt another journey's pattern
// and resolve to an identical (pattern, line, departure, days) tuple. The
// source data contains near-duplicate adopting journeys that differ only by
// no-op exception rules; each physical run must count once. Direct journeys
// are kept in preference to adopting ones.
func dedupeAdoptedJourneys(departures []models.JourneyDeparture) []models.JourneyDeparture {
	seen := make(map[journeyTuple]bool, len(departures))
	out := make([]models.JourneyDeparture, 0, len(departures))

	for pass := 0; pass < 2; pass++ {
		adoptedPass := pass == 1
		for _, journey := range departures {
			if journey.Adopted != adoptedPass {
				continue
			}
			tuple := journeyTuple{
				journeyPatternID: journey.JourneyPatternID,
				lineID:           journey.LineID,
				departureSeconds: journey.DepartureSeconds,
				daysMask:         journey.DaysMask,
			}
			if journey.Adopted && seen[tuple] {
				continue
			}
			seen[tuple] = true
			out = append(out, journey)
		}
	}

	return out
}

func edgeSegment(edge models.PatternEdge) *models.Segment {
	if edge.FromLatitude == nil || edge.FromLongitude == nil || edge.ToLatitude == nil || edge.ToLongitude == nil {
		return nil
	}
	return &models.Segment{
		FromLatitude:  *edge.FromLatitude,
		FromLongitude: *edge.FromLongitude,
		ToLatitude:    *edge.ToLatitude,
		ToLongitude:   *edge.ToLongitude,
	}
}
