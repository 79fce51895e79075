package aggregate

import (
	"testing"

	"github.com/openbusmap/frequency-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float64Ptr(v float64) *float64 { return &v }

func journey(id, patternID, lineID int64, mask uint8, departureSeconds int) models.JourneyDeparture {
	return models.JourneyDeparture{
		JourneyID:        id,
		JourneyPatternID: patternID,
		LineID:           lineID,
		DaysMask:         mask,
		DepartureSeconds: departureSeconds,
	}
}

func edge(patternID, fromStopID, toStopID int64, runtimeSeconds int) models.PatternEdge {
	return models.PatternEdge{
		JourneyPatternID: patternID,
		FromStopID:       fromStopID,
		ToStopID:         toStopID,
		RuntimeSeconds:   runtimeSeconds,
	}
}

func TestBuildFrequencyLinksBucketsDeparturesByHour(t *testing.T) {
	departures := []models.JourneyDeparture{
		journey(1, 10, 100, 0x01, 8*3600+48*60), // Monday 08:48
		journey(2, 10, 100, 0x01, 8*3600+5*60),  // Monday 08:05
		journey(3, 10, 100, 0x01, 9*3600),       // Monday 09:00
	}
	edges := []models.PatternEdge{edge(10, 1, 2, 90)}

	links := BuildFrequencyLinks(departures, edges)
	require.Len(t, links, 1)

	link := links[0]
	assert.Equal(t, int64(1), link.FromStopID)
	assert.Equal(t, int64(2), link.ToStopID)
	assert.Equal(t, 0, link.Weekday)
	assert.Equal(t, 2, link.TotalByHour[8])
	assert.Equal(t, 1, link.TotalByHour[9])
	assert.Equal(t, 3, link.TotalByHour.Total())
}

func TestBuildFrequencyLinksFansOutOverWeekdaysAndEdges(t *testing.T) {
	// MondayToFriday mask, pattern with two consecutive edges: every
	// operating day gets its own link per stop-pair.
	departures := []models.JourneyDeparture{
		journey(1, 10, 100, 0x1F, 7*3600),
	}
	edges := []models.PatternEdge{
		edge(10, 1, 2, 60),
		edge(10, 2, 3, 120),
	}

	links := BuildFrequencyLinks(departures, edges)
	require.Len(t, links, 10)

	for _, link := range links {
		assert.Less(t, link.Weekday, 5, "weekend must stay empty")
		assert.Equal(t, 1, link.TotalByHour[7])
		assert.Equal(t, 1, link.TotalByHour.Total())
	}
}

func TestBuildFrequencyLinksTotalIsSumOfLinesAndBestIsMax(t *testing.T) {
	// Two lines sharing the same stop-pair: line 100 runs twice in hour 8,
	// line 200 once in hour 8 and once in hour 9.
	departures := []models.JourneyDeparture{
		journey(1, 10, 100, 0x01, 8*3600),
		journey(2, 10, 100, 0x01, 8*3600+30*60),
		journey(3, 11, 200, 0x01, 8*3600+15*60),
		journey(4, 11, 200, 0x01, 9*3600),
	}
	edges := []models.PatternEdge{
		edge(10, 1, 2, 60),
		edge(11, 1, 2, 90),
	}

	links := BuildFrequencyLinks(departures, edges)
	require.Len(t, links, 1)

	link := links[0]
	assert.Equal(t, 3, link.TotalByHour[8])
	assert.Equal(t, 1, link.TotalByHour[9])
	assert.Equal(t, 2, link.BestByHour[8], "best single service, not the sum")
	assert.Equal(t, 1, link.BestByHour[9])

	for hour := 0; hour < 24; hour++ {
		assert.LessOrEqual(t, link.BestByHour[hour], link.TotalByHour[hour])
	}
}

func TestBuildFrequencyLinksTracksRuntimeExtremes(t *testing.T) {
	departures := []models.JourneyDeparture{
		journey(1, 10, 100, 0x01, 8*3600),
		journey(2, 11, 100, 0x01, 9*3600),
	}
	// Same stop-pair traversed by two patterns with different runtimes.
	edges := []models.PatternEdge{
		edge(10, 1, 2, 90),
		edge(11, 1, 2, 150),
	}

	links := BuildFrequencyLinks(departures, edges)
	require.Len(t, links, 1)

	assert.Equal(t, 90, links[0].MinRuntimeSeconds)
	assert.Equal(t, 150, links[0].MaxRuntimeSeconds)
}

func TestBuildFrequencyLinksDropsAdoptedDuplicates(t *testing.T) {
	direct := journey(1, 10, 100, 0x01, 8*3600)
	adopted := journey(2, 10, 100, 0x01, 8*3600)
	adopted.Adopted = true

	links := BuildFrequencyLinks(
		[]models.JourneyDeparture{adopted, direct},
		[]models.PatternEdge{edge(10, 1, 2, 60)},
	)
	require.Len(t, links, 1)

	// The adopting journey resolves to the same tuple as the direct one
	// and must not double the count, regardless of input order.
	assert.Equal(t, 1, links[0].TotalByHour[8])
}

func TestBuildFrequencyLinksKeepsDistinctAdoptedJourneys(t *testing.T) {
	direct := journey(1, 10, 100, 0x01, 8*3600)
	adopted := journey(2, 10, 100, 0x01, 9*3600)
	adopted.Adopted = true

	links := BuildFrequencyLinks(
		[]models.JourneyDeparture{direct, adopted},
		[]models.PatternEdge{edge(10, 1, 2, 60)},
	)
	require.Len(t, links, 1)

	assert.Equal(t, 1, links[0].TotalByHour[8])
	assert.Equal(t, 1, links[0].TotalByHour[9])
}

func TestBuildFrequencyLinksDirectDuplicatesBothCount(t *testing.T) {
	// Two direct journeys with identical tuples are distinct physical runs
	// (duplicate timetable entries are a feed defect, not ours to fix).
	departures := []models.JourneyDeparture{
		journey(1, 10, 100, 0x01, 8*3600),
		journey(2, 10, 100, 0x01, 8*3600),
	}

	links := BuildFrequencyLinks(departures, []models.PatternEdge{edge(10, 1, 2, 60)})
	require.Len(t, links, 1)
	assert.Equal(t, 2, links[0].TotalByHour[8])
}

func TestBuildFrequencyLinksGeometryRequiresBothCoordinates(t *testing.T) {
	located := edge(10, 1, 2, 60)
	located.FromLatitude = float64Ptr(52.2)
	located.FromLongitude = float64Ptr(0.12)
	located.ToLatitude = float64Ptr(52.1)
	located.ToLongitude = float64Ptr(0.13)

	bare := edge(10, 2, 3, 60)
	bare.FromLatitude = float64Ptr(52.1)
	bare.FromLongitude = float64Ptr(0.13)

	links := BuildFrequencyLinks(
		[]models.JourneyDeparture{journey(1, 10, 100, 0x01, 8*3600)},
		[]models.PatternEdge{located, bare},
	)
	require.Len(t, links, 2)

	require.NotNil(t, links[0].Geometry)
	assert.Equal(t, 52.2, links[0].Geometry.FromLatitude)
	minLat, minLng, maxLat, maxLng := links[0].Geometry.BoundingBox()
	assert.Equal(t, 52.1, minLat)
	assert.Equal(t, 0.12, minLng)
	assert.Equal(t, 52.2, maxLat)
	assert.Equal(t, 0.13, maxLng)

	assert.Nil(t, links[1].Geometry, "unlocated stop leaves the link without geometry")
}

func TestBuildFrequencyLinksIgnoresOutOfRangeHours(t *testing.T) {
	departures := []models.JourneyDeparture{
		journey(1, 10, 100, 0x01, 25*3600), // past midnight
		journey(2, 10, 100, 0x01, 8*3600),
	}

	links := BuildFrequencyLinks(departures, []models.PatternEdge{edge(10, 1, 2, 60)})
	require.Len(t, links, 1)
	assert.Equal(t, 1, links[0].TotalByHour.Total())
}

func TestBuildFrequencyLinksOutputIsSorted(t *testing.T) {
	departures := []models.JourneyDeparture{
		journey(1, 10, 100, 0x41, 8*3600), // Monday and Sunday
	}
	edges := []models.PatternEdge{
		edge(10, 2, 3, 60),
		edge(10, 1, 2, 60),
	}

	links := BuildFrequencyLinks(departures, edges)
	require.Len(t, links, 4)

	for i := 1; i < len(links); i++ {
		prev, cur := links[i-1], links[i]
		ordered := prev.FromStopID < cur.FromStopID ||
			(prev.FromStopID == cur.FromStopID && prev.ToStopID < cur.ToStopID) ||
			(prev.FromStopID == cur.FromStopID && prev.ToStopID == cur.ToStopID && prev.Weekday < cur.Weekday)
		assert.True(t, ordered, "links must come out in (from, to, weekday) order")
	}
}

func TestBuildFrequencyLinksEmptyInputs(t *testing.T) {
	assert.Empty(t, BuildFrequencyLinks(nil, nil))
	assert.Empty(t, BuildFrequencyLinks(
		[]models.JourneyDeparture{journey(1, 10, 100, 0x01, 8*3600)},
		nil,
	))
}
