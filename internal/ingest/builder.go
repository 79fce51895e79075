package ingest

import (
	"strconv"
	"time"

	"github.com/openbusmap/frequency-backend/internal/database"
	"github.com/openbusmap/frequency-backend/internal/feed"
	"github.com/openbusmap/frequency-backend/internal/models"
)

// TimetableElementNames is the element vocabulary the builder consumes,
// passed to the feed reader.
var TimetableElementNames = []string{
	"Operator",
	"Service",
	"JourneyPatternSection",
	"VehicleJourney",
	"Route",
	"RouteSection",
	"AnnotatedStopPointRef",
}

// Builder populates the normalized schedule-graph tables from the elements
// of one timetable document. Every cross-referenced code goes through the
// interner, so references can precede definitions in either direction; the
// transaction's deferred constraints settle the rest at commit.
type Builder struct {
	q         database.Queryer
	sourceID  int64
	refMonday time.Time

	codes *database.CodeRepository
	stops *database.StopRepository
	sched *database.ScheduleRepository
}

// NewBuilder creates a Builder writing through q (normally the document's
// transaction) under the given source scope.
func NewBuilder(q database.Queryer, sourceID int64, refMonday time.Time) *Builder {
	return &Builder{
		q:         q,
		sourceID:  sourceID,
		refMonday: refMonday,
		codes:     database.NewCodeRepository(),
		stops:     database.NewStopRepository(),
		sched:     database.NewScheduleRepository(),
	}
}

// HandleElement dispatches one parsed element to its entity handler. Any
// error is fatal to the containing document; the orchestrator rolls the
// document back and moves on.
func (b *Builder) HandleElement(el *feed.Element) error {
	switch el.Name {
	case "Operator":
		return b.addOperator(el)
	case "Service":
		return b.addService(el)
	case "JourneyPatternSection":
		return b.addJourneyPatternSection(el)
	case "VehicleJourney":
		return b.addVehicleJourney(el)
	case "Route":
		return b.addRoute(el)
	case "RouteSection":
		return b.addRouteSection(el)
	case "AnnotatedStopPointRef":
		return b.addStopPointRef(el)
	default:
		return el.Malformed(el.Name, "no handler for element")
	}
}

func (b *Builder) intern(kind, code string) (int64, error) {
	return b.codes.Intern(b.q, kind, b.sourceID, code)
}

func (b *Builder) addOperator(el *feed.Element) error {
	code, err := el.RequiredAttr("id")
	if err != nil {
		return err
	}
	shortname, err := el.OneText("OperatorShortName")
	if err != nil {
		return err
	}

	id, err := b.intern(models.KindOperator, code)
	if err != nil {
		return err
	}

	return b.sched.CreateOperator(b.q, &models.Operator{
		ID:        id,
		SourceID:  b.sourceID,
		ShortName: shortname,
	})
}

func (b *Builder) addService(el *feed.Element) error {
	servicecode, err := el.OneText("ServiceCode")
	if err != nil {
		return err
	}
	privatecode, err := el.MaybeOneText("PrivateCode")
	if err != nil {
		return err
	}
	mode, err := el.MaybeOneText("Mode")
	if err != nil {
		return err
	}
	description, err := el.OneText("Description")
	if err != nil {
		return err
	}
	operatorRef, err := el.OneText("RegisteredOperatorRef")
	if err != nil {
		return err
	}

	serviceID, err := b.intern(models.KindService, servicecode)
	if err != nil {
		return err
	}
	operatorID, err := b.intern(models.KindOperator, operatorRef)
	if err != nil {
		return err
	}

	err = b.sched.CreateService(b.q, &models.Service{
		ID:          serviceID,
		SourceID:    b.sourceID,
		OperatorID:  operatorID,
		PrivateCode: privatecode,
		Mode:        mode,
		Description: description,
	})
	if err != nil {
		return err
	}

	if lines, err := el.MaybeOne("Lines"); err != nil {
		return err
	} else if lines != nil {
		for _, lineEl := range lines.All("Line") {
			if err := b.addLine(lineEl, serviceID); err != nil {
				return err
			}
		}
	}

	if std, err := el.MaybeOne("StandardService"); err != nil {
		return err
	} else if std != nil {
		for _, jpEl := range std.All("JourneyPattern") {
			if err := b.addJourneyPattern(jpEl, serviceID); err != nil {
				return err
			}
		}
	}

	return nil
}

func (b *Builder) addLine(el *feed.Element, serviceID int64) error {
	code, err := el.RequiredAttr("id")
	if err != nil {
		return err
	}
	name, err := el.OneText("LineName")
	if err != nil {
		return err
	}

	id, err := b.intern(models.KindLine, code)
	if err != nil {
		return err
	}

	return b.sched.CreateLine(b.q, &models.Line{
		ID:        id,
		SourceID:  b.sourceID,
		ServiceID: serviceID,
		LineName:  name,
	})
}

func (b *Builder) addJourneyPattern(el *feed.Element, serviceID int64) error {
	code, err := el.RequiredAttr("id")
	if err != nil {
		return err
	}
	direction, err := el.OneText("Direction")
	if err != nil {
		return err
	}
	routeRef, err := el.MaybeOneText("RouteRef")
	if err != nil {
		return err
	}

	id, err := b.intern(models.KindJourneyPattern, code)
	if err != nil {
		return err
	}

	var routeID *int64
	if routeRef != nil {
		rid, err := b.intern(models.KindRoute, *routeRef)
		if err != nil {
			return err
		}
		routeID = &rid
	}

	err = b.sched.CreateJourneyPattern(b.q, &models.JourneyPattern{
		ID:        id,
		SourceID:  b.sourceID,
		ServiceID: serviceID,
		RouteID:   routeID,
		Direction: direction,
	})
	if err != nil {
		return err
	}

	for _, refEl := range el.All("JourneyPatternSectionRefs") {
		sectionID, err := b.intern(models.KindJPSection, refEl.TrimmedText())
		if err != nil {
			return err
		}
		if err := b.sched.AddJourneyPatternSection(b.q, b.sourceID, id, sectionID); err != nil {
			return err
		}
	}

	return nil
}

func (b *Builder) addJourneyPatternSection(el *feed.Element) error {
	code, err := el.RequiredAttr("id")
	if err != nil {
		return err
	}
	sectionID, err := b.intern(models.KindJPSection, code)
	if err != nil {
		return err
	}

	for _, linkEl := range el.All("JourneyPatternTimingLink") {
		if err := b.addTimingLink(linkEl, sectionID); err != nil {
			return err
		}
	}

	return nil
}

func (b *Builder) addTimingLink(el *feed.Element, sectionID int64) error {
	code, err := el.RequiredAttr("id")
	if err != nil {
		return err
	}
	routeLinkRef, err := el.MaybeOneText("RouteLinkRef")
	if err != nil {
		return err
	}
	runtimeText, err := el.OneText("RunTime")
	if err != nil {
		return err
	}
	runtimeSeconds, err := feed.ParseRuntimeSeconds(runtimeText)
	if err != nil {
		return el.Malformed("RunTime", "%v", err)
	}

	fromStopID, fromSeq, err := b.readTimingEnd(el, "From")
	if err != nil {
		return err
	}
	toStopID, toSeq, err := b.readTimingEnd(el, "To")
	if err != nil {
		return err
	}

	id, err := b.intern(models.KindJPTimingLink, code)
	if err != nil {
		return err
	}

	var routeLinkID *int64
	if routeLinkRef != nil {
		rlid, err := b.intern(models.KindRouteLink, *routeLinkRef)
		if err != nil {
			return err
		}
		routeLinkID = &rlid
	}

	return b.sched.CreateTimingLink(b.q, &models.TimingLink{
		ID:             id,
		SourceID:       b.sourceID,
		SectionID:      sectionID,
		RouteLinkID:    routeLinkID,
		RuntimeSeconds: runtimeSeconds,
		FromSequence:   fromSeq,
		FromStopID:     fromStopID,
		ToSequence:     toSeq,
		ToStopID:       toStopID,
	})
}

// readTimingEnd extracts the stop reference and optional sequence number of
// one From/To end of a timing link.
func (b *Builder) readTimingEnd(el *feed.Element, name string) (int64, *int, error) {
	end, err := el.One(name)
	if err != nil {
		return 0, nil, err
	}
	stopRef, err := end.OneText("StopPointRef")
	if err != nil {
		return 0, nil, err
	}
	stopID, err := b.stops.Intern(b.q, stopRef)
	if err != nil {
		return 0, nil, err
	}

	var seq *int
	if text, ok := end.Attr["SequenceNumber"]; ok {
		n, err := strconv.Atoi(text)
		if err != nil {
			return 0, nil, end.Malformed("@SequenceNumber", "not an integer: %q", text)
		}
		seq = &n
	}

	return stopID, seq, nil
}

func (b *Builder) addVehicleJourney(el *feed.Element) error {
	code, err := el.OneText("VehicleJourneyCode")
	if err != nil {
		return err
	}
	privatecode, err := el.MaybeOneText("PrivateCode")
	if err != nil {
		return err
	}
	lineRef, err := el.OneText("LineRef")
	if err != nil {
		return err
	}
	deptime, err := el.OneText("DepartureTime")
	if err != nil {
		return err
	}
	deptimeSeconds, err := feed.ParseDepartureSeconds(deptime)
	if err != nil {
		return el.Malformed("DepartureTime", "%v", err)
	}

	// The journey carries either a direct journey pattern reference or a
	// reference to another journey whose pattern it adopts. Exactly one of
	// the two must be present; both or neither is an ambiguous reference.
	jpRef, err := el.MaybeOneText("JourneyPatternRef")
	if err != nil {
		return err
	}
	otherRef, err := el.MaybeOneText("VehicleJourneyRef")
	if err != nil {
		return err
	}
	if (jpRef == nil) == (otherRef == nil) {
		return el.Malformed("JourneyPatternRef", "want exactly one of JourneyPatternRef or VehicleJourneyRef")
	}

	mask, err := b.resolveOperatingDays(el)
	if err != nil {
		return err
	}

	id, err := b.intern(models.KindVehicleJourney, code)
	if err != nil {
		return err
	}
	lineID, err := b.intern(models.KindLine, lineRef)
	if err != nil {
		return err
	}

	var journeyPatternID, otherJourneyID *int64
	if jpRef != nil {
		jpid, err := b.intern(models.KindJourneyPattern, *jpRef)
		if err != nil {
			return err
		}
		journeyPatternID = &jpid
	} else {
		oid, err := b.intern(models.KindVehicleJourney, *otherRef)
		if err != nil {
			return err
		}
		otherJourneyID = &oid
	}

	return b.sched.CreateVehicleJourney(b.q, &models.VehicleJourney{
		ID:               id,
		SourceID:         b.sourceID,
		JourneyPatternID: journeyPatternID,
		OtherJourneyID:   otherJourneyID,
		LineID:           lineID,
		PrivateCode:      privatecode,
		DaysMask:         mask,
		DepartureTime:    deptime,
		DepartureSeconds: deptimeSeconds,
	})
}

// resolveOperatingDays reads a journey's operating profile and projects it
// onto the batch's reference week. A journey without day rules resolves to
// mask 0 and never contributes to any aggregate.
func (b *Builder) resolveOperatingDays(el *feed.Element) (uint8, error) {
	var rules []string
	daysEl, err := el.MaybeDescend("OperatingProfile", "RegularDayType", "DaysOfWeek")
	if err != nil {
		return 0, err
	}
	if daysEl != nil {
		for _, day := range daysEl.Children {
			rules = append(rules, day.Name)
		}
	}

	var nonOperation []feed.DateRange
	rangesEl, err := el.MaybeDescend("OperatingProfile", "SpecialDaysOperation", "DaysOfNonOperation")
	if err != nil {
		return 0, err
	}
	if rangesEl != nil {
		for _, rangeEl := range rangesEl.All("DateRange") {
			startText, err := rangeEl.OneText("StartDate")
			if err != nil {
				return 0, err
			}
			endText, err := rangeEl.OneText("EndDate")
			if err != nil {
				return 0, err
			}
			start, err := feed.ParseDate(startText)
			if err != nil {
				return 0, rangeEl.Malformed("StartDate", "%v", err)
			}
			end, err := feed.ParseDate(endText)
			if err != nil {
				return 0, rangeEl.Malformed("EndDate", "%v", err)
			}
			nonOperation = append(nonOperation, feed.DateRange{Start: start, End: end})
		}
	}

	mask, err := feed.ResolveDaysMask(rules, nonOperation, b.refMonday)
	if err != nil {
		return 0, el.Malformed("DaysOfWeek", "%v", err)
	}
	return mask, nil
}

func (b *Builder) addRoute(el *feed.Element) error {
	code, err := el.RequiredAttr("id")
	if err != nil {
		return err
	}
	privatecode, err := el.MaybeOneText("PrivateCode")
	if err != nil {
		return err
	}
	description, err := el.OneText("Description")
	if err != nil {
		return err
	}
	sectionRef, err := el.OneText("RouteSectionRef")
	if err != nil {
		return err
	}

	id, err := b.intern(models.KindRoute, code)
	if err != nil {
		return err
	}
	sectionID, err := b.intern(models.KindRouteSection, sectionRef)
	if err != nil {
		return err
	}

	return b.sched.CreateRoute(b.q, &models.Route{
		ID:             id,
		SourceID:       b.sourceID,
		PrivateCode:    privatecode,
		RouteSectionID: sectionID,
		Description:    description,
	})
}

func (b *Builder) addRouteSection(el *feed.Element) error {
	code, err := el.RequiredAttr("id")
	if err != nil {
		return err
	}
	sectionID, err := b.intern(models.KindRouteSection, code)
	if err != nil {
		return err
	}

	for _, linkEl := range el.All("RouteLink") {
		linkCode, err := linkEl.RequiredAttr("id")
		if err != nil {
			return err
		}
		direction, err := linkEl.OneText("Direction")
		if err != nil {
			return err
		}
		fromStopID, _, err := b.readTimingEnd(linkEl, "From")
		if err != nil {
			return err
		}
		toStopID, _, err := b.readTimingEnd(linkEl, "To")
		if err != nil {
			return err
		}

		linkID, err := b.intern(models.KindRouteLink, linkCode)
		if err != nil {
			return err
		}

		err = b.sched.CreateRouteLink(b.q, &models.RouteLink{
			ID:             linkID,
			SourceID:       b.sourceID,
			RouteSectionID: sectionID,
			FromStopID:     fromStopID,
			ToStopID:       toStopID,
			Direction:      direction,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (b *Builder) addStopPointRef(el *feed.Element) error {
	stopRef, err := el.OneText("StopPointRef")
	if err != nil {
		return err
	}
	name, err := el.OneText("CommonName")
	if err != nil {
		return err
	}
	indicator, err := el.MaybeOneText("Indicator")
	if err != nil {
		return err
	}
	localityName, err := el.MaybeOneText("LocalityName")
	if err != nil {
		return err
	}
	localityQualifier, err := el.MaybeOneText("LocalityQualifier")
	if err != nil {
		return err
	}

	stopID, err := b.stops.Intern(b.q, stopRef)
	if err != nil {
		return err
	}

	return b.stops.CreateAnnotation(b.q, &models.StopAnnotation{
		SourceID:          b.sourceID,
		StopID:            stopID,
		Name:              name,
		Indicator:         indicator,
		LocalityName:      localityName,
		LocalityQualifier: localityQualifier,
	})
}
