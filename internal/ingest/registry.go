package ingest

import (
	"archive/zip"
	"fmt"
	"io"
	"strconv"

	"github.com/openbusmap/frequency-backend/internal/database"
	"github.com/openbusmap/frequency-backend/internal/feed"
	"github.com/sirupsen/logrus"
)

// RegistryLoader ingests the stop-registry feed (StopPoint elements) and
// attaches names and coordinates to the globally-interned stops. Stops the
// timetable feeds referenced earlier keep their ids; stops nobody has
// referenced yet are created here.
type RegistryLoader struct {
	db     database.DB
	logger *logrus.Logger

	stops *database.StopRepository
}

// NewRegistryLoader creates a new RegistryLoader
func NewRegistryLoader(db database.DB, logger *logrus.Logger) *RegistryLoader {
	return &RegistryLoader{
		db:     db,
		logger: logger,
		stops:  database.NewStopRepository(),
	}
}

// LoadZip streams every XML document in the registry archive, loading the
// active stop entries. Returns the number of stops described.
func (l *RegistryLoader) LoadZip(path string) (int, error) {
	container, err := zip.OpenReader(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open registry archive %s: %w", path, err)
	}
	defer container.Close()

	tx, err := l.db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("failed to begin registry transaction: %w", err)
	}

	loaded := 0
	for _, file := range container.File {
		rc, err := file.Open()
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to open registry document %s: %w", file.Name, err)
		}

		n, err := l.loadDocument(tx, rc)
		rc.Close()
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to load registry document %s: %w", file.Name, err)
		}
		loaded += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit registry load: %w", err)
	}

	l.logger.WithField("stops", loaded).Info("Stop registry loaded")
	return loaded, nil
}

func (l *RegistryLoader) loadDocument(q database.Queryer, r io.Reader) (int, error) {
	reader := feed.NewReader(r, "StopPoint")
	loaded := 0

	for {
		el, err := reader.Next()
		if err == io.EOF {
			return loaded, nil
		}
		if err != nil {
			return loaded, err
		}

		// Only active entries make it into the dataset.
		if el.Attr["Status"] != "active" {
			continue
		}

		if err := l.loadStopPoint(q, el); err != nil {
			return loaded, err
		}
		loaded++
	}
}

func (l *RegistryLoader) loadStopPoint(q database.Queryer, el *feed.Element) error {
	atcocode := firstDescendantText(el, "AtcoCode")
	if atcocode == nil {
		return el.Malformed("AtcoCode", "required field missing")
	}

	shortcode := firstDescendantText(el, "NaptanCode")
	name := firstDescendantText(el, "CommonName")
	latitude, err := meanDescendantValue(el, "Latitude")
	if err != nil {
		return err
	}
	longitude, err := meanDescendantValue(el, "Longitude")
	if err != nil {
		return err
	}

	_, err = l.stops.AttachDescription(q, *atcocode, shortcode, name, latitude, longitude)
	return err
}

func firstDescendantText(el *feed.Element, name string) *string {
	found := el.FindAll(name)
	if len(found) == 0 {
		return nil
	}
	text := found[0].TrimmedText()
	return &text
}

// meanDescendantValue averages every occurrence of a numeric field. Some
// registry entries carry a location per sub-platform; the mean is close
// enough for link geometry.
func meanDescendantValue(el *feed.Element, name string) (*float64, error) {
	found := el.FindAll(name)
	if len(found) == 0 {
		return nil, nil
	}

	sum := 0.0
	for _, f := range found {
		v, err := strconv.ParseFloat(f.TrimmedText(), 64)
		if err != nil {
			return nil, el.Malformed(name, "not a number: %q", f.TrimmedText())
		}
		sum += v
	}

	mean := sum / float64(len(found))
	return &mean, nil
}
