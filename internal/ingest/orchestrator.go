package ingest

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openbusmap/frequency-backend/internal/database"
	"github.com/openbusmap/frequency-backend/internal/feed"
	"github.com/sirupsen/logrus"
)

// Report summarizes one batch run. Failures never abort the batch; they are
// counted and logged per document.
type Report struct {
	RunID     string
	Processed int
	Skipped   int
	Failed    int
}

// Orchestrator walks timetable archives and ingests each contained document
// in its own transaction. A document is claimed by inserting its Source
// row; an existing row means a previous run already ingested it and the
// document is skipped without being read. Constraint checking inside a
// claimed document is deferred to commit, which is what tolerates
// intra-document forward references; the interner handles the
// cross-document ones.
type Orchestrator struct {
	db        database.DB
	refMonday time.Time
	logger    *logrus.Logger

	sources *database.SourceRepository
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(db database.DB, refMonday time.Time, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		db:        db,
		refMonday: refMonday,
		logger:    logger,
		sources:   database.NewSourceRepository(),
	}
}

// ProcessDir ingests every zip archive in dir, in name order, and returns
// the batch report.
func (o *Orchestrator) ProcessDir(dir string) (*Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list archive dir %s: %w", dir, err)
	}

	var archives []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".zip") {
			archives = append(archives, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(archives)

	report := &Report{RunID: uuid.New().String()}
	log := o.logger.WithField("run_id", report.RunID)

	for _, archive := range archives {
		log.WithField("archive", archive).Info("Processing archive")
		if err := o.processArchive(report, archive); err != nil {
			return nil, err
		}
	}

	log.WithFields(logrus.Fields{
		"processed": report.Processed,
		"skipped":   report.Skipped,
		"failed":    report.Failed,
	}).Info("Batch complete")

	return report, nil
}

// processArchive ingests each document of one zip archive.
func (o *Orchestrator) processArchive(report *Report, path string) error {
	container, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	defer container.Close()

	archive := filepath.Base(path)
	for _, file := range container.File {
		o.processDocument(report, archive, file)
	}

	return nil
}

// processDocument runs the claim/build/commit cycle for one document.
// Unseen -> Claimed -> Processed, or Unseen -> Skipped when the claim finds
// an existing Source row. Any failure rolls the whole document back so no
// partial rows survive.
func (o *Orchestrator) processDocument(report *Report, archive string, file *zip.File) {
	log := o.logger.WithFields(logrus.Fields{
		"archive":  archive,
		"document": file.Name,
	})

	tx, err := o.db.Beginx()
	if err != nil {
		log.WithError(err).Error("Failed to begin transaction")
		report.Failed++
		return
	}

	sourceID, claimed, err := o.sources.Claim(tx, archive, file.Name)
	if err != nil {
		log.WithError(err).Error("Failed to claim document")
		tx.Rollback()
		report.Failed++
		return
	}
	if !claimed {
		tx.Rollback()
		report.Skipped++
		log.Debug("Already ingested, skipping")
		return
	}

	// Elements may reference elements appearing later in the same document;
	// integrity settles at commit.
	if _, err := tx.Exec(`SET CONSTRAINTS ALL DEFERRED`); err != nil {
		log.WithError(err).Error("Failed to defer constraints")
		tx.Rollback()
		report.Failed++
		return
	}

	rc, err := file.Open()
	if err != nil {
		log.WithError(err).Error("Failed to open document")
		tx.Rollback()
		report.Failed++
		return
	}

	err = o.buildDocument(tx, rc, sourceID)
	rc.Close()
	if err != nil {
		tx.Rollback()
		report.Failed++
		var malformedErr *feed.MalformedElementError
		if errors.As(err, &malformedErr) {
			log.WithError(err).Error("Malformed document, rolled back")
		} else {
			log.WithError(err).Error("Storage failure, rolled back")
		}
		return
	}

	// A commit-time constraint violation means the document referenced an
	// entity no element ever defined: a completeness problem in the feed,
	// not a parse bug.
	if err := tx.Commit(); err != nil {
		report.Failed++
		log.WithError(err).Error("Commit failed, document references undefined entities")
		return
	}

	report.Processed++
	log.Info("Document ingested")
}

func (o *Orchestrator) buildDocument(q database.Queryer, r io.Reader, sourceID int64) error {
	builder := NewBuilder(q, sourceID, o.refMonday)
	reader := feed.NewReader(r, TimetableElementNames...)

	for {
		el, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := builder.HandleElement(el); err != nil {
			return err
		}
	}
}
