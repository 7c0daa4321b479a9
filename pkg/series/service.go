// Package series ties the recurrence engine to the occurrence store: it
// tops a series up to its horizon on demand and drives the occurrence
// lifecycle. It holds no state between calls and runs nothing in the
// background.
package series

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arborworks/crew-scheduler-go/pkg/database"
	"github.com/arborworks/crew-scheduler-go/pkg/models"
	"github.com/arborworks/crew-scheduler-go/pkg/recurrence"
)

// Store is what the service needs from persistence. *database.SeriesStore
// satisfies it.
type Store interface {
	Series(id string) (models.JobSeries, error)
	ExistingDates(seriesID string) ([]time.Time, error)
	InsertOccurrences(seriesID string, dates []time.Time) error
	Occurrence(seriesID string, date time.Time) (models.SeriesOccurrence, error)
	UpdateOccurrence(occ models.SeriesOccurrence) error
	CreateJob(job database.JobRecord) error
}

// Service orchestrates occurrence generation and transitions.
type Service struct {
	store       Store
	engine      *recurrence.Engine
	horizonDays int
	log         zerolog.Logger
}

// NewService creates a series service. horizonDays <= 0 falls back to 90.
func NewService(store Store, engine *recurrence.Engine, horizonDays int, log zerolog.Logger) *Service {
	if horizonDays <= 0 {
		horizonDays = 90
	}
	return &Service{store: store, engine: engine, horizonDays: horizonDays, log: log}
}

// TopUp generates and persists occurrences up to the horizon, returning
// the newly created dates. A duplicate-occurrence error from a concurrent
// top-up propagates for the caller to retry or ignore; this service does
// not retry internally.
func (s *Service) TopUp(seriesID string, today time.Time) ([]time.Time, error) {
	ser, err := s.store.Series(seriesID)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.ExistingDates(seriesID)
	if err != nil {
		return nil, err
	}
	dates, err := s.engine.Generate(ser, existing, s.horizonDays, nil, today)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		s.log.Debug().Str("series_id", seriesID).Msg("series already topped up")
		return nil, nil
	}
	if err := s.store.InsertOccurrences(seriesID, dates); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("series_id", seriesID).
		Int("count", len(dates)).
		Str("first", models.FormatDate(dates[0])).
		Str("last", models.FormatDate(dates[len(dates)-1])).
		Msg("generated occurrences")
	return dates, nil
}

// Skip transitions one occurrence to skipped.
func (s *Service) Skip(seriesID string, date time.Time) error {
	return s.transition(seriesID, date, models.OccurrenceSkipped)
}

// Cancel transitions one occurrence to cancelled.
func (s *Service) Cancel(seriesID string, date time.Time) error {
	return s.transition(seriesID, date, models.OccurrenceCancelled)
}

// ConvertToJob materializes a scheduled occurrence into a job built from
// the series template and links the occurrence to it. Returns the new job
// id.
func (s *Service) ConvertToJob(seriesID string, date time.Time) (string, error) {
	occ, err := s.store.Occurrence(seriesID, date)
	if err != nil {
		return "", err
	}
	ser, err := s.store.Series(seriesID)
	if err != nil {
		return "", err
	}

	jobID := uuid.NewString()
	if err := occ.MarkCreated(jobID); err != nil {
		return "", err
	}

	crew, err := encodeIDs(ser.DefaultCrewIDs)
	if err != nil {
		return "", err
	}
	job := database.JobRecord{
		ID:          jobID,
		Date:        models.FormatDate(date),
		CrewIDs:     crew,
		ServiceType: string(ser.ServiceType),
		Status:      string(models.JobScheduled),
	}
	if err := s.store.CreateJob(job); err != nil {
		return "", err
	}
	if err := s.store.UpdateOccurrence(occ); err != nil {
		return "", err
	}
	s.log.Info().
		Str("series_id", seriesID).
		Str("date", models.FormatDate(date)).
		Str("job_id", jobID).
		Msg("occurrence converted to job")
	return jobID, nil
}

func (s *Service) transition(seriesID string, date time.Time, next models.OccurrenceStatus) error {
	occ, err := s.store.Occurrence(seriesID, date)
	if err != nil {
		return err
	}
	if err := occ.Transition(next); err != nil {
		return err
	}
	if err := s.store.UpdateOccurrence(occ); err != nil {
		return err
	}
	s.log.Info().
		Str("series_id", seriesID).
		Str("date", models.FormatDate(date)).
		Str("status", string(next)).
		Msg("occurrence transitioned")
	return nil
}

func encodeIDs(ids []string) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", errors.Wrap(err, "encode crew ids")
	}
	return string(data), nil
}
