package database

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"

	"github.com/arborworks/crew-scheduler-go/pkg/models"
)

// ErrDuplicateOccurrence surfaces the series+date uniqueness race. Two
// callers topping up the same series can both legitimately compute the
// same date; the loser gets this and may retry or ignore.
var ErrDuplicateOccurrence = errors.New("occurrence already exists for series and date")

// ErrSeriesNotFound is returned when a series id has no row.
var ErrSeriesNotFound = errors.New("job series not found")

// ErrOccurrenceNotFound is returned when a series+date has no occurrence.
var ErrOccurrenceNotFound = errors.New("series occurrence not found")

// RosterStore implements crew.RosterSource over the employees table.
type RosterStore struct {
	DB *gorm.DB
}

// ActiveEmployees returns active roster members ordered by pay rate
// ascending, with credentials normalized from their stored shapes.
func (s *RosterStore) ActiveEmployees() ([]models.Employee, error) {
	var records []EmployeeRecord
	if err := s.DB.Where("active = ?", true).Order("pay_rate asc").Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "load roster")
	}
	employees := make([]models.Employee, 0, len(records))
	for _, rec := range records {
		employees = append(employees, models.Employee{
			ID:                rec.ID,
			Name:              rec.Name,
			Title:             rec.Title,
			Certifications:    decodeCredentials(rec.Certifications),
			Skills:            decodeCredentials(rec.Skills),
			PayRate:           rec.PayRate,
			PerformanceRating: rec.PerformanceRating,
		})
	}
	return employees, nil
}

// ScheduleStore implements conflict.ScheduleSource over the jobs and
// equipment_reservations tables.
type ScheduleStore struct {
	DB *gorm.DB
}

// JobsOn returns all jobs on the civil date, regardless of status; the
// detector filters terminal ones itself.
func (s *ScheduleStore) JobsOn(date time.Time) ([]models.ScheduledJob, error) {
	var records []JobRecord
	if err := s.DB.Where("date = ?", models.FormatDate(date)).Order("id asc").Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "load jobs")
	}
	jobs := make([]models.ScheduledJob, 0, len(records))
	for _, rec := range records {
		jobs = append(jobs, models.ScheduledJob{
			ID:            rec.ID,
			Date:          models.DateOnly(date),
			Window:        models.TimeWindow{Start: rec.StartTime, End: rec.EndTime},
			CrewMemberIDs: decodeIDs(rec.CrewIDs),
			ServiceType:   models.ServiceType(rec.ServiceType),
			Status:        models.JobStatus(rec.Status),
		})
	}
	return jobs, nil
}

// EquipmentReservationsOn returns the date's equipment bookings.
func (s *ScheduleStore) EquipmentReservationsOn(date time.Time) ([]models.EquipmentReservation, error) {
	var records []EquipmentReservationRecord
	if err := s.DB.Where("date = ?", models.FormatDate(date)).Order("equipment_id asc, job_id asc").Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "load equipment reservations")
	}
	reservations := make([]models.EquipmentReservation, 0, len(records))
	for _, rec := range records {
		reservations = append(reservations, models.EquipmentReservation{
			EquipmentID: rec.EquipmentID,
			JobID:       rec.JobID,
			Date:        models.DateOnly(date),
			Window:      models.TimeWindow{Start: rec.StartTime, End: rec.EndTime},
		})
	}
	return reservations, nil
}

// HistoryStore implements duration.HistorySource over the
// duration_aggregates table.
type HistoryStore struct {
	DB *gorm.DB
}

// Aggregate returns the aggregate row for the key, or (nil, nil) when none
// exists. Absence is the documented heuristic trigger, never an error.
func (s *HistoryStore) Aggregate(service models.ServiceType, size models.SizeBucket, hazard models.HazardLevel, crewSize int) (*models.HistoricalDurationSample, error) {
	var rec DurationAggregateRecord
	err := s.DB.Where("service_type = ? AND size_bucket = ? AND hazard_level = ? AND crew_size = ?",
		string(service), string(size), string(hazard), crewSize).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load duration aggregate")
	}
	return &models.HistoricalDurationSample{
		ServiceType: service,
		SizeBucket:  size,
		HazardLevel: hazard,
		CrewSize:    crewSize,
		SampleCount: rec.SampleCount,
		MeanHours:   rec.MeanHours,
		StddevHours: rec.StddevHours,
	}, nil
}

// SeriesStore reads job series and owns the occurrence rows. It is the one
// writer in the repo, and it only ever inserts or transitions — occurrence
// rows are never deleted.
type SeriesStore struct {
	DB *gorm.DB
}

// Series loads one job series.
func (s *SeriesStore) Series(id string) (models.JobSeries, error) {
	var rec JobSeriesRecord
	err := s.DB.Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.JobSeries{}, errors.Wrapf(ErrSeriesNotFound, "series %s", id)
	}
	if err != nil {
		return models.JobSeries{}, errors.Wrap(err, "load series")
	}
	return seriesFromRecord(rec)
}

// ExistingDates returns every occurrence date for the series, in any
// status — skipped and cancelled dates still block regeneration.
func (s *SeriesStore) ExistingDates(seriesID string) ([]time.Time, error) {
	var dates []string
	if err := s.DB.Model(&SeriesOccurrenceRecord{}).
		Where("series_id = ?", seriesID).
		Order("date asc").
		Pluck("date", &dates).Error; err != nil {
		return nil, errors.Wrap(err, "load occurrence dates")
	}
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		t, err := models.ParseDate(d)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// InsertOccurrences persists freshly generated dates as scheduled
// occurrences. A duplicate (series, date) row maps to
// ErrDuplicateOccurrence for the caller to retry or ignore.
func (s *SeriesStore) InsertOccurrences(seriesID string, dates []time.Time) error {
	for _, d := range dates {
		rec := SeriesOccurrenceRecord{
			SeriesID: seriesID,
			Date:     models.FormatDate(d),
			Status:   string(models.OccurrenceScheduled),
		}
		if err := s.DB.Create(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errors.Wrapf(ErrDuplicateOccurrence, "series %s date %s", seriesID, rec.Date)
			}
			return errors.Wrap(err, "insert occurrence")
		}
	}
	return nil
}

// Occurrence loads one occurrence by series and date.
func (s *SeriesStore) Occurrence(seriesID string, date time.Time) (models.SeriesOccurrence, error) {
	var rec SeriesOccurrenceRecord
	err := s.DB.Where("series_id = ? AND date = ?", seriesID, models.FormatDate(date)).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.SeriesOccurrence{}, errors.Wrapf(ErrOccurrenceNotFound, "series %s date %s", seriesID, models.FormatDate(date))
	}
	if err != nil {
		return models.SeriesOccurrence{}, errors.Wrap(err, "load occurrence")
	}
	return occurrenceFromRecord(rec)
}

// UpdateOccurrence writes back a transitioned occurrence.
func (s *SeriesStore) UpdateOccurrence(occ models.SeriesOccurrence) error {
	updates := map[string]any{"status": string(occ.Status)}
	if occ.JobID != "" {
		updates["job_id"] = occ.JobID
	}
	result := s.DB.Model(&SeriesOccurrenceRecord{}).
		Where("series_id = ? AND date = ?", occ.SeriesID, models.FormatDate(occ.Date)).
		Updates(updates)
	if result.Error != nil {
		return errors.Wrap(result.Error, "update occurrence")
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(ErrOccurrenceNotFound, "series %s date %s", occ.SeriesID, models.FormatDate(occ.Date))
	}
	return nil
}

// CreateJob materializes a job row from a series occurrence.
func (s *SeriesStore) CreateJob(job JobRecord) error {
	if err := s.DB.Create(&job).Error; err != nil {
		return errors.Wrap(err, "create job")
	}
	return nil
}

func seriesFromRecord(rec JobSeriesRecord) (models.JobSeries, error) {
	start, err := models.ParseDate(rec.StartDate)
	if err != nil {
		return models.JobSeries{}, err
	}
	rule := models.RecurrenceRule{
		Pattern:   models.RecurrencePattern(rec.Pattern),
		Interval:  rec.Interval,
		StartDate: start,
	}
	if rec.WeekDay != nil {
		wd := time.Weekday(*rec.WeekDay)
		rule.WeekDay = &wd
	}
	if rec.MonthDay != nil {
		rule.MonthDay = rec.MonthDay
	}
	if rec.Month != nil {
		m := time.Month(*rec.Month)
		rule.Month = &m
	}
	if rec.EndDate != nil {
		end, err := models.ParseDate(*rec.EndDate)
		if err != nil {
			return models.JobSeries{}, err
		}
		rule.EndDate = &end
	}
	return models.JobSeries{
		ID:             rec.ID,
		Rule:           rule,
		ServiceType:    models.ServiceType(rec.ServiceType),
		DefaultCrewIDs: decodeIDs(rec.DefaultCrew),
		DefaultHours:   rec.DefaultHours,
		Notes:          rec.Notes,
	}, nil
}

func occurrenceFromRecord(rec SeriesOccurrenceRecord) (models.SeriesOccurrence, error) {
	date, err := models.ParseDate(rec.Date)
	if err != nil {
		return models.SeriesOccurrence{}, err
	}
	occ := models.SeriesOccurrence{
		SeriesID: rec.SeriesID,
		Date:     date,
		Status:   models.OccurrenceStatus(rec.Status),
	}
	if rec.JobID != nil {
		occ.JobID = *rec.JobID
	}
	return occ, nil
}

// decodeIDs parses a JSON array of strings, tolerating empty columns.
func decodeIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}

// decodeCredentials parses a JSON array of mixed-shape credentials and
// normalizes them. Rows predating the labeled shape decode as strings.
func decodeCredentials(raw string) []models.Credential {
	if raw == "" {
		return nil
	}
	var values []any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	return models.NormalizeCredentialList(values)
}
