package models

import (
	"fmt"
	"time"
)

// ServiceType classifies the kind of tree work a job performs.
type ServiceType string

const (
	ServiceRemoval       ServiceType = "removal"
	ServiceTrimming      ServiceType = "trimming"
	ServiceStumpGrinding ServiceType = "stump_grinding"
	ServiceEmergency     ServiceType = "emergency"
	ServicePlanting      ServiceType = "planting"
	ServiceAssessment    ServiceType = "assessment"
)

// HazardLevel is the categorical risk rating of a job. It scales duration
// estimates and drives crew-qualification requirements.
type HazardLevel string

const (
	HazardLow      HazardLevel = "low"
	HazardMedium   HazardLevel = "medium"
	HazardHigh     HazardLevel = "high"
	HazardCritical HazardLevel = "critical"
)

// Valid reports whether h is one of the known hazard levels.
func (h HazardLevel) Valid() bool {
	switch h {
	case HazardLow, HazardMedium, HazardHigh, HazardCritical:
		return true
	}
	return false
}

// SizeBucket is the ordinal size class a job's tree falls into.
type SizeBucket string

const (
	SizeSmall      SizeBucket = "small"
	SizeMedium     SizeBucket = "medium"
	SizeLarge      SizeBucket = "large"
	SizeExtraLarge SizeBucket = "extra_large"
)

// RecurrencePattern is the cadence of a recurring job series.
type RecurrencePattern string

const (
	PatternDaily     RecurrencePattern = "daily"
	PatternWeekly    RecurrencePattern = "weekly"
	PatternMonthly   RecurrencePattern = "monthly"
	PatternQuarterly RecurrencePattern = "quarterly"
	PatternYearly    RecurrencePattern = "yearly"
)

// RecurrenceRule describes when a series repeats. Interval values <= 0 are
// treated as 1 by the engine; that default is silent, not an error.
type RecurrenceRule struct {
	Pattern   RecurrencePattern `json:"pattern"`
	Interval  int               `json:"interval"`
	WeekDay   *time.Weekday     `json:"week_day,omitempty"`  // weekly anchor, 0=Sunday
	MonthDay  *int              `json:"month_day,omitempty"` // 1-31, clamped to month length
	Month     *time.Month       `json:"month,omitempty"`     // yearly anchor
	StartDate time.Time         `json:"start_date"`
	EndDate   *time.Time        `json:"end_date,omitempty"`
}

// JobSeries is a recurring job template. Identity is stable across
// regenerations; only its occurrences change.
type JobSeries struct {
	ID             string         `json:"id"`
	Rule           RecurrenceRule `json:"rule"`
	ServiceType    ServiceType    `json:"service_type"`
	DefaultCrewIDs []string       `json:"default_crew_ids,omitempty"`
	DefaultHours   float64        `json:"default_hours,omitempty"`
	Notes          string         `json:"notes,omitempty"`
}

// OccurrenceStatus is the lifecycle state of one generated series date.
type OccurrenceStatus string

const (
	OccurrenceScheduled OccurrenceStatus = "scheduled"
	OccurrenceSkipped   OccurrenceStatus = "skipped"
	OccurrenceCancelled OccurrenceStatus = "cancelled"
	OccurrenceCreated   OccurrenceStatus = "created"
)

// occurrenceTransitions holds the allowed state machine. Occurrences are
// never deleted, only transitioned, so the audit trail survives.
var occurrenceTransitions = map[OccurrenceStatus][]OccurrenceStatus{
	OccurrenceScheduled: {OccurrenceSkipped, OccurrenceCancelled, OccurrenceCreated},
}

// CanTransitionTo reports whether next is a legal transition from s.
func (s OccurrenceStatus) CanTransitionTo(next OccurrenceStatus) bool {
	for _, allowed := range occurrenceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SeriesOccurrence is one concrete date derived from a series.
// At most one occurrence exists per (series, date); the persistence layer
// enforces that with a uniqueness constraint.
type SeriesOccurrence struct {
	SeriesID string           `json:"series_id"`
	Date     time.Time        `json:"date"`
	Status   OccurrenceStatus `json:"status"`
	JobID    string           `json:"job_id,omitempty"` // set when Status == created
}

// Transition moves the occurrence to next, rejecting anything the state
// machine does not allow.
func (o *SeriesOccurrence) Transition(next OccurrenceStatus) error {
	if !o.Status.CanTransitionTo(next) {
		return &ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("cannot transition occurrence from %q to %q", o.Status, next),
		}
	}
	o.Status = next
	return nil
}

// MarkCreated transitions the occurrence to created and links the job.
func (o *SeriesOccurrence) MarkCreated(jobID string) error {
	if jobID == "" {
		return &ValidationError{Field: "job_id", Reason: "created occurrence requires a job id"}
	}
	if err := o.Transition(OccurrenceCreated); err != nil {
		return err
	}
	o.JobID = jobID
	return nil
}

// ValidationError reports synchronously rejected input. It aborts the
// operation it was raised from.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// HistoricalDurationSample is a read-only aggregate over completed jobs,
// keyed by (service type, size bucket, hazard level, crew size).
type HistoricalDurationSample struct {
	ServiceType ServiceType `json:"service_type"`
	SizeBucket  SizeBucket  `json:"size_bucket"`
	HazardLevel HazardLevel `json:"hazard_level"`
	CrewSize    int         `json:"crew_size"`
	SampleCount int         `json:"sample_count"`
	MeanHours   float64     `json:"mean_hours"`
	StddevHours float64     `json:"stddev_hours"`
}

// TimeWindow is an optionally open-ended slot within a day. A nil Start is
// treated as "unknown" by conflict detection and resolves conservatively.
type TimeWindow struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// SchedulingRequest is the ephemeral input to conflict detection and crew
// suggestion. It is never persisted.
type SchedulingRequest struct {
	Date              time.Time    `json:"date"`
	Window            TimeWindow   `json:"window"`
	CrewMemberIDs     []string     `json:"crew_member_ids,omitempty"`
	EquipmentIDs      []string     `json:"equipment_ids,omitempty"`
	HazardLevel       HazardLevel  `json:"hazard_level,omitempty"`
	RequiredSkills    []Credential `json:"required_skills,omitempty"`
	PreferredCrewSize int          `json:"preferred_crew_size,omitempty"`
	ServiceType       ServiceType  `json:"service_type,omitempty"`
}

// Validate checks the request shape. Unset hazard is allowed (treated as
// medium downstream); an unknown value is not.
func (r *SchedulingRequest) Validate() error {
	if r.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "proposed date is required"}
	}
	if r.HazardLevel != "" && !r.HazardLevel.Valid() {
		return &ValidationError{Field: "hazard_level", Reason: fmt.Sprintf("unknown hazard level %q", r.HazardLevel)}
	}
	return nil
}

// ConflictType distinguishes the three conflict classes.
type ConflictType string

const (
	ConflictCrewOverlap      ConflictType = "crew_overlap"
	ConflictEquipmentOverlap ConflictType = "equipment_overlap"
	ConflictCapacityWarning  ConflictType = "capacity_warning"
)

// Severity ranks how strongly a conflict should block scheduling. The
// detector only reports; callers decide whether to block or warn.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Conflict is one detected double-booking or advisory.
type Conflict struct {
	Type        ConflictType `json:"type"`
	Severity    Severity     `json:"severity"`
	JobID       string       `json:"job_id,omitempty"`
	EquipmentID string       `json:"equipment_id,omitempty"`
	Window      TimeWindow   `json:"window"`
	Message     string       `json:"message"`
}

// JobStatus is the lifecycle state of a scheduled job.
type JobStatus string

const (
	JobScheduled  JobStatus = "scheduled"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the job no longer occupies crew or equipment.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobCancelled
}

// ScheduledJob is an existing job as seen by conflict detection: one civil
// date, an optional time window, and the crew working it.
type ScheduledJob struct {
	ID            string      `json:"id"`
	Date          time.Time   `json:"date"`
	Window        TimeWindow  `json:"window"`
	CrewMemberIDs []string    `json:"crew_member_ids,omitempty"`
	ServiceType   ServiceType `json:"service_type,omitempty"`
	Status        JobStatus   `json:"status"`
}

// EquipmentReservation books one piece of equipment for a job's window.
type EquipmentReservation struct {
	EquipmentID string     `json:"equipment_id"`
	JobID       string     `json:"job_id"`
	Date        time.Time  `json:"date"`
	Window      TimeWindow `json:"window"`
}

// Employee is one active roster member.
type Employee struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Title             string       `json:"title"`
	Certifications    []Credential `json:"certifications,omitempty"`
	Skills            []Credential `json:"skills,omitempty"`
	PayRate           float64      `json:"pay_rate"`
	PerformanceRating *float64     `json:"performance_rating,omitempty"` // nil when untracked
}

// CrewCandidate is an employee plus the suitability score computed for one
// scheduling request.
type CrewCandidate struct {
	Employee Employee `json:"employee"`
	Score    float64  `json:"score"`
}

// CrewSuggestion is the ranked output of crew optimization.
type CrewSuggestion struct {
	Recommended    []CrewCandidate `json:"recommended"`
	Alternates     []CrewCandidate `json:"alternates"`
	Warnings       []string        `json:"warnings,omitempty"`
	TotalAvailable int             `json:"total_available"`
}

// DateOnly truncates t to a civil date at UTC midnight. All recurrence and
// conflict math runs on civil dates.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a civil date the way the stores key it.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// ParseDate parses a store date key back into a civil date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Reason: fmt.Sprintf("invalid date %q", s)}
	}
	return t, nil
}

// SameDate reports whether two instants fall on the same civil date.
func SameDate(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}
