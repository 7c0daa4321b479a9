// Package conflict finds crew and equipment double-bookings for a proposed
// job. Detection is read-only; callers decide whether a conflict blocks.
package conflict

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/arborworks/crew-scheduler-go/pkg/config"
	"github.com/arborworks/crew-scheduler-go/pkg/models"
)

// ScheduleSource provides read access to the day's existing bookings.
type ScheduleSource interface {
	JobsOn(date time.Time) ([]models.ScheduledJob, error)
	EquipmentReservationsOn(date time.Time) ([]models.EquipmentReservation, error)
}

// Detector evaluates a proposed job against the existing schedule.
type Detector struct {
	schedule ScheduleSource
	policy   config.ConflictPolicy
}

// NewDetector creates a detector over the given schedule source.
func NewDetector(schedule ScheduleSource, policy config.ConflictPolicy) *Detector {
	return &Detector{schedule: schedule, policy: policy}
}

// Detect returns the conflicts a proposed job would cause, ordered crew
// overlaps first (high severity), then equipment overlaps (medium), then at
// most one day-capacity warning (low). Missing time data resolves to
// "assume conflicting": a false positive is cheaper than a missed
// double-booking.
func (d *Detector) Detect(req models.SchedulingRequest) ([]models.Conflict, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	date := models.DateOnly(req.Date)

	jobs, err := d.schedule.JobsOn(date)
	if err != nil {
		return nil, err
	}
	active := make([]models.ScheduledJob, 0, len(jobs))
	for _, job := range jobs {
		if !job.Status.Terminal() {
			active = append(active, job)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	var conflicts []models.Conflict
	for _, job := range active {
		shared := sharedIDs(req.CrewMemberIDs, job.CrewMemberIDs)
		if len(shared) == 0 {
			continue
		}
		if !d.windowsCollide(req.Window, job.Window) {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			Type:     models.ConflictCrewOverlap,
			Severity: models.SeverityHigh,
			JobID:    job.ID,
			Window:   job.Window,
			Message:  fmt.Sprintf("crew member(s) %s already booked on job %s", strings.Join(shared, ", "), job.ID),
		})
	}

	reservations, err := d.schedule.EquipmentReservationsOn(date)
	if err != nil {
		return nil, err
	}
	sort.Slice(reservations, func(i, j int) bool {
		if reservations[i].EquipmentID != reservations[j].EquipmentID {
			return reservations[i].EquipmentID < reservations[j].EquipmentID
		}
		return reservations[i].JobID < reservations[j].JobID
	})
	for _, res := range reservations {
		if !containsID(req.EquipmentIDs, res.EquipmentID) {
			continue
		}
		if !d.windowsCollide(req.Window, res.Window) {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			Type:        models.ConflictEquipmentOverlap,
			Severity:    models.SeverityMedium,
			JobID:       res.JobID,
			EquipmentID: res.EquipmentID,
			Window:      res.Window,
			Message:     fmt.Sprintf("equipment %s already reserved by job %s", res.EquipmentID, res.JobID),
		})
	}

	if len(active) >= d.policy.CapacityThreshold {
		conflicts = append(conflicts, models.Conflict{
			Type:     models.ConflictCapacityWarning,
			Severity: models.SeverityLow,
			Window:   req.Window,
			Message:  fmt.Sprintf("%d active jobs already scheduled on %s (threshold %d)", len(active), models.FormatDate(date), d.policy.CapacityThreshold),
		})
	}

	return conflicts, nil
}

// MemberAvailable reports whether a crew member has no conflicting
// assignment on the date. Crew optimization reuses this as its
// availability filter.
func (d *Detector) MemberAvailable(memberID string, date time.Time, window models.TimeWindow) (bool, error) {
	jobs, err := d.schedule.JobsOn(models.DateOnly(date))
	if err != nil {
		return false, err
	}
	for _, job := range jobs {
		if job.Status.Terminal() || !containsID(job.CrewMemberIDs, memberID) {
			continue
		}
		if d.windowsCollide(window, job.Window) {
			return false, nil
		}
	}
	return true, nil
}

// windowsCollide applies the half-open interval test
// start1 < end2 && start2 < end1, so touching windows do not collide.
// A missing end defaults to start plus the policy's default job length;
// a missing start on either side is an unconditional collision.
func (d *Detector) windowsCollide(a, b models.TimeWindow) bool {
	if a.Start == nil || b.Start == nil {
		return true
	}
	aEnd := d.endOf(a)
	bEnd := d.endOf(b)
	return a.Start.Before(bEnd) && b.Start.Before(aEnd)
}

func (d *Detector) endOf(w models.TimeWindow) time.Time {
	if w.End != nil {
		return *w.End
	}
	return w.Start.Add(time.Duration(d.policy.DefaultJobHours * float64(time.Hour)))
}

func sharedIDs(a, b []string) []string {
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	var shared []string
	for _, id := range b {
		if _, ok := set[id]; ok {
			shared = append(shared, id)
		}
	}
	sort.Strings(shared)
	return shared
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
