// Package crew ranks available crew members for a job's requirements.
// Ranking is deterministic: identical roster snapshot and request always
// produce the same suggestion.
package crew

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/arborworks/crew-scheduler-go/pkg/config"
	"github.com/arborworks/crew-scheduler-go/pkg/models"
)

// defaultCrewSize stands in when a request does not name a preferred size.
// Two people is the smallest real crew for felling work.
const defaultCrewSize = 2

// RosterSource provides read access to active employees, ordered ascending
// by pay rate. That order is the scoring tiebreak, so cheaper crew wins
// ties.
type RosterSource interface {
	ActiveEmployees() ([]models.Employee, error)
}

// Availability is the conflict detector's crew availability test.
type Availability interface {
	MemberAvailable(memberID string, date time.Time, window models.TimeWindow) (bool, error)
}

// Optimizer scores and ranks crew candidates.
type Optimizer struct {
	roster       RosterSource
	availability Availability
	weights      config.ScoringWeights
}

// NewOptimizer creates an optimizer over the given roster and availability
// test.
func NewOptimizer(roster RosterSource, availability Availability, weights config.ScoringWeights) *Optimizer {
	return &Optimizer{roster: roster, availability: availability, weights: weights}
}

// SuggestCrew filters the roster to members free on the requested date,
// scores them against the request, and splits the ranking into recommended
// (top preferred-crew-size) and alternates (the next two). Warnings are
// advisories, never errors. A preferred crew size <= 0 defaults to 2.
func (o *Optimizer) SuggestCrew(req models.SchedulingRequest) (models.CrewSuggestion, error) {
	if err := req.Validate(); err != nil {
		return models.CrewSuggestion{}, err
	}
	wantSize := req.PreferredCrewSize
	if wantSize <= 0 {
		wantSize = defaultCrewSize
	}

	employees, err := o.roster.ActiveEmployees()
	if err != nil {
		return models.CrewSuggestion{}, err
	}
	// The roster contract says pay-rate ascending; re-sorting stably costs
	// little and keeps the tiebreak honest against a misbehaving source.
	sort.SliceStable(employees, func(i, j int) bool {
		return employees[i].PayRate < employees[j].PayRate
	})

	candidates := make([]models.CrewCandidate, 0, len(employees))
	for _, emp := range employees {
		free, err := o.availability.MemberAvailable(emp.ID, req.Date, req.Window)
		if err != nil {
			return models.CrewSuggestion{}, err
		}
		if !free {
			continue
		}
		candidates = append(candidates, models.CrewCandidate{
			Employee: emp,
			Score:    o.score(emp, req),
		})
	}

	// Stable sort keeps the pay-rate-ascending roster order as the
	// deterministic, cost-favoring tiebreak.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	suggestion := models.CrewSuggestion{TotalAvailable: len(candidates)}
	cut := wantSize
	if cut > len(candidates) {
		cut = len(candidates)
	}
	suggestion.Recommended = candidates[:cut]
	altEnd := cut + o.weights.AlternateCount
	if altEnd > len(candidates) {
		altEnd = len(candidates)
	}
	suggestion.Alternates = candidates[cut:altEnd]

	if (req.HazardLevel == models.HazardHigh || req.HazardLevel == models.HazardCritical) &&
		!anyQualified(suggestion.Recommended, o.weights.QualifyingCertifications) {
		suggestion.Warnings = append(suggestion.Warnings,
			fmt.Sprintf("no recommended crew member holds a qualifying certification for %s-hazard work", req.HazardLevel))
	}
	if len(candidates) < wantSize {
		suggestion.Warnings = append(suggestion.Warnings,
			fmt.Sprintf("only %d of %d requested crew members are available on %s", len(candidates), wantSize, models.FormatDate(req.Date)))
	}

	return suggestion, nil
}

// score computes the suitability of one employee for the request. The
// weights are named config, not a fixed contract.
func (o *Optimizer) score(emp models.Employee, req models.SchedulingRequest) float64 {
	score := o.weights.Base
	if emp.PerformanceRating != nil {
		score += *emp.PerformanceRating * o.weights.PerformanceWeight
	}
	if req.HazardLevel == models.HazardCritical && titleSignalsSeniority(emp.Title) {
		score += o.weights.CriticalHazardBonus
	}
	if titleMatchesService(emp.Title, req.ServiceType) {
		score += o.weights.SpecialtyBonus
	}
	score += o.weights.SkillMatchBonus * float64(matchedSkills(emp, req.RequiredSkills))
	return score
}

// seniorityMarkers are title fragments that signal seniority or
// certification for critical-hazard work.
var seniorityMarkers = []string{
	"senior", "lead", "foreman", "supervisor", "crew chief", "certified arborist",
}

func titleSignalsSeniority(title string) bool {
	title = strings.ToLower(title)
	for _, marker := range seniorityMarkers {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

// specialtyTitles maps service types to title fragments that indicate the
// employee specializes in that work.
var specialtyTitles = map[models.ServiceType][]string{
	models.ServiceRemoval:       {"climber", "crane"},
	models.ServiceTrimming:      {"climber", "trimmer", "arborist"},
	models.ServiceStumpGrinding: {"operator", "grinder"},
	models.ServiceEmergency:     {"foreman", "crane"},
	models.ServicePlanting:      {"groundsman", "planter"},
	models.ServiceAssessment:    {"arborist"},
}

func titleMatchesService(title string, service models.ServiceType) bool {
	title = strings.ToLower(title)
	for _, marker := range specialtyTitles[service] {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

// matchedSkills counts required skills the employee covers, matching by
// normalized credential id across both skills and certifications.
func matchedSkills(emp models.Employee, required []models.Credential) int {
	if len(required) == 0 {
		return 0
	}
	have := make(map[string]struct{}, len(emp.Skills)+len(emp.Certifications))
	for _, c := range emp.Skills {
		have[c.ID] = struct{}{}
	}
	for _, c := range emp.Certifications {
		have[c.ID] = struct{}{}
	}
	matched := 0
	for _, c := range required {
		if _, ok := have[c.ID]; ok {
			matched++
		}
	}
	return matched
}

func anyQualified(candidates []models.CrewCandidate, qualifying []string) bool {
	set := make(map[string]struct{}, len(qualifying))
	for _, id := range qualifying {
		set[id] = struct{}{}
	}
	for _, cand := range candidates {
		for _, cert := range cand.Employee.Certifications {
			if _, ok := set[cert.ID]; ok {
				return true
			}
		}
	}
	return false
}
