package store

import (
	"fmt"
	"strings"
)

// Sparse update patches. A nil field is "leave as is"; set fields become
// SET assignments built by updateBuilder with positional placeholders.

type ClientPatch struct {
	FirstName             *string
	LastName              *string
	DateOfBirth           *string
	Phone                 *string
	Email                 *string
	EmergencyContactName  *string
	EmergencyContactPhone *string
	Status                *string
}

type SessionPatch struct {
	SessionDate     *string
	SessionTime     *string
	DurationMinutes *int
	Status          *string
	Notes           *string
	Summary         *string

	LifeDomains     map[string]any
	EmotionalThemes map[string]any
	Interventions   []any
	AIAssistedData  *string

	OverallProgress      *string
	SessionSummary       *string
	ClientInsights       *string
	HomeworkAssigned     *string
	ClinicalObservations *string
	RiskAssessment       *string
}

type TodoPatch struct {
	Body               *string
	Status             *string
	CompletedSessionID *int64
}

type HomeworkPatch struct {
	Title       *string
	Description *string
	DueDate     *string
	Status      *string
}

type TherapistPatch struct {
	Email        *string
	FirstName    *string
	LastName     *string
	PracticeType *string
}

type updateBuilder struct {
	sets []string
	args []any
}

func (b *updateBuilder) set(column string, value any) {
	b.args = append(b.args, value)
	b.sets = append(b.sets, fmt.Sprintf("%s=$%d", column, len(b.args)))
}

func (b *updateBuilder) empty() bool {
	return len(b.sets) == 0
}

// clause renders the SET list; next returns the placeholder index for the
// first WHERE argument appended after the assignments.
func (b *updateBuilder) clause() string {
	return strings.Join(b.sets, ", ")
}

func (b *updateBuilder) next() int {
	return len(b.args) + 1
}
