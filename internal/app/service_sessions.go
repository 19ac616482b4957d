package app

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"caseload/api/internal/export"
	"caseload/api/internal/search"
	"caseload/api/internal/store"
)

var sessionStatuses = map[string]bool{
	"scheduled": true,
	"completed": true,
	"cancelled": true,
	"no-show":   true,
}

func (s *Service) ListSessions(ctx context.Context, therapistID, clientID int64) (map[string]any, error) {
	items, err := s.store.ListSessions(ctx, therapistID, clientID)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(items))
	for _, item := range items {
		views = append(views, sessionView(item))
	}
	return map[string]any{"sessions": views}, nil
}

func (s *Service) TodaySessions(ctx context.Context, therapistID int64) (map[string]any, error) {
	today := time.Now().Format("2006-01-02")
	items, err := s.store.ListTodaySessions(ctx, therapistID, today)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(items))
	for _, item := range items {
		view := sessionView(item.Session)
		view["client_first_name"] = item.ClientFirstName
		view["client_last_name"] = item.ClientLastName
		views = append(views, view)
	}
	return map[string]any{"sessions": views, "date": today}, nil
}

func (s *Service) GetSession(ctx context.Context, therapistID, sessionID int64) (map[string]any, error) {
	item, err := s.store.GetSession(ctx, therapistID, sessionID)
	if err != nil {
		return nil, err
	}
	return sessionView(item), nil
}

type CreateSessionInput struct {
	ClientID        int64          `json:"client_id"`
	SessionDate     string         `json:"session_date"`
	SessionTime     string         `json:"session_time"`
	DurationMinutes int            `json:"duration_minutes"`
	Status          string         `json:"status"`
	Notes           string         `json:"notes"`
	Summary         string         `json:"summary"`
	LifeDomains     map[string]any `json:"life_domains"`
	EmotionalThemes map[string]any `json:"emotional_themes"`
	Interventions   []any          `json:"interventions"`
	AIAssistedData  string         `json:"ai_assisted_data"`

	OverallProgress      string `json:"overall_progress"`
	SessionSummary       string `json:"session_summary"`
	ClientInsights       string `json:"client_insights"`
	HomeworkAssigned     string `json:"homework_assigned"`
	ClinicalObservations string `json:"clinical_observations"`
	RiskAssessment       string `json:"risk_assessment"`
}

func (s *Service) CreateSession(ctx context.Context, therapistID int64, input CreateSessionInput) (map[string]any, error) {
	if input.ClientID == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "client_id is required", nil)
	}
	if strings.TrimSpace(input.SessionDate) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "session_date is required", nil)
	}
	if input.Status != "" && !sessionStatuses[input.Status] {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status", nil)
	}
	if input.DurationMinutes <= 0 {
		input.DurationMinutes = 50
	}

	created, err := s.store.CreateSession(ctx, therapistID, store.Session{
		ClientID:             input.ClientID,
		SessionDate:          input.SessionDate,
		SessionTime:          input.SessionTime,
		DurationMinutes:      input.DurationMinutes,
		Status:               input.Status,
		Notes:                input.Notes,
		Summary:              input.Summary,
		LifeDomains:          input.LifeDomains,
		EmotionalThemes:      input.EmotionalThemes,
		Interventions:        input.Interventions,
		AIAssistedData:       input.AIAssistedData,
		OverallProgress:      input.OverallProgress,
		SessionSummary:       input.SessionSummary,
		ClientInsights:       input.ClientInsights,
		HomeworkAssigned:     input.HomeworkAssigned,
		ClinicalObservations: input.ClinicalObservations,
		RiskAssessment:       input.RiskAssessment,
	})
	if err != nil {
		return nil, err
	}
	s.indexSession(created)
	return sessionView(created), nil
}

// ScheduleSession books a future slot with minimal data.
type ScheduleSessionInput struct {
	ClientID        int64  `json:"client_id"`
	SessionDate     string `json:"session_date"`
	SessionTime     string `json:"session_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (s *Service) ScheduleSession(ctx context.Context, therapistID int64, input ScheduleSessionInput) (map[string]any, error) {
	return s.CreateSession(ctx, therapistID, CreateSessionInput{
		ClientID:        input.ClientID,
		SessionDate:     input.SessionDate,
		SessionTime:     input.SessionTime,
		DurationMinutes: input.DurationMinutes,
		Status:          "scheduled",
	})
}

type UpdateSessionInput struct {
	SessionDate     *string        `json:"session_date"`
	SessionTime     *string        `json:"session_time"`
	DurationMinutes *int           `json:"duration_minutes"`
	Status          *string        `json:"status"`
	Notes           *string        `json:"notes"`
	Summary         *string        `json:"summary"`
	LifeDomains     map[string]any `json:"life_domains"`
	EmotionalThemes map[string]any `json:"emotional_themes"`
	Interventions   []any          `json:"interventions"`
	AIAssistedData  *string        `json:"ai_assisted_data"`

	OverallProgress      *string `json:"overall_progress"`
	SessionSummary       *string `json:"session_summary"`
	ClientInsights       *string `json:"client_insights"`
	HomeworkAssigned     *string `json:"homework_assigned"`
	ClinicalObservations *string `json:"clinical_observations"`
	RiskAssessment       *string `json:"risk_assessment"`
}

func (s *Service) UpdateSession(ctx context.Context, therapistID, sessionID int64, input UpdateSessionInput) (map[string]any, error) {
	if input.Status != nil && !sessionStatuses[*input.Status] {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status", nil)
	}
	updated, err := s.store.UpdateSession(ctx, therapistID, sessionID, store.SessionPatch{
		SessionDate:          input.SessionDate,
		SessionTime:          input.SessionTime,
		DurationMinutes:      input.DurationMinutes,
		Status:               input.Status,
		Notes:                input.Notes,
		Summary:              input.Summary,
		LifeDomains:          input.LifeDomains,
		EmotionalThemes:      input.EmotionalThemes,
		Interventions:        input.Interventions,
		AIAssistedData:       input.AIAssistedData,
		OverallProgress:      input.OverallProgress,
		SessionSummary:       input.SessionSummary,
		ClientInsights:       input.ClientInsights,
		HomeworkAssigned:     input.HomeworkAssigned,
		ClinicalObservations: input.ClinicalObservations,
		RiskAssessment:       input.RiskAssessment,
	})
	if err != nil {
		return nil, err
	}
	s.indexSession(updated)
	return sessionView(updated), nil
}

// CancelSession keeps the record but marks it cancelled.
func (s *Service) CancelSession(ctx context.Context, therapistID, sessionID int64) (map[string]any, error) {
	item, err := s.store.CancelSession(ctx, therapistID, sessionID)
	if err != nil {
		return nil, err
	}
	s.indexSession(item)
	return sessionView(item), nil
}

func (s *Service) DeleteSession(ctx context.Context, therapistID, sessionID int64) error {
	if err := s.store.DeleteSession(ctx, therapistID, sessionID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteSession(formatID(sessionID))
	}
	return nil
}

// ExportSessionPDF renders the session record as a PDF document.
func (s *Service) ExportSessionPDF(ctx context.Context, therapistID, sessionID int64) (*export.Result, error) {
	item, err := s.store.GetSession(ctx, therapistID, sessionID)
	if err != nil {
		return nil, err
	}
	client, err := s.store.GetClient(ctx, therapistID, item.ClientID)
	if err != nil {
		return nil, err
	}
	therapist, err := s.store.GetTherapist(ctx, therapistID)
	if err != nil {
		return nil, err
	}

	interventions := make([]string, 0, len(item.Interventions))
	for _, iv := range item.Interventions {
		if text, ok := iv.(string); ok {
			interventions = append(interventions, text)
		}
	}

	return export.ExportSessionPDF(export.SessionNote{
		ClientName:      client.FirstName + " " + client.LastName,
		TherapistName:   strings.TrimSpace(therapist.FirstName + " " + therapist.LastName),
		SessionDate:     item.SessionDate,
		SessionTime:     item.SessionTime,
		DurationMinutes: item.DurationMinutes,
		Status:          item.Status,
		Notes:           item.Notes,
		Summary:         item.Summary,
		OverallProgress: item.OverallProgress,
		Insights:        item.ClientInsights,
		Homework:        item.HomeworkAssigned,
		Observations:    item.ClinicalObservations,
		RiskAssessment:  item.RiskAssessment,
		Interventions:   interventions,
	})
}

func (s *Service) indexSession(item store.Session) {
	if s.search == nil {
		return
	}
	s.search.IndexSession(search.SessionRecord{
		ID:          formatID(item.ID),
		TherapistID: item.TherapistID,
		ClientID:    formatID(item.ClientID),
		SessionDate: item.SessionDate,
		Notes:       item.Notes,
		Summary:     item.Summary,
	})
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func sessionView(item store.Session) map[string]any {
	return map[string]any{
		"id":                    item.ID,
		"client_id":             item.ClientID,
		"therapist_id":          item.TherapistID,
		"session_date":          item.SessionDate,
		"session_time":          item.SessionTime,
		"duration_minutes":      item.DurationMinutes,
		"status":                item.Status,
		"notes":                 item.Notes,
		"summary":               item.Summary,
		"life_domains":          item.LifeDomains,
		"emotional_themes":      item.EmotionalThemes,
		"interventions":         item.Interventions,
		"ai_assisted_data":      item.AIAssistedData,
		"overall_progress":      item.OverallProgress,
		"session_summary":       item.SessionSummary,
		"client_insights":       item.ClientInsights,
		"homework_assigned":     item.HomeworkAssigned,
		"clinical_observations": item.ClinicalObservations,
		"risk_assessment":       item.RiskAssessment,
		"created_at":            item.CreatedAt,
		"updated_at":            item.UpdatedAt,
	}
}
