package app

import (
	"context"
	"net/http"
	"strings"

	"caseload/api/internal/search"
	"caseload/api/internal/store"
)

var clientStatuses = map[string]bool{
	"active":   true,
	"inactive": true,
	"waitlist": true,
}

func (s *Service) ListClients(ctx context.Context, therapistID int64, status string) (map[string]any, error) {
	if status != "" && !clientStatuses[status] {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status filter", nil)
	}
	items, err := s.store.ListClients(ctx, therapistID, status)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(items))
	for _, item := range items {
		views = append(views, clientView(item))
	}
	return map[string]any{"clients": views}, nil
}

func (s *Service) GetClient(ctx context.Context, therapistID, clientID int64) (map[string]any, error) {
	item, err := s.store.GetClient(ctx, therapistID, clientID)
	if err != nil {
		return nil, err
	}
	return clientView(item), nil
}

type CreateClientInput struct {
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	DateOfBirth           string `json:"date_of_birth"`
	Phone                 string `json:"phone"`
	Email                 string `json:"email"`
	EmergencyContactName  string `json:"emergency_contact_name"`
	EmergencyContactPhone string `json:"emergency_contact_phone"`
	Status                string `json:"status"`
}

func (s *Service) CreateClient(ctx context.Context, therapistID int64, input CreateClientInput) (map[string]any, error) {
	if strings.TrimSpace(input.FirstName) == "" || strings.TrimSpace(input.LastName) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "first_name and last_name are required", nil)
	}
	if strings.TrimSpace(input.DateOfBirth) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "date_of_birth is required", nil)
	}
	if input.Status != "" && !clientStatuses[input.Status] {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status", nil)
	}

	created, err := s.store.CreateClient(ctx, store.Client{
		TherapistID:           therapistID,
		FirstName:             strings.TrimSpace(input.FirstName),
		LastName:              strings.TrimSpace(input.LastName),
		DateOfBirth:           input.DateOfBirth,
		Phone:                 input.Phone,
		Email:                 input.Email,
		EmergencyContactName:  input.EmergencyContactName,
		EmergencyContactPhone: input.EmergencyContactPhone,
		Status:                input.Status,
	})
	if err != nil {
		return nil, err
	}
	s.indexClient(created)
	return clientView(created), nil
}

type UpdateClientInput struct {
	FirstName             *string `json:"first_name"`
	LastName              *string `json:"last_name"`
	DateOfBirth           *string `json:"date_of_birth"`
	Phone                 *string `json:"phone"`
	Email                 *string `json:"email"`
	EmergencyContactName  *string `json:"emergency_contact_name"`
	EmergencyContactPhone *string `json:"emergency_contact_phone"`
	Status                *string `json:"status"`
}

func (s *Service) UpdateClient(ctx context.Context, therapistID, clientID int64, input UpdateClientInput) (map[string]any, error) {
	if input.Status != nil && !clientStatuses[*input.Status] {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status", nil)
	}
	updated, err := s.store.UpdateClient(ctx, therapistID, clientID, store.ClientPatch{
		FirstName:             input.FirstName,
		LastName:              input.LastName,
		DateOfBirth:           input.DateOfBirth,
		Phone:                 input.Phone,
		Email:                 input.Email,
		EmergencyContactName:  input.EmergencyContactName,
		EmergencyContactPhone: input.EmergencyContactPhone,
		Status:                input.Status,
	})
	if err != nil {
		return nil, err
	}
	s.indexClient(updated)
	return clientView(updated), nil
}

func (s *Service) DeleteClient(ctx context.Context, therapistID, clientID int64) error {
	return s.store.SoftDeleteClient(ctx, therapistID, clientID)
}

// SessionPrep assembles the pre-session view: the client, open todos with
// how many sessions ago each was raised, and recent completed sessions.
func (s *Service) SessionPrep(ctx context.Context, therapistID, clientID int64) (map[string]any, error) {
	client, err := s.store.GetClient(ctx, therapistID, clientID)
	if err != nil {
		return nil, err
	}

	todos, err := s.store.ListClientTodos(ctx, therapistID, clientID, "open")
	if err != nil {
		return nil, err
	}
	todoViews := make([]map[string]any, 0, len(todos))
	for _, todo := range todos {
		view := todoView(todo)
		view["sessions_ago"] = 0
		if todo.SourceSessionID != nil {
			if ago, err := s.sessionsAgo(ctx, therapistID, todo); err == nil {
				view["sessions_ago"] = ago
			}
		}
		todoViews = append(todoViews, view)
	}

	recent, err := s.store.ListRecentCompletedSessions(ctx, therapistID, clientID, 5)
	if err != nil {
		return nil, err
	}
	recentViews := make([]map[string]any, 0, len(recent))
	for _, item := range recent {
		recentViews = append(recentViews, sessionView(item))
	}

	return map[string]any{
		"client":          clientView(client),
		"open_todos":      todoViews,
		"recent_sessions": recentViews,
	}, nil
}

func (s *Service) indexClient(c store.Client) {
	if s.search == nil {
		return
	}
	s.search.IndexClient(search.ClientRecord{
		ID:          formatID(c.ID),
		TherapistID: c.TherapistID,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		Status:      c.Status,
	})
}

func clientView(c store.Client) map[string]any {
	return map[string]any{
		"id":                      c.ID,
		"therapist_id":            c.TherapistID,
		"first_name":              c.FirstName,
		"last_name":               c.LastName,
		"date_of_birth":           c.DateOfBirth,
		"phone":                   c.Phone,
		"email":                   c.Email,
		"emergency_contact_name":  c.EmergencyContactName,
		"emergency_contact_phone": c.EmergencyContactPhone,
		"status":                  c.Status,
		"created_at":              c.CreatedAt,
		"updated_at":              c.UpdatedAt,
	}
}
