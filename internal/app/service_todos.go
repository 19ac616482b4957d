package app

import (
	"context"
	"net/http"
	"strings"

	"caseload/api/internal/store"
)

var todoStatuses = map[string]bool{
	"open":      true,
	"completed": true,
	"dropped":   true,
}

func (s *Service) ListClientTodos(ctx context.Context, therapistID, clientID int64, status string) (map[string]any, error) {
	if status != "" && !todoStatuses[status] {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status filter", nil)
	}
	items, err := s.store.ListClientTodos(ctx, therapistID, clientID, status)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(items))
	for _, item := range items {
		views = append(views, todoView(item))
	}
	return map[string]any{"todos": views}, nil
}

// SessionTodos lists the session's own todos plus open carryover from
// earlier sessions, each annotated with how many completed sessions have
// happened since it was raised.
func (s *Service) SessionTodos(ctx context.Context, therapistID, sessionID int64) (map[string]any, error) {
	if _, err := s.store.GetSession(ctx, therapistID, sessionID); err != nil {
		return nil, err
	}
	items, err := s.store.ListSessionTodos(ctx, therapistID, sessionID)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(items))
	for _, item := range items {
		view := todoView(item)
		view["sessions_ago"] = 0
		if item.SourceSessionID != nil && *item.SourceSessionID != sessionID {
			if ago, err := s.sessionsAgo(ctx, therapistID, item); err == nil {
				view["sessions_ago"] = ago
			}
		}
		views = append(views, view)
	}
	return map[string]any{"todos": views}, nil
}

// sessionsAgo counts the client's completed sessions dated strictly after
// the todo's source session. This assumes session ids and dates move
// together, which holds for append-only scheduling.
func (s *Service) sessionsAgo(ctx context.Context, therapistID int64, todo store.Todo) (int, error) {
	source, err := s.store.GetSession(ctx, therapistID, *todo.SourceSessionID)
	if err != nil {
		return 0, err
	}
	return s.store.CompletedSessionsAfter(ctx, todo.ClientID, source.SessionDate)
}

type CreateTodoInput struct {
	ClientID        int64  `json:"client_id"`
	Body            string `json:"text"`
	Status          string `json:"status"`
	SourceSessionID *int64 `json:"source_session_id"`
}

func (s *Service) CreateTodo(ctx context.Context, therapistID int64, input CreateTodoInput) (map[string]any, error) {
	if input.ClientID == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "client_id is required", nil)
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "text is required", nil)
	}
	if input.Status != "" && !todoStatuses[input.Status] {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status", nil)
	}

	created, err := s.store.CreateTodo(ctx, therapistID, store.Todo{
		ClientID:        input.ClientID,
		Body:            strings.TrimSpace(input.Body),
		Status:          input.Status,
		SourceSessionID: input.SourceSessionID,
	})
	if err != nil {
		return nil, err
	}
	return todoView(created), nil
}

type UpdateTodoInput struct {
	Body               *string `json:"text"`
	Status             *string `json:"status"`
	CompletedSessionID *int64  `json:"completed_session_id"`
}

func (s *Service) UpdateTodo(ctx context.Context, therapistID, todoID int64, input UpdateTodoInput) (map[string]any, error) {
	if input.Body == nil && input.Status == nil && input.CompletedSessionID == nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "no fields to update", nil)
	}
	if input.Status != nil && !todoStatuses[*input.Status] {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status", nil)
	}
	updated, err := s.store.UpdateTodo(ctx, therapistID, todoID, store.TodoPatch{
		Body:               input.Body,
		Status:             input.Status,
		CompletedSessionID: input.CompletedSessionID,
	})
	if err != nil {
		return nil, err
	}
	return todoView(updated), nil
}

func (s *Service) DeleteTodo(ctx context.Context, therapistID, todoID int64) error {
	return s.store.DeleteTodo(ctx, therapistID, todoID)
}

func todoView(t store.Todo) map[string]any {
	return map[string]any{
		"id":                   t.ID,
		"client_id":            t.ClientID,
		"therapist_id":         t.TherapistID,
		"text":                 t.Body,
		"status":               t.Status,
		"source_session_id":    t.SourceSessionID,
		"completed_session_id": t.CompletedSessionID,
		"created_at":           t.CreatedAt,
		"updated_at":           t.UpdatedAt,
	}
}
