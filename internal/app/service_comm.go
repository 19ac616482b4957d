package app

import (
	"context"
	"io"
	"net/http"
	"strings"

	"caseload/api/internal/linkpreview"
	"caseload/api/internal/store"
)

var partyTypes = map[string]bool{
	"therapist": true,
	"client":    true,
}

func (s *Service) MessageThread(ctx context.Context, therapistID, otherPartyID int64, otherPartyType string) (map[string]any, error) {
	if !partyTypes[otherPartyType] {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid other_party_type", nil)
	}
	items, err := s.store.ListThread(ctx, therapistID, otherPartyID, otherPartyType)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(items))
	for _, item := range items {
		views = append(views, messageView(item))
	}
	return map[string]any{"messages": views}, nil
}

type SendMessageInput struct {
	RecipientID   int64  `json:"recipient_id"`
	RecipientType string `json:"recipient_type"`
	Content       string `json:"content"`
	MessageType   string `json:"message_type"`
	Attachments   []any  `json:"attachments"`
}

func (s *Service) SendMessage(ctx context.Context, therapistID int64, input SendMessageInput) (map[string]any, error) {
	if input.RecipientID == 0 || !partyTypes[input.RecipientType] {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "recipient_id and recipient_type are required", nil)
	}
	if strings.TrimSpace(input.Content) == "" && len(input.Attachments) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content or attachments required", nil)
	}

	created, err := s.store.CreateMessage(ctx, store.Message{
		SenderID:      therapistID,
		SenderType:    "therapist",
		RecipientID:   input.RecipientID,
		RecipientType: input.RecipientType,
		Content:       input.Content,
		MessageType:   input.MessageType,
		Attachments:   input.Attachments,
	})
	if err != nil {
		return nil, err
	}
	return messageView(created), nil
}

func (s *Service) MarkMessageRead(ctx context.Context, therapistID, messageID int64) (map[string]any, error) {
	item, err := s.store.MarkMessageRead(ctx, therapistID, messageID)
	if err != nil {
		return nil, err
	}
	return messageView(item), nil
}

func (s *Service) UnreadCount(ctx context.Context, therapistID int64) (map[string]any, error) {
	count, err := s.store.UnreadCount(ctx, therapistID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"unread_count": count}, nil
}

func messageView(m store.Message) map[string]any {
	return map[string]any{
		"id":             m.ID,
		"sender_id":      m.SenderID,
		"sender_type":    m.SenderType,
		"recipient_id":   m.RecipientID,
		"recipient_type": m.RecipientType,
		"content":        m.Content,
		"message_type":   m.MessageType,
		"attachments":    m.Attachments,
		"read_at":        timeOrNil(m.ReadAt),
		"created_at":     m.CreatedAt,
	}
}

// Homework

var homeworkStatuses = map[string]bool{
	"assigned":  true,
	"submitted": true,
	"reviewed":  true,
	"completed": true,
}

func (s *Service) ListClientHomework(ctx context.Context, therapistID, clientID int64) (map[string]any, error) {
	items, err := s.store.ListClientHomework(ctx, therapistID, clientID)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(items))
	for _, item := range items {
		views = append(views, assignmentView(item))
	}
	return map[string]any{"homework": views}, nil
}

type CreateHomeworkInput struct {
	ClientID    int64  `json:"client_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
}

func (s *Service) CreateHomework(ctx context.Context, therapistID int64, input CreateHomeworkInput) (map[string]any, error) {
	if input.ClientID == 0 || strings.TrimSpace(input.Title) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "client_id and title are required", nil)
	}
	created, err := s.store.CreateHomework(ctx, therapistID, store.HomeworkAssignment{
		ClientID:    input.ClientID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		DueDate:     input.DueDate,
	})
	if err != nil {
		return nil, err
	}
	return assignmentView(created), nil
}

type UpdateHomeworkInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"due_date"`
	Status      *string `json:"status"`
}

func (s *Service) UpdateHomework(ctx context.Context, therapistID, assignmentID int64, input UpdateHomeworkInput) (map[string]any, error) {
	if input.Title == nil && input.Description == nil && input.DueDate == nil && input.Status == nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "no fields to update", nil)
	}
	if input.Status != nil && !homeworkStatuses[*input.Status] {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status", nil)
	}
	updated, err := s.store.UpdateHomework(ctx, therapistID, assignmentID, store.HomeworkPatch{
		Title:       input.Title,
		Description: input.Description,
		DueDate:     input.DueDate,
		Status:      input.Status,
	})
	if err != nil {
		return nil, err
	}
	return assignmentView(updated), nil
}

type SubmitHomeworkInput struct {
	Content     string `json:"content"`
	Attachments []any  `json:"attachments"`
}

// SubmitHomework is client-side: the claimed client id must own the
// assignment, which the store checks row-level.
func (s *Service) SubmitHomework(ctx context.Context, assignmentID, clientID int64, input SubmitHomeworkInput) (map[string]any, error) {
	if clientID == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "client_id is required", nil)
	}
	sub, err := s.store.SubmitHomework(ctx, assignmentID, clientID, input.Content, input.Attachments)
	if err != nil {
		return nil, err
	}
	return submissionView(sub), nil
}

func (s *Service) HomeworkFeedback(ctx context.Context, therapistID, submissionID int64, feedback string) (map[string]any, error) {
	if strings.TrimSpace(feedback) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "feedback is required", nil)
	}
	sub, err := s.store.FeedbackSubmission(ctx, therapistID, submissionID, feedback)
	if err != nil {
		return nil, err
	}
	return submissionView(sub), nil
}

func assignmentView(a store.HomeworkAssignment) map[string]any {
	view := map[string]any{
		"id":           a.ID,
		"therapist_id": a.TherapistID,
		"client_id":    a.ClientID,
		"title":        a.Title,
		"description":  a.Description,
		"due_date":     a.DueDate,
		"status":       a.Status,
		"created_at":   a.CreatedAt,
		"updated_at":   a.UpdatedAt,
	}
	if a.Submission != nil {
		view["latest_submission"] = submissionView(*a.Submission)
	} else {
		view["latest_submission"] = nil
	}
	return view
}

func submissionView(sub store.HomeworkSubmission) map[string]any {
	return map[string]any{
		"id":            sub.ID,
		"assignment_id": sub.AssignmentID,
		"client_id":     sub.ClientID,
		"content":       sub.Content,
		"attachments":   sub.Attachments,
		"submitted_at":  sub.SubmittedAt,
		"feedback":      sub.Feedback,
		"feedback_at":   timeOrNil(sub.FeedbackAt),
	}
}

// Uploads and link previews

type UploadResult struct {
	Type     string `json:"type"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

func (s *Service) Upload(ctx context.Context, filename, contentType string, size int64, body io.Reader) (UploadResult, error) {
	if s.blobs == nil {
		return UploadResult{}, domainError(http.StatusServiceUnavailable, "SERVER_ERROR", "upload storage not configured", nil)
	}
	obj, err := s.blobs.Put(ctx, filename, contentType, size, body)
	if err != nil {
		return UploadResult{}, err
	}
	return UploadResult{
		Type:     obj.TypeTag,
		URL:      "/api/uploads/" + obj.Name,
		Filename: obj.Name,
		Size:     obj.Size,
	}, nil
}

func (s *Service) FetchUpload(ctx context.Context, name string) (io.ReadCloser, string, error) {
	if s.blobs == nil {
		return nil, "", domainError(http.StatusServiceUnavailable, "SERVER_ERROR", "upload storage not configured", nil)
	}
	return s.blobs.Get(ctx, name)
}

func (s *Service) LinkPreview(ctx context.Context, rawURL string) (linkpreview.Preview, error) {
	if strings.TrimSpace(rawURL) == "" {
		return linkpreview.Preview{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "url is required", nil)
	}
	if s.preview == nil {
		return linkpreview.Preview{}, domainError(http.StatusServiceUnavailable, "SERVER_ERROR", "link preview not configured", nil)
	}
	return s.preview.Fetch(ctx, rawURL), nil
}
