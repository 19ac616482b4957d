package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"caseload/api/internal/assess"
	"caseload/api/internal/email"
	"caseload/api/internal/store"
	"caseload/api/internal/util"
)

type CreateLinkInput struct {
	ClientName          string `json:"client_name"`
	ClientEmail         string `json:"client_email"`
	FormType            string `json:"form_type"`
	IncludedAssessments []any  `json:"included_assessments"`
	ExpiresInDays       int    `json:"expires_in_days"`
}

func (s *Service) CreateIntakeLink(ctx context.Context, therapistID int64, input CreateLinkInput) (map[string]any, error) {
	days := input.ExpiresInDays
	if days <= 0 {
		days = s.intakeExpiryDays
	}

	link, err := s.store.CreateFormLink(ctx, store.FormLink{
		TherapistID:         therapistID,
		LinkToken:           util.NewLinkToken(),
		ClientName:          input.ClientName,
		ClientEmail:         input.ClientEmail,
		FormType:            input.FormType,
		IncludedAssessments: input.IncludedAssessments,
		ExpiresAt:           time.Now().Add(time.Duration(days) * 24 * time.Hour),
	})
	if err != nil {
		return nil, err
	}

	view := formLinkView(link)
	view["url"] = s.publicFormURL(link.LinkToken)
	return view, nil
}

func (s *Service) publicFormURL(token string) string {
	return strings.TrimRight(s.publicBaseURL, "/") + "/intake/" + token
}

type SendIntakeEmailInput struct {
	LinkID int64 `json:"link_id"`
}

// SendIntakeEmail mails the public form URL to the link's contact. Without
// SMTP configured it still stamps sent_at and hands the URL back for manual
// delivery.
func (s *Service) SendIntakeEmail(ctx context.Context, therapistID int64, input SendIntakeEmailInput) (map[string]any, error) {
	link, err := s.store.GetFormLink(ctx, therapistID, input.LinkID)
	if err != nil {
		return nil, err
	}
	if link.ClientEmail == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "link has no client email", nil)
	}

	url := s.publicFormURL(link.LinkToken)
	delivered := false

	if s.email != nil && s.email.IsConfigured() {
		therapist, err := s.store.GetTherapist(ctx, therapistID)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSpace(therapist.FirstName + " " + therapist.LastName)
		err = s.email.SendIntakeInvite(link.ClientEmail, email.IntakeInviteData{
			ClientName:    link.ClientName,
			TherapistName: name,
			FormURL:       url,
			ExpiresInDays: int(time.Until(link.ExpiresAt).Hours()/24) + 1,
		})
		if err != nil {
			log.Printf("intake: send invite to link %d: %v", link.ID, err)
		} else {
			delivered = true
		}
	}

	stamped, err := s.store.MarkLinkSent(ctx, therapistID, link.ID)
	if err != nil {
		return nil, err
	}

	view := formLinkView(stamped)
	view["url"] = url
	view["email_sent"] = delivered
	return view, nil
}

func (s *Service) PendingIntakes(ctx context.Context, therapistID int64) (map[string]any, error) {
	items, err := s.store.ListPendingIntakes(ctx, therapistID)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(items))
	for _, item := range items {
		view := intakeView(item)
		view["client_name"] = item.ClientName
		view["client_email"] = item.ClientEmail
		views = append(views, view)
	}
	return map[string]any{"responses": views}, nil
}

func (s *Service) IntakeReview(ctx context.Context, therapistID, responseID int64) (map[string]any, error) {
	resp, err := s.store.GetIntakeResponse(ctx, therapistID, responseID)
	if err != nil {
		return nil, err
	}
	assessments, err := s.store.ListAssessmentsByLink(ctx, resp.FormLinkID)
	if err != nil {
		return nil, err
	}
	assessmentViews := make([]map[string]any, 0, len(assessments))
	for _, a := range assessments {
		assessmentViews = append(assessmentViews, assessmentView(a))
	}
	view := intakeView(resp)
	view["assessments"] = assessmentViews
	return view, nil
}

// ApproveIntake marks the response reviewed. With createClient set it
// synthesizes a client record from the submitted answers first.
func (s *Service) ApproveIntake(ctx context.Context, therapistID, responseID int64, createClient bool) (map[string]any, error) {
	resp, err := s.store.GetIntakeResponse(ctx, therapistID, responseID)
	if err != nil {
		return nil, err
	}

	var clientID *int64
	if createClient {
		client, err := s.clientFromResponses(ctx, therapistID, resp)
		if err != nil {
			return nil, err
		}
		clientID = &client.ID
	}

	approved, err := s.store.ApproveIntake(ctx, therapistID, responseID, clientID)
	if err != nil {
		return nil, err
	}

	view := intakeView(approved)
	if clientID != nil {
		view["created_client_id"] = *clientID
	}
	return view, nil
}

// clientFromResponses builds a client row from free-form intake answers.
// Missing answers get placeholders rather than blocking the approval.
func (s *Service) clientFromResponses(ctx context.Context, therapistID int64, resp store.IntakeResponse) (store.Client, error) {
	name := stringAnswer(resp.Responses, "full_name", "name")
	first, last := splitName(name)
	dob := stringAnswer(resp.Responses, "date_of_birth", "dob")
	if dob == "" {
		dob = "1990-01-01"
	}

	client, err := s.store.CreateClient(ctx, store.Client{
		TherapistID: therapistID,
		FirstName:   first,
		LastName:    last,
		DateOfBirth: dob,
		Phone:       stringAnswer(resp.Responses, "phone", "phone_number"),
		Email:       stringAnswer(resp.Responses, "email"),
	})
	if err != nil {
		return store.Client{}, fmt.Errorf("create client from intake: %w", err)
	}
	s.indexClient(client)
	return client, nil
}

func stringAnswer(responses map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := responses[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func splitName(name string) (string, string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "New", "Client"
	}
	parts := strings.Fields(name)
	if len(parts) == 1 {
		return parts[0], "Client"
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// Public token-gated operations. Expiry is checked against the link row
// before any state transition; an expired link is 410, an unknown one 404.

func (s *Service) resolveLink(ctx context.Context, token string) (store.FormLink, error) {
	link, err := s.store.GetFormLinkByToken(ctx, token)
	if err != nil {
		return store.FormLink{}, err
	}
	if link.Expired(time.Now()) {
		return store.FormLink{}, domainError(http.StatusGone, "LINK_EXPIRED", "This link has expired", nil)
	}
	return link, nil
}

// PublicIntakeForm returns the form state for a token. The first fetch
// flips the link to opened.
func (s *Service) PublicIntakeForm(ctx context.Context, token string) (map[string]any, error) {
	link, err := s.resolveLink(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.store.MarkLinkOpened(ctx, link.ID); err != nil {
		return nil, err
	}
	resp, err := s.store.GetIntakeByLink(ctx, link.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"form_type":            link.FormType,
		"included_assessments": link.IncludedAssessments,
		"client_name":          link.ClientName,
		"status":               resp.Status,
		"responses":            resp.Responses,
		"expires_at":           link.ExpiresAt,
	}, nil
}

type SubmitIntakeInput struct {
	Responses map[string]any `json:"responses"`
}

// SubmitIntakeSection shallow-merges a fragment into the stored answers.
// Top-level keys overwrite; everything else is preserved.
func (s *Service) SubmitIntakeSection(ctx context.Context, token string, input SubmitIntakeInput) (map[string]any, error) {
	link, err := s.resolveLink(ctx, token)
	if err != nil {
		return nil, err
	}
	current, err := s.store.GetIntakeByLink(ctx, link.ID)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]any, len(current.Responses)+len(input.Responses))
	for k, v := range current.Responses {
		merged[k] = v
	}
	for k, v := range input.Responses {
		merged[k] = v
	}

	saved, err := s.store.SaveIntakeResponses(ctx, link.ID, merged)
	if err != nil {
		return nil, err
	}
	return intakeView(saved), nil
}

type SubmitAssessmentInput struct {
	AssessmentType string         `json:"assessment_type"`
	Responses      map[string]any `json:"responses"`
}

func (s *Service) SubmitAssessment(ctx context.Context, token string, input SubmitAssessmentInput) (map[string]any, error) {
	if strings.TrimSpace(input.AssessmentType) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "assessment_type is required", nil)
	}
	link, err := s.resolveLink(ctx, token)
	if err != nil {
		return nil, err
	}

	score, severity := assess.Score(input.AssessmentType, input.Responses)
	created, err := s.store.InsertAssessment(ctx, store.AssessmentResponse{
		FormLinkID:     link.ID,
		TherapistID:    link.TherapistID,
		AssessmentType: input.AssessmentType,
		Responses:      input.Responses,
		Score:          &score,
		Severity:       severity,
	})
	if err != nil {
		return nil, err
	}
	return assessmentView(created), nil
}

func (s *Service) CompleteIntake(ctx context.Context, token string) (map[string]any, error) {
	link, err := s.resolveLink(ctx, token)
	if err != nil {
		return nil, err
	}
	resp, err := s.store.CompleteIntake(ctx, link.ID)
	if err != nil {
		return nil, err
	}
	return intakeView(resp), nil
}

func formLinkView(l store.FormLink) map[string]any {
	return map[string]any{
		"id":                   l.ID,
		"therapist_id":         l.TherapistID,
		"link_token":           l.LinkToken,
		"client_name":          l.ClientName,
		"client_email":         l.ClientEmail,
		"form_type":            l.FormType,
		"included_assessments": l.IncludedAssessments,
		"status":               l.Status,
		"expires_at":           l.ExpiresAt,
		"sent_at":              timeOrNil(l.SentAt),
		"opened_at":            timeOrNil(l.OpenedAt),
		"created_at":           l.CreatedAt,
	}
}

func intakeView(r store.IntakeResponse) map[string]any {
	return map[string]any{
		"id":           r.ID,
		"form_link_id": r.FormLinkID,
		"therapist_id": r.TherapistID,
		"client_id":    r.ClientID,
		"responses":    r.Responses,
		"status":       r.Status,
		"started_at":   timeOrNil(r.StartedAt),
		"completed_at": timeOrNil(r.CompletedAt),
		"reviewed_at":  timeOrNil(r.ReviewedAt),
		"created_at":   r.CreatedAt,
		"updated_at":   r.UpdatedAt,
	}
}

func assessmentView(a store.AssessmentResponse) map[string]any {
	return map[string]any{
		"id":              a.ID,
		"form_link_id":    a.FormLinkID,
		"client_id":       a.ClientID,
		"assessment_type": a.AssessmentType,
		"responses":       a.Responses,
		"score":           a.Score,
		"severity":        a.Severity,
		"completed_at":    a.CompletedAt,
	}
}
