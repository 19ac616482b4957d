package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"caseload/api/internal/blob"
	"caseload/api/internal/email"
	"caseload/api/internal/linkpreview"
	"caseload/api/internal/search"
	"caseload/api/internal/store"
)

// dataStore is the persistence surface the service depends on. The
// Postgres store implements it; tests substitute a fake.
type dataStore interface {
	EnsureTherapistByIdentity(ctx context.Context, identity string) (store.Therapist, error)
	GetTherapist(ctx context.Context, therapistID int64) (store.Therapist, error)
	UpdateTherapist(ctx context.Context, therapistID int64, patch store.TherapistPatch) (store.Therapist, error)

	ListClients(ctx context.Context, therapistID int64, status string) ([]store.Client, error)
	GetClient(ctx context.Context, therapistID, clientID int64) (store.Client, error)
	CreateClient(ctx context.Context, c store.Client) (store.Client, error)
	UpdateClient(ctx context.Context, therapistID, clientID int64, patch store.ClientPatch) (store.Client, error)
	SoftDeleteClient(ctx context.Context, therapistID, clientID int64) error

	ListSessions(ctx context.Context, therapistID int64, clientID int64) ([]store.Session, error)
	ListTodaySessions(ctx context.Context, therapistID int64, date string) ([]store.TodaySession, error)
	GetSession(ctx context.Context, therapistID, sessionID int64) (store.Session, error)
	CreateSession(ctx context.Context, therapistID int64, item store.Session) (store.Session, error)
	UpdateSession(ctx context.Context, therapistID, sessionID int64, patch store.SessionPatch) (store.Session, error)
	CancelSession(ctx context.Context, therapistID, sessionID int64) (store.Session, error)
	DeleteSession(ctx context.Context, therapistID, sessionID int64) error
	CompletedSessionsAfter(ctx context.Context, clientID int64, date string) (int, error)
	ListRecentCompletedSessions(ctx context.Context, therapistID, clientID int64, limit int) ([]store.Session, error)

	ListClientTodos(ctx context.Context, therapistID, clientID int64, status string) ([]store.Todo, error)
	ListSessionTodos(ctx context.Context, therapistID, sessionID int64) ([]store.Todo, error)
	CreateTodo(ctx context.Context, therapistID int64, item store.Todo) (store.Todo, error)
	UpdateTodo(ctx context.Context, therapistID, todoID int64, patch store.TodoPatch) (store.Todo, error)
	DeleteTodo(ctx context.Context, therapistID, todoID int64) error
	GetTodo(ctx context.Context, therapistID, todoID int64) (store.Todo, error)

	ListThread(ctx context.Context, therapistID, otherPartyID int64, otherPartyType string) ([]store.Message, error)
	CreateMessage(ctx context.Context, m store.Message) (store.Message, error)
	MarkMessageRead(ctx context.Context, therapistID, messageID int64) (store.Message, error)
	UnreadCount(ctx context.Context, therapistID int64) (int, error)

	ListClientHomework(ctx context.Context, therapistID, clientID int64) ([]store.HomeworkAssignment, error)
	CreateHomework(ctx context.Context, therapistID int64, item store.HomeworkAssignment) (store.HomeworkAssignment, error)
	UpdateHomework(ctx context.Context, therapistID, assignmentID int64, patch store.HomeworkPatch) (store.HomeworkAssignment, error)
	SubmitHomework(ctx context.Context, assignmentID, clientID int64, content string, attachments []any) (store.HomeworkSubmission, error)
	FeedbackSubmission(ctx context.Context, therapistID, submissionID int64, feedback string) (store.HomeworkSubmission, error)

	CreateFormLink(ctx context.Context, link store.FormLink) (store.FormLink, error)
	GetFormLinkByToken(ctx context.Context, token string) (store.FormLink, error)
	GetFormLink(ctx context.Context, therapistID, linkID int64) (store.FormLink, error)
	MarkLinkOpened(ctx context.Context, linkID int64) error
	MarkLinkSent(ctx context.Context, therapistID, linkID int64) (store.FormLink, error)
	GetIntakeByLink(ctx context.Context, linkID int64) (store.IntakeResponse, error)
	SaveIntakeResponses(ctx context.Context, linkID int64, responses map[string]any) (store.IntakeResponse, error)
	CompleteIntake(ctx context.Context, linkID int64) (store.IntakeResponse, error)
	InsertAssessment(ctx context.Context, a store.AssessmentResponse) (store.AssessmentResponse, error)
	ListPendingIntakes(ctx context.Context, therapistID int64) ([]store.IntakeResponse, error)
	GetIntakeResponse(ctx context.Context, therapistID, responseID int64) (store.IntakeResponse, error)
	ListAssessmentsByLink(ctx context.Context, linkID int64) ([]store.AssessmentResponse, error)
	ApproveIntake(ctx context.Context, therapistID, responseID int64, clientID *int64) (store.IntakeResponse, error)

	Ping(ctx context.Context) error
}

type Service struct {
	store   dataStore
	search  *search.Service
	email   *email.Service
	blobs   *blob.Store
	preview *linkpreview.Fetcher

	publicBaseURL    string
	intakeExpiryDays int
}

type ServiceOptions struct {
	Search           *search.Service
	Email            *email.Service
	Blobs            *blob.Store
	Preview          *linkpreview.Fetcher
	PublicBaseURL    string
	IntakeExpiryDays int
}

func NewService(store dataStore, opts ServiceOptions) *Service {
	if opts.IntakeExpiryDays <= 0 {
		opts.IntakeExpiryDays = 7
	}
	return &Service{
		store:            store,
		search:           opts.Search,
		email:            opts.Email,
		blobs:            opts.Blobs,
		preview:          opts.Preview,
		publicBaseURL:    opts.PublicBaseURL,
		intakeExpiryDays: opts.IntakeExpiryDays,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ResolveTherapist maps a verified identity onto its therapist row,
// provisioning one on first sight. A first-sight race retries the lookup.
func (s *Service) ResolveTherapist(ctx context.Context, identity string) (store.Therapist, error) {
	t, err := s.store.EnsureTherapistByIdentity(ctx, identity)
	if errors.Is(err, store.ErrIdentityRace) {
		t, err = s.store.EnsureTherapistByIdentity(ctx, identity)
	}
	return t, err
}

var practiceTypes = map[string]bool{
	"":          true,
	"therapy":   true,
	"training":  true,
	"tutoring":  true,
	"freelance": true,
}

func (s *Service) Me(ctx context.Context, therapistID int64) (map[string]any, error) {
	t, err := s.store.GetTherapist(ctx, therapistID)
	if err != nil {
		return nil, err
	}
	return therapistView(t), nil
}

type UpdateMeInput struct {
	Email        *string `json:"email"`
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	PracticeType *string `json:"practice_type"`
}

func (s *Service) UpdateMe(ctx context.Context, therapistID int64, input UpdateMeInput) (map[string]any, error) {
	if input.PracticeType != nil && !practiceTypes[*input.PracticeType] {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid practice_type", nil)
	}
	t, err := s.store.UpdateTherapist(ctx, therapistID, store.TherapistPatch{
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PracticeType: input.PracticeType,
	})
	if err != nil {
		return nil, err
	}
	return therapistView(t), nil
}

func therapistView(t store.Therapist) map[string]any {
	return map[string]any{
		"id":            t.ID,
		"email":         t.Email,
		"first_name":    t.FirstName,
		"last_name":     t.LastName,
		"practice_type": t.PracticeType,
		"created_at":    t.CreatedAt,
		"updated_at":    t.UpdatedAt,
	}
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
