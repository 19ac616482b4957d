package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"
	"time"

	"caseload/api/internal/store"
)

// fakeStore implements dataStore with function fields so each test wires
// only the calls it expects. An unwired call panics, which surfaces as a
// test failure with a usable name.
type fakeStore struct {
	ensureTherapistByIdentity func(ctx context.Context, identity string) (store.Therapist, error)
	getTherapist              func(ctx context.Context, therapistID int64) (store.Therapist, error)
	updateTherapist           func(ctx context.Context, therapistID int64, patch store.TherapistPatch) (store.Therapist, error)

	listClients      func(ctx context.Context, therapistID int64, status string) ([]store.Client, error)
	getClient        func(ctx context.Context, therapistID, clientID int64) (store.Client, error)
	createClient     func(ctx context.Context, c store.Client) (store.Client, error)
	updateClient     func(ctx context.Context, therapistID, clientID int64, patch store.ClientPatch) (store.Client, error)
	softDeleteClient func(ctx context.Context, therapistID, clientID int64) error

	listSessions                func(ctx context.Context, therapistID int64, clientID int64) ([]store.Session, error)
	listTodaySessions           func(ctx context.Context, therapistID int64, date string) ([]store.TodaySession, error)
	getSession                  func(ctx context.Context, therapistID, sessionID int64) (store.Session, error)
	createSession               func(ctx context.Context, therapistID int64, item store.Session) (store.Session, error)
	updateSession               func(ctx context.Context, therapistID, sessionID int64, patch store.SessionPatch) (store.Session, error)
	cancelSession               func(ctx context.Context, therapistID, sessionID int64) (store.Session, error)
	deleteSession               func(ctx context.Context, therapistID, sessionID int64) error
	completedSessionsAfter      func(ctx context.Context, clientID int64, date string) (int, error)
	listRecentCompletedSessions func(ctx context.Context, therapistID, clientID int64, limit int) ([]store.Session, error)

	listClientTodos  func(ctx context.Context, therapistID, clientID int64, status string) ([]store.Todo, error)
	listSessionTodos func(ctx context.Context, therapistID, sessionID int64) ([]store.Todo, error)
	createTodo       func(ctx context.Context, therapistID int64, item store.Todo) (store.Todo, error)
	updateTodo       func(ctx context.Context, therapistID, todoID int64, patch store.TodoPatch) (store.Todo, error)
	deleteTodo       func(ctx context.Context, therapistID, todoID int64) error
	getTodo          func(ctx context.Context, therapistID, todoID int64) (store.Todo, error)

	listThread      func(ctx context.Context, therapistID, otherPartyID int64, otherPartyType string) ([]store.Message, error)
	createMessage   func(ctx context.Context, m store.Message) (store.Message, error)
	markMessageRead func(ctx context.Context, therapistID, messageID int64) (store.Message, error)
	unreadCount     func(ctx context.Context, therapistID int64) (int, error)

	listClientHomework func(ctx context.Context, therapistID, clientID int64) ([]store.HomeworkAssignment, error)
	createHomework     func(ctx context.Context, therapistID int64, item store.HomeworkAssignment) (store.HomeworkAssignment, error)
	updateHomework     func(ctx context.Context, therapistID, assignmentID int64, patch store.HomeworkPatch) (store.HomeworkAssignment, error)
	submitHomework     func(ctx context.Context, assignmentID, clientID int64, content string, attachments []any) (store.HomeworkSubmission, error)
	feedbackSubmission func(ctx context.Context, therapistID, submissionID int64, feedback string) (store.HomeworkSubmission, error)

	createFormLink        func(ctx context.Context, link store.FormLink) (store.FormLink, error)
	getFormLinkByToken    func(ctx context.Context, token string) (store.FormLink, error)
	getFormLink           func(ctx context.Context, therapistID, linkID int64) (store.FormLink, error)
	markLinkOpened        func(ctx context.Context, linkID int64) error
	markLinkSent          func(ctx context.Context, therapistID, linkID int64) (store.FormLink, error)
	getIntakeByLink       func(ctx context.Context, linkID int64) (store.IntakeResponse, error)
	saveIntakeResponses   func(ctx context.Context, linkID int64, responses map[string]any) (store.IntakeResponse, error)
	completeIntake        func(ctx context.Context, linkID int64) (store.IntakeResponse, error)
	insertAssessment      func(ctx context.Context, a store.AssessmentResponse) (store.AssessmentResponse, error)
	listPendingIntakes    func(ctx context.Context, therapistID int64) ([]store.IntakeResponse, error)
	getIntakeResponse     func(ctx context.Context, therapistID, responseID int64) (store.IntakeResponse, error)
	listAssessmentsByLink func(ctx context.Context, linkID int64) ([]store.AssessmentResponse, error)
	approveIntake         func(ctx context.Context, therapistID, responseID int64, clientID *int64) (store.IntakeResponse, error)

	ping func(ctx context.Context) error
}

func (f *fakeStore) EnsureTherapistByIdentity(ctx context.Context, identity string) (store.Therapist, error) {
	if f.ensureTherapistByIdentity == nil {
		panic("unexpected EnsureTherapistByIdentity")
	}
	return f.ensureTherapistByIdentity(ctx, identity)
}

func (f *fakeStore) GetTherapist(ctx context.Context, therapistID int64) (store.Therapist, error) {
	if f.getTherapist == nil {
		panic("unexpected GetTherapist")
	}
	return f.getTherapist(ctx, therapistID)
}

func (f *fakeStore) UpdateTherapist(ctx context.Context, therapistID int64, patch store.TherapistPatch) (store.Therapist, error) {
	if f.updateTherapist == nil {
		panic("unexpected UpdateTherapist")
	}
	return f.updateTherapist(ctx, therapistID, patch)
}

func (f *fakeStore) ListClients(ctx context.Context, therapistID int64, status string) ([]store.Client, error) {
	if f.listClients == nil {
		panic("unexpected ListClients")
	}
	return f.listClients(ctx, therapistID, status)
}

func (f *fakeStore) GetClient(ctx context.Context, therapistID, clientID int64) (store.Client, error) {
	if f.getClient == nil {
		panic("unexpected GetClient")
	}
	return f.getClient(ctx, therapistID, clientID)
}

func (f *fakeStore) CreateClient(ctx context.Context, c store.Client) (store.Client, error) {
	if f.createClient == nil {
		panic("unexpected CreateClient")
	}
	return f.createClient(ctx, c)
}

func (f *fakeStore) UpdateClient(ctx context.Context, therapistID, clientID int64, patch store.ClientPatch) (store.Client, error) {
	if f.updateClient == nil {
		panic("unexpected UpdateClient")
	}
	return f.updateClient(ctx, therapistID, clientID, patch)
}

func (f *fakeStore) SoftDeleteClient(ctx context.Context, therapistID, clientID int64) error {
	if f.softDeleteClient == nil {
		panic("unexpected SoftDeleteClient")
	}
	return f.softDeleteClient(ctx, therapistID, clientID)
}

func (f *fakeStore) ListSessions(ctx context.Context, therapistID int64, clientID int64) ([]store.Session, error) {
	if f.listSessions == nil {
		panic("unexpected ListSessions")
	}
	return f.listSessions(ctx, therapistID, clientID)
}

func (f *fakeStore) ListTodaySessions(ctx context.Context, therapistID int64, date string) ([]store.TodaySession, error) {
	if f.listTodaySessions == nil {
		panic("unexpected ListTodaySessions")
	}
	return f.listTodaySessions(ctx, therapistID, date)
}

func (f *fakeStore) GetSession(ctx context.Context, therapistID, sessionID int64) (store.Session, error) {
	if f.getSession == nil {
		panic("unexpected GetSession")
	}
	return f.getSession(ctx, therapistID, sessionID)
}

func (f *fakeStore) CreateSession(ctx context.Context, therapistID int64, item store.Session) (store.Session, error) {
	if f.createSession == nil {
		panic("unexpected CreateSession")
	}
	return f.createSession(ctx, therapistID, item)
}

func (f *fakeStore) UpdateSession(ctx context.Context, therapistID, sessionID int64, patch store.SessionPatch) (store.Session, error) {
	if f.updateSession == nil {
		panic("unexpected UpdateSession")
	}
	return f.updateSession(ctx, therapistID, sessionID, patch)
}

func (f *fakeStore) CancelSession(ctx context.Context, therapistID, sessionID int64) (store.Session, error) {
	if f.cancelSession == nil {
		panic("unexpected CancelSession")
	}
	return f.cancelSession(ctx, therapistID, sessionID)
}

func (f *fakeStore) DeleteSession(ctx context.Context, therapistID, sessionID int64) error {
	if f.deleteSession == nil {
		panic("unexpected DeleteSession")
	}
	return f.deleteSession(ctx, therapistID, sessionID)
}

func (f *fakeStore) CompletedSessionsAfter(ctx context.Context, clientID int64, date string) (int, error) {
	if f.completedSessionsAfter == nil {
		panic("unexpected CompletedSessionsAfter")
	}
	return f.completedSessionsAfter(ctx, clientID, date)
}

func (f *fakeStore) ListRecentCompletedSessions(ctx context.Context, therapistID, clientID int64, limit int) ([]store.Session, error) {
	if f.listRecentCompletedSessions == nil {
		panic("unexpected ListRecentCompletedSessions")
	}
	return f.listRecentCompletedSessions(ctx, therapistID, clientID, limit)
}

func (f *fakeStore) ListClientTodos(ctx context.Context, therapistID, clientID int64, status string) ([]store.Todo, error) {
	if f.listClientTodos == nil {
		panic("unexpected ListClientTodos")
	}
	return f.listClientTodos(ctx, therapistID, clientID, status)
}

func (f *fakeStore) ListSessionTodos(ctx context.Context, therapistID, sessionID int64) ([]store.Todo, error) {
	if f.listSessionTodos == nil {
		panic("unexpected ListSessionTodos")
	}
	return f.listSessionTodos(ctx, therapistID, sessionID)
}

func (f *fakeStore) CreateTodo(ctx context.Context, therapistID int64, item store.Todo) (store.Todo, error) {
	if f.createTodo == nil {
		panic("unexpected CreateTodo")
	}
	return f.createTodo(ctx, therapistID, item)
}

func (f *fakeStore) UpdateTodo(ctx context.Context, therapistID, todoID int64, patch store.TodoPatch) (store.Todo, error) {
	if f.updateTodo == nil {
		panic("unexpected UpdateTodo")
	}
	return f.updateTodo(ctx, therapistID, todoID, patch)
}

func (f *fakeStore) DeleteTodo(ctx context.Context, therapistID, todoID int64) error {
	if f.deleteTodo == nil {
		panic("unexpected DeleteTodo")
	}
	return f.deleteTodo(ctx, therapistID, todoID)
}

func (f *fakeStore) GetTodo(ctx context.Context, therapistID, todoID int64) (store.Todo, error) {
	if f.getTodo == nil {
		panic("unexpected GetTodo")
	}
	return f.getTodo(ctx, therapistID, todoID)
}

func (f *fakeStore) ListThread(ctx context.Context, therapistID, otherPartyID int64, otherPartyType string) ([]store.Message, error) {
	if f.listThread == nil {
		panic("unexpected ListThread")
	}
	return f.listThread(ctx, therapistID, otherPartyID, otherPartyType)
}

func (f *fakeStore) CreateMessage(ctx context.Context, m store.Message) (store.Message, error) {
	if f.createMessage == nil {
		panic("unexpected CreateMessage")
	}
	return f.createMessage(ctx, m)
}

func (f *fakeStore) MarkMessageRead(ctx context.Context, therapistID, messageID int64) (store.Message, error) {
	if f.markMessageRead == nil {
		panic("unexpected MarkMessageRead")
	}
	return f.markMessageRead(ctx, therapistID, messageID)
}

func (f *fakeStore) UnreadCount(ctx context.Context, therapistID int64) (int, error) {
	if f.unreadCount == nil {
		panic("unexpected UnreadCount")
	}
	return f.unreadCount(ctx, therapistID)
}

func (f *fakeStore) ListClientHomework(ctx context.Context, therapistID, clientID int64) ([]store.HomeworkAssignment, error) {
	if f.listClientHomework == nil {
		panic("unexpected ListClientHomework")
	}
	return f.listClientHomework(ctx, therapistID, clientID)
}

func (f *fakeStore) CreateHomework(ctx context.Context, therapistID int64, item store.HomeworkAssignment) (store.HomeworkAssignment, error) {
	if f.createHomework == nil {
		panic("unexpected CreateHomework")
	}
	return f.createHomework(ctx, therapistID, item)
}

func (f *fakeStore) UpdateHomework(ctx context.Context, therapistID, assignmentID int64, patch store.HomeworkPatch) (store.HomeworkAssignment, error) {
	if f.updateHomework == nil {
		panic("unexpected UpdateHomework")
	}
	return f.updateHomework(ctx, therapistID, assignmentID, patch)
}

func (f *fakeStore) SubmitHomework(ctx context.Context, assignmentID, clientID int64, content string, attachments []any) (store.HomeworkSubmission, error) {
	if f.submitHomework == nil {
		panic("unexpected SubmitHomework")
	}
	return f.submitHomework(ctx, assignmentID, clientID, content, attachments)
}

func (f *fakeStore) FeedbackSubmission(ctx context.Context, therapistID, submissionID int64, feedback string) (store.HomeworkSubmission, error) {
	if f.feedbackSubmission == nil {
		panic("unexpected FeedbackSubmission")
	}
	return f.feedbackSubmission(ctx, therapistID, submissionID, feedback)
}

func (f *fakeStore) CreateFormLink(ctx context.Context, link store.FormLink) (store.FormLink, error) {
	if f.createFormLink == nil {
		panic("unexpected CreateFormLink")
	}
	return f.createFormLink(ctx, link)
}

func (f *fakeStore) GetFormLinkByToken(ctx context.Context, token string) (store.FormLink, error) {
	if f.getFormLinkByToken == nil {
		panic("unexpected GetFormLinkByToken")
	}
	return f.getFormLinkByToken(ctx, token)
}

func (f *fakeStore) GetFormLink(ctx context.Context, therapistID, linkID int64) (store.FormLink, error) {
	if f.getFormLink == nil {
		panic("unexpected GetFormLink")
	}
	return f.getFormLink(ctx, therapistID, linkID)
}

func (f *fakeStore) MarkLinkOpened(ctx context.Context, linkID int64) error {
	if f.markLinkOpened == nil {
		panic("unexpected MarkLinkOpened")
	}
	return f.markLinkOpened(ctx, linkID)
}

func (f *fakeStore) MarkLinkSent(ctx context.Context, therapistID, linkID int64) (store.FormLink, error) {
	if f.markLinkSent == nil {
		panic("unexpected MarkLinkSent")
	}
	return f.markLinkSent(ctx, therapistID, linkID)
}

func (f *fakeStore) GetIntakeByLink(ctx context.Context, linkID int64) (store.IntakeResponse, error) {
	if f.getIntakeByLink == nil {
		panic("unexpected GetIntakeByLink")
	}
	return f.getIntakeByLink(ctx, linkID)
}

func (f *fakeStore) SaveIntakeResponses(ctx context.Context, linkID int64, responses map[string]any) (store.IntakeResponse, error) {
	if f.saveIntakeResponses == nil {
		panic("unexpected SaveIntakeResponses")
	}
	return f.saveIntakeResponses(ctx, linkID, responses)
}

func (f *fakeStore) CompleteIntake(ctx context.Context, linkID int64) (store.IntakeResponse, error) {
	if f.completeIntake == nil {
		panic("unexpected CompleteIntake")
	}
	return f.completeIntake(ctx, linkID)
}

func (f *fakeStore) InsertAssessment(ctx context.Context, a store.AssessmentResponse) (store.AssessmentResponse, error) {
	if f.insertAssessment == nil {
		panic("unexpected InsertAssessment")
	}
	return f.insertAssessment(ctx, a)
}

func (f *fakeStore) ListPendingIntakes(ctx context.Context, therapistID int64) ([]store.IntakeResponse, error) {
	if f.listPendingIntakes == nil {
		panic("unexpected ListPendingIntakes")
	}
	return f.listPendingIntakes(ctx, therapistID)
}

func (f *fakeStore) GetIntakeResponse(ctx context.Context, therapistID, responseID int64) (store.IntakeResponse, error) {
	if f.getIntakeResponse == nil {
		panic("unexpected GetIntakeResponse")
	}
	return f.getIntakeResponse(ctx, therapistID, responseID)
}

func (f *fakeStore) ListAssessmentsByLink(ctx context.Context, linkID int64) ([]store.AssessmentResponse, error) {
	if f.listAssessmentsByLink == nil {
		panic("unexpected ListAssessmentsByLink")
	}
	return f.listAssessmentsByLink(ctx, linkID)
}

func (f *fakeStore) ApproveIntake(ctx context.Context, therapistID, responseID int64, clientID *int64) (store.IntakeResponse, error) {
	if f.approveIntake == nil {
		panic("unexpected ApproveIntake")
	}
	return f.approveIntake(ctx, therapistID, responseID, clientID)
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.ping == nil {
		panic("unexpected Ping")
	}
	return f.ping(ctx)
}

func newTestService(fs *fakeStore) *Service {
	return NewService(fs, ServiceOptions{PublicBaseURL: "http://app.test"})
}

func wantDomainError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected domain error, got %v", err)
	}
	if de.Status != status || de.Code != code {
		t.Fatalf("expected %d/%s, got %d/%s", status, code, de.Status, de.Code)
	}
}

func TestResolveTherapistRetriesIdentityRace(t *testing.T) {
	calls := 0
	fs := &fakeStore{
		ensureTherapistByIdentity: func(ctx context.Context, identity string) (store.Therapist, error) {
			calls++
			if calls == 1 {
				return store.Therapist{}, store.ErrIdentityRace
			}
			return store.Therapist{ID: 7, IdentityKey: identity}, nil
		},
	}
	svc := newTestService(fs)

	therapist, err := svc.ResolveTherapist(context.Background(), "auth0|abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if therapist.ID != 7 || calls != 2 {
		t.Fatalf("expected id 7 after retry, got id=%d calls=%d", therapist.ID, calls)
	}
}

func TestCreateClientValidation(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.CreateClient(context.Background(), 1, CreateClientInput{FirstName: "Ana"})
	wantDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestCreateSessionDefaultsDuration(t *testing.T) {
	var got store.Session
	fs := &fakeStore{
		createSession: func(ctx context.Context, therapistID int64, item store.Session) (store.Session, error) {
			got = item
			item.ID = 11
			return item, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.CreateSession(context.Background(), 1, CreateSessionInput{ClientID: 3, SessionDate: "2026-02-01"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DurationMinutes != 50 {
		t.Fatalf("expected default duration 50, got %d", got.DurationMinutes)
	}
}

func TestScheduleSessionSetsScheduledStatus(t *testing.T) {
	var got store.Session
	fs := &fakeStore{
		createSession: func(ctx context.Context, therapistID int64, item store.Session) (store.Session, error) {
			got = item
			return item, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.ScheduleSession(context.Background(), 1, ScheduleSessionInput{ClientID: 3, SessionDate: "2026-03-01", SessionTime: "10:00"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != "scheduled" {
		t.Fatalf("expected scheduled status, got %q", got.Status)
	}
}

func TestCreateSessionRejectsUnknownStatus(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.CreateSession(context.Background(), 1, CreateSessionInput{ClientID: 3, SessionDate: "2026-02-01", Status: "paused"})
	wantDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestUpdateTodoRequiresAField(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.UpdateTodo(context.Background(), 1, 2, UpdateTodoInput{})
	wantDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestSessionTodosComputesSessionsAgo(t *testing.T) {
	source := int64(4)
	current := int64(9)
	fs := &fakeStore{
		listSessionTodos: func(ctx context.Context, therapistID, sessionID int64) ([]store.Todo, error) {
			return []store.Todo{
				{ID: 1, ClientID: 3, Body: "raised here", SourceSessionID: &current},
				{ID: 2, ClientID: 3, Body: "carried over", SourceSessionID: &source},
			}, nil
		},
		getSession: func(ctx context.Context, therapistID, sessionID int64) (store.Session, error) {
			switch sessionID {
			case current:
				return store.Session{ID: current, ClientID: 3, SessionDate: "2026-01-17"}, nil
			case source:
				return store.Session{ID: source, ClientID: 3, SessionDate: "2026-01-10"}, nil
			default:
				t.Fatalf("unexpected session lookup %d", sessionID)
				return store.Session{}, nil
			}
		},
		completedSessionsAfter: func(ctx context.Context, clientID int64, date string) (int, error) {
			if date != "2026-01-10" {
				t.Fatalf("expected cutoff 2026-01-10, got %s", date)
			}
			return 3, nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.SessionTodos(context.Background(), 1, current)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	todos := payload["todos"].([]map[string]any)
	if len(todos) != 2 {
		t.Fatalf("expected 2 todos, got %d", len(todos))
	}
	if todos[0]["sessions_ago"] != 0 {
		t.Fatalf("own-session todo should be 0 sessions ago, got %v", todos[0]["sessions_ago"])
	}
	if todos[1]["sessions_ago"] != 3 {
		t.Fatalf("carryover todo should be 3 sessions ago, got %v", todos[1]["sessions_ago"])
	}
}

func TestSessionTodosForeignSessionIsNotFound(t *testing.T) {
	fs := &fakeStore{
		getSession: func(ctx context.Context, therapistID, sessionID int64) (store.Session, error) {
			return store.Session{}, sql.ErrNoRows
		},
	}
	svc := newTestService(fs)

	_, err := svc.SessionTodos(context.Background(), 1, 99)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows for a session outside the tenant, got %v", err)
	}
}

func TestSendMessageRequiresContentOrAttachments(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.SendMessage(context.Background(), 1, SendMessageInput{RecipientID: 2, RecipientType: "client"})
	wantDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestHomeworkFeedbackRequiresText(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.HomeworkFeedback(context.Background(), 1, 5, "   ")
	wantDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestUploadWithoutStorageIsUnavailable(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.Upload(context.Background(), "a.png", "image/png", 10, nil)
	wantDomainError(t, err, http.StatusServiceUnavailable, "SERVER_ERROR")
}

func TestSearchRejectsUnknownFilterType(t *testing.T) {
	svc := NewService(&fakeStore{}, ServiceOptions{})

	if _, err := svc.Search(context.Background(), 1, "ana", "invoices", 10, 0); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestCreateIntakeLinkCarriesIncludedAssessments(t *testing.T) {
	var stored store.FormLink
	fs := &fakeStore{
		createFormLink: func(ctx context.Context, link store.FormLink) (store.FormLink, error) {
			stored = link
			link.ID = 4
			return link, nil
		},
	}
	svc := newTestService(fs)

	view, err := svc.CreateIntakeLink(context.Background(), 1, CreateLinkInput{
		ClientName:          "Ana",
		IncludedAssessments: []any{"phq9", "gad7"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stored.IncludedAssessments) != 2 || stored.IncludedAssessments[0] != "phq9" {
		t.Fatalf("assessment selection should reach the store, got %v", stored.IncludedAssessments)
	}
	assessments, ok := view["included_assessments"].([]any)
	if !ok || len(assessments) != 2 {
		t.Fatalf("link view should carry the selection, got %v", view["included_assessments"])
	}
}

func TestPublicIntakeFormExpiredLinkIsGone(t *testing.T) {
	fs := &fakeStore{
		getFormLinkByToken: func(ctx context.Context, token string) (store.FormLink, error) {
			return store.FormLink{ID: 1, LinkToken: token, ExpiresAt: time.Now().Add(-time.Hour)}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.PublicIntakeForm(context.Background(), "tok")
	wantDomainError(t, err, http.StatusGone, "LINK_EXPIRED")
}

func TestPublicIntakeFormUnknownTokenIsNotFound(t *testing.T) {
	fs := &fakeStore{
		getFormLinkByToken: func(ctx context.Context, token string) (store.FormLink, error) {
			return store.FormLink{}, sql.ErrNoRows
		},
	}
	svc := newTestService(fs)

	_, err := svc.PublicIntakeForm(context.Background(), "nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestSubmitIntakeSectionShallowMerges(t *testing.T) {
	var saved map[string]any
	fs := &fakeStore{
		getFormLinkByToken: func(ctx context.Context, token string) (store.FormLink, error) {
			return store.FormLink{ID: 5, ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
		getIntakeByLink: func(ctx context.Context, linkID int64) (store.IntakeResponse, error) {
			return store.IntakeResponse{
				ID:         9,
				FormLinkID: linkID,
				Responses:  map[string]any{"full_name": "Ana Lima", "phone": "111"},
			}, nil
		},
		saveIntakeResponses: func(ctx context.Context, linkID int64, responses map[string]any) (store.IntakeResponse, error) {
			saved = responses
			return store.IntakeResponse{ID: 9, FormLinkID: linkID, Responses: responses, Status: "in_progress"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.SubmitIntakeSection(context.Background(), "tok", SubmitIntakeInput{
		Responses: map[string]any{"phone": "222", "email": "ana@example.com"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved["full_name"] != "Ana Lima" {
		t.Fatalf("existing answer should survive the merge, got %v", saved["full_name"])
	}
	if saved["phone"] != "222" {
		t.Fatalf("incoming answer should overwrite, got %v", saved["phone"])
	}
	if saved["email"] != "ana@example.com" {
		t.Fatalf("new answer should be added, got %v", saved["email"])
	}
}

func TestSubmitAssessmentScoresAndStores(t *testing.T) {
	var stored store.AssessmentResponse
	fs := &fakeStore{
		getFormLinkByToken: func(ctx context.Context, token string) (store.FormLink, error) {
			return store.FormLink{ID: 5, TherapistID: 1, ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
		insertAssessment: func(ctx context.Context, a store.AssessmentResponse) (store.AssessmentResponse, error) {
			stored = a
			a.ID = 3
			return a, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.SubmitAssessment(context.Background(), "tok", SubmitAssessmentInput{
		AssessmentType: "phq9",
		Responses:      map[string]any{"q1": float64(3), "q2": float64(3), "q3": float64(3), "q4": float64(3)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Score == nil || *stored.Score != 12 {
		t.Fatalf("expected score 12, got %v", stored.Score)
	}
	if stored.Severity != "moderate" {
		t.Fatalf("expected moderate severity, got %q", stored.Severity)
	}
}

func TestApproveIntakeCreatesClientFromAnswers(t *testing.T) {
	var createdClient store.Client
	var approvedWith *int64
	fs := &fakeStore{
		getIntakeResponse: func(ctx context.Context, therapistID, responseID int64) (store.IntakeResponse, error) {
			return store.IntakeResponse{
				ID:          responseID,
				FormLinkID:  5,
				TherapistID: therapistID,
				Responses:   map[string]any{"full_name": "Ana Lima Souza", "email": "ana@example.com"},
				Status:      "completed",
			}, nil
		},
		createClient: func(ctx context.Context, c store.Client) (store.Client, error) {
			createdClient = c
			c.ID = 42
			return c, nil
		},
		approveIntake: func(ctx context.Context, therapistID, responseID int64, clientID *int64) (store.IntakeResponse, error) {
			approvedWith = clientID
			return store.IntakeResponse{ID: responseID, Status: "reviewed", ClientID: clientID}, nil
		},
	}
	svc := newTestService(fs)

	view, err := svc.ApproveIntake(context.Background(), 1, 9, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if createdClient.FirstName != "Ana" || createdClient.LastName != "Lima Souza" {
		t.Fatalf("unexpected name split: %q %q", createdClient.FirstName, createdClient.LastName)
	}
	if createdClient.DateOfBirth != "1990-01-01" {
		t.Fatalf("expected placeholder date of birth, got %q", createdClient.DateOfBirth)
	}
	if approvedWith == nil || *approvedWith != 42 {
		t.Fatalf("expected approval with client 42, got %v", approvedWith)
	}
	if view["created_client_id"] != int64(42) {
		t.Fatalf("expected created_client_id in view, got %v", view["created_client_id"])
	}
}

func TestApproveIntakeWithoutClientCreation(t *testing.T) {
	fs := &fakeStore{
		getIntakeResponse: func(ctx context.Context, therapistID, responseID int64) (store.IntakeResponse, error) {
			return store.IntakeResponse{ID: responseID, Status: "completed"}, nil
		},
		approveIntake: func(ctx context.Context, therapistID, responseID int64, clientID *int64) (store.IntakeResponse, error) {
			if clientID != nil {
				t.Fatalf("expected nil client id, got %v", *clientID)
			}
			return store.IntakeResponse{ID: responseID, Status: "reviewed"}, nil
		},
	}
	svc := newTestService(fs)

	view, err := svc.ApproveIntake(context.Background(), 1, 9, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := view["created_client_id"]; ok {
		t.Fatal("view should not carry created_client_id")
	}
}

func TestSendIntakeEmailWithoutAddressFails(t *testing.T) {
	fs := &fakeStore{
		getFormLink: func(ctx context.Context, therapistID, linkID int64) (store.FormLink, error) {
			return store.FormLink{ID: linkID, TherapistID: therapistID, LinkToken: "tok"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.SendIntakeEmail(context.Background(), 1, SendIntakeEmailInput{LinkID: 4})
	wantDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestSendIntakeEmailWithoutSMTPStillStampsSent(t *testing.T) {
	stamped := false
	fs := &fakeStore{
		getFormLink: func(ctx context.Context, therapistID, linkID int64) (store.FormLink, error) {
			return store.FormLink{ID: linkID, TherapistID: therapistID, LinkToken: "tok", ClientEmail: "ana@example.com", ExpiresAt: time.Now().Add(48 * time.Hour)}, nil
		},
		markLinkSent: func(ctx context.Context, therapistID, linkID int64) (store.FormLink, error) {
			stamped = true
			now := time.Now()
			return store.FormLink{ID: linkID, TherapistID: therapistID, LinkToken: "tok", ClientEmail: "ana@example.com", SentAt: &now}, nil
		},
	}
	svc := newTestService(fs)

	view, err := svc.SendIntakeEmail(context.Background(), 1, SendIntakeEmailInput{LinkID: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stamped {
		t.Fatal("sent_at should be stamped even without SMTP")
	}
	if view["email_sent"] != false {
		t.Fatalf("expected email_sent=false, got %v", view["email_sent"])
	}
	if view["url"] != "http://app.test/intake/tok" {
		t.Fatalf("unexpected form url %v", view["url"])
	}
}

func TestLinkPreviewRequiresURL(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.LinkPreview(context.Background(), "  ")
	wantDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}
