package store

import "time"

type Therapist struct {
	ID           int64
	IdentityKey  string
	Email        string
	FirstName    string
	LastName     string
	PracticeType string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Client struct {
	ID                    int64
	TherapistID           int64
	FirstName             string
	LastName              string
	DateOfBirth           string
	Phone                 string
	Email                 string
	EmergencyContactName  string
	EmergencyContactPhone string
	Status                string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Session struct {
	ID              int64
	ClientID        int64
	TherapistID     int64
	SessionDate     string
	SessionTime     string
	DurationMinutes int
	Status          string
	Notes           string
	Summary         string

	LifeDomains     map[string]any
	EmotionalThemes map[string]any
	Interventions   []any
	AIAssistedData  string

	OverallProgress      string
	SessionSummary       string
	ClientInsights       string
	HomeworkAssigned     string
	ClinicalObservations string
	RiskAssessment       string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TodaySession joins client names onto the session row for the day view.
type TodaySession struct {
	Session
	ClientFirstName string
	ClientLastName  string
}

type Todo struct {
	ID                 int64
	ClientID           int64
	TherapistID        int64
	Body               string
	Status             string
	SourceSessionID    *int64
	CompletedSessionID *int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Message struct {
	ID            int64
	SenderID      int64
	SenderType    string
	RecipientID   int64
	RecipientType string
	Content       string
	MessageType   string
	Attachments   []any
	ReadAt        *time.Time
	CreatedAt     time.Time
}

type HomeworkAssignment struct {
	ID          int64
	TherapistID int64
	ClientID    int64
	Title       string
	Description string
	DueDate     string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Latest submission, when one exists.
	Submission *HomeworkSubmission
}

type HomeworkSubmission struct {
	ID           int64
	AssignmentID int64
	ClientID     int64
	Content      string
	Attachments  []any
	SubmittedAt  time.Time
	Feedback     string
	FeedbackAt   *time.Time
}

type FormLink struct {
	ID                  int64
	TherapistID         int64
	LinkToken           string
	ClientName          string
	ClientEmail         string
	FormType            string
	IncludedAssessments []any
	Status              string
	ExpiresAt           time.Time
	SentAt              *time.Time
	OpenedAt            *time.Time
	CreatedAt           time.Time
}

type IntakeResponse struct {
	ID          int64
	FormLinkID  int64
	TherapistID int64
	ClientID    *int64
	Responses   map[string]any
	Status      string
	StartedAt   *time.Time
	CompletedAt *time.Time
	ReviewedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Joined from form_links for the pending list.
	ClientName  string
	ClientEmail string
}

type AssessmentResponse struct {
	ID             int64
	FormLinkID     int64
	TherapistID    int64
	ClientID       *int64
	AssessmentType string
	Responses      map[string]any
	Score          *int
	Severity       string
	CompletedAt    time.Time
}
