package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultClient  ResultType = "client"
	ResultSession ResultType = "session"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type     ResultType `json:"type"`
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Snippet  string     `json:"snippet"`
	ClientID string     `json:"clientId,omitempty"`
}

// Query describes a search request. TherapistID scopes every path; results
// never cross tenants.
type Query struct {
	Text        string
	TherapistID int64
	FilterType  ResultType // empty = all types
	Limit       int
	Offset      int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ClientRecord is the data we index for a client.
type ClientRecord struct {
	ID          string `json:"id"`
	TherapistID int64  `json:"therapistId"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Status      string `json:"status"`
}

// SessionRecord is the data we index for a session.
type SessionRecord struct {
	ID          string `json:"id"`
	TherapistID int64  `json:"therapistId"`
	ClientID    string `json:"clientId"`
	SessionDate string `json:"sessionDate"`
	Notes       string `json:"notes"`
	Summary     string `json:"summary"`
}
