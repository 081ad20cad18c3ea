package testhistory

import "time"

// Config holds configuration for the history smoke test.
type Config struct {
	BaseURL      string        // Base URL of the service
	JWTSecret    string        // Secret used to mint bearer tokens
	Users        int           // Number of synthetic users
	BooksPerUser int           // History events posted per user
	Workers      int           // Number of concurrent workers
	Timeout      time.Duration // HTTP request timeout
	MaxResults   int           // Upper bound expected from /recommend
	Verbose      bool          // Log every recommendation list
}

// Book is one history entry posted to the service.
type Book struct {
	Title       string `json:"book_title"`
	Description string `json:"description,omitempty"`
}

// Recommendation mirrors one item returned by /recommend.
type Recommendation struct {
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
	Score       float64  `json:"score"`
}

// Stats holds test statistics.
type Stats struct {
	Users             int
	HistoryPosted     int
	HistoryFailed     int
	Recommendations   int
	RecommendFailed   int
	EmptyResponses    int
	VerificationFails int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
