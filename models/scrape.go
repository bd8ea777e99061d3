package models

import "time"

// Identity is one coherent browser header set used for a request.
type Identity struct {
	Name      string
	UserAgent string
	Headers   map[string]string
}

// ScrapeAttempt records a single fetch try. Body is only kept for the
// attempt that succeeded.
type ScrapeAttempt struct {
	Identity           string
	StartedAt          time.Time
	Duration           time.Duration
	HTTPStatus         int
	BotDefenseDetected bool
	Body               string
	Err                error
}

// ScrapeOutcome is the result of one retry loop.
type ScrapeOutcome struct {
	Success      bool
	Body         string
	IdentityUsed Identity
	AttemptsUsed int
	Attempts     []ScrapeAttempt
	Err          error
}

// ExtractionResult holds the signals extracted from a page.
type ExtractionResult struct {
	Prices       []float64 `json:"prices"`
	Descriptions []string  `json:"descriptions"`
	Confidence   float64   `json:"confidence"`
}

// DataPoints is the number of extracted values.
func (r ExtractionResult) DataPoints() int {
	return len(r.Prices) + len(r.Descriptions)
}

// Observation is one performance sample for a source domain.
type Observation struct {
	Domain         string    `json:"domain"`
	Success        bool      `json:"success"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	ObservedAt     time.Time `json:"observed_at"`
}

// ScrapeRequest is the inbound request body.
type ScrapeRequest struct {
	TargetURL  string     `json:"targetUrl"`
	CoinQuery  *CoinQuery `json:"coinQuery"`
	SearchType string     `json:"searchType,omitempty"`
	MaxRetries *int       `json:"maxRetries,omitempty"`
}

// ScrapeData is the success payload of a response.
type ScrapeData struct {
	DataPoints   int       `json:"dataPoints"`
	Prices       []float64 `json:"prices"`
	Descriptions []string  `json:"descriptions"`
	Confidence   float64   `json:"confidence"`
}

// ScrapeMetadata describes how a response was produced.
type ScrapeMetadata struct {
	ScrapeID         string    `json:"scrape_id,omitempty"`
	SourceURL        string    `json:"source_url"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	UserAgentUsed    string    `json:"user_agent_used"`
	RetryCount       int       `json:"retry_count"`
	DataPointsFound  int       `json:"data_points_found"`
	Timestamp        time.Time `json:"timestamp"`
}

// ScrapeResponse is the outbound response body.
type ScrapeResponse struct {
	Success  bool            `json:"success"`
	Data     *ScrapeData     `json:"data,omitempty"`
	Metadata *ScrapeMetadata `json:"metadata,omitempty"`
	Error    string          `json:"error,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// ScrapeRecord is one flattened batch result row.
type ScrapeRecord struct {
	Key          string    `json:"key"`
	TargetURL    string    `json:"target_url"`
	SourceURL    string    `json:"source_url"`
	Domain       string    `json:"domain"`
	Success      bool      `json:"success"`
	Prices       []float64 `json:"prices"`
	Descriptions []string  `json:"descriptions"`
	Confidence   float64   `json:"confidence"`
	Attempts     int       `json:"attempts"`
	Error        string    `json:"error,omitempty"`
	ScrapedAt    time.Time `json:"scraped_at"`
}

// BatchResult holds the overall result of a batch run.
type BatchResult struct {
	StartTime    time.Time
	EndTime      time.Time
	RequestCount int
	SuccessCount int
	FailureCount int
	ErrorsByType map[string]int
}
