package models

// ApprovalScore is the minimum judge score for approval
const ApprovalScore = 65

// ValidationReport is the outcome of judging one scenario
type ValidationReport struct {
	Approved    bool     `json:"approved"`
	Score       int      `json:"score"`
	Reason      string   `json:"reason"`
	Suggestions string   `json:"suggestions,omitempty"`
	RawResponse string   `json:"raw_response,omitempty"`
	Scenario    Scenario `json:"scenario"`
}

// BatchDecision is the terminal state of the sampling protocol
type BatchDecision string

const (
	BatchAccepted BatchDecision = "accepted"
	BatchRejected BatchDecision = "rejected"
)

// BatchOutcome is what the sampling validator returns for one batch
type BatchOutcome struct {
	Decision    BatchDecision      `json:"decision"`
	BatchSize   int                `json:"batch_size"`
	SampleSize  int                `json:"sample_size"`
	Escalated   bool               `json:"escalated"`
	FailureRate float64            `json:"failure_rate"`
	Approved    []Scenario         `json:"approved"`
	Reports     []ValidationReport `json:"reports"`
	Feedback    string             `json:"feedback,omitempty"`
}

// ValidationSummary aggregates a set of reports
type ValidationSummary struct {
	TotalScenarios   int            `json:"total_scenarios"`
	ApprovedCount    int            `json:"approved_count"`
	RejectionCount   int            `json:"rejection_count"`
	ApprovalRate     float64        `json:"approval_rate"`
	AverageScore     float64        `json:"average_score"`
	RejectionReasons map[string]int `json:"rejection_reasons"`
}

// CompletionRequest is a single system+user prompt call to an LLM
type CompletionRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}
