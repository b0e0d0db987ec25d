package models

type Step string

const (
	StepInitiated Step = "initiated"
	StepCaching   Step = "caching_fragments"
	StepComparing Step = "comparing"
	StepCompleted Step = "completed"
	StepFailed    Step = "failed"
)

// ComparisonResult is a single flagged cell of the target version.
type ComparisonResult struct {
	CellNumber          int     `json:"cell_number"`
	Similarity          float64 `json:"similarity"`
	RelatedDocVersionID string  `json:"related_doc_version_id"`
}

// SkippedVersion records a sibling that could not be compared.
type SkippedVersion struct {
	DocumentVersionID string `json:"doc_version_id"`
	Reason            string `json:"reason"`
}

// CheckResult is the outcome of comparing one version against its checkpoint siblings.
type CheckResult struct {
	DocumentVersionID string             `json:"doc_version_id"`
	Language          string             `json:"language"`
	Threshold         float64            `json:"threshold"`
	SiblingsCompared  int                `json:"siblings_compared"`
	Matches           []ComparisonResult `json:"matches"`
	Skipped           []SkippedVersion   `json:"skipped,omitempty"`
	Incomplete        bool               `json:"incomplete,omitempty"`
}

// CheckRequest represents a request to check a document version
type CheckRequest struct {
	DocVersionID string   `json:"doc_version_id" binding:"required"`
	Language     string   `json:"language"`
	Threshold    *float64 `json:"threshold"`
}

// ExplainRequest asks for the score breakdown of two raw fragments
type ExplainRequest struct {
	SourceA  string `json:"source_a"`
	SourceB  string `json:"source_b"`
	Language string `json:"language"`
}

// TokenSpan is a run of equal tokens shared by two fragments.
type TokenSpan struct {
	AStart int      `json:"a_start"`
	AEnd   int      `json:"a_end"`
	BStart int      `json:"b_start"`
	BEnd   int      `json:"b_end"`
	Tokens []string `json:"tokens"`
}

// ExplainResponse holds sub-scores and the shared spans of an explain request
type ExplainResponse struct {
	Edit      float64     `json:"edit_similarity"`
	Alignment float64     `json:"alignment_similarity"`
	Tree      float64     `json:"tree_similarity"`
	Aggregate float64     `json:"aggregate_similarity"`
	TokensA   int         `json:"tokens_a"`
	TokensB   int         `json:"tokens_b"`
	Spans     []TokenSpan `json:"spans"`
}

// StatusResponse represents the response from the status endpoint
type StatusResponse struct {
	DocVersionID string `json:"doc_version_id"`
	Step         Step   `json:"step"`
}
