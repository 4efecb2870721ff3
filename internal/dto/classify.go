package dto

// ClassifyRequest carries the free-text description to categorize.
type ClassifyRequest struct {
	Description string `json:"description" validate:"required"`
}

// ClassifySuggestion is the advisory output of the classification adapter.
// It never overrides the issue's stored category or severity.
type ClassifySuggestion struct {
	Category   string  `json:"category"`
	Severity   string  `json:"severity"`
	Confidence float64 `json:"confidence,omitempty"`
}
