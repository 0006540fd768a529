package domain

// Suggestion is an AI-derived enrichment for a todo draft.
type Suggestion struct {
	Category      string   `json:"category"`
	Priority      Priority `json:"priority"`
	SuggestedTags []string `json:"suggestedTags"`
}

// SuggestionCategories is the closed set the model is instructed to pick from.
var SuggestionCategories = []string{"Work", "Personal", "Shopping", "Health", "Finance", "Other"}

// DefaultSuggestion is the fixed fallback used whenever the model call
// cannot produce a usable result.
func DefaultSuggestion() Suggestion {
	return Suggestion{
		Category:      "Other",
		Priority:      PriorityMedium,
		SuggestedTags: []string{},
	}
}
