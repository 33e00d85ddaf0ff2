package priority

import (
	"strings"

	"github.com/facility_triage/internal/models"
)

// ClassifyUrgency scans description for any of keywords (hazard and safety
// terms, urgency adverbs) and returns High on a hit, Normal otherwise.
// The result selects the scheduling eligibility window.
func ClassifyUrgency(description string, keywords []string) models.Priority {
	text := lower(description)
	if strings.TrimSpace(text) == "" {
		return models.PriorityNormal
	}
	for _, kw := range keywords {
		kw = lower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			return models.PriorityHigh
		}
	}
	return models.PriorityNormal
}
