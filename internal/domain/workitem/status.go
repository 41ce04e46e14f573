package workitem

import "strings"

// ReadyConfidenceThreshold is the minimum confidence for an APPROVE
// recommendation to be considered ready for review.
const ReadyConfidenceThreshold = 0.8

// MapToStatus converts an analysis recommendation into a work item status.
// Matching is case-insensitive; a nil or unknown recommendation falls back to
// ReadyForReview so a human looks at it.
func MapToStatus(recommendation *string, confidence float64) Status {
	if recommendation == nil {
		return StatusReadyForReview
	}
	switch strings.ToUpper(strings.TrimSpace(*recommendation)) {
	case "APPROVE":
		if confidence >= ReadyConfidenceThreshold {
			return StatusReadyForReview
		}
		return StatusMissingData
	case "DENY":
		return StatusReadyForReview
	case "NEEDS_INFO", "NEED_INFO":
		return StatusMissingData
	case "NOT_REQUIRED", "NO_PA_REQUIRED":
		return StatusNoPaRequired
	default:
		return StatusReadyForReview
	}
}
