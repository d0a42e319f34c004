package extract

import (
	"github.com/dmarchuk/newsloom/internal/model"
)

// ValidateClaim checks the claim invariants: a score in [0,1], a level
// matching the score, and at least one reference resolving within the
// bounds of its fetch snapshot. Violations are reported as a
// ValidationError so callers can drop and log the claim.
func ValidateClaim(claim model.KnowledgeClaim, snapshots map[string]*model.FetchResult) error {
	if claim.ConfidenceScore < 0 || claim.ConfidenceScore > 1 {
		return &model.ValidationError{ClaimID: claim.ID, Reason: "confidence score out of range"}
	}
	if claim.ConfidenceLevel != model.LevelForScore(claim.ConfidenceScore) {
		return &model.ValidationError{ClaimID: claim.ID, Reason: "confidence level does not match score"}
	}
	if len(claim.References) == 0 {
		return &model.ValidationError{ClaimID: claim.ID, Reason: "no source references"}
	}

	for _, ref := range claim.References {
		snapshot, ok := snapshots[ref.SourceID]
		if !ok {
			return &model.ValidationError{ClaimID: claim.ID, Reason: "reference to unknown source " + ref.SourceID}
		}
		if _, ok := snapshot.Sentence(ref.ParagraphIndex, ref.SentenceIndex); !ok {
			return &model.ValidationError{ClaimID: claim.ID, Reason: "reference out of snapshot bounds"}
		}
	}

	return nil
}
