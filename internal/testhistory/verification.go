package testhistory

import (
	"errors"
	"fmt"
	"strings"
)

// Verification failures.
var (
	ErrNotSorted    = errors.New("recommendations not sorted by descending score")
	ErrDuplicate    = errors.New("duplicate title in recommendations")
	ErrTooMany      = errors.New("more recommendations than allowed")
	ErrNoCategories = errors.New("categories must be a list")
)

// VerifyRecommendations checks the ordering and uniqueness guarantees of a
// /recommend response.
func VerifyRecommendations(recs []Recommendation, maxResults int) error {
	if maxResults > 0 && len(recs) > maxResults {
		return fmt.Errorf("%w: got %d, limit %d", ErrTooMany, len(recs), maxResults)
	}
	seen := make(map[string]int, len(recs))
	for i, r := range recs {
		if i > 0 && recs[i-1].Score < r.Score {
			return fmt.Errorf("%w: position %d (%.4f) above %d (%.4f)", ErrNotSorted, i-1, recs[i-1].Score, i, r.Score)
		}
		key := strings.ToLower(strings.TrimSpace(r.Title))
		if j, ok := seen[key]; ok {
			return fmt.Errorf("%w: %q at positions %d and %d", ErrDuplicate, r.Title, j, i)
		}
		seen[key] = i
		if r.Categories == nil {
			return fmt.Errorf("%w: %q", ErrNoCategories, r.Title)
		}
	}
	return nil
}
