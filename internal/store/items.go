package store

import (
	"encoding/json"
	"fmt"

	"github.com/dmarchuk/newsloom/internal/model"
)

// ClaimItems wraps claims as store items keyed by their stable claim
// id, so a later run's copy of the same claim supersedes this one.
func ClaimItems(claims []model.KnowledgeClaim) ([]Item, error) {
	items := make([]Item, 0, len(claims))
	for _, claim := range claims {
		data, err := json.Marshal(claim)
		if err != nil {
			return nil, fmt.Errorf("marshal claim %s: %w", claim.ID, err)
		}
		items = append(items, Item{ID: claim.ID, CreatedAt: claim.CreatedAt, Data: data})
	}
	return items, nil
}

// ArticleItems wraps articles keyed by their stable article id
func ArticleItems(articles []model.Article) ([]Item, error) {
	items := make([]Item, 0, len(articles))
	for _, article := range articles {
		data, err := json.Marshal(article)
		if err != nil {
			return nil, fmt.Errorf("marshal article %s: %w", article.ID, err)
		}
		items = append(items, Item{ID: article.ID, CreatedAt: article.CreatedAt, Data: data})
	}
	return items, nil
}

// FetchItems wraps raw fetch snapshots keyed by source id, so merges
// keep only the newest snapshot per source
func FetchItems(results []*model.FetchResult) ([]Item, error) {
	items := make([]Item, 0, len(results))
	for _, result := range results {
		if result == nil {
			continue
		}
		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("marshal fetch result %s: %w", result.SourceID, err)
		}
		items = append(items, Item{ID: result.SourceID, CreatedAt: result.FetchedAt, Data: data})
	}
	return items, nil
}
