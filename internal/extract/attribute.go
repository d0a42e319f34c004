package extract

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dmarchuk/newsloom/internal/model"
)

// Attributor turns segmented fetch results into attributed, merged,
// confidence-scored knowledge claims. Every claim it emits carries at
// least one SourceReference that resolves inside the snapshot it was
// extracted from.
type Attributor struct {
	analyzer Analyzer
	cfg      model.ExtractConfig
	logger   *zap.Logger
}

// NewAttributor wires an analyzer into the attribution step
func NewAttributor(analyzer Analyzer, cfg model.ExtractConfig, logger *zap.Logger) *Attributor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Attributor{analyzer: analyzer, cfg: cfg, logger: logger}
}

// mergedClaim accumulates candidates that normalize to the same claim
type mergedClaim struct {
	text       string
	claimType  model.ClaimType
	topic      string
	confidence float64
	keywords   map[string]bool
	references []model.SourceReference
}

// Extract analyzes every sentence of every successful fetch result and
// returns the merged claim set. topics maps source id to its default
// topic tag (typically the source category). Output ordering is
// deterministic for identical input.
func (a *Attributor) Extract(ctx context.Context, results []*model.FetchResult, topics map[string]string) ([]model.KnowledgeClaim, error) {
	merged := make(map[string]*mergedClaim)
	now := time.Now().UTC()

	for _, result := range results {
		if result == nil || !result.Success {
			continue
		}
		if err := a.extractFromResult(ctx, result, topics[result.SourceID], merged, now); err != nil {
			return nil, err
		}
	}

	byID := make(map[string]*model.FetchResult, len(results))
	for _, result := range results {
		if result != nil {
			byID[result.SourceID] = result
		}
	}

	claims := make([]model.KnowledgeClaim, 0, len(merged))
	for _, mc := range merged {
		if mc.confidence < a.cfg.ConfidenceFloor {
			continue
		}

		claim := model.KnowledgeClaim{
			ID:              model.ClaimID(mc.text, mc.topic),
			Text:            mc.text,
			Type:            mc.claimType,
			ConfidenceScore: mc.confidence,
			ConfidenceLevel: model.LevelForScore(mc.confidence),
			Topic:           mc.topic,
			Keywords:        sortedKeys(mc.keywords),
			References:      mc.references,
			CreatedAt:       now,
		}

		if err := ValidateClaim(claim, byID); err != nil {
			a.logger.Warn("dropping invalid claim", zap.Error(err))
			continue
		}

		claims = append(claims, claim)
	}

	sort.Slice(claims, func(i, j int) bool {
		if claims[i].Topic != claims[j].Topic {
			return claims[i].Topic < claims[j].Topic
		}
		return claims[i].Text < claims[j].Text
	})

	return claims, nil
}

func (a *Attributor) extractFromResult(ctx context.Context, result *model.FetchResult, defaultTopic string, merged map[string]*mergedClaim, now time.Time) error {
	sourceURL := result.FinalURL
	if sourceURL == "" {
		sourceURL = result.URL
	}

	for _, para := range result.Paragraphs {
		if len(para.Text) < a.cfg.MinParagraphLen {
			continue
		}

		for si, sentence := range para.Sentences {
			if err := ctx.Err(); err != nil {
				return err
			}

			candidates, err := a.analyzer.Analyze(ctx, sentence, defaultTopic)
			if err != nil {
				// Analysis failures lose one sentence, not the stage.
				a.logger.Debug("sentence analysis failed",
					zap.String("source", result.SourceID),
					zap.Int("paragraph", para.Index),
					zap.Int("sentence", sentence.Index),
					zap.Error(err))
				continue
			}

			for _, cand := range candidates {
				if strings.TrimSpace(cand.Text) == "" {
					continue
				}
				topic := cand.Topic
				if topic == "" {
					topic = defaultTopic
				}

				ref := model.SourceReference{
					SourceID:       result.SourceID,
					SourceURL:      sourceURL,
					SourceTitle:    result.SourceName,
					ParagraphIndex: para.Index,
					SentenceIndex:  sentence.Index,
					SentenceText:   sentence.Text,
					CharStart:      sentence.CharStart,
					CharEnd:        sentence.CharEnd,
					ContextBefore:  neighborText(para.Sentences, si-1),
					ContextAfter:   neighborText(para.Sentences, si+1),
					Relevance:      cand.Relevance,
					ExtractedAt:    now,
				}

				a.merge(merged, cand, topic, ref)
			}
		}
	}

	return nil
}

// merge folds a candidate into the claim keyed by normalized text and
// topic. Duplicates from different sources become one claim with
// multiple references; confidence is the max over merged candidates.
func (a *Attributor) merge(merged map[string]*mergedClaim, cand Candidate, topic string, ref model.SourceReference) {
	key := model.NormalizeClaimText(cand.Text) + "|" + strings.ToLower(topic)

	mc, exists := merged[key]
	if !exists {
		mc = &mergedClaim{
			text:      cand.Text,
			claimType: cand.Type,
			topic:     topic,
			keywords:  make(map[string]bool),
		}
		merged[key] = mc
	}

	if cand.Confidence > mc.confidence {
		mc.confidence = cand.Confidence
	}
	for _, kw := range cand.Keywords {
		mc.keywords[kw] = true
	}

	for _, existing := range mc.references {
		if existing.SourceID == ref.SourceID &&
			existing.ParagraphIndex == ref.ParagraphIndex &&
			existing.SentenceIndex == ref.SentenceIndex {
			return
		}
	}
	mc.references = append(mc.references, ref)
}

func neighborText(sentences []model.Sentence, idx int) string {
	if idx < 0 || idx >= len(sentences) {
		return ""
	}
	return sentences[idx].Text
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
