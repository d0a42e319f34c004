package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/dmarchuk/newsloom/internal/model"
)

// Writer assembles cited articles from knowledge claims. Claims are
// grouped by topic; each topic with enough claims becomes one article
// whose prose carries [n] markers into a numbered citation list. With
// no provider configured the writer composes template prose, which
// keeps article generation deterministic and offline.
type Writer struct {
	provider Provider
	cfg      model.GenerateConfig
	logger   *zap.Logger
}

// NewWriter creates a writer. provider may be nil.
func NewWriter(provider Provider, cfg model.GenerateConfig, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{provider: provider, cfg: cfg, logger: logger}
}

// Write turns the run's claims into articles, one per topic that meets
// the minimum claim count. Output ordering is deterministic.
func (w *Writer) Write(ctx context.Context, claims []model.KnowledgeClaim) ([]model.Article, error) {
	groups := make(map[string][]model.KnowledgeClaim)
	for _, claim := range claims {
		topic := claim.Topic
		if topic == "" {
			topic = "general"
		}
		groups[topic] = append(groups[topic], claim)
	}

	topics := make([]string, 0, len(groups))
	for topic := range groups {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	minClaims := w.cfg.MinClaimsPerTopic
	if minClaims <= 0 {
		minClaims = 1
	}

	var articles []model.Article
	for _, topic := range topics {
		group := groups[topic]
		if len(group) < minClaims {
			w.logger.Debug("skipping thin topic",
				zap.String("topic", topic),
				zap.Int("claims", len(group)))
			continue
		}

		article, err := w.buildArticle(ctx, topic, group)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}

	return articles, nil
}

func (w *Writer) buildArticle(ctx context.Context, topic string, claims []model.KnowledgeClaim) (model.Article, error) {
	citations, markers := buildCitations(claims)

	sections, generatedBy, err := w.buildSections(ctx, topic, claims, markers)
	if err != nil {
		return model.Article{}, err
	}

	var body strings.Builder
	for i, section := range sections {
		if i > 0 {
			body.WriteString("\n\n")
		}
		body.WriteString(section.Heading)
		body.WriteString("\n\n")
		body.WriteString(section.Content)
	}

	title := fmt.Sprintf("%s: %d findings from %d sources",
		titleCase(topic), len(claims), uniqueSourceCount(claims))

	return model.Article{
		ID:            model.ArticleID(topic, title),
		Title:         title,
		Topic:         topic,
		Summary:       summaryClaim(claims),
		Content:       body.String(),
		Sections:      sections,
		Citations:     citations,
		ClaimCount:    len(claims),
		UniqueSources: uniqueSourceCount(claims),
		GeneratedBy:   generatedBy,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// buildSections groups a topic's claims by claim type and composes one
// section per type, via the provider when available.
func (w *Writer) buildSections(ctx context.Context, topic string, claims []model.KnowledgeClaim, markers map[string][]int) ([]model.ArticleSection, string, error) {
	byType := make(map[model.ClaimType][]model.KnowledgeClaim)
	for _, claim := range claims {
		byType[claim.Type] = append(byType[claim.Type], claim)
	}

	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, string(t))
	}
	sort.Strings(types)

	generatedBy := "template"
	var sections []model.ArticleSection
	for _, t := range types {
		group := byType[model.ClaimType(t)]

		section := templateSection(model.ClaimType(t), group, markers)

		if w.provider != nil {
			if err := ctx.Err(); err != nil {
				return nil, "", err
			}
			resp, err := w.provider.ComposeSection(ctx, ComposeRequest{
				Topic:     topic,
				Claims:    group,
				Citations: markers,
			})
			if err != nil {
				w.logger.Warn("section composition failed, using template",
					zap.String("topic", topic),
					zap.String("type", t),
					zap.Error(err))
			} else {
				section.Heading = resp.Heading
				section.Content = resp.Content
				generatedBy = w.provider.Name() + ":" + resp.Model
			}
		}

		sections = append(sections, section)
	}

	return sections, generatedBy, nil
}

// buildCitations numbers every distinct referenced sentence once and
// records which markers belong to each claim
func buildCitations(claims []model.KnowledgeClaim) ([]model.Citation, map[string][]int) {
	type refKey struct {
		sourceID  string
		paragraph int
		sentence  int
	}

	index := make(map[refKey]int)
	markers := make(map[string][]int)
	var citations []model.Citation

	for _, claim := range claims {
		for _, ref := range claim.References {
			key := refKey{ref.SourceID, ref.ParagraphIndex, ref.SentenceIndex}
			n, exists := index[key]
			if !exists {
				n = len(citations) + 1
				index[key] = n
				citations = append(citations, model.Citation{
					Index:          n,
					SourceID:       ref.SourceID,
					SourceURL:      ref.SourceURL,
					SourceTitle:    ref.SourceTitle,
					ParagraphIndex: ref.ParagraphIndex,
					SentenceIndex:  ref.SentenceIndex,
				})
			}
			markers[claim.ID] = append(markers[claim.ID], n)
		}
	}

	return citations, markers
}

func templateSection(claimType model.ClaimType, claims []model.KnowledgeClaim, markers map[string][]int) model.ArticleSection {
	ids := make([]string, 0, len(claims))
	var content strings.Builder
	for i, claim := range claims {
		ids = append(ids, claim.ID)
		if i > 0 {
			content.WriteString(" ")
		}
		content.WriteString(strings.TrimRight(claim.Text, "."))
		for _, n := range markers[claim.ID] {
			fmt.Fprintf(&content, " [%d]", n)
		}
		content.WriteString(".")
	}

	return model.ArticleSection{
		Heading:  sectionHeading(claimType),
		Content:  content.String(),
		ClaimIDs: ids,
	}
}

func sectionHeading(claimType model.ClaimType) string {
	switch claimType {
	case model.ClaimTypeStatistic:
		return "By the numbers"
	case model.ClaimTypeQuote:
		return "What was said"
	case model.ClaimTypeResearchFinding:
		return "Research findings"
	case model.ClaimTypePrediction:
		return "Looking ahead"
	case model.ClaimTypeTrend:
		return "Trends"
	case model.ClaimTypeOpinion:
		return "Perspectives"
	case model.ClaimTypeComparison:
		return "Comparisons"
	case model.ClaimTypeDefinition:
		return "Background"
	case model.ClaimTypeExplanation:
		return "Why it matters"
	default:
		return "Key facts"
	}
}

// summaryClaim picks the highest-confidence claim as the article summary
func summaryClaim(claims []model.KnowledgeClaim) string {
	best := ""
	bestScore := -1.0
	for _, claim := range claims {
		if claim.ConfidenceScore > bestScore {
			bestScore = claim.ConfidenceScore
			best = claim.Text
		}
	}
	return best
}

func uniqueSourceCount(claims []model.KnowledgeClaim) int {
	sources := make(map[string]bool)
	for _, claim := range claims {
		for _, ref := range claim.References {
			sources[ref.SourceID] = true
		}
	}
	return len(sources)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
