// Package segment turns fetched HTML or plain text into the
// paragraph/sentence snapshot that provenance pointers address.
package segment

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/dmarchuk/newsloom/internal/model"
)

// Segmenter splits source text into paragraphs and sentences with char
// offsets. The segmentation is deterministic: identical input always
// yields the identical snapshot.
type Segmenter struct {
	minSentenceLen int
	maxSentenceLen int
}

// New creates a Segmenter with the default sentence length bounds
func New() *Segmenter {
	return &Segmenter{
		minSentenceLen: 20,
		maxSentenceLen: 600,
	}
}

// Segment extracts visible text and splits it into indexed paragraphs
// and sentences. HTML input is parsed; anything that fails to parse as
// HTML is treated as plain text with blank-line paragraph breaks.
func (s *Segmenter) Segment(content string) []model.Paragraph {
	blocks := s.textBlocks(content)

	var paragraphs []model.Paragraph
	for _, block := range blocks {
		sentences := s.splitSentences(block)
		if len(sentences) == 0 {
			continue
		}
		paragraphs = append(paragraphs, model.Paragraph{
			Index:     len(paragraphs),
			Text:      block,
			Sentences: sentences,
		})
	}
	return paragraphs
}

// textBlocks returns visible text grouped by block-level element. Plain
// text falls back to blank-line splitting.
func (s *Segmenter) textBlocks(content string) []string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "<") {
		return splitPlainBlocks(content)
	}

	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return splitPlainBlocks(content)
	}

	var blocks []string
	var current strings.Builder

	flush := func() {
		text := collapseSpace(current.String())
		current.Reset()
		if text != "" {
			blocks = append(blocks, text)
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "nav", "footer":
				return
			case "p", "h1", "h2", "h3", "h4", "h5", "h6", "li", "blockquote", "td", "pre", "article", "section", "div", "br":
				flush()
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				current.WriteString(text)
				current.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "h1", "h2", "h3", "h4", "h5", "h6", "li", "blockquote", "td", "pre", "article", "section", "div":
				flush()
			}
		}
	}

	walk(doc)
	flush()
	return blocks
}

// splitSentences splits a paragraph into sentences with char offsets
// into the paragraph text. Sentences outside the length bounds are kept
// out of the snapshot entirely so indices stay dense.
func (s *Segmenter) splitSentences(paragraph string) []model.Sentence {
	var sentences []model.Sentence
	start := 0

	appendSentence := func(raw string, rawStart int) {
		text := strings.TrimSpace(raw)
		if len(text) < s.minSentenceLen || len(text) > s.maxSentenceLen {
			return
		}
		// Offset of the trimmed text inside the paragraph.
		offset := rawStart + strings.Index(raw, text)
		sentences = append(sentences, model.Sentence{
			Index:     len(sentences),
			Text:      text,
			CharStart: offset,
			CharEnd:   offset + len(text),
		})
	}

	for i := 0; i < len(paragraph); i++ {
		r := paragraph[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// Terminator must be followed by whitespace or end-of-text to avoid
		// splitting on abbreviations and decimals.
		if i+1 < len(paragraph) && paragraph[i+1] != ' ' && paragraph[i+1] != '\t' {
			continue
		}
		appendSentence(paragraph[start:i+1], start)
		start = i + 1
	}
	if start < len(paragraph) {
		appendSentence(paragraph[start:], start)
	}

	return sentences
}

func splitPlainBlocks(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	var blocks []string
	for _, block := range strings.Split(normalized, "\n\n") {
		block = collapseSpace(block)
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
