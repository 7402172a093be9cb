package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hazyhaar/rebrand/classify"
	"github.com/hazyhaar/rebrand/complete"
	"github.com/hazyhaar/rebrand/dom"
)

// Analysis is the model's (or fallback's) per-element guidance.
type Analysis struct {
	DetectedBrand string     `json:"detected_brand"`
	ContentTheme  string     `json:"content_theme"`
	Elements      []Guidance `json:"elements"`
}

// Guidance steers the rewrite of one element.
type Guidance struct {
	ID           int    `json:"id"`
	OriginalText string `json:"original_text"`
	Role         string `json:"role"`     // brand, headline, cta, feature, description, testimonial, navigation
	Strategy     string `json:"strategy"` // replace, adapt, keep
	TargetLength int    `json:"target_length"`
	Priority     int    `json:"priority"`
	Suggested    string `json:"suggested_text"`
}

// For returns the guidance matching an element's text: exact match first,
// then containment of the first 50 characters either way. nil when nothing
// matches.
func (a *Analysis) For(text string) *Guidance {
	if a == nil {
		return nil
	}
	t := strings.TrimSpace(text)
	for i := range a.Elements {
		if strings.TrimSpace(a.Elements[i].OriginalText) == t {
			return &a.Elements[i]
		}
	}
	probe := truncate(t, 50)
	if probe == "" {
		return nil
	}
	for i := range a.Elements {
		orig := strings.TrimSpace(a.Elements[i].OriginalText)
		if orig == "" {
			continue
		}
		if strings.Contains(orig, probe) || strings.Contains(t, truncate(orig, 50)) {
			return &a.Elements[i]
		}
	}
	return nil
}

// digestEntry is the compact element view sent in the analysis prompt.
type digestEntry struct {
	ID       int    `json:"id"`
	Tag      string `json:"tag"`
	Category string `json:"category"`
	Section  string `json:"section"`
	Length   string `json:"length"`
	Words    int    `json:"words"`
	Text     string `json:"text"`
}

func (p *Planner) analyze(ctx context.Context, doc *dom.Document, recs []classify.Record, brand *classify.BrandProfile, input ProductInput) (*Analysis, error) {
	digest := make([]digestEntry, 0, p.maxAnalyzed)
	for i, rec := range recs {
		if i >= p.maxAnalyzed {
			break
		}
		digest = append(digest, digestEntry{
			ID:       i,
			Tag:      rec.Tag,
			Category: string(rec.Category),
			Section:  rec.Section,
			Length:   string(rec.Length),
			Words:    rec.Words,
			Text:     truncate(rec.Text, 160),
		})
	}
	digestJSON, err := json.Marshal(digest)
	if err != nil {
		return nil, fmt.Errorf("plan: marshal digest: %w", err)
	}

	brandName := ""
	if brand != nil {
		brandName = brand.Name
	}
	messages := analysisMessages(string(digestJSON), p.markdownContext(doc), brandName, input)

	raw, err := p.chat.Chat(ctx, complete.Request{
		Messages:    messages,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("plan: analysis call: %w", err)
	}

	// Models wrap JSON in prose and fences at will; extract the first
	// balanced object rather than trusting the envelope.
	obj, err := ExtractObject(raw)
	if err != nil {
		return nil, fmt.Errorf("plan: analysis response: %w", err)
	}
	var analysis Analysis
	if err := json.Unmarshal([]byte(obj), &analysis); err != nil {
		return nil, fmt.Errorf("plan: decode analysis: %w", err)
	}
	if len(analysis.Elements) == 0 {
		return nil, fmt.Errorf("plan: analysis returned no elements")
	}
	return &analysis, nil
}

func analysisMessages(digest, markdown, brandName string, input ProductInput) []complete.Message {
	tone := input.Tone
	if tone == "" {
		tone = "professional"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New product:\n- Name: %s\n- Description: %s\n- Tone: %s\n\n",
		input.Title, input.Description, tone)
	if brandName != "" {
		fmt.Fprintf(&b, "Detected current brand: %s\n\n", brandName)
	}
	b.WriteString("Page elements (JSON):\n")
	b.WriteString(digest)
	if markdown != "" {
		b.WriteString("\n\nPage rendered as markdown for context:\n")
		b.WriteString(markdown)
	}
	b.WriteString(`

Respond with a single JSON object, no prose:
{
  "detected_brand": "...",
  "content_theme": "...",
  "elements": [
    {"id": 0, "original_text": "...", "role": "brand|headline|cta|feature|description|testimonial|navigation",
     "strategy": "replace|adapt|keep", "target_length": 5, "priority": 10, "suggested_text": "..."}
  ]
}
Rules: suggested_text must read naturally in place of the original, stay close
to target_length words, and never be empty for strategy replace or adapt.
Buttons keep their purpose. Navigation is strategy keep.`)

	return []complete.Message{
		{
			Role: "system",
			Content: "You are a marketing copywriter. You analyse the visible copy of a web page " +
				"and plan how to rewrite it for a different product while preserving the page's " +
				"structure, layout and visual rhythm.",
		},
		{Role: "user", Content: b.String()},
	}
}
