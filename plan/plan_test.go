package plan

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/rebrand/classify"
	"github.com/hazyhaar/rebrand/complete"
	"github.com/hazyhaar/rebrand/detect"
	"github.com/hazyhaar/rebrand/dom"
)

// scriptedChatter returns one canned response or error for every call.
type scriptedChatter struct {
	response string
	err      error
	calls    int
}

func (s *scriptedChatter) Chat(_ context.Context, _ complete.Request) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

const planPage = `<html><head><title>Acme - Widgets</title></head><body>
	<div class="hero">
		<h1>Ship widgets faster with Acme</h1>
		<p>The widget platform trusted by thousands of teams.</p>
		<a class="btn" href="/go">Try Acme Free</a>
		<a class="btn" href="/more">Learn more</a>
	</div>
	<section class="features">
		<p class="feature-item">Real-time collaboration built in.</p>
	</section>
</body></html>`

func detectPage(t *testing.T) (*dom.Document, []classify.Record, *classify.BrandProfile) {
	t.Helper()
	doc, err := dom.ParseString(planPage, "https://acme.com")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res, err := detect.Elements(doc, detect.Limits{}, nil)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	return doc, res.Records, res.Brand
}

var testInput = ProductInput{Title: "Zephyr", Description: "wind-powered analytics", Tone: "playful"}

func TestFallback_PlanShape(t *testing.T) {
	_, recs, brand := detectPage(t)
	pl := Fallback(recs, brand, testInput)

	if pl.Source != "fallback" {
		t.Fatalf("source: got %q", pl.Source)
	}
	if pl.Analysis == nil || pl.Analysis.DetectedBrand != "Acme" {
		t.Fatalf("analysis: %+v", pl.Analysis)
	}
	if len(pl.Steps) == 0 {
		t.Fatal("no steps")
	}

	if pl.Steps[0].Type != StepBrand || pl.Steps[0].From != "Acme" || pl.Steps[0].To != "Zephyr" {
		t.Fatalf("first step: %+v", pl.Steps[0])
	}

	var sawButtons, sawSection bool
	for _, st := range pl.Steps {
		switch st.Type {
		case StepButtons:
			sawButtons = true
		case StepSection:
			sawSection = true
		}
	}
	if !sawButtons || !sawSection {
		t.Fatalf("steps missing kinds: buttons=%v section=%v", sawButtons, sawSection)
	}
}

func TestFallback_Guidance(t *testing.T) {
	brand := classify.NewBrandProfile("Acme", "title")
	recs := []classify.Record{
		{Tag: "h1", TagClass: classify.Heading, Text: "Ship widgets faster now", Words: 4},
		{Tag: "span", TagClass: classify.ShortContent, Text: "Acme", Words: 1, IsBrand: true},
		{Tag: "h2", TagClass: classify.Heading, Text: "Everything your team needs to collaborate in one calm place", Words: 10},
		{Tag: "a", TagClass: classify.Link, Text: "Learn more", Words: 2},
		{Tag: "p", TagClass: classify.Paragraph, Text: "A very long paragraph of body copy that runs on for fifteen words total here", Words: 15},
	}
	pl := Fallback(recs, brand, testInput)
	els := pl.Analysis.Elements
	if len(els) != len(recs) {
		t.Fatalf("elements: got %d, want %d", len(els), len(recs))
	}

	// Top heading: replaced outright with the product title.
	if g := els[0]; g.Role != "brand" || g.Strategy != "replace" || g.TargetLength != 3 || g.Suggested != "Zephyr" {
		t.Fatalf("h1 guidance: %+v", g)
	}
	// Brand-flagged text follows the same path regardless of tag.
	if g := els[1]; g.Role != "brand" || g.Strategy != "replace" || g.Suggested != "Zephyr" {
		t.Fatalf("brand span guidance: %+v", g)
	}
	// Lesser headings adapt within a budget of at most 8 words.
	if g := els[2]; g.Role != "headline" || g.Strategy != "adapt" || g.TargetLength != 8 {
		t.Fatalf("h2 guidance: %+v", g)
	}
	// Micro text stays as is.
	if g := els[3]; g.Role != "navigation" || g.Strategy != "keep" {
		t.Fatalf("micro guidance: %+v", g)
	}
	// Everything else adapts, capped at 10 words.
	if g := els[4]; g.Role != "description" || g.Strategy != "adapt" || g.TargetLength != 10 {
		t.Fatalf("body guidance: %+v", g)
	}
}

func TestPlan_PriorityOrdering(t *testing.T) {
	_, recs, brand := detectPage(t)
	pl := Fallback(recs, brand, testInput)
	for i := 1; i < len(pl.Steps); i++ {
		if pl.Steps[i].Priority > pl.Steps[i-1].Priority {
			t.Fatalf("steps out of order at %d: %d after %d",
				i, pl.Steps[i].Priority, pl.Steps[i-1].Priority)
		}
	}
}

func TestButtonDirectives(t *testing.T) {
	brand := classify.NewBrandProfile("Acme", "title")
	recs := []classify.Record{
		{Category: classify.CategoryCTA, Text: "Try Acme Free"},
		{Category: classify.CategoryCTA, Text: "Learn more"},
		{Category: classify.CategoryCTA, Text: ""},
		{Category: classify.CategoryBody, Text: "not a button"},
	}
	dirs := buttonDirectives(recs, brand, testInput)
	if len(dirs) != 3 {
		t.Fatalf("directives: got %d, want 3: %+v", len(dirs), dirs)
	}

	if dirs[0].Action != ButtonReplace || dirs[0].Text != "Try Zephyr Free" {
		t.Fatalf("brand button: %+v", dirs[0])
	}
	if dirs[1].Action != ButtonPreserve {
		t.Fatalf("generic button: %+v", dirs[1])
	}
	if dirs[2].Action != ButtonFix || dirs[2].Text != DefaultButtonLabel {
		t.Fatalf("empty button: %+v", dirs[2])
	}
}

func TestBuild_RemoteSuccess(t *testing.T) {
	doc, recs, brand := detectPage(t)
	chat := &scriptedChatter{response: "Here is the plan:\n```json\n" + `{
		"detected_brand": "Acme",
		"content_theme": "widgets",
		"elements": [
			{"id": 0, "original_text": "Ship widgets faster with Acme", "role": "headline",
			 "strategy": "replace", "target_length": 5, "priority": 10, "suggested_text": "Zephyr makes wind work"}
		]
	}` + "\n```\nDone."}

	p := New(chat, nil)
	pl := p.Build(context.Background(), doc, recs, brand, testInput)
	if pl.Source != "remote" {
		t.Fatalf("source: got %q", pl.Source)
	}
	if chat.calls != 1 {
		t.Fatalf("chat calls: got %d", chat.calls)
	}
	g := pl.Analysis.For("Ship widgets faster with Acme")
	if g == nil || g.Suggested != "Zephyr makes wind work" {
		t.Fatalf("guidance: %+v", g)
	}
}

func TestBuild_RemoteFailureFallsBack(t *testing.T) {
	doc, recs, brand := detectPage(t)
	chat := &scriptedChatter{err: errors.New("HTTP 500 from provider")}

	p := New(chat, nil)
	pl := p.Build(context.Background(), doc, recs, brand, testInput)
	if pl.Source != "fallback" {
		t.Fatalf("source: got %q, want fallback", pl.Source)
	}
	if len(pl.Steps) == 0 {
		t.Fatal("fallback produced no steps")
	}
}

func TestBuild_GarbageResponseFallsBack(t *testing.T) {
	doc, recs, brand := detectPage(t)
	chat := &scriptedChatter{response: "I cannot help with that."}

	p := New(chat, nil)
	pl := p.Build(context.Background(), doc, recs, brand, testInput)
	if pl.Source != "fallback" {
		t.Fatalf("source: got %q, want fallback", pl.Source)
	}
}

func TestBuild_NilChatterUsesFallback(t *testing.T) {
	doc, recs, brand := detectPage(t)
	p := New(nil, nil)
	pl := p.Build(context.Background(), doc, recs, brand, testInput)
	if pl.Source != "fallback" {
		t.Fatalf("source: got %q", pl.Source)
	}
}

func TestExtractObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"prose around", `Sure! Here you go: {"a":{"b":2}} hope that helps`, `{"a":{"b":2}}`, true},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"braces in strings", `{"text":"closing } inside","n":1}`, `{"text":"closing } inside","n":1}`, true},
		{"escaped quote", `{"text":"she said \"hi {\"","n":2}`, `{"text":"she said \"hi {\"","n":2}`, true},
		{"no object", "nothing here", "", false},
		{"unbalanced", `{"a":1`, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractObject(tc.in)
			if tc.ok != (err == nil) {
				t.Fatalf("err: %v", err)
			}
			if tc.ok && got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAnalysisFor_PrefixMatch(t *testing.T) {
	long := strings.Repeat("lorem ipsum dolor sit amet ", 5)
	a := &Analysis{Elements: []Guidance{
		{ID: 0, OriginalText: long, Suggested: "short version"},
	}}
	if g := a.For(long + "trailing difference"); g == nil || g.ID != 0 {
		t.Fatal("prefix containment match failed")
	}
	if g := a.For("completely different text altogether"); g != nil {
		t.Fatalf("unexpected match: %+v", g)
	}
}

func TestReplaceFold(t *testing.T) {
	cases := []struct{ s, old, new, want string }{
		{"Try ACME today with acme", "Acme", "Zephyr", "Try Zephyr today with Zephyr"},
		{"no match here", "Acme", "Zephyr", "no match here"},
		{"unchanged", "", "x", "unchanged"},
	}
	for _, tc := range cases {
		if got := replaceFold(tc.s, tc.old, tc.new); got != tc.want {
			t.Fatalf("replaceFold(%q,%q,%q) = %q, want %q", tc.s, tc.old, tc.new, got, tc.want)
		}
	}
}

func TestContentSections_SkipsFooterAndNav(t *testing.T) {
	recs := []classify.Record{
		{Section: "hero"},
		{Section: "footer"},
		{Section: "features"},
		{Section: "hero"},
		{Section: "navigation"},
	}
	got := contentSections(recs)
	want := []string{"hero", "features"}
	if len(got) != len(want) {
		t.Fatalf("sections: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("section %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
