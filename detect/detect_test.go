package detect

import (
	"testing"

	"github.com/hazyhaar/rebrand/classify"
	"github.com/hazyhaar/rebrand/dom"
)

func parse(t *testing.T, src, url string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(src, url)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

const marketingPage = `<html><head>
	<title>Acme - Cloud Widgets for Teams</title>
	<meta property="og:site_name" content="Acme">
</head><body>
	<header><div class="logo">Acme</div></header>
	<div class="hero">
		<h1>Ship widgets faster with Acme</h1>
		<p>The widget platform trusted by thousands of teams worldwide.</p>
		<a class="btn-primary" href="/signup">Get Started</a>
	</div>
	<section class="features">
		<h2>Why teams choose us</h2>
		<p class="feature-item">Real-time collaboration built in from day one.</p>
		<p class="feature-item">Integrates with the tools you already use.</p>
	</section>
	<footer><p>Copyright notice lives elsewhere</p></footer>
</body></html>`

func TestElements_WalkTier(t *testing.T) {
	doc := parse(t, marketingPage, "https://www.acme.com")
	res, err := Elements(doc, Limits{}, nil)
	if err != nil {
		t.Fatalf("Elements: %v", err)
	}
	if res.Tier != TierWalk {
		t.Fatalf("tier: got %s, want %s", res.Tier, TierWalk)
	}
	if len(res.Records) < 5 {
		t.Fatalf("records: got %d, want at least 5", len(res.Records))
	}
	if res.Brand == nil || res.Brand.Name != "Acme" {
		t.Fatalf("brand: got %+v", res.Brand)
	}

	var sawHeadline, sawCTA bool
	for _, r := range res.Records {
		if r.XPath == "" {
			t.Errorf("record %q has no xpath", r.Text)
		}
		switch r.Category {
		case classify.CategoryHeadline:
			sawHeadline = true
		case classify.CategoryCTA:
			sawCTA = true
		}
	}
	if !sawHeadline || !sawCTA {
		t.Fatalf("missing categories: headline=%v cta=%v", sawHeadline, sawCTA)
	}
}

func TestElements_MaxElements(t *testing.T) {
	doc := parse(t, marketingPage, "https://acme.com")
	res, err := Elements(doc, Limits{MaxElements: 2}, nil)
	if err != nil {
		t.Fatalf("Elements: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("records: got %d, want 2", len(res.Records))
	}
}

func TestElements_EmptyPage(t *testing.T) {
	doc := parse(t, `<html><body></body></html>`, "")
	_, err := Elements(doc, Limits{}, nil)
	if err != ErrNoContent {
		t.Fatalf("error: got %v, want ErrNoContent", err)
	}
}

func TestElements_EmergencyTier(t *testing.T) {
	// Everything sits inside a form, which the walk and query tiers refuse
	// to enter; the emergency grab still finds the spans.
	doc := parse(t, `<html><body><form>
		<span>Short visible snippet one</span>
		<span>Short visible snippet two</span>
	</form></body></html>`, "")
	res, err := Elements(doc, Limits{}, nil)
	if err != nil {
		t.Fatalf("Elements: %v", err)
	}
	if res.Tier != TierEmergency {
		t.Fatalf("tier: got %s, want %s", res.Tier, TierEmergency)
	}
	if len(res.Records) != 2 {
		t.Fatalf("records: got %d, want 2", len(res.Records))
	}
}

func TestSubtree(t *testing.T) {
	doc := parse(t, marketingPage, "https://acme.com")
	root := doc.FindFirst(".features")
	recs := Subtree(doc, root, nil, Limits{})
	if len(recs) != 3 {
		t.Fatalf("records: got %d, want 3", len(recs))
	}
	for _, r := range recs {
		if r.Text == "Ship widgets faster with Acme" {
			t.Fatal("subtree scan leaked outside its root")
		}
	}
}

func TestBrand_Signals(t *testing.T) {
	cases := []struct {
		name string
		src  string
		url  string
		want string
	}{
		{
			"title and meta agree",
			`<html><head><title>Zephyr | Home</title><meta property="og:site_name" content="Zephyr"></head><body></body></html>`,
			"https://other.example",
			"Zephyr",
		},
		{
			"logo only",
			`<html><head></head><body><div class="logo">Northwind</div></body></html>`,
			"",
			"Northwind",
		},
		{
			"domain fallback",
			`<html><head></head><body></body></html>`,
			"https://www.contoso.io/pricing",
			"Contoso",
		},
		{
			"generic names rejected",
			`<html><head><title>Home</title></head><body></body></html>`,
			"",
			"",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := parse(t, tc.src, tc.url)
			b := Brand(doc)
			if tc.want == "" {
				if b != nil {
					t.Fatalf("expected nil profile, got %q", b.Name)
				}
				return
			}
			if b == nil || b.Name != tc.want {
				t.Fatalf("brand: got %+v, want %q", b, tc.want)
			}
		})
	}
}

func TestSplitTitle(t *testing.T) {
	parts := splitTitle("Acme - Widgets | Pricing")
	want := []string{"Acme", "Widgets", "Pricing"}
	if len(parts) != len(want) {
		t.Fatalf("parts: got %v", parts)
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Fatalf("part %d: got %q, want %q", i, parts[i], want[i])
		}
	}
}

func TestPositionFn_Monotonic(t *testing.T) {
	doc := parse(t, `<html><body><p id="a">first paragraph text</p><p id="b">second paragraph text</p><p id="c">third paragraph text</p></body></html>`, "")
	pos := positionFn(doc)
	a := pos(doc.FindFirst("#a"))
	c := pos(doc.FindFirst("#c"))
	if a >= c {
		t.Fatalf("position not increasing: a=%f c=%f", a, c)
	}
}
