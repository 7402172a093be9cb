package classify

import (
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/rebrand/dom"
)

func node(t *testing.T, src, selector string) (*dom.Document, *html.Node) {
	t.Helper()
	doc, err := dom.ParseString(src, "https://example.com")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	n := doc.FindFirst(selector)
	if n == nil {
		t.Fatalf("selector %q matched nothing", selector)
	}
	return doc, n
}

func TestCategorize_Table(t *testing.T) {
	cases := []struct {
		name     string
		src      string
		selector string
		want     Category
	}{
		{"h1 is headline", `<body><h1>Welcome to Acme</h1></body>`, "h1", CategoryHeadline},
		{"button element", `<body><button>Get started with us</button></body>`, "button", CategoryCTA},
		{"role button", `<body><a role="button" href="#">Sign me up</a></body>`, "a", CategoryCTA},
		{"btn class outranks vocabulary", `<body><a class="btn-primary" href="#">About our story</a></body>`, "a", CategoryCTA},
		{"cta vocabulary on plain link", `<body><a href="#">Learn more</a></body>`, "a", CategoryCTA},
		{"feature hint", `<body><p class="feature-item">Fast and reliable syncing</p></body>`, "p", CategoryFeature},
		{"about hint", `<body><p class="about-text">We started in a garage</p></body>`, "p", CategoryAbout},
		{"testimonial blockquote", `<body><blockquote>Best tool I have used</blockquote></body>`, "blockquote", CategoryTestimonial},
		{"product hint", `<body><p class="pricing-detail">Starts at nine dollars</p></body>`, "p", CategoryProduct},
		{"headline outranks feature hint", `<body><h2 class="feature-title">Features</h2></body>`, "h2", CategoryHeadline},
		{"plain paragraph is body", `<body><p>Just some ordinary marketing text here.</p></body>`, "p", CategoryBody},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, n := node(t, tc.src, tc.selector)
			rec, ok := Classify(n, Context{})
			if !ok {
				t.Fatal("node not eligible")
			}
			if rec.Category != tc.want {
				t.Fatalf("category: got %s, want %s", rec.Category, tc.want)
			}
		})
	}
}

func TestCategorize_Deterministic(t *testing.T) {
	// A node matching several rules must always land on the first one.
	src := `<body><button class="feature-btn about">Start your story</button></body>`
	_, n := node(t, src, "button")
	for i := 0; i < 10; i++ {
		rec, ok := Classify(n, Context{})
		if !ok {
			t.Fatal("not eligible")
		}
		if rec.Category != CategoryCTA {
			t.Fatalf("run %d: got %s, want %s", i, rec.Category, CategoryCTA)
		}
	}
}

func TestEligible(t *testing.T) {
	cases := []struct {
		name     string
		src      string
		selector string
		want     bool
	}{
		{"visible paragraph", `<body><p>Some real content here</p></body>`, "p", true},
		{"hidden paragraph", `<body><p hidden>Some real content here</p></body>`, "p", false},
		{"inside nav", `<body><nav><a href="#">Docs and guides</a></nav></body>`, "a", false},
		{"inside form", `<body><form><p>field help text</p></form></body>`, "p", false},
		{"inside footer", `<body><footer><h2>Acme keeps shipping widgets</h2></footer></body>`, "h2", false},
		{"already rewritten", `<body><p data-rebrand="1">done already</p></body>`, "p", false},
		{"cookie banner class", `<body><div class="cookie-notice">We use cookies here</div></body>`, "div", false},
		{"contenteditable false", `<body><p contenteditable="false">frozen author content</p></body>`, "p", false},
		{"contenteditable false ancestor", `<body><div contenteditable="FALSE"><p>frozen nested content</p></div></body>`, "p", false},
		{"opt-out class", `<body><p class="no-transform">leave this copy alone</p></body>`, "p", false},
		{"opt-out ancestor", `<body><div class="legal no-transform"><p>terms of service text</p></div></body>`, "p", false},
		{"wrapper with block children", `<body><div id="w"><p>inner copy text</p></div></body>`, "#w", false},
		{"too short", `<body><p>ab</p></body>`, "p", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, n := node(t, tc.src, tc.selector)
			if got := Eligible(n, DefaultLimits()); got != tc.want {
				t.Fatalf("Eligible: got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLengthClass(t *testing.T) {
	brand := NewBrandProfile("Acme", "title")
	cases := []struct {
		text string
		want LengthClass
	}{
		{"Acme", LengthBrand},
		{"Get started", LengthMicro},
		{"Our product makes your whole team faster", LengthShort},
		{"one two three four five six seven eight nine ten eleven twelve thirteen fourteen", LengthMedium},
	}
	for _, tc := range cases {
		src := `<body><p>` + tc.text + `</p></body>`
		_, n := node(t, src, "p")
		rec, ok := Classify(n, Context{Brand: brand})
		if !ok {
			t.Fatalf("%q: not eligible", tc.text)
		}
		if rec.Length != tc.want {
			t.Errorf("%q: length %s, want %s", tc.text, rec.Length, tc.want)
		}
	}
}

func TestPriority_Ordering(t *testing.T) {
	pos := func(float64) func(*html.Node) float64 {
		return func(*html.Node) float64 { return 0.5 }
	}
	_, headline := node(t, `<body><h1>Big announcement today</h1></body>`, "h1")
	_, body := node(t, `<body><p>Some regular body copy here.</p></body>`, "p")

	hr, _ := Classify(headline, Context{Position: pos(0.5)})
	br, _ := Classify(body, Context{Position: pos(0.5)})
	if hr.Priority <= br.Priority {
		t.Fatalf("headline priority %d not above body %d", hr.Priority, br.Priority)
	}
}

func TestSectionOf(t *testing.T) {
	cases := []struct {
		name     string
		src      string
		selector string
		pos      float64
		want     string
	}{
		{"hero class", `<body><div class="hero-unit"><h1>x</h1></div><p class="hero-copy">Welcome aboard friends</p></body>`, "p", 0.5, "hero"},
		{"footer tag", `<body><footer><p>All rights reserved by us</p></footer></body>`, "p", 0.1, "footer"},
		{"testimonial ancestor", `<body><section class="testimonials"><p>Great product, would buy again</p></section></body>`, "p", 0.5, "testimonials"},
		{"position fallback top", `<body><p>Plain early paragraph text</p></body>`, "p", 0.1, "hero"},
		{"position fallback middle", `<body><p>Plain middle paragraph text</p></body>`, "p", 0.5, "content"},
		{"position fallback bottom", `<body><p>Plain late paragraph text</p></body>`, "p", 0.9, "footer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, n := node(t, tc.src, tc.selector)
			if got := sectionOf(n, tc.pos); got != tc.want {
				t.Fatalf("section: got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBrandProfile(t *testing.T) {
	b := NewBrandProfile("Acme Inc", "title")
	if b == nil {
		t.Fatal("nil profile")
	}

	matches := []string{"Acme Inc", "acme inc", "ACME INC", "Acme"}
	for _, s := range matches {
		if !b.Matches(s) {
			t.Errorf("Matches(%q) = false", s)
		}
	}
	if b.Matches("Acme Inc ships a brand new analytics product suite today") {
		t.Error("long text dominated match should fail")
	}
	if !b.Contains("Try Acme today") {
		t.Error("Contains missed inline mention")
	}
	if b.Contains("Completely unrelated text") {
		t.Error("Contains false positive")
	}

	if NewBrandProfile("  ", "title") != nil {
		t.Error("blank name should yield nil profile")
	}
	var nilProfile *BrandProfile
	if nilProfile.Matches("anything") || nilProfile.Contains("anything") {
		t.Error("nil profile must match nothing")
	}
}
