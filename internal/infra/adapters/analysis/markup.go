package analysis

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkoukk/tiktoken-go"
)

// charsPerToken approximates cl100k when the encoding cannot be loaded.
const charsPerToken = 4

// MarkupReducer trims page text to a token budget before it goes into a prompt.
type MarkupReducer struct {
	enc *tiktoken.Tiktoken
}

// NewMarkupReducer loads cl100k_base. When the encoding is unavailable
// (offline, no cache) the reducer falls back to a character estimate.
func NewMarkupReducer() *MarkupReducer {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &MarkupReducer{}
	}
	return &MarkupReducer{enc: enc}
}

// Truncate returns the longest prefix of text that fits in budget tokens.
// A budget <= 0 disables truncation.
func (r *MarkupReducer) Truncate(text string, budget int) string {
	if budget <= 0 || text == "" {
		return text
	}
	if r == nil || r.enc == nil {
		return truncateRunes(text, budget*charsPerToken)
	}
	tokens := r.enc.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	return r.enc.Decode(tokens[:budget])
}

// Count reports the token length of text.
func (r *MarkupReducer) Count(text string) int {
	if r == nil || r.enc == nil {
		return (utf8.RuneCountInString(text) + charsPerToken - 1) / charsPerToken
	}
	return len(r.enc.Encode(text, nil, nil))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

var jobTextSelectors = []string{
	".job-description",
	"#job-description",
	".posting-content",
	".job-details",
	"[data-testid='job-description']",
	"main",
	"article",
}

// HTMLToText extracts the readable job text from rendered markup, preferring
// a job description container over the whole body.
func HTMLToText(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return collapseSpace(markup)
	}
	doc.Find("script, style, noscript, svg, nav, footer, header, .cookie-banner").Remove()

	var main *goquery.Selection
	for _, sel := range jobTextSelectors {
		if s := doc.Find(sel); s.Length() > 0 {
			main = s.First()
			break
		}
	}
	if main == nil {
		main = doc.Find("body")
	}
	return collapseSpace(main.Text())
}

// FormOutline lists the form controls on the page, one per line, each with a
// CSS selector that addresses it. It is what the form analyzer reads instead
// of raw markup.
func FormOutline(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	labels := map[string]string{}
	doc.Find("label[for]").Each(func(_ int, s *goquery.Selection) {
		if id, ok := s.Attr("for"); ok {
			labels[id] = collapseSpace(s.Text())
		}
	})

	var b strings.Builder
	doc.Find("input, textarea, select, button").Each(func(_ int, s *goquery.Selection) {
		typ := strings.ToLower(s.AttrOr("type", ""))
		if typ == "hidden" {
			return
		}
		sel := controlSelector(s)
		if sel == "" {
			return
		}
		tag := goquery.NodeName(s)
		fmt.Fprintf(&b, "%s tag=%s", sel, tag)
		if typ != "" {
			fmt.Fprintf(&b, " type=%s", typ)
		}
		for _, attr := range []string{"name", "placeholder", "aria-label", "autocomplete"} {
			if v := strings.TrimSpace(s.AttrOr(attr, "")); v != "" {
				fmt.Fprintf(&b, " %s=%q", attr, v)
			}
		}
		if l := labels[s.AttrOr("id", "")]; l != "" {
			fmt.Fprintf(&b, " label=%q", l)
		} else if l := collapseSpace(s.Closest("label").Text()); l != "" {
			fmt.Fprintf(&b, " label=%q", l)
		}
		if tag == "button" {
			if t := collapseSpace(s.Text()); t != "" {
				fmt.Fprintf(&b, " text=%q", t)
			}
		}
		b.WriteByte('\n')
	})
	return b.String()
}

func controlSelector(s *goquery.Selection) string {
	if id := strings.TrimSpace(s.AttrOr("id", "")); id != "" && !strings.ContainsAny(id, " \"'") {
		return "#" + id
	}
	tag := goquery.NodeName(s)
	if name := strings.TrimSpace(s.AttrOr("name", "")); name != "" && !strings.Contains(name, `"`) {
		return fmt.Sprintf(`%s[name="%s"]`, tag, name)
	}
	if tag == "button" || strings.EqualFold(s.AttrOr("type", ""), "submit") {
		if typ := s.AttrOr("type", ""); typ != "" {
			return fmt.Sprintf(`%s[type="%s"]`, tag, typ)
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
