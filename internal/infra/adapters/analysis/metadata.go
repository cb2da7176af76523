package analysis

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"autoapply-agent/internal/domain/ports/adapter"
)

var _ adapter.JobMetadataExtractor = PageMetadataExtractor{}

const maxMetaLen = 200

// PageMetadataExtractor reads title and company from structured data and
// common meta tags.
type PageMetadataExtractor struct{}

type jobPostingLD struct {
	Type               any    `json:"@type"`
	Title              string `json:"title"`
	HiringOrganization struct {
		Name string `json:"name"`
	} `json:"hiringOrganization"`
}

func (PageMetadataExtractor) Extract(markup, pageURL string) adapter.JobMetadata {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return adapter.JobMetadata{}
	}
	var meta adapter.JobMetadata

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, p := range parseJobPostings(s.Text()) {
			if meta.Title == "" {
				meta.Title = p.Title
			}
			if meta.Company == "" {
				meta.Company = p.HiringOrganization.Name
			}
		}
		return meta.Title == "" || meta.Company == ""
	})

	if meta.Title == "" {
		meta.Title = firstNonEmpty(
			doc.Find(`meta[property="og:title"]`).AttrOr("content", ""),
			doc.Find("h1").First().Text(),
			doc.Find("title").First().Text(),
		)
	}
	if meta.Company == "" {
		meta.Company = firstNonEmpty(
			doc.Find(`meta[property="og:site_name"]`).AttrOr("content", ""),
			doc.Find(`meta[name="author"]`).AttrOr("content", ""),
		)
	}
	if meta.Company == "" {
		meta.Company = companyFromURL(pageURL)
	}
	meta.Title = clip(collapseSpace(meta.Title))
	meta.Company = clip(collapseSpace(meta.Company))
	return meta
}

// parseJobPostings accepts a single object, an array, or an @graph wrapper.
func parseJobPostings(raw string) []jobPostingLD {
	raw = strings.TrimSpace(raw)
	var out []jobPostingLD
	keep := func(list []jobPostingLD) {
		for _, p := range list {
			if isJobPosting(p.Type) {
				out = append(out, p)
			}
		}
	}
	var one jobPostingLD
	if json.Unmarshal([]byte(raw), &one) == nil {
		keep([]jobPostingLD{one})
	}
	var many []jobPostingLD
	if json.Unmarshal([]byte(raw), &many) == nil {
		keep(many)
	}
	var graph struct {
		Graph []jobPostingLD `json:"@graph"`
	}
	if json.Unmarshal([]byte(raw), &graph) == nil {
		keep(graph.Graph)
	}
	return out
}

func isJobPosting(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "JobPosting"
	case []any:
		for _, x := range v {
			if s, ok := x.(string); ok && s == "JobPosting" {
				return true
			}
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func clip(s string) string {
	if len([]rune(s)) <= maxMetaLen {
		return s
	}
	return string([]rune(s)[:maxMetaLen])
}

// Boards that put the company slug first in the path.
var slugHosts = []string{"greenhouse.io", "lever.co", "workable.com", "ashbyhq.com"}

func companyFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range slugHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			seg := strings.Split(strings.Trim(u.Path, "/"), "/")[0]
			return strings.ReplaceAll(seg, "-", " ")
		}
	}
	return ""
}
