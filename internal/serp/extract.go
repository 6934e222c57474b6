package serp

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors locate the parts of a result block. Title is matched inside the
// link element, Link and Description inside the block.
type Selectors struct {
	Block       string
	Link        string
	Title       string
	Description string
}

// DefaultSelectors matches the basic-HTML result page layout.
var DefaultSelectors = Selectors{
	Block:       "div.ezO2md",
	Link:        "a[href]",
	Title:       "span.CVA68e",
	Description: "span.FrIlee",
}

// Candidate is a result block that carried a link, a title and a description.
// Href is the raw, undecoded link target.
type Candidate struct {
	Href        string
	Title       string
	Description string
}

// Extractor pulls candidates out of result page markup.
type Extractor struct {
	sel Selectors
}

// NewExtractor returns an Extractor; empty selector fields fall back to
// DefaultSelectors.
func NewExtractor(sel Selectors) *Extractor {
	if sel.Block == "" {
		sel.Block = DefaultSelectors.Block
	}
	if sel.Link == "" {
		sel.Link = DefaultSelectors.Link
	}
	if sel.Title == "" {
		sel.Title = DefaultSelectors.Title
	}
	if sel.Description == "" {
		sel.Description = DefaultSelectors.Description
	}
	return &Extractor{sel: sel}
}

// Extract returns the candidates of a page in document order. Blocks missing
// any of the three parts are skipped.
func (e *Extractor) Extract(html string) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("serp: parse page: %w", err)
	}

	var out []Candidate
	doc.Find(e.sel.Block).Each(func(_ int, block *goquery.Selection) {
		link := block.Find(e.sel.Link).First()
		if link.Length() == 0 {
			return
		}
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		title := link.Find(e.sel.Title).First()
		if title.Length() == 0 {
			return
		}
		desc := block.Find(e.sel.Description).First()
		if desc.Length() == 0 {
			return
		}
		out = append(out, Candidate{
			Href:        href,
			Title:       strings.TrimSpace(title.Text()),
			Description: strings.TrimSpace(desc.Text()),
		})
	})
	return out, nil
}
