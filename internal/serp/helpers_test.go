package serp

import (
	"context"
	"fmt"
	"strings"
)

// scriptedFetcher serves canned pages in call order and records requests.
type scriptedFetcher struct {
	pages    []string
	errs     map[int]error
	requests []FetchRequest
}

func (f *scriptedFetcher) Name() string { return "scripted" }

func (f *scriptedFetcher) FetchPage(_ context.Context, req FetchRequest) (*Page, error) {
	call := len(f.requests)
	f.requests = append(f.requests, req)
	if err, ok := f.errs[call]; ok {
		return nil, err
	}
	if call >= len(f.pages) {
		return &Page{StatusCode: 200, HTML: "<html><body></body></html>"}, nil
	}
	return &Page{StatusCode: 200, HTML: f.pages[call]}, nil
}

func block(href, title, desc string) string {
	return fmt.Sprintf(`<div class="ezO2md"><a href="%s"><span class="CVA68e">%s</span></a><span class="FrIlee">%s</span></div>`,
		href, title, desc)
}

// resultPage renders n well-formed blocks for https://example.com/<prefix><i>.
func resultPage(prefix string, n int) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := range n {
		target := fmt.Sprintf("https://example.com/%s%d", prefix, i)
		b.WriteString(block("/url?q="+target+"&sa=U&ved=abc", "Title "+target, "Desc "+target))
	}
	b.WriteString("</body></html>")
	return b.String()
}

func page(blocks ...string) string {
	return "<html><body>" + strings.Join(blocks, "") + "</body></html>"
}
