package report

import (
	"cmp"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"net/url"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/FranksOps/serpent/internal/storage"
)

// topDomainCount caps the domain leaderboard.
const topDomainCount = 10

// QueryStat aggregates the stored results of one search term.
type QueryStat struct {
	Query      string         `json:"query"`
	Results    int            `json:"results"`
	UniqueURLs int            `json:"unique_urls"`
	Strategies map[string]int `json:"strategies"`
	LastSeen   time.Time      `json:"last_seen"`
}

// DomainStat counts results pointing at one host.
type DomainStat struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// Summary contains aggregated figures about stored search results.
type Summary struct {
	TotalResults int            `json:"total_results"`
	UniqueURLs   int            `json:"unique_urls"`
	Queries      []QueryStat    `json:"queries"`
	TopDomains   []DomainStat   `json:"top_domains"`
	ByStrategy   map[string]int `json:"by_strategy"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      time.Time      `json:"end_time"`
	Duration     time.Duration  `json:"duration"`
}

// GenerateSummary aggregates records into a Summary. Queries are ordered by
// result count, domains by frequency.
func GenerateSummary(records []*storage.Record) Summary {
	s := Summary{ByStrategy: make(map[string]int)}
	if len(records) == 0 {
		return s
	}

	s.StartTime = records[0].CreatedAt
	s.EndTime = records[0].CreatedAt

	urls := make(map[string]struct{})
	domains := make(map[string]int)
	queries := make(map[string]*QueryStat)
	queryURLs := make(map[string]map[string]struct{})

	for _, r := range records {
		s.TotalResults++
		s.ByStrategy[r.Strategy]++
		urls[r.URL] = struct{}{}
		if d := domainOf(r.URL); d != "" {
			domains[d]++
		}

		qs, ok := queries[r.Query]
		if !ok {
			qs = &QueryStat{Query: r.Query, Strategies: make(map[string]int)}
			queries[r.Query] = qs
			queryURLs[r.Query] = make(map[string]struct{})
		}
		qs.Results++
		qs.Strategies[r.Strategy]++
		queryURLs[r.Query][r.URL] = struct{}{}
		if r.CreatedAt.After(qs.LastSeen) {
			qs.LastSeen = r.CreatedAt
		}

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}
	}

	s.UniqueURLs = len(urls)
	s.Duration = s.EndTime.Sub(s.StartTime)

	for q, qs := range queries {
		qs.UniqueURLs = len(queryURLs[q])
		s.Queries = append(s.Queries, *qs)
	}
	slices.SortFunc(s.Queries, func(a, b QueryStat) int {
		if c := cmp.Compare(b.Results, a.Results); c != 0 {
			return c
		}
		return strings.Compare(a.Query, b.Query)
	})

	for d, n := range domains {
		s.TopDomains = append(s.TopDomains, DomainStat{Domain: d, Count: n})
	}
	slices.SortFunc(s.TopDomains, func(a, b DomainStat) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Domain, b.Domain)
	})
	if len(s.TopDomains) > topDomainCount {
		s.TopDomains = s.TopDomains[:topDomainCount]
	}

	return s
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

var funcs = map[string]any{
	"comma": func(n int) string { return humanize.Comma(int64(n)) },
	"ago":   humanize.Time,
	"stamp": func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

const textTmpl = `Serpent Results Summary
-----------------------
Time:          {{stamp .StartTime}} - {{stamp .EndTime}}
Duration:      {{.Duration}}
Results:       {{comma .TotalResults}} ({{comma .UniqueURLs}} unique URLs)

Strategies:
{{- range $name, $count := .ByStrategy}}
  {{$name}}: {{comma $count}}
{{- else}}
  None
{{- end}}

Queries:
{{- range .Queries}}
  {{printf "%-30q" .Query}} {{comma .Results}} results, {{comma .UniqueURLs}} unique, last seen {{ago .LastSeen}}
{{- else}}
  None
{{- end}}

Top Domains:
{{- range .TopDomains}}
  {{printf "%-30s" .Domain}} {{comma .Count}}
{{- else}}
  None
{{- end}}
`

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	t, err := template.New("textReport").Funcs(funcs).Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: parse text template: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render text: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Serpent Results Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Serpent Results Report</h1>
  <p><strong>Time:</strong> {{stamp .StartTime}} to {{stamp .EndTime}} ({{.Duration}})</p>

  <div class="stat-card">
    <div>Results</div>
    <div class="stat-val">{{comma .TotalResults}}</div>
  </div>
  <div class="stat-card">
    <div>Unique URLs</div>
    <div class="stat-val">{{comma .UniqueURLs}}</div>
  </div>
  <div class="stat-card">
    <div>Queries</div>
    <div class="stat-val">{{len .Queries}}</div>
  </div>

  <h3>Queries</h3>
  <table>
    <tr><th>Query</th><th>Results</th><th>Unique URLs</th><th>Last Seen</th></tr>
    {{- range .Queries}}
    <tr><td>{{.Query}}</td><td>{{comma .Results}}</td><td>{{comma .UniqueURLs}}</td><td>{{ago .LastSeen}}</td></tr>
    {{- else}}
    <tr><td colspan="4">None</td></tr>
    {{- end}}
  </table>

  <h3>Top Domains</h3>
  <table>
    <tr><th>Domain</th><th>Results</th></tr>
    {{- range .TopDomains}}
    <tr><td>{{.Domain}}</td><td>{{comma .Count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`

// WriteHTML writes a basic HTML report to the provided writer.
func WriteHTML(w io.Writer, summary Summary) error {
	t, err := htmltemplate.New("htmlReport").Funcs(funcs).Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("report: parse html template: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}
