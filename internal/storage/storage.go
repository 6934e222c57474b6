package storage

import (
	"cmp"
	"context"
	"slices"
	"time"
)

// Record is one search result as yielded to the caller, with the search that
// produced it.
type Record struct {
	ID          string    `json:"id" yaml:"id"`
	Query       string    `json:"query" yaml:"query"`
	Rank        int       `json:"rank" yaml:"rank"`     // 1-based position among the query's yielded results
	Offset      int       `json:"offset" yaml:"offset"` // page offset the search started at
	URL         string    `json:"url" yaml:"url"`
	Title       string    `json:"title,omitempty" yaml:"title,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Lang        string    `json:"lang,omitempty" yaml:"lang,omitempty"`
	Region      string    `json:"region,omitempty" yaml:"region,omitempty"`
	Strategy    string    `json:"strategy" yaml:"strategy"` // "direct" or "render"
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Filter allows querying for specific Records.
type Filter struct {
	Query    string
	URL      string
	Strategy string
	Since    *time.Time
	Limit    int
	Offset   int
}

// Match reports whether r passes the filter's predicates. Limit and Offset
// are not considered.
func (f Filter) Match(r *Record) bool {
	if f.Query != "" && r.Query != f.Query {
		return false
	}
	if f.URL != "" && r.URL != f.URL {
		return false
	}
	if f.Strategy != "" && r.Strategy != f.Strategy {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Sort orders records newest first, then by rank.
func Sort(records []*Record) {
	slices.SortStableFunc(records, func(a, b *Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Rank, b.Rank)
	})
}

// Page applies the filter's Offset and Limit to already sorted records.
func (f Filter) Page(records []*Record) []*Record {
	if f.Offset > 0 {
		if f.Offset >= len(records) {
			return []*Record{}
		}
		records = records[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(records) {
		records = records[:f.Limit]
	}
	return records
}

// Backend defines the interface for storing and querying search results.
type Backend interface {
	Save(ctx context.Context, record *Record) error
	Query(ctx context.Context, filter Filter) ([]*Record, error)
	Close() error
}
