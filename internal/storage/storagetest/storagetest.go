// Package storagetest holds the behaviour every storage.Backend must share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/FranksOps/serpent/internal/storage"
	"github.com/google/uuid"
)

// Run saves a small fixture set into b and checks filtering, ordering and
// paging. Queries are namespaced per run so persistent databases can be reused.
func Run(t *testing.T, b storage.Backend) {
	t.Helper()
	ctx := context.Background()

	suffix := uuid.NewString()[:8]
	goQuery := "golang " + suffix
	rustQuery := "rust " + suffix

	now := time.Now().UTC().Truncate(time.Millisecond)
	old := now.Add(-2 * time.Hour)

	fixtures := []*storage.Record{
		{ID: uuid.NewString(), Query: goQuery, Rank: 2, URL: "https://pkg.go.dev/", Title: "Go Packages", Lang: "en", Strategy: "direct", CreatedAt: now},
		{ID: uuid.NewString(), Query: goQuery, Rank: 1, URL: "https://go.dev/", Title: "The Go Programming Language", Description: "Go is an open source language, \"simple\", reliable", Lang: "en", Region: "US", Strategy: "direct", CreatedAt: now},
		{ID: uuid.NewString(), Query: goQuery, Rank: 1, Offset: 10, URL: "https://go.dev/", Lang: "en", Strategy: "render", CreatedAt: old},
		{ID: uuid.NewString(), Query: rustQuery, Rank: 1, URL: "https://www.rust-lang.org/", Strategy: "direct", CreatedAt: now},
	}
	for _, r := range fixtures {
		if err := b.Save(ctx, r); err != nil {
			t.Fatalf("Save(%s): %v", r.URL, err)
		}
	}

	query := func(f storage.Filter) []*storage.Record {
		t.Helper()
		got, err := b.Query(ctx, f)
		if err != nil {
			t.Fatalf("Query(%+v): %v", f, err)
		}
		return got
	}

	got := query(storage.Filter{Query: goQuery})
	if len(got) != 3 {
		t.Fatalf("expected 3 records for %q, got %d", goQuery, len(got))
	}
	if got[0].URL != "https://go.dev/" || got[1].URL != "https://pkg.go.dev/" || !got[2].CreatedAt.Equal(old) {
		t.Errorf("expected newest first then by rank, got %s, %s, %s", got[0].URL, got[1].URL, got[2].URL)
	}

	want := fixtures[1]
	first := got[0]
	if first.ID != want.ID || first.Query != want.Query || first.Rank != want.Rank ||
		first.Offset != want.Offset || first.Title != want.Title || first.Description != want.Description ||
		first.Lang != want.Lang || first.Region != want.Region || first.Strategy != want.Strategy {
		t.Errorf("round trip mismatch:\nwant %+v\ngot  %+v", want, first)
	}
	if !first.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("expected CreatedAt %v, got %v", want.CreatedAt, first.CreatedAt)
	}

	if got := query(storage.Filter{Query: goQuery, URL: "https://go.dev/"}); len(got) != 2 {
		t.Errorf("expected 2 records by URL, got %d", len(got))
	}
	if got := query(storage.Filter{Query: goQuery, Strategy: "render"}); len(got) != 1 || got[0].Offset != 10 {
		t.Errorf("expected the render record, got %d records", len(got))
	}

	since := now.Add(-time.Hour)
	if got := query(storage.Filter{Query: goQuery, Since: &since}); len(got) != 2 {
		t.Errorf("expected 2 records since %v, got %d", since, len(got))
	}

	paged := query(storage.Filter{Query: goQuery, Limit: 1, Offset: 1})
	if len(paged) != 1 || paged[0].URL != "https://pkg.go.dev/" {
		t.Errorf("expected second record only, got %d records", len(paged))
	}
	if got := query(storage.Filter{Query: goQuery, Offset: 2}); len(got) != 1 {
		t.Errorf("expected offset without limit to return the rest, got %d", len(got))
	}

	if got := query(storage.Filter{Query: "nothing " + suffix}); len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}
