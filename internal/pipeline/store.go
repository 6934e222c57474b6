package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/FranksOps/serpent/internal/storage"
	"github.com/FranksOps/serpent/internal/storage/csvbackend"
	"github.com/FranksOps/serpent/internal/storage/jsonbackend"
	"github.com/FranksOps/serpent/internal/storage/postgres"
	"github.com/FranksOps/serpent/internal/storage/sqlite"
)

// OpenStore opens the backend a DSN names:
//
//	sqlite:PATH
//	postgres://... or postgresql://...
//	csv:PATH
//	json:PATH
func OpenStore(ctx context.Context, dsn string) (storage.Backend, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.New(ctx, dsn)
	case strings.HasPrefix(dsn, "sqlite:"):
		return sqlite.New(pathOf(dsn, "sqlite:"))
	case strings.HasPrefix(dsn, "csv:"):
		return csvbackend.New(pathOf(dsn, "csv:"))
	case strings.HasPrefix(dsn, "json:"):
		return jsonbackend.New(pathOf(dsn, "json:"))
	default:
		return nil, fmt.Errorf("pipeline: unsupported store %q", dsn)
	}
}

func pathOf(dsn, prefix string) string {
	return strings.TrimPrefix(strings.TrimPrefix(dsn, prefix), "//")
}
