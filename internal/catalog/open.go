package catalog

import (
	"context"
	"fmt"
	"log"

	"morentube/internal/config"
)

// Open builds the store selected by CATALOG_BACKEND.
func Open(ctx context.Context, cfg config.Config) (Store, func(), error) {
	noop := func() {}
	switch cfg.CatalogBackend {
	case "edgeconfig":
		log.Printf("catalog: edge config %s", cfg.EdgeConfigID)
		return NewEdgeConfig(cfg.EdgeConfigID, cfg.EdgeConfigToken, cfg.VercelAPIToken, cfg.VercelTeamID), noop, nil
	case "libsql":
		s, err := OpenLibsql(ctx, cfg.LibsqlURL, cfg.LibsqlAuthToken)
		if err != nil {
			return nil, noop, err
		}
		log.Printf("catalog: libsql %s", cfg.LibsqlURL)
		return s, func() { _ = s.Close() }, nil
	case "memory":
		log.Printf("catalog: in-memory")
		return NewMemory(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown CATALOG_BACKEND %q", cfg.CatalogBackend)
	}
}
