package index

import "github.com/starford/mindmark/internal/models"

// MapIndex defines the index operations the rest of the application uses.
type MapIndex interface {
	UpsertMap(e Entry) error
	DeleteMap(path string) error
	GetChecksum(path string) (string, error)
	GetMap(path string) (*models.MapSummary, error)
	ListMaps(limit, offset int, tag, sort string) ([]models.MapSummary, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	SearchNodes(query string, limit int) ([]NodeHit, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies MapIndex at compile time.
var _ MapIndex = (*DB)(nil)
