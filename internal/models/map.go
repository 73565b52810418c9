// Package models defines the vault-level domain types shared by storage,
// index and the map service.
package models

import "time"

// MapExt is the file extension of map documents in the vault.
const MapExt = ".md"

// MapMetadata is a lightweight description of a map file on disk.
type MapMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MapSummary is the indexed view of a map used by listings.
type MapSummary struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	Nodes     int       `json:"nodes"`
	Headings  int       `json:"headings"`
	Lists     int       `json:"lists"`
	MaxDepth  int       `json:"max_depth"`
	UpdatedAt time.Time `json:"updated_at"`
}
