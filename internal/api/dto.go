package api

import (
	"encoding/json"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mindmark/internal/index"
	"github.com/starford/mindmark/internal/mapservice"
	"github.com/starford/mindmark/internal/models"
)

// CreateMapRequest is the request body for creating a map. Exactly one of
// Content (Markdown) and Tree (a NodeTree document) must be set.
type CreateMapRequest struct {
	Path    string          `json:"path" example:"plans/q1.md"`
	Content string          `json:"content,omitempty" example:"# Q1\n## Goals"`
	Tree    json.RawMessage `json:"tree,omitempty"`
}

// Validate checks the request shape.
func (r CreateMapRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
		validation.Field(&r.Content, validation.Required.When(len(r.Tree) == 0).Error("content or tree is required")),
		validation.Field(&r.Tree, validation.Empty.When(r.Content != "").Error("content and tree are mutually exclusive")),
	)
}

// UpdateMapRequest is the request body for replacing a map.
type UpdateMapRequest struct {
	Content string          `json:"content,omitempty" example:"# Q1\n## Goals\n- ship"`
	Tree    json.RawMessage `json:"tree,omitempty"`
}

// Validate checks the request shape.
func (r UpdateMapRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Required.When(len(r.Tree) == 0).Error("content or tree is required")),
		validation.Field(&r.Tree, validation.Empty.When(r.Content != "").Error("content and tree are mutually exclusive")),
	)
}

// MoveMapRequest renames a map.
type MoveMapRequest struct {
	From string `json:"from" example:"drafts/q1.md"`
	To   string `json:"to" example:"plans/q1.md"`
}

// Validate checks the request shape.
func (r MoveMapRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.From, validation.Required),
		validation.Field(&r.To, validation.Required),
	)
}

// ConvertRequest converts Input from one format to another. Markdown input
// is a JSON string; ast and nodetree input are JSON objects.
type ConvertRequest struct {
	From  string          `json:"from" example:"markdown"`
	To    string          `json:"to" example:"nodetree"`
	Input json.RawMessage `json:"input"`
}

// Validate checks the request shape.
func (r ConvertRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.To, validation.Required),
		validation.Field(&r.Input, validation.Required),
	)
}

// DocumentRequest carries one document in a given format for validation,
// statistics and round-trip checks.
type DocumentRequest struct {
	Format string          `json:"format" example:"markdown"`
	Input  json.RawMessage `json:"input"`
}

// Validate checks the request shape.
func (r DocumentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Input, validation.Required),
	)
}

// ConvertResponse wraps a conversion result.
type ConvertResponse struct {
	Format string `json:"format"`
	Output any    `json:"output"`
}

// ValidateResponse reports whether a document is structurally sound.
type ValidateResponse struct {
	Valid  bool `json:"valid"`
	Errors any  `json:"errors,omitempty"`
}

// MapDetail is the full map response type (aliased from the domain layer).
type MapDetail = mapservice.MapDetail

// MapListResponse wraps paginated map listings.
type MapListResponse struct {
	Maps  []models.MapSummary `json:"maps"`
	Total int                 `json:"total" example:"42"`
}

// SearchResponse wraps map search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results"`
}

// NodeSearchResponse wraps node search results.
type NodeSearchResponse struct {
	Results []index.NodeHit `json:"results"`
}
