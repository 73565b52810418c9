// Package mapservice coordinates the vault, the index and the converters
// for every map operation exposed over HTTP and MCP.
package mapservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/starford/mindmark/internal/apperr"
	"github.com/starford/mindmark/internal/ast"
	"github.com/starford/mindmark/internal/checksum"
	"github.com/starford/mindmark/internal/converter"
	"github.com/starford/mindmark/internal/index"
	"github.com/starford/mindmark/internal/models"
	"github.com/starford/mindmark/internal/parser"
	"github.com/starford/mindmark/internal/preview"
	"github.com/starford/mindmark/internal/storage"
)

// MapDetail is the full representation of a map file.
type MapDetail struct {
	Path        string          `json:"path"`
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	Checksum    string          `json:"checksum"`
	Tags        []string        `json:"tags"`
	Frontmatter map[string]any  `json:"frontmatter,omitempty"`
	Stats       converter.Stats `json:"stats"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Publisher receives map change notifications.
type Publisher interface {
	PublishMapEvent(kind, path string)
}

// Service coordinates storage, index and converter operations.
type Service struct {
	store  storage.Provider
	db     *index.DB
	syncer *index.Syncer
	conv   *converter.Manager
	events Publisher
}

// NewService creates a map service. events may be nil.
func NewService(store storage.Provider, db *index.DB, syncer *index.Syncer, conv *converter.Manager, events Publisher) *Service {
	return &Service{store: store, db: db, syncer: syncer, conv: conv, events: events}
}

// Converter exposes the façade used by the service.
func (s *Service) Converter() *converter.Manager { return s.conv }

// NormalizePath cleans a vault-relative map path and adds the map extension
// when missing.
func NormalizePath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" || p == "." {
		return "", fmt.Errorf("empty map path: %w", apperr.ErrInvalidInput)
	}
	if !strings.HasSuffix(p, models.MapExt) {
		p += models.MapExt
	}
	return p, nil
}

func (s *Service) read(p string) (string, []byte, error) {
	p, err := NormalizePath(p)
	if err != nil {
		return "", nil, err
	}
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, apperr.ErrNotFound
		}
		return "", nil, err
	}
	return p, data, nil
}

// GetMap reads a map from the vault.
func (s *Service) GetMap(_ context.Context, p string) (*MapDetail, error) {
	p, data, err := s.read(p)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(p, data)
}

// GetMapAST parses a map body into an ast tree.
func (s *Service) GetMapAST(_ context.Context, p string) (*ast.Node, error) {
	_, data, err := s.read(p)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	return s.conv.MdToAst(res.Body)
}

// GetMapTree projects a map to a NodeTree. The frontmatter title and author,
// when present, replace the configured meta name and author.
func (s *Service) GetMapTree(_ context.Context, p string) (*converter.NodeTree, error) {
	_, data, err := s.read(p)
	if err != nil {
		return nil, err
	}
	return s.treeOf(data)
}

func (s *Service) treeOf(data []byte) (*converter.NodeTree, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	tree, err := s.conv.MdToNodeTree(res.Body)
	if err != nil {
		return nil, err
	}
	if res.Title != "" {
		tree.Meta.Name = res.Title
	}
	if res.Author != "" {
		tree.Meta.Author = res.Author
	}
	return tree, nil
}

// CreateMap writes a new map and indexes it.
func (s *Service) CreateMap(_ context.Context, p string, content []byte) (*MapDetail, error) {
	p, err := NormalizePath(p)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Read(p); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	return s.write(p, content, index.ChangeCreated)
}

// CreateMapFromTree renders tree to Markdown and creates a map from it. A
// meta author other than the configured one is kept as frontmatter.
func (s *Service) CreateMapFromTree(ctx context.Context, p string, tree *converter.NodeTree) (*MapDetail, error) {
	if tree.Empty() {
		return nil, fmt.Errorf("node tree has no data: %w", apperr.ErrInvalidInput)
	}
	body, err := s.conv.NodeTreeToMd(tree)
	if err != nil {
		return nil, err
	}
	var fm map[string]any
	if a := tree.Meta.Author; a != "" && a != converter.DefaultConfig().Meta.Author {
		fm = map[string]any{"author": a}
	}
	content, err := parser.Compose(fm, body+"\n")
	if err != nil {
		return nil, err
	}
	return s.CreateMap(ctx, p, content)
}

// UpdateMap replaces a map's content. A non-empty ifMatch must name the
// current checksum, bare or as an entity tag.
func (s *Service) UpdateMap(_ context.Context, p string, content []byte, ifMatch string) (*MapDetail, error) {
	p, existing, err := s.read(p)
	if err != nil {
		return nil, err
	}
	if !checksum.Matches(existing, ifMatch) {
		return nil, apperr.ErrConflict
	}
	return s.write(p, content, index.ChangeUpdated)
}

// UpdateMapFromTree replaces a map's body with the Markdown rendering of
// tree, keeping the existing frontmatter.
func (s *Service) UpdateMapFromTree(_ context.Context, p string, tree *converter.NodeTree, ifMatch string) (*MapDetail, error) {
	if tree.Empty() {
		return nil, fmt.Errorf("node tree has no data: %w", apperr.ErrInvalidInput)
	}
	p, existing, err := s.read(p)
	if err != nil {
		return nil, err
	}
	if !checksum.Matches(existing, ifMatch) {
		return nil, apperr.ErrConflict
	}
	res, err := parser.Parse(existing)
	if err != nil {
		return nil, err
	}
	body, err := s.conv.NodeTreeToMd(tree)
	if err != nil {
		return nil, err
	}
	content, err := parser.Compose(res.Frontmatter, body+"\n")
	if err != nil {
		return nil, err
	}
	return s.write(p, content, index.ChangeUpdated)
}

func (s *Service) write(p string, content []byte, kind string) (*MapDetail, error) {
	if err := s.store.Write(p, content); err != nil {
		return nil, err
	}
	if err := s.syncer.IndexFile(p, content); err != nil {
		return nil, err
	}
	s.publish(kind, p)
	return s.buildDetail(p, content)
}

// DeleteMap removes a map from the vault and the index.
func (s *Service) DeleteMap(_ context.Context, p string) error {
	p, err := NormalizePath(p)
	if err != nil {
		return err
	}
	if err := s.store.Delete(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	if err := s.syncer.RemoveFile(p); err != nil {
		return err
	}
	s.publish(index.ChangeDeleted, p)
	return nil
}

// MoveMap renames a map within the vault.
func (s *Service) MoveMap(_ context.Context, from, to string) (*MapDetail, error) {
	from, data, err := s.read(from)
	if err != nil {
		return nil, err
	}
	to, err = NormalizePath(to)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Read(to); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Move(from, to); err != nil {
		return nil, err
	}
	if err := s.syncer.RemoveFile(from); err != nil {
		return nil, err
	}
	if err := s.syncer.IndexFile(to, data); err != nil {
		return nil, err
	}
	s.publish(index.ChangeDeleted, from)
	s.publish(index.ChangeCreated, to)
	return s.buildDetail(to, data)
}

// ListMaps returns paginated map summaries with an optional tag filter.
func (s *Service) ListMaps(_ context.Context, limit, offset int, tag, sort string) ([]models.MapSummary, int, error) {
	return s.db.ListMaps(limit, offset, tag, sort)
}

// Search runs a map-level full-text search.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// SearchNodes searches node topics and notes across all maps.
func (s *Service) SearchNodes(_ context.Context, query string, limit int) ([]index.NodeHit, error) {
	return s.db.SearchNodes(query, limit)
}

// Preview renders a map body to HTML.
func (s *Service) Preview(_ context.Context, p string) (string, error) {
	_, data, err := s.read(p)
	if err != nil {
		return "", err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return "", err
	}
	return preview.HTML(res.Body)
}

func (s *Service) publish(kind, p string) {
	if s.events != nil {
		s.events.PublishMapEvent(kind, p)
	}
}

func (s *Service) buildDetail(p string, data []byte) (*MapDetail, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	st, err := s.conv.GetStats(res.Body, converter.FormatMarkdown)
	if err != nil {
		return nil, err
	}
	return &MapDetail{
		Path:        p,
		Title:       res.Title,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Tags:        nonNilSlice(res.Tags),
		Frontmatter: res.Frontmatter,
		Stats:       st,
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
