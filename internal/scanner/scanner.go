package scanner

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/A78Z/pmn-marches-publics/internal/domain"
	"github.com/A78Z/pmn-marches-publics/internal/ports"
)

// StructureDiagnostic records which layout markers were found on a page that
// yielded nothing, so selector drift can be spotted in the logs.
type StructureDiagnostic struct {
	Present []string
	Absent  []string
}

// ParsedPage is the outcome of parsing one listing page.
type ParsedPage struct {
	Tenders []domain.ScrapedTender
	// Items is the number of candidate list items found before extraction.
	Items int
	// Skipped counts items that were dropped, including recovered faults.
	Skipped    int
	Diagnostic *StructureDiagnostic
}

// Parser captures a single site strategy (marchespublics.sn, etc.).
type Parser interface {
	Name() string
	ParseListPage(ctx context.Context, page ports.Page) ParsedPage
	HasNextPage(ctx context.Context, page ports.Page) bool
	GoToNextPage(ctx context.Context, page ports.Page) error
}

// Registry keeps a mapping from parser names to their implementations.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: map[string]Parser{}}
}

// Register adds or replaces a parser implementation.
func (r *Registry) Register(p Parser) {
	if r.parsers == nil {
		r.parsers = map[string]Parser{}
	}
	r.parsers[p.Name()] = p
}

// Resolve returns a parser by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Parser, error) {
	if p, ok := r.parsers[name]; ok {
		return p, nil
	}
	return nil, eris.Errorf("parser %s is not registered", name)
}
