package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/A78Z/pmn-marches-publics/internal/ports"
)

type namedParser string

func (n namedParser) Name() string { return string(n) }
func (namedParser) ParseListPage(context.Context, ports.Page) ParsedPage {
	return ParsedPage{}
}
func (namedParser) HasNextPage(context.Context, ports.Page) bool  { return false }
func (namedParser) GoToNextPage(context.Context, ports.Page) error { return nil }

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(namedParser("marchespublics"))

	p, err := reg.Resolve("marchespublics")
	require.NoError(t, err)
	assert.Equal(t, "marchespublics", p.Name())

	_, err = reg.Resolve("unknown")
	assert.ErrorContains(t, err, "unknown")

	var zero Registry
	zero.Register(namedParser("late"))
	_, err = zero.Resolve("late")
	assert.NoError(t, err)
}
