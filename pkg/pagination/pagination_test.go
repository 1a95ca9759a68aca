package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow(t *testing.T) {
	p := Params{Page: 2, Limit: 10}

	start, end := p.Window(25)
	assert.Equal(t, 10, start)
	assert.Equal(t, 20, end)

	start, end = p.Window(12)
	assert.Equal(t, 10, start)
	assert.Equal(t, 12, end)

	start, end = p.Window(5)
	assert.Equal(t, 5, start)
	assert.Equal(t, 5, end)
}

func TestMetaFor(t *testing.T) {
	p := Params{Page: 1, Limit: 20}

	meta := p.MetaFor(45)
	assert.Equal(t, 3, meta.TotalPages)
	assert.Equal(t, 45, meta.Total)

	meta = p.MetaFor(0)
	assert.Equal(t, 1, meta.TotalPages)
}
