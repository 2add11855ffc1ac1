package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Run("valid params pass through", func(t *testing.T) {
		p := SearchParams{
			Search:        "jane",
			SortBy:        SortByEmail,
			SortDirection: SortAsc,
			Page:          3,
			PageSize:      25,
		}
		assert.Equal(t, p, p.Normalize())
	})

	t.Run("unknown sort field falls back to upload date", func(t *testing.T) {
		p := SearchParams{SortBy: "salary"}.Normalize()
		assert.Equal(t, SortByUploadDate, p.SortBy)
	})

	t.Run("unknown direction falls back to descending", func(t *testing.T) {
		p := SearchParams{SortDirection: "sideways"}.Normalize()
		assert.Equal(t, SortDesc, p.SortDirection)
	})

	t.Run("page and size get floors", func(t *testing.T) {
		p := SearchParams{Page: 0, PageSize: -5}.Normalize()
		assert.Equal(t, 1, p.Page)
		assert.Equal(t, 10, p.PageSize)
	})
}
