package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	MinLimit     = 1
)

// Params holds validated pagination parameters.
type Params struct {
	Page  int
	Limit int
}

// Meta describes the page that was returned.
type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Parse extracts and validates page/limit from query parameters.
func Parse(c *gin.Context) Params {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))

	if page < 1 {
		page = DefaultPage
	}
	if limit < MinLimit {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{Page: page, Limit: limit}
}

// Offset is the start index of the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Window clips the page bounds to a collection of n elements. Lists served
// from the document store are paged in memory, not by the database.
func (p Params) Window(n int) (start, end int) {
	start = p.Offset()
	if start > n {
		start = n
	}
	end = start + p.Limit
	if end > n {
		end = n
	}
	return start, end
}

// MetaFor fills page metadata for a collection of n elements.
func (p Params) MetaFor(n int) Meta {
	pages := (n + p.Limit - 1) / p.Limit
	if pages < 1 {
		pages = 1
	}
	return Meta{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      n,
		TotalPages: pages,
	}
}
