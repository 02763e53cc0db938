package utils

import (
	"errors"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps Offset well inside int range for any page size.
	MaxPage = 1_000_000
)

// Pagination is the parsed page request.
type Pagination struct {
	Page     int
	PageSize int
}

// Offset returns the number of rows to skip.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// ParsePagination reads page and page_size from the query string.
// limit is accepted as an alias of page_size. Bad values fall back to defaults.
func ParsePagination(c *gin.Context) Pagination {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	switch {
	case errors.Is(err, strconv.ErrRange) && page > 0, page > MaxPage:
		page = MaxPage
	case err != nil || page < 1:
		page = 1
	}

	raw := c.Query("page_size")
	if raw == "" {
		raw = c.Query("limit")
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	return Pagination{Page: page, PageSize: size}
}

// PageMeta is the pagination block of a list response.
type PageMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// Meta builds the response block for total rows.
func (p Pagination) Meta(total int64) PageMeta {
	return PageMeta{
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(p.PageSize))),
	}
}
