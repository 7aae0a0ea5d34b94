package util

import (
	"math"
	"strconv"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxPage keeps (page-1)*size and offset+size inside int.
	MaxPage = math.MaxInt/MaxPageSize - 1
)

// Page is an offset window; a zero Limit means every record.
type Page struct {
	Offset int
	Limit  int
}

func (p Page) All() bool { return p.Limit <= 0 }

func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// Calculate clamps page and size and returns the matching window.
func Calculate(page, size int) (int, Page) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return page, Page{Offset: (page - 1) * size, Limit: size}
}

// Meta is the pagination block of a list response.
type Meta struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

func NewMeta(page int, p Page, total int64) Meta {
	return Meta{
		Page:       page,
		Size:       p.Limit,
		Total:      total,
		TotalPages: (total + int64(p.Limit) - 1) / int64(p.Limit),
		HasPrev:    page > 1,
		HasNext:    int64(p.Offset+p.Limit) < total,
	}
}
