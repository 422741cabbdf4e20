package domain

import (
	"encoding/base64"
	"strconv"
)

const (
	// DefaultPageSize applies when a list request names no page size.
	DefaultPageSize = 100
	// MaxPageSize caps the page size of any list request.
	MaxPageSize = 1000
)

// PageRequest carries list pagination: a page size and an opaque token.
type PageRequest struct {
	PageSize  int
	PageToken string
}

// Offset decodes the page token. Empty or malformed tokens start at 0.
func (p PageRequest) Offset() int {
	if p.PageToken == "" {
		return 0
	}
	raw, err := base64.RawURLEncoding.DecodeString(p.PageToken)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Limit returns the effective page size within [1, MaxPageSize].
func (p PageRequest) Limit() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	}
	return p.PageSize
}

// Page is one page of a list result.
type Page[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"nextPageToken,omitempty"`
	Total         int64  `json:"total"`
}

// NextPageToken returns the token for the page after [offset, offset+limit), or "" at the end.
func NextPageToken(offset, limit int, total int64) string {
	next := offset + limit
	if int64(next) >= total {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(next)))
}
