package service

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ListParams are the filters and paging of a list request. Zero Page and
// Limit select the defaults.
type ListParams struct {
	Search string
	Status string
	UserID string
	IDs    []string
	Page   int
	Limit  int
}

type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int64 `json:"pages"`
}

// NewPagination reports the page as requested, even past the last one.
func NewPagination(total int64, page, limit int) Pagination {
	pages := int64(0)
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Pagination{Total: total, Page: page, Limit: limit, Pages: pages}
}

func (s *Service) paging(p ListParams) (page, limit int, err error) {
	page, limit = p.Page, p.Limit
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = s.opts.DefaultPageSize
	}
	if page < 1 {
		return 0, 0, &InputError{Param: "page", Value: strconv.Itoa(p.Page), Reason: "must be at least 1"}
	}
	if limit < 1 || limit > s.opts.MaxPageSize {
		return 0, 0, &InputError{
			Param:  "limit",
			Value:  strconv.Itoa(p.Limit),
			Reason: "must be between 1 and " + strconv.Itoa(s.opts.MaxPageSize),
		}
	}
	return page, limit, nil
}

// pageOffset is the number of records before page. ok is false when the
// offset does not fit in an int64; such a page lies past any collection.
func pageOffset(page, limit int) (offset int64, ok bool) {
	if int64(page-1) > math.MaxInt64/int64(limit) {
		return 0, false
	}
	return int64(page-1) * int64(limit), true
}

// PositiveInt parses an explicit page or limit parameter.
func PositiveInt(param, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &InputError{Param: param, Value: raw, Reason: "must be an integer"}
	}
	if n < 1 {
		return 0, &InputError{Param: param, Value: raw, Reason: "must be at least 1"}
	}
	return n, nil
}

func validateID(param, id string) error {
	if !idPattern.MatchString(id) {
		return &InputError{Param: param, Value: id, Reason: "must be 1-128 letters, digits, '-' or '_'"}
	}
	return nil
}

// statusParam checks a status filter against the entity's closed set.
// Empty means no filter.
func statusParam[T ~string](raw string, allowed []T) (string, error) {
	if raw == "" {
		return "", nil
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		if string(a) == raw {
			return raw, nil
		}
		names[i] = string(a)
	}
	return "", &InputError{Param: "status", Value: raw, Reason: "must be one of " + strings.Join(names, ", ")}
}
