package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

// Pagination limits shared by all list endpoints
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// ParseJSON decodes JSON from the request body into the destination
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes a validation error on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteValidationError(w, err.Error(), nil)
		return false
	}
	return true
}

// ParsePathID extracts and parses a positive integer path parameter
func ParsePathID(r *http.Request, key string) (int64, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return 0, fmt.Errorf("missing path parameter: %s", key)
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil || val < 1 {
		return 0, fmt.Errorf("invalid id: %s", str)
	}
	return val, nil
}

// ParsePathIDOrError extracts an id path parameter and writes a
// validation error on failure
func ParsePathIDOrError(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	val, err := ParsePathID(r, key)
	if err != nil {
		WriteValidationError(w, err.Error(), nil)
		return 0, false
	}
	return val, true
}

// PaginationOptions are the parsed list-query parameters
type PaginationOptions struct {
	Page   int
	Limit  int
	SortBy string
	Order  string
	Search string
	Activo *bool
}

// Offset returns the row offset for the current page
func (o PaginationOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// ParsePagination parses page/limit/sortBy/order/search/activo query
// parameters, clamping page and limit and whitelisting sort fields
func ParsePagination(r *http.Request, validSortFields []string) PaginationOptions {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = DefaultPage
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	sortBy := q.Get("sortBy")
	valid := false
	for _, f := range validSortFields {
		if f == sortBy {
			valid = true
			break
		}
	}
	if !valid {
		sortBy = "createdAt"
	}

	order := strings.ToLower(q.Get("order"))
	if order != "asc" && order != "desc" {
		order = "desc"
	}

	opts := PaginationOptions{
		Page:   page,
		Limit:  limit,
		SortBy: sortBy,
		Order:  order,
		Search: strings.TrimSpace(q.Get("search")),
	}

	if activo := q.Get("activo"); activo != "" {
		b := activo == "true"
		opts.Activo = &b
	}

	return opts
}
