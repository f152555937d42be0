// Package query projects appointment snapshots for the dashboard. Nothing here
// mutates its input.
package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// Criteria selects appointments. Zero values match everything.
type Criteria struct {
	StartDate string         `json:"start_date,omitempty"`
	EndDate   string         `json:"end_date,omitempty"`
	Statuses  []model.Status `json:"statuses,omitempty"`
	Search    string         `json:"search,omitempty"`
	ServiceID string         `json:"service_id,omitempty"`
}

// Match reports whether a satisfies every predicate in c.
func (c Criteria) Match(a model.Appointment) bool {
	if c.StartDate != "" && a.Date < c.StartDate {
		return false
	}
	if c.EndDate != "" && a.Date > c.EndDate {
		return false
	}
	if len(c.Statuses) > 0 && !containsStatus(c.Statuses, a.Status) {
		return false
	}
	if c.ServiceID != "" && a.Service.ID != c.ServiceID {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(c.Search)); q != "" {
		fields := []string{a.Customer.Name, a.Customer.Phone, a.Customer.Email, a.Number}
		hit := false
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), q) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func containsStatus(set []model.Status, s model.Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Filter returns the matching appointments in their original order.
func Filter(appointments []model.Appointment, c Criteria) []model.Appointment {
	out := make([]model.Appointment, 0, len(appointments))
	for _, a := range appointments {
		if c.Match(a) {
			out = append(out, a)
		}
	}
	return out
}

type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Paginate returns the 1-based page of items. TotalPages is at least 1, and a
// page past the end is empty.
func Paginate[T any](items []T, pageSize, page int) (Page[T], error) {
	if pageSize < 1 {
		return Page[T]{}, fmt.Errorf("page size %d must be at least 1: %w", pageSize, model.ErrInvalidRequest)
	}
	if page < 1 {
		return Page[T]{}, fmt.Errorf("page %d must be at least 1: %w", page, model.ErrInvalidRequest)
	}
	n := len(items)
	totalPages := 1
	if n > 0 {
		totalPages = (n-1)/pageSize + 1
	}
	out := Page[T]{Page: page, PageSize: pageSize, Total: n, TotalPages: totalPages}
	// Compare pages before multiplying so huge page numbers cannot overflow.
	if page > totalPages {
		out.Items = []T{}
		return out, nil
	}
	start := (page - 1) * pageSize
	end := n
	if n-start > pageSize {
		end = start + pageSize
	}
	out.Items = make([]T, end-start)
	copy(out.Items, items[start:end])
	return out, nil
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ParseCriteria reads dashboard filters and paging from query parameters:
// start_date, end_date, status (repeated or comma separated), q, service_id,
// page and page_size.
func ParseCriteria(v url.Values) (Criteria, int, int, error) {
	c := Criteria{
		StartDate: strings.TrimSpace(v.Get("start_date")),
		EndDate:   strings.TrimSpace(v.Get("end_date")),
		Search:    strings.TrimSpace(v.Get("q")),
		ServiceID: strings.TrimSpace(v.Get("service_id")),
	}
	for _, d := range []string{c.StartDate, c.EndDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return Criteria{}, 0, 0, fmt.Errorf("date %q must be YYYY-MM-DD: %w", d, model.ErrInvalidRequest)
		}
	}
	for _, raw := range v["status"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" || part == "ALL" {
				continue
			}
			s := model.Status(part)
			if !s.Valid() {
				return Criteria{}, 0, 0, fmt.Errorf("unknown status %q: %w", part, model.ErrInvalidRequest)
			}
			if !containsStatus(c.Statuses, s) {
				c.Statuses = append(c.Statuses, s)
			}
		}
	}

	page, err := intParam(v, "page", 1)
	if err != nil {
		return Criteria{}, 0, 0, err
	}
	pageSize, err := intParam(v, "page_size", DefaultPageSize)
	if err != nil {
		return Criteria{}, 0, 0, err
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return c, page, pageSize, nil
}

func intParam(v url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s %q must be an integer: %w", key, raw, model.ErrInvalidRequest)
	}
	return n, nil
}
