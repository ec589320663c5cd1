// FilePath: internal/models/api.models.filters.go
package models

// AlertFilters defines the available filter, pagination and sort options
// for alert listings. Decoded from query parameters with gorilla/schema.
type AlertFilters struct {
	Status    string `schema:"status"`
	Limit     int    `schema:"limit"`
	Skip      int    `schema:"skip"`
	SortBy    string `schema:"sortBy"`
	SortOrder string `schema:"sortOrder"`
}

// Pagination describes the window of a list response.
type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Skip    int   `json:"skip"`
	HasMore bool  `json:"has_more"`
}
