package types

import "time"

// Record is a decoded registry entry. Fields holds every declared field:
// string fields as string, number fields as float64.
type Record struct {
	ID        string         `json:"id"`
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (r Record) String(field string) string {
	s, _ := r.Fields[field].(string)
	return s
}

func (r Record) Number(field string) float64 {
	n, _ := r.Fields[field].(float64)
	return n
}

// SummaryBucket is one group of the dashboard summary.
type SummaryBucket struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

const EmptyBucket = "(sin dato)"
