package service

import "github.com/godilite/rfm-insights/internal/segment"

type KPIs struct {
	Total            int64
	AvgRating        float64
	UnsatisfiedCount int64
}

type QueryRow struct {
	Key   string
	Value float64
}

type QueryResult struct {
	Name string
	Kind QueryKind
	Rows []QueryRow
}

// Alert is a fired alert rule with its rendered message.
type Alert struct {
	ID        string
	Title     string
	Message   string
	Value     float64
	Threshold float64
}

type SegmentRow = segment.SegmentCount
