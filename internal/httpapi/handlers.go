package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/godilite/rfm-insights/internal/service"
	"github.com/godilite/rfm-insights/internal/store"
)

// Dashboard is the service the HTTP handlers expose.
type Dashboard interface {
	KPIs(ctx context.Context) (service.KPIs, error)
	Queries() []string
	RunQuery(ctx context.Context, name string) (service.QueryResult, error)
	Segments(ctx context.Context) ([]service.SegmentRow, error)
	CheckAlerts(ctx context.Context) ([]service.Alert, error)
}

type kpisResponse struct {
	Total            int64   `json:"total"`
	AvgRating        float64 `json:"avg_rating"`
	UnsatisfiedCount int64   `json:"unsatisfied_count"`
}

type queryRow struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

type queryResponse struct {
	Name string     `json:"name"`
	Kind string     `json:"kind"`
	Rows []queryRow `json:"rows"`
}

type segmentRow struct {
	Segment string `json:"segment"`
	Count   int64  `json:"count"`
}

type segmentsResponse struct {
	Segments []segmentRow `json:"segments"`
	Total    int64        `json:"total"`
}

type alertResponse struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

type handlers struct {
	dashboard Dashboard
}

func statusFor(ctx context.Context, err error) int {
	switch {
	case errors.Is(err, service.ErrUnknownQuery):
		return http.StatusNotFound
	case ctx.Err() != nil, errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	case errors.Is(err, store.ErrRetrieval):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *handlers) fail(c *gin.Context, err error) {
	status := statusFor(c.Request.Context(), err)
	_ = c.Error(err)

	msg := http.StatusText(status)
	if status == http.StatusNotFound {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) kpis(c *gin.Context) {
	k, err := h.dashboard.KPIs(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, kpisResponse{
		Total:            k.Total,
		AvgRating:        k.AvgRating,
		UnsatisfiedCount: k.UnsatisfiedCount,
	})
}

func (h *handlers) queries(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"queries": h.dashboard.Queries()})
}

func (h *handlers) runQuery(c *gin.Context) {
	res, err := h.dashboard.RunQuery(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	rows := make([]queryRow, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = queryRow{Key: r.Key, Value: r.Value}
	}
	c.JSON(http.StatusOK, queryResponse{Name: res.Name, Kind: string(res.Kind), Rows: rows})
}

func (h *handlers) segments(c *gin.Context) {
	segs, err := h.dashboard.Segments(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := segmentsResponse{Segments: make([]segmentRow, len(segs))}
	for i, s := range segs {
		resp.Segments[i] = segmentRow{Segment: string(s.Segment), Count: s.Count}
		resp.Total += s.Count
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) alerts(c *gin.Context) {
	alerts, err := h.dashboard.CheckAlerts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]alertResponse, len(alerts))
	for i, a := range alerts {
		out[i] = alertResponse{ID: a.ID, Title: a.Title, Message: a.Message, Value: a.Value, Threshold: a.Threshold}
	}
	c.JSON(http.StatusOK, gin.H{"alerts": out})
}
