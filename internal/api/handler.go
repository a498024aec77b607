package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"flightdeals/internal/flight"
	"flightdeals/internal/job"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{
		service: s,
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.GET("/healthz", h.HealthHandler)

	api := router.Group("/api")
	api.POST("/fetch/source/:source", h.FetchSourceHandler)
	api.POST("/fetch/status", h.FetchStatusHandler)
	api.POST("/fetch/:jobKey/cancel", h.CancelHandler)
	api.POST("/fetch/:jobKey/retry", h.RetryHandler)
	api.POST("/search", h.SearchHandler)
	api.DELETE("/admin/clear", h.ClearHandler)
}

// jobView is the wire shape of one source's job status.
type jobView struct {
	JobID         string     `json:"jobId,omitempty"`
	FetchID       string     `json:"fetchId"`
	Status        job.Status `json:"status"`
	ResultCount   *int       `json:"resultCount,omitempty"`
	Attempts      int        `json:"attempts,omitempty"`
	LastFetchedAt *time.Time `json:"lastFetchedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	Error         string     `json:"error,omitempty"`
	Cancelled     bool       `json:"cancelled,omitempty"`
}

func newJobView(rec *job.FetchJob) jobView {
	v := jobView{
		JobID:         rec.JobID,
		FetchID:       rec.Key,
		Status:        rec.Status,
		Attempts:      rec.Attempts,
		LastFetchedAt: rec.LastRunAt,
		CompletedAt:   rec.CompletedAt,
		Error:         rec.Error,
		Cancelled:     rec.Cancelled,
	}
	if rec.Status == job.StatusCompleted {
		n := rec.ResultCount
		v.ResultCount = &n
	}
	return v
}

func bindSearch(c *gin.Context) (flight.SearchParams, bool) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid request format: %v", err),
			"code":  ErrorCodeValidation,
		})
		return flight.SearchParams{}, false
	}

	params, err := req.params()
	if err != nil {
		sendError(c, err)
		return flight.SearchParams{}, false
	}
	return params, true
}

func (h *Handler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) FetchSourceHandler(c *gin.Context) {
	params, ok := bindSearch(c)
	if !ok {
		return
	}

	rec, err := h.service.SubmitFetch(c.Request.Context(), c.Param("source"), params)
	if err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"fetchId": rec.Key,
		"status":  "processing",
		"job": gin.H{
			"jobId":  rec.JobID,
			"status": rec.Status,
		},
	})
}

func (h *Handler) FetchStatusHandler(c *gin.Context) {
	params, ok := bindSearch(c)
	if !ok {
		return
	}

	recs, err := h.service.FetchStatuses(c.Request.Context(), params)
	if err != nil {
		sendError(c, err)
		return
	}

	status := "completed"
	jobs := make(map[string]jobView, len(recs))
	for source, rec := range recs {
		jobs[source] = newJobView(rec)
		// a search never submitted has no job id and is not settled
		if !rec.Status.Terminal() {
			status = "processing"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"searchId": params.Key(),
		"status":   status,
		"jobs":     jobs,
	})
}

func (h *Handler) CancelHandler(c *gin.Context) {
	rec, err := h.service.CancelFetch(c.Request.Context(), c.Param("jobKey"))
	if err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"job":     newJobView(rec),
	})
}

func (h *Handler) RetryHandler(c *gin.Context) {
	rec, err := h.service.RetryFetch(c.Request.Context(), c.Param("jobKey"))
	if err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"fetchId": rec.Key,
		"jobId":   rec.JobID,
		"message": "Fetch resubmitted",
	})
}

func (h *Handler) SearchHandler(c *gin.Context) {
	params, ok := bindSearch(c)
	if !ok {
		return
	}

	results, err := h.service.QueryResults(c.Request.Context(), params)
	if err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"searchId": params.Key(),
		"results":  results,
	})
}

func (h *Handler) ClearHandler(c *gin.Context) {
	n, err := h.service.ClearAll(c.Request.Context())
	if err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"deleted": n,
		"message": fmt.Sprintf("Successfully cleared %d keys", n),
	})
}
