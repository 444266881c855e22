package controllers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"radhiant_ops/internal/jobs"
	"radhiant_ops/internal/models"
	"radhiant_ops/internal/reporting"
)

// reportFilter reads start_date, end_date, role, truck_id, user_id and
// include_open from the query string.
func (h *Handler) reportFilter(c *gin.Context) (reporting.Filter, error) {
	f := reporting.Filter{
		Role:    models.Role(c.Query("role")),
		TruckID: c.Query("truck_id"),
		UserID:  c.Query("user_id"),
	}
	if v := c.Query("start_date"); v != "" {
		t, err := h.Reports.ParseDate(v)
		if err != nil {
			return f, fmt.Errorf("invalid start_date: %w", err)
		}
		f.Start = t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := h.Reports.ParseDate(v)
		if err != nil {
			return f, fmt.Errorf("invalid end_date: %w", err)
		}
		f.End = t
	}
	if v := c.Query("include_open"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("invalid include_open: %w", err)
		}
		f.IncludeOpen = b
	}
	if !f.Start.IsZero() && !f.End.IsZero() && f.End.Before(f.Start) {
		return f, fmt.Errorf("end_date is before start_date")
	}
	return f, nil
}

func (h *Handler) Report(c *gin.Context) {
	f, err := h.reportFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rows, err := h.Reports.Query(c.Request.Context(), f)
	if err != nil {
		h.log().WithError(err).Error("report query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not build report"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": rows, "count": len(rows)})
}

// ExportReport streams the same rows as Report as a CSV attachment.
func (h *Handler) ExportReport(c *gin.Context) {
	f, err := h.reportFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rows, err := h.Reports.Query(c.Request.Context(), f)
	if err != nil {
		h.log().WithError(err).Error("report export query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not build report"})
		return
	}

	var buf bytes.Buffer
	if err := reporting.WriteCSV(&buf, rows, h.Reports.Location()); err != nil {
		h.log().WithError(err).Error("report export encoding failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not encode report"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, reporting.Filename(h.now())))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// RunSweep triggers the auto sign-out sweep outside its schedule.
func (h *Handler) RunSweep(c *gin.Context) {
	if _, err := h.Jobs.RunNow(c.Request.Context(), jobs.AutoSignOutJobName); err != nil {
		if errors.Is(err, jobs.ErrLocked) {
			c.JSON(http.StatusConflict, gin.H{"error": "sweep already running"})
			return
		}
		h.log().WithError(err).Error("manual sweep failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": h.Sweep.LastReport()})
}
