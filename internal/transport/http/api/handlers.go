package apihttp

import (
	"net/http"
	"regexp"
	"time"

	"github.com/frankgibbs/algolearn-orb/internal/report"
	"github.com/frankgibbs/algolearn-orb/internal/session"
	"github.com/frankgibbs/algolearn-orb/internal/store"
	"github.com/frankgibbs/algolearn-orb/internal/store/model"

	"github.com/gin-gonic/gin"
)

type handlers struct {
	store store.Store
	clock *session.Clock
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// sessionDate resolves the date query parameter, defaulting to today in
// the session timezone. Returns "" after writing the error response.
func (h *handlers) sessionDate(c *gin.Context) string {
	date := c.Query("date")
	if date == "" {
		return h.clock.SessionDate(time.Now())
	}
	if !datePattern.MatchString(date) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return ""
	}
	return date
}

func (h *handlers) listRanges(c *gin.Context) {
	date := h.sessionDate(c)
	if date == "" {
		return
	}
	ranges, err := h.store.Ranges().ListByDate(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "ranges": ranges})
}

func (h *handlers) listPositions(c *gin.Context) {
	if status := c.Query("status"); status != "" {
		st := model.PositionStatus(status)
		if st.Rank() < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be PENDING, OPEN or CLOSED"})
			return
		}
		positions, err := h.store.Positions().ListByStatus(c.Request.Context(), st)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"positions": positions})
		return
	}

	date := h.sessionDate(c)
	if date == "" {
		return
	}
	positions, err := h.store.Positions().ListByDate(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "positions": positions})
}

func (h *handlers) sessionReport(c *gin.Context) {
	date := h.sessionDate(c)
	if date == "" {
		return
	}
	closed, err := h.store.Positions().ListClosedByDate(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report.Build(date, closed))
}
