package server

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/mealog/internal/meals"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	RealtimeEventSnapshot  = "snapshot"
	realtimeEventHeartbeat = "heartbeat"
	realtimeSourceBackend  = "mealog-backend"
)

// RealtimeMessage is the payload of one snapshot event.
type RealtimeMessage struct {
	Source    string       `json:"source"`
	Sequence  uint64       `json:"sequence"`
	Date      string       `json:"date,omitempty"`
	Meals     []meals.Meal `json:"meals"`
	Timestamp time.Time    `json:"timestamp"`
}

func newRealtimeMessage(snapshot meals.Snapshot, date string) RealtimeMessage {
	list := snapshot.Meals
	if date != "" {
		list = meals.FilterByDate(list, date)
	}
	at := snapshot.At
	if at.IsZero() {
		at = time.Now()
	}
	return RealtimeMessage{
		Source:    realtimeSourceBackend,
		Sequence:  snapshot.Sequence,
		Date:      date,
		Meals:     nonNilMeals(list),
		Timestamp: at.UTC(),
	}
}

// handleMealStream pushes a snapshot event for every store change. The latest
// snapshot is sent on connect; slow readers only ever see the newest one.
func (h *httpHandler) handleMealStream(c *gin.Context) {
	date := strings.TrimSpace(c.Query("date"))
	if date != "" {
		if err := meals.ValidateDate(date); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	ctx := c.Request.Context()
	stream, cleanup := h.meals.Subscribe(ctx)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	h.logger.Debug("meal stream opened", zap.String("date", date))
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snapshot, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(RealtimeEventSnapshot, newRealtimeMessage(snapshot, date))
			return true
		case tick := <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{
				"source":    realtimeSourceBackend,
				"timestamp": tick.UTC(),
			})
			return true
		}
	})
	h.logger.Debug("meal stream closed", zap.String("date", date))
}
