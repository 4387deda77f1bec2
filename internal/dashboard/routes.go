package dashboard

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/huebot/internal/api"
	"github.com/zulandar/huebot/internal/history"
	"github.com/zulandar/huebot/internal/share"
	"github.com/zulandar/huebot/internal/transcript"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	g := router.Group("/api")
	g.GET("/history", handleHistoryList(opts))
	g.GET("/history/:id", handleHistoryDetail(opts))
	g.GET("/summary", handleSummary(opts))
	g.GET("/transcripts", handleTranscriptList(opts))
	g.GET("/transcripts/:id", handleTranscriptDetail(opts))
	g.GET("/deliveries", handleDeliveries(opts))
	g.GET("/session", handleSession(opts.Hub))
	g.GET("/events", handleSSE(opts.Hub))
}

func handleHistoryList(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		mode := history.ModeNormal
		if c.Query("mode") == history.ModeLive.String() {
			mode = history.ModeLive
		}
		list, err := opts.History.List(c.Request.Context(), mode)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"mode": mode.String(), "items": list})
	}
}

func handleHistoryDetail(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		d, err := opts.History.Detail(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

func handleSummary(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := opts.History.List(c.Request.Context(), history.ModeNormal)
		if err != nil {
			writeError(c, err)
			return
		}
		deliveries, err := DeliveryStats(c.Request.Context(), opts.DB)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"total":      len(list),
			"tones":      ToneSummary(list),
			"deliveries": deliveries,
		})
	}
}

func handleTranscriptList(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 50
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
				return
			}
			limit = n
		}
		rows, err := transcript.ListSessions(c.Request.Context(), opts.DB, opts.History.UserID(), limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": rows})
	}
}

func handleTranscriptDetail(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		t, err := transcript.Load(c.Request.Context(), opts.DB, opts.History.UserID(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func handleDeliveries(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := 0
		if raw := c.Query("diagnosis_id"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "diagnosis_id must be an integer"})
				return
			}
			id = n
		}
		rows, err := share.Deliveries(c.Request.Context(), opts.DB, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": rows})
	}
}

func handleSession(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hub == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no live chat session"})
			return
		}
		c.JSON(http.StatusOK, hub.Snapshot())
	}
}

func intParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return n, true
}

// writeError maps an error to a JSON response. Upstream API statuses pass
// through; unreachable upstreams become 502.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, history.ErrSignedOut):
		status = http.StatusUnauthorized
	case errors.Is(err, transcript.ErrNoSession):
		status = http.StatusNotFound
	case api.IsNetworkError(err):
		status = http.StatusBadGateway
	case api.StatusCode(err) != 0:
		status = api.StatusCode(err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": api.Kind(err).String()})
}
