package cloud

import (
	"encoding/json"
	"math"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-focus/pkg/persist"
)

// RegisterAPIRoutes registers the REST API on api (mounted at /api).
func (s *Server) RegisterAPIRoutes(api fiber.Router) {
	api.Get("/health", s.handleHealth)
	api.Get("/status", s.handleStatus)
	api.Post("/save_tracking", s.handleSaveTracking)
	api.Get("/get_tracking_stats", s.handleTrackingStats)
}

// RegisterMetrics serves Prometheus metrics on the configured path.
func (s *Server) RegisterMetrics(app *fiber.App) {
	if s.config.MetricsPath == "" {
		return
	}
	app.Get(s.config.MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":         true,
		"message":         "Eye tracking service is running",
		"version":         Version,
		"active_sessions": s.tracker.Registry().Len(),
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":     true,
		"sessions":    s.tracker.Status(),
		"connections": s.Connections(),
		"stats":       s.GetStats(),
	})
}

// saveRequest mirrors the collector payload. Pointers distinguish missing
// fields from zero values.
type saveRequest struct {
	UserID        *string  `json:"user_id"`
	ModuleID      *string  `json:"module_id"`
	SectionID     string   `json:"section_id"`
	FocusedTime   *float64 `json:"focused_time"`
	UnfocusedTime *float64 `json:"unfocused_time"`
	TotalTime     *float64 `json:"total_time"`
	SessionType   string   `json:"session_type"`
}

func (r saveRequest) missing() string {
	switch {
	case r.UserID == nil || *r.UserID == "":
		return "user_id"
	case r.ModuleID == nil || *r.ModuleID == "":
		return "module_id"
	case r.FocusedTime == nil:
		return "focused_time"
	case r.UnfocusedTime == nil:
		return "unfocused_time"
	case r.TotalTime == nil:
		return "total_time"
	}
	return ""
}

func (s *Server) handleSaveTracking(c *fiber.Ctx) error {
	if s.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"error":   "Tracking store not configured",
		})
	}

	var req saveRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid JSON body",
		})
	}
	if field := req.missing(); field != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Missing required field: " + field,
		})
	}

	kind := req.SessionType
	if kind == "" {
		kind = "viewing"
	}
	rec := persist.Record{
		SubjectID:        *req.UserID,
		ContentID:        *req.ModuleID,
		SubContentID:     req.SectionID,
		FocusedSeconds:   *req.FocusedTime,
		UnfocusedSeconds: *req.UnfocusedTime,
		TotalSeconds:     *req.TotalTime,
		SessionKind:      kind,
		Timestamp:        time.Now(),
	}
	if rec.TotalSeconds > 0 {
		rec.FocusPercentage = math.Round(rec.FocusedSeconds/rec.TotalSeconds*1000) / 10
	}

	id, err := s.store.Insert(c.UserContext(), rec)
	if err != nil {
		s.log.Error("save tracking failed", "user_id", rec.SubjectID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Database error",
		})
	}

	s.log.Info("saved tracking data",
		"user_id", rec.SubjectID,
		"module_id", rec.ContentID,
		"focused_s", rec.FocusedSeconds,
		"total_s", rec.TotalSeconds,
		"id", id,
	)
	return c.JSON(fiber.Map{
		"success":    true,
		"message":    "Tracking data saved successfully",
		"session_id": id,
	})
}

func (s *Server) handleTrackingStats(c *fiber.Ctx) error {
	if s.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"error":   "Tracking store not configured",
		})
	}

	stats, err := s.store.Stats(c.UserContext(), persist.Filter{
		SubjectID: c.Query("user_id"),
		ContentID: c.Query("module_id"),
	})
	if err != nil {
		s.log.Error("tracking stats failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Database error",
		})
	}
	return c.JSON(fiber.Map{"success": true, "stats": stats})
}
