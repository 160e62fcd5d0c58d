package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"lamp_control/internal/models"
	"lamp_control/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

var (
	errFromInvalid  = errors.New("invalid 'from' time; use RFC3339 or YYYY-MM-DD")
	errToInvalid    = errors.New("invalid 'to' time; use RFC3339 or YYYY-MM-DD")
	errRangeInvalid = errors.New("'from' must be <= 'to'")
	errTypeInvalid  = errors.New("unknown 'type'; use REGISTER, DISCONNECT, CONTROL or ERROR")
)

var knownEventTypes = map[string]struct{}{
	models.EventRegister:   {},
	models.EventDisconnect: {},
	models.EventControl:    {},
	models.EventError:      {},
}

// @Summary      List relay events
// @Description  Filter by date (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD'), event type and device. A date-only 'to' covers that whole day.
// @Tags         logs
// @Produce      json
// @Param        from    query   string  false  "Start of range"  example(2025-08-01)
// @Param        to      query   string  false  "End of range, date-only means end of day"  example(2025-08-31)
// @Param        type    query   string  false  "Event type"  Enums(REGISTER,DISCONNECT,CONTROL,ERROR)
// @Param        device  query   string  false  "Device id"
// @Success      200   {object}  map[string]interface{}  "count, events"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/logs [get]
// @Security     BearerAuth
func (h *Handler) getLogs(c *gin.Context) {
	filter, err := logFilterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	events, err := h.services.EventLog.List(c.Request.Context(), filter)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load logs", "logs_list_failed", err,
			"from", filter.From, "to", filter.To, "type", filter.Type, "device_id", filter.DeviceID)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

// logFilterFromQuery reads from/to/type/device. Type is matched case-insensitively.
func logFilterFromQuery(c *gin.Context) (service.LogFilter, error) {
	var f service.LogFilter
	if qs := c.Query("from"); qs != "" {
		t, err := parseQueryTime(qs)
		if err != nil {
			return f, errFromInvalid
		}
		f.From = t
	}
	if qs := c.Query("to"); qs != "" {
		t, err := parseQueryTime(qs)
		if err != nil {
			return f, errToInvalid
		}
		if isDateOnly(qs) {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = t
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return f, errRangeInvalid
	}
	if typ := strings.ToUpper(strings.TrimSpace(c.Query("type"))); typ != "" {
		if _, ok := knownEventTypes[typ]; !ok {
			return f, errTypeInvalid
		}
		f.Type = typ
	}
	f.DeviceID = strings.TrimSpace(c.Query("device"))
	return f, nil
}

// isDateOnly reports whether the query string represents a date without time component.
func isDateOnly(s string) bool {
	return !strings.ContainsAny(s, "T ")
}

func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time format %q", s)
}
