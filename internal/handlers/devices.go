package handlers

import (
	"errors"
	"net/http"

	"lamp_control/internal/models"
	"lamp_control/internal/relay"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK        = "ok"
	statusForwarded = "forwarded"

	errListDevices     = "failed to load devices"
	errGetState        = "failed to load state"
	errForward         = "failed to forward control"
	errUnknownDevice   = "device has never reported a state"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      List devices
// @Description  Every device that ever reported a state, with its online flag
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, devices"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/devices [get]
// @Security     BearerAuth
func (h *Handler) listDevices(c *gin.Context) {
	recs, err := h.hub.Devices(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListDevices, "devices_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(recs), "devices": recs})
}

// @Summary      Get device state
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {object}  models.DeviceState
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/devices/{id}/state [get]
// @Security     BearerAuth
func (h *Handler) getDeviceState(c *gin.Context) {
	id := c.Param("id")
	st, ok, err := h.services.Devices.LastState(c.Request.Context(), id)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "device_get_state_failed", err, "device_id", id)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errUnknownDevice})
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Send control
// @Description  Forwards the full state to the device. The device answers with a state broadcast on /ws/client.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id    path   string              true  "Device id"
// @Param        body  body   models.DeviceState  true  "Desired state"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/devices/{id}/control [post]
// @Security     BearerAuth
func (h *Handler) controlDevice(c *gin.Context) {
	id := c.Param("id")
	var st models.DeviceState
	if err := c.ShouldBindJSON(&st); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	st.Distance = nil // read-only on the device side
	if err := st.Validate(0); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	err := h.hub.Forward(c.Request.Context(), id, st)
	switch {
	case errors.Is(err, relay.ErrDeviceOffline):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		h.logAndJSONError(c, http.StatusBadGateway, errForward, "device_forward_failed", err, "device_id", id)
	default:
		c.JSON(http.StatusOK, gin.H{"status": statusForwarded, "device_id": id})
	}
}
