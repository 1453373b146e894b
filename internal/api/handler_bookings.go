package api

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"parking-lifecycle-backend/internal/lifecycle"
	"parking-lifecycle-backend/internal/model"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// bookingResponse pairs a booking with its derived lifecycle view.
// Error is set instead of the evaluation when the booking's times are malformed.
type bookingResponse struct {
	model.Booking
	State    lifecycle.State     `json:"state,omitempty"`
	Window   *lifecycle.Window   `json:"window,omitempty"`
	Overtime *lifecycle.Overtime `json:"overtime,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// GetBookings handles GET /api/users/:user_id/bookings.
func (h *Handler) GetBookings(c *gin.Context) {
	userID := c.Param("user_id")

	bookings, err := h.source.FetchActiveBookings(c.Request.Context(), userID)
	if err != nil {
		log.Printf("Error fetching bookings for user %s: %v", userID, err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Failed to retrieve bookings"})
		return
	}

	now := h.now()
	response := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		ev, err := lifecycle.Evaluate(b, h.scanner.Location(), now, h.scanner.Rates())
		if err != nil {
			response = append(response, bookingResponse{Booking: b, Error: err.Error()})
			continue
		}
		item := bookingResponse{Booking: b, State: ev.State, Window: &ev.Window}
		if ev.State == lifecycle.StateOverstayed {
			item.Overtime = &ev.Overtime
		}
		response = append(response, item)
	}
	c.JSON(http.StatusOK, response)
}

// ScanUser handles POST /api/users/:user_id/scan.
func (h *Handler) ScanUser(c *gin.Context) {
	userID := c.Param("user_id")

	report, err := h.scanner.ScanUser(c.Request.Context(), userID)
	if err != nil {
		log.Printf("On-demand scan for user %s failed: %v", userID, err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Failed to scan bookings"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetNotifications handles GET /api/users/:user_id/notifications.
func (h *Handler) GetNotifications(c *gin.Context) {
	limit := defaultNotificationLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = min(n, maxNotificationLimit)
	}

	entries, err := h.store.ListNotifications(c.Request.Context(), c.Param("user_id"), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve notifications"})
		return
	}
	c.JSON(http.StatusOK, entries)
}
