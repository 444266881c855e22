package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	logrus "github.com/sirupsen/logrus"

	"radhiant_ops/internal/booking"
)

// SubmitBooking stores a patient booking and queues its notifications.
func (h *Handler) SubmitBooking(c *gin.Context) {
	var sub booking.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid booking input: " + err.Error()})
		return
	}

	conf, err := h.Bookings.Submit(c.Request.Context(), sub)
	if err != nil {
		if errors.Is(err, booking.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		h.log().WithError(err).Error("booking submission failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to process booking"})
		return
	}

	h.log().WithFields(logrus.Fields{
		"booking_id": conf.BookingID,
		"reference":  conf.BookingReference,
	}).Info("Booking confirmed")
	c.JSON(http.StatusCreated, conf)
}
