package routes

import (
	"github.com/gin-gonic/gin"

	"radhiant_ops/internal/controllers"
)

func BookingRoutes(r *gin.Engine, h *controllers.Handler) {
	r.POST("/bookings", h.SubmitBooking)
}
