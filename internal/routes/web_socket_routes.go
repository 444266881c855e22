package routes

import (
	"github.com/gin-gonic/gin"

	"radhiant_ops/internal/controllers"
)

func WebSocketRoutes(r *gin.Engine, h *controllers.Handler) {
	wsRoutes := r.Group("/ws")
	{
		wsRoutes.GET("/trucks", h.HandleTruckWebSocket)
	}
}
