package routes

import (
	"github.com/gin-gonic/gin"

	"radhiant_ops/internal/controllers"
)

// TruckRoutes are public: crew authenticate per action with their own password.
func TruckRoutes(r *gin.Engine, h *controllers.Handler) {
	trucks := r.Group("/trucks")
	{
		trucks.GET("", h.ListTrucks)
		trucks.GET("/:id", h.GetTruck)
		trucks.GET("/:id/crew", h.TruckCrew)
		trucks.POST("/:id/sign-in", h.SignIn)
		trucks.POST("/:id/refresh", h.RefreshTruck)
	}
	r.POST("/sign-out", h.SignOut)
}
