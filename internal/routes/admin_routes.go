package routes

import (
	"github.com/gin-gonic/gin"

	"radhiant_ops/internal/controllers"
	"radhiant_ops/internal/models"
)

func AdminRoutes(r *gin.Engine, h *controllers.Handler) {
	admin := r.Group("/admin")
	admin.Use(h.Tokens.RequireAuthWithRole(models.RoleIT))
	{
		admin.GET("/users", h.ListUsers)
		admin.POST("/users", h.CreateUser)
		admin.GET("/users/:id", h.GetUser)
		admin.PUT("/users/:id", h.UpdateUser)
		admin.DELETE("/users/:id", h.DeleteUser)
		admin.DELETE("/users/:id/password", h.ClearUserPassword)

		admin.GET("/reports", h.Report)
		admin.GET("/reports/export", h.ExportReport)
		admin.POST("/sweep", h.RunSweep)
	}
}
