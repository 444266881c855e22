package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	logrus "github.com/sirupsen/logrus"

	"radhiant_ops/internal/models"
	"radhiant_ops/internal/users"
)

// ListUsers returns all users, optionally filtered by ?role=.
func (h *Handler) ListUsers(c *gin.Context) {
	list, err := h.Users.List(c.Request.Context(), models.Role(c.Query("role")))
	if err != nil {
		c.JSON(userStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": list})
}

func (h *Handler) GetUser(c *gin.Context) {
	profile, err := h.Users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(userStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) CreateUser(c *gin.Context) {
	var input users.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	profile, err := h.Users.Create(c.Request.Context(), input)
	if err != nil {
		c.JSON(userStatus(err), gin.H{"error": err.Error()})
		return
	}
	h.log().WithFields(logrus.Fields{
		"user_id":  profile.ID,
		"role":     profile.Role,
		"actor_id": c.GetString("user_id"),
	}).Info("User created")
	c.JSON(http.StatusCreated, profile)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	var input users.UpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	profile, err := h.Users.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		c.JSON(userStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// ClearUserPassword removes the user's password so they sign in without one.
func (h *Handler) ClearUserPassword(c *gin.Context) {
	profile, err := h.Users.ClearPassword(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(userStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id := c.Param("id")
	if id == c.GetString("user_id") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot delete your own account"})
		return
	}
	if err := h.Users.Delete(c.Request.Context(), id); err != nil {
		c.JSON(userStatus(err), gin.H{"error": err.Error()})
		return
	}
	h.log().WithFields(logrus.Fields{"user_id": id, "actor_id": c.GetString("user_id")}).Info("User deleted")
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
