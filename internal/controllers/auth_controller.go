package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	logrus "github.com/sirupsen/logrus"

	"radhiant_ops/internal/users"
)

type loginInput struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginUser authenticates an admin and returns a bearer token for /admin.
func (h *Handler) LoginUser(c *gin.Context) {
	var input loginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.Users.Authenticate(c.Request.Context(), input.Name, input.Password)
	if err != nil {
		if errors.Is(err, users.ErrUnauthorized) {
			h.log().WithField("name", input.Name).Warn("admin login rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.log().WithError(err).Error("admin login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not log in"})
		return
	}

	token, err := h.Tokens.GenerateToken(profile.ID, profile.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
		return
	}

	h.log().WithFields(logrus.Fields{"user_id": profile.ID, "name": profile.Name}).Info("admin logged in")
	c.JSON(http.StatusOK, gin.H{"token": token, "user": profile})
}
