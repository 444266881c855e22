package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	logrus "github.com/sirupsen/logrus"

	"radhiant_ops/internal/occupancy"
)

type signInInput struct {
	UserID   string `json:"user_id" binding:"required"`
	Password string `json:"password"`
	Notes    string `json:"notes"`
}

type signOutInput struct {
	UserID   string `json:"user_id" binding:"required"`
	Password string `json:"password"`
}

// ListTrucks returns every truck with its current crew.
func (h *Handler) ListTrucks(c *gin.Context) {
	statuses, err := h.Status.All(c.Request.Context())
	if err != nil {
		h.log().WithError(err).Error("listing truck statuses failed")
		respondOccupancy(c, http.StatusOK, nil, err)
		return
	}
	respondOccupancy(c, http.StatusOK, statuses, nil)
}

func (h *Handler) GetTruck(c *gin.Context) {
	status, err := h.Status.Truck(c.Request.Context(), c.Param("id"))
	respondOccupancy(c, http.StatusOK, status, err)
}

// TruckCrew lists who may sign in to the truck, for the sign-in pickers.
func (h *Handler) TruckCrew(c *gin.Context) {
	ctx := c.Request.Context()
	truckID := c.Param("id")
	if _, err := h.Status.Truck(ctx, truckID); err != nil {
		respondOccupancy(c, http.StatusOK, nil, err)
		return
	}
	crew, err := h.Users.Crew(ctx, truckID)
	if err != nil {
		h.log().WithError(err).WithField("truck_id", truckID).Error("loading crew failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not load crew"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": crew})
}

func (h *Handler) SignIn(c *gin.Context) {
	var input signInInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid sign-in input: " + err.Error()})
		return
	}

	entry, err := h.Occupancy.SignIn(c.Request.Context(), occupancy.SignInRequest{
		UserID:   input.UserID,
		TruckID:  c.Param("id"),
		Password: input.Password,
		Notes:    input.Notes,
	})
	if err != nil {
		h.log().WithError(err).WithFields(logrus.Fields{
			"user_id":  input.UserID,
			"truck_id": c.Param("id"),
		}).Warn("sign-in rejected")
	}
	respondOccupancy(c, http.StatusCreated, entry, err)
}

func (h *Handler) SignOut(c *gin.Context) {
	var input signOutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid sign-out input: " + err.Error()})
		return
	}

	entry, err := h.Occupancy.SignOut(c.Request.Context(), occupancy.SignOutRequest{
		UserID:   input.UserID,
		Password: input.Password,
	})
	if err != nil {
		h.log().WithError(err).WithField("user_id", input.UserID).Warn("sign-out rejected")
	}
	respondOccupancy(c, http.StatusOK, entry, err)
}

// RefreshTruck drops the cached status and pushes a fresh one to listeners.
func (h *Handler) RefreshTruck(c *gin.Context) {
	ctx := c.Request.Context()
	truckID := c.Param("id")
	h.Status.Invalidate(ctx, truckID)
	status, err := h.Status.Truck(ctx, truckID)
	if err == nil && h.Hub != nil {
		h.Hub.Publish(*status)
	}
	respondOccupancy(c, http.StatusOK, status, err)
}
