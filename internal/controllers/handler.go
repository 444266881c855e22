package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"radhiant_ops/internal/booking"
	"radhiant_ops/internal/jobs"
	"radhiant_ops/internal/middleware"
	"radhiant_ops/internal/occupancy"
	"radhiant_ops/internal/reporting"
	"radhiant_ops/internal/statuscache"
	"radhiant_ops/internal/users"
)

// Handler holds the services behind the HTTP routes.
type Handler struct {
	DB        *gorm.DB
	Occupancy *occupancy.Controller
	Status    *statuscache.Cache
	Reports   *reporting.Service
	Users     *users.Service
	Bookings  *booking.Service
	Jobs      *jobs.Scheduler
	Sweep     *jobs.AutoSignOutJob
	Hub       *TruckHub
	Tokens    *middleware.JWT
	Log       logrus.FieldLogger
	Now       func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) log() logrus.FieldLogger {
	if h.Log != nil {
		return h.Log
	}
	return logrus.StandardLogger()
}

// occupancyStatus maps an occupancy failure to its HTTP status.
func occupancyStatus(kind occupancy.Kind) int {
	switch kind {
	case occupancy.KindInvalidCredential:
		return http.StatusUnauthorized
	case occupancy.KindUserNotFound, occupancy.KindTruckNotFound:
		return http.StatusNotFound
	case occupancy.KindAlreadySignedIn, occupancy.KindSlotOccupied, occupancy.KindNoActiveSession:
		return http.StatusConflict
	case occupancy.KindRoleNotPermitted:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondOccupancy writes the {success, data} / {success, error, code} shape.
func respondOccupancy(c *gin.Context, okStatus int, data any, err error) {
	res := occupancy.Outcome(data, err)
	if err != nil {
		c.JSON(occupancyStatus(res.Code), res)
		return
	}
	c.JSON(okStatus, res)
}

// userStatus maps users service errors.
func userStatus(err error) int {
	switch {
	case errors.Is(err, users.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, users.ErrInvalidRole),
		errors.Is(err, users.ErrInvalidPassword),
		errors.Is(err, users.ErrInvalidName),
		errors.Is(err, users.ErrUnknownTruck):
		return http.StatusBadRequest
	case errors.Is(err, users.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
