package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"rental_manager/internal/redis"
	"rental_manager/internal/rental"
	"rental_manager/internal/services"
)

// respondError maps service errors onto HTTP status codes.
func respondError(c *gin.Context, logger zerolog.Logger, err error) {
	var verr *rental.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
		return
	}
	var rejected *rental.PersistenceRejected
	if errors.As(err, &rejected) {
		c.JSON(http.StatusConflict, gin.H{"error": "storage rejected the update", "constraint": rejected.Constraint})
		return
	}

	switch {
	case errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrItemNotFound),
		errors.Is(err, services.ErrBranchNotFound),
		errors.Is(err, services.ErrCustomerNotFound),
		errors.Is(err, services.ErrStaffNotFound),
		errors.Is(err, services.ErrReturnNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrEmptyOrder):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": "items"})
	case errors.Is(err, services.ErrOrderCancelled),
		errors.Is(err, services.ErrOrderLocked),
		errors.Is(err, services.ErrOrderClosed),
		errors.Is(err, services.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, redis.ErrLockBusy):
		c.JSON(http.StatusLocked, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInsufficientRole),
		errors.Is(err, services.ErrInactiveStaff):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name, "field": name})
		return 0, false
	}
	return uint(id), true
}

func parseUintQuery(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name, "field": name})
		return 0, false
	}
	return uint(v), true
}
