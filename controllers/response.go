package controllers

import (
	"errors"
	"net/http"

	"civic-issues/models"
	"civic-issues/pipeline"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func failureStatus(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindValidation:
		return http.StatusBadRequest
	case pipeline.KindUpload:
		return http.StatusBadGateway
	case pipeline.KindCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
