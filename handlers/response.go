package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"guardforce-cctv/be/repository"
	"guardforce-cctv/be/services"
)

func statusFor(err error) int {
	var remoteErr *repository.RemoteError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrInvalidInput), errors.Is(err, repository.ErrInvalidPTZCommand):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotPTZCamera), errors.Is(err, services.ErrStreamUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, repository.ErrRecordingInProgress):
		return http.StatusConflict
	case errors.As(err, &remoteErr), errors.Is(err, services.ErrMediaServer):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

// respond writes body on success. A stale read still succeeds, with the
// reason in a warning field.
func respond(c *gin.Context, logger *zap.Logger, status int, body gin.H, err error) {
	if err != nil && !repository.IsStale(err) {
		respondError(c, logger, err)
		return
	}
	if err != nil {
		body["warning"] = err.Error()
	}
	c.JSON(status, body)
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
