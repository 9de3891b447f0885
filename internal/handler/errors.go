package handler

import (
	"errors"
	"net/http"

	"github.com/CageChen/filedesk/internal/command"
	"github.com/CageChen/filedesk/internal/fs"
	"github.com/gin-gonic/gin"
)

// Messages returned for request validation failures.
const (
	msgPromptRequired   = "Prompt is required and must be a non-empty string"
	msgFilenameRequired = "Filename is required and must be a non-empty string"
	msgInvalidFilename  = "Invalid filename"
	msgInvalidStructure = "Invalid command structure"
	msgNotFound         = "File not found"
)

// statusFor maps an error from the command or storage layers to an HTTP
// status and the message sent to the client.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, command.ErrResolutionUnavailable):
		return http.StatusInternalServerError, err.Error()
	case errors.Is(err, command.ErrEmptyPrompt):
		return http.StatusBadRequest, msgPromptRequired
	case errors.Is(err, command.ErrMalformedResolution):
		return http.StatusBadRequest, msgInvalidStructure
	case errors.Is(err, command.ErrInvalidCommand):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, fs.ErrInvalidName):
		return http.StatusBadRequest, msgInvalidFilename
	case errors.Is(err, fs.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func writeError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	entry := logger(c).WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
