package httpapi

import (
	"errors"
	"net/http"

	"switchboard/internal/campaign"
	"switchboard/internal/compliance"
	"switchboard/internal/conversation"
	"switchboard/internal/reporting"
	"switchboard/internal/tenant"
	"switchboard/internal/voicemail"
	"switchboard/pkg/logger"

	"github.com/gin-gonic/gin"
)

type statusRule struct {
	target error
	status int
}

var statusRules = []statusRule{
	{tenant.ErrUnauthorized, http.StatusUnauthorized},
	{tenant.ErrTenantInactive, http.StatusForbidden},

	{tenant.ErrNotFound, http.StatusNotFound},
	{voicemail.ErrNotFound, http.StatusNotFound},
	{conversation.ErrNotFound, http.StatusNotFound},
	{campaign.ErrNotFound, http.StatusNotFound},

	{tenant.ErrInvalidArgument, http.StatusBadRequest},
	{tenant.ErrNumberNotOwned, http.StatusBadRequest},
	{tenant.ErrNoActiveNumber, http.StatusBadRequest},
	{voicemail.ErrInvalidArgument, http.StatusBadRequest},
	{conversation.ErrInvalidArgument, http.StatusBadRequest},
	{campaign.ErrInvalidArgument, http.StatusBadRequest},
	{compliance.ErrInvalidArgument, http.StatusBadRequest},
	{reporting.ErrInvalidRequest, http.StatusBadRequest},

	{tenant.ErrDuplicateExtension, http.StatusConflict},
	{campaign.ErrInvalidState, http.StatusConflict},

	{conversation.ErrOptedOut, http.StatusUnprocessableEntity},

	{tenant.ErrUpstream, http.StatusBadGateway},
	{conversation.ErrUpstream, http.StatusBadGateway},
	{campaign.ErrUpstream, http.StatusBadGateway},
}

// statusFor maps a service error onto an HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	for _, r := range statusRules {
		if errors.Is(err, r.target) {
			return r.status
		}
	}
	return http.StatusInternalServerError
}

// fail aborts with a JSON error body. Internal errors are logged and
// reported without detail.
func fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "path", c.FullPath(), "err", err)
		if status == http.StatusInternalServerError {
			c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
			return
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
