package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/asterlab/mission-gateway/internal/platform/apierr"
)

var titles = map[string]string{
	apierr.CodeInvalidRequest:      "Invalid Request",
	apierr.CodeUnauthenticated:     "Unauthorized",
	apierr.CodeForbidden:           "Forbidden",
	apierr.CodeNotFound:            "Not Found",
	apierr.CodeConflict:            "Conflict",
	apierr.CodeUpstreamUnavailable: "Upstream Unavailable",
	apierr.CodeUpstreamRejected:    "Upstream Rejected",
	apierr.CodeInternal:            "Internal Server Error",
}

// RespondError writes err as an application/problem+json body. Unrecognized
// errors come out as 500s with their detail suppressed.
func RespondError(c *gin.Context, err error) {
	ae := apierr.From(err)

	detail := ae.Error()
	if ae.Code == apierr.CodeInternal {
		detail = "internal server error"
	}
	title, ok := titles[ae.Code]
	if !ok {
		title = http.StatusText(ae.Status)
	}

	// The type member is the stable per-kind code, so clients can switch on
	// it without parsing detail text.
	body := map[string]any{
		"type":     ae.Code,
		"title":    title,
		"status":   ae.Status,
		"detail":   detail,
		"instance": c.Request.URL.Path,
	}
	if len(ae.Extra) > 0 {
		body["additionalProperties"] = ae.Extra
	}

	c.Header("Content-Type", "application/problem+json")
	c.AbortWithStatusJSON(ae.Status, body)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}
