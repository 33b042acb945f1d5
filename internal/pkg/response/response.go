// internal/pkg/response/response.go
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	xerrors "ordering-service/internal/pkg/errors"
)

// Response defines the standard API response format.
type Response struct {
	Success  bool        `json:"success"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data,omitempty"`
	Error    string      `json:"error,omitempty"`
	Terminal bool        `json:"terminal,omitempty"`
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends a standardized error response. Only the taxonomy code of err
// is exposed, never its text.
func Error(c *gin.Context, code int, message string, err error, data ...interface{}) {
	c.Abort()

	response := Response{
		Success: false,
		Message: message,
	}

	if err != nil {
		response.Error = Code(err)
		response.Terminal = xerrors.Terminal(err)
	}

	if len(data) > 0 {
		response.Data = data[0]
	}

	c.JSON(code, response)
}

// Fail answers with the status and user message err maps to.
func Fail(c *gin.Context, err error, data ...interface{}) {
	_ = c.Error(err)
	Error(c, xerrors.HTTPStatus(err), xerrors.UserMessage(err), err, data...)
}

// ValidationError sends a 400 Bad Request response for invalid input.
func ValidationError(c *gin.Context, message string, err error) {
	Error(c, http.StatusBadRequest, message, xerrors.ErrInvalidInput)
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message, xerrors.ErrUnauthorized)
}

// Forbidden sends a 403 Forbidden response.
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message, xerrors.ErrForbidden)
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message, xerrors.ErrNotFound)
}

var codes = []struct {
	err  error
	code string
}{
	{xerrors.ErrInvalidCredentials, "invalid_credentials"},
	{xerrors.ErrNotRegistered, "not_registered"},
	{xerrors.ErrCodeExpiredOrInvalid, "code_expired_or_invalid"},
	{xerrors.ErrLinkMalformed, "link_malformed"},
	{xerrors.ErrNotInvited, "not_invited"},
	{xerrors.ErrInvitationAlreadyUsed, "invitation_already_used"},
	{xerrors.ErrSetupAlreadyComplete, "setup_already_complete"},
	{xerrors.ErrTransientStore, "transient"},
	{xerrors.ErrRateLimited, "rate_limited"},
	{xerrors.ErrForbidden, "forbidden"},
	{xerrors.ErrUnauthorized, "unauthorized"},
	{xerrors.ErrSessionExpired, "session_expired"},
	{xerrors.ErrNotFound, "not_found"},
	{xerrors.ErrConflict, "conflict"},
	{xerrors.ErrInvalidInput, "invalid_input"},
}

// Code is the stable machine-readable name of err.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
