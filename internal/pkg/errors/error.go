package xerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common reusable application errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("conflict: resource already exists")
	ErrInternal       = errors.New("internal server error")
	ErrRateLimited    = errors.New("too many requests")
	ErrSessionExpired = errors.New("session expired or invalid")
)

// Credential and invitation failures. All of them are recoverable.
var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrNotRegistered         = errors.New("identity has no registered account")
	ErrCodeExpiredOrInvalid  = errors.New("code expired or invalid")
	ErrLinkMalformed         = errors.New("no code found in link")
	ErrNotInvited            = errors.New("email has no pending invitation")
	ErrInvitationAlreadyUsed = errors.New("invitation already used")
	ErrSetupAlreadyComplete  = errors.New("administrator setup already complete")
	ErrTransientStore        = errors.New("store temporarily unavailable")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Transient marks err as a store/network failure while keeping it in the chain.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransientStore) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransientStore, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Unwrap extracts the underlying wrapped error.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}

// Terminal reports whether the user should be sent back to the login screen
// instead of being offered an inline retry.
func Terminal(err error) bool {
	return errors.Is(err, ErrNotInvited) ||
		errors.Is(err, ErrInvitationAlreadyUsed) ||
		errors.Is(err, ErrSetupAlreadyComplete)
}

// UserMessage returns text that is safe to show on a screen. Unknown and
// transient errors collapse to a generic retry message.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "The email or password is incorrect. Please try again."
	case errors.Is(err, ErrNotRegistered):
		return "No account is registered for these credentials."
	case errors.Is(err, ErrCodeExpiredOrInvalid):
		return "That code is invalid or has expired. Request a new one and try again."
	case errors.Is(err, ErrLinkMalformed):
		return "We could not find a code in that link. Paste the full link or type the 6-character code."
	case errors.Is(err, ErrNotInvited):
		return "This email has not been invited. Please return to login."
	case errors.Is(err, ErrInvitationAlreadyUsed):
		return "This invitation has already been used. Please return to login."
	case errors.Is(err, ErrSetupAlreadyComplete):
		return "An administrator already exists. Please return to login."
	case errors.Is(err, ErrRateLimited):
		return "Please wait before requesting another code."
	case errors.Is(err, ErrForbidden):
		return "You do not have permission to do that."
	case errors.Is(err, ErrConflict):
		return "That record already exists."
	case errors.Is(err, ErrInvalidInput):
		return "Some of the details entered are invalid."
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrSessionExpired):
		return "Please sign in to continue."
	default:
		return "Something went wrong. Please try again."
	}
}

// HTTPStatus maps an error to the status code the local API answers with.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrSessionExpired), errors.Is(err, ErrCodeExpiredOrInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotInvited), errors.Is(err, ErrNotRegistered):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrInvitationAlreadyUsed), errors.Is(err, ErrSetupAlreadyComplete):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrLinkMalformed):
		return http.StatusBadRequest
	case errors.Is(err, ErrTransientStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
