package httpx

import (
	"net/http"

	"github.com/bagline-erp/bagline/internal/shared"
)

// RespondError maps a domain error to a failure envelope. Untyped errors
// become opaque 500s so storage details never leak to clients.
func RespondError(w http.ResponseWriter, err error) {
	kind := shared.KindOf(err)
	status := statusFor(kind)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	JSON(w, status, Envelope{Success: false, Message: message, ErrorKind: string(kind)})
}

func statusFor(kind shared.ErrorKind) int {
	switch kind {
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindValidation, shared.KindInsufficientQuantity, shared.KindHold, shared.KindDuplicateKey, shared.KindInvariant:
		return http.StatusBadRequest
	case shared.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
