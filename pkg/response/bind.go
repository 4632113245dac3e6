package response

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/mymechanic/pkg/binder"
)

var ErrUnsupportedMediaType = HTTPError{Status: http.StatusUnsupportedMediaType, Code: "unsupported_media_type", Message: "Expected application/json"}

type validationBody struct {
	Error  string                  `json:"error"`
	Code   string                  `json:"code"`
	Fields binder.ValidationErrors `json:"fields,omitempty"`
}

// BindError writes the response for a binder.JSON failure: 400 with the
// failed fields for rule violations, 415 for a wrong content type and 400
// for anything else.
func BindError(w http.ResponseWriter, err error) {
	var fields binder.ValidationErrors
	if errors.As(err, &fields) {
		JSON(w, http.StatusBadRequest, validationBody{
			Error:  "Request validation failed",
			Code:   "validation_failed",
			Fields: fields,
		})
		return
	}
	if errors.Is(err, binder.ErrUnsupportedMediaType) {
		Error(w, ErrUnsupportedMediaType, nil)
		return
	}
	Error(w, ErrBadRequest.WithMessage("Malformed JSON body"), nil)
}
