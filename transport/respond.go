package transport

import (
	"encoding/json"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/pedalfleet/courier-ops/core"
)

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message  string         `json:"message"`
	Code     int            `json:"code"`
	TextCode string         `json:"text_code"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		glog.Nop().Error("transport: encode response", "error", err)
	}
}

// writeError funnels every handler failure through the courier error
// mapper so the wire shape stays uniform regardless of which layer the
// error came from.
func writeError(w http.ResponseWriter, err error) {
	mapped := core.CourierErrorMapper(err)
	if mapped == nil {
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: errorBody{
			Message:  "internal error",
			Code:     http.StatusInternalServerError,
			TextCode: core.CourierErrorInternal,
		}})
		return
	}
	writeJSON(w, mapped.Code, errorEnvelope{Error: errorBody{
		Message:  mapped.Message,
		Code:     mapped.Code,
		TextCode: mapped.TextCode,
		Metadata: mapped.Metadata,
	}})
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return core.CourierErrorMapper(errInvalidBody(err))
	}
	return nil
}

func errInvalidBody(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "transport: malformed request body").
		WithCode(http.StatusBadRequest).
		WithTextCode(core.CourierErrorInvalidPayload)
}
