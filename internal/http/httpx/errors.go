package httpx

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/talentdock/authcore/internal/auth"
)

type apiError struct {
	Error            string   `json:"error"`
	ErrorDescription string   `json:"error_description,omitempty"`
	Violations       []string `json:"violations,omitempty"`
	RetryAfterMin    int      `json:"retry_after_minutes,omitempty"`
	RequestID        string   `json:"request_id,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, desc string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rid := w.Header().Get("X-Request-ID")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{
		Error:            code,
		ErrorDescription: desc,
		RequestID:        rid,
	})
}

// WriteJSON: respuesta JSON estándar
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON: decodifica JSON de forma tolerante (NO falla por campos
// desconocidos). Valida Content-Type y limita el body a 1MB.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		WriteError(w, http.StatusBadRequest, "invalid_json", "Content-Type debe ser application/json")
		return false
	}
	// máx 1MB
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		WriteError(w, http.StatusBadRequest, "invalid_json", "json inválido")
		return false
	}
	return true
}

// WriteFlowError traduce el resultado tipado de los services al wire.
func WriteFlowError(w http.ResponseWriter, err error) {
	fe, ok := auth.AsFlow(err)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "internal_error", "error interno")
		return
	}

	code := string(fe.Kind)
	if fe.Code != "" {
		code = fe.Code
	}

	var status int
	switch fe.Kind {
	case auth.KindValidation:
		status = http.StatusBadRequest
	case auth.KindNotFound:
		status = http.StatusNotFound
	case auth.KindConflict:
		status = http.StatusConflict
	case auth.KindPolicyViolation:
		status = http.StatusUnprocessableEntity
	case auth.KindAuthorizationMismatch:
		status = http.StatusForbidden
	case auth.KindInvalidCredentials:
		status = http.StatusUnauthorized
	case auth.KindRateLimited:
		status = http.StatusTooManyRequests
		w.Header().Set("Retry-After", strconv.Itoa(fe.RetryAfterMinutes*60))
	case auth.KindSecurityAlert:
		// Alerta dura: re-login total.
		status = http.StatusForbidden
	case auth.KindTransient:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}

	violations := make([]string, 0, len(fe.Violations))
	for _, v := range fe.Violations {
		violations = append(violations, string(v))
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rid := w.Header().Get("X-Request-ID")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{
		Error:            code,
		ErrorDescription: fe.Message,
		Violations:       violations,
		RetryAfterMin:    fe.RetryAfterMinutes,
		RequestID:        rid,
	})
}
