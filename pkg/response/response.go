package response

import (
	"encoding/json"
	"net/http"

	"pendakian-services/internal/apperror"
)

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

func SuccessMessage(w http.ResponseWriter, status int, message string, data any) {
	payload := map[string]any{
		"success": true,
		"message": message,
	}
	if data != nil {
		payload["data"] = data
	}
	JSON(w, status, payload)
}

func Error(w http.ResponseWriter, status int, code string, message string) {
	JSON(w, status, map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	})
}

// Fail writes any error using the typed error's status, code and details.
func Fail(w http.ResponseWriter, err error) {
	appErr := apperror.From(err)
	payload := map[string]any{
		"success": false,
		"error":   string(appErr.Code),
		"message": appErr.Message,
	}
	if len(appErr.Details) > 0 {
		payload["details"] = appErr.Details
	}
	if appErr.Retryable {
		payload["retryable"] = true
	}
	JSON(w, appErr.StatusCode, payload)
}
