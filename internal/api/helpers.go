package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
)

// WriteJSONResponse marshals v and writes it with a JSON content type.
// Marshaling happens before any byte hits the wire so an encoding failure
// never produces a partial response. Returns false when it failed.
func WriteJSONResponse(w http.ResponseWriter, v any) bool {
	body, err := json.Marshal(v)
	if err != nil {
		log.Printf("API: Failed to encode response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return false
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
	return true
}

// WriteJSONError writes a JSON error payload with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload := map[string]any{"error": message}
	if details != nil {
		payload["details"] = details
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// The run request arrives loosely typed - clients send strings, numbers,
// and booleans interchangeably - so each field is coerced individually with
// a documented default before the typed configuration is built.

func booleanFrom(value any, fallback bool) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if v == "true" {
			return true
		}
		if v == "false" {
			return false
		}
	}
	return fallback
}

func numberFrom(value any, fallback int) int {
	switch v := value.(type) {
	case float64:
		return int(v)
	case string:
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func stringFrom(value any, fallback string) string {
	if v, ok := value.(string); ok && v != "" {
		return v
	}
	return fallback
}
