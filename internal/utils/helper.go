package utils

import (
	"encoding/json"
	"net/http"
	"regexp"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// SanitizeFileName replaces everything but letters, digits, dots and dashes.
func SanitizeFileName(name string) string {
	return unsafeFileChars.ReplaceAllString(name, "_")
}

func WriteJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func WriteJSONError(w http.ResponseWriter, message, errCode string, code int) {
	WriteJSON(w, code, map[string]string{"error": message, "code": errCode})
}
