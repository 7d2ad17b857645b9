package httputil

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ParseQueryString extracts a trimmed string query parameter
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	val := strings.TrimSpace(r.URL.Query().Get(key))
	if val == "" {
		return defaultVal
	}
	return val
}

// ParseQueryBool extracts and parses a boolean query parameter
func ParseQueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseBool(str)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryBoolOrError extracts a boolean query parameter and writes error on failure
func ParseQueryBoolOrError(w http.ResponseWriter, r *http.Request, key string, defaultVal bool) (bool, bool) {
	val, err := ParseQueryBool(r, key, defaultVal)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return false, false
	}
	return val, true
}
