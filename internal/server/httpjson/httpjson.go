// Package httpjson holds small helpers for JSON request and response bodies.
package httpjson

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
)

// maxBodyBytes caps request bodies; nothing in the API legitimately sends
// more than this.
const maxBodyBytes = 1 << 20

// ErrBadBody is returned by Decode for empty, oversized, or invalid JSON bodies.
var ErrBadBody = errors.New("invalid request body")

// Decode reads the request body into dst, rejecting unknown fields.
func Decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return ErrBadBody
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return ErrBadBody
	}
	return nil
}

// Write serializes v as the response body with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("httpjson: encode response: %v", err)
	}
}

// Error writes a JSON error body {"error": message} with the given status.
func Error(w http.ResponseWriter, status int, message string) {
	Write(w, status, map[string]string{"error": message})
}

// Pagination reads limit/offset query parameters. limit is clamped to max;
// absent or unparseable values fall back to def and 0.
func Pagination(r *http.Request, def, max int32) (limit, offset int32) {
	limit = def
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil && n > 0 {
			limit = int32(n)
			if limit > max {
				limit = max
			}
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil && n >= 0 {
			offset = int32(n)
		}
	}
	return limit, offset
}
