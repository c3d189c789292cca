// Package http provides the JSON API server and its handlers.
//
// This file implements parsing and validation of query parameters.

package http

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Query parameter errors, reported to the caller as 400.
var (
	ErrMissingParam = errors.New("missing parameter")
	ErrInvalidParam = errors.New("invalid parameter")
)

// ForecastParams holds the parsed parameters of a forecast request.
type ForecastParams struct {
	// Month is the raw month label; empty means the current month.
	Month     string
	Residents int
}

// ParseForecastParams extracts month and residents from query parameters.
// residents is required and must be a non-negative integer.
func ParseForecastParams(query url.Values) (ForecastParams, error) {
	params := ForecastParams{Month: sanitizeInput(query.Get("month"))}

	raw := strings.TrimSpace(query.Get("residents"))
	if raw == "" {
		return params, fmt.Errorf("%w: residents", ErrMissingParam)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return params, fmt.Errorf("%w: residents must be a non-negative integer, got %q", ErrInvalidParam, raw)
	}
	params.Residents = n
	return params, nil
}

// ParseCategory extracts the required category parameter, lowercased.
func ParseCategory(query url.Values) (string, error) {
	category := strings.ToLower(sanitizeInput(query.Get("category")))
	if category == "" {
		return "", fmt.Errorf("%w: category", ErrMissingParam)
	}
	if len(category) > 64 {
		return "", fmt.Errorf("%w: category too long", ErrInvalidParam)
	}
	return category, nil
}

// ParseReason extracts an optional refresh reason, defaulting to manual.
func ParseReason(query url.Values, fallback string) string {
	if reason := strings.ToLower(sanitizeInput(query.Get("reason"))); reason != "" {
		return reason
	}
	return fallback
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s))
}
