package client

import (
	"context"
	"errors"
	"strings"
)

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

// Error category constants used as metric labels (upstreamErrorsTotal, httpErrorsTotal).
const (
	ErrorCategoryTimeout      ErrorCategory = "timeout"
	ErrorCategoryNetwork      ErrorCategory = "network"
	ErrorCategoryCityNotFound ErrorCategory = "city_not_found"
	ErrorCategoryUpstreamHTTP ErrorCategory = "upstream_http"
	ErrorCategoryDataInvalid  ErrorCategory = "data_invalid"
	ErrorCategoryValidation   ErrorCategory = "validation"
	ErrorCategoryStore        ErrorCategory = "store"
	ErrorCategoryUnknown      ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory for metrics.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}
	if errors.Is(err, ErrUpstreamTimeout) {
		return ErrorCategoryTimeout
	}
	if errors.Is(err, ErrUpstreamUnavailable) {
		return ErrorCategoryNetwork
	}
	if errors.Is(err, ErrCityNotFound) {
		return ErrorCategoryCityNotFound
	}
	if errors.Is(err, ErrUpstreamHTTP) {
		return ErrorCategoryUpstreamHTTP
	}
	if errors.Is(err, ErrUpstreamDataInvalid) {
		return ErrorCategoryDataInvalid
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded") {
		return ErrorCategoryTimeout
	}
	if strings.Contains(errStr, "network") || strings.Contains(errStr, "connection") {
		return ErrorCategoryNetwork
	}
	if strings.Contains(errStr, "parse") || strings.Contains(errStr, "unmarshal") {
		return ErrorCategoryDataInvalid
	}
	if strings.Contains(errStr, "invalid") || strings.Contains(errStr, "validation") {
		return ErrorCategoryValidation
	}
	if strings.Contains(errStr, "database") || strings.Contains(errStr, "sql") {
		return ErrorCategoryStore
	}

	return ErrorCategoryUnknown
}
