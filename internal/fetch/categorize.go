package fetch

import (
	"context"
	"errors"
	"strings"
)

// ErrorCategory is a stable label for error classification in metrics and logs.
type ErrorCategory string

const (
	ErrorCategoryTimeout   ErrorCategory = "timeout"
	ErrorCategoryNetwork   ErrorCategory = "network"
	ErrorCategoryUpstream  ErrorCategory = "upstream_status"
	ErrorCategoryExhausted ErrorCategory = "retries_exhausted"
	ErrorCategoryDisk      ErrorCategory = "disk"
	ErrorCategoryUnknown   ErrorCategory = "unknown"
)

// CategorizeError maps a fetch error to a stable ErrorCategory.
// Exhaustion is reported ahead of the wrapped last failure so dashboards can
// separate "gave up" from individual attempt noise.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrRetriesExhausted) {
		return ErrorCategoryExhausted
	}
	if errors.Is(err, ErrUpstreamStatus) {
		return ErrorCategoryUpstream
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return ErrorCategoryTimeout
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "no such host") {
		return ErrorCategoryNetwork
	}
	if strings.Contains(errStr, "temp file") || strings.Contains(errStr, "rename") ||
		strings.Contains(errStr, "no space") {
		return ErrorCategoryDisk
	}

	return ErrorCategoryUnknown
}
