package fetch

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// TestCategorizeError verifies the stable category mapping, including the
// precedence of exhaustion over the wrapped last failure.
func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{
			name: "nil error",
			err:  nil,
			want: "",
		},
		{
			name: "exhaustion wins over wrapped upstream status",
			err:  fmt.Errorf("%w: %w", ErrRetriesExhausted, fmt.Errorf("%w: HTTP 503", ErrUpstreamStatus)),
			want: ErrorCategoryExhausted,
		},
		{
			name: "bare upstream status",
			err:  fmt.Errorf("%w: HTTP 404", ErrUpstreamStatus),
			want: ErrorCategoryUpstream,
		},
		{
			name: "deadline exceeded",
			err:  fmt.Errorf("request timeout: %w", context.DeadlineExceeded),
			want: ErrorCategoryTimeout,
		},
		{
			name: "canceled context",
			err:  context.Canceled,
			want: ErrorCategoryTimeout,
		},
		{
			name: "timeout by message",
			err:  errors.New("dial tcp: i/o timeout"),
			want: ErrorCategoryTimeout,
		},
		{
			name: "connection refused",
			err:  errors.New("dial tcp 127.0.0.1:80: connection refused"),
			want: ErrorCategoryNetwork,
		},
		{
			name: "dns failure",
			err:  errors.New("lookup mrms.example: no such host"),
			want: ErrorCategoryNetwork,
		},
		{
			name: "disk temp file failure",
			err:  errors.New("create temp file: permission denied"),
			want: ErrorCategoryDisk,
		},
		{
			name: "disk full",
			err:  errors.New("stream response body: no space left on device"),
			want: ErrorCategoryDisk,
		},
		{
			name: "unclassified",
			err:  errors.New("something odd"),
			want: ErrorCategoryUnknown,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CategorizeError(tc.err); got != tc.want {
				t.Errorf("CategorizeError(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}
