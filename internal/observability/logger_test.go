package observability

import (
	"testing"

	"go.uber.org/zap"
)

// TestNewLogger verifies construction succeeds and logging does not panic.
func TestNewLogger(t *testing.T) {
	logger, err := NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Info("test message", zap.String("key", "value"))
	_ = logger.Sync()
}

// TestParseLogLevel verifies LOG_LEVEL parsing, including the info default
// for unknown values.
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "DEBUG", want: "debug"},
		{in: "debug", want: "debug"},
		{in: " warn ", want: "warn"},
		{in: "ERROR", want: "error"},
		{in: "", want: "info"},
		{in: "bogus", want: "info"},
	}
	for _, tc := range tests {
		if got := parseLogLevel(tc.in).String(); got != tc.want {
			t.Errorf("parseLogLevel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
