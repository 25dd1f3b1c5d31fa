package internal

import "testing"

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"ERROR", LogLevelError},
		{"warn", LogLevelWarn},
		{" Info ", LogLevelInfo},
		{"DEBUG", LogLevelDebug},
		{"TRACE", LogLevelTrace},
		{"", LogLevelInfo},
		{"verbose", LogLevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestLoggerWithKeepsLevel(t *testing.T) {
	l := NewLogger(LogLevelWarn)
	child := l.With("run_id", "abc")
	if child.GetLevel() != LogLevelWarn {
		t.Errorf("child level = %d, want %d", child.GetLevel(), LogLevelWarn)
	}
	// Below-threshold calls must be no-ops.
	child.Debug("ignored %d", 1)
	child.Trace("ignored %d", 2)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Error("discarded %s", "error")
	l.Info("discarded")
	l.Sync()
}
