package logging

import "testing"

func TestSetLevelOverridesEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")

	SetLevel(LevelDebug)
	if got := GetLevel(); got != LevelDebug {
		t.Errorf("GetLevel() = %v, want %v", got, LevelDebug)
	}
	if !IsDebugEnabled() {
		t.Error("IsDebugEnabled() = false after SetLevel(LevelDebug)")
	}

	SetLevel(LevelWarn)
	if got := GetLevel(); got != LevelWarn {
		t.Errorf("GetLevel() = %v, want %v", got, LevelWarn)
	}
	if IsDebugEnabled() {
		t.Error("IsDebugEnabled() = true at warn level")
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(42), "unknown(42)"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", int(tt.level), got, tt.want)
		}
	}
}

func TestLevelFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		debug    string
		logLevel string
		want     LogLevel
	}{
		{"default", "", "", LevelInfo},
		{"debug shortcut", "true", "", LevelDebug},
		{"debug numeric", "1", "", LevelDebug},
		{"debug off falls through", "0", "warn", LevelWarn},
		{"explicit debug", "", "debug", LevelDebug},
		{"explicit warning alias", "", "warning", LevelWarn},
		{"explicit error", "", "error", LevelError},
		{"garbage", "", "verbose", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DEBUG", tt.debug)
			t.Setenv("LOG_LEVEL", tt.logLevel)
			if got := levelFromEnv(); got != tt.want {
				t.Errorf("levelFromEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}
