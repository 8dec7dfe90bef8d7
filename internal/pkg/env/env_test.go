package env

import (
	"log/slog"
	"testing"
	"time"
)

func TestGet(t *testing.T) {
	t.Setenv("EMISSIONS_TEST_VALUE", "set")
	if got := Get("EMISSIONS_TEST_VALUE", "default"); got != "set" {
		t.Errorf("Get() = %q, want set", got)
	}
	if got := Get("EMISSIONS_TEST_MISSING", "default"); got != "default" {
		t.Errorf("Get() = %q, want default", got)
	}
}

func TestGetInt(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    int
		wantErr bool
	}{
		{name: "unset uses default", value: "", want: 7},
		{name: "valid", value: "42", want: 42},
		{name: "invalid", value: "forty", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("EMISSIONS_TEST_INT", tt.value)
			got, err := GetInt("EMISSIONS_TEST_INT", 7)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetInt() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("GetInt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetFloat(t *testing.T) {
	t.Setenv("EMISSIONS_TEST_FLOAT", "2.5")
	got, err := GetFloat("EMISSIONS_TEST_FLOAT", 1)
	if err != nil || got != 2.5 {
		t.Errorf("GetFloat() = %v, %v", got, err)
	}
	t.Setenv("EMISSIONS_TEST_FLOAT", "x")
	if _, err := GetFloat("EMISSIONS_TEST_FLOAT", 1); err == nil {
		t.Error("expected error for invalid float")
	}
}

func TestGetDuration(t *testing.T) {
	t.Setenv("EMISSIONS_TEST_DURATION", "90s")
	got, err := GetDuration("EMISSIONS_TEST_DURATION", time.Minute)
	if err != nil || got != 90*time.Second {
		t.Errorf("GetDuration() = %v, %v", got, err)
	}

	t.Setenv("EMISSIONS_TEST_DURATION", "")
	got, err = GetDuration("EMISSIONS_TEST_DURATION", time.Minute)
	if err != nil || got != time.Minute {
		t.Errorf("GetDuration() default = %v, %v", got, err)
	}

	t.Setenv("EMISSIONS_TEST_DURATION", "soon")
	if _, err := GetDuration("EMISSIONS_TEST_DURATION", time.Minute); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestGetBool(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    bool
		wantErr bool
	}{
		{name: "unset uses default", value: "", want: true},
		{name: "false", value: "false", want: false},
		{name: "one", value: "1", want: true},
		{name: "invalid", value: "yes please", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("EMISSIONS_TEST_BOOL", tt.value)
			got, err := GetBool("EMISSIONS_TEST_BOOL", true)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetBool() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("GetBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		value string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.value)
			if got := ParseLogLevel(slog.LevelInfo); got != tt.want {
				t.Errorf("ParseLogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}
