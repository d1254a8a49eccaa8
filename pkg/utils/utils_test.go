package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")

	logger, err := NewLogger(LoggerConfig{
		Level:      "warn",
		OutputPath: path,
		Format:     "json",
		Service:    "cpq-approval",
	})
	require.NoError(t, err)

	logger.Info("dropped below level")
	logger.Warn("step overdue")
	require.NoError(t, logger.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "step overdue", entry["msg"])
	assert.Equal(t, "cpq-approval", entry["service"])
	assert.Contains(t, entry, "timestamp")
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(LoggerConfig{Level: "verbose"})
	assert.Error(t, err)

	logger, err := NewLogger(LoggerConfig{Level: "DEBUG", Format: "console", OutputPath: "stderr"})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("buyer@acme.com"))
	assert.Error(t, ValidateEmail("buyer@acme"))
	assert.Error(t, ValidateEmail("not an email"))
}

func TestPercentHelpers(t *testing.T) {
	tests := []struct {
		in      string
		valid   bool
		clamped string
	}{
		{"0", true, "0"},
		{"12.5", true, "12.5"},
		{"100", true, "100"},
		{"-1", false, "0"},
		{"100.01", false, "100"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p := decimal.RequireFromString(tt.in)
			err := ValidatePercent("discount_percent", p)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
			assert.True(t, ClampPercent(p).Equal(decimal.RequireFromString(tt.clamped)))
		})
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Acme Corp", SanitizeString("  Acme\x00 Corp\x07 "))
	assert.Equal(t, "line\nbreak", SanitizeString("line\nbreak"))
}
