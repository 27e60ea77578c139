package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckVersionCompatibility(t *testing.T) {
	tests := []struct {
		name          string
		reader        string
		writer        string
		expectError   bool
		errorContains string
	}{
		{name: "exact match", reader: "0.3.0", writer: "0.3.0"},
		{name: "reader patch higher", reader: "0.3.2", writer: "0.3.0"},
		{name: "report patch higher", reader: "0.3.0", writer: "0.3.7"},
		{name: "v prefix", reader: "v0.3.0", writer: "0.3.1"},
		{name: "prerelease report", reader: "0.3.0", writer: "0.3.0-rc.1"},
		{name: "development reader", reader: "main", writer: "1.0.0"},
		{name: "development report", reader: "0.3.0", writer: "main"},
		{
			name:          "minor differs",
			reader:        "0.4.0",
			writer:        "0.3.0",
			expectError:   true,
			errorContains: "minor version mismatch",
		},
		{
			name:          "major differs",
			reader:        "1.3.0",
			writer:        "0.3.0",
			expectError:   true,
			errorContains: "major version mismatch",
		},
		{
			name:          "invalid reader",
			reader:        "latest",
			writer:        "0.3.0",
			expectError:   true,
			errorContains: "invalid reader version",
		},
		{
			name:          "missing report version",
			reader:        "0.3.0",
			writer:        "",
			expectError:   true,
			errorContains: "invalid report version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckVersionCompatibility(tt.reader, tt.writer)

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
