package errors

import (
	"fmt"
	"testing"

	"datanomics/domain/core"

	"github.com/stretchr/testify/assert"
)

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", ValidationError("Please select a file first"), CodeValidationError},
		{"wrapped validation", Wrap(ValidationError("No data to export"), "export"), CodeValidationError},
		{"database", DatabaseError("failed to ping database", assert.AnError), CodeDatabaseError},
		{"gateway", &GatewayError{Status: 500, Message: "worker crashed"}, CodeGatewayError},
		{"invalid response", InvalidResponse(200, "missing summary", nil), CodeGatewayError},
		{"in flight", core.NewInFlightError("run-model"), CodeInFlight},
		{"stale", fmt.Errorf("clean: %w", core.ErrStaleResponse), CodeStaleResponse},
		{"plain", assert.AnError, "UNKNOWN"},
		{"nil", nil, "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetCode(tt.err))
		})
	}
}

func TestGatewayError_NetworkOnlyWithoutStatus(t *testing.T) {
	tests := []struct {
		name    string
		err     *GatewayError
		network bool
	}{
		{"transport failure", NetworkFailure(assert.AnError), true},
		{"malformed success", InvalidResponse(200, "empty response body", nil), false},
		{"rejection", &GatewayError{Status: 400, Message: "Unsupported file type"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.network, tt.err.Network())
		})
	}
}
