package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "licensegate/internal/errors"
)

func TestEncodeMachineList(t *testing.T) {
	tests := []struct {
		name     string
		machines []string
		want     string
		wantErr  bool
	}{
		{name: "empty list", machines: nil, want: ""},
		{name: "single machine", machines: []string{"M1"}, want: "M1"},
		{name: "order preserved", machines: []string{"M2", "M1", "M3"}, want: "M2,M1,M3"},
		{name: "whitespace trimmed", machines: []string{" M1 ", "M2"}, want: "M1,M2"},
		{name: "empty segments dropped", machines: []string{"M1", "", "M2"}, want: "M1,M2"},
		{name: "embedded delimiter rejected", machines: []string{"M1,M2"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeMachineList(tt.machines)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrInvalidMachineID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeMachineList(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
		want    []string
	}{
		{name: "empty string", encoded: "", want: nil},
		{name: "whitespace only", encoded: "   ", want: nil},
		{name: "single machine", encoded: "M1", want: []string{"M1"}},
		{name: "multiple machines", encoded: "M1,M2,M3", want: []string{"M1", "M2", "M3"}},
		{name: "spaces around segments", encoded: " M1 , M2 ", want: []string{"M1", "M2"}},
		{name: "stray separators", encoded: ",M1,,M2,", want: []string{"M1", "M2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeMachineList(tt.encoded))
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	machines := []string{"mac-host-1", "win.host.2", "linux_host_3"}
	encoded, err := EncodeMachineList(machines)
	require.NoError(t, err)
	assert.Equal(t, machines, DecodeMachineList(encoded))
}

func TestValidMachineID(t *testing.T) {
	assert.True(t, ValidMachineID("M1"))
	assert.False(t, ValidMachineID(""))
	assert.False(t, ValidMachineID("M1,M2"))
}
