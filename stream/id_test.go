package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFormatting(t *testing.T) {
	assert.Equal(t, "a0:36:9f:4c:92:55:00:01", acceptedB.String())
	assert.Equal(t, "a0369f4c92550001", acceptedB.Hex())
	assert.False(t, acceptedB.IsZero())
	assert.True(t, ID{}.IsZero())
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    ID
		wantErr bool
	}{
		{"a0369f4c92550001", acceptedB, false},
		{"A0369F4C92550001", acceptedB, false},
		{"a0:36:9f:4c:92:55:00:01", acceptedB, false},
		{" a0369f4c92550000 ", acceptedA, false},
		{"a0369f4c925500", ID{}, true},
		{"a0:36:9f:4c:92:55:00", ID{}, true},
		{"zz369f4c92550001", ID{}, true},
		{"", ID{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseID(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMAC(t *testing.T) {
	m, err := ParseMAC("91:E0:F0:00:0e:81")
	require.NoError(t, err)
	assert.Equal(t, DefaultDestination.Offset(1), m)
	assert.True(t, m.IsMulticast())

	m, err = ParseMAC("a0369f4c9255")
	require.NoError(t, err)
	assert.False(t, m.IsMulticast())

	_, err = ParseMAC("91:E0:F0")
	assert.ErrorIs(t, err, ErrInvalidMAC)
}
