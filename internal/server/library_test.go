package server

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"00008000-b38d-4985-720e-0f993a68ee41", "00008000b38d4985720e0f993a68ee41"},
		{"{00008000-B38D-4985-720E-0F993A68EE41}", "00008000b38d4985720e0f993a68ee41"},
		{"0000180f-0000-1000-8000-00805f9b34fb", "180f"},
		{"00002A19-0000-1000-8000-00805F9B34FB", "2a19"},
		{"0x2A19", "2a19"},
		{" 180F ", "180f"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeUUID(tt.in))
		})
	}
}

func TestPermission(t *testing.T) {
	assert.Equal(t, "read|write", PermReadWrite.String())
	assert.Equal(t, "notify", PermNotify.String())
	assert.Equal(t, "none", Permission(0).String())
	assert.True(t, PermReadWrite.Has(PermWrite))
	assert.False(t, PermRead.Has(PermReadWrite))
}

func TestNotFoundError_Is(t *testing.T) {
	err := fmt.Errorf("lookup: %w", &NotFoundError{Resource: "characteristic", UUID: "2a19"})

	assert.ErrorIs(t, err, ErrCharacteristicNotFound)
	assert.NotErrorIs(t, err, ErrServiceNotFound)
	assert.ErrorIs(t, err, &NotFoundError{Resource: "characteristic", UUID: "2a19"})
	assert.NotErrorIs(t, err, &NotFoundError{Resource: "characteristic", UUID: "180f"})

	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
	assert.Equal(t, `characteristic "2a19" not found`, nf.Error())
}

func TestDecodeUint32(t *testing.T) {
	v, err := decodeUint32([]byte{0x60, 0xEA, 0x00, 0x00, 0xFF})
	assert.NoError(t, err)
	assert.Equal(t, uint32(60000), v)

	_, err = decodeUint32([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidValueSize)
	assert.Equal(t, []byte{0x60, 0xEA, 0, 0}, encodeUint32(60000))
}
