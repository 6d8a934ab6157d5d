package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum_KnownValues(t *testing.T) {
	// djb2 of the empty input is the seed itself.
	assert.Equal(t, "00001505", Checksum(nil))
	// 5381*33 + 'a'(97) = 177670 = 0x2b606
	assert.Equal(t, "0002b606", Checksum([]byte("a")))
	assert.Len(t, Checksum([]byte("a much longer document that overflows 32 bits")), 8)
}

func TestChecksum_RoundTrip(t *testing.T) {
	s := NewDefaultState(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	s.Medications = append(s.Medications, Medication{ID: "med-1", ProfileID: DefaultProfileID, Name: "Ibuprofen <200mg>"})

	data, err := MarshalState(s)
	require.NoError(t, err)

	sum := Checksum(data)
	assert.True(t, VerifyChecksum(data, sum))
	assert.True(t, VerifyChecksum(data, "  "+sum+"\n"), "surrounding whitespace is ignored")
}

func TestChecksum_SingleByteMutation(t *testing.T) {
	s := NewDefaultState(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	data, err := MarshalState(s)
	require.NoError(t, err)
	sum := Checksum(data)

	for _, i := range []int{0, len(data) / 2, len(data) - 1} {
		mutated := append([]byte(nil), data...)
		mutated[i] ^= 0x01
		assert.False(t, VerifyChecksum(mutated, sum), "mutation at byte %d must be detected", i)
	}
}

func TestChecksum_UTF8Bytes(t *testing.T) {
	// "é" is two UTF-8 bytes: 0xC3 0xA9.
	assert.Equal(t, Checksum([]byte("é")), Checksum([]byte{0xC3, 0xA9}))
	assert.Equal(t, "00598411", Checksum([]byte("é")))
}

func TestMarshalState_NoHTMLEscaping(t *testing.T) {
	s := NewDefaultState(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	s.Profiles[0].Name = "<Tom & Jerry>"
	data, err := MarshalState(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<Tom & Jerry>")
	assert.NotEqual(t, byte('\n'), data[len(data)-1])
}

func TestMarshalState_EmptyActiveProfileIsNull(t *testing.T) {
	s := NewDefaultState(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	s.Profiles = nil
	s.ActiveProfileID = ""
	data, err := MarshalState(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"activeProfileId":null`)
	assert.NotContains(t, string(data), `"activeProfileId":""`)

	back, err := UnmarshalState(data)
	require.NoError(t, err)
	assert.Empty(t, back.ActiveProfileID)

	s = NewDefaultState(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	data, err = MarshalState(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"activeProfileId":"`+s.ActiveProfileID+`"`)
	assert.Equal(t, 1, strings.Count(string(data), `"activeProfileId"`))
}
