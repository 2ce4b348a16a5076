package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "Prefixed lower case",
			input: "0x00000000000000000000000000000000000000a1",
			want:  "0x00000000000000000000000000000000000000a1",
		},
		{
			name:  "Bare upper case",
			input: "00000000000000000000000000000000000000A1",
			want:  "0x00000000000000000000000000000000000000a1",
		},
		{
			name:  "Surrounding spaces",
			input: "  0X00000000000000000000000000000000000000a1 ",
			want:  "0x00000000000000000000000000000000000000a1",
		},
		{name: "Empty", input: "", wantErr: true},
		{name: "Prefix only", input: "0x", wantErr: true},
		{name: "Too short", input: "0x1234", wantErr: true},
		{name: "Not hex", input: "0xzz000000000000000000000000000000000000a1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := ParseAddress(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, addr.String())
		})
	}
}

func TestParseAsset(t *testing.T) {
	asset, err := ParseAsset("")
	require.NoError(t, err)
	assert.True(t, asset.IsNative())
	assert.Equal(t, NativeAsset, asset)

	asset, err = ParseAsset("0x00000000000000000000000000000000000000b2")
	require.NoError(t, err)
	assert.False(t, asset.IsNative())

	_, err = ParseAsset("bogus")
	assert.Error(t, err)
}

func TestAddress_RoundTrip(t *testing.T) {
	original := Address{0xde, 0xad, 0xbe, 0xef}

	parsed, err := ParseAddress(original.String())
	require.NoError(t, err)
	assert.Equal(t, original, parsed)

	data, err := json.Marshal(map[string]Address{"account": original})
	require.NoError(t, err)

	var decoded map[string]Address
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded["account"])
}
