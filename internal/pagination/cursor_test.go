package pagination

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	original := Cursor{OrderKey: 1700000000123, ID: "0192f3a4-7b1c-7d2e-8f90-a1b2c3d4e5f6"}

	decoded, err := DecodeCursor(original.Encode())
	require.NoError(t, err)
	require.NotNil(t, decoded)
	require.Equal(t, original, *decoded)
}

func TestDecodeCursorEmptyTokenMeansFirstPage(t *testing.T) {
	decoded, err := DecodeCursor("   ")
	require.NoError(t, err)
	require.Nil(t, decoded)
}

func TestDecodeCursorRejectsMalformedTokens(t *testing.T) {
	testCases := map[string]string{
		"not-base64":    "%%%",
		"not-json":      base64.RawURLEncoding.EncodeToString([]byte("hello")),
		"unknown-field": base64.RawURLEncoding.EncodeToString([]byte(`{"k":1,"id":"a","offset":3}`)),
		"missing-id":    base64.RawURLEncoding.EncodeToString([]byte(`{"k":1}`)),
		"negative-key":  base64.RawURLEncoding.EncodeToString([]byte(`{"k":-1,"id":"a"}`)),
	}
	for name, token := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCursor(token)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidCursor), "unexpected error %v", err)
		})
	}
}

func TestNewRequestEnforcesLimitBounds(t *testing.T) {
	for _, limit := range []int{-1, 0, 101} {
		_, err := NewRequest(nil, limit)
		require.ErrorIs(t, err, ErrInvalidLimit, "limit %d", limit)
	}
	for _, limit := range []int{1, 20, 100} {
		request, err := NewRequest(nil, limit)
		require.NoError(t, err)
		require.Equal(t, limit, request.Limit)
	}
}

func TestParseRequestPropagatesCursorErrors(t *testing.T) {
	_, err := ParseRequest("%%%", 10)
	require.ErrorIs(t, err, ErrInvalidCursor)

	token := Cursor{OrderKey: 5, ID: "b"}.Encode()
	request, err := ParseRequest(token, 10)
	require.NoError(t, err)
	require.Equal(t, &Cursor{OrderKey: 5, ID: "b"}, request.Cursor)
}
