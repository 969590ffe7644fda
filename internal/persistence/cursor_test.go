package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/biastrack/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	cursor := &domain.Cursor{
		Timestamp: time.Date(2025, time.November, 3, 12, 0, 0, 123456789, time.UTC),
		ID:        "b-7",
	}

	token := EncodeCursor(cursor)
	require.NotEmpty(t, token)

	decoded, err := DecodeCursor(token)
	require.NoError(t, err)
	require.True(t, decoded.Timestamp.Equal(cursor.Timestamp))
	require.Equal(t, "b-7", decoded.ID)
}

func TestEncodeCursorNil(t *testing.T) {
	require.Empty(t, EncodeCursor(nil))
}

func TestDecodeCursorEmpty(t *testing.T) {
	cursor, err := DecodeCursor("")
	require.NoError(t, err)
	require.Nil(t, cursor)
}

func TestDecodeCursorInvalid(t *testing.T) {
	_, err := DecodeCursor("not-base64!")
	require.Error(t, err)

	// Valid base64 but missing the separator.
	_, err = DecodeCursor("bm8tc2VwYXJhdG9y")
	require.Error(t, err)
}

func TestCursorIDMayContainSeparator(t *testing.T) {
	cursor := &domain.Cursor{
		Timestamp: time.Date(2025, time.November, 3, 12, 0, 0, 0, time.UTC),
		ID:        "weird|id",
	}

	decoded, err := DecodeCursor(EncodeCursor(cursor))
	require.NoError(t, err)
	require.Equal(t, "weird|id", decoded.ID)
}
