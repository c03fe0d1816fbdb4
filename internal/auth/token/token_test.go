package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/auric-labs/personagate/internal/auth/token"
)

func TestNew(t *testing.T) {
	t.Parallel()

	exp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tok, err := token.New("secret-value-1234", &exp)
	require.NoError(t, err)
	require.Equal(t, "secret-value-1234", tok.Value())
	require.Equal(t, exp, *tok.ExpiresAt())

	_, err = token.New("   ", nil)
	require.Error(t, err)
}

func TestStringMasksValue(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		value string
		want  string
	}{
		{
			name:  "long value",
			value: "secret-value-1234",
			want:  "*************1234",
		},
		{
			name:  "short value fully masked",
			value: "abcd",
			want:  "****",
		},
		{
			name:  "two characters",
			value: "ab",
			want:  "**",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tok, err := token.New(tc.value, nil)
			require.NoError(t, err)
			require.Equal(t, tc.want, tok.String())
		})
	}
}

func TestExtendReturnsNewToken(t *testing.T) {
	t.Parallel()

	exp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tok, err := token.New("secret-value-1234", &exp)
	require.NoError(t, err)

	extended := tok.Extend(time.Hour)
	require.Equal(t, exp.Add(time.Hour), *extended.ExpiresAt())
	require.Equal(t, exp, *tok.ExpiresAt(), "original token must be unchanged")
	require.Equal(t, tok.Value(), extended.Value())

	noExpiry, err := token.New("secret-value-1234", nil)
	require.NoError(t, err)
	require.Nil(t, noExpiry.Extend(time.Hour).ExpiresAt())
}

// Expiry reported by the value object is advisory only: the upstream provider
// is the single source of truth for token validity, so even a token whose
// stamped expiry is long past must report itself usable.
func TestExpiryIsAdvisory(t *testing.T) {
	t.Parallel()

	past := time.Now().UTC().Add(-24 * time.Hour)
	tok, err := token.New("secret-value-1234", &past)
	require.NoError(t, err)

	require.False(t, tok.IsExpired())
	require.False(t, tok.ShouldRefresh())
	require.Equal(t, time.Duration(1<<63-1), tok.TimeUntilExpiration())
}

func TestRecordExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	testCases := []struct {
		name string
		rec  token.Record
		want bool
	}{
		{
			name: "no expiry never purged",
			rec:  token.Record{Value: "v"},
			want: false,
		},
		{
			name: "future expiry kept",
			rec:  token.Record{Value: "v", ExpiresAt: &future},
			want: false,
		},
		{
			name: "past expiry purged",
			rec:  token.Record{Value: "v", ExpiresAt: &past},
			want: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, tc.rec.Expired(now))
		})
	}
}

func TestRecordToken(t *testing.T) {
	t.Parallel()

	exp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := token.Record{Value: "secret-value-1234", ExpiresAt: &exp, CreatedAt: exp.Add(-time.Hour)}

	tok, err := rec.Token()
	require.NoError(t, err)
	require.Equal(t, rec.Value, tok.Value())
	require.Equal(t, exp, *tok.ExpiresAt())
}
