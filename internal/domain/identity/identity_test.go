package identity_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/auric-labs/personagate/internal/domain/identity"
)

func TestNewUserID(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:  "simple alphanumeric",
			input: "user123",
		},
		{
			name:  "with spaces and punctuation",
			input: "Jane Doe v2.0_final-draft",
		},
		{
			name:  "minimum length",
			input: "ab",
		},
		{
			name:  "maximum length",
			input: strings.Repeat("a", 100),
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "single character",
			input:   "a",
			wantErr: true,
		},
		{
			name:    "over maximum length",
			input:   strings.Repeat("a", 101),
			wantErr: true,
		},
		{
			name:    "illegal characters",
			input:   "user@example",
			wantErr: true,
		},
		{
			name:    "reserved name",
			input:   "system",
			wantErr: true,
		},
		{
			name:    "reserved name mixed case",
			input:   "Admin",
			wantErr: true,
		},
		{
			name:    "mention keyword",
			input:   "everyone",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			id, err := identity.NewUserID(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				require.True(t, id.IsZero())
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.input, id.String())
		})
	}
}

func TestIdentifierKindsShareValidation(t *testing.T) {
	t.Parallel()

	_, err := identity.NewPersonalityID("root")
	require.Error(t, err)

	_, err = identity.NewAIRequestID("x")
	require.Error(t, err)

	_, err = identity.NewConversationID("channel-42")
	require.NoError(t, err)
}
