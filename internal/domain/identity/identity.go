// Package identity defines the string-wrapping identifier value objects used
// across the request orchestration core.
package identity

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	apperr "github.com/auric-labs/personagate/internal/errors"
)

var (
	validate     = newValidator()
	identifierRx = regexp.MustCompile(`^[a-zA-Z0-9 ._-]+$`)

	// Names that could collide with system actors or mention keywords.
	reservedNames = map[string]struct{}{
		"system":   {},
		"admin":    {},
		"root":     {},
		"everyone": {},
		"here":     {},
	}
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierRx.MatchString(fl.Field().String())
	})
	return v
}

func newIdentifier(kind, value string) (string, error) {
	if err := validate.Var(value, "required,min=2,max=100,identifier"); err != nil {
		return "", apperr.NewValidationError(
			kind+" must be 2-100 characters of letters, digits, spaces, hyphens, underscores or periods", err)
	}
	if _, ok := reservedNames[strings.ToLower(value)]; ok {
		return "", apperr.Validationf("%s %q is reserved", kind, value)
	}
	return value, nil
}

// UserID identifies a platform user.
type UserID struct {
	value string
}

func NewUserID(value string) (UserID, error) {
	v, err := newIdentifier("user id", value)
	if err != nil {
		return UserID{}, err
	}
	return UserID{value: v}, nil
}

func (id UserID) String() string { return id.value }
func (id UserID) IsZero() bool   { return id.value == "" }

// PersonalityID identifies an AI persona.
type PersonalityID struct {
	value string
}

func NewPersonalityID(value string) (PersonalityID, error) {
	v, err := newIdentifier("personality id", value)
	if err != nil {
		return PersonalityID{}, err
	}
	return PersonalityID{value: v}, nil
}

func (id PersonalityID) String() string { return id.value }
func (id PersonalityID) IsZero() bool   { return id.value == "" }

// AIRequestID identifies one logical AI call.
type AIRequestID struct {
	value string
}

func NewAIRequestID(value string) (AIRequestID, error) {
	v, err := newIdentifier("ai request id", value)
	if err != nil {
		return AIRequestID{}, err
	}
	return AIRequestID{value: v}, nil
}

func (id AIRequestID) String() string { return id.value }
func (id AIRequestID) IsZero() bool   { return id.value == "" }

// ConversationID identifies an active back-and-forth in one channel.
type ConversationID struct {
	value string
}

func NewConversationID(value string) (ConversationID, error) {
	v, err := newIdentifier("conversation id", value)
	if err != nil {
		return ConversationID{}, err
	}
	return ConversationID{value: v}, nil
}

func (id ConversationID) String() string { return id.value }
func (id ConversationID) IsZero() bool   { return id.value == "" }
