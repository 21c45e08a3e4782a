package registry_test

import (
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	registry "github.com/goliatone/go-registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		err      *goerrors.Error
		textCode string
		status   int
	}{
		{
			name:     "identical username email",
			err:      registry.NewIdenticalUsernameEmailError(),
			textCode: registry.TextCodeIdenticalUsernameEmail,
			status:   goerrors.CodeBadRequest,
		},
		{
			name:     "no username change",
			err:      registry.NewNoUsernameChangeError(),
			textCode: registry.TextCodeNoUsernameChange,
			status:   goerrors.CodeBadRequest,
		},
		{
			name:     "unique constraint",
			err:      registry.NewUniqueConstraintError("email", "taken@example.com"),
			textCode: registry.TextCodeUniqueConstraint,
			status:   goerrors.CodeBadRequest,
		},
		{
			name:     "authentication",
			err:      registry.NewAuthenticationError(),
			textCode: registry.TextCodeAuthenticationError,
			status:   goerrors.CodeUnauthorized,
		},
		{
			name:     "imported user",
			err:      registry.NewImportedUserError(),
			textCode: registry.TextCodeAuthenticationImportedUser,
			status:   goerrors.CodeUnauthorized,
		},
		{
			name:     "invalid or expired token",
			err:      registry.NewInvalidOrExpiredTokenError(),
			textCode: registry.TextCodeInvalidOrExpiredToken,
			status:   goerrors.CodeBadRequest,
		},
		{
			name:     "invalid email",
			err:      registry.NewInvalidEmailError(),
			textCode: registry.TextCodeInvalidEmail,
			status:   goerrors.CodeBadRequest,
		},
		{
			name:     "reset hook missing",
			err:      registry.NewResetHookMissingError(),
			textCode: registry.TextCodeResetHookMissing,
			status:   goerrors.CodeInternal,
		},
		{
			name:     "reset hook server error",
			err:      registry.NewResetHookServerError(502),
			textCode: registry.TextCodeResetHookServerError,
			status:   goerrors.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.textCode, tt.err.TextCode)
			assert.Equal(t, tt.status, registry.StatusFromError(tt.err))
			assert.True(t, registry.HasTextCode(tt.err, tt.textCode))
		})
	}
}

func TestUniqueConstraintErrorMetadata(t *testing.T) {
	err := registry.NewUniqueConstraintError("email", "taken@example.com")

	require.NotNil(t, err.Metadata)
	assert.Equal(t, "email", err.Metadata["field"])
	assert.Equal(t, "taken@example.com", err.Metadata["value"])
}

func TestStatusFromErrorUnknown(t *testing.T) {
	assert.Equal(t, goerrors.CodeInternal, registry.StatusFromError(errors.New("boom")))
}

func TestTranslateConstraintError(t *testing.T) {
	record := &registry.User{
		Username: "walter",
		Email:    "walter@example.com",
	}

	tests := []struct {
		name      string
		err       error
		wantField string
		wantValue string
	}{
		{
			name:      "sqlite username",
			err:       errors.New("UNIQUE constraint failed: users.username"),
			wantField: "username",
			wantValue: "walter",
		},
		{
			name:      "sqlite email",
			err:       errors.New("UNIQUE constraint failed: index 'users_lower_email_udx'"),
			wantField: "email",
			wantValue: "walter@example.com",
		},
		{
			name:      "postgres email",
			err:       errors.New(`duplicate key value violates unique constraint "users_lower_email_udx"`),
			wantField: "email",
			wantValue: "walter@example.com",
		},
		{
			name:      "postgres username",
			err:       errors.New(`duplicate key value violates unique constraint "users_username_udx"`),
			wantField: "username",
			wantValue: "walter",
		},
		{
			name:      "reset token",
			err:       errors.New(`duplicate key value violates unique constraint "users_reset_password_token_udx"`),
			wantField: "resetToken",
			wantValue: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := registry.TranslateConstraintError(tt.err, record)

			var richErr *goerrors.Error
			require.True(t, goerrors.As(got, &richErr))
			assert.Equal(t, registry.TextCodeUniqueConstraint, richErr.TextCode)
			assert.Equal(t, tt.wantField, richErr.Metadata["field"])
			if tt.wantValue != "" {
				assert.Equal(t, tt.wantValue, richErr.Metadata["value"])
			}
		})
	}
}

func TestTranslateConstraintErrorPassThrough(t *testing.T) {
	boom := errors.New("connection refused")
	assert.Equal(t, boom, registry.TranslateConstraintError(boom, nil))
	assert.NoError(t, registry.TranslateConstraintError(nil, nil))
}
