package registry

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResponse struct {
	Email     string
	Delivered bool
}

// InitializePasswordResetHandler issues a reset token for the account
// registered under the given email and delivers it through the configured
// webhook. Issuing also rotates the stored password, so the previous
// credential is dead the moment the reset is requested.
type InitializePasswordResetHandler struct {
	repo   RepositoryManager
	hooks  HookConfig
	client *HookClient
	logger Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager, hooks HookConfig) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:   repo,
		hooks:  hooks,
		client: NewHookClient(),
		logger: defLogger{},
	}
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) WithHookClient(client *HookClient) *InitializePasswordResetHandler {
	if client != nil {
		h.client = client
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	// without a delivery endpoint the token would be unreachable, fail
	// before touching the account
	if h.hooks == nil || h.hooks.GetResetHookURL() == "" {
		return NewResetHookMissingError()
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var user *User
	var creds *ResetCredentials

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return NewInvalidEmailError()
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}

		creds, err = NewResetCredentials()
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset credentials")
		}

		hash, err := HashPassword(creds.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash replacement password")
		}

		if err := h.repo.Users().SetResetCredentialsTx(ctx, tx, user.ID, creds.Token, hash, creds.ExpiresAt); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist reset credentials")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	payload := ResetHookPayload{
		Username:  user.OriginalUsername,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     event.Email,
		Token:     creds.Token,
	}
	if payload.Username == "" {
		payload.Username = user.Username
	}

	if err := h.client.Post(ctx, h.hooks.GetResetHookURL(), payload); err != nil {
		h.logger.Error("reset token hook delivery failed: %s", err)
		return NewResetHookServerError(hookStatus(err))
	}

	if event.OnResponse != nil {
		event.OnResponse(&InitializePasswordResetResponse{
			Email:     event.Email,
			Delivered: true,
		})
	}

	return nil
}

func hookStatus(err error) int {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if status, ok := richErr.Metadata["status"].(int); ok {
			return status
		}
	}
	return 0
}
