package registry

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	FirstName   string `json:"firstname"`
	LastName    string `json:"lastname"`
	Institution string `json:"institution"`
	UseHashid   bool
	OnResponse  func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserResponse struct {
	User *User
}

type RegisterUserHandler struct {
	repo   RepositoryManager
	hooks  HookConfig
	client *HookClient
	logger Logger
}

// NewRegisterUserHandler creates a handler with sane defaults. The hook
// config may be nil, in which case no creation webhook fires.
func NewRegisterUserHandler(repo RepositoryManager, hooks HookConfig) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:   repo,
		hooks:  hooks,
		client: NewHookClient(),
		logger: defLogger{},
	}
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) WithHookClient(client *HookClient) *RegisterUserHandler {
	if client != nil {
		h.client = client
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	user := &User{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Username = event.Username
		user.Email = event.Email
		user.Role = event.Role
		user.FirstName = normalizeOptional(&event.FirstName)
		user.LastName = normalizeOptional(&event.LastName)
		user.Institution = normalizeOptional(&event.Institution)

		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	if err := h.notifyCreated(ctx, event, user); err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(&RegisterUserResponse{User: user})
	}

	return nil
}

// notifyCreated posts the created user's fields, plus any configured extra
// data, to the create hook. No URL configured means no delivery.
func (h *RegisterUserHandler) notifyCreated(ctx context.Context, event RegisterUserMessage, user *User) error {
	if h.hooks == nil {
		return nil
	}

	url := h.hooks.GetCreateHookURL()
	if url == "" {
		return nil
	}

	payload := map[string]any{
		"id":       user.ID.String(),
		"username": user.Username,
		"email":    user.Email,
		"role":     user.Role,
	}
	if user.FirstName != nil {
		payload["firstname"] = *user.FirstName
	}
	if user.LastName != nil {
		payload["lastname"] = *user.LastName
	}
	if user.Institution != nil {
		payload["institution"] = *user.Institution
	}
	for k, v := range h.hooks.GetCreateHookData() {
		payload[k] = v
	}

	if err := h.client.Post(ctx, url, payload); err != nil {
		h.logger.Error("user create hook delivery failed: %s", err)
		return err
	}

	return nil
}
