package registry

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ImportUsersMessage struct {
	// OriginalIDs are the upstream record ids being mapped onto placeholder
	// accounts.
	OriginalIDs []int64
	OnResponse  func(resp *ImportUsersResponse)
}

func (e ImportUsersMessage) Type() string { return "user.import" }

type ImportUsersResponse struct {
	// IDMap maps each original id to the placeholder account created for it.
	IDMap map[int64]uuid.UUID
}

// ImportUsersHandler bulk-creates placeholder accounts with the import role.
// They hold a seat for externally sourced records and can never log in.
type ImportUsersHandler struct {
	repo   RepositoryManager
	logger Logger
}

func NewImportUsersHandler(repo RepositoryManager) *ImportUsersHandler {
	return &ImportUsersHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

func (h *ImportUsersHandler) WithLogger(logger Logger) *ImportUsersHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ImportUsersHandler) Execute(ctx context.Context, event ImportUsersMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user import",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ImportUsersHandler) execute(ctx context.Context, event ImportUsersMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*30)
	defer cancel()

	idMap := make(map[int64]uuid.UUID, len(event.OriginalIDs))

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, originalID := range event.OriginalIDs {
			username := fmt.Sprintf("username_%d", originalID)
			email := fmt.Sprintf("%s@dummy.com", username)

			record := &User{
				Username:     username,
				Email:        email,
				Role:         RoleImport,
				PasswordHash: RandomPasswordHash(),
			}

			// deterministic ids keep repeated imports idempotent per email
			if id, err := hashid.NewUUID(email); err == nil {
				record.ID = id
			}

			created, err := h.repo.Users().RegisterTx(ctx, tx, record)
			if err != nil {
				return err
			}

			idMap[originalID] = created.ID
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user import transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(&ImportUsersResponse{IDMap: idMap})
	}

	return nil
}
