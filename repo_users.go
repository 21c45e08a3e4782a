package registry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}

// SetResetCredentialsSQL rotates the stored credential the moment a reset is
// requested: the previous password stops working at issuance, not at
// redemption.
var SetResetCredentialsSQL = `UPDATE "users" AS "usr"
SET
	"reset_password_token" = ?,
	"reset_password_expires" = ?,
	"password_hash" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

// ConsumeResetCredentialsSQL installs the user supplied password and clears
// the single-use token in the same statement.
var ConsumeResetCredentialsSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"reset_password_token" = NULL,
	"reset_password_expires" = NULL
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

// ListFilter narrows List results by role. The zero value applies the
// default visibility: clinician and participant accounts only.
type ListFilter struct {
	Role string
}

// UserPatch carries a partial profile update. Nil fields are untouched;
// blank optional fields are normalized to NULL.
type UserPatch struct {
	Username    *string `json:"username"`
	Email       *string `json:"email"`
	Password    *string `json:"password"`
	FirstName   *string `json:"firstname"`
	LastName    *string `json:"lastname"`
	Institution *string `json:"institution"`
}

type Users interface {
	repository.Repository[*User]

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetByResetToken(ctx context.Context, token string) (*User, error)
	GetByResetTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error)

	ListByRole(ctx context.Context, filter ListFilter) ([]*User, error)

	UpdateProfile(ctx context.Context, id uuid.UUID, patch UserPatch) (*User, error)
	UpdateProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID, patch UserPatch) (*User, error)

	SetResetCredentials(ctx context.Context, id uuid.UUID, token, passwordHash string, expiresAt time.Time) error
	SetResetCredentialsTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token, passwordHash string, expiresAt time.Time) error
	ConsumeResetCredentialsTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error

	Remove(ctx context.Context, id uuid.UUID) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if user.Username != "" && user.Username == user.Email {
		return nil, NewIdenticalUsernameEmailError()
	}

	prepareUserDefaults(user)

	created, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		return nil, TranslateConstraintError(err, user)
	}

	return created, nil
}

// GetByIdentifier locates the account behind an identifier. Identifiers
// that parse as a uuid probe the id column first, so decoded sessions
// resolve back to their account. Otherwise an exact username match wins;
// failing that, the identifier is matched against accounts whose username
// is derived from their email, case-insensitively. The probes never
// overlap on a single lookup.
func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	trimmed := strings.TrimSpace(identifier)

	probe := func(apply func(*bun.SelectQuery) *bun.SelectQuery) (*User, error) {
		record := &User{}
		q := tx.NewSelect().Model(record)
		for _, c := range criteria {
			q.Apply(c)
		}
		err := apply(q).Limit(1).Scan(ctx)
		if err != nil {
			return nil, err
		}
		return record, nil
	}

	// uuid shaped identifiers come from decoded sessions, not login forms
	if _, uerr := uuid.Parse(trimmed); uerr == nil {
		record, err := probe(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.id = ?", trimmed)
		})
		if err == nil {
			return record, nil
		}
		if !isNoRows(err) {
			return nil, err
		}
	}

	record, err := probe(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.username = ?", trimmed)
	})
	if err == nil {
		return record, nil
	}
	if !isNoRows(err) {
		return nil, err
	}

	record, err = probe(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("?TableAlias.username = lower(?TableAlias.email)").
			Where("?TableAlias.username = ?", strings.ToLower(trimmed))
	})
	if err == nil {
		return record, nil
	}
	if !isNoRows(err) {
		return nil, err
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("lower(?TableAlias.email) = lower(?)", strings.TrimSpace(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isNoRows(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": email})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) GetByResetToken(ctx context.Context, token string) (*User, error) {
	return a.GetByResetTokenTx(ctx, a.db, token)
}

func (a *users) GetByResetTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.reset_password_token = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isNoRows(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

// ListByRole narrows the embedded List to the role visibility rules: by
// default only clinician and participant accounts are returned.
func (a *users) ListByRole(ctx context.Context, filter ListFilter) ([]*User, error) {
	roles := listRoles(filter.Role)

	var records []*User
	err := a.db.NewSelect().
		Model(&records).
		Column("id", "username", "email", "user_role", "firstname", "lastname", "institution", "created_at").
		Where("?TableAlias.user_role IN (?)", bun.In(roles)).
		OrderExpr("?TableAlias.username ASC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *users) UpdateProfile(ctx context.Context, id uuid.UUID, patch UserPatch) (*User, error) {
	return a.UpdateProfileTx(ctx, a.db, id, patch)
}

func (a *users) UpdateProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID, patch UserPatch) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isNoRows(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}

	// derived-username state is decided before the patch mutates anything
	derived := record.HasDerivedUsername()

	cols := []string{"updated_at"}

	if patch.Username != nil {
		if derived {
			return nil, NewNoUsernameChangeError()
		}
		record.Username = *patch.Username
		cols = append(cols, "username")
	}

	if patch.Email != nil {
		record.Email = *patch.Email
		cols = append(cols, "email")
		if derived {
			record.Username = strings.ToLower(*patch.Email)
			cols = append(cols, "username")
		}
	}

	if patch.Password != nil {
		hash, err := HashPassword(*patch.Password)
		if err != nil {
			return nil, err
		}
		record.PasswordHash = hash
		cols = append(cols, "password_hash")
	}

	if patch.FirstName != nil {
		record.FirstName = normalizeOptional(patch.FirstName)
		cols = append(cols, "firstname")
	}

	if patch.LastName != nil {
		record.LastName = normalizeOptional(patch.LastName)
		cols = append(cols, "lastname")
	}

	if patch.Institution != nil {
		record.Institution = normalizeOptional(patch.Institution)
		cols = append(cols, "institution")
	}

	now := time.Now()
	record.UpdatedAt = &now

	if _, err := tx.NewUpdate().
		Model(record).
		Column(cols...).
		WherePK().
		Exec(ctx); err != nil {
		return nil, TranslateConstraintError(err, record)
	}

	return record, nil
}

func (a *users) SetResetCredentials(ctx context.Context, id uuid.UUID, token, passwordHash string, expiresAt time.Time) error {
	return a.SetResetCredentialsTx(ctx, a.db, id, token, passwordHash, expiresAt)
}

func (a *users) SetResetCredentialsTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token, passwordHash string, expiresAt time.Time) error {
	res, err := a.Repository.RawTx(ctx, tx, SetResetCredentialsSQL, token, expiresAt, passwordHash, id.String())
	if err != nil {
		return TranslateConstraintError(err, nil)
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *users) ConsumeResetCredentialsTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, ConsumeResetCredentialsSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

// Remove soft-deletes the account; records are never hard-deleted by the
// normal flow.
func (a *users) Remove(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.NewDelete().
		Model(&User{}).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	return err
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Username == "" && record.Email != "" {
		record.Username = strings.ToLower(record.Email)
	}

	if record.OriginalUsername == "" {
		record.OriginalUsername = record.Username
	}

	if record.Role == "" {
		record.Role = RoleParticipant
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func listRoles(filter string) []UserRole {
	switch filter {
	case "":
		return []UserRole{RoleClinician, RoleParticipant}
	case RoleFilterAll:
		return []UserRole{RoleAdmin, RoleClinician, RoleParticipant}
	default:
		return []UserRole{filter}
	}
}

func normalizeOptional(p *string) *string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil
	}
	return p
}
