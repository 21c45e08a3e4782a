package registry

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// ErrorResponse is the wire shape of every error the API emits: a stable
// machine code, a message, and the offending fields when known.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// RegisterRoutes mounts the user API on the given router. Guards come from
// the RouteAuthenticator; the `/users/me` routes must be registered before
// the parameterized `/users/:id` routes.
func RegisterRoutes[T any](app router.Router[T], opts ...ControllerOption) {
	controller := NewController(opts...)
	auther := controller.Auther

	admin := auther.RequireAdmin()
	session := auther.RequireSession()
	selfOrAdmin := auther.RequireSelfOrAdmin("id")

	app.Post("/auth/login", controller.LoginPost).SetName("auth.login")
	app.Get("/auth/logout", controller.LogoutGet).SetName("auth.logout")

	app.Post("/users", controller.UserCreate, admin).SetName("users.create")
	app.Get("/users", controller.UserList, admin).SetName("users.list")

	app.Get("/users/me", controller.MeShow, session).SetName("users.me.show")
	app.Patch("/users/me", controller.MePatch, session).SetName("users.me.update")

	app.Get("/users/:id", controller.UserShow, selfOrAdmin).SetName("users.show")
	app.Patch("/users/:id", controller.UserPatch, selfOrAdmin).SetName("users.update")

	app.Post("/reset-token", controller.ResetTokenPost).SetName("reset-token.post")
	app.Post("/reset-password", controller.ResetPasswordPost).SetName("reset-password.post")
}

type Controller struct {
	Debug  bool
	Logger Logger
	Repo   RepositoryManager
	Auther *RouteAuthenticator
	Hooks  HookConfig
}

type ControllerOption func(*Controller) *Controller

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger: defLogger{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in registry controller...")
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in registry controller...")
	}

	return c
}

func WithControllerRepo(repo RepositoryManager) ControllerOption {
	return func(c *Controller) *Controller {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther *RouteAuthenticator) ControllerOption {
	return func(c *Controller) *Controller {
		c.Auther = auther
		return c
	}
}

func WithControllerHooks(hooks HookConfig) ControllerOption {
	return func(c *Controller) *Controller {
		c.Hooks = hooks
		return c
	}
}

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"username" json:"username"`
	Password   string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *Controller) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return respondError(ctx, bindError(err))
	}

	if err := payload.Validate(); err != nil {
		return respondError(ctx, validationError(err))
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload.Identifier))
		fmt.Println("=========================")
	}

	if err := a.Auther.Login(ctx, payload); err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{})
}

func (a *Controller) LogoutGet(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.NoContent(router.StatusNoContent)
}

// UserCreatePayload is the create user payload
type UserCreatePayload struct {
	Username    string `form:"username" json:"username"`
	Email       string `form:"email" json:"email"`
	Password    string `form:"password" json:"password"`
	Role        string `form:"role" json:"role"`
	FirstName   string `form:"firstname" json:"firstname"`
	LastName    string `form:"lastname" json:"lastname"`
	Institution string `form:"institution" json:"institution"`
}

// Validate will validate the payload
func (r UserCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(&r.Role, validation.In(
			RoleAdmin, RoleClinician, RoleParticipant,
		)),
		validation.Field(&r.FirstName, validation.Length(0, 200)),
		validation.Field(&r.LastName, validation.Length(0, 200)),
		validation.Field(&r.Institution, validation.Length(0, 200)),
	)
}

func (a *Controller) UserCreate(ctx router.Context) error {
	payload := new(UserCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("create user parse payload: %s", err)
		return respondError(ctx, bindError(err))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("create user validate payload: %s", err)
		return respondError(ctx, validationError(err))
	}

	var res *RegisterUserResponse

	req := RegisterUserMessage{
		Username:    payload.Username,
		Email:       payload.Email,
		Password:    payload.Password,
		Role:        payload.Role,
		FirstName:   payload.FirstName,
		LastName:    payload.LastName,
		Institution: payload.Institution,
		OnResponse: func(resp *RegisterUserResponse) {
			res = resp
		},
	}

	registerUser := NewRegisterUserHandler(a.Repo, a.Hooks).WithLogger(a.Logger)
	if err := registerUser.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("create user error: %s", err)
		return respondError(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"id": res.User.ID.String(),
	})
}

func (a *Controller) UserList(ctx router.Context) error {
	filter := ListFilter{Role: ctx.Query("role", "")}

	records, err := a.Repo.Users().ListByRole(ctx.Context(), filter)
	if err != nil {
		a.Logger.Error("list users error: %s", err)
		return respondError(ctx, err)
	}

	out := make([]*PublicUser, 0, len(records))
	for _, record := range records {
		out = append(out, record.Public())
	}

	return ctx.JSON(router.StatusOK, out)
}

func (a *Controller) UserShow(ctx router.Context) error {
	record, err := a.Repo.Users().GetByID(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, record.Public())
}

func (a *Controller) UserPatch(ctx router.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return respondError(ctx, repository.NewRecordNotFound())
	}

	return a.patchUser(ctx, id)
}

func (a *Controller) MeShow(ctx router.Context) error {
	session, err := a.Auther.Session(ctx)
	if err != nil {
		return respondError(ctx, err)
	}

	record, err := a.Repo.Users().GetByID(ctx.Context(), session.GetUserID())
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, record.Public())
}

func (a *Controller) MePatch(ctx router.Context) error {
	session, err := a.Auther.Session(ctx)
	if err != nil {
		return respondError(ctx, err)
	}

	id, err := session.GetUserUUID()
	if err != nil {
		return respondError(ctx, ErrUnableToDecodeSession)
	}

	return a.patchUser(ctx, id)
}

func (a *Controller) patchUser(ctx router.Context, id uuid.UUID) error {
	patch := UserPatch{}

	if err := ctx.Bind(&patch); err != nil {
		a.Logger.Error("patch user parse payload: %s", err)
		return respondError(ctx, bindError(err))
	}

	if a.Debug {
		fmt.Println("======= USER PATCH ======")
		fmt.Println(print.MaybePrettyJSON(patch))
		fmt.Println("=========================")
	}

	if _, err := a.Repo.Users().UpdateProfile(ctx.Context(), id, patch); err != nil {
		a.Logger.Error("patch user error: %s", err)
		return respondError(ctx, err)
	}

	return ctx.NoContent(router.StatusNoContent)
}

// ResetTokenPayload holds the reset initiation request
type ResetTokenPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r ResetTokenPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (a *Controller) ResetTokenPost(ctx router.Context) error {
	payload := new(ResetTokenPayload)

	if err := ctx.Bind(payload); err != nil {
		return respondError(ctx, bindError(err))
	}

	if err := payload.Validate(); err != nil {
		return respondError(ctx, validationError(err))
	}

	req := InitializePasswordResetMessage{
		Email: payload.Email,
	}

	initPwdReset := NewInitializePasswordResetHandler(a.Repo, a.Hooks).WithLogger(a.Logger)
	if err := initPwdReset.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("reset token error: %s", err)
		return respondError(ctx, err)
	}

	return ctx.NoContent(router.StatusNoContent)
}

// ResetPasswordPayload holds the reset redemption request
type ResetPasswordPayload struct {
	Token    string `form:"token" json:"token"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
	)
}

func (a *Controller) ResetPasswordPost(ctx router.Context) error {
	payload := new(ResetPasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		return respondError(ctx, bindError(err))
	}

	if err := payload.Validate(); err != nil {
		return respondError(ctx, validationError(err))
	}

	req := FinalizePasswordResetMessage{
		Token:    payload.Token,
		Password: payload.Password,
	}

	finalizePwdReset := NewFinalizePasswordResetHandler(a.Repo).WithLogger(a.Logger)
	if err := finalizePwdReset.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("reset password error: %s", err)
		return respondError(ctx, err)
	}

	return ctx.NoContent(router.StatusNoContent)
}

// respondError serializes any error as an ErrorResponse with the status
// carried by the domain taxonomy. Record-not-found collapses to 404.
func respondError(ctx router.Context, err error) error {
	if repository.IsRecordNotFound(err) {
		return ctx.JSON(router.StatusNotFound, ErrorResponse{
			Code:    "NOT_FOUND",
			Message: "record not found",
		})
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	code := richErr.TextCode
	if code == "" {
		code = string(richErr.Category)
	}

	return ctx.JSON(StatusFromError(richErr), ErrorResponse{
		Code:    code,
		Message: richErr.Message,
		Fields:  richErr.Metadata,
	})
}

func bindError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "Failed to parse request body").
		WithCode(goerrors.CodeBadRequest)
}

// validationError folds ozzo field errors into metadata keyed by field name.
func validationError(err error) error {
	fields := map[string]any{}
	if verr, ok := err.(validation.Errors); ok {
		for field, ferr := range verr {
			fields[field] = ferr.Error()
		}
	}

	return goerrors.New("Invalid request payload", goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(fields)
}
