package registry

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// RouteAuthenticator bridges the Authenticator with the HTTP transport:
// it exchanges credentials for a session cookie and exposes the guard
// middleware the route table composes.
type RouteAuthenticator struct {
	auth           Authenticator
	cfg            Config
	cookieDuration time.Duration
	Logger         Logger
	ErrorHandler   func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	a := &RouteAuthenticator{
		cfg:            cfg,
		auth:           auther,
		Logger:         defLogger{},
		cookieDuration: cookieDuration,
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

// Login exchanges the payload credentials for a signed token and stores it
// in an HTTP only cookie on the response.
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) error {
	token, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return err
	}

	a.setCookieToken(ctx, token, a.cookieDuration)
	return nil
}

func (a *RouteAuthenticator) Logout(ctx router.Context) {
	a.cookieDel(ctx, a.cfg.GetContextKey())
}

// Session resolves the current session from the request cookie.
func (a *RouteAuthenticator) Session(ctx router.Context) (*SessionObject, error) {
	if cached := ctx.Locals(a.cfg.GetContextKey()); cached != nil {
		if session, ok := cached.(*SessionObject); ok {
			return session, nil
		}
	}

	raw := ctx.Cookies(a.cfg.GetContextKey())
	if raw == "" {
		return nil, ErrUnableToFindSession
	}

	session, err := a.auth.SessionFromToken(raw)
	if err != nil {
		return nil, ErrUnableToDecodeSession
	}

	obj, ok := session.(*SessionObject)
	if !ok {
		return nil, ErrUnableToDecodeSession
	}

	ctx.Locals(a.cfg.GetContextKey(), obj)

	return obj, nil
}

// RequireSession rejects requests without a valid session cookie.
func (a *RouteAuthenticator) RequireSession() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if _, err := a.Session(ctx); err != nil {
				return a.ErrorHandler(ctx, err)
			}
			return next(ctx)
		}
	}
}

// RequireAdmin rejects requests unless the session carries the admin role.
func (a *RouteAuthenticator) RequireAdmin() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			session, err := a.Session(ctx)
			if err != nil {
				return a.ErrorHandler(ctx, err)
			}

			if !session.IsAdmin() {
				return a.ErrorHandler(ctx, newForbiddenError())
			}

			return next(ctx)
		}
	}
}

// RequireSelfOrAdmin lets through admins and the account owner itself, keyed
// on the route parameter carrying the account id.
func (a *RouteAuthenticator) RequireSelfOrAdmin(param string) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			session, err := a.Session(ctx)
			if err != nil {
				return a.ErrorHandler(ctx, err)
			}

			if session.IsAdmin() || session.GetUserID() == ctx.Param(param) {
				return next(ctx)
			}

			return a.ErrorHandler(ctx, newForbiddenError())
		}
	}
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	a.Logger.Info(
		"request rejected: %s code=%s path=%s",
		richErr.Message,
		richErr.TextCode,
		c.OriginalURL(),
	)

	return respondError(c, richErr)
}

func newForbiddenError() *goerrors.Error {
	return goerrors.New("insufficient privileges", goerrors.CategoryAuthz).
		WithCode(goerrors.CodeForbidden)
}
