package main

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-persistence-bun"
	registry "github.com/goliatone/go-registry"
	"github.com/goliatone/go-registry/cmd/server/config"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	config *gconfig.Container[*config.BaseConfig]
	bunDB  *bun.DB
	repo   registry.RepositoryManager
	auth   registry.Authenticator
	auther *registry.RouteAuthenticator
	srv    router.Server[*fiber.App]
	logger *glog.BaseLogger
}

func (a *App) Config() *config.BaseConfig {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Info),
		glog.WithName("registry"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(&config.BaseConfig{}).
		WithLogger(lgr.GetLogger("config"))

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithSuperuser(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(app); err != nil {
		panic(err)
	}

	app.srv.Serve(app.Config().GetServer().GetAddr())

	WaitExitSignal()
}

func WithPersistence(ctx context.Context, app *App) error {
	pcfg := app.Config().GetPersistence()

	db, err := sql.Open(sqliteshim.ShimName, pcfg.GetDSN())
	if err != nil {
		return err
	}

	persistence.RegisterModel((*registry.User)(nil))

	client, err := persistence.New(pcfg, db, sqlitedialect.New())
	if err != nil {
		return err
	}

	client.SetLogger(app.GetLogger("persistence"))

	migrationsFS, err := fs.Sub(registry.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}

	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return err
	}

	if err := client.Migrate(ctx); err != nil {
		return err
	}

	app.bunDB = client.DB()
	app.repo = registry.NewRepositoryManager(client.DB())

	return app.repo.Validate()
}

// WithSuperuser seeds the initial admin account when one is configured and
// no account owns the email yet.
func WithSuperuser(ctx context.Context, app *App) error {
	scfg := app.Config().GetSuperuser()
	if !scfg.Enabled() {
		return nil
	}

	if _, err := app.repo.Users().GetByEmail(ctx, scfg.Email); err == nil {
		return nil
	} else if !repository.IsRecordNotFound(err) {
		return err
	}

	register := registry.NewRegisterUserHandler(app.repo, nil).
		WithLogger(app.GetLogger("bootstrap"))

	return register.Execute(ctx, registry.RegisterUserMessage{
		Username: scfg.Username,
		Email:    scfg.Email,
		Password: scfg.Password,
		Role:     registry.RoleAdmin,
	})
}

// userFinderAdapter narrows the Users repository to the exact store slice
// the credential service consumes.
type userFinderAdapter struct {
	users registry.Users
}

func (a userFinderAdapter) GetByIdentifier(ctx context.Context, identifier string) (*registry.User, error) {
	return a.users.GetByIdentifier(ctx, identifier)
}

func WithHTTPServer(app *App) error {
	acfg := app.Config().GetAuth()

	userProvider := registry.NewUserProvider(userFinderAdapter{users: app.repo.Users()}).
		WithLogger(app.GetLogger("auth:prv"))

	authenticator := registry.NewAuthenticator(userProvider, acfg).
		WithLogger(app.GetLogger("auth"))
	app.auth = authenticator

	auther, err := registry.NewHTTPAuthenticator(authenticator, acfg)
	if err != nil {
		return err
	}
	auther.Logger = app.GetLogger("auth:http")
	app.auther = auther

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: app.Config().GetServer().GetDebug(),
			StrictRouting:     false,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	registry.RegisterRoutes(srv.Router(),
		registry.WithControllerRepo(app.repo),
		registry.WithControllerAuther(auther),
		registry.WithControllerHooks(app.Config().GetHooks()),
		registry.WithControllerLogger(app.GetLogger("users:ctrl")),
		registry.WithControllerDebug(app.Config().GetServer().GetDebug()),
	)

	app.srv = srv

	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
