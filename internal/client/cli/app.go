package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"

	"github.com/dmitrijs2005/shopkeeper/internal/client/auth"
	"github.com/dmitrijs2005/shopkeeper/internal/client/config"
	"github.com/dmitrijs2005/shopkeeper/internal/client/gateway"
	"github.com/dmitrijs2005/shopkeeper/internal/client/navigation"
	"github.com/dmitrijs2005/shopkeeper/internal/client/profiles"
	"github.com/dmitrijs2005/shopkeeper/internal/client/repositories"
	"github.com/dmitrijs2005/shopkeeper/internal/client/session"
	"github.com/dmitrijs2005/shopkeeper/internal/logging"
)

// sessionMachine is the part of auth.Machine the screens use.
type sessionMachine interface {
	Start(ctx context.Context) auth.State
	Current() auth.State
	Subscribe() (<-chan auth.State, func())
	SignInWithPassword(ctx context.Context, identifier, password string) (auth.State, error)
	SignInWithOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (auth.State, error)
	ChangePassword(ctx context.Context, newPassword string) error
	Logout(ctx context.Context) auth.State
}

type App struct {
	machine sessionMachine
	nav     *screenNavigator
	reader  *bufio.Reader
	out     io.Writer
	logger  logging.Logger
	closers []func() error
}

// NewApp opens the local database, connects the gateway and assembles the
// session machine.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	repos, err := repositories.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		logger.Error(ctx, "error initializing database", "path", c.DatabasePath, "error", err)
		return nil, err
	}

	gw, err := gateway.NewGRPCGateway(c.ServerEndpointAddr,
		gateway.WithLogger(logger),
		gateway.WithRequestTimeout(c.RequestTimeout),
	)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	store := session.NewStore(repos.Metadata,
		session.WithRestoreTimeout(c.RestoreTimeout),
		session.WithLogger(logger),
	)
	machine := auth.NewMachine(gw, store, profiles.NewResolver(gw, logger), logger)

	app := newApp(machine, bufio.NewReader(os.Stdin), os.Stdout, logger)
	app.closers = append(app.closers, gw.Close, repos.Close)
	return app, nil
}

func newApp(m sessionMachine, reader *bufio.Reader, out io.Writer, logger logging.Logger) *App {
	return &App{
		machine: m,
		nav:     newScreenNavigator(out),
		reader:  reader,
		out:     out,
		logger:  logger,
	}
}

// Run restores the session, starts the navigation guard and serves the REPL
// until the user exits.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	states, unsubscribe := a.machine.Subscribe()
	defer unsubscribe()
	go navigation.NewGuard(a.nav, a.logger).Run(ctx, states)

	a.settle(ctx, a.machine.Start(ctx))
	if st := a.machine.Current(); st.Err != nil {
		a.report(st.Err)
	}

	runREPL(ctx, a, a.nav, a.reader, a.out)
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
