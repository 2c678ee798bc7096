package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
)

// authClient is what the commands need from client.GRPCClient.
type authClient interface {
	LoggedIn() bool
	Register(ctx context.Context, req *api.RegisterRequest) (*api.User, error)
	Login(ctx context.Context, email, password string) (*client.Session, error)
	Refresh(ctx context.Context) (time.Time, error)
	WhoAmI(ctx context.Context) (*api.User, error)
	Logout(ctx context.Context) (string, error)
}

type App struct {
	config   *config.Config
	client   authClient
	closer   io.Closer
	reader   *bufio.Reader
	out      io.Writer
	userName string
}

func NewApp(c *config.Config) (*App, error) {
	gc, err := client.NewGRPCClient(c.ServerEndpointAddr)
	if err != nil {
		return nil, err
	}
	return &App{
		config: c,
		client: gc,
		closer: gc,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}, nil
}

func (a *App) isLoggedIn() bool {
	return a.client.LoggedIn()
}

func (a *App) status() string {
	if a.userName == "" {
		return "anonymous"
	}
	return a.userName
}

// Run starts the REPL and returns when the user exits or stdin closes.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		if a.closer != nil {
			_ = a.closer.Close()
		}
	}()

	printlnFn("gophauth CLI (type 'help' for commands)")
	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader))
	return nil
}

func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config == nil || a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}
