// devclient runs the session bootstrap and post-login routing against a real backend from a
// terminal. Usage: devclient [run] [-email addr] | devclient logout
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gig-marketplace/client/internal/backend"
	"gig-marketplace/client/internal/config"
	"gig-marketplace/client/internal/db"
	"gig-marketplace/client/internal/db/migrate"
	"gig-marketplace/client/internal/deeplink"
	"gig-marketplace/client/internal/identity/provider"
	"gig-marketplace/client/internal/identity/service"
	"gig-marketplace/client/internal/navigation"
	"gig-marketplace/client/internal/platform/errkind"
	"gig-marketplace/client/internal/session/codec"
	"gig-marketplace/client/internal/session/repository"
	"gig-marketplace/client/internal/session/store"
	"gig-marketplace/client/internal/startup"
	"gig-marketplace/client/internal/telemetry"
	telemetryotel "gig-marketplace/client/internal/telemetry/otel"
	"gig-marketplace/client/internal/tui"
	"gig-marketplace/client/internal/work/engine"
	"gig-marketplace/client/internal/work/resolver"
)

func main() {
	cmd := "run"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	email := fs.String("email", "", "Sign in with email and password (read from stdin) instead of OAuth")
	_ = fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatalf("devclient: %v", err)
	}
	defer app.close()

	switch cmd {
	case "run":
		err = app.run(ctx, *email)
	case "logout":
		app.store.Rehydrate(ctx)
		app.exchange.Logout(ctx)
		fmt.Println("signed out")
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("devclient: %v", err)
	}
}

type app struct {
	cfg      *config.Config
	store    *store.Store
	exchange *service.ExchangeClient
	provider *provider.Client
	nav      *navigation.Resolver
	printer  *tui.Printer
	emitter  telemetry.EventEmitter
	closers  []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	a.closers = append(a.closers, providers.Shutdown)
	a.emitter = telemetryotel.NewEventEmitter(providers.LoggerProvider)

	repo, err := a.openRepository()
	if err != nil {
		a.close()
		return nil, err
	}
	c, err := codec.New(cfg.SessionEncryptionKey)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("session codec: %w", err)
	}
	a.store = store.New(repo, c)

	timeout := cfg.HTTPTimeoutDuration()
	be := backend.NewClient(cfg.APIBaseURL, a.store, timeout)
	a.provider = provider.NewClient(cfg.AuthProviderURL, cfg.AuthProviderAPIKey, timeout)
	a.exchange = service.NewExchangeClient(a.store, a.provider, be, a.emitter)

	evaluator, err := engine.New(ctx, cfg.RoutingEngine)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("routing engine: %w", err)
	}
	a.printer = &tui.Printer{Out: os.Stdout}
	a.nav = navigation.New(resolver.New(be, evaluator), a.printer, a.emitter)
	return a, nil
}

func (a *app) openRepository() (repository.Repository, error) {
	switch a.cfg.SessionBackend {
	case config.SessionBackendSQLite:
		if err := migrate.Run(a.cfg.SessionDBPath, "up"); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		sqlDB, err := db.Open(a.cfg.SessionDBPath)
		if err != nil {
			return nil, fmt.Errorf("open session db: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return sqlDB.Close() })
		return repository.NewSQLiteRepository(sqlDB), nil
	case config.SessionBackendRedis:
		r, err := repository.NewRedisRepository(a.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return r.Close() })
		return r, nil
	default:
		return repository.NewMemoryRepository(), nil
	}
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), telemetry.ShutdownDrainDuration+5*time.Second)
	defer cancel()
	if a.cfg.OTLPEndpoint != "" {
		// Let in-flight EmitAsync calls finish before the log provider shuts down.
		time.Sleep(telemetry.ShutdownDrainDuration)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			log.Printf("devclient: shutdown: %v", err)
		}
	}
	a.closers = nil
}

func (a *app) run(ctx context.Context, email string) error {
	a.store.RehydrateAsync(ctx)

	splash := tui.NewSplash("Gig Marketplace")
	seq := startup.New(a.store, tui.Banner{Out: os.Stdout, Text: "Gig Marketplace"}, splash,
		startup.ProgressDriver{Interval: a.cfg.ProgressInterval(), Step: a.cfg.SplashProgressStep},
		startup.Options{
			AntiFlicker:        a.cfg.AntiFlickerDelay(),
			SafetyTimeout:      a.cfg.SafetyTimeout(),
			RehydrationTimeout: a.cfg.RehydrationWait(),
		}, a.emitter)
	if err := seq.Run(ctx); err != nil {
		return err
	}
	if splash.Interrupted() {
		return context.Canceled
	}

	in := bufio.NewReader(os.Stdin)
	target := a.nav.OnReady(ctx, a.store.GetState())
	for {
		if target.Screen == navigation.ScreenLogin {
			if err := a.login(ctx, email, in); err != nil {
				return err
			}
		}
		next, err := a.prompt(ctx, in)
		if err != nil {
			return err
		}
		target = next
	}
}

// prompt reads one command: empty line re-checks the home surface, "logout" signs out,
// "q" quits.
func (a *app) prompt(ctx context.Context, in *bufio.Reader) (navigation.Target, error) {
	fmt.Print("[enter] refresh  [logout]  [q]uit > ")
	line, err := readLine(ctx, in)
	if err != nil {
		return navigation.Target{}, err
	}
	switch line {
	case "q", "quit":
		return navigation.Target{}, context.Canceled
	case "logout":
		a.exchange.Logout(ctx)
		return a.nav.OnReady(ctx, a.store.GetState()), nil
	default:
		return a.nav.OnHomeFocus(ctx, a.store.GetState()), nil
	}
}

func (a *app) login(ctx context.Context, email string, in *bufio.Reader) error {
	cont := a.nav.AfterLogin()
	if email != "" {
		fmt.Printf("password for %s: ", email)
		password, err := readLine(ctx, in)
		if err != nil {
			return err
		}
		_, err = a.exchange.PasswordLogin(ctx, email, password, cont)
		return reportLogin(err)
	}

	srv := deeplink.NewServer(a.cfg.OAuthRedirectAddr, deeplink.NewDispatcher(a.exchange, cont))
	authURL, err := a.provider.AuthorizeURL(a.cfg.OAuthProvider, srv.CallbackURL())
	if err != nil {
		return err
	}
	if err := a.exchange.BeginLogin(); err != nil {
		return err
	}
	defer a.exchange.CancelLogin()

	srvCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe(srvCtx) }()

	fmt.Printf("Open this URL to sign in:\n\n  %s\n\n", authURL)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-serveErr:
			return err
		case err := <-srv.Results():
			if errors.Is(err, service.ErrUnsolicitedCallback) {
				continue
			}
			return reportLogin(err)
		}
	}
}

// reportLogin prints a failed login and lets the caller fall back to the login screen.
func reportLogin(err error) error {
	if err == nil {
		return nil
	}
	if errkind.Terminal(errkind.KindOf(err)) {
		fmt.Fprintln(os.Stderr, errkind.UserMessage(err))
		return nil
	}
	log.Printf("devclient: login: %v", err)
	return nil
}

func readLine(ctx context.Context, in *bufio.Reader) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := in.ReadString('\n')
		ch <- result{strings.TrimSpace(line), err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if errors.Is(r.err, io.EOF) && r.line == "" {
			return "", context.Canceled
		}
		if r.err != nil && !errors.Is(r.err, io.EOF) {
			return "", r.err
		}
		return r.line, nil
	}
}
