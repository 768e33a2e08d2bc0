package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IamNewInThis/cuidador-app-sub000/pkg/auth"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/authapi"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/config"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/deeplink"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/logger"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/loopback"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/pg"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/profile"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/vault"
)

var errPasswordRequired = errors.New("password required: pass -password or set AUTHCTL_PASSWORD")

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	var env envConfig
	if err := config.Load(&env, config.WithDotenv(cli.EnvFiles...)); err != nil {
		return err
	}
	if err := env.Loopback.Validate(); err != nil {
		return err
	}

	log := logger.New(
		logger.FromConfig(env.Log),
		logger.WithOutput(stderr),
		logger.WithAttr(slog.String("app", "authctl")),
		logger.WithContextExtractors(logger.OperationIDExtractor),
	)

	profiles, profilesHealth, closeProfiles, err := openProfiles(ctx, cli.Postgres, log)
	if err != nil {
		return err
	}
	defer closeProfiles()

	sessions, vaultHealth, closeVault, err := openVault(ctx, env.Vault, env.API.URL, log)
	if err != nil {
		return err
	}
	defer closeVault()

	reg := prometheus.NewRegistry()
	metrics, err := auth.NewPrometheusMetrics(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	if cli.MetricsAddr != "" {
		stop := serveMetrics(cli.MetricsAddr, reg, log, profilesHealth, vaultHealth)
		defer stop()
	}

	apiOpts := []authapi.Option{authapi.WithLogger(log)}
	if sessions != nil {
		apiOpts = append(apiOpts, authapi.WithPersistence(sessions))
	}
	backend, err := authapi.New(env.API, apiOpts...)
	if err != nil {
		return err
	}
	links := env.DeepLink.Parser()
	browser := loopback.New(env.Loopback, loopback.WithLogger(log))
	google := auth.NewBrowserOAuthAdapter(backend, browser, env.Auth.GoogleProvider, browser.RedirectURL(),
		auth.WithBrowserLogger(log),
		auth.WithCallbackParser(links),
	)

	store := auth.NewStore(backend, profile.NewChecker(profiles, profile.WithLogger(log)),
		auth.WithConfig(env.Auth),
		auth.WithLogger(log),
		auth.WithMetrics(metrics),
		auth.WithProvider(google),
	)
	defer store.Close()

	if err := store.Start(ctx); err != nil {
		log.WarnContext(ctx, "session restore failed", logger.Error(err))
	}

	password := cli.Password
	if password == "" {
		password = env.Password
	}

	cmdErr := dispatch(ctx, cli, store, links, password, log)
	if err := writeState(stdout, store.State()); err != nil {
		return err
	}
	return cmdErr
}

func dispatch(ctx context.Context, cli cliConfig, store *auth.Store, links *deeplink.Parser, password string, log *slog.Logger) error {
	switch cli.Command {
	case "status":
		return nil

	case "signin":
		if password == "" {
			return errPasswordRequired
		}
		if err := store.SignIn(ctx, cli.Args[0], password); err != nil {
			return err
		}
		return completeProfile(ctx, store, cli.Profile)

	case "signup":
		if password == "" {
			return errPasswordRequired
		}
		if err := store.SignUp(ctx, auth.SignUpParams{Email: cli.Args[0], Password: password}); err != nil {
			return err
		}
		return completeProfile(ctx, store, cli.Profile)

	case "signout":
		return store.SignOut(ctx)

	case "google":
		if err := store.SignInWithGoogle(ctx); err != nil {
			return err
		}
		return completeProfile(ctx, store, cli.Profile)

	case "reset":
		return store.SendPasswordResetEmail(ctx, cli.Args[0])

	case "recover":
		router := deeplink.NewRouter(deeplink.NewChannelSource(cli.Args[0]), store,
			deeplink.WithRouterLogger(log),
			deeplink.WithParser(links),
		)
		if err := router.Start(ctx); err != nil {
			return err
		}
		defer router.Stop()

		st := store.State()
		if st.Error != nil {
			return st.Error
		}
		if !st.RecoveryPending {
			return fmt.Errorf("not a password recovery link: %s", cli.Args[0])
		}
		return store.UpdatePassword(ctx, cli.Args[1])
	}
	return errUsage
}

func completeProfile(ctx context.Context, store *auth.Store, p profileFlags) error {
	if !p.set() || !store.State().NeedsProfileCompletion {
		return nil
	}
	return store.CompleteProfile(ctx, profile.Fields{
		Phone:              p.Phone,
		Birthdate:          p.Birthdate,
		Country:            p.Country,
		RelationshipToBaby: p.Relationship,
	})
}

// openProfiles returns the profile store, an optional health check and a
// release function.
func openProfiles(ctx context.Context, usePostgres bool, log *slog.Logger) (profile.Store, func(context.Context) error, func(), error) {
	if !usePostgres {
		return profile.NewMemoryStore(), nil, func() {}, nil
	}

	var cfg pg.Config
	if err := config.Load(&cfg); err != nil {
		return nil, nil, nil, err
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := pg.Migrate(ctx, pool, profile.Migrations, profile.MigrationsDir, cfg, log); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	return profile.NewPGStore(pool), pg.Healthcheck(pool), pool.Close, nil
}

// openVault returns the session persistence configured by cfg, or nil when
// no master key is set. Sessions are sealed under the auth service URL.
func openVault(ctx context.Context, cfg vault.Config, scope string, log *slog.Logger) (authapi.SessionStore, func(context.Context) error, func(), error) {
	if !cfg.Enabled() {
		return nil, nil, func() {}, nil
	}

	key, err := cfg.MasterKey()
	if err != nil {
		return nil, nil, nil, err
	}
	sealer, err := vault.NewSealer(key, scope)
	if err != nil {
		return nil, nil, nil, err
	}

	if cfg.RedisURL != "" {
		client, err := vault.ConnectRedis(ctx, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		sessions := vault.NewSessionVault(vault.NewRedisStore(client, vault.WithPrefix("authctl:")), sealer, vault.WithLogger(log))
		return sessions, vault.RedisHealthcheck(client), func() { _ = client.Close() }, nil
	}

	dir := cfg.Dir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("no vault directory: set VAULT_DIR: %w", err)
		}
		dir = filepath.Join(base, "authctl")
	}
	store, err := vault.NewFileStore(dir)
	if err != nil {
		return nil, nil, nil, err
	}
	return vault.NewSessionVault(store, sealer, vault.WithLogger(log)), nil, func() {}, nil
}

func metricsRouter(reg *prometheus.Registry, checks ...func(context.Context) error) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		for _, check := range checks {
			if check == nil {
				continue
			}
			if err := check(req.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func serveMetrics(addr string, reg *prometheus.Registry, log *slog.Logger, checks ...func(context.Context) error) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metricsRouter(reg, checks...),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", logger.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

type stateView struct {
	Phase                  auth.Phase `json:"phase"`
	UserID                 string     `json:"user_id,omitempty"`
	Email                  string     `json:"email,omitempty"`
	Name                   string     `json:"name,omitempty"`
	ExpiresAt              *time.Time `json:"expires_at,omitempty"`
	NeedsProfileCompletion bool       `json:"needs_profile_completion"`
	RecoveryPending        bool       `json:"recovery_pending"`
	Error                  *errorView `json:"error,omitempty"`
}

type errorView struct {
	Kind     auth.ErrorKind `json:"kind"`
	Message  string         `json:"message"`
	Provider string         `json:"provider,omitempty"`
}

func writeState(w io.Writer, st auth.State) error {
	v := stateView{
		Phase:                  st.Phase,
		NeedsProfileCompletion: st.NeedsProfileCompletion,
		RecoveryPending:        st.RecoveryPending,
	}
	if st.User != nil {
		v.UserID = st.User.ID.String()
		v.Email = st.User.Email
		v.Name = st.User.DisplayName()
	}
	if st.Session != nil && !st.Session.ExpiresAt.IsZero() {
		exp := st.Session.ExpiresAt.UTC()
		v.ExpiresAt = &exp
	}
	if st.Error != nil {
		v.Error = &errorView{Kind: st.Error.Kind, Message: st.Error.Message, Provider: st.Error.Provider}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
