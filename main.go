package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"library-client/config"
	"library-client/library"
	"library-client/logger"
	"library-client/metrics"
)

// app carries what every subcommand needs once the root has run.
type app struct {
	cfg *config.Config
	mgr *library.LibraryManager
	log zerolog.Logger

	apiURL   string
	authURL  string
	logLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", library.Describe(err))
		stop()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "library",
		Short:         "Library management client for the catalog and identity services",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "resource service base URL (overrides LIBRARY_API_URL)")
	root.PersistentFlags().StringVar(&a.authURL, "auth-url", "", "identity service base URL (overrides LIBRARY_AUTH_URL)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "trace, debug, info, warn or error (overrides LIBRARY_LOG_LEVEL)")

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newBooksCmd(a),
		newCategoriesCmd(a),
		newLoansCmd(a),
		newUsersCmd(a),
		newStatsCmd(a),
		newShellCmd(a),
	)
	return root
}

// open loads configuration, applies flag overrides and builds the manager
// over the configured session store.
func (a *app) open(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.APIURL = a.apiURL
	}
	if a.authURL != "" {
		cfg.AuthURL = a.authURL
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	store, err := library.OpenStore(ctx, cfg.Session.Store())
	if err != nil {
		return err
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}

	mgr, err := library.NewLibraryManager(ctx, library.Options{
		APIURL:  cfg.APIURL,
		AuthURL: cfg.AuthURL,
		Timeout: cfg.HTTPTimeout,
		Limiter: limiter,
		Store:   store,
		Logger:  a.log,
	})
	if err != nil {
		store.Close()
		return err
	}
	a.mgr = mgr
	a.log.Debug().Str("api", cfg.APIURL).Str("auth", cfg.AuthURL).Str("session", cfg.Session.Backend).Msg("client ready")
	return nil
}

func (a *app) close() error {
	if a.mgr == nil {
		return nil
	}
	err := a.mgr.Close()
	a.mgr = nil
	if a.cfg.MetricsFile != "" {
		if werr := metrics.WriteTextfile(a.cfg.MetricsFile); werr != nil {
			a.log.Warn().Err(werr).Str("path", a.cfg.MetricsFile).Msg("write metrics")
		}
	}
	return err
}
