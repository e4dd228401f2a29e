package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"quiz-runner/internal/app"
	"quiz-runner/internal/logging"
	"quiz-runner/internal/metrics"
	transport "quiz-runner/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to start the websocket server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Serve quiz sessions over a websocket, one session per connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	d, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer d.Close()
	log := d.log
	ctx = logging.IntoContext(ctx, log)

	if d.usesPostgres() {
		if err := runMigrationsWithConfig(ctx, d.cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = d.cfg.Server.Port
	}

	store, err := d.questionStore(ctx)
	if err != nil {
		return err
	}
	kv, err := d.kvStore(ctx)
	if err != nil {
		return err
	}
	opts, err := d.sessionOptions()
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	opts.Recorder = collector

	wsHandler := transport.NewWSHandler(store, kv, transport.SessionConfig{
		Options:     opts,
		SettleDelay: d.settleDelay(),
		LoadTimeout: d.loadTimeout(),
	}, collector, log)
	router := transport.NewRouter(transport.RouterDeps{
		WS:      wsHandler,
		Scores:  transport.NewScoreHandler(app.NewScoreKeeper(kv), log),
		Metrics: promhttp.Handler(),
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", finalPort).
			Str("questions", d.cfg.Questions.Source).
			Str("storage", d.cfg.Storage.Backend).
			Msg("starting quiz server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("server failed")
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
