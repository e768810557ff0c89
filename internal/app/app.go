package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/hstefan/fotc/internal/config"
	"github.com/hstefan/fotc/internal/gateway"
	"github.com/hstefan/fotc/internal/presence"
	"github.com/hstefan/fotc/internal/scheduler"
	"github.com/hstefan/fotc/internal/store"
	"github.com/hstefan/fotc/internal/telegram"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	api     *tgbotapi.BotAPI
	bot     *telegram.Bot
	store   *store.Store
	poller  *scheduler.Poller
	router  *telegram.Router
	httpSrv *http.Server
}

// New connects to Telegram and the database, migrates the schema and wires
// every component. Nothing runs until Run.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	for _, key := range cfg.Defaulted {
		log.Warn("database setting not set, using default", zap.String("var", key))
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	api.Debug = false
	bot := telegram.NewBot(api, cfg.SendRate)

	st, err := store.Open(ctx, cfg.StoreOptions(), log)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	replayer := presence.NewReplayer(bot, log)
	tracker := presence.NewTracker(cfg.IdleThreshold, replayer, log)
	poller := scheduler.New(st, bot, log, scheduler.Config{
		Interval:    cfg.PollInterval,
		Backoff:     cfg.PollBackoff,
		StopTimeout: cfg.PollStopTimeout,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      newHealthRouter(st),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{
		cfg:     cfg,
		log:     log,
		api:     api,
		bot:     bot,
		store:   st,
		poller:  poller,
		router:  telegram.NewRouter(st, tracker, bot, log),
		httpSrv: srv,
	}, nil
}

// Run serves updates until ctx is done or SIGINT/SIGTERM arrives, then
// shuts everything down in order.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting fotc",
		zap.String("bot", a.api.Self.UserName),
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("db", a.cfg.DBDriver),
	)

	a.notifyAdmin(ctx, "Starting up now")
	a.poller.Start()

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.api.GetUpdatesChan(u)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case sig := <-sigCh:
			a.shutdown(fmt.Sprintf("Shutting down on signal %s", sig))
			return nil

		case <-ctx.Done():
			a.shutdown("Shutting down: " + ctx.Err().Error())
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}

// shutdown stops intake first and the store last.
func (a *App) shutdown(notice string) {
	a.log.Info(notice)
	a.api.StopReceivingUpdates()
	a.poller.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.notifyAdmin(ctx, notice)
	if err := a.httpSrv.Shutdown(ctx); err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("store close error", zap.Error(err))
	}
}

func (a *App) notifyAdmin(ctx context.Context, text string) {
	if a.cfg.AdminChatID == 0 {
		a.log.Warn("no admin chat configured", zap.String("would_send", text))
		return
	}
	if _, err := a.bot.SendText(ctx, gateway.Text{ChatID: a.cfg.AdminChatID, Body: text}); err != nil {
		a.log.Warn("admin notice failed", zap.Error(err))
	}
}

// Migrate opens the configured database, applies the schema and closes it.
func Migrate(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	st, err := store.Open(ctx, cfg.StoreOptions(), log)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	if err := st.Migrate(ctx); err != nil {
		return err
	}
	log.Info("migrations applied", zap.String("db", cfg.DBDriver))
	return nil
}
