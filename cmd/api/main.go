package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lshmam/neucler-inbox-sub002/internal/actions"
	"github.com/lshmam/neucler-inbox-sub002/internal/auth"
	"github.com/lshmam/neucler-inbox-sub002/internal/classify"
	"github.com/lshmam/neucler-inbox-sub002/internal/config"
	"github.com/lshmam/neucler-inbox-sub002/internal/contacts"
	"github.com/lshmam/neucler-inbox-sub002/internal/history"
	"github.com/lshmam/neucler-inbox-sub002/internal/httpapi"
	"github.com/lshmam/neucler-inbox-sub002/internal/reporting"
	"github.com/lshmam/neucler-inbox-sub002/internal/routing"
	"github.com/lshmam/neucler-inbox-sub002/internal/session"
	"github.com/lshmam/neucler-inbox-sub002/internal/telephony"
	"github.com/lshmam/neucler-inbox-sub002/pkg/logger"
	"github.com/lshmam/neucler-inbox-sub002/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "interaction-api")
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Domain wiring.
	bridge := telephony.NewTwilioBridge(cfg.Telephony, log)

	historySvc := history.NewService(history.NewPostgresRepo(db))
	actionEngine := actions.NewEngine(actions.NewPostgresRepo(db), cfg.Actions, log)
	contactSvc := contacts.NewService(contacts.NewPostgresRepo(db), historySvc)

	classifier := classify.New(cfg.Classifier, log, classify.WithRedis(rdb))

	var pipelineSink routing.PipelineSink
	if cfg.Routing.PipelineURL != "" {
		pipelineSink = routing.NewWebhookSink(cfg.Routing.PipelineURL)
	}
	var supportSink routing.SupportSink
	if cfg.Routing.SupportURL != "" {
		supportSink = routing.NewWebhookSink(cfg.Routing.SupportURL)
	}
	var replySink routing.ReplySink
	if cfg.Telephony.MessagingFrom != "" {
		replySink = routing.SMSReply{Sender: bridge}
	}
	router := routing.NewRouter(pipelineSink, supportSink, replySink, log)

	// Terminal call outcomes feed both the timeline and follow-up derivation.
	sink := session.MultiSink{historySvc, dispositionIngestor{engine: actionEngine}}
	sessions := session.NewManager(bridge, contactSvc, sink, log)
	go sessions.Run(rootCtx)

	reports := reporting.NewService(historySvc, actionEngine)

	h := httpapi.Handlers{
		Auth:       authManager,
		Bridge:     bridge,
		Sessions:   sessions,
		Classifier: classifier,
		Router:     router,
		Contacts:   contactSvc,
		History:    historySvc,
		Actions:    actionEngine,
		Reports:    reports,
	}
	status := telephony.StatusWebhookHandler{Bridge: bridge, Claims: telephony.RedisClaimer{Client: rdb}}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, auth.RequireAccessToken(authManager), h, status)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// dispositionIngestor adapts terminal call records into action engine events.
type dispositionIngestor struct {
	engine *actions.Engine
}

func (d dispositionIngestor) RecordDisposition(ctx context.Context, rec session.DispositionRecord) error {
	_, err := d.engine.Ingest(ctx, actions.Event{
		WorkspaceID: rec.WorkspaceID,
		Person: actions.Person{
			ID:    "phone:" + rec.Counterparty,
			Name:  rec.CallerName,
			Phone: rec.Counterparty,
		},
		Kind:         actions.EventDisposition,
		OccurredAt:   rec.EndedAt,
		Outcome:      string(rec.Outcome),
		SystemClosed: rec.SystemClosed,
		Note:         rec.Reason,
	})
	return err
}
