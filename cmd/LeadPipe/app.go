package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/api"
	"github.com/BTreeMap/LeadPipe/internal/backend"
	"github.com/BTreeMap/LeadPipe/internal/cache"
	"github.com/BTreeMap/LeadPipe/internal/conversation"
	"github.com/BTreeMap/LeadPipe/internal/genai"
	"github.com/BTreeMap/LeadPipe/internal/i18n"
	"github.com/BTreeMap/LeadPipe/internal/intent"
	"github.com/BTreeMap/LeadPipe/internal/messaging"
	"github.com/BTreeMap/LeadPipe/internal/meta"
	"github.com/BTreeMap/LeadPipe/internal/observability"
	"github.com/BTreeMap/LeadPipe/internal/rag"
	"github.com/BTreeMap/LeadPipe/internal/responder"
	"github.com/BTreeMap/LeadPipe/internal/routes"
	"github.com/BTreeMap/LeadPipe/internal/scheduler"
	"github.com/BTreeMap/LeadPipe/internal/session"
	"github.com/BTreeMap/LeadPipe/internal/store"
	"github.com/BTreeMap/LeadPipe/internal/twiliowhatsapp"
	"github.com/BTreeMap/LeadPipe/internal/voice"
	"github.com/BTreeMap/LeadPipe/internal/web"
	"github.com/BTreeMap/LeadPipe/internal/whatsapp"
)

// DedupPruneSchedule is how often forgotten inbound message ids are pruned.
const DedupPruneSchedule = "@hourly"

// invalidators fans an admin invalidation out to every per-deployment cache.
type invalidators []api.AppInvalidator

func (iv invalidators) InvalidateApp(appID string) {
	for _, i := range iv {
		i.InvalidateApp(appID)
	}
}

// invalidateFunc adapts a plain function to api.AppInvalidator.
type invalidateFunc func(appID string)

func (f invalidateFunc) InvalidateApp(appID string) { f(appID) }

// stores groups the session store with the optional persistent repositories.
type stores struct {
	sessions session.Store
	dedup    store.DedupRepo
	outbox   store.OutboxRepo
	closers  []func() error
}

func (s *stores) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			slog.Warn("stores.Close: close failed", "error", err)
		}
	}
}

// openStores picks the session store: Redis when configured, else the SQL backend, else memory.
// The SQL backend also provides dedup and the lead outbox.
func openStores(ctx context.Context, flags Flags) (*stores, error) {
	s := &stores{}
	if opts := buildStoreOptions(flags); len(opts) > 0 {
		be, err := store.Open(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		s.sessions, s.dedup, s.outbox = be, be, be
		s.closers = append(s.closers, be.Close)
	}
	if *flags.redisURL != "" {
		rdb, err := store.NewRedisClient(ctx, *flags.redisURL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		rs := store.NewRedisSessionStore(rdb, sessionTimeout(flags))
		s.sessions = rs
		s.closers = append(s.closers, rs.Close)
		slog.Info("openStores: sessions shared through redis")
	}
	if s.sessions == nil {
		s.sessions = session.NewMemoryStore()
		slog.Info("openStores: sessions kept in memory")
	}
	return s, nil
}

func sessionTimeout(flags Flags) time.Duration {
	return time.Duration(*flags.sessionTimeout) * time.Second
}

// loadRoutes reads the routes file, or falls back to an empty table.
func loadRoutes(flags Flags) (*routes.Table, error) {
	if *flags.routesFile == "" {
		slog.Warn("loadRoutes: no routes file, every channel address will be rejected")
		return routes.New(""), nil
	}
	return routes.Load(*flags.routesFile)
}

// newMessagingService builds the WhatsApp transport for the configured mode. A Twilio deployment
// without credentials runs with WhatsApp disabled.
func newMessagingService(ctx context.Context, flags Flags, validator *twiliowhatsapp.Validator) (messaging.Service, error) {
	switch *flags.whatsAppMode {
	case WhatsAppModeTwilio:
		client, err := twiliowhatsapp.NewClient(buildTwilioOptions(flags)...)
		if err != nil {
			slog.Warn("newMessagingService: Twilio not configured, WhatsApp disabled", "error", err)
			return nil, nil
		}
		return messaging.NewTwilioService(client, validator), nil
	case WhatsAppModeWhatsmeow:
		client, err := whatsapp.NewClient(ctx, buildWhatsAppOptions(flags)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create WhatsApp client: %w", err)
		}
		return messaging.NewWhatsAppService(client), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownWhatsAppMode, *flags.whatsAppMode)
	}
}

// run wires every component and serves until ctx is cancelled.
func run(ctx context.Context, flags Flags) error {
	if *flags.otelEndpoint != "" {
		shutdown, err := observability.InitTracer(ctx, "leadpipe", Version, *flags.otelEndpoint)
		if err != nil {
			slog.Warn("run: tracing disabled", "error", err)
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if err := shutdown(sctx); err != nil {
					slog.Warn("run: tracer shutdown failed", "error", err)
				}
			}()
		}
	}

	st, err := openStores(ctx, flags)
	if err != nil {
		return err
	}
	defer st.Close()

	table, err := loadRoutes(flags)
	if err != nil {
		return err
	}

	llm, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		return fmt.Errorf("failed to create genai client: %w", err)
	}

	replyCache := cache.New(0)
	ragSvc := rag.NewService(llm, append(buildRAGOptions(flags), rag.WithEmbedder(llm))...)
	be := backend.NewClient(buildBackendOptions(flags)...)
	gen := responder.New(intent.NewClassifier(llm), ragSvc,
		responder.WithTranslator(i18n.NewTranslator(llm, replyCache)),
		responder.WithCache(replyCache),
		responder.WithAttachmentBase(be.APIBase()),
	)

	locks := session.NewLocks()
	driverOpts := []conversation.Option{conversation.WithLocks(locks)}
	if st.outbox != nil {
		driverOpts = append(driverOpts, conversation.WithOutbox(st.outbox))
	}
	driver := conversation.NewDriver(gen, be, st.sessions, driverOpts...)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := session.NewSweeper(st.sessions, sessionTimeout(flags)).Register(ctx, sched, *flags.sweepSchedule); err != nil {
		return err
	}
	if st.outbox != nil {
		sender := store.NewOutboxSender(st.outbox, store.LeadSendFunc(be))
		if err := sender.RecoverStaleMessages(ctx); err != nil {
			slog.Warn("run: outbox recovery failed", "error", err)
		}
		if err := sender.Register(ctx, sched, ""); err != nil {
			return err
		}
	}
	if st.dedup != nil {
		dedup := st.dedup
		if err := sched.AddJob("dedup-prune", DedupPruneSchedule, func() {
			n, err := dedup.PruneDedup(ctx, time.Now().Add(-store.DedupRetention))
			if err != nil {
				slog.Error("run: dedup prune failed", "error", err)
				return
			}
			slog.Debug("run: dedup pruned", "count", n)
		}); err != nil {
			return err
		}
	}

	var validator *twiliowhatsapp.Validator
	if *flags.validateSig {
		validator = twiliowhatsapp.NewValidator(*flags.twilioToken, *flags.publicURL)
	}

	var handlerOpts []messaging.HandlerOption
	if st.dedup != nil {
		handlerOpts = append(handlerOpts, messaging.WithDedup(st.dedup))
	}
	responses := messaging.NewResponseHandler(driver, table, handlerOpts...)
	channels := api.Channels{Web: web.NewHandler(driver)}

	var services []messaging.Service
	waSvc, err := newMessagingService(ctx, flags, validator)
	if err != nil {
		return err
	}
	if waSvc != nil {
		services = append(services, waSvc)
		if tw, ok := waSvc.(*messaging.TwilioService); ok {
			channels.Twilio = tw.WebhookHandler
		}
	}

	metaSvc := messaging.NewMetaService(meta.NewClient(buildMetaOptions(flags)...), table, *flags.metaVerifyToken, *flags.metaAppSecret)
	services = append(services, metaSvc)
	channels.Meta = metaSvc.WebhookHandler

	if *flags.deepgramKey != "" {
		vh := voice.NewHandler(driver, table,
			voice.NewDeepgramFactory(voice.STTConfig{APIKey: *flags.deepgramKey, Model: *flags.sttModel}),
			voice.NewDeepgramSpeaker(voice.TTSConfig{APIKey: *flags.deepgramKey, Model: *flags.ttsModel}),
			buildVoiceOptions(flags, validator)...,
		)
		channels.VoiceTwiML = vh.TwiMLHandler
		channels.VoiceStream = vh.StreamHandler
	} else {
		slog.Info("run: DEEPGRAM_API_KEY not set, voice disabled")
	}

	for _, svc := range services {
		if err := svc.Start(ctx); err != nil {
			return fmt.Errorf("failed to start messaging service: %w", err)
		}
		responses.Start(ctx, svc)
	}
	defer func() {
		for _, svc := range services {
			if err := svc.Stop(); err != nil {
				slog.Warn("run: messaging service stop failed", "error", err)
			}
		}
		responses.Wait()
	}()

	srv := api.NewServer(st.sessions, invalidators{replyCache, invalidateFunc(ragSvc.Invalidate)},
		buildAPIOptions(flags, channels)...)
	slog.Info("run: LeadPipe ready", "routes", table.Len(), "services", len(services), "voice", channels.VoiceStream != nil)
	return srv.Run(ctx)
}
