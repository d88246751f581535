package app

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	gcsstorage "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"golang.org/x/text/language"

	"github.com/castlemilk/pointsledger/internal/auth"
	"github.com/castlemilk/pointsledger/internal/config"
	"github.com/castlemilk/pointsledger/internal/export"
	"github.com/castlemilk/pointsledger/internal/guard"
	"github.com/castlemilk/pointsledger/internal/notify"
	"github.com/castlemilk/pointsledger/internal/rewards"
	"github.com/castlemilk/pointsledger/internal/session"
	"github.com/castlemilk/pointsledger/internal/store"
	"github.com/castlemilk/pointsledger/internal/unlock"
)

// Backend holds the external clients a process talks to.
type Backend struct {
	Store    store.Store
	Verifier auth.TokenVerifier
	Notifier session.Notifier
	Exporter *export.Exporter

	closers []func() error
	log     *slog.Logger
}

// Open connects to the configured backends. With the memory store no
// Google Cloud client is created and authentication falls back to the local
// development identity.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	b := &Backend{log: logger}

	if cfg.Store.UseMemory {
		logger.Info("using in-memory store for local development")
		b.Store = store.NewMemoryStore()
		b.Notifier = notify.NewLogNotifier(logger)
		b.Exporter = export.NewExporter(b.Store, nil)
		return b, nil
	}

	if cfg.Store.ProjectID == "" {
		return nil, fmt.Errorf("store.project_id (GOOGLE_CLOUD_PROJECT) is required without the memory store")
	}
	client, err := firestore.NewClient(ctx, cfg.Store.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	b.closers = append(b.closers, client.Close)
	b.Store = store.NewFirestoreStore(client)

	if err := b.openFirebase(ctx, cfg); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.openExporter(ctx, cfg); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) openFirebase(ctx context.Context, cfg *config.Config) error {
	b.Notifier = notify.NewLogNotifier(b.log)
	if cfg.Auth.SkipAuth && !cfg.Notify.Enabled {
		b.log.Warn("SKIP_AUTH enabled, using mock authentication with Firestore")
		return nil
	}

	fbApp, err := auth.NewFirebaseApp(ctx, cfg.Auth.CredentialsFile)
	if err != nil {
		return err
	}

	if cfg.Auth.SkipAuth {
		b.log.Warn("SKIP_AUTH enabled, using mock authentication with Firestore")
	} else {
		verifier, err := auth.NewFirebaseAuth(ctx, fbApp)
		if err != nil {
			return err
		}
		b.Verifier = verifier
	}

	if cfg.Notify.Enabled {
		return b.openMessaging(ctx, fbApp, cfg.Notify)
	}
	return nil
}

func (b *Backend) openMessaging(ctx context.Context, fbApp *firebase.App, cfg config.NotifyConfig) error {
	client, err := fbApp.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize Firebase messaging: %w", err)
	}
	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		b.log.Warn("unknown notification locale, using English", "locale", cfg.Locale)
		tag = language.English
	}
	b.Notifier = notify.NewPushNotifier(client, tag, "")
	return nil
}

func (b *Backend) openExporter(ctx context.Context, cfg *config.Config) error {
	if cfg.Export.Bucket == "" {
		b.Exporter = export.NewExporter(b.Store, nil)
		return nil
	}
	client, err := gcsstorage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}
	b.closers = append(b.closers, client.Close)
	b.Exporter = export.NewExporter(b.Store, export.NewBucket(client.Bucket(cfg.Export.Bucket)))
	return nil
}

// Deps builds the session collaborators from cfg.
func (b *Backend) Deps(cfg *config.Config) session.Deps {
	return session.Deps{
		Store:         b.Store,
		Guard:         guard.New(cfg.Rewards.GuardCosts()),
		Rewards:       rewards.NewEngine(cfg.Rewards.Engine()),
		Theme:         unlock.NewThemeMachine(cfg.Rewards.DarkModeCost),
		Notifier:      b.Notifier,
		DefaultPeriod: cfg.Recurring.Period(),
		Logger:        b.log,
	}
}

// Close releases every client opened by Open, last opened first.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			b.log.Warn("failed to close backend client", "error", err)
		}
	}
	b.closers = nil
}
