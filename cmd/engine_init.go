package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sales-intel/internal/alert"
	"github.com/sells-group/sales-intel/internal/analyze"
	"github.com/sells-group/sales-intel/internal/conversation"
	"github.com/sells-group/sales-intel/internal/crm"
	"github.com/sells-group/sales-intel/internal/engine"
	"github.com/sells-group/sales-intel/internal/extract"
	"github.com/sells-group/sales-intel/internal/otp"
	"github.com/sells-group/sales-intel/internal/session"
	"github.com/sells-group/sales-intel/internal/store"
	anthropicpkg "github.com/sells-group/sales-intel/pkg/anthropic"
	"github.com/sells-group/sales-intel/pkg/notion"
	sfpkg "github.com/sells-group/sales-intel/pkg/salesforce"
)

// engineEnv bundles the initialized collaborators for a command run.
type engineEnv struct {
	Store    store.Store
	Sessions *session.Manager
	Engine   *engine.Engine
	OTP      *otp.Store
}

func (e *engineEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "sales-intel.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initEngine(ctx context.Context) (*engineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	llm := anthropicpkg.NewClient(cfg.Anthropic.Key)

	sessions := session.NewManager(st, time.Duration(cfg.Session.TimeoutMinutes)*time.Minute)

	var syncer *crm.Syncer
	if cfg.Salesforce.ClientID != "" {
		sf, err := sfpkg.Connect(cfg.Salesforce.ClientID, cfg.Salesforce.Username, cfg.Salesforce.KeyPath, cfg.Salesforce.LoginURL)
		if err != nil {
			st.Close()
			return nil, err
		}
		syncer = crm.NewSyncer(sfpkg.NewClient(sf), cfg.Salesforce.Source)
	} else {
		zap.L().Info("salesforce not configured, crm sync disabled")
	}

	var mirror *notion.LeadMirror
	if cfg.Notion.Token != "" && cfg.Notion.LeadDB != "" {
		mirror = notion.NewLeadMirror(notion.NewClient(cfg.Notion.Token), cfg.Notion.LeadDB)
	} else {
		zap.L().Info("notion not configured, dashboard mirror disabled")
	}

	eng := engine.New(engine.Config{
		Sessions:           sessions,
		Store:              st,
		Extractor:          extract.NewExtractor(llm, cfg.Anthropic.FastModel, 0),
		Intents:            extract.NewIntentDetector(llm, cfg.Anthropic.FastModel, 0),
		Responder:          conversation.NewResponder(llm, cfg.Anthropic.FastModel, 0),
		Analyzer:           analyze.New(llm, cfg.Anthropic.DeepModel, 0),
		Alerter:            alert.New(cfg.Alert.WebhookURL, cfg.Alert.ScoreThreshold),
		CRM:                syncer,
		Mirror:             mirror,
		ReadinessThreshold: cfg.Engine.ReadinessThreshold,
	})

	return &engineEnv{
		Store:    st,
		Sessions: sessions,
		Engine:   eng,
		OTP:      otp.NewStore(time.Duration(cfg.OTP.TTLMinutes) * time.Minute),
	}, nil
}
