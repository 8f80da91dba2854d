package main

import (
	"context"
	"os"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-intake/internal/pipeline"
	"github.com/sells-group/deal-intake/internal/resolve"
	"github.com/sells-group/deal-intake/internal/store"
	sfpkg "github.com/sells-group/deal-intake/pkg/salesforce"
)

// appEnv holds the initialized store and pipeline shared by the
// ingest/deals/serve commands.
type appEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv opens the store, runs migrations, loads the precedence tables,
// and builds the pipeline. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var precedence *resolve.Config
	if cfg.Precedence.ConfigPath != "" {
		precedence, err = resolve.LoadConfig(cfg.Precedence.ConfigPath)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		zap.L().Info("precedence tables loaded",
			zap.String("path", cfg.Precedence.ConfigPath),
			zap.Int("field_overrides", len(precedence.Fields)),
		)
	}

	return &appEnv{
		Store:    st,
		Pipeline: pipeline.New(st, precedence, cfg.Pipeline),
	}, nil
}

// initSalesforce builds the JWT-authenticated Salesforce client for the
// optional CRM document source.
func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (DEAL_INTAKE_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf, sfpkg.WithRateLimit(cfg.Salesforce.RateRPS)), nil
}
