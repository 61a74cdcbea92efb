package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"webauthz/internal/config"
	"webauthz/pkg/logging"
	"webauthz/pkg/store"
	"webauthz/pkg/webauthz"
)

// engine bundles the client with the store it owns.
type engine struct {
	config config.WebauthzConfig
	client *webauthz.Client
	store  store.Store
}

func (e *engine) Close() error {
	return e.store.Close()
}

// loadConfig reads configuration from --config, or the default directory.
func loadConfig() (config.WebauthzConfig, error) {
	path := configPath
	if path == "" {
		path = config.GetDefaultConfigPathOrPanic()
	}
	return config.LoadConfig(path)
}

// setupLogging installs the CLI log handler. --debug wins over the
// configured level.
func setupLogging(cfg config.WebauthzConfig, output io.Writer) {
	level, err := logging.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	if debug {
		level = logging.LevelDebug
	}
	format := logging.FormatText
	if cfg.Log.Format == string(logging.FormatJSON) {
		format = logging.FormatJSON
	}
	logging.Init(level, format, output)
}

// newEngine loads configuration and builds a client on the configured store.
func newEngine(ctx context.Context, logOutput io.Writer) (*engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg, logOutput)

	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Type, err)
	}

	logger := logging.Logger()
	transport := webauthz.NewHTTPTransport(
		webauthz.WithHTTPClient(&http.Client{Timeout: cfg.Client.HTTPTimeout}),
		webauthz.WithTransportLogger(logger),
		webauthz.WithUserAgent("webauthz/"+GetVersion()),
	)
	client, err := webauthz.New(webauthz.Config{
		Store:            st,
		Transport:        transport,
		Logger:           logger,
		ClientName:       cfg.Client.Name,
		GrantRedirectURI: cfg.Client.GrantRedirectURI,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	logging.Debug("CLI", "Using %s store", cfg.Store.Type)
	return &engine{config: cfg, client: client, store: st}, nil
}
