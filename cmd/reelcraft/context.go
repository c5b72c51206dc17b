package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"reelcraft/internal/config"
	"reelcraft/internal/history"
	"reelcraft/internal/locator"
	"reelcraft/internal/logging"
	"reelcraft/internal/notifications"
	"reelcraft/internal/pipeline"
	"reelcraft/internal/retry"
	"reelcraft/internal/session"
	"reelcraft/internal/services"
	"reelcraft/internal/transport"
	"reelcraft/internal/videoapi"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	appOnce sync.Once
	app     *app
	appErr  error

	historyOnce  sync.Once
	historyStore *history.Store
	historyErr   error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// app holds the per-invocation service graph.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	auth     *transport.Client
	videoRaw *transport.Client
	video    *videoapi.Client
	session  *session.Manager
	assets   *locator.Resolver
	notifier *notifications.Observer
}

func (c *commandContext) ensureApp() (*app, error) {
	c.appOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.appErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.appErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.app, c.appErr = buildApp(cfg, logger)
	})
	return c.app, c.appErr
}

func buildApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	common := []transport.Option{
		transport.WithTimeout(cfg.RequestTimeout()),
		transport.WithUserAgent(cfg.API.UserAgent),
		transport.WithLogger(logger),
	}
	auth := transport.New(cfg.API.AuthURL, common...)
	mgr, err := session.New(auth, session.NewFileStore(cfg.Session.Path), session.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	videoRaw := transport.New(cfg.API.VideoURL, append(common, transport.WithTokenSource(mgr))...)

	return &app{
		cfg:      cfg,
		logger:   logger,
		auth:     auth,
		videoRaw: videoRaw,
		video:    videoapi.New(videoRaw),
		session:  mgr,
		assets:   locator.New(cfg.API.AssetBase, locator.WithLogger(logger)),
		notifier: notifications.NewObserver(notifications.NewService(cfg), logger),
	}, nil
}

func (a *app) retryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: a.cfg.Retry.MaxAttempts,
		BaseDelay:   a.cfg.RetryBaseDelay(),
		Factor:      a.cfg.Retry.BackoffFactor,
	}
}

func (a *app) newMachine(observers ...pipeline.Observer) *pipeline.Machine {
	opts := []pipeline.Option{pipeline.WithLogger(a.logger), pipeline.WithObserver(a.notifier)}
	for _, obs := range observers {
		if obs != nil {
			opts = append(opts, pipeline.WithObserver(obs))
		}
	}
	return pipeline.New(a.video, a.assets, opts...)
}

// requireIdentity fails early with a hint when nobody is signed in.
func (a *app) requireIdentity() (session.Identity, error) {
	id, ok := a.session.Current()
	if !ok {
		return session.Identity{}, services.Wrap(services.ErrUnauthenticated, "session", "", "Sign in first with `reelcraft login`", nil)
	}
	return id, nil
}

func (c *commandContext) ensureHistory() (*history.Store, error) {
	c.historyOnce.Do(func() {
		a, err := c.ensureApp()
		if err != nil {
			c.historyErr = err
			return
		}
		c.historyStore, c.historyErr = history.Open(a.cfg, history.WithLogger(a.logger))
	})
	return c.historyStore, c.historyErr
}

func (c *commandContext) close() {
	if c.historyStore != nil {
		_ = c.historyStore.Close()
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// userMessage renders err the way the pipeline surfaces stage errors.
func userMessage(err error) error {
	if err == nil {
		return nil
	}
	msg := services.Message(err)
	if errors.Is(err, services.ErrUnauthenticated) && !strings.Contains(msg, "login") {
		msg += " (run `reelcraft login`)"
	}
	return errors.New(msg)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
