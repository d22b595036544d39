package main

import (
	"context"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"subforge/internal/api"
	"subforge/internal/config"
	"subforge/internal/daemonrun"
	"subforge/internal/logging"
	"subforge/internal/queue"
	"subforge/internal/queueaccess"
	"subforge/internal/workflow"
)

type commandContext struct {
	configFlag *string
	apiFlag    *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func newCommandContext(configFlag, apiFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configSeen = exists
	})
	return c.config, c.configErr
}

// apiClient returns a client for the daemon named by --api or paths.api_bind.
func (c *commandContext) apiClient() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	baseURL := api.BaseURLFromBind(cfg.Paths.APIBind)
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		baseURL = strings.TrimSpace(*c.apiFlag)
	}
	return api.NewClient(baseURL), nil
}

// withAccess runs fn against the daemon when it answers, or against the job
// store directly otherwise.
func (c *commandContext) withAccess(ctx context.Context, fn func(queueaccess.Access) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	client, err := c.apiClient()
	if err != nil {
		return err
	}
	session, err := queueaccess.OpenWithFallback(ctx, client, c.localOpener(cfg), queue.SettingsFromConfig(cfg))
	if err != nil {
		return err
	}
	defer session.Close()
	return fn(session.Access)
}

func (c *commandContext) localOpener(cfg *config.Config) queueaccess.LocalOpener {
	return func(ctx context.Context) (*workflow.Manager, func() error, error) {
		store, err := queue.Open(cfg)
		if err != nil {
			return nil, nil, err
		}
		logger, err := logging.NewFromConfig(cfg, true)
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		return daemonrun.NewManager(ctx, cfg, store, logger), store.Close, nil
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

// shouldColorize reports whether cmd writes to a terminal.
func shouldColorize(cmd *cobra.Command) bool {
	type fdWriter interface{ Fd() uintptr }
	f, ok := cmd.OutOrStdout().(fdWriter)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
