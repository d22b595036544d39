package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"subforge/internal/config"
	"subforge/internal/notifications"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigSetKeyCommand(ctx))
	configCmd.AddCommand(newConfigDeleteKeyCommand(ctx))
	configCmd.AddCommand(newConfigTestNotifyCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveConfigTarget(targetPath)
			if err != nil {
				return err
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Run `subforge config set-key` (or export GEMINI_API_KEY) before transcribing.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if !ctx.configSeen {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigSetKeyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "set-key [key]",
		Short:       "Store the Gemini API key in the .env file beside the config",
		Long:        "Store the Gemini API key in the .env file beside the config. The key is read from stdin when not given as an argument.",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 1 {
				key = args[0]
			} else {
				fmt.Fprint(cmd.ErrOrStderr(), "Gemini API key: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read api key: %w", err)
				}
				key = line
			}
			envPath, err := ctx.envPath()
			if err != nil {
				return err
			}
			if err := config.SaveAPIKey(envPath, key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved API key to %s\n", envPath)
			return nil
		},
	}
}

func newConfigDeleteKeyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "delete-key",
		Short:       "Remove the stored Gemini API key",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			envPath, err := ctx.envPath()
			if err != nil {
				return err
			}
			if err := config.DeleteAPIKey(envPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed API key from %s\n", envPath)
			return nil
		},
	}
}

func newConfigTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification to the configured ntfy topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			svc := notifications.NewService(cfg)
			if !notifications.Enabled(svc) {
				return fmt.Errorf("notifications are disabled; set notifications.ntfy_topic")
			}
			if err := svc.TestNotification(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent test notification to %s\n", cfg.Notifications.NtfyTopic)
			return nil
		},
	}
}

// envPath returns the .env file beside the --config file or the default
// config location.
func (c *commandContext) envPath() (string, error) {
	var flag string
	if c.configFlag != nil {
		flag = *c.configFlag
	}
	target, err := resolveConfigTarget(flag)
	if err != nil {
		return "", err
	}
	return config.EnvPath(target), nil
}

func resolveConfigTarget(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		defaultPath, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return defaultPath, nil
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return expanded, nil
}
