package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"subforge/internal/preflight"
)

var errPreflightFailed = errors.New("one or more required checks failed")

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var checkAPI bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration, dependency, and daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			if checkAPI {
				results = append(results, preflight.CheckGemini(cmd.Context(), cfg))
			}
			daemon := preflight.ProbeDaemon(cmd.Context(), cfg)

			colorize := shouldColorize(cmd)
			lines := renderSectionHeader("Configuration", colorize)
			configPath := ctx.configPath
			if !ctx.configSeen {
				configPath += " (not found, using defaults)"
			}
			lines = append(lines,
				renderValueLine("Config file", configPath),
				renderValueLine("Jobs database", cfg.QueueDBPath()),
				renderValueLine("API bind", cfg.Paths.APIBind),
				renderValueLine("Model", cfg.Gemini.Model),
				"",
			)
			lines = append(lines, renderSectionHeader("Checks", colorize)...)
			for _, result := range results {
				lines = append(lines, renderStatusLine(result.Name, resultKind(result), result.Detail, colorize))
			}
			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Daemon", colorize)...)
			lines = append(lines, renderStatusLine(daemon.Name, resultKind(daemon), daemon.Detail, colorize))
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(lines, "\n"))

			if preflight.Failed(results) {
				return errPreflightFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkAPI, "check-api", false, "Verify the API key and model against the Gemini API")
	return cmd
}

func resultKind(result preflight.Result) statusKind {
	switch {
	case result.Passed:
		return statusOK
	case result.Optional:
		return statusWarn
	default:
		return statusError
	}
}
