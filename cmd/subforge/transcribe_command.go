package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"subforge/internal/config"
	"subforge/internal/daemonrun"
	"subforge/internal/logging"
	"subforge/internal/queue"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var flags settingsFlags
	var outputDir string

	cmd := &cobra.Command{
		Use:   "transcribe <file>...",
		Short: "Transcribe audio files in-process and export SRT subtitles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			settings, err := flags.apply(cmd, cfg)
			if err != nil {
				return err
			}
			if strings.TrimSpace(outputDir) != "" {
				runCfg := *cfg
				expanded, err := config.ExpandPath(outputDir)
				if err != nil {
					return fmt.Errorf("resolve output directory: %w", err)
				}
				runCfg.Paths.ExportDir = expanded
				cfg = &runCfg
			}
			return runTranscribe(cmd, cfg, settings, args)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for exported subtitles (defaults to paths.export_dir)")
	return cmd
}

func runTranscribe(cmd *cobra.Command, cfg *config.Config, settings queue.Settings, files []string) error {
	if !cfg.HasAPIKey() {
		return fmt.Errorf("gemini api key is not configured; run `subforge config set-key` or set %s", config.GeminiAPIKeyEnv)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg, true)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runCtx := cmd.Context()
	manager := daemonrun.NewManager(runCtx, cfg, store, logger)
	out := cmd.OutOrStdout()

	var failed []string
	for _, file := range files {
		path, err := filepath.Abs(file)
		if err != nil {
			return err
		}
		job, err := manager.Add(runCtx, path, settings)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", file, err)
			failed = append(failed, file)
			continue
		}
		fmt.Fprintf(out, "%s: transcribing (job %s)\n", job.FileName, job.ID)
		job, err = manager.Run(runCtx, job.ID)
		if err != nil {
			return err
		}
		switch job.Status {
		case queue.StatusCompleted:
			fmt.Fprintf(out, "%s: completed, %d subtitles\n", job.FileName, len(job.Subtitles))
			if job.Validation != nil && !job.Validation.IsValid {
				for _, msg := range job.Validation.Errors {
					fmt.Fprintf(out, "  warning: %s\n", msg)
				}
			}
			if job.SubtitlePath != "" {
				fmt.Fprintf(out, "  subtitles: %s\n", job.SubtitlePath)
			}
			if job.DictionaryPath != "" {
				fmt.Fprintf(out, "  dictionary: %s\n", job.DictionaryPath)
			}
		default:
			fmt.Fprintf(out, "%s: %s: %s\n", job.FileName, job.Status, job.Error)
			failed = append(failed, file)
		}
		if err := runCtx.Err(); err != nil {
			return err
		}
	}

	if len(failed) > 0 {
		return errors.New("transcription failed for " + strings.Join(failed, ", "))
	}
	return nil
}
