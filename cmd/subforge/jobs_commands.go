package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"subforge/internal/api"
	"subforge/internal/queueaccess"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage transcription jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsAddCommand(ctx))
	jobsCmd.AddCommand(newJobsRetryCommand(ctx))
	jobsCmd.AddCommand(newJobsRemoveCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))
	jobsCmd.AddCommand(newJobsApplySettingsCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				jobs, err := access.List(cmd.Context(), statuses)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "File", "Status", "Progress", "Subtitles", "Created"},
					buildJobRows(jobs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status: idle, processing, completed, error (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var printSRT bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show job details, stages, and validation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				job, err := access.Describe(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				switch {
				case asJSON:
					return writeJSON(cmd, api.JobResponse{Job: *job})
				case printSRT:
					fmt.Fprintln(cmd.OutOrStdout(), job.Result)
					return nil
				}
				renderJobDetail(cmd.OutOrStdout(), *job, shouldColorize(cmd))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	cmd.Flags().BoolVar(&printSRT, "srt", false, "Print only the generated subtitles")
	return cmd
}

func newJobsAddCommand(ctx *commandContext) *cobra.Command {
	var flags settingsFlags
	var upload bool
	var start bool

	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Add an audio file as a new job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			var settings *api.Settings
			if flags.changed(cmd) {
				resolved, err := flags.apply(cmd, cfg)
				if err != nil {
					return err
				}
				dto := api.FromSettings(resolved)
				settings = &dto
			}

			var job api.Job
			if upload {
				client, err := ctx.apiClient()
				if err != nil {
					return err
				}
				job, err = client.UploadJob(cmd.Context(), path, settings, start)
				if api.IsUnavailable(err) {
					return fmt.Errorf("upload requires a running daemon: %w", err)
				}
				if err != nil {
					return err
				}
			} else {
				err = ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
					var addErr error
					job, addErr = access.Add(cmd.Context(), path, settings, start)
					return addErr
				})
				if err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added job %s (%s, %s)\n", job.ID, job.FileName, job.Status)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload the file to the daemon instead of passing its path")
	cmd.Flags().BoolVar(&start, "start", false, "Start processing immediately")
	return cmd
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Re-run a job from scratch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				job, err := access.Retry(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if access.Remote() {
					fmt.Fprintf(out, "Job %s restarted on the daemon\n", job.ID)
					return nil
				}
				fmt.Fprintf(out, "Job %s finished: %s\n", job.ID, job.Status)
				if job.Error != "" {
					fmt.Fprintf(out, "  error: %s\n", job.Error)
				}
				return nil
			})
		},
	}
}

func newJobsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				removed, err := access.Remove(cmd.Context(), args)
				for _, id := range removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed job %s\n", id)
				}
				if err != nil {
					return fmt.Errorf("remove %s: %w", args[len(removed)], err)
				}
				return nil
			})
		},
	}
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove completed and failed jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				removed, err := access.ClearFinished(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d finished jobs\n", len(removed))
				return nil
			})
		},
	}
}

func newJobsApplySettingsCommand(ctx *commandContext) *cobra.Command {
	var flags settingsFlags

	cmd := &cobra.Command{
		Use:   "apply-settings",
		Short: "Apply settings to every job that is not processing",
		Long: "Apply the configured default settings, overridden by any flags, to every job " +
			"that is not processing. When a daemon is running its defaults for new jobs change too.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			settings, err := flags.apply(cmd, cfg)
			if err != nil {
				return err
			}
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				updated, err := access.ApplySettings(cmd.Context(), api.FromSettings(settings))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated settings on %d jobs\n", updated)
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}
