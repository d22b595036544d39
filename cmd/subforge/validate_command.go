package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"subforge/internal/srt"
)

var errInvalidSubtitles = errors.New("subtitles are not valid")

func newValidateCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:         "validate <file.srt>",
		Short:       "Check an SRT file for structural problems",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read subtitles: %w", err)
			}
			text := srt.ExtractContent(string(data))
			result := srt.Validate(text)
			if asJSON {
				if err := writeJSON(cmd, result); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(cmd)
				if result.IsValid {
					fmt.Fprintln(out, renderStatusLine(args[0], statusOK, fmt.Sprintf("%d records", len(srt.Parse(text))), colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine(args[0], statusError, fmt.Sprintf("%d problems", len(result.Errors)), colorize))
					for _, msg := range result.Errors {
						fmt.Fprintf(out, "%s%s\n", statusIndent+statusIndent, msg)
					}
				}
			}
			if !result.IsValid {
				return errInvalidSubtitles
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
