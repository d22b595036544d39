package main

import (
	"strings"

	"github.com/spf13/cobra"

	"subforge/internal/config"
	"subforge/internal/queue"
)

// settingsFlags overlays per-job settings flags onto the configured defaults.
// Only flags the user set take effect.
type settingsFlags struct {
	advanced   bool
	maxChars   int
	speakers   bool
	fillers    bool
	dictionary string
}

func (f *settingsFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.advanced, "advanced", false, "Run the advanced pipeline (topic analysis, dictionary, enhancement)")
	cmd.Flags().IntVar(&f.maxChars, "max-chars", 0, "Maximum characters per subtitle")
	cmd.Flags().BoolVar(&f.speakers, "speakers", false, "Prefix lines with speaker labels")
	cmd.Flags().BoolVar(&f.fillers, "remove-fillers", false, "Remove filler words")
	cmd.Flags().StringVar(&f.dictionary, "dictionary", "", "Path to a custom CSV dictionary (advanced pipeline)")
}

func (f *settingsFlags) apply(cmd *cobra.Command, cfg *config.Config) (queue.Settings, error) {
	settings := queue.SettingsFromConfig(cfg)
	flags := cmd.Flags()
	if flags.Changed("advanced") {
		settings.EnableAdvancedProcessing = f.advanced
	}
	if flags.Changed("max-chars") {
		settings.MaxCharsPerSubtitle = f.maxChars
	}
	if flags.Changed("speakers") {
		settings.EnableSpeakerDetection = f.speakers
	}
	if flags.Changed("remove-fillers") {
		settings.RemoveFillerWords = f.fillers
	}
	if flags.Changed("dictionary") {
		path := strings.TrimSpace(f.dictionary)
		if path != "" {
			expanded, err := config.ExpandPath(path)
			if err != nil {
				return queue.Settings{}, err
			}
			path = expanded
		}
		settings.CustomDictionary = path
	}
	if err := settings.Validate(); err != nil {
		return queue.Settings{}, err
	}
	return settings, nil
}

// changed reports whether any settings flag was set.
func (f *settingsFlags) changed(cmd *cobra.Command) bool {
	for _, name := range []string{"advanced", "max-chars", "speakers", "remove-fillers", "dictionary"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}
