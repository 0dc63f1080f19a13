package main

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/joss/navigator/internal/chat"
	"github.com/joss/navigator/internal/domain"
	"github.com/joss/navigator/internal/render"
)

// offlineService builds a chat service for commands that only inspect
// definitions and never call a provider or Jellyfin.
func offlineService() (*chat.Service, error) {
	prompts, err := newPromptBuilder(cfg)
	if err != nil {
		return nil, err
	}
	return chat.New(nil, nil, prompts, chat.Settings{}), nil
}

func toolsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools offered to the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := offlineService()
			if err != nil {
				return err
			}
			tools := svc.Tools()
			sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(tools)
			}

			w := render.Stdout()
			w.Header("TOOLS (%d)", len(tools))
			for _, t := range tools {
				w.Println("%s", t.Name)
				w.Item("%s", t.Description)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the JSON schemas")
	return cmd
}

func promptCmd() *cobra.Command {
	var mediaID, mediaName, kind string
	var at float64

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print the system prompt for a playback state",
		Long: `Print the system prompt the model receives, including the alias tables
from prompt.aliases_file.

Examples:
  navigator prompt
  navigator prompt --media-id abc --media-name Inception --at 5400`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := offlineService()
			if err != nil {
				return err
			}

			var position *float64
			if cmd.Flags().Changed("at") {
				position = &at
			}
			session := playbackSession(mediaID, mediaName, kind, "", position)
			render.Stdout().Println("%s", svc.SystemPrompt(session))
			return nil
		},
	}

	cmd.Flags().StringVar(&mediaID, "media-id", "", "Id of the item currently playing")
	cmd.Flags().StringVar(&mediaName, "media-name", "", "Name of the item currently playing")
	cmd.Flags().StringVar(&kind, "media-type", string(domain.MediaMovie), "Type of the item currently playing")
	cmd.Flags().Float64Var(&at, "at", 0, "Playback position in seconds")
	return cmd
}
