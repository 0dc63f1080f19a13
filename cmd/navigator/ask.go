package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/joss/navigator/internal/chat"
	"github.com/joss/navigator/internal/domain"
	"github.com/joss/navigator/internal/media"
	"github.com/joss/navigator/internal/render"
	"github.com/joss/navigator/internal/runtime"
)

func askCmd() *cobra.Command {
	var (
		token, userID            string
		providerName, model, key string
		mediaID, mediaName, kind string
		mediaSource              string
		at                       float64
		showTools, summary       bool
		noColor                  bool
	)

	cmd := &cobra.Command{
		Use:   "ask <request>",
		Short: "Run one chat request from the terminal",
		Long: `Send a single request through the same loop the web client uses and
print the answer with the tool results as cards.

Examples:
  navigator ask "show me some comedies"
  navigator ask --provider anthropic "who directed Heat?"
  navigator ask --media-id abc --media-name Inception --at 5400 "what just happened?"
  navigator ask --media-id abc --media-source-id def "skip to the dream scene"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" || userID == "" {
				return errors.New("a Jellyfin session is required: pass --token and --user or set JELLYFIN_TOKEN and JELLYFIN_USER_ID")
			}
			if noColor || !render.IsTerminal(os.Stdout) {
				color.NoColor = true
			}

			svc, err := buildServices(cfg)
			if err != nil {
				return err
			}
			shutdown := runtime.NewShutdownManager(cfg.Server.ShutdownTimeout)
			shutdown.Register("services", func(ctx context.Context) error { return svc.Close() })
			shutdown.ListenForSignals()
			defer shutdown.Shutdown()

			var position *float64
			if cmd.Flags().Changed("at") {
				position = &at
			}
			session := playbackSession(mediaID, mediaName, kind, mediaSource, position)

			events, err := svc.chat.Start(shutdown.Context(), chat.Request{
				ID:   ulid.Make().String(),
				Auth: media.Auth{Token: token, UserID: userID},
				Messages: []domain.Message{{
					ID:        ulid.Make().String(),
					Role:      domain.RoleUser,
					Parts:     []domain.Part{domain.TextPart{Text: strings.Join(args, " ")}},
					Timestamp: time.Now(),
				}},
				Session:   session,
				Selection: domain.ProviderSelection{Provider: providerName, Model: model, APIKey: key},
			})
			if err != nil {
				return err
			}

			out := render.NewStream(os.Stdout, render.TerminalWidth(os.Stdout), showTools)
			done, err := out.Print(events)
			if summary {
				out.Summary(done)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&token, "token", os.Getenv("JELLYFIN_TOKEN"), "Jellyfin access token")
	cmd.Flags().StringVar(&userID, "user", os.Getenv("JELLYFIN_USER_ID"), "Jellyfin user id")
	cmd.Flags().StringVar(&providerName, "provider", "", "Model provider (openai, openrouter, anthropic, google, ollama)")
	cmd.Flags().StringVar(&model, "model", "", "Model id")
	cmd.Flags().StringVar(&key, "api-key", "", "Provider API key for this request")
	cmd.Flags().StringVar(&mediaID, "media-id", "", "Id of the item currently playing")
	cmd.Flags().StringVar(&mediaName, "media-name", "", "Name of the item currently playing")
	cmd.Flags().StringVar(&mediaSource, "media-source-id", "", "Media source of the playing item (defaults to --media-id)")
	cmd.Flags().StringVar(&kind, "media-type", string(domain.MediaMovie), "Type of the item currently playing")
	cmd.Flags().Float64Var(&at, "at", 0, "Playback position in seconds")
	cmd.Flags().BoolVar(&showTools, "show-tools", true, "Print each tool call")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print finish reason and token usage")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors")
	return cmd
}

// playbackSession describes the simulated playback state. Jellyfin uses the
// item id as the media source id of single version items, so source
// defaults to id.
func playbackSession(id, name, kind, source string, at *float64) domain.SessionContext {
	if id == "" {
		return domain.SessionContext{}
	}
	if source == "" {
		source = id
	}
	return domain.SessionContext{
		CurrentMedia: &domain.MediaContext{
			ID:            id,
			Name:          name,
			Type:          domain.MediaType(kind),
			MediaSourceID: source,
		},
		CurrentTimestamp: at,
	}
}
