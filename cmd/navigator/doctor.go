package main

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/joss/navigator/internal/render"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check Jellyfin and provider configuration",
		Long: `Reach the configured Jellyfin server and build the default provider.

Exits non-zero when a dependency is unusable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			status := svc.checker().Check(ctx)

			w := render.Stdout()
			w.Header("NAVIGATOR %s", status.Status)
			if cfg.File != "" {
				w.Item("config: %s", cfg.File)
			}

			names := make([]string, 0, len(status.Components))
			for name := range status.Components {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				c := status.Components[name]
				icon := render.StatusIcon("success")
				if c.Status != "ok" {
					icon = render.StatusIcon("error")
				}
				w.Println("%s %-10s %-9s %s", icon, name, c.Status, c.Detail)
				if c.Error != "" {
					w.Nested("%s", c.Error)
				}
			}

			if status.Status == "unhealthy" {
				return errors.New("one or more dependencies are unusable")
			}
			return nil
		},
	}
}
