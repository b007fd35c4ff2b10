package main

import (
	"errors"
	"fmt"
	"time"

	"ai-companion-demo/companion/internal/store"
	"ai-companion-demo/companion/internal/wizard"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func (a *app) newCreateCmd() *cobra.Command {
	var (
		style      string
		appearance string
		avatar     int
		name       string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Run the creation wizard: style, avatar, name",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := a.logger()

			svc := wizard.NewService(a.client(log), store.NewMemoryStore(time.Hour), nil, log, wizard.Config{
				DemoFallback: a.v.GetBool("demo-fallback"),
			})
			wz, err := svc.Open(ctx, wizard.Key{UserID: a.userID(), TabID: "cli"})
			if err != nil {
				return err
			}

			if appearance != "" {
				if _, err := wz.SetAppearance(ctx, appearance); err != nil {
					return err
				}
			}

			draft, err := wz.SelectStyle(ctx, style)
			if err != nil {
				return err
			}
			heading := color.New(color.FgCyan, color.Bold)
			heading.Fprintf(a.out, "Avatar candidates (%s)\n", draft.Style)
			for i, url := range draft.AvatarCandidates {
				marker := " "
				if i == avatar {
					marker = ">"
				}
				a.printf(" %s [%d] %s\n", marker, i, url)
			}

			if _, err := wz.SelectAvatar(ctx, avatar); err != nil {
				return err
			}
			if _, err := wz.EnterNaming(ctx); err != nil {
				return err
			}

			res, err := wz.Submit(ctx, name)
			if err != nil {
				if errors.Is(err, wizard.ErrBusy) {
					return fmt.Errorf("a submission is already running")
				}
				return err
			}

			color.New(color.FgGreen).Fprintf(a.out, "Created %s (%s)\n", res.Character.Name, res.Character.ID)
			if res.Demo {
				a.warnf("the backend was unavailable; this is a demo character and was not saved")
			}
			renderParams(a.out, res.Character.Params)
			return nil
		},
	}

	cmd.Flags().StringVar(&style, "style", "", "anime, cyberpunk or fantasy")
	cmd.Flags().StringVar(&appearance, "appearance", "", "optional description used for avatar generation")
	cmd.Flags().IntVar(&avatar, "avatar", 0, "index of the avatar candidate to keep")
	cmd.Flags().StringVar(&name, "name", "", "character name")
	_ = cmd.MarkFlagRequired("style")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
