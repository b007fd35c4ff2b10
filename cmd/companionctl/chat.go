package main

import (
	"bufio"
	"context"
	"errors"
	"strings"

	"ai-companion-demo/companion/internal/session"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func (a *app) loadSession(ctx context.Context) (*session.Controller, session.State, error) {
	log := a.logger()
	ctrl := session.NewController(a.userID(), a.client(log), nil, log, session.Config{
		FallbackDelay: a.v.GetDuration("fallback-delay"),
		DemoFallback:  a.v.GetBool("demo-fallback"),
	}, session.WithClock(a.now))

	st, err := ctrl.Load(ctx)
	if errors.Is(err, session.ErrNoCharacter) {
		return nil, session.State{}, errors.New("no character yet, run companionctl create first")
	}
	if err != nil {
		return nil, session.State{}, err
	}
	if st.Demo {
		a.warnf("the backend was unavailable; showing the demo character")
	}
	return ctrl, st, nil
}

func (a *app) newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with your companion. /older loads history, /quit exits",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			ctrl, st, err := a.loadSession(ctx)
			if err != nil {
				return err
			}

			name := st.Character.Name
			color.New(color.Bold).Fprintf(a.out, "%s (%s)\n", name, st.Character.Style)
			renderParams(a.out, st.Character.Params)
			for _, m := range st.Messages {
				renderMessage(a.out, name, m)
			}

			scanner := bufio.NewScanner(a.in)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					continue
				case "/quit", "/exit":
					return nil
				case "/older":
					added, err := ctrl.LoadOlderHistory(ctx)
					if err != nil {
						a.warnf("%v", err)
						continue
					}
					a.printf("loaded %d older messages\n", added)
					continue
				}

				reply, err := ctrl.SendMessage(ctx, line)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					a.warnf("%v", err)
					continue
				}
				renderMessage(a.out, name, reply.Message)
				if !reply.Delta.IsZero() {
					renderParams(a.out, reply.Params)
				}
			}
			return scanner.Err()
		},
	}
}
