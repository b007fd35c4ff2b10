package main

import (
	"errors"
	"fmt"
	"time"

	"ai-companion-demo/companion/internal/session"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func (a *app) newMissionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "missions",
		Short: "List missions with their cost and cooldown",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, st, err := a.loadSession(cmd.Context())
			if err != nil {
				return err
			}

			a.printf("balance: %d NTG\n", st.Balance)
			cooldowns := ctrl.Cooldowns(a.now())
			for i, m := range st.Missions {
				cd := cooldowns[i]
				state := color.New(color.FgGreen).Sprint("ready")
				switch {
				case !m.IsActive:
					state = color.New(color.FgHiBlack).Sprint("inactive")
				case !cd.CanRepeat:
					state = color.New(color.FgYellow).Sprintf("cooldown %s", time.Duration(cd.RemainingSeconds)*time.Second)
				case !m.Affordable(st.Balance):
					state = color.New(color.FgRed).Sprint("insufficient balance")
				}
				a.printf("%-12s %-20s %5d NTG  %s\n", m.ID, m.Name, m.CostNTG, state)
			}
			return nil
		},
	}
	cmd.AddCommand(a.newMissionRunCmd())
	return cmd
}

func (a *app) newMissionRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <mission-id>",
		Short: "Execute a mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, _, err := a.loadSession(cmd.Context())
			if err != nil {
				return err
			}

			res, err := ctrl.ExecuteMission(cmd.Context(), args[0])
			switch {
			case errors.Is(err, session.ErrInsufficientBalance):
				return fmt.Errorf("cannot run %s: %w", args[0], err)
			case err != nil:
				return err
			}

			color.New(color.FgGreen).Fprintln(a.out, res.Message)
			a.printf("balance: %d NTG\n", res.Balance)
			renderParams(a.out, res.Params)
			return nil
		},
	}
}
