// Command companionctl drives the companion from a terminal: it runs the
// creation wizard, chats with the character and executes missions against
// the backend directly.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ai-companion-demo/companion/internal/backend"
	"ai-companion-demo/companion/pkg/jwt"
	"ai-companion-demo/companion/pkg/logger"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app is the state shared by every subcommand
type app struct {
	v   *viper.Viper
	out io.Writer
	in  io.Reader
	now func() time.Time
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{v: viper.New(), in: in, out: out, now: time.Now}

	root := &cobra.Command{
		Use:           "companionctl",
		Short:         "Create and care for an AI companion from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("backend-url", "http://localhost:8000", "companion backend base URL")
	flags.String("token", "", "bearer token for the backend")
	flags.Duration("timeout", 15*time.Second, "backend request timeout")
	flags.Bool("demo-fallback", true, "use demo data when the backend fails")
	flags.Duration("fallback-delay", 1500*time.Millisecond, "delay before a synthesized chat reply")
	flags.Bool("verbose", false, "log debug output to stderr")
	flags.Bool("no-color", false, "disable coloured output")

	a.v.SetEnvPrefix("companion")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	_ = a.v.BindPFlags(flags)

	root.PersistentPreRun = func(*cobra.Command, []string) {
		if a.v.GetBool("no-color") {
			color.NoColor = true
		}
	}

	root.AddCommand(a.newCreateCmd(), a.newChatCmd(), a.newMissionsCmd())
	return root
}

func (a *app) logger() *logger.Logger {
	cfg := logger.DefaultConfig()
	cfg.JSON = false
	cfg.Level = "warn"
	if a.v.GetBool("verbose") {
		cfg.Level = "debug"
	}
	return logger.New(cfg)
}

func (a *app) client(log *logger.Logger) *backend.Client {
	return backend.NewClient(backend.ClientConfig{
		BaseURL: a.v.GetString("backend-url"),
		Timeout: a.v.GetDuration("timeout"),
		Tokens:  backend.StaticToken(a.v.GetString("token")),
	}, log)
}

// userID reads the subject from the token without verifying it. The backend
// does the verification; this only names local state and warns on expiry.
func (a *app) userID() string {
	token := a.v.GetString("token")
	if token == "" {
		return "cli"
	}
	claims, err := jwt.ParseUnverified(token)
	if err != nil {
		a.warnf("token is not a JWT (%v); the backend may reject it", err)
		return "cli"
	}
	if left := claims.ExpiresIn(a.now()); left <= 0 && claims.ExpiresAt != nil {
		a.warnf("token expired at %s", claims.ExpiresAt.Time.Format(time.RFC3339))
	} else if left > 0 && left < 5*time.Minute {
		a.warnf("token expires in %s", left.Round(time.Second))
	}
	if user := claims.User(); user != "" {
		return user
	}
	return "cli"
}

func (a *app) warnf(format string, args ...any) {
	color.New(color.FgYellow).Fprintf(a.out, "warning: "+format+"\n", args...)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
