// rhctl терминальный клиент страницы подписки RH Master.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/magabrotheeeer/rhmaster-billing/internal/client"
	"github.com/magabrotheeeer/rhmaster-billing/internal/dashboard"
	"github.com/magabrotheeeer/rhmaster-billing/internal/paymentprovider"
)

var version = "dev"

type command func(ctx context.Context, e *env, args []string) error

var commands = map[string]command{
	"login":      runLogin,
	"status":     runStatus,
	"invoices":   runInvoices,
	"plans":      runPlans,
	"subscribe":  runSubscribe,
	"confirm":    runConfirm,
	"cancel":     runCancel,
	"reactivate": runReactivate,
	"clients":    runClients,
}

// env зависимости команд.
type env struct {
	api       *client.Client
	confirmer dashboard.PaymentConfirmer
	notify    dashboard.Notifier
	log       *slog.Logger
	out       io.Writer
	returnURL string
}

func usage() {
	fmt.Fprintf(os.Stderr, `rhctl - RH Master billing client (version %s)

Usage:
  rhctl <command> [options]

Commands:
  login       Sign in and print the access token
  status      Show the current subscription, badge, trial and usage
  invoices    List invoices, newest first
  plans       Show plan tiers and annual pricing discrepancies
  subscribe   Choose a plan (create or upgrade)
  confirm     Confirm or check a pending payment
  cancel      Cancel immediately or at the end of the period
  reactivate  Undo a scheduled cancellation
  clients     List or add clients

Environment:
  RHCTL_API_URL           billing API base URL (default http://localhost:8080)
  RHCTL_TOKEN             JWT from 'rhctl login'
  RHCTL_RETURN_URL        settings page URL used after payment confirmation
  STRIPE_PUBLISHABLE_KEY  publishable key for payment confirmation

Run 'rhctl <command> -h' for command-specific help.
`, version)
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	name := os.Args[1]
	switch name {
	case "-h", "--help", "help":
		usage()
		os.Exit(0)
	case "-v", "--version", "version":
		fmt.Println(version)
		os.Exit(0)
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", name)
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := newEnv(os.Stdout)
	if err := cmd(ctx, e, os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newEnv(out io.Writer) *env {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	publishableKey := os.Getenv("STRIPE_PUBLISHABLE_KEY")
	if publishableKey == "" {
		log.Warn("STRIPE_PUBLISHABLE_KEY is not set, payment confirmation is disabled")
	}

	return &env{
		api:       client.New(getenv("RHCTL_API_URL", "http://localhost:8080"), os.Getenv("RHCTL_TOKEN"), 15*time.Second),
		confirmer: paymentprovider.NewConfirmer(publishableKey),
		notify:    consoleNotifier{out: out},
		log:       log,
		out:       out,
		returnURL: getenv("RHCTL_RETURN_URL", "http://localhost:3000/settings"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// consoleNotifier печатает сообщения в терминал.
type consoleNotifier struct {
	out io.Writer
}

func (n consoleNotifier) Success(msg string) { fmt.Fprintf(n.out, "✔ %s\n", msg) }
func (n consoleNotifier) Error(msg string)   { fmt.Fprintf(n.out, "✘ %s\n", msg) }
func (n consoleNotifier) Info(msg string)    { fmt.Fprintf(n.out, "ℹ %s\n", msg) }
