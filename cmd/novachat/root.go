package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/novamart/nova-storefront/internal/chatapi"
	"github.com/novamart/nova-storefront/internal/config"
	"github.com/novamart/nova-storefront/internal/creds"
	"github.com/novamart/nova-storefront/internal/model"
	"github.com/novamart/nova-storefront/internal/overlay"
	"github.com/novamart/nova-storefront/internal/qa"
	"github.com/novamart/nova-storefront/internal/queue"
	"github.com/novamart/nova-storefront/internal/storage"
	"github.com/novamart/nova-storefront/pkg/logger"
)

// app bundles everything a command needs after setup.
type app struct {
	cfg     *config.ClientConfig
	overlay *overlay.Overlay
	creds   *creds.Store
	api     *chatapi.Client
}

func newRootCmd() *cobra.Command {
	var a app

	root := &cobra.Command{
		Use:          "novachat",
		Short:        "Storefront chat from the terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			built, err := buildApp()
			if err != nil {
				return err
			}
			a = *built
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.overlay != nil {
				a.overlay.Close()
			}
		},
	}

	root.AddCommand(
		newLoginCmd(&a),
		newLogoutCmd(&a),
		newAskCmd(&a),
		newSendCmd(&a),
		newOpenCmd(&a),
		newStatusCmd(&a),
		newRetryCmd(&a),
		newExportCmd(&a),
		newDeleteCmd(&a),
	)
	return root
}

func buildApp() (*app, error) {
	cfg := config.LoadClient()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	disk, err := storage.New(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("open state dir: %w", err)
	}

	api := chatapi.New(cfg.ServerURL, &http.Client{Timeout: 10 * time.Second})
	credStore := creds.NewStore(disk)
	pending := queue.NewStore(disk, log)
	resolver := qa.NewResolver(disk, api.Ask, log)

	ov := overlay.New(overlay.Config{
		API:      api,
		Pending:  pending,
		Creds:    credStore,
		Resolver: resolver,
		Session:  disk,
		Logger:   log,
		Notify: func(msg string) {
			fmt.Println(msg)
		},
		FlushPeriod: cfg.FlushPeriod,
	})
	ov.Start()

	return &app{cfg: cfg, overlay: ov, creds: credStore, api: api}, nil
}

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"email": email, "password": password}
			path := "/api/auth/login"
			if email == "" {
				path = "/api/auth/demo"
			}

			payload, _ := json.Marshal(body)
			resp, err := http.Post(a.cfg.ServerURL+path, "application/json", strings.NewReader(string(payload)))
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("login: status %d", resp.StatusCode)
			}

			var auth model.AuthResponse
			if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
				return fmt.Errorf("login: decode response: %w", err)
			}
			if err := a.creds.Set(auth.Token); err != nil {
				return err
			}
			fmt.Printf("signed in as %s\n", auth.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (omit for the demo account)")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.creds.Clear()
		},
	}
}

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the site assistant a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			answers := a.overlay.Ask(cmd.Context(), question)
			for _, ans := range answers {
				if ans.Title != "" {
					fmt.Printf("%s: %s\n", ans.Title, ans.Text)
				} else {
					fmt.Println(ans.Text)
				}
			}
			return nil
		},
	}
}

func newSendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send <text>",
		Short: "Send a chat message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.overlay.Send(strings.Join(args, " "))
			return nil
		},
	}
}

func newOpenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Show the conversation and mark it read",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.overlay.Open(cmd.Context())
			for _, e := range a.overlay.Conversation() {
				role := string(e.Role)
				if role == "" {
					role = "you"
				}
				fmt.Printf("[%s] %s\n", role, e.Question)
				for _, ans := range e.Answers {
					fmt.Printf("    %s\n", ans.Text)
				}
			}
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show unread and pending delivery counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			signedIn := a.creds.Token() != ""
			fmt.Printf("signed in: %v\n", signedIn)
			fmt.Printf("unread:    %d\n", a.overlay.Unread())
			fmt.Printf("pending:   %d\n", a.overlay.PendingCount())
			if next, ok := a.overlay.NextRetry(); ok {
				fmt.Printf("next try:  %s\n", next.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newRetryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "retry-all",
		Short: "Try to deliver every pending message now",
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := a.overlay.RetryAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("sent %d, failed %d\n", summary.Sent, summary.Failed)
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the conversation as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.overlay.Export()
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Println(string(data))
				return nil
			}
			return writeFile(out, data)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <ts>",
		Short: "Remove one entry by timestamp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid timestamp %q", args[0])
			}
			a.overlay.Delete(cmd.Context(), ts)
			return nil
		},
	}
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
