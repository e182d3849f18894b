// kaictl - run Kai commands from a terminal.
// The core runs in-process against the same data directory as the daemon.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kaiassist/kai/internal/app"
	"github.com/kaiassist/kai/internal/config"
	"github.com/kaiassist/kai/internal/core"
	"github.com/kaiassist/kai/internal/email"
	"github.com/kaiassist/kai/internal/logging"
	"github.com/kaiassist/kai/internal/tasks"
)

var (
	configPath string
	dataDir    string
	verbose    bool

	version = "0.1.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kaictl",
		Short: "Kai - talk to your assistant from the terminal",
		Long: `kaictl sends commands to Kai's intent router and inspects its state.

It opens the task store and memory log in the data directory directly,
so it shares reminders and history with a running daemon.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logging.SetLevel(logging.DEBUG)
			} else {
				logging.SetLevel(logging.WARN)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <data-dir>/config.json)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(replCmd())
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(memoryCmd())
	rootCmd.AddCommand(modeCmd())
	rootCmd.AddCommand(gmailAuthCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return cfg, nil
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

// askCmd sends a single command
func askCmd() *cobra.Command {
	var (
		details string
		mode    string
		gmail   string
		askPass bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "ask <command...>",
		Short: "Send one command and print the reply",
		Example: `  kaictl ask "reminder water plants, 10, high"
  kaictl ask research --details "Alan Turing"
  kaictl ask email --details "bob@example.com|Hi|See you" --gmail me@gmail.com --ask-pass`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kai, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer kai.Close()

			req := core.Request{
				Command: strings.ToLower(strings.TrimSpace(strings.Join(args, " "))),
				Details: details,
				Mode:    core.Mode(strings.TrimSpace(mode)),
			}
			if gmail != "" {
				req.Credentials.Username = gmail
				if askPass {
					fmt.Fprint(os.Stderr, "App password: ")
					pass, err := term.ReadPassword(int(os.Stdin.Fd()))
					fmt.Fprintln(os.Stderr)
					if err != nil {
						return fmt.Errorf("failed to read password: %w", err)
					}
					req.Credentials.Password = string(pass)
				}
			}

			resp := kai.Router.Handle(ctx, req)
			return printResponse(cmd.OutOrStdout(), resp, asJSON)
		},
	}

	cmd.Flags().StringVarP(&details, "details", "d", "", "free-form argument for the command")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "answer in this mode without changing the current one")
	cmd.Flags().StringVar(&gmail, "gmail", "", "mail account to send from")
	cmd.Flags().BoolVar(&askPass, "ask-pass", false, "prompt for the mail account password")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")

	return cmd
}

func printResponse(w io.Writer, resp core.Response, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	_, err := fmt.Fprintln(w, resp.Text)
	return err
}

// replCmd reads commands line by line. Reminders fire while it runs.
func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			kai, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer kai.Close()

			if err := kai.Start(ctx); err != nil {
				return err
			}

			interactive := term.IsTerminal(int(os.Stdin.Fd()))
			if interactive {
				fmt.Fprintf(cmd.OutOrStdout(), "Kai (%s mode). Type 'exit' to leave.\n", kai.State.Mode())
			}
			return repl(ctx, kai, cmd.InOrStdin(), cmd.OutOrStdout(), interactive)
		},
	}
}

func repl(ctx context.Context, kai *app.App, in io.Reader, out io.Writer, prompt bool) error {
	scanner := bufio.NewScanner(in)
	for {
		if prompt {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		resp := kai.Router.Handle(ctx, core.Request{Command: line})
		fmt.Fprintln(out, resp.Text)
	}
}

// tasksCmd lists stored reminders
func tasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List scheduled reminders by priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kai, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer kai.Close()

			list, err := kai.Tasks.List(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tasks.Format(list, kai.Tasks.Unit()))
			return nil
		},
	}
}

// memoryCmd prints the interaction log
func memoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Show the memory log",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kai, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer kai.Close()

			entries, err := kai.Memory.Entries(ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Memory log is empty.")
				return nil
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", e.Timestamp, e.Entry)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show only the last n entries")
	return cmd
}

// modeCmd lists modes, or previews one. The current mode lives in the
// daemon process; use PUT /api/v1/mode or "mode <name>" to change it there.
func modeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mode [name]",
		Short: "List personality modes or preview one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kai, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer kai.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				current := kai.State.Mode()
				for _, m := range core.KnownModes() {
					marker := " "
					if m == current {
						marker = "*"
					}
					fmt.Fprintf(out, "%s %s\n", marker, m)
				}
				return nil
			}

			mode := core.Mode(strings.ToLower(strings.TrimSpace(args[0])))
			if _, ok := kai.Engine.Style(mode); !ok {
				fmt.Fprintf(out, "%s is not in the style table; the default style applies.\n", mode)
			}
			fmt.Fprintln(out, kai.Engine.Wrap("Your reminder has been scheduled.", mode))
			return nil
		},
	}
}

// gmailAuthCmd stores an OAuth token so the daemon can send mail
// through the Gmail API without per-request passwords.
func gmailAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gmail-auth <credentials.json>",
		Short: "Authorize Kai to send mail from your Gmail account",
		Long: `Runs the Google OAuth consent flow in your browser and saves the
resulting token to the data directory.

Download OAuth client credentials (Desktop app) from the Google Cloud
console first. Only the gmail.send scope is requested.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			credsPath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			oauthCfg, err := email.OAuthConfigFromFile(credsPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			auth := &email.LoopbackAuth{
				Config: oauthCfg,
				Open: func(url string) error {
					if err := email.OpenBrowser(url); err != nil {
						fmt.Fprintf(out, "Open this URL to continue:\n\n%s\n\n", url)
					}
					return nil
				},
			}

			fmt.Fprintln(out, "Waiting for authorization...")
			token, err := auth.Token(cmd.Context())
			if err != nil {
				return err
			}

			tokenFile := cfg.Mail.GmailTokenFile
			if tokenFile == "" {
				tokenFile = "gmail_token.json"
			}
			path := cfg.Path(tokenFile)
			if err := email.SaveToken(path, token); err != nil {
				return fmt.Errorf("save token: %w", err)
			}

			fmt.Fprintf(out, "Token saved to %s\n", path)
			if cfg.Mail.GmailTokenFile == "" {
				fmt.Fprintf(out, "Set mail.gmail_token_file=%s and mail.gmail_credentials_file=%s to enable it.\n", tokenFile, credsPath)
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kaictl %s\n", version)
		},
	}
}
