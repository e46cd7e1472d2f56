package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"spyagency/internal/config"
	"spyagency/internal/console"
	agencysdk "spyagency/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "agencyctl",
	Short: "Spy Cat Agency console",
	Long: `agencyctl manages the Spy Cat Agency: recruit and pay spy cats, plan
missions with up to three targets, assign agents, and follow a field agent's
mission as its targets are completed.

Every command talks to the agency API (api.base_url in agency.yml, or
--api-url). 'agencyctl sandbox serve' runs a local API backed by SQLite for
development; 'agencyctl sandbox seed' fills it with demo data.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func initConfig() {
	// A missing .env is fine.
	_ = godotenv.Load()
	viper.SetEnvPrefix("SPYAGENCY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory (agency.yml and sandbox state)")
	flags.String("api-url", "", "agency API base url, e.g. http://localhost:3001/api/v1")
	flags.String("token", "", "bearer token for the agency API")
	flags.Bool("json", false, "output JSON")
	flags.BoolP("yes", "y", false, "skip confirmation prompts")
	flags.BoolP("verbose", "v", false, "debug logging")
	_ = viper.BindPFlag("workspace", flags.Lookup("workspace"))
	_ = viper.BindPFlag("api.base_url", flags.Lookup("api-url"))
	_ = viper.BindPFlag("api.token", flags.Lookup("token"))
	_ = viper.BindPFlag("json", flags.Lookup("json"))
	_ = viper.BindPFlag("yes", flags.Lookup("yes"))
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(agentsCmd())
	rootCmd.AddCommand(missionsCmd())
	rootCmd.AddCommand(targetsCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(tuiCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(sandboxCmd())
}

func setupLogging() {
	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig reads agency.yml from the workspace (defaults when absent) and
// applies env and flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyOverrides(viper.GetViper()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newClient(cfg *config.Config) *agencysdk.Client {
	c := agencysdk.New(cfg.API.BaseURL)
	c.Timeout = cfg.API.Timeout
	c.BearerToken = cfg.API.Token
	c.Logger = slog.Default()
	return c
}

func consoleOptions(cfg *config.Config) console.Options {
	return console.Options{
		Logger:                slog.Default(),
		NoticeTTL:             cfg.Console.NoticeTTL,
		CompletionReloadDelay: cfg.Console.CompletionReloadDelay,
	}
}

// withClient loads config and hands fn a gateway client.
func withClient(fn func(cfg *config.Config, c *agencysdk.Client) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return fn(cfg, newClient(cfg))
}

// confirm asks on stdin unless --yes was given.
func confirm(prompt string) bool {
	if viper.GetBool("yes") {
		return true
	}
	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// reportedError marks an error whose message was already shown as a notice.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

// finish prints the view-model's notice and turns err into the exit status.
func finish(n console.Notice, err error) error {
	if errors.Is(err, console.ErrNotConfirmed) {
		fmt.Fprintln(os.Stderr, "cancelled")
		return nil
	}
	if n.Text != "" {
		if n.Kind == console.NoticeSuccess {
			fmt.Println(n.Text)
		} else {
			fmt.Fprintln(os.Stderr, n.Text)
		}
	}
	if err == nil {
		return nil
	}
	if n.Text != "" && n.Kind != console.NoticeSuccess {
		return reportedError{err}
	}
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Console configuration (agency.yml)"}
	cmd.AddCommand(configInitCmd())
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configValidateCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default agency.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			shown := *cfg
			if shown.API.Token != "" {
				shown.API.Token = "***"
			}
			if shown.Sandbox.JWTSecret != "" {
				shown.Sandbox.JWTSecret = "***"
			}
			cfg = &shown
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate agency.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(viper.GetString("workspace")); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	}
}
