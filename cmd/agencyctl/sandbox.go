package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"spyagency/internal/app"
	"spyagency/internal/config"
	"spyagency/internal/engine"
	"spyagency/internal/server"
)

func sandboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Local agency API backed by SQLite",
	}
	cmd.AddCommand(sandboxServeCmd())
	cmd.AddCommand(sandboxSeedCmd())
	cmd.AddCommand(sandboxTokenCmd())
	cmd.AddCommand(sandboxEventsCmd())
	return cmd
}

// withEngine opens the workspace sandbox and hands fn an engine over it.
func withEngine(fn func(cfg *config.Config, e engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := app.OpenWorkspace(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(cfg, engine.New(conn, cfg.Sandbox.Breeds))
}

func sandboxServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agency API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(cfg *config.Config, e engine.Engine) error {
				if addr == "" {
					addr = cfg.Sandbox.Addr
				}
				log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
				handler, err := server.New(server.Config{
					Engine:   e,
					BasePath: cfg.Sandbox.BasePath,
					Auth:     server.AuthConfig{JWTSecret: cfg.Sandbox.JWTSecret},
					Logger:   log,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				ctx := cmd.Context()
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				log.Info("sandbox listening", "addr", addr, "base_path", cfg.Sandbox.BasePath, "auth", cfg.Sandbox.JWTSecret != "")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default sandbox.addr)")
	return cmd
}

func sandboxSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Replace sandbox data with the demo roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm("Wipe the sandbox and load demo data?") {
				fmt.Fprintln(os.Stderr, "cancelled")
				return nil
			}
			return withEngine(func(cfg *config.Config, e engine.Engine) error {
				sum, err := app.Seed(cmd.Context(), e, time.Now())
				if err != nil {
					return err
				}
				fmt.Printf("seeded %d agents, %d missions, %d targets\n", sum.Agents, sum.Missions, sum.Targets)
				return nil
			})
		},
	}
}

func sandboxTokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the sandbox API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Sandbox.JWTSecret == "" {
				return errors.New("sandbox.jwt_secret is not set; the sandbox API is open")
			}
			token, err := server.SignToken(cfg.Sandbox.JWTSecret, subject, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "handler", "operator name carried in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func sandboxEventsCmd() *cobra.Command {
	var after int64
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the sandbox audit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(cfg *config.Config, e engine.Engine) error {
				events, err := e.ListEvents(cmd.Context(), after, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "When", "Type", "Entity", "Request"})
				for _, ev := range events {
					when := ev.TS
					if ts, err := time.Parse(time.RFC3339Nano, ev.TS); err == nil {
						when = humanize.Time(ts)
					}
					entity := ev.EntityKind
					if ev.EntityID != nil {
						entity = fmt.Sprintf("%s #%d", ev.EntityKind, *ev.EntityID)
					}
					tw.AppendRow(table.Row{ev.ID, when, ev.Type, entity, ev.RequestID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&after, "after", 0, "only events after this id")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum events")
	return cmd
}
