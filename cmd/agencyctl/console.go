package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"spyagency/internal/config"
	"spyagency/internal/console"
	"spyagency/internal/db"
	"spyagency/internal/shell"
	agencysdk "spyagency/sdk/go"
)

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	return tw
}

func money(v float64) string { return "$" + humanize.Commaf(v) }

func agentsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "agents", Aliases: []string{"cats"}, Short: "Manage spy cats"}
	cmd.AddCommand(agentsListCmd())
	cmd.AddCommand(agentsShowCmd())
	cmd.AddCommand(agentsCreateCmd())
	cmd.AddCommand(agentsSalaryCmd())
	cmd.AddCommand(agentsDeleteCmd())
	return cmd
}

// withRegistry loads the agent registry before running fn.
func withRegistry(ctx context.Context, fn func(reg *console.Registry) error) error {
	return withClient(func(cfg *config.Config, c *agencysdk.Client) error {
		reg := console.NewRegistry(c, consoleOptions(cfg))
		defer reg.Close()
		if err := reg.Load(ctx); err != nil {
			return finish(reg.Snapshot().Notice, err)
		}
		return fn(reg)
	})
}

func agentsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List spy cats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd.Context(), func(reg *console.Registry) error {
				snap := reg.Snapshot()
				if viper.GetBool("json") {
					return printJSON(snap.Agents)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Breed", "Experience", "Salary", "Status"})
				for _, a := range snap.Agents {
					tw.AppendRow(table.Row{a.ID, a.Name, a.Breed, fmt.Sprintf("%d years", a.YearsOfExperience), money(a.Salary), a.StatusLabel()})
				}
				tw.AppendFooter(table.Row{"", fmt.Sprintf("%d agents", len(snap.Agents))})
				tw.Render()
				return nil
			})
		},
	}
}

func agentsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <agent-id>",
		Short: "Show a spy cat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "agent")
			if err != nil {
				return err
			}
			return withClient(func(cfg *config.Config, c *agencysdk.Client) error {
				a, err := c.GetAgent(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("%s", console.DisplayMessage(err, "Failed to load spy cat."))
				}
				if viper.GetBool("json") {
					return printJSON(a)
				}
				fmt.Printf("%s (#%d)\n", a.Name, a.ID)
				fmt.Printf("  breed:      %s\n", a.Breed)
				fmt.Printf("  experience: %d years\n", a.YearsOfExperience)
				fmt.Printf("  salary:     %s\n", money(a.Salary))
				fmt.Printf("  status:     %s\n", a.StatusLabel())
				fmt.Printf("  recruited:  %s\n", humanize.Time(a.CreatedAt))
				return nil
			})
		},
	}
}

func agentsCreateCmd() *cobra.Command {
	var draft console.AgentDraft
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Recruit a spy cat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd.Context(), func(reg *console.Registry) error {
				reg.SetDraft(draft)
				for _, p := range reg.Snapshot().DraftProblems {
					slog.Warn("draft check", "problem", p)
				}
				a, err := reg.Create(cmd.Context())
				if err == nil && viper.GetBool("json") {
					return printJSON(a)
				}
				return finish(reg.Snapshot().Notice, err)
			})
		},
	}
	cmd.Flags().StringVar(&draft.Name, "name", "", "name")
	cmd.Flags().StringVar(&draft.Breed, "breed", "", "breed (see 'agencyctl agents list' or /cats/breeds)")
	cmd.Flags().IntVar(&draft.YearsOfExperience, "years", 0, "years of experience")
	cmd.Flags().Float64Var(&draft.Salary, "salary", 0, "salary")
	return cmd
}

func agentsSalaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "salary <agent-id> <amount>",
		Short: "Update a spy cat's salary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "agent")
			if err != nil {
				return err
			}
			amount, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid salary %q", args[1])
			}
			return withRegistry(cmd.Context(), func(reg *console.Registry) error {
				if err := reg.BeginSalaryEdit(id); err != nil {
					return err
				}
				if err := reg.SetSalaryDraft(amount); err != nil {
					return err
				}
				_, err := reg.CommitSalary(cmd.Context())
				return finish(reg.Snapshot().Notice, err)
			})
		},
	}
}

func agentsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <agent-id>",
		Short: "Terminate a spy cat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "agent")
			if err != nil {
				return err
			}
			return withRegistry(cmd.Context(), func(reg *console.Registry) error {
				err := reg.Delete(cmd.Context(), id, confirm)
				return finish(reg.Snapshot().Notice, err)
			})
		},
	}
}

func missionsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "missions", Short: "Plan and assign missions"}
	cmd.AddCommand(missionsListCmd())
	cmd.AddCommand(missionsShowCmd())
	cmd.AddCommand(missionsCreateCmd())
	cmd.AddCommand(missionsDeleteCmd())
	cmd.AddCommand(missionsAssignCmd())
	cmd.AddCommand(missionsFreeAgentsCmd())
	return cmd
}

// withRoster loads the mission roster before running fn.
func withRoster(ctx context.Context, fn func(r *console.Roster) error) error {
	return withClient(func(cfg *config.Config, c *agencysdk.Client) error {
		r := console.NewRoster(c, consoleOptions(cfg))
		defer r.Close()
		if err := r.Load(ctx); err != nil {
			return finish(r.Snapshot().Notice, err)
		}
		return fn(r)
	})
}

func agentName(m agencysdk.Mission) string {
	if m.Agent != nil {
		return m.Agent.Name
	}
	if m.CatID != nil {
		return fmt.Sprintf("#%d", *m.CatID)
	}
	return "-"
}

func formatDay(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}

func missionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List missions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRoster(cmd.Context(), func(r *console.Roster) error {
				snap := r.Snapshot()
				if viper.GetBool("json") {
					return printJSON(snap.Missions)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Agent", "Start", "End", "Targets"})
				for _, m := range snap.Missions {
					done := 0
					for _, t := range m.Targets {
						if t.IsFinal() {
							done++
						}
					}
					tw.AppendRow(table.Row{m.ID, m.Name, snap.Statuses[m.ID], agentName(m), formatDay(m.StartDate), formatDay(m.EndDate), fmt.Sprintf("%d/%d done", done, len(m.Targets))})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func printTargets(targets []agencysdk.Target) {
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Target", "Country", "Status", "Notes"})
	for _, t := range targets {
		tw.AppendRow(table.Row{t.ID, t.Name, t.Country, t.Status, t.NotesText()})
	}
	tw.Render()
}

func missionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <mission-id>",
		Short: "Show a mission with its targets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "mission")
			if err != nil {
				return err
			}
			return withClient(func(cfg *config.Config, c *agencysdk.Client) error {
				m, err := c.GetMission(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("%s", console.DisplayMessage(err, "Failed to load mission."))
				}
				if viper.GetBool("json") {
					return printJSON(m)
				}
				fmt.Printf("%s (#%d) [%s]\n", m.Name, m.ID, m.StatusAt(time.Now()))
				fmt.Printf("  %s\n", m.Description)
				fmt.Printf("  agent: %s  window: %s .. %s\n", agentName(m), formatDay(m.StartDate), formatDay(m.EndDate))
				if m.CompletedAt != nil {
					fmt.Printf("  completed %s\n", humanize.Time(*m.CompletedAt))
				}
				printTargets(m.Targets)
				return nil
			})
		},
	}
}

// parseTarget reads "Name:Country".
func parseTarget(s string) (string, string, error) {
	name, country, ok := strings.Cut(s, ":")
	if !ok {
		return "", "", fmt.Errorf("target %q must look like Name:Country", s)
	}
	return strings.TrimSpace(name), strings.TrimSpace(country), nil
}

func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("date %q must look like 2025-01-31", s)
	}
	return &t, nil
}

func missionsCreateCmd() *cobra.Command {
	var name, description, start, end string
	var targets []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a mission with 1-3 targets",
		Example: `  agencyctl missions create --name "Operation Goldfish" --description "Recover the goldfish" \
    --target "Bubbles:France" --target "Finnegan:Ireland" --end 2025-12-31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := optionalDate(start)
			if err != nil {
				return err
			}
			endDate, err := optionalDate(end)
			if err != nil {
				return err
			}
			return withRoster(cmd.Context(), func(r *console.Roster) error {
				r.ToggleCreateForm()
				r.SetDraftDetails(name, description, startDate, endDate)
				for _, raw := range targets {
					tn, tc, err := parseTarget(raw)
					if err != nil {
						return err
					}
					r.SetDraftTargetInput(tn, tc)
					if !r.AddDraftTarget() {
						return fmt.Errorf("cannot add target %q (a mission takes at most %d complete targets)", raw, agencysdk.MaxTargets)
					}
				}
				m, err := r.Create(cmd.Context())
				if err != nil {
					return finish(r.Snapshot().Notice, err)
				}
				if viper.GetBool("json") {
					return printJSON(m)
				}
				fmt.Printf("created mission #%d %q with %d targets\n", m.ID, m.Name, len(m.Targets))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "mission name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringArrayVar(&targets, "target", nil, "target as Name:Country (repeatable, 1-3)")
	return cmd
}

func missionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <mission-id>",
		Short: "Delete a mission without an assigned agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "mission")
			if err != nil {
				return err
			}
			return withRoster(cmd.Context(), func(r *console.Roster) error {
				err := r.Delete(cmd.Context(), id, confirm)
				if err == nil {
					fmt.Printf("deleted mission #%d\n", id)
				}
				return finish(r.Snapshot().Notice, err)
			})
		},
	}
}

func missionsAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <mission-id> <agent-id>",
		Short: "Assign a standby spy cat to a mission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			missionID, err := parseID(args[0], "mission")
			if err != nil {
				return err
			}
			agentID, err := parseID(args[1], "agent")
			if err != nil {
				return err
			}
			return withRoster(cmd.Context(), func(r *console.Roster) error {
				if err := r.OpenAssign(cmd.Context(), missionID); err != nil {
					return finish(r.Snapshot().Notice, err)
				}
				if err := r.SelectAgent(agentID); err != nil {
					return fmt.Errorf("agent #%d is not on standby: %w", agentID, err)
				}
				m, err := r.Assign(cmd.Context())
				if err != nil {
					return finish(r.Snapshot().Notice, err)
				}
				fmt.Printf("assigned %s to %q\n", agentName(m), m.Name)
				return nil
			})
		},
	}
}

func missionsFreeAgentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "free-agents <mission-id>",
		Short: "List spy cats that can be assigned to a mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			missionID, err := parseID(args[0], "mission")
			if err != nil {
				return err
			}
			return withRoster(cmd.Context(), func(r *console.Roster) error {
				if err := r.OpenAssign(cmd.Context(), missionID); err != nil {
					return finish(r.Snapshot().Notice, err)
				}
				d := r.Snapshot().Dialog
				if d == nil {
					return console.ErrDialogClosed
				}
				if viper.GetBool("json") {
					return printJSON(d.FreeAgents)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Breed", "Experience"})
				for _, a := range d.FreeAgents {
					tw.AppendRow(table.Row{a.ID, a.Name, a.Breed, a.YearsOfExperience})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func targetsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "targets", Short: "Manage a mission's targets"}
	cmd.AddCommand(targetsAddCmd())
	cmd.AddCommand(targetsDeleteCmd())
	return cmd
}

func targetsAddCmd() *cobra.Command {
	var name, country string
	cmd := &cobra.Command{
		Use:   "add <mission-id>",
		Short: "Add a target to a mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			missionID, err := parseID(args[0], "mission")
			if err != nil {
				return err
			}
			return withRoster(cmd.Context(), func(r *console.Roster) error {
				r.SetTargetInput(missionID, name, country)
				t, err := r.AddTarget(cmd.Context(), missionID)
				if err != nil {
					return finish(r.Snapshot().Notice, err)
				}
				fmt.Printf("added target #%d %q\n", t.ID, t.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "target name")
	cmd.Flags().StringVar(&country, "country", "", "country")
	return cmd
}

func targetsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <mission-id> <target-id>",
		Short: "Delete a target that has not been started",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			missionID, err := parseID(args[0], "mission")
			if err != nil {
				return err
			}
			targetID, err := parseID(args[1], "target")
			if err != nil {
				return err
			}
			return withRoster(cmd.Context(), func(r *console.Roster) error {
				err := r.DeleteTarget(cmd.Context(), missionID, targetID, confirm)
				return finish(r.Snapshot().Notice, err)
			})
		},
	}
}

func dashboardCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "dashboard", Aliases: []string{"field"}, Short: "Field view of one spy cat's mission"}
	cmd.AddCommand(dashboardShowCmd())
	cmd.AddCommand(dashboardStatusCmd())
	cmd.AddCommand(dashboardNotesCmd())
	return cmd
}

// withDashboard selects agentID on a fresh dashboard before running fn.
func withDashboard(ctx context.Context, arg string, fn func(d *console.Dashboard) error) error {
	agentID, err := parseID(arg, "agent")
	if err != nil {
		return err
	}
	return withClient(func(cfg *config.Config, c *agencysdk.Client) error {
		d := console.NewDashboard(c, consoleOptions(cfg))
		defer d.Close()
		if err := d.Select(ctx, agentID); err != nil {
			return finish(d.Snapshot().Notice, err)
		}
		return fn(d)
	})
}

func printDashboard(snap console.DashboardSnapshot) error {
	if viper.GetBool("json") {
		return printJSON(snap.Mission)
	}
	if snap.Mission == nil {
		fmt.Printf("agent #%d is on standby, no active mission\n", snap.AgentID)
		return nil
	}
	m := snap.Mission
	fmt.Printf("%s (#%d) [%s]\n", m.Name, m.ID, snap.Status)
	fmt.Printf("  %s\n", m.Description)
	if m.EndDate != nil {
		fmt.Printf("  due %s\n", humanize.Time(*m.EndDate))
	}
	printTargets(m.Targets)
	if snap.State == console.DashboardMissionCompleted {
		fmt.Println("mission accomplished")
	}
	return nil
}

func dashboardShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <agent-id>",
		Short: "Show the agent's current mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDashboard(cmd.Context(), args[0], func(d *console.Dashboard) error {
				return printDashboard(d.Snapshot())
			})
		},
	}
}

func dashboardStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <agent-id> <target-id> <init|in_progress|completed>",
		Short: "Update a target's status",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetID, err := parseID(args[1], "target")
			if err != nil {
				return err
			}
			status := agencysdk.TargetStatus(args[2])
			if !status.Valid() {
				return fmt.Errorf("unknown status %q", args[2])
			}
			return withDashboard(cmd.Context(), args[0], func(d *console.Dashboard) error {
				if _, err := d.UpdateTargetStatus(cmd.Context(), targetID, status); err != nil {
					return finish(d.Snapshot().Notice, err)
				}
				// Completing the last target schedules a reload that picks up
				// the mission's completion.
				d.Wait()
				return printDashboard(d.Snapshot())
			})
		},
	}
}

func dashboardNotesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notes <agent-id> <target-id> <notes>",
		Short: "Replace a target's notes",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetID, err := parseID(args[1], "target")
			if err != nil {
				return err
			}
			return withDashboard(cmd.Context(), args[0], func(d *console.Dashboard) error {
				if err := d.SetNotesDraft(targetID, args[2]); err != nil {
					return err
				}
				t, err := d.CommitNotes(cmd.Context(), targetID)
				if err != nil {
					return finish(d.Snapshot().Notice, err)
				}
				fmt.Printf("notes saved on %q\n", t.Name)
				return nil
			})
		},
	}
}

func tuiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Interactive console",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			logFile, err := os.OpenFile(db.LogPath(workspace), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return err
			}
			defer logFile.Close()
			level := slog.LevelInfo
			if viper.GetBool("verbose") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level})))

			c := newClient(cfg)
			opts := consoleOptions(cfg)
			views := shell.Views{
				Registry:  console.NewRegistry(c, opts),
				Roster:    console.NewRoster(c, opts),
				Dashboard: console.NewDashboard(c, opts),
			}
			defer views.Registry.Close()
			defer views.Roster.Close()
			defer views.Dashboard.Close()
			_, err = tea.NewProgram(shell.New(cmd.Context(), views), tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
}
