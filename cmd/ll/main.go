package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lodgeline/internal/blob"
	"lodgeline/internal/catalog"
	"lodgeline/internal/config"
	"lodgeline/internal/engine"
	"lodgeline/internal/facility"
	"lodgeline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "ll",
	Short: "Lodgeline CLI",
	Long: `Lodgeline tracks regulatory compliance tasks across a hotel portfolio.
Core concepts:
- Catalog: the rulebook of compliance tasks (fire, water, electrical, gas,
  food safety), each with a frequency and a points weight.
- Facilities: each hotel answers a questionnaire about its physical plant;
  tasks only apply when the hotel has the equipment they cover.
- Submissions: document uploads and monthly confirmations, kept in a
  bounded per-hotel history.
- Approvals: uploaded documents wait in a queue until signed off.
- Score: a weighted percentage of valid submissions against the catalog.
- Due tasks: what falls due this month and next, with acknowledgments to
  quiet reminders you have already seen.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("LODGELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user", "local-user", "acting user for audit fields")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
}

func registerCommands() {
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(facilitiesCmd())
	rootCmd.AddCommand(uploadCmd())
	rootCmd.AddCommand(confirmCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(approvalsCmd())
	rootCmd.AddCommand(approveCmd())
	rootCmd.AddCommand(deleteEntryCmd())
	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(dueCmd())
	rootCmd.AddCommand(acknowledgeCmd())
	rootCmd.AddCommand(checklistCmd())
	rootCmd.AddCommand(matrixCmd())
	rootCmd.AddCommand(leaderboardCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tasks", Short: "Inspect the task catalog"}
	cmd.AddCommand(tasksListCmd())
	cmd.AddCommand(tasksApplicableCmd())
	return cmd
}

func tasksListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List task ids and labels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				labels := e.TaskLabels()
				if viper.GetBool("json") {
					return printJSON(labels)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Task ID", "Label"})
				for id, label := range labels {
					tw.AppendRow(table.Row{id, label})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func tasksApplicableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "applicable <hotel-id>",
		Short: "Show tasks applicable to a hotel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.ApplicableTasks(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Task ID", "Label", "Frequency", "Points"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.TaskID, t.Label, t.Frequency, t.Points})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func facilitiesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "facilities", Short: "Manage hotel facility profiles"}
	cmd.AddCommand(facilitiesShowCmd())
	cmd.AddCommand(facilitiesImportCmd())
	return cmd
}

func facilitiesShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <hotel-id>",
		Short: "Show a hotel's facility profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Facilities(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func facilitiesImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import <hotel-id>",
		Short: "Import facility questionnaire answers from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			var p facility.Profile
			if err := json.Unmarshal(data, &p); err != nil {
				return fmt.Errorf("invalid facilities json: %w", err)
			}
			p.HotelID = args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.SaveFacilities(ctx, p, viper.GetString("user")); err != nil {
					return err
				}
				saved, err := e.Facilities(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(saved)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to facilities JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func uploadCmd() *cobra.Command {
	var hotelID, taskID, reportDate, filePath string
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a compliance document",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entry, err := e.RecordUpload(ctx, engine.UploadOptions{
					HotelID:    hotelID,
					TaskID:     taskID,
					ReportDate: reportDate,
					Filename:   baseName(filePath),
					Data:       data,
					UploadedBy: viper.GetString("user"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	cmd.Flags().StringVar(&hotelID, "hotel", "", "hotel id")
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.Flags().StringVar(&reportDate, "report-date", "", "report date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filePath, "file", "", "path to document")
	_ = cmd.MarkFlagRequired("hotel")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("report-date")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func confirmCmd() *cobra.Command {
	var hotelID, taskID string
	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm a task for this month",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rec, err := e.ConfirmTask(ctx, hotelID, taskID, viper.GetString("user"))
				if err != nil {
					return err
				}
				return printJSONOrTable(rec)
			})
		},
	}
	cmd.Flags().StringVar(&hotelID, "hotel", "", "hotel id")
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	_ = cmd.MarkFlagRequired("hotel")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <hotel-id>",
		Short: "Show submission history for a hotel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				h, err := e.HotelHistory(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(h)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Task", "Type", "Report Date", "Submitted", "By", "Approved"})
				for taskID, entries := range h {
					for _, entry := range entries {
						by := entry.UploadedBy
						if by == "" {
							by = entry.ConfirmedBy
						}
						tw.AppendRow(table.Row{taskID, entry.Type, entry.ReportDate, entry.Timestamp(), by, entry.Approved})
					}
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func approvalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "List uploads waiting for approval",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.ApprovalQueue(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Hotel", "Task", "Report Date", "Uploaded", "By"})
				for _, entry := range entries {
					tw.AppendRow(table.Row{entry.HotelID, entry.TaskID, entry.ReportDate, entry.UploadedAt, entry.UploadedBy})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func approveCmd() *cobra.Command {
	var hotelID, taskID, timestamp string
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve an uploaded document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.ApproveEntry(ctx, hotelID, taskID, timestamp); err != nil {
					return err
				}
				fmt.Println("approved")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&hotelID, "hotel", "", "hotel id")
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "submission timestamp")
	_ = cmd.MarkFlagRequired("hotel")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("timestamp")
	return cmd
}

func deleteEntryCmd() *cobra.Command {
	var hotelID, taskID, timestamp string
	cmd := &cobra.Command{
		Use:   "delete-entry",
		Short: "Delete a submission entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteEntry(ctx, hotelID, taskID, timestamp); err != nil {
					return err
				}
				fmt.Println("deleted")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&hotelID, "hotel", "", "hotel id")
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "submission timestamp")
	_ = cmd.MarkFlagRequired("hotel")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("timestamp")
	return cmd
}

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <hotel-id>",
		Short: "Compute a hotel's compliance score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s := e.ComputeScore(ctx, args[0])
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("Score: %d/%d (%.1f%%)\n", s.Score, s.MaxScore, s.Percent)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Task", "Points"})
				for taskID, pts := range s.TaskBreakdown {
					tw.AppendRow(table.Row{taskID, pts})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func dueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "due <hotel-id>",
		Short: "Show tasks due this month and next",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				proj := e.DueTasks(ctx, args[0])
				if viper.GetBool("json") {
					return printJSON(proj)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"When", "Task ID", "Label", "Frequency"})
				for _, t := range proj.DueThisMonth {
					tw.AppendRow(table.Row{"this month", t.TaskID, t.Label, t.Frequency})
				}
				for _, t := range proj.NextMonthUploadable {
					tw.AppendRow(table.Row{"next month", t.TaskID, t.Label, t.Frequency})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func acknowledgeCmd() *cobra.Command {
	var hotelID, taskID, month string
	cmd := &cobra.Command{
		Use:   "acknowledge",
		Short: "Acknowledge a next-month reminder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.Acknowledge(ctx, hotelID, taskID, month, viper.GetString("user")); err != nil {
					return err
				}
				fmt.Println("acknowledged")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&hotelID, "hotel", "", "hotel id")
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.Flags().StringVar(&month, "month", "", "month (YYYY-MM, defaults to next month)")
	_ = cmd.MarkFlagRequired("hotel")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func checklistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checklist <hotel-id>",
		Short: "Monthly confirmation checklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items := e.MonthlyChecklist(ctx, args[0])
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Task ID", "Label", "Confirmed This Month", "Last Confirmed"})
				for _, item := range items {
					last := ""
					if item.LastConfirmedDate != nil {
						last = *item.LastConfirmedDate
					}
					tw.AppendRow(table.Row{item.TaskID, item.Label, item.IsConfirmedThisMonth, last})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func matrixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Cross-hotel compliance matrix",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				cells := e.Matrix(ctx)
				if viper.GetBool("json") {
					return printJSON(cells)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Hotel", "Task", "Status"})
				for _, c := range cells {
					tw.AppendRow(table.Row{c.HotelID, c.TaskID, c.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func leaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Hotel score leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				standings := e.Leaderboard(ctx)
				if viper.GetBool("json") {
					return printJSON(standings)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Hotel", "Name", "Score"})
				for _, s := range standings {
					tw.AppendRow(table.Row{s.HotelID, s.Name, s.Score})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Inspect workspace config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(c)
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = c.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	})
	return cfg
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			return withEngineConfig(cmd.Context(), cfg, func(ctx context.Context, e engine.Engine) error {
				secret := os.Getenv("LODGELINE_JWT_SECRET")
				if secret == "" {
					secret = cfg.Server.JWTSecret
				}
				handler, err := server.New(server.Config{
					Engine:   e,
					BasePath: basePath,
					Auth:     server.AuthConfig{JWTSecret: secret},
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Lodgeline API on http://%s%s\n", addr, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	cfg, err := config.Load(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	return withEngineConfig(ctx, cfg, fn)
}

func withEngineConfig(ctx context.Context, cfg *config.Config, fn func(context.Context, engine.Engine) error) error {
	store, err := blob.Open(ctx, blob.Config{
		Backend:   cfg.Store.Backend,
		Bucket:    cfg.Store.Bucket,
		Region:    cfg.Store.Region,
		Endpoint:  cfg.Store.Endpoint,
		Workspace: cfg.Store.Workspace,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closer, ok := store.(io.Closer); ok {
			closer.Close()
		}
	}()
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	resolver := facility.NewResolver()
	if cfg.Catalog.ApplicabilityPath != "" {
		resolver, err = facility.NewResolverFromFile(cfg.Catalog.ApplicabilityPath)
		if err != nil {
			return err
		}
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	e := engine.New(store, cat, resolver, cfg, log)
	return fn(ctx, e)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func baseName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
