package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"siteline/internal/app"
	"siteline/internal/config"
	"siteline/internal/db"
	"siteline/internal/domain"
	"siteline/internal/engine"
)

var rootCmd = &cobra.Command{
	Use:   "siteline",
	Short: "Siteline CLI",
	Long: `Siteline schedules construction-site work and walks it through review.
- Project: a DRAFT plan that workers only see once a PM publishes it.
- Object / sub-object: a building and a room or zone inside it; workers are assigned per sub-object.
- Task: a unit of work with a checklist. SEQUENTIAL tasks run one after another; PARALLEL tasks sharing an index run together.
- Review: a worker submits a report, a foreman and then a PM approve or send it back for rework.
- Templates: reusable checklists and sub-object task sets.
- Event log: every change, view with 'siteline log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SITELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor", "", "id of the actor to act as")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor", rootCmd.PersistentFlags().Lookup("actor"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(actorCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(objectCmd())
	rootCmd.AddCommand(subObjectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(checklistCmd())
	rootCmd.AddCommand(evidenceCmd())
	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(decideCmd())
	rootCmd.AddCommand(queueCmd())
	rootCmd.AddCommand(mineCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- helpers ---

// loadConfig reads siteline.yml and applies SITELINE_* overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := viper.GetString("log-format"); v != "" {
		cfg.Log.Format = v
	}
	if v := viper.GetString("jwt-secret"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := viper.GetString("nats-url"); v != "" {
		cfg.Notify.NATSURL = v
	}
	if v := viper.GetString("admin-id"); v != "" {
		cfg.Bootstrap.AdminID = v
	}
	return cfg, cfg.Validate()
}

func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := app.Open(ctx, viper.GetString("workspace"), cfg, nil)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withRuntime(ctx, func(ctx context.Context, rt *app.Runtime) error {
		return fn(ctx, rt.Engine)
	})
}

// withActor resolves --actor before calling fn.
func withActor(ctx context.Context, fn func(context.Context, engine.Engine, domain.Actor) error) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		actor, err := app.ResolveActor(ctx, e, viper.GetString("actor"))
		if err != nil {
			return err
		}
		return fn(ctx, e, actor)
	})
}

func useTable() bool {
	return !viper.GetBool("json") && app.IsTerminal()
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

func printTasks(tasks []domain.Task) error {
	if !useTable() {
		return printJSON(nonNil(tasks))
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Index", "ID", "Title", "Type", "Status", "Assignees"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.Index, t.ID, t.Title, t.Type, t.Status, strings.Join(t.Assignees, ",")})
	}
	tw.Render()
	return nil
}

func printChecklist(cl domain.Checklist) error {
	if !useTable() {
		return printJSON(cl)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"#", "ID", "Description", "Photo", "Done"})
	for _, it := range cl.Items {
		tw.AppendRow(table.Row{it.OrderIndex, it.ID, it.Description, yesNo(it.IsPhotoRequired), yesNo(it.IsCompleted)})
	}
	tw.Render()
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// changedString returns a pointer to v only when the flag was set.
func changedString(cmd *cobra.Command, name, v string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}
