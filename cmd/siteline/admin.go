package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"siteline/internal/app"
	"siteline/internal/config"
	"siteline/internal/domain"
	"siteline/internal/engine"
	"siteline/internal/repo"
	"siteline/internal/server"
)

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage siteline.yml",
		Long:  "siteline.yml holds server, auth, notification, evidence and webhook settings. SITELINE_* environment variables override individual keys.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default siteline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
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
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
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
		Short: "Validate siteline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := loadConfig()
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func actorCmd() *cobra.Command {
	act := &cobra.Command{Use: "actor", Short: "Manage actors and API keys"}
	act.AddCommand(actorBootstrapCmd())
	act.AddCommand(actorCreateCmd())
	act.AddCommand(actorListCmd())
	act.AddCommand(actorWhoamiCmd())
	act.AddCommand(actorKeyCmd())
	return act
}

func actorBootstrapCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the first SUPER_ADMIN if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Bootstrap(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "admin", "admin actor id")
	return cmd
}

func actorCreateCmd() *cobra.Command {
	var in engine.ActorInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, by domain.Actor) error {
				a, err := e.CreateActor(ctx, by, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&in.ID, "id", "", "actor id")
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Role, "role", "", "WORKER, FOREMAN, PM, SUPER_ADMIN or ESTIMATOR")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func actorListCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List actors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, by domain.Actor) error {
				actors, err := e.ListActors(ctx, by, role)
				if err != nil {
					return err
				}
				if !useTable() {
					return printJSON(nonNil(actors))
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Role"})
				for _, a := range actors {
					tw.AppendRow(table.Row{a.ID, a.Name, a.Role})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role filter")
	return cmd
}

func actorWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current actor and its permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				perms, err := e.Auth.RolePermissions(ctx, actor.Role)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"actor": actor, "permissions": nonNil(perms)})
			})
		},
	}
}

func actorKeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "key", Short: "Manage API keys"}

	var forID, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Issue an API key; the key is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, by domain.Actor) error {
				raw, k, err := e.CreateAPIKey(ctx, by, forID, name)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"key": raw, "api_key": k})
			})
		},
	}
	create.Flags().StringVar(&forID, "for", "", "actor id (default: current actor)")
	create.Flags().StringVar(&name, "name", "", "key label")

	var listFor string
	list := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, by domain.Actor) error {
				keys, err := e.ListAPIKeys(ctx, by, listFor)
				if err != nil {
					return err
				}
				return printJSONOrTable(nonNil(keys))
			})
		},
	}
	list.Flags().StringVar(&listFor, "for", "", "actor id (default: current actor)")

	revoke := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, by domain.Actor) error {
				return e.DeleteAPIKey(ctx, by, args[0])
			})
		},
	}

	key.AddCommand(create, list, revoke)
	return key
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var before int64
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the newest events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				events, err := e.ListEvents(ctx, actor, f, n, before)
				if err != nil {
					return err
				}
				if !useTable() {
					return printJSON(nonNil(events))
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
				for _, ev := range events {
					tw.AppendRow(table.Row{ev.ID, ev.TS, ev.Type, ev.EntityKind + ":" + ev.EntityID, ev.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().Int64Var(&before, "before", 0, "only events older than this id")
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project filter")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				cfg := rt.Config
				if !cmd.Flags().Changed("addr") && cfg.Server.Addr != "" {
					addr = cfg.Server.Addr
				}
				if !cmd.Flags().Changed("base-path") && cfg.Server.BasePath != "" {
					basePath = cfg.Server.BasePath
				}
				if cfg.Auth.JWTSecret == "" {
					rt.Logger.Warn("no JWT secret configured; bearer tokens are rejected (set SITELINE_JWT_SECRET)")
				}
				handler, err := server.New(server.Config{
					Engine:   rt.Engine,
					BasePath: basePath,
					Auth: server.AuthConfig{
						JWTSecret:              cfg.Auth.JWTSecret,
						AllowLegacyActorHeader: cfg.Auth.AllowLegacyActorHeader,
						DevLogin:               cfg.Auth.DevLogin,
						Logger:                 rt.Logger,
					},
					Gatherer: rt.Registry,
					Logger:   rt.Logger,
				})
				if err != nil {
					return err
				}
				if d := server.NewDispatcher(rt.Engine, cfg.Webhooks, rt.Logger); d != nil {
					go d.Run(ctx)
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				rt.Logger.Info("serving Siteline API", "addr", addr, "base_path", basePath, "docs", "/docs")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}
