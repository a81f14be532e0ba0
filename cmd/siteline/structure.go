package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"siteline/internal/domain"
	"siteline/internal/engine"
)

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	var in engine.ProjectInput
	var deadline string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a draft project",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Deadline = optionalString(deadline)
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				p, err := e.CreateProject(ctx, actor, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	create.Flags().StringVar(&in.ID, "id", "", "project id (generated when empty)")
	create.Flags().StringVar(&in.Name, "name", "", "project name")
	create.Flags().StringVar(&deadline, "deadline", "", "deadline (YYYY-MM-DD)")
	_ = create.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List visible projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				ps, err := e.ListProjects(ctx, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(nonNil(ps))
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				p, err := e.GetProject(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}

	var name, newDeadline string
	update := &cobra.Command{
		Use:   "update <project-id>",
		Short: "Rename a project or change its deadline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			up := engine.ProjectUpdate{
				Name:     changedString(cmd, "name", name),
				Deadline: changedString(cmd, "deadline", newDeadline),
			}
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				p, err := e.UpdateProject(ctx, actor, args[0], up)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	update.Flags().StringVar(&name, "name", "", "new name")
	update.Flags().StringVar(&newDeadline, "deadline", "", "new deadline; empty clears it")

	publish := &cobra.Command{
		Use:   "publish <project-id>",
		Short: "Publish a draft project to workers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				p, err := e.PublishProject(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}

	progress := &cobra.Command{
		Use:   "progress <project-id>",
		Short: "Task counts by status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				counts, err := e.ProjectProgress(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(counts)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project and everything in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				return e.DeleteProject(ctx, actor, args[0])
			})
		},
	}

	prj.AddCommand(create, list, show, update, publish, progress, del)
	return prj
}

func objectCmd() *cobra.Command {
	obj := &cobra.Command{Use: "object", Short: "Manage construction objects"}
	var in engine.ObjectInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an object in a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				o, err := e.CreateObject(ctx, actor, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	create.Flags().StringVar(&in.ProjectID, "project", "", "project id")
	create.Flags().StringVar(&in.Name, "name", "", "object name")
	create.Flags().StringVar(&in.Address, "address", "", "street address")
	_ = create.MarkFlagRequired("project")
	_ = create.MarkFlagRequired("name")

	var projectID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List objects of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				objs, err := e.ListObjects(ctx, actor, projectID)
				if err != nil {
					return err
				}
				return printJSONOrTable(nonNil(objs))
			})
		},
	}
	list.Flags().StringVar(&projectID, "project", "", "project id")
	_ = list.MarkFlagRequired("project")

	var name, address string
	update := &cobra.Command{
		Use:   "update <object-id>",
		Short: "Update an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			up := engine.ObjectUpdate{
				Name:    changedString(cmd, "name", name),
				Address: changedString(cmd, "address", address),
			}
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				o, err := e.UpdateObject(ctx, actor, args[0], up)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	update.Flags().StringVar(&name, "name", "", "new name")
	update.Flags().StringVar(&address, "address", "", "new address")

	del := &cobra.Command{
		Use:   "delete <object-id>",
		Short: "Delete an object and its sub-objects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				return e.DeleteObject(ctx, actor, args[0])
			})
		},
	}

	obj.AddCommand(create, list, update, del)
	return obj
}

func subObjectCmd() *cobra.Command {
	sub := &cobra.Command{Use: "subobject", Short: "Manage sub-objects (rooms, zones)"}
	var in engine.SubObjectInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a sub-object",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				s, err := e.CreateSubObject(ctx, actor, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	create.Flags().StringVar(&in.ObjectID, "object", "", "object id")
	create.Flags().StringVar(&in.Name, "name", "", "sub-object name")
	create.Flags().StringSliceVar(&in.Workers, "workers", nil, "assigned worker ids")
	_ = create.MarkFlagRequired("object")
	_ = create.MarkFlagRequired("name")

	var objectID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List sub-objects of an object",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				subs, err := e.ListSubObjects(ctx, actor, objectID)
				if err != nil {
					return err
				}
				return printJSONOrTable(nonNil(subs))
			})
		},
	}
	list.Flags().StringVar(&objectID, "object", "", "object id")
	_ = list.MarkFlagRequired("object")

	rename := &cobra.Command{
		Use:   "rename <subobject-id> <name>",
		Short: "Rename a sub-object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				s, err := e.RenameSubObject(ctx, actor, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}

	var add, remove []string
	workers := &cobra.Command{
		Use:   "workers <subobject-id>",
		Short: "Add or remove assigned workers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(add) == 0 && len(remove) == 0 {
				return fmt.Errorf("--add or --remove required")
			}
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				s, err := e.AssignWorkers(ctx, actor, args[0], add, remove)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	workers.Flags().StringSliceVar(&add, "add", nil, "worker ids to assign")
	workers.Flags().StringSliceVar(&remove, "remove", nil, "worker ids to unassign")

	reconcile := &cobra.Command{
		Use:   "reconcile <subobject-id>",
		Short: "Recompute which tasks are LOCKED or ACTIVE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				tasks, err := e.ReconcileSubObject(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return printTasks(tasks)
			})
		},
	}

	var templateID string
	apply := &cobra.Command{
		Use:   "apply-template <subobject-id>",
		Short: "Create tasks from a sub-object template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				tasks, err := e.ApplySubObjectTemplate(ctx, actor, args[0], templateID)
				if err != nil {
					return err
				}
				return printTasks(tasks)
			})
		},
	}
	apply.Flags().StringVar(&templateID, "template", "", "sub-object template id")
	_ = apply.MarkFlagRequired("template")

	del := &cobra.Command{
		Use:   "delete <subobject-id>",
		Short: "Delete a sub-object and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				return e.DeleteSubObject(ctx, actor, args[0])
			})
		},
	}

	sub.AddCommand(create, list, rename, workers, reconcile, apply, del)
	return sub
}
