package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"siteline/internal/domain"
	"siteline/internal/engine"
	"siteline/internal/scheduler"
)

// placementFlags binds --start, --after and --index.
type placementFlags struct {
	start bool
	after string
	index int
}

func (p *placementFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&p.start, "start", false, "place at index 0, shifting every task")
	cmd.Flags().StringVar(&p.after, "after", "", "place right after this task")
	cmd.Flags().IntVar(&p.index, "index", 0, "place at an explicit index")
}

func (p *placementFlags) placement(cmd *cobra.Command) (scheduler.Placement, error) {
	set := 0
	out := scheduler.Placement{Mode: scheduler.PlaceEnd}
	if p.start {
		out = scheduler.Placement{Mode: scheduler.PlaceStart}
		set++
	}
	if p.after != "" {
		out = scheduler.Placement{Mode: scheduler.PlaceAfter, AfterTaskID: p.after}
		set++
	}
	if cmd.Flags().Changed("index") {
		out = scheduler.Placement{Mode: scheduler.PlaceIndex, Index: p.index}
		set++
	}
	if set > 1 {
		return out, fmt.Errorf("use only one of --start, --after, --index")
	}
	return out, nil
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}

	var opts engine.TaskCreateOptions
	var where placementFlags
	var deadline string
	var priority int
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a task in a sub-object",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := where.placement(cmd)
			if err != nil {
				return err
			}
			opts.Placement = p
			opts.Deadline = optionalString(deadline)
			if cmd.Flags().Changed("priority") {
				opts.Priority = &priority
			}
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				t, err := e.CreateTask(ctx, actor, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	create.Flags().StringVar(&opts.SubObjectID, "subobject", "", "sub-object id")
	create.Flags().StringVar(&opts.Title, "title", "", "task title")
	create.Flags().StringVar(&opts.Type, "type", domain.TaskSequential, "SEQUENTIAL or PARALLEL")
	create.Flags().StringVar(&opts.ChecklistTemplateID, "checklist-template", "", "checklist template to copy")
	create.Flags().StringSliceVar(&opts.Assignees, "assignees", nil, "assignee ids (default: sub-object workers)")
	create.Flags().StringVar(&deadline, "deadline", "", "deadline (YYYY-MM-DD)")
	create.Flags().IntVar(&priority, "priority", 0, "priority")
	where.bind(create)
	_ = create.MarkFlagRequired("subobject")
	_ = create.MarkFlagRequired("title")

	var subID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List tasks of a sub-object in execution order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				tasks, err := e.ListTasks(ctx, actor, subID)
				if err != nil {
					return err
				}
				return printTasks(tasks)
			})
		},
	}
	list.Flags().StringVar(&subID, "subobject", "", "sub-object id")
	_ = list.MarkFlagRequired("subobject")

	show := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task with checklist, report and reviews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				d, err := e.TaskDetail(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}

	var title, newDeadline string
	var newPriority int
	var clearPriority bool
	var assignees []string
	update := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Update task attributes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			up := engine.TaskUpdate{
				Title:         changedString(cmd, "title", title),
				Deadline:      changedString(cmd, "deadline", newDeadline),
				ClearPriority: clearPriority,
			}
			if cmd.Flags().Changed("priority") {
				up.Priority = &newPriority
			}
			if cmd.Flags().Changed("assignees") {
				up.Assignees = nonNil(assignees)
			}
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				t, err := e.UpdateTask(ctx, actor, args[0], up)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	update.Flags().StringVar(&title, "title", "", "new title")
	update.Flags().StringVar(&newDeadline, "deadline", "", "new deadline; empty clears it")
	update.Flags().IntVar(&newPriority, "priority", 0, "new priority")
	update.Flags().BoolVar(&clearPriority, "clear-priority", false, "drop the priority")
	update.Flags().StringSliceVar(&assignees, "assignees", nil, "replace assignees")

	var moveTo placementFlags
	move := &cobra.Command{
		Use:   "move <task-id>",
		Short: "Move a task within its sub-object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := moveTo.placement(cmd)
			if err != nil {
				return err
			}
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				t, err := e.MoveTask(ctx, actor, args[0], p)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	moveTo.bind(move)

	setType := &cobra.Command{
		Use:   "type <task-id> <SEQUENTIAL|PARALLEL>",
		Short: "Change a task's type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				t, err := e.ChangeTaskType(ctx, actor, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				return e.DeleteTask(ctx, actor, args[0])
			})
		},
	}

	task.AddCommand(create, list, show, update, move, setType, del)
	return task
}

func checklistCmd() *cobra.Command {
	cl := &cobra.Command{Use: "checklist", Short: "Edit and tick task checklists"}

	show := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task's checklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				c, err := e.GetChecklist(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return printChecklist(c)
			})
		},
	}

	var in engine.ChecklistItemInput
	var methodology string
	var order int
	add := &cobra.Command{
		Use:   "add <task-id>",
		Short: "Add a checklist item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Methodology = optionalString(methodology)
			if cmd.Flags().Changed("order") {
				in.OrderIndex = &order
			}
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				it, err := e.AddChecklistItem(ctx, actor, args[0], in)
				if err != nil {
					return err
				}
				return printJSONOrTable(it)
			})
		},
	}
	add.Flags().StringVar(&in.Description, "description", "", "item description")
	add.Flags().BoolVar(&in.IsPhotoRequired, "photo", false, "require a photo")
	add.Flags().StringVar(&methodology, "methodology", "", "how to perform the step")
	add.Flags().IntVar(&order, "order", 0, "order index (default: append)")
	_ = add.MarkFlagRequired("description")

	var from, to int
	move := &cobra.Command{
		Use:   "move <task-id>",
		Short: "Move an item between positions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				c, err := e.MoveChecklistItem(ctx, actor, args[0], from, to)
				if err != nil {
					return err
				}
				return printChecklist(c)
			})
		},
	}
	move.Flags().IntVar(&from, "from", 0, "current position")
	move.Flags().IntVar(&to, "to", 0, "new position")

	var desc, meth string
	var photo bool
	edit := &cobra.Command{
		Use:   "edit <task-id> <item-id>",
		Short: "Edit an item's description, photo requirement or methodology",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				var (
					it  domain.ChecklistItem
					err error
				)
				edited := false
				if cmd.Flags().Changed("description") {
					if it, err = e.SetItemDescription(ctx, actor, args[0], args[1], desc); err != nil {
						return err
					}
					edited = true
				}
				if cmd.Flags().Changed("photo") {
					if it, err = e.SetItemPhotoRequired(ctx, actor, args[0], args[1], photo); err != nil {
						return err
					}
					edited = true
				}
				if cmd.Flags().Changed("methodology") {
					if it, err = e.SetItemMethodology(ctx, actor, args[0], args[1], &meth); err != nil {
						return err
					}
					edited = true
				}
				if !edited {
					return fmt.Errorf("nothing to change")
				}
				return printJSONOrTable(it)
			})
		},
	}
	edit.Flags().StringVar(&desc, "description", "", "new description")
	edit.Flags().BoolVar(&photo, "photo", false, "require a photo")
	edit.Flags().StringVar(&meth, "methodology", "", "new methodology; empty clears it")

	del := &cobra.Command{
		Use:   "delete <task-id> <item-id>",
		Short: "Delete a checklist item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				c, err := e.DeleteChecklistItem(ctx, actor, args[0], args[1])
				if err != nil {
					return err
				}
				return printChecklist(c)
			})
		},
	}

	var undo bool
	toggle := &cobra.Command{
		Use:   "toggle <task-id> <item-id>",
		Short: "Mark an item done (or not done with --undo)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				it, err := e.ToggleChecklistItem(ctx, actor, args[0], args[1], !undo)
				if err != nil {
					return err
				}
				return printJSONOrTable(it)
			})
		},
	}
	toggle.Flags().BoolVar(&undo, "undo", false, "mark not done")

	var templateID string
	apply := &cobra.Command{
		Use:   "apply-template <task-id>",
		Short: "Replace the checklist with a template's items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				c, err := e.ApplyChecklistTemplate(ctx, actor, args[0], templateID)
				if err != nil {
					return err
				}
				return printChecklist(c)
			})
		},
	}
	apply.Flags().StringVar(&templateID, "template", "", "checklist template id")
	_ = apply.MarkFlagRequired("template")

	cl.AddCommand(show, add, move, edit, del, toggle, apply)
	return cl
}

func evidenceCmd() *cobra.Command {
	ev := &cobra.Command{Use: "evidence", Short: "Upload and list task photos"}
	upload := &cobra.Command{
		Use:   "upload <task-id> <file>",
		Short: "Upload a photo and print its ref",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				ref, err := uploadFile(ctx, e, actor, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{"ref": ref})
			})
		},
	}
	list := &cobra.Command{
		Use:   "list <task-id>",
		Short: "List stored photo refs of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				refs, err := e.ListEvidence(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(nonNil(refs))
			})
		},
	}
	ev.AddCommand(upload, list)
	return ev
}

func uploadFile(ctx context.Context, e engine.Engine, actor domain.Actor, taskID, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return e.UploadEvidence(ctx, actor, taskID, filepath.Base(path), f)
}

// parsePairs splits ITEM=VALUE arguments.
func parsePairs(flag string, values []string) ([][2]string, error) {
	out := make([][2]string, 0, len(values))
	for _, v := range values {
		item, val, ok := strings.Cut(v, "=")
		if !ok || item == "" || val == "" {
			return nil, fmt.Errorf("--%s expects ITEM_ID=VALUE, got %q", flag, v)
		}
		out = append(out, [2]string{item, val})
	}
	return out, nil
}

func submitCmd() *cobra.Command {
	var comment string
	var all bool
	var done, photos, uploads []string
	cmd := &cobra.Command{
		Use:   "submit <task-id>",
		Short: "Submit a report for review",
		Long: `Submit sends the task to foreman review. Items already ticked count as done;
--done marks more items and --all marks every item. Attach photos with
--photo ITEM_ID=REF or upload and attach in one go with --upload ITEM_ID=PATH.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			photoPairs, err := parsePairs("photo", photos)
			if err != nil {
				return err
			}
			uploadPairs, err := parsePairs("upload", uploads)
			if err != nil {
				return err
			}
			taskID := args[0]
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				in := engine.SubmitInput{TaskID: taskID, Comment: comment}
				if all {
					cl, err := e.GetChecklist(ctx, actor, taskID)
					if err != nil {
						return err
					}
					for _, it := range cl.Items {
						in.Answers = append(in.Answers, domain.ChecklistAnswer{ChecklistItemID: it.ID, Completed: true})
					}
				}
				for _, id := range done {
					in.Answers = append(in.Answers, domain.ChecklistAnswer{ChecklistItemID: id, Completed: true})
				}
				for _, p := range photoPairs {
					in.Photos = append(in.Photos, domain.PhotoRef{ChecklistItemID: p[0], Ref: p[1]})
				}
				for _, p := range uploadPairs {
					ref, err := uploadFile(ctx, e, actor, taskID, p[1])
					if err != nil {
						return err
					}
					in.Photos = append(in.Photos, domain.PhotoRef{ChecklistItemID: p[0], Ref: ref})
				}
				d, err := e.Submit(ctx, actor, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "report comment")
	cmd.Flags().BoolVar(&all, "all", false, "mark every checklist item done")
	cmd.Flags().StringSliceVar(&done, "done", nil, "checklist item ids to mark done")
	cmd.Flags().StringArrayVar(&photos, "photo", nil, "ITEM_ID=REF of an uploaded photo")
	cmd.Flags().StringArrayVar(&uploads, "upload", nil, "ITEM_ID=PATH of a photo to upload")
	return cmd
}

func decideCmd() *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "decide <task-id> <approve|reject>",
		Short: "Approve or reject a task under review",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var approve bool
			switch strings.ToLower(args[1]) {
			case "approve":
				approve = true
			case "reject":
			default:
				return fmt.Errorf("decision must be approve or reject")
			}
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				t, err := e.Decide(ctx, actor, args[0], approve, comment)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "review comment (required to reject)")
	return cmd
}

func queueCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Tasks waiting at your review tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				tasks, err := e.ReviewQueue(ctx, actor, projectID)
				if err != nil {
					return err
				}
				return printTasks(tasks)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project filter")
	return cmd
}

func mineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "Tasks assigned to you",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				tasks, err := e.MyTasks(ctx, actor)
				if err != nil {
					return err
				}
				return printTasks(tasks)
			})
		},
	}
}
