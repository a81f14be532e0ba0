package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"siteline/internal/domain"
	"siteline/internal/engine"
)

func templateCmd() *cobra.Command {
	tpl := &cobra.Command{
		Use:   "template",
		Short: "Manage checklist and sub-object templates",
		Long: `Templates are authored as YAML, for example:

  name: Tiling
  items:
    - description: Surface primed
      order_index: 0
    - description: Tiles laid
      is_photo_required: true
      order_index: 1`,
	}
	tpl.AddCommand(checklistTemplateCmd())
	tpl.AddCommand(subObjectTemplateCmd())
	return tpl
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func readChecklistTemplate(path string) (engine.ChecklistTemplateInput, error) {
	var t domain.ChecklistTemplate
	if err := readYAML(path, &t); err != nil {
		return engine.ChecklistTemplateInput{}, err
	}
	return engine.ChecklistTemplateInput{ID: t.ID, Name: t.Name, Items: t.Items}, nil
}

func readSubObjectTemplate(path string) (engine.SubObjectTemplateInput, error) {
	var t domain.SubObjectTemplate
	if err := readYAML(path, &t); err != nil {
		return engine.SubObjectTemplateInput{}, err
	}
	return engine.SubObjectTemplateInput{ID: t.ID, Name: t.Name, Tasks: t.Tasks}, nil
}

func checklistTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "checklist", Short: "Checklist templates"}

	var file string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a checklist template from YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readChecklistTemplate(file)
			if err != nil {
				return err
			}
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				t, err := e.CreateChecklistTemplate(ctx, actor, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	create.Flags().StringVarP(&file, "file", "f", "", "template YAML")
	_ = create.MarkFlagRequired("file")

	list := &cobra.Command{
		Use:   "list",
		Short: "List checklist templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ts, err := e.ListChecklistTemplates(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(nonNil(ts))
			})
		},
	}

	var asYAML bool
	show := &cobra.Command{
		Use:   "show <template-id>",
		Short: "Show a checklist template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetChecklistTemplate(ctx, args[0])
				if err != nil {
					return err
				}
				if asYAML {
					out, err := yaml.Marshal(t)
					if err != nil {
						return err
					}
					fmt.Print(string(out))
					return nil
				}
				return printJSONOrTable(t)
			})
		},
	}
	show.Flags().BoolVar(&asYAML, "yaml", false, "print as YAML for editing")

	var updateFile string
	update := &cobra.Command{
		Use:   "update <template-id>",
		Short: "Rewrite a checklist template in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readChecklistTemplate(updateFile)
			if err != nil {
				return err
			}
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				t, err := e.UpdateChecklistTemplate(ctx, actor, args[0], in)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	update.Flags().StringVarP(&updateFile, "file", "f", "", "template YAML")
	_ = update.MarkFlagRequired("file")

	usage := &cobra.Command{
		Use:   "usage <template-id>",
		Short: "Show which sub-object templates reference a checklist template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.ChecklistTemplateUsage(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}

	var replaceFile string
	replace := &cobra.Command{
		Use:   "replace <template-id>",
		Short: "Create a new version, relink references and delete the old one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readChecklistTemplate(replaceFile)
			if err != nil {
				return err
			}
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				res, err := e.ReplaceChecklistTemplate(ctx, actor, args[0], in)
				if err != nil {
					return err
				}
				if res.RelinkError != "" {
					fmt.Fprintf(os.Stderr, "warning: new template %s created but relinking failed: %s\n", res.New.ID, res.RelinkError)
				}
				return printJSONOrTable(res)
			})
		},
	}
	replace.Flags().StringVarP(&replaceFile, "file", "f", "", "template YAML")
	_ = replace.MarkFlagRequired("file")

	del := &cobra.Command{
		Use:   "delete <template-id>",
		Short: "Delete an unreferenced checklist template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				return e.DeleteChecklistTemplate(ctx, actor, args[0])
			})
		},
	}

	cmd.AddCommand(create, list, show, update, usage, replace, del)
	return cmd
}

func subObjectTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "subobject", Short: "Sub-object templates"}

	var file string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a sub-object template from YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readSubObjectTemplate(file)
			if err != nil {
				return err
			}
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				t, err := e.CreateSubObjectTemplate(ctx, actor, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	create.Flags().StringVarP(&file, "file", "f", "", "template YAML")
	_ = create.MarkFlagRequired("file")

	list := &cobra.Command{
		Use:   "list",
		Short: "List sub-object templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ts, err := e.ListSubObjectTemplates(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(nonNil(ts))
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <template-id>",
		Short: "Show a sub-object template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetSubObjectTemplate(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}

	var updateFile string
	update := &cobra.Command{
		Use:   "update <template-id>",
		Short: "Rewrite a sub-object template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readSubObjectTemplate(updateFile)
			if err != nil {
				return err
			}
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				t, err := e.UpdateSubObjectTemplate(ctx, actor, args[0], in)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	update.Flags().StringVarP(&updateFile, "file", "f", "", "template YAML")
	_ = update.MarkFlagRequired("file")

	del := &cobra.Command{
		Use:   "delete <template-id>",
		Short: "Delete a sub-object template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				return e.DeleteSubObjectTemplate(ctx, actor, args[0])
			})
		},
	}

	cmd.AddCommand(create, list, show, update, del)
	return cmd
}
