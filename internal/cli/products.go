package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/product_catalog/internal/client"
	"github.com/Skotchmaster/product_catalog/internal/form"
	"github.com/Skotchmaster/product_catalog/internal/models"
)

type fieldFlags struct {
	values      map[string]*string
	image       string
	interactive bool
}

func bindFieldFlags(cmd *cobra.Command) *fieldFlags {
	ff := &fieldFlags{values: map[string]*string{}}
	for _, f := range form.Fields {
		ff.values[f] = cmd.Flags().String(f, "", form.Label(f))
	}
	cmd.Flags().StringVar(&ff.image, "image", "", "path to a .jpg, .jpeg or .png image")
	cmd.Flags().BoolVarP(&ff.interactive, "interactive", "i", false, "prompt for values not given as flags")
	return ff
}

type fieldSetter interface {
	Set(field, value string) error
	SelectImage(f models.PendingFile)
	Draft() client.ProductDraft
}

// apply copies flag values into the form and prompts for the rest when
// interactive. Prompted blank answers keep the current value.
func (ff *fieldFlags) apply(cmd *cobra.Command, f fieldSetter) error {
	var in *bufio.Reader
	if ff.interactive {
		in = bufio.NewReader(cmd.InOrStdin())
	}
	out := cmd.OutOrStdout()
	current := f.Draft()

	for _, field := range form.Fields {
		if cmd.Flags().Changed(field) {
			if err := f.Set(field, *ff.values[field]); err != nil {
				return err
			}
			continue
		}
		if in == nil {
			continue
		}
		answer, err := prompt(in, out, form.Label(field), valueOf(current, field))
		if err != nil {
			return err
		}
		if answer != "" {
			if err := f.Set(field, answer); err != nil {
				return err
			}
		}
	}

	path := ff.image
	if path == "" && in != nil {
		answer, err := prompt(in, out, "Image path", current.Image.String())
		if err != nil {
			return err
		}
		path = answer
	}
	if path != "" {
		pf, err := models.PendingFromPath(path)
		if err != nil {
			return err
		}
		f.SelectImage(pf)
	}
	return nil
}

func valueOf(d client.ProductDraft, field string) string {
	switch field {
	case form.FieldName:
		return d.Name
	case form.FieldDescription:
		return d.Description
	case form.FieldPrice:
		return d.Price
	case form.FieldQuantity:
		return d.Quantity
	}
	return ""
}

func prompt(in *bufio.Reader, out io.Writer, label, current string) (string, error) {
	if current != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, current)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// report prints a store result and turns a failure into a command error.
func report(cmd *cobra.Command, res client.Result) error {
	if !res.Success {
		return errors.New(res.Message)
	}
	if res.Message != "" {
		fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	}
	return nil
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List all products",
		Args:    cobra.NoArgs,
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res := a.store.FetchAll(cmd.Context())
			if !res.Success {
				return errors.New(res.Message)
			}
			items := a.store.Products()
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No products found")
				return nil
			}
			for _, p := range items {
				if err := form.RenderCard(out, p, a.store.ImageURL); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) createCmd() *cobra.Command {
	var ff *fieldFlags
	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a product with an image",
		Args:    cobra.NoArgs,
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := form.NewCreateForm(a.store)
			if err := ff.apply(cmd, f); err != nil {
				return err
			}
			if ff.interactive {
				if err := f.Render(cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			return report(cmd, f.Submit(cmd.Context()))
		},
	}
	ff = bindFieldFlags(cmd)
	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	var ff *fieldFlags
	cmd := &cobra.Command{
		Use:     "update <id>",
		Short:   "Update a product; only given values change",
		Args:    cobra.ExactArgs(1),
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			p, res := a.store.Get(cmd.Context(), id)
			if !res.Success {
				return errors.New(res.Message)
			}

			f := form.NewEditForm(a.store, p)
			if err := ff.apply(cmd, f); err != nil {
				return err
			}
			if err := report(cmd, f.Submit(cmd.Context())); err != nil {
				return err
			}
			if updated, ok := a.store.Lookup(id); ok {
				return form.RenderCard(cmd.OutOrStdout(), updated, a.store.ImageURL)
			}
			return nil
		},
	}
	ff = bindFieldFlags(cmd)
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Short:   "Delete a product",
		Args:    cobra.ExactArgs(1),
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(cmd, a.store.Remove(cmd.Context(), args[0]))
		},
	}
}

func (a *app) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "search <query>",
		Short:   "Search products by name or description",
		Args:    cobra.MinimumNArgs(1),
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, total, res := a.store.Search(cmd.Context(), strings.Join(args, " "))
			if !res.Success {
				return errors.New(res.Message)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d match(es)\n", total)
			for _, p := range items {
				if err := form.RenderCard(out, p, a.store.ImageURL); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
