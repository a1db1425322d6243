package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vk/kernforge/internal/builder"
)

func newPlanCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [target]",
		Short: "Show which artifacts are fresh and which would be rebuilt",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := builder.TargetISO
			if len(args) == 1 {
				target = args[0]
			}
			a, err := e.newApp()
			if err != nil {
				return err
			}
			plan, err := a.Plan(cmd.Context(), target)
			if err != nil {
				return err
			}
			printPlan(e.out, plan)
			return nil
		},
	}
}

// printPlan writes one line per node. Colors are used only on terminals.
func printPlan(w io.Writer, plan *builder.Plan) {
	fresh := color.New(color.FgGreen)
	stale := color.New(color.FgYellow, color.Bold)
	dim := color.New(color.Faint)
	if isTerminal(w) {
		for _, c := range []*color.Color{fresh, stale, dim} {
			c.EnableColor()
		}
	} else {
		for _, c := range []*color.Color{fresh, stale, dim} {
			c.DisableColor()
		}
	}

	fmt.Fprintf(w, "plan for %s\n", plan.Target)
	for _, id := range plan.Order {
		entry := plan.Entries[id]
		if entry.Fresh {
			fmt.Fprintf(w, "  %s  %s\n", fresh.Sprint("fresh"), id)
			continue
		}
		fmt.Fprintf(w, "  %s  %s %s\n", stale.Sprint("stale"), id, dim.Sprintf("(%s)", entry.Reason))
	}
	fmt.Fprintf(w, "%d of %d to rebuild\n", len(plan.Stale()), len(plan.Order))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
