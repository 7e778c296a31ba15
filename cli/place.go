package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Xangel0s/docqr-Flex-sub000/editor"
	"github.com/Xangel0s/docqr-Flex-sub000/logging"
	"github.com/Xangel0s/docqr-Flex-sub000/placement"
)

// step is one editor gesture: "move:dx,dy", "scale:f" or "scale:fx,fy".
type step struct {
	op   string
	a, b float64
}

func parseStep(s string) (step, error) {
	op, args, ok := strings.Cut(s, ":")
	if !ok {
		return step{}, fmt.Errorf("step %q: expected op:args", s)
	}
	parts := strings.Split(args, ",")
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return step{}, fmt.Errorf("step %q: %w", s, err)
		}
		vals[i] = v
	}
	switch {
	case op == "move" && len(vals) == 2:
		return step{op: op, a: vals[0], b: vals[1]}, nil
	case op == "scale" && len(vals) == 1:
		return step{op: op, a: vals[0], b: vals[0]}, nil
	case op == "scale" && len(vals) == 2:
		return step{op: op, a: vals[0], b: vals[1]}, nil
	}
	return step{}, fmt.Errorf("step %q: unknown gesture", s)
}

func (st step) apply(s editor.State) editor.State {
	if st.op == "move" {
		s, _ = editor.Move(s, st.a, st.b)
		return s
	}
	s, _ = editor.Scale(s, st.a, st.b)
	return s
}

// textSink prints editor frames.
type textSink struct {
	w io.Writer
}

func (t textSink) Render(o editor.Object) {
	fmt.Fprintf(t.w, "  %s %s\n", styleLabel.Render("object"),
		styleValue.Render(fmt.Sprintf("x=%.2f y=%.2f size=%.2f", o.X, o.Y, o.Size)))
}

func (t textSink) Warn(c editor.Correction) {
	fmt.Fprintf(t.w, "  %s %s\n", styleHint.Render(iconHint), c)
}

func newPlaceCmd() *cobra.Command {
	var (
		pf     placementFlags
		ef     embedFlags
		commit bool
	)

	cmd := &cobra.Command{
		Use:   "place <source.pdf> [move:dx,dy | scale:f ...]",
		Short: "Adjust a placement with editor gestures",
		Long: `Load a placement into the editor surface, replay drag and resize gestures
on it, and print the resulting canonical placement.

Gestures are in surface units. With --commit the final placement is embedded
as by the embed command.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := configFromContext(ctx)
			logger := logging.FromContext(ctx)

			steps := make([]step, 0, len(args)-1)
			for _, a := range args[1:] {
				st, err := parseStep(a)
				if err != nil {
					return err
				}
				steps = append(steps, st)
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read source: %w", err)
			}
			insp, err := newInspector(cfg, logger)
			if err != nil {
				return err
			}
			desc, err := insp.Inspect(ctx, data)
			if err != nil {
				printError(cmd.ErrOrStderr(), err)
				return err
			}

			state, err := editor.New(desc.Page(), cfg.Placement.SurfaceWidth, cfg.Placement.SurfaceHeight, pf.canonical(), editor.Options{
				SafeMargin:   cfg.Placement.SafeMargin,
				MinSize:      cfg.Placement.MinSize,
				MaxSize:      cfg.Placement.MaxSize,
				WarnInterval: cfg.Editor.WarnInterval,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			sink := textSink{w: out}
			fmt.Fprintln(out, styleTitle.Render(args[0]))
			editor.Apply(state, sink)
			for _, st := range steps {
				state = st.apply(state)
				editor.Apply(state, sink)
			}

			if !commit {
				printField(out, "placement", state.Canonical().String())
				return nil
			}

			job, err := ef.prepare(cmd, args[0])
			if err != nil {
				return err
			}
			var failed error
			_, err = editor.Save(ctx, state, editor.SubmitterFunc(func(ctx context.Context, p placement.Canonical) error {
				res, err := job.run(ctx, p)
				if err != nil {
					return err
				}
				failed = report(cmd, job.output, res)
				return nil
			}))
			if err != nil {
				return err
			}
			return failed
		},
	}

	pf.register(cmd)
	ef.register(cmd)
	cmd.Flags().BoolVar(&commit, "commit", false, "embed the final placement")
	return cmd
}
