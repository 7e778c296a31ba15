package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Xangel0s/docqr-Flex-sub000/errkind"
	"github.com/Xangel0s/docqr-Flex-sub000/logging"
	"github.com/Xangel0s/docqr-Flex-sub000/orchestrator"
	"github.com/Xangel0s/docqr-Flex-sub000/placement"
	"github.com/Xangel0s/docqr-Flex-sub000/qrcode"
)

// placementFlags are the canonical square shared by embed and place.
type placementFlags struct {
	x, y, size float64
}

func (f *placementFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.x, "x", 20, "left edge in canonical units")
	cmd.Flags().Float64Var(&f.y, "y", 20, "top edge in canonical units")
	cmd.Flags().Float64Var(&f.size, "size", 80, "side of the square in canonical units")
}

func (f *placementFlags) canonical() placement.Canonical {
	return placement.Square(f.x, f.y, f.size)
}

// embedFlags are the inputs of a local embed beyond the placement.
type embedFlags struct {
	id          string
	overlay     string
	replacement string
	repWidth    float64
	repHeight   float64
	repUnit     string
	output      string
}

func (f *embedFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "id", "", "document id encoded in the default code (default source file name)")
	cmd.Flags().StringVar(&f.overlay, "overlay", "", "overlay image (default the retrieval code of --id)")
	cmd.Flags().StringVar(&f.replacement, "replacement", "", "pre-rendered page 1 (PDF or image) used when the source cannot be parsed")
	cmd.Flags().Float64Var(&f.repWidth, "replacement-width", 0, "page width a replacement image represents")
	cmd.Flags().Float64Var(&f.repHeight, "replacement-height", 0, "page height a replacement image represents")
	cmd.Flags().StringVar(&f.repUnit, "replacement-unit", "", "unit of the replacement dimensions (inferred when empty)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (default <source>-docqr.pdf)")
}

// prepare reads the inputs of a local embed of source.
func (f *embedFlags) prepare(cmd *cobra.Command, source string) (localEmbed, error) {
	ctx := cmd.Context()
	cfg := configFromContext(ctx)
	logger := logging.FromContext(ctx)

	data, err := os.ReadFile(source)
	if err != nil {
		return localEmbed{}, fmt.Errorf("read source: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	id := f.id
	if id == "" {
		id = base
	}
	output := f.output
	if output == "" {
		output = filepath.Join(filepath.Dir(source), base+"-docqr.pdf")
	}

	var overlay []byte
	if f.overlay != "" {
		if overlay, err = os.ReadFile(f.overlay); err != nil {
			return localEmbed{}, fmt.Errorf("read overlay: %w", err)
		}
	} else {
		gen, err := qrcode.New(cfg.Code.BaseURL, cfg.Code.Size, cfg.Code.Level)
		if err != nil {
			return localEmbed{}, err
		}
		if overlay, err = gen.PNG(id); err != nil {
			return localEmbed{}, err
		}
	}

	rep, err := loadReplacement(f.replacement, f.repWidth, f.repHeight, f.repUnit)
	if err != nil {
		return localEmbed{}, err
	}

	return localEmbed{
		cfg:    cfg,
		logger: logger,
		observer: orchestrator.ObserverFunc(func(_ context.Context, t orchestrator.Transition) {
			logger.Debug("job", "job_id", t.JobID, "from", t.From, "to", t.To)
		}),
		id:          id,
		source:      data,
		overlay:     overlay,
		replacement: rep,
		output:      output,
	}, nil
}

// report prints the outcome of a job and turns a failure into an error.
func report(cmd *cobra.Command, output string, res orchestrator.EmbedResult) error {
	if !res.Success {
		printFailure(cmd.ErrOrStderr(), res.ErrorKind, res.Message, res.Hint)
		return errkind.New(res.ErrorKind, res.Message)
	}
	printResult(cmd.OutOrStdout(), output, res)
	return nil
}

func newEmbedCmd() *cobra.Command {
	var (
		pf placementFlags
		ef embedFlags
	)

	cmd := &cobra.Command{
		Use:   "embed <source.pdf>",
		Short: "Embed an overlay into page 1 of a document",
		Long: `Embed an overlay into page 1 of a document and write a single-page result.

The placement is given in canonical units, a 595 x 842 space laid over the
page with the origin at the top-left corner.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ef.prepare(cmd, args[0])
			if err != nil {
				return err
			}
			res, err := job.run(cmd.Context(), pf.canonical())
			if err != nil {
				return err
			}
			return report(cmd, job.output, res)
		},
	}

	pf.register(cmd)
	ef.register(cmd)
	return cmd
}
