package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Xangel0s/docqr-Flex-sub000/inspect"
	"github.com/Xangel0s/docqr-Flex-sub000/logging"
	"github.com/Xangel0s/docqr-Flex-sub000/placement"
)

func newInspectCmd() *cobra.Command {
	var (
		unit   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <file.pdf>",
		Short: "Describe the first page of a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := configFromContext(ctx)
			logger := logging.FromContext(ctx)

			if unit == "" {
				unit = cfg.Inspect.Unit
			}
			u, err := placement.ParseUnit(unit)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read source: %w", err)
			}

			desc, err := inspect.New(inspect.WithUnit(u), inspect.WithLogger(logger)).Inspect(ctx, data)
			if err != nil {
				logger.Debug("inspection failed", "file", args[0], "err", err)
				printError(cmd.ErrOrStderr(), err)
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(desc)
			}
			printDescriptor(cmd.OutOrStdout(), args[0], desc)
			return nil
		},
	}

	cmd.Flags().StringVar(&unit, "unit", "", "unit for page dimensions (points, millimeters)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the descriptor as JSON")
	return cmd
}
