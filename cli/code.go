package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Xangel0s/docqr-Flex-sub000/logging"
	"github.com/Xangel0s/docqr-Flex-sub000/qrcode"
)

func newCodeCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "code <document-id>",
		Short: "Write the retrieval code of a document as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			gen, err := qrcode.New(cfg.Code.BaseURL, cfg.Code.Size, cfg.Code.Level)
			if err != nil {
				return err
			}
			data, err := gen.PNG(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = args[0] + ".png"
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write code: %w", err)
			}
			logging.FromContext(cmd.Context()).Info("wrote retrieval code", "file", output, "url", gen.URL(args[0]))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <document-id>.png)")
	return cmd
}
