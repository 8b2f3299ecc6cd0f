package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"qsnap-gateway/internal/config"
)

// NewUploadCmd uploads an exam image, starts detection and follows the result.
func NewUploadCmd(configPath *string) *cobra.Command {
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an exam paper image and follow its processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			cfg, err := config.LoadOrDefault(*configPath)
			if err != nil {
				return err
			}
			gw, err := buildGateway(ctx, cfg)
			if err != nil {
				return err
			}
			defer gw.Close()

			ws, err := gw.service.Upload(ctx, filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s as paper %d\n", filepath.Base(args[0]), ws.PaperID())
			if noWatch {
				return nil
			}
			return follow(ctx, cmd.OutOrStdout(), ws, nil)
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "return right after detection is triggered")
	return cmd
}
