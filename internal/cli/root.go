package cli

import (
	"context"

	"github.com/wgdzlh/geotile/log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type app struct {
	cfgPath  string
	logLevel string
	cfg      Config
}

// Execute runs the geotile command line.
func Execute(ctx context.Context) error {
	return RootCommand().ExecuteContext(ctx)
}

func RootCommand() *cobra.Command {
	a := &app{cfg: DefaultConfig()}
	root := &cobra.Command{
		Use:          "geotile",
		Short:        "Tile, mosaic, rasterize and polygonize georeferenced rasters",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
			if a.cfg, err = LoadConfig(a.cfgPath); err != nil {
				return
			}
			if cmd.Flags().Changed("log-level") {
				a.cfg.Log.Level = a.logLevel
			}
			if err = log.SetLevel(a.cfg.Log.Level); err != nil {
				return
			}
			log.Debug("cli:config loaded", zap.String("path", a.cfgPath), zap.Any("config", a.cfg))
			return
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = log.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "TOML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(a.newCropCmd())
	root.AddCommand(a.newBatchCmd())
	root.AddCommand(a.newMergeCmd())
	root.AddCommand(a.newMergeImagesCmd())
	root.AddCommand(a.newRasterizeCmd())
	root.AddCommand(a.newPolygonizeCmd())
	return root
}
