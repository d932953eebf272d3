package cli

import (
	"fmt"

	"github.com/wgdzlh/geotile"
	"github.com/wgdzlh/geotile/log"
	"github.com/wgdzlh/geotile/tiling"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type cropFlags struct {
	size       int
	supplement bool
	channels   string
	binarize   string
	overlap    float64
}

func (f *cropFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.size, "size", "s", geotile.DEFAULT_CROP_SIZE, "tile size in pixels")
	cmd.Flags().BoolVar(&f.supplement, "supplement", false, "pull the last row/column back to keep full-size tiles")
	cmd.Flags().StringVar(&f.channels, "channels", string(geotile.ChannelsAll), "bands to crop: all, RGB, R, G, B, NIR")
	cmd.Flags().StringVar(&f.binarize, "binarize", string(tiling.BinarizeMaxBackground), "single band policy: max-background, none")
}

// 命令行参数覆盖配置文件
func (f *cropFlags) apply(cmd *cobra.Command, c *Config) error {
	if cmd.Flags().Changed("size") {
		c.Crop.Size = f.size
	}
	if cmd.Flags().Changed("supplement") {
		c.Crop.Supplement = f.supplement
	}
	if cmd.Flags().Changed("channels") {
		c.Crop.Channels = f.channels
	}
	if cmd.Flags().Changed("binarize") {
		c.Crop.Binarize = f.binarize
	}
	return c.Validate()
}

func (a *app) newCropCmd() *cobra.Command {
	var f cropFlags
	cmd := &cobra.Command{
		Use:   "crop <src> <save-dir>",
		Short: "Cut a tif raster or a jpg/png image into fixed-size tiles",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err = f.apply(cmd, &a.cfg); err != nil {
				return
			}
			src, saveDir := args[0], args[1]
			var tiles []tiling.TileFile
			switch {
			case tiling.IsImageTile(src) && f.overlap > 0:
				tiles, err = tiling.CropImageOverlap(src, saveDir, a.cfg.Crop.Size, f.overlap)
			case tiling.IsImageTile(src):
				tiles, err = tiling.CropImage(src, saveDir, a.cfg.Crop.Size, a.cfg.Crop.Supplement)
			case f.overlap > 0:
				err = fmt.Errorf("%w: overlap crop only applies to jpg/png images", geotile.ErrConfig)
			default:
				tiles, err = a.cfg.NewToolbox().CropRaster(src, saveDir, a.cfg.CropOptions())
			}
			if err != nil {
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d tiles written to %s\n", len(tiles), saveDir)
			return
		},
	}
	f.bind(cmd)
	cmd.Flags().Float64Var(&f.overlap, "overlap", 0, "overlap rate in [0, 1) for jpg/png images")
	return cmd
}

func (a *app) newBatchCmd() *cobra.Command {
	var (
		f       cropFlags
		workers int
	)
	cmd := &cobra.Command{
		Use:   "batch <src-dir> <save-dir>",
		Short: "Crop every tif/jpg/png file of a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if cmd.Flags().Changed("workers") {
				a.cfg.Batch.Workers = workers
			}
			if err = f.apply(cmd, &a.cfg); err != nil {
				return
			}
			results, err := a.cfg.NewToolbox().BatchCrop(cmd.Context(), args[0], args[1], a.cfg.CropOptions())
			if err != nil {
				return
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d tiles in %s\n", r.Source, len(r.Tiles), r.Dir)
			}
			return
		},
	}
	f.bind(cmd)
	cmd.Flags().IntVarP(&workers, "workers", "w", geotile.DEFAULT_BATCH_WORKERS, "concurrent files")
	return cmd
}

func (a *app) newMergeCmd() *cobra.Command {
	var (
		withProj bool
		sidecar  string
	)
	cmd := &cobra.Command{
		Use:   "merge <tile-dir> <out>",
		Short: "Mosaic georeferenced tif tiles into one raster",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tb := a.cfg.NewToolbox()
			if withProj || sidecar != "" {
				return tb.MergeRastersWithProj(args[0], sidecar, args[1])
			}
			return tb.MergeRasters(args[0], args[1])
		},
	}
	cmd.Flags().BoolVar(&withProj, "with-proj", false, "restore tile georeference from the sidecar before merging")
	cmd.Flags().StringVar(&sidecar, "sidecar", "", "sidecar file (default: the single *_info.txt in tile-dir)")
	return cmd
}

func (a *app) newMergeImagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge-images <tile-dir> <out>",
		Short: "Stitch non-overlapping jpg/png tiles back into one image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			canvas, err := tiling.MergeImages(args[0], args[1])
			if err != nil {
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%dx%d image written to %s\n", canvas.Dx(), canvas.Dy(), args[1])
			return
		},
	}
}

func (a *app) newRasterizeCmd() *cobra.Command {
	var mode, engine string
	cmd := &cobra.Command{
		Use:   "rasterize <vector> <reference> <out>",
		Short: "Burn vector polygons into a label raster aligned with a reference raster",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if cmd.Flags().Changed("engine") {
				a.cfg.Rasterize.Engine = engine
				if err = a.cfg.Validate(); err != nil {
					return
				}
			}
			return a.cfg.NewToolbox().RasterizeVector(args[0], args[1], args[2], tiling.ChannelMode(mode))
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", string(tiling.ChannelSingle), "channel mode: single, multi")
	cmd.Flags().StringVar(&engine, "engine", string(geotile.BurnGdal), "burn engine: gdal, native")
	return cmd
}

// 命令行未指定--chunks时沿用配置文件
func (a *app) polygonizeChunks(cmd *cobra.Command, flag int) int {
	if cmd.Flags().Changed("chunks") {
		a.cfg.Batch.Chunks = flag
	}
	return a.cfg.Batch.Chunks
}

func (a *app) newPolygonizeCmd() *cobra.Command {
	var chunks int
	cmd := &cobra.Command{
		Use:   "polygonize <label-raster> <out.shp>",
		Short: "Trace label raster regions into a shapefile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tb := a.cfg.NewToolbox()
			n := a.polygonizeChunks(cmd, chunks)
			if n <= 1 {
				return tb.Polygonize(args[0], args[1])
			}
			log.Info("cli:chunked polygonize", zap.Int("chunks", n))
			return tb.PolygonizeChunks(cmd.Context(), args[0], args[1], n, n)
		},
	}
	cmd.Flags().IntVar(&chunks, "chunks", geotile.DEFAULT_CHUNKS, "split into chunks x chunks windows polygonized in parallel")
	return cmd
}
