package geotile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wgdzlh/geotile/log"
	"github.com/wgdzlh/geotile/tiling"
	"github.com/wgdzlh/geotile/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of cropping one source file of a batch.
type BatchResult struct {
	Source string
	Dir    string
	Tiles  []tiling.TileFile
}

func isRasterSource(path string) bool {
	return utils.HasExt(path, utils.FILE_EXT_TIF, utils.FILE_EXT_TIFF)
}

func (g *Toolbox) listBatchSources(srcDir string) (srcs []string, err error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		log.Error(g.logTag+"list batch sources failed", zap.String("dir", srcDir), zap.Error(err))
		err = fmt.Errorf("%w: %w", ErrSourceOpen, err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(srcDir, e.Name())
		if isRasterSource(p) || tiling.IsImageTile(p) {
			srcs = append(srcs, p)
		} else {
			log.Info(g.logTag+"skip non image file", zap.String("file", p))
		}
	}
	return
}

// BatchCrop crops every jpg/png image and tif raster directly inside srcDir, each into
// its own sub directory saveDir/<base>. Other files are skipped. Sources are processed
// by the toolbox's workers; the first failure cancels the remaining ones.
func (g *Toolbox) BatchCrop(ctx context.Context, srcDir, saveDir string, opts CropOptions) (results []BatchResult, err error) {
	opts = opts.withDefaults()
	if err = validateCropOptions(opts); err != nil {
		return
	}
	all, err := g.listBatchSources(srcDir)
	if err != nil {
		return
	}
	if len(all) == 0 {
		err = fmt.Errorf("%w: no image or tif file in %s", ErrSourceOpen, srcDir)
		return
	}
	log.Info(g.logTag+"start batch crop", zap.String("dir", srcDir), zap.Int("files", len(all)), zap.Int("workers", g.workers))
	results = make([]BatchResult, len(all))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, src := range all {
		results[i] = BatchResult{Source: src, Dir: filepath.Join(saveDir, utils.GetFilenameWithoutExt(src))}
		eg.Go(func() (e error) {
			if e = ctx.Err(); e != nil {
				return
			}
			r := &results[i]
			if isRasterSource(src) {
				r.Tiles, e = g.CropRaster(src, r.Dir, opts)
			} else {
				r.Tiles, e = tiling.CropImage(src, r.Dir, opts.CropSize, opts.Supplement)
			}
			if e != nil {
				log.Error(g.logTag+"batch crop file failed", zap.String("src", src), zap.Error(e))
			}
			return
		})
	}
	if err = eg.Wait(); err != nil {
		return
	}
	var n int
	for _, r := range results {
		n += len(r.Tiles)
	}
	log.Info(g.logTag+"batch crop done", zap.String("dir", srcDir), zap.Int("files", len(results)), zap.Int("tiles", n))
	return
}
