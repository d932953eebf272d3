package geotile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/wgdzlh/geotile/log"
	"github.com/wgdzlh/geotile/tiling"
	"github.com/wgdzlh/geotile/utils"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func noProgress(complete float64, message string, data interface{}) int {
	return 1
}

// Polygonize traces the regions of the first band of labelRaster into polygons
// written to the shapefile shp, one feature per 8-connected region with its pixel
// value in the DN field. Zero pixels are masked out.
func (g *Toolbox) Polygonize(labelRaster, shp string) (err error) {
	ds, grid, err := g.openRaster(labelRaster, gdal.ReadOnly)
	if err != nil {
		return
	}
	defer ds.Close()
	if err = os.MkdirAll(filepath.Dir(shp), os.ModePerm); err != nil {
		return
	}
	utils.RemoveShapefile(shp)
	sds, layer, gc, err := g.createShpLayer(shp, grid.Projection)
	if err != nil {
		return
	}
	defer release(gc)
	defer sds.Destroy() // 生成shp文件 + 释放资源
	band := ds.RasterBand(1)
	// 以自身为掩膜，像元值为0的区域不输出
	if err = band.Polygonize(band, layer, 0, polygonizeOpts, noProgress, nil); err != nil {
		log.Error(g.logTag+"polygonize failed", zap.String("tif", labelRaster), zap.Error(err))
		err = fmt.Errorf("%w: %w", ErrPolygonize, err)
		return
	}
	n, _ := layer.FeatureCount(true)
	log.Info(g.logTag+"raster polygonized", zap.String("tif", labelRaster), zap.String("shp", shp), zap.Int("features", n))
	return
}

type chunkJob struct {
	window tiling.TileSpec
	tif    string
	shp    string
}

// 按像元窗口将栅格均分为xChunks x yChunks块
func planChunks(width, height, xChunks, yChunks int) (specs []tiling.TileSpec, err error) {
	if xChunks <= 0 || yChunks <= 0 || xChunks > width || yChunks > height {
		err = fmt.Errorf("%w: %dx%d chunks for %dx%d raster", ErrConfig, xChunks, yChunks, width, height)
		return
	}
	specs = make([]tiling.TileSpec, 0, xChunks*yChunks)
	for r := 0; r < yChunks; r++ {
		y0, y1 := r*height/yChunks, (r+1)*height/yChunks
		for c := 0; c < xChunks; c++ {
			x0, x1 := c*width/xChunks, (c+1)*width/xChunks
			specs = append(specs, tiling.TileSpec{
				Row:     r,
				Col:     c,
				OffsetX: x0,
				OffsetY: y0,
				Width:   x1 - x0,
				Height:  y1 - y0,
			})
		}
	}
	return
}

// PolygonizeChunks is Polygonize split into pixel-window chunks processed by the
// toolbox's workers. Chunk polygons are appended into shp only after every worker
// has finished; regions crossing a chunk border come out as separate features.
func (g *Toolbox) PolygonizeChunks(ctx context.Context, labelRaster, shp string, xChunks, yChunks int) (err error) {
	grid, err := g.GetRasterGrid(labelRaster)
	if err != nil {
		return
	}
	windows, err := planChunks(grid.Width, grid.Height, xChunks, yChunks)
	if err != nil {
		return
	}
	if err = g.ensureTmpDir(); err != nil {
		return
	}
	chunkDir, err := utils.GetUniqSubDir(g.tmpDir)
	if err != nil {
		return
	}
	defer os.RemoveAll(chunkDir)
	jobs := make([]chunkJob, len(windows))
	for i, w := range windows {
		jobs[i] = chunkJob{
			window: w,
			tif:    filepath.Join(chunkDir, tiling.TileName("chunk", w.Row, w.Col, utils.FILE_EXT_TIF)),
			shp:    filepath.Join(chunkDir, tiling.TileName("chunk", w.Row, w.Col, utils.FILE_EXT_SHP)),
		}
	}
	log.Info(g.logTag+"start chunked polygonize", zap.String("tif", labelRaster), zap.Int("chunks", len(jobs)),
		zap.Int("workers", g.workers))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for _, job := range jobs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return g.polygonizeChunk(labelRaster, job)
		})
	}
	if err = eg.Wait(); err != nil {
		return
	}
	// 全部分块完成后再合并
	if err = os.MkdirAll(filepath.Dir(shp), os.ModePerm); err != nil {
		return
	}
	utils.RemoveShapefile(shp)
	for _, job := range jobs {
		if err = g.appendShapefile(shp, job.shp); err != nil {
			return
		}
	}
	log.Info(g.logTag+"chunked polygonize done", zap.String("tif", labelRaster), zap.String("shp", shp))
	return
}

func (g *Toolbox) polygonizeChunk(labelRaster string, job chunkJob) (err error) {
	w := job.window
	opts := []string{
		"-of", GTIFF_DRIVER_NAME,
		"-srcwin", strconv.Itoa(w.OffsetX), strconv.Itoa(w.OffsetY), strconv.Itoa(w.Width), strconv.Itoa(w.Height),
	}
	if err = g.translateFile(labelRaster, job.tif, opts); err != nil {
		return
	}
	return g.Polygonize(job.tif, job.shp)
}
