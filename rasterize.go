package geotile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/wgdzlh/geotile/log"
	"github.com/wgdzlh/geotile/tiling"
	"github.com/wgdzlh/geotile/utils"

	"github.com/lukeroth/gdal"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

// RasterizeVector burns the polygons of a vector file into a label raster aligned
// with reference and writes it to out.
func (g *Toolbox) RasterizeVector(vector, reference, out string, mode tiling.ChannelMode) (err error) {
	if mode, err = tiling.ParseChannelMode(string(mode)); err != nil {
		return
	}
	if _, err = outputDriver(out); err != nil {
		return
	}
	fs, err := g.ReadFeatures(vector)
	if err != nil {
		return
	}
	return g.RasterizeFeatures(fs, reference, out, mode)
}

// RasterizeFeatures is RasterizeVector for features already in memory. Pixels whose
// centre falls inside a polygon are burned; the burn itself is done by the
// Toolbox's BurnEngine.
func (g *Toolbox) RasterizeFeatures(fs tiling.FeatureSet, reference, out string, mode tiling.ChannelMode) (err error) {
	if mode, err = tiling.ParseChannelMode(string(mode)); err != nil {
		return
	}
	driver, err := outputDriver(out)
	if err != nil {
		return
	}
	grid, err := g.GetRasterGrid(reference)
	if err != nil {
		return
	}
	if _, ok := grid.Transform.Invert(); !ok {
		err = fmt.Errorf("%w: degenerate geotransform %v of %s", ErrConfig, grid.Transform, reference)
		return
	}
	if err = g.ensureTmpDir(); err != nil {
		return
	}
	if err = os.MkdirAll(filepath.Dir(out), os.ModePerm); err != nil {
		return
	}
	// 先写出带nodata的8位工作栅格
	working := utils.GetUniqFile(g.tmpDir, TMP_WORKING_PREFIX, utils.FILE_EXT_TIF)
	defer os.Remove(working)
	labelGrid := RasterGrid{
		Width:      grid.Width,
		Height:     grid.Height,
		BandCount:  mode.Bands(),
		DataType:   gdal.Byte,
		Transform:  grid.Transform,
		Projection: grid.Projection,
	}
	if g.burn == BurnNative {
		err = g.burnNative(fs, labelGrid, mode, working)
	} else {
		err = g.burnGdal(fs, labelGrid, mode, working)
	}
	if err != nil {
		return
	}
	switch {
	case driver != GTIFF_DRIVER_NAME:
		err = g.ConvertFormat(working, out)
	case mode == tiling.ChannelSingle:
		err = g.writeBoolLabel(working, out, labelGrid)
	default:
		err = g.translateFile(working, out, []string{"-of", GTIFF_DRIVER_NAME})
	}
	if err != nil {
		return
	}
	log.Info(g.logTag+"vector rasterized", zap.String("ref", reference), zap.String("out", out),
		zap.String("mode", string(mode)), zap.String("engine", string(g.burn)), zap.Int("features", len(fs.Geometries)))
	return
}

// 纯Go扫描线填充后整幅写出
func (g *Toolbox) burnNative(fs tiling.FeatureSet, grid RasterGrid, mode tiling.ChannelMode, working string) (err error) {
	lr, err := tiling.Rasterize(fs, grid.Alignment(), mode)
	if err != nil {
		log.Error(g.logTag+"rasterize features failed", zap.Error(err))
		return
	}
	bufs := make([]any, len(lr.Bands))
	for i, b := range lr.Bands {
		bufs[i] = b
	}
	return g.writeRaster(working, grid, bufs, nil, &lr.NoData)
}

// 写出全背景的工作栅格，再由gdal_rasterize就地烧录多边形
func (g *Toolbox) burnGdal(fs tiling.FeatureSet, grid RasterGrid, mode tiling.ChannelMode, working string) (err error) {
	bufs := make([]any, grid.BandCount)
	for i := range bufs {
		bufs[i] = make([]byte, grid.Width*grid.Height) // LABEL_BACKGROUND
	}
	noData := float64(tiling.LABEL_NODATA)
	if err = g.writeRaster(working, grid, bufs, nil, &noData); err != nil {
		return
	}
	polys := fs.Polygons()
	if len(polys) == 0 {
		log.Info(g.logTag+"no polygon to burn", zap.Int("features", len(fs.Geometries)))
		return
	}
	vector, err := g.writeFeatureFile(polys)
	if err != nil {
		return
	}
	defer os.Remove(vector)
	vds, err := gdal.OpenEx(vector, gdal.OFVector, nil, nil, nil)
	if err != nil {
		log.Error(g.logTag+"open feature file failed", zap.String("vector", vector), zap.Error(err))
		err = fmt.Errorf("%w: %w", ErrSourceOpen, err)
		return
	}
	defer vds.Close()
	opts := burnOptions(grid.BandCount, burnValue(fs, mode))
	ds, err := gdal.Rasterize(working, vds, opts)
	if err != nil {
		log.Error(g.logTag+"gdal rasterize failed", zap.Strings("opts", opts), zap.Error(err))
		err = fmt.Errorf("%w: %w", ErrRasterize, err)
		return
	}
	ds.Close()
	log.Debug(g.logTag+"polygons burned", zap.Int("polygons", len(polys)), zap.Strings("opts", opts))
	return
}

// 单通道恒为1；多通道取FeatureSet指定值，未指定为255
func burnValue(fs tiling.FeatureSet, mode tiling.ChannelMode) byte {
	if mode == tiling.ChannelMulti && fs.Value != 0 {
		return fs.Value
	}
	return mode.Foreground()
}

// 每个波段一组 -b/-burn，未给出 -init/-te 等创建参数时gdal_rasterize更新已有栅格
func burnOptions(bands int, value byte) (opts []string) {
	v := strconv.Itoa(int(value))
	for b := 1; b <= bands; b++ {
		opts = append(opts, "-b", strconv.Itoa(b))
	}
	for b := 1; b <= bands; b++ {
		opts = append(opts, "-burn", v)
	}
	return
}

// 多边形写入临时GeoJSON供OGR读取
func (g *Toolbox) writeFeatureFile(polys []orb.Polygon) (path string, err error) {
	fc := geojson.NewFeatureCollection()
	for _, p := range polys {
		fc.Append(geojson.NewFeature(p))
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return
	}
	path = utils.GetUniqFile(g.tmpDir, TMP_FEATURE_PREFIX, FILE_EXT_GEOJSON)
	if err = os.WriteFile(path, data, 0o644); err != nil {
		log.Error(g.logTag+"write feature file failed", zap.String("path", path), zap.Error(err))
	}
	return
}

// 单通道标签转为1位深，转换后重新写入投影与仿射参数
func (g *Toolbox) writeBoolLabel(working, out string, grid RasterGrid) (err error) {
	opts := append([]string{"-of", GTIFF_DRIVER_NAME}, boolLabelCreateOpts...)
	if err = g.translateFile(working, out, opts); err != nil {
		return
	}
	return g.restoreGeoref(out, tiling.SidecarRecord{
		Filename:   filepath.Base(out),
		Projection: grid.Projection,
		Transform:  grid.Transform,
	})
}

func (g *Toolbox) translateFile(src, dst string, opts []string) (err error) {
	ds, err := gdal.Open(src, gdal.ReadOnly)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSourceOpen, err)
		return
	}
	defer ds.Close()
	return g.translate(dst, ds, opts)
}
