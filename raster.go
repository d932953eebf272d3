package geotile

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wgdzlh/geotile/log"
	"github.com/wgdzlh/geotile/tiling"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

// 打开栅格并读取其网格信息，调用方负责Close
func (g *Toolbox) openRaster(path string, access gdal.Access) (ds gdal.Dataset, grid RasterGrid, err error) {
	if ds, err = gdal.Open(path, access); err != nil {
		log.Error(g.logTag+"open tif failed", zap.String("tif", path), zap.Error(err))
		err = fmt.Errorf("%w: %w", ErrSourceOpen, err)
		return
	}
	grid = readGrid(ds)
	if grid.BandCount == 0 || grid.Width == 0 || grid.Height == 0 {
		ds.Close()
		log.Error(g.logTag+"tif has no pixel", zap.String("tif", path))
		err = fmt.Errorf("%w: %w: %s", ErrSourceOpen, ErrEmptyTif, path)
	}
	return
}

func readGrid(ds gdal.Dataset) (grid RasterGrid) {
	grid = RasterGrid{
		Width:      ds.RasterXSize(),
		Height:     ds.RasterYSize(),
		BandCount:  ds.RasterCount(),
		Transform:  tiling.GeoTransform(ds.GeoTransform()),
		Projection: ds.Projection(),
	}
	if grid.BandCount > 0 {
		grid.DataType = ds.RasterBand(1).RasterDataType()
	}
	return
}

// GetRasterGrid reads the size, band layout and georeference of a raster.
func (g *Toolbox) GetRasterGrid(path string) (grid RasterGrid, err error) {
	ds, grid, err := g.openRaster(path, gdal.ReadOnly)
	if err != nil {
		return
	}
	ds.Close()
	return
}

// 按数据类型分配读写缓冲
func newBandBuffer(dt gdal.DataType, n int) (buf any, err error) {
	switch dt {
	case gdal.Byte:
		buf = make([]uint8, n)
	case gdal.Int16:
		buf = make([]int16, n)
	case gdal.UInt16:
		buf = make([]uint16, n)
	case gdal.Int32:
		buf = make([]int32, n)
	case gdal.UInt32:
		buf = make([]uint32, n)
	case gdal.Float32:
		buf = make([]float32, n)
	case gdal.Float64:
		buf = make([]float64, n)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedType, dt.Name())
	}
	return
}

// 窗口读取单个波段
func readWindow(band gdal.RasterBand, xOff, yOff, w, h int, buf any) error {
	return band.IO(gdal.Read, xOff, yOff, w, h, buf, w, h, 0, 0)
}

func writeWindow(band gdal.RasterBand, w, h int, buf any) error {
	return band.IO(gdal.Write, 0, 0, w, h, buf, w, h, 0, 0)
}

// 用GTiff驱动创建新栅格
func (g *Toolbox) createRaster(path string, w, h, bands int, dt gdal.DataType, opts []string) (ds gdal.Dataset, err error) {
	driver, err := gdal.GetDriverByName(GTIFF_DRIVER_NAME)
	if err != nil {
		log.Error(g.logTag+"get tif driver failed", zap.Error(err))
		err = fmt.Errorf("%w: %w", ErrGdalDriverCreate, err)
		return
	}
	// 创建失败时返回空句柄，波段数为0
	if ds = driver.Create(path, w, h, bands, dt, opts); ds.RasterCount() == 0 {
		log.Error(g.logTag+"create tif failed", zap.String("tif", path), zap.Int("bands", bands), zap.String("dt", dt.Name()))
		err = fmt.Errorf("%w: %s", ErrGdalDriverCreate, path)
	}
	return
}

func setGeoref(ds gdal.Dataset, gt tiling.GeoTransform, proj string) (err error) {
	if err = ds.SetGeoTransform([6]float64(gt)); err != nil {
		return
	}
	if proj != "" {
		err = ds.SetProjection(proj)
	}
	return
}

// 写入多波段缓冲为GTiff，并设置地理参考
func (g *Toolbox) writeRaster(path string, grid RasterGrid, bufs []any, opts []string, noData *float64) (err error) {
	ds, err := g.createRaster(path, grid.Width, grid.Height, len(bufs), grid.DataType, opts)
	if err != nil {
		return
	}
	defer ds.Close() // 刷新并写盘
	if err = setGeoref(ds, grid.Transform, grid.Projection); err != nil {
		log.Error(g.logTag+"set georef failed", zap.String("tif", path), zap.Error(err))
		err = fmt.Errorf("%w: %w", ErrTifWriteFailed, err)
		return
	}
	for i, buf := range bufs {
		band := ds.RasterBand(i + 1)
		if noData != nil {
			if err = band.SetNoDataValue(*noData); err != nil {
				err = fmt.Errorf("%w: %w", ErrTifWriteFailed, err)
				return
			}
		}
		if err = writeWindow(band, grid.Width, grid.Height, buf); err != nil {
			log.Error(g.logTag+"write tif band failed", zap.String("tif", path), zap.Int("band", i+1), zap.Error(err))
			err = fmt.Errorf("%w: %w", ErrTifWriteFailed, err)
			return
		}
	}
	ds.FlushCache()
	return
}

// 调用gdal_translate输出目标文件
func (g *Toolbox) translate(dst string, src gdal.Dataset, opts []string) (err error) {
	out, err := gdal.Translate(dst, src, opts)
	if err != nil {
		log.Error(g.logTag+"failed to translate raster", zap.String("out", dst), zap.Strings("opts", opts), zap.Error(err))
		err = fmt.Errorf("%w: %w", ErrGdalTranslate, err)
		return
	}
	out.Close()
	return
}

// 按扩展名选择输出驱动
func outputDriver(out string) (driver string, err error) {
	ext := strings.ToLower(filepath.Ext(out))
	driver, ok := outputDriverByExt[ext]
	if !ok {
		err = fmt.Errorf("%w: unsupported output extension %q", ErrConfig, ext)
	}
	return
}

// ConvertFormat re-encodes src as dst, the output driver being chosen by the
// extension of dst. Image formats are written as 8-bit.
func (g *Toolbox) ConvertFormat(src, dst string) (err error) {
	driver, err := outputDriver(dst)
	if err != nil {
		return
	}
	ds, err := gdal.Open(src, gdal.ReadOnly)
	if err != nil {
		log.Error(g.logTag+"open convert source failed", zap.String("src", src), zap.Error(err))
		err = fmt.Errorf("%w: %w", ErrSourceOpen, err)
		return
	}
	defer ds.Close()
	opts := []string{"-of", driver}
	if driver != GTIFF_DRIVER_NAME {
		opts = append(opts, "-ot", "Byte")
	}
	if err = g.translate(dst, ds, opts); err != nil {
		return
	}
	log.Info(g.logTag+"raster converted", zap.String("src", src), zap.String("dst", dst), zap.String("driver", driver))
	return
}
