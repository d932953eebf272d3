package geotile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wgdzlh/geotile/log"
	"github.com/wgdzlh/geotile/tiling"
	"github.com/wgdzlh/geotile/utils"

	"github.com/lukeroth/gdal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// 切块的像元来源：单波段源整幅读入后二值化，其余逐块窗口读取
type tileSource interface {
	read(spec tiling.TileSpec) ([]any, error)
	dataType() gdal.DataType
}

type binarizedBand struct {
	buf   []byte
	width int
}

func (b *binarizedBand) read(s tiling.TileSpec) (bufs []any, err error) {
	tile := make([]byte, s.Width*s.Height)
	for y := 0; y < s.Height; y++ {
		row := (s.OffsetY+y)*b.width + s.OffsetX
		copy(tile[y*s.Width:(y+1)*s.Width], b.buf[row:row+s.Width])
	}
	bufs = []any{tile}
	return
}

func (b *binarizedBand) dataType() gdal.DataType {
	return gdal.Byte
}

type windowedBands struct {
	bands []gdal.RasterBand
	dt    gdal.DataType
}

func (w *windowedBands) read(s tiling.TileSpec) (bufs []any, err error) {
	bufs = make([]any, len(w.bands))
	for i, band := range w.bands {
		if bufs[i], err = newBandBuffer(w.dt, s.Width*s.Height); err != nil {
			return
		}
		if err = readWindow(band, s.OffsetX, s.OffsetY, s.Width, s.Height, bufs[i]); err != nil {
			err = fmt.Errorf("%w: band %d window (%d,%d): %w", ErrTifReadFailed, i+1, s.OffsetX, s.OffsetY, err)
			return
		}
	}
	return
}

func (w *windowedBands) dataType() gdal.DataType {
	return w.dt
}

func (g *Toolbox) newTileSource(ds gdal.Dataset, grid RasterGrid, opts CropOptions) (src tileSource, err error) {
	if grid.BandCount == 1 && opts.Binarize != tiling.BinarizeNone {
		var buf any
		if buf, err = newBandBuffer(grid.DataType, grid.Width*grid.Height); err != nil {
			return
		}
		if err = readWindow(ds.RasterBand(1), 0, 0, grid.Width, grid.Height, buf); err != nil {
			log.Error(g.logTag+"read single band failed", zap.Error(err))
			err = fmt.Errorf("%w: %w", ErrTifReadFailed, err)
			return
		}
		var (
			labels []byte
			bg     int
		)
		if labels, bg, err = binarizeBuffer(buf); err != nil {
			return
		}
		log.Info(g.logTag+"single band binarized", zap.String("policy", string(opts.Binarize)),
			zap.String("dt", grid.DataType.Name()), zap.Int("background", bg))
		src = &binarizedBand{buf: labels, width: grid.Width}
		return
	}
	if grid.BandCount == 1 {
		// 不二值化时按原数据类型逐块读取
		opts.Channels = ChannelsAll
	}
	idx, err := opts.Channels.Bands(grid.BandCount)
	if err != nil {
		return
	}
	if _, err = newBandBuffer(grid.DataType, 0); err != nil {
		return
	}
	wb := &windowedBands{dt: grid.DataType, bands: make([]gdal.RasterBand, len(idx))}
	for i, b := range idx {
		wb.bands[i] = ds.RasterBand(b)
	}
	src = wb
	return
}

// 以波段自身数据类型求最大值后二值化
func binarizeBuffer(buf any) (labels []byte, background int, err error) {
	switch v := buf.(type) {
	case []uint8:
		labels, background = tiling.BinarizeMax(v)
	case []int16:
		labels, background = tiling.BinarizeMax(v)
	case []uint16:
		labels, background = tiling.BinarizeMax(v)
	case []int32:
		labels, background = tiling.BinarizeMax(v)
	case []uint32:
		labels, background = tiling.BinarizeMax(v)
	case []float32:
		labels, background = tiling.BinarizeMax(v)
	case []float64:
		labels, background = tiling.BinarizeMax(v)
	default:
		err = fmt.Errorf("%w: %T", ErrUnsupportedType, buf)
	}
	return
}

func validateCropOptions(opts CropOptions) (err error) {
	if _, err = tiling.ParseBinarizePolicy(string(opts.Binarize)); err != nil {
		return
	}
	if _, err = ParseChannels(string(opts.Channels)); err != nil {
		return
	}
	return
}

// CropRaster cuts a georeferenced raster into CropSize x CropSize GTiff tiles named
// <base>_<row>_<col><ext> in saveDir, and records every tile's projection and
// transform in <base>_info.txt next to them. Tiles are returned in row-major order.
func (g *Toolbox) CropRaster(src, saveDir string, opts CropOptions) (tiles []tiling.TileFile, err error) {
	opts = opts.withDefaults()
	if err = validateCropOptions(opts); err != nil {
		return
	}
	ds, grid, err := g.openRaster(src, gdal.ReadOnly)
	if err != nil {
		return
	}
	defer ds.Close()
	specs, err := tiling.PlanGrid(grid.Width, grid.Height, opts.CropSize, opts.Supplement)
	if err != nil {
		log.Error(g.logTag+"plan crop grid failed", zap.String("tif", src), zap.Error(err))
		return
	}
	ts, err := g.newTileSource(ds, grid, opts)
	if err != nil {
		return
	}
	if err = os.MkdirAll(saveDir, os.ModePerm); err != nil {
		return
	}
	base, ext := utils.GetFilenameWithoutExt(src), filepath.Ext(src)
	sc, err := tiling.CreateSidecar(tiling.SidecarPath(saveDir, base))
	if err != nil {
		log.Error(g.logTag+"create sidecar failed", zap.String("dir", saveDir), zap.Error(err))
		return
	}
	defer func() {
		err = multierr.Append(err, sc.Close())
	}()
	log.Info(g.logTag+"start crop raster", zap.String("tif", src), zap.Int("width", grid.Width), zap.Int("height", grid.Height),
		zap.Int("bands", grid.BandCount), zap.String("dt", grid.DataType.Name()), zap.Int("tiles", len(specs)))
	tiles = make([]tiling.TileFile, 0, len(specs))
	for _, s := range specs {
		var tf tiling.TileFile
		if tf, err = g.writeTile(ts, grid, s, filepath.Join(saveDir, tiling.TileName(base, s.Row, s.Col, ext)), sc); err != nil {
			return
		}
		tiles = append(tiles, tf)
	}
	log.Info(g.logTag+"raster cropped", zap.String("tif", src), zap.String("dir", saveDir), zap.Int("tiles", len(tiles)),
		zap.String("sidecar", sc.Path()), zap.Int("records", sc.Count()))
	return
}

func (g *Toolbox) writeTile(ts tileSource, grid RasterGrid, s tiling.TileSpec, out string, sc *tiling.SidecarWriter) (tf tiling.TileFile, err error) {
	bufs, err := ts.read(s)
	if err != nil {
		log.Error(g.logTag+"read tile failed", zap.Int("row", s.Row), zap.Int("col", s.Col), zap.Error(err))
		return
	}
	tileGrid := RasterGrid{
		Width:      s.Width,
		Height:     s.Height,
		BandCount:  len(bufs),
		DataType:   ts.dataType(),
		Transform:  grid.Transform.ForTile(s.OffsetX, s.OffsetY),
		Projection: grid.Projection,
	}
	if err = g.writeRaster(out, tileGrid, bufs, nil, nil); err != nil {
		return
	}
	err = sc.Append(tiling.SidecarRecord{
		Filename:   filepath.Base(out),
		Projection: grid.Projection,
		Transform:  tileGrid.Transform,
	})
	if err != nil {
		log.Error(g.logTag+"append sidecar failed", zap.String("tile", out), zap.Error(err))
		return
	}
	tf = tiling.TileFile{Path: out, Row: s.Row, Col: s.Col}
	return
}
