package geotile

import (
	"fmt"
	"strings"

	"github.com/wgdzlh/geotile/tiling"

	"github.com/lukeroth/gdal"
)

// 切割通道：all, RGB, R, G, B, NIR
type Channels string

const (
	ChannelsAll Channels = "all"
	ChannelsRGB Channels = "RGB"
	ChannelsR   Channels = "R"
	ChannelsG   Channels = "G"
	ChannelsB   Channels = "B"
	ChannelsNIR Channels = "NIR"
)

// 各通道对应的波段序号（从1开始）
var channelBands = map[Channels][]int{
	ChannelsRGB: {1, 2, 3},
	ChannelsR:   {1},
	ChannelsG:   {2},
	ChannelsB:   {3},
	ChannelsNIR: {4},
}

func ParseChannels(s string) (c Channels, err error) {
	if s == "" {
		c = ChannelsAll
		return
	}
	if strings.EqualFold(s, string(ChannelsAll)) {
		c = ChannelsAll
		return
	}
	c = Channels(strings.ToUpper(s))
	if _, ok := channelBands[c]; !ok {
		err = fmt.Errorf("%w: unknown channels %q", ErrConfig, s)
	}
	return
}

// Bands resolves the 1-based band indexes to read from a source with bandCount bands.
func (c Channels) Bands(bandCount int) (bands []int, err error) {
	if c == "" || c == ChannelsAll {
		bands = make([]int, bandCount)
		for i := range bands {
			bands[i] = i + 1
		}
		return
	}
	want, ok := channelBands[c]
	if !ok {
		err = fmt.Errorf("%w: unknown channels %q", ErrConfig, c)
		return
	}
	for _, b := range want {
		if b > bandCount {
			err = fmt.Errorf("%w: channels %s need band %d, source has %d", ErrConfig, c, b, bandCount)
			return
		}
	}
	bands = want
	return
}

// 矢量栅格化引擎：gdal为gdal_rasterize，native为tiling包内的扫描线填充
type BurnEngine string

const (
	BurnGdal   BurnEngine = "gdal"
	BurnNative BurnEngine = "native"
)

func ParseBurnEngine(s string) (e BurnEngine, err error) {
	switch e = BurnEngine(strings.ToLower(s)); e {
	case BurnGdal, BurnNative:
	case "":
		e = BurnGdal
	default:
		err = fmt.Errorf("%w: unknown burn engine %q", ErrConfig, s)
	}
	return
}

// CropOptions configures Toolbox.CropRaster.
type CropOptions struct {
	CropSize   int
	Supplement bool
	Channels   Channels
	// 仅对单波段源生效
	Binarize tiling.BinarizePolicy
}

func (o CropOptions) withDefaults() CropOptions {
	if o.CropSize == 0 {
		o.CropSize = DEFAULT_CROP_SIZE
	}
	if o.Channels == "" {
		o.Channels = ChannelsAll
	}
	if o.Binarize == "" {
		o.Binarize = defaultBinarize
	}
	return o
}

// RasterGrid describes an opened raster source.
type RasterGrid struct {
	Width      int
	Height     int
	BandCount  int
	DataType   gdal.DataType
	Transform  tiling.GeoTransform
	Projection string
}

func (rg RasterGrid) Alignment() tiling.GridAlignment {
	return tiling.GridAlignment{
		Width:      rg.Width,
		Height:     rg.Height,
		Transform:  rg.Transform,
		Projection: rg.Projection,
	}
}
