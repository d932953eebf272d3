package tiling

import (
	"fmt"
	"math"
	"sort"

	"github.com/wgdzlh/geotile/log"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

// ChannelMode selects the band layout of a rasterized label.
type ChannelMode string

const (
	ChannelSingle ChannelMode = "single"
	ChannelMulti  ChannelMode = "multi"

	LABEL_BACKGROUND        = 0
	LABEL_NODATA            = 2
	LABEL_FOREGROUND_SINGLE = 1
	LABEL_FOREGROUND_MULTI  = 255
	LABEL_MULTI_BANDS       = 3
)

func ParseChannelMode(s string) (m ChannelMode, err error) {
	switch m = ChannelMode(s); m {
	case ChannelSingle, ChannelMulti:
	case "":
		m = ChannelSingle
	default:
		err = fmt.Errorf("%w: unknown channel mode %q", ErrConfig, s)
	}
	return
}

func (m ChannelMode) Bands() int {
	if m == ChannelMulti {
		return LABEL_MULTI_BANDS
	}
	return 1
}

func (m ChannelMode) Foreground() byte {
	if m == ChannelMulti {
		return LABEL_FOREGROUND_MULTI
	}
	return LABEL_FOREGROUND_SINGLE
}

// GridAlignment is the target grid borrowed from a reference raster.
type GridAlignment struct {
	Width      int
	Height     int
	Transform  GeoTransform
	Projection string
}

// FeatureSet is an ordered list of polygonal geometries burned with one value.
// A zero Value burns the channel mode's foreground.
type FeatureSet struct {
	Geometries []orb.Geometry
	Value      byte
}

// FeaturesFromGeoJSON reads every feature geometry of a GeoJSON FeatureCollection.
func FeaturesFromGeoJSON(data []byte) (fs FeatureSet, err error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSourceOpen, err)
		return
	}
	fs.Geometries = make([]orb.Geometry, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry != nil {
			fs.Geometries = append(fs.Geometries, f.Geometry)
		}
	}
	return
}

// Polygons flattens the polygonal geometries of fs in order. Points and lines are skipped.
func (fs FeatureSet) Polygons() (polys []orb.Polygon) {
	for _, g := range fs.Geometries {
		polys = appendPolygons(polys, g)
	}
	return
}

func appendPolygons(polys []orb.Polygon, g orb.Geometry) []orb.Polygon {
	switch v := g.(type) {
	case orb.Polygon:
		polys = append(polys, v)
	case orb.MultiPolygon:
		polys = append(polys, v...)
	case orb.Collection:
		for _, sub := range v {
			polys = appendPolygons(polys, sub)
		}
	case orb.Bound:
		polys = append(polys, v.ToPolygon())
	default:
		if g != nil {
			log.Debug("tiling:skip non-polygon geometry", zap.String("type", g.GeoJSONType()))
		}
	}
	return polys
}

// LabelRaster is the in-memory result of Rasterize, one byte slice per band.
type LabelRaster struct {
	GridAlignment
	Mode   ChannelMode
	NoData float64
	Bands  [][]byte
}

// Rasterize burns the interiors of fs into a raster aligned with align. A pixel is
// inside when its centre is inside the polygon (even-odd over the polygon's rings).
func Rasterize(fs FeatureSet, align GridAlignment, mode ChannelMode) (lr *LabelRaster, err error) {
	if align.Width <= 0 || align.Height <= 0 {
		err = fmt.Errorf("%w: empty target grid %dx%d", ErrConfig, align.Width, align.Height)
		return
	}
	if mode, err = ParseChannelMode(string(mode)); err != nil {
		return
	}
	inv, ok := align.Transform.Invert()
	if !ok {
		err = fmt.Errorf("%w: degenerate geotransform %v", ErrConfig, align.Transform)
		return
	}
	lr = &LabelRaster{
		GridAlignment: align,
		Mode:          mode,
		NoData:        LABEL_NODATA,
		Bands:         make([][]byte, mode.Bands()),
	}
	n := align.Width * align.Height
	for i := range lr.Bands {
		lr.Bands[i] = make([]byte, n) // LABEL_BACKGROUND
	}
	value := fs.Value
	if value == 0 {
		value = mode.Foreground()
	}
	b := burner{width: align.Width, height: align.Height, inv: inv, value: value}
	polys := fs.Polygons()
	for _, p := range polys {
		b.burnPolygon(p, lr.Bands)
	}
	if mode == ChannelSingle {
		toBoolean(lr.Bands[0])
	}
	log.Debug("tiling:rasterized features", zap.Int("features", len(fs.Geometries)), zap.Int("polygons", len(polys)),
		zap.Int("width", align.Width), zap.Int("height", align.Height), zap.String("mode", string(mode)))
	return
}

// 单通道结果降为布尔：>=1 为 1，其余为 0
func toBoolean(buf []byte) {
	for i, v := range buf {
		if v >= LABEL_FOREGROUND_SINGLE {
			buf[i] = 1
		} else {
			buf[i] = 0
		}
	}
}

type burner struct {
	width, height int
	inv           GeoTransform
	value         byte
	xs            []float64
}

type edge struct {
	x0, y0, x1, y1 float64
}

func (b *burner) toPixelRings(p orb.Polygon) (edges []edge, yMin, yMax float64) {
	yMin, yMax = math.Inf(1), math.Inf(-1)
	for _, ring := range p {
		n := len(ring)
		if n < 3 {
			continue
		}
		prevX, prevY := b.inv.Apply(ring[n-1][0], ring[n-1][1])
		for _, pt := range ring {
			x, y := b.inv.Apply(pt[0], pt[1])
			if y != prevY {
				edges = append(edges, edge{prevX, prevY, x, y})
			}
			yMin = math.Min(yMin, y)
			yMax = math.Max(yMax, y)
			prevX, prevY = x, y
		}
	}
	return
}

// 扫描线填充：每行取像元中心 y+0.5 与各边求交，按奇偶规则成对填充
func (b *burner) burnPolygon(p orb.Polygon, bands [][]byte) {
	edges, yMin, yMax := b.toPixelRings(p)
	if len(edges) == 0 {
		return
	}
	rowStart := int(math.Max(0, math.Floor(yMin)))
	rowEnd := int(math.Min(float64(b.height), math.Ceil(yMax)))
	for row := rowStart; row < rowEnd; row++ {
		sy := float64(row) + 0.5
		b.xs = b.xs[:0]
		for _, e := range edges {
			if (e.y0 <= sy && sy < e.y1) || (e.y1 <= sy && sy < e.y0) {
				b.xs = append(b.xs, e.x0+(sy-e.y0)*(e.x1-e.x0)/(e.y1-e.y0))
			}
		}
		sort.Float64s(b.xs)
		for i := 0; i+1 < len(b.xs); i += 2 {
			b.fillSpan(bands, row, b.xs[i], b.xs[i+1])
		}
	}
}

// 填充中心落在 [xa, xb) 内的像元
func (b *burner) fillSpan(bands [][]byte, row int, xa, xb float64) {
	start := int(math.Max(0, math.Ceil(xa-0.5)))
	end := int(math.Min(float64(b.width), math.Ceil(xb-0.5)))
	if start >= end {
		return
	}
	off := row * b.width
	for _, band := range bands {
		span := band[off+start : off+end]
		for i := range span {
			span[i] = b.value
		}
	}
}
