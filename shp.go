package geotile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wgdzlh/geotile/log"
	"github.com/wgdzlh/geotile/tiling"
	"github.com/wgdzlh/geotile/utils"

	"github.com/lukeroth/gdal"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"go.uber.org/zap"
)

func vectorDriverName(path string) (name string, err error) {
	ext := strings.ToLower(filepath.Ext(path))
	name, ok := vectorDriverByExt[ext]
	if !ok {
		err = fmt.Errorf("%w: unsupported vector extension %q", ErrConfig, ext)
	}
	return
}

// ReadFeatures loads every geometry of the first layer of a vector file. GeoJSON is
// decoded directly; shapefile and GeoPackage go through OGR.
func (g *Toolbox) ReadFeatures(vector string) (fs tiling.FeatureSet, err error) {
	if utils.HasExt(vector, FILE_EXT_GEOJSON, FILE_EXT_JSON) {
		var data []byte
		if data, err = os.ReadFile(vector); err != nil {
			log.Error(g.logTag+"read geojson failed", zap.String("vector", vector), zap.Error(err))
			err = fmt.Errorf("%w: %w", ErrSourceOpen, err)
			return
		}
		if fs, err = tiling.FeaturesFromGeoJSON(data); err != nil {
			log.Error(g.logTag+"parse geojson failed", zap.String("vector", vector), zap.Error(err))
		}
		return
	}
	name, err := vectorDriverName(vector)
	if err != nil {
		return
	}
	driver := gdal.OGRDriverByName(name)
	ds, ok := driver.Open(vector, 0)
	if !ok {
		log.Error(g.logTag+"open vector failed", zap.String("vector", vector))
		err = fmt.Errorf("%w: %w: %s", ErrSourceOpen, ErrGdalDriverOpen, vector)
		return
	}
	defer ds.Destroy()
	var (
		layer   = ds.LayerByIndex(0)
		feature *gdal.Feature
		raw     []byte
		geo     orb.Geometry
		skipped int
		e       error
		gc      []destroyable
	)
	defer func() {
		release(gc)
	}()
	if n, ok := layer.FeatureCount(false); ok && n > 0 {
		fs.Geometries = make([]orb.Geometry, 0, n)
	}
	for {
		if feature = layer.NextFeature(); feature == nil {
			break
		}
		gc = append(gc, *feature)
		if raw, e = feature.Geometry().ToWKB(); e != nil || len(raw) == 0 {
			skipped++
			continue
		}
		if geo, e = wkb.Unmarshal(raw); e != nil {
			log.Error(g.logTag+"err in wkb decode", zap.Error(e))
			skipped++
			continue
		}
		fs.Geometries = append(fs.Geometries, geo)
	}
	log.Info(g.logTag+"got features from vector", zap.String("vector", vector),
		zap.Int("features", len(fs.Geometries)), zap.Int("skipped", skipped))
	return
}

// 创建shp输出文件，坐标系取自栅格的投影，并建立像元值字段
func (g *Toolbox) createShpLayer(shp, proj string) (ds gdal.DataSource, layer gdal.Layer, gc []destroyable, err error) {
	log.Info(g.logTag+"output shp files", zap.String("shp", shp))
	driver := gdal.OGRDriverByName(SHP_DRIVER_NAME)
	ds, ok := driver.Create(shp, nil)
	if !ok {
		err = fmt.Errorf("%w: %s", ErrGdalDriverCreate, shp)
		return
	}
	ref := gdal.CreateSpatialReference(proj)
	gc = append(gc, ref)
	layer = ds.CreateLayer(utils.GetFilenameWithoutExt(shp), ref, gdal.GT_Polygon, []string{ENCODING_OPTION})
	if err = g.initShpLayer(layer, POLYGONIZE_FIELD); err != nil {
		log.Error(g.logTag+"init shp layer failed", zap.String("shp", shp), zap.Error(err))
		ds.Destroy()
		release(gc)
		gc = nil
	}
	return
}

func (g *Toolbox) initShpLayer(layer gdal.Layer, valueField string) (err error) {
	field := gdal.CreateFieldDefinition(valueField, gdal.FT_Integer)
	defer field.Destroy()
	err = layer.CreateField(field, false)
	return
}

// 将src中的要素追加到dst（dst不存在则新建），输出图层名为dst的文件名
func (g *Toolbox) appendShapefile(dst, src string) (err error) {
	sds, err := gdal.OpenEx(src, gdal.OFVector, nil, nil, nil)
	if err != nil {
		log.Error(g.logTag+"open shp error", zap.String("shp", src), zap.Error(err))
		err = fmt.Errorf("%w: %w", ErrSourceOpen, err)
		return
	}
	defer sds.Close()
	opts := []string{"-nln", utils.GetFilenameWithoutExt(dst)}
	if _, e := os.Stat(dst); e == nil {
		opts = append(opts, "-update", "-append")
	} else {
		opts = append(opts, "-f", SHP_DRIVER_NAME, "-lco", ENCODING_OPTION)
	}
	dds, err := gdal.VectorTranslate(dst, []gdal.Dataset{sds}, opts)
	if err != nil {
		log.Error(g.logTag+"VectorTranslate failed", zap.String("src", src), zap.String("dst", dst), zap.Error(err))
		err = fmt.Errorf("%w: %w", ErrGdalTranslate, err)
		return
	}
	dds.Close()
	return
}
