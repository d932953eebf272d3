package geotile

import (
	"errors"

	"github.com/wgdzlh/geotile/tiling"
)

var (
	ErrConfig          = tiling.ErrConfig
	ErrSourceOpen      = tiling.ErrSourceOpen
	ErrSidecarParse    = tiling.ErrSidecarParse
	ErrSidecarMismatch = tiling.ErrSidecarMismatch
	ErrOverlapTile     = tiling.ErrOverlapTile

	ErrGdalDriverCreate = errors.New("gdal driver create err")
	ErrGdalDriverOpen   = errors.New("gdal driver open err")
	ErrTifReadFailed    = errors.New("tif read failed")
	ErrTifWriteFailed   = errors.New("tif write failed")
	ErrGdalTranslate    = errors.New("gdal translate failed")
	ErrGdalBuildVRT     = errors.New("gdal build vrt failed")
	ErrPolygonize       = errors.New("gdal polygonize failed")
	ErrRasterize        = errors.New("gdal rasterize failed")
	ErrEmptyTif         = errors.New("empty tif")
	ErrUnsupportedType  = errors.New("unsupported raster data type")
)
