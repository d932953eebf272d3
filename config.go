package geotile

import "github.com/wgdzlh/geotile/tiling"

const (
	GTIFF_DRIVER_NAME = "GTiff"
	SHP_DRIVER_NAME   = "ESRI Shapefile"
	GPKG_DRIVER_NAME  = "GPKG"
	SHAPE_ENCODING    = "UTF-8"
	ENCODING_OPTION   = "ENCODING=" + SHAPE_ENCODING

	FILE_EXT_GEOJSON = ".geojson"
	FILE_EXT_JSON    = ".json"
	FILE_EXT_GPKG    = ".gpkg"

	// 栅格转矢量的像元值字段
	POLYGONIZE_FIELD = "DN"

	DEFAULT_CROP_SIZE     = 512
	DEFAULT_BATCH_WORKERS = 4
	// 分块矢量化的行列块数，1为整幅一次矢量化
	DEFAULT_CHUNKS = 1

	TMP_VRT_PREFIX     = "mosaic_"
	TMP_WORKING_PREFIX = "label_"
	TMP_FEATURE_PREFIX = "features_"
)

var (
	// 镶嵌结果采用LZW压缩
	mosaicCreateOpts = []string{"-co", "COMPRESS=LZW"}
	// 单通道标签降为1位深
	boolLabelCreateOpts = []string{"-co", "NBITS=1", "-a_nodata", "none"}
	polygonizeOpts      = []string{"8CONNECTED=8"}

	// 按扩展名选择输出驱动
	outputDriverByExt = map[string]string{
		".tif":  GTIFF_DRIVER_NAME,
		".tiff": GTIFF_DRIVER_NAME,
		".png":  "PNG",
		".jpg":  "JPEG",
		".jpeg": "JPEG",
		".bmp":  "BMP",
	}

	vectorDriverByExt = map[string]string{
		".shp":  SHP_DRIVER_NAME,
		".gpkg": GPKG_DRIVER_NAME,
	}

	defaultBinarize = tiling.BinarizeMaxBackground
)
