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
	"go.uber.org/zap"
)

// 列出目录下待镶嵌的tif切块（排除输出文件本身）
func (g *Toolbox) listRasterTiles(dir, out string) (paths []string, err error) {
	all, err := utils.ListFilesWithExt(dir, utils.FILE_EXT_TIF, utils.FILE_EXT_TIFF)
	if err != nil {
		log.Error(g.logTag+"list tiles failed", zap.String("dir", dir), zap.Error(err))
		err = fmt.Errorf("%w: %w", ErrSourceOpen, err)
		return
	}
	absOut, _ := filepath.Abs(out)
	for _, p := range all {
		if abs, _ := filepath.Abs(p); abs == absOut {
			continue
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		err = fmt.Errorf("%w: %w: no tif tiles in %s", ErrSourceOpen, ErrEmptyTif, dir)
	}
	return
}

func mosaicOptions(out string) (opts []string, err error) {
	driver, err := outputDriver(out)
	if err != nil {
		return
	}
	opts = []string{"-of", driver}
	if driver == GTIFF_DRIVER_NAME {
		opts = append(opts, mosaicCreateOpts...)
	}
	return
}

// 将各切块拼接成一个VRT，再转为最终文件
func (g *Toolbox) buildMosaic(paths []string, out string, opts []string) (err error) {
	if err = g.ensureTmpDir(); err != nil {
		return
	}
	if err = os.MkdirAll(filepath.Dir(out), os.ModePerm); err != nil {
		return
	}
	tmpVrt := utils.GetUniqFile(g.tmpDir, TMP_VRT_PREFIX, utils.FILE_EXT_VRT)
	defer os.Remove(tmpVrt)
	vrt, err := gdal.BuildVRT(tmpVrt, nil, paths, nil)
	if err != nil {
		log.Error(g.logTag+"failed to build vrt", zap.Int("tiles", len(paths)), zap.Error(err))
		err = fmt.Errorf("%w: %w", ErrGdalBuildVRT, err)
		return
	}
	gc := []destroyable{dsHandle{vrt}}
	defer release(gc)
	// 将VRT转为最终GTiff
	if err = g.translate(out, vrt, opts); err != nil {
		return
	}
	log.Info(g.logTag+"mosaic built", zap.String("out", out), zap.Int("tiles", len(paths)))
	return
}

// MergeRasters mosaics every tif tile of dir into out, placing each tile by its own
// embedded georeference.
func (g *Toolbox) MergeRasters(dir, out string) (err error) {
	opts, err := mosaicOptions(out)
	if err != nil {
		return
	}
	paths, err := g.listRasterTiles(dir, out)
	if err != nil {
		return
	}
	log.Info(g.logTag+"merge rasters", zap.String("dir", dir), zap.Int("tiles", len(paths)), zap.String("out", out))
	return g.buildMosaic(paths, out, opts)
}

// 未指定sidecar时，在目录中查找唯一的 *_info.txt
func findSidecar(dir string) (path string, err error) {
	txts, err := utils.ListFilesWithExt(dir, utils.FILE_EXT_TXT)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSourceOpen, err)
		return
	}
	var found []string
	for _, t := range txts {
		if strings.HasSuffix(t, tiling.SIDECAR_SUFFIX) {
			found = append(found, t)
		}
	}
	if len(found) != 1 {
		err = fmt.Errorf("%w: expect one sidecar in %s, found %d", ErrSidecarMismatch, dir, len(found))
		return
	}
	path = found[0]
	return
}

// 校验sidecar与切块一一对应，返回按切块顺序排列的记录
func matchSidecar(paths []string, recs []tiling.SidecarRecord) (matched []tiling.SidecarRecord, err error) {
	if len(recs) != len(paths) {
		err = fmt.Errorf("%w: %d records for %d tiles", ErrSidecarMismatch, len(recs), len(paths))
		return
	}
	idx, err := tiling.IndexSidecar(recs)
	if err != nil {
		return
	}
	matched = make([]tiling.SidecarRecord, len(paths))
	for i, p := range paths {
		rec, ok := idx[filepath.Base(p)]
		if !ok {
			err = fmt.Errorf("%w: no record for %s", ErrSidecarMismatch, filepath.Base(p))
			return
		}
		matched[i] = rec
	}
	return
}

func (g *Toolbox) restoreGeoref(path string, rec tiling.SidecarRecord) (err error) {
	ds, err := gdal.Open(path, gdal.Update)
	if err != nil {
		log.Error(g.logTag+"open tile for update failed", zap.String("tile", path), zap.Error(err))
		err = fmt.Errorf("%w: %w", ErrSourceOpen, err)
		return
	}
	defer ds.Close()
	if err = setGeoref(ds, rec.Transform, rec.Projection); err != nil {
		log.Error(g.logTag+"restore tile georef failed", zap.String("tile", path), zap.Error(err))
		err = fmt.Errorf("%w: %w", ErrTifWriteFailed, err)
		return
	}
	ds.FlushCache()
	return
}

// MergeRastersWithProj rewrites the projection and transform of every tile in dir
// from the sidecar records, then mosaics them into out. The sidecar is fully
// validated against the tiles before any tile is touched. An empty sidecar path
// selects the single *_info.txt found in dir.
func (g *Toolbox) MergeRastersWithProj(dir, sidecar, out string) (err error) {
	opts, err := mosaicOptions(out)
	if err != nil {
		return
	}
	paths, err := g.listRasterTiles(dir, out)
	if err != nil {
		return
	}
	if sidecar == "" {
		if sidecar, err = findSidecar(dir); err != nil {
			return
		}
	}
	recs, err := tiling.ReadSidecar(sidecar)
	if err != nil {
		log.Error(g.logTag+"read sidecar failed", zap.String("sidecar", sidecar), zap.Error(err))
		return
	}
	matched, err := matchSidecar(paths, recs)
	if err != nil {
		log.Error(g.logTag+"sidecar mismatch", zap.String("sidecar", sidecar), zap.Error(err))
		return
	}
	log.Info(g.logTag+"merge rasters with proj", zap.String("dir", dir), zap.String("sidecar", sidecar),
		zap.Int("tiles", len(paths)), zap.String("out", out))
	for i, p := range paths {
		if err = g.restoreGeoref(p, matched[i]); err != nil {
			return
		}
	}
	return g.buildMosaic(paths, out, opts)
}
