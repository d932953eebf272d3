package tiling

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"github.com/wgdzlh/geotile/log"
	"github.com/wgdzlh/geotile/utils"

	"github.com/disintegration/imaging"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

const imgLogTag = "tiling:"

var (
	imageTileExts   = []string{utils.FILE_EXT_JPG, utils.FILE_EXT_JPEG, utils.FILE_EXT_PNG}
	imageOutputExts = []string{utils.FILE_EXT_JPG, utils.FILE_EXT_JPEG, utils.FILE_EXT_PNG, utils.FILE_EXT_TIF, utils.FILE_EXT_TIFF}
)

func IsImageTile(path string) bool {
	return utils.HasExt(path, imageTileExts...)
}

func openImage(src string) (img image.Image, err error) {
	if img, err = imaging.Open(src); err != nil {
		log.Error(imgLogTag+"open image failed", zap.String("img", src), zap.Error(err))
		err = fmt.Errorf("%w: %w", ErrSourceOpen, err)
	}
	return
}

// CropImage cuts a jpg/png image into cropSize x cropSize tiles named
// <base>_<row>_<col><ext> inside saveDir.
func CropImage(src, saveDir string, cropSize int, supplement bool) (tiles []TileFile, err error) {
	if !IsImageTile(src) {
		err = fmt.Errorf("%w: %s is not a jpg/png image", ErrConfig, src)
		return
	}
	img, err := openImage(src)
	if err != nil {
		return
	}
	b := img.Bounds()
	specs, err := PlanGrid(b.Dx(), b.Dy(), cropSize, supplement)
	if err != nil {
		return
	}
	base, ext := utils.GetFilenameWithoutExt(src), filepath.Ext(src)
	return cropImageTiles(img, specs, saveDir, func(s TileSpec) string {
		return TileName(base, s.Row, s.Col, ext)
	})
}

// CropImageOverlap cuts tiles with the given overlap rate. Its tiles are marked in
// their names and can not be merged back by MergeImages.
func CropImageOverlap(src, saveDir string, cropSize int, overlapRate float64) (tiles []TileFile, err error) {
	if !IsImageTile(src) {
		err = fmt.Errorf("%w: %s is not a jpg/png image", ErrConfig, src)
		return
	}
	img, err := openImage(src)
	if err != nil {
		return
	}
	b := img.Bounds()
	specs, err := PlanOverlapGrid(b.Dx(), b.Dy(), cropSize, overlapRate)
	if err != nil {
		return
	}
	base, ext := utils.GetFilenameWithoutExt(src), filepath.Ext(src)
	return cropImageTiles(img, specs, saveDir, func(s TileSpec) string {
		return OverlapTileName(base, s.Row, s.Col, overlapRate, ext)
	})
}

func cropImageTiles(img image.Image, specs []TileSpec, saveDir string, name func(TileSpec) string) (tiles []TileFile, err error) {
	if err = os.MkdirAll(saveDir, os.ModePerm); err != nil {
		return
	}
	origin := img.Bounds().Min
	tiles = make([]TileFile, 0, len(specs))
	for _, s := range specs {
		rect := image.Rect(s.OffsetX, s.OffsetY, s.OffsetX+s.Width, s.OffsetY+s.Height).Add(origin)
		out := filepath.Join(saveDir, name(s))
		if err = imaging.Save(imaging.Crop(img, rect), out); err != nil {
			log.Error(imgLogTag+"save image tile failed", zap.String("tile", out), zap.Error(err))
			return
		}
		tiles = append(tiles, TileFile{Path: out, Row: s.Row, Col: s.Col})
	}
	log.Info(imgLogTag+"image cropped", zap.String("dir", saveDir), zap.Int("tiles", len(tiles)))
	return
}

// MergeImages stitches the jpg/png tiles of dir back into one image at out. out
// itself and images not named like tiles are skipped.
// Only non-overlapping tiles are supported.
func MergeImages(dir, out string) (canvas image.Rectangle, err error) {
	paths, err := utils.ListFilesWithExt(dir, imageTileExts...)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSourceOpen, err)
		return
	}
	// 输出文件和不符合切块命名的图片不参与拼接，带重叠率的切块直接拒绝
	absOut, _ := filepath.Abs(out)
	tiles := make([]TileFile, 0, len(paths))
	for _, p := range paths {
		if abs, _ := filepath.Abs(p); abs == absOut {
			continue
		}
		var tf = TileFile{Path: p}
		if _, tf.Row, tf.Col, err = ParseTileName(p); err != nil {
			if errors.Is(err, ErrOverlapTile) {
				return
			}
			log.Warn(imgLogTag+"skip non-tile image", zap.String("path", p), zap.Error(err))
			err = nil
			continue
		}
		tiles = append(tiles, tf)
	}
	return MergeImageTiles(tiles, out)
}

// MergeImageTiles pastes tile (r, c) at (c*tileWidth, r*tileHeight) on a canvas sized
// by the largest row and column. The tile size is taken from the first tile in
// row-major order. Missing positions are logged and left transparent.
func MergeImageTiles(tiles []TileFile, out string) (canvas image.Rectangle, err error) {
	if !utils.HasExt(out, imageOutputExts...) {
		err = fmt.Errorf("%w: unsupported output extension %q", ErrConfig, filepath.Ext(out))
		return
	}
	if len(tiles) == 0 {
		err = fmt.Errorf("%w: no image tiles to merge", ErrSourceOpen)
		return
	}
	sorted := make([]TileFile, len(tiles))
	copy(sorted, tiles)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Row != sorted[j].Row {
			return sorted[i].Row < sorted[j].Row
		}
		return sorted[i].Col < sorted[j].Col
	})
	var (
		maxRow, maxCol int
		byPos          = make(map[[2]int]TileFile, len(sorted))
	)
	for _, t := range sorted {
		maxRow = max(maxRow, t.Row)
		maxCol = max(maxCol, t.Col)
		byPos[[2]int{t.Row, t.Col}] = t
	}
	first, err := openImage(sorted[0].Path)
	if err != nil {
		return
	}
	tw, th := first.Bounds().Dx(), first.Bounds().Dy()
	canvas = image.Rect(0, 0, (maxCol+1)*tw, (maxRow+1)*th)
	dst := image.NewNRGBA(canvas)
	var missing int
	for r := 0; r <= maxRow; r++ {
		for c := 0; c <= maxCol; c++ {
			t, ok := byPos[[2]int{r, c}]
			if !ok {
				missing++
				log.Warn(imgLogTag+"missing tile, region left unfilled", zap.Int("row", r), zap.Int("col", c))
				continue
			}
			img := first
			if r != sorted[0].Row || c != sorted[0].Col {
				if img, err = openImage(t.Path); err != nil {
					return
				}
			}
			xdraw.Copy(dst, image.Pt(c*tw, r*th), img, img.Bounds(), xdraw.Src, nil)
		}
	}
	if err = saveImage(dst, out); err != nil {
		log.Error(imgLogTag+"save merged image failed", zap.String("out", out), zap.Error(err))
		return
	}
	log.Info(imgLogTag+"image merged", zap.String("out", out), zap.Int("tiles", len(tiles)),
		zap.Int("missing", missing), zap.Stringer("size", canvas.Size()))
	return
}

func saveImage(img *image.NRGBA, out string) (err error) {
	if err = os.MkdirAll(filepath.Dir(out), os.ModePerm); err != nil {
		return
	}
	if !utils.HasExt(out, utils.FILE_EXT_TIF, utils.FILE_EXT_TIFF) {
		return imaging.Save(img, out)
	}
	f, err := os.Create(out)
	if err != nil {
		return
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	return
}
