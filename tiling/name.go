package tiling

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const overlapMarker = "r"

// TileFile is a persisted tile together with its grid position.
type TileFile struct {
	Path string
	Row  int
	Col  int
}

// 切块文件名：原文件名_行号_列号.扩展名
func TileName(base string, row, col int, ext string) string {
	return fmt.Sprintf("%s_%d_%d%s", base, row, col, ext)
}

// 重叠切块文件名：原文件名_行号_列号_r重叠率.扩展名
func OverlapTileName(base string, row, col int, rate float64, ext string) string {
	return fmt.Sprintf("%s_%d_%d_%s%s%s", base, row, col, overlapMarker, strconv.FormatFloat(rate, 'g', -1, 64), ext)
}

// ParseTileName recovers the base name and grid position from a tile path written by
// TileName. Names carrying an overlap-rate marker fail with ErrOverlapTile.
func ParseTileName(path string) (base string, row, col int, err error) {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.Split(name, "_")
	if n := len(parts); n >= 4 && isOverlapToken(parts[n-1]) {
		err = fmt.Errorf("%w: %s", ErrOverlapTile, filepath.Base(path))
		return
	}
	if len(parts) < 3 {
		err = fmt.Errorf("%w: tile name %q lacks row/col", ErrConfig, filepath.Base(path))
		return
	}
	n := len(parts)
	if row, err = strconv.Atoi(parts[n-2]); err != nil {
		err = fmt.Errorf("%w: bad row in tile name %q", ErrConfig, filepath.Base(path))
		return
	}
	if col, err = strconv.Atoi(parts[n-1]); err != nil {
		err = fmt.Errorf("%w: bad col in tile name %q", ErrConfig, filepath.Base(path))
		return
	}
	if row < 0 || col < 0 {
		err = fmt.Errorf("%w: negative index in tile name %q", ErrConfig, filepath.Base(path))
		return
	}
	base = strings.Join(parts[:n-2], "_")
	return
}

func isOverlapToken(s string) bool {
	if !strings.HasPrefix(s, overlapMarker) {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimPrefix(s, overlapMarker), 64)
	return err == nil
}
