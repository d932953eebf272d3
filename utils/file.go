package utils

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	FILE_EXT_TIF  = ".tif"
	FILE_EXT_TIFF = ".tiff"
	FILE_EXT_JPG  = ".jpg"
	FILE_EXT_JPEG = ".jpeg"
	FILE_EXT_PNG  = ".png"
	FILE_EXT_VRT  = ".vrt"
	FILE_EXT_SHP  = ".shp"
	FILE_EXT_TXT  = ".txt"
)

var (
	// shapefile的附属文件
	shpSiblingExts = []string{".shx", ".dbf", ".prj", ".cpg"}
)

func GetUniqSubDir(parentPath string) (path string, err error) {
	path = filepath.Join(parentPath, uuid.NewString())
	err = os.Mkdir(path, os.ModePerm)
	return
}

// 在dir下生成一个不存在的临时文件路径，文件本身不创建
func GetUniqFile(dir, prefix, ext string) string {
	return filepath.Join(dir, prefix+uuid.NewString()+ext)
}

func GetFilenameWithoutExt(path string) (name string) {
	name = filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(path))
	return
}

// 不区分大小写判断文件扩展名
func HasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// 列出目录下（不递归）指定扩展名的文件，按文件名排序
func ListFilesWithExt(dir string, exts ...string) (paths []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !HasExt(e.Name(), exts...) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return
}

// 删除shp及其附属文件
func RemoveShapefile(shp string) {
	os.Remove(shp)
	prefix := strings.TrimSuffix(shp, filepath.Ext(shp))
	for _, ext := range shpSiblingExts {
		os.Remove(prefix + ext)
	}
}
