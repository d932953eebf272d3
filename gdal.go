package geotile

import (
	"os"

	"github.com/wgdzlh/geotile/log"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

// Toolbox wraps the GDAL backed operations: raster crop, mosaic, rasterize and
// polygonize. It holds no per-call state and can be shared between goroutines.
type Toolbox struct {
	tmpDir  string
	logTag  string
	workers int
	burn    BurnEngine
}

// 由GDAL库C语言创建的内存对象，需要手动调用Destroy回收
type destroyable interface {
	Destroy()
}

// 数据集句柄：Close时刷新缓存并释放
type dsHandle struct {
	gdal.Dataset
}

func (h dsHandle) Destroy() {
	h.Close()
}

func release(gc []destroyable) {
	for i := len(gc) - 1; i >= 0; i-- {
		gc[i].Destroy()
	}
}

// 初始化GDAL工具箱，tmpDir为可选的临时目录路径（未提供的话为系统临时目录）
func NewToolbox(tmpDir ...string) *Toolbox {
	g := &Toolbox{
		tmpDir:  os.TempDir(),
		logTag:  "Toolbox:",
		workers: DEFAULT_BATCH_WORKERS,
		burn:    BurnGdal,
	}
	if len(tmpDir) > 0 && tmpDir[0] != "" {
		g.tmpDir = tmpDir[0]
	}
	return g
}

// 设置批量任务的并发数
func (g *Toolbox) WithWorkers(n int) *Toolbox {
	if n > 0 {
		g.workers = n
	}
	return g
}

// 设置栅格化引擎，未知取值保持原设置
func (g *Toolbox) WithBurnEngine(e BurnEngine) *Toolbox {
	if e, err := ParseBurnEngine(string(e)); err == nil {
		g.burn = e
	}
	return g
}

func (g *Toolbox) TmpDir() string {
	return g.tmpDir
}

func (g *Toolbox) ensureTmpDir() (err error) {
	if err = os.MkdirAll(g.tmpDir, os.ModePerm); err != nil {
		log.Error(g.logTag+"create tmp dir failed", zap.String("dir", g.tmpDir), zap.Error(err))
	}
	return
}
