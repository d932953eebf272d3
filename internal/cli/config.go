package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/wgdzlh/geotile"
	"github.com/wgdzlh/geotile/tiling"

	"github.com/BurntSushi/toml"
)

// Config is the optional TOML file given with --config. Command flags override it.
type Config struct {
	Log       LogConfig       `toml:"log"`
	Crop      CropConfig      `toml:"crop"`
	Batch     BatchConfig     `toml:"batch"`
	Rasterize RasterizeConfig `toml:"rasterize"`
	Toolbox   ToolboxConfig   `toml:"toolbox"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type CropConfig struct {
	Size       int    `toml:"size"`
	Supplement bool   `toml:"supplement"`
	Channels   string `toml:"channels"`
	Binarize   string `toml:"binarize"`
}

type BatchConfig struct {
	Workers int `toml:"workers"`
	Chunks  int `toml:"chunks"`
}

type RasterizeConfig struct {
	Engine string `toml:"engine"`
}

type ToolboxConfig struct {
	TmpDir string `toml:"tmp_dir"`
}

func DefaultConfig() Config {
	return Config{
		Log:       LogConfig{Level: "info"},
		Crop:      CropConfig{Size: geotile.DEFAULT_CROP_SIZE, Channels: string(geotile.ChannelsAll), Binarize: string(tiling.BinarizeMaxBackground)},
		Batch:     BatchConfig{Workers: geotile.DEFAULT_BATCH_WORKERS, Chunks: geotile.DEFAULT_CHUNKS},
		Rasterize: RasterizeConfig{Engine: string(geotile.BurnGdal)},
	}
}

// LoadConfig decodes path over the defaults. An empty path yields the defaults; a
// path that does not exist is an error.
func LoadConfig(path string) (cfg Config, err error) {
	cfg = DefaultConfig()
	if path == "" {
		return
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("config %s not found: %w", path, err)
		} else {
			err = fmt.Errorf("%w: config %s: %w", geotile.ErrConfig, path, err)
		}
		return
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		err = fmt.Errorf("%w: unknown config keys %v", geotile.ErrConfig, keys)
		return
	}
	err = cfg.Validate()
	return
}

func (c Config) Validate() (err error) {
	if c.Crop.Size <= 0 {
		return fmt.Errorf("%w: crop size %d must be positive", geotile.ErrConfig, c.Crop.Size)
	}
	if c.Batch.Workers <= 0 || c.Batch.Chunks <= 0 {
		return fmt.Errorf("%w: workers and chunks must be positive", geotile.ErrConfig)
	}
	if _, err = geotile.ParseChannels(c.Crop.Channels); err != nil {
		return
	}
	if _, err = geotile.ParseBurnEngine(c.Rasterize.Engine); err != nil {
		return
	}
	_, err = tiling.ParseBinarizePolicy(c.Crop.Binarize)
	return
}

// CropOptions converts the crop section; it must have passed Validate.
func (c Config) CropOptions() geotile.CropOptions {
	ch, _ := geotile.ParseChannels(c.Crop.Channels)
	bp, _ := tiling.ParseBinarizePolicy(c.Crop.Binarize)
	return geotile.CropOptions{
		CropSize:   c.Crop.Size,
		Supplement: c.Crop.Supplement,
		Channels:   ch,
		Binarize:   bp,
	}
}

func (c Config) NewToolbox() *geotile.Toolbox {
	return geotile.NewToolbox(c.Toolbox.TmpDir).
		WithWorkers(c.Batch.Workers).
		WithBurnEngine(geotile.BurnEngine(c.Rasterize.Engine))
}
