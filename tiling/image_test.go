package tiling

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func tileColor(r, c int) color.NRGBA {
	return color.NRGBA{R: uint8(40 + r*100), G: uint8(30 + c*70), B: 90, A: 255}
}

func writeTiles(t *testing.T, dir string, rows, cols, size int) {
	t.Helper()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			img := imaging.New(size, size, tileColor(r, c))
			if err := imaging.Save(img, filepath.Join(dir, TileName("name", r, c, ".png"))); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func TestMergeImages(t *testing.T) {
	dir := t.TempDir()
	writeTiles(t, dir, 2, 3, 256)
	out := filepath.Join(t.TempDir(), "merged.png")
	canvas, err := MergeImages(dir, out)
	if err != nil {
		t.Fatal(err)
	}
	if canvas.Dx() != 768 || canvas.Dy() != 512 {
		t.Fatalf("canvas = %v, want 768x512", canvas)
	}
	merged, err := imaging.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	if merged.Bounds().Dx() != 768 || merged.Bounds().Dy() != 512 {
		t.Fatalf("saved size = %v", merged.Bounds())
	}
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			for _, p := range []image.Point{{c * 256, r * 256}, {c*256 + 255, r*256 + 255}} {
				got := color.NRGBAModel.Convert(merged.At(p.X, p.Y)).(color.NRGBA)
				if got != tileColor(r, c) {
					t.Errorf("tile (%d,%d) at %v = %v, want %v", r, c, p, got, tileColor(r, c))
				}
			}
		}
	}
}

func TestMergeImagesMissingTile(t *testing.T) {
	dir := t.TempDir()
	writeTiles(t, dir, 2, 3, 256)
	if err := os.Remove(filepath.Join(dir, "name_1_1.png")); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "merged.png")
	canvas, err := MergeImages(dir, out)
	if err != nil {
		t.Fatal(err)
	}
	if canvas.Dx() != 768 || canvas.Dy() != 512 {
		t.Fatalf("canvas = %v, want 768x512", canvas)
	}
	merged, err := imaging.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := color.NRGBAModel.Convert(merged.At(300, 300)).(color.NRGBA); got != (color.NRGBA{}) {
		t.Errorf("missing region = %v, want default fill", got)
	}
	if got := color.NRGBAModel.Convert(merged.At(600, 300)).(color.NRGBA); got != tileColor(1, 2) {
		t.Errorf("tile (1,2) = %v", got)
	}
}

func TestMergeImagesIntoTileDir(t *testing.T) {
	dir := t.TempDir()
	writeTiles(t, dir, 2, 2, 16)
	if err := imaging.Save(imaging.New(4, 4, color.NRGBA{R: 9, A: 255}), filepath.Join(dir, "preview.jpg")); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "merged.png")
	for i := 0; i < 2; i++ {
		canvas, err := MergeImages(dir, out)
		if err != nil {
			t.Fatalf("merge %d: %v", i, err)
		}
		if canvas.Dx() != 32 || canvas.Dy() != 32 {
			t.Fatalf("merge %d: canvas = %v", i, canvas)
		}
	}
}

func TestMergeImagesRejectsOverlap(t *testing.T) {
	dir := t.TempDir()
	writeTiles(t, dir, 1, 1, 16)
	img := imaging.New(16, 16, color.NRGBA{A: 255})
	if err := imaging.Save(img, filepath.Join(dir, OverlapTileName("name", 0, 1, 0.5, ".png"))); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "merged.png")
	if _, err := MergeImages(dir, out); !errors.Is(err, ErrOverlapTile) {
		t.Fatalf("err = %v, want ErrOverlapTile", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("no output may be written for rejected tiles")
	}
}

func TestMergeImageTilesOutputs(t *testing.T) {
	dir := t.TempDir()
	writeTiles(t, dir, 1, 2, 8)
	tiles := []TileFile{
		{Path: filepath.Join(dir, "name_0_1.png"), Row: 0, Col: 1},
		{Path: filepath.Join(dir, "name_0_0.png"), Row: 0, Col: 0},
	}
	out := filepath.Join(t.TempDir(), "merged.tif")
	canvas, err := MergeImageTiles(tiles, out)
	if err != nil {
		t.Fatal(err)
	}
	if canvas != image.Rect(0, 0, 16, 8) {
		t.Fatalf("canvas = %v", canvas)
	}
	if _, err = imaging.Open(out); err != nil {
		t.Fatalf("tif output unreadable: %v", err)
	}
	if _, err = MergeImageTiles(tiles, filepath.Join(dir, "merged.bmp")); !errors.Is(err, ErrConfig) {
		t.Errorf("bmp output: err = %v", err)
	}
	if _, err = MergeImageTiles(nil, out); !errors.Is(err, ErrSourceOpen) {
		t.Errorf("no tiles: err = %v", err)
	}
}

func TestCropImageAndMergeBack(t *testing.T) {
	src := filepath.Join(t.TempDir(), "scene.png")
	img := image.NewNRGBA(image.Rect(0, 0, 100, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 100; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 7, A: 255})
		}
	}
	if err := imaging.Save(img, src); err != nil {
		t.Fatal(err)
	}
	saveDir := filepath.Join(t.TempDir(), "crop")
	tiles, err := CropImage(src, saveDir, 20, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(tiles) != 15 {
		t.Fatalf("got %d tiles, want 15", len(tiles))
	}
	last := tiles[len(tiles)-1]
	if last.Row != 2 || last.Col != 4 || filepath.Base(last.Path) != "scene_2_4.png" {
		t.Fatalf("last tile = %+v", last)
	}
	out := filepath.Join(t.TempDir(), "back.png")
	if _, err = MergeImages(saveDir, out); err != nil {
		t.Fatal(err)
	}
	back, err := imaging.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []image.Point{{0, 0}, {57, 33}, {99, 59}} {
		got := color.NRGBAModel.Convert(back.At(p.X, p.Y)).(color.NRGBA)
		if got != img.NRGBAAt(p.X, p.Y) {
			t.Errorf("pixel %v = %v, want %v", p, got, img.NRGBAAt(p.X, p.Y))
		}
	}
}

func TestCropImageSupplementAndOverlap(t *testing.T) {
	src := filepath.Join(t.TempDir(), "scene.jpg")
	if err := imaging.Save(imaging.New(50, 30, color.NRGBA{R: 200, A: 255}), src); err != nil {
		t.Fatal(err)
	}
	tiles, err := CropImage(src, t.TempDir(), 20, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(tiles) != 6 {
		t.Fatalf("supplement: got %d tiles, want 6", len(tiles))
	}
	for _, tf := range tiles {
		im, err := imaging.Open(tf.Path)
		if err != nil {
			t.Fatal(err)
		}
		if im.Bounds().Dx() != 20 || im.Bounds().Dy() != 20 {
			t.Fatalf("%s is %v", tf.Path, im.Bounds())
		}
	}
	tiles, err = CropImageOverlap(src, t.TempDir(), 10, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	// x: 9 positions, y: 5 positions
	if len(tiles) != 45 {
		t.Fatalf("overlap: got %d tiles, want 45", len(tiles))
	}
	if _, _, _, err = ParseTileName(tiles[0].Path); !errors.Is(err, ErrOverlapTile) {
		t.Errorf("overlap tile name not marked: %s", tiles[0].Path)
	}
	if _, err = CropImage(src, t.TempDir(), 40, false); !errors.Is(err, ErrConfig) {
		t.Errorf("crop larger than image: err = %v", err)
	}
	if _, err = CropImage(filepath.Join(t.TempDir(), "none.png"), t.TempDir(), 10, false); !errors.Is(err, ErrSourceOpen) {
		t.Errorf("missing source: err = %v", err)
	}
}
