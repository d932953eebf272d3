package utils

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestEnsureUtf8(t *testing.T) {
	src := "切割结果/band3_0_1.tif"
	gbk, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	got, err := EnsureUtf8(gbk)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != src {
		t.Fatalf("got %q, want %q", got, src)
	}
	got, err = EnsureUtf8([]byte(src))
	if err != nil || string(got) != src {
		t.Fatalf("utf8 input changed: %q, %v", got, err)
	}
}

func TestListFilesWithExt(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b_0_1.TIF", "a_0_0.tif", "c.png", "d.tiff"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.tif"), 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := ListFilesWithExt(dir, FILE_EXT_TIF, FILE_EXT_TIFF)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a_0_0.tif", "b_0_1.TIF", "d.tiff"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if filepath.Base(got[i]) != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, filepath.Base(got[i]), want[i])
		}
	}
}

func TestGetFilenameWithoutExt(t *testing.T) {
	if got := GetFilenameWithoutExt("/data/in/band3.tif"); got != "band3" {
		t.Fatalf("got %q", got)
	}
}
