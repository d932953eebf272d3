package tiling

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/wgdzlh/geotile/utils"

	"go.uber.org/multierr"
)

const (
	SIDECAR_DELIM  = "*_&"
	SIDECAR_FIELDS = 8
	SIDECAR_SUFFIX = "_info.txt"
)

// SidecarRecord carries the georeferencing of one tile, keyed by the tile's file name.
type SidecarRecord struct {
	Filename   string
	Projection string
	Transform  GeoTransform
}

// 源影像对应的sidecar路径：保存目录/原文件名_info.txt
func SidecarPath(saveDir, base string) string {
	return filepath.Join(saveDir, base+SIDECAR_SUFFIX)
}

func checkSidecarField(name, v string) error {
	if strings.Contains(v, SIDECAR_DELIM) || strings.ContainsAny(v, "\r\n") {
		return fmt.Errorf("%w: %s contains delimiter or newline", ErrSidecarParse, name)
	}
	return nil
}

// MarshalText encodes the record as one sidecar line, without the trailing newline.
func (r SidecarRecord) MarshalText() (line []byte, err error) {
	if err = checkSidecarField("filename", r.Filename); err != nil {
		return
	}
	if err = checkSidecarField("projection", r.Projection); err != nil {
		return
	}
	fields := make([]string, 0, SIDECAR_FIELDS)
	fields = append(fields, r.Filename, r.Projection)
	for _, v := range r.Transform {
		fields = append(fields, utils.FormatFloat(v))
	}
	line = []byte(strings.Join(fields, SIDECAR_DELIM))
	return
}

func (r *SidecarRecord) UnmarshalText(line []byte) (err error) {
	fields := strings.Split(strings.TrimRight(string(line), "\r\n"), SIDECAR_DELIM)
	if len(fields) != SIDECAR_FIELDS {
		return fmt.Errorf("%w: got %d fields, want %d", ErrSidecarParse, len(fields), SIDECAR_FIELDS)
	}
	var gt GeoTransform
	for i := range gt {
		if gt[i], err = strconv.ParseFloat(strings.TrimSpace(fields[2+i]), 64); err != nil {
			return fmt.Errorf("%w: transform[%d] %q is not a float", ErrSidecarParse, i, fields[2+i])
		}
	}
	r.Filename = fields[0]
	r.Projection = fields[1]
	r.Transform = gt
	return
}

// ParseSidecar decodes every non-blank line of a sidecar. Content that is not valid
// UTF-8 is read as GBK.
func ParseSidecar(rd io.Reader) (recs []SidecarRecord, err error) {
	raw, err := io.ReadAll(rd)
	if err != nil {
		return
	}
	if raw, err = utils.EnsureUtf8(raw); err != nil {
		err = fmt.Errorf("%w: %v", ErrSidecarParse, err)
		return
	}
	for i, line := range bytes.Split(raw, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec SidecarRecord
		if err = rec.UnmarshalText(line); err != nil {
			err = fmt.Errorf("line %d: %w", i+1, err)
			return
		}
		recs = append(recs, rec)
	}
	return
}

func ReadSidecar(path string) (recs []SidecarRecord, err error) {
	f, err := os.Open(path)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSourceOpen, err)
		return
	}
	defer f.Close()
	return ParseSidecar(f)
}

// IndexSidecar keys records by file name; a name listed twice is a mismatch.
func IndexSidecar(recs []SidecarRecord) (idx map[string]SidecarRecord, err error) {
	idx = make(map[string]SidecarRecord, len(recs))
	for _, r := range recs {
		if _, dup := idx[r.Filename]; dup {
			err = fmt.Errorf("%w: duplicate record for %s", ErrSidecarMismatch, r.Filename)
			return
		}
		idx[r.Filename] = r
	}
	return
}

// SidecarWriter appends records to one sidecar file. Append is safe for concurrent use.
type SidecarWriter struct {
	mu   sync.Mutex
	f    *os.File
	path string
	n    int
}

// CreateSidecar truncates or creates the sidecar at path.
func CreateSidecar(path string) (w *SidecarWriter, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	w = &SidecarWriter{f: f, path: path}
	return
}

func (w *SidecarWriter) Append(rec SidecarRecord) (err error) {
	line, err := rec.MarshalText()
	if err != nil {
		return
	}
	line = append(line, '\n')
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err = w.f.Write(line); err == nil {
		w.n++
	}
	return
}

func (w *SidecarWriter) Path() string {
	return w.path
}

func (w *SidecarWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Close syncs and closes the file; both errors are reported.
func (w *SidecarWriter) Close() (err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	err = multierr.Append(w.f.Sync(), w.f.Close())
	return
}
