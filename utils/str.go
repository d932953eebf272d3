package utils

import (
	"bytes"
	"io"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// GBK 转 UTF-8
func GbkToUtf8(s []byte) (d []byte, e error) {
	reader := transform.NewReader(bytes.NewReader(s), simplifiedchinese.GBK.NewDecoder())
	d, e = io.ReadAll(reader)
	return
}

// 非UTF-8文本按GBK处理（Windows中文环境下生成的文件）
func EnsureUtf8(s []byte) (d []byte, e error) {
	if utf8.Valid(s) {
		d = s
		return
	}
	return GbkToUtf8(s)
}

// 浮点数最短精确表示，可无损还原
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
