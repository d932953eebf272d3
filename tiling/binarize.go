package tiling

import (
	"cmp"
	"fmt"
	"slices"
)

// BinarizePolicy decides how a single-band source is turned into an 8-bit label tile.
type BinarizePolicy string

const (
	// 最大像元值视为背景(0)，其余为前景(255)
	BinarizeMaxBackground BinarizePolicy = "max-background"
	// 保持原值
	BinarizeNone BinarizePolicy = "none"

	BINARY_BACKGROUND = 0
	BINARY_FOREGROUND = 255
)

func ParseBinarizePolicy(s string) (p BinarizePolicy, err error) {
	switch p = BinarizePolicy(s); p {
	case BinarizeMaxBackground, BinarizeNone:
	case "":
		p = BinarizeMaxBackground
	default:
		err = fmt.Errorf("%w: unknown binarize policy %q", ErrConfig, s)
	}
	return
}

// BinarizeMax labels every value equal to the maximum of vals as background (0) and
// the rest as foreground (255). The maximum is taken in the source type, so wide
// integer and float bands are judged on their own values.
func BinarizeMax[T cmp.Ordered](vals []T) (labels []byte, background int) {
	labels = make([]byte, len(vals))
	if len(vals) == 0 {
		return
	}
	maxV := slices.Max(vals)
	for i, v := range vals {
		if v == maxV {
			labels[i] = BINARY_BACKGROUND
			background++
		} else {
			labels[i] = BINARY_FOREGROUND
		}
	}
	return
}
