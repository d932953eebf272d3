package tiling

import "fmt"

// TileSpec locates one fixed-size tile inside a source raster.
// Row indexes the Y axis and Col the X axis, for every tile this package names.
type TileSpec struct {
	Row     int
	Col     int
	OffsetX int
	OffsetY int
	Width   int
	Height  int
	// 末行/末列偏移被回拉至 dimension-cropSize，与前一块重叠
	EdgeOverlap bool
}

func checkCropSize(width, height, cropSize int) error {
	if cropSize <= 0 {
		return fmt.Errorf("%w: crop size %d must be positive", ErrConfig, cropSize)
	}
	if width < cropSize || height < cropSize {
		return fmt.Errorf("%w: raster %dx%d smaller than crop size %d", ErrConfig, width, height, cropSize)
	}
	return nil
}

// 单轴切割偏移，supplement时不能整除的余量由回拉的最后一块覆盖
func axisOffsets(dim, cropSize int, supplement bool) (offs []int, pulled bool) {
	n := dim / cropSize
	pulled = supplement && dim%cropSize != 0
	if pulled {
		n++
	}
	offs = make([]int, n)
	for i := range offs {
		offs[i] = i * cropSize
	}
	if pulled {
		offs[n-1] = dim - cropSize
	}
	return
}

// PlanGrid partitions a width x height raster into cropSize x cropSize tiles in
// row-major order. Without supplement the remainder strips are dropped; with it the
// last row/column is pulled back inside the raster and overlaps its neighbour.
func PlanGrid(width, height, cropSize int, supplement bool) (specs []TileSpec, err error) {
	if err = checkCropSize(width, height, cropSize); err != nil {
		return
	}
	xs, xPulled := axisOffsets(width, cropSize, supplement)
	ys, yPulled := axisOffsets(height, cropSize, supplement)
	specs = make([]TileSpec, 0, len(xs)*len(ys))
	for r, oy := range ys {
		for c, ox := range xs {
			specs = append(specs, TileSpec{
				Row:         r,
				Col:         c,
				OffsetX:     ox,
				OffsetY:     oy,
				Width:       cropSize,
				Height:      cropSize,
				EdgeOverlap: (xPulled && c == len(xs)-1) || (yPulled && r == len(ys)-1),
			})
		}
	}
	return
}

func axisOverlapOffsets(dim, cropSize int, rate float64) (offs []int) {
	var (
		n    = float64(dim / cropSize)
		step = 1 - rate
		c    = float64(cropSize)
	)
	for k := 0; float64(k)*step < n; k++ {
		pos := float64(k) * step
		if int((pos+1)*c) > dim {
			continue
		}
		offs = append(offs, int(pos*c))
	}
	return
}

// 按重叠率切割，步长为 cropSize*(1-overlapRate)，超出边界的块直接丢弃
func PlanOverlapGrid(width, height, cropSize int, overlapRate float64) (specs []TileSpec, err error) {
	if err = checkCropSize(width, height, cropSize); err != nil {
		return
	}
	if overlapRate < 0 || overlapRate >= 1 {
		err = fmt.Errorf("%w: overlap rate %v must be in [0, 1)", ErrConfig, overlapRate)
		return
	}
	xs := axisOverlapOffsets(width, cropSize, overlapRate)
	ys := axisOverlapOffsets(height, cropSize, overlapRate)
	specs = make([]TileSpec, 0, len(xs)*len(ys))
	for r, oy := range ys {
		for c, ox := range xs {
			specs = append(specs, TileSpec{
				Row:     r,
				Col:     c,
				OffsetX: ox,
				OffsetY: oy,
				Width:   cropSize,
				Height:  cropSize,
			})
		}
	}
	return
}
