package tiling

// GeoTransform is the GDAL affine geotransform
// (originX, pixelWidth, rotX, originY, rotY, pixelHeight).
type GeoTransform [6]float64

// 切块的地理参考：仅平移原点，像元大小与旋转项保持不变
func (gt GeoTransform) ForTile(offsetX, offsetY int) GeoTransform {
	out := gt
	out[0] = gt[0] + float64(offsetX)*gt[1]
	out[3] = gt[3] + float64(offsetY)*gt[5]
	return out
}

// Apply maps pixel/line coordinates to georeferenced coordinates.
func (gt GeoTransform) Apply(px, py float64) (x, y float64) {
	x = gt[0] + px*gt[1] + py*gt[2]
	y = gt[3] + px*gt[4] + py*gt[5]
	return
}

// Invert returns the geo -> pixel transform. ok is false for a degenerate transform.
func (gt GeoTransform) Invert() (inv GeoTransform, ok bool) {
	det := gt[1]*gt[5] - gt[2]*gt[4]
	if det == 0 {
		return
	}
	invDet := 1 / det
	inv[1] = gt[5] * invDet
	inv[4] = -gt[4] * invDet
	inv[2] = -gt[2] * invDet
	inv[5] = gt[1] * invDet
	inv[0] = (gt[2]*gt[3] - gt[0]*gt[5]) * invDet
	inv[3] = (-gt[1]*gt[3] + gt[0]*gt[4]) * invDet
	ok = true
	return
}
