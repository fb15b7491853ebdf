package tensor

import "fmt"

// The spatial kernels below treat the first two axes as the spatial plane
// (H, W) and everything after as an opaque contiguous block per pixel, the
// convention the augmentation stages rely on. They all copy out; views are
// never returned.

// spatial validates the array for 2D kernels and returns (h, w, blockBytes).
func (d *Dense) spatial() (int, int, int, error) {
	if len(d.shape) < 2 {
		return 0, 0, 0, fmt.Errorf("tensor: spatial op needs >= 2 dims, got shape %v", d.shape)
	}
	blk := numElem(d.shape[2:]) * d.dtype.Size()
	return d.shape[0], d.shape[1], blk, nil
}

func (d *Dense) block(j int, w, blk int, i int) []byte {
	off := (i*w + j) * blk
	return d.data[off : off+blk : off+blk]
}

func (d *Dense) withSpatialShape(h, w int) *Dense {
	shape := append([]int{h, w}, d.shape[2:]...)
	return New(d.dtype, shape...)
}

// SwapAxes01 returns the array with its first two axes exchanged.
func SwapAxes01(d *Dense) (*Dense, error) {
	h, w, blk, err := d.spatial()
	if err != nil {
		return nil, err
	}
	out := d.withSpatialShape(w, h)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			copy(out.block(i, h, blk, j), d.block(j, w, blk, i))
		}
	}
	return out, nil
}

// Flip returns the array mirrored along the given spatial axis (0 = up/down,
// 1 = left/right).
func Flip(d *Dense, axis int) (*Dense, error) {
	h, w, blk, err := d.spatial()
	if err != nil {
		return nil, err
	}
	if axis != 0 && axis != 1 {
		return nil, fmt.Errorf("tensor: flip axis must be 0 or 1, got %d", axis)
	}
	out := d.withSpatialShape(h, w)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			si, sj := i, j
			if axis == 0 {
				si = h - 1 - i
			} else {
				sj = w - 1 - j
			}
			copy(out.block(j, w, blk, i), d.block(sj, w, blk, si))
		}
	}
	return out, nil
}

// Rot90 rotates the spatial plane counter-clockwise k quarter turns. For odd
// k on non-square planes the spatial dims swap.
func Rot90(d *Dense, k int) (*Dense, error) {
	if _, _, _, err := d.spatial(); err != nil {
		return nil, err
	}
	k = ((k % 4) + 4) % 4
	cur := d
	for t := 0; t < k; t++ {
		h, w, blk, _ := cur.spatial()
		// out[i,j] = in[j, w-1-i], out shape (w, h)
		out := cur.withSpatialShape(w, h)
		for i := 0; i < w; i++ {
			for j := 0; j < h; j++ {
				copy(out.block(j, h, blk, i), cur.block(w-1-i, w, blk, j))
			}
		}
		cur = out
	}
	if cur == d {
		cur = d.Clone()
	}
	return cur, nil
}

// Crop2D returns the [y0:y0+ph, x0:x0+pw] spatial window.
func Crop2D(d *Dense, y0, x0, ph, pw int) (*Dense, error) {
	h, w, blk, err := d.spatial()
	if err != nil {
		return nil, err
	}
	if y0 < 0 || x0 < 0 || ph < 0 || pw < 0 || y0+ph > h || x0+pw > w {
		return nil, fmt.Errorf("tensor: crop [%d:%d, %d:%d] outside %dx%d plane", y0, y0+ph, x0, x0+pw, h, w)
	}
	out := d.withSpatialShape(ph, pw)
	for i := 0; i < ph; i++ {
		for j := 0; j < pw; j++ {
			copy(out.block(j, pw, blk, i), d.block(x0+j, w, blk, y0+i))
		}
	}
	return out, nil
}

// Shift2D translates the spatial plane by (dy, dx), filling vacated pixels
// with zeros.
func Shift2D(d *Dense, dy, dx int) (*Dense, error) {
	h, w, blk, err := d.spatial()
	if err != nil {
		return nil, err
	}
	out := d.withSpatialShape(h, w)
	for i := 0; i < h; i++ {
		si := i - dy
		if si < 0 || si >= h {
			continue
		}
		for j := 0; j < w; j++ {
			sj := j - dx
			if sj < 0 || sj >= w {
				continue
			}
			copy(out.block(j, w, blk, i), d.block(sj, w, blk, si))
		}
	}
	return out, nil
}
