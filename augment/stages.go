package augment

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/ekerman/batchgen/tensor"
)

// Built-in stages, ported from the usual image-augmentation repertoire. Each
// registers a builder factory so the process strategy can rebuild it inside
// worker subprocesses from its Spec alone.

func init() {
	Register("transpose", func(map[string]float64) (Builder, error) {
		return func(_ *rand.Rand, _ []*tensor.Dense) (Transform, error) {
			return tensor.SwapAxes01, nil
		}, nil
	})
	Register("fliplr", func(map[string]float64) (Builder, error) {
		return func(_ *rand.Rand, _ []*tensor.Dense) (Transform, error) {
			return flipOp(1), nil
		}, nil
	})
	Register("flipud", func(map[string]float64) (Builder, error) {
		return func(_ *rand.Rand, _ []*tensor.Dense) (Transform, error) {
			return flipOp(0), nil
		}, nil
	})
	Register("flip", func(map[string]float64) (Builder, error) {
		return func(rng *rand.Rand, _ []*tensor.Dense) (Transform, error) {
			return flipOp(rng.IntN(2)), nil
		}, nil
	})
	Register("rot90", func(map[string]float64) (Builder, error) {
		return func(rng *rand.Rand, _ []*tensor.Dense) (Transform, error) {
			k := 1 + rng.IntN(3)
			return func(d *tensor.Dense) (*tensor.Dense, error) {
				return tensor.Rot90(d, k)
			}, nil
		}, nil
	})
	Register("normalize", func(map[string]float64) (Builder, error) {
		return func(_ *rand.Rand, _ []*tensor.Dense) (Transform, error) {
			return normalizeOp, nil
		}, nil
	})
	Register("shift", func(args map[string]float64) (Builder, error) {
		fract := int(argOr(args, "dimfract", 2))
		if fract < 1 {
			return nil, fmt.Errorf("dimfract must be >= 1, got %d", fract)
		}
		return func(rng *rand.Rand, tuple []*tensor.Dense) (Transform, error) {
			h, w, err := planeDims(tuple)
			if err != nil {
				return nil, err
			}
			dy := randRange(rng, h/fract)
			dx := randRange(rng, w/fract)
			return func(d *tensor.Dense) (*tensor.Dense, error) {
				return tensor.Shift2D(d, dy, dx)
			}, nil
		}, nil
	})
	Register("randpatch", func(args map[string]float64) (Builder, error) {
		ph := int(argOr(args, "height", 32))
		pw := int(argOr(args, "width", 32))
		if ph < 1 || pw < 1 {
			return nil, fmt.Errorf("patch size must be positive, got %dx%d", ph, pw)
		}
		return func(rng *rand.Rand, tuple []*tensor.Dense) (Transform, error) {
			h, w, err := planeDims(tuple)
			if err != nil {
				return nil, err
			}
			if ph > h || pw > w {
				return nil, fmt.Errorf("patch %dx%d larger than %dx%d plane", ph, pw, h, w)
			}
			y0 := rng.IntN(h - ph + 1)
			x0 := rng.IntN(w - pw + 1)
			return func(d *tensor.Dense) (*tensor.Dense, error) {
				return tensor.Crop2D(d, y0, x0, ph, pw)
			}, nil
		}, nil
	})
	Register("noise", func(args map[string]float64) (Builder, error) {
		stddev := argOr(args, "stddev", 0.1)
		return func(rng *rand.Rand, _ []*tensor.Dense) (Transform, error) {
			seed := rng.Uint64()
			return func(d *tensor.Dense) (*tensor.Dense, error) {
				return noiseOp(d, seed, stddev)
			}, nil
		}, nil
	})
}

// Transpose swaps the two spatial axes.
func Transpose(opts ...StageOption) Stage {
	return registered("transpose", DefaultProb, nil, opts...)
}

// FlipLR mirrors the spatial plane left/right.
func FlipLR(opts ...StageOption) Stage {
	return registered("fliplr", DefaultProb, nil, opts...)
}

// FlipUD mirrors the spatial plane up/down.
func FlipUD(opts ...StageOption) Stage {
	return registered("flipud", DefaultProb, nil, opts...)
}

// Flip mirrors the spatial plane, choosing up/down or left/right at random.
func Flip(opts ...StageOption) Stage {
	return registered("flip", DefaultProb, nil, opts...)
}

// Rot90 rotates the spatial plane a random one, two or three quarter turns.
func Rot90(opts ...StageOption) Stage {
	return registered("rot90", DefaultProb, nil, opts...)
}

// Normalize rescales float arrays into [0, 1]. Applied unconditionally by
// default.
func Normalize(opts ...StageOption) Stage {
	return registered("normalize", 1.0, nil, opts...)
}

// Shift translates the spatial plane by a random offset of up to a 1/fract
// fraction of each dimension, zero-filling vacated pixels.
func Shift(fract int, opts ...StageOption) Stage {
	return registered("shift", DefaultProb, map[string]float64{"dimfract": float64(fract)}, opts...)
}

// RandPatch crops a random height x width window, the same window for every
// targeted tuple position. Applied unconditionally by default since it
// decides the output record shape.
func RandPatch(height, width int, opts ...StageOption) Stage {
	return registered("randpatch", 1.0,
		map[string]float64{"height": float64(height), "width": float64(width)}, opts...)
}

// Noise adds Gaussian noise with the given standard deviation to float
// arrays. Every targeted position receives the identical noise sequence.
func Noise(stddev float64, opts ...StageOption) Stage {
	return registered("noise", DefaultProb, map[string]float64{"stddev": stddev}, opts...)
}

func flipOp(axis int) Transform {
	return func(d *tensor.Dense) (*tensor.Dense, error) {
		return tensor.Flip(d, axis)
	}
}

func normalizeOp(d *tensor.Dense) (*tensor.Dense, error) {
	out := d.Clone()
	switch d.DType() {
	case tensor.Float64:
		vals := out.Float64s()
		if len(vals) == 0 {
			return out, nil
		}
		lo, hi := floats.Min(vals), floats.Max(vals)
		if hi == lo {
			for i := range vals {
				vals[i] = 0
			}
			return out, nil
		}
		floats.AddConst(-lo, vals)
		floats.Scale(1/(hi-lo), vals)
		return out, nil
	case tensor.Float32:
		n := out.NumElem()
		if n == 0 {
			return out, nil
		}
		lo, hi := out.FloatAt(0), out.FloatAt(0)
		for i := 1; i < n; i++ {
			v := out.FloatAt(i)
			lo, hi = min(lo, v), max(hi, v)
		}
		if hi == lo {
			hi = lo + 1
		}
		for i := 0; i < n; i++ {
			out.SetFloatAt(i, (out.FloatAt(i)-lo)/(hi-lo))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("normalize requires a float array, got %s", d.DType())
	}
}

func noiseOp(d *tensor.Dense, seed uint64, stddev float64) (*tensor.Dense, error) {
	if d.DType() != tensor.Float32 && d.DType() != tensor.Float64 {
		return nil, fmt.Errorf("noise requires a float array, got %s", d.DType())
	}
	// Fresh source per invocation so every targeted tuple position sees the
	// identical noise sequence.
	src := rand.New(rand.NewPCG(seed, 0))
	out := d.Clone()
	for i, n := 0, out.NumElem(); i < n; i++ {
		out.SetFloatAt(i, out.FloatAt(i)+src.NormFloat64()*stddev)
	}
	return out, nil
}

// planeDims returns the spatial dims of the first targeted array. Stages see
// only their targeted positions, so a non-spatial label vector elsewhere in
// the tuple never becomes the reference.
func planeDims(tuple []*tensor.Dense) (int, int, error) {
	if len(tuple) == 0 {
		return 0, 0, fmt.Errorf("empty record tuple")
	}
	ref := tuple[0]
	if ref.NDim() < 2 {
		return 0, 0, fmt.Errorf("reference array has shape %v, need >= 2 dims", ref.Shape())
	}
	return ref.Dim(0), ref.Dim(1), nil
}

// randRange draws uniformly from [-n, n].
func randRange(rng *rand.Rand, n int) int {
	if n <= 0 {
		return 0
	}
	return rng.IntN(2*n+1) - n
}

func argOr(args map[string]float64, key string, def float64) float64 {
	if v, ok := args[key]; ok {
		return v
	}
	return def
}
