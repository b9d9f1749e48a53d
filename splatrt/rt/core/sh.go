package core

import "github.com/go-gl/mathgl/mgl32"

const (
	shC0 = 0.28209479177387814
	shC1 = 0.4886025119029199
)

var (
	shC2 = [5]float32{1.0925484305920792, -1.0925484305920792, 0.31539156525252005, -1.0925484305920792, 0.5462742152960396}
	shC3 = [7]float32{-0.5900435899266435, 2.890611442640554, -0.4570457994644658, 0.3731763325901154, -0.4570457994644658, 1.445305721320277, -0.5900435899266435}
)

// EvalSH evaluates view-dependent color up to deg for a unit direction.
// Missing coefficients count as zero; the result is clamped at zero.
func EvalSH(sh []float32, deg uint32, dir mgl32.Vec3) [3]float32 {
	coeff := func(i int) mgl32.Vec3 {
		if 3*i+2 >= len(sh) {
			return mgl32.Vec3{}
		}
		return mgl32.Vec3{sh[3*i], sh[3*i+1], sh[3*i+2]}
	}

	result := coeff(0).Mul(shC0)
	if deg > 0 {
		x, y, z := dir[0], dir[1], dir[2]
		result = result.Sub(coeff(1).Mul(shC1 * y)).Add(coeff(2).Mul(shC1 * z)).Sub(coeff(3).Mul(shC1 * x))

		if deg > 1 {
			xx, yy, zz := x*x, y*y, z*z
			xy, yz, xz := x*y, y*z, x*z
			result = result.
				Add(coeff(4).Mul(shC2[0] * xy)).
				Add(coeff(5).Mul(shC2[1] * yz)).
				Add(coeff(6).Mul(shC2[2] * (2*zz - xx - yy))).
				Add(coeff(7).Mul(shC2[3] * xz)).
				Add(coeff(8).Mul(shC2[4] * (xx - yy)))

			if deg > 2 {
				result = result.
					Add(coeff(9).Mul(shC3[0] * y * (3*xx - yy))).
					Add(coeff(10).Mul(shC3[1] * xy * z)).
					Add(coeff(11).Mul(shC3[2] * y * (4*zz - xx - yy))).
					Add(coeff(12).Mul(shC3[3] * z * (2*zz - 3*xx - 3*yy))).
					Add(coeff(13).Mul(shC3[4] * x * (4*zz - xx - yy))).
					Add(coeff(14).Mul(shC3[5] * z * (xx - yy))).
					Add(coeff(15).Mul(shC3[6] * x * (xx - 3*yy)))
			}
		}
	}
	result = result.Add(mgl32.Vec3{0.5, 0.5, 0.5})
	return [3]float32{
		max(result[0], 0),
		max(result[1], 0),
		max(result[2], 0),
	}
}

// ColorToDC returns the degree-0 coefficient that evaluates to rgb.
func ColorToDC(rgb [3]float32) [3]float32 {
	return [3]float32{
		(rgb[0] - 0.5) / shC0,
		(rgb[1] - 0.5) / shC0,
		(rgb[2] - 0.5) / shC0,
	}
}
