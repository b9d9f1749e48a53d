package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// NewColoredCloud builds an isotropic, degree-0 cloud from positions and colors.
// Points without a color fall back to white.
func NewColoredCloud(points [][3]float32, colors [][3]float32, scale, opacity float32) *PointCloud {
	pc := &PointCloud{
		Gaussians: make([]Gaussian, len(points)),
		SH:        make([][]float32, len(points)),
		SHDeg:     0,
	}
	for i, p := range points {
		pc.Gaussians[i] = Gaussian{
			Position: p,
			Opacity:  opacity,
			Rotation: mgl32.QuatIdent(),
			Scale:    [3]float32{scale, scale, scale},
		}
		rgb := [3]float32{1, 1, 1}
		if i < len(colors) {
			rgb = colors[i]
		}
		dc := ColorToDC(rgb)
		pc.SH[i] = []float32{dc[0], dc[1], dc[2]}
	}
	return pc
}

// NewGridCloud lays out n*n*n Gaussians on a cube centered at the origin,
// colored by their position in the grid.
func NewGridCloud(n int, spacing float32) *PointCloud {
	if n <= 0 {
		return &PointCloud{}
	}
	points := make([][3]float32, 0, n*n*n)
	colors := make([][3]float32, 0, n*n*n)
	half := float32(n-1) * spacing * 0.5
	denom := float32(max(n-1, 1))
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			for z := 0; z < n; z++ {
				points = append(points, [3]float32{
					float32(x)*spacing - half,
					float32(y)*spacing - half,
					float32(z)*spacing - half,
				})
				colors = append(colors, [3]float32{float32(x) / denom, float32(y) / denom, float32(z) / denom})
			}
		}
	}
	return NewColoredCloud(points, colors, spacing*0.25, 0.8)
}

// NewSphereCloud distributes count Gaussians over a sphere surface using a
// Fibonacci lattice.
func NewSphereCloud(count int, radius float32) *PointCloud {
	if count <= 0 {
		return &PointCloud{}
	}
	points := make([][3]float32, count)
	colors := make([][3]float32, count)
	golden := math.Pi * (3 - math.Sqrt(5))
	for i := 0; i < count; i++ {
		y := 1 - 2*(float64(i)+0.5)/float64(count)
		r := math.Sqrt(1 - y*y)
		theta := golden * float64(i)
		x, z := math.Cos(theta)*r, math.Sin(theta)*r
		points[i] = [3]float32{float32(x) * radius, float32(y) * radius, float32(z) * radius}
		colors[i] = [3]float32{float32(x*0.5 + 0.5), float32(y*0.5 + 0.5), float32(z*0.5 + 0.5)}
	}
	spacing := radius * float32(math.Sqrt(4*math.Pi/float64(count)))
	return NewColoredCloud(points, colors, spacing*0.5, 0.9)
}
