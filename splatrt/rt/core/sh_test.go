package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestEvalSH(t *testing.T) {
	up := mgl32.Vec3{0, 1, 0}
	right := mgl32.Vec3{1, 0, 0}

	dc := ColorToDC([3]float32{0.3, 0.6, 0.9})
	degree1 := make([]float32, SHCoeffCount(1)*3)
	copy(degree1, dc[:])
	degree1[9] = 1 // coefficient 3 (x), red channel

	tests := []struct {
		name string
		sh   []float32
		deg  uint32
		dir  mgl32.Vec3
		want [3]float32
	}{
		{"no coefficients", nil, 3, up, [3]float32{0.5, 0.5, 0.5}},
		{"dc only", dc[:], 0, up, [3]float32{0.3, 0.6, 0.9}},
		{"higher degree ignores missing coefficients", dc[:], 3, right, [3]float32{0.3, 0.6, 0.9}},
		{"degree 1 off axis", degree1, 1, up, [3]float32{0.3, 0.6, 0.9}},
		{"degree 1 along x", degree1, 1, right, [3]float32{max(0.3-shC1, 0), 0.6, 0.9}},
		{"degree 1 coefficients unused at degree 0", degree1, 0, right, [3]float32{0.3, 0.6, 0.9}},
		{"negative clamps to zero", []float32{-10, 0, 0}, 0, up, [3]float32{0, 0.5, 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvalSH(tt.sh, tt.deg, tt.dir)
			assert.InDeltaSlice(t, tt.want[:], got[:], 1e-5)
		})
	}
}
