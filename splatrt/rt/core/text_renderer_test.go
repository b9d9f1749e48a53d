package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTextRenderer(t *testing.T) {
	tr := NewDefaultTextRenderer()
	require.NotNil(t, tr.AtlasImage)

	g, ok := tr.Glyphs['A']
	require.True(t, ok)
	assert.Equal(t, float32(7), g.Adv)
	assert.Less(t, g.UVMin[0], g.UVMax[0])
	assert.Less(t, g.UVMin[1], g.UVMax[1])

	// glyph pixels were copied into the atlas
	x0 := int(g.UVMin[0] * 512)
	y0 := int(g.UVMin[1] * 512)
	lit := false
	for y := y0; y < y0+int(g.Size[1]); y++ {
		for x := x0; x < x0+int(g.Size[0]); x++ {
			if tr.AtlasImage.AlphaAt(x, y).A > 0 {
				lit = true
			}
		}
	}
	assert.True(t, lit)
}

func TestBuildVertices(t *testing.T) {
	tr := NewDefaultTextRenderer()

	v := tr.BuildVertices([]TextItem{{Text: "AB\nC", Position: [2]float32{10, 10}, Scale: 1, Color: [4]float32{1, 1, 1, 1}}}, 200, 100)
	require.Len(t, v, 18)
	for _, vert := range v {
		assert.GreaterOrEqual(t, vert.Pos[0], float32(-1))
		assert.LessOrEqual(t, vert.Pos[0], float32(1))
		assert.Equal(t, [4]float32{1, 1, 1, 1}, vert.Color)
	}
	assert.Greater(t, v[6].Pos[0], v[0].Pos[0], "B is right of A")
	assert.Less(t, v[12].Pos[1], v[0].Pos[1], "C is on the next line")

	assert.Empty(t, tr.BuildVertices([]TextItem{{Text: "A", Scale: 1}}, 0, 100))
	assert.Empty(t, tr.BuildVertices([]TextItem{{Text: "é", Scale: 1}}, 100, 100))
}

func TestMeasureText(t *testing.T) {
	tr := NewDefaultTextRenderer()
	w, h := tr.MeasureText("abc", 2)
	assert.Equal(t, float32(42), w)
	assert.Equal(t, float32(26), h)

	w2, h2 := tr.MeasureText("abc\nab", 2)
	assert.Equal(t, w, w2)
	assert.Equal(t, 2*h, h2)

	var nilRenderer *TextRenderer
	w, h = nilRenderer.MeasureText("abc", 1)
	assert.Zero(t, w)
	assert.Zero(t, h)
}
