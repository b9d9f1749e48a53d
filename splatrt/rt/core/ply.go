package core

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

var ErrUnsupportedPLY = errors.New("unsupported PLY file")

// plyPrealloc caps how many vertices are allocated up front from the header
// count; the rest grow as records are read.
const plyPrealloc = 1 << 16

type plyProperty struct {
	size   int
	offset int
	read   func([]byte) float32
}

// LoadPLY reads a 3D Gaussian splatting PLY export from disk.
func LoadPLY(path string) (*PointCloud, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	pc, err := ReadPLY(file)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return pc, nil
}

// ReadPLY parses a binary little-endian PLY with the usual 3DGS vertex
// properties. Opacity is stored as a logit and scales as logs; both are
// activated here. The SH degree is derived from the number of f_rest fields.
func ReadPLY(r io.Reader) (*PointCloud, error) {
	br := bufio.NewReader(r)

	magic, err := br.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(magic) != "ply" {
		return nil, fmt.Errorf("%w: missing ply magic", ErrUnsupportedPLY)
	}

	var (
		numVertices int
		stride      int
		props       = make(map[string]plyProperty)
		inVertex    bool
		vertexSeen  bool
	)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: truncated header", ErrUnsupportedPLY)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 || fields[1] != "binary_little_endian" {
				return nil, fmt.Errorf("%w: format %q", ErrUnsupportedPLY, strings.Join(fields[1:], " "))
			}
		case "element":
			if len(fields) < 3 {
				return nil, fmt.Errorf("%w: bad element line", ErrUnsupportedPLY)
			}
			inVertex = fields[1] == "vertex"
			if !inVertex {
				// Trailing elements are never read, leading ones would shift the vertex block.
				if !vertexSeen {
					return nil, fmt.Errorf("%w: element %s before vertex", ErrUnsupportedPLY, fields[1])
				}
				continue
			}
			vertexSeen = true
			n, err := strconv.ParseUint(fields[2], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: vertex count %q", ErrUnsupportedPLY, fields[2])
			}
			numVertices = int(n)
		case "property":
			if !inVertex {
				continue
			}
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: list properties on vertices", ErrUnsupportedPLY)
			}
			size, read, ok := plyScalar(fields[1])
			if !ok {
				return nil, fmt.Errorf("%w: property type %q", ErrUnsupportedPLY, fields[1])
			}
			props[fields[2]] = plyProperty{size: size, offset: stride, read: read}
			stride += size
		case "end_header":
			return readPLYVertices(br, numVertices, stride, props)
		}
	}
}

func readPLYVertices(r io.Reader, count, stride int, props map[string]plyProperty) (*PointCloud, error) {
	for _, name := range []string{"x", "y", "z", "opacity", "scale_0", "scale_1", "scale_2", "rot_0", "rot_1", "rot_2", "rot_3", "f_dc_0", "f_dc_1", "f_dc_2"} {
		if _, ok := props[name]; !ok {
			return nil, fmt.Errorf("%w: missing property %s", ErrUnsupportedPLY, name)
		}
	}

	rest := 0
	for {
		if _, ok := props[fmt.Sprintf("f_rest_%d", rest)]; !ok {
			break
		}
		rest++
	}
	deg := uint32(0)
	for d := uint32(MaxSHDegree); d > 0; d-- {
		if rest >= (SHCoeffCount(d)-1)*3 {
			deg = d
			break
		}
	}
	restPerChannel := SHCoeffCount(deg) - 1
	// f_rest is channel-major: all R coefficients, then all G, then all B.
	restStride := rest / 3

	get := func(rec []byte, name string) float32 {
		p := props[name]
		return p.read(rec[p.offset : p.offset+p.size])
	}

	pc := &PointCloud{
		Gaussians: make([]Gaussian, 0, min(count, plyPrealloc)),
		SH:        make([][]float32, 0, min(count, plyPrealloc)),
		SHDeg:     deg,
	}
	rec := make([]byte, stride)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, rec); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("vertex %d of %d: %w", i, count, err)
		}
		pc.Gaussians = append(pc.Gaussians, Gaussian{
			Position: [3]float32{get(rec, "x"), get(rec, "y"), get(rec, "z")},
			Opacity:  sigmoid(get(rec, "opacity")),
			Rotation: mgl32.Quat{
				W: get(rec, "rot_0"),
				V: mgl32.Vec3{get(rec, "rot_1"), get(rec, "rot_2"), get(rec, "rot_3")},
			}.Normalize(),
			Scale: [3]float32{
				float32(math.Exp(float64(get(rec, "scale_0")))),
				float32(math.Exp(float64(get(rec, "scale_1")))),
				float32(math.Exp(float64(get(rec, "scale_2")))),
			},
		})

		sh := make([]float32, SHCoeffCount(deg)*3)
		sh[0], sh[1], sh[2] = get(rec, "f_dc_0"), get(rec, "f_dc_1"), get(rec, "f_dc_2")
		for c := 0; c < restPerChannel; c++ {
			for ch := 0; ch < 3; ch++ {
				sh[(c+1)*3+ch] = get(rec, fmt.Sprintf("f_rest_%d", ch*restStride+c))
			}
		}
		pc.SH = append(pc.SH, sh)
	}
	return pc, nil
}

func plyScalar(typ string) (int, func([]byte) float32, bool) {
	switch typ {
	case "char", "int8":
		return 1, func(b []byte) float32 { return float32(int8(b[0])) }, true
	case "uchar", "uint8":
		return 1, func(b []byte) float32 { return float32(b[0]) }, true
	case "short", "int16":
		return 2, func(b []byte) float32 { return float32(int16(binary.LittleEndian.Uint16(b))) }, true
	case "ushort", "uint16":
		return 2, func(b []byte) float32 { return float32(binary.LittleEndian.Uint16(b)) }, true
	case "int", "int32":
		return 4, func(b []byte) float32 { return float32(int32(binary.LittleEndian.Uint32(b))) }, true
	case "uint", "uint32":
		return 4, func(b []byte) float32 { return float32(binary.LittleEndian.Uint32(b)) }, true
	case "float", "float32":
		return 4, func(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }, true
	case "double", "float64":
		return 8, func(b []byte) float32 { return float32(math.Float64frombits(binary.LittleEndian.Uint64(b))) }, true
	}
	return 0, nil, false
}

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}
