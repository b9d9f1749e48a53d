// Package snapshot renders a point cloud to an image file on the host, using
// the same frame plan as the viewer.
package snapshot

import (
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gekko3d/splat/splatrt/rt/core"
	"github.com/gekko3d/splat/splatrt/rt/soft"
	"github.com/go-gl/mathgl/mgl32"
)

// PipeName selects stdout as the destination.
const PipeName = "-"

var ErrTerminalOutput = errors.New("`-` should be used with a pipe for stdout")

type Options struct {
	Width       int
	Height      int
	Supersample int
	Multiplier  float32
	Background  [4]float32
	// Camera overrides the default viewpoint when non-nil.
	Camera *core.CameraState
	Logger core.Logger
}

func DefaultOptions() Options {
	return Options{
		Width:       640,
		Height:      480,
		Supersample: 2,
		Multiplier:  1,
		Background:  [4]float32{0, 0, 0, 1},
	}
}

// Result carries what the frame reported alongside the image.
type Result struct {
	Image   *image.NRGBA
	Visible uint32
	Points  uint32
}

// Render draws pc at Width*Supersample x Height*Supersample and downsamples
// with a Lanczos filter.
func Render(pc *core.PointCloud, opts Options) (Result, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return Result{}, fmt.Errorf("invalid size %dx%d", opts.Width, opts.Height)
	}
	ss := max(opts.Supersample, 1)
	w, h := opts.Width*ss, opts.Height*ss
	logger := opts.Logger
	if logger == nil {
		logger = core.NewNopLogger()
	}
	cam := opts.Camera
	if cam == nil {
		cam = core.NewCameraState()
	}

	r, err := soft.NewRenderer(pc, soft.NewCameraBuffer("snapshot"),
		soft.WithLogger(logger), soft.WithLabel("snapshot"), soft.WithClearColor(opts.Background))
	if err != nil {
		return Result{}, err
	}
	if err := r.SetCamera(cam.Uniform(uint32(w), uint32(h))); err != nil {
		return Result{}, err
	}
	if opts.Multiplier > 0 && opts.Multiplier != 1 {
		if err := r.SetGaussianMultiplier(opts.Multiplier); err != nil {
			return Result{}, err
		}
	}

	target := soft.NewTarget(w, h)
	if err := r.Frame(target); err != nil {
		return Result{}, err
	}
	logger.Debugf("snapshot: %d of %d splats visible at %dx%d", r.Visible(), r.NumPoints(), w, h)

	var img *image.NRGBA
	if ss > 1 {
		img = imaging.Resize(target.Image(), opts.Width, opts.Height, imaging.Lanczos)
	} else {
		img = imaging.Clone(target.Image())
	}
	return Result{Image: img, Visible: r.Visible(), Points: r.NumPoints()}, nil
}

// Write encodes img to out. The format follows the file extension; PipeName
// writes PNG to stdout, which must not be a terminal.
func Write(img image.Image, out string, stdout io.Writer, isTerminal bool) error {
	if out == PipeName {
		if isTerminal {
			return ErrTerminalOutput
		}
		return imaging.Encode(stdout, img, imaging.PNG)
	}
	if _, err := imaging.FormatFromFilename(out); err != nil {
		return fmt.Errorf("output %s: %w", filepath.Base(out), err)
	}
	return imaging.Save(img, out)
}

// ParseVec3 reads "x,y,z".
func ParseVec3(s string) (mgl32.Vec3, error) {
	var v mgl32.Vec3
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("expected x,y,z, got %q", s)
	}
	for i, p := range parts {
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%g", &v[i]); err != nil {
			return v, fmt.Errorf("component %d of %q: %w", i, s, err)
		}
	}
	return v, nil
}
