package main

import (
	"flag"
	"runtime"

	"github.com/gekko3d/splat/splatrt/rt/app"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	cfg := app.DefaultConfig()
	flag.StringVar(&cfg.PLYPath, "ply", "", "3D Gaussian splatting PLY file to view")
	flag.IntVar(&cfg.Points, "points", cfg.Points, "Points in the procedural scene when no PLY is given")
	multiplier := flag.Float64("multiplier", 1, "Initial gaussian scale multiplier")
	flag.BoolVar(&cfg.DebugMode, "debug", false, "Enable debug logging and the stats overlay")
	width := flag.Int("width", 1280, "Window width")
	height := flag.Int("height", 720, "Window height")
	flag.Parse()
	cfg.Multiplier = float32(*multiplier)

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(*width, *height, "SplatRT Go", nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	application := app.NewApp(window, cfg)
	if err := application.Init(); err != nil {
		panic(err)
	}
	defer application.Release()

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})

	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		if application.MouseCaptured {
			application.Look(float32(xpos-application.MouseX), float32(ypos-application.MouseY))
		}
		application.MouseX = xpos
		application.MouseY = ypos
	})

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyTab && action == glfw.Press {
			application.MouseCaptured = !application.MouseCaptured
			if application.MouseCaptured {
				w.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
			} else {
				w.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
			}
		}
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}

		if action == glfw.Press || action == glfw.Repeat {
			if key == glfw.KeyEqual || key == glfw.KeyKPAdd {
				application.AdjustMultiplier(1.1)
			}
			if key == glfw.KeyMinus || key == glfw.KeyKPSubtract {
				application.AdjustMultiplier(1 / 1.1)
			}
		}
	})

	for !window.ShouldClose() {
		glfw.PollEvents()
		application.Update()
		application.Render()
	}
}
