package app

import (
	"fmt"

	"github.com/gekko3d/splat/splatrt/rt/core"
	"github.com/gekko3d/splat/splatrt/rt/gpu"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	minMultiplier = 0.05
	maxMultiplier = 8.0
)

type Config struct {
	// PLYPath loads a 3DGS export; empty uses a procedural scene.
	PLYPath string
	// Points sizes the procedural sphere when no PLY is given.
	Points     int
	Multiplier float32
	DebugMode  bool
	Logger     core.Logger
}

func DefaultConfig() Config {
	return Config{
		Points:     20000,
		Multiplier: 1,
	}
}

type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	Settings Config
	Logger   core.Logger

	Cloud        *core.PointCloud
	CloudBuffers *gpu.PointCloudBuffers
	CameraBuffer *wgpu.Buffer
	Renderer     *gpu.Renderer
	Stats        *gpu.FrameStats
	HUD          *gpu.HUD
	Profiler     *Profiler
	Camera       *core.CameraState

	Multiplier float32
	LastStats  gpu.Stats

	LastTime       float64
	LastRenderTime float64
	MouseCaptured  bool
	MouseX, MouseY float64

	FrameCount int
	FPS        float64
	FPSTime    float64
}

func NewApp(window *glfw.Window, cfg Config) *App {
	if cfg.Logger == nil {
		cfg.Logger = core.NewDefaultLogger("splat", cfg.DebugMode)
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 1
	}
	return &App{
		Window:     window,
		Settings:   cfg,
		Logger:     cfg.Logger,
		Camera:     core.NewCameraState(),
		Profiler:   NewProfiler(),
		Multiplier: cfg.Multiplier,
	}
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)

	surface := a.Instance.CreateSurface(GetSurfaceDescriptor(a.Window))
	a.Surface = surface

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("request adapter: %w", err)
	}
	a.Adapter = adapter

	a.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("request device: %w", err)
	}
	a.Queue = a.Device.GetQueue()

	width, height := a.Window.GetFramebufferSize()
	caps := surface.GetCapabilities(adapter)
	format := caps.Formats[0]

	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, a.Device, a.Config)

	if err := a.loadScene(); err != nil {
		return err
	}

	a.CloudBuffers, err = gpu.UploadPointCloud(a.Device, a.Cloud)
	if err != nil {
		return err
	}
	a.CameraBuffer, err = gpu.NewCameraBuffer(a.Device, "viewer")
	if err != nil {
		return err
	}
	a.Renderer, err = gpu.NewRenderer(a.CloudBuffers, a.Device, format, a.CameraBuffer,
		gpu.WithLogger(a.Logger), gpu.WithLabel("viewer"))
	if err != nil {
		return err
	}
	if a.Multiplier != 1 {
		if err := a.Renderer.SetGaussianMultiplier(a.Multiplier); err != nil {
			return err
		}
	}

	a.Stats, err = gpu.NewFrameStats(a.Device, a.Renderer.Label())
	if err != nil {
		return err
	}
	a.HUD, err = gpu.NewHUD(a.Device, format, core.NewDefaultTextRenderer())
	if err != nil {
		return err
	}

	a.Logger.Infof("renderer %s ready: %d points, sh degree %d, surface %dx%d",
		a.Renderer.Label(), a.Cloud.NumPoints(), a.Cloud.SHDeg, width, height)
	return nil
}

func (a *App) loadScene() error {
	if a.Settings.PLYPath != "" {
		pc, err := core.LoadPLY(a.Settings.PLYPath)
		if err != nil {
			return err
		}
		a.Cloud = pc
		a.frameCloud()
		return nil
	}
	a.Cloud = core.NewSphereCloud(a.Settings.Points, 1.5)
	return nil
}

// frameCloud moves the camera back far enough to see the whole cloud.
func (a *App) frameCloud() {
	if a.Cloud.NumPoints() == 0 {
		return
	}
	fit := core.FitCamera(a.Cloud)
	a.Camera.Position = fit.Position
	a.Camera.Speed = max(fit.Speed, a.Camera.Speed)
}

func (a *App) Resize(w, h int) {
	if w > 0 && h > 0 {
		a.Config.Width = uint32(w)
		a.Config.Height = uint32(h)
		a.Surface.Configure(a.Adapter, a.Device, a.Config)
	}
}

// AdjustMultiplier scales the gaussian multiplier by factor within fixed bounds.
func (a *App) AdjustMultiplier(factor float32) {
	next := min(max(a.Multiplier*factor, minMultiplier), maxMultiplier)
	if next == a.Multiplier {
		return
	}
	if err := a.Renderer.SetGaussianMultiplier(next); err != nil {
		a.Logger.Errorf("set gaussian multiplier: %v", err)
		return
	}
	a.Multiplier = next
	a.Logger.Debugf("gaussian multiplier %.3f", next)
}

func (a *App) Update() {
	a.Profiler.BeginScope("update")
	defer a.Profiler.EndScope("update")

	a.moveCamera(a.beginFrame(glfw.GetTime()))

	if err := gpu.WriteCamera(a.Queue, a.CameraBuffer, a.Camera.Uniform(a.Config.Width, a.Config.Height)); err != nil {
		a.Logger.Errorf("write camera: %v", err)
	}

	a.HUD.Clear()
	if a.Settings.DebugMode {
		a.HUD.DrawText(fmt.Sprintf("FPS: %.1f", a.FPS), 10, 10, 1.0, [4]float32{1, 1, 0, 1})
		a.HUD.DrawText(fmt.Sprintf("visible %d / %d  multiplier %.2f", a.LastStats.Visible, a.Renderer.NumPoints(), a.Multiplier),
			10, 30, 1.0, [4]float32{1, 1, 1, 1})
		a.HUD.DrawText(a.Profiler.GetStatsString(), 10, 50, 1.0, [4]float32{0.8, 0.8, 0.8, 1})
	}
	a.Profiler.Measure("hud", func() {
		if err := a.HUD.Upload(int(a.Config.Width), int(a.Config.Height)); err != nil {
			a.Logger.Errorf("upload hud: %v", err)
		}
	})
}

// beginFrame clears last frame's timings and returns the seconds elapsed
// since the previous call, zero on the first.
func (a *App) beginFrame(now float64) float32 {
	a.Profiler.Reset()
	dt := float32(0)
	if a.LastTime > 0 {
		dt = float32(now - a.LastTime)
	}
	a.LastTime = now
	return dt
}

func (a *App) moveCamera(dt float32) {
	if dt <= 0 {
		return
	}
	forward := a.Camera.GetForward()
	right := a.Camera.GetRight()
	step := a.Camera.Speed * dt
	if a.Window.GetKey(glfw.KeyLeftShift) == glfw.Press {
		step *= 4
	}
	moves := []struct {
		key glfw.Key
		dir mgl32.Vec3
	}{
		{glfw.KeyW, forward},
		{glfw.KeyS, forward.Mul(-1)},
		{glfw.KeyD, right},
		{glfw.KeyA, right.Mul(-1)},
		{glfw.KeySpace, mgl32.Vec3{0, 1, 0}},
		{glfw.KeyLeftControl, mgl32.Vec3{0, -1, 0}},
	}
	for _, m := range moves {
		if a.Window.GetKey(m.key) == glfw.Press {
			a.Camera.Position = a.Camera.Position.Add(m.dir.Mul(step))
		}
	}
}

// Look turns the camera by a cursor delta in pixels.
func (a *App) Look(dx, dy float32) {
	a.Camera.Yaw += dx * a.Camera.Sensitivity
	a.Camera.Pitch -= dy * a.Camera.Sensitivity
	a.Camera.Pitch = min(max(a.Camera.Pitch, -1.55), 1.55)
}

func (a *App) Render() {
	nextTexture, err := a.Surface.GetCurrentTexture()
	if err != nil {
		a.Logger.Errorf("GetCurrentTexture failed: %v", err)
		return
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		a.Logger.Errorf("CreateView failed: %v", err)
		return
	}
	defer view.Release()

	encoder, err := a.Device.CreateCommandEncoder(nil)
	if err != nil {
		a.Logger.Errorf("CreateCommandEncoder failed: %v", err)
		return
	}

	a.Profiler.BeginScope("record")
	err = a.Renderer.Frame(encoder, view)
	if err == nil {
		err = a.Stats.Record(encoder, a.Renderer)
	}
	if err == nil {
		err = a.HUD.Record(encoder, view)
	}
	a.Profiler.EndScope("record")
	if err != nil {
		a.Logger.Errorf("record frame: %v", err)
		encoder.Release()
		return
	}

	a.Profiler.BeginScope("submit")
	cmd, err := encoder.Finish(nil)
	if err != nil {
		a.Logger.Errorf("Encoder Finish failed: %v", err)
		return
	}
	a.Queue.Submit(cmd)
	a.Surface.Present()
	a.Profiler.EndScope("submit")

	if stats, ok := a.Stats.Poll(); ok {
		a.LastStats = stats
		a.Profiler.SetCount("visible", int(stats.Visible))
		a.Profiler.SetCount("instances", int(stats.InstanceCount))
	}

	now := glfw.GetTime()
	if a.LastRenderTime > 0 {
		a.FrameCount++
		a.FPSTime += now - a.LastRenderTime
		if a.FPSTime >= 1.0 {
			a.FPS = float64(a.FrameCount) / a.FPSTime
			a.FrameCount = 0
			a.FPSTime = 0
		}
	}
	a.LastRenderTime = now
}

func (a *App) Release() {
	if a.HUD != nil {
		a.HUD.Release()
	}
	if a.Stats != nil {
		a.Stats.Release()
	}
	if a.Renderer != nil {
		a.Renderer.Release()
	}
	if a.CameraBuffer != nil {
		a.CameraBuffer.Release()
	}
	if a.CloudBuffers != nil {
		a.CloudBuffers.Release()
	}
	if a.Device != nil {
		a.Device.Release()
	}
	if a.Surface != nil {
		a.Surface.Release()
	}
	if a.Instance != nil {
		a.Instance.Release()
	}
}

func GetSurfaceDescriptor(w *glfw.Window) *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(w)
}
