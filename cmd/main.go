package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	glfw "github.com/go-gl/glfw/v3.3/glfw"

	"github.com/richinsley/goshadergraph/audio"
	"github.com/richinsley/goshadergraph/config"
	"github.com/richinsley/goshadergraph/glbackend"
	"github.com/richinsley/goshadergraph/glfwcontext"
	"github.com/richinsley/goshadergraph/graphics"
	"github.com/richinsley/goshadergraph/graphics/memgpu"
	"github.com/richinsley/goshadergraph/headless"
	"github.com/richinsley/goshadergraph/inputs"
	"github.com/richinsley/goshadergraph/logger"
	"github.com/richinsley/goshadergraph/options"
	"github.com/richinsley/goshadergraph/renderer"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	opts := options.Register(flag.CommandLine)
	flag.Parse()

	if *opts.Help {
		fmt.Println("Shader stage graph viewer")
		flag.PrintDefaults()
		return
	}
	logger.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: opts.LogLevel()})))
	if err := opts.Validate(); err != nil {
		log.Fatalf("Invalid options: %v", err)
	}

	project, err := config.Load(*opts.Project)
	if err != nil {
		log.Fatalf("Failed to load project: %v", err)
	}
	opts.Apply(project)
	if err := project.Validate(); err != nil {
		log.Fatalf("Invalid project: %v", err)
	}

	if err := run(opts, project); err != nil {
		log.Fatalf("%v", err)
	}
}

// run opens the project's inputs and renders until done. The inputs are
// closed before it returns, whatever the outcome.
func run(opts *options.Options, project *config.Project) error {
	if *opts.FFMPEGPath != "" {
		open := inputs.DeviceOpener
		inputs.DeviceOpener = func(cfg config.Input, dir string) (audio.Device, error) {
			dev, err := open(cfg, dir)
			if fd, ok := dev.(*audio.FileDevice); ok {
				fd.SetFFmpegPath(*opts.FFMPEGPath)
			}
			return dev, err
		}
		defer func() { inputs.DeviceOpener = open }()
	}
	providers, err := inputs.FromProject(project)
	if err != nil {
		return fmt.Errorf("failed to create inputs: %w", err)
	}
	defer func() {
		if cerr := inputs.CloseAll(providers); cerr != nil {
			logger.Logger().Warn("failed to close inputs", "error", cerr)
		}
	}()

	if *opts.Frames > 0 {
		return runHeadless(opts, project, providers)
	}
	return runWindow(opts, project, providers)
}

// runHeadless renders a fixed number of frames without a window, either
// into the in-memory backend or through an EGL context.
func runHeadless(opts *options.Options, project *config.Project, providers map[string]inputs.Provider) error {
	var backend graphics.Backend
	var mem *memgpu.Backend
	if *opts.GPU {
		ctx, err := headless.New(project.View.Width, project.View.Height)
		if err != nil {
			return err
		}
		defer ctx.Shutdown()
		gb, err := glbackend.New(glbackend.Options{
			Translate:   *opts.Translate,
			Present:     ctx.SwapBuffers,
			DisplaySize: ctx.Size,
		})
		if err != nil {
			return err
		}
		defer gb.Close()
		backend = gb
	} else {
		mem = memgpu.New(project.View.Width, project.View.Height)
		backend = mem
	}

	graph, err := renderer.FromProject(backend, project, *opts.Libs)
	if err != nil {
		return fmt.Errorf("failed to build render graph: %w", err)
	}
	defer graph.Close()

	for range *opts.Frames {
		if err := graph.Update(providers); err != nil {
			logger.Logger().Warn("update", "frame", graph.FrameCount(), "err", err)
		}
		if err := graph.Render(); err != nil {
			return fmt.Errorf("frame %d: %w", graph.FrameCount(), err)
		}
	}
	if mem != nil {
		logger.Logger().Info("headless run finished",
			"frames", graph.FrameCount(),
			"draws", len(mem.Draws),
			"programs", len(mem.Programs),
			"live_textures", len(mem.Live()))
	} else {
		logger.Logger().Info("headless run finished", "frames", graph.FrameCount())
	}
	if *opts.ScreenshotStage != "" {
		return saveScreenshot(graph, opts.Screenshot(project), *opts.ScreenshotDir)
	}
	return nil
}

func runWindow(opts *options.Options, project *config.Project, providers map[string]inputs.Provider) error {
	if err := glfwcontext.InitGraphics(); err != nil {
		return fmt.Errorf("failed to initialize glfw: %w", err)
	}
	defer glfwcontext.TerminateGraphics()

	ctx, err := glfwcontext.New(glfwcontext.Config{
		Width:      project.View.Width,
		Height:     project.View.Height,
		Title:      filepath.Base(*opts.Project),
		Resizable:  project.View.Dynamic,
		Fullscreen: project.View.Fullscreen,
		VSync:      project.View.VSync,
		Visible:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}
	defer ctx.Shutdown()

	backend, err := glbackend.New(glbackend.Options{
		Translate:   *opts.Translate,
		Present:     ctx.SwapBuffers,
		DisplaySize: ctx.GetFramebufferSize,
	})
	if err != nil {
		return err
	}
	defer backend.Close()

	graph, err := renderer.FromProject(backend, project, *opts.Libs)
	if err != nil {
		return fmt.Errorf("failed to build render graph: %w", err)
	}
	defer graph.Close()

	shot := opts.Screenshot(project)
	ctx.RegisterKeyCallback(glfw.KeyF12, func() {
		if err := saveScreenshot(graph, shot, *opts.ScreenshotDir); err != nil {
			logger.Logger().Warn("screenshot failed", "stage", shot, "err", err)
		}
	})

	var frameTime time.Duration
	if !project.View.VSync && project.View.TargetFPS > 0 {
		frameTime = time.Second / time.Duration(project.View.TargetFPS)
	}
	for !ctx.ShouldClose() {
		start := time.Now()
		ctx.PollEvents()

		if w, h := ctx.GetFramebufferSize(); w > 0 && h > 0 {
			if err := graph.SetResolution(image.Pt(w, h)); err != nil {
				logger.Logger().Warn("resize failed", "width", w, "height", h, "err", err)
			}
		}
		graph.SetMouseState(ctx.GetMouseInput())
		if err := graph.Update(providers); err != nil {
			logger.Logger().Warn("update", "frame", graph.FrameCount(), "err", err)
		}
		if err := graph.Render(); err != nil {
			return fmt.Errorf("frame %d: %w", graph.FrameCount(), err)
		}
		if rest := frameTime - time.Since(start); rest > 0 {
			time.Sleep(rest)
		}
	}
	return nil
}

func saveScreenshot(graph *renderer.Graph, stage, dir string) error {
	img, err := graph.Screenshot(stage)
	if err != nil {
		return err
	}
	if img == nil {
		return fmt.Errorf("no stage named %q", stage)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%05d.png", stage, graph.FrameCount()))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Logger().Info("screenshot written", "path", path)
	return nil
}
