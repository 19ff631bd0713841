// Package options holds the command-line options of the viewer.
package options

import (
	"errors"
	"flag"
	"log/slog"

	"github.com/richinsley/goshadergraph/config"
)

type Options struct {
	Project         *string
	Libs            *string
	Width           *int
	Height          *int
	ScreenshotStage *string
	ScreenshotDir   *string
	Translate       *bool
	Verbose         *bool
	Frames          *int    // render this many frames headless and exit
	GPU             *bool   // headless frames use an EGL context instead of memory
	FFMPEGPath      *string // ffmpeg binary used by file audio inputs
	Help            *bool
}

// Register defines the options on fs.
func Register(fs *flag.FlagSet) *Options {
	return &Options{
		Project:         fs.String("project", "", "Path to the project YAML file"),
		Libs:            fs.String("libs", "", "Shader library root for '#' fragment paths"),
		Width:           fs.Int("width", 0, "Override the project view width"),
		Height:          fs.Int("height", 0, "Override the project view height"),
		ScreenshotStage: fs.String("screenshot-stage", "", "Stage captured by F12 (default: the final stage)"),
		ScreenshotDir:   fs.String("screenshot-dir", ".", "Directory F12 screenshots are written to"),
		Translate:       fs.Bool("translate", false, "Translate GLSL ES 3.00 fragments to GLSL 4.10 before compiling"),
		Verbose:         fs.Bool("verbose", false, "Log debug output"),
		Frames:          fs.Int("frames", 0, "Render N frames without a window, then exit"),
		GPU:             fs.Bool("gpu", false, "With -frames, render on the GPU through an EGL context"),
		FFMPEGPath:      fs.String("ffmpeg", "", "Path to ffmpeg executable"),
		Help:            fs.Bool("help", false, "Show help message"),
	}
}

// Validate checks the option values.
func (o *Options) Validate() error {
	var errs []error
	if *o.Project == "" {
		errs = append(errs, errors.New("-project is required"))
	}
	if *o.Width < 0 || *o.Height < 0 {
		errs = append(errs, errors.New("-width and -height must not be negative"))
	}
	if *o.Frames < 0 {
		errs = append(errs, errors.New("-frames must not be negative"))
	}
	if *o.GPU && *o.Frames == 0 {
		errs = append(errs, errors.New("-gpu needs -frames"))
	}
	return errors.Join(errs...)
}

// Apply overrides project settings given on the command line.
func (o *Options) Apply(p *config.Project) {
	if *o.Width > 0 {
		p.View.Width = *o.Width
	}
	if *o.Height > 0 {
		p.View.Height = *o.Height
	}
}

// LogLevel is the slog level selected by -verbose.
func (o *Options) LogLevel() slog.Level {
	if *o.Verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Screenshot returns the stage F12 captures.
func (o *Options) Screenshot(p *config.Project) string {
	if *o.ScreenshotStage != "" {
		return *o.ScreenshotStage
	}
	return p.FinalStage.Name
}
