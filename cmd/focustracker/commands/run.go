package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanchriswhite/FocusTracker/internal/actuate"
	"github.com/bryanchriswhite/FocusTracker/internal/aim"
	"github.com/bryanchriswhite/FocusTracker/internal/api"
	"github.com/bryanchriswhite/FocusTracker/internal/capture"
	"github.com/bryanchriswhite/FocusTracker/internal/config"
	"github.com/bryanchriswhite/FocusTracker/internal/detect"
	"github.com/bryanchriswhite/FocusTracker/internal/display"
	"github.com/bryanchriswhite/FocusTracker/internal/input"
	"github.com/bryanchriswhite/FocusTracker/internal/logger"
	"github.com/bryanchriswhite/FocusTracker/internal/output"
	"github.com/bryanchriswhite/FocusTracker/internal/overlay"
	"github.com/bryanchriswhite/FocusTracker/internal/tracker"
	"github.com/bryanchriswhite/FocusTracker/internal/window"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Select a window and start tracking",
	Long: `Select a window, centre the capture region on it, pick a capture backend
and run the tracking loop until the quit key is pressed or the process is
interrupted.`,
	Example: `  # Pick the window interactively
  focustracker run

  # Use window 3 from 'focustracker windows' and serve the preview
  focustracker run --window-index 3 --serve --port 8090

  # Gate on a held shift key with a stronger correction
  focustracker run --modifier shift --modifier-mode held --sensitivity 0.6`,
	RunE: runRun,
}

var (
	windowIndex int
	noActivate  bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.IntVar(&windowIndex, "window-index", -1, "window index to track, skipping the prompt")
	f.BoolVar(&noActivate, "no-activate", false, "do not bring the window to the foreground")
	f.Int("width", 0, "capture region width")
	f.Int("height", 0, "capture region height")
	f.Float64("sensitivity", 0, "motion vector scale")
	f.Bool("headshot", false, "aim at the head instead of the body")
	f.Bool("prefer-center", false, "prefer the detection nearest the centre")
	f.String("model", "", "path to the YOLOv5 ONNX model")
	f.Float64("confidence", 0, "detector confidence threshold")
	f.String("quit", "", "quit key")
	f.String("modifier", "", "gating modifier key")
	f.String("modifier-mode", "", "gating mode (toggled, held, always)")
	f.Bool("cps", false, "log frames processed per second")
	f.Bool("serve", false, "serve the preview and telemetry API")
	f.Int("port", 0, "API server port")

	viper.BindPFlag("capture.width", f.Lookup("width"))
	viper.BindPFlag("capture.height", f.Lookup("height"))
	viper.BindPFlag("aim.sensitivity", f.Lookup("sensitivity"))
	viper.BindPFlag("aim.headshot", f.Lookup("headshot"))
	viper.BindPFlag("aim.prefer_center", f.Lookup("prefer-center"))
	viper.BindPFlag("detector.model_path", f.Lookup("model"))
	viper.BindPFlag("detector.confidence", f.Lookup("confidence"))
	viper.BindPFlag("keys.quit", f.Lookup("quit"))
	viper.BindPFlag("keys.modifier", f.Lookup("modifier"))
	viper.BindPFlag("keys.modifier_mode", f.Lookup("modifier-mode"))
	viper.BindPFlag("cps_display", f.Lookup("cps"))
	viper.BindPFlag("server.enabled", f.Lookup("serve"))
	viper.BindPFlag("server.port", f.Lookup("port"))
}

func runRun(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg, err := configMgr.Get()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Init(cfg.LogLevel, cfg.PrettyLogs)
	log := logger.WithComponent("run")
	log.Info().Str("path", configMgr.GetConfigPath()).Msg("Configuration loaded")

	quit, err := input.ParseKey(cfg.Keys.Quit)
	if err != nil {
		return fmt.Errorf("keys.quit: %w", err)
	}
	modifier, err := input.ParseKey(cfg.Keys.Modifier)
	if err != nil {
		return fmt.Errorf("keys.modifier: %w", err)
	}
	if err := checkGating(cfg.Keys.ModifierMode, modifier); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	win, err := chooseWindow(ctx, cfg)
	if err != nil {
		return err
	}

	bounds, err := display.QueryBounds()
	if err != nil {
		return fmt.Errorf("failed to query screen bounds: %w", err)
	}
	region, err := display.PlanRegion(win.Box, cfg.Capture.Width, cfg.Capture.Height, bounds)
	if err != nil {
		return err
	}
	log.Info().Stringer("bounds", bounds).Stringer("region", region).Msg("Capture region planned")

	factory := capture.NewFactory(capture.DefaultCandidates(capture.Options{
		RingSize:  cfg.Capture.RingSize,
		TargetFPS: cfg.Capture.TargetFPS,
	})...)
	var order []string
	for _, c := range factory.Candidates() {
		order = append(order, c.Kind.String())
	}
	log.Debug().Strs("order", order).Msg("Capture candidates")

	backend, err := factory.Create(region)
	if err != nil {
		diagnoseCapture(err)
		return err
	}

	det, err := detect.NewYOLO(detect.Config{
		ModelPath:     cfg.Detector.ModelPath,
		Confidence:    cfg.Detector.Confidence,
		IoU:           cfg.Detector.IoU,
		MaxDetections: cfg.Detector.MaxDetections,
		Classes:       cfg.Detector.Classes,
		UseCUDA:       cfg.Detector.CUDA,
	})
	if err != nil {
		backend.Stop()
		return fmt.Errorf("failed to load detector: %w", err)
	}
	defer det.Close()

	keys, err := input.NewKeyState()
	if err != nil {
		log.Warn().Err(err).Msg("Keyboard polling unavailable, quit key and gating disabled")
		keys = nil
	} else {
		defer keys.Close()
	}

	tr := tracker.New(tracker.Options{
		FrameWidth:    region.Width(),
		FrameHeight:   region.Height(),
		Sensitivity:   cfg.Aim.Sensitivity,
		HeadshotBias:  cfg.Aim.Headshot,
		PreferCenter:  cfg.Aim.PreferCenter,
		MinConfidence: cfg.Aim.MinConfidence,
	})

	hub := api.NewHub()
	sink := actuate.NewFanout(actuate.NewLogSink(), hub)

	loop := aim.New(backend, det, tr, keys, sink, aim.Options{
		Quit:         quit,
		Modifier:     modifier,
		ModifierMode: cfg.Keys.ModifierMode,
		InputSize:    cfg.Detector.InputSize,
		Mask: detect.Mask{
			Enabled: cfg.Mask.Enabled,
			Width:   cfg.Mask.Width,
			Height:  cfg.Mask.Height,
		},
		CPSDisplay: cfg.CPSDisplay,
	})
	loop.AddObserver(hub)

	if cfg.Server.Enabled {
		server := startServer(ctx, cfg, loop, hub, configMgr, api.Session{
			Backend: backend.Name(),
			Kind:    backend.Kind().String(),
			Window:  win.Title,
			Region:  region,
			Started: time.Now(),
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("API server shutdown failed")
			}
		}()
	}

	fmt.Printf("Tracking %q with %s (%s). Quit: %s, modifier: %s (%s)\n",
		win.Title, backend.Name(), backend.Kind(), quit, modifier, cfg.Keys.ModifierMode)

	if err := loop.Run(ctx); err != nil {
		return err
	}

	s := loop.Stats()
	log.Info().
		Uint64("frames", s.Frames).
		Uint64("missing", s.MissingFrames).
		Uint64("moves", s.Moves).
		Msg("Tracking stopped")
	return nil
}

// chooseWindow resolves the target window, prompting unless an index was
// given, and brings it to the foreground.
func chooseWindow(ctx context.Context, cfg *config.Config) (window.Info, error) {
	src, err := window.NewSource()
	if err != nil {
		return window.Info{}, fmt.Errorf("failed to open window source: %w", err)
	}
	defer src.Close()

	var win window.Info
	if windowIndex >= 0 {
		windows, err := src.ListWindows()
		if err != nil {
			return window.Info{}, fmt.Errorf("failed to list windows: %w", err)
		}
		if windowIndex >= len(windows) {
			return window.Info{}, fmt.Errorf("%w: index %d out of %d windows", window.ErrInvalidSelection, windowIndex, len(windows))
		}
		win = windows[windowIndex]
	} else {
		win, err = window.Select(src, os.Stdin, os.Stdout)
		if err != nil {
			return window.Info{}, err
		}
	}

	if !noActivate {
		if err := window.ActivateWithRetry(ctx, src, win, cfg.Activation.Retries, cfg.Activation.Backoff); err != nil {
			return window.Info{}, err
		}
	}

	// Activation may restore or move the window.
	if refreshed, err := src.Refresh(win); err == nil {
		win = refreshed
	} else {
		logger.WithComponent("run").Debug().Err(err).Msg("Window refresh failed, using listed geometry")
	}
	return win, nil
}

func startServer(ctx context.Context, cfg *config.Config, loop *aim.Loop, hub *api.Hub, configMgr *config.Manager, session api.Session) *api.Server {
	log := logger.WithComponent("run")

	mjpeg := output.NewMJPEGOutput(output.Config{
		Width:   session.Region.Width(),
		Height:  session.Region.Height(),
		FPS:     cfg.Server.PreviewFPS,
		Quality: 80,
	})
	if err := mjpeg.Start(); err != nil {
		log.Warn().Err(err).Msg("Preview output failed to start, serving API only")
		mjpeg = nil
	} else {
		preview := output.NewPreview(mjpeg, overlay.NewDefaultManager(), cfg.Server.PreviewFPS, func() float64 {
			return loop.Stats().CPS
		})
		loop.AddObserver(preview)
		go func() {
			preview.Run(ctx)
			mjpeg.Stop()
		}()
	}

	server := api.NewServer(session, hub, loop, mjpeg, configMgr)
	go func() {
		if err := server.Start(cfg.Server.Port); err != nil {
			log.Error().Err(err).Msg("API server failed")
		}
	}()
	return server
}

// checkGating rejects a toggled gate on a key whose toggle state this
// platform cannot read, since such a gate would never open.
func checkGating(mode string, modifier input.Key) error {
	if mode == config.ModifierToggled && !input.CanToggle(modifier) {
		return fmt.Errorf("%w: keys.modifier %q cannot be read as toggled on this platform; use modifier_mode %q or a lock key such as capslock",
			config.ErrInvalidConfig, modifier, config.ModifierHeld)
	}
	return nil
}

// diagnoseCapture explains a total capture failure per backend.
func diagnoseCapture(err error) {
	fmt.Fprintln(os.Stderr, "No screen capture backend could be initialised:")
	for _, initErr := range backendFailures(err) {
		fmt.Fprintf(os.Stderr, "  - %s failed at %s: %v\n", initErr.Kind, initErr.Stage, initErr.Err)
	}
	fmt.Fprintln(os.Stderr, "Check that a display session is available and the region is on screen.")
}

// backendFailures collects every BackendInitError in err's tree.
func backendFailures(err error) []*capture.BackendInitError {
	switch e := err.(type) {
	case *capture.BackendInitError:
		return []*capture.BackendInitError{e}
	case interface{ Unwrap() []error }:
		var out []*capture.BackendInitError
		for _, inner := range e.Unwrap() {
			out = append(out, backendFailures(inner)...)
		}
		return out
	case interface{ Unwrap() error }:
		return backendFailures(e.Unwrap())
	}
	return nil
}
