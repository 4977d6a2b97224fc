// overlaysim drives the overlay engine against the software swapchain
// backend at a fixed frame rate, standing in for a real headset runtime.
// Useful for exercising the capture and compositing path on a desktop and
// for eyeballing the keyed output, which it periodically dumps as PNG.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vr-window-overlay/config"
	"vr-window-overlay/graphics"
	"vr-window-overlay/input"
	"vr-window-overlay/integrator"
	"vr-window-overlay/logutil"
	"vr-window-overlay/xrmath"
)

const session integrator.SessionHandle = 1

func main() {
	fps := flag.Int("fps", 90, "simulated display refresh rate")
	frames := flag.Int("frames", 0, "stop after this many frames (0 runs until interrupted)")
	dumpEvery := flag.Int("dump-every", 300, "write the committed overlay image every N frames (0 disables)")
	dumpPath := flag.String("dump", "overlay_frame.png", "path for the dumped overlay image")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logutil.Setup(cfg.EnableFileLogging)

	factory := graphics.NewSoftwareFactory()

	var src input.Source
	if cfg.Interactive {
		// Simulated controller: fixed aim from the origin straight at the
		// overlay quad.
		st := input.NewStatic()
		st.Tracked = true
		st.Pose = xrmath.PoseIdentity()
		src = st
	}

	eng, err := integrator.NewEngine(integrator.Options{
		Config:  cfg,
		Factory: factory,
		Input:   src,
		Log:     log,
	})
	if err != nil {
		log.Error().Err(err).Msg("engine construction failed")
		os.Exit(1)
	}
	defer eng.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / time.Duration(*fps))
	defer ticker.Stop()

	log.Info().Int("fps", *fps).Msg("simulation loop started")

	views := []xrmath.View{
		{Pose: xrmath.PoseTranslation(xrmath.Vector3{X: -0.032})},
		{Pose: xrmath.PoseTranslation(xrmath.Vector3{X: 0.032})},
	}

	n := 0
	for {
		select {
		case <-stop:
			log.Info().Int("frames", n).Msg("interrupted, shutting down")
			return
		case <-ticker.C:
		}

		patched := eng.LocateViews(session, views)
		info := graphics.EndFrameInfo{
			Type:            graphics.StructureTypeEndFrameInfo,
			DisplayTime:     time.Now().UnixNano(),
			ProjectionViews: patched,
		}
		out, err := eng.EndFrame(session, info)
		if err != nil {
			log.Error().Err(err).Msg("frame submission failed")
			return
		}

		n++
		if *dumpEvery > 0 && n%*dumpEvery == 0 && len(out.Layers) > 0 {
			if err := dumpOverlay(factory, *dumpPath); err != nil {
				log.Warn().Err(err).Msg("overlay dump failed")
			} else {
				log.Info().Str("path", *dumpPath).Int("frame", n).Msg("overlay dumped")
			}
		}
		if *frames > 0 && n >= *frames {
			log.Info().Int("frames", n).Msg("frame budget reached")
			return
		}
	}
}

// dumpOverlay writes the most recently committed overlay image as PNG.
func dumpOverlay(factory *graphics.SoftwareFactory, path string) error {
	var img *graphics.Image
	for _, sc := range factory.Created() {
		if sc.Destroyed() {
			continue
		}
		if c := sc.Committed(); c != nil {
			img = c
			break
		}
	}
	if img == nil {
		return fmt.Errorf("no committed overlay image yet")
	}

	tex := img.Texture
	out := &image.NRGBA{
		Pix:    tex.Pix,
		Stride: tex.Width * tex.Format.BytesPerPixel(),
		Rect:   image.Rect(0, 0, tex.Width, tex.Height),
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, out)
}
