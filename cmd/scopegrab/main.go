// scopegrab captures the screen of a Rigol DS1000Z-series oscilloscope over
// LAN, cleans the menus and logos off the bitmap, annotates it, and saves it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/corona10/goimagehash"

	"github.com/scopegrab/scopegrab/internal/capture"
	"github.com/scopegrab/scopegrab/internal/config"
	"github.com/scopegrab/scopegrab/internal/history"
	"github.com/scopegrab/scopegrab/internal/live"
	"github.com/scopegrab/scopegrab/internal/render"
	"github.com/scopegrab/scopegrab/internal/resilience"
	"github.com/scopegrab/scopegrab/internal/scpi"
)

func main() {
	var (
		outType = flag.String("type", "png", "output type: png, bmp or csv")
		note    = flag.String("note", "", "note drawn on the capture, also used for the file name")
		label1  = flag.String("label1", "", "label drawn in the channel 1 color")
		label2  = flag.String("label2", "", "label drawn in the channel 2 color")
		label3  = flag.String("label3", "", "label drawn in the channel 3 color")
		label4  = flag.String("label4", "", "label drawn in the channel 4 color")
		raw     = flag.Bool("raw", false, "save the screen exactly as captured, no cleanup or annotation")
		debug   = flag.Bool("debug", false, "enable debug logging")
		serve   = flag.Bool("serve", false, "run the live view HTTP server instead of a one-shot capture")
		force   = flag.Bool("force", false, "capture even when the instrument is not a DS1000Z-series scope")
		skipDup = flag.Bool("skip-dup", false, "skip saving when the screen matches the last recorded capture")
		thumb   = flag.Bool("thumb", false, "also write a thumbnail next to the capture")
	)
	flag.StringVar(outType, "t", "png", "shorthand for -type")
	flag.StringVar(note, "n", "", "shorthand for -note")
	flag.StringVar(label1, "1", "", "shorthand for -label1")
	flag.StringVar(label2, "2", "", "shorthand for -label2")
	flag.StringVar(label3, "3", "", "shorthand for -label3")
	flag.StringVar(label4, "4", "", "shorthand for -label4")
	flag.BoolVar(raw, "r", false, "shorthand for -raw")
	flag.BoolVar(debug, "d", false, "shorthand for -debug")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: scopegrab [flags] [hostname]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := config.Load()

	host := cfg.Hostname
	if flag.NArg() > 0 {
		host = flag.Arg(0)
	}
	if host == "" {
		fmt.Fprintln(os.Stderr, "no hostname given and SCOPE_HOST not set")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect. A scope coming out of standby can take a few seconds to
	// start answering, so the dial is retried with backoff.
	addr := net.JoinHostPort(host, strconv.Itoa(cfg.Port))
	var client *scpi.Client
	err := resilience.Retry(ctx, resilience.DialRetryConfig(), func() error {
		var dialErr error
		client, dialErr = scpi.Dial(ctx, addr, cfg.ConnectTimeout, cfg.CommandTimeout)
		return dialErr
	})
	if err != nil {
		slog.Error("instrument unreachable", "addr", addr, "error", err)
		os.Exit(1)
	}
	defer func() { _ = client.Close() }()

	id, err := client.Identify(ctx)
	if err != nil {
		slog.Error("identification failed", "addr", addr, "error", err)
		os.Exit(1)
	}
	slog.Info("connected", "vendor", id.Vendor, "model", id.Model, "firmware", id.Firmware)

	if !id.IsDS1000Z() {
		if !*force {
			slog.Error("unsupported instrument, screen layout is calibrated for DS1000Z-series scopes (use -force to capture anyway)",
				"vendor", id.Vendor, "model", id.Model)
			os.Exit(1)
		}
		slog.Warn("capturing from an untested instrument", "model", id.Model)
	}

	fonts, err := render.LoadFonts(cfg.FontPath)
	if err != nil {
		slog.Error("font setup failed", "error", err)
		os.Exit(1)
	}
	proc, err := render.NewProcessor(render.DS1000Z(), fonts)
	if err != nil {
		slog.Error("processor setup failed", "error", err)
		os.Exit(1)
	}
	grab := capture.New(client, proc, cfg.WireFormat)

	var store *history.Store
	if cfg.HistoryPath != "" {
		store, err = history.Open(cfg.HistoryPath)
		if err != nil {
			slog.Error("capture log unavailable", "path", cfg.HistoryPath, "error", err)
			os.Exit(1)
		}
		defer func() { _ = store.Close() }()
	}

	spec := render.Spec{
		Note:   *note,
		Labels: [4]string{*label1, *label2, *label3, *label4},
	}
	opts := render.Options{Raw: *raw}

	if *serve {
		runServer(ctx, cfg, grab, store, spec, opts)
		return
	}

	switch strings.ToLower(*outType) {
	case "csv":
		err = saveCSV(ctx, cfg, grab, store, id.Model, *note)
	case "png", "bmp":
		err = saveScreenshot(ctx, cfg, grab, store, id.Model, strings.ToLower(*outType), spec, opts, *skipDup, *thumb)
	default:
		err = fmt.Errorf("unknown output type %q (want png, bmp or csv)", *outType)
	}
	if err != nil {
		slog.Error("capture failed", "error", err)
		os.Exit(1)
	}
}

func saveScreenshot(ctx context.Context, cfg *config.Config, grab *capture.Grabber, store *history.Store,
	model, format string, spec render.Spec, opts render.Options, skipDup, thumb bool) error {
	res, err := grab.Screenshot(ctx, spec, opts)
	if err != nil {
		return err
	}

	if skipDup && store != nil && res.Hash != nil {
		last, ok, err := store.LastHash(ctx)
		if err != nil {
			return err
		}
		if ok {
			dist, err := goimagehash.NewImageHash(last, goimagehash.PHash).Distance(res.Hash)
			if err == nil && dist <= cfg.DedupDistance {
				slog.Info("screen unchanged since last capture, not saved", "distance", dist)
				return nil
			}
		}
	}

	data, err := capture.Encode(res.Image, format)
	if err != nil {
		return err
	}

	path := capture.BuildFilename(cfg.ResolveSavePath(), model, res.TakenAt, format, spec.Note)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	slog.Info("capture saved", "path", path, "bytes", len(data))

	if thumb {
		thumbData, err := capture.Encode(capture.Thumbnail(res.Image, cfg.ThumbWidth), "png")
		if err != nil {
			return err
		}
		thumbPath := strings.TrimSuffix(path, "."+format) + "_thumb.png"
		if err := os.WriteFile(thumbPath, thumbData, 0o644); err != nil {
			return err
		}
		slog.Info("thumbnail saved", "path", thumbPath)
	}

	if store != nil {
		var phash uint64
		if res.Hash != nil {
			phash = res.Hash.GetHash()
		}
		if _, err := store.Record(ctx, history.Capture{
			TakenAt: res.TakenAt,
			Model:   model,
			Path:    path,
			Format:  format,
			Note:    spec.Note,
			PHash:   phash,
		}); err != nil {
			slog.Warn("capture not recorded in log", "error", err)
		}
	}
	return nil
}

func saveCSV(ctx context.Context, cfg *config.Config, grab *capture.Grabber, store *history.Store, model, note string) error {
	data, err := grab.WaveformCSV(ctx)
	if err != nil {
		return err
	}

	path := capture.BuildFilename(cfg.ResolveSavePath(), model, time.Now(), "csv", note)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	slog.Info("waveform data saved", "path", path, "bytes", len(data))

	if store != nil {
		if _, err := store.Record(ctx, history.Capture{
			TakenAt: time.Now(),
			Model:   model,
			Path:    path,
			Format:  "csv",
			Note:    note,
		}); err != nil {
			slog.Warn("capture not recorded in log", "error", err)
		}
	}
	return nil
}

func runServer(ctx context.Context, cfg *config.Config, grab *capture.Grabber, store *history.Store,
	spec render.Spec, opts render.Options) {
	interval := time.Second
	if cfg.CaptureRate > 0 {
		interval = time.Duration(float64(time.Second) / cfg.CaptureRate)
	}

	srv := live.New(grab, store, live.Options{
		Interval:      interval,
		DedupDistance: cfg.DedupDistance,
		Spec:          spec,
		RenderOpts:    opts,
	})
	go srv.Run(ctx)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("live view server starting", "http", cfg.HTTPAddr, "interval", interval)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	slog.Info("shutdown complete")
}
