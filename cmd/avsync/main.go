package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	_ "github.com/xaionaro-go/avsync/pkg/audio/backends/oto"
	_ "github.com/xaionaro-go/avsync/pkg/audio/backends/pulseaudio"
	"github.com/xaionaro-go/avsync/pkg/engine"
	"github.com/xaionaro-go/avsync/pkg/playback"
	"github.com/xaionaro-go/avsync/pkg/suggest"
)

const progressResolution = 1000

func main() {
	loggerLevel := logger.LevelWarning
	if err := loggerLevel.Set(envStr("AVSYNC_LOG_LEVEL", loggerLevel.String())); err != nil {
		panic(err)
	}
	mode := playback.ModeBoth
	if err := mode.Set(envStr("AVSYNC_MODE", mode.String())); err != nil {
		panic(err)
	}
	pflag.Var(&loggerLevel, "log-level", "Log level")
	pflag.Var(&mode, "mode", "Preview mode: both, primary-only (video) or secondary-only (audio)")
	offset := pflag.Float64("offset", 0, "Use this offset (in seconds, positive if the audio starts later) instead of the suggested one")
	preview := pflag.Bool("preview", envBool("AVSYNC_PREVIEW", false), "Play the tracks with the accepted offset")
	cacheDir := pflag.String("cache-dir", envStr("AVSYNC_CACHE_DIR", ""), "Directory of the persistent feature cache (disabled if empty)")
	sampleRate := pflag.Int("sample-rate", envInt("AVSYNC_SAMPLE_RATE", 44100), "Analysis sample rate")
	enableGCCPHAT := pflag.Bool("gcc-phat", envBool("AVSYNC_GCC_PHAT", true), "Also estimate the offset with the phase-based cross-correlation")
	selectFirst := pflag.Bool("select-first", envBool("AVSYNC_SELECT_FIRST", false), "Select the first suggestion (the zero offset) instead of the best scored one")
	dump := pflag.Bool("dump", false, "Dump the whole analysis")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <video> <audio>\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() != 2 {
		pflag.Usage()
		os.Exit(2)
	}
	primaryLocator, secondaryLocator := pflag.Arg(0), pflag.Arg(1)

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	ctx, cancelFn := signal.NotifyContext(ctx, os.Interrupt)
	defer cancelFn()

	cfg := engine.DefaultConfig()
	cfg.Decoder.SampleRate = *sampleRate
	cfg.CacheDir = *cacheDir
	cfg.EnableGCCPHAT = *enableGCCPHAT
	if *selectFirst {
		cfg.Suggest.SelectionPolicy = suggest.SelectFirst
	}

	e, err := engine.New(cfg)
	assertNoError(err)
	defer func() {
		if err := e.Close(ctx); err != nil {
			logger.Errorf(ctx, "unable to close the engine: %v", err)
		}
	}()

	analysis, err := e.Analyze(ctx, primaryLocator, secondaryLocator)
	assertNoError(err)
	for _, w := range analysis.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %v\n", w)
	}
	if *dump {
		spew.Fdump(os.Stderr, analysis)
	}

	fmt.Printf("video: %s (%v)\n", primaryLocator, analysis.Primary.PlaybackDuration())
	fmt.Printf("audio: %s (%v)\n", secondaryLocator, analysis.Secondary.PlaybackDuration())
	for _, c := range analysis.Candidates {
		fmt.Printf("  %-18s %+7.3fs  confidence %.3f\n", c.Method, c.Shift, c.Confidence)
	}
	var offsets []string
	for idx, v := range analysis.Suggestions.Offsets {
		s := fmt.Sprintf("%+.1f", v)
		if idx == analysis.Suggestions.Selected {
			s = "[" + s + "]"
		}
		offsets = append(offsets, s)
	}
	fmt.Printf("suggestions: %s\n", strings.Join(offsets, " "))

	accepted := analysis.AcceptedOffset
	if pflag.CommandLine.Changed("offset") {
		accepted = e.SetOffset(ctx, *offset)
	}
	fmt.Printf("offset: %+.1fs\n", accepted)

	if !*preview {
		return
	}
	assertNoError(runPreview(ctx, e, mode))
}

func runPreview(
	ctx context.Context,
	e *engine.Engine,
	mode playback.Mode,
) error {
	p := mpb.NewWithContext(ctx, mpb.WithWidth(64))
	bar := p.AddBar(progressResolution,
		mpb.PrependDecorators(
			decor.Name(fmt.Sprintf("%s %+.1fs: ", mode, e.AcceptedOffset())),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
		),
	)

	finished := make(chan struct{})
	var (
		locker     sync.Mutex
		wasPlaying bool
	)
	e.Subscribe(func(s playback.State) {
		locker.Lock()
		defer locker.Unlock()
		switch {
		case s.IsPlaying:
			wasPlaying = true
			bar.SetCurrent(int64(s.Progress * progressResolution))
		case wasPlaying:
			wasPlaying = false
			bar.SetTotal(-1, true)
			close(finished)
		}
	})

	if err := e.Play(ctx, mode); err != nil {
		bar.Abort(true)
		p.Wait()
		return fmt.Errorf("unable to start the playback: %w", err)
	}

	select {
	case <-ctx.Done():
		e.Stop(context.WithoutCancel(ctx))
	case <-finished:
	}
	p.Wait()
	return nil
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
