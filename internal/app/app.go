// Package app wires the receiver host: logging, audio, the receiver and its
// frame loop, the viewer hub, the HTTP surface and the optional recorder.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/A-ESxARG/receiver/internal/audio"
	otoaudio "github.com/A-ESxARG/receiver/internal/audio/oto"
	"github.com/A-ESxARG/receiver/internal/audio/portaudio"
	"github.com/A-ESxARG/receiver/internal/config"
	"github.com/A-ESxARG/receiver/internal/control"
	"github.com/A-ESxARG/receiver/internal/journal"
	servernet "github.com/A-ESxARG/receiver/internal/net"
	"github.com/A-ESxARG/receiver/internal/net/ws"
	"github.com/A-ESxARG/receiver/internal/observability"
	"github.com/A-ESxARG/receiver/internal/receiver"
	"github.com/A-ESxARG/receiver/internal/recording"
	"github.com/A-ESxARG/receiver/internal/telemetry"
	"github.com/A-ESxARG/receiver/internal/visual"
	"github.com/A-ESxARG/receiver/internal/visual/termsurface"
	"github.com/A-ESxARG/receiver/logging"
	loggingSinks "github.com/A-ESxARG/receiver/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

// Options carries process-level collaborators that are not configuration.
type Options struct {
	Logger telemetry.Logger
	Stdout io.Writer
	// Listener replaces listening on cfg.Addr.
	Listener net.Listener
	// AudioFactory replaces the backend selected by cfg.Audio.
	AudioFactory audio.Factory
}

// Run serves the receiver until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config, opts Options) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	telemetryLogger := opts.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	metrics := &logging.Metrics{}
	wrappedMetrics := telemetry.WrapMetrics(metrics)

	router, err := newRouter(cfg, stdout, metrics, telemetry.StandardLogger(telemetryLogger))
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	var loop *Loop
	hub := ws.NewHub(ws.HubConfig{
		Width:     cfg.ViewerWidth,
		Height:    cfg.ViewerHeight,
		Receiver:  cfg.Name,
		WriteWait: cfg.ViewerTimeout,
		Logger:    telemetryLogger,
		Metrics:   wrappedMetrics,
		Commands:  func(cmd control.Command) bool { return loop.Enqueue(cmd) },
	})
	defer hub.Close()

	audioFactory := opts.AudioFactory
	if audioFactory == nil {
		audioFactory = selectAudio(cfg)
	}

	rcv := receiver.New(receiver.Config{
		Seed:         cfg.Seed,
		Name:         cfg.Name,
		AudioFactory: audioFactory,
		Surface:      selectSurface(cfg, hub),
		VisualizerFactory: func(surface visual.Surface) (receiver.Visualizer, error) {
			v, err := visual.NewWithConfig(surface, visual.Config{FrameRate: cfg.FrameRate, Metrics: wrappedMetrics})
			if err != nil {
				return nil, err
			}
			return v, nil
		},
		Deps: receiver.Deps{
			Publisher: router,
			Metrics:   wrappedMetrics,
			Logger:    telemetryLogger,
		},
	})
	defer rcv.Close()

	if err := rcv.Start(ctx); err != nil {
		telemetryLogger.Printf("audio unavailable, continuing silently: %v", err)
	}

	recorder, closeRecorder, err := openRecorder(ctx, cfg, wrappedMetrics, telemetryLogger)
	if err != nil {
		return err
	}
	defer closeRecorder()

	history := journal.New[Summary](journal.Config{
		Capacity: cfg.HistorySize,
		MaxAge:   cfg.HistoryMaxAge,
		Metrics:  wrappedMetrics,
	})

	recordCtx := context.WithoutCancel(ctx)
	loop = NewLoop(rcv, LoopConfig{
		TickRate:        cfg.TickRate,
		CatchupMaxTicks: cfg.CatchupMaxTicks,
		CommandCapacity: cfg.CommandBuffer,
	}, LoopDeps{
		Logger:  telemetryLogger,
		Metrics: wrappedMetrics,
	}, LoopHooks{
		AfterStep: func(result StepResult) {
			history.Record(result.Summary.Tick, result.Summary)
			if err := hub.PublishTick(result.Summary.ProtoTick()); err != nil {
				telemetryLogger.Printf("publish tick: %v", err)
			}
			if recorder != nil {
				if err := recorder.Record(recordCtx, result.Summary.RecordingTick()); err != nil {
					telemetryLogger.Printf("record tick: %v", err)
				}
			}
		},
	})

	handler := servernet.NewHTTPHandler(servernet.HTTPHandlerConfig{
		Hub:         hub,
		Logger:      telemetryLogger,
		Commands:    loop.Enqueue,
		Diagnostics: func() any { return diagnostics(loop, history) },
		History:     func(n int) any { return history.Last(n) },
		Metrics:     metrics,
		Observability: observability.Config{
			EnablePprofTrace: cfg.EnablePprofTrace,
		},
	})

	listener := opts.Listener
	if listener == nil {
		listener, err = net.Listen("tcp", cfg.Addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
		}
	}
	srv := &http.Server{Handler: handler}
	serveErr := make(chan error, 1)
	go func() {
		telemetryLogger.Printf("receiver %s listening on %s", cfg.Name, listener.Addr())
		serveErr <- srv.Serve(listener)
	}()

	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(loopCtx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	stopLoop()
	<-loopDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetryLogger.Printf("http shutdown: %v", err)
	}
	if err := rcv.Stop(shutdownCtx); err != nil {
		telemetryLogger.Printf("stop receiver: %v", err)
	}
	return runErr
}

func newRouter(cfg config.Config, stdout io.Writer, metrics *logging.Metrics, fallback *log.Logger) (*logging.Router, error) {
	logConfig := logging.DefaultConfig()
	logConfig.EnabledSinks = cfg.LogSinks
	logConfig.MinimumSeverity = logging.ParseSeverity(cfg.LogLevel)
	logConfig.JSON.FilePath = cfg.LogJSONPath
	logConfig.Fields = map[string]any{"receiver": cfg.Name}

	var named []logging.NamedSink
	for _, name := range logConfig.EnabledSinks {
		switch name {
		case logging.SinkConsole:
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewConsoleSink(stdout, logging.ConsoleConfig{
				UseColor: loggingSinks.IsTerminal(stdout),
			})})
		case logging.SinkJSON:
			sink, err := loggingSinks.OpenJSONFile(logConfig.JSON.FilePath, logConfig.JSON.FlushInterval)
			if err != nil {
				return nil, err
			}
			named = append(named, logging.NamedSink{Name: name, Sink: sink})
		case logging.SinkMemory:
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewMemorySink()})
		default:
			return nil, fmt.Errorf("unknown log sink %q", name)
		}
	}
	return logging.NewRouter(logConfig, logging.RouterDeps{Metrics: metrics, Fallback: fallback}, named)
}

func selectAudio(cfg config.Config) audio.Factory {
	switch cfg.Audio {
	case config.AudioNull:
		return audio.NullFactory(cfg.SampleRate)
	case config.AudioPortAudio:
		return portaudio.Factory(portaudio.Config{SampleRate: cfg.SampleRate, FramesPerBuffer: cfg.FramesPerBuffer})
	case config.AudioOto:
		return otoaudio.Factory(cfg.SampleRate)
	default:
		return nil
	}
}

func selectSurface(cfg config.Config, hub *ws.Hub) visual.Surface {
	switch cfg.Surface {
	case config.SurfaceWS:
		return hub
	case config.SurfaceTerm:
		return termsurface.Stdout(cfg.TerminalRows)
	default:
		return nil
	}
}

func openRecorder(ctx context.Context, cfg config.Config, metrics telemetry.Metrics, logger telemetry.Logger) (*recording.Recorder, func(), error) {
	if cfg.RecordPath == "" {
		return nil, func() {}, nil
	}
	store, err := recording.Open(ctx, cfg.RecordPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open recording: %w", err)
	}
	session, err := store.StartSession(ctx, cfg.Name, cfg.Seed, time.Now())
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("start recording session: %w", err)
	}
	recorder := recording.NewRecorder(store, session, recording.RecorderConfig{Metrics: metrics})
	return recorder, func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := recorder.Close(flushCtx); err != nil {
			logger.Printf("flush recording: %v", err)
		}
		store.Close()
	}, nil
}

func diagnostics(loop *Loop, history *journal.Journal[Summary]) any {
	size, oldest, newest := history.Window()
	latest, ok := loop.Latest()
	payload := struct {
		Pending int      `json:"pending"`
		Latest  *Summary `json:"latest,omitempty"`
		History struct {
			Size   int    `json:"size"`
			Oldest uint64 `json:"oldest"`
			Newest uint64 `json:"newest"`
		} `json:"history"`
	}{Pending: loop.Pending()}
	if ok {
		payload.Latest = &latest
	}
	payload.History.Size, payload.History.Oldest, payload.History.Newest = size, oldest, newest
	return payload
}
