package net

import (
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/pprof"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/A-ESxARG/receiver/internal/control"
	"github.com/A-ESxARG/receiver/internal/net/proto"
	"github.com/A-ESxARG/receiver/internal/net/ws"
	"github.com/A-ESxARG/receiver/internal/observability"
	"github.com/A-ESxARG/receiver/internal/telemetry"
	"github.com/A-ESxARG/receiver/internal/wave"
	"github.com/A-ESxARG/receiver/logging"
)

const (
	// maxBodyBytes bounds operator request bodies.
	maxBodyBytes        = 1 << 16
	defaultHistoryLimit = 60
)

// HTTPHandlerConfig wires the operator surface to the running receiver.
type HTTPHandlerConfig struct {
	Hub    *ws.Hub
	Logger telemetry.Logger
	Clock  logging.Clock

	// Commands queues a command for the frame goroutine and reports whether
	// it was accepted.
	Commands func(control.Command) bool
	// Diagnostics returns a JSON-encodable view of the receiver.
	Diagnostics func() any
	// History returns up to n recent step summaries.
	History func(n int) any
	Metrics *logging.Metrics

	Observability observability.Config
}

type diagnosticsPayload struct {
	Status     string            `json:"status"`
	ServerTime int64             `json:"serverTime"`
	Receiver   any               `json:"receiver,omitempty"`
	Viewers    []string          `json:"viewers"`
	Telemetry  map[string]uint64 `json:"telemetry,omitempty"`
}

type acceptedResponse struct {
	Status string `json:"status"`
	Kind   string `json:"kind"`
}

// NewHTTPHandler builds the mux serving health, diagnostics, operator
// commands and the viewer websocket.
func NewHTTPHandler(cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Discard()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := diagnosticsPayload{
			Status:     "ok",
			ServerTime: clock.Now().UnixMilli(),
			Viewers:    []string{},
		}
		if cfg.Diagnostics != nil {
			payload.Receiver = cfg.Diagnostics()
		}
		if cfg.Hub != nil {
			payload.Viewers = cfg.Hub.Snapshot()
		}
		if cfg.Metrics != nil {
			payload.Telemetry = cfg.Metrics.Snapshot()
		}
		writeJSON(w, nethttp.StatusOK, payload)
	})

	mux.HandleFunc("/history", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if cfg.History == nil {
			httpError(w, "history disabled", nethttp.StatusNotFound)
			return
		}
		n := defaultHistoryLimit
		if raw := r.URL.Query().Get("n"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				httpError(w, "invalid n", nethttp.StatusBadRequest)
				return
			}
			n = parsed
		}
		writeJSON(w, nethttp.StatusOK, cfg.History(n))
	})

	mux.HandleFunc("/signal", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		var req proto.SignalRequest
		if err := decodeBody(r, &req); err != nil {
			httpError(w, "invalid payload", nethttp.StatusBadRequest)
			return
		}
		cmd := proto.SignalCommand(req)
		cmd.Origin = "http:" + r.RemoteAddr
		enqueue(w, cfg.Commands, cmd, logger)
	})

	mux.HandleFunc("/preset", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		var preset wave.Preset
		if err := decodeBody(r, &preset); err != nil {
			httpError(w, "invalid payload", nethttp.StatusBadRequest)
			return
		}
		if preset.Empty() {
			httpError(w, "preset has no numeric fields", nethttp.StatusUnprocessableEntity)
			return
		}
		enqueue(w, cfg.Commands, control.Command{
			Kind:   control.KindPreset,
			Origin: "http:" + r.RemoteAddr,
			Preset: &preset,
		}, logger)
	})

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	mux.HandleFunc("/ws", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if cfg.Hub == nil {
			httpError(w, "viewer stream disabled", nethttp.StatusNotFound)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
			return
		}
		cfg.Hub.Serve(conn)
	})

	if cfg.Observability.EnablePprofTrace {
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return mux
}

func enqueue(w nethttp.ResponseWriter, commands func(control.Command) bool, cmd control.Command, logger telemetry.Logger) {
	if commands == nil || !commands(cmd) {
		logger.Printf("[http] rejected %s command from %s: queue full", cmd.Kind, cmd.Origin)
		httpError(w, "command queue full", nethttp.StatusServiceUnavailable)
		return
	}
	writeJSON(w, nethttp.StatusAccepted, acceptedResponse{Status: "queued", Kind: string(cmd.Kind)})
}

func decodeBody(r *nethttp.Request, target any) error {
	if r.Body == nil {
		return io.EOF
	}
	defer r.Body.Close()
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(target)
}

func writeJSON(w nethttp.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
