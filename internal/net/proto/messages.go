package proto

import (
	"encoding/json"
	"fmt"

	"github.com/A-ESxARG/receiver/internal/control"
	"github.com/A-ESxARG/receiver/internal/field"
	"github.com/A-ESxARG/receiver/internal/visual"
	"github.com/A-ESxARG/receiver/internal/wave"
)

const (
	// Version tracks the wire-protocol revision expected by viewers.
	Version = 1

	typeHello = "hello"
	typeFrame = "frame"
	typeTick  = "tick"
	typeAck   = "ack"
)

// Viewer message type identifiers.
const (
	TypeSignal = "signal"
	TypePreset = "preset"
)

// Exported aliases for outbound message type identifiers.
const (
	TypeHello = typeHello
	TypeFrame = typeFrame
	TypeTick  = typeTick
	TypeAck   = typeAck
)

// SignalRequest is the body of POST /signal and of viewer signal messages.
type SignalRequest struct {
	Type      string  `json:"type" jsonschema:"enum=noop,enum=burst,enum=silence,enum=nudge,enum=settle"`
	Intensity float64 `json:"intensity,omitempty" jsonschema:"minimum=0,maximum=1"`
}

// ClientMessage is a viewer-to-host websocket message.
type ClientMessage struct {
	Ver    int            `json:"ver,omitempty"`
	Type   string         `json:"type" jsonschema:"enum=signal,enum=preset"`
	Signal *SignalRequest `json:"signal,omitempty"`
	Preset *wave.Preset   `json:"preset,omitempty"`
}

// DecodeClientMessage parses a viewer payload, defaulting the version.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported client protocol version %d", msg.Ver)
	}
	return msg, nil
}

// SignalCommand converts a signal request into a queued command. Unknown
// kinds are carried as noop, matching the field's own treatment.
func SignalCommand(req SignalRequest) control.Command {
	kind, _ := field.ParseKind(req.Type)
	return control.Command{
		Kind:   control.KindSignal,
		Signal: &field.Signal{Type: kind, Intensity: req.Intensity},
	}
}

// ClientCommand maps a viewer message onto a command.
func ClientCommand(msg ClientMessage) (control.Command, bool) {
	switch msg.Type {
	case TypeSignal:
		if msg.Signal == nil {
			return control.Command{}, false
		}
		return SignalCommand(*msg.Signal), true
	case TypePreset:
		if msg.Preset == nil || msg.Preset.Empty() {
			return control.Command{}, false
		}
		return control.Command{Kind: control.KindPreset, Preset: msg.Preset}, true
	default:
		return control.Command{}, false
	}
}

// Hello greets a newly connected viewer.
type Hello struct {
	Ver      int    `json:"ver"`
	Type     string `json:"type"`
	ViewerID string `json:"viewerId"`
	Receiver string `json:"receiver"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// EncodeHello renders the greeting for viewerID.
func EncodeHello(viewerID, receiver string, width, height int) ([]byte, error) {
	return json.Marshal(Hello{
		Ver:      Version,
		Type:     typeHello,
		ViewerID: viewerID,
		Receiver: receiver,
		Width:    width,
		Height:   height,
	})
}

// Frame is a rendered visualizer frame on the wire.
type Frame struct {
	Ver        int       `json:"ver"`
	Type       string    `json:"type"`
	Seq        uint64    `json:"seq"`
	Entropy    float64   `json:"entropy"`
	Refinement float64   `json:"refinement"`
	Smear      float64   `json:"smear"`
	Weights    []float64 `json:"weights,omitempty"`
	Columns    []float64 `json:"columns"`
	Height     int       `json:"height"`
	ServerTime int64     `json:"serverTime"`
}

// EncodeFrame renders a visualizer frame.
func EncodeFrame(f visual.Frame, serverTime int64) ([]byte, error) {
	return json.Marshal(Frame{
		Ver:        Version,
		Type:       typeFrame,
		Seq:        f.Seq,
		Entropy:    f.Entropy,
		Refinement: f.Refinement,
		Smear:      f.Smear,
		Weights:    f.Weights,
		Columns:    f.Columns,
		Height:     f.Height,
		ServerTime: serverTime,
	})
}

// Tick summarises one receiver step for viewers.
type Tick struct {
	Ver        int      `json:"ver"`
	Type       string   `json:"type"`
	Tick       uint64   `json:"tick"`
	Time       float64  `json:"time"`
	Value      float64  `json:"value"`
	Band       string   `json:"band"`
	Phase      string   `json:"phase"`
	Energy     float64  `json:"energy"`
	Plasticity float64  `json:"plasticity"`
	Richness   *float64 `json:"richness,omitempty"`
	Dominant   string   `json:"dominant,omitempty"`
}

// EncodeTick renders a step summary.
func EncodeTick(msg Tick) ([]byte, error) {
	msg.Ver = Version
	msg.Type = typeTick
	return json.Marshal(msg)
}

// Ack confirms or refuses a viewer command.
type Ack struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Of     string `json:"of"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// EncodeAck renders a command acknowledgement.
func EncodeAck(of, status, reason string) ([]byte, error) {
	return json.Marshal(Ack{Ver: Version, Type: typeAck, Of: of, Status: status, Reason: reason})
}

// Document gathers every wire type for schema generation.
type Document struct {
	Client ClientMessage `json:"client"`
	Hello  Hello         `json:"hello"`
	Frame  Frame         `json:"frame"`
	Tick   Tick          `json:"tick"`
	Ack    Ack           `json:"ack"`
	Signal SignalRequest `json:"signal"`
}
