// Package protocol defines the JSON messages exchanged with drawing clients over the websocket.
//
// Every frame is an Envelope. The sender of an inbound message is always the connection it arrived
// on, so no inbound payload carries an identity.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/astromechza/sketchsync/pkg/history"
)

var ErrMalformed = errors.New("malformed message")

type Kind string

// Inbound kinds.
const (
	KindDrawStep     Kind = "drawStep"
	KindStrokeCommit Kind = "strokeCommit"
	KindUndo         Kind = "undoRequest"
	KindRedo         Kind = "redoRequest"
	KindPointerMove  Kind = "pointerMove"
)

// Outbound kinds. KindDrawStep is reused for the relayed draw step.
const (
	KindJoin           Kind = "join"
	KindHistoryReplace Kind = "historyReplace"
	KindCursor         Kind = "cursor"
	KindUserLeft       Kind = "userLeft"
)

type Envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// StrokeData is the body of both drawStep and strokeCommit.
type StrokeData struct {
	Points   []history.Point `json:"points"`
	Color    string          `json:"color"`
	Width    float64         `json:"width"`
	IsEraser bool            `json:"isEraser"`
}

// Stroke binds the data to its owner.
func (d StrokeData) Stroke(owner string) history.Stroke {
	return history.Stroke{
		Owner:    owner,
		Points:   d.Points,
		Color:    d.Color,
		Width:    d.Width,
		IsEraser: d.IsEraser,
	}
}

type PointerData struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
}

// Inbound is a decoded and validated client message. Exactly one of Stroke and Pointer is set for the
// kinds that carry a body.
type Inbound struct {
	Kind    Kind
	Stroke  *StrokeData
	Pointer *PointerData
}

type pointerWire struct {
	X     *float64 `json:"x"`
	Y     *float64 `json:"y"`
	Color string   `json:"color"`
}

// Decode parses a client frame. Any error wraps ErrMalformed and nothing about the frame should be
// applied.
func Decode(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	in := Inbound{Kind: env.Type}
	switch env.Type {
	case KindDrawStep, KindStrokeCommit:
		var d StrokeData
		if err := unmarshalData(env.Data, &d); err != nil {
			return Inbound{}, err
		}
		if err := d.Stroke("").Validate(); err != nil {
			return Inbound{}, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
		}
		in.Stroke = &d
	case KindPointerMove:
		var w pointerWire
		if err := unmarshalData(env.Data, &w); err != nil {
			return Inbound{}, err
		}
		if w.X == nil || w.Y == nil {
			return Inbound{}, fmt.Errorf("%w: %s: x and y are required", ErrMalformed, env.Type)
		}
		if math.IsNaN(*w.X) || math.IsInf(*w.X, 0) || math.IsNaN(*w.Y) || math.IsInf(*w.Y, 0) {
			return Inbound{}, fmt.Errorf("%w: %s: coordinates must be finite", ErrMalformed, env.Type)
		}
		in.Pointer = &PointerData{X: *w.X, Y: *w.Y, Color: w.Color}
	case KindUndo, KindRedo:
	case "":
		return Inbound{}, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return Inbound{}, fmt.Errorf("%w: unknown type %q", ErrMalformed, env.Type)
	}
	return in, nil
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("%w: missing data", ErrMalformed)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

type Join struct {
	UserID  string           `json:"userId"`
	Color   string           `json:"color"`
	History []history.Stroke `json:"history"`
}

type DrawStep struct {
	StrokeData
	SenderID string `json:"senderId"`
}

type Cursor struct {
	SenderID string  `json:"senderId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Color    string  `json:"color"`
}

// Encode wraps data in an envelope of the given kind.
func Encode(kind Kind, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", kind, err)
	}
	return json.Marshal(Envelope{Type: kind, Data: raw})
}

func EncodeJoin(userID, color string, strokes []history.Stroke) ([]byte, error) {
	if strokes == nil {
		strokes = []history.Stroke{}
	}
	return Encode(KindJoin, Join{UserID: userID, Color: color, History: strokes})
}

func EncodeHistory(strokes []history.Stroke) ([]byte, error) {
	if strokes == nil {
		strokes = []history.Stroke{}
	}
	return Encode(KindHistoryReplace, strokes)
}

func EncodeDrawStep(senderID string, d StrokeData) ([]byte, error) {
	return Encode(KindDrawStep, DrawStep{StrokeData: d, SenderID: senderID})
}

func EncodeCursor(senderID string, p PointerData) ([]byte, error) {
	return Encode(KindCursor, Cursor{SenderID: senderID, X: p.X, Y: p.Y, Color: p.Color})
}

func EncodeUserLeft(senderID string) ([]byte, error) {
	return Encode(KindUserLeft, senderID)
}
