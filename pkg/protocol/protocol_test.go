package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/astromechza/sketchsync/pkg/history"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Kind
		wantErr bool
	}{
		{name: "draw step", raw: `{"type":"drawStep","data":{"points":[{"x":1,"y":2}],"color":"#000000","width":3}}`, want: KindDrawStep},
		{name: "commit", raw: `{"type":"strokeCommit","data":{"points":[{"x":1,"y":2},{"x":3,"y":4}],"color":"#000000","width":3}}`, want: KindStrokeCommit},
		{name: "eraser commit", raw: `{"type":"strokeCommit","data":{"points":[{"x":1,"y":2}],"width":20,"isEraser":true}}`, want: KindStrokeCommit},
		{name: "undo", raw: `{"type":"undoRequest"}`, want: KindUndo},
		{name: "redo with body", raw: `{"type":"redoRequest","data":{}}`, want: KindRedo},
		{name: "pointer", raw: `{"type":"pointerMove","data":{"x":0,"y":0,"color":"#fff"}}`, want: KindPointerMove},
		{name: "not json", raw: `{`, wantErr: true},
		{name: "missing type", raw: `{"data":{}}`, wantErr: true},
		{name: "unknown type", raw: `{"type":"clear"}`, wantErr: true},
		{name: "commit without data", raw: `{"type":"strokeCommit"}`, wantErr: true},
		{name: "commit with null data", raw: `{"type":"strokeCommit","data":null}`, wantErr: true},
		{name: "commit without points", raw: `{"type":"strokeCommit","data":{"points":[],"color":"#000","width":3}}`, wantErr: true},
		{name: "commit with zero width", raw: `{"type":"strokeCommit","data":{"points":[{"x":1,"y":2}],"color":"#000"}}`, wantErr: true},
		{name: "draw step wrong types", raw: `{"type":"drawStep","data":{"points":"abc"}}`, wantErr: true},
		{name: "pointer missing y", raw: `{"type":"pointerMove","data":{"x":1}}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Decode([]byte(tt.raw))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("expected ErrMalformed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if in.Kind != tt.want {
				t.Fatalf("Decode() kind = %q, want %q", in.Kind, tt.want)
			}
		})
	}
}

func TestDecodeIgnoresClaimedIdentity(t *testing.T) {
	in, err := Decode([]byte(`{"type":"strokeCommit","data":{"owner":"mallory","senderId":"mallory","points":[{"x":1,"y":1}],"color":"#000","width":1}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := in.Stroke.Stroke("alice").Owner; got != "alice" {
		t.Fatalf("expected owner to come from the connection, got %q", got)
	}
}

func TestEncodeDrawStepFlattensFields(t *testing.T) {
	raw, err := EncodeDrawStep("u1", StrokeData{Points: []history.Point{{X: 1, Y: 2}}, Color: "#123456", Width: 4, IsEraser: true})
	if err != nil {
		t.Fatalf("EncodeDrawStep() error = %v", err)
	}
	var env struct {
		Type Kind           `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != KindDrawStep {
		t.Fatalf("type = %q", env.Type)
	}
	for _, key := range []string{"points", "color", "width", "isEraser", "senderId"} {
		if _, ok := env.Data[key]; !ok {
			t.Fatalf("expected key %q in %v", key, env.Data)
		}
	}
	if env.Data["senderId"] != "u1" {
		t.Fatalf("senderId = %v", env.Data["senderId"])
	}
}

func TestEncodeEmptyHistory(t *testing.T) {
	raw, err := EncodeHistory(nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"type":"historyReplace","data":[]}` {
		t.Fatalf("unexpected encoding %s", raw)
	}
	raw, err = EncodeJoin("u1", "#abcdef", nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"type":"join","data":{"userId":"u1","color":"#abcdef","history":[]}}` {
		t.Fatalf("unexpected encoding %s", raw)
	}
}

func TestEncodeStrokeShape(t *testing.T) {
	raw, err := EncodeHistory([]history.Stroke{{Owner: "u1", Points: []history.Point{{X: 1, Y: 2}}, Color: "#000", Width: 2}})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"historyReplace","data":[{"owner":"u1","points":[{"x":1,"y":2}],"color":"#000","width":2,"isEraser":false}]}`
	if string(raw) != want {
		t.Fatalf("got %s\nwant %s", raw, want)
	}
}

func TestEncodeUserLeft(t *testing.T) {
	raw, err := EncodeUserLeft("u9")
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"type":"userLeft","data":"u9"}` {
		t.Fatalf("unexpected encoding %s", raw)
	}
}
