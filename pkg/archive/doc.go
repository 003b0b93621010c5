package archive

import (
	"fmt"
	"time"

	"github.com/automerge/automerge-go"

	"github.com/astromechza/sketchsync/pkg/history"
)

func writeSnapshot(doc *automerge.Doc, board string, version uint64, at time.Time, strokes []history.Stroke) error {
	list := make([]any, 0, len(strokes))
	for _, s := range strokes {
		points := make([]any, 0, len(s.Points))
		for _, p := range s.Points {
			points = append(points, map[string]any{"x": p.X, "y": p.Y})
		}
		list = append(list, map[string]any{
			"owner":    s.Owner,
			"color":    s.Color,
			"width":    s.Width,
			"isEraser": s.IsEraser,
			"points":   points,
		})
	}
	if err := doc.Path("board").Set(board); err != nil {
		return fmt.Errorf("failed to set board: %w", err)
	}
	if err := doc.Path("version").Set(int64(version)); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	if err := doc.Path("archivedAt").Set(at); err != nil {
		return fmt.Errorf("failed to set archive time: %w", err)
	}
	if err := doc.Path("strokes").Set(list); err != nil {
		return fmt.Errorf("failed to set strokes: %w", err)
	}
	return nil
}

// ReadSnapshot decodes the latest snapshot held by an archive document.
func ReadSnapshot(doc *automerge.Doc) (*Record, error) {
	rec := &Record{Doc: doc, Strokes: []history.Stroke{}}

	v, err := doc.Path("board").Get()
	if err != nil {
		return nil, fmt.Errorf("failed to read board: %w", err)
	}
	rec.Board = v.Str()
	if v, err = doc.Path("version").Get(); err != nil {
		return nil, fmt.Errorf("failed to read version: %w", err)
	}
	rec.Version = uint64(v.Int64())
	if v, err = doc.Path("archivedAt").Get(); err != nil {
		return nil, fmt.Errorf("failed to read archive time: %w", err)
	}
	rec.ArchivedAt = v.Time()

	if v, err = doc.Path("strokes").Get(); err != nil {
		return nil, fmt.Errorf("failed to read strokes: %w", err)
	}
	if v.Kind() != automerge.KindList {
		return rec, nil
	}
	list := v.List()
	for i := 0; i < list.Len(); i++ {
		item, err := list.Get(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read stroke %d: %w", i, err)
		}
		s, err := readStroke(item.Map())
		if err != nil {
			return nil, fmt.Errorf("failed to read stroke %d: %w", i, err)
		}
		rec.Strokes = append(rec.Strokes, s)
	}
	return rec, nil
}

// StrokeCount returns how many strokes a document holds.
func StrokeCount(doc *automerge.Doc) int {
	v, err := doc.Path("strokes").Get()
	if err != nil || v.Kind() != automerge.KindList {
		return 0
	}
	return v.List().Len()
}

func readStroke(m *automerge.Map) (history.Stroke, error) {
	var s history.Stroke
	fields := map[string]*automerge.Value{}
	for _, key := range []string{"owner", "color", "width", "isEraser", "points"} {
		v, err := m.Get(key)
		if err != nil {
			return s, err
		}
		fields[key] = v
	}
	s.Owner = fields["owner"].Str()
	s.Color = fields["color"].Str()
	s.Width = number(fields["width"])
	s.IsEraser = fields["isEraser"].Bool()
	if fields["points"].Kind() != automerge.KindList {
		return s, nil
	}
	points := fields["points"].List()
	for i := 0; i < points.Len(); i++ {
		pv, err := points.Get(i)
		if err != nil {
			return s, err
		}
		x, err := pv.Map().Get("x")
		if err != nil {
			return s, err
		}
		y, err := pv.Map().Get("y")
		if err != nil {
			return s, err
		}
		s.Points = append(s.Points, history.Point{X: number(x), Y: number(y)})
	}
	return s, nil
}

func number(v *automerge.Value) float64 {
	switch v.Kind() {
	case automerge.KindFloat64:
		return v.Float64()
	case automerge.KindInt64:
		return float64(v.Int64())
	case automerge.KindUint64:
		return float64(v.Uint64())
	default:
		return 0
	}
}
