package viz

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/automerge/automerge-go"
	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/astromechza/sketchsync/pkg/archive"
	"github.com/astromechza/sketchsync/pkg/history"
)

func strokeLabel(i int, s history.Stroke) string {
	kind := s.Color
	if s.IsEraser {
		kind = "eraser"
	}
	return fmt.Sprintf("#%d %s %s %dpts", i, s.Owner, kind, len(s.Points))
}

// HistoryDot returns a DOT digraph with one node per stroke, linked in history order.
func HistoryDot(strokes []history.Stroke) string {
	var sb strings.Builder
	sb.WriteString("digraph \"history\" {\n")
	for i, s := range strokes {
		fmt.Fprintf(&sb, "    \"s%d\" [label=%q]\n", i, strokeLabel(i, s))
		if i > 0 {
			fmt.Fprintf(&sb, "    \"s%d\" -> \"s%d\"\n", i-1, i)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func render(build func(graph *cgraph.Graph) error, w io.Writer) error {
	g := graphviz.New()
	defer g.Close()

	graph, err := g.Graph()
	if err != nil {
		return fmt.Errorf("failed to setup graph: %w", err)
	}
	defer graph.Close()

	if err := build(graph); err != nil {
		return err
	}
	var buff bytes.Buffer
	if err := g.Render(graph, graphviz.SVG, &buff); err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	if _, err := w.Write(buff.Bytes()); err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}
	return nil
}

// RenderHistorySvg draws the strokes of a history as a chain in history order.
func RenderHistorySvg(strokes []history.Stroke, w io.Writer) error {
	return render(func(graph *cgraph.Graph) error {
		var prev *cgraph.Node
		for i, s := range strokes {
			n, err := graph.CreateNode("s" + strconv.Itoa(i))
			if err != nil {
				return fmt.Errorf("failed to create node: %w", err)
			}
			n.SetLabel(strokeLabel(i, s))
			if prev != nil {
				if _, err := graph.CreateEdge("e"+strconv.Itoa(i), prev, n); err != nil {
					return fmt.Errorf("failed to create edge: %w", err)
				}
			}
			prev = n
		}
		return nil
	}, w)
}

// RenderTimelineSvg draws the change graph of an archive document. Each node is one archived snapshot
// labelled with the board version and stroke count at that change.
func RenderTimelineSvg(doc *automerge.Doc, w io.Writer) error {
	changes, err := doc.Changes()
	if err != nil {
		return fmt.Errorf("failed to generate changes: %w", err)
	}
	return render(func(graph *cgraph.Graph) error {
		nodeMap := make(map[string]*cgraph.Node)
		var edgeCounter uint64
		for _, change := range changes {
			docAt, err := doc.Fork(change.Hash())
			if err != nil {
				return fmt.Errorf("failed to checkout %s: %w", change.Hash(), err)
			}
			summary := "?"
			if rec, err := archive.ReadSnapshot(docAt); err == nil {
				summary = fmt.Sprintf("v%d %d strokes", rec.Version, len(rec.Strokes))
			}

			n, err := graph.CreateNode(change.Hash().String())
			if err != nil {
				return fmt.Errorf("failed to create node: %w", err)
			}
			n.SetLabel(fmt.Sprintf("%s %s@%d %s", change.Hash().String()[:8], change.ActorID(), change.ActorSeq(), summary))
			nodeMap[change.Hash().String()] = n

			for _, hash := range change.Dependencies() {
				parent, ok := nodeMap[hash.String()]
				if !ok {
					continue
				}
				if _, err := graph.CreateEdge(strconv.FormatUint(atomic.AddUint64(&edgeCounter, 1), 10), parent, n); err != nil {
					return fmt.Errorf("failed to create edge: %w", err)
				}
			}
		}
		return nil
	}, w)
}

// RenderToFile renders with fn into a new file at path.
func RenderToFile(path string, fn func(w io.Writer) error) error {
	var buff bytes.Buffer
	if err := fn(&buff); err != nil {
		return err
	}
	if err := os.WriteFile(path, buff.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
