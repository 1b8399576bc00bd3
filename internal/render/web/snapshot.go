// Package web renders board frames to static HTML and PNG artifacts that
// the ops server can hand out. Serving is outside this package.
package web

import (
	"bytes"
	"fmt"
	"html/template"
	"image/png"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fluted/departureboard/internal/board"
	"github.com/fluted/departureboard/internal/render"
)

// TargetName identifies the web snapshot target in logs.
const TargetName = "web"

// boardTemplate renders a layout as a static page. It only reads layout
// fields, so rendering the same view model twice yields identical bytes.
var boardTemplate = template.Must(template.New("board").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="30">
<title>Departure Board</title>
<style>
body { background: #000; color: #eee; font-family: monospace; }
table { border-collapse: collapse; }
td { padding: 2px 10px; }
.header { display: flex; justify-content: space-between; width: 40em; }
.stop { color: #fff; font-weight: bold; padding-top: 8px; }
.notice { color: #888; font-style: italic; }
.delays { color: #fc0; }
.cancelled { color: #f44; }
.delayed { color: #fc0; }
s { color: #888; }
</style>
</head>
<body>
<div class="header"><span>{{.Header}}</span><span>{{.Clock}}</span></div>
{{- if not .Healthy}}
<p class="notice">{{.AllDown}}</p>
{{- else}}
<table>
{{- range .Lines}}
{{- if eq .Kind 0}}
<tr><td colspan="4" class="stop">{{.Text}}</td></tr>
{{- else if eq .Kind 1}}
<tr>
<td>{{.Row.ModeTag}}</td>
<td>{{.Row.Line}}</td>
<td>{{.Row.Destination}}</td>
{{- if .Row.Cancelled}}
<td class="cancelled">{{.Row.TimeText}}</td>
{{- else if .Row.DelayMarker}}
<td class="delayed">{{if .Row.StruckTime}}<s>{{.Row.StruckTime}}</s> {{end}}{{.Row.TimeText}}{{.DelayGlyph}}</td>
{{- else}}
<td>{{if .Row.StruckTime}}<s>{{.Row.StruckTime}}</s> {{end}}{{.Row.TimeText}}</td>
{{- end}}
</tr>
{{- else if eq .Kind 2}}
<tr><td colspan="4" class="notice">{{.Text}}</td></tr>
{{- else if eq .Kind 3}}
<tr><td colspan="4" class="delays">{{.Text}}</td></tr>
{{- end}}
{{- end}}
</table>
{{- end}}
</body>
</html>
`))

// templateLine adapts a layout line for the template.
type templateLine struct {
	Kind       int
	Text       string
	Row        *render.Row
	DelayGlyph string
}

type templateData struct {
	Header  string
	Clock   string
	Healthy bool
	AllDown string
	Lines   []templateLine
}

// Config holds configuration for the snapshot target.
type Config struct {
	// Layout is the shared layout policy.
	Layout render.LayoutOptions

	// Logger for target operations.
	Logger zerolog.Logger
}

// Snapshot keeps the latest rendered HTML and PNG artifacts in memory.
// Renders replace both wholesale; readers get consistent copies.
type Snapshot struct {
	cfg    Config
	logger zerolog.Logger

	mu   sync.RWMutex
	html []byte
	img  []byte
}

// New creates an uninitialized snapshot target.
func New(cfg Config) *Snapshot {
	return &Snapshot{cfg: cfg, logger: cfg.Logger}
}

// Name returns the target name.
func (s *Snapshot) Name() string {
	return TargetName
}

// Initialize verifies the template renders an empty layout. It has no
// external resource to acquire, so it only fails on a broken build.
func (s *Snapshot) Initialize() error {
	var buf bytes.Buffer
	if err := boardTemplate.Execute(&buf, templateData{AllDown: render.AllDownNotice}); err != nil {
		return fmt.Errorf("%w: template: %v", render.ErrBusError, err)
	}
	return nil
}

// Render re-renders both artifacts from the view model.
func (s *Snapshot) Render(vm board.ViewModel) error {
	layout := render.BuildLayout(vm, s.cfg.Layout)

	html, err := renderHTML(layout)
	if err != nil {
		return fmt.Errorf("%w: html: %v", render.ErrDeviceWrite, err)
	}

	frame, clipped := render.DrawFrame(layout)
	if clipped > 0 {
		s.logger.Debug().Int("clipped_lines", clipped).Msg("frame content clipped")
	}
	var imgBuf bytes.Buffer
	if err := png.Encode(&imgBuf, frame); err != nil {
		return fmt.Errorf("%w: png: %v", render.ErrDeviceWrite, err)
	}

	s.mu.Lock()
	s.html = html
	s.img = imgBuf.Bytes()
	s.mu.Unlock()
	return nil
}

// Shutdown drops the artifacts so a stale board is not served after stop.
func (s *Snapshot) Shutdown() {
	s.mu.Lock()
	s.html = nil
	s.img = nil
	s.mu.Unlock()
}

// HTML returns the current page artifact, or false before the first render.
func (s *Snapshot) HTML() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.html == nil {
		return nil, false
	}
	out := make([]byte, len(s.html))
	copy(out, s.html)
	return out, true
}

// PNG returns the current frame image, or false before the first render.
func (s *Snapshot) PNG() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.img == nil {
		return nil, false
	}
	out := make([]byte, len(s.img))
	copy(out, s.img)
	return out, true
}

func renderHTML(l render.Layout) ([]byte, error) {
	data := templateData{
		Header:  l.Header,
		Clock:   l.Clock,
		Healthy: l.Healthy,
		AllDown: render.AllDownNotice,
		Lines:   make([]templateLine, 0, len(l.Lines)),
	}
	for _, line := range l.Lines {
		data.Lines = append(data.Lines, templateLine{
			Kind:       int(line.Kind),
			Text:       line.Text,
			Row:        line.Row,
			DelayGlyph: render.DelayGlyph,
		})
	}

	var buf bytes.Buffer
	if err := boardTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
