package html

import (
	"fmt"
	"html/template"
	"math"
	"strings"

	"metaboqc/domain/report"
)

const (
	pointsPerInch = 72
	margin        = 56
)

type bounds struct {
	x0, x1, y0, y1 float64
}

func (b *bounds) add(x, y float64) {
	if !finite(x) || !finite(y) {
		return
	}
	b.x0, b.x1 = math.Min(b.x0, x), math.Max(b.x1, x)
	b.y0, b.y1 = math.Min(b.y0, y), math.Max(b.y1, y)
}

func (b *bounds) empty() bool {
	return b.x0 > b.x1
}

// pad widens zero-width ranges so the scale stays defined.
func (b *bounds) pad() {
	if b.x0 == b.x1 {
		b.x0, b.x1 = b.x0-0.5, b.x1+0.5
	}
	if b.y0 == b.y1 {
		b.y0, b.y1 = b.y0-0.5, b.y1+0.5
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

type canvas struct {
	w, h float64
	b    bounds
}

func (c canvas) px(x float64) float64 {
	return margin + (x-c.b.x0)/(c.b.x1-c.b.x0)*(c.w-2*margin)
}

func (c canvas) py(y float64) float64 {
	return c.h - margin - (y-c.b.y0)/(c.b.y1-c.b.y0)*(c.h-2*margin)
}

// renderSVG draws a figure intermediate form as an inline SVG element.
// widthIn and heightIn are in inches.
func renderSVG(f report.Figure, widthIn, heightIn float64) template.HTML {
	c := canvas{w: widthIn * pointsPerInch, h: heightIn * pointsPerInch}
	c.b = bounds{x0: math.Inf(1), x1: math.Inf(-1), y0: math.Inf(1), y1: math.Inf(-1)}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.0f %.0f" class="figure">`, c.w, c.h)
	fmt.Fprintf(&sb, `<text x="%.1f" y="20" text-anchor="middle" class="title">%s</text>`, c.w/2, template.HTMLEscapeString(f.Title))

	if f.Kind == report.FigureHeatmap && f.Grid != nil {
		drawGrid(&sb, c, f.Grid)
		sb.WriteString(`</svg>`)
		return template.HTML(sb.String())
	}

	bars := f.Kind == report.FigureHistogram || f.Kind == report.FigureBar
	for _, s := range f.Series {
		for i := range s.X {
			if i < len(s.Y) {
				c.b.add(s.X[i], s.Y[i])
			}
		}
	}
	for _, sh := range f.Shapes {
		switch sh.Kind {
		case "ellipse":
			c.b.add(sh.X-sh.Width, sh.Y-sh.Height)
			c.b.add(sh.X+sh.Width, sh.Y+sh.Height)
		case "hline":
			if !c.b.empty() {
				c.b.add(c.b.x0, sh.Y)
			}
		case "vline":
			if !c.b.empty() {
				c.b.add(sh.X, c.b.y0)
			}
		}
	}
	if c.b.empty() {
		fmt.Fprintf(&sb, `<text x="%.1f" y="%.1f" text-anchor="middle">no data</text></svg>`, c.w/2, c.h/2)
		return template.HTML(sb.String())
	}
	if bars {
		c.b.y0 = math.Min(c.b.y0, 0)
	}
	c.b.pad()

	drawAxes(&sb, c, f)
	for k, s := range f.Series {
		colour := s.Color
		if colour == "" {
			colour = seriesColours[k%len(seriesColours)]
		}
		switch {
		case bars:
			drawBars(&sb, c, s, colour)
		case f.Kind == report.FigureLine:
			drawLine(&sb, c, s, colour)
		default:
			drawPoints(&sb, c, s, colour)
		}
	}
	drawShapes(&sb, c, f.Shapes)
	sb.WriteString(`</svg>`)
	return template.HTML(sb.String())
}

func drawAxes(sb *strings.Builder, c canvas, f report.Figure) {
	fmt.Fprintf(sb, `<rect x="%d" y="%d" width="%.1f" height="%.1f" fill="none" stroke="#444"/>`,
		margin, margin, c.w-2*margin, c.h-2*margin)
	fmt.Fprintf(sb, `<text x="%d" y="%.1f" class="tick">%s</text>`, margin, c.h-margin+14, tick(c.b.x0))
	fmt.Fprintf(sb, `<text x="%.1f" y="%.1f" text-anchor="end" class="tick">%s</text>`, c.w-margin, c.h-margin+14, tick(c.b.x1))
	fmt.Fprintf(sb, `<text x="%d" y="%.1f" text-anchor="end" class="tick">%s</text>`, margin-4, c.h-margin, tick(c.b.y0))
	fmt.Fprintf(sb, `<text x="%d" y="%d" text-anchor="end" class="tick">%s</text>`, margin-4, margin+8, tick(c.b.y1))
	if f.XLabel != "" {
		fmt.Fprintf(sb, `<text x="%.1f" y="%.1f" text-anchor="middle">%s</text>`, c.w/2, c.h-12, template.HTMLEscapeString(f.XLabel))
	}
	if f.YLabel != "" {
		fmt.Fprintf(sb, `<text transform="translate(14 %.1f) rotate(-90)" text-anchor="middle">%s</text>`, c.h/2, template.HTMLEscapeString(f.YLabel))
	}
}

// seriesColours is used for series without a palette colour.
var seriesColours = []string{"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd", "#8c564b"}

func drawPoints(sb *strings.Builder, c canvas, s report.Series, colour string) {
	for i := range s.X {
		if i >= len(s.Y) || !finite(s.X[i]) || !finite(s.Y[i]) {
			continue
		}
		fmt.Fprintf(sb, `<circle cx="%.1f" cy="%.1f" r="3" fill="%s">`, c.px(s.X[i]), c.py(s.Y[i]), template.HTMLEscapeString(colour))
		if i < len(s.Labels) {
			fmt.Fprintf(sb, `<title>%s</title>`, template.HTMLEscapeString(s.Labels[i]))
		}
		sb.WriteString(`</circle>`)
	}
}

// drawLine breaks the polyline at non-finite points.
func drawLine(sb *strings.Builder, c canvas, s report.Series, colour string) {
	var pts []string
	flush := func() {
		if len(pts) > 1 {
			fmt.Fprintf(sb, `<polyline fill="none" stroke="%s" points="%s"/>`, template.HTMLEscapeString(colour), strings.Join(pts, " "))
		}
		pts = pts[:0]
	}
	for i := range s.X {
		if i >= len(s.Y) || !finite(s.X[i]) || !finite(s.Y[i]) {
			flush()
			continue
		}
		pts = append(pts, fmt.Sprintf("%.1f,%.1f", c.px(s.X[i]), c.py(s.Y[i])))
	}
	flush()
}

func drawBars(sb *strings.Builder, c canvas, s report.Series, colour string) {
	n := len(s.X)
	if n == 0 {
		return
	}
	w := 0.9 * (c.w - 2*margin) / float64(n)
	zero := c.py(0)
	for i := range s.X {
		if i >= len(s.Y) || !finite(s.X[i]) || !finite(s.Y[i]) {
			continue
		}
		top := c.py(s.Y[i])
		y, h := top, zero-top
		if h < 0 {
			y, h = zero, -h
		}
		fmt.Fprintf(sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" fill-opacity="0.7"/>`,
			c.px(s.X[i])-w/2, y, w, h, template.HTMLEscapeString(colour))
	}
}

func drawShapes(sb *strings.Builder, c canvas, shapes []report.Shape) {
	for _, sh := range shapes {
		switch sh.Kind {
		case "ellipse":
			rx := c.px(sh.X+sh.Width) - c.px(sh.X)
			ry := c.py(sh.Y) - c.py(sh.Y+sh.Height)
			fmt.Fprintf(sb, `<ellipse cx="%.1f" cy="%.1f" rx="%.1f" ry="%.1f" fill="none" stroke="#555" stroke-dasharray="4 3"/>`,
				c.px(sh.X), c.py(sh.Y), rx, ry)
		case "hline":
			fmt.Fprintf(sb, `<line x1="%d" x2="%.1f" y1="%.1f" y2="%.1f" stroke="#c00" stroke-dasharray="4 3"/>`,
				margin, c.w-margin, c.py(sh.Y), c.py(sh.Y))
		case "vline":
			fmt.Fprintf(sb, `<line x1="%.1f" x2="%.1f" y1="%d" y2="%.1f" stroke="#c00" stroke-dasharray="4 3"/>`,
				c.px(sh.X), c.px(sh.X), margin, c.h-margin)
		}
	}
}

func drawGrid(sb *strings.Builder, c canvas, g *report.Grid) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range g.Values {
		for _, v := range row {
			if finite(v) {
				lo, hi = math.Min(lo, v), math.Max(hi, v)
			}
		}
	}
	nr, nc := len(g.Values), len(g.Columns)
	if nr == 0 || nc == 0 || lo > hi {
		return
	}
	cw := (c.w - 2*margin) / float64(nc)
	ch := (c.h - 2*margin) / float64(nr)
	for i, row := range g.Values {
		for j, v := range row {
			fill := "#eeeeee"
			if finite(v) {
				t := 0.5
				if hi > lo {
					t = (v - lo) / (hi - lo)
				}
				fill = fmt.Sprintf("rgb(%d,%d,%d)", int(255-200*t), int(255-150*t), 255)
			}
			fmt.Fprintf(sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/>`,
				margin+float64(j)*cw, margin+float64(i)*ch, cw, ch, fill)
		}
		if i < len(g.Rows) {
			fmt.Fprintf(sb, `<text x="%d" y="%.1f" text-anchor="end" class="tick">%s</text>`,
				margin-4, margin+(float64(i)+0.6)*ch, template.HTMLEscapeString(g.Rows[i]))
		}
	}
	for j, name := range g.Columns {
		fmt.Fprintf(sb, `<text x="%.1f" y="%.1f" text-anchor="middle" class="tick">%s</text>`,
			margin+(float64(j)+0.5)*cw, c.h-margin+14, template.HTMLEscapeString(name))
	}
}

func tick(v float64) string {
	return report.Cell(v)
}
