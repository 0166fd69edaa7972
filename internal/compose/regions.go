package compose

import (
	"cmp"
	"slices"

	"github.com/1broseidon/ivicomp/internal/geometry"
)

// Region is a rectangle of screen space and the surfaces visible in it,
// back to front. Items holds indices into the slice given to ComputeRegions.
type Region struct {
	Rect  geometry.Rect
	Items []int
}

type edgeKind int

const (
	edgeIn edgeKind = iota
	edgeOut
)

type edge struct {
	pos   int
	kind  edgeKind
	depth int
}

func sortEdges(edges []edge) {
	slices.SortFunc(edges, func(a, b edge) int {
		if c := cmp.Compare(a.pos, b.pos); c != 0 {
			return c
		}
		// Leave before entering so touching rectangles never share a cell.
		if c := cmp.Compare(b.kind, a.kind); c != 0 {
			return c
		}
		return cmp.Compare(a.depth, b.depth)
	})
}

// ComputeRegions partitions screen into non-overlapping rectangles, each
// carrying the depth-ordered list of rects that cover it. rects are in
// composition order: a higher index is drawn above a lower one.
//
// Rows are swept top to bottom and columns left to right. With clear set the
// regions tile the whole screen, background cells carrying an empty list;
// otherwise only covered area is returned. Cells of consecutive rows with
// the same columns and the same surfaces are merged.
func ComputeRegions(screen geometry.Rect, rects []geometry.Rect, clear bool) []Region {
	clipped := make([]geometry.Rect, len(rects))
	var yEdges []edge
	for i, r := range rects {
		c := r.Intersect(screen)
		clipped[i] = c
		if c.Empty() {
			continue
		}
		yEdges = append(yEdges,
			edge{pos: c.Y, kind: edgeIn, depth: i},
			edge{pos: c.Bottom(), kind: edgeOut, depth: i})
	}
	if screen.Empty() {
		return nil
	}
	if clear {
		yEdges = append(yEdges,
			edge{pos: screen.Y, kind: edgeIn, depth: -1},
			edge{pos: screen.Bottom(), kind: edgeOut, depth: -1})
	}
	if len(yEdges) == 0 {
		return nil
	}
	sortEdges(yEdges)

	var (
		out      []Region
		lastRow  []int // indices into out produced by the previous band
		openRows = make(map[int]struct{})
	)
	for i := 0; i < len(yEdges); {
		y := yEdges[i].pos
		for ; i < len(yEdges) && yEdges[i].pos == y; i++ {
			e := yEdges[i]
			if e.kind == edgeIn {
				openRows[e.depth] = struct{}{}
			} else {
				delete(openRows, e.depth)
			}
		}
		if i == len(yEdges) || len(openRows) == 0 {
			lastRow = nil
			continue
		}
		band := geometry.Rect{X: screen.X, Y: y, Width: screen.Width, Height: yEdges[i].pos - y}
		if band.Height <= 0 {
			continue
		}
		row := sweepRow(band, clipped, openRows, clear)
		lastRow = mergeRow(&out, lastRow, row)
	}
	return out
}

// sweepRow emits the cells of one horizontal band.
func sweepRow(band geometry.Rect, clipped []geometry.Rect, open map[int]struct{}, clear bool) []Region {
	var xEdges []edge
	for depth := range open {
		if depth < 0 {
			xEdges = append(xEdges,
				edge{pos: band.X, kind: edgeIn, depth: -1},
				edge{pos: band.Right(), kind: edgeOut, depth: -1})
			continue
		}
		r := clipped[depth]
		xEdges = append(xEdges,
			edge{pos: r.X, kind: edgeIn, depth: depth},
			edge{pos: r.Right(), kind: edgeOut, depth: depth})
	}
	sortEdges(xEdges)

	var (
		row  []Region
		cell = make(map[int]struct{})
	)
	for i := 0; i < len(xEdges); {
		x := xEdges[i].pos
		for ; i < len(xEdges) && xEdges[i].pos == x; i++ {
			e := xEdges[i]
			if e.kind == edgeIn {
				cell[e.depth] = struct{}{}
			} else {
				delete(cell, e.depth)
			}
		}
		if i == len(xEdges) || len(cell) == 0 {
			continue
		}
		w := xEdges[i].pos - x
		if w <= 0 {
			continue
		}
		items := make([]int, 0, len(cell))
		for depth := range cell {
			if depth >= 0 {
				items = append(items, depth)
			}
		}
		if len(items) == 0 && !clear {
			continue
		}
		slices.Sort(items)
		r := geometry.Rect{X: x, Y: band.Y, Width: w, Height: band.Height}
		if n := len(row); n > 0 && row[n-1].Rect.Right() == x && slices.Equal(row[n-1].Items, items) {
			row[n-1].Rect.Width += w
			continue
		}
		row = append(row, Region{Rect: r, Items: items})
	}
	return row
}

// mergeRow appends row to out, extending regions of the previous band that
// have the same columns and surfaces. It returns the indices of out that
// now end at the bottom of row.
func mergeRow(out *[]Region, prev []int, row []Region) []int {
	next := make([]int, 0, len(row))
	for _, r := range row {
		merged := false
		for _, pi := range prev {
			p := &(*out)[pi]
			if p.Rect.X == r.Rect.X && p.Rect.Width == r.Rect.Width &&
				p.Rect.Bottom() == r.Rect.Y && slices.Equal(p.Items, r.Items) {
				p.Rect.Height += r.Rect.Height
				next = append(next, pi)
				merged = true
				break
			}
		}
		if !merged {
			*out = append(*out, r)
			next = append(next, len(*out)-1)
		}
	}
	return next
}
