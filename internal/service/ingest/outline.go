package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	models "assetdrop/internal/domain/models/ingest"
)

// outlineLine is one rendered row of a batch outline.
type outlineLine struct {
	node   *models.Node
	depth  int
	isLast bool
}

// RenderOutline draws the batch as a box-drawing tree in discovery order.
//
//	Shots/ [link: required]
//	├── hero (12 KiB)
//	└── Raw/
//	    └── one (3.1 MiB)
func RenderOutline(batch *models.Batch) string {
	var lines []outlineLine
	collectOutline(batch, nil, 0, &lines)
	if len(lines) == 0 {
		return ""
	}

	var b strings.Builder
	open := make(map[int]bool) // depths that still have siblings below
	for i, l := range lines {
		b.WriteString(outlinePrefix(l.depth, l.isLast, open))
		b.WriteString(outlineLabel(l.node))
		if i < len(lines)-1 {
			b.WriteString("\n")
		}
		if l.isLast {
			delete(open, l.depth)
		} else {
			open[l.depth] = true
		}
	}
	return b.String()
}

// collectOutline flattens the forest depth first. Roots sit at depth 0 and
// are drawn without a branch.
func collectOutline(batch *models.Batch, parent *models.TempID, depth int, lines *[]outlineLine) {
	children := batch.Children(parent)
	for i, n := range children {
		*lines = append(*lines, outlineLine{node: n, depth: depth, isLast: i == len(children)-1})
		if n.IsFolder() {
			id := n.TempID
			collectOutline(batch, &id, depth+1, lines)
		}
	}
}

func outlinePrefix(depth int, isLast bool, open map[int]bool) string {
	if depth == 0 {
		return ""
	}
	var prefix strings.Builder
	for d := 1; d < depth; d++ {
		if open[d] {
			prefix.WriteString("│   ")
		} else {
			prefix.WriteString("    ")
		}
	}
	if isLast {
		prefix.WriteString("└── ")
	} else {
		prefix.WriteString("├── ")
	}
	return prefix.String()
}

func outlineLabel(n *models.Node) string {
	label := n.Name
	if n.IsFolder() {
		label += "/"
	} else if n.Size > 0 {
		label += fmt.Sprintf(" (%s)", humanize.IBytes(uint64(n.Size)))
	}
	if n.UploadError != "" {
		label += " [upload failed]"
	}
	if n.HasErrors() {
		fields := make([]string, 0, len(n.Errors))
		for field, code := range n.Errors {
			fields = append(fields, fmt.Sprintf("%s: %s", field, code))
		}
		sort.Strings(fields)
		label += " [" + strings.Join(fields, ", ") + "]"
	}
	return label
}
