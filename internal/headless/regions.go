package headless

import (
	"context"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/autofold/internal/lang"
	"github.com/phobologic/autofold/internal/pragma"
)

// Region is a foldable line span. Folding it hides lines Start+1..End.
type Region struct {
	Start int
	End   int
}

// Contains reports whether line lies within the region, anchor included.
func (r Region) Contains(line int) bool {
	return line >= r.Start && line <= r.End
}

func (r Region) encloses(o Region) bool {
	return r != o && r.Start <= o.Start && o.End <= r.End
}

// Regions derives fold regions from the syntax tree of text: one per start
// line, spanning the outermost multi-line named node starting there. A
// closing bracket line stays visible, and runs of top-level import
// statements form one extra region.
func Regions(ctx context.Context, language *lang.Language, text string) []Region {
	if language == nil || text == "" {
		return nil
	}
	source := []byte(text)
	tree, err := language.Parse(ctx, source, false)
	if err != nil {
		return nil
	}
	defer tree.Close()

	lines := pragma.Lines(text)
	ends := make(map[int]int)
	add := func(start, end int) {
		if end < len(lines) && closesRegion(lines[end]) {
			end--
		}
		if end <= start {
			return
		}
		if cur, ok := ends[start]; !ok || end > cur {
			ends[start] = end
		}
	}

	root := tree.RootNode()
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node != root && node.IsNamed() {
			add(int(node.StartPoint().Row), int(node.EndPoint().Row))
		}
		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			if child := node.Child(i); child != nil {
				stack = append(stack, child)
			}
		}
	}

	for _, group := range importGroups(root) {
		add(group[0], group[1])
	}

	regions := make([]Region, 0, len(ends))
	for start, end := range ends {
		regions = append(regions, Region{Start: start, End: end})
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Start < regions[j].Start })
	return regions
}

// importGroups returns the [start, end] rows of runs of two or more
// consecutive top-level import statements.
func importGroups(root *sitter.Node) [][2]int {
	var groups [][2]int
	count := 0
	var start, end int
	flush := func() {
		if count >= 2 {
			groups = append(groups, [2]int{start, end})
		}
		count = 0
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child == nil {
			continue
		}
		if child.Type() != "import_statement" {
			if child.Type() != "comment" {
				flush()
			}
			continue
		}
		if count == 0 {
			start = int(child.StartPoint().Row)
		}
		end = int(child.EndPoint().Row)
		count++
	}
	flush()
	return groups
}

func closesRegion(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range []string{"}", ")", "]", "</"} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}
