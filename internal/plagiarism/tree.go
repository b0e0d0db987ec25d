package plagiarism

const (
	rootLabel  = "root"
	emptyLabel = "empty"
)

// treeNode lives in an arena; children are arena indices.
type treeNode struct {
	label    string
	children []int
}

// Tree is an ordered labeled tree built from a token sequence by bracket
// nesting, flattened to left-to-right postorder for tree edit distance.
type Tree struct {
	nodes []treeNode

	labels   []string // postorder labels
	leftmost []int    // postorder index of each node's leftmost leaf
	keyroots []int    // ascending
}

// BuildTree nests tokens under a synthetic root. An opening bracket becomes a
// child of the current parent and the new parent; a closing bracket returns to
// the enclosing parent and is kept as a plain child only when it has nothing to
// close. Every other token is a child of the current parent.
func BuildTree(tokens []string) *Tree {
	t := &Tree{}
	if len(tokens) == 0 {
		t.nodes = append(t.nodes, treeNode{label: emptyLabel})
		t.index()
		return t
	}

	t.nodes = append(t.nodes, treeNode{label: rootLabel})
	stack := []int{0}
	for _, tok := range tokens {
		top := stack[len(stack)-1]
		switch {
		case isOpeningBracket(tok):
			stack = append(stack, t.addChild(top, tok))
		case isClosingBracket(tok) && len(stack) > 1:
			stack = stack[:len(stack)-1]
		default:
			t.addChild(top, tok)
		}
	}

	t.index()
	return t
}

// Size returns the number of nodes.
func (t *Tree) Size() int {
	return len(t.labels)
}

func (t *Tree) addChild(parent int, label string) int {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, treeNode{label: label})
	t.nodes[parent].children = append(t.nodes[parent].children, idx)
	return idx
}

// index computes the postorder labels, leftmost leaves and keyroots without recursion.
func (t *Tree) index() {
	n := len(t.nodes)
	t.labels = make([]string, 0, n)
	t.leftmost = make([]int, 0, n)
	postOf := make([]int, n)

	type frame struct{ node, next int }
	stack := []frame{{node: 0}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		node := t.nodes[top.node]
		if top.next < len(node.children) {
			child := node.children[top.next]
			top.next++
			stack = append(stack, frame{node: child})
			continue
		}

		pos := len(t.labels)
		postOf[top.node] = pos
		t.labels = append(t.labels, node.label)
		if len(node.children) == 0 {
			t.leftmost = append(t.leftmost, pos)
		} else {
			t.leftmost = append(t.leftmost, t.leftmost[postOf[node.children[0]]])
		}
		stack = stack[:len(stack)-1]
	}

	// A keyroot is the highest node sharing its leftmost leaf
	seen := make([]bool, n)
	for i := n - 1; i >= 0; i-- {
		if !seen[t.leftmost[i]] {
			seen[t.leftmost[i]] = true
			t.keyroots = append(t.keyroots, i)
		}
	}
	for i, j := 0, len(t.keyroots)-1; i < j; i, j = i+1, j-1 {
		t.keyroots[i], t.keyroots[j] = t.keyroots[j], t.keyroots[i]
	}
}

// TreeDistance computes the Zhang-Shasha ordered tree edit distance with unit
// costs for insertion, deletion and relabeling.
func TreeDistance(t1, t2 *Tree) int {
	n1, n2 := t1.Size(), t2.Size()
	treeDist := make([]int, n1*n2)
	forest := make([]int, (n1+1)*(n2+1))

	for _, x := range t1.keyroots {
		for _, y := range t2.keyroots {
			forestDistance(t1, t2, x, y, treeDist, forest)
		}
	}

	return treeDist[(n1-1)*n2+(n2-1)]
}

// forestDistance fills treeDist for every pair of nodes on the leftmost paths
// of keyroots x and y.
func forestDistance(t1, t2 *Tree, x, y int, treeDist, forest []int) {
	n2 := t2.Size()
	lx, ly := t1.leftmost[x], t2.leftmost[y]
	width := y - ly + 2
	at := func(i, j int) *int { return &forest[i*width+j] }

	*at(0, 0) = 0
	for i := lx; i <= x; i++ {
		*at(i-lx+1, 0) = *at(i-lx, 0) + 1
	}
	for j := ly; j <= y; j++ {
		*at(0, j-ly+1) = *at(0, j-ly) + 1
	}

	for i := lx; i <= x; i++ {
		di := i - lx + 1
		for j := ly; j <= y; j++ {
			dj := j - ly + 1
			best := min(*at(di-1, dj)+1, *at(di, dj-1)+1)

			if t1.leftmost[i] == lx && t2.leftmost[j] == ly {
				relabel := 0
				if t1.labels[i] != t2.labels[j] {
					relabel = 1
				}
				best = min(best, *at(di-1, dj-1)+relabel)
				treeDist[i*n2+j] = best
			} else {
				p, q := t1.leftmost[i]-lx, t2.leftmost[j]-ly
				best = min(best, *at(p, q)+treeDist[i*n2+j])
			}
			*at(di, dj) = best
		}
	}
}

// TreeSimilarity is 1 - distance / max(token count). Two empty sequences are identical.
func TreeSimilarity(seqA, seqB []string) float64 {
	return treeSimilarity(BuildTree(seqA), BuildTree(seqB), len(seqA), len(seqB))
}

func treeSimilarity(t1, t2 *Tree, countA, countB int) float64 {
	maxLen := max(countA, countB)
	if maxLen == 0 {
		return 1.0
	}
	return clamp01(1.0 - float64(TreeDistance(t1, t2))/float64(maxLen))
}

func isOpeningBracket(tok string) bool {
	return tok == "(" || tok == "[" || tok == "{"
}

func isClosingBracket(tok string) bool {
	return tok == ")" || tok == "]" || tok == "}"
}
