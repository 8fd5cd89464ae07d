package vm

// A PageTable maps virtual pages to physical frames.
type PageTable interface {
	// Find returns the frame that the page containing vAddr is mapped to. The
	// walk never allocates; the bool is false if the page is not mapped.
	Find(vAddr uint32) (frame uint32, found bool)

	// Insert maps the page containing vAddr to the frame, allocating the
	// levels on the way if they do not exist yet.
	Insert(vAddr uint32, frame uint32)

	// CountValidEntries returns the number of mapped pages. It visits every
	// allocated leaf slot and should only be used for reporting.
	CountValidEntries() uint64

	// NumNodes returns the number of level nodes allocated so far.
	NumNodes() uint64
}

// NewPageTable creates a multi-level page table. The levels must have been
// validated.
func NewPageTable(levels LevelConfig) PageTable {
	pt := &multiLevelTable{
		levels:   append(LevelConfig(nil), levels...),
		shifts:   make([]uint, len(levels)),
		idxMasks: make([]uint32, len(levels)),
	}

	for i, w := range levels {
		pt.shifts[i] = levels.Shift(i)
		pt.idxMasks[i] = uint32((uint64(1) << w) - 1)
	}

	pt.root = pt.newLevel(0)

	return pt
}

// multiLevelTable is a sparse trie. Each level consumes the index bits of
// one configured width; only the paths that were inserted are materialized.
type multiLevelTable struct {
	levels   LevelConfig
	shifts   []uint
	idxMasks []uint32
	root     *level
	numNodes uint64
}

type pageEntry struct {
	valid bool
	frame uint32
}

// A level is either an internal node that owns its children, or a leaf that
// holds the mappings. The shape is fixed at creation by the depth.
type level struct {
	depth    int
	children []*level
	entries  []pageEntry
}

func (l *level) isLeaf() bool {
	return l.entries != nil
}

func (pt *multiLevelTable) newLevel(depth int) *level {
	l := &level{depth: depth}
	size := 1 << pt.levels[depth]

	if depth == len(pt.levels)-1 {
		l.entries = make([]pageEntry, size)
	} else {
		l.children = make([]*level, size)
	}

	pt.numNodes++

	return l
}

func (pt *multiLevelTable) index(vAddr uint32, depth int) uint32 {
	return (vAddr >> pt.shifts[depth]) & pt.idxMasks[depth]
}

func (pt *multiLevelTable) Find(vAddr uint32) (uint32, bool) {
	return pt.find(pt.root, vAddr)
}

func (pt *multiLevelTable) find(l *level, vAddr uint32) (uint32, bool) {
	idx := pt.index(vAddr, l.depth)

	if l.isLeaf() {
		e := l.entries[idx]
		return e.frame, e.valid
	}

	next := l.children[idx]
	if next == nil {
		return 0, false
	}

	return pt.find(next, vAddr)
}

func (pt *multiLevelTable) Insert(vAddr uint32, frame uint32) {
	pt.insert(pt.root, vAddr, frame)
}

func (pt *multiLevelTable) insert(l *level, vAddr uint32, frame uint32) {
	idx := pt.index(vAddr, l.depth)

	if l.isLeaf() {
		l.entries[idx] = pageEntry{valid: true, frame: frame}
		return
	}

	next := l.children[idx]
	if next == nil {
		next = pt.newLevel(l.depth + 1)
		l.children[idx] = next
	}

	pt.insert(next, vAddr, frame)
}

func (pt *multiLevelTable) CountValidEntries() uint64 {
	return countValid(pt.root)
}

func countValid(l *level) uint64 {
	var total uint64

	if l.isLeaf() {
		for _, e := range l.entries {
			if e.valid {
				total++
			}
		}

		return total
	}

	for _, next := range l.children {
		if next != nil {
			total += countValid(next)
		}
	}

	return total
}

func (pt *multiLevelTable) NumNodes() uint64 {
	return pt.numNodes
}
