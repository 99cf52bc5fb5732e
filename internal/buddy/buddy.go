// Package buddy implements a power-of-two binary-tree memory allocator
// over a single fixed-size arena. It is the memory-admission substrate the
// scheduler consults before moving a staged job to ready: allocation
// failure (fragmentation or oversized request) is the signal the scheduler
// uses to move a job to the block queue instead, per spec.md §4.3.
package buddy

import (
	"errors"
	"math/bits"
)

// Sentinel errors returned by Allocate. None of these are fatal — the
// scheduler treats ErrFragmented and ErrOversized as the normal admission
// signal that a job must block (spec.md §7 "Admission failure ... not an
// error").
var (
	ErrInvalidSize = errors.New("buddy: size must be positive")
	ErrOversized   = errors.New("buddy: size exceeds arena")
	ErrFragmented  = errors.New("buddy: no free region of sufficient order")
)

// Region is a node in the buddy tree. An internal node is never itself
// free — its range is represented by the union of its descendants. A leaf
// is either wholly free (Payload == nil) or wholly occupied by exactly one
// live allocation.
type Region struct {
	order    int
	free     bool
	parent   *Region
	left     *Region
	right    *Region
	payload  []byte
	lo, hi   int // informational byte range, not load-bearing
}

// Size returns the power-of-two byte size this region covers, satisfying
// job.MemHandle.
func (r *Region) Size() int {
	return 1 << uint(r.order)
}

// Order returns log2 of the region's covered byte range.
func (r *Region) Order() int {
	return r.order
}

// Tree is a buddy allocator arena. The root order is fixed at construction
// (log2 of the arena size, which must be a power of two).
type Tree struct {
	root     *Region
	maxOrder int
}

// NewTree creates a buddy arena of the given size, which must be a power
// of two. A non-power-of-two size is rounded up (informational only — the
// root order is always well defined).
func NewTree(arenaSize int) *Tree {
	order := orderFor(arenaSize)
	return &Tree{
		root:     &Region{order: order, free: true, lo: 0, hi: (1 << uint(order)) - 1},
		maxOrder: order,
	}
}

func orderFor(size int) int {
	if size <= 1 {
		return 0
	}
	return bits.Len(uint(size - 1))
}

// Allocate rounds size up to the smallest order o with 2^o >= size, then
// performs a best-fit-among-free search (smallest free node whose order is
// still >= o, ties broken left-first by natural in-order traversal),
// splitting it down to order o. Fails with ErrFragmented if no single free
// node of sufficient order exists, even if the sum of free bytes would
// suffice — there is no compaction, per spec.md §4.3.
func (t *Tree) Allocate(size int) (*Region, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	order := orderFor(size)
	if order > t.maxOrder {
		return nil, ErrOversized
	}

	target := bestFit(t.root, order)
	if target == nil {
		return nil, ErrFragmented
	}

	for target.order > order {
		split(target)
		target = target.left
	}

	target.free = false
	target.payload = make([]byte, 1<<uint(target.order))
	return target, nil
}

// bestFit finds the free node of smallest order >= minOrder, searching the
// tree left-first (natural in-order traversal breaks ties). A node is only
// a candidate if it is a free leaf (internal nodes are never themselves
// free) or if it is a free leaf after being conceptually split, so this
// walks the whole tree and tracks the current best.
func bestFit(n *Region, minOrder int) *Region {
	var best *Region
	var walk func(*Region)
	walk = func(node *Region) {
		if node == nil {
			return
		}
		if isLeaf(node) {
			if node.free && node.order >= minOrder {
				if best == nil || node.order < best.order {
					best = node
				}
			}
			return
		}
		walk(node.left)
		walk(node.right)
	}
	walk(n)
	return best
}

func isLeaf(n *Region) bool {
	return n.left == nil && n.right == nil
}

// split divides a free leaf into two half-order children. The left child
// owns the lower half of the byte range, the right child the upper half;
// the byte-range bookkeeping is informational, per spec.md §4.3.
func split(n *Region) {
	childOrder := n.order - 1
	mid := n.lo + (n.hi-n.lo)/2

	n.left = &Region{order: childOrder, free: true, parent: n, lo: n.lo, hi: mid}
	n.right = &Region{order: childOrder, free: true, parent: n, lo: mid + 1, hi: n.hi}
	n.free = false
	n.payload = nil
}

// Free releases the allocation backing region, then walks upward merging
// buddy-pairs of free leaves back into free leaves at the parent's order,
// stopping at the first non-mergeable ancestor or the root. It returns the
// power-of-two size that was actually freed (the order of region at the
// moment of release, before any merge).
func Free(region *Region) int {
	freedSize := region.Size()
	region.payload = nil
	region.free = true

	cur := region
	for cur.parent != nil {
		parent := cur.parent
		if isLeaf(parent.left) && parent.left.free && isLeaf(parent.right) && parent.right.free {
			parent.left = nil
			parent.right = nil
			parent.free = true
			parent.payload = nil
			cur = parent
			continue
		}
		break
	}
	return freedSize
}

// FreeBytes returns the sum of bytes covered by free leaves — informational
// only; spec.md §4.3 is explicit that this sum is not itself an admission
// guarantee (no compaction), but it is useful for diagnostics and for the
// scheduler's heuristic block-queue budget (spec.md §4.4.3 step 6, §9).
func (t *Tree) FreeBytes() int {
	var total int
	var walk func(*Region)
	walk = func(n *Region) {
		if n == nil {
			return
		}
		if isLeaf(n) {
			if n.free {
				total += n.Size()
			}
			return
		}
		walk(n.left)
		walk(n.right)
	}
	walk(t.root)
	return total
}

// IsEmpty reports whether the tree has coalesced back to a single free
// root with no children — the invariant spec.md §8 "Buddy coalescing"
// requires after every live allocation has been freed.
func (t *Tree) IsEmpty() bool {
	return isLeaf(t.root) && t.root.free
}
