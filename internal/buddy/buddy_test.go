package buddy

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type BuddyTestSuite struct {
	suite.Suite
}

func TestBuddyTestSuite(t *testing.T) {
	suite.Run(t, new(BuddyTestSuite))
}

func (ts *BuddyTestSuite) TestAllocateOrderCorrectness() {
	cases := []struct {
		size      int
		wantOrder int
	}{
		{1, 0},
		{64, 6},
		{100, 7},
		{256, 8},
		{1024, 10},
	}
	for _, c := range cases {
		tr := NewTree(1024)
		region, err := tr.Allocate(c.size)
		ts.Require().NoError(err)
		ts.Equal(c.wantOrder, region.Order())
	}
}

func (ts *BuddyTestSuite) TestInvalidAndOversizedRejectedWithoutSideEffect() {
	tr := NewTree(1024)
	before := tr.FreeBytes()

	_, err := tr.Allocate(0)
	ts.ErrorIs(err, ErrInvalidSize)

	_, err = tr.Allocate(-5)
	ts.ErrorIs(err, ErrInvalidSize)

	_, err = tr.Allocate(2048)
	ts.ErrorIs(err, ErrOversized)

	ts.Equal(before, tr.FreeBytes())
}

func (ts *BuddyTestSuite) TestFreeThenReallocate() {
	tr := NewTree(256)
	r1, err := tr.Allocate(256)
	ts.Require().NoError(err)

	freed := Free(r1)
	ts.Equal(256, freed)
	ts.True(tr.IsEmpty())

	r2, err := tr.Allocate(256)
	ts.Require().NoError(err)
	ts.Equal(8, r2.Order())
}

func (ts *BuddyTestSuite) TestCoalescingRestoresSingleFreeRoot() {
	tr := NewTree(1024)

	var regions []*Region
	for i := 0; i < 4; i++ {
		r, err := tr.Allocate(256)
		ts.Require().NoError(err)
		regions = append(regions, r)
	}
	ts.False(tr.IsEmpty())

	for _, r := range regions {
		Free(r)
	}
	ts.True(tr.IsEmpty())
}

func (ts *BuddyTestSuite) TestFragmentationBlocksAllocationDespiteSumOfFreeBytes() {
	// Scenario 5 from spec.md §8: allocate 256x4 in a 1024 arena, free the
	// first and third, then allocating 512 must fail even though 512 bytes
	// are nominally free (no contiguous buddy of order 9 exists).
	tr := NewTree(1024)

	var regions []*Region
	for i := 0; i < 4; i++ {
		r, err := tr.Allocate(256)
		ts.Require().NoError(err)
		regions = append(regions, r)
	}

	Free(regions[0])
	Free(regions[2])

	ts.Equal(512, tr.FreeBytes())

	_, err := tr.Allocate(512)
	ts.ErrorIs(err, ErrFragmented)
}

func (ts *BuddyTestSuite) TestBestFitIsSmallestSufficientLeftFirst() {
	tr := NewTree(1024)

	// Two sibling 128-byte regions: freeing only one must leave a
	// smallest-sufficient free leaf without coalescing away the arena,
	// since its buddy is still occupied.
	a, err := tr.Allocate(128)
	ts.Require().NoError(err)
	b, err := tr.Allocate(128)
	ts.Require().NoError(err)
	Free(a)

	got, err := tr.Allocate(64)
	ts.Require().NoError(err)
	ts.Equal(6, got.Order())
	ts.Equal(1024-128-64, tr.FreeBytes()) // arena minus b (128, still occupied) minus the new 64-byte alloc
	_ = b
}

func (ts *BuddyTestSuite) TestAllocationSequenceThenFreeAllEmpties() {
	tr := NewTree(1024)
	sizes := []int{64, 128, 32, 256, 64, 32}

	var regions []*Region
	for _, s := range sizes {
		r, err := tr.Allocate(s)
		ts.Require().NoError(err)
		regions = append(regions, r)
	}

	for _, r := range regions {
		Free(r)
	}
	ts.True(tr.IsEmpty())
}
