// Package bfm implements the buffer manager: two independent fixed-size
// pools, a chained hash index from page identifiers to frames, and a
// second-chance ("clock") replacement policy. There is no per-page
// latching — callers coordinate access cooperatively through pin/unpin
// discipline alone.
package bfm

import "github.com/odysseus-edu/storage/common"

// BufferType selects one of BfM's two independent pools.
type BufferType int

const (
	// PageBuf holds ordinary OM/BtM data and tree pages (train size 1).
	PageBuf BufferType = iota
	// LotLeafBuf holds multi-page "trains" (large-object leaf runs).
	LotLeafBuf
)

func (t BufferType) String() string {
	if t == LotLeafBuf {
		return "LOT_LEAF_BUF"
	}
	return "PAGE_BUF"
}

// frame status bits.
const (
	bitValid uint8 = 1 << iota
	bitDirty
	bitRefer
)

// frame is one slot of a pool's bufTable: the resident page's identity,
// pin count, status bits, and its link in the hash bucket's chain.
type frame struct {
	key           common.PageID
	fixed         int32 // pin count
	bits          uint8
	nextHashEntry int32 // index of next frame in this hash bucket's chain, or NotFoundInHTable
	data          []byte
}

func (f *frame) valid() bool { return f.bits&bitValid != 0 }
func (f *frame) dirty() bool { return f.bits&bitDirty != 0 }
func (f *frame) refer() bool { return f.bits&bitRefer != 0 }
