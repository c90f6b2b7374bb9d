// Package btm is the B+-tree index manager: ordered insertion with splits
// and root promotion, and range-scan cursors supporting the six spec.md
// comparison operators. Index pages sit in BfM's PAGE_BUF pool, same as
// OM's data pages; a leaf's payload is an OM common.ObjectID, never an
// inline object body.
package btm

import (
	"encoding/binary"

	"github.com/odysseus-edu/storage/common"
)

// PageType is the type-tag bitmask carried by every B+-tree page header.
type PageType uint16

const (
	Internal PageType = 0x1
	Leaf     PageType = 0x2
	Root     PageType = 0x4
)

// Page header (little-endian, fixed 24-byte prefix shared by both
// variants so the type tag can always be read before deciding which
// variant fields apply):
//
//	pid(8) type(2) nSlots(2) free(2) unused(2) p0-or-prevPage(4) nextPage(4)
//
// Internal pages use only the first of the two trailing 4-byte fields
// (p0); leaf pages use both (prevPage, nextPage). The unused half of an
// internal page's trailing region is simply never read or written.
const (
	offPID      = 0
	offType     = 8
	offNSlots   = 10
	offFree     = 12
	offUnused   = 14
	offP0       = 16 // == offPrevPage
	offPrevPage = 16
	offNextPage = 20
	headerLen   = 24

	slotSize = 2 // one data-region offset per slot, no per-slot generation counter

	oidSize = 14 // VolNo(4) PageNo(4) SlotNo(2) Unique(4)

	dataRegionSize = common.PageSize - headerLen
)

// Page wraps a pinned PAGE_BUF frame's raw bytes as a B+-tree page.
type Page struct {
	Bytes []byte
}

func (p Page) PID() common.PageID {
	return common.PageID{
		VolNo:  int32(binary.LittleEndian.Uint32(p.Bytes[offPID:])),
		PageNo: int32(binary.LittleEndian.Uint32(p.Bytes[offPID+4:])),
	}
}
func (p Page) SetPID(pid common.PageID) {
	binary.LittleEndian.PutUint32(p.Bytes[offPID:], uint32(pid.VolNo))
	binary.LittleEndian.PutUint32(p.Bytes[offPID+4:], uint32(pid.PageNo))
}

func (p Page) Type() PageType     { return PageType(binary.LittleEndian.Uint16(p.Bytes[offType:])) }
func (p Page) SetType(t PageType) { binary.LittleEndian.PutUint16(p.Bytes[offType:], uint16(t)) }

func (p Page) IsLeaf() bool     { return p.Type()&Leaf != 0 }
func (p Page) IsInternal() bool { return p.Type()&Internal != 0 }
func (p Page) IsRoot() bool     { return p.Type()&Root != 0 }

func (p Page) NSlots() int     { return int(binary.LittleEndian.Uint16(p.Bytes[offNSlots:])) }
func (p Page) SetNSlots(n int) { binary.LittleEndian.PutUint16(p.Bytes[offNSlots:], uint16(n)) }

func (p Page) Free() int     { return int(binary.LittleEndian.Uint16(p.Bytes[offFree:])) }
func (p Page) SetFree(n int) { binary.LittleEndian.PutUint16(p.Bytes[offFree:], uint16(n)) }

func (p Page) Unused() int     { return int(binary.LittleEndian.Uint16(p.Bytes[offUnused:])) }
func (p Page) SetUnused(n int) { binary.LittleEndian.PutUint16(p.Bytes[offUnused:], uint16(n)) }

func (p Page) P0() common.ShortPageID {
	return common.ShortPageID(int32(binary.LittleEndian.Uint32(p.Bytes[offP0:])))
}
func (p Page) SetP0(s common.ShortPageID) {
	binary.LittleEndian.PutUint32(p.Bytes[offP0:], uint32(s))
}

func (p Page) PrevPage() common.ShortPageID {
	return common.ShortPageID(int32(binary.LittleEndian.Uint32(p.Bytes[offPrevPage:])))
}
func (p Page) SetPrevPage(s common.ShortPageID) {
	binary.LittleEndian.PutUint32(p.Bytes[offPrevPage:], uint32(s))
}

func (p Page) NextPage() common.ShortPageID {
	return common.ShortPageID(int32(binary.LittleEndian.Uint32(p.Bytes[offNextPage:])))
}
func (p Page) SetNextPage(s common.ShortPageID) {
	binary.LittleEndian.PutUint32(p.Bytes[offNextPage:], uint32(s))
}

// InitLeaf resets a freshly allocated page to an empty leaf, optionally
// flagged as the tree's root.
func (p Page) InitLeaf(pid common.PageID, isRoot bool) {
	p.SetPID(pid)
	t := Leaf
	if isRoot {
		t |= Root
	}
	p.SetType(t)
	p.SetNSlots(0)
	p.SetFree(0)
	p.SetUnused(0)
	p.SetPrevPage(common.NilShortPageID)
	p.SetNextPage(common.NilShortPageID)
}

// InitInternal resets a freshly allocated page to an empty internal page
// with leftmost child p0, optionally flagged as the tree's root.
func (p Page) InitInternal(pid common.PageID, p0 common.ShortPageID, isRoot bool) {
	p.SetPID(pid)
	t := Internal
	if isRoot {
		t |= Root
	}
	p.SetType(t)
	p.SetNSlots(0)
	p.SetFree(0)
	p.SetUnused(0)
	p.SetP0(p0)
}

func slotOffset(i int) int { return common.PageSize - (i+1)*slotSize }

func (p Page) SlotOffset(i int) int16 {
	return int16(binary.LittleEndian.Uint16(p.Bytes[slotOffset(i):]))
}
func (p Page) SetSlotOffset(i int, v int16) {
	binary.LittleEndian.PutUint16(p.Bytes[slotOffset(i):], uint16(v))
}

// insertSlotAt opens a gap at slot index idx by shifting every slot at
// or after idx one position toward the tail of the slot array, then
// writes off into the new gap. nSlots must already reflect the final
// (post-insertion) count.
func (p Page) insertSlotAt(idx int, off int16) {
	for i := p.NSlots() - 1; i > idx; i-- {
		p.SetSlotOffset(i, p.SlotOffset(i-1))
	}
	p.SetSlotOffset(idx, off)
}

// ContiguousFree is the byte gap between the data region's current tail
// and the slot array's current head.
func (p Page) ContiguousFree() int {
	slotsEnd := common.PageSize - p.NSlots()*slotSize
	return slotsEnd - headerLen - p.Free()
}

// TotalFree is the space reclaimable after compaction.
func (p Page) TotalFree() int { return p.ContiguousFree() + p.Unused() }

// --- internal-page entries: {spid(4) klen(2) kval[klen]} padded to 4 bytes ---

// InternalItem is one separator key plus the subtree it roots.
type InternalItem struct {
	SPID common.ShortPageID
	Kval []byte
}

func internalEntryLen(klen int) int { return common.AlignedLen(4 + 2 + klen) }

func (p Page) readInternalEntry(off int) InternalItem {
	b := p.Bytes[headerLen+off:]
	spid := common.ShortPageID(int32(binary.LittleEndian.Uint32(b[0:])))
	klen := int(binary.LittleEndian.Uint16(b[4:]))
	kval := make([]byte, klen)
	copy(kval, b[6:6+klen])
	return InternalItem{SPID: spid, Kval: kval}
}

func (p Page) writeInternalEntry(off int, item InternalItem) {
	b := p.Bytes[headerLen+off:]
	binary.LittleEndian.PutUint32(b[0:], uint32(item.SPID))
	binary.LittleEndian.PutUint16(b[4:], uint16(len(item.Kval)))
	copy(b[6:6+len(item.Kval)], item.Kval)
}

// InternalItemAt returns slot i's separator key and subtree pointer.
func (p Page) InternalItemAt(i int) InternalItem {
	return p.readInternalEntry(int(p.SlotOffset(i)))
}

// --- leaf-page entries: {nObjects(2) klen(2) kval[aligned(klen)] oid(14)} ---

// LeafItem is one indexed key plus the object it points at.
type LeafItem struct {
	NObjects int16
	Kval     []byte
	Oid      common.ObjectID
}

func leafEntryLen(klen int) int { return 2 + 2 + common.AlignedLen(klen) + oidSize }

func encodeOID(b []byte, oid common.ObjectID) {
	binary.LittleEndian.PutUint32(b[0:], uint32(oid.VolNo))
	binary.LittleEndian.PutUint32(b[4:], uint32(oid.PageNo))
	binary.LittleEndian.PutUint16(b[8:], uint16(oid.SlotNo))
	binary.LittleEndian.PutUint32(b[10:], uint32(oid.Unique))
}

func decodeOID(b []byte) common.ObjectID {
	return common.ObjectID{
		PageID: common.PageID{
			VolNo:  int32(binary.LittleEndian.Uint32(b[0:])),
			PageNo: int32(binary.LittleEndian.Uint32(b[4:])),
		},
		SlotNo: int16(binary.LittleEndian.Uint16(b[8:])),
		Unique: int32(binary.LittleEndian.Uint32(b[10:])),
	}
}

func (p Page) readLeafEntry(off int) LeafItem {
	b := p.Bytes[headerLen+off:]
	nObjects := int16(binary.LittleEndian.Uint16(b[0:]))
	klen := int(binary.LittleEndian.Uint16(b[2:]))
	kval := make([]byte, klen)
	copy(kval, b[4:4+klen])
	aligned := common.AlignedLen(klen)
	oid := decodeOID(b[4+aligned:])
	return LeafItem{NObjects: nObjects, Kval: kval, Oid: oid}
}

func (p Page) writeLeafEntry(off int, item LeafItem) {
	b := p.Bytes[headerLen+off:]
	binary.LittleEndian.PutUint16(b[0:], uint16(item.NObjects))
	binary.LittleEndian.PutUint16(b[2:], uint16(len(item.Kval)))
	copy(b[4:4+len(item.Kval)], item.Kval)
	aligned := common.AlignedLen(len(item.Kval))
	encodeOID(b[4+aligned:], item.Oid)
}

// LeafItemAt returns slot i's key and object id.
func (p Page) LeafItemAt(i int) LeafItem {
	return p.readLeafEntry(int(p.SlotOffset(i)))
}

// CompactInternal rewrites the data region contiguously from offset 0 in
// slot order (slots are already key-ordered; only storage is reclaimed).
func CompactInternal(p Page) {
	n := p.NSlots()
	items := make([]InternalItem, n)
	for i := 0; i < n; i++ {
		items[i] = p.InternalItemAt(i)
	}
	cursor := 0
	for i, item := range items {
		p.writeInternalEntry(cursor, item)
		p.SetSlotOffset(i, int16(cursor))
		cursor += internalEntryLen(len(item.Kval))
	}
	p.SetFree(cursor)
	p.SetUnused(0)
}

// CompactLeaf is CompactInternal's leaf counterpart.
func CompactLeaf(p Page) {
	n := p.NSlots()
	items := make([]LeafItem, n)
	for i := 0; i < n; i++ {
		items[i] = p.LeafItemAt(i)
	}
	cursor := 0
	for i, item := range items {
		p.writeLeafEntry(cursor, item)
		p.SetSlotOffset(i, int16(cursor))
		cursor += leafEntryLen(len(item.Kval))
	}
	p.SetFree(cursor)
	p.SetUnused(0)
}
