// Package om is the object manager: variable-sized records stored in
// slotted pages, with a per-file doubly-linked page list and five
// available-space free-lists bucketed by remaining free space.
package om

import (
	"encoding/binary"

	"github.com/odysseus-edu/storage/common"
)

// Slotted page header layout (little-endian throughout):
//
//	pid(8) fid(8) nSlots(2) free(2) unused(2) prevPage(4) nextPage(4)
//	availPrev(4) availNext(4) uniqueCounter(4)
const (
	offPID        = 0
	offFID        = 8
	offNSlots     = 16
	offFree       = 18
	offUnused     = 20
	offPrevPage   = 22
	offNextPage   = 26
	offAvailPrev  = 30
	offAvailNext  = 34
	offUniqueCtr  = 38
	headerLen     = 42
	slotSize      = 4 // offset(2) unique(2)
	objHeaderSize = 8 // properties(2) tag(2) length(4)

	// LRGObjThreshold bounds the aligned length CreateObject will place
	// inline: the largest body that fits, with its header and slot, in an
	// empty page. Anything larger is out of scope (large-object storage).
	LRGObjThreshold = common.PageSize - headerLen - objHeaderSize - slotSize
)

// Avail-space band sizes: SP_k0SIZE is the needed-space ceiling below
// which a page with that much free space still qualifies for list k0.
// Bucketed as (SP_FREE + unused) / (PAGESIZE/10), against the raw page
// size rather than the smaller post-header data region.
var (
	dataRegionSize = common.PageSize - headerLen
	sp50Size       = common.PageSize * 5 / 10
	sp40Size       = common.PageSize * 4 / 10
	sp30Size       = common.PageSize * 3 / 10
	sp20Size       = common.PageSize * 2 / 10
	sp10Size       = common.PageSize * 1 / 10
)

// Page wraps a pinned PAGE_BUF frame's raw bytes as a slotted page.
type Page struct {
	Bytes []byte
}

func (p Page) PID() common.PageID {
	return common.PageID{VolNo: int32(binary.LittleEndian.Uint32(p.Bytes[offPID:])), PageNo: int32(binary.LittleEndian.Uint32(p.Bytes[offPID+4:]))}
}

func (p Page) SetPID(pid common.PageID) {
	binary.LittleEndian.PutUint32(p.Bytes[offPID:], uint32(pid.VolNo))
	binary.LittleEndian.PutUint32(p.Bytes[offPID+4:], uint32(pid.PageNo))
}

func (p Page) FID() common.FileID {
	return common.FileID{VolNo: int32(binary.LittleEndian.Uint32(p.Bytes[offFID:])), PageNo: int32(binary.LittleEndian.Uint32(p.Bytes[offFID+4:]))}
}

func (p Page) SetFID(fid common.FileID) {
	binary.LittleEndian.PutUint32(p.Bytes[offFID:], uint32(fid.VolNo))
	binary.LittleEndian.PutUint32(p.Bytes[offFID+4:], uint32(fid.PageNo))
}

func (p Page) NSlots() int     { return int(binary.LittleEndian.Uint16(p.Bytes[offNSlots:])) }
func (p Page) SetNSlots(n int) { binary.LittleEndian.PutUint16(p.Bytes[offNSlots:], uint16(n)) }

func (p Page) Free() int     { return int(binary.LittleEndian.Uint16(p.Bytes[offFree:])) }
func (p Page) SetFree(n int) { binary.LittleEndian.PutUint16(p.Bytes[offFree:], uint16(n)) }

func (p Page) Unused() int     { return int(binary.LittleEndian.Uint16(p.Bytes[offUnused:])) }
func (p Page) SetUnused(n int) { binary.LittleEndian.PutUint16(p.Bytes[offUnused:], uint16(n)) }

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

func (p Page) AvailPrev() common.ShortPageID {
	return common.ShortPageID(int32(binary.LittleEndian.Uint32(p.Bytes[offAvailPrev:])))
}
func (p Page) SetAvailPrev(s common.ShortPageID) {
	binary.LittleEndian.PutUint32(p.Bytes[offAvailPrev:], uint32(s))
}

func (p Page) AvailNext() common.ShortPageID {
	return common.ShortPageID(int32(binary.LittleEndian.Uint32(p.Bytes[offAvailNext:])))
}
func (p Page) SetAvailNext(s common.ShortPageID) {
	binary.LittleEndian.PutUint32(p.Bytes[offAvailNext:], uint32(s))
}

func (p Page) UniqueCounter() int32 {
	return int32(binary.LittleEndian.Uint32(p.Bytes[offUniqueCtr:]))
}
func (p Page) SetUniqueCounter(v int32) {
	binary.LittleEndian.PutUint32(p.Bytes[offUniqueCtr:], uint32(v))
}

// Init resets a freshly allocated page to an empty slotted page for pid/fid.
func (p Page) Init(pid common.PageID, fid common.FileID) {
	p.SetPID(pid)
	p.SetFID(fid)
	p.SetNSlots(0)
	p.SetFree(0)
	p.SetUnused(0)
	p.SetPrevPage(common.NilShortPageID)
	p.SetNextPage(common.NilShortPageID)
	p.SetAvailPrev(common.NilShortPageID)
	p.SetAvailNext(common.NilShortPageID)
	p.SetUniqueCounter(0)
}

// slotOffset returns the byte offset of slot i's 4-byte entry.
func slotOffset(i int) int { return common.PageSize - (i+1)*slotSize }

func (p Page) SlotOffset(i int) int16 {
	off := slotOffset(i)
	return int16(binary.LittleEndian.Uint16(p.Bytes[off:]))
}
func (p Page) SetSlotOffset(i int, v int16) {
	off := slotOffset(i)
	binary.LittleEndian.PutUint16(p.Bytes[off:], uint16(v))
}

func (p Page) SlotUnique(i int) int16 {
	off := slotOffset(i)
	return int16(binary.LittleEndian.Uint16(p.Bytes[off+2:]))
}
func (p Page) SetSlotUnique(i int, v int16) {
	off := slotOffset(i)
	binary.LittleEndian.PutUint16(p.Bytes[off+2:], uint16(v))
}

// ContiguousFree is the byte gap between the data region's current tail
// and the slot array's current head.
func (p Page) ContiguousFree() int {
	slotsEnd := common.PageSize - p.NSlots()*slotSize
	return slotsEnd - headerLen - p.Free()
}

// TotalFree is the space reclaimable after compaction: the contiguous
// gap plus bytes already stranded by deletions.
func (p Page) TotalFree() int {
	return p.ContiguousFree() + p.Unused()
}

// AvailBand returns which of the five avail-space lists (10..50) a page
// with the given reclaimable free space belongs to, or 0 if none (full).
func AvailBand(freeAndUnused int) int {
	switch {
	case freeAndUnused >= sp50Size:
		return 50
	case freeAndUnused >= sp40Size:
		return 40
	case freeAndUnused >= sp30Size:
		return 30
	case freeAndUnused >= sp20Size:
		return 20
	case freeAndUnused >= sp10Size:
		return 10
	default:
		return 0
	}
}

// ObjectHeader is the fixed prefix stored with every object body.
type ObjectHeader struct {
	Properties uint16
	Tag        uint16
	Length     int32
}

func readObjectHeader(b []byte) ObjectHeader {
	return ObjectHeader{
		Properties: binary.LittleEndian.Uint16(b[0:]),
		Tag:        binary.LittleEndian.Uint16(b[2:]),
		Length:     int32(binary.LittleEndian.Uint32(b[4:])),
	}
}

func writeObjectHeader(b []byte, h ObjectHeader) {
	binary.LittleEndian.PutUint16(b[0:], h.Properties)
	binary.LittleEndian.PutUint16(b[2:], h.Tag)
	binary.LittleEndian.PutUint32(b[4:], uint32(h.Length))
}

// ObjectAt reads the header and body of the object stored at data-region
// offset off.
func (p Page) ObjectAt(off int) (ObjectHeader, []byte) {
	hdr := readObjectHeader(p.Bytes[headerLen+off:])
	body := p.Bytes[headerLen+off+objHeaderSize : headerLen+off+objHeaderSize+int(hdr.Length)]
	return hdr, body
}
