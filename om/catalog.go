package om

import (
	"encoding/binary"

	"github.com/odysseus-edu/storage/common"
)

// Catalog page layout: fid(8) firstPage(8) lastPage(8) then five
// ShortPageID avail-list heads (10,20,30,40,50), 4 bytes each.
const (
	catOffFID       = 0
	catOffFirst     = 8
	catOffLast      = 16
	catOffAvail10   = 24
	catOffAvail20   = 28
	catOffAvail30   = 32
	catOffAvail40   = 36
	catOffAvail50   = 40
	catalogPageSize = 44
)

// Catalog wraps a pinned catalog page: the per-file bookkeeping record
// CreateObject/DestroyObject consult to place and reclaim pages.
type Catalog struct {
	Bytes []byte
}

func (c Catalog) FID() common.FileID {
	return common.FileID{VolNo: int32(binary.LittleEndian.Uint32(c.Bytes[catOffFID:])), PageNo: int32(binary.LittleEndian.Uint32(c.Bytes[catOffFID+4:]))}
}
func (c Catalog) SetFID(fid common.FileID) {
	binary.LittleEndian.PutUint32(c.Bytes[catOffFID:], uint32(fid.VolNo))
	binary.LittleEndian.PutUint32(c.Bytes[catOffFID+4:], uint32(fid.PageNo))
}

func (c Catalog) FirstPage() common.ShortPageID {
	return common.ShortPageID(int32(binary.LittleEndian.Uint32(c.Bytes[catOffFirst:])))
}
func (c Catalog) SetFirstPage(s common.ShortPageID) {
	binary.LittleEndian.PutUint32(c.Bytes[catOffFirst:], uint32(s))
}

func (c Catalog) LastPage() common.ShortPageID {
	return common.ShortPageID(int32(binary.LittleEndian.Uint32(c.Bytes[catOffLast:])))
}
func (c Catalog) SetLastPage(s common.ShortPageID) {
	binary.LittleEndian.PutUint32(c.Bytes[catOffLast:], uint32(s))
}

// avail list head accessors, keyed by band (10,20,30,40,50).
func (c Catalog) AvailList(band int) common.ShortPageID {
	return common.ShortPageID(int32(binary.LittleEndian.Uint32(c.Bytes[c.availOffset(band):])))
}
func (c Catalog) SetAvailList(band int, s common.ShortPageID) {
	binary.LittleEndian.PutUint32(c.Bytes[c.availOffset(band):], uint32(s))
}

func (c Catalog) availOffset(band int) int {
	switch band {
	case 10:
		return catOffAvail10
	case 20:
		return catOffAvail20
	case 30:
		return catOffAvail30
	case 40:
		return catOffAvail40
	default:
		return catOffAvail50
	}
}

// Init resets a freshly allocated catalog page: no pages yet, every
// avail-list empty.
func (c Catalog) Init(fid common.FileID) {
	c.SetFID(fid)
	c.SetFirstPage(common.NilShortPageID)
	c.SetLastPage(common.NilShortPageID)
	for _, band := range []int{10, 20, 30, 40, 50} {
		c.SetAvailList(band, common.NilShortPageID)
	}
}
