package om

import (
	"github.com/odysseus-edu/storage/common"
)

// entryNeededSpace is the bytes a new object of aligned length
// alignedLen needs: header, body, and the slot that will point at it.
func entryNeededSpace(alignedLen int) int {
	return objHeaderSize + alignedLen + slotSize
}

// CreateObject places a new object of length bytes (copied from data)
// into the file identified by catObjForFile, optionally near nearObj,
// and returns its ObjectID.
func (o *OM) CreateObject(catObjForFile common.PageID, nearObj *common.ObjectID, length int, data []byte) (common.ObjectID, error) {
	if length < 0 {
		return common.ObjectID{}, common.ErrBadParameter
	}
	alignedLen := common.AlignedLen(length)
	if alignedLen > LRGObjThreshold {
		return common.ObjectID{}, common.ErrNotSupportedOM
	}
	neededSpace := entryNeededSpace(alignedLen)

	cat, err := o.catalog(catObjForFile)
	if err != nil {
		return common.ObjectID{}, err
	}
	fid := cat.FID()

	pid, page, err := o.choosePage(catObjForFile, cat, fid, nearObj, neededSpace)
	if err != nil {
		return common.ObjectID{}, err
	}

	off := page.Free()
	writeObjectHeader(page.Bytes[headerLen+off:], ObjectHeader{Length: int32(length)})
	copy(page.Bytes[headerLen+off+objHeaderSize:], data[:length])

	slotNo := -1
	for i := 0; i < page.NSlots(); i++ {
		if page.SlotOffset(i) == common.EmptySlot {
			slotNo = i
			break
		}
	}
	if slotNo == -1 {
		slotNo = page.NSlots()
		page.SetNSlots(slotNo + 1)
	}
	page.SetSlotOffset(slotNo, int16(off))
	unique := o.getUnique(page)
	page.SetSlotUnique(slotNo, unique)

	page.SetFree(off + objHeaderSize + alignedLen)
	page.SetUnused(page.Unused() + (alignedLen - length))

	oid := common.ObjectID{PageID: pid, SlotNo: int16(slotNo), Unique: int32(unique)}

	if err := o.putInAvailSpaceList(catObjForFile, pid); err != nil {
		return common.ObjectID{}, err
	}
	if err := o.dirty(pid); err != nil {
		return common.ObjectID{}, err
	}
	if err := o.free(pid); err != nil {
		return common.ObjectID{}, err
	}
	if err := o.free(catObjForFile); err != nil {
		return common.ObjectID{}, err
	}
	return oid, nil
}

// choosePage implements CreateObject's placement policy and returns the
// pinned target page, already unlinked from its avail-list and compacted
// if reuse required it.
func (o *OM) choosePage(catObjForFile common.PageID, cat Catalog, fid common.FileID, nearObj *common.ObjectID, neededSpace int) (common.PageID, Page, error) {
	volNo := fid.VolNo

	if nearObj != nil {
		nearPid := common.PageID{VolNo: nearObj.VolNo, PageNo: nearObj.PageNo}
		nearPage, err := o.getPage(nearPid)
		if err != nil {
			return common.PageID{}, Page{}, err
		}
		if nearPage.TotalFree() >= neededSpace {
			if err := o.removeFromAvailSpaceList(catObjForFile, nearPid); err != nil {
				return common.PageID{}, Page{}, err
			}
			if nearPage.ContiguousFree() < neededSpace {
				CompactPage(nearPage, -1)
			}
			return nearPid, nearPage, nil
		}
		pid, page, err := o.allocNewPage(catObjForFile, volNo, fid)
		if err != nil {
			return common.PageID{}, Page{}, err
		}
		if err := o.fileMapAddPage(catObjForFile, nearPid, pid); err != nil {
			return common.PageID{}, Page{}, err
		}
		if err := o.free(nearPid); err != nil {
			return common.PageID{}, Page{}, err
		}
		return pid, page, nil
	}

	band := smallestFittingBand(neededSpace)
	if band != 0 {
		if head := cat.AvailList(band); head != common.NilShortPageID {
			pid := common.PageID{VolNo: volNo, PageNo: int32(head)}
			page, err := o.getPage(pid)
			if err != nil {
				return common.PageID{}, Page{}, err
			}
			if err := o.removeFromAvailSpaceList(catObjForFile, pid); err != nil {
				return common.PageID{}, Page{}, err
			}
			CompactPage(page, -1)
			return pid, page, nil
		}
	}

	lastPid := common.PageID{VolNo: volNo, PageNo: int32(cat.LastPage())}
	lastPage, err := o.getPage(lastPid)
	if err != nil {
		return common.PageID{}, Page{}, err
	}
	if lastPage.TotalFree() >= neededSpace {
		if err := o.removeFromAvailSpaceList(catObjForFile, lastPid); err != nil {
			return common.PageID{}, Page{}, err
		}
		if lastPage.ContiguousFree() < neededSpace {
			CompactPage(lastPage, -1)
		}
		return lastPid, lastPage, nil
	}
	if err := o.free(lastPid); err != nil {
		return common.PageID{}, Page{}, err
	}
	pid, page, err := o.allocNewPage(catObjForFile, volNo, fid)
	if err != nil {
		return common.PageID{}, Page{}, err
	}
	if err := o.fileMapAddPage(catObjForFile, lastPid, pid); err != nil {
		return common.PageID{}, Page{}, err
	}
	return pid, page, nil
}

// smallestFittingBand returns the smallest avail-space band (10..50)
// whose threshold is at least neededSpace, or 0 if even band 50 cannot
// guarantee it (the caller then falls back to the file's last page).
func smallestFittingBand(neededSpace int) int {
	switch {
	case neededSpace <= sp10Size:
		return 10
	case neededSpace <= sp20Size:
		return 20
	case neededSpace <= sp30Size:
		return 30
	case neededSpace <= sp40Size:
		return 40
	case neededSpace <= sp50Size:
		return 50
	default:
		return 0
	}
}

func (o *OM) allocNewPage(catObjForFile common.PageID, volNo int32, fid common.FileID) (common.PageID, Page, error) {
	pid, err := o.bufAlloc(volNo)
	if err != nil {
		return common.PageID{}, Page{}, err
	}
	page, err := o.getNewPage(pid)
	if err != nil {
		return common.PageID{}, Page{}, err
	}
	page.Init(pid, fid)
	return pid, page, nil
}

func (o *OM) bufAlloc(volNo int32) (common.PageID, error) {
	return o.buf.AllocTrainFor(volNo)
}

// DestroyObject removes oid from its page, reclaiming its slot and
// possibly freeing the whole page onto OM's deallocation list.
func (o *OM) DestroyObject(catObjForFile common.PageID, oid common.ObjectID) error {
	pid := oid.PageID
	page, err := o.getPage(pid)
	if err != nil {
		return err
	}

	if int(oid.SlotNo) < 0 || int(oid.SlotNo) >= page.NSlots() {
		o.free(pid)
		return errBadObjectID
	}
	off := page.SlotOffset(int(oid.SlotNo))
	if off == common.EmptySlot {
		o.free(pid)
		return errBadObjectID
	}

	if err := o.removeFromAvailSpaceList(catObjForFile, pid); err != nil {
		return err
	}

	hdr, _ := page.ObjectAt(int(off))
	alignedLen := common.AlignedLen(int(hdr.Length))
	last := int(oid.SlotNo) == page.NSlots()-1

	page.SetSlotOffset(int(oid.SlotNo), common.EmptySlot)

	reclaimed := objHeaderSize + alignedLen
	if last {
		page.SetNSlots(page.NSlots() - 1)
		reclaimed += slotSize
	}
	if int(off)+objHeaderSize+alignedLen == page.Free() {
		page.SetFree(int(off))
	} else {
		page.SetUnused(page.Unused() + reclaimed)
	}

	if page.Free() == 0 {
		if err := o.fileMapDeletePage(catObjForFile, pid); err != nil {
			return err
		}
		o.DeallocList = append(o.DeallocList, pid)
	} else {
		if err := o.putInAvailSpaceList(catObjForFile, pid); err != nil {
			return err
		}
	}

	if err := o.dirty(pid); err != nil {
		return err
	}
	return o.free(pid)
}

// GetObject copies oid's body into a fresh slice, for read access and
// round-trip tests.
func (o *OM) GetObject(oid common.ObjectID) ([]byte, error) {
	pid := oid.PageID
	page, err := o.getPage(pid)
	if err != nil {
		return nil, err
	}
	defer o.free(pid)

	if int(oid.SlotNo) < 0 || int(oid.SlotNo) >= page.NSlots() {
		return nil, errBadObjectID
	}
	off := page.SlotOffset(int(oid.SlotNo))
	if off == common.EmptySlot || page.SlotUnique(int(oid.SlotNo)) != int16(oid.Unique) {
		return nil, errBadObjectID
	}
	_, body := page.ObjectAt(int(off))
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

// CompactPage rewrites page's data region so every live object lies
// contiguously from offset 0 in ascending slot order, zeroing "unused".
// keepLast, if >= 0, is a slot whose object should be moved to the very
// end of the region so a subsequent in-place grow can extend it.
func CompactPage(page Page, keepLast int) {
	type liveSlot struct {
		idx int
		hdr ObjectHeader
		off int
	}
	var live []liveSlot
	for i := 0; i < page.NSlots(); i++ {
		off := page.SlotOffset(i)
		if off == common.EmptySlot {
			continue
		}
		hdr, _ := page.ObjectAt(int(off))
		live = append(live, liveSlot{idx: i, hdr: hdr, off: int(off)})
	}
	if keepLast >= 0 {
		for i, ls := range live {
			if ls.idx == keepLast {
				live = append(live[:i], live[i+1:]...)
				live = append(live, ls)
				break
			}
		}
	}

	tmp := make([]byte, common.PageSize-headerLen)
	cursor := 0
	for _, ls := range live {
		alignedLen := common.AlignedLen(int(ls.hdr.Length))
		writeObjectHeader(tmp[cursor:], ls.hdr)
		_, body := page.ObjectAt(ls.off)
		copy(tmp[cursor+objHeaderSize:], body)
		page.SetSlotOffset(ls.idx, int16(cursor))
		cursor += objHeaderSize + alignedLen
	}
	copy(page.Bytes[headerLen:], tmp)
	page.SetFree(cursor)
	page.SetUnused(0)
}
