package om

import (
	"fmt"

	"github.com/odysseus-edu/storage/common"
)

// ErrEndOfScan is returned by NextObject/PrevObject once iteration is
// exhausted. Its message carries common.EOS, the original end-of-scan
// status value, now reported as an error rather than a raw int.
var ErrEndOfScan = fmt.Errorf("om: end of scan (eos=%d)", common.EOS)

// NextObject returns the object immediately following cur in file scan
// order (page list order, then ascending slot), or ErrEndOfScan when cur
// is the last live object. cur == nil starts the scan at the first live object.
func (o *OM) NextObject(catObjForFile common.PageID, cur *common.ObjectID) (common.ObjectID, error) {
	cat, err := o.catalog(catObjForFile)
	if err != nil {
		return common.ObjectID{}, err
	}
	volNo := cat.FID().VolNo
	var pageNo common.ShortPageID
	startSlot := 0
	if cur == nil {
		pageNo = cat.FirstPage()
	} else {
		pageNo = common.ShortPageID(cur.PageNo)
		startSlot = int(cur.SlotNo) + 1
	}
	o.free(catObjForFile)

	for pageNo != common.NilShortPageID {
		pid := common.PageID{VolNo: volNo, PageNo: int32(pageNo)}
		page, err := o.getPage(pid)
		if err != nil {
			return common.ObjectID{}, err
		}
		for i := startSlot; i < page.NSlots(); i++ {
			off := page.SlotOffset(i)
			if off == common.EmptySlot {
				continue
			}
			oid := common.ObjectID{PageID: pid, SlotNo: int16(i), Unique: int32(page.SlotUnique(i))}
			o.free(pid)
			return oid, nil
		}
		next := page.NextPage()
		o.free(pid)
		pageNo = next
		startSlot = 0
	}
	return common.ObjectID{}, ErrEndOfScan
}

// PrevObject is NextObject's mirror image, walking backward via
// prevPage and descending slot number.
func (o *OM) PrevObject(catObjForFile common.PageID, cur *common.ObjectID) (common.ObjectID, error) {
	cat, err := o.catalog(catObjForFile)
	if err != nil {
		return common.ObjectID{}, err
	}
	volNo := cat.FID().VolNo
	var pageNo common.ShortPageID
	startSlot := -1
	if cur == nil {
		pageNo = cat.LastPage()
	} else {
		pageNo = common.ShortPageID(cur.PageNo)
		startSlot = int(cur.SlotNo) - 1
	}
	o.free(catObjForFile)

	for pageNo != common.NilShortPageID {
		pid := common.PageID{VolNo: volNo, PageNo: int32(pageNo)}
		page, err := o.getPage(pid)
		if err != nil {
			return common.ObjectID{}, err
		}
		from := startSlot
		if from < 0 {
			from = page.NSlots() - 1
		}
		for i := from; i >= 0; i-- {
			off := page.SlotOffset(i)
			if off == common.EmptySlot {
				continue
			}
			oid := common.ObjectID{PageID: pid, SlotNo: int16(i), Unique: int32(page.SlotUnique(i))}
			o.free(pid)
			return oid, nil
		}
		prev := page.PrevPage()
		o.free(pid)
		pageNo = prev
		startSlot = -1
	}
	return common.ObjectID{}, ErrEndOfScan
}
