package om

import (
	"github.com/odysseus-edu/storage/bfm"
	"github.com/odysseus-edu/storage/common"
	"github.com/sirupsen/logrus"
)

// OM is the object manager: it places and removes variable-sized
// records in slotted pages drawn from BfM's PAGE_BUF pool.
type OM struct {
	buf *bfm.BfM
	log *logrus.Logger
	// DeallocList accumulates pages freed by DestroyObject, in the
	// order they were freed. Nothing here reclaims volume space
	// automatically; an embedder drains this list (Drain) at a point
	// of its choosing (e.g. transaction commit) and hands the pages
	// back to its own allocator.
	DeallocList []common.PageID
}

// New creates an object manager over buf.
func New(buf *bfm.BfM, log *logrus.Logger) *OM {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &OM{buf: buf, log: log}
}

// Drain empties and returns the accumulated deallocation list.
func (o *OM) Drain() []common.PageID {
	out := o.DeallocList
	o.DeallocList = nil
	return out
}

func (o *OM) getPage(pid common.PageID) (Page, error) {
	b, err := o.buf.GetTrain(pid, bfm.PageBuf)
	if err != nil {
		return Page{}, err
	}
	return Page{Bytes: b}, nil
}

func (o *OM) getNewPage(pid common.PageID) (Page, error) {
	b, err := o.buf.GetNewTrain(pid, bfm.PageBuf)
	if err != nil {
		return Page{}, err
	}
	return Page{Bytes: b}, nil
}

func (o *OM) free(pid common.PageID) error {
	return o.buf.FreeTrain(pid, bfm.PageBuf)
}

func (o *OM) dirty(pid common.PageID) error {
	return o.buf.SetDirty(pid, bfm.PageBuf)
}

// CreateFile allocates a catalog page and an empty first data page,
// returning the catalog's own PageID (the "catObjForFile" handle every
// other OM operation takes).
func (o *OM) CreateFile(volNo int32) (common.PageID, error) {
	catPid, err := o.buf.AllocTrainFor(volNo)
	if err != nil {
		return common.PageID{}, err
	}
	cat, err := o.getNewPage(catPid)
	if err != nil {
		return common.PageID{}, err
	}
	fid := common.FileID{VolNo: volNo, PageNo: catPid.PageNo}
	Catalog{Bytes: cat.Bytes}.Init(fid)

	firstPid, err := o.buf.AllocTrainFor(volNo)
	if err != nil {
		return common.PageID{}, err
	}
	firstPage, err := o.getNewPage(firstPid)
	if err != nil {
		return common.PageID{}, err
	}
	firstPage.Init(firstPid, fid)
	if err := o.dirty(firstPid); err != nil {
		return common.PageID{}, err
	}
	if err := o.free(firstPid); err != nil {
		return common.PageID{}, err
	}

	c := Catalog{Bytes: cat.Bytes}
	c.SetFirstPage(common.ShortPageID(firstPid.PageNo))
	c.SetLastPage(common.ShortPageID(firstPid.PageNo))
	if err := o.putInAvailSpaceList(catPid, firstPid); err != nil {
		return common.PageID{}, err
	}
	if err := o.dirty(catPid); err != nil {
		return common.PageID{}, err
	}
	if err := o.free(catPid); err != nil {
		return common.PageID{}, err
	}
	return catPid, nil
}

// catalog pins and returns catObjForFile's catalog page, rejecting a nil
// handle or a page whose own FID doesn't name itself as its catalog —
// the Go equivalent of EduOM_DestroyObject's own
// "if (catObjForFile == NULL) ERR(eBADCATALOGOBJECT_OM)" parameter check.
func (o *OM) catalog(catObjForFile common.PageID) (Catalog, error) {
	if catObjForFile.Nil() {
		return Catalog{}, errBadCatalogObject
	}
	b, err := o.getPage(catObjForFile)
	if err != nil {
		return Catalog{}, err
	}
	cat := Catalog{Bytes: b.Bytes}
	if cat.FID().PageNo != catObjForFile.PageNo {
		o.free(catObjForFile)
		return Catalog{}, errBadCatalogObject
	}
	return cat, nil
}

// getUnique assigns the next per-page generation counter.
func (o *OM) getUnique(p Page) int16 {
	v := p.UniqueCounter()
	p.SetUniqueCounter(v + 1)
	return int16(v)
}

// putInAvailSpaceList inserts pid at the head of the avail-list matching
// its current (free+unused) band; a full page (band 0) joins no list.
func (o *OM) putInAvailSpaceList(catObjForFile, pid common.PageID) error {
	cat, err := o.catalog(catObjForFile)
	if err != nil {
		return err
	}
	defer o.free(catObjForFile)
	page, err := o.getPage(pid)
	if err != nil {
		return err
	}
	defer o.free(pid)

	band := AvailBand(page.ContiguousFree() + page.Unused())
	if band == 0 {
		page.SetAvailPrev(common.NilShortPageID)
		page.SetAvailNext(common.NilShortPageID)
		return o.dirty(pid)
	}

	head := cat.AvailList(band)
	page.SetAvailPrev(common.NilShortPageID)
	page.SetAvailNext(head)
	if head != common.NilShortPageID {
		headPid := common.PageID{VolNo: pid.VolNo, PageNo: int32(head)}
		headPage, err := o.getPage(headPid)
		if err != nil {
			return err
		}
		headPage.SetAvailPrev(common.ShortPageID(pid.PageNo))
		if err := o.dirty(headPid); err != nil {
			return err
		}
		if err := o.free(headPid); err != nil {
			return err
		}
	}
	cat.SetAvailList(band, common.ShortPageID(pid.PageNo))
	o.log.WithFields(logrus.Fields{"page": pid, "band": band}).Debug("om: avail-list insert")
	return o.dirty(pid)
}

// removeFromAvailSpaceList unlinks pid from whichever avail-list it is
// currently a member of. Membership is detected by pid being one of the
// five list heads or by its AvailPrev being non-nil; a page that is
// neither is treated as belonging to no list.
func (o *OM) removeFromAvailSpaceList(catObjForFile, pid common.PageID) error {
	cat, err := o.catalog(catObjForFile)
	if err != nil {
		return err
	}
	defer o.free(catObjForFile)
	page, err := o.getPage(pid)
	if err != nil {
		return err
	}
	defer o.free(pid)

	prev, next := page.AvailPrev(), page.AvailNext()

	isHead := false
	var headBand int
	for _, band := range []int{10, 20, 30, 40, 50} {
		if cat.AvailList(band) == common.ShortPageID(pid.PageNo) {
			isHead, headBand = true, band
			break
		}
	}
	if !isHead && prev == common.NilShortPageID {
		// Not a member of any list (was full, or never inserted).
		return nil
	}

	if isHead {
		cat.SetAvailList(headBand, next)
	} else if prev != common.NilShortPageID {
		prevPid := common.PageID{VolNo: pid.VolNo, PageNo: int32(prev)}
		prevPage, err := o.getPage(prevPid)
		if err != nil {
			return err
		}
		prevPage.SetAvailNext(next)
		if err := o.dirty(prevPid); err != nil {
			return err
		}
		if err := o.free(prevPid); err != nil {
			return err
		}
	}
	if next != common.NilShortPageID {
		nextPid := common.PageID{VolNo: pid.VolNo, PageNo: int32(next)}
		nextPage, err := o.getPage(nextPid)
		if err != nil {
			return err
		}
		nextPage.SetAvailPrev(prev)
		if err := o.dirty(nextPid); err != nil {
			return err
		}
		if err := o.free(nextPid); err != nil {
			return err
		}
	}
	page.SetAvailPrev(common.NilShortPageID)
	page.SetAvailNext(common.NilShortPageID)
	o.log.WithField("page", pid).Debug("om: avail-list remove")
	return o.dirty(pid)
}

// fileMapAddPage splices newPid into the file's page list immediately
// after afterPid (or at the tail, when afterPid is the current last page).
func (o *OM) fileMapAddPage(catObjForFile, afterPid, newPid common.PageID) error {
	cat, err := o.catalog(catObjForFile)
	if err != nil {
		return err
	}
	defer o.free(catObjForFile)
	after, err := o.getPage(afterPid)
	if err != nil {
		return err
	}

	oldNext := after.NextPage()
	after.SetNextPage(common.ShortPageID(newPid.PageNo))
	if err := o.dirty(afterPid); err != nil {
		return err
	}
	if err := o.free(afterPid); err != nil {
		return err
	}

	newPage, err := o.getPage(newPid)
	if err != nil {
		return err
	}
	newPage.SetPrevPage(common.ShortPageID(afterPid.PageNo))
	newPage.SetNextPage(oldNext)
	if err := o.dirty(newPid); err != nil {
		return err
	}
	if err := o.free(newPid); err != nil {
		return err
	}

	if oldNext != common.NilShortPageID {
		nextPid := common.PageID{VolNo: afterPid.VolNo, PageNo: int32(oldNext)}
		nextPage, err := o.getPage(nextPid)
		if err != nil {
			return err
		}
		nextPage.SetPrevPage(common.ShortPageID(newPid.PageNo))
		if err := o.dirty(nextPid); err != nil {
			return err
		}
		if err := o.free(nextPid); err != nil {
			return err
		}
	} else {
		cat.SetLastPage(common.ShortPageID(newPid.PageNo))
	}
	return nil
}

// fileMapDeletePage unlinks pid from the file's page list.
func (o *OM) fileMapDeletePage(catObjForFile, pid common.PageID) error {
	cat, err := o.catalog(catObjForFile)
	if err != nil {
		return err
	}
	defer o.free(catObjForFile)
	page, err := o.getPage(pid)
	if err != nil {
		return err
	}
	defer o.free(pid)

	prev, next := page.PrevPage(), page.NextPage()
	if prev != common.NilShortPageID {
		prevPid := common.PageID{VolNo: pid.VolNo, PageNo: int32(prev)}
		prevPage, err := o.getPage(prevPid)
		if err != nil {
			return err
		}
		prevPage.SetNextPage(next)
		if err := o.dirty(prevPid); err != nil {
			return err
		}
		if err := o.free(prevPid); err != nil {
			return err
		}
	} else {
		cat.SetFirstPage(next)
	}
	if next != common.NilShortPageID {
		nextPid := common.PageID{VolNo: pid.VolNo, PageNo: int32(next)}
		nextPage, err := o.getPage(nextPid)
		if err != nil {
			return err
		}
		nextPage.SetPrevPage(prev)
		if err := o.dirty(nextPid); err != nil {
			return err
		}
		if err := o.free(nextPid); err != nil {
			return err
		}
	} else {
		cat.SetLastPage(prev)
	}
	return nil
}

var errBadCatalogObject error = common.ErrBadCatalogObject
var errBadObjectID error = common.ErrBadObjectID
