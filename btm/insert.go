package btm

import (
	"github.com/odysseus-edu/storage/common"
	"github.com/sirupsen/logrus"
)

// Insert places kval/oid into the tree rooted at root. Recursion follows
// the tree from root to a leaf; a split anywhere along the path is
// propagated back up as an InternalItem for the parent to absorb, and a
// split at the root promotes a new level while keeping root's own
// PageID stable (rootInsert).
func (t *BtM) Insert(root common.PageID, kdesc *common.KeyDesc, kval []byte, oid common.ObjectID) error {
	if root.Nil() {
		return common.ErrBadParameter
	}
	if err := kdesc.Validate(); err != nil {
		return err
	}
	_, _, err := t.insertRec(root, kdesc, kval, oid)
	return err
}

func (t *BtM) insertRec(pid common.PageID, kdesc *common.KeyDesc, kval []byte, oid common.ObjectID) (split bool, ritem InternalItem, err error) {
	page, err := t.getPage(pid)
	if err != nil {
		return false, InternalItem{}, err
	}

	switch {
	case page.Type()&Internal != 0:
		_, idx := BinarySearchInternal(page, kdesc, kval)
		var childSPID common.ShortPageID
		if idx == -1 {
			childSPID = page.P0()
		} else {
			childSPID = page.InternalItemAt(idx).SPID
		}
		childPid := common.PageID{VolNo: pid.VolNo, PageNo: int32(childSPID)}

		childSplit, citem, err := t.insertRec(childPid, kdesc, kval, oid)
		if err != nil {
			t.free(pid)
			return false, InternalItem{}, err
		}
		if !childSplit {
			t.free(pid)
			return false, InternalItem{}, nil
		}

		selfSplit, r, err := t.insertInternalItem(page, idx+1, citem)
		if err != nil {
			t.free(pid)
			return false, InternalItem{}, err
		}
		if !selfSplit {
			if err := t.dirty(pid); err != nil {
				t.free(pid)
				return false, InternalItem{}, err
			}
			t.free(pid)
			return false, InternalItem{}, nil
		}
		if page.IsRoot() {
			if err := t.rootInsert(pid, page, r); err != nil {
				t.free(pid)
				return false, InternalItem{}, err
			}
			t.free(pid)
			return false, InternalItem{}, nil
		}
		if err := t.dirty(pid); err != nil {
			t.free(pid)
			return false, InternalItem{}, err
		}
		t.free(pid)
		return true, r, nil

	default: // leaf
		found, idx := BinarySearchLeaf(page, kdesc, kval)
		if found {
			t.free(pid)
			return false, InternalItem{}, common.ErrDuplicatedKey
		}

		selfSplit, r, err := t.insertLeafItem(page, idx+1, LeafItem{NObjects: 1, Kval: kval, Oid: oid})
		if err != nil {
			t.free(pid)
			return false, InternalItem{}, err
		}
		if !selfSplit {
			if err := t.dirty(pid); err != nil {
				t.free(pid)
				return false, InternalItem{}, err
			}
			t.free(pid)
			return false, InternalItem{}, nil
		}
		if page.IsRoot() {
			if err := t.rootInsert(pid, page, r); err != nil {
				t.free(pid)
				return false, InternalItem{}, err
			}
			t.free(pid)
			return false, InternalItem{}, nil
		}
		if err := t.dirty(pid); err != nil {
			t.free(pid)
			return false, InternalItem{}, err
		}
		t.free(pid)
		return true, r, nil
	}
}

// insertLeafItem inserts item at slot position idx, appending at Free
// when there's room, compacting first when only TotalFree covers it, and
// splitting when neither does.
func (t *BtM) insertLeafItem(page Page, idx int, item LeafItem) (split bool, ritem InternalItem, err error) {
	entryLen := leafEntryLen(len(item.Kval))
	needed := entryLen + slotSize

	switch {
	case needed <= page.ContiguousFree():
		off := page.Free()
		page.writeLeafEntry(off, item)
		page.SetNSlots(page.NSlots() + 1)
		page.insertSlotAt(idx, int16(off))
		page.SetFree(off + entryLen)
		return false, InternalItem{}, nil
	case needed <= page.TotalFree():
		CompactLeaf(page)
		off := page.Free()
		page.writeLeafEntry(off, item)
		page.SetNSlots(page.NSlots() + 1)
		page.insertSlotAt(idx, int16(off))
		page.SetFree(off + entryLen)
		return false, InternalItem{}, nil
	default:
		r, err := t.splitLeaf(page, idx-1, item)
		if err != nil {
			return false, InternalItem{}, err
		}
		return true, r, nil
	}
}

func (t *BtM) insertInternalItem(page Page, idx int, item InternalItem) (split bool, ritem InternalItem, err error) {
	entryLen := internalEntryLen(len(item.Kval))
	needed := entryLen + slotSize

	switch {
	case needed <= page.ContiguousFree():
		off := page.Free()
		page.writeInternalEntry(off, item)
		page.SetNSlots(page.NSlots() + 1)
		page.insertSlotAt(idx, int16(off))
		page.SetFree(off + entryLen)
		return false, InternalItem{}, nil
	case needed <= page.TotalFree():
		CompactInternal(page)
		off := page.Free()
		page.writeInternalEntry(off, item)
		page.SetNSlots(page.NSlots() + 1)
		page.insertSlotAt(idx, int16(off))
		page.SetFree(off + entryLen)
		return false, InternalItem{}, nil
	default:
		r, err := t.splitInternal(page, idx-1, item)
		if err != nil {
			return false, InternalItem{}, err
		}
		return true, r, nil
	}
}

func writeLeafItems(page Page, items []LeafItem) {
	page.SetNSlots(len(items))
	cursor := 0
	for i, it := range items {
		page.writeLeafEntry(cursor, it)
		page.SetSlotOffset(i, int16(cursor))
		cursor += leafEntryLen(len(it.Kval))
	}
	page.SetFree(cursor)
	page.SetUnused(0)
}

func writeInternalItems(page Page, items []InternalItem) {
	page.SetNSlots(len(items))
	cursor := 0
	for i, it := range items {
		page.writeInternalEntry(cursor, it)
		page.SetSlotOffset(i, int16(cursor))
		cursor += internalEntryLen(len(it.Kval))
	}
	page.SetFree(cursor)
	page.SetUnused(0)
}

// splitLeaf distributes fpage's nSlots existing entries plus the new
// item (logically inserted at position high+1) between fpage (kept in
// place, left half) and a newly allocated right sibling npage, spliced
// into the leaf chain immediately after fpage. It returns the
// InternalItem the caller must insert into the parent: npage's id paired
// with its first (smallest) key.
func (t *BtM) splitLeaf(fpage Page, high int, item LeafItem) (InternalItem, error) {
	fpid := fpage.PID()
	n := fpage.NSlots()
	old := make([]LeafItem, n)
	for i := 0; i < n; i++ {
		old[i] = fpage.LeafItemAt(i)
	}

	combined := make([]LeafItem, n+1)
	for i := 0; i <= n; i++ {
		switch {
		case i == high+1:
			combined[i] = item
		case i <= high:
			combined[i] = old[i]
		default:
			combined[i] = old[i-1]
		}
	}
	mid := (n + 1) / 2
	leftItems := combined[:mid+1]
	rightItems := combined[mid+1:]

	npid, err := t.allocPage(fpid.VolNo)
	if err != nil {
		return InternalItem{}, err
	}
	npage, err := t.getNewPage(npid)
	if err != nil {
		return InternalItem{}, err
	}
	npage.InitLeaf(npid, false)
	writeLeafItems(npage, rightItems)

	oldNext := fpage.NextPage()
	npage.SetPrevPage(common.ShortPageID(fpid.PageNo))
	npage.SetNextPage(oldNext)
	if err := t.dirty(npid); err != nil {
		t.free(npid)
		return InternalItem{}, err
	}

	if oldNext != common.NilShortPageID {
		nextPid := common.PageID{VolNo: fpid.VolNo, PageNo: int32(oldNext)}
		nextPage, err := t.getPage(nextPid)
		if err != nil {
			t.free(npid)
			return InternalItem{}, err
		}
		nextPage.SetPrevPage(common.ShortPageID(npid.PageNo))
		if derr := t.dirty(nextPid); derr != nil {
			t.free(nextPid)
			t.free(npid)
			return InternalItem{}, derr
		}
		if ferr := t.free(nextPid); ferr != nil {
			t.free(npid)
			return InternalItem{}, ferr
		}
	}

	fpage.SetNSlots(0)
	fpage.SetFree(0)
	fpage.SetUnused(0)
	writeLeafItems(fpage, leftItems)
	fpage.SetNextPage(common.ShortPageID(npid.PageNo))

	if err := t.free(npid); err != nil {
		return InternalItem{}, err
	}

	ritem := InternalItem{
		SPID: common.ShortPageID(npid.PageNo),
		Kval: append([]byte(nil), rightItems[0].Kval...),
	}
	t.log.WithFields(logrus.Fields{"fpid": fpid, "npid": npid}).Debug("btm: leaf split")
	return ritem, nil
}

// splitInternal is splitLeaf's internal-page counterpart: the middle
// combined entry is promoted into the parent (its key and spid become
// ritem) rather than copied into either half; npage's p0 becomes the
// promoted spid. Internal pages carry no sibling chain.
func (t *BtM) splitInternal(fpage Page, high int, item InternalItem) (InternalItem, error) {
	fpid := fpage.PID()
	n := fpage.NSlots()
	old := make([]InternalItem, n)
	for i := 0; i < n; i++ {
		old[i] = fpage.InternalItemAt(i)
	}

	combined := make([]InternalItem, n+1)
	for i := 0; i <= n; i++ {
		switch {
		case i == high+1:
			combined[i] = item
		case i <= high:
			combined[i] = old[i]
		default:
			combined[i] = old[i-1]
		}
	}
	mid := (n + 1) / 2
	promoted := combined[mid+1]
	leftItems := combined[:mid+1]
	rightItems := combined[mid+2:]

	npid, err := t.allocPage(fpid.VolNo)
	if err != nil {
		return InternalItem{}, err
	}
	npage, err := t.getNewPage(npid)
	if err != nil {
		return InternalItem{}, err
	}
	npage.InitInternal(npid, promoted.SPID, false)
	writeInternalItems(npage, rightItems)
	if err := t.dirty(npid); err != nil {
		t.free(npid)
		return InternalItem{}, err
	}
	if err := t.free(npid); err != nil {
		return InternalItem{}, err
	}

	fpage.SetNSlots(0)
	fpage.SetFree(0)
	fpage.SetUnused(0)
	writeInternalItems(fpage, leftItems)

	ritem := InternalItem{
		SPID: common.ShortPageID(npid.PageNo),
		Kval: append([]byte(nil), promoted.Kval...),
	}
	t.log.WithFields(logrus.Fields{"fpid": fpid, "npid": npid}).Debug("btm: internal page split")
	return ritem, nil
}

// rootInsert handles a split reported all the way back up to the root:
// root's current (post-split, left-half) bytes are copied to a freshly
// allocated page, and root's own PageID is re-initialized as a new
// internal root with p0 pointing at that copy and a single slot holding
// item (which already points at the right half materialized by the
// split that triggered this promotion). This keeps CreateIndex's
// returned PageID valid across unlimited insertions.
func (t *BtM) rootInsert(pid common.PageID, page Page, item InternalItem) error {
	newPid, err := t.allocPage(pid.VolNo)
	if err != nil {
		return err
	}
	newPage, err := t.getNewPage(newPid)
	if err != nil {
		return err
	}
	copy(newPage.Bytes, page.Bytes)
	newPage.SetPID(newPid)
	newPage.SetType(newPage.Type() &^ Root)

	// (type & LEAF) != 0: if the promoted-from page was a leaf, the
	// chain's successor (now on the other side of fpage's original
	// nextPage link) must point back at the copy, not at root's PageID.
	if newPage.Type()&Leaf != 0 {
		next := newPage.NextPage()
		if next != common.NilShortPageID {
			nextPid := common.PageID{VolNo: pid.VolNo, PageNo: int32(next)}
			nextPage, err := t.getPage(nextPid)
			if err != nil {
				t.free(newPid)
				return err
			}
			nextPage.SetPrevPage(common.ShortPageID(newPid.PageNo))
			if derr := t.dirty(nextPid); derr != nil {
				t.free(nextPid)
				t.free(newPid)
				return derr
			}
			if ferr := t.free(nextPid); ferr != nil {
				t.free(newPid)
				return ferr
			}
		}
	}
	if err := t.dirty(newPid); err != nil {
		t.free(newPid)
		return err
	}
	if err := t.free(newPid); err != nil {
		return err
	}

	page.InitInternal(pid, common.ShortPageID(newPid.PageNo), true)
	page.writeInternalEntry(0, item)
	page.SetNSlots(1)
	page.SetSlotOffset(0, 0)
	page.SetFree(internalEntryLen(len(item.Kval)))
	t.log.WithFields(logrus.Fields{"root": pid, "newPid": newPid}).Debug("btm: root promotion")
	return t.dirty(pid)
}
