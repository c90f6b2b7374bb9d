package btm

import "github.com/odysseus-edu/storage/common"

// binarySearch returns (found, idx): idx is the greatest slot whose key
// is <= kval, or -1 if every key exceeds it; found is true iff the key
// at idx equals kval. keyAt(i) must return slot i's key bytes for
// i in [0, n). leftmostOnTie selects the smallest equal slot (used by
// leaf searches); the rightmost equal slot is picked otherwise (used by
// internal searches), matching the "keys at slot i separate subtree i-1
// from subtree i" invariant.
func binarySearch(kdesc *common.KeyDesc, kval []byte, n int, keyAt func(int) []byte, leftmostOnTie bool) (found bool, idx int) {
	idx = -1
	lo, hi := 0, n-1
	for lo <= hi {
		mid := (lo + hi) / 2
		c, err := common.CompareKey(kdesc, keyAt(mid), kval)
		if err != nil {
			// Caller is expected to have validated kdesc already; treat
			// an unsupported part type as "no match" rather than panic.
			return false, -1
		}
		switch {
		case c == 0:
			idx = mid
			found = true
			if leftmostOnTie {
				hi = mid - 1
			} else {
				lo = mid + 1
			}
		case c < 0:
			idx = mid
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return found, idx
}

// BinarySearchInternal searches an internal page's slots.
func BinarySearchInternal(page Page, kdesc *common.KeyDesc, kval []byte) (found bool, idx int) {
	n := page.NSlots()
	return binarySearch(kdesc, kval, n, func(i int) []byte { return page.InternalItemAt(i).Kval }, false)
}

// BinarySearchLeaf searches a leaf page's slots.
func BinarySearchLeaf(page Page, kdesc *common.KeyDesc, kval []byte) (found bool, idx int) {
	n := page.NSlots()
	return binarySearch(kdesc, kval, n, func(i int) []byte { return page.LeafItemAt(i).Kval }, true)
}
