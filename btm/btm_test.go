package btm_test

import (
	"testing"

	"github.com/odysseus-edu/storage/bfm"
	"github.com/odysseus-edu/storage/btm"
	"github.com/odysseus-edu/storage/common"
	"github.com/odysseus-edu/storage/rdsm"
	"github.com/stretchr/testify/require"
)

func newTestBtM(t *testing.T, nFrames int) *btm.BtM {
	t.Helper()
	mgr := rdsm.NewManager()
	mgr.Mount(0, rdsm.NewMemVolume())
	_, err := mgr.AllocPages(0, 1024)
	require.NoError(t, err)
	b := bfm.New(mgr, bfm.Config{NPageBufs: nFrames, NLotLeafBufs: 4})
	return btm.New(b, nil)
}

func intKDesc() *common.KeyDesc {
	return &common.KeyDesc{Parts: []common.KeyPart{{Type: common.SmInt}}}
}

func oidFor(n int32) common.ObjectID {
	return common.ObjectID{PageID: common.PageID{VolNo: 0, PageNo: n}, SlotNo: 0, Unique: n}
}

func TestCreateIndexAndFetchEQRoundTrip(t *testing.T) {
	tree := newTestBtM(t, 32)
	root, err := tree.CreateIndex(0)
	require.NoError(t, err)

	kdesc := intKDesc()
	key := common.EncodeInt(42)
	oid := oidFor(42)
	require.NoError(t, tree.Insert(root, kdesc, key, oid))

	cur, err := tree.Fetch(root, kdesc, key, common.SmEQ, nil, common.SmEOF)
	require.NoError(t, err)
	require.Equal(t, btm.CursorOn, cur.Flag)
	require.Equal(t, oid, cur.Oid)
}

func TestDuplicateKeyRejectedScanStillSeesOriginal(t *testing.T) {
	tree := newTestBtM(t, 32)
	root, err := tree.CreateIndex(0)
	require.NoError(t, err)

	kdesc := intKDesc()
	key := common.EncodeInt(42)
	oidA := oidFor(1)
	oidB := oidFor(2)

	require.NoError(t, tree.Insert(root, kdesc, key, oidA))
	err = tree.Insert(root, kdesc, key, oidB)
	require.ErrorIs(t, err, common.ErrDuplicatedKey)

	cur, err := tree.Fetch(root, kdesc, key, common.SmEQ, nil, common.SmEOF)
	require.NoError(t, err)
	require.Equal(t, btm.CursorOn, cur.Flag)
	require.Equal(t, oidA, cur.Oid)
}

func TestScanCoverageAscendingOrder(t *testing.T) {
	tree := newTestBtM(t, 32)
	root, err := tree.CreateIndex(0)
	require.NoError(t, err)
	kdesc := intKDesc()

	const n = 10
	for i := int32(1); i <= n; i++ {
		require.NoError(t, tree.Insert(root, kdesc, common.EncodeInt(i), oidFor(i)))
	}

	cur, err := tree.Fetch(root, kdesc, nil, common.SmBOF, nil, common.SmEOF)
	require.NoError(t, err)

	var seen []int32
	for cur.Flag == btm.CursorOn {
		seen = append(seen, common.DecodeInt(cur.Key))
		cur, err = tree.FetchNext(cur, kdesc, nil, common.SmEOF)
		require.NoError(t, err)
	}
	require.Equal(t, []int32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, seen)
}

func TestRangeBoundedScan(t *testing.T) {
	tree := newTestBtM(t, 32)
	root, err := tree.CreateIndex(0)
	require.NoError(t, err)
	kdesc := intKDesc()

	for i := int32(1); i <= 10; i++ {
		require.NoError(t, tree.Insert(root, kdesc, common.EncodeInt(i), oidFor(i)))
	}

	stop := common.EncodeInt(7)
	cur, err := tree.Fetch(root, kdesc, common.EncodeInt(3), common.SmGE, stop, common.SmLE)
	require.NoError(t, err)

	var seen []int32
	for cur.Flag == btm.CursorOn {
		seen = append(seen, common.DecodeInt(cur.Key))
		cur, err = tree.FetchNext(cur, kdesc, stop, common.SmLE)
		require.NoError(t, err)
	}
	require.Equal(t, []int32{3, 4, 5, 6, 7}, seen)
}

func TestDescendingScanViaGEStop(t *testing.T) {
	tree := newTestBtM(t, 32)
	root, err := tree.CreateIndex(0)
	require.NoError(t, err)
	kdesc := intKDesc()

	for i := int32(1); i <= 10; i++ {
		require.NoError(t, tree.Insert(root, kdesc, common.EncodeInt(i), oidFor(i)))
	}

	stop := common.EncodeInt(3)
	cur, err := tree.Fetch(root, kdesc, nil, common.SmEOF, stop, common.SmGE)
	require.NoError(t, err)

	var seen []int32
	for cur.Flag == btm.CursorOn {
		seen = append(seen, common.DecodeInt(cur.Key))
		cur, err = tree.FetchNext(cur, kdesc, stop, common.SmGE)
		require.NoError(t, err)
	}
	require.Equal(t, []int32{10, 9, 8, 7, 6, 5, 4, 3}, seen)
}

func TestFetchMissingKeyReturnsEOS(t *testing.T) {
	tree := newTestBtM(t, 32)
	root, err := tree.CreateIndex(0)
	require.NoError(t, err)
	kdesc := intKDesc()
	require.NoError(t, tree.Insert(root, kdesc, common.EncodeInt(1), oidFor(1)))

	cur, err := tree.Fetch(root, kdesc, common.EncodeInt(99), common.SmEQ, nil, common.SmEOF)
	require.NoError(t, err)
	require.Equal(t, btm.CursorEOS, cur.Flag)
}

func TestFetchNextOnEOSCursorStaysEOS(t *testing.T) {
	tree := newTestBtM(t, 32)
	root, err := tree.CreateIndex(0)
	require.NoError(t, err)
	kdesc := intKDesc()

	eos := btm.Cursor{Flag: btm.CursorEOS}
	next, err := tree.FetchNext(eos, kdesc, nil, common.SmEOF)
	require.NoError(t, err)
	require.Equal(t, btm.CursorEOS, next.Flag)
}

// TestManyInsertsForceSplitsAndRootPromotion inserts enough keys that
// leaves must split repeatedly and the root itself is forced to promote
// at least once, then checks root stability and full scan coverage —
// scenario 3/8 from the spec's testable properties.
func TestManyInsertsForceSplitsAndRootPromotion(t *testing.T) {
	tree := newTestBtM(t, 64)
	root, err := tree.CreateIndex(0)
	require.NoError(t, err)
	kdesc := intKDesc()

	const n = 2000
	for i := int32(0); i < n; i++ {
		require.NoError(t, tree.Insert(root, kdesc, common.EncodeInt(i), oidFor(i)))
	}

	cur, err := tree.Fetch(root, kdesc, nil, common.SmBOF, nil, common.SmEOF)
	require.NoError(t, err)

	count := 0
	var prev int32
	for cur.Flag == btm.CursorOn {
		k := common.DecodeInt(cur.Key)
		if count > 0 {
			require.Greater(t, k, prev)
		}
		prev = k
		count++
		cur, err = tree.FetchNext(cur, kdesc, nil, common.SmEOF)
		require.NoError(t, err)
	}
	require.Equal(t, n, count)

	// Root stability: the same PageID returned by CreateIndex must still
	// resolve to a valid, readable tree root after growth.
	cur, err = tree.Fetch(root, kdesc, common.EncodeInt(0), common.SmEQ, nil, common.SmEOF)
	require.NoError(t, err)
	require.Equal(t, btm.CursorOn, cur.Flag)
	require.Equal(t, oidFor(0), cur.Oid)
}

func TestVarStringKeyRoundTrip(t *testing.T) {
	tree := newTestBtM(t, 32)
	root, err := tree.CreateIndex(0)
	require.NoError(t, err)
	kdesc := &common.KeyDesc{Parts: []common.KeyPart{{Type: common.SmVarString}}}

	encode := func(s string) []byte {
		b := make([]byte, 1+len(s))
		b[0] = byte(len(s))
		copy(b[1:], s)
		return b
	}

	words := []string{"banana", "apple", "cherry"}
	for i, w := range words {
		require.NoError(t, tree.Insert(root, kdesc, encode(w), oidFor(int32(i))))
	}

	cur, err := tree.Fetch(root, kdesc, nil, common.SmBOF, nil, common.SmEOF)
	require.NoError(t, err)
	var seen []string
	for cur.Flag == btm.CursorOn {
		klen := int(cur.Key[0])
		seen = append(seen, string(cur.Key[1:1+klen]))
		cur, err = tree.FetchNext(cur, kdesc, nil, common.SmEOF)
		require.NoError(t, err)
	}
	require.Equal(t, []string{"apple", "banana", "cherry"}, seen)
}

func TestUnsupportedKeyTypeRejected(t *testing.T) {
	tree := newTestBtM(t, 8)
	root, err := tree.CreateIndex(0)
	require.NoError(t, err)
	kdesc := &common.KeyDesc{Parts: []common.KeyPart{{Type: common.PartType(99)}}}

	err = tree.Insert(root, kdesc, []byte{1, 2, 3, 4}, oidFor(1))
	require.ErrorIs(t, err, common.ErrNotSupportedBtM)
}

func TestFetchNilRootFails(t *testing.T) {
	tree := newTestBtM(t, 8)
	kdesc := intKDesc()
	_, err := tree.Fetch(common.PageID{PageNo: common.NilPageNo}, kdesc, nil, common.SmBOF, nil, common.SmEOF)
	require.ErrorIs(t, err, common.ErrBadParameter)
}
