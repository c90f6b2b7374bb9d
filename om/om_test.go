package om_test

import (
	"testing"

	"github.com/odysseus-edu/storage/bfm"
	"github.com/odysseus-edu/storage/common"
	"github.com/odysseus-edu/storage/om"
	"github.com/odysseus-edu/storage/rdsm"
	"github.com/stretchr/testify/require"
)

func newTestOM(t *testing.T) *om.OM {
	t.Helper()
	mgr := rdsm.NewManager()
	mgr.Mount(0, rdsm.NewMemVolume())
	_, err := mgr.AllocPages(0, 256)
	require.NoError(t, err)
	b := bfm.New(mgr, bfm.Config{NPageBufs: 16, NLotLeafBufs: 4})
	return om.New(b, nil)
}

func TestCreateAndGetObjectRoundTrip(t *testing.T) {
	o := newTestOM(t)
	catPid, err := o.CreateFile(0)
	require.NoError(t, err)

	data := []byte("hello, object manager")
	oid, err := o.CreateObject(catPid, nil, len(data), data)
	require.NoError(t, err)

	got, err := o.GetObject(oid)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestDestroyObjectFreesSlot(t *testing.T) {
	o := newTestOM(t)
	catPid, err := o.CreateFile(0)
	require.NoError(t, err)

	data := []byte("to be destroyed")
	oid, err := o.CreateObject(catPid, nil, len(data), data)
	require.NoError(t, err)

	require.NoError(t, o.DestroyObject(catPid, oid))

	_, err = o.GetObject(oid)
	require.Error(t, err)
}

func TestDestroyLastObjectInPageDeallocatesIt(t *testing.T) {
	o := newTestOM(t)
	catPid, err := o.CreateFile(0)
	require.NoError(t, err)

	data := []byte("only object")
	oid, err := o.CreateObject(catPid, nil, len(data), data)
	require.NoError(t, err)
	require.Empty(t, o.DeallocList)

	require.NoError(t, o.DestroyObject(catPid, oid))
	require.Len(t, o.DeallocList, 1)
}

func TestObjectIterationAcrossPagesSkipsDestroyedSlot(t *testing.T) {
	o := newTestOM(t)
	catPid, err := o.CreateFile(0)
	require.NoError(t, err)

	// Objects big enough that each page can only hold one, forcing
	// CreateObject to allocate a fresh page per call.
	big := make([]byte, 3000)
	var created []common.ObjectID
	for i := 0; i < 3; i++ {
		oid, err := o.CreateObject(catPid, nil, len(big), big)
		require.NoError(t, err)
		created = append(created, oid)
	}

	require.NoError(t, o.DestroyObject(catPid, created[1]))

	var seen []common.ObjectID
	var cur *common.ObjectID
	for {
		next, err := o.NextObject(catPid, cur)
		if err == om.ErrEndOfScan {
			break
		}
		require.NoError(t, err)
		seen = append(seen, next)
		cur = &next
	}

	require.Len(t, seen, 2)
	require.Equal(t, created[0], seen[0])
	require.Equal(t, created[2], seen[1])
}

func TestCreateNearObjectAfterDestroysKeepsSurvivorReadable(t *testing.T) {
	o := newTestOM(t)
	catPid, err := o.CreateFile(0)
	require.NoError(t, err)

	data := []byte("compactable object body")
	var oids []common.ObjectID
	for i := 0; i < 3; i++ {
		oid, err := o.CreateObject(catPid, nil, len(data), data)
		require.NoError(t, err)
		oids = append(oids, oid)
	}

	require.NoError(t, o.DestroyObject(catPid, oids[0]))
	require.NoError(t, o.DestroyObject(catPid, oids[1]))

	// The one surviving object must still read back correctly after the
	// holes left by destruction, and so must a new object placed near it
	// (which reuses the first freed slot).
	more, err := o.CreateObject(catPid, &oids[2], len(data), data)
	require.NoError(t, err)

	got, err := o.GetObject(oids[2])
	require.NoError(t, err)
	require.Equal(t, data, got)

	got2, err := o.GetObject(more)
	require.NoError(t, err)
	require.Equal(t, data, got2)
}
