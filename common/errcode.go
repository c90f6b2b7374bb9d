package common

import "fmt"

// Code is one of the stable, externally-visible negative error codes.
// It implements error so callers can use errors.Is and %w, but
// validation and domain errors are returned bare, never wrapped, so
// identity comparison always works.
type Code int

// Error codes. Values are negative and stable; eNOERROR is zero.
const (
	NoError Code = 0

	ErrBadParameter           Code = -1
	ErrNoUnfixedBuf           Code = -2 // eNOUNFIXEDBUF_BFM
	ErrBadBufIndex            Code = -3 // eBADBUFINDEX_BFM
	ErrNotFoundBfM            Code = -4 // eNOTFOUND_BFM
	ErrNotSupportedBfM        Code = -5 // eNOTSUPPORTED_EDUBFM
	ErrNotSupportedBtM        Code = -6 // eNOTSUPPORTED_EDUBTM
	ErrNotSupportedOM         Code = -7 // eNOTSUPPORTED_EDUOM
	ErrBadCatalogObject       Code = -8 // eBADCATALOGOBJECT_OM
	ErrBadObjectID            Code = -9 // eBADOBJECTID_OM
	ErrBadCursor              Code = -10
	ErrDuplicatedKey          Code = -11 // eDUPLICATEDKEY_BTM
	ErrBadBtreePage           Code = -12 // eBADBTREEPAGE_BTM
	ErrBadCompOp              Code = -13 // eBADCOMPOP_BTM
	ErrIO                     Code = -14
)

var names = map[Code]string{
	NoError:             "eNOERROR",
	ErrBadParameter:     "eBADPARAMETER",
	ErrNoUnfixedBuf:     "eNOUNFIXEDBUF_BFM",
	ErrBadBufIndex:      "eBADBUFINDEX_BFM",
	ErrNotFoundBfM:      "eNOTFOUND_BFM",
	ErrNotSupportedBfM:  "eNOTSUPPORTED_EDUBFM",
	ErrNotSupportedBtM:  "eNOTSUPPORTED_EDUBTM",
	ErrNotSupportedOM:   "eNOTSUPPORTED_EDUOM",
	ErrBadCatalogObject: "eBADCATALOGOBJECT_OM",
	ErrBadObjectID:      "eBADOBJECTID_OM",
	ErrBadCursor:        "eBADCURSOR",
	ErrDuplicatedKey:    "eDUPLICATEDKEY_BTM",
	ErrBadBtreePage:     "eBADBTREEPAGE_BTM",
	ErrBadCompOp:        "eBADCOMPOP_BTM",
	ErrIO:               "eIO",
}

func (c Code) Error() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("errcode(%d)", int(c))
}

// IsError reports whether c represents a failure.
func (c Code) IsError() bool { return c != NoError }
