package heap

import "github.com/pkg/errors"

// True errors — reported to the caller, never swallowed on a path they observe.
var (
	// ErrFileExists is returned by CreateHeapFile when the name is already in use.
	ErrFileExists = errors.New("heap: file already exists")
	// ErrFileEOF is returned by HeapFileScan.ScanNext once the chain is exhausted.
	ErrFileEOF = errors.New("heap: scan exhausted")
	// ErrBadScanParm is returned by HeapFileScan.StartScan for an invalid filter.
	ErrBadScanParm = errors.New("heap: invalid scan parameter")
	// ErrInvalidRecLen is returned by InsertFileScan.InsertRecord when the record
	// exceeds a page's payload capacity.
	ErrInvalidRecLen = errors.New("heap: record exceeds page capacity")
)

// Recoverable sentinels — control values consumed internally, never wrapped
// and never surfaced as a failure on their own.
var (
	// ErrNoSpace signals a page cannot accept one more record.
	ErrNoSpace = errors.New("heap: page has no space")
	// ErrNoRecords signals a page (or slot) holds no live record.
	ErrNoRecords = errors.New("heap: no records")
	// ErrEndOfPage signals intra-page iteration has reached the last slot.
	ErrEndOfPage = errors.New("heap: end of page")
)
