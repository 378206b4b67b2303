// Package cache implements the shared content cache of spec.md §4.G: a
// URL-keyed store of in-flight and completed fetches, multiplexing many
// clients per URL and driving incremental delivery as bytes arrive.
//
// Generalizes the teacher's internal/cache.Store (danielloader-oci-pull-through),
// which only ever held one blob plus a metadata sidecar for one OCI digest,
// into a richer per-URL entry that tracks HTTP header state, redirects,
// auth challenges, and reference-counted transcoded buffers.
package cache

import (
	"net/http"
	"sync"

	"github.com/duskbrowser/core/internal/decode"
	"github.com/duskbrowser/core/internal/weburl"
)

// Flags tracks entry progress and outcome, spec.md §3 "CacheEntry".
type Flags uint32

const (
	IsEmpty Flags = 1 << iota
	GotHeader
	GotLength
	GotContentType
	GotData
	Redirect
	ForceRedirect
	TempRedirect
	NotFound
	RedirectLoop
	HugeFile
)

func (f Flags) Has(want Flags) bool { return f&want == want }

// Entry is the cache's per-URL record, owned by the Cache and referenced
// by its clients. Corresponds field-for-field to spec.md §3 "CacheEntry".
type Entry struct {
	mu sync.Mutex

	URL   weburl.URL
	Flags Flags

	TypeDetected   string // sniffed from body bytes
	TypeHeader     string // HTTP Content-Type, as declared
	TypeMeta       string // META HTTP-EQUIV override (charset portion only)
	TypeNormalized string // the type process_queue actually dispatches on

	Header   http.Header
	Location *weburl.URL // redirect target, when Flags.Has(Redirect)
	Auth     []string    // WWW-Authenticate challenges, consumed once

	Data     []byte // raw decoded bytes
	UTF8Data []byte // transcoded bytes, valid only while DataRefCount > 0

	DataRefCount int

	TransferDecoder decode.Decoder
	ContentDecoder  decode.Decoder
	CharsetDecoder  *decode.Charset

	ExpectedSize int64 // declared Content-Length, -1 if unknown
	TransferSize int64 // bytes observed so far (pre-decode)

	headerBuf []byte // accumulates until the first blank line

	clients []*Client // enqueue order, per spec.md §5 ordering guarantee

	redirectFired  bool       // "exactly one redirect action... per entry per root-URL client"
	redirectDepth  int        // recursive redirect count leading to this entry
	firstRequester weburl.URL // requester of the first client, for first-party cookie gating
}

func newEntry(u weburl.URL) *Entry {
	return &Entry{
		URL:          u,
		Flags:        IsEmpty,
		Header:       make(http.Header),
		ExpectedSize: -1,
	}
}

// lock/unlock are exported as methods (not embedding sync.Mutex directly)
// so Cache code reads as deliberate critical sections rather than implicit
// mutex promotion.
func (e *Entry) lock()   { e.mu.Lock() }
func (e *Entry) unlock() { e.mu.Unlock() }
