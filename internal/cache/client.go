package cache

import (
	"github.com/duskbrowser/core/internal/registry"
	"github.com/duskbrowser/core/internal/weburl"
)

// ClientOp is delivered to a Client's callback, mirroring chain.Op but
// scoped to the cache→client contract of spec.md §4.G ("process_queue").
type ClientOp int

const (
	ClientStart ClientOp = iota
	ClientSend
	ClientClose
	ClientAbort
	ClientRedirect
)

// ClientCallback receives an entry's content as it becomes available.
type ClientCallback func(op ClientOp, data []byte)

// ClientKey identifies a registered client, spec.md §4.A's keyed registry
// applied to cache clients.
type ClientKey = registry.Key

// TypeDispatcher assigns a content-handling callback once an entry's
// content type is known, for clients registered without one up front
// (spec.md §4.G "process_queue" step 1). The HTML/CSS parser and the
// image/text renderers it would hand off to are out of scope (spec.md
// §1); callers of Cache supply their own dispatcher.
type TypeDispatcher func(typeNormalized string, isRoot bool) ClientCallback

// Client is one consumer of an Entry: the navigation stack's root client,
// an inline image, a stylesheet fetch, and so on.
type Client struct {
	key       ClientKey
	entry     *Entry
	isRoot    bool
	requester weburl.URL // for first-party cookie/referrer checks
	callback  ClientCallback

	dispatched bool // callback has been content-type-assigned
	dataRef    bool // holds a reference via ref_data
	sentBytes  int  // bytes of Data/UTF8Data already delivered to callback
}

// IsRoot reports whether this client is the root (navigating) client of
// its entry, the one that receives redirect/download escalations.
func (c *Client) IsRoot() bool { return c.isRoot }
