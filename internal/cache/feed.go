package cache

import (
	"net/http"

	"github.com/duskbrowser/core/internal/chain"
	"github.com/duskbrowser/core/internal/decode"
	"github.com/duskbrowser/core/internal/weburl"
)

// sniffWindow is how many leading body bytes content-type sniffing needs
// before GotData, per spec.md §4.G "the first 256 bytes".
const sniffWindow = 256

// Feed delivers one chain message (spec.md §4.B) from a transport backend
// into web's entry: Send carries raw wire bytes (header or body, the
// entry doesn't know which until the header is complete), End finalizes
// decoders, Abort propagates failure to every client.
func (c *Cache) Feed(web weburl.URL, op chain.Op, data []byte) {
	c.mu.Lock()
	entry, ok := c.entries[entryKey(web)]
	c.mu.Unlock()
	if !ok {
		return
	}

	entry.lock()
	defer entry.unlock()

	switch op {
	case chain.Send:
		c.feedSend(entry, data)
	case chain.End:
		c.feedEnd(entry)
	case chain.Abort:
		c.feedAbort(entry, data)
	}
}

func (c *Cache) feedSend(e *Entry, chunk []byte) {
	if !e.Flags.Has(GotHeader) {
		body, complete := c.feedHeader(e, chunk)
		if !complete {
			return
		}
		if len(body) > 0 {
			c.appendBody(e, body)
		}
		return
	}
	c.appendBody(e, chunk)
}

func (c *Cache) appendBody(e *Entry, raw []byte) {
	if e.TransferDecoder == nil {
		e.TransferDecoder = decode.Identity()
	}
	if e.ContentDecoder == nil {
		e.ContentDecoder = decode.Identity()
	}
	e.TransferSize += int64(len(raw))

	transferred := e.TransferDecoder.Process(raw)
	decoded := e.ContentDecoder.Process(transferred)
	e.Data = append(e.Data, decoded...)

	if e.CharsetDecoder != nil && e.DataRefCount > 0 {
		e.UTF8Data = append(e.UTF8Data, e.CharsetDecoder.Process(decoded)...)
	}

	if !e.Flags.Has(GotContentType) && len(e.Data) >= sniffWindow {
		c.sniff(e, e.Data[:sniffWindow])
	}
}

func (c *Cache) feedEnd(e *Entry) {
	if e.TransferDecoder != nil && e.ContentDecoder != nil {
		transferTail := e.TransferDecoder.Finalize()
		contentTail := append(e.ContentDecoder.Process(transferTail), e.ContentDecoder.Finalize()...)
		e.Data = append(e.Data, contentTail...)
		if e.CharsetDecoder != nil && e.DataRefCount > 0 {
			e.UTF8Data = append(e.UTF8Data, append(e.CharsetDecoder.Process(contentTail), e.CharsetDecoder.Finalize()...)...)
		}
	}
	if !e.Flags.Has(GotContentType) {
		c.sniff(e, e.Data)
	}
	e.Flags |= GotData
	e.TransferDecoder = nil
	e.ContentDecoder = nil
}

func (c *Cache) feedAbort(e *Entry, reason []byte) {
	c.mu.Lock()
	delete(c.entries, entryKey(e.URL))
	c.mu.Unlock()
	for _, client := range e.clients {
		c.unrefData(e, client)
		client.callback(ClientAbort, reason)
	}
}

// sniff fills TypeDetected/TypeNormalized from sample when the HTTP
// header did not declare a type (spec.md §4.G "Content-type
// determination"). net/http.DetectContentType is the ecosystem-standard
// MIME sniffer; no third-party sniffing library appears anywhere in the
// corpus (see DESIGN.md).
func (c *Cache) sniff(e *Entry, sample []byte) {
	e.TypeDetected = http.DetectContentType(sample)
	e.Flags |= GotContentType
	if e.TypeHeader == "" {
		e.TypeNormalized = e.TypeDetected
	} else if e.TypeNormalized == "" {
		e.TypeNormalized = e.TypeHeader
	}
}

// ApplyMeta applies an HTML META HTTP-EQUIV charset override (spec.md
// §4.G "META HTTP-EQUIV from HTML may override only the charset
// portion"). Setting a META charset when one is already active
// reinitializes the charset decoder and invalidates UTF8Data.
func (c *Cache) ApplyMeta(web weburl.URL, charset string) {
	c.mu.Lock()
	e, ok := c.entries[entryKey(web)]
	c.mu.Unlock()
	if !ok {
		return
	}
	e.lock()
	defer e.unlock()

	e.TypeMeta = charset
	dec, err := decode.NewCharset(charset)
	if err != nil {
		return
	}
	e.CharsetDecoder = dec
	e.UTF8Data = nil
	if e.DataRefCount > 0 {
		e.UTF8Data = append([]byte(nil), e.CharsetDecoder.Process(e.Data)...)
	}
}
