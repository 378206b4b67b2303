package cache

// ProcessQueue runs spec.md §4.G's "process_queue": for every client whose
// entry has GotContentType, assign a callback if needed, deliver newly
// available bytes, close out finished entries, and fire at most one
// redirect per entry.
//
// Callers (the browser's single event-loop goroutine) run this once per
// turn; it replaces re-entrant dispatch from inside Feed, matching
// spec.md §5's "Send callbacks ... scheduling delayed_process_queue"
// suspension-point rule.
func (c *Cache) ProcessQueue() {
	c.mu.Lock()
	entries := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	// Clients on the delayed queue belong to these entries and are served below.
	c.delayed = c.delayed[:0]
	c.mu.Unlock()

	for _, e := range entries {
		c.dispatchEntry(e)
	}
}

func (c *Cache) dispatchEntry(e *Entry) {
	e.lock()
	defer e.unlock()

	if !e.Flags.Has(GotContentType) {
		return
	}

	finished := e.Flags.Has(GotData)
	redirecting := e.Flags.Has(Redirect) || e.Flags.Has(RedirectLoop)

	remaining := e.clients[:0]
	for _, client := range e.clients {
		c.dispatchClient(e, client)
		if redirecting && !e.redirectFired && client.isRoot {
			c.fireRedirect(e, client)
		}
		if finished {
			c.unrefData(e, client)
			continue // dequeued below
		}
		remaining = append(remaining, client)
	}
	if finished {
		e.clients = nil
	} else {
		e.clients = remaining
	}
}

func (c *Cache) dispatchClient(e *Entry, client *Client) {
	if !client.dispatched {
		if client.callback == nil && c.dispatcher != nil {
			client.callback = c.dispatcher(e.TypeNormalized, client.isRoot)
		}
		if client.callback == nil {
			client.callback = func(ClientOp, []byte) {}
		}
		client.dispatched = true
		// Cache_parse_header calls Cache_ref_data(entry) unconditionally
		// right after parsing headers (original_source/src/cache.c:789);
		// here, the first dispatch to a client is the equivalent moment a
		// client starts actually consuming the entry's buffer.
		c.refData(e, client)
		client.callback(ClientStart, nil)
	}

	source := e.Data
	if e.CharsetDecoder != nil && client.dataRef {
		source = e.UTF8Data
	}
	if len(source) > client.sentBytes {
		client.callback(ClientSend, source[client.sentBytes:])
		client.sentBytes = len(source)
	}

	if e.Flags.Has(GotData) {
		client.callback(ClientClose, nil)
	}
}

func (c *Cache) fireRedirect(e *Entry, rootClient *Client) {
	e.redirectFired = true

	if e.Flags.Has(RedirectLoop) {
		rootClient.callback(ClientAbort, []byte("redirect loop detected"))
		return
	}
	rootClient.callback(ClientRedirect, []byte(e.Location.String()))
}
