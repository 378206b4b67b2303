package cache

// RefData implements spec.md §4.G "ref_data(entry)": the client named by
// key is given a reference to the entry's live buffer. On the first
// reference while a charset decoder is active, UTF8Data is (re)built from
// the decoded bytes seen so far.
func (c *Cache) RefData(key ClientKey) {
	c.mu.Lock()
	client, ok := c.clients.Lookup(key)
	c.mu.Unlock()
	if !ok {
		return
	}

	e := client.entry
	e.lock()
	defer e.unlock()
	c.refData(e, client)
}

// refData is RefData's body, callable from code that already holds e's
// lock (dispatchClient, called from dispatchEntry under e.lock()).
func (c *Cache) refData(e *Entry, client *Client) {
	if client.dataRef {
		return
	}
	client.dataRef = true
	e.DataRefCount++

	if e.DataRefCount == 1 && e.CharsetDecoder != nil && len(e.UTF8Data) == 0 {
		e.UTF8Data = append([]byte(nil), e.CharsetDecoder.Process(e.Data)...)
	}
}

// UnrefData implements "unref_data(entry)": decrements the reference
// count and, on reaching zero, frees UTF8Data (spec.md §4.G).
func (c *Cache) UnrefData(key ClientKey) {
	c.mu.Lock()
	client, ok := c.clients.Lookup(key)
	c.mu.Unlock()
	if !ok {
		return
	}

	e := client.entry
	e.lock()
	defer e.unlock()
	c.unrefData(e, client)
}

// unrefData is UnrefData's body, callable from code that already holds
// e's lock.
func (c *Cache) unrefData(e *Entry, client *Client) {
	if !client.dataRef {
		return
	}
	client.dataRef = false
	if e.DataRefCount > 0 {
		e.DataRefCount--
	}
	if e.DataRefCount == 0 {
		e.UTF8Data = nil
	}
}
