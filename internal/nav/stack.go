// Package nav implements the per-window navigation stack (spec.md §4.I):
// back/forward history with saved scroll positions, the "expect" handshake
// a root-URL fetch goes through before it is committed to history, and the
// delayed repush/redirect-0 mechanisms used for charset switches and
// zero-delay META refreshes.
//
// Grounded on original_source/src/nav.c's nav_stack_item + BrowserWindow
// fields (bw->nav_stack, bw->nav_stack_ptr, bw->expect_url-via-Bw_expect,
// bw->meta_refresh_url/meta_refresh_status): that file's one BrowserWindow
// per open window becomes one *Stack per window here, and its combined
// global history list + per-window index list collapses into a single
// ordered []entry per Stack, since this package models one window's
// navigation rather than dillo's shared-history-across-windows design.
package nav

import "github.com/duskbrowser/core/internal/weburl"

// Opener requests that the fetch pipeline satisfy target (Nav_open_url's
// a_Capi_open_url call). requester is the referring page, offset is the
// stack-pointer delta this navigation represents (0 for a fresh push,
// ±1 for back/forward, an arbitrary delta for Jump).
type Opener interface {
	OpenURL(target, requester weburl.URL, offset int)
}

// ScrollPort lets the stack save the outgoing page's scroll position and
// restore the incoming page's, without owning a widget itself
// (a_UIcmd_get_scroll_xy/a_UIcmd_set_scroll_xy/a_UIcmd_set_scroll_by_fragment).
type ScrollPort interface {
	Position() (x, y int)
	ScrollTo(x, y int)
	ScrollToFragment(fragment string)
}

// Scheduler defers fn to the next event-loop turn (a_Timeout_add(0.0, ...)):
// "lets CCC operations end before making the request" (a_Nav_reload's
// comment). The browser's single-goroutine loop (spec.md §5) implements
// this by queuing fn for its next iteration.
type Scheduler interface {
	Defer(fn func())
}

// entry is one stack slot: a visited URL and the scroll position it had
// when navigation last left it (nav_stack_item).
type entry struct {
	url     weburl.URL
	scrollX int
	scrollY int
}

// expectKind distinguishes why the stack is waiting on a root-URL fetch,
// since original_source uses a single URL_ReloadPage bit for this; that bit
// isn't part of weburl.Flags (routing metadata a backend cares about), so
// it lives here instead as bookkeeping local to the expect handshake.
type expectKind int

const (
	expectPush expectKind = iota
	expectReload
	expectRepush
)

// Stack is one window's navigation history plus in-flight expect state.
type Stack struct {
	entries []entry
	ptr     int // -1 when empty

	expecting  bool
	expectURL  weburl.URL
	expectKind expectKind

	metaRefreshURL    weburl.URL
	metaRefreshStatus int

	opener    Opener
	scroll    ScrollPort
	scheduler Scheduler
}

// New creates an empty navigation stack. scroll and scheduler may be nil
// (tests and headless fetches don't need scroll restoration or deferral);
// opener is required for Push/Back/Forward/Jump/Reload/Repush to have any
// effect.
func New(opener Opener, scroll ScrollPort, scheduler Scheduler) *Stack {
	return &Stack{ptr: -1, opener: opener, scroll: scroll, scheduler: scheduler}
}

// Ptr returns the current stack pointer, -1 when the stack is empty
// (a_Nav_stack_ptr).
func (s *Stack) Ptr() int { return s.ptr }

// Size returns the number of entries (a_Nav_stack_size).
func (s *Stack) Size() int { return len(s.entries) }

// URLAt returns the URL at stack position i (a_Nav_get_uidx plumbed
// through history).
func (s *Stack) URLAt(i int) (weburl.URL, bool) {
	if i < 0 || i >= len(s.entries) {
		return weburl.URL{}, false
	}
	return s.entries[i].url, true
}

// TopURL returns the URL at the current stack pointer (a_Nav_get_top_uidx).
func (s *Stack) TopURL() (weburl.URL, bool) { return s.URLAt(s.ptr) }

func (s *Stack) movePtrBy(offset int) {
	if offset == 0 {
		return
	}
	n := s.ptr + offset
	if n < 0 || n >= len(s.entries) {
		return
	}
	s.ptr = n
}

// Back moves to the previous history entry, if any (a_Nav_back).
func (s *Stack) Back() {
	idx := s.ptr - 1
	if idx < 0 {
		return
	}
	s.CancelExpect()
	url, _ := s.URLAt(idx)
	s.openURL(url, weburl.URL{}, -1)
}

// Forward moves to the next history entry, if any (a_Nav_forw).
func (s *Stack) Forward() {
	idx := s.ptr + 1
	if idx >= len(s.entries) {
		return
	}
	s.CancelExpect()
	url, _ := s.URLAt(idx)
	s.openURL(url, weburl.URL{}, +1)
}

// Jump moves the stack pointer by offset in the current window
// (a_Nav_jump with new_bw=false; opening in a new window is the caller's
// concern, not this package's).
func (s *Stack) Jump(offset int) {
	idx := s.ptr + offset
	if idx < 0 || idx >= len(s.entries) {
		return
	}
	s.CancelExpect()
	url, _ := s.URLAt(idx)
	s.openURL(url, weburl.URL{}, offset)
}

// Push makes target the page being navigated to, starting the expect
// handshake (a_Nav_push). A second push for the same URL+fragment while
// already expecting it is a no-op, the common case being a double click.
func (s *Stack) Push(target, requester weburl.URL) {
	if s.expecting && weburl.EqualWithFragment(s.expectURL, target) {
		return
	}
	s.CancelExpect()
	s.expect(target, expectPush)
	s.openURL(target, requester, 0)
}

// openURL is Nav_open_url: decide whether target actually needs a fetch
// (MustLoad), save the outgoing page's scroll position, move the stack
// pointer, and ask the opener for the bytes if a load is required.
func (s *Stack) openURL(target, requester weburl.URL, offset int) {
	forceReload := target.Flags.Has(weburl.E2EReload) || target.Flags.Has(weburl.ReloadFromCache)
	ignoreScroll := target.Flags.Has(weburl.IgnoreScroll)

	oldURL, haveOld := s.TopURL()
	if haveOld && !ignoreScroll && s.scroll != nil {
		x, y := s.scroll.Position()
		s.entries[s.ptr].scrollX = x
		s.entries[s.ptr].scrollY = y
	}

	s.movePtrBy(offset)

	mustLoad := forceReload || !haveOld
	if haveOld {
		mustLoad = mustLoad || !weburl.Equal(oldURL, target) || oldURL.Fragment != target.Fragment
	}
	if !mustLoad {
		return
	}
	if s.opener != nil {
		s.opener.OpenURL(target, requester, offset)
	}
}

// expect records that the stack is waiting for target's fetch to commit
// to history (a_Bw_expect, rolled into this package since nothing else
// needs the expected-URL field).
func (s *Stack) expect(target weburl.URL, kind expectKind) {
	s.expecting = true
	s.expectURL = target
	s.expectKind = kind
}

// CancelExpect drops any in-flight expect without aborting its data
// stream, that responsibility staying with the caller (a_Nav_cancel_expect).
func (s *Stack) CancelExpect() {
	s.expecting = false
	if s.metaRefreshStatus > 0 {
		s.metaRefreshStatus--
	}
}

// CancelExpectIfEqual cancels the current expect only if it matches url
// (a_Nav_cancel_expect_if_eq, used when a different request's failure
// shouldn't disturb an unrelated in-flight navigation).
func (s *Stack) CancelExpectIfEqual(url weburl.URL) {
	if s.expecting && weburl.Equal(url, s.expectURL) {
		s.CancelExpect()
	}
}

// ExpectDone commits the expected URL to history (unless this is a reload
// or repush, which reuse the existing top entry) and restores scroll
// position: to the saved position, to a fragment, or to the origin,
// following a_Nav_expect_done's three-way branch. Call this once the
// cache has resolved the expected URL's identity (after header/META
// processing, before render).
func (s *Stack) ExpectDone() {
	var fragment string
	gotoOldScroll := true

	if s.expecting {
		target := s.expectURL
		kind := s.expectKind
		fragment = target.Fragment

		switch kind {
		case expectReload, expectRepush:
			// Reused entry: no stack mutation (a_Nav_expect_done's
			// "reload!"/"repush!" branches).
		default:
			s.truncateFrom(s.ptr + 1)
			committed := target
			committed.Flags &^= weburl.E2EReload | weburl.ReloadFromCache | weburl.IgnoreScroll
			s.entries = append(s.entries, entry{url: committed})
			s.ptr++
		}

		if fragment != "" {
			gotoOldScroll = false
			switch kind {
			case expectRepush:
				if s.ptr >= 0 && s.ptr < len(s.entries) {
					e := s.entries[s.ptr]
					if e.scrollX != 0 || e.scrollY != 0 {
						gotoOldScroll = true
					}
				}
			case expectPush:
				if target.Flags.Has(weburl.E2EReload) {
					// Reset scroll so a later repush lands on the
					// fragment next time through.
					if s.ptr >= 0 && s.ptr < len(s.entries) {
						s.entries[s.ptr].scrollX = 0
						s.entries[s.ptr].scrollY = 0
					}
				}
			}
		}
		s.CancelExpect()
	}

	var posX, posY int
	if s.ptr >= 0 && s.ptr < len(s.entries) {
		posX, posY = s.entries[s.ptr].scrollX, s.entries[s.ptr].scrollY
	}
	s.cleanAdjacentDuplicates()

	if s.scroll == nil {
		return
	}
	switch {
	case gotoOldScroll:
		s.scroll.ScrollTo(posX, posY)
	case fragment != "":
		s.scroll.ScrollToFragment(fragment)
	default:
		s.scroll.ScrollTo(0, 0)
	}
}

func (s *Stack) truncateFrom(pos int) {
	if pos < 0 || pos >= len(s.entries) {
		return
	}
	s.entries = s.entries[:pos]
}

// cleanAdjacentDuplicates drops a duplicate URL+fragment pushed on top of
// itself, which redirects can produce (Nav_stack_clean).
func (s *Stack) cleanAdjacentDuplicates() {
	n := len(s.entries)
	if n < 2 {
		return
	}
	if weburl.EqualWithFragment(s.entries[n-2].url, s.entries[n-1].url) {
		s.entries = s.entries[:n-1]
		if s.ptr >= len(s.entries) {
			s.ptr = len(s.entries) - 1
		}
	}
}

// Reload re-fetches the current page end-to-end (a_Nav_reload). confirmPost,
// if non-nil, gates reloading a POST response behind user confirmation
// (a_Dialog_choice's repost prompt); a nil confirmPost always proceeds.
// Deferred through the Scheduler so in-flight CCC operations finish first.
func (s *Stack) Reload(confirmPost func() bool) {
	s.runDeferred(func() { s.reloadNow(confirmPost) })
}

func (s *Stack) reloadNow(confirmPost func() bool) {
	top, ok := s.TopURL()
	if !ok {
		return
	}
	if top.Flags.Has(weburl.Post) && confirmPost != nil && !confirmPost() {
		return
	}
	top.Flags |= weburl.E2EReload
	top.Flags &^= weburl.SpamSafe
	s.expect(top, expectReload)
	s.openURL(top, weburl.URL{}, 0)
}

// Repush re-requests the current page from cache without a round trip
// (a_Nav_repush), used to switch charset decoders once META announces one.
// Deferred for the same reason Reload is.
func (s *Stack) Repush() {
	s.runDeferred(s.repushNow)
}

func (s *Stack) repushNow() {
	s.CancelExpect()
	top, ok := s.TopURL()
	if !ok {
		return
	}
	top.Flags |= weburl.ReloadFromCache
	s.expect(top, expectRepush)
	s.openURL(top, weburl.URL{}, 0)
}

// Redirect0 handles a zero-delay META redirection (a_Nav_redirection0):
// the new URL replaces the current history entry rather than being pushed
// on top of it, which is implemented by stepping the stack pointer back
// one slot and then pushing normally. new_url is carried with
// E2EQuery|IgnoreScroll per spec.md §4.I, restored here as
// weburl.E2EReload|weburl.IgnoreScroll. Deferred like Reload/Repush; if
// CancelExpect fires before the deferred callback runs, the push is
// dropped (mirrors meta_refresh_status being decremented back below 2).
func (s *Stack) Redirect0(newURL weburl.URL) {
	newURL.Flags |= weburl.E2EReload | weburl.IgnoreScroll
	s.metaRefreshURL = newURL
	s.metaRefreshStatus = 2

	s.runDeferred(func() {
		status := s.metaRefreshStatus
		target := s.metaRefreshURL
		referer, _ := s.TopURL()

		if status == 2 {
			s.movePtrBy(-1)
			s.Push(target, referer)
		}
		s.metaRefreshURL = weburl.URL{}
		s.metaRefreshStatus = 0
	})
}

func (s *Stack) runDeferred(fn func()) {
	if s.scheduler == nil {
		fn()
		return
	}
	s.scheduler.Defer(fn)
}

// SaveURL fetches target for disk rather than render (a_Nav_save_url):
// it bypasses the MustLoad/history machinery entirely, since a download
// never changes what page the window is showing.
func (s *Stack) SaveURL(target weburl.URL) {
	if s.opener == nil {
		return
	}
	target.Flags |= weburl.Download
	s.opener.OpenURL(target, weburl.URL{}, 0)
}
