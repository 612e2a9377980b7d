package lwapi

import "sync"

// Session holds the wxid that identifies a logged-in account. The login flow
// is the only writer; the heartbeat and poller goroutines just read it when
// building requests.
type Session struct {
	mu   sync.Mutex
	wxid string
}

func (s *Session) Wxid() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wxid
}

func (s *Session) SetWxid(wxid string) {
	s.mu.Lock()
	s.wxid = wxid
	s.mu.Unlock()
}

func (s *Session) Clear() {
	s.SetWxid("")
}

func (s *Session) LoggedIn() bool {
	return s.Wxid() != ""
}
