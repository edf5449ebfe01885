package courses

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// adminSession is a minimal cookie store scoped to admin requests.
type adminSession struct {
	mu      sync.Mutex
	cookies map[string]string
}

// update applies the cookies a response set. Expired or emptied cookies are removed.
func (s *adminSession) update(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ck := range cookies {
		if ck == nil || ck.Name == "" {
			continue
		}
		if ck.Value == "" || ck.MaxAge < 0 || (!ck.Expires.IsZero() && !ck.Expires.After(now)) {
			delete(s.cookies, ck.Name)
			continue
		}
		if s.cookies == nil {
			s.cookies = make(map[string]string)
		}
		s.cookies[ck.Name] = ck.Value
	}
}

func (s *adminSession) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies = nil
}

// header renders the Cookie header value, empty when there is no session.
func (s *adminSession) header() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cookies) == 0 {
		return ""
	}
	names := make([]string, 0, len(s.cookies))
	for name := range s.cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, (&http.Cookie{Name: name, Value: s.cookies[name]}).String())
	}
	return strings.Join(parts, "; ")
}
