package engine

import "sync"

// HPKPStore, OCSPStore, TLSResumeStore, and NetrcStore are the remaining
// narrow collaborator interfaces named by SPEC_FULL §4.12. Real
// persistence for any of them is out of scope (spec.md §1), but the
// engine still holds a default in-memory implementation of each so
// Shutdown has something real to flush in the right order.
type HPKPStore interface {
	Pins(host string) ([]string, bool)
}

type OCSPStore interface {
	CachedResponse(certFingerprint string) ([]byte, bool)
}

type TLSResumeStore interface {
	Session(host string) ([]byte, bool)
}

type NetrcStore interface {
	Credentials(host string) (username, password string, ok bool)
}

// noopStores backs all four interfaces with stubs that hold no data; it
// never has anything to report and never learns anything new, since
// nothing in this engine currently writes to HPKP/OCSP/TLS-resume/netrc
// caches. Standing in for a real persisted store keeps Shutdown's flush
// ordering exercised even though these caches stay empty for now.
type noopStores struct {
	mu sync.Mutex
}

func newNoopStores() *noopStores { return &noopStores{} }

func (s *noopStores) Pins(string) ([]string, bool)                  { return nil, false }
func (s *noopStores) CachedResponse(string) ([]byte, bool)          { return nil, false }
func (s *noopStores) Session(string) ([]byte, bool)                 { return nil, false }
func (s *noopStores) Credentials(string) (string, string, bool)     { return "", "", false }

// flush is a no-op for the in-memory default; a file-backed store would
// persist its contents here.
func (s *noopStores) flush() error { return nil }
