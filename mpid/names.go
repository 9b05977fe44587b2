package mpid

import "xdao.co/mpid/xorname"

// HeaderName returns the network name of h.
func HeaderName(h *Header) (xorname.Name, error) {
	if h == nil {
		return xorname.Name{}, newError(KindInvalid, "MPID-NAME-001", "nil header")
	}
	return h.Name()
}

// MessageName returns the network name of m, which is the name of its header.
func MessageName(m *Message) (xorname.Name, error) {
	if m == nil {
		return xorname.Name{}, newError(KindInvalid, "MPID-NAME-002", "nil message")
	}
	return m.Name()
}

// UniqueNames drops repeated names, keeping the first occurrence of each.
func UniqueNames(names []xorname.Name) []xorname.Name {
	seen := make(map[xorname.Name]struct{}, len(names))
	out := make([]xorname.Name, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
