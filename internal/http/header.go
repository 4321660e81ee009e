package http

import "strings"

type HeaderField struct {
	Name  string
	Value string
}

// Header is an ordered multimap of header fields. names are matched
// case-insensitively but are written to the wire exactly as given, and
// insertion order is kept.
//
//	h := http.Header{{"X-A", "1"}, {"x-b", "2"}}
type Header []HeaderField

// NewHeader builds a Header from name, value pairs.
func NewHeader(kv ...string) Header {
	h := make(Header, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		h = append(h, HeaderField{kv[i], kv[i+1]})
	}
	return h
}

func (h *Header) Add(name, value string) {
	*h = append(*h, HeaderField{name, value})
}

// Set replaces all values of name with value, keeping the position of
// the first occurrence.
func (h *Header) Set(name, value string) {
	for i := range *h {
		if strings.EqualFold((*h)[i].Name, name) {
			(*h)[i].Value = value
			h.del(name, i+1)
			return
		}
	}
	h.Add(name, value)
}

func (h *Header) Del(name string) {
	h.del(name, 0)
}

func (h *Header) del(name string, from int) {
	out := (*h)[:from]
	for _, f := range (*h)[from:] {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	*h = out
}

// Get returns the first value associated with name, or "".
func (h Header) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

func (h Header) Has(name string) bool {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

func (h Header) Values(name string) []string {
	var vs []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			vs = append(vs, f.Value)
		}
	}
	return vs
}

func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	return append(Header(nil), h...)
}
