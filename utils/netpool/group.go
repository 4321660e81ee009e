package netpool

// hostIdle is the idle stack of one endpoint, ordered from the oldest to
// the most recently idle connection.
type hostIdle struct {
	conns []*Conn
}

func (h *hostIdle) len() int { return len(h.conns) }

func (h *hostIdle) push(c *Conn) {
	h.conns = append(h.conns, c)
}

// pop removes the most recently idle connection.
func (h *hostIdle) pop() *Conn {
	n := len(h.conns) - 1
	c := h.conns[n]
	h.conns[n] = nil
	h.conns = h.conns[:n]
	return c
}

func (h *hostIdle) remove(c *Conn) {
	for i, v := range h.conns {
		if v == c {
			copy(h.conns[i:], h.conns[i+1:])
			h.conns[len(h.conns)-1] = nil
			h.conns = h.conns[:len(h.conns)-1]
			return
		}
	}
}
