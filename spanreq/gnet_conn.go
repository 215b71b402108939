package spanreq

import "time"

// gnetConnContext accumulates one connection's bytes between traffic
// events. The gnet front end reparses the whole buffer on every event, so
// buf never holds more than the parse capacity.
type gnetConnContext struct {
	id      string
	remote  string
	started time.Time
	buf     []byte
}

// append adds p up to capacity bytes. Bytes past capacity can never be part
// of a request that fits, so they are dropped.
func (g *gnetConnContext) append(p []byte, capacity int) {
	if room := capacity - len(g.buf); len(p) > room {
		p = p[:max(room, 0)]
	}
	g.buf = append(g.buf, p...)
}

func (g *gnetConnContext) reset() {
	g.buf = nil
}
