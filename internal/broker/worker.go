package broker

import (
	"fmt"

	"github.com/sandia-emesh/equipmesh/internal/transport"
	"github.com/sandia-emesh/equipmesh/internal/wire"
)

// worker owns one connection's lifecycle: its equipment ID (once admitted)
// and dispatch of every message it reads to the router functions below.
type worker struct {
	conn   *transport.Conn
	broker *Broker

	id         wire.EquipmentID
	registered bool
}

// dispatch routes one decoded message to its handler and reports whether
// the connection should now be torn down.
func (w *worker) dispatch(m wire.Message) (done bool) {
	switch m.Kind() {
	case wire.ReqAdd:
		return w.handleReqAdd()
	case wire.ReqRem:
		return w.handleReqRem(m)
	case wire.ReqInf, wire.ResInf:
		w.handleForward(m)
		return false
	default:
		// Not a request this server ever expects to receive (e.g. a
		// RES_ADD or ERROR looped back). Ignore rather than tear down a
		// connection over a message we don't know how to route.
		w.broker.log.Debug("ignoring unexpected %s from %v", m.Kind(), w.conn.RemoteAddr())
		return false
	}
}

func (w *worker) handleReqAdd() (done bool) {
	if w.registered {
		w.broker.log.Debug("ignoring duplicate REQ_ADD from already-registered %s", w.id)
		return false
	}

	id, err := w.broker.registry.Admit(w.conn)
	if err != nil {
		total := w.broker.registry.Count()
		w.conn.WriteMessage(wire.NewError(fmt.Sprintf("%02d", total), true, wire.CodeEquipmentLimitExceeded))
		return true
	}

	w.id = id
	w.registered = true

	w.broker.registry.Broadcast(wire.NewResAdd(string(id)), "")

	var others []string
	for _, eid := range w.broker.registry.Snapshot() {
		if eid != id {
			others = append(others, string(eid))
		}
	}
	w.conn.WriteMessage(wire.NewResList(others))

	return false
}

func (w *worker) handleReqRem(m wire.Message) (done bool) {
	if !w.registered {
		w.conn.WriteMessage(wire.NewError("", false, wire.CodeEquipmentNotFound))
		return false
	}

	origin, _ := m.OriginID()
	if wire.EquipmentID(origin) != w.id {
		w.conn.WriteMessage(wire.NewError("", false, wire.CodeEquipmentNotFound))
		return false
	}

	w.broker.registry.Release(w.id)
	w.conn.WriteMessage(wire.NewOk(string(w.id), true, wire.CodeSuccessfulRemoval))
	w.broker.registry.Broadcast(wire.NewReqRem(string(w.id)), "")

	w.registered = false
	return true
}

func (w *worker) handleForward(m wire.Message) {
	if !w.registered {
		w.conn.WriteMessage(wire.NewError("", false, wire.CodeEquipmentNotFound))
		return
	}

	origin, hasOrig := m.OriginID()
	dest, hasDest := m.DestID()
	if !hasDest {
		w.conn.WriteMessage(wire.NewError("", false, wire.CodeTargetNotFound))
		return
	}

	if _, err := w.broker.registry.Lookup(wire.EquipmentID(origin)); !hasOrig || origin == dest || err != nil {
		w.conn.WriteMessage(wire.NewError(origin, true, wire.CodeSourceNotFound))
		return
	}

	target, err := w.broker.registry.Lookup(wire.EquipmentID(dest))
	if err != nil {
		w.conn.WriteMessage(wire.NewError(dest, true, wire.CodeTargetNotFound))
		return
	}

	if err := target.WriteMessage(m); err != nil {
		w.broker.log.Warn("forwarding %s to %s failed: %v", m.Kind(), dest, err)
	}
}

// cleanup runs exactly once when the connection's read loop exits, whether
// that's a clean disconnect, a protocol error, or a handled REQ_REM.
// Release runs only while w.registered is set; handleReqRem clears that flag
// after its own Release, so the ID is not released a second time here.
func (w *worker) cleanup() {
	if w.registered {
		w.broker.registry.Release(w.id)
	}
	w.conn.Close()
}
