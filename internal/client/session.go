// Package client implements the equipmesh client: registering with a
// broker, tracking the known equipment directory, and driving the
// READY-state request/respond loop against both the server connection and
// an interactive command source.
package client

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/sandia-emesh/equipmesh/internal/transport"
	"github.com/sandia-emesh/equipmesh/internal/wire"
	"github.com/sandia-emesh/equipmesh/pkg/eqlog"
)

// State is the client session's connection lifecycle stage.
type State int

const (
	Connecting State = iota
	Registering
	Ready
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Registering:
		return "REGISTERING"
	case Ready:
		return "READY"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ErrNotReady is returned by operations that require the READY state.
var ErrNotReady = errors.New("client: session is not ready")

// ErrRegistrationFailed wraps the server's rejection of a REQ_ADD.
type ErrRegistrationFailed struct {
	Code string
}

func (e *ErrRegistrationFailed) Error() string {
	return fmt.Sprintf("client: registration failed: %s", wire.ErrMsg.Describe(e.Code))
}

// Session is the client side of one broker connection.
type Session struct {
	conn *transport.Conn
	log  *eqlog.Logger

	mu        sync.Mutex
	state     State
	equipID   wire.EquipmentID
	directory map[wire.EquipmentID]bool
}

// New wraps an already-dialed connection. The session starts in
// Connecting; call Register to move it to Ready.
func New(conn *transport.Conn, log *eqlog.Logger) *Session {
	return &Session{
		conn:      conn,
		log:       log,
		state:     Connecting,
		directory: make(map[wire.EquipmentID]bool),
	}
}

// State returns the session's current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EquipmentID returns the ID assigned at registration. It is only valid
// once State() is Ready.
func (s *Session) EquipmentID() wire.EquipmentID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.equipID
}

// Directory returns the sorted set of equipment IDs this session currently
// believes are registered, not including its own ID.
func (s *Session) Directory() []wire.EquipmentID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]wire.EquipmentID, 0, len(s.directory))
	for id := range s.directory {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Register sends REQ_ADD and blocks for the RES_ADD/RES_LIST pair (or an
// ERROR) that completes the handshake, per the CONNECTING -> REGISTERING
// -> READY lifecycle.
func (s *Session) Register() error {
	s.setState(Registering)

	if err := s.conn.WriteMessage(wire.NewReqAdd()); err != nil {
		return err
	}

	resAdd, err := s.conn.ReadMessage()
	if err != nil {
		return err
	}
	if resAdd.Kind() == wire.ErrMsg {
		payload, _ := resAdd.Payload()
		return &ErrRegistrationFailed{Code: payload}
	}
	if resAdd.Kind() != wire.ResAdd {
		return fmt.Errorf("client: expected RES_ADD, got %s", resAdd.Kind())
	}
	id, _ := resAdd.Payload()

	resList, err := s.conn.ReadMessage()
	if err != nil {
		return err
	}
	if resList.Kind() != wire.ResList {
		return fmt.Errorf("client: expected RES_LIST, got %s", resList.Kind())
	}

	s.mu.Lock()
	s.equipID = wire.EquipmentID(id)
	for _, other := range resList.IDs() {
		s.directory[wire.EquipmentID(other)] = true
	}
	s.mu.Unlock()

	s.setState(Ready)
	s.log.Info("registered as equipment %s", id)

	return nil
}

// RequestInformation sends a REQ_INF to destID. The reply arrives
// asynchronously through the session's normal read loop.
func (s *Session) RequestInformation(destID string) error {
	if s.State() != Ready {
		return ErrNotReady
	}
	return s.conn.WriteMessage(wire.NewReqInf(string(s.EquipmentID()), destID))
}

// RespondInformation sends a RES_INF back to destID in reply to a REQ_INF
// this session was asked to answer.
func (s *Session) RespondInformation(destID, measurement string) error {
	if s.State() != Ready {
		return ErrNotReady
	}
	return s.conn.WriteMessage(wire.NewResInf(string(s.EquipmentID()), destID, measurement))
}

// Close sends REQ_REM for this session's own ID and closes the connection.
// It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return nil
	}
	id := s.equipID
	wasReady := s.state == Ready
	s.state = Closed
	s.mu.Unlock()

	if wasReady {
		s.conn.WriteMessage(wire.NewReqRem(string(id)))
	}
	return s.conn.Close()
}

// HandleIncoming applies one message read from the connection to session
// state (directory updates for ResAdd/ReqRem broadcasts) and answers a
// ReqInf with a RES_INF carrying a fresh measurement. It returns nothing;
// showing the message to the user is left to the caller.
func (s *Session) HandleIncoming(m wire.Message) {
	switch m.Kind() {
	case wire.ResAdd:
		id, _ := m.Payload()
		s.mu.Lock()
		if wire.EquipmentID(id) != s.equipID {
			s.directory[wire.EquipmentID(id)] = true
		}
		s.mu.Unlock()
	case wire.ReqRem:
		origin, _ := m.OriginID()
		s.mu.Lock()
		delete(s.directory, wire.EquipmentID(origin))
		s.mu.Unlock()
	case wire.ReqInf:
		origin, _ := m.OriginID()
		measurement := fmt.Sprintf("%.2f", rand.Float64()*10)
		if err := s.RespondInformation(origin, measurement); err != nil {
			s.log.Warn("responding to information request from %s: %v", origin, err)
		}
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// readLoopInterval is the multiplexing fallback period between the
// connection's frame channel and the interactive command channel (see
// Run), so neither source can starve the other.
const readLoopInterval = 10 * time.Millisecond
