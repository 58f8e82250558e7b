package client_test

import (
	"net"
	"testing"

	"github.com/sandia-emesh/equipmesh/internal/client"
	"github.com/sandia-emesh/equipmesh/internal/transport"
	"github.com/sandia-emesh/equipmesh/internal/wire"
	"github.com/sandia-emesh/equipmesh/pkg/eqlog"
)

func serverSide(t *testing.T) (*client.Session, *transport.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })

	sess := client.New(transport.New(a), eqlog.Discard())
	return sess, transport.New(b)
}

func TestRegisterTransitionsToReady(t *testing.T) {
	sess, server := serverSide(t)

	done := make(chan error, 1)
	go func() { done <- sess.Register() }()

	req, err := server.ReadMessage()
	if err != nil {
		t.Fatalf("server ReadMessage: %v", err)
	}
	if req.Kind() != wire.ReqAdd {
		t.Fatalf("expected REQ_ADD, got %v", req.Kind())
	}

	server.WriteMessage(wire.NewResAdd("03"))
	server.WriteMessage(wire.NewResList([]string{"01", "02"}))

	if err := <-done; err != nil {
		t.Fatalf("Register: %v", err)
	}

	if sess.State() != client.Ready {
		t.Fatalf("expected Ready, got %v", sess.State())
	}
	if sess.EquipmentID() != "03" {
		t.Fatalf("got id %q, want 03", sess.EquipmentID())
	}

	dir := sess.Directory()
	if len(dir) != 2 || dir[0] != "01" || dir[1] != "02" {
		t.Fatalf("got directory %v, want [01 02]", dir)
	}
}

func TestRegisterFailurePropagatesCode(t *testing.T) {
	sess, server := serverSide(t)

	done := make(chan error, 1)
	go func() { done <- sess.Register() }()

	if _, err := server.ReadMessage(); err != nil {
		t.Fatalf("server ReadMessage: %v", err)
	}
	server.WriteMessage(wire.NewError("02", true, wire.CodeEquipmentLimitExceeded))

	err := <-done
	var regErr *client.ErrRegistrationFailed
	if err == nil {
		t.Fatal("expected a registration error")
	}
	if !asRegistrationFailed(err, &regErr) {
		t.Fatalf("expected *ErrRegistrationFailed, got %T: %v", err, err)
	}
	if regErr.Code != wire.CodeEquipmentLimitExceeded {
		t.Fatalf("got code %q", regErr.Code)
	}
}

func asRegistrationFailed(err error, target **client.ErrRegistrationFailed) bool {
	e, ok := err.(*client.ErrRegistrationFailed)
	if !ok {
		return false
	}
	*target = e
	return true
}

func TestHandleIncomingUpdatesDirectory(t *testing.T) {
	sess, server := serverSide(t)

	done := make(chan error, 1)
	go func() { done <- sess.Register() }()
	server.ReadMessage()
	server.WriteMessage(wire.NewResAdd("01"))
	server.WriteMessage(wire.NewResList(nil))
	<-done

	sess.HandleIncoming(wire.NewResAdd("02"))
	if dir := sess.Directory(); len(dir) != 1 || dir[0] != "02" {
		t.Fatalf("got %v, want [02]", dir)
	}

	sess.HandleIncoming(wire.NewReqRem("02"))
	if dir := sess.Directory(); len(dir) != 0 {
		t.Fatalf("got %v, want empty after removal notice", dir)
	}
}

func TestHandleIncomingRespondsToInformationRequest(t *testing.T) {
	sess, server := serverSide(t)

	done := make(chan error, 1)
	go func() { done <- sess.Register() }()
	server.ReadMessage()
	server.WriteMessage(wire.NewResAdd("01"))
	server.WriteMessage(wire.NewResList([]string{"02"}))
	<-done

	// net.Pipe is unbuffered, so the reply write blocks until the read below.
	go sess.HandleIncoming(wire.NewReqInf("02", "01"))

	reply, err := server.ReadMessage()
	if err != nil {
		t.Fatalf("server ReadMessage: %v", err)
	}
	if reply.Kind() != wire.ResInf {
		t.Fatalf("expected RES_INF, got %v", reply.Kind())
	}
	origin, _ := reply.OriginID()
	dest, _ := reply.DestID()
	measurement, hasPayload := reply.Payload()
	if origin != "01" || dest != "02" {
		t.Fatalf("got origin=%q dest=%q, want origin=01 dest=02", origin, dest)
	}
	if !hasPayload || measurement == "" {
		t.Fatalf("expected a non-empty measurement payload, got %q", measurement)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	sess, server := serverSide(t)
	go server.ReadMessage()

	if err := sess.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if sess.State() != client.Closed {
		t.Fatalf("got state %v, want Closed", sess.State())
	}
}
