package mux

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/nvr-core/bc/pkg/bc"
	"github.com/nvr-core/bc/pkg/crypto"
	"github.com/nvr-core/bc/pkg/transport"
)

func newPair(t *testing.T) (*Mux, *transport.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close() })

	ctx := bc.NewContext("admin", "pw", crypto.Unencrypted)
	cConn := transport.NewFromConn(client, transport.Config{})
	sConn := transport.NewFromConn(server, transport.Config{})

	m := New(cConn, ctx, Config{})
	return m, sConn
}

func sendFromServer(t *testing.T, sConn *transport.Conn, msgID uint32, msgNum uint16) {
	t.Helper()
	ctx := bc.NewContext("admin", "pw", crypto.Unencrypted)
	msg := &bc.Message{
		Meta: bc.Meta{MsgID: msgID, MsgNum: msgNum, Class: bc.ClassModernOffset, ResponseCode: bc.ResponseOK},
		Body: bc.ModernBody{PayloadKind: bc.PayloadNone},
	}
	if err := sConn.WriteMessage(ctx, msg); err != nil {
		t.Fatalf("server write: %v", err)
	}
}

func TestDispatchRoutesByMsgNum(t *testing.T) {
	m, sConn := newPair(t)
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(runCtx)

	sub := m.Subscribe(Key{MsgID: 42, MsgNum: 7})
	defer sub.Close()

	go sendFromServer(t, sConn, 42, 7)

	recvCtx, recvCancel := context.WithTimeout(context.Background(), time.Second)
	defer recvCancel()
	msg, err := sub.Recv(recvCtx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if msg.Meta.MsgID != 42 || msg.Meta.MsgNum != 7 {
		t.Fatalf("unexpected message: %+v", msg.Meta)
	}
}

func TestDispatchFallsBackToWellKnownChannel(t *testing.T) {
	m, sConn := newPair(t)
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(runCtx)

	sub := m.SubscribeUnsolicited(99)
	defer sub.Close()

	go sendFromServer(t, sConn, 99, 0)

	recvCtx, recvCancel := context.WithTimeout(context.Background(), time.Second)
	defer recvCancel()
	msg, err := sub.Recv(recvCtx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if msg.Meta.MsgID != 99 {
		t.Fatalf("unexpected message: %+v", msg.Meta)
	}
}

func TestShutdownSurfacesDroppedConnectionToAllSubscribers(t *testing.T) {
	m, sConn := newPair(t)
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(runCtx)

	subA := m.Subscribe(Key{MsgID: 1, MsgNum: 1})
	subB := m.Subscribe(Key{MsgID: 2, MsgNum: 1})

	sConn.Close()

	recvCtx, recvCancel := context.WithTimeout(context.Background(), time.Second)
	defer recvCancel()
	if _, err := subA.Recv(recvCtx); err != transport.ErrDroppedConnection {
		t.Fatalf("subA: expected ErrDroppedConnection, got %v", err)
	}
	if _, err := subB.Recv(recvCtx); err != transport.ErrDroppedConnection {
		t.Fatalf("subB: expected ErrDroppedConnection, got %v", err)
	}
}

func TestSlowConsumerIsDroppedNotBlocked(t *testing.T) {
	m, sConn := newPair(t)
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(runCtx)

	sub := m.Subscribe(Key{MsgID: 5, MsgNum: 1})
	defer sub.Close()

	// Flood past the queue depth without ever calling Recv; the reader
	// loop must keep making progress instead of blocking on slot.ch.
	for i := 0; i < subscriberQueueDepth+10; i++ {
		sendFromServer(t, sConn, 5, 1)
	}

	// One more message on an unrelated key proves the reader loop is
	// still alive and dispatching.
	sub2 := m.Subscribe(Key{MsgID: 6, MsgNum: 1})
	defer sub2.Close()
	sendFromServer(t, sConn, 6, 1)

	recvCtx, recvCancel := context.WithTimeout(context.Background(), time.Second)
	defer recvCancel()
	if _, err := sub2.Recv(recvCtx); err != nil {
		t.Fatalf("reader loop appears stuck: %v", err)
	}
}

func TestNextMsgNumSkipsReservedZero(t *testing.T) {
	m, _ := newPair(t)
	m.nextMsgNum = 0x10000 // low 16 bits are 0: the next value would be the reserved 0
	if v := m.NextMsgNum(); v == 0 {
		t.Fatalf("NextMsgNum returned reserved value 0")
	}
}
