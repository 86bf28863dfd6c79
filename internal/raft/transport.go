package raft

import (
	"fmt"
	"net"
	"net/rpc"
	"sync"

	"github.com/kvserver/redis/internal/logging"
)

// Transport sends the two Raft RPCs to a peer identified by address. No
// third-party RPC/transport library in the reference pack targets a
// plain node-to-node request/reply protocol like this one (the pack's gin
// stack is HTTP-server-side, the message brokers are pub/sub, not
// point-to-point); net/rpc is the standard library's own answer to
// exactly this shape, so it's used directly rather than hand-rolling a
// wire format for RequestVote/AppendEntries the way internal/protocol's
// resp.go does for client-facing RESP.
type Transport interface {
	SendRequestVote(addr string, args *RequestVoteArgs) (*RequestVoteReply, error)
	SendAppendEntries(addr string, args *AppendEntriesArgs) (*AppendEntriesReply, error)
}

// RPCService is registered with net/rpc and forwards incoming calls to the
// owning Raft node's handlers. Exported methods following net/rpc's
// (args, reply *T) error signature convention.
type RPCService struct {
	rf *Raft
}

func (s *RPCService) RequestVote(args *RequestVoteArgs, reply *RequestVoteReply) error {
	*reply = *s.rf.HandleRequestVote(args)
	return nil
}

func (s *RPCService) AppendEntries(args *AppendEntriesArgs, reply *AppendEntriesReply) error {
	*reply = *s.rf.HandleAppendEntries(args)
	return nil
}

// Serve starts a net/rpc server on addr exposing rf's RPCService and
// returns the listener at once; a background goroutine accepts
// connections until the listener is closed.
func Serve(addr string, rf *Raft) (net.Listener, error) {
	server := rpc.NewServer()
	if err := server.RegisterName("Raft", &RPCService{rf: rf}); err != nil {
		return nil, fmt.Errorf("failed to register raft RPC service: %w", err)
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for raft RPCs on %s: %w", addr, err)
	}
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go server.ServeConn(conn)
		}
	}()
	return listener, nil
}

// netTransport dials peers over TCP using net/rpc, caching connections
// since every heartbeat interval re-dialing would otherwise dominate
// latency.
type netTransport struct {
	mu      sync.Mutex
	clients map[string]*rpc.Client
}

// NewNetTransport returns a Transport that makes real net/rpc calls.
func NewNetTransport() Transport {
	return &netTransport{clients: make(map[string]*rpc.Client)}
}

func (t *netTransport) client(addr string) (*rpc.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.clients[addr]; ok {
		return c, nil
	}
	c, err := rpc.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	t.clients[addr] = c
	return c, nil
}

func (t *netTransport) invalidate(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.clients[addr]; ok {
		c.Close()
		delete(t.clients, addr)
	}
}

func (t *netTransport) SendRequestVote(addr string, args *RequestVoteArgs) (*RequestVoteReply, error) {
	c, err := t.client(addr)
	if err != nil {
		return nil, err
	}
	var reply RequestVoteReply
	if err := c.Call("Raft.RequestVote", args, &reply); err != nil {
		logging.L.Infof("raft: RequestVote to %s failed: %v", addr, err)
		t.invalidate(addr)
		return nil, err
	}
	return &reply, nil
}

func (t *netTransport) SendAppendEntries(addr string, args *AppendEntriesArgs) (*AppendEntriesReply, error) {
	c, err := t.client(addr)
	if err != nil {
		return nil, err
	}
	var reply AppendEntriesReply
	if err := c.Call("Raft.AppendEntries", args, &reply); err != nil {
		logging.L.Infof("raft: AppendEntries to %s failed: %v", addr, err)
		t.invalidate(addr)
		return nil, err
	}
	return &reply, nil
}
