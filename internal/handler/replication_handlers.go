package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kvserver/redis/internal/logging"
	"github.com/kvserver/redis/internal/protocol"
	"github.com/kvserver/redis/internal/rdb"
	"github.com/kvserver/redis/internal/replication"
	"github.com/kvserver/redis/internal/storage"
)

// replicationManager returns the concrete replication manager, or nil if
// replication wiring was never set up for this handler.
func (h *CommandHandler) replicationManager() *replication.ReplicationManager {
	mgr, _ := h.replicationMgr.(*replication.ReplicationManager)
	return mgr
}

// handleREPLCONF implements the small set of REPLCONF subcommands a replica
// sends during and after the PSYNC handshake. ACK (which records the
// replica's offset) and GETACK get no reply here; every other subcommand,
// recognized or not, is acknowledged with +OK.
func (h *CommandHandler) handleREPLCONF(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return protocol.EncodeError("ERR wrong number of arguments for 'replconf' command")
	}

	mgr := h.replicationManager()
	subcommand := strings.ToUpper(cmd.Args[1])

	switch subcommand {
	case "LISTENING-PORT":
		if len(cmd.Args) >= 3 {
			if port, err := strconv.Atoi(cmd.Args[2]); err == nil {
				client.ReplicaListeningPort = port
			}
		}
	case "CAPA":
		// Capability advertisement (eof, psync2, ...); nothing to act on.
	case "ACK":
		if mgr != nil && len(cmd.Args) >= 3 && client.ReplicaID != "" {
			if offset, err := strconv.ParseInt(cmd.Args[2], 10, 64); err == nil {
				mgr.UpdateReplicaOffset(client.ReplicaID, offset)
			}
		}
		// REPLCONF ACK is not itself replied to.
		return nil
	case "GETACK":
		return nil
	}

	return protocol.EncodeSimpleString("OK")
}

// handlePSYNC implements the replica handshake described for primaries:
// a replica offering an unknown id or out-of-range offset gets a full
// resync (an in-memory RDB dump followed by the live command stream); an
// offer the backlog still covers gets the tail of the backlog instead.
func (h *CommandHandler) handlePSYNC(client *Client, cmd *protocol.Command) []byte {
	mgr := h.replicationManager()
	if mgr == nil {
		return protocol.EncodeError("ERR this server does not support replication")
	}
	if len(cmd.Args) < 3 {
		return protocol.EncodeError("ERR wrong number of arguments for 'psync' command")
	}

	requestedID := cmd.Args[1]
	requestedOffset, _ := strconv.ParseInt(cmd.Args[2], 10, 64)

	replicaID := client.ReplicaID
	if replicaID == "" {
		replicaID = uuid.NewString()
		client.ReplicaID = replicaID
	}
	mgr.AddReplica(client.Conn, replicaID)

	if requestedID == mgr.GetReplID() && requestedID != "?" {
		if backlogData, ok := mgr.GetBacklogData(requestedOffset); ok {
			logging.L.Infof("PSYNC: partial resync for replica %s from offset %d", replicaID, requestedOffset)
			mgr.MarkReplicaOnline(replicaID)
			header := protocol.EncodeSimpleString("CONTINUE " + mgr.GetReplID())
			return append(header, backlogData...)
		}
	}

	logging.L.Infof("PSYNC: full resync for replica %s", replicaID)

	databases, ok := mgr.GetStoreSnapshot().(map[int]map[string]*storage.Value)
	if !ok {
		return protocol.EncodeError("ERR failed to build replication snapshot")
	}

	payload, err := rdb.NewWriter("").SaveToBuffer(databases)
	if err != nil {
		return protocol.EncodeError(fmt.Sprintf("ERR failed to serialize snapshot: %v", err))
	}

	mgr.MarkReplicaOnline(replicaID)

	header := protocol.EncodeSimpleString(fmt.Sprintf("FULLRESYNC %s %d", mgr.GetReplID(), mgr.GetOffset()))
	bulkHeader := []byte(fmt.Sprintf("$%d\r\n", len(payload)))
	response := make([]byte, 0, len(header)+len(bulkHeader)+len(payload))
	response = append(response, header...)
	response = append(response, bulkHeader...)
	response = append(response, payload...)
	return response
}

// handleWait implements WAIT <numreplicas> <timeout-ms>, blocking until at
// least numreplicas have ACKed the replication offset this server had at
// the moment WAIT was issued, or the timeout elapses (0 means wait
// forever). Replies with however many had caught up when it returned —
// the same as real Redis even when that's short of numreplicas. This is
// what makes the replication offset machinery (REPLCONF ACK updating
// ReplicaInfo.Offset) observable to a client instead of only internal
// bookkeeping.
func (h *CommandHandler) handleWait(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 3 {
		return protocol.EncodeError("ERR wrong number of arguments for 'wait' command")
	}
	numReplicas, err := strconv.Atoi(cmd.Args[1])
	if err != nil {
		return protocol.EncodeError("ERR value is not an integer or out of range")
	}
	timeoutMs, err := strconv.Atoi(cmd.Args[2])
	if err != nil {
		return protocol.EncodeError("ERR value is not an integer or out of range")
	}

	mgr := h.replicationManager()
	if mgr == nil {
		return protocol.EncodeInteger(0)
	}

	targetOffset := mgr.GetOffset()
	ackedCount := func() int {
		acked := 0
		for _, replica := range mgr.GetAllReplicas() {
			if replica.Offset >= targetOffset {
				acked++
			}
		}
		return acked
	}

	if acked := ackedCount(); acked >= numReplicas {
		return protocol.EncodeInteger(acked)
	}

	var deadline <-chan time.Time
	if timeoutMs > 0 {
		timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
		defer timer.Stop()
		deadline = timer.C
	}

	poll := time.NewTicker(20 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-poll.C:
			if acked := ackedCount(); acked >= numReplicas {
				return protocol.EncodeInteger(acked)
			}
		case <-deadline:
			return protocol.EncodeInteger(ackedCount())
		}
	}
}
