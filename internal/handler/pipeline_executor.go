package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kvserver/redis/internal/protocol"
	"github.com/kvserver/redis/internal/replication"
)

// executeWithAOF executes a single command with timeout tracking, logging it
// to the AOF and propagating it to replicas once it completes successfully.
func (h *CommandHandler) executeWithAOF(ctx context.Context, client *Client, cmd *protocol.Command, timeout time.Duration) PipelineResult {
	if cmd == nil || len(cmd.Args) == 0 {
		return PipelineResult{
			Response: protocol.EncodeError("ERR empty command"),
			Command:  "",
			Args:     nil,
		}
	}

	command := strings.ToUpper(cmd.Args[0])

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	if h.isReplica() && IsWriteCommand(command) {
		return PipelineResult{
			Response: protocol.EncodeError("READONLY You can't write against a read only replica"),
			Duration: time.Since(start),
			Command:  command,
			Args:     cmd.Args[1:],
		}
	}

	if h.deniedByOOM(command) {
		return PipelineResult{
			Response: protocol.EncodeError("OOM command not allowed when used memory > 'maxmemory'"),
			Duration: time.Since(start),
			Command:  command,
			Args:     cmd.Args[1:],
		}
	}

	// In Raft mode, writes are proposed and applied by the apply loop once
	// committed, which logs to AOF itself (see redis_server.go) — skip the
	// local dispatch and the classic replication backlog below entirely.
	if h.raftPropose != nil && IsWriteCommand(command) {
		return PipelineResult{
			Response: h.raftPropose(cmd),
			Duration: time.Since(start),
			Command:  command,
			Args:     cmd.Args[1:],
		}
	}

	resultChan := make(chan []byte, 1)
	go func() {
		if handler, exists := h.commands[command]; exists {
			resultChan <- handler(client, cmd)
		} else {
			resultChan <- protocol.EncodeError(fmt.Sprintf("ERR unknown command '%s'", command))
		}
	}()

	select {
	case <-cmdCtx.Done():
		duration := time.Since(start)
		return PipelineResult{
			Response: protocol.EncodeError("ERR command timeout"),
			Duration: duration,
			Command:  command,
			Args:     cmd.Args[1:],
			Err:      ErrCommandTimeout,
		}
	case response := <-resultChan:
		duration := time.Since(start)

		// Log successful write commands to AOF and propagate to replicas.
		// A response is only treated as successful if it isn't an error reply.
		if len(response) > 0 && response[0] != '-' {
			h.LogToAOF(command, cmd.Args[1:])

			if h.replicationMgr != nil {
				if replMgr, ok := h.replicationMgr.(*replication.ReplicationManager); ok {
					replMgr.PropagateCommand(cmd.Args)
				}
			}
		}

		return PipelineResult{
			Response: response,
			Duration: duration,
			Command:  command,
			Args:     cmd.Args[1:],
		}
	}
}
