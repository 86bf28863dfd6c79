package handler

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/kvserver/redis/internal/protocol"
	"github.com/kvserver/redis/internal/raft"
)

// raftInfoProvider is the subset of *raft.Raft INFO needs; declared locally
// to match the replicationInfoProvider pattern below, even though importing
// internal/raft directly is safe here (raft never imports handler).
type raftInfoProvider interface {
	RoleAndTerm() (raft.Role, int, int)
	LeaderHint() string
}

// handleINFO builds the Redis-style "# Section\r\nkey:value\r\n" report,
// grounded on akashmaji946-go-redis's RedisInfo builder, generalized to a
// Keyspace of N databases and a live replication manager instead of a
// single flat store.
func (h *CommandHandler) handleINFO(client *Client, cmd *protocol.Command) []byte {
	var b strings.Builder

	snap := h.metrics.Snapshot()

	writeSection := func(title string, lines map[string]string) {
		b.WriteString(fmt.Sprintf("# %s\r\n", title))
		keys := make([]string, 0, len(lines))
		for k := range lines {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(fmt.Sprintf("%s:%s\r\n", k, lines[k]))
		}
		b.WriteString("\r\n")
	}

	writeSection("Server", map[string]string{
		"process_id":        strconv.Itoa(os.Getpid()),
		"tcp_port":          strconv.Itoa(h.serverPort),
		"uptime_in_seconds": fmt.Sprintf("%d", int64(snap.Uptime.Seconds())),
		"run_id":            h.runID,
	})

	writeSection("Memory", map[string]string{
		"used_memory":       fmt.Sprintf("%d", snap.UsedMemoryBytes),
		"used_memory_peak":  fmt.Sprintf("%d", snap.PeakMemoryBytes),
		"used_memory_percent_of_system": fmt.Sprintf("%.2f", snap.SystemUsedPercent),
		"total_system_memory": fmt.Sprintf("%d", snap.SystemTotalBytes),
		"maxmemory":         fmt.Sprintf("%d", h.meta.MaxMemory),
		"maxmemory_policy":  h.meta.EvictionPolicy,
	})

	writeSection("Persistence", map[string]string{
		"aof_enabled":     boolStr(h.aofWriter != nil),
		"rdb_filename":    h.meta.RDBFilepath,
	})

	replInfo := map[string]string{
		"role": h.meta.ReplicationRole,
	}
	if mgr, ok := h.replicationMgr.(replicationInfoProvider); ok {
		replInfo["master_replid"] = mgr.GetReplID()
		replInfo["master_repl_offset"] = fmt.Sprintf("%d", mgr.GetOffset())
	}
	writeSection("Replication", replInfo)

	if rn, ok := h.raftNode.(raftInfoProvider); ok {
		role, term, commitIndex := rn.RoleAndTerm()
		raftInfo := map[string]string{
			"role":         role.String(),
			"term":         fmt.Sprintf("%d", term),
			"commit_index": fmt.Sprintf("%d", commitIndex),
		}
		if hint := rn.LeaderHint(); hint != "" {
			raftInfo["leader_hint"] = hint
		}
		writeSection("Raft", raftInfo)
	}

	keyspace := make(map[string]string)
	if h.processor != nil {
		for _, db := range h.processor.Keyspace().All() {
			size := db.Size()
			if size == 0 {
				continue
			}
			// db index isn't tracked on *storage.Database itself, so this
			// reports totals across the keyspace rather than per-db lines.
			keyspace["keys"] = fmt.Sprintf("%d", size+atoiSafe(keyspace["keys"]))
		}
	}
	writeSection("Keyspace", keyspace)

	return protocol.EncodeBulkString(b.String())
}

func atoiSafe(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// replicationInfoProvider is the subset of *replication.ReplicationManager
// INFO needs; declared locally to avoid importing internal/replication just
// for a type assertion target.
type replicationInfoProvider interface {
	GetReplID() string
	GetOffset() int64
}

// handleCONFIG implements GET and SET over the live config store seeded by
// SetServerMeta. Unlike the real Redis CONFIG surface this does not cover
// every tunable — only the ones SetServerMeta actually populates plus
// whatever a client has SET during the session.
func (h *CommandHandler) handleCONFIG(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return protocol.EncodeError("ERR wrong number of arguments for 'config' command")
	}
	sub := strings.ToUpper(cmd.Args[1])
	switch sub {
	case "GET":
		if len(cmd.Args) != 3 {
			return protocol.EncodeError("ERR wrong number of arguments for 'config|get' command")
		}
		pattern := strings.ToLower(cmd.Args[2])
		h.configMu.RLock()
		defer h.configMu.RUnlock()
		result := make([]string, 0, 2)
		for k, v := range h.configVars {
			if matched, _ := filepathMatch(pattern, k); matched {
				result = append(result, k, v)
			}
		}
		return protocol.EncodeArray(result)
	case "SET":
		if len(cmd.Args) != 4 {
			return protocol.EncodeError("ERR wrong number of arguments for 'config|set' command")
		}
		key := strings.ToLower(cmd.Args[2])
		// Settings fixed at startup cannot be changed at runtime.
		if key == "databases" || key == "dbfilename" {
			return protocol.EncodeError(fmt.Sprintf("ERR CONFIG SET failed - can't set immutable config '%s'", key))
		}
		h.configMu.Lock()
		h.configVars[key] = cmd.Args[3]
		h.configMu.Unlock()

		// maxmemory/maxmemory-policy actually change server behavior at
		// runtime (unlike most of this reduced CONFIG surface), so mirror
		// the new value into meta and reinstall the processor's eviction
		// wiring immediately.
		switch key {
		case "maxmemory":
			if limit, err := strconv.ParseInt(cmd.Args[3], 10, 64); err == nil {
				h.meta.MaxMemory = limit
				h.applyEvictionPolicy()
			}
		case "maxmemory-policy":
			h.meta.EvictionPolicy = cmd.Args[3]
			h.applyEvictionPolicy()
		}

		return protocol.EncodeSimpleString("OK")
	default:
		return protocol.EncodeError(fmt.Sprintf("ERR unknown CONFIG subcommand '%s'", cmd.Args[1]))
	}
}

// filepathMatch is a minimal glob matcher (only "*" as a full wildcard, or a
// trailing "*" as a prefix match; any other pattern must equal the name) since CONFIG GET patterns in practice are either
// exact names or "maxmemory*"-style prefixes.
func filepathMatch(pattern, name string) (bool, error) {
	if pattern == "*" {
		return true, nil
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(name, strings.TrimSuffix(pattern, "*")), nil
	}
	return pattern == name, nil
}
