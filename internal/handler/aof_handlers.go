package handler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kvserver/redis/internal/logging"
	"github.com/kvserver/redis/internal/protocol"
	"github.com/kvserver/redis/internal/rdb"
	"github.com/kvserver/redis/internal/storage"
)

// handleBGRewriteAOF triggers AOF rewrite in the background
func (h *CommandHandler) handleBGRewriteAOF(client *Client, cmd *protocol.Command) []byte {
	if h.aofWriter == nil {
		return protocol.EncodeError("ERR AOF is not enabled")
	}

	go func() {
		logging.L.Info("Starting AOF rewrite...")

		snapshotFunc := func() [][]string {
			snap := h.processor.GetSnapshot()

			commands := make([][]string, 0)
			now := time.Now().UnixMilli()

			for dbIndex, allData := range snap.Databases {
				if len(allData) == 0 {
					continue
				}
				commands = append(commands, []string{"SELECT", fmt.Sprintf("%d", dbIndex)})

				for key, value := range allData {
					if value.Expired(now) {
						continue
					}

					switch value.Type {
					case storage.StringType:
						if str, ok := value.AsString(); ok {
							commands = append(commands, []string{"SET", key, str.String()})
						}

					case storage.ListType:
						if list, ok := value.Data.(*storage.List); ok {
							if items := list.ToSlice(); len(items) > 0 {
								listCmd := append([]string{"RPUSH", key}, items...)
								commands = append(commands, listCmd)
							}
						}

					case storage.SetType:
						if set, ok := value.Data.(*storage.Set); ok {
							if members := set.GetMembers(); len(members) > 0 {
								setCmd := append([]string{"SADD", key}, members...)
								commands = append(commands, setCmd)
							}
						}

					case storage.HashType:
						if hash, ok := value.Data.(*storage.Hash); ok {
							if flat := hash.GetAll(); len(flat) > 0 {
								hashCmd := append([]string{"HSET", key}, flat...)
								commands = append(commands, hashCmd)
							}
						}

					case storage.ZSetType:
						if zset, ok := value.Data.(*storage.ZSet); ok {
							if members := zset.GetAll(); len(members) > 0 {
								zsetCmd := []string{"ZADD", key}
								for _, member := range members {
									zsetCmd = append(zsetCmd, strconv.FormatFloat(member.Score, 'g', -1, 64), member.Member)
								}
								commands = append(commands, zsetCmd)
							}
						}
					}

					if value.ExpiresAtMs != storage.NoExpiry {
						// Round up so a key with under a second left keeps an expiry.
						ttlSec := int((value.ExpiresAtMs - now + 999) / 1000)
						if ttlSec > 0 {
							commands = append(commands, []string{"EXPIRE", key, fmt.Sprintf("%d", ttlSec)})
						}
					}
				}
			}

			return commands
		}

		if err := h.aofWriter.Rewrite(snapshotFunc); err != nil {
			logging.L.Infof("AOF rewrite failed: %v", err)
		} else {
			logging.L.Info("AOF rewrite completed successfully")
		}

		h.processor.ReleaseSnapshot()
	}()

	return protocol.EncodeSimpleString("Background append only file rewriting started")
}

// handleBGSave triggers an RDB snapshot in the background
func (h *CommandHandler) handleBGSave(client *Client, cmd *protocol.Command) []byte {
	go func() {
		logging.L.Info("Starting RDB snapshot (BGSAVE)...")

		path := h.meta.RDBFilepath
		if path == "" {
			path = "dump.rdb"
		}
		rdbWriter := rdb.NewWriter(path)

		snap := h.processor.GetDataSnapshot()

		now := time.Now().UnixMilli()
		filtered := 0
		for _, db := range snap.Databases {
			for key, value := range db {
				if value.Expired(now) {
					delete(db, key)
					filtered++
				}
			}
		}
		if filtered > 0 {
			logging.L.Infof("Filtered %d expired keys from RDB snapshot", filtered)
		}

		if err := rdbWriter.Save(snap.Databases); err != nil {
			logging.L.Infof("RDB snapshot failed: %v", err)
		} else {
			logging.L.Info("RDB snapshot completed successfully")
		}

		h.processor.ReleaseSnapshot()
	}()

	return protocol.EncodeSimpleString("Background saving started")
}
