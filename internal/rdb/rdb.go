package rdb

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/kvserver/redis/internal/storage"
)

// RDB file format constants
const (
	RDBVersion     = 9
	RDBMagicString = "REDIS"

	// Opcodes
	OpCodeEOF          = 0xFF
	OpCodeSelectDB     = 0xFE
	OpCodeExpireTime   = 0xFD
	OpCodeExpireTimeMS = 0xFC
	OpCodeResizeDB     = 0xFB
	OpCodeAux          = 0xFA

	// Type codes
	TypeString      = 0
	TypeList        = 1
	TypeSet         = 2
	TypeZSet        = 3
	TypeHash        = 4
	TypeBloomFilter = 5
	TypeListQuick   = 14
)

// Writer handles RDB snapshot writes
type Writer struct {
	filepath string
}

// NewWriter creates a new RDB writer
func NewWriter(filepath string) *Writer {
	return &Writer{
		filepath: filepath,
	}
}

// Save creates an RDB snapshot file from the given per-database data.
// This is called in a background goroutine by BGSAVE.
func (w *Writer) Save(databases map[int]map[string]*storage.Value) error {
	// Create temporary file
	tempPath := w.filepath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create RDB temp file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := w.writeSnapshot(writer, databases); err != nil {
		os.Remove(tempPath)
		return err
	}

	if err := writer.Flush(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to flush RDB: %w", err)
	}

	if err := file.Sync(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync RDB: %w", err)
	}

	file.Close()

	// Atomically replace old RDB with new one
	if err := os.Rename(tempPath, w.filepath); err != nil {
		return fmt.Errorf("failed to replace RDB file: %w", err)
	}

	return nil
}

// SaveToBuffer serializes the given per-database data into the RDB binary
// format without touching disk, for handing straight to a replica during a
// PSYNC full resync.
func (w *Writer) SaveToBuffer(databases map[int]map[string]*storage.Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := w.writeSnapshot(&buf, databases); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeSnapshot writes the full RDB payload (header, per-database sections,
// EOF marker, trailing checksum) to dst.
func (w *Writer) writeSnapshot(dst io.Writer, databases map[int]map[string]*storage.Value) error {
	hasher := xxhash.New()
	multiWriter := io.MultiWriter(dst, hasher)

	if err := w.writeHeader(multiWriter); err != nil {
		return err
	}

	for dbIndex, snapshot := range databases {
		if len(snapshot) == 0 {
			continue
		}

		// Write database selector
		multiWriter.Write([]byte{OpCodeSelectDB})
		w.writeLengthToWriter(multiWriter, dbIndex)

		// Write resize DB hint
		multiWriter.Write([]byte{OpCodeResizeDB})
		w.writeLengthToWriter(multiWriter, len(snapshot))
		w.writeLengthToWriter(multiWriter, 0) // Number of keys with expiry

		// Write all keys for this database
		for key, value := range snapshot {
			if err := w.writeKeyToWriter(multiWriter, key, value); err != nil {
				return err
			}
		}
	}

	// Write EOF
	multiWriter.Write([]byte{OpCodeEOF})

	// Compute checksum and write it (not included in checksum itself)
	checksum := hasher.Sum64()
	binary.Write(dst, binary.LittleEndian, checksum)

	return nil
}

// writeHeader writes the RDB file header
func (w *Writer) writeHeader(writer io.Writer) error {
	// Magic string "REDIS"
	writer.Write([]byte(RDBMagicString))

	// Version (4 digits)
	writer.Write([]byte(fmt.Sprintf("%04d", RDBVersion)))

	// Auxiliary fields (metadata)
	writer.Write([]byte{OpCodeAux})
	w.writeStringToWriter(writer, "redis-ver")
	w.writeStringToWriter(writer, "7.0.0")

	writer.Write([]byte{OpCodeAux})
	w.writeStringToWriter(writer, "ctime")
	w.writeStringToWriter(writer, fmt.Sprintf("%d", time.Now().Unix()))

	return nil
}

// writeKeyToWriter writes a single key-value pair to io.Writer (for checksum)
func (w *Writer) writeKeyToWriter(writer io.Writer, key string, value *storage.Value) error {
	// Write expiry if exists
	now := time.Now().UnixMilli()
	if value.ExpiresAtMs != storage.NoExpiry && value.ExpiresAtMs > now {
		writer.Write([]byte{OpCodeExpireTimeMS})
		binary.Write(writer, binary.LittleEndian, value.ExpiresAtMs)
	}

	// Write value type and data
	switch value.Type {
	case storage.StringType:
		if str, ok := value.AsString(); ok {
			writer.Write([]byte{TypeString})
			w.writeStringToWriter(writer, key)
			w.writeStringToWriter(writer, str.String())
		}

	case storage.ListType:
		if list, ok := value.Data.(*storage.List); ok {
			items := list.ToSlice()
			writer.Write([]byte{TypeList})
			w.writeStringToWriter(writer, key)
			w.writeLengthToWriter(writer, len(items))
			for _, item := range items {
				w.writeStringToWriter(writer, item)
			}
		}

	case storage.HashType:
		if hash, ok := value.Data.(*storage.Hash); ok {
			flat := hash.GetAll()
			writer.Write([]byte{TypeHash})
			w.writeStringToWriter(writer, key)
			w.writeLengthToWriter(writer, len(flat)/2)
			for i := 0; i+1 < len(flat); i += 2 {
				w.writeStringToWriter(writer, flat[i])
				w.writeStringToWriter(writer, flat[i+1])
			}
		}

	case storage.SetType:
		if set, ok := value.Data.(*storage.Set); ok {
			members := set.GetMembers()
			writer.Write([]byte{TypeSet})
			w.writeStringToWriter(writer, key)
			w.writeLengthToWriter(writer, len(members))
			for _, member := range members {
				w.writeStringToWriter(writer, member)
			}
		}

	case storage.ZSetType:
		if zset, ok := value.Data.(*storage.ZSet); ok {
			members := zset.GetAll()
			writer.Write([]byte{TypeZSet})
			w.writeStringToWriter(writer, key)
			w.writeLengthToWriter(writer, len(members))
			for _, member := range members {
				w.writeStringToWriter(writer, member.Member)
				w.writeStringToWriter(writer, fmt.Sprintf("%g", member.Score))
			}
		}
	}

	return nil
}

// writeStringToWriter writes a length-prefixed string to io.Writer
func (w *Writer) writeStringToWriter(writer io.Writer, s string) {
	w.writeLengthToWriter(writer, len(s))
	writer.Write([]byte(s))
}

// writeLengthToWriter writes length to io.Writer (for checksum)
func (w *Writer) writeLengthToWriter(writer io.Writer, length int) {
	if length < 64 {
		// 6-bit length
		writer.Write([]byte{byte(length)})
	} else if length < 16384 {
		// 14-bit length
		writer.Write([]byte{
			byte(0x40 | (length >> 8)),
			byte(length & 0xFF),
		})
	} else {
		// 32-bit length
		writer.Write([]byte{0x80})
		binary.Write(writer, binary.BigEndian, uint32(length))
	}
}
