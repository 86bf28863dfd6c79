package handler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kvserver/redis/internal/dynstr"
	"github.com/kvserver/redis/internal/processor"
	"github.com/kvserver/redis/internal/protocol"
	"github.com/kvserver/redis/internal/storage"
)

func (h *CommandHandler) handlePing(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) > 1 {
		return protocol.EncodeBulkString(cmd.Args[1])
	}
	return protocol.EncodeSimpleString("PONG")
}

func (h *CommandHandler) handleEcho(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return protocol.EncodeError("ERR wrong number of arguments for 'echo' command")
	}
	return protocol.EncodeBulkString(cmd.Args[1])
}

func (h *CommandHandler) handleSet(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 3 {
		return protocol.EncodeError("ERR wrong number of arguments for 'set' command")
	}

	key := cmd.Args[1]
	value := cmd.Args[2]

	procCmd := &processor.Command{
		Type:     processor.CmdSet,
		DB:       client.DB,
		Key:      key,
		Value:    dynstr.NewFromString(value),
		ExpireAt: storage.NoExpiry,
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	<-procCmd.Response

	return protocol.EncodeSimpleString("OK")
}

func (h *CommandHandler) handleSetEx(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 4 {
		return protocol.EncodeError("ERR wrong number of arguments for 'setex' command")
	}

	key := cmd.Args[1]
	seconds := cmd.Args[2]
	value := cmd.Args[3]

	var sec int
	if _, err := fmt.Sscanf(seconds, "%d", &sec); err != nil || sec <= 0 {
		return protocol.EncodeError("ERR invalid expire time in 'setex' command")
	}

	expiresAt := time.Now().Add(time.Duration(sec) * time.Second).UnixMilli()
	procCmd := &processor.Command{
		Type:     processor.CmdSet,
		DB:       client.DB,
		Key:      key,
		Value:    dynstr.NewFromString(value),
		ExpireAt: expiresAt,
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	<-procCmd.Response

	return protocol.EncodeSimpleString("OK")
}

func (h *CommandHandler) handleGet(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return protocol.EncodeError("ERR wrong number of arguments for 'get' command")
	}

	key := cmd.Args[1]

	procCmd := &processor.Command{
		Type:     processor.CmdGet,
		DB:       client.DB,
		Key:      key,
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	result := <-procCmd.Response

	res, ok := result.(processor.GetResult)
	if !ok || res.Err != nil || !res.Exists {
		if ok && res.Err != nil {
			return protocol.EncodeError(res.Err.Error())
		}
		return protocol.EncodeNullBulkString()
	}

	return protocol.EncodeBulkString(res.Value)
}

func (h *CommandHandler) handleAppend(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 3 {
		return protocol.EncodeError("ERR wrong number of arguments for 'append' command")
	}

	procCmd := &processor.Command{
		Type:     processor.CmdAppend,
		DB:       client.DB,
		Key:      cmd.Args[1],
		Value:    cmd.Args[2],
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	result := <-procCmd.Response

	res := result.(processor.IntResult)
	if res.Err != nil {
		return protocol.EncodeError(res.Err.Error())
	}
	return protocol.EncodeInteger(res.Result)
}

func (h *CommandHandler) handleStrLen(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return protocol.EncodeError("ERR wrong number of arguments for 'strlen' command")
	}

	procCmd := &processor.Command{
		Type:     processor.CmdStrLen,
		DB:       client.DB,
		Key:      cmd.Args[1],
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	result := <-procCmd.Response

	res := result.(processor.IntResult)
	if res.Err != nil {
		return protocol.EncodeError(res.Err.Error())
	}
	return protocol.EncodeInteger(res.Result)
}

func (h *CommandHandler) handleGetRange(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 4 {
		return protocol.EncodeError("ERR wrong number of arguments for 'getrange' command")
	}

	start, err := strconv.Atoi(cmd.Args[2])
	if err != nil {
		return protocol.EncodeError("ERR value is not an integer or out of range")
	}
	end, err := strconv.Atoi(cmd.Args[3])
	if err != nil {
		return protocol.EncodeError("ERR value is not an integer or out of range")
	}

	procCmd := &processor.Command{
		Type:     processor.CmdGetRange,
		DB:       client.DB,
		Key:      cmd.Args[1],
		Args:     []interface{}{start, end},
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	result := <-procCmd.Response

	res := result.(processor.GetResult)
	if res.Err != nil {
		return protocol.EncodeError(res.Err.Error())
	}
	if !res.Exists {
		return protocol.EncodeBulkString("")
	}
	return protocol.EncodeBulkString(res.Value)
}

func (h *CommandHandler) handleDel(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return protocol.EncodeError("ERR wrong number of arguments for 'del' command")
	}

	count := 0
	for i := 1; i < len(cmd.Args); i++ {
		procCmd := &processor.Command{
			Type:     processor.CmdDelete,
			DB:       client.DB,
			Key:      cmd.Args[i],
			Response: make(chan interface{}, 1),
		}
		h.processor.Submit(procCmd)
		result := <-procCmd.Response
		if result.(bool) {
			count++
		}
	}

	return protocol.EncodeInteger(count)
}

func (h *CommandHandler) handleExists(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return protocol.EncodeError("ERR wrong number of arguments for 'exists' command")
	}

	count := 0
	for i := 1; i < len(cmd.Args); i++ {
		procCmd := &processor.Command{
			Type:     processor.CmdExists,
			DB:       client.DB,
			Key:      cmd.Args[i],
			Response: make(chan interface{}, 1),
		}
		h.processor.Submit(procCmd)
		result := <-procCmd.Response
		if result.(bool) {
			count++
		}
	}

	return protocol.EncodeInteger(count)
}

func (h *CommandHandler) handleType(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return protocol.EncodeError("ERR wrong number of arguments for 'type' command")
	}

	procCmd := &processor.Command{
		Type:     processor.CmdType,
		DB:       client.DB,
		Key:      cmd.Args[1],
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	result := <-procCmd.Response

	typeName, _ := result.(string)
	if typeName == "" {
		return protocol.EncodeSimpleString("none")
	}
	return protocol.EncodeSimpleString(typeName)
}

func (h *CommandHandler) handleKeys(client *Client, cmd *protocol.Command) []byte {
	procCmd := &processor.Command{
		Type:     processor.CmdKeys,
		DB:       client.DB,
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	result := <-procCmd.Response

	keys := result.([]string)
	return protocol.EncodeArray(keys)
}

func (h *CommandHandler) handleSelect(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return protocol.EncodeError("ERR wrong number of arguments for 'select' command")
	}

	index, err := strconv.Atoi(cmd.Args[1])
	if err != nil {
		return protocol.EncodeError("ERR value is not an integer or out of range")
	}

	procCmd := &processor.Command{
		Type:     processor.CmdSelect,
		DB:       index,
		Args:     []interface{}{index},
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	result := <-procCmd.Response

	if resErr, ok := result.(error); ok {
		return protocol.EncodeError(resErr.Error())
	}

	client.DB = index
	return protocol.EncodeSimpleString("OK")
}

func (h *CommandHandler) handleFlushDB(client *Client, cmd *protocol.Command) []byte {
	procCmd := &processor.Command{
		Type:     processor.CmdFlush,
		DB:       client.DB,
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	<-procCmd.Response

	return protocol.EncodeSimpleString("OK")
}

func (h *CommandHandler) handleFlushAll(client *Client, cmd *protocol.Command) []byte {
	procCmd := &processor.Command{
		Type:     processor.CmdFlushAll,
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	<-procCmd.Response

	return protocol.EncodeSimpleString("OK")
}

func (h *CommandHandler) handleDBSize(client *Client, cmd *protocol.Command) []byte {
	procCmd := &processor.Command{
		Type:     processor.CmdDBSize,
		DB:       client.DB,
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	result := <-procCmd.Response

	res := result.(processor.IntResult)
	return protocol.EncodeInteger(res.Result)
}

func (h *CommandHandler) handleCommand(client *Client, cmd *protocol.Command) []byte {
	return protocol.EncodeArray([]string{})
}

func (h *CommandHandler) handleExpire(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 3 {
		return protocol.EncodeError("ERR wrong number of arguments for 'expire' command")
	}

	key := cmd.Args[1]
	seconds := cmd.Args[2]

	var sec int
	if _, err := fmt.Sscanf(seconds, "%d", &sec); err != nil || sec <= 0 {
		return protocol.EncodeError("ERR invalid expire time in 'expire' command")
	}

	expiresAt := time.Now().Add(time.Duration(sec) * time.Second).UnixMilli()
	procCmd := &processor.Command{
		Type:     processor.CmdExpire,
		DB:       client.DB,
		Key:      key,
		ExpireAt: expiresAt,
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	result := <-procCmd.Response

	if result.(bool) {
		return protocol.EncodeInteger(1)
	}
	return protocol.EncodeInteger(0)
}

func (h *CommandHandler) handlePersist(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return protocol.EncodeError("ERR wrong number of arguments for 'persist' command")
	}

	procCmd := &processor.Command{
		Type:     processor.CmdPersist,
		DB:       client.DB,
		Key:      cmd.Args[1],
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	result := <-procCmd.Response

	if result.(bool) {
		return protocol.EncodeInteger(1)
	}
	return protocol.EncodeInteger(0)
}

func (h *CommandHandler) handleTTL(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return protocol.EncodeError("ERR wrong number of arguments for 'ttl' command")
	}

	key := cmd.Args[1]

	procCmd := &processor.Command{
		Type:     processor.CmdTTL,
		DB:       client.DB,
		Key:      key,
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	result := <-procCmd.Response

	res := result.(processor.Int64Result)
	if res.Result < 0 {
		return protocol.EncodeInteger64(res.Result)
	}
	return protocol.EncodeInteger64(res.Result / 1000)
}

func (h *CommandHandler) handleIncr(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return protocol.EncodeError("ERR wrong number of arguments for 'incr' command")
	}
	return h.submitIncrBy(client, cmd.Args[1], 1)
}

func (h *CommandHandler) handleIncrBy(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 3 {
		return protocol.EncodeError("ERR wrong number of arguments for 'incrby' command")
	}
	delta, err := strconv.ParseInt(cmd.Args[2], 10, 64)
	if err != nil {
		return protocol.EncodeError("ERR value is not an integer or out of range")
	}
	return h.submitIncrBy(client, cmd.Args[1], delta)
}

func (h *CommandHandler) handleDecr(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return protocol.EncodeError("ERR wrong number of arguments for 'decr' command")
	}
	return h.submitDecrBy(client, cmd.Args[1], 1)
}

func (h *CommandHandler) handleDecrBy(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 3 {
		return protocol.EncodeError("ERR wrong number of arguments for 'decrby' command")
	}
	delta, err := strconv.ParseInt(cmd.Args[2], 10, 64)
	if err != nil {
		return protocol.EncodeError("ERR value is not an integer or out of range")
	}
	return h.submitDecrBy(client, cmd.Args[1], delta)
}

func (h *CommandHandler) submitIncrBy(client *Client, key string, delta int64) []byte {
	procCmd := &processor.Command{
		Type:     processor.CmdIncrBy,
		DB:       client.DB,
		Key:      key,
		Value:    delta,
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	result := <-procCmd.Response

	res := result.(processor.Int64Result)
	if res.Err != nil {
		return protocol.EncodeError(res.Err.Error())
	}
	return protocol.EncodeInteger64(res.Result)
}

func (h *CommandHandler) submitDecrBy(client *Client, key string, delta int64) []byte {
	procCmd := &processor.Command{
		Type:     processor.CmdDecrBy,
		DB:       client.DB,
		Key:      key,
		Value:    delta,
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	result := <-procCmd.Response

	res := result.(processor.Int64Result)
	if res.Err != nil {
		return protocol.EncodeError(res.Err.Error())
	}
	return protocol.EncodeInteger64(res.Result)
}

func (h *CommandHandler) handleIncrByFloat(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 3 {
		return protocol.EncodeError("ERR wrong number of arguments for 'incrbyfloat' command")
	}
	delta, err := strconv.ParseFloat(cmd.Args[2], 64)
	if err != nil {
		return protocol.EncodeError("ERR value is not a valid float")
	}

	procCmd := &processor.Command{
		Type:     processor.CmdIncrByFloat,
		DB:       client.DB,
		Key:      cmd.Args[1],
		Value:    delta,
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	result := <-procCmd.Response

	res := result.(processor.Float64Result)
	if res.Err != nil {
		return protocol.EncodeError(res.Err.Error())
	}
	return protocol.EncodeBulkString(strconv.FormatFloat(res.Result, 'f', -1, 64))
}
