package handler

import (
	"fmt"
	"strings"

	"github.com/kvserver/redis/internal/processor"
	"github.com/kvserver/redis/internal/protocol"
)

func (h *CommandHandler) handleLPush(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 3 {
		return protocol.EncodeError("ERR wrong number of arguments for 'lpush' command")
	}

	key := cmd.Args[1]
	values := cmd.Args[2:]

	procCmd := &processor.Command{
		Type:     processor.CmdLPush,
		DB:       client.DB,
		Key:      key,
		Args:     []interface{}{values},
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

func (h *CommandHandler) handleRPush(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 3 {
		return protocol.EncodeError("ERR wrong number of arguments for 'rpush' command")
	}

	key := cmd.Args[1]
	values := cmd.Args[2:]

	procCmd := &processor.Command{
		Type:     processor.CmdRPush,
		DB:       client.DB,
		Key:      key,
		Args:     []interface{}{values},
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

func (h *CommandHandler) handleLPop(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return protocol.EncodeError("ERR wrong number of arguments for 'lpop' command")
	}

	key := cmd.Args[1]
	count := 1

	if len(cmd.Args) >= 3 {
		if _, err := fmt.Sscanf(cmd.Args[2], "%d", &count); err != nil {
			return protocol.EncodeError("ERR value is not an integer or out of range")
		}
	}

	procCmd := &processor.Command{
		Type:     processor.CmdLPop,
		DB:       client.DB,
		Key:      key,
		Args:     []interface{}{count},
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	result := <-procCmd.Response

	res := result.(processor.StringSliceResult)

	if res.Err != nil {
		return protocol.EncodeError(res.Err.Error())
	}

	if len(res.Result) == 0 {
		return protocol.EncodeNullBulkString()
	}

	// If count was 1 (default), return single element
	if count == 1 && len(cmd.Args) < 3 {
		return protocol.EncodeBulkString(res.Result[0])
	}

	// Otherwise return array
	return protocol.EncodeArray(res.Result)
}

func (h *CommandHandler) handleRPop(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return protocol.EncodeError("ERR wrong number of arguments for 'rpop' command")
	}

	key := cmd.Args[1]
	count := 1

	if len(cmd.Args) >= 3 {
		if _, err := fmt.Sscanf(cmd.Args[2], "%d", &count); err != nil {
			return protocol.EncodeError("ERR value is not an integer or out of range")
		}
	}

	procCmd := &processor.Command{
		Type:     processor.CmdRPop,
		DB:       client.DB,
		Key:      key,
		Args:     []interface{}{count},
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	result := <-procCmd.Response

	res := result.(processor.StringSliceResult)

	if res.Err != nil {
		return protocol.EncodeError(res.Err.Error())
	}

	if len(res.Result) == 0 {
		return protocol.EncodeNullBulkString()
	}

	// If count was 1 (default), return single element
	if count == 1 && len(cmd.Args) < 3 {
		return protocol.EncodeBulkString(res.Result[0])
	}

	// Otherwise return array
	return protocol.EncodeArray(res.Result)
}

func (h *CommandHandler) handleLLen(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return protocol.EncodeError("ERR wrong number of arguments for 'llen' command")
	}

	key := cmd.Args[1]

	procCmd := &processor.Command{
		Type:     processor.CmdLLen,
		DB:       client.DB,
		Key:      key,
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

func (h *CommandHandler) handleLRange(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 4 {
		return protocol.EncodeError("ERR wrong number of arguments for 'lrange' command")
	}

	key := cmd.Args[1]
	var start, stop int

	if _, err := fmt.Sscanf(cmd.Args[2], "%d", &start); err != nil {
		return protocol.EncodeError("ERR value is not an integer or out of range")
	}
	if _, err := fmt.Sscanf(cmd.Args[3], "%d", &stop); err != nil {
		return protocol.EncodeError("ERR value is not an integer or out of range")
	}

	procCmd := &processor.Command{
		Type:     processor.CmdLRange,
		DB:       client.DB,
		Key:      key,
		Args:     []interface{}{start, stop},
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	result := <-procCmd.Response

	res := result.(processor.StringSliceResult)

	if res.Err != nil {
		return protocol.EncodeError(res.Err.Error())
	}
	return protocol.EncodeArray(res.Result)
}

func (h *CommandHandler) handleLIndex(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 3 {
		return protocol.EncodeError("ERR wrong number of arguments for 'lindex' command")
	}

	key := cmd.Args[1]
	var index int

	if _, err := fmt.Sscanf(cmd.Args[2], "%d", &index); err != nil {
		return protocol.EncodeError("ERR value is not an integer or out of range")
	}

	procCmd := &processor.Command{
		Type:     processor.CmdLIndex,
		DB:       client.DB,
		Key:      key,
		Args:     []interface{}{index},
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	result := <-procCmd.Response

	res := result.(processor.IndexResult)

	if res.Err != nil {
		return protocol.EncodeError(res.Err.Error())
	}

	if !res.Exists {
		return protocol.EncodeNullBulkString()
	}
	return protocol.EncodeBulkString(res.Value)
}

func (h *CommandHandler) handleLSet(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 4 {
		return protocol.EncodeError("ERR wrong number of arguments for 'lset' command")
	}

	key := cmd.Args[1]
	var index int

	if _, err := fmt.Sscanf(cmd.Args[2], "%d", &index); err != nil {
		return protocol.EncodeError("ERR value is not an integer or out of range")
	}
	value := cmd.Args[3]

	procCmd := &processor.Command{
		Type:     processor.CmdLSet,
		DB:       client.DB,
		Key:      key,
		Args:     []interface{}{index, value},
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	result := <-procCmd.Response

	if err, ok := result.(error); ok && err != nil {
		return protocol.EncodeError(err.Error())
	}
	return protocol.EncodeSimpleString("OK")
}

func (h *CommandHandler) handleLRem(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 4 {
		return protocol.EncodeError("ERR wrong number of arguments for 'lrem' command")
	}

	key := cmd.Args[1]
	var count int

	if _, err := fmt.Sscanf(cmd.Args[2], "%d", &count); err != nil {
		return protocol.EncodeError("ERR value is not an integer or out of range")
	}
	value := cmd.Args[3]

	procCmd := &processor.Command{
		Type:     processor.CmdLRem,
		DB:       client.DB,
		Key:      key,
		Args:     []interface{}{count, value},
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

func (h *CommandHandler) handleLTrim(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 4 {
		return protocol.EncodeError("ERR wrong number of arguments for 'ltrim' command")
	}

	key := cmd.Args[1]
	var start, stop int

	if _, err := fmt.Sscanf(cmd.Args[2], "%d", &start); err != nil {
		return protocol.EncodeError("ERR value is not an integer or out of range")
	}
	if _, err := fmt.Sscanf(cmd.Args[3], "%d", &stop); err != nil {
		return protocol.EncodeError("ERR value is not an integer or out of range")
	}

	procCmd := &processor.Command{
		Type:     processor.CmdLTrim,
		DB:       client.DB,
		Key:      key,
		Args:     []interface{}{start, stop},
		Response: make(chan interface{}, 1),
	}
	h.processor.Submit(procCmd)
	result := <-procCmd.Response

	if err, ok := result.(error); ok && err != nil {
		return protocol.EncodeError(err.Error())
	}
	return protocol.EncodeSimpleString("OK")
}

func (h *CommandHandler) handleLInsert(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 5 {
		return protocol.EncodeError("ERR wrong number of arguments for 'linsert' command")
	}

	key := cmd.Args[1]
	position := strings.ToUpper(cmd.Args[2])
	pivot := cmd.Args[3]
	value := cmd.Args[4]

	var before bool
	if position == "BEFORE" {
		before = true
	} else if position == "AFTER" {
		before = false
	} else {
		return protocol.EncodeError("ERR syntax error")
	}

	procCmd := &processor.Command{
		Type:     processor.CmdLInsert,
		DB:       client.DB,
		Key:      key,
		Args:     []interface{}{before, pivot, value},
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
