package handler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/kvserver/redis/internal/logging"
	"github.com/kvserver/redis/internal/protocol"
)

var (
	ErrPipelineLimit  = errors.New("pipeline command limit exceeded")
	ErrCommandTimeout = errors.New("command execution timeout")
)

// PipelineConfig holds pipeline-related configuration
type PipelineConfig struct {
	MaxCommands     int           // Maximum commands per pipeline batch
	SlowThreshold   time.Duration // Slow-command threshold; the pipeline does not read it
	CommandTimeout  time.Duration // Timeout for individual command execution
	ReadTimeout     time.Duration // Timeout for reading client data (idle timeout)
	PipelineTimeout time.Duration // Short timeout for waiting for in-flight pipelined commands
}

// PipelineResult holds the result of a pipelined command
type PipelineResult struct {
	Response []byte
	Duration time.Duration
	Command  string
	Args     []string
	Err      error
}

// HandlePipeline processes commands with pipelining support using Redis-style streaming.
// This approach: Read one → Execute one → Queue response → Repeat → Flush all
// Benefits: O(1) memory per command, immediate execution, matches real Redis behavior
func (h *CommandHandler) HandlePipeline(ctx context.Context, client *Client, config PipelineConfig) {
	reader := bufio.NewReaderSize(client.Conn, h.readBufferSize)
	writer := bufio.NewWriterSize(client.Conn, h.writeBufferSize)

	// Default pipeline timeout to 1ms if not set (very short - just to catch in-flight data)
	pipelineTimeout := config.PipelineTimeout
	if pipelineTimeout <= 0 {
		pipelineTimeout = 1 * time.Millisecond
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
			readTimeout := config.ReadTimeout
			if readTimeout <= 0 {
				readTimeout = 30 * time.Second // Default idle timeout
			}
			client.Conn.SetReadDeadline(time.Now().Add(readTimeout))

			// Wait for first command (this blocks - waiting for client to initiate)
			cmd, err := protocol.ParseCommand(reader)
			if err != nil {
				if err == io.EOF {
					return
				}
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					logging.L.Infof("Client %d: idle timeout, disconnecting", client.ID)
					return
				}
				logging.L.Infof("Error reading command: %v", err)
				response := protocol.EncodeError(fmt.Sprintf("ERR %v", err))
				writer.Write(response)
				writer.Flush()
				continue
			}

			// Clear deadline for processing
			client.Conn.SetReadDeadline(time.Time{})

			commandsInBatch := 0

			result := h.executeWithAOF(ctx, client, cmd, config.CommandTimeout)
			if h.handleCommandResult(result, client) {
				return
			}
			if _, err := writer.Write(result.Response); err != nil {
				logging.L.Infof("Client %d: write error: %v", client.ID, err)
				return
			}
			commandsInBatch++

			// Process remaining pipelined commands.
			// Use a short timeout to wait for more data that might be in-flight.
			for commandsInBatch < config.MaxCommands {
				if protocol.HasCompleteCommand(reader) {
					cmd, err := protocol.ParseCommand(reader)
					if err != nil {
						writer.Write(protocol.EncodeError(fmt.Sprintf("ERR %v", err)))
						break
					}

					result := h.executeWithAOF(ctx, client, cmd, config.CommandTimeout)
					if h.handleCommandResult(result, client) {
						return
					}
					if _, err := writer.Write(result.Response); err != nil {
						logging.L.Infof("Client %d: write error: %v", client.ID, err)
						return
					}
					commandsInBatch++
					continue
				}

				// No complete command buffered - wait briefly for more data,
				// catching data that's still in flight on the network.
				client.Conn.SetReadDeadline(time.Now().Add(pipelineTimeout))
				cmd, err := protocol.ParseCommand(reader)
				client.Conn.SetReadDeadline(time.Time{})

				if err != nil {
					if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
						break // No more commands, flush what we have
					}
					if err == io.EOF {
						writer.Flush()
						return
					}
					writer.Write(protocol.EncodeError(fmt.Sprintf("ERR %v", err)))
					break
				}

				result := h.executeWithAOF(ctx, client, cmd, config.CommandTimeout)
				if h.handleCommandResult(result, client) {
					return
				}
				if _, err := writer.Write(result.Response); err != nil {
					logging.L.Infof("Client %d: write error: %v", client.ID, err)
					return
				}
				commandsInBatch++
			}

			// Flush all queued responses at once
			if err := writer.Flush(); err != nil {
				logging.L.Infof("Error flushing response: %v", err)
				return
			}
		}
	}
}

// handleCommandResult checks a command result for a fatal timeout.
// Returns true if the client should be disconnected.
func (h *CommandHandler) handleCommandResult(result PipelineResult, client *Client) bool {
	if result.Err != nil && errors.Is(result.Err, ErrCommandTimeout) {
		logging.L.Infof("Client %d disconnected: command timeout", client.ID)
		return true
	}
	return false
}
