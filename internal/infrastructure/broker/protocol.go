// Package broker implements the Worker Broker (IPC): a TCP listener, one
// accepted connection per worker process, length-prefixed JSON frames
// (4-byte big-endian length + JSON body). No ZeroMQ binding is used; a
// length-prefixed TCP frame is the idiomatic Go substitute for a
// REQ/REP wire protocol.
package broker

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/oocana-go/oocana/internal/domain/flow"
)

// MessageType discriminates the wire envelope's payload.
type MessageType string

const (
	TypeBlockReady MessageType = "block_ready"
	TypeBlockInput MessageType = "block_input"
	TypeBlockOutput MessageType = "block_output"
	TypeBlockError MessageType = "block_error"
	TypeBlockDone  MessageType = "block_done"
	TypeCancel     MessageType = "cancel"
)

// Envelope is the outermost wire frame: a type tag plus the raw payload,
// decoded a second time into the concrete message once Type is known.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// BlockReady announces a worker is ready to receive input for a
// dispatched job.
type BlockReady struct {
	SessionID   flow.SessionId   `json:"session_id"`
	JobID       flow.JobId       `json:"job_id"`
	BlockTaskID flow.BlockTaskId `json:"block_task_id"`
	BlockID     string           `json:"block_id"`
}

// BlockInput is the broker's single reply to a BlockReady: the input
// bundle and any executor options for this firing.
type BlockInput struct {
	JobID       flow.JobId                       `json:"job_id"`
	BlockTaskID flow.BlockTaskId                  `json:"block_task_id"`
	Input       map[flow.HandleName]interface{}   `json:"input"`
	Options     map[string]interface{}            `json:"options,omitempty"`
}

// BlockOutput is one emitted value on one output handle.
type BlockOutput struct {
	JobID       flow.JobId       `json:"job_id"`
	BlockTaskID flow.BlockTaskId `json:"block_task_id"`
	Handle      flow.HandleName  `json:"handle"`
	Output      interface{}      `json:"output"`
	Done        bool             `json:"done"`
}

// BlockError reports a firing failure.
type BlockError struct {
	JobID       flow.JobId       `json:"job_id"`
	BlockTaskID flow.BlockTaskId `json:"block_task_id"`
	Error       string           `json:"error"`
}

// BlockDone signals the end of one firing.
type BlockDone struct {
	JobID       flow.JobId       `json:"job_id"`
	BlockTaskID flow.BlockTaskId `json:"block_task_id"`
}

// CancelMessage asks a worker to abandon a job, best-effort.
type CancelMessage struct {
	JobID flow.JobId `json:"job_id"`
}

// writeFrame writes a 4-byte big-endian length prefix followed by the
// JSON-encoded envelope.
func writeFrame(w io.Writer, msgType MessageType, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("broker: encoding %s payload: %w", msgType, err)
	}
	env, err := json.Marshal(Envelope{Type: msgType, Payload: body})
	if err != nil {
		return fmt.Errorf("broker: encoding envelope: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(env)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("broker: writing frame length: %w", err)
	}
	if _, err := w.Write(env); err != nil {
		return fmt.Errorf("broker: writing frame body: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed envelope.
func readFrame(r io.Reader) (Envelope, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Envelope{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	const maxFrame = 64 << 20
	if n > maxFrame {
		return Envelope{}, fmt.Errorf("broker: frame too large (%d bytes)", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		return Envelope{}, fmt.Errorf("broker: decoding envelope: %w", err)
	}
	return env, nil
}
