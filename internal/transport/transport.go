// Copyright 2025 Alan Matykiewicz
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to use,
// copy, modify, merge, publish, distribute, sublicense, and/or sell copies of the
// Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
// EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES
// OF MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
// NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT
// HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY,
// WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING
// FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR
// OTHER DEALINGS IN THE SOFTWARE.

package transport

import (
	"context"
	"errors"
	"time"
)

var (
	TraceExpiry = time.Hour * 24

	ErrTraceNotFound = errors.New("trace not found")
)

// Transport connects the HTTP server with the ingestion worker: a
// message stream per processing run plus a queryable trace record.
type Transport interface {
	GetMessageStream(id string) (MessageStream, error)
	SetTrace(ctx context.Context, trace *ProcessingTrace) error
	GetTrace(ctx context.Context, traceID string) (*ProcessingTrace, error)
}

type MessageStream interface {
	Send(ctx context.Context, payload MessageStreamPayload) error

	Recv(ctx context.Context) (*MessageStreamPayload, error)

	GetID() string
}

type MessageStreamPayload struct {
	ID     int         `json:"id"`
	Status string      `json:"status"`
	Type   MessageType `json:"type"`

	Content string        `json:"content"`
	Report  *IngestReport `json:"report,omitempty"`
}

type MessageType int

const (
	MessageTypeOther = iota
	MessageTypeProgress
	MessageTypeReport
)

// IngestReport is the final outcome of one processing run, delivered
// over the message stream so a waiting request can answer with it.
type IngestReport struct {
	Success             bool     `json:"success"`
	Message             string   `json:"message"`
	Reason              string   `json:"reason,omitempty"`
	SessionID           string   `json:"session_id"`
	ExtractedTextLength int      `json:"extracted_text_length"`
	ChunkCount          int      `json:"chunk_count"`
	UploadedCount       int      `json:"uploaded_count"`
	FailedCount         int      `json:"failed_count"`
	Chunks              []string `json:"chunks,omitempty"`
}

type ProcessingTrace struct {
	ID            string `redis:"id"`
	Status        int    `redis:"status"`
	Message       string `redis:"message"`
	Filename      string `redis:"filename"`
	UserID        string `redis:"user_id"`
	ChunkCount    int    `redis:"chunk_count"`
	UploadedCount int    `redis:"uploaded_count"`
	FailedCount   int    `redis:"failed_count"`
	StartedAt     int64  `redis:"started_at"`
	CompletedAt   int64  `redis:"completed_at"`
}

type TraceStatus int

const (
	TraceStatusUnspecified = iota
	TraceStatusPending
	TraceStatusRunning
	TraceStatusCompleted
	TraceStatusFailed
)

func (s TraceStatus) String() string {
	switch s {
	case TraceStatusPending:
		return "pending"
	case TraceStatusRunning:
		return "running"
	case TraceStatusCompleted:
		return "completed"
	case TraceStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}
