package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odev-ai/pdfproc/internal/api"
)

const (
	TypeIngest = "pdfproc:ingest"
)

type ingestTaskPayload struct {
	ProcessingID string           `json:"processing_id"`
	SessionID    string           `json:"session_id"`
	Mode         string           `json:"mode"`
	Meta         api.DocumentMeta `json:"meta"`

	// base64 encoded file contents
	Content string `json:"content"`
}

func NewIngestTask(processingID, sessionID, mode string, meta api.DocumentMeta, content string) (*asynq.Task, error) {
	tp := ingestTaskPayload{
		ProcessingID: processingID,
		SessionID:    sessionID,
		Mode:         mode,
		Meta:         meta,
		Content:      content,
	}
	payload, err := json.Marshal(tp)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TypeIngest,
		payload,
		asynq.TaskID(processingID),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
	), nil
}
