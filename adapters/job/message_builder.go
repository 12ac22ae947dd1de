package exportjob

import (
	"crypto/sha256"
	"encoding/hex"

	exportcmd "github.com/goliatone/go-docexport/command"
	"github.com/goliatone/go-docexport/export"
	job "github.com/goliatone/go-job"
	"github.com/google/uuid"
)

// MessageBuilderConfig configures execution message building.
type MessageBuilderConfig struct {
	TaskID      string
	TaskPath    string
	Config      job.Config
	IDGenerator func() string
	// Dedup marks messages with an idempotency key derived from the item so
	// a queue merges identical pending items.
	Dedup bool
}

// MessageBuilder turns batch items into go-job execution messages.
type MessageBuilder struct {
	taskID      string
	taskPath    string
	config      job.Config
	idGenerator func() string
	dedup       bool
}

func NewMessageBuilder(cfg MessageBuilderConfig) *MessageBuilder {
	taskID := cfg.TaskID
	if taskID == "" {
		taskID = DefaultExportTaskID
	}
	taskPath := cfg.TaskPath
	if taskPath == "" {
		taskPath = DefaultExportTaskPath
	}
	idGen := cfg.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	return &MessageBuilder{
		taskID:      taskID,
		taskPath:    taskPath,
		config:      cfg.Config,
		idGenerator: idGen,
		dedup:       cfg.Dedup,
	}
}

// Build encodes item into an execution message and returns the payload ID.
func (b *MessageBuilder) Build(item exportcmd.BatchItem) (*job.ExecutionMessage, string, error) {
	if b == nil {
		return nil, "", export.NewError(export.KindInternal, "message builder is nil", nil)
	}

	payload := Payload{ID: b.idGenerator(), Item: item}
	encoded, err := encodePayload(payload)
	if err != nil {
		return nil, "", err
	}

	msg := &job.ExecutionMessage{
		JobID:      b.taskID,
		ScriptPath: b.taskPath,
		Config:     b.config,
		Parameters: map[string]any{"payload": encoded},
	}
	if b.dedup {
		signature, err := itemSignature(item)
		if err != nil {
			return nil, "", err
		}
		msg.IdempotencyKey = signature
		msg.DedupPolicy = job.DedupPolicyMerge
	}
	return msg, payload.ID, nil
}

// itemSignature hashes the item's JSON form, so it ignores the payload ID.
func itemSignature(item exportcmd.BatchItem) (string, error) {
	encoded, err := encodePayload(Payload{Item: item})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}
