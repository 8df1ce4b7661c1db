package envelope

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/infigaming-com/go-sqs-transport/filestore"
	"github.com/infigaming-com/go-sqs-transport/util"
)

// DefaultInlineLimit keeps encoded messages under the 256 KiB SQS limit with
// room for attributes.
const DefaultInlineLimit = 256*1024 - 10*1024

const bodyContentType = "application/octet-stream"

type Encoder struct {
	blobs       filestore.FileStore
	keyPrefix   string
	inlineLimit int
}

type EncoderOption func(*Encoder)

func WithInlineLimit(limit int) EncoderOption {
	return func(e *Encoder) {
		if limit > 0 {
			e.inlineLimit = limit
		}
	}
}

func NewEncoder(blobs filestore.FileStore, keyPrefix string, opts ...EncoderOption) *Encoder {
	e := &Encoder{
		blobs:       blobs,
		keyPrefix:   keyPrefix,
		inlineLimit: DefaultInlineLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode renders msg as a queue message body, assigning an id when msg has
// none. Bodies that push the envelope past the inline limit are uploaded to
// the blob store.
func (e *Encoder) Encode(ctx context.Context, msg *TransportMessage) (string, error) {
	if msg.ID == "" {
		msg.ID = util.NewUUID()
	}
	w := wireMessage{
		ID:             msg.ID,
		Headers:        msg.Headers,
		Body:           msg.Body,
		ReplyToAddress: msg.ReplyToAddress,
	}
	if msg.TimeToBeReceived > 0 {
		w.TimeToBeReceived = msg.TimeToBeReceived.String()
	}

	data, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("fail to marshal envelope %s: %w", msg.ID, err)
	}
	if len(data) <= e.inlineLimit {
		return string(data), nil
	}

	if e.blobs == nil {
		return "", fmt.Errorf("%w: message %s is %d bytes and no blob store is configured", ErrBodyTooLarge, msg.ID, len(data))
	}
	key := e.keyPrefix + msg.ID
	if err := e.blobs.UploadFileData(ctx, msg.Body, bodyContentType, key); err != nil {
		return "", fmt.Errorf("fail to upload body of %s: %w", msg.ID, err)
	}
	w.Body = nil
	w.S3BodyKey = key

	data, err = json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("fail to marshal envelope %s: %w", msg.ID, err)
	}
	return string(data), nil
}
