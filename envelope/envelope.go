// Package envelope converts between raw queue message bodies and transport
// messages, fetching bodies that were too large to send inline.
package envelope

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/infigaming-com/go-sqs-transport/filestore"
)

const (
	// HeaderMessageID carries the logical message id for senders that do not
	// set the id field.
	HeaderMessageID = "MessageId"
	// HeaderCorrelationID ties a message to the conversation it belongs to.
	// Handlers read it with util.CorrelationIdFromCtx.
	HeaderCorrelationID = "CorrelationId"
)

// TransportMessage is what the handler receives.
type TransportMessage struct {
	ID      string
	Headers map[string]string
	Body    []byte
	// TimeToBeReceived of zero means the message never expires.
	TimeToBeReceived time.Duration
	ReplyToAddress   string
}

// Expired reports whether sent + TimeToBeReceived <= now. A zero sent time
// is treated as unknown and never expires.
func (m *TransportMessage) Expired(sent, now time.Time) bool {
	if m.TimeToBeReceived <= 0 || sent.IsZero() {
		return false
	}
	return !sent.Add(m.TimeToBeReceived).After(now)
}

// Envelope is a decoded queue message. Message is nil when the envelope
// could be parsed but its body could not be resolved.
type Envelope struct {
	ID        string
	S3BodyKey string
	Message   *TransportMessage
}

func (e *Envelope) HasExternalBody() bool {
	return e != nil && e.S3BodyKey != ""
}

type wireMessage struct {
	ID               string            `json:"id,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	Body             []byte            `json:"body,omitempty"`
	S3BodyKey        string            `json:"s3BodyKey,omitempty"`
	TimeToBeReceived string            `json:"timeToBeReceived,omitempty"`
	ReplyToAddress   string            `json:"replyToAddress,omitempty"`
}

type Codec struct {
	blobs     filestore.FileStore
	keyPrefix string
}

// NewCodec returns a codec resolving external bodies from blobs under
// keyPrefix + message id. blobs may be nil when large bodies are not used.
func NewCodec(blobs filestore.FileStore, keyPrefix string) *Codec {
	return &Codec{blobs: blobs, keyPrefix: keyPrefix}
}

func (c *Codec) BlobKey(messageID string) string {
	return c.keyPrefix + messageID
}

// Decode parses body. Every failure is a *DecodeError. When the envelope
// parses but its external body cannot be fetched, the partial envelope is
// returned together with the error so the caller can still clean up.
func (c *Codec) Decode(ctx context.Context, body string) (*Envelope, error) {
	var w wireMessage
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return nil, NewDecodeError(ErrCodeMalformedEnvelope, "malformed envelope", err)
	}

	id := w.ID
	if id == "" {
		id = w.Headers[HeaderMessageID]
	}
	if id == "" {
		return nil, NewDecodeError(ErrCodeMissingMessageID, "envelope has no message id", nil)
	}

	var ttl time.Duration
	if w.TimeToBeReceived != "" {
		d, err := time.ParseDuration(w.TimeToBeReceived)
		if err != nil || d < 0 {
			return nil, NewDecodeError(ErrCodeInvalidTimeToBeReceived, fmt.Sprintf("invalid time to be received %q", w.TimeToBeReceived), err)
		}
		ttl = d
	}

	env := &Envelope{ID: id, S3BodyKey: w.S3BodyKey}

	payload := w.Body
	if w.S3BodyKey != "" {
		if c.blobs == nil {
			return env, NewDecodeError(ErrCodeBodyUnavailable, "envelope references an external body but no blob store is configured", nil)
		}
		data, err := c.blobs.GetFileData(ctx, c.BlobKey(id))
		if err != nil {
			return env, NewDecodeError(ErrCodeBodyUnavailable, fmt.Sprintf("external body for %s unavailable", id), err)
		}
		payload = data
	}

	env.Message = &TransportMessage{
		ID:               id,
		Headers:          w.Headers,
		Body:             payload,
		TimeToBeReceived: ttl,
		ReplyToAddress:   w.ReplyToAddress,
	}
	return env, nil
}
