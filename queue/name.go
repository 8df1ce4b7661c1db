package queue

import (
	"fmt"
	"strings"
)

const (
	maxQueueNameLength = 80
	fifoSuffix         = ".fifo"
)

// QueueName builds the physical queue name for a logical address. Characters
// SQS does not accept are replaced with '-'.
func QueueName(prefix, address string) (string, error) {
	name := prefix + address
	fifo := strings.HasSuffix(name, fifoSuffix)
	if fifo {
		name = strings.TrimSuffix(name, fifoSuffix)
	}

	var b strings.Builder
	b.Grow(len(name) + len(fifoSuffix))
	for _, r := range name {
		if isQueueNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	if fifo {
		b.WriteString(fifoSuffix)
	}

	out := b.String()
	if out == "" || out == fifoSuffix {
		return "", fmt.Errorf("%w: empty name", ErrInvalidQueueName)
	}
	if len(out) > maxQueueNameLength {
		return "", fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidQueueName, out, maxQueueNameLength)
	}
	return out, nil
}

func isQueueNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_':
		return true
	}
	return false
}
