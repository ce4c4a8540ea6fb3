package types

// MaxContentBytes caps chat message content at 64KB to keep rows and
// broadcast frames bounded.
const MaxContentBytes = 65536

// ValidateContent checks message content after trimming. Empty content is
// rejected the same way as a malformed envelope.
func ValidateContent(content string) error {
	if content == "" {
		return ErrEmptyContent
	}
	if len(content) > MaxContentBytes {
		return ErrContentTooLarge
	}
	return nil
}

// Validate ensures a message is well-formed before persistence.
func (m *Message) Validate() error {
	if m.SenderID <= 0 {
		return ErrInvalidSenderID
	}
	return ValidateContent(m.Content)
}
