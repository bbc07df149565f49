// Package conversation holds the append-only chat transcript.
package conversation

import "stratagem-ai/internal/model"

// Transcript is an ordered, append-only list of messages. Values are
// copy-on-write: Append never touches the backing array of an older
// Transcript, so a snapshot handed to a slow reader stays valid.
type Transcript struct {
	messages []model.Message
}

func New(seed ...model.Message) Transcript {
	return Transcript{}.Append(seed...)
}

func (t Transcript) Append(msgs ...model.Message) Transcript {
	if len(msgs) == 0 {
		return t
	}
	next := make([]model.Message, len(t.messages), len(t.messages)+len(msgs))
	copy(next, t.messages)
	next = append(next, msgs...)
	return Transcript{messages: next}
}

// Messages returns a copy of the ordered messages.
func (t Transcript) Messages() []model.Message {
	out := make([]model.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t Transcript) Len() int {
	return len(t.messages)
}

// Last returns the most recent message, or false if the transcript is empty.
func (t Transcript) Last() (model.Message, bool) {
	if len(t.messages) == 0 {
		return model.Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}
