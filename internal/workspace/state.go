// Package workspace owns the volatile per-browser conversation state.
//
// A State value is never modified in place. Every change is a Transition, a
// function from the old State to the new one, applied by Session under its
// lock. Two goroutines finishing at the same time (a chat reply and a document
// analysis) therefore both land, whichever order they arrive in.
package workspace

import (
	"stratagem-ai/internal/conversation"
	"stratagem-ai/internal/model"
)

type State struct {
	Transcript conversation.Transcript
	Pending    []model.Attachment
	Panel      Panel

	// pendingReplies counts chat requests that have not settled yet.
	pendingReplies int
	Version        uint64
}

// Panel is the document-analysis side panel. Only the latest result is kept.
// Document always names the file Current was produced from; Incoming names
// the most recently started analysis while any is in flight.
type Panel struct {
	Current  *model.StructuredResponse
	Document string
	Incoming string
	inFlight int
}

func (s State) Typing() bool {
	return s.pendingReplies > 0
}

func (s State) Analyzing() bool {
	return s.Panel.inFlight > 0
}

type PanelStatus string

const (
	PanelEmpty     PanelStatus = "empty"
	PanelLoading   PanelStatus = "loading"
	PanelPopulated PanelStatus = "populated"
)

// Status reports what the panel shows. Loading wins over a stale result.
func (p Panel) Status() PanelStatus {
	switch {
	case p.inFlight > 0:
		return PanelLoading
	case p.Current != nil:
		return PanelPopulated
	default:
		return PanelEmpty
	}
}

type Transition func(State) State

func AddPending(att model.Attachment) Transition {
	return func(s State) State {
		next := make([]model.Attachment, len(s.Pending), len(s.Pending)+1)
		copy(next, s.Pending)
		s.Pending = append(next, att)
		return s
	}
}

// RemovePending drops the attachment at index; out-of-range is a no-op.
func RemovePending(index int) Transition {
	return func(s State) State {
		if index < 0 || index >= len(s.Pending) {
			return s
		}
		next := make([]model.Attachment, 0, len(s.Pending)-1)
		next = append(next, s.Pending[:index]...)
		s.Pending = append(next, s.Pending[index+1:]...)
		return s
	}
}

// Submit drains the pending set into a new user message built by build,
// appends it and marks a reply as outstanding. An empty message leaves the
// state untouched, pending set included.
func Submit(build func(pending []model.Attachment) model.Message) Transition {
	return func(s State) State {
		msg := build(s.Pending)
		if msg.Empty() {
			return s
		}
		s.Transcript = s.Transcript.Append(msg)
		s.Pending = nil
		s.pendingReplies++
		return s
	}
}

func AppendMessage(msg model.Message) Transition {
	return func(s State) State {
		s.Transcript = s.Transcript.Append(msg)
		return s
	}
}

// ReplySettled clears one outstanding reply, whatever its outcome.
func ReplySettled() Transition {
	return func(s State) State {
		if s.pendingReplies > 0 {
			s.pendingReplies--
		}
		return s
	}
}

func AnalysisStarted(document string) Transition {
	return func(s State) State {
		s.Panel.inFlight++
		s.Panel.Incoming = document
		return s
	}
}

// AnalysisSettled ends one in-flight analysis of document. A nil result keeps
// whatever the panel showed before, file name included.
func AnalysisSettled(document string, result *model.StructuredResponse) Transition {
	return func(s State) State {
		if s.Panel.inFlight > 0 {
			s.Panel.inFlight--
		}
		if s.Panel.inFlight == 0 {
			s.Panel.Incoming = ""
		}
		if result != nil {
			r := *result
			s.Panel.Current = &r
			s.Panel.Document = document
		}
		return s
	}
}
