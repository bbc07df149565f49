// Package render turns workspace state into what a person looks at: HTML
// fragments for the browser and styled text for the terminal client.
package render

import (
	"html/template"
	"time"

	"stratagem-ai/internal/interpret"
	"stratagem-ai/internal/model"
	"stratagem-ai/internal/workspace"
)

const timeLayout = "15:04"

// StateView is the display model shared by the JSON API, the HTML fragments
// and the event streams.
type StateView struct {
	SessionID string        `json:"session_id"`
	Version   uint64        `json:"version"`
	Messages  []MessageView `json:"messages"`
	Pending   []ChipView    `json:"pending"`
	Typing    bool          `json:"typing"`
	Analysis  PanelView     `json:"analysis"`
}

type MessageView struct {
	ID          string          `json:"id"`
	Role        string          `json:"role"`
	Time        string          `json:"time"`
	Timestamp   time.Time       `json:"timestamp"`
	Kind        string          `json:"kind"`
	Structured  *StructuredView `json:"structured,omitempty"`
	Text        string          `json:"text,omitempty"`
	Attachments []ChipView      `json:"attachments,omitempty"`

	HTML template.HTML `json:"-"`
}

type StructuredView struct {
	Summary        string     `json:"summary"`
	Analysis       string     `json:"analysis"`
	Recommendation string     `json:"recommendation"`
	Immediate      string     `json:"immediate"`
	ShortTerm      string     `json:"short_term"`
	Risks          []RiskView `json:"risks"`
	NextStep       string     `json:"next_step"`
}

// RiskView keeps the severity label the model sent; Tier and Class are what
// the display keys off.
type RiskView struct {
	Risk     string `json:"risk"`
	Severity string `json:"severity"`
	Tier     string `json:"tier"`
	Class    string `json:"class"`
}

type ChipView struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Type  string `json:"type"`
}

type PanelView struct {
	Status   string          `json:"status"`
	Document string          `json:"document,omitempty"`
	Incoming string          `json:"incoming,omitempty"`
	Result   *StructuredView `json:"result,omitempty"`
}

// BuildView interprets every message in st. Plain-text bodies are left as raw
// markdown; Renderer fills in their HTML.
func BuildView(sessionID string, st workspace.State) StateView {
	msgs := st.Transcript.Messages()
	view := StateView{
		SessionID: sessionID,
		Version:   st.Version,
		Messages:  make([]MessageView, 0, len(msgs)),
		Pending:   Chips(st.Pending),
		Typing:    st.Typing(),
		Analysis:  buildPanel(st.Panel),
	}
	for _, m := range msgs {
		view.Messages = append(view.Messages, buildMessage(m))
	}
	return view
}

func buildMessage(m model.Message) MessageView {
	mv := MessageView{
		ID:          m.ID,
		Role:        string(m.Role),
		Time:        m.Timestamp.Format(timeLayout),
		Timestamp:   m.Timestamp,
		Attachments: Chips(m.Attachments),
	}
	// user turns are shown as typed
	if m.Role == model.RoleUser {
		mv.Kind = interpret.PlainText.String()
		mv.Text = m.Content
		return mv
	}
	reply := interpret.Interpret(m.Content)
	mv.Kind = reply.Kind.String()
	if reply.Kind == interpret.Structured {
		mv.Structured = BuildStructured(reply.Structured)
	} else {
		mv.Text = reply.Text
	}
	return mv
}

func BuildStructured(resp model.StructuredResponse) *StructuredView {
	sv := &StructuredView{
		Summary:        resp.Summary,
		Analysis:       resp.Analysis,
		Recommendation: resp.Recommendation,
		Immediate:      resp.Execution.Immediate,
		ShortTerm:      resp.Execution.ShortTerm,
		Risks:          make([]RiskView, 0, len(resp.Risks)),
		NextStep:       resp.NextStep,
	}
	for _, r := range resp.Risks {
		tier := interpret.TierOf(r.Severity)
		sv.Risks = append(sv.Risks, RiskView{
			Risk:     r.Risk,
			Severity: string(r.Severity),
			Tier:     tier.String(),
			Class:    "sev-" + tier.String(),
		})
	}
	return sv
}

func buildPanel(p workspace.Panel) PanelView {
	pv := PanelView{Status: string(p.Status()), Document: p.Document, Incoming: p.Incoming}
	if p.Current != nil {
		pv.Result = BuildStructured(*p.Current)
	}
	return pv
}

func Chips(atts []model.Attachment) []ChipView {
	out := make([]ChipView, len(atts))
	for i, a := range atts {
		out[i] = ChipView{Index: i, Name: a.Name, Type: a.Type}
	}
	return out
}
