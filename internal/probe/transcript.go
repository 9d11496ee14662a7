package probe

import "strings"

// Direction marks which side of the dialog produced a transcript line.
type Direction string

const (
	// DirServer marks data received from the remote server.
	DirServer Direction = "<<"
	// DirClient marks data sent by the prober.
	DirClient Direction = ">>"
)

// Line is a single transcript entry in wire order.
type Line struct {
	Dir     Direction
	Payload string
}

// Transcript is the forensic record of one SMTP session. Lines are
// appended in wire order and never reordered.
type Transcript struct {
	lines []Line
}

// Client records a command sent to the server.
func (t *Transcript) Client(payload string) {
	t.lines = append(t.lines, Line{Dir: DirClient, Payload: payload})
}

// Server records data received from the server. Multi-line replies are
// recorded one wire line per transcript line.
func (t *Transcript) Server(payload string) {
	for _, line := range strings.Split(payload, "\n") {
		t.lines = append(t.lines, Line{Dir: DirServer, Payload: line})
	}
}

// Lines returns the recorded lines in wire order.
func (t *Transcript) Lines() []Line {
	return t.lines
}

// String renders the transcript in the "<< reply" / ">> command" form.
func (t *Transcript) String() string {
	var b strings.Builder
	for i, l := range t.lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(l.Dir))
		b.WriteByte(' ')
		b.WriteString(l.Payload)
	}
	return b.String()
}
