package partition

import "strings"

// Severity grades a Question.
type Severity int

const (
	SeverityInformation Severity = iota
	SeverityWarning
	SeverityError
	SeverityBug
)

func (s Severity) String() string {
	switch s {
	case SeverityInformation:
		return "information"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "bug"
	}
}

// Answer is a reply to a Question. Options on a Question are a bitwise OR of Answers.
type Answer int

const (
	// AnswerUnhandled lets the asking operation apply its documented default
	AnswerUnhandled Answer = 0
	AnswerFix       Answer = 0x01
	AnswerYes       Answer = 0x02
	AnswerNo        Answer = 0x04
	AnswerOK        Answer = 0x08
	AnswerRetry     Answer = 0x10
	AnswerIgnore    Answer = 0x20
	AnswerCancel    Answer = 0x40
)

func (a Answer) String() string {
	if a == AnswerUnhandled {
		return "unhandled"
	}
	var names []string
	for _, o := range []struct {
		bit  Answer
		name string
	}{
		{AnswerFix, "fix"}, {AnswerYes, "yes"}, {AnswerNo, "no"}, {AnswerOK, "ok"},
		{AnswerRetry, "retry"}, {AnswerIgnore, "ignore"}, {AnswerCancel, "cancel"},
	} {
		if a&o.bit != 0 {
			names = append(names, o.name)
		}
	}
	return strings.Join(names, "/")
}

// Question is raised by a driver when an operation can only continue with the caller's
// consent, e.g. to proceed with an empty table over unreadable data.
type Question struct {
	Severity Severity
	Message  string
	Options  Answer
}

// Handler answers Questions.
type Handler interface {
	Confirm(q Question) Answer
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(q Question) Answer

func (f HandlerFunc) Confirm(q Question) Answer {
	return f(q)
}

// unhandled never decides, so every operation takes its default
type unhandled struct{}

func (unhandled) Confirm(Question) Answer {
	return AnswerUnhandled
}
