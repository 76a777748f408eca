// Package router decides, per inbound event and session state, which
// pipeline handles the event. It replaces the inheritance-based dispatch of
// the bot's ancestors with a single table.
package router

import "main/internal/session"

// EventKind is the payload type of an inbound update. Exactly one kind is
// set per event; the transport guarantees that.
type EventKind int

const (
	KindUnsupported EventKind = iota
	KindPhoto
	KindVoice
	KindAudio
	KindText
	KindCallback
)

func (k EventKind) String() string {
	switch k {
	case KindPhoto:
		return "photo"
	case KindVoice:
		return "voice"
	case KindAudio:
		return "audio"
	case KindText:
		return "text"
	case KindCallback:
		return "callback"
	default:
		return "unsupported"
	}
}

// Event is one inbound update, reduced to what routing needs.
type Event struct {
	Kind   EventKind
	ChatID int64
}

// Target names the handler a routed event goes to.
type Target int

const (
	// TargetNotice: no pipeline runs; reply with Invocation.Notice.
	TargetNotice Target = iota
	TargetImagePipeline
	TargetAudioPipeline
	TargetTextEcho
	TargetCallback
)

// Notice is a fixed corrective reply chosen by the router.
type Notice int

const (
	NoticeNone Notice = iota
	// NoticeWrongContent: event kind does not match the armed mode.
	NoticeWrongContent
	// NoticeUnsupported: no mode armed and the content type is not handled.
	NoticeUnsupported
)

// Invocation is the routing decision for one event.
type Invocation struct {
	Target Target
	Notice Notice
}

// Route maps an event plus the current session to a handler invocation. It
// never fails: unknown kinds become guidance notices. It does not mutate the
// session; mode transitions belong to the handlers and callback actions.
func Route(ev Event, s session.Session) Invocation {
	if ev.Kind == KindCallback {
		return Invocation{Target: TargetCallback}
	}

	if s.Mode != session.ModeIdle {
		if expected(s.Mode, ev.Kind) {
			return Invocation{Target: modeTarget(s.Mode)}
		}
		return Invocation{Target: TargetNotice, Notice: NoticeWrongContent}
	}

	// No mode armed: fall back to content-type sniffing.
	switch ev.Kind {
	case KindPhoto:
		return Invocation{Target: TargetImagePipeline}
	case KindVoice, KindAudio:
		return Invocation{Target: TargetAudioPipeline}
	case KindText:
		return Invocation{Target: TargetTextEcho}
	default:
		return Invocation{Target: TargetNotice, Notice: NoticeUnsupported}
	}
}

func expected(m session.Mode, k EventKind) bool {
	switch m {
	case session.ModeAwaitingImage:
		return k == KindPhoto
	case session.ModeAwaitingAudio:
		return k == KindVoice || k == KindAudio
	case session.ModeAwaitingText:
		return k == KindText
	default:
		return false
	}
}

func modeTarget(m session.Mode) Target {
	switch m {
	case session.ModeAwaitingImage:
		return TargetImagePipeline
	case session.ModeAwaitingAudio:
		return TargetAudioPipeline
	default:
		return TargetTextEcho
	}
}
