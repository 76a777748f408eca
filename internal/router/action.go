package router

import (
	"fmt"
	"strings"
)

// ActionKind tags a callback-button action. Payloads travel over the wire as
// "<kind>_<id>"; they are decoded once here, never substring-matched at call
// sites.
type ActionKind string

const (
	// ActionAudioAgain re-arms the audio mode for another clip.
	ActionAudioAgain ActionKind = "audio-again"
	// ActionAudioEnd closes the audio cycle and returns the chat to idle.
	ActionAudioEnd ActionKind = "audio-end"
	// ActionDetect runs object detection on a stored photo artifact.
	ActionDetect ActionKind = "detect"
	// ActionAge runs face/age estimation on a stored photo artifact.
	ActionAge ActionKind = "age"
	// ActionSong runs song identification on a stored audio artifact.
	ActionSong ActionKind = "song"
	// ActionLang selects the transcription language; ID is the language tag.
	ActionLang ActionKind = "lang"
)

// Action is a decoded callback payload: what to do and the correlation id of
// the artifact or value it applies to.
type Action struct {
	Kind ActionKind
	ID   string
}

// Encode renders the action as callback data.
func (a Action) Encode() string {
	return string(a.Kind) + "_" + a.ID
}

// ParseAction decodes callback data. Kinds never contain an underscore, so
// the first underscore separates kind from id.
func ParseAction(payload string) (Action, error) {
	kind, id, ok := strings.Cut(payload, "_")
	if !ok || kind == "" || id == "" {
		return Action{}, fmt.Errorf("malformed callback payload %q", payload)
	}
	switch ActionKind(kind) {
	case ActionAudioAgain, ActionAudioEnd, ActionDetect, ActionAge, ActionSong, ActionLang:
		return Action{Kind: ActionKind(kind), ID: id}, nil
	default:
		return Action{}, fmt.Errorf("unknown callback action %q", kind)
	}
}
