// Package compose turns pipeline outcomes into reply content: text plus
// optional inline button rows. It stays independent of the transport so the
// mapping from outcome to wording is testable on its own.
package compose

import (
	"fmt"
	"strings"

	"main/internal/pipeline"
	"main/internal/provider"
	"main/internal/router"
	"main/internal/session"
)

// Button is one inline keyboard button; Data is an encoded router.Action.
type Button struct {
	Label string
	Data  string
}

// Reply is one outbound message.
type Reply struct {
	Text    string
	Buttons [][]Button
}

const (
	// NoObjectsMessage is the fixed empty-result reply for image detection.
	NoObjectsMessage = "No objects detected in this image."

	startMessage = "Hi! Send a photo for object analysis or a voice note for sound " +
		"classification and transcription.\n\nCommands:\n" +
		"/image - arm image mode\n/audio - arm audio mode\n/text - arm text mode\n" +
		"/song - identify the last clip\n" +
		"/language - pick the transcription language\n/help - how this works"

	helpMessage = "Send a photo and I will list the objects I see, or offer to " +
		"estimate the age of a face on it.\nSend a voice note and I will classify " +
		"the sound; if it contains speech I will transcribe it, and for longer " +
		"clips I can try to identify the song."
)

func Start() Reply { return Reply{Text: startMessage} }
func Help() Reply  { return Reply{Text: helpMessage} }

// Notice renders the router's corrective notices.
func Notice(n router.Notice, mode session.Mode) Reply {
	switch n {
	case router.NoticeWrongContent:
		var want string
		switch mode {
		case session.ModeAwaitingImage:
			want = "a photo"
		case session.ModeAwaitingAudio:
			want = "a voice note or audio file"
		default:
			want = "a text message"
		}
		return Reply{Text: fmt.Sprintf("Wrong content type for the current mode: please send %s, or /start to reset.", want)}
	default:
		return Reply{Text: "I can only handle photos, voice notes, audio files and text. Try /help."}
	}
}

// UnknownCommand is the reply to commands the bot does not know.
func UnknownCommand() Reply {
	return Reply{Text: "Unknown command. Try /help for what I can do."}
}

// NoPendingAudio is the reply to /song when no clip has been retained.
func NoPendingAudio() Reply {
	return Reply{Text: "I have no recent clip to identify. Send an audio clip first, then try /song again."}
}

// UnreadableMedia is shown when a download decodes to nothing usable.
func UnreadableMedia(media string) Reply {
	return Reply{Text: "I could not read that " + media + ". Please send it again in a common format."}
}

// TextEcho is the text-mode reply.
func TextEcho(text string) Reply {
	return Reply{Text: "Text received:\n" + text}
}

// ModeArmed confirms a mode command.
func ModeArmed(mode session.Mode) Reply {
	switch mode {
	case session.ModeAwaitingImage:
		return Reply{Text: "Image mode armed. Send a photo."}
	case session.ModeAwaitingAudio:
		return Reply{Text: "Audio mode armed. Send a voice note or an audio file."}
	default:
		return Reply{Text: "Text mode armed. Send a message."}
	}
}

// LanguageMenu offers the configured transcription languages.
func LanguageMenu(languages []string) Reply {
	row := make([]Button, 0, len(languages))
	for _, lang := range languages {
		row = append(row, Button{
			Label: strings.ToUpper(lang),
			Data:  router.Action{Kind: router.ActionLang, ID: lang}.Encode(),
		})
	}
	return Reply{Text: "Pick the transcription language:", Buttons: [][]Button{row}}
}

// LanguageSet confirms a language selection.
func LanguageSet(lang string) Reply {
	return Reply{Text: "Transcription language set to " + strings.ToUpper(lang) + "."}
}

// PhotoMenu offers the actions available on a freshly received photo.
func PhotoMenu(artifactID string) Reply {
	return Reply{
		Text: "What should I do with this image?",
		Buttons: [][]Button{{
			{Label: "Detect objects", Data: router.Action{Kind: router.ActionDetect, ID: artifactID}.Encode()},
			{Label: "Estimate age", Data: router.Action{Kind: router.ActionAge, ID: artifactID}.Encode()},
		}},
	}
}

// Audio renders the merged audio-pipeline outcome, with follow-up buttons
// keyed to the retained clip artifact.
func Audio(result *pipeline.AudioResult, artifactID string) Reply {
	var b strings.Builder
	if len(result.TopScores) > 0 {
		top := result.TopScores[0]
		fmt.Fprintf(&b, "Sound identified: %s (%.1f%%)\n", top.Label, top.Confidence*100)
		if len(result.TopScores) > 1 {
			b.WriteString("Also heard:")
			for _, s := range result.TopScores[1:] {
				fmt.Fprintf(&b, " %s (%.1f%%)", s.Label, s.Confidence*100)
			}
			b.WriteString("\n")
		}
	} else {
		b.WriteString("I could not identify any distinct sound in this clip.\n")
	}

	switch result.State {
	case pipeline.TranscriptOK:
		fmt.Fprintf(&b, "\nTranscription: %s", result.Text)
		if result.Translated != "" {
			fmt.Fprintf(&b, "\nTranslated: %s", result.Translated)
		}
	case pipeline.TranscriptEmpty:
		b.WriteString("\nThe clip sounds like speech but no words were recognized.")
	case pipeline.TranscriptUnintelligible:
		b.WriteString("\nI could not understand the speech in this clip.")
	case pipeline.TranscriptFailed:
		b.WriteString("\nTranscription is temporarily unavailable; classification only.")
	default:
		b.WriteString("\nNo clear speech in this clip, so nothing to transcribe.")
	}

	reply := Reply{Text: b.String()}
	if artifactID != "" {
		reply.Buttons = [][]Button{{
			{Label: "Identify song", Data: router.Action{Kind: router.ActionSong, ID: artifactID}.Encode()},
		}, {
			{Label: "Send another", Data: router.Action{Kind: router.ActionAudioAgain, ID: artifactID}.Encode()},
			{Label: "End", Data: router.Action{Kind: router.ActionAudioEnd, ID: artifactID}.Encode()},
		}}
	}
	return reply
}

// Song renders each terminal state of the song pipeline distinctly.
func Song(result *pipeline.SongResult, minSeconds float64) Reply {
	switch result.Resolution {
	case pipeline.InsufficientDuration:
		return Reply{Text: fmt.Sprintf("The clip is too short for song identification; send at least %.0f seconds.", minSeconds)}
	case pipeline.ResolvedDual:
		text := "Voice search and melody match agree: " + candidateLine(result.Candidate)
		if result.Divergent {
			text = "Voice search and melody match disagree; trusting the melody match: " + candidateLine(result.Candidate)
		}
		return Reply{Text: text}
	case pipeline.ResolvedSingleFingerprint:
		return Reply{Text: "Identified by melody: " + candidateLine(result.Candidate)}
	case pipeline.ResolvedSingleVoice:
		return Reply{Text: "Identified by voice search: " + candidateLine(result.Candidate)}
	case pipeline.ResolvedFallback:
		return Reply{Text: "Identified by the extended database: " + candidateLine(result.Candidate)}
	default:
		if result.BudgetExhausted {
			return Reply{Text: "Could not identify the song, and the extended lookup quota is spent for now."}
		}
		return Reply{Text: "Could not identify this song by speech or by melody."}
	}
}

func candidateLine(c *provider.SongCandidate) string {
	line := c.Title
	if c.Artist != "" {
		line = c.Title + " - " + c.Artist
	}
	if c.URL != "" {
		line += "\n" + c.URL
	}
	return line
}

// Detections renders the image-analysis outcome. Zero boxes gets the fixed
// empty-result message; repeated classes are reported via the per-class
// median summary.
func Detections(boxes []provider.Box) Reply {
	if len(boxes) == 0 {
		return Reply{Text: NoObjectsMessage}
	}

	var b strings.Builder
	b.WriteString("Image analysis:\n")
	for _, s := range pipeline.Summarize(boxes) {
		if s.Samples > 1 {
			fmt.Fprintf(&b, "- %s: %.1f%% median confidence (%d samples)\n", s.Label, s.Median*100, s.Samples)
		} else {
			fmt.Fprintf(&b, "- %s: %.1f%%\n", s.Label, s.Median*100)
		}
	}
	return Reply{Text: strings.TrimRight(b.String(), "\n")}
}

// Face renders the age-estimation outcome; a nil face means no clear face.
func Face(face *provider.Face) Reply {
	if face == nil {
		return Reply{Text: "I could not find a clear human face in this image."}
	}
	return Reply{Text: fmt.Sprintf("Found a face! Estimate: %s, around %d years old.", face.Gender, face.Age)}
}

// TransientFailure is the user-facing wording for a primary provider outage.
func TransientFailure(what string) Reply {
	return Reply{Text: "The " + what + " service is temporarily unavailable. Please try again in a moment."}
}

// Expired is shown when a button references an artifact that is gone.
func Expired() Reply {
	return Reply{Text: "That item has expired. Please send it again."}
}

// AudioAgain and AudioEnd close out the confirm-button cycle.
func AudioAgain() Reply {
	return Reply{Text: "Audio mode re-armed. Send the next clip."}
}

func AudioEnd() Reply {
	return Reply{Text: "All done. Send /start whenever you need me again."}
}
