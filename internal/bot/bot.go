package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"main/internal/audio"
	"main/internal/compose"
	"main/internal/config"
	"main/internal/metrics"
	"main/internal/pipeline"
	"main/internal/provider"
	"main/internal/router"
	"main/internal/session"
)

const (
	concurrencyLimit = 10
	queueDepth       = 16

	handleTimeout     = 2 * time.Minute
	workerIdleTimeout = 10 * time.Minute
	sessionMaxAge     = time.Hour
	sweepInterval     = 10 * time.Minute
)

// Pipelines bundles the decision logic the transport dispatches into.
type Pipelines struct {
	Audio  *pipeline.AudioPipeline
	Song   *pipeline.SongPipeline
	Detect *pipeline.DetectPipeline
	Face   *pipeline.FacePipeline
}

// Bot owns the update loop. Updates from different chats run concurrently up
// to a global limit; updates from the same chat run strictly in order, so a
// conversation never sees its replies interleave.
type Bot struct {
	api       *tgbotapi.BotAPI
	cfg       *config.Config
	sessions  *session.Store
	artifacts *Artifacts
	pipes     Pipelines

	download *http.Client
	sem      chan struct{}

	mu     sync.Mutex
	queues map[int64]chan tgbotapi.Update
}

func New(api *tgbotapi.BotAPI, cfg *config.Config, sessions *session.Store, artifacts *Artifacts, pipes Pipelines) *Bot {
	return &Bot{
		api:       api,
		cfg:       cfg,
		sessions:  sessions,
		artifacts: artifacts,
		pipes:     pipes,
		download: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		sem:    make(chan struct{}, concurrencyLimit),
		queues: make(map[int64]chan tgbotapi.Update),
	}
}

// Run consumes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	slog.Info("bot authorized", "account", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	go b.housekeeping(ctx)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			chatID, ok := updateChatID(update)
			if !ok {
				continue
			}
			b.enqueue(chatID, update)
		}
	}
}

func (b *Bot) housekeeping(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := b.sessions.EvictIdle(sessionMaxAge); n > 0 {
				slog.Info("evicted idle sessions", "count", n)
			}
			if n := b.artifacts.Sweep(); n > 0 {
				slog.Info("swept expired artifacts", "count", n)
			}
			metrics.SessionsLive.Set(float64(b.sessions.Len()))
		}
	}
}

func updateChatID(u tgbotapi.Update) (int64, bool) {
	switch {
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
		return u.CallbackQuery.Message.Chat.ID, true
	case u.Message != nil:
		return u.Message.Chat.ID, true
	default:
		return 0, false
	}
}

// enqueue hands the update to the chat's worker, starting one if needed. The
// lock is held across the non-blocking send so a worker cannot retire the
// queue between the lookup and the send.
func (b *Bot) enqueue(chatID int64, update tgbotapi.Update) {
	b.mu.Lock()
	q, ok := b.queues[chatID]
	if !ok {
		q = make(chan tgbotapi.Update, queueDepth)
		b.queues[chatID] = q
		go b.worker(chatID, q)
	}
	var full bool
	select {
	case q <- update:
	default:
		full = true
	}
	b.mu.Unlock()

	if full {
		slog.Warn("chat queue full, dropping update", "chat_id", chatID)
		b.send(chatID, compose.Reply{Text: "I am still working on your previous messages; give me a moment."})
	}
}

// worker drains one chat's queue in FIFO order. Pipeline work is bounded by
// the global semaphore so a burst across chats cannot exhaust the process.
func (b *Bot) worker(chatID int64, q chan tgbotapi.Update) {
	idle := time.NewTimer(workerIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case update := <-q:
			b.sem <- struct{}{}
			b.handle(update)
			<-b.sem
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(workerIdleTimeout)
		case <-idle.C:
			b.mu.Lock()
			if len(q) == 0 {
				delete(b.queues, chatID)
				b.mu.Unlock()
				return
			}
			b.mu.Unlock()
			idle.Reset(workerIdleTimeout)
		}
	}
}

func (b *Bot) handle(update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	if update.CallbackQuery != nil {
		metrics.UpdatesTotal.WithLabelValues("callback").Inc()
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}

	message := update.Message
	if message == nil {
		return
	}
	chatID := message.Chat.ID

	if message.IsCommand() {
		metrics.UpdatesTotal.WithLabelValues("command").Inc()
		b.handleCommand(ctx, chatID, message.Command())
		return
	}

	ev := reduceMessage(message)
	snapshot := b.sessions.Snapshot(chatID)
	invocation := router.Route(ev, snapshot)
	metrics.UpdatesTotal.WithLabelValues(targetLabel(invocation.Target)).Inc()

	switch invocation.Target {
	case router.TargetImagePipeline:
		b.handlePhoto(ctx, message)
	case router.TargetAudioPipeline:
		b.handleAudio(ctx, message, snapshot)
	case router.TargetTextEcho:
		b.send(chatID, compose.TextEcho(message.Text))
	default:
		b.send(chatID, compose.Notice(invocation.Notice, snapshot.Mode))
	}
}

func reduceMessage(m *tgbotapi.Message) router.Event {
	ev := router.Event{Kind: router.KindUnsupported, ChatID: m.Chat.ID}
	switch {
	case len(m.Photo) > 0:
		ev.Kind = router.KindPhoto
	case m.Voice != nil:
		ev.Kind = router.KindVoice
	case m.Audio != nil:
		ev.Kind = router.KindAudio
	case m.Text != "":
		ev.Kind = router.KindText
	}
	return ev
}

func targetLabel(t router.Target) string {
	switch t {
	case router.TargetImagePipeline:
		return "image"
	case router.TargetAudioPipeline:
		return "audio"
	case router.TargetTextEcho:
		return "text"
	case router.TargetCallback:
		return "callback"
	default:
		return "notice"
	}
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, command string) {
	switch command {
	case "start":
		b.sessions.Update(chatID, func(s *session.Session) {
			s.Mode = session.ModeIdle
			s.PendingArtifact = ""
		})
		b.send(chatID, compose.Start())
	case "help":
		b.send(chatID, compose.Help())
	case "language":
		b.send(chatID, compose.LanguageMenu(b.cfg.Languages))
	case "image":
		b.armMode(chatID, session.ModeAwaitingImage)
	case "audio":
		b.armMode(chatID, session.ModeAwaitingAudio)
	case "text":
		b.armMode(chatID, session.ModeAwaitingText)
	case "song":
		// Runs on the last retained clip, same path as the inline button.
		snapshot := b.sessions.Snapshot(chatID)
		if snapshot.PendingArtifact == "" {
			b.send(chatID, compose.NoPendingAudio())
			return
		}
		b.identifySong(ctx, chatID, snapshot.PendingArtifact)
	default:
		b.send(chatID, compose.UnknownCommand())
	}
}

func (b *Bot) identifySong(ctx context.Context, chatID int64, artifactID string) {
	path, ok := b.artifacts.Path(artifactID)
	if !ok {
		b.send(chatID, compose.Expired())
		return
	}
	language := b.sessions.Snapshot(chatID).SelectedLanguage
	result, err := b.pipes.Song.Run(ctx, path, language)
	if err != nil {
		b.replyError(chatID, "song identification", "audio clip", err)
		return
	}
	b.send(chatID, compose.Song(result, b.cfg.MinSongSeconds))
}

func (b *Bot) armMode(chatID int64, mode session.Mode) {
	b.sessions.Update(chatID, func(s *session.Session) { s.Mode = mode })
	b.send(chatID, compose.ModeArmed(mode))
}

// handlePhoto stores the largest rendition as an artifact and offers the
// image actions. The pipelines run later, on button press.
func (b *Bot) handlePhoto(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	photo := message.Photo[len(message.Photo)-1]

	id, path, err := b.artifacts.Create("photo-*.jpg")
	if err != nil {
		slog.Error("failed to create photo artifact", "err", err)
		b.send(chatID, compose.TransientFailure("image"))
		return
	}
	if err := b.downloadFile(ctx, photo.FileID, path); err != nil {
		slog.Error("failed to download photo", "file_id", photo.FileID, "err", err)
		b.artifacts.Remove(id)
		b.send(chatID, compose.TransientFailure("image"))
		return
	}

	b.sessions.Update(chatID, func(s *session.Session) {
		s.Mode = session.ModeIdle
		s.PendingArtifact = id
	})
	b.send(chatID, compose.PhotoMenu(id))
}

// handleAudio downloads the clip, converts it to WAV, runs the audio
// pipeline and retains the WAV for the follow-up buttons.
func (b *Bot) handleAudio(ctx context.Context, message *tgbotapi.Message, snapshot session.Session) {
	chatID := message.Chat.ID

	var fileID string
	if message.Voice != nil {
		fileID = message.Voice.FileID
	} else {
		fileID = message.Audio.FileID
	}

	id, wavPath, err := b.artifacts.Create("clip-*.wav")
	if err != nil {
		slog.Error("failed to create audio artifact", "err", err)
		b.send(chatID, compose.TransientFailure("audio"))
		return
	}

	err = audio.WithTempFile("download-*.bin", func(rawPath string) error {
		if err := b.downloadFile(ctx, fileID, rawPath); err != nil {
			return fmt.Errorf("download: %w", err)
		}
		return audio.ConvertToWAV(ctx, rawPath, wavPath, b.cfg.TargetSampleRate)
	})
	if err != nil {
		b.artifacts.Remove(id)
		var de *provider.DecodeError
		if errors.As(err, &de) {
			b.send(chatID, compose.UnreadableMedia("audio clip"))
		} else {
			slog.Error("failed to fetch audio", "file_id", fileID, "err", err)
			b.send(chatID, compose.TransientFailure("audio"))
		}
		return
	}

	result, err := b.pipes.Audio.Run(ctx, wavPath, snapshot.SelectedLanguage)
	if err != nil {
		b.artifacts.Remove(id)
		b.replyError(chatID, "sound classification", "audio clip", err)
		return
	}

	// Mode is left untouched: an armed audio mode stays armed until the user
	// presses the end button.
	b.sessions.Update(chatID, func(s *session.Session) {
		s.LastScores = result.TopScores
		s.PendingArtifact = id
	})
	b.send(chatID, compose.Audio(result, id))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID

	// Acknowledge first so the client stops its spinner.
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		slog.Warn("failed to answer callback query", "err", err)
	}

	action, err := router.ParseAction(cb.Data)
	if err != nil {
		slog.Warn("rejected callback payload", "data", cb.Data, "err", err)
		b.send(chatID, compose.Expired())
		return
	}

	switch action.Kind {
	case router.ActionLang:
		b.sessions.Update(chatID, func(s *session.Session) { s.SelectedLanguage = action.ID })
		b.send(chatID, compose.LanguageSet(action.ID))

	case router.ActionDetect:
		path, ok := b.artifacts.Path(action.ID)
		if !ok {
			b.send(chatID, compose.Expired())
			return
		}
		boxes, err := b.pipes.Detect.Run(ctx, path)
		if err != nil {
			b.replyError(chatID, "object detection", "image", err)
			return
		}
		b.send(chatID, compose.Detections(boxes))

	case router.ActionAge:
		path, ok := b.artifacts.Path(action.ID)
		if !ok {
			b.send(chatID, compose.Expired())
			return
		}
		face, err := b.pipes.Face.Run(ctx, path)
		if err != nil {
			b.replyError(chatID, "face analysis", "image", err)
			return
		}
		b.send(chatID, compose.Face(face))

	case router.ActionSong:
		b.identifySong(ctx, chatID, action.ID)

	case router.ActionAudioAgain:
		b.artifacts.Remove(action.ID)
		b.sessions.Update(chatID, func(s *session.Session) {
			s.Mode = session.ModeAwaitingAudio
			s.PendingArtifact = ""
		})
		b.send(chatID, compose.AudioAgain())

	case router.ActionAudioEnd:
		b.artifacts.Remove(action.ID)
		b.sessions.Update(chatID, func(s *session.Session) {
			s.Mode = session.ModeIdle
			s.PendingArtifact = ""
		})
		b.send(chatID, compose.AudioEnd())
	}
}

// replyError maps a pipeline error to user wording: decode failures blame the
// media, everything else is reported as a transient service problem.
func (b *Bot) replyError(chatID int64, what, media string, err error) {
	var de *provider.DecodeError
	if errors.As(err, &de) {
		b.send(chatID, compose.UnreadableMedia(media))
		return
	}
	slog.Error("pipeline failed", "pipeline", what, "chat_id", chatID, "err", err)
	b.send(chatID, compose.TransientFailure(what))
}

func (b *Bot) send(chatID int64, reply compose.Reply) {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if len(reply.Buttons) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(reply.Buttons))
		for _, row := range reply.Buttons {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, btn := range row {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data))
			}
			rows = append(rows, buttons)
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	if _, err := b.api.Send(msg); err != nil {
		slog.Error("failed to send message", "chat_id", chatID, "err", err)
	}
}

func (b *Bot) downloadFile(ctx context.Context, fileID, localPath string) error {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return fmt.Errorf("bot.GetFile failed: %w", err)
	}
	url := file.Link(b.api.Token)
	if url == "" && file.FilePath != "" {
		url = fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", b.api.Token, file.FilePath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := b.download.Do(req)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("download bad status %s: %s", resp.Status, string(body))
	}

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("os.Create failed for %s: %w", localPath, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("io.Copy failed: %w", err)
	}
	return nil
}
