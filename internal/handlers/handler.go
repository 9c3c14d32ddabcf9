package handlers

import (
	"context"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"jingle-gift/internal/mediagroup"
	"jingle-gift/internal/postcard"
	"jingle-gift/internal/telegram"
)

const (
	helpText = "🎄 Jingle Gift\n\n" +
		"I paint Christmas postcards with you in them.\n\n" +
		"Commands:\n" +
		"/card <recipient> | <message> - make a postcard from your profile photo\n" +
		"/scene - show a random scene idea\n" +
		"/help - this help\n\n" +
		"Send a photo with /card as the caption to use that photo instead. " +
		"An album of two photos puts both of you on the card."

	paintingText = "🎨 Painting your postcard, this can take a minute..."
	failedText   = "❌ Could not make the postcard. Please try again."
	unknownText  = "❌ Unknown command. Use /help."

	photoHintText = "📷 Add /card <recipient> | <message> as the photo caption to make a postcard."

	// maxCaptionBytes is Telegram's photo caption limit. Longer greetings go
	// out as a separate message.
	maxCaptionBytes = 1024
)

type Messenger interface {
	SendTyping(chatID int64)
	SendText(chatID int64, text string) error
	SendPhoto(chatID int64, base64Data, mimeType, caption string) error
	ProfilePhotoFileID(userID int64) (string, error)
	DownloadDataURL(ctx context.Context, fileID string) (string, error)
}

type Postcards interface {
	Generate(ctx context.Context, req postcard.Request) (postcard.Result, error)
}

type SceneSource interface {
	Pick() string
}

type Options struct {
	Telegram  Messenger
	Postcards Postcards
	Scenes    SceneSource
	Logger    *slog.Logger
}

type Handler struct {
	tg         Messenger
	postcards  Postcards
	scenes     SceneSource
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		tg:        opts.Telegram,
		postcards: opts.Postcards,
		scenes:    opts.Scenes,
		logger:    logger,
	}
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return nil
	}

	chatID := msg.Chat.ID
	userID := msg.From.ID
	sender := displayName(msg.From)

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, userID, sender, msg)
	}

	if len(msg.Photo) > 0 {
		fileID := msg.Photo[len(msg.Photo)-1].FileID

		// only one photo of an album carries the caption; HandleMediaGroup
		// checks it once the album is complete
		if msg.MediaGroupID != "" && h.aggregator != nil {
			h.aggregator.Add(mediagroup.Item{
				ChatID:       chatID,
				UserID:       userID,
				SenderName:   sender,
				MediaGroupID: msg.MediaGroupID,
				Caption:      msg.Caption,
				FileID:       fileID,
			})
			return nil
		}

		args, ok := cardCaption(msg.Caption)
		if !ok {
			return h.tg.SendText(chatID, photoHintText)
		}
		return h.handleCard(ctx, chatID, userID, sender, args, []string{fileID})
	}

	if strings.TrimSpace(msg.Text) != "" {
		return h.tg.SendText(chatID, helpText)
	}
	return nil
}

// HandleMediaGroup runs a /card album. Only the caption of one photo needs
// to carry the command.
func (h *Handler) HandleMediaGroup(ctx context.Context, group mediagroup.Group) {
	args, ok := cardCaption(group.Caption)
	if !ok {
		if err := h.tg.SendText(group.ChatID, photoHintText); err != nil {
			h.logger.Warn("send hint failed", "err", err)
		}
		return
	}
	if err := h.handleCard(ctx, group.ChatID, group.UserID, group.SenderName, args, group.FileIDs); err != nil {
		h.logger.Error("media group postcard failed", "err", err)
	}
}

func (h *Handler) handleCommand(ctx context.Context, chatID, userID int64, sender string, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start", "help":
		return h.tg.SendText(chatID, helpText)
	case "scene":
		return h.tg.SendText(chatID, "✨ "+h.scenes.Pick())
	case "card":
		return h.handleCard(ctx, chatID, userID, sender, msg.CommandArguments(), nil)
	default:
		return h.tg.SendText(chatID, unknownText)
	}
}

func (h *Handler) handleCard(ctx context.Context, chatID, userID int64, sender, args string, fileIDs []string) error {
	intent := parseCardArgs(args)

	if len(fileIDs) == 0 {
		fileID, err := h.tg.ProfilePhotoFileID(userID)
		if err != nil {
			h.logger.Warn("profile photo lookup failed", "user_id", userID, "err", err)
		}
		if fileID != "" {
			fileIDs = []string{fileID}
		}
	}

	h.tg.SendTyping(chatID)
	_ = h.tg.SendText(chatID, paintingText)

	avatars := h.downloadAvatars(ctx, fileIDs)
	req := postcard.Request{
		SenderName:      sender,
		SenderAvatar:    avatars[0],
		RecipientName:   intent.Recipient,
		RecipientAvatar: avatars[1],
		Message:         intent.Message,
	}

	res, err := h.postcards.Generate(ctx, req)
	if err != nil {
		h.logger.Error("postcard generation failed", "user_id", userID, "err", err)
		return h.tg.SendText(chatID, failedText)
	}

	if res.Image != nil {
		caption := res.Greeting
		if len(caption) > maxCaptionBytes {
			caption = ""
		}
		err := h.tg.SendPhoto(chatID, *res.Image, res.ImageMimeType, caption)
		if err == nil && caption != "" {
			return nil
		}
		if err != nil {
			h.logger.Warn("send postcard photo failed", "user_id", userID, "err", err)
		}
	}
	return h.tg.SendText(chatID, res.Greeting)
}

// downloadAvatars fetches the sender and recipient photos. A failed
// download leaves its slot empty and the card is drawn without it.
func (h *Handler) downloadAvatars(ctx context.Context, fileIDs []string) [2]string {
	var out [2]string
	if len(fileIDs) > len(out) {
		fileIDs = fileIDs[:len(out)]
	}

	var eg errgroup.Group
	for i, fileID := range fileIDs {
		eg.Go(func() error {
			dataURL, err := h.tg.DownloadDataURL(ctx, fileID)
			if err != nil {
				h.logger.Warn("photo download failed", "slot", i, "err", err)
				return nil
			}
			out[i] = dataURL
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	return strings.TrimSpace(u.UserName)
}
