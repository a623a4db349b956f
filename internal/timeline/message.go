package timeline

import (
	"regexp"
	"strings"

	"github.com/matheus3301/typec/internal/protocol"
)

// AttachmentKind distinguishes inline images from downloadable files.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentFile  AttachmentKind = "file"
)

// MediaState is the resolution state of an attachment or avatar.
type MediaState string

const (
	MediaLoading MediaState = "loading"
	MediaReady   MediaState = "ready"
	MediaFailed  MediaState = "failed"
)

// Media is a resolvable media reference attached to a message.
type Media struct {
	Ref   string
	State MediaState
	Size  int
	Data  []byte
	Error string
}

// Attachment describes the image or file carried by a message.
type Attachment struct {
	Kind     AttachmentKind
	Name     string
	MimeType string
	Media
}

// Message is the rendered view of one logical timeline message.
type Message struct {
	Key               string
	EventID           string
	TransactionID     string
	RoomID            string
	SenderID          string
	SenderDisplayName string
	Body              string
	Placeholder       bool
	PlaceholderReason string
	Timestamp         int64
	TimestampDisplay  string
	IsAdminSender     bool
	Local             bool
	Attachment        *Attachment
	Avatar            *Media
}

func (m Message) clone() Message {
	if m.Attachment != nil {
		a := *m.Attachment
		m.Attachment = &a
	}
	if m.Avatar != nil {
		a := *m.Avatar
		m.Avatar = &a
	}
	return m
}

const defaultDecryptionReason = "keys not available"

// placeholderBody is shown in place of content that cannot be decrypted yet.
func placeholderBody(reason string) string {
	return "[encrypted: " + reason + "]"
}

var imageExt = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp|bmp|svg)$`)

// attachmentFor returns the attachment descriptor for a message payload, or
// nil for plain text.
func attachmentFor(c protocol.Content) *Attachment {
	if c.MediaURL == "" {
		return nil
	}
	isImage := c.MsgType == protocol.MsgImage ||
		strings.HasPrefix(c.MimeType, "image/") ||
		imageExt.MatchString(c.Body)
	switch {
	case isImage:
		return &Attachment{
			Kind: AttachmentImage, Name: c.Body, MimeType: c.MimeType,
			Media: Media{Ref: c.MediaURL, State: MediaLoading},
		}
	case c.MsgType == protocol.MsgFile:
		return &Attachment{
			Kind: AttachmentFile, Name: c.Body, MimeType: c.MimeType,
			Media: Media{Ref: c.MediaURL, State: MediaLoading},
		}
	}
	return nil
}
