package timeline

import (
	"context"
	"time"

	"github.com/matheus3301/typec/internal/protocol"
	"github.com/matheus3301/typec/internal/room"
	"go.uber.org/zap"
)

// FormatTime renders a message timestamp: clock time for today, day and
// month otherwise.
func FormatTime(t, now time.Time) string {
	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()
	if ty == ny && tm == nm && td == nd {
		return t.Format("15:04")
	}
	return t.Format("2 Jan")
}

// render builds the view of one event. Called with r.mu held.
func (r *Reconciler) render(ev protocol.Event) Message {
	m := Message{
		Key:              ev.Key(),
		EventID:          ev.EventID,
		TransactionID:    ev.TransactionID,
		RoomID:           ev.RoomID,
		SenderID:         ev.SenderID,
		Timestamp:        ev.Timestamp,
		TimestampDisplay: FormatTime(ev.Time(), r.now()),
		Local:            ev.IsLocalEcho(),
	}

	var snap room.Snapshot
	var haveRoom bool
	if r.rooms != nil {
		snap, haveRoom = r.rooms.Room(ev.RoomID)
	}
	if haveRoom {
		m.SenderDisplayName = snap.SenderName(ev.SenderID)
		m.IsAdminSender = room.AdminBadge(snap, room.Classify(snap, r.rooms.KnownDirect()), ev.SenderID)
		if mem, ok := snap.Member(ev.SenderID); ok && mem.AvatarURL != "" {
			m.Avatar = r.cachedAvatar(mem.AvatarURL)
		}
	} else {
		m.SenderDisplayName = room.Localpart(ev.SenderID)
	}

	if ev.StillEncrypted() {
		reason := ev.Decryption.Reason
		if reason == "" {
			reason = defaultDecryptionReason
		}
		m.Placeholder = true
		m.PlaceholderReason = reason
		m.Body = placeholderBody(reason)
		return m
	}

	m.Body = ev.Content.Body
	m.Attachment = attachmentFor(ev.Content)
	return m
}

// scheduleMedia starts background fetches for the attachment and avatar of e.
func (r *Reconciler) scheduleMedia(gen uint64, e *entry) {
	if r.media == nil {
		return
	}
	r.mu.Lock()
	var refs []mediaTarget
	if a := e.msg.Attachment; a != nil && a.State == MediaLoading {
		refs = append(refs, mediaTarget{ref: a.Ref, attachment: true})
	}
	if a := e.msg.Avatar; a != nil && a.State == MediaLoading {
		refs = append(refs, mediaTarget{ref: a.Ref})
	}
	r.mu.Unlock()

	for _, t := range refs {
		r.jobs.Add(1)
		go func() {
			defer r.jobs.Done()
			r.resolve(gen, e, t)
		}()
	}
}

type mediaTarget struct {
	ref        string
	attachment bool
}

// avatarFetch is one shared download of an avatar; done closes once data
// and err are set.
type avatarFetch struct {
	done chan struct{}
	data []byte
	err  error
}

func (f *avatarFetch) finished() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// cachedAvatar returns the avatar media for ref, already resolved when an
// earlier message of this view fetched it. Called with r.mu held.
func (r *Reconciler) cachedAvatar(ref string) *Media {
	m := &Media{Ref: ref, State: MediaLoading}
	if f, ok := r.avatars[ref]; ok && f.finished() {
		setMedia(m, f.data, f.err)
	}
	return m
}

// fetchAvatar downloads ref once per view; concurrent callers wait for the
// first fetch.
func (r *Reconciler) fetchAvatar(ctx context.Context, ref string) ([]byte, error) {
	r.mu.Lock()
	f, ok := r.avatars[ref]
	if !ok {
		f = &avatarFetch{done: make(chan struct{})}
		r.avatars[ref] = f
	}
	r.mu.Unlock()

	if !ok {
		f.data, f.err = r.media.ResolveMedia(ctx, ref)
		close(f.done)
		return f.data, f.err
	}
	select {
	case <-f.done:
		return f.data, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func setMedia(m *Media, data []byte, err error) {
	if err != nil {
		m.State = MediaFailed
		m.Error = err.Error()
		return
	}
	m.State = MediaReady
	m.Data = data
	m.Size = len(data)
}

func (r *Reconciler) resolve(gen uint64, e *entry, t mediaTarget) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	var data []byte
	var err error
	if t.attachment {
		data, err = r.media.ResolveMedia(ctx, t.ref)
	} else {
		data, err = r.fetchAvatar(ctx, t.ref)
	}

	r.mu.Lock()
	// The view may have moved on: another room loaded, or the message was
	// replaced or removed while the fetch ran.
	if gen != r.gen || r.index[e.msg.Key] != e {
		r.mu.Unlock()
		return
	}
	target := e.msg.Avatar
	if t.attachment {
		target = &e.msg.Attachment.Media
	}
	setMedia(target, data, err)
	if err != nil {
		r.log.Debug("media resolution failed",
			zap.String("room_id", e.msg.RoomID),
			zap.String("key", e.msg.Key),
			zap.String("ref", t.ref),
			zap.Error(err))
	}
	roomID := r.roomID
	r.mu.Unlock()

	r.changed(roomID)
}
