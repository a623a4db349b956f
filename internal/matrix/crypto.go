package matrix

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/matheus3301/typec/internal/protocol"
	_ "go.mau.fi/util/dbutil/litestream" // sqlite3-fk-wal driver for the crypto store
	"go.uber.org/zap"
	"maunium.net/go/mautrix/crypto/cryptohelper"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Crypto is the end-to-end encryption backend. The method set matches
// mautrix's crypto.OlmMachine, so an initialised machine can be passed in
// directly. Without one, encrypted rooms are read-only and their events stay
// placeholders.
type Crypto interface {
	DecryptMegolmEvent(ctx context.Context, evt *event.Event) (*event.Event, error)
	EncryptMegolmEvent(ctx context.Context, roomID id.RoomID, evtType event.Type, content any) (*event.EncryptedEventContent, error)
}

const noCryptoReason = "encryption is not available on this device"

// helperCrypto routes through the helper rather than the bare machine so
// outbound sessions are created and shared before encrypting.
type helperCrypto struct {
	h *cryptohelper.CryptoHelper
}

var _ Crypto = helperCrypto{}

func (c helperCrypto) DecryptMegolmEvent(ctx context.Context, evt *event.Event) (*event.Event, error) {
	return c.h.Decrypt(ctx, evt)
}

func (c helperCrypto) EncryptMegolmEvent(ctx context.Context, roomID id.RoomID, evtType event.Type, content any) (*event.EncryptedEventContent, error) {
	return c.h.Encrypt(ctx, roomID, evtType, content)
}

// EnableEncryption loads (or creates) the Olm account for this device from
// the sqlite database at dbPath and hooks it into the sync loop. Encrypted
// events in sync responses are then decrypted by the machine, which waits
// for missing room keys and re-publishes the event once they arrive.
//
// It must be called before Run. The returned closer releases the database.
func (a *Adapter) EnableEncryption(ctx context.Context, pickleKey []byte, dbPath string) (io.Closer, error) {
	if a.client.DeviceID == "" {
		return nil, errors.New("encryption needs a device_id")
	}
	helper, err := cryptohelper.NewCryptoHelper(a.client, pickleKey, dbPath)
	if err != nil {
		return nil, fmt.Errorf("create crypto helper: %w", err)
	}
	helper.CustomPostDecrypt = a.onDecrypted
	helper.DecryptErrorCallback = a.onDecryptError
	if err := helper.Init(ctx); err != nil {
		_ = helper.Close()
		return nil, fmt.Errorf("init crypto: %w", err)
	}
	a.crypto = helperCrypto{h: helper}
	a.syncDecrypts = true
	a.logger.Info("end-to-end encryption enabled", zap.String("device_id", a.client.DeviceID.String()))
	return helper, nil
}

func (a *Adapter) onDecrypted(_ context.Context, evt *event.Event) {
	a.finishDecrypt(evt.RoomID, decrypted(evt.RoomID, evt, evt))
}

func (a *Adapter) onDecryptError(evt *event.Event, err error) {
	ev, ok := toProtocol(evt.RoomID, evt)
	if !ok {
		return
	}
	ev.Decryption = protocol.Decryption{State: protocol.DecryptionFailed, Reason: err.Error()}
	a.finishDecrypt(evt.RoomID, ev)
}

// LoadPickleKey returns the key that encrypts the Olm account at rest. The
// key is read from path, or generated and written there on first use.
func LoadPickleKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		key := strings.TrimSpace(string(raw))
		if key == "" {
			return nil, fmt.Errorf("pickle key %s is empty", path)
		}
		return []byte(key), nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	key := hex.EncodeToString(buf)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	// O_EXCL so a concurrent first start cannot overwrite the key.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteString(key + "\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return []byte(key), nil
}
