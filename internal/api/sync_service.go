package api

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/matheus3301/typec/internal/bus"
	"github.com/matheus3301/typec/internal/status"
	intsync "github.com/matheus3301/typec/internal/sync"
	"go.uber.org/zap"
)

// Checkpoints reads ingest progress markers.
type Checkpoints interface {
	Checkpoint(ctx context.Context, key string) (string, error)
}

// SyncService implements the SyncService gRPC service.
type SyncService struct {
	sessionName string
	machine     *status.Machine
	bus         *bus.Bus
	checkpoints Checkpoints
	logger      *zap.Logger
}

// NewSyncService creates a new sync service. checkpoints may be nil.
func NewSyncService(sessionName string, machine *status.Machine, b *bus.Bus, checkpoints Checkpoints, logger *zap.Logger) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		sessionName: sessionName,
		machine:     machine,
		bus:         b,
		checkpoints: checkpoints,
		logger:      logger,
	}
}

func (s *SyncService) GetSyncStatus(ctx context.Context, _ *Empty) (*SyncStatusResponse, error) {
	current := s.machine.Current()
	resp := &SyncStatusResponse{
		State:      string(current),
		Reason:     s.machine.Reason(),
		Online:     current.Online(),
		BusDropped: s.bus.Dropped(),
	}
	if s.checkpoints != nil {
		ts, err := s.checkpoints.Checkpoint(ctx, intsync.CheckpointLastEvent)
		if err != nil {
			return nil, toStatus(err)
		}
		resp.LastEventTs = ts
	}
	return resp, nil
}

// rawPrefix is the sync client's own traffic, hidden unless asked for.
const rawPrefix = "matrix."

func wants(prefixes []string, kind string) bool {
	if len(prefixes) == 0 {
		return !strings.HasPrefix(kind, rawPrefix)
	}
	for _, p := range prefixes {
		if strings.HasPrefix(kind, p) {
			return true
		}
	}
	return false
}

func (s *SyncService) WatchEvents(req *WatchRequest, stream EventStream) error {
	ch, unsub := s.bus.SubscribeFunc(func(kind string) bool {
		return wants(req.Prefixes, kind)
	}, 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			env := &Envelope{
				EventID:      uuid.New().String(),
				Session:      s.sessionName,
				Kind:         evt.Kind,
				OccurredAtMs: evt.Timestamp.UnixMilli(),
			}
			if evt.Payload != nil {
				payload, err := json.Marshal(evt.Payload)
				if err != nil {
					s.logger.Warn("unencodable event payload", zap.String("kind", evt.Kind), zap.Error(err))
				} else {
					env.Payload = payload
				}
			}
			if err := stream.Send(env); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}
