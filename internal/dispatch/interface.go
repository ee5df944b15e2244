package dispatch

import (
	"context"
	"time"

	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
	"github.com/ay9334524-ux/mecfinder-backend/internal/state"
)

//go:generate mockgen -destination=mocks/mock_stores.go -package=mocks github.com/ay9334524-ux/mecfinder-backend/internal/dispatch RecordStore,StateStore

// RecordStore is the external booking record. CompareAndSet must be a
// single atomic conditional update that reports whether it modified a record.
type RecordStore interface {
	Get(ctx context.Context, bookingID string) (*booking.Record, error)
	CompareAndSet(ctx context.Context, t booking.Transition) (bool, error)
	AppendHistory(ctx context.Context, bookingID string, e booking.HistoryEntry) error
}

// StateStore is the TTL-bounded recovery mirror. GetOffer returns (nil, nil)
// when no live marker exists.
type StateStore interface {
	SaveSnapshot(ctx context.Context, snap state.Snapshot, ttl time.Duration) error
	DeleteSnapshot(ctx context.Context, jobID string) error
	ListSnapshots(ctx context.Context) ([]state.Snapshot, error)
	SetOffer(ctx context.Context, m state.OfferMarker, ttl time.Duration) error
	GetOffer(ctx context.Context, jobID string) (*state.OfferMarker, error)
	ClearOffer(ctx context.Context, jobID string) error
	NextOfferSeq(ctx context.Context, jobID string) (int64, error)
}

// Publisher delivers an event on a topic without blocking.
type Publisher interface {
	Publish(topic, eventType string, data any) int64
}
