package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
	"github.com/ay9334524-ux/mecfinder-backend/internal/dispatch/mocks"
	"github.com/ay9334524-ux/mecfinder-backend/internal/events"
	"github.com/ay9334524-ux/mecfinder-backend/internal/metrics"
	"github.com/ay9334524-ux/mecfinder-backend/internal/state"
)

func TestSnapshotFailureDoesNotStopDispatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	db := openTestDB(t)
	records := booking.NewSQLStore(db)
	require.NoError(t, records.Create(ctx, &booking.Record{ID: "bk-1", CustomerID: "cust-bk-1", ServiceType: "towing"}))

	st := mocks.NewMockStateStore(ctrl)
	down := errors.New("redis: connection refused")
	st.EXPECT().SaveSnapshot(gomock.Any(), gomock.Any(), 10*time.Minute).Return(down).AnyTimes()
	st.EXPECT().NextOfferSeq(gomock.Any(), "bk-1").Return(int64(0), down).AnyTimes()
	st.EXPECT().SetOffer(gomock.Any(), gomock.Any(), testTimeout).Return(down).AnyTimes()
	st.EXPECT().ClearOffer(gomock.Any(), "bk-1").Return(down).AnyTimes()
	st.EXPECT().DeleteSnapshot(gomock.Any(), "bk-1").Return(down).AnyTimes()

	clock := newManualClock()
	hub := events.NewHub(64)
	logger, logs := NewTestSlogger()
	m := NewManager(Config{
		OfferTimeout: testTimeout,
		SnapshotTTL:  10 * time.Minute,
		AfterFunc:    clock.AfterFunc,
		Now:          clock.Now,
	}, records, st, hub, metrics.NewCollector(), logger)
	defer m.Shutdown()

	require.NoError(t, m.Start(ctx, "bk-1", candidates("A", "B")))
	clock.Advance(testTimeout)

	offers := hub.SnapshotSince(0, events.WorkerTopic("B"))
	require.Len(t, offers, 1)
	offer := decode[OfferPayload](t, offers[0])
	assert.Equal(t, int64(2), offer.OfferSeq, "falls back to a local sequence")

	require.NoError(t, m.Accept(ctx, "bk-1", "B"))
	rec, err := records.Get(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusAccepted, rec.Status)
	assert.Contains(t, logs.String(), "failed to persist dispatch snapshot")
}

func TestExhaustionWriteFailureAlertsAndStillNotifies(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	records := mocks.NewMockRecordStore(ctrl)
	st := mocks.NewMockStateStore(ctrl)

	records.EXPECT().Get(gomock.Any(), "bk-1").Return(&booking.Record{
		ID:         "bk-1",
		CustomerID: "cust-1",
		Status:     booking.StatusPending,
	}, nil)
	records.EXPECT().CompareAndSet(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, tr booking.Transition) (bool, error) {
			assert.Equal(t, booking.StatusNoWorkerAvailable, tr.To)
			assert.True(t, tr.RequireUnassigned)
			return false, errors.New("write conflict")
		})

	hub := events.NewHub(16)
	logger, logs := NewTestSlogger()
	m := NewManager(Config{AfterFunc: newManualClock().AfterFunc}, records, st, hub, nil, logger)

	require.NoError(t, m.Start(ctx, "bk-1", nil))

	evs := hub.SnapshotSince(0, events.CustomerTopic("cust-1"))
	require.Len(t, evs, 1)
	assert.Equal(t, EventUnavailable, evs[0].Type)
	assert.Contains(t, logs.String(), `"alert":true`)
	assert.Contains(t, logs.String(), `"level":"ERROR"`)
}

func TestExhaustionOnResolvedBookingStaysQuiet(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	records := mocks.NewMockRecordStore(ctrl)
	st := mocks.NewMockStateStore(ctrl)

	records.EXPECT().Get(gomock.Any(), "bk-1").Return(&booking.Record{
		ID:         "bk-1",
		CustomerID: "cust-1",
		Status:     booking.StatusSearching,
	}, nil)
	records.EXPECT().CompareAndSet(gomock.Any(), gomock.Any()).Return(false, nil)

	hub := events.NewHub(16)
	logger, _ := NewTestSlogger()
	m := NewManager(Config{AfterFunc: newManualClock().AfterFunc}, records, st, hub, nil, logger)

	require.NoError(t, m.Start(ctx, "bk-1", nil))
	assert.Empty(t, hub.SnapshotSince(0, events.CustomerTopic("cust-1")))
}

func TestFallbackAcceptStoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	records := mocks.NewMockRecordStore(ctrl)
	st := mocks.NewMockStateStore(ctrl)
	st.EXPECT().GetOffer(gomock.Any(), "bk-1").Return(nil, errors.New("timeout"))

	logger, _ := NewTestSlogger()
	m := NewManager(Config{}, records, st, events.NewHub(4), nil, logger)

	err := m.Accept(ctx, "bk-1", "A")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrTooLate))
}

func TestAcceptArbiterErrorAdvancesOnOwner(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	records := mocks.NewMockRecordStore(ctrl)
	records.EXPECT().Get(gomock.Any(), "bk-1").DoAndReturn(
		func(context.Context, string) (*booking.Record, error) {
			return &booking.Record{ID: "bk-1", CustomerID: "cust-1", Status: booking.StatusSearching}, nil
		}).AnyTimes()
	records.EXPECT().CompareAndSet(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, tr booking.Transition) (bool, error) {
			if tr.To == booking.StatusAccepted {
				return false, errors.New("mongo: server selection timeout")
			}
			return true, nil
		}).AnyTimes()
	records.EXPECT().AppendHistory(gomock.Any(), "bk-1", gomock.Any()).Return(nil).AnyTimes()

	hub := events.NewHub(64)
	logger, logs := NewTestSlogger()
	m := NewManager(Config{
		OfferTimeout: testTimeout,
		AfterFunc:    newManualClock().AfterFunc,
	}, records, state.NewSQLiteStore(openTestDB(t)), hub, metrics.NewCollector(), logger)
	defer m.Shutdown()

	require.NoError(t, m.Start(ctx, "bk-1", candidates("A", "B")))

	err := m.Accept(ctx, "bk-1", "A")
	assert.ErrorIs(t, err, ErrTooLate)

	evsA := hub.SnapshotSince(0, events.WorkerTopic("A"))
	require.Len(t, evsA, 2)
	assert.Equal(t, EventOfferWithdrawn, evsA[1].Type)
	assert.Equal(t, WithdrawnPreempted, decode[WithdrawnPayload](t, evsA[1]).Reason)

	evsB := hub.SnapshotSince(0, events.WorkerTopic("B"))
	require.Len(t, evsB, 1)
	assert.Equal(t, EventOffer, evsB[0].Type)

	view, ok := m.Get("bk-1")
	require.True(t, ok)
	assert.Equal(t, "B", view.CurrentWorker.WorkerID)
	assert.Contains(t, logs.String(), "arbiter failed; treating as contention loss")
	assert.Contains(t, logs.String(), `"level":"ERROR"`)
}
