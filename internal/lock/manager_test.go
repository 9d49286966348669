package lock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averon/venue-reservation/internal/model"
	"github.com/averon/venue-reservation/internal/repository"
)

type fakeSlots struct {
	available bool
	locked    [][]uint64
	booked    []uint64
	released  []uint64
}

func (f *fakeSlots) AreAllAvailable(_ context.Context, _ []uint64) (bool, error) {
	return f.available, nil
}

func (f *fakeSlots) Lock(_ context.Context, _ repository.DBTX, slotIDs []uint64, _ uint64) error {
	f.locked = append(f.locked, slotIDs)
	return nil
}

func (f *fakeSlots) Book(_ context.Context, _ repository.DBTX, reservationID uint64) error {
	f.booked = append(f.booked, reservationID)
	return nil
}

func (f *fakeSlots) Release(_ context.Context, _ repository.DBTX, reservationID uint64) error {
	f.released = append(f.released, reservationID)
	return nil
}

type fakeEvents struct {
	capacity  bool
	committed []uint32
	released  []uint32
}

func (f *fakeEvents) HasCapacity(_ context.Context, _ uint64, _ uint32) (bool, error) {
	return f.capacity, nil
}

func (f *fakeEvents) CommitSeats(_ context.Context, _ repository.DBTX, _, _, _ uint64, seats uint32) error {
	f.committed = append(f.committed, seats)
	return nil
}

func (f *fakeEvents) ReleaseSeats(_ context.Context, _ repository.DBTX, _, _ uint64, seats uint32) error {
	f.released = append(f.released, seats)
	return nil
}

type fakeInventory struct {
	inStock   bool
	held      []uint64
	committed []uint64
	released  []uint64
}

func (f *fakeInventory) InStock(_ context.Context, _ []model.OrderLine) (bool, error) {
	return f.inStock, nil
}

func (f *fakeInventory) Hold(_ context.Context, _ repository.DBTX, reservationID uint64, _ []model.OrderLine) error {
	f.held = append(f.held, reservationID)
	return nil
}

func (f *fakeInventory) Commit(_ context.Context, _ repository.DBTX, reservationID uint64) error {
	f.committed = append(f.committed, reservationID)
	return nil
}

func (f *fakeInventory) Release(_ context.Context, _ repository.DBTX, reservationID uint64) error {
	f.released = append(f.released, reservationID)
	return nil
}

func managerFixture() (*Manager, *fakeSlots, *fakeEvents, *fakeInventory) {
	slots := &fakeSlots{available: true}
	events := &fakeEvents{capacity: true}
	inventory := &fakeInventory{inStock: true}
	return NewManager(slots, events, inventory), slots, events, inventory
}

func venueReservation() *model.Reservation {
	return &model.Reservation{
		ID:      9,
		OwnerID: 3,
		Kind:    model.KindVenue,
		Venue:   &model.VenueDetails{VenueID: 1, FacilityID: 2, SlotIDs: []uint64{4, 5}},
	}
}

func eventReservation() *model.Reservation {
	return &model.Reservation{
		ID:      9,
		OwnerID: 3,
		Kind:    model.KindEvent,
		Event:   &model.EventDetails{EventID: 6, Seats: 2},
	}
}

func shopReservation() *model.Reservation {
	return &model.Reservation{
		ID:      9,
		OwnerID: 3,
		Kind:    model.KindShopOrder,
		Shop:    &model.ShopDetails{Lines: []model.OrderLine{{ProductID: 8, Quantity: 1}}},
	}
}

func TestLockAllDispatchesByKind(t *testing.T) {
	m, slots, _, inventory := managerFixture()
	ctx := context.Background()

	require.NoError(t, m.LockAll(ctx, nil, venueReservation()))
	require.NoError(t, m.LockAll(ctx, nil, eventReservation()))
	require.NoError(t, m.LockAll(ctx, nil, shopReservation()))

	assert.Equal(t, [][]uint64{{4, 5}}, slots.locked)
	assert.Equal(t, []uint64{9}, inventory.held)
}

func TestLockAllIsNoOpForEvents(t *testing.T) {
	m, _, events, _ := managerFixture()

	require.NoError(t, m.LockAll(context.Background(), nil, eventReservation()))

	// seats are only taken at commit, under the capacity guard
	assert.Empty(t, events.committed)
}

func TestCommitDispatchesByKind(t *testing.T) {
	m, slots, events, inventory := managerFixture()
	ctx := context.Background()

	require.NoError(t, m.Commit(ctx, nil, venueReservation()))
	require.NoError(t, m.Commit(ctx, nil, eventReservation()))
	require.NoError(t, m.Commit(ctx, nil, shopReservation()))

	assert.Equal(t, []uint64{9}, slots.booked)
	assert.Equal(t, []uint32{2}, events.committed)
	assert.Equal(t, []uint64{9}, inventory.committed)
}

func TestReleaseDispatchesByKind(t *testing.T) {
	m, slots, events, inventory := managerFixture()
	ctx := context.Background()

	require.NoError(t, m.Release(ctx, nil, venueReservation()))
	require.NoError(t, m.Release(ctx, nil, eventReservation()))
	require.NoError(t, m.Release(ctx, nil, shopReservation()))

	assert.Equal(t, []uint64{9}, slots.released)
	assert.Equal(t, []uint32{2}, events.released)
	assert.Equal(t, []uint64{9}, inventory.released)
}

func TestAreAllAvailableDispatchesByKind(t *testing.T) {
	m, slots, _, _ := managerFixture()

	ok, err := m.AreAllAvailable(context.Background(), venueReservation())
	require.NoError(t, err)
	assert.True(t, ok)

	slots.available = false
	ok, err = m.AreAllAvailable(context.Background(), venueReservation())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnknownKindIsRejected(t *testing.T) {
	m, _, _, _ := managerFixture()
	res := &model.Reservation{Kind: model.Kind("PARKING")}

	assert.Error(t, m.LockAll(context.Background(), nil, res))
	assert.Error(t, m.Commit(context.Background(), nil, res))
	assert.Error(t, m.Release(context.Background(), nil, res))

	_, err := m.AreAllAvailable(context.Background(), res)
	assert.Error(t, err)
}
