package order_test

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosegold-gallery/storefront/internal/auth"
	"github.com/rosegold-gallery/storefront/internal/order"
)

type mockRepository struct {
	createFunc        func(ctx context.Context, o *order.Order) error
	getByIDFunc       func(ctx context.Context, id uuid.UUID) (*order.Order, error)
	getByOwnerIDFunc  func(ctx context.Context, ownerID uuid.UUID) ([]order.Order, error)
	getAllFunc        func(ctx context.Context) ([]order.Order, error)
	updateStatusFunc  func(ctx context.Context, id uuid.UUID, status order.Status) error
	updateAddressFunc func(ctx context.Context, id uuid.UUID, addr order.ShippingAddress) error
	bulkUpdateFunc    func(ctx context.Context, ownerID uuid.UUID, addr order.ShippingAddress) (int64, error)
	deleteFunc        func(ctx context.Context, id uuid.UUID) (bool, error)

	createCalls int
	updateCalls int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		createFunc:  func(ctx context.Context, o *order.Order) error { return nil },
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) { return nil, order.ErrOrderNotFound },
		getByOwnerIDFunc: func(ctx context.Context, ownerID uuid.UUID) ([]order.Order, error) {
			return []order.Order{}, nil
		},
		getAllFunc:        func(ctx context.Context) ([]order.Order, error) { return []order.Order{}, nil },
		updateStatusFunc:  func(ctx context.Context, id uuid.UUID, status order.Status) error { return nil },
		updateAddressFunc: func(ctx context.Context, id uuid.UUID, addr order.ShippingAddress) error { return nil },
		bulkUpdateFunc: func(ctx context.Context, ownerID uuid.UUID, addr order.ShippingAddress) (int64, error) {
			return 0, nil
		},
		deleteFunc: func(ctx context.Context, id uuid.UUID) (bool, error) { return true, nil },
	}
}

func (m *mockRepository) Create(ctx context.Context, o *order.Order) error {
	m.createCalls++
	return m.createFunc(ctx, o)
}

func (m *mockRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockRepository) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]order.Order, error) {
	return m.getByOwnerIDFunc(ctx, ownerID)
}

func (m *mockRepository) GetAll(ctx context.Context) ([]order.Order, error) {
	return m.getAllFunc(ctx)
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status order.Status) error {
	m.updateCalls++
	return m.updateStatusFunc(ctx, id, status)
}

func (m *mockRepository) UpdateShippingAddress(ctx context.Context, id uuid.UUID, addr order.ShippingAddress) error {
	return m.updateAddressFunc(ctx, id, addr)
}

func (m *mockRepository) BulkUpdateAddress(ctx context.Context, ownerID uuid.UUID, addr order.ShippingAddress) (int64, error) {
	return m.bulkUpdateFunc(ctx, ownerID, addr)
}

func (m *mockRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.deleteFunc(ctx, id)
}

type recordingPublisher struct {
	created       int
	statusChanged int
	lastFrom      order.Status
}

func (p *recordingPublisher) OrderCreated(ctx context.Context, o *order.Order) {
	p.created++
}

func (p *recordingPublisher) OrderStatusChanged(ctx context.Context, o *order.Order, from order.Status) {
	p.statusChanged++
	p.lastFrom = from
}

var (
	ownerUUID = uuid.Must(uuid.FromString("123e4567-e89b-12d3-a456-426614174000"))
	orderUUID = uuid.Must(uuid.FromString("550e8400-e29b-41d4-a716-446655440000"))

	ownerIdentity = auth.Identity{ID: ownerUUID.String(), Role: auth.RoleUser}
	otherIdentity = auth.Identity{ID: "999e8400-e29b-41d4-a716-446655440999", Role: auth.RoleUser}
	adminIdentity = auth.Identity{ID: "aaaa8400-e29b-41d4-a716-446655440aaa", Role: auth.RoleAdmin}

	tehranAddress = order.ShippingAddress{City: "Tehran", Street: "Azadi"}
)

func twoRings() []order.Item {
	return []order.Item{
		{ProductID: "p1", Name: "Rose Gold Ring", Quantity: 2, UnitPrice: 20},
	}
}

func TestService_Create(t *testing.T) {
	tests := []struct {
		name         string
		items        []order.Item
		addr         order.ShippingAddress
		claimedTotal float64
		wantErrIs    error
	}{
		{
			name:         "empty_items",
			items:        nil,
			addr:         tehranAddress,
			claimedTotal: 40,
			wantErrIs:    order.ErrInvalidCart,
		},
		{
			name:         "zero_total",
			items:        twoRings(),
			addr:         tehranAddress,
			claimedTotal: 0,
			wantErrIs:    order.ErrInvalidAmount,
		},
		{
			name:         "negative_total",
			items:        twoRings(),
			addr:         tehranAddress,
			claimedTotal: -40,
			wantErrIs:    order.ErrInvalidAmount,
		},
		{
			name:         "missing_city",
			items:        twoRings(),
			addr:         order.ShippingAddress{City: "  ", Street: "Azadi"},
			claimedTotal: 40,
			wantErrIs:    order.ErrInvalidAddress,
		},
		{
			name:         "missing_street",
			items:        twoRings(),
			addr:         order.ShippingAddress{City: "Tehran"},
			claimedTotal: 40,
			wantErrIs:    order.ErrInvalidAddress,
		},
		{
			name: "zero_quantity_item",
			items: []order.Item{
				{ProductID: "p1", Name: "Ring", Quantity: 0, UnitPrice: 20},
			},
			addr:         tehranAddress,
			claimedTotal: 40,
			wantErrIs:    order.ErrInvalidCart,
		},
		{
			name:         "claimed_total_mismatch",
			items:        twoRings(),
			addr:         tehranAddress,
			claimedTotal: 39.99,
			wantErrIs:    order.ErrTotalMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			svc := order.NewService(repo, nil)

			_, err := svc.Create(context.Background(), ownerUUID, tt.items, tt.addr, tt.claimedTotal)

			assert.ErrorIs(t, err, tt.wantErrIs)
			assert.Zero(t, repo.createCalls, "no order may be persisted on validation failure")
		})
	}
}

func TestService_Create_Success(t *testing.T) {
	repo := newMockRepository()
	var persisted *order.Order
	repo.createFunc = func(ctx context.Context, o *order.Order) error {
		persisted = o
		return nil
	}
	events := &recordingPublisher{}
	svc := order.NewService(repo, events)

	created, err := svc.Create(context.Background(), ownerUUID, twoRings(), order.ShippingAddress{City: " Tehran ", Street: " Azadi "}, 40)
	require.NoError(t, err)
	require.NotNil(t, persisted)

	assert.Equal(t, order.StatusPending, created.Status)
	assert.Equal(t, 40.0, created.TotalAmount)
	assert.Equal(t, ownerUUID, created.OwnerID)
	assert.Regexp(t, `^[A-Z0-9]{13}$`, created.TrackingCode)
	assert.Equal(t, order.ShippingAddress{City: "Tehran", Street: "Azadi"}, created.ShippingAddress)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, 1, repo.createCalls)
	assert.Equal(t, 1, events.created)
}

func TestService_Get(t *testing.T) {
	stored := &order.Order{
		ID:      orderUUID,
		OwnerID: ownerUUID,
		Status:  order.StatusPending,
	}

	tests := []struct {
		name      string
		requester auth.Identity
		getByID   func(ctx context.Context, id uuid.UUID) (*order.Order, error)
		wantErrIs error
	}{
		{
			name:      "owner_can_read",
			requester: ownerIdentity,
			getByID: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				return stored, nil
			},
		},
		{
			name:      "admin_can_read",
			requester: adminIdentity,
			getByID: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				return stored, nil
			},
		},
		{
			name:      "stranger_forbidden",
			requester: otherIdentity,
			getByID: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				return stored, nil
			},
			wantErrIs: order.ErrForbidden,
		},
		{
			name:      "not_found",
			requester: ownerIdentity,
			getByID: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				return nil, order.ErrOrderNotFound
			},
			wantErrIs: order.ErrOrderNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			repo.getByIDFunc = tt.getByID
			svc := order.NewService(repo, nil)

			got, err := svc.Get(context.Background(), orderUUID, tt.requester)
			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, stored, got)
			}
		})
	}
}

func TestService_ListAll(t *testing.T) {
	t.Run("non_admin_forbidden", func(t *testing.T) {
		repo := newMockRepository()
		called := false
		repo.getAllFunc = func(ctx context.Context) ([]order.Order, error) {
			called = true
			return nil, nil
		}
		svc := order.NewService(repo, nil)

		_, err := svc.ListAll(context.Background(), ownerIdentity)
		assert.ErrorIs(t, err, order.ErrForbidden)
		assert.False(t, called, "repository must not be touched on forbidden access")
	})

	t.Run("admin_lists_everything", func(t *testing.T) {
		repo := newMockRepository()
		repo.getAllFunc = func(ctx context.Context) ([]order.Order, error) {
			return []order.Order{{ID: orderUUID}}, nil
		}
		svc := order.NewService(repo, nil)

		orders, err := svc.ListAll(context.Background(), adminIdentity)
		require.NoError(t, err)
		assert.Len(t, orders, 1)
	})
}

// statefulRepo backs UpdateStatus tests: GetByID reflects the last applied
// status, as the real repository would.
func statefulRepo(initial order.Status) *mockRepository {
	stored := order.Order{
		ID:        orderUUID,
		OwnerID:   ownerUUID,
		Status:    initial,
		UpdatedAt: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
	}

	repo := newMockRepository()
	repo.getByIDFunc = func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
		o := stored
		return &o, nil
	}
	repo.updateStatusFunc = func(ctx context.Context, id uuid.UUID, status order.Status) error {
		stored.Status = status
		stored.UpdatedAt = time.Now().UTC()
		return nil
	}
	return repo
}

func TestService_UpdateStatus(t *testing.T) {
	tests := []struct {
		name        string
		current     order.Status
		newStatus   order.Status
		force       bool
		requester   auth.Identity
		wantErrIs   error
		wantStatus  order.Status
		wantUpdates int
	}{
		{
			name:      "non_admin_forbidden",
			current:   order.StatusPending,
			newStatus: order.StatusShipped,
			requester: ownerIdentity,
			wantErrIs: order.ErrForbidden,
		},
		{
			name:      "unknown_status",
			current:   order.StatusPending,
			newStatus: order.Status("misplaced"),
			requester: adminIdentity,
			wantErrIs: order.ErrInvalidStatus,
		},
		{
			name:        "pending_to_shipped",
			current:     order.StatusPending,
			newStatus:   order.StatusShipped,
			requester:   adminIdentity,
			wantStatus:  order.StatusShipped,
			wantUpdates: 1,
		},
		{
			name:        "same_status_is_noop",
			current:     order.StatusPending,
			newStatus:   order.StatusPending,
			requester:   adminIdentity,
			wantStatus:  order.StatusPending,
			wantUpdates: 0,
		},
		{
			name:      "terminal_to_pending_rejected",
			current:   order.StatusDelivered,
			newStatus: order.StatusPending,
			requester: adminIdentity,
			wantErrIs: order.ErrInvalidTransition,
		},
		{
			name:      "backward_move_rejected",
			current:   order.StatusShipped,
			newStatus: order.StatusProcessing,
			requester: adminIdentity,
			wantErrIs: order.ErrInvalidTransition,
		},
		{
			name:        "force_overrides_terminal",
			current:     order.StatusDelivered,
			newStatus:   order.StatusPending,
			force:       true,
			requester:   adminIdentity,
			wantStatus:  order.StatusPending,
			wantUpdates: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := statefulRepo(tt.current)
			events := &recordingPublisher{}
			svc := order.NewService(repo, events)

			updated, err := svc.UpdateStatus(context.Background(), orderUUID, tt.newStatus, tt.force, tt.requester)

			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
				assert.Zero(t, repo.updateCalls, "store must be unchanged on rejection")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, updated.Status)
			assert.Equal(t, tt.wantUpdates, repo.updateCalls)
			assert.Equal(t, tt.wantUpdates, events.statusChanged)
			if tt.wantUpdates > 0 {
				assert.Equal(t, tt.current, events.lastFrom)
				assert.True(t, updated.UpdatedAt.After(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)),
					"updated_at must advance")
			}
		})
	}
}

func TestService_UpdateStatus_NotFound(t *testing.T) {
	repo := newMockRepository()
	svc := order.NewService(repo, nil)

	_, err := svc.UpdateStatus(context.Background(), orderUUID, order.StatusShipped, false, adminIdentity)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestService_UpdateShippingAddress(t *testing.T) {
	t.Run("non_admin_forbidden", func(t *testing.T) {
		svc := order.NewService(newMockRepository(), nil)
		_, err := svc.UpdateShippingAddress(context.Background(), orderUUID, tehranAddress, ownerIdentity)
		assert.ErrorIs(t, err, order.ErrForbidden)
	})

	t.Run("incomplete_address", func(t *testing.T) {
		svc := order.NewService(newMockRepository(), nil)
		_, err := svc.UpdateShippingAddress(context.Background(), orderUUID, order.ShippingAddress{City: "Tehran"}, adminIdentity)
		assert.ErrorIs(t, err, order.ErrInvalidAddress)
	})

	t.Run("trims_before_persisting", func(t *testing.T) {
		repo := newMockRepository()
		var gotAddr order.ShippingAddress
		repo.updateAddressFunc = func(ctx context.Context, id uuid.UUID, addr order.ShippingAddress) error {
			gotAddr = addr
			return nil
		}
		repo.getByIDFunc = func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
			return &order.Order{ID: orderUUID, ShippingAddress: gotAddr}, nil
		}
		svc := order.NewService(repo, nil)

		updated, err := svc.UpdateShippingAddress(context.Background(), orderUUID,
			order.ShippingAddress{City: "  Shiraz ", Street: " Zand  "}, adminIdentity)
		require.NoError(t, err)
		assert.Equal(t, order.ShippingAddress{City: "Shiraz", Street: "Zand"}, gotAddr)
		assert.Equal(t, gotAddr, updated.ShippingAddress)
	})
}

func TestService_BulkUpdateAddress(t *testing.T) {
	t.Run("zero_matches_is_not_an_error", func(t *testing.T) {
		svc := order.NewService(newMockRepository(), nil)

		count, err := svc.BulkUpdateAddress(context.Background(), ownerUUID, tehranAddress)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("incomplete_address", func(t *testing.T) {
		svc := order.NewService(newMockRepository(), nil)

		_, err := svc.BulkUpdateAddress(context.Background(), ownerUUID, order.ShippingAddress{Street: "Azadi"})
		assert.ErrorIs(t, err, order.ErrInvalidAddress)
	})

	t.Run("returns_affected_count", func(t *testing.T) {
		repo := newMockRepository()
		repo.bulkUpdateFunc = func(ctx context.Context, ownerID uuid.UUID, addr order.ShippingAddress) (int64, error) {
			return 3, nil
		}
		svc := order.NewService(repo, nil)

		count, err := svc.BulkUpdateAddress(context.Background(), ownerUUID, tehranAddress)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})
}

func TestService_Delete(t *testing.T) {
	t.Run("non_admin_forbidden", func(t *testing.T) {
		svc := order.NewService(newMockRepository(), nil)
		err := svc.Delete(context.Background(), orderUUID, ownerIdentity)
		assert.ErrorIs(t, err, order.ErrForbidden)
	})

	t.Run("missing_order_still_succeeds", func(t *testing.T) {
		repo := newMockRepository()
		repo.deleteFunc = func(ctx context.Context, id uuid.UUID) (bool, error) { return false, nil }
		svc := order.NewService(repo, nil)

		assert.NoError(t, svc.Delete(context.Background(), orderUUID, adminIdentity))
	})
}
