package product_tokens

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/emissions-api/internal/domain/entity"
	"github.com/archon-research/emissions-api/internal/ports/outbound"
)

const auditor = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

// mockRepo implements outbound.ProductTokenRepository for testing.
type mockRepo struct {
	countFn  func(ctx context.Context, bundles []entity.FilterBundle) (int64, error)
	selectFn func(ctx context.Context, offset, limit int, bundles []entity.FilterBundle) ([]*entity.ProductToken, error)
	insertFn func(ctx context.Context, token *entity.ProductToken) (*entity.ProductToken, error)

	mu      sync.Mutex
	inserts int
}

func (m *mockRepo) CountProducts(ctx context.Context, bundles []entity.FilterBundle) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, bundles)
	}
	return 0, errors.New("CountProducts not mocked")
}

func (m *mockRepo) SelectPaginated(ctx context.Context, offset, limit int, bundles []entity.FilterBundle) ([]*entity.ProductToken, error) {
	if m.selectFn != nil {
		return m.selectFn(ctx, offset, limit, bundles)
	}
	return nil, errors.New("SelectPaginated not mocked")
}

func (m *mockRepo) InsertProductToken(ctx context.Context, token *entity.ProductToken) (*entity.ProductToken, error) {
	m.mu.Lock()
	m.inserts++
	m.mu.Unlock()
	if m.insertFn != nil {
		return m.insertFn(ctx, token)
	}
	return nil, errors.New("InsertProductToken not mocked")
}

// recordingSink implements outbound.EventSink for testing.
type recordingSink struct {
	mu         sync.Mutex
	events     []outbound.Event
	publishErr error
}

func (s *recordingSink) Publish(ctx context.Context, event outbound.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publishErr != nil {
		return s.publishErr
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Close() error { return nil }

// tokenStore is a tiny in-memory table used to drive pagination tests.
func tokenStore(n int) []*entity.ProductToken {
	out := make([]*entity.ProductToken, n)
	for i := range out {
		out[i] = &entity.ProductToken{
			TokenID:    int64(i + 1),
			ProductID:  1,
			TrackerID:  1,
			Auditor:    common.HexToAddress(auditor),
			Amount:     big.NewInt(100),
			Available:  big.NewInt(100),
			Name:       "Natural gas",
			Unit:       "MMBtu",
			UnitAmount: big.NewInt(1),
			Hash:       "0xabc",
		}
	}
	return out
}

func pagedRepo(rows []*entity.ProductToken) *mockRepo {
	return &mockRepo{
		countFn: func(ctx context.Context, bundles []entity.FilterBundle) (int64, error) {
			return int64(len(rows)), nil
		},
		selectFn: func(ctx context.Context, offset, limit int, bundles []entity.FilterBundle) ([]*entity.ProductToken, error) {
			if offset >= len(rows) {
				return nil, nil
			}
			end := offset + limit
			if end > len(rows) {
				end = len(rows)
			}
			return rows[offset:end], nil
		},
	}
}

func validInput() entity.ProductTokenInput {
	return entity.ProductTokenInput{
		ProductID:  7,
		TrackerID:  3,
		Auditor:    strings.ToLower(auditor),
		Amount:     new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil),
		Available:  big.NewInt(500),
		Name:       "Natural gas",
		Unit:       "MMBtu",
		UnitAmount: big.NewInt(1),
		Hash:       "0xdeadbeef",
	}
}

func newTestService(t *testing.T, repo *mockRepo, sink outbound.EventSink) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{Events: sink}, repo)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc
}

func TestNewService(t *testing.T) {
	if _, err := NewService(ServiceConfig{}, nil); err == nil {
		t.Fatal("expected error for nil repo")
	}
	svc, err := NewService(ServiceConfig{}, &mockRepo{})
	if err != nil {
		t.Fatalf("unexpected error = %v", err)
	}
	if svc.logger == nil || svc.metrics == nil {
		t.Error("expected defaults for logger and metrics")
	}
}

func TestList_Pagination(t *testing.T) {
	rows := tokenStore(25)

	tests := []struct {
		name      string
		offset    int
		limit     int
		wantLen   int
		wantFirst int64
	}{
		{name: "first page", offset: 0, limit: 10, wantLen: 10, wantFirst: 1},
		{name: "last partial page", offset: 20, limit: 10, wantLen: 5, wantFirst: 21},
		{name: "past the end", offset: 40, limit: 10, wantLen: 0},
		{name: "max limit", offset: 0, limit: MaxLimit, wantLen: 25, wantFirst: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, pagedRepo(rows), nil)
			page, err := svc.List(context.Background(), nil, tt.offset, tt.limit)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if page.Count != 25 {
				t.Errorf("Count = %d, want 25", page.Count)
			}
			if page.Products == nil {
				t.Fatal("Products is nil, want empty slice")
			}
			if len(page.Products) != tt.wantLen {
				t.Fatalf("len(Products) = %d, want %d", len(page.Products), tt.wantLen)
			}
			if tt.wantLen > 0 && page.Products[0].TokenID != tt.wantFirst {
				t.Errorf("first TokenID = %d, want %d", page.Products[0].TokenID, tt.wantFirst)
			}
		})
	}
}

func TestList_Validation(t *testing.T) {
	tests := []struct {
		name      string
		offset    int
		limit     int
		wantField string
	}{
		{name: "negative offset", offset: -1, limit: 10, wantField: "offset"},
		{name: "zero limit", offset: 0, limit: 0, wantField: "limit"},
		{name: "negative limit", offset: 0, limit: -5, wantField: "limit"},
		{name: "limit above cap", offset: 0, limit: MaxLimit + 1, wantField: "limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{}
			svc := newTestService(t, repo, nil)
			_, err := svc.List(context.Background(), nil, tt.offset, tt.limit)
			var ve *entity.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Field = %s, want %s", ve.Field, tt.wantField)
			}
		})
	}
}

func TestList_PassesBundles(t *testing.T) {
	bundle, err := entity.ParseFilterBundle("name", "string", "eq", "Natural gas")
	if err != nil {
		t.Fatalf("ParseFilterBundle() error = %v", err)
	}

	var seenSelect, seenCount []entity.FilterBundle
	repo := &mockRepo{
		selectFn: func(ctx context.Context, offset, limit int, bundles []entity.FilterBundle) ([]*entity.ProductToken, error) {
			seenSelect = bundles
			return nil, nil
		},
		countFn: func(ctx context.Context, bundles []entity.FilterBundle) (int64, error) {
			seenCount = bundles
			return 0, nil
		},
	}
	svc := newTestService(t, repo, nil)

	page, err := svc.List(context.Background(), []entity.FilterBundle{bundle}, 0, DefaultLimit)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Count != 0 || len(page.Products) != 0 {
		t.Errorf("page = %+v, want empty", page)
	}
	if len(seenSelect) != 1 || len(seenCount) != 1 || seenSelect[0].Field != "name" {
		t.Errorf("bundles not forwarded: select=%v count=%v", seenSelect, seenCount)
	}
}

func TestCountAndList_RejectUnlistedBundles(t *testing.T) {
	tests := []struct {
		name      string
		bundle    entity.FilterBundle
		wantField string
	}{
		{
			name:      "unknown field",
			bundle:    entity.FilterBundle{Field: "password", Type: entity.FieldTypeString, Op: entity.OpEq, StringValue: "x"},
			wantField: "bundles.field",
		},
		{
			name:      "type mismatch",
			bundle:    entity.FilterBundle{Field: "amount", Type: entity.FieldTypeString, Op: entity.OpEq, StringValue: "1"},
			wantField: "bundles.fieldType",
		},
		{
			name:      "unknown operator",
			bundle:    entity.FilterBundle{Field: "name", Type: entity.FieldTypeString, Op: "regex", StringValue: ".*"},
			wantField: "bundles.op",
		},
		{
			name:      "missing number value",
			bundle:    entity.FilterBundle{Field: "tokenId", Type: entity.FieldTypeNumber, Op: entity.OpEq},
			wantField: "bundles.value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{
				countFn: func(ctx context.Context, bundles []entity.FilterBundle) (int64, error) {
					t.Error("CountProducts called with an invalid bundle")
					return 0, nil
				},
				selectFn: func(ctx context.Context, offset, limit int, bundles []entity.FilterBundle) ([]*entity.ProductToken, error) {
					t.Error("SelectPaginated called with an invalid bundle")
					return nil, nil
				},
			}
			svc := newTestService(t, repo, nil)
			bundles := []entity.FilterBundle{tt.bundle}

			_, countErr := svc.Count(context.Background(), bundles)
			_, listErr := svc.List(context.Background(), bundles, 0, DefaultLimit)
			for op, err := range map[string]error{"Count": countErr, "List": listErr} {
				var ve *entity.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("%s() error = %v, want *ValidationError", op, err)
				}
				if ve.Field != tt.wantField {
					t.Errorf("%s() Field = %s, want %s", op, ve.Field, tt.wantField)
				}
				if entity.IsStorage(err) {
					t.Errorf("%s() returned a storage error", op)
				}
			}
		})
	}
}

func TestStorageErrorsAreTagged(t *testing.T) {
	boom := errors.New("connection reset")
	repo := &mockRepo{
		countFn: func(ctx context.Context, bundles []entity.FilterBundle) (int64, error) {
			return 0, boom
		},
		selectFn: func(ctx context.Context, offset, limit int, bundles []entity.FilterBundle) ([]*entity.ProductToken, error) {
			return nil, boom
		},
		insertFn: func(ctx context.Context, token *entity.ProductToken) (*entity.ProductToken, error) {
			return nil, boom
		},
	}
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	_, countErr := svc.Count(ctx, nil)
	_, listErr := svc.List(ctx, nil, 0, 10)
	_, insertErr := svc.Insert(ctx, validInput())

	tests := []struct {
		name   string
		err    error
		wantOp string
	}{
		{"count", countErr, OpCount},
		{"list", listErr, OpList},
		{"insert", insertErr, OpInsert},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var se *entity.StorageError
			if !errors.As(tt.err, &se) {
				t.Fatalf("error = %v, want *StorageError", tt.err)
			}
			if se.Op != tt.wantOp {
				t.Errorf("Op = %s, want %s", se.Op, tt.wantOp)
			}
			if !errors.Is(tt.err, boom) {
				t.Error("expected underlying error to be preserved")
			}
		})
	}
}

func TestCount(t *testing.T) {
	svc := newTestService(t, pagedRepo(tokenStore(4)), nil)
	count, err := svc.Count(context.Background(), nil)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 4 {
		t.Errorf("Count() = %d, want 4", count)
	}
}

func TestInsert_PublishesEvent(t *testing.T) {
	var stored *entity.ProductToken
	repo := &mockRepo{
		insertFn: func(ctx context.Context, token *entity.ProductToken) (*entity.ProductToken, error) {
			cp := *token
			cp.TokenID = 42
			stored = &cp
			return &cp, nil
		},
	}
	sink := &recordingSink{}
	svc := newTestService(t, repo, sink)

	got, err := svc.Insert(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if got.TokenID != 42 {
		t.Errorf("TokenID = %d, want 42", got.TokenID)
	}
	if stored.AuditorHex() != auditor {
		t.Errorf("stored auditor = %s, want checksum form %s", stored.AuditorHex(), auditor)
	}

	if len(sink.events) != 1 {
		t.Fatalf("published %d events, want 1", len(sink.events))
	}
	ev, ok := sink.events[0].(outbound.ProductTokenInsertedEvent)
	if !ok {
		t.Fatalf("event type = %T", sink.events[0])
	}
	if ev.TokenID != 42 || ev.Hash != "0xdeadbeef" || ev.GetKey() != "42" {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.Amount != "1000000000000000000000000000000" {
		t.Errorf("Amount = %s, want exact decimal", ev.Amount)
	}
	if !ev.InsertedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("InsertedAt = %v", ev.InsertedAt)
	}
}

func TestInsert_PublishFailureIsNotReturned(t *testing.T) {
	repo := &mockRepo{
		insertFn: func(ctx context.Context, token *entity.ProductToken) (*entity.ProductToken, error) {
			cp := *token
			cp.TokenID = 1
			return &cp, nil
		},
	}
	sink := &recordingSink{publishErr: errors.New("topic unavailable")}
	svc := newTestService(t, repo, sink)

	if _, err := svc.Insert(context.Background(), validInput()); err != nil {
		t.Fatalf("Insert() error = %v, want nil", err)
	}
}

func TestInsert_Validation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(in *entity.ProductTokenInput)
		wantField string
	}{
		{
			name:      "malformed auditor",
			mutate:    func(in *entity.ProductTokenInput) { in.Auditor = "0x1234" },
			wantField: "auditor",
		},
		{
			name:      "bad checksum",
			mutate:    func(in *entity.ProductTokenInput) { in.Auditor = "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" },
			wantField: "auditor",
		},
		{
			name:      "non-positive product id",
			mutate:    func(in *entity.ProductTokenInput) { in.ProductID = 0 },
			wantField: "productId",
		},
		{
			name:      "negative available",
			mutate:    func(in *entity.ProductTokenInput) { in.Available = big.NewInt(-1) },
			wantField: "available",
		},
		{
			name:      "missing hash",
			mutate:    func(in *entity.ProductTokenInput) { in.Hash = " " },
			wantField: "hash",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{}
			sink := &recordingSink{}
			svc := newTestService(t, repo, sink)

			in := validInput()
			tt.mutate(&in)
			_, err := svc.Insert(context.Background(), in)

			var ve *entity.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Field = %s, want %s", ve.Field, tt.wantField)
			}
			if repo.inserts != 0 {
				t.Errorf("store received %d inserts, want 0", repo.inserts)
			}
			if len(sink.events) != 0 {
				t.Errorf("published %d events, want 0", len(sink.events))
			}
		})
	}
}
