package marketplace

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/pertindetu/internal/backend"
	"github.com/hitoshi/pertindetu/internal/capability"
	"github.com/hitoshi/pertindetu/internal/model"
	"github.com/hitoshi/pertindetu/internal/order"
)

// --- フェイク定義 ---

// fakeMarketplace はメモリ上で注文とレビューを保持するバックエンド。
// 呼び出し順を calls に記録する。
type fakeMarketplace struct {
	mu      sync.Mutex
	orders  map[int64]*model.Order
	reviews map[int64]*model.Review
	nextID  int64
	calls   []string

	updateErr error
	cancelErr error
	getErr    error
	listErr   error
}

func newFakeMarketplace() *fakeMarketplace {
	return &fakeMarketplace{
		orders:  make(map[int64]*model.Order),
		reviews: make(map[int64]*model.Review),
		nextID:  100,
	}
}

func (f *fakeMarketplace) record(name string) {
	f.calls = append(f.calls, name)
}

func (f *fakeMarketplace) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeMarketplace) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *fakeMarketplace) put(o model.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = &o
}

func (f *fakeMarketplace) GetOrder(_ context.Context, orderID int64) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetOrder")
	if f.getErr != nil {
		return nil, f.getErr
	}
	o, ok := f.orders[orderID]
	if !ok {
		return nil, nil
	}
	c := *o
	return &c, nil
}

func (f *fakeMarketplace) list(match func(*model.Order) bool) *model.Page[model.Order] {
	content := []model.Order{}
	for _, o := range f.orders {
		if match(o) {
			content = append(content, *o)
		}
	}
	return &model.Page[model.Order]{Content: content, TotalElements: int64(len(content)), TotalPages: 1, Size: 10}
}

func (f *fakeMarketplace) ListOrdersByClient(_ context.Context, clientID int64, _ model.PageRequest) (*model.Page[model.Order], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListOrdersByClient")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list(func(o *model.Order) bool { return o.Client.ID == clientID }), nil
}

func (f *fakeMarketplace) ListOrdersByProvider(_ context.Context, providerID int64, _ model.PageRequest) (*model.Page[model.Order], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListOrdersByProvider")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list(func(o *model.Order) bool { return o.Provider.ID == providerID }), nil
}

func (f *fakeMarketplace) ListOrders(_ context.Context, _ model.PageRequest) (*model.Page[model.Order], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListOrders")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list(func(*model.Order) bool { return true }), nil
}

func (f *fakeMarketplace) ListOrdersByStatus(_ context.Context, status model.OrderStatus, _ model.PageRequest) (*model.Page[model.Order], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListOrdersByStatus")
	return f.list(func(o *model.Order) bool { return o.Status == status }), nil
}

func (f *fakeMarketplace) CreateOrder(_ context.Context, in model.NewOrder) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateOrder")
	f.nextID++
	o := &model.Order{
		ID:        f.nextID,
		Status:    model.OrderStatusPending,
		Quantity:  in.Quantity,
		Value:     in.Value,
		CreatedAt: time.Now(),
		Client:    model.ClientSummary{ID: in.ClientID},
		Provider:  model.ProviderSummary{ID: in.ProviderID},
		Service:   model.ServiceSummary{ID: in.ServiceID},
	}
	f.orders[o.ID] = o
	c := *o
	return &c, nil
}

func (f *fakeMarketplace) UpdateOrderStatus(_ context.Context, orderID, providerID int64, status model.OrderStatus) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateOrderStatus")
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	o := f.orders[orderID]
	o.Status = status
	c := *o
	return &c, nil
}

func (f *fakeMarketplace) CancelOrder(_ context.Context, orderID, clientID int64) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CancelOrder")
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	o := f.orders[orderID]
	o.Status = model.OrderStatusCancelled
	c := *o
	return &c, nil
}

func (f *fakeMarketplace) ListReviewsByUser(_ context.Context, userID int64, _ model.PageRequest) (*model.Page[model.Review], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListReviewsByUser")
	content := []model.Review{}
	for _, r := range f.reviews {
		if r.User.ID == userID {
			content = append(content, *r)
		}
	}
	return &model.Page[model.Review]{Content: content, TotalElements: int64(len(content)), TotalPages: 1}, nil
}

func (f *fakeMarketplace) ListReviewsByService(_ context.Context, serviceID int64, _ model.PageRequest) (*model.Page[model.Review], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListReviewsByService")
	if f.listErr != nil {
		return nil, f.listErr
	}
	var content []model.Review
	for _, r := range f.reviews {
		if r.Service.ID == serviceID {
			content = append(content, *r)
		}
	}
	return &model.Page[model.Review]{Content: content, TotalElements: int64(len(content)), TotalPages: 1}, nil
}

func (f *fakeMarketplace) GetReview(_ context.Context, reviewID int64) (*model.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetReview")
	r, ok := f.reviews[reviewID]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func (f *fakeMarketplace) CreateReview(_ context.Context, in model.ReviewInput) (*model.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateReview")
	f.nextID++
	r := &model.Review{
		ID:      f.nextID,
		Rating:  in.Rating,
		Comment: in.Comment,
		OrderID: in.OrderID,
		User:    model.ReviewAuthor{ID: in.UserID},
		Service: model.ReviewServiceInfo{ID: in.ServiceID},
	}
	f.reviews[r.ID] = r
	c := *r
	return &c, nil
}

func (f *fakeMarketplace) UpdateReview(_ context.Context, reviewID int64, in model.ReviewInput) (*model.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateReview")
	r := f.reviews[reviewID]
	r.Rating = in.Rating
	r.Comment = in.Comment
	c := *r
	return &c, nil
}

func (f *fakeMarketplace) DeleteReview(_ context.Context, reviewID, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteReview")
	delete(f.reviews, reviewID)
	return nil
}

var (
	_ OrderBackend  = (*fakeMarketplace)(nil)
	_ ReviewBackend = (*fakeMarketplace)(nil)
)

// recordingMetrics は状態遷移の記録を保持する。
type recordingMetrics struct {
	mu          sync.Mutex
	transitions []string
}

func (m *recordingMetrics) RecordBackendRequest(string, string)        {}
func (m *recordingMetrics) RecordBackendStatus(int)                    {}
func (m *recordingMetrics) RecordBackendLatency(string, time.Duration) {}
func (m *recordingMetrics) RecordLogin(string)                         {}
func (m *recordingMetrics) SetActiveSessions(int)                      {}
func (m *recordingMetrics) RecordTransition(from, to, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, from+"->"+to+":"+result)
}

// --- テストヘルパー ---

var (
	clientActor   = capability.Actor{UserID: 42}
	providerActor = capability.Actor{UserID: 50, ProviderID: 7}
	otherProvider = capability.Actor{UserID: 51, ProviderID: 8}
	adminActor    = capability.Actor{UserID: 1, IsAdmin: true}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestOrderService(f *fakeMarketplace) (*OrderService, *recordingMetrics) {
	rec := &recordingMetrics{}
	return NewOrderService(f, rec, discardLogger()), rec
}

func sampleOrder(id int64, status model.OrderStatus) model.Order {
	return model.Order{
		ID:       id,
		Status:   status,
		Quantity: 2,
		Value:    decimal.RequireFromString("150.00"),
		Client:   model.ClientSummary{ID: 42, Name: "Ana"},
		Provider: model.ProviderSummary{ID: 7, Name: "Bruno"},
		Service:  model.ServiceSummary{ID: 3, Title: "Bolo de aniversário"},
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError with code %s, got %T (%v)", code, err, err)
	}
	if apiErr.Code != code {
		t.Errorf("code = %q, want %q", apiErr.Code, code)
	}
}

func assertCalls(t *testing.T, f *fakeMarketplace, want ...string) {
	t.Helper()
	got := f.callLog()
	if len(want) == 0 && len(got) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

// --- シナリオ ---

func TestOrderLifecycle_Scenario(t *testing.T) {
	f := newFakeMarketplace()
	svc, _ := newTestOrderService(f)
	ctx := context.Background()
	pr := model.DefaultPageRequest()

	created, err := svc.Create(ctx, clientActor, model.NewOrder{
		Quantity:   1,
		Value:      decimal.RequireFromString("80"),
		EventDate:  time.Now().Add(48 * time.Hour),
		ProviderID: 7,
		ServiceID:  3,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.Status != model.OrderStatusPending {
		t.Fatalf("created status = %s, want PENDING", created.Status)
	}

	res, err := svc.Transition(ctx, providerActor, TransitionRequest{OrderID: created.ID, Target: model.OrderStatusAccepted}, pr)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if res.Order.Status != model.OrderStatusAccepted {
		t.Fatalf("status = %s, want ACCEPTED", res.Order.Status)
	}

	next := order.NextStatuses(model.OrderStatusAccepted)
	if !reflect.DeepEqual(next, []model.OrderStatus{model.OrderStatusInProgress, model.OrderStatusCancelled}) {
		t.Fatalf("NextStatuses(ACCEPTED) = %v", next)
	}

	if _, err := svc.Transition(ctx, providerActor, TransitionRequest{OrderID: created.ID, Target: model.OrderStatusInProgress}, pr); err != nil {
		t.Fatalf("progress: %v", err)
	}

	// 作業中の注文はクライアントが取り消せない。変更APIは呼ばれない。
	if capability.CanClientCancel(model.OrderStatusInProgress) {
		t.Fatal("CanClientCancel(IN_PROGRESS) should be false")
	}
	f.resetCalls()
	_, err = svc.Cancel(ctx, clientActor, CancelRequest{OrderID: created.ID, From: model.OrderStatusInProgress}, pr)
	assertCode(t, err, model.ErrCodeCancelNotAllowed)
	assertCalls(t, f)

	_, err = svc.Cancel(ctx, clientActor, CancelRequest{OrderID: created.ID}, pr)
	assertCode(t, err, model.ErrCodeCancelNotAllowed)
	assertCalls(t, f, "GetOrder")

	res, err = svc.Transition(ctx, providerActor, TransitionRequest{OrderID: created.ID, Target: model.OrderStatusCompleted}, pr)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Order.Status != model.OrderStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", res.Order.Status)
	}
	if got := order.NextStatuses(res.Order.Status); len(got) != 0 {
		t.Errorf("NextStatuses(COMPLETED) = %v, want empty", got)
	}
}

// --- Transition ---

func TestTransition_MutationThenRefetchInOrder(t *testing.T) {
	f := newFakeMarketplace()
	f.put(sampleOrder(1, model.OrderStatusPending))
	svc, rec := newTestOrderService(f)

	res, err := svc.Transition(context.Background(), providerActor,
		TransitionRequest{OrderID: 1, Target: model.OrderStatusAccepted}, model.DefaultPageRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertCalls(t, f, "GetOrder", "UpdateOrderStatus", "ListOrdersByProvider")
	if res.Orders == nil || len(res.Orders.Content) != 1 || res.Orders.Content[0].Status != model.OrderStatusAccepted {
		t.Errorf("re-fetched orders = %+v", res.Orders)
	}
	if !reflect.DeepEqual(rec.transitions, []string{"PENDING->ACCEPTED:ok"}) {
		t.Errorf("transitions = %v", rec.transitions)
	}
}

func TestTransition_IllegalTargetMakesNoNetworkCall(t *testing.T) {
	f := newFakeMarketplace()
	f.put(sampleOrder(1, model.OrderStatusPending))
	svc, rec := newTestOrderService(f)

	_, err := svc.Transition(context.Background(), providerActor,
		TransitionRequest{OrderID: 1, From: model.OrderStatusPending, Target: model.OrderStatusCompleted}, model.DefaultPageRequest())
	assertCode(t, err, model.ErrCodeInvalidTransition)
	assertCalls(t, f)

	if !reflect.DeepEqual(rec.transitions, []string{"PENDING->COMPLETED:invalid"}) {
		t.Errorf("transitions = %v", rec.transitions)
	}
}

func TestTransition_GuardUsesCanonicalStatus(t *testing.T) {
	f := newFakeMarketplace()
	// 画面上は PENDING だが実際には既に REJECTED
	f.put(sampleOrder(1, model.OrderStatusRejected))
	svc, _ := newTestOrderService(f)

	_, err := svc.Transition(context.Background(), providerActor,
		TransitionRequest{OrderID: 1, From: model.OrderStatusPending, Target: model.OrderStatusAccepted}, model.DefaultPageRequest())
	assertCode(t, err, model.ErrCodeInvalidTransition)
	assertCalls(t, f, "GetOrder")
}

func TestTransition_TerminalStatusesRejectEverything(t *testing.T) {
	for _, status := range []model.OrderStatus{model.OrderStatusRejected, model.OrderStatusCompleted, model.OrderStatusCancelled} {
		for _, target := range model.AllOrderStatuses() {
			t.Run(string(status)+"->"+string(target), func(t *testing.T) {
				f := newFakeMarketplace()
				f.put(sampleOrder(1, status))
				svc, _ := newTestOrderService(f)

				_, err := svc.Transition(context.Background(), providerActor,
					TransitionRequest{OrderID: 1, Target: target}, model.DefaultPageRequest())
				assertCode(t, err, model.ErrCodeInvalidTransition)
				assertCalls(t, f, "GetOrder")
			})
		}
	}
}

func TestTransition_AuthorizationFailures(t *testing.T) {
	tests := []struct {
		name     string
		actor    capability.Actor
		req      TransitionRequest
		wantCode string
		wantCall []string
	}{
		{"not a provider", clientActor, TransitionRequest{OrderID: 1, Target: model.OrderStatusAccepted}, model.ErrCodeNotProvider, nil},
		{"unknown target", providerActor, TransitionRequest{OrderID: 1, Target: "SHIPPED"}, model.ErrCodeValidation, nil},
		{"other provider", otherProvider, TransitionRequest{OrderID: 1, Target: model.OrderStatusAccepted}, model.ErrCodeForbiddenAction, []string{"GetOrder"}},
		{"missing order", providerActor, TransitionRequest{OrderID: 99, Target: model.OrderStatusAccepted}, model.ErrCodeOrderNotFound, []string{"GetOrder"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeMarketplace()
			f.put(sampleOrder(1, model.OrderStatusPending))
			svc, _ := newTestOrderService(f)

			_, err := svc.Transition(context.Background(), tt.actor, tt.req, model.DefaultPageRequest())
			assertCode(t, err, tt.wantCode)
			assertCalls(t, f, tt.wantCall...)
		})
	}
}

func TestTransition_BackendRejectionReconciles(t *testing.T) {
	f := newFakeMarketplace()
	f.put(sampleOrder(1, model.OrderStatusPending))
	f.updateErr = &backend.StatusError{StatusCode: http.StatusConflict, Message: "Order was modified concurrently"}
	svc, rec := newTestOrderService(f)

	res, err := svc.Transition(context.Background(), providerActor,
		TransitionRequest{OrderID: 1, Target: model.OrderStatusAccepted}, model.DefaultPageRequest())
	assertCode(t, err, model.ErrCodeForbiddenAction)

	assertCalls(t, f, "GetOrder", "UpdateOrderStatus", "ListOrdersByProvider")
	if res == nil || res.Orders == nil || res.Order != nil {
		t.Fatalf("result = %+v, want re-fetched list only", res)
	}
	if res.Orders.Content[0].Status != model.OrderStatusPending {
		t.Errorf("local state should be the canonical one, got %s", res.Orders.Content[0].Status)
	}
	if !reflect.DeepEqual(rec.transitions, []string{"PENDING->ACCEPTED:rejected"}) {
		t.Errorf("transitions = %v", rec.transitions)
	}
}

func TestTransition_TransientFailureAppliesNothing(t *testing.T) {
	f := newFakeMarketplace()
	f.put(sampleOrder(1, model.OrderStatusPending))
	f.updateErr = errors.New("connection reset by peer")
	svc, _ := newTestOrderService(f)

	res, err := svc.Transition(context.Background(), providerActor,
		TransitionRequest{OrderID: 1, Target: model.OrderStatusAccepted}, model.DefaultPageRequest())
	assertCode(t, err, model.ErrCodeActionFailed)
	if res != nil {
		t.Errorf("result = %+v, want nil", res)
	}
	assertCalls(t, f, "GetOrder", "UpdateOrderStatus")
}

func TestTransition_RefetchFailureStillSucceeds(t *testing.T) {
	f := newFakeMarketplace()
	f.put(sampleOrder(1, model.OrderStatusAccepted))
	f.listErr = errors.New("timeout")
	svc, _ := newTestOrderService(f)

	res, err := svc.Transition(context.Background(), providerActor,
		TransitionRequest{OrderID: 1, Target: model.OrderStatusInProgress}, model.DefaultPageRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Order.Status != model.OrderStatusInProgress || res.Orders != nil {
		t.Errorf("result = %+v", res)
	}
}

func TestTransition_ProviderMayCancelAccepted(t *testing.T) {
	f := newFakeMarketplace()
	f.put(sampleOrder(1, model.OrderStatusAccepted))
	svc, _ := newTestOrderService(f)

	res, err := svc.Transition(context.Background(), providerActor,
		TransitionRequest{OrderID: 1, Target: model.OrderStatusCancelled}, model.DefaultPageRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Order.Status != model.OrderStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", res.Order.Status)
	}
}

// --- Cancel ---

func TestCancel_AllowedStatuses(t *testing.T) {
	for _, status := range []model.OrderStatus{model.OrderStatusPending, model.OrderStatusAccepted} {
		t.Run(string(status), func(t *testing.T) {
			f := newFakeMarketplace()
			f.put(sampleOrder(1, status))
			svc, rec := newTestOrderService(f)

			res, err := svc.Cancel(context.Background(), clientActor,
				CancelRequest{OrderID: 1, From: status}, model.DefaultPageRequest())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Order.Status != model.OrderStatusCancelled {
				t.Errorf("status = %s, want CANCELLED", res.Order.Status)
			}
			assertCalls(t, f, "GetOrder", "CancelOrder", "ListOrdersByClient")
			if rec.transitions[0] != string(status)+"->CANCELLED:ok" {
				t.Errorf("transitions = %v", rec.transitions)
			}
		})
	}
}

func TestCancel_NotOwner(t *testing.T) {
	f := newFakeMarketplace()
	f.put(sampleOrder(1, model.OrderStatusPending))
	svc, _ := newTestOrderService(f)

	_, err := svc.Cancel(context.Background(), capability.Actor{UserID: 43}, CancelRequest{OrderID: 1}, model.DefaultPageRequest())
	assertCode(t, err, model.ErrCodeForbiddenAction)
	assertCalls(t, f, "GetOrder")
}

func TestCancel_BackendRejectionReconciles(t *testing.T) {
	f := newFakeMarketplace()
	f.put(sampleOrder(1, model.OrderStatusAccepted))
	f.cancelErr = &backend.StatusError{StatusCode: http.StatusBadRequest, Message: "Cannot cancel order in current status"}
	svc, _ := newTestOrderService(f)

	res, err := svc.Cancel(context.Background(), clientActor, CancelRequest{OrderID: 1}, model.DefaultPageRequest())
	assertCode(t, err, model.ErrCodeForbiddenAction)
	if apiErr := err.(*model.APIError); apiErr.Message != "Cannot cancel order in current status" {
		t.Errorf("message = %q", apiErr.Message)
	}
	if res == nil || res.Orders == nil {
		t.Error("expected re-fetched orders")
	}
	assertCalls(t, f, "GetOrder", "CancelOrder", "ListOrdersByClient")
}

func TestCancel_Unauthenticated(t *testing.T) {
	svc, _ := newTestOrderService(newFakeMarketplace())
	_, err := svc.Cancel(context.Background(), capability.Actor{}, CancelRequest{OrderID: 1}, model.DefaultPageRequest())
	assertCode(t, err, model.ErrCodeUnauthenticated)
}

// --- Get / List ---

func TestGet_CapabilitiesPerRole(t *testing.T) {
	f := newFakeMarketplace()
	f.put(sampleOrder(1, model.OrderStatusAccepted))
	svc, _ := newTestOrderService(f)
	ctx := context.Background()

	_, caps, err := svc.Get(ctx, clientActor, capability.RoleClient, 1)
	if err != nil {
		t.Fatalf("client Get: %v", err)
	}
	if !caps.Cancel || len(caps.Transitions) != 0 {
		t.Errorf("client caps = %+v", caps)
	}

	_, caps, err = svc.Get(ctx, providerActor, capability.RoleProvider, 1)
	if err != nil {
		t.Fatalf("provider Get: %v", err)
	}
	if !caps.Progress || !caps.ProviderCancel || caps.Cancel {
		t.Errorf("provider caps = %+v", caps)
	}

	_, _, err = svc.Get(ctx, otherProvider, capability.RoleProvider, 1)
	assertCode(t, err, model.ErrCodeForbiddenAction)

	// プロバイダープロフィールのないユーザーはプロバイダーとして閲覧できない
	_, _, err = svc.Get(ctx, capability.Actor{UserID: 50}, capability.RoleProvider, 1)
	assertCode(t, err, model.ErrCodeForbiddenAction)

	_, caps, err = svc.Get(ctx, adminActor, capability.RoleAdmin, 1)
	if err != nil || !caps.ViewDetails || len(caps.Transitions) != 0 {
		t.Errorf("admin caps = %+v, err = %v", caps, err)
	}
}

func TestGet_TransientFailure(t *testing.T) {
	f := newFakeMarketplace()
	f.getErr = errors.New("dial tcp: i/o timeout")
	svc, _ := newTestOrderService(f)

	_, _, err := svc.Get(context.Background(), clientActor, capability.RoleClient, 1)
	assertCode(t, err, model.ErrCodeBackendUnavailable)
}

func TestListForClient_LocalStatusFilter(t *testing.T) {
	f := newFakeMarketplace()
	f.put(sampleOrder(1, model.OrderStatusPending))
	f.put(sampleOrder(2, model.OrderStatusCompleted))
	svc, _ := newTestOrderService(f)

	page, err := svc.ListForClient(context.Background(), clientActor, model.DefaultPageRequest(), model.OrderStatusCompleted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Content) != 1 || page.Content[0].ID != 2 {
		t.Errorf("content = %+v", page.Content)
	}

	all, err := svc.ListForClient(context.Background(), clientActor, model.DefaultPageRequest(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all.Content) != 2 {
		t.Errorf("len = %d, want 2", len(all.Content))
	}
}

func TestFilterByStatus_IsPageLocal(t *testing.T) {
	page := &model.Page[model.Order]{
		Content: []model.Order{
			sampleOrder(1, model.OrderStatusPending),
			sampleOrder(2, model.OrderStatusCompleted),
			sampleOrder(3, model.OrderStatusPending),
		},
		TotalElements: 25,
		TotalPages:    3,
		Size:          10,
		Number:        1,
	}

	got := filterByStatus(page, model.OrderStatusPending)
	if len(got.Content) != 2 || got.Content[0].ID != 1 || got.Content[1].ID != 3 {
		t.Errorf("content = %+v", got.Content)
	}
	// 総数はバックエンドの値のまま
	if got.TotalElements != 25 || got.TotalPages != 3 || got.Number != 1 {
		t.Errorf("totals = %d/%d page %d, want backend totals 25/3 page 1", got.TotalElements, got.TotalPages, got.Number)
	}
	if len(page.Content) != 3 {
		t.Error("input page should not be modified")
	}
	if filterByStatus(page, "") != page {
		t.Error("empty status should return the page as is")
	}
}

func TestListForProvider_RequiresProfile(t *testing.T) {
	f := newFakeMarketplace()
	svc, _ := newTestOrderService(f)

	_, err := svc.ListForProvider(context.Background(), clientActor, model.DefaultPageRequest(), "")
	assertCode(t, err, model.ErrCodeNotProvider)
	assertCalls(t, f)
}

func TestListForProvider_TransientFailure(t *testing.T) {
	f := newFakeMarketplace()
	f.listErr = errors.New("timeout")
	svc, _ := newTestOrderService(f)

	_, err := svc.ListForProvider(context.Background(), providerActor, model.DefaultPageRequest(), "")
	assertCode(t, err, model.ErrCodeBackendUnavailable)
}

func TestListByStatus_AdminOnly(t *testing.T) {
	f := newFakeMarketplace()
	f.put(sampleOrder(1, model.OrderStatusPending))
	svc, _ := newTestOrderService(f)
	ctx := context.Background()

	_, err := svc.ListByStatus(ctx, clientActor, model.OrderStatusPending, model.DefaultPageRequest())
	assertCode(t, err, model.ErrCodeForbiddenAction)

	_, err = svc.ListByStatus(ctx, adminActor, "LOST", model.DefaultPageRequest())
	assertCode(t, err, model.ErrCodeValidation)

	page, err := svc.ListByStatus(ctx, adminActor, model.OrderStatusPending, model.DefaultPageRequest())
	if err != nil || len(page.Content) != 1 {
		t.Errorf("page = %+v, err = %v", page, err)
	}
}

func TestListByStatus_EmptyStatusListsAll(t *testing.T) {
	f := newFakeMarketplace()
	f.put(sampleOrder(1, model.OrderStatusPending))
	f.put(sampleOrder(2, model.OrderStatusCompleted))
	svc, _ := newTestOrderService(f)

	page, err := svc.ListByStatus(context.Background(), adminActor, "", model.DefaultPageRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Content) != 2 {
		t.Errorf("len = %d, want 2", len(page.Content))
	}
	assertCalls(t, f, "ListOrders")
}

// --- Create ---

func TestCreate_ValidationHappensBeforeNetwork(t *testing.T) {
	f := newFakeMarketplace()
	svc, _ := newTestOrderService(f)

	_, err := svc.Create(context.Background(), clientActor, model.NewOrder{Quantity: 0, ProviderID: 7, ServiceID: 3, EventDate: time.Now()})
	assertCode(t, err, model.ErrCodeValidation)
	assertCalls(t, f)
}

func TestCreate_UsesSessionUserAsClient(t *testing.T) {
	f := newFakeMarketplace()
	svc, _ := newTestOrderService(f)

	o, err := svc.Create(context.Background(), clientActor, model.NewOrder{
		Quantity: 1, ClientID: 999, ProviderID: 7, ServiceID: 3, EventDate: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Client.ID != 42 {
		t.Errorf("client id = %d, want 42", o.Client.ID)
	}
}
