package workorder

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pitabwire/workdesk/internal/lookup"
	"github.com/pitabwire/workdesk/model"
)

type call struct {
	Method string
	Args   []any
}

// fakeAPI records every call. Errors are injected per method name.
type fakeAPI struct {
	mu      sync.Mutex
	calls   []call
	records []model.WorkOrder
	users   []model.User
	errs    map[string]error

	// listHook, when set, runs inside ListWorkOrders before it returns.
	listHook func(n int)
	lists    int
}

func newFakeAPI(records ...model.WorkOrder) *fakeAPI {
	return &fakeAPI{records: records, errs: map[string]error{}}
}

func (f *fakeAPI) record(method string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{Method: method, Args: args})
	return f.errs[method]
}

func (f *fakeAPI) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Method
	}
	return out
}

func (f *fakeAPI) lastCall(method string) (call, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Method == method {
			return f.calls[i], true
		}
	}
	return call{}, false
}

func (f *fakeAPI) setRecords(records ...model.WorkOrder) {
	f.mu.Lock()
	f.records = records
	f.mu.Unlock()
}

func (f *fakeAPI) ListWorkOrders(context.Context) ([]model.WorkOrder, error) {
	if err := f.record("ListWorkOrders"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.lists++
	n := f.lists
	out := append([]model.WorkOrder(nil), f.records...)
	hook := f.listHook
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return out, nil
}

func (f *fakeAPI) CreateWorkOrder(_ context.Context, in model.WorkOrderInput) (*model.WorkOrder, error) {
	if err := f.record("CreateWorkOrder", in); err != nil {
		return nil, err
	}
	return &model.WorkOrder{ID: "new", Title: in.Title, Priority: in.Priority, Status: model.StatusOpen}, nil
}

func (f *fakeAPI) UpdateWorkOrder(_ context.Context, id string, patch model.WorkOrderPatch) error {
	return f.record("UpdateWorkOrder", id, patch)
}

func (f *fakeAPI) SetStatus(_ context.Context, id string, status model.Status) error {
	return f.record("SetStatus", id, status)
}

func (f *fakeAPI) Assign(_ context.Context, id, technicianID string) error {
	return f.record("Assign", id, technicianID)
}

func (f *fakeAPI) DeleteWorkOrder(_ context.Context, id string) error {
	return f.record("DeleteWorkOrder", id)
}

func (f *fakeAPI) ListComments(_ context.Context, id string) ([]model.Comment, error) {
	return []model.Comment{{ID: "c1", Message: "hello"}}, f.record("ListComments", id)
}

func (f *fakeAPI) PostComment(_ context.Context, id, message string) error {
	return f.record("PostComment", id, message)
}

func (f *fakeAPI) ListParts(_ context.Context, id string) ([]model.PartUsage, error) {
	return []model.PartUsage{{ID: "pu1", Quantity: 2}}, f.record("ListParts", id)
}

func (f *fakeAPI) AddPart(_ context.Context, id, sparePartID string, quantity int) error {
	return f.record("AddPart", id, sparePartID, quantity)
}

func (f *fakeAPI) RemovePart(_ context.Context, usageID string) error {
	return f.record("RemovePart", usageID)
}

func (f *fakeAPI) ListAttachments(_ context.Context, id string) ([]model.Attachment, error) {
	return []model.Attachment{}, f.record("ListAttachments", id)
}

func (f *fakeAPI) UploadAttachment(_ context.Context, id, fileName string, content io.Reader) error {
	b, _ := io.ReadAll(content)
	return f.record("UploadAttachment", id, fileName, string(b))
}

func (f *fakeAPI) ListUsers(context.Context) ([]model.User, error) {
	return f.users, f.record("ListUsers")
}

func (f *fakeAPI) ListAssets(context.Context) ([]model.Asset, error) {
	return []model.Asset{{ID: "a1", Name: "Chiller"}}, f.record("ListAssets")
}

func (f *fakeAPI) ListSpareParts(context.Context) ([]model.SparePart, error) {
	return []model.SparePart{}, f.record("ListSpareParts")
}

func (f *fakeAPI) GetAsset(_ context.Context, id string) (*model.Asset, error) {
	if err := f.record("GetAsset", id); err != nil {
		return nil, err
	}
	return &model.Asset{ID: id, Name: "Chiller"}, nil
}

func (f *fakeAPI) CreateAsset(_ context.Context, in model.AssetInput) (*model.Asset, error) {
	if err := f.record("CreateAsset", in); err != nil {
		return nil, err
	}
	return &model.Asset{ID: "a-new", Name: in.Name, Code: in.Code}, nil
}

func (f *fakeAPI) UpdateAsset(_ context.Context, id string, patch model.AssetPatch) error {
	return f.record("UpdateAsset", id, patch)
}

func (f *fakeAPI) DeleteAsset(_ context.Context, id string) error {
	return f.record("DeleteAsset", id)
}

func (f *fakeAPI) CreateUser(_ context.Context, in model.UserInput) (*model.User, error) {
	if err := f.record("CreateUser", in); err != nil {
		return nil, err
	}
	return &model.User{ID: "u-new", Email: in.Email, Role: in.Role}, nil
}

func (f *fakeAPI) SetUserRole(_ context.Context, id string, role model.Role) error {
	return f.record("SetUserRole", id, role)
}

func (f *fakeAPI) DeleteUser(_ context.Context, id string) error {
	return f.record("DeleteUser", id)
}

func (f *fakeAPI) count(method string) int {
	n := 0
	for _, m := range f.methods() {
		if m == method {
			n++
		}
	}
	return n
}

func testSession(role model.Role) *model.Session {
	return &model.Session{Token: "tok-" + string(role), SubjectID: "sub-" + string(role), Role: role}
}

func newTestEngine(api *fakeAPI, caps model.CapabilitySet, opts ...Option) *Engine {
	cache := lookup.NewCache(lookup.NewMemoryStore(10), api, "", time.Minute, nil, nil)
	opts = append([]Option{WithClock(func() time.Time {
		return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	})}, opts...)
	return New(api, cache, testSession(model.RoleSupervisor), caps, opts...)
}

func dp(s string) *model.Date {
	d := model.MustDate(s)
	return &d
}
