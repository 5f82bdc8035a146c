package workorder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/workdesk/internal/observability"
	"github.com/pitabwire/workdesk/model"
)

func seedRecords() []model.WorkOrder {
	return []model.WorkOrder{
		{ID: "wo1", Title: "Monthly HVAC Maintenance", Status: model.StatusOpen, Priority: model.PriorityHigh, DueDate: dp("2024-03-01")},
		{ID: "wo2", Title: "Replace filter", Status: model.StatusDone, Priority: model.PriorityLow},
		{ID: "wo3", Title: "Pump noise", Status: model.StatusAssigned, Priority: model.PriorityMedium,
			Parts: []model.PartUsage{{ID: "1", Quantity: 1}}},
	}
}

func loadedEngine(t *testing.T, caps model.CapabilitySet, opts ...Option) (*Engine, *fakeAPI) {
	t.Helper()
	api := newFakeAPI(seedRecords()...)
	e := newTestEngine(api, caps, opts...)
	require.NoError(t, e.Reload(context.Background()))
	return e, api
}

func ids(records []model.WorkOrder) []string {
	out := make([]string, len(records))
	for i, w := range records {
		out[i] = w.ID
	}
	return out
}

// --- Reload & views ---

func TestEngine_Reload_derivesOverdue(t *testing.T) {
	e, _ := loadedEngine(t, nil)

	w, ok := e.Get("wo1")
	require.True(t, ok)
	assert.True(t, w.IsOverdue, "past-due OPEN record should be overdue")

	overdue := e.View(model.Filters{Status: model.FilterOverdue}, model.Sort{})
	assert.Equal(t, []string{"wo1"}, ids(overdue))
}

func TestEngine_Reload_errorKeepsCollection(t *testing.T) {
	e, api := loadedEngine(t, nil)
	api.errs["ListWorkOrders"] = model.NewNetworkOrServerError(503, "down", nil)

	err := e.Reload(context.Background())
	require.ErrorIs(t, err, model.ErrKindNetwork)
	assert.Len(t, e.Records(), 3)
}

func TestEngine_Reload_discardsStaleResponse(t *testing.T) {
	api := newFakeAPI(model.WorkOrder{ID: "old", Status: model.StatusOpen})
	metrics := observability.InitMetrics(prometheus.NewRegistry())
	e := newTestEngine(api, nil, WithMetrics(metrics))

	firstInFlight := make(chan struct{})
	releaseFirst := make(chan struct{})
	api.listHook = func(n int) {
		if n == 1 {
			close(firstInFlight)
			<-releaseFirst
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, e.Reload(context.Background()))
	}()
	<-firstInFlight

	api.setRecords(model.WorkOrder{ID: "fresh", Status: model.StatusDone})
	require.NoError(t, e.Reload(context.Background()))
	close(releaseFirst)
	wg.Wait()

	assert.Equal(t, []string{"fresh"}, ids(e.Records()))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReloadsTotal.WithLabelValues("stale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReloadsTotal.WithLabelValues("applied")))
}

func TestEngine_EnsureLoaded(t *testing.T) {
	api := newFakeAPI(seedRecords()...)
	e := newTestEngine(api, nil)
	require.False(t, e.Loaded())

	require.NoError(t, e.EnsureLoaded(context.Background()))
	require.NoError(t, e.EnsureLoaded(context.Background()))
	assert.Equal(t, []string{"ListWorkOrders"}, api.methods())
	assert.True(t, e.Loaded())
}

func TestEngine_views(t *testing.T) {
	e, _ := loadedEngine(t, nil)

	assert.Equal(t, []string{"wo1"}, ids(e.View(model.Filters{Search: "hvac"}, model.Sort{})))
	assert.Equal(t, []string{"wo2", "wo3", "wo1"},
		ids(e.View(model.Filters{}, model.Sort{Key: model.SortTitle, Direction: model.Desc})))

	board := e.Board()
	assert.Len(t, board, 4)
	assert.Equal(t, []string{"wo3"}, ids(board[model.StatusAssigned]))
	assert.Empty(t, board[model.StatusInProgress])

	events := e.Calendar(e.now().AddDate(-1, 0, 0), e.now())
	require.Len(t, events, 1)
	assert.Equal(t, "[HIGH] Monthly HVAC Maintenance", events[0].Title)

	assert.Equal(t, model.Summary{Total: 3, Open: 1, Done: 1, Overdue: 1}, e.Summary())
	assert.Empty(t, e.AssigneeOptions())
}

func TestEngine_RecordsIsACopy(t *testing.T) {
	e, _ := loadedEngine(t, nil)
	records := e.Records()
	records[0].Title = "changed"

	w, _ := e.Get("wo1")
	assert.Equal(t, "Monthly HVAC Maintenance", w.Title)
}

// --- TransitionStatus ---

func TestEngine_TransitionStatus_postsAuditCommentAndReloads(t *testing.T) {
	e, api := loadedEngine(t, nil)

	require.NoError(t, e.TransitionStatus(context.Background(), "wo1", model.StatusInProgress))

	assert.Equal(t, []string{"ListWorkOrders", "SetStatus", "PostComment", "ListWorkOrders"}, api.methods())
	c, _ := api.lastCall("PostComment")
	assert.Equal(t, []any{"wo1", "System: Status updated to IN PROGRESS"}, c.Args)
}

func TestEngine_TransitionStatus_sameStatusIsNoop(t *testing.T) {
	metrics := observability.InitMetrics(prometheus.NewRegistry())
	e, api := loadedEngine(t, nil, WithMetrics(metrics))

	require.NoError(t, e.TransitionStatus(context.Background(), "wo2", model.StatusDone))

	assert.Equal(t, []string{"ListWorkOrders"}, api.methods(), "no network call and no comment")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MutationsTotal.WithLabelValues(MutationStatus, "noop")))
}

func TestEngine_TransitionStatus_invalidTarget(t *testing.T) {
	e, api := loadedEngine(t, nil)

	err := e.TransitionStatus(context.Background(), "wo1", "CLOSED")
	require.ErrorIs(t, err, model.ErrKindValidation)
	assert.Equal(t, []string{"ListWorkOrders"}, api.methods())
}

func TestEngine_TransitionStatus_failureLeavesRecords(t *testing.T) {
	e, api := loadedEngine(t, nil)
	api.errs["SetStatus"] = model.NewNetworkOrServerError(500, "boom", nil)

	err := e.TransitionStatus(context.Background(), "wo1", model.StatusDone)
	require.ErrorIs(t, err, model.ErrKindNetwork)

	w, _ := e.Get("wo1")
	assert.Equal(t, model.StatusOpen, w.Status, "status must not be applied optimistically")
	assert.Equal(t, []string{"ListWorkOrders", "SetStatus"}, api.methods())
}

func TestEngine_TransitionStatus_commentFailureStillReloads(t *testing.T) {
	e, api := loadedEngine(t, nil)
	api.errs["PostComment"] = model.NewNetworkOrServerError(500, "boom", nil)

	err := e.TransitionStatus(context.Background(), "wo1", model.StatusDone)
	require.ErrorIs(t, err, model.ErrKindNetwork)
	assert.Equal(t, []string{"ListWorkOrders", "SetStatus", "PostComment", "ListWorkOrders"}, api.methods())
}

// --- AssignTechnician ---

func TestEngine_AssignTechnician_reloadsOnSuccessAndFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"success", nil},
		{"failure", model.NewNetworkOrServerError(409, "technician busy", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, api := loadedEngine(t, nil)
			if tt.err != nil {
				api.errs["Assign"] = tt.err
			}

			err := e.AssignTechnician(context.Background(), "wo1", "tech-7")
			if tt.err != nil {
				require.ErrorIs(t, err, model.ErrKindNetwork)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, []string{"ListWorkOrders", "Assign", "ListWorkOrders"}, api.methods())
			c, _ := api.lastCall("Assign")
			assert.Equal(t, []any{"wo1", "tech-7"}, c.Args)
		})
	}
}

func TestEngine_AssignTechnician_requiresTechnician(t *testing.T) {
	e, api := loadedEngine(t, nil)
	err := e.AssignTechnician(context.Background(), "wo1", " ")
	require.ErrorIs(t, err, model.ErrKindValidation)
	assert.Equal(t, []string{"ListWorkOrders"}, api.methods())
}

// --- DeleteWorkOrder ---

func TestEngine_DeleteWorkOrder_withPartsIsRejectedLocally(t *testing.T) {
	e, api := loadedEngine(t, nil)

	err := e.DeleteWorkOrder(context.Background(), "wo3")
	require.ErrorIs(t, err, model.ErrKindDependentParts)
	assert.Equal(t, []string{"ListWorkOrders"}, api.methods(), "zero network calls")
	assert.Len(t, e.Records(), 3)
}

func TestEngine_DeleteWorkOrder(t *testing.T) {
	e, api := loadedEngine(t, nil)
	api.setRecords(seedRecords()[1:]...)

	require.NoError(t, e.DeleteWorkOrder(context.Background(), "wo1"))
	assert.Equal(t, []string{"ListWorkOrders", "DeleteWorkOrder", "ListWorkOrders"}, api.methods())
	_, ok := e.Get("wo1")
	assert.False(t, ok)
}

func TestEngine_DeleteWorkOrder_failure(t *testing.T) {
	e, api := loadedEngine(t, nil)
	api.errs["DeleteWorkOrder"] = model.NewNetworkOrServerError(0, "unreachable", nil)

	require.ErrorIs(t, e.DeleteWorkOrder(context.Background(), "wo1"), model.ErrKindNetwork)
	assert.Equal(t, []string{"ListWorkOrders", "DeleteWorkOrder"}, api.methods())
}

// --- Create / Update ---

type fakeValidator struct {
	details []model.FieldError
	seen    []string
}

func (v *fakeValidator) ValidateBody(method, path string, _ any) []model.FieldError {
	v.seen = append(v.seen, method+" "+path)
	return v.details
}

func TestEngine_CreateWorkOrder(t *testing.T) {
	e, api := loadedEngine(t, nil)

	created, err := e.CreateWorkOrder(context.Background(), model.WorkOrderInput{Title: "  New pump  "})
	require.NoError(t, err)
	assert.Equal(t, "new", created.ID)

	c, _ := api.lastCall("CreateWorkOrder")
	in := c.Args[0].(model.WorkOrderInput)
	assert.Equal(t, "New pump", in.Title)
	assert.Equal(t, model.PriorityMedium, in.Priority)
	assert.Equal(t, "ListWorkOrders", api.methods()[len(api.methods())-1])
}

func TestEngine_CreateWorkOrder_validation(t *testing.T) {
	e, api := loadedEngine(t, nil)

	_, err := e.CreateWorkOrder(context.Background(), model.WorkOrderInput{Title: " ", Priority: "URGENT"})
	var env *model.ErrorEnvelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, model.ErrValidationError, env.Code)
	assert.Len(t, env.Details, 2)
	assert.Equal(t, []string{"ListWorkOrders"}, api.methods())
}

func TestEngine_CreateWorkOrder_contractValidation(t *testing.T) {
	v := &fakeValidator{details: []model.FieldError{{Field: "assetId", Code: "FORMAT", Message: "bad"}}}
	e, api := loadedEngine(t, nil, WithValidator(v))

	_, err := e.CreateWorkOrder(context.Background(), model.WorkOrderInput{Title: "ok"})
	require.ErrorIs(t, err, model.ErrKindValidation)
	assert.Equal(t, []string{"POST /work-orders"}, v.seen)
	assert.NotContains(t, api.methods(), "CreateWorkOrder")
}

func TestEngine_UpdateWorkOrder(t *testing.T) {
	e, api := loadedEngine(t, nil)

	blank := "   "
	require.ErrorIs(t, e.UpdateWorkOrder(context.Background(), "wo1", model.WorkOrderPatch{Title: &blank}), model.ErrKindValidation)

	title := " Renamed "
	require.NoError(t, e.UpdateWorkOrder(context.Background(), "wo1", model.WorkOrderPatch{Title: &title}))
	c, _ := api.lastCall("UpdateWorkOrder")
	assert.Equal(t, "Renamed", *c.Args[1].(model.WorkOrderPatch).Title)
}

// --- Comments, parts, attachments ---

func TestEngine_PostComment(t *testing.T) {
	e, api := loadedEngine(t, nil)

	require.ErrorIs(t, e.PostComment(context.Background(), "wo1", "  "), model.ErrKindValidation)
	require.NoError(t, e.PostComment(context.Background(), "wo1", " looks good "))

	c, _ := api.lastCall("PostComment")
	assert.Equal(t, []any{"wo1", "looks good"}, c.Args)

	comments, err := e.Comments(context.Background(), "wo1")
	require.NoError(t, err)
	assert.Len(t, comments, 1)
}

func TestEngine_Parts(t *testing.T) {
	e, api := loadedEngine(t, nil)
	ctx := context.Background()

	require.ErrorIs(t, e.AddPart(ctx, "wo1", "", 0), model.ErrKindValidation)
	require.NoError(t, e.AddPart(ctx, "wo1", "sp-1", 3))
	require.NoError(t, e.RemovePart(ctx, "pu1"))

	c, _ := api.lastCall("AddPart")
	assert.Equal(t, []any{"wo1", "sp-1", 3}, c.Args)
	assert.Equal(t,
		[]string{"ListWorkOrders", "AddPart", "ListWorkOrders", "RemovePart", "ListWorkOrders"},
		api.methods())

	parts, err := e.Parts(ctx, "wo1")
	require.NoError(t, err)
	assert.Len(t, parts, 1)
}

func TestEngine_UploadAttachment(t *testing.T) {
	e, api := loadedEngine(t, nil)

	require.ErrorIs(t, e.UploadAttachment(context.Background(), "wo1", "", strings.NewReader("x")), model.ErrKindValidation)
	require.NoError(t, e.UploadAttachment(context.Background(), "wo1", "photo.jpg", strings.NewReader("jpeg")))

	c, _ := api.lastCall("UploadAttachment")
	assert.Equal(t, []any{"wo1", "photo.jpg", "jpeg"}, c.Args)
}

func TestEngine_mutationMetrics(t *testing.T) {
	metrics := observability.InitMetrics(prometheus.NewRegistry())
	e, api := loadedEngine(t, nil, WithMetrics(metrics))
	api.errs["Assign"] = errors.New("boom")

	_ = e.TransitionStatus(context.Background(), "wo1", model.StatusDone)
	_ = e.DeleteWorkOrder(context.Background(), "wo3")
	_ = e.AssignTechnician(context.Background(), "wo1", "t")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MutationsTotal.WithLabelValues(MutationStatus, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MutationsTotal.WithLabelValues(MutationDelete, "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MutationsTotal.WithLabelValues(MutationAssign, "error")))
}

// --- Lookups ---

func TestEngine_Technicians(t *testing.T) {
	e, api := loadedEngine(t, nil)
	api.users = []model.User{
		{ID: "u1", Role: model.RoleAdmin},
		{ID: "u2", Role: model.RoleTechnician},
	}

	for i := 0; i < 2; i++ {
		techs, err := e.Technicians(context.Background())
		require.NoError(t, err)
		require.Len(t, techs, 1)
		assert.Equal(t, "u2", techs[0].ID)
	}

	assets, err := e.Assets(context.Background(), "chill")
	require.NoError(t, err)
	assert.Len(t, assets, 1)

	count := 0
	for _, m := range api.methods() {
		if m == "ListUsers" {
			count++
		}
	}
	assert.Equal(t, 1, count, "technicians are cached")
}
