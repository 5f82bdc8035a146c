package workorder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/workdesk/model"
)

func directoryUsers() []model.User {
	return []model.User{
		{ID: "u-admin", Email: "root@example.com", Role: model.RoleAdmin},
		{ID: "u-tech", Email: "tech@example.com", Role: model.RoleTechnician},
	}
}

func TestEngine_CreateAsset(t *testing.T) {
	e, api := loadedEngine(t, nil)

	created, err := e.CreateAsset(context.Background(), model.AssetInput{Name: " Boiler ", Code: " B-1 ", ProcurementYear: 2019})
	require.NoError(t, err)
	assert.Equal(t, "a-new", created.ID)

	c, _ := api.lastCall("CreateAsset")
	in := c.Args[0].(model.AssetInput)
	assert.Equal(t, "Boiler", in.Name)
	assert.Equal(t, "B-1", in.Code)
}

func TestEngine_CreateAsset_validation(t *testing.T) {
	e, api := loadedEngine(t, nil)

	_, err := e.CreateAsset(context.Background(), model.AssetInput{Name: " ", ProcurementYear: -1})
	var env *model.ErrorEnvelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, model.ErrValidationError, env.Code)
	assert.Len(t, env.Details, 3)
	assert.Zero(t, api.count("CreateAsset"))
}

func TestEngine_CreateAsset_contractValidation(t *testing.T) {
	v := &fakeValidator{details: []model.FieldError{{Field: "code", Code: "FORMAT", Message: "bad"}}}
	e, api := loadedEngine(t, nil, WithValidator(v))

	_, err := e.CreateAsset(context.Background(), model.AssetInput{Name: "Boiler", Code: "B-1"})
	require.ErrorIs(t, err, model.ErrKindValidation)
	assert.Equal(t, []string{"POST /assets"}, v.seen)
	assert.Zero(t, api.count("CreateAsset"))
}

func TestEngine_UpdateAsset(t *testing.T) {
	e, api := loadedEngine(t, nil)
	ctx := context.Background()

	blank := " "
	require.ErrorIs(t, e.UpdateAsset(ctx, "a1", model.AssetPatch{Code: &blank}), model.ErrKindValidation)

	name := " Chiller 2 "
	require.NoError(t, e.UpdateAsset(ctx, "a1", model.AssetPatch{Name: &name}))
	c, _ := api.lastCall("UpdateAsset")
	assert.Equal(t, "Chiller 2", *c.Args[1].(model.AssetPatch).Name)
	assert.Equal(t, 2, api.count("ListWorkOrders"), "work orders reload after an asset edit")
}

func TestEngine_DeleteAsset_failureDoesNotReload(t *testing.T) {
	e, api := loadedEngine(t, nil)
	api.errs["DeleteAsset"] = model.NewNetworkOrServerError(409, "asset in use", nil)

	require.ErrorIs(t, e.DeleteAsset(context.Background(), "a1"), model.ErrKindNetwork)
	assert.Equal(t, 1, api.count("ListWorkOrders"))
}

func TestEngine_AssetWorkOrders(t *testing.T) {
	api := newFakeAPI(
		model.WorkOrder{ID: "wo1", AssetID: "a1", Status: model.StatusOpen},
		model.WorkOrder{ID: "wo2", AssetID: "a2", Status: model.StatusOpen},
		model.WorkOrder{ID: "wo3", AssetID: "a1", Status: model.StatusDone},
	)
	e := newTestEngine(api, nil)
	require.NoError(t, e.Reload(context.Background()))

	assert.Equal(t, []string{"wo1", "wo3"}, ids(e.AssetWorkOrders("a1")))
	assert.Empty(t, e.AssetWorkOrders("missing"))

	asset, err := e.Asset(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", asset.ID)
}

func TestEngine_directoryMutationsInvalidateLookups(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *Engine) error
	}{
		{"create asset", func(e *Engine) error {
			_, err := e.CreateAsset(context.Background(), model.AssetInput{Name: "Boiler", Code: "B-1"})
			return err
		}},
		{"update asset", func(e *Engine) error {
			name := "Boiler"
			return e.UpdateAsset(context.Background(), "a1", model.AssetPatch{Name: &name})
		}},
		{"delete asset", func(e *Engine) error {
			return e.DeleteAsset(context.Background(), "a1")
		}},
		{"create user", func(e *Engine) error {
			_, err := e.CreateUser(context.Background(), model.UserInput{Email: "new@example.com", Password: "pw"})
			return err
		}},
		{"set role", func(e *Engine) error {
			return e.SetUserRole(context.Background(), "u-tech", model.RoleSupervisor)
		}},
		{"delete user", func(e *Engine) error {
			return e.DeleteUser(context.Background(), "u-tech")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, api := loadedEngine(t, nil)
			api.users = directoryUsers()
			ctx := context.Background()

			_, err := e.Assets(ctx, "")
			require.NoError(t, err)
			_, err = e.Assets(ctx, "")
			require.NoError(t, err)
			require.Equal(t, 1, api.count("ListAssets"))

			require.NoError(t, tt.mutate(e))

			_, err = e.Assets(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, 2, api.count("ListAssets"), "lookup cache is dropped after the mutation")
		})
	}
}

func TestEngine_CreateUser(t *testing.T) {
	e, api := loadedEngine(t, nil)

	_, err := e.CreateUser(context.Background(), model.UserInput{Email: " ", Role: "OWNER"})
	var env *model.ErrorEnvelope
	require.ErrorAs(t, err, &env)
	assert.Len(t, env.Details, 3)

	created, err := e.CreateUser(context.Background(), model.UserInput{Email: " new@example.com ", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleTechnician, created.Role, "role defaults to TECHNICIAN")

	c, _ := api.lastCall("CreateUser")
	assert.Equal(t, "new@example.com", c.Args[0].(model.UserInput).Email)
}

func TestEngine_SetUserRole(t *testing.T) {
	e, api := loadedEngine(t, nil)
	api.users = directoryUsers()
	ctx := context.Background()

	require.ErrorIs(t, e.SetUserRole(ctx, "u-tech", "OWNER"), model.ErrKindValidation)
	require.ErrorIs(t, e.SetUserRole(ctx, "u-admin", model.RoleUser), model.ErrKindAdminProtected)
	require.NoError(t, e.SetUserRole(ctx, "u-tech", model.RoleTechnician))
	assert.Zero(t, api.count("SetUserRole"), "unchanged role is not sent")

	require.NoError(t, e.SetUserRole(ctx, "u-tech", model.RoleSupervisor))
	c, _ := api.lastCall("SetUserRole")
	assert.Equal(t, []any{"u-tech", model.RoleSupervisor}, c.Args)

	var env *model.ErrorEnvelope
	require.ErrorAs(t, e.SetUserRole(ctx, "u-gone", model.RoleUser), &env)
	assert.Equal(t, model.ErrNotFound, env.Code)
}

func TestEngine_DeleteUser(t *testing.T) {
	e, api := loadedEngine(t, nil)
	api.users = directoryUsers()
	ctx := context.Background()

	require.ErrorIs(t, e.DeleteUser(ctx, "u-admin"), model.ErrKindAdminProtected)
	assert.Zero(t, api.count("DeleteUser"))

	require.NoError(t, e.DeleteUser(ctx, "u-tech"))
	c, _ := api.lastCall("DeleteUser")
	assert.Equal(t, []any{"u-tech"}, c.Args)
	assert.Equal(t, 2, api.count("ListWorkOrders"))
}

func TestEngine_Users_bypassesCache(t *testing.T) {
	e, api := loadedEngine(t, nil)
	api.users = directoryUsers()

	for i := 0; i < 2; i++ {
		users, err := e.Users(context.Background())
		require.NoError(t, err)
		assert.Len(t, users, 2)
	}
	assert.Equal(t, 2, api.count("ListUsers"))
}
