package workorder

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pitabwire/workdesk/internal/observability"
	"github.com/pitabwire/workdesk/model"
)

// Directory mutation kinds.
const (
	MutationCreateAsset = "create_asset"
	MutationUpdateAsset = "update_asset"
	MutationDeleteAsset = "delete_asset"
	MutationCreateUser  = "create_user"
	MutationSetRole     = "set_role"
	MutationDeleteUser  = "delete_user"
)

// Asset fetches one asset from the API. It is not cached.
func (e *Engine) Asset(ctx context.Context, id string) (*model.Asset, error) {
	return e.api.GetAsset(ctx, id)
}

// AssetWorkOrders returns the loaded work orders raised against an asset.
func (e *Engine) AssetWorkOrders(assetID string) []model.WorkOrder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []model.WorkOrder
	for _, w := range e.records {
		if w.AssetID == assetID {
			out = append(out, w)
		}
	}
	return out
}

// CreateAsset registers an asset. Name and code are required.
func (e *Engine) CreateAsset(ctx context.Context, in model.AssetInput) (_ *model.Asset, err error) {
	ctx, done := e.trackAsset(ctx, MutationCreateAsset, "")
	defer func() { err = done(err) }()

	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)

	var details []model.FieldError
	if in.Name == "" {
		details = append(details, model.FieldError{Field: "name", Code: "REQUIRED", Message: "name is required"})
	}
	if in.Code == "" {
		details = append(details, model.FieldError{Field: "code", Code: "REQUIRED", Message: "code is required"})
	}
	if in.ProcurementYear < 0 {
		details = append(details, model.FieldError{Field: "procurementYear", Code: "INVALID", Message: "procurement year must not be negative"})
	}
	if len(details) == 0 {
		details = e.validate(http.MethodPost, "/assets", in)
	}
	if len(details) > 0 {
		return nil, model.NewValidationError(details...)
	}

	created, err := e.api.CreateAsset(ctx, in)
	if err != nil {
		return nil, err
	}
	e.invalidateLookups(ctx)
	return created, nil
}

// UpdateAsset applies a partial asset edit. A provided name or code must
// not be blank.
func (e *Engine) UpdateAsset(ctx context.Context, id string, patch model.AssetPatch) (err error) {
	ctx, done := e.trackAsset(ctx, MutationUpdateAsset, id)
	defer func() { err = done(err) }()

	var details []model.FieldError
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			details = append(details, model.FieldError{Field: "name", Code: "REQUIRED", Message: "name must not be blank"})
		}
		patch.Name = &name
	}
	if patch.Code != nil {
		code := strings.TrimSpace(*patch.Code)
		if code == "" {
			details = append(details, model.FieldError{Field: "code", Code: "REQUIRED", Message: "code must not be blank"})
		}
		patch.Code = &code
	}
	if len(details) > 0 {
		return model.NewValidationError(details...)
	}

	if err := e.api.UpdateAsset(ctx, id, patch); err != nil {
		return err
	}
	e.invalidateLookups(ctx)
	// Work orders embed the asset name.
	e.reloadAfter(ctx)
	return nil
}

// DeleteAsset deletes an asset. Whether an asset with work orders may go is
// left to the API.
func (e *Engine) DeleteAsset(ctx context.Context, id string) (err error) {
	ctx, done := e.trackAsset(ctx, MutationDeleteAsset, id)
	defer func() { err = done(err) }()

	if err := e.api.DeleteAsset(ctx, id); err != nil {
		return err
	}
	e.invalidateLookups(ctx)
	e.reloadAfter(ctx)
	return nil
}

// Users lists every account. It bypasses the lookup cache so role edits
// show up at once.
func (e *Engine) Users(ctx context.Context) ([]model.User, error) {
	return e.api.ListUsers(ctx)
}

// CreateUser registers an account. Role defaults to TECHNICIAN.
func (e *Engine) CreateUser(ctx context.Context, in model.UserInput) (_ *model.User, err error) {
	ctx, done := e.trackUser(ctx, MutationCreateUser, "")
	defer func() { err = done(err) }()

	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if in.Role == "" {
		in.Role = model.RoleTechnician
	}

	var details []model.FieldError
	if in.Email == "" {
		details = append(details, model.FieldError{Field: "email", Code: "REQUIRED", Message: "email is required"})
	}
	if in.Password == "" {
		details = append(details, model.FieldError{Field: "password", Code: "REQUIRED", Message: "password is required"})
	}
	if !in.Role.Valid() {
		details = append(details, model.FieldError{Field: "role", Code: "INVALID", Message: fmt.Sprintf("unknown role %q", in.Role)})
	}
	if len(details) == 0 {
		details = e.validate(http.MethodPost, "/users", in)
	}
	if len(details) > 0 {
		return nil, model.NewValidationError(details...)
	}

	created, err := e.api.CreateUser(ctx, in)
	if err != nil {
		return nil, err
	}
	e.invalidateLookups(ctx)
	return created, nil
}

// SetUserRole changes the role of an account. ADMIN accounts keep their
// role.
func (e *Engine) SetUserRole(ctx context.Context, id string, role model.Role) (err error) {
	ctx, done := e.trackUser(ctx, MutationSetRole, id)
	defer func() { err = done(err) }()

	if !role.Valid() {
		return model.NewValidationError(model.FieldError{
			Field:   "role",
			Code:    "INVALID",
			Message: fmt.Sprintf("unknown role %q", role),
		})
	}
	target, err := e.findUser(ctx, id)
	if err != nil {
		return err
	}
	if target.Role == model.RoleAdmin {
		return model.NewPreconditionError(model.ReasonAdminProtected, "The role of an admin cannot be changed")
	}
	if target.Role == role {
		return errNoop
	}

	if err := e.api.SetUserRole(ctx, id, role); err != nil {
		return err
	}
	e.invalidateLookups(ctx)
	return nil
}

// DeleteUser deletes an account. ADMIN accounts cannot be deleted.
func (e *Engine) DeleteUser(ctx context.Context, id string) (err error) {
	ctx, done := e.trackUser(ctx, MutationDeleteUser, id)
	defer func() { err = done(err) }()

	target, err := e.findUser(ctx, id)
	if err != nil {
		return err
	}
	if target.Role == model.RoleAdmin {
		return model.NewPreconditionError(model.ReasonAdminProtected, "An admin account cannot be deleted")
	}

	if err := e.api.DeleteUser(ctx, id); err != nil {
		return err
	}
	e.invalidateLookups(ctx)
	// Assignments to the deleted technician change upstream.
	e.reloadAfter(ctx)
	return nil
}

func (e *Engine) findUser(ctx context.Context, id string) (model.User, error) {
	users, err := e.api.ListUsers(ctx)
	if err != nil {
		return model.User{}, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, model.NewNotFoundError("user " + id + " not found")
}

func (e *Engine) trackAsset(ctx context.Context, kind, id string) (context.Context, func(error) error) {
	return e.track(ctx, kind, observability.AttrAssetID.String(id), observability.Asset(id))
}

func (e *Engine) trackUser(ctx context.Context, kind, id string) (context.Context, func(error) error) {
	return e.track(ctx, kind, observability.AttrUserID.String(id), observability.User(id))
}

// invalidateLookups drops the session's cached pickers after a directory
// change.
func (e *Engine) invalidateLookups(ctx context.Context) {
	e.lookups.Invalidate(ctx, e.session.SubjectID)
}
