package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/workdesk/model"
)

type assetResponse struct {
	model.Asset
	WorkOrders []workOrderItem `json:"workOrders"`
}

// handleGetAsset returns an asset with the loaded work orders raised
// against it.
func handleGetAsset(engines Engines) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		asset, err := e.Asset(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		WriteJSON(w, http.StatusOK, assetResponse{
			Asset:      *asset,
			WorkOrders: withActions(e, e.AssetWorkOrders(asset.ID)),
		})
	}
}

func handleCreateAsset(engines Engines) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.AssetInput
		if err := decodeBody(r, &in); err != nil {
			WriteError(w, err)
			return
		}
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		created, err := e.CreateAsset(r.Context(), in)
		if err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		if created == nil {
			w.WriteHeader(http.StatusCreated)
			return
		}
		WriteJSON(w, http.StatusCreated, created)
	}
}

// handleUpdateAsset edits an asset. Work orders show the asset name, so
// the dashboard is refreshed too.
func handleUpdateAsset(engines Engines, streams *streamHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch model.AssetPatch
		if err := decodeBody(r, &patch); err != nil {
			WriteError(w, err)
			return
		}
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		if err := e.UpdateAsset(r.Context(), chi.URLParam(r, "id"), patch); err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		streams.refresh(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleDeleteAsset(engines Engines, streams *streamHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		if err := e.DeleteAsset(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		streams.refresh(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListUsers(engines Engines) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		users, err := e.Users(r.Context())
		if err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": nonNil(users)})
	}
}

func handleCreateUser(engines Engines) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.UserInput
		if err := decodeBody(r, &in); err != nil {
			WriteError(w, err)
			return
		}
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		created, err := e.CreateUser(r.Context(), in)
		if err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		if created == nil {
			w.WriteHeader(http.StatusCreated)
			return
		}
		WriteJSON(w, http.StatusCreated, created)
	}
}

type roleRequest struct {
	Role model.Role `json:"role"`
}

func handleSetUserRole(engines Engines) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req roleRequest
		if err := decodeBody(r, &req); err != nil {
			WriteError(w, err)
			return
		}
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		if err := e.SetUserRole(r.Context(), chi.URLParam(r, "id"), req.Role); err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleDeleteUser deletes an account. Its assignments change upstream, so
// the dashboard is refreshed.
func handleDeleteUser(engines Engines, streams *streamHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		if err := e.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		streams.refresh(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}
