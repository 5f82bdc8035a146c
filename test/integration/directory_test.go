package integration

import (
	"net/http"
	"testing"
)

type itemsBody struct {
	Items []struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"items"`
}

func TestAssets_CreateRefreshesPicker(t *testing.T) {
	h := NewTestHarness(t, WithContract(contractFile()))
	seedWorkOrders(h)
	h.MockBackend().OnOperation("listAssets").
		RespondWith(http.StatusOK, []any{map[string]any{"id": "asset-1", "name": "Boiler"}}).
		RespondWith(http.StatusOK, []any{
			map[string]any{"id": "asset-1", "name": "Boiler"},
			map[string]any{"id": "asset-2", "name": "Chiller"},
		})
	h.MockBackend().OnOperation("createAsset").
		RespondWith(http.StatusCreated, map[string]any{"id": "asset-2", "name": "Chiller", "code": "CH-1"})
	token := h.GenerateToken(SupervisorClaims())

	var before itemsBody
	h.AssertJSON(t, h.GET("/ui/assets", token), http.StatusOK, &before)
	h.AssertJSON(t, h.GET("/ui/assets", token), http.StatusOK, &before)
	h.MockBackend().AssertCalled(t, "listAssets", 1)

	h.AssertStatus(t, h.POST("/ui/assets", map[string]any{"name": "Chiller", "code": "CH-1"}, token), http.StatusCreated)
	if got := h.MockBackend().LastRequest("createAsset"); got == nil || got.Body["code"] != "CH-1" {
		t.Fatalf("createAsset request = %+v", got)
	}

	var after itemsBody
	h.AssertJSON(t, h.GET("/ui/assets", token), http.StatusOK, &after)
	if len(after.Items) != 2 {
		t.Errorf("assets after create = %s", FormatJSON(after.Items))
	}
	h.MockBackend().AssertCalled(t, "listAssets", 2)
}

func TestAssets_CreateForbiddenForTechnician(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(TechnicianClaims())

	resp := h.POST("/ui/assets", map[string]any{"name": "Chiller", "code": "CH-1"}, token)
	h.AssertStatus(t, resp, http.StatusForbidden)
	h.MockBackend().AssertNotCalled(t, "createAsset")
}

func TestUsers_AdminManagesAccounts(t *testing.T) {
	h := NewTestHarness(t)
	seedWorkOrders(h)
	users := []any{
		map[string]any{"id": "user-admin", "email": "admin@plant.example.com", "role": "ADMIN"},
		map[string]any{"id": "tech-1", "email": "tech1@plant.example.com", "role": "TECHNICIAN"},
	}
	h.MockBackend().OnOperation("listUsers").
		RespondWith(http.StatusOK, users).
		RespondWith(http.StatusOK, users).
		RespondWith(http.StatusOK, users)
	admin := h.GenerateToken(AdminClaims())

	h.AssertStatus(t, h.GET("/ui/users", h.GenerateToken(SupervisorClaims())), http.StatusForbidden)

	var list itemsBody
	h.AssertJSON(t, h.GET("/ui/users", admin), http.StatusOK, &list)
	if len(list.Items) != 2 {
		t.Fatalf("users = %s", FormatJSON(list.Items))
	}

	resp := h.PATCH("/ui/users/user-admin/role", map[string]any{"role": "USER"}, admin)
	h.AssertStatus(t, resp, http.StatusConflict)
	h.MockBackend().AssertNotCalled(t, "setUserRole")

	h.AssertStatus(t, h.PATCH("/ui/users/tech-1/role", map[string]any{"role": "SUPERVISOR"}, admin), http.StatusNoContent)
	if got := h.MockBackend().LastRequest("setUserRole"); got == nil || got.Body["role"] != "SUPERVISOR" || got.PathParams["id"] != "tech-1" {
		t.Fatalf("setUserRole request = %+v", got)
	}
}

func TestSession_UpstreamUnauthorizedStartsOver(t *testing.T) {
	h := NewTestHarness(t)
	h.MockBackend().OnOperation("listWorkOrders").
		RespondWith(http.StatusUnauthorized, map[string]any{"message": "token revoked"})
	token := h.GenerateToken(SupervisorClaims())

	resp := h.GET("/ui/work-orders", token)
	h.AssertStatus(t, resp, http.StatusUnauthorized)

	// The session starts over on the next request.
	h.AssertStatus(t, h.GET("/ui/work-orders", token), http.StatusOK)
	h.MockBackend().AssertCalled(t, "listWorkOrders", 2)
}
