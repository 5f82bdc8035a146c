package apiclient

import (
	"net/url"
	"strings"

	"github.com/pitabwire/workdesk/internal/openapi"
)

// Operation is one REST call against the maintenance API. Path is a
// template; "{name}" segments are filled from path parameters.
type Operation struct {
	ID     string
	Method string
	Path   string
}

// The maintenance API surface used by workdesk.
var (
	OpListWorkOrders    = Operation{"listWorkOrders", "GET", "/work-orders"}
	OpCreateWorkOrder   = Operation{"createWorkOrder", "POST", "/work-orders"}
	OpUpdateWorkOrder   = Operation{"updateWorkOrder", "PATCH", "/work-orders/{id}"}
	OpSetStatus         = Operation{"setWorkOrderStatus", "PATCH", "/work-orders/{id}/status"}
	OpAssign            = Operation{"assignWorkOrder", "PATCH", "/work-orders/{id}/assign"}
	OpDeleteWorkOrder   = Operation{"deleteWorkOrder", "DELETE", "/work-orders/{id}"}
	OpListComments      = Operation{"listComments", "GET", "/work-orders/{id}/comments"}
	OpPostComment       = Operation{"postComment", "POST", "/work-orders/{id}/comments"}
	OpListParts         = Operation{"listParts", "GET", "/work-orders/{id}/parts"}
	OpAddPart           = Operation{"addPart", "POST", "/work-orders/{id}/parts"}
	OpRemovePart        = Operation{"removePart", "DELETE", "/work-orders/parts/{usageId}"}
	OpListAttachments   = Operation{"listAttachments", "GET", "/work-orders/{id}/attachments"}
	OpUploadAttachment  = Operation{"uploadAttachment", "POST", "/work-orders/{id}/attachments"}
	OpListUsers         = Operation{"listUsers", "GET", "/users"}
	OpCreateUser        = Operation{"createUser", "POST", "/users"}
	OpSetUserRole       = Operation{"setUserRole", "PATCH", "/users/{id}/role"}
	OpDeleteUser        = Operation{"deleteUser", "DELETE", "/users/{id}"}
	OpListAssets        = Operation{"listAssets", "GET", "/assets"}
	OpGetAsset          = Operation{"getAsset", "GET", "/assets/{id}"}
	OpCreateAsset       = Operation{"createAsset", "POST", "/assets"}
	OpUpdateAsset       = Operation{"updateAsset", "PATCH", "/assets/{id}"}
	OpDeleteAsset       = Operation{"deleteAsset", "DELETE", "/assets/{id}"}
	OpListSpareParts    = Operation{"listSpareParts", "GET", "/spare-parts"}
	OpDashboardSummary  = Operation{"dashboardSummary", "GET", "/dashboard/summary"}
	OpDashboardStatus   = Operation{"dashboardByStatus", "GET", "/dashboard/by-status"}
	OpDashboardPriority = Operation{"dashboardByPriority", "GET", "/dashboard/by-priority"}
	OpDashboardFeed     = Operation{"dashboardFeed", "GET", "/dashboard/feed"}
)

// Operations returns every operation the client can issue.
func Operations() []Operation {
	return []Operation{
		OpListWorkOrders, OpCreateWorkOrder, OpUpdateWorkOrder, OpSetStatus,
		OpAssign, OpDeleteWorkOrder, OpListComments, OpPostComment,
		OpListParts, OpAddPart, OpRemovePart, OpListAttachments,
		OpUploadAttachment, OpListUsers, OpCreateUser, OpSetUserRole,
		OpDeleteUser, OpListAssets, OpGetAsset, OpCreateAsset,
		OpUpdateAsset, OpDeleteAsset, OpListSpareParts,
		OpDashboardSummary, OpDashboardStatus, OpDashboardPriority, OpDashboardFeed,
	}
}

// MissingOperations returns the operations the API contract does not
// declare.
func MissingOperations(c *openapi.Contract) []Operation {
	byEndpoint := make(map[string]Operation)
	required := make([]openapi.Endpoint, 0, len(Operations()))
	for _, op := range Operations() {
		e := openapi.Endpoint{Method: op.Method, Path: op.Path}
		byEndpoint[e.String()] = op
		required = append(required, e)
	}
	var out []Operation
	for _, e := range c.Missing(required) {
		out = append(out, byEndpoint[e.String()])
	}
	return out
}

// expand substitutes path parameters, escaping each value.
func (op Operation) expand(params map[string]string) string {
	path := op.Path
	for name, value := range params {
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(value))
	}
	return path
}
