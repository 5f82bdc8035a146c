// Package openapi loads the maintenance API's OpenAPI document and checks
// that the operations workdesk calls exist and that request bodies conform
// to the declared schemas.
package openapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/pitabwire/workdesk/model"
)

// Endpoint is a method and path template, e.g. PATCH /work-orders/{id}.
type Endpoint struct {
	Method string
	Path   string
}

func (e Endpoint) String() string { return e.Method + " " + e.Path }

// IndexedOperation holds a resolved OpenAPI operation.
type IndexedOperation struct {
	OperationID  string
	Method       string
	PathTemplate string
	RequestBody  *openapi3.RequestBody
}

// Contract is an in-memory index of the API's operations keyed by method
// and normalized path template. Parameter names are ignored, so
// /work-orders/{id} and /work-orders/{workOrderId} are the same endpoint.
type Contract struct {
	title      string
	version    string
	operations map[string]IndexedOperation
}

var paramSegment = regexp.MustCompile(`\{[^}]*\}`)

func endpointKey(method, path string) string {
	return strings.ToUpper(method) + " " + paramSegment.ReplaceAllString(path, "{}")
}

// Load parses and validates an OpenAPI document from a file and indexes
// its operations.
func Load(ctx context.Context, path string) (*Contract, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("openapi: loading %s: %w", path, err)
	}
	return fromDoc(ctx, doc)
}

// LoadData is Load for an in-memory document.
func LoadData(ctx context.Context, data []byte) (*Contract, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("openapi: parsing document: %w", err)
	}
	return fromDoc(ctx, doc)
}

func fromDoc(ctx context.Context, doc *openapi3.T) (*Contract, error) {
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("openapi: validating document: %w", err)
	}

	c := &Contract{operations: make(map[string]IndexedOperation)}
	if doc.Info != nil {
		c.title, c.version = doc.Info.Title, doc.Info.Version
	}
	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			var body *openapi3.RequestBody
			if op.RequestBody != nil && op.RequestBody.Value != nil {
				body = op.RequestBody.Value
			}
			c.operations[endpointKey(method, path)] = IndexedOperation{
				OperationID:  op.OperationID,
				Method:       method,
				PathTemplate: path,
				RequestBody:  body,
			}
		}
	}
	return c, nil
}

// Title returns the document's info.title and info.version.
func (c *Contract) Title() (title, version string) { return c.title, c.version }

// Len reports the number of indexed operations.
func (c *Contract) Len() int { return len(c.operations) }

// Lookup returns the operation declared for method and path.
func (c *Contract) Lookup(method, path string) (IndexedOperation, bool) {
	op, ok := c.operations[endpointKey(method, path)]
	return op, ok
}

// Missing returns the endpoints the document does not declare, sorted.
func (c *Contract) Missing(required []Endpoint) []Endpoint {
	var missing []Endpoint
	for _, e := range required {
		if _, ok := c.Lookup(e.Method, e.Path); !ok {
			missing = append(missing, e)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].String() < missing[j].String() })
	return missing
}

// ValidateBody checks body against the JSON request schema of the endpoint.
// Endpoints without a JSON schema, and endpoints the document lacks, accept
// anything.
func (c *Contract) ValidateBody(method, path string, body any) []model.FieldError {
	if c == nil {
		return nil
	}
	op, ok := c.Lookup(method, path)
	if !ok || op.RequestBody == nil {
		return nil
	}
	mt := op.RequestBody.Content.Get("application/json")
	if mt == nil || mt.Schema == nil || mt.Schema.Value == nil {
		return nil
	}

	// Schemas validate generic JSON values, so round-trip typed payloads.
	raw, err := json.Marshal(body)
	if err != nil {
		return []model.FieldError{{Field: "body", Code: "INVALID", Message: err.Error()}}
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return []model.FieldError{{Field: "body", Code: "INVALID", Message: err.Error()}}
	}

	err = mt.Schema.Value.VisitJSON(value, openapi3.MultiErrors())
	if err == nil {
		return nil
	}
	return fieldErrors(err)
}

func fieldErrors(err error) []model.FieldError {
	var errs []error
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		errs = multi
	} else {
		errs = []error{err}
	}

	out := make([]model.FieldError, 0, len(errs))
	for _, e := range errs {
		var se *openapi3.SchemaError
		if !errors.As(e, &se) {
			out = append(out, model.FieldError{Field: "body", Code: "SCHEMA", Message: e.Error()})
			continue
		}
		field := strings.Join(se.JSONPointer(), ".")
		if se.SchemaField == "required" {
			field = requiredProperty(se.Reason, field)
		}
		if field == "" {
			field = "body"
		}
		out = append(out, model.FieldError{Field: field, Code: strings.ToUpper(se.SchemaField), Message: se.Reason})
	}
	return out
}

var quotedProperty = regexp.MustCompile(`property "([^"]+)"`)

func requiredProperty(reason, parent string) string {
	m := quotedProperty.FindStringSubmatch(reason)
	if m == nil || parent == m[1] || strings.HasSuffix(parent, "."+m[1]) {
		return parent
	}
	if parent == "" {
		return m[1]
	}
	return parent + "." + m[1]
}
