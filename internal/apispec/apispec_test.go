package apispec

import (
	"path/filepath"
	"strings"
	"testing"
)

const validDoc = `
openapi: 3.0.3
paths:
  /api/items/{id}:
    get:
      responses:
        "200":
          $ref: "#/components/responses/OK"
    delete:
      responses:
        "404":
          description: missing
components:
  responses:
    OK:
      description: OK
  schemas:
    ErrorResponse:
      type: object
      required: [error]
      properties:
        error:
          type: string
    DecisionResponse:
      type: object
      required: [message, status, emailSent]
      properties:
        message:
          type: string
        status:
          type: string
        emailSent:
          type: boolean
`

func TestParseAndValidate(t *testing.T) {
	doc, err := Parse([]byte(validDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := doc.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	ops := doc.Operations()
	if len(ops) != 2 || ops[0] != "DELETE /api/items/{id}" || ops[1] != "GET /api/items/{id}" {
		t.Fatalf("unexpected operations: %v", ops)
	}
}

func TestValidateReportsProblems(t *testing.T) {
	broken := strings.NewReplacer(
		`$ref: "#/components/responses/OK"`, `$ref: "#/components/responses/Missing"`,
		"required: [error]", "required: []",
		"emailSent:\n          type: boolean", "emailSent:\n          type: string",
	).Replace(validDoc)
	doc, err := Parse([]byte(broken))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	err = doc.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{
		`unresolved $ref "#/components/responses/Missing"`,
		`ErrorResponse.required must include "error"`,
		"DecisionResponse.emailSent must be boolean",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestCompare(t *testing.T) {
	doc, err := Parse([]byte(validDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := doc.Compare([]string{"GET /api/items/{id}", "DELETE /api/items/{id}"}); err != nil {
		t.Fatalf("compare: %v", err)
	}
	err = doc.Compare([]string{"GET /api/items/{id}", "POST /api/items"})
	if err == nil {
		t.Fatalf("expected mismatch")
	}
	if !strings.Contains(err.Error(), `route "POST /api/items" is not documented`) ||
		!strings.Contains(err.Error(), `documented operation "DELETE /api/items/{id}" is not served`) {
		t.Fatalf("unexpected compare error: %v", err)
	}
}

func TestRepositoryDocumentIsValid(t *testing.T) {
	doc, err := Load(filepath.Join("..", "..", DefaultPath))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := doc.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
