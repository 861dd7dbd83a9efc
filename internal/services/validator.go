package services

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Request schema names.
const (
	SchemaInitialize        = "initialize"
	SchemaSetAdmin          = "set_admin"
	SchemaUpdateToken       = "update_token"
	SchemaSetPaused         = "set_paused"
	SchemaUpgrade           = "upgrade"
	SchemaCreateEscrow      = "create_escrow"
	SchemaAssignContributor = "assign_contributor"
	SchemaDisputeTask       = "dispute_task"
	SchemaResolveDispute    = "resolve_dispute"
	SchemaChangeBounty      = "change_bounty"
	SchemaMint              = "mint"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// ErrValidation can be used with errors.Is to detect a request body that does
// not match its schema.
var ErrValidation = errors.New("validation failed")

// Validator checks request bodies against the embedded JSON schemas. The
// schemas check shape only; value rules stay in the escrow package so they
// report escrow error codes.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles every embedded schema, keyed by file name without
// extension.
func NewValidator() (*Validator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read embedded schemas: %w", err)
	}
	schemas := make(map[string]*jsonschema.Schema, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		data, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", e.Name(), err)
		}
		id := "https://task-escrow.local/schemas/" + e.Name()
		schemas[name], err = jsonschema.CompileString(id, string(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", name, err)
		}
	}
	return &Validator{schemas: schemas}, nil
}

// Names lists the loaded schemas.
func (v *Validator) Names() []string {
	out := make([]string, 0, len(v.schemas))
	for n := range v.schemas {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Validate rejects body if it is not JSON or does not match the named schema.
func (v *Validator) Validate(name string, body []byte) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrValidation, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
