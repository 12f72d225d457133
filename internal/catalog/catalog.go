package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("catalog: not found")

// TenantField is the args.where key that scopes every entity to one company.
const TenantField = "companyId"

const tenantColumn = "company_id"

// Entity is a member of the closed set of queryable entities. The zero value
// is not a member; values outside this package can only be obtained through
// the exported variables or ParseEntity.
type Entity struct {
	name string
}

var (
	Invoice      = Entity{name: "invoice"}
	InvoiceLine  = Entity{name: "invoiceLine"}
	JournalEntry = Entity{name: "journalEntry"}
	JournalLine  = Entity{name: "journalLine"}
	Account      = Entity{name: "account"}
	Contact      = Entity{name: "contact"}
)

var entities = []Entity{Invoice, InvoiceLine, JournalEntry, JournalLine, Account, Contact}

func (e Entity) String() string { return e.name }

func (e Entity) IsZero() bool { return e.name == "" }

// Operation is a member of the closed set of read-only operations.
type Operation struct {
	name string
}

var (
	FindMany   = Operation{name: "findMany"}
	FindFirst  = Operation{name: "findFirst"}
	FindUnique = Operation{name: "findUnique"}
	Aggregate  = Operation{name: "aggregate"}
	GroupBy    = Operation{name: "groupBy"}
	Count      = Operation{name: "count"}
)

var operations = []Operation{FindMany, FindFirst, FindUnique, Aggregate, GroupBy, Count}

func (o Operation) String() string { return o.name }

func (o Operation) IsZero() bool { return o.name == "" }

func ParseEntity(name string) (Entity, bool) {
	for _, entity := range entities {
		if entity.name == name {
			return entity, true
		}
	}
	return Entity{}, false
}

func ParseOperation(name string) (Operation, bool) {
	for _, operation := range operations {
		if operation.name == name {
			return operation, true
		}
	}
	return Operation{}, false
}

func IsKnownEntity(name string) bool {
	_, ok := ParseEntity(name)
	return ok
}

func IsAllowedOperation(name string) bool {
	_, ok := ParseOperation(name)
	return ok
}

func Entities() []Entity {
	out := make([]Entity, len(entities))
	copy(out, entities)
	return out
}

func Operations() []Operation {
	out := make([]Operation, len(operations))
	copy(out, operations)
	return out
}

func EntityNames() []string {
	names := make([]string, 0, len(entities))
	for _, entity := range entities {
		names = append(names, entity.name)
	}
	return names
}

func OperationNames() []string {
	names := make([]string, 0, len(operations))
	for _, operation := range operations {
		names = append(names, operation.name)
	}
	return names
}

type FieldType string

const (
	FieldString  FieldType = "String"
	FieldDecimal FieldType = "Decimal"
	FieldInteger FieldType = "Int"
	FieldDate    FieldType = "Date"
	FieldBool    FieldType = "Boolean"
)

// Numeric reports whether _sum and _avg are meaningful for the type.
func (t FieldType) Numeric() bool {
	return t == FieldDecimal || t == FieldInteger
}

type Field struct {
	Name   string
	Column string
	Type   FieldType
	Note   string
}

type Relation struct {
	Name        string
	Target      Entity
	LocalField  string
	TargetField string
}

type EntitySpec struct {
	Entity      Entity
	Table       string
	Description string
	Fields      []Field
	Relations   []Relation
}

func (s EntitySpec) Field(name string) (Field, bool) {
	for _, field := range s.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

func (s EntitySpec) TenantColumn() string {
	return tenantColumn
}

func Spec(entity Entity) (EntitySpec, bool) {
	spec, ok := specs[entity]
	return spec, ok
}

// DescribeSchema renders the catalog for the language model. Nothing in the
// validation path reads this text.
func DescribeSchema() string {
	var b strings.Builder
	for i, entity := range entities {
		spec := specs[entity]
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s\n", entity.name, spec.Description)
		b.WriteString("  fields:\n")
		for _, field := range spec.Fields {
			if field.Note != "" {
				fmt.Fprintf(&b, "    - %s %s (%s)\n", field.Name, field.Type, field.Note)
				continue
			}
			fmt.Fprintf(&b, "    - %s %s\n", field.Name, field.Type)
		}
		if len(spec.Relations) > 0 {
			b.WriteString("  relations:\n")
			for _, relation := range spec.Relations {
				fmt.Fprintf(&b, "    - %s -> %s (%s = %s.%s)\n", relation.Name, relation.Target.name, relation.LocalField, relation.Target.name, relation.TargetField)
			}
		}
	}
	return b.String()
}

// Company is the tenant record the session layer resolves a tenant ID to.
type Company struct {
	CompanyID    string
	Name         string
	BaseCurrency string
	CreatedAt    time.Time
}
