package sqlgen

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tallybook/tallybook/internal/catalog"
)

// ErrInvalidArgs marks arguments that cannot be expressed as a read query.
var ErrInvalidArgs = errors.New("invalid query arguments")

const maxRelationDepth = 3

// Dialect captures the few places where the primary database and the replica
// engine disagree.
type Dialect struct {
	Name        string
	NumericType string
	IntegerType string
}

var (
	Postgres = Dialect{Name: "postgres", NumericType: "numeric", IntegerType: "bigint"}
	DuckDB   = Dialect{Name: "duckdb", NumericType: "double", IntegerType: "bigint"}
)

func (d Dialect) cast(fieldType catalog.FieldType) string {
	switch fieldType {
	case catalog.FieldDecimal:
		return d.NumericType
	case catalog.FieldInteger:
		return d.IntegerType
	case catalog.FieldDate:
		return "date"
	case catalog.FieldBool:
		return "boolean"
	default:
		return "text"
	}
}

// Column describes how one result column maps back into a Record.
type Column struct {
	Alias string
	// Field is a catalog field name, or "_all" for _count._all.
	Field string
	// Aggregate is empty for plain columns, otherwise one of _count, _sum,
	// _avg, _min or _max.
	Aggregate string
	Type      catalog.FieldType
	// Scalar columns decode to a bare value under Aggregate (`_count: true`).
	Scalar bool
}

type Query struct {
	SQL     string
	Args    []any
	Columns []Column
}

var aggregateFuncs = map[string]string{
	"_count": "COUNT",
	"_sum":   "SUM",
	"_avg":   "AVG",
	"_min":   "MIN",
	"_max":   "MAX",
}

var aggregateOrder = []string{"_count", "_sum", "_avg", "_min", "_max"}

var acceptedKeys = map[catalog.Operation][]string{
	catalog.FindMany:   {"where", "select", "orderBy", "take", "skip"},
	catalog.FindFirst:  {"where", "select", "orderBy", "take", "skip"},
	catalog.FindUnique: {"where", "select"},
	catalog.Count:      {"where", "take", "skip"},
	catalog.Aggregate:  {"where", "_count", "_sum", "_avg", "_min", "_max"},
	catalog.GroupBy:    {"where", "by", "orderBy", "take", "skip", "_count", "_sum", "_avg", "_min", "_max"},
}

// Build renders one parameterised SELECT for the operation. Identifiers come
// from the catalog only and every value is bound as a placeholder. The
// top-level where must pin the tenant field to a single company.
func Build(dialect Dialect, entity catalog.Entity, operation catalog.Operation, args map[string]any) (Query, error) {
	spec, ok := catalog.Spec(entity)
	if !ok {
		return Query{}, fmt.Errorf("%w: unknown entity %q", ErrInvalidArgs, entity.String())
	}
	accepted, ok := acceptedKeys[operation]
	if !ok {
		return Query{}, fmt.Errorf("%w: unsupported operation %q", ErrInvalidArgs, operation.String())
	}
	for _, key := range sortedKeys(args) {
		if !containsString(accepted, key) {
			return Query{}, fmt.Errorf("%w: %s does not accept %q", ErrInvalidArgs, operation.String(), key)
		}
	}
	if err := requireTenant(args); err != nil {
		return Query{}, err
	}

	b := &builder{dialect: dialect}
	where, err := b.where(spec, "t0", args["where"], 0)
	if err != nil {
		return Query{}, err
	}
	from := fmt.Sprintf("FROM %s AS t0 WHERE %s", quoteIdent(spec.Table), where)

	switch operation {
	case catalog.FindMany, catalog.FindFirst, catalog.FindUnique:
		return b.buildFind(spec, operation, from, args)
	case catalog.Count:
		return b.buildCount(from, args)
	case catalog.Aggregate:
		return b.buildAggregate(spec, from, args)
	default:
		return b.buildGroupBy(spec, from, args)
	}
}

func requireTenant(args map[string]any) error {
	where, _ := args["where"].(map[string]any)
	if tenantID, ok := where[catalog.TenantField].(string); !ok || strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("%w: where.%s must name one company", ErrInvalidArgs, catalog.TenantField)
	}
	return nil
}

type builder struct {
	dialect Dialect
	args    []any
	aliases int
}

func (b *builder) buildFind(spec catalog.EntitySpec, operation catalog.Operation, from string, args map[string]any) (Query, error) {
	columns, selectList, err := selection(spec, args["select"])
	if err != nil {
		return Query{}, err
	}

	var sqlText strings.Builder
	fmt.Fprintf(&sqlText, "SELECT %s %s", selectList, from)

	if operation != catalog.FindUnique {
		orderBy, err := b.orderBy(spec, args["orderBy"], nil)
		if err != nil {
			return Query{}, err
		}
		if orderBy != "" {
			sqlText.WriteString(" ORDER BY " + orderBy)
		}
	}

	take, skip, err := paging(args)
	if err != nil {
		return Query{}, err
	}
	if operation != catalog.FindMany {
		take = 1
	}
	if take >= 0 {
		fmt.Fprintf(&sqlText, " LIMIT %d", take)
	}
	if skip > 0 && operation != catalog.FindUnique {
		fmt.Fprintf(&sqlText, " OFFSET %d", skip)
	}
	return Query{SQL: sqlText.String(), Args: b.args, Columns: columns}, nil
}

func (b *builder) buildCount(from string, args map[string]any) (Query, error) {
	columns := []Column{{Alias: "a0", Aggregate: "_count", Type: catalog.FieldInteger, Scalar: true}}
	take, skip, err := paging(args)
	if err != nil {
		return Query{}, err
	}
	if take < 0 && skip == 0 {
		return Query{SQL: `SELECT COUNT(*) AS "a0" ` + from, Args: b.args, Columns: columns}, nil
	}

	inner := "SELECT 1 " + from
	if take >= 0 {
		inner += fmt.Sprintf(" LIMIT %d", take)
	}
	if skip > 0 {
		inner += fmt.Sprintf(" OFFSET %d", skip)
	}
	return Query{SQL: `SELECT COUNT(*) AS "a0" FROM (` + inner + `) AS counted`, Args: b.args, Columns: columns}, nil
}

func (b *builder) buildAggregate(spec catalog.EntitySpec, from string, args map[string]any) (Query, error) {
	columns, expressions, err := aggregates(spec, args)
	if err != nil {
		return Query{}, err
	}
	if len(columns) == 0 {
		return Query{}, fmt.Errorf("%w: aggregate needs at least one of _count, _sum, _avg, _min, _max", ErrInvalidArgs)
	}
	return Query{
		SQL:     "SELECT " + strings.Join(expressions, ", ") + " " + from,
		Args:    b.args,
		Columns: columns,
	}, nil
}

func (b *builder) buildGroupBy(spec catalog.EntitySpec, from string, args map[string]any) (Query, error) {
	by, err := groupFields(spec, args["by"])
	if err != nil {
		return Query{}, err
	}

	columns := make([]Column, 0, len(by))
	selectList := make([]string, 0, len(by))
	groupList := make([]string, 0, len(by))
	for _, field := range by {
		ref := columnRef("t0", field.Column)
		columns = append(columns, Column{Alias: field.Name, Field: field.Name, Type: field.Type})
		selectList = append(selectList, ref+" AS "+quoteIdent(field.Name))
		groupList = append(groupList, ref)
	}

	aggregateColumns, expressions, err := aggregates(spec, args)
	if err != nil {
		return Query{}, err
	}
	columns = append(columns, aggregateColumns...)
	selectList = append(selectList, expressions...)

	var sqlText strings.Builder
	fmt.Fprintf(&sqlText, "SELECT %s %s GROUP BY %s", strings.Join(selectList, ", "), from, strings.Join(groupList, ", "))

	orderBy, err := b.orderBy(spec, args["orderBy"], by)
	if err != nil {
		return Query{}, err
	}
	if orderBy != "" {
		sqlText.WriteString(" ORDER BY " + orderBy)
	}

	take, skip, err := paging(args)
	if err != nil {
		return Query{}, err
	}
	if take >= 0 {
		fmt.Fprintf(&sqlText, " LIMIT %d", take)
	}
	if skip > 0 {
		fmt.Fprintf(&sqlText, " OFFSET %d", skip)
	}
	return Query{SQL: sqlText.String(), Args: b.args, Columns: columns}, nil
}

func selection(spec catalog.EntitySpec, value any) ([]Column, string, error) {
	fields := spec.Fields
	if value != nil {
		selected, ok := value.(map[string]any)
		if !ok {
			return nil, "", fmt.Errorf("%w: select must be an object", ErrInvalidArgs)
		}
		fields = make([]catalog.Field, 0, len(selected))
		for _, name := range sortedKeys(selected) {
			if _, ok := spec.Field(name); !ok {
				return nil, "", fmt.Errorf("%w: unknown field %q on %s", ErrInvalidArgs, name, spec.Entity.String())
			}
			if _, ok := selected[name].(bool); !ok {
				return nil, "", fmt.Errorf("%w: select.%s must be true or false", ErrInvalidArgs, name)
			}
		}
		for _, field := range spec.Fields {
			if include, _ := selected[field.Name].(bool); include {
				fields = append(fields, field)
			}
		}
		if len(fields) == 0 {
			return nil, "", fmt.Errorf("%w: select chooses no fields", ErrInvalidArgs)
		}
	}

	columns := make([]Column, 0, len(fields))
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		columns = append(columns, Column{Alias: field.Name, Field: field.Name, Type: field.Type})
		parts = append(parts, columnRef("t0", field.Column)+" AS "+quoteIdent(field.Name))
	}
	return columns, strings.Join(parts, ", "), nil
}

func aggregates(spec catalog.EntitySpec, args map[string]any) ([]Column, []string, error) {
	columns := make([]Column, 0)
	expressions := make([]string, 0)
	add := func(column Column, expression string) {
		column.Alias = fmt.Sprintf("a%d", len(columns))
		columns = append(columns, column)
		expressions = append(expressions, expression+" AS "+quoteIdent(column.Alias))
	}

	for _, name := range aggregateOrder {
		value, present := args[name]
		if !present || value == nil {
			continue
		}
		if flag, ok := value.(bool); ok {
			if name != "_count" {
				return nil, nil, fmt.Errorf("%w: %s must list fields", ErrInvalidArgs, name)
			}
			if flag {
				add(Column{Aggregate: name, Type: catalog.FieldInteger, Scalar: true}, "COUNT(*)")
			}
			continue
		}
		chosen, ok := value.(map[string]any)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s must be an object", ErrInvalidArgs, name)
		}
		for _, fieldName := range sortedKeys(chosen) {
			flag, ok := chosen[fieldName].(bool)
			if !ok {
				return nil, nil, fmt.Errorf("%w: %s.%s must be true or false", ErrInvalidArgs, name, fieldName)
			}
			if !flag {
				continue
			}
			if name == "_count" && fieldName == "_all" {
				add(Column{Aggregate: name, Field: "_all", Type: catalog.FieldInteger}, "COUNT(*)")
				continue
			}
			field, ok := spec.Field(fieldName)
			if !ok {
				return nil, nil, fmt.Errorf("%w: unknown field %q on %s", ErrInvalidArgs, fieldName, spec.Entity.String())
			}
			expression, resultType, err := aggregateExpression(name, field)
			if err != nil {
				return nil, nil, err
			}
			add(Column{Aggregate: name, Field: field.Name, Type: resultType}, expression)
		}
	}
	return columns, expressions, nil
}

func aggregateExpression(name string, field catalog.Field) (string, catalog.FieldType, error) {
	ref := columnRef("t0", field.Column)
	switch name {
	case "_count":
		return "COUNT(" + ref + ")", catalog.FieldInteger, nil
	case "_sum":
		if !field.Type.Numeric() {
			return "", "", fmt.Errorf("%w: _sum.%s is not numeric", ErrInvalidArgs, field.Name)
		}
		return "SUM(" + ref + ")", field.Type, nil
	case "_avg":
		if !field.Type.Numeric() {
			return "", "", fmt.Errorf("%w: _avg.%s is not numeric", ErrInvalidArgs, field.Name)
		}
		return "AVG(" + ref + ")", catalog.FieldDecimal, nil
	default:
		if field.Type == catalog.FieldBool {
			return "", "", fmt.Errorf("%w: %s.%s is boolean", ErrInvalidArgs, name, field.Name)
		}
		return aggregateFuncs[name] + "(" + ref + ")", field.Type, nil
	}
}

func groupFields(spec catalog.EntitySpec, value any) ([]catalog.Field, error) {
	var names []string
	switch typed := value.(type) {
	case string:
		names = []string{typed}
	case []any:
		for _, item := range typed {
			name, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: by must list field names", ErrInvalidArgs)
			}
			names = append(names, name)
		}
	case []string:
		names = typed
	default:
		return nil, fmt.Errorf("%w: groupBy requires by", ErrInvalidArgs)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: groupBy requires by", ErrInvalidArgs)
	}

	fields := make([]catalog.Field, 0, len(names))
	for _, name := range names {
		field, ok := spec.Field(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown field %q on %s", ErrInvalidArgs, name, spec.Entity.String())
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// orderBy accepts an object or a list of objects. When grouped is non-nil the
// query is a groupBy: plain fields must be grouped and aggregate keys are
// allowed.
func (b *builder) orderBy(spec catalog.EntitySpec, value any, grouped []catalog.Field) (string, error) {
	if value == nil {
		return "", nil
	}
	var items []map[string]any
	switch typed := value.(type) {
	case map[string]any:
		items = []map[string]any{typed}
	case []any:
		for _, item := range typed {
			object, ok := item.(map[string]any)
			if !ok {
				return "", fmt.Errorf("%w: orderBy entries must be objects", ErrInvalidArgs)
			}
			items = append(items, object)
		}
	default:
		return "", fmt.Errorf("%w: orderBy must be an object or a list", ErrInvalidArgs)
	}

	parts := make([]string, 0)
	for _, item := range items {
		for _, key := range sortedKeys(item) {
			if function, ok := aggregateFuncs[key]; ok {
				if grouped == nil {
					return "", fmt.Errorf("%w: orderBy.%s is only valid for groupBy", ErrInvalidArgs, key)
				}
				nested, ok := item[key].(map[string]any)
				if !ok {
					return "", fmt.Errorf("%w: orderBy.%s must be an object", ErrInvalidArgs, key)
				}
				for _, fieldName := range sortedKeys(nested) {
					field, ok := spec.Field(fieldName)
					if !ok {
						return "", fmt.Errorf("%w: unknown field %q on %s", ErrInvalidArgs, fieldName, spec.Entity.String())
					}
					if (key == "_sum" || key == "_avg") && !field.Type.Numeric() {
						return "", fmt.Errorf("%w: %s.%s is not numeric", ErrInvalidArgs, key, field.Name)
					}
					direction, err := sortDirection(nested[fieldName])
					if err != nil {
						return "", err
					}
					parts = append(parts, function+"("+columnRef("t0", field.Column)+") "+direction)
				}
				continue
			}

			field, ok := spec.Field(key)
			if !ok {
				return "", fmt.Errorf("%w: unknown field %q on %s", ErrInvalidArgs, key, spec.Entity.String())
			}
			if grouped != nil && !containsField(grouped, field.Name) {
				return "", fmt.Errorf("%w: orderBy.%s must be one of the by fields", ErrInvalidArgs, field.Name)
			}
			direction, err := sortDirection(item[key])
			if err != nil {
				return "", err
			}
			parts = append(parts, columnRef("t0", field.Column)+" "+direction)
		}
	}
	return strings.Join(parts, ", "), nil
}

func sortDirection(value any) (string, error) {
	var order, nulls string
	switch typed := value.(type) {
	case string:
		order = typed
	case map[string]any:
		order, _ = typed["sort"].(string)
		nulls, _ = typed["nulls"].(string)
	}
	var direction string
	switch strings.ToLower(order) {
	case "asc":
		direction = "ASC"
	case "desc":
		direction = "DESC"
	default:
		return "", fmt.Errorf("%w: sort direction must be asc or desc", ErrInvalidArgs)
	}
	switch strings.ToLower(nulls) {
	case "":
	case "first":
		direction += " NULLS FIRST"
	case "last":
		direction += " NULLS LAST"
	default:
		return "", fmt.Errorf("%w: nulls must be first or last", ErrInvalidArgs)
	}
	return direction, nil
}

// paging returns take (-1 when absent) and skip.
func paging(args map[string]any) (int, int, error) {
	take, err := nonNegativeInt(args, "take", -1)
	if err != nil {
		return 0, 0, err
	}
	skip, err := nonNegativeInt(args, "skip", 0)
	if err != nil {
		return 0, 0, err
	}
	return take, skip, nil
}

func nonNegativeInt(args map[string]any, key string, fallback int) (int, error) {
	value, present := args[key]
	if !present || value == nil {
		return fallback, nil
	}
	number, ok := toFloat(value)
	if !ok || number < 0 || number != math.Trunc(number) || number > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidArgs, key)
	}
	return int(number), nil
}

func (b *builder) where(spec catalog.EntitySpec, alias string, value any, depth int) (string, error) {
	if value == nil {
		return "TRUE", nil
	}
	filter, ok := value.(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: where must be an object", ErrInvalidArgs)
	}

	conditions := make([]string, 0, len(filter))
	for _, key := range sortedKeys(filter) {
		value := filter[key]
		var (
			condition string
			err       error
		)
		switch key {
		case "AND":
			condition, err = b.combine(spec, alias, value, " AND ", "TRUE", depth)
		case "OR":
			condition, err = b.combine(spec, alias, value, " OR ", "FALSE", depth)
		case "NOT":
			condition, err = b.combine(spec, alias, value, " AND ", "TRUE", depth)
			condition = "NOT (" + condition + ")"
		default:
			if field, ok := spec.Field(key); ok {
				condition, err = b.fieldCondition(columnRef(alias, field.Column), field, value)
				break
			}
			if relation, ok := findRelation(spec, key); ok {
				condition, err = b.relationCondition(spec, alias, relation, value, depth)
				break
			}
			err = fmt.Errorf("%w: unknown field %q on %s", ErrInvalidArgs, key, spec.Entity.String())
		}
		if err != nil {
			return "", err
		}
		conditions = append(conditions, condition)
	}
	if len(conditions) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conditions, " AND "), nil
}

func (b *builder) combine(spec catalog.EntitySpec, alias string, value any, separator string, empty string, depth int) (string, error) {
	var items []any
	switch typed := value.(type) {
	case []any:
		items = typed
	case map[string]any:
		items = []any{typed}
	default:
		return "", fmt.Errorf("%w: logical operators take an object or a list", ErrInvalidArgs)
	}
	if len(items) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		condition, err := b.where(spec, alias, item, depth)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+condition+")")
	}
	return "(" + strings.Join(parts, separator) + ")", nil
}

var stringOperators = map[string]bool{"contains": true, "startsWith": true, "endsWith": true}

func (b *builder) fieldCondition(ref string, field catalog.Field, value any) (string, error) {
	switch typed := value.(type) {
	case nil:
		return ref + " IS NULL", nil
	case []any:
		return "", fmt.Errorf("%w: %s cannot be compared with a list; use in", ErrInvalidArgs, field.Name)
	case map[string]any:
		insensitive := false
		if mode, present := typed["mode"]; present {
			switch mode {
			case "insensitive":
				insensitive = true
			case "default":
			default:
				return "", fmt.Errorf("%w: mode must be default or insensitive", ErrInvalidArgs)
			}
		}
		conditions := make([]string, 0, len(typed))
		for _, operator := range sortedKeys(typed) {
			if operator == "mode" {
				continue
			}
			operand := typed[operator]
			condition, err := b.operatorCondition(ref, field, operator, operand, insensitive)
			if err != nil {
				return "", err
			}
			conditions = append(conditions, condition)
		}
		if len(conditions) == 0 {
			return "TRUE", nil
		}
		return strings.Join(conditions, " AND "), nil
	default:
		placeholder, err := b.bind(value, field)
		if err != nil {
			return "", err
		}
		return ref + " = " + placeholder, nil
	}
}

func (b *builder) operatorCondition(ref string, field catalog.Field, operator string, operand any, insensitive bool) (string, error) {
	comparisons := map[string]string{"lt": "<", "lte": "<=", "gt": ">", "gte": ">="}
	switch {
	case operator == "equals":
		return b.fieldCondition(ref, field, operand)
	case operator == "not":
		switch operand.(type) {
		case nil:
			return ref + " IS NOT NULL", nil
		case map[string]any:
			condition, err := b.fieldCondition(ref, field, operand)
			if err != nil {
				return "", err
			}
			return "NOT (" + condition + ")", nil
		default:
			placeholder, err := b.bind(operand, field)
			if err != nil {
				return "", err
			}
			return ref + " <> " + placeholder, nil
		}
	case operator == "in" || operator == "notIn":
		items, ok := operand.([]any)
		if !ok {
			return "", fmt.Errorf("%w: %s.%s must be a list", ErrInvalidArgs, field.Name, operator)
		}
		if len(items) == 0 {
			if operator == "in" {
				return "FALSE", nil
			}
			return "TRUE", nil
		}
		placeholders := make([]string, 0, len(items))
		for _, item := range items {
			placeholder, err := b.bind(item, field)
			if err != nil {
				return "", err
			}
			placeholders = append(placeholders, placeholder)
		}
		keyword := " IN ("
		if operator == "notIn" {
			keyword = " NOT IN ("
		}
		return ref + keyword + strings.Join(placeholders, ", ") + ")", nil
	case comparisons[operator] != "":
		if field.Type == catalog.FieldBool {
			return "", fmt.Errorf("%w: %s.%s is not valid for boolean fields", ErrInvalidArgs, field.Name, operator)
		}
		placeholder, err := b.bind(operand, field)
		if err != nil {
			return "", err
		}
		return ref + " " + comparisons[operator] + " " + placeholder, nil
	case stringOperators[operator]:
		if field.Type != catalog.FieldString {
			return "", fmt.Errorf("%w: %s.%s needs a text field", ErrInvalidArgs, field.Name, operator)
		}
		placeholder, err := b.bind(operand, field)
		if err != nil {
			return "", err
		}
		if insensitive {
			ref = "lower(" + ref + ")"
			placeholder = "lower(" + placeholder + ")"
		}
		switch operator {
		case "contains":
			return "strpos(" + ref + ", " + placeholder + ") > 0", nil
		case "startsWith":
			return "left(" + ref + ", length(" + placeholder + ")) = " + placeholder, nil
		default:
			return "right(" + ref + ", length(" + placeholder + ")) = " + placeholder, nil
		}
	default:
		return "", fmt.Errorf("%w: unsupported filter %s.%s", ErrInvalidArgs, field.Name, operator)
	}
}

// relationCondition renders an EXISTS subquery. The related row must belong
// to the same company as the outer row.
func (b *builder) relationCondition(spec catalog.EntitySpec, alias string, relation catalog.Relation, value any, depth int) (string, error) {
	if depth >= maxRelationDepth {
		return "", fmt.Errorf("%w: relation filters nest too deeply", ErrInvalidArgs)
	}
	target, _ := catalog.Spec(relation.Target)
	localField, _ := spec.Field(relation.LocalField)
	targetField, _ := target.Field(relation.TargetField)

	filter, ok := value.(map[string]any)
	if !ok && value != nil {
		return "", fmt.Errorf("%w: %s filter must be an object", ErrInvalidArgs, relation.Name)
	}

	b.aliases++
	inner := fmt.Sprintf("t%d", b.aliases)
	join := fmt.Sprintf("%s = %s AND %s = %s",
		columnRef(inner, targetField.Column), columnRef(alias, localField.Column),
		columnRef(inner, target.TenantColumn()), columnRef(alias, spec.TenantColumn()),
	)
	exists := func(condition string) string {
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s AS %s WHERE %s AND (%s))", quoteIdent(target.Table), inner, join, condition)
	}

	toOne := relation.TargetField == "id"
	var quantifier string
	if filter != nil && len(filter) == 1 {
		for key := range filter {
			quantifier = key
		}
	}
	switch {
	case value == nil && toOne:
		return "NOT " + exists("TRUE"), nil
	case toOne && (quantifier == "is" || quantifier == "isNot"):
		if filter[quantifier] == nil {
			if quantifier == "is" {
				return "NOT " + exists("TRUE"), nil
			}
			return exists("TRUE"), nil
		}
		condition, err := b.where(target, inner, filter[quantifier], depth+1)
		if err != nil {
			return "", err
		}
		if quantifier == "isNot" {
			return "NOT " + exists(condition), nil
		}
		return exists(condition), nil
	case toOne:
		condition, err := b.where(target, inner, filter, depth+1)
		if err != nil {
			return "", err
		}
		return exists(condition), nil
	case quantifier == "some" || quantifier == "none" || quantifier == "every":
		condition, err := b.where(target, inner, filter[quantifier], depth+1)
		if err != nil {
			return "", err
		}
		switch quantifier {
		case "some":
			return exists(condition), nil
		case "none":
			return "NOT " + exists(condition), nil
		default:
			return "NOT " + exists("NOT ("+condition+")"), nil
		}
	default:
		return "", fmt.Errorf("%w: %s filter needs some, every or none", ErrInvalidArgs, relation.Name)
	}
}

func (b *builder) bind(value any, field catalog.Field) (string, error) {
	converted, err := convertValue(value, field.Type)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidArgs, field.Name, err)
	}
	b.args = append(b.args, converted)
	return fmt.Sprintf("$%d::%s", len(b.args), b.dialect.cast(field.Type)), nil
}

func findRelation(spec catalog.EntitySpec, name string) (catalog.Relation, bool) {
	for _, relation := range spec.Relations {
		if relation.Name == name {
			return relation, true
		}
	}
	return catalog.Relation{}, false
}

func columnRef(alias, column string) string {
	return alias + "." + quoteIdent(column)
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func containsString(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}

func containsField(fields []catalog.Field, name string) bool {
	for _, field := range fields {
		if field.Name == name {
			return true
		}
	}
	return false
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
