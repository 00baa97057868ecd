package itemstore

import (
	"context"
	"errors"

	"github.com/fundwit/go-commons/types"
)

var (
	ErrItemNotFound = errors.New("item not found")
	// ErrGuardFailed is returned by Update when a guard predicate no longer holds.
	ErrGuardFailed = errors.New("update guard failed")
)

// Fields is a flat record of column name to value. Supported values are
// string, bool, integers, types.ID, time.Time, *time.Time and nil.
type Fields map[string]interface{}

type Item struct {
	ID     types.ID
	Fields Fields
}

type Op string

const (
	OpEq         Op = "="
	OpNe         Op = "<>"
	OpLt         Op = "<"
	OpLe         Op = "<="
	OpGt         Op = ">"
	OpGe         Op = ">="
	OpBeginsWith Op = "begins_with"
	OpIn         Op = "in"
)

type Predicate struct {
	Field string
	Op    Op
	Value interface{}
}

func Eq(field string, value interface{}) Predicate {
	return Predicate{Field: field, Op: OpEq, Value: value}
}
func Ne(field string, value interface{}) Predicate {
	return Predicate{Field: field, Op: OpNe, Value: value}
}
func Lt(field string, value interface{}) Predicate {
	return Predicate{Field: field, Op: OpLt, Value: value}
}
func Le(field string, value interface{}) Predicate {
	return Predicate{Field: field, Op: OpLe, Value: value}
}
func Gt(field string, value interface{}) Predicate {
	return Predicate{Field: field, Op: OpGt, Value: value}
}
func Ge(field string, value interface{}) Predicate {
	return Predicate{Field: field, Op: OpGe, Value: value}
}
func BeginsWith(field string, prefix string) Predicate {
	return Predicate{Field: field, Op: OpBeginsWith, Value: prefix}
}
func In(field string, values ...interface{}) Predicate {
	return Predicate{Field: field, Op: OpIn, Value: values}
}

// Query is a conjunction of predicates with optional ordering and limit.
type Query struct {
	Where      []Predicate
	OrderBy    string
	Descending bool
	Limit      int
}

// Store is the generic keyed-record store the approval engine persists through.
// Writes must be visible to subsequent queries issued by the same caller.
type Store interface {
	Insert(ctx context.Context, collection string, fields Fields) (types.ID, error)
	GetByID(ctx context.Context, collection string, id types.ID) (*Item, error)
	Query(ctx context.Context, collection string, q Query) ([]Item, error)
	// Update applies fields only when every guard still holds on the stored record.
	Update(ctx context.Context, collection string, id types.ID, fields Fields, guards ...Predicate) error
	Delete(ctx context.Context, collection string, id types.ID) error
}
