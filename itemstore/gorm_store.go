package itemstore

import (
	"context"
	"database/sql"
	"docflow/common"
	"docflow/persistence"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// GormStore maps every collection to a table of the same name.
type GormStore struct {
	ds       *persistence.DataSourceManager
	idWorker *sonyflake.Sonyflake
}

func NewGormStore(ds *persistence.DataSourceManager) *GormStore {
	return &GormStore{ds: ds, idWorker: common.IDWorker}
}

// Migrate creates or extends the table of collection from the gorm tags of model.
func (s *GormStore) Migrate(ctx context.Context, collection string, model interface{}) error {
	if err := checkIdentifier(collection); err != nil {
		return err
	}
	return s.ds.GormDB(ctx).Table(collection).AutoMigrate(model).Error
}

func (s *GormStore) Insert(ctx context.Context, collection string, fields Fields) (types.ID, error) {
	if err := checkIdentifier(collection); err != nil {
		return 0, err
	}
	id := common.NextId(s.idWorker)

	columns := []string{"`id`"}
	marks := []string{"?"}
	args := []interface{}{uint64(id)}
	for _, k := range sortedKeys(fields) {
		if k == "id" {
			continue
		}
		if err := checkIdentifier(k); err != nil {
			return 0, err
		}
		columns = append(columns, "`"+k+"`")
		marks = append(marks, "?")
		args = append(args, sqlValue(fields[k]))
	}

	stmt := fmt.Sprintf("INSERT INTO `%s` (%s) VALUES (%s)", collection, strings.Join(columns, ", "), strings.Join(marks, ", "))
	if err := s.ds.GormDB(ctx).Exec(stmt, args...).Error; err != nil {
		return 0, err
	}
	return id, nil
}

func (s *GormStore) GetByID(ctx context.Context, collection string, id types.ID) (*Item, error) {
	items, err := s.Query(ctx, collection, Query{Where: []Predicate{Eq("id", id)}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrItemNotFound
	}
	return &items[0], nil
}

func (s *GormStore) Query(ctx context.Context, collection string, q Query) ([]Item, error) {
	if err := checkIdentifier(collection); err != nil {
		return nil, err
	}
	db, err := s.where(s.ds.GormDB(ctx).Table(collection), q.Where)
	if err != nil {
		return nil, err
	}
	if q.OrderBy != "" {
		if err := checkIdentifier(q.OrderBy); err != nil {
			return nil, err
		}
		direction := "ASC"
		if q.Descending {
			direction = "DESC"
		}
		db = db.Order("`" + q.OrderBy + "` " + direction)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	rows, err := db.Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

func (s *GormStore) Update(ctx context.Context, collection string, id types.ID, fields Fields, guards ...Predicate) error {
	if err := checkIdentifier(collection); err != nil {
		return err
	}
	values := map[string]interface{}{}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		if err := checkIdentifier(k); err != nil {
			return err
		}
		values[k] = sqlValue(v)
	}

	conditions := append([]Predicate{Eq("id", id)}, guards...)
	db, err := s.where(s.ds.GormDB(ctx).Table(collection), conditions)
	if err != nil {
		return err
	}
	result := db.Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// MySQL reports zero affected rows when the values were already in place.
	matched, err := s.count(ctx, collection, conditions)
	if err != nil {
		return err
	}
	if matched > 0 {
		return nil
	}
	exists, err := s.count(ctx, collection, []Predicate{Eq("id", id)})
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrItemNotFound
	}
	return ErrGuardFailed
}

func (s *GormStore) Delete(ctx context.Context, collection string, id types.ID) error {
	if err := checkIdentifier(collection); err != nil {
		return err
	}
	result := s.ds.GormDB(ctx).Exec("DELETE FROM `"+collection+"` WHERE `id` = ?", uint64(id))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *GormStore) count(ctx context.Context, collection string, preds []Predicate) (int, error) {
	db, err := s.where(s.ds.GormDB(ctx).Table(collection), preds)
	if err != nil {
		return 0, err
	}
	n := 0
	if err := db.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (s *GormStore) where(db *gorm.DB, preds []Predicate) (*gorm.DB, error) {
	for _, p := range preds {
		clause, args, err := predicateSQL(p)
		if err != nil {
			return nil, err
		}
		db = db.Where(clause, args...)
	}
	return db, nil
}

func predicateSQL(p Predicate) (string, []interface{}, error) {
	if err := checkIdentifier(p.Field); err != nil {
		return "", nil, err
	}
	column := "`" + p.Field + "`"
	switch p.Op {
	case OpEq:
		if isNil(p.Value) {
			return column + " IS NULL", nil, nil
		}
		return column + " = ?", []interface{}{sqlValue(p.Value)}, nil
	case OpNe:
		if isNil(p.Value) {
			return column + " IS NOT NULL", nil, nil
		}
		return column + " <> ?", []interface{}{sqlValue(p.Value)}, nil
	case OpLt, OpLe, OpGt, OpGe:
		return column + " " + string(p.Op) + " ?", []interface{}{sqlValue(p.Value)}, nil
	case OpBeginsWith:
		prefix, ok := p.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("begins_with on %s requires a string value", p.Field)
		}
		return column + " LIKE ?", []interface{}{escapeLike(prefix) + "%"}, nil
	case OpIn:
		values, _ := p.Value.([]interface{})
		if len(values) == 0 {
			return "1 = 0", nil, nil
		}
		args := make([]interface{}, 0, len(values))
		for _, v := range values {
			args = append(args, sqlValue(v))
		}
		return column + " IN (?)", []interface{}{args}, nil
	}
	return "", nil, fmt.Errorf("unsupported operator %q", p.Op)
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	items := []Item{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		fields := Fields{}
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				fields[column] = string(b)
			} else {
				fields[column] = values[i]
			}
		}
		items = append(items, Item{ID: fields.ID("id"), Fields: fields})
	}
	return items, rows.Err()
}

func sqlValue(v interface{}) interface{} {
	switch t := v.(type) {
	case types.ID:
		return uint64(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return *t
	}
	return v
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func checkIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

func sortedKeys(fields Fields) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
