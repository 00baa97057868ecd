package itemstore_test

import (
	"context"
	"docflow/itemstore"
	"docflow/testinfra"
	"testing"
	"time"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
)

type sampleRow struct {
	ID        types.ID   `gorm:"column:id;primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name      string     `gorm:"column:name;type:varchar(255)"`
	Ref       string     `gorm:"column:ref;type:varchar(512)"`
	Stage     int        `gorm:"column:stage"`
	Escalated bool       `gorm:"column:escalated"`
	Due       *time.Time `gorm:"column:due"`
}

func gormStoreTestSetup(t *testing.T, testDatabase **testinfra.TestDatabase) *itemstore.GormStore {
	db := testinfra.StartMysqlTestDatabase("docflow")
	*testDatabase = db
	s := itemstore.NewGormStore(db.DS)
	Expect(s.Migrate(context.Background(), "sample_rows", &sampleRow{})).To(Succeed())
	return s
}

func gormStoreTestTeardown(t *testing.T, testDatabase *testinfra.TestDatabase) {
	if testDatabase != nil {
		testinfra.StopMysqlTestDatabase(testDatabase)
	}
}

func TestGormStore(t *testing.T) {
	testinfra.RequireMysql(t)
	RegisterTestingT(t)
	ctx := context.Background()
	var testDatabase *testinfra.TestDatabase

	t.Run("should insert query update and delete records", func(t *testing.T) {
		defer func() { gormStoreTestTeardown(t, testDatabase) }()
		s := gormStoreTestSetup(t, &testDatabase)

		due := time.Now().Add(-time.Hour).Round(time.Second)
		id1, err := s.Insert(ctx, "sample_rows", itemstore.Fields{"name": "a", "ref": "/docs/a_1.pdf", "stage": 1, "escalated": false, "due": &due})
		Expect(err).To(BeNil())
		_, err = s.Insert(ctx, "sample_rows", itemstore.Fields{"name": "b", "ref": "/docsx/b.pdf", "stage": 2, "escalated": false, "due": nil})
		Expect(err).To(BeNil())

		item, err := s.GetByID(ctx, "sample_rows", id1)
		Expect(err).To(BeNil())
		Expect(item.ID).To(Equal(id1))
		Expect(item.Fields.String("name")).To(Equal("a"))
		Expect(item.Fields.Int("stage")).To(Equal(1))
		Expect(item.Fields.Time("due").Equal(due)).To(BeTrue())

		items, err := s.Query(ctx, "sample_rows", itemstore.Query{Where: []itemstore.Predicate{
			itemstore.BeginsWith("ref", "/docs/"), itemstore.Lt("due", time.Now()), itemstore.Eq("escalated", false),
		}})
		Expect(err).To(BeNil())
		Expect(names(items)).To(Equal([]string{"a"}))

		items, err = s.Query(ctx, "sample_rows", itemstore.Query{Where: []itemstore.Predicate{itemstore.Eq("due", nil)}})
		Expect(err).To(BeNil())
		Expect(names(items)).To(Equal([]string{"b"}))

		items, err = s.Query(ctx, "sample_rows", itemstore.Query{OrderBy: "stage", Descending: true, Limit: 1})
		Expect(err).To(BeNil())
		Expect(names(items)).To(Equal([]string{"b"}))

		Expect(s.Update(ctx, "sample_rows", id1, itemstore.Fields{"escalated": true}, itemstore.Eq("escalated", false))).To(Succeed())
		Expect(s.Update(ctx, "sample_rows", id1, itemstore.Fields{"escalated": true}, itemstore.Eq("escalated", false))).To(Equal(itemstore.ErrGuardFailed))
		Expect(s.Update(ctx, "sample_rows", id1, itemstore.Fields{"escalated": true})).To(Succeed())
		Expect(s.Update(ctx, "sample_rows", 1, itemstore.Fields{"escalated": true})).To(Equal(itemstore.ErrItemNotFound))

		Expect(s.Delete(ctx, "sample_rows", id1)).To(Succeed())
		_, err = s.GetByID(ctx, "sample_rows", id1)
		Expect(err).To(Equal(itemstore.ErrItemNotFound))
	})

	t.Run("should reject invalid identifiers", func(t *testing.T) {
		defer func() { gormStoreTestTeardown(t, testDatabase) }()
		s := gormStoreTestSetup(t, &testDatabase)

		_, err := s.Insert(ctx, "sample_rows; drop", itemstore.Fields{"name": "a"})
		Expect(err).To(HaveOccurred())
		_, err = s.Query(ctx, "sample_rows", itemstore.Query{Where: []itemstore.Predicate{itemstore.Eq("name`", "a")}})
		Expect(err).To(HaveOccurred())
	})
}
