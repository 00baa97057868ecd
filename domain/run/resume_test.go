package run_test

import (
	"context"
	"docflow/bizerror"
	"docflow/domain/approval"
	"docflow/itemstore"
	"errors"
	"sync"
	"testing"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
)

// flakyStore fails the next instance write it is armed for, once.
type flakyStore struct {
	*itemstore.MemoryStore

	lock         sync.Mutex
	failStatus   string
	failInsert   bool
	failedWrites int
}

func (s *flakyStore) failNextUpdateTo(status approval.Status) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.failStatus = string(status)
}

func (s *flakyStore) failNextInsert() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.failInsert = true
}

func (s *flakyStore) Update(ctx context.Context, collection string, id types.ID, fields itemstore.Fields, guards ...itemstore.Predicate) error {
	s.lock.Lock()
	fail := collection == approval.InstanceCollection && s.failStatus != "" && fields["status"] == s.failStatus
	if fail {
		s.failStatus = ""
		s.failedWrites++
	}
	s.lock.Unlock()
	if fail {
		return errors.New("connection reset")
	}
	return s.MemoryStore.Update(ctx, collection, id, fields, guards...)
}

func (s *flakyStore) Insert(ctx context.Context, collection string, fields itemstore.Fields) (types.ID, error) {
	s.lock.Lock()
	fail := collection == approval.InstanceCollection && s.failInsert
	if fail {
		s.failInsert = false
		s.failedWrites++
	}
	s.lock.Unlock()
	if fail {
		return 0, errors.New("connection reset")
	}
	return s.MemoryStore.Insert(ctx, collection, fields)
}

func expectStoreFailure(err error) {
	var failure *bizerror.ErrStoreFailure
	Expect(errors.As(err, &failure)).To(BeTrue())
}

func countOf(actions []string, action string) int {
	n := 0
	for _, a := range actions {
		if a == action {
			n++
		}
	}
	return n
}

func TestApproveRetry(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should activate the next stage when an approval is repeated after a failed activation", func(t *testing.T) {
		store := &flakyStore{MemoryStore: itemstore.NewMemoryStore()}
		f := newFixtureOn(store)
		f.install(workflowFor("/docs", approval.ReturnToSubmitter,
			stage(1, approval.ModeAny, "alice"),
			stage(2, approval.ModeAny, "bob", "erin")))
		runID := f.submit("dave", "/docs/x.pdf")
		alice := f.pendingID("alice")

		store.failNextUpdateTo(approval.StatusPending)
		expectStoreFailure(f.engine.Approve(as("alice"), alice, "ok"))
		Expect(store.failedWrites).To(Equal(1))
		Expect(describe(f.rows(runID))).To(Equal([]string{
			"alice:1:1:Approved", "bob:2:1:Waiting", "erin:2:1:Waiting",
		}))

		Expect(f.engine.Approve(as("alice"), alice, "ok")).To(BeNil())
		Expect(describe(f.rows(runID))).To(Equal([]string{
			"alice:1:1:Approved", "bob:2:1:Pending", "erin:2:1:Pending",
		}))
		Expect(f.auditActions(runID)).To(Equal([]string{"Submitted@1", "Approved@1", "StageAdvanced@2"}))
		status, err := f.engine.DeriveStatus(as("dave"), "/docs/x.pdf")
		Expect(err).To(BeNil())
		Expect(status).To(Equal("In Progress - Level 2 of 2"))

		Expect(f.engine.Approve(as("alice"), alice, "ok")).To(Equal(bizerror.ErrInvalidState))
		Expect(describe(f.rows(runID))).To(HaveLen(3))
	})

	t.Run("should finish the last stage when an approval is repeated after a failed supersede", func(t *testing.T) {
		store := &flakyStore{MemoryStore: itemstore.NewMemoryStore()}
		f := newFixtureOn(store)
		f.install(workflowFor("/docs", approval.ReturnToSubmitter, stage(1, approval.ModeAny, "alice", "bob")))
		runID := f.submit("dave", "/docs/x.pdf")
		alice := f.pendingID("alice")

		store.failNextUpdateTo(approval.StatusSuperseded)
		expectStoreFailure(f.engine.Approve(as("alice"), alice, ""))
		Expect(describe(f.rows(runID))).To(Equal([]string{"alice:1:1:Approved", "bob:1:1:Pending"}))

		Expect(f.engine.Approve(as("alice"), alice, "")).To(BeNil())
		Expect(describe(f.rows(runID))).To(Equal([]string{"alice:1:1:Approved", "bob:1:1:Superseded"}))
		Expect(f.auditActions(runID)).To(Equal([]string{"Submitted@1", "Approved@1", "Completed@1"}))

		Expect(f.engine.Approve(as("alice"), alice, "")).To(Equal(bizerror.ErrInvalidState))
		Expect(countOf(f.auditActions(runID), "Completed@1")).To(Equal(1))
	})

	t.Run("should record completion once when the last approvals of an All stage overlap", func(t *testing.T) {
		f := newFixture()
		f.install(workflowFor("/docs", approval.ReturnToSubmitter, stage(1, approval.ModeAll, "alice", "bob")))
		runID := f.submit("dave", "/docs/x.pdf")
		bob := f.pendingID("bob")

		// bob's decision lands while alice is still deciding
		Expect(f.store.Update(context.Background(), approval.InstanceCollection, bob,
			itemstore.Fields{"status": string(approval.StatusApproved)})).To(Succeed())
		Expect(f.engine.Approve(as("alice"), f.pendingID("alice"), "")).To(BeNil())
		Expect(f.engine.Approve(as("bob"), bob, "")).To(Equal(bizerror.ErrInvalidState))

		Expect(countOf(f.auditActions(runID), "Completed@1")).To(Equal(1))
		Expect(f.sent.Recipients("Completed")).To(Equal([]string{"dave"}))
	})
}

func TestRejectRetry(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should return to the previous level when a rejection is repeated after a failed insert", func(t *testing.T) {
		store := &flakyStore{MemoryStore: itemstore.NewMemoryStore()}
		f := newFixtureOn(store)
		f.install(workflowFor("/docs", approval.ReturnToPreviousLevel,
			stage(1, approval.ModeAny, "alice"), stage(2, approval.ModeAny, "bob")))
		runID := f.submit("dave", "/docs/x.pdf")
		Expect(f.engine.Approve(as("alice"), f.pendingID("alice"), "")).To(BeNil())
		bob := f.pendingID("bob")

		store.failNextInsert()
		expectStoreFailure(f.engine.Reject(as("bob"), bob, "wrong numbers"))
		Expect(describe(f.rows(runID))).To(Equal([]string{"alice:1:1:Approved", "bob:2:1:Rejected"}))

		Expect(f.engine.Reject(as("bob"), bob, "ignored on retry")).To(BeNil())
		Expect(describe(f.rows(runID))).To(Equal([]string{"alice:1:1:Approved", "bob:2:1:Rejected", "alice:1:2:Pending"}))
		actions := f.auditActions(runID)
		Expect(countOf(actions, "Rejected@2")).To(Equal(1))
		Expect(actions[len(actions)-1]).To(Equal("StageAdvanced@1"))
		Expect(f.sent.Recipients("Rejected")).To(Equal([]string{"dave"}))
		Expect(f.sent.Sent()[len(f.sent.Sent())-1].Message.Comment).To(Equal("wrong numbers"))

		Expect(f.engine.Reject(as("bob"), bob, "")).To(Equal(bizerror.ErrInvalidState))
		Expect(describe(f.rows(runID))).To(HaveLen(3))
	})

	t.Run("should cancel the remaining rows when a rejection is repeated after a failed cancel", func(t *testing.T) {
		store := &flakyStore{MemoryStore: itemstore.NewMemoryStore()}
		f := newFixtureOn(store)
		f.install(workflowFor("/docs", approval.ReturnToSubmitter, stage(1, approval.ModeAny, "alice", "bob")))
		runID := f.submit("dave", "/docs/x.pdf")
		alice := f.pendingID("alice")

		store.failNextUpdateTo(approval.StatusCancelled)
		expectStoreFailure(f.engine.Reject(as("alice"), alice, "no"))
		Expect(describe(f.rows(runID))).To(Equal([]string{"alice:1:1:Rejected", "bob:1:1:Pending"}))

		Expect(f.engine.Reject(as("alice"), alice, "no")).To(BeNil())
		Expect(describe(f.rows(runID))).To(Equal([]string{"alice:1:1:Rejected", "bob:1:1:Cancelled"}))
		Expect(f.auditActions(runID)).To(Equal([]string{"Submitted@1", "Rejected@1", "Cancelled@1"}))

		Expect(f.engine.Reject(as("alice"), alice, "no")).To(Equal(bizerror.ErrInvalidState))
	})
}
