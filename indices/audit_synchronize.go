package indices

import (
	"context"
	"docflow/audit"
	"docflow/bizerror"
	"docflow/domain/approval"
	"docflow/itemstore"
	"docflow/session"
	"fmt"
	"sync"

	"github.com/fundwit/go-commons/types"
	cron "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type auditSource interface {
	Query(ctx context.Context, collection string, q itemstore.Query) ([]itemstore.Item, error)
}

// ScheduleReindex starts a full sync in the background. It reports false when
// a sync is already running.
func (x *AuditIndex) ScheduleReindex(s *session.Session) (bool, error) {
	if s == nil || !s.Perms.IsWorkflowAdmin() {
		return false, bizerror.ErrForbidden
	}

	x.lock.Lock()
	if x.running {
		x.lock.Unlock()
		return false, nil
	}
	x.running = true
	x.lock.Unlock()

	waitRunning := sync.WaitGroup{}
	waitRunning.Add(1)
	go func() {
		waitRunning.Done()
		defer func() {
			x.lock.Lock()
			x.running = false
			x.lock.Unlock()
		}()
		if err := x.fullSync(context.Background()); err != nil {
			logrus.Warnf("audit index full sync: %v", err)
		}
	}()
	waitRunning.Wait()
	return true, nil
}

// FullSync walks the audit log in id order and indexes every entry. Document
// ids are entry ids, so a repeated sync overwrites.
func (x *AuditIndex) FullSync(ctx context.Context) (err error) {
	defer func() {
		if ret := recover(); ret != nil {
			e, ok := ret.(error)
			if ok {
				err = e
			} else {
				err = fmt.Errorf("error on audit index full sync: %v", ret)
			}
		}
	}()

	var cursor types.ID
	total := 0
	for {
		items, err := x.store.Query(ctx, audit.Collection, itemstore.Query{
			Where:   []itemstore.Predicate{itemstore.Gt("id", cursor)},
			OrderBy: "id",
			Limit:   x.batchSize,
		})
		if err != nil {
			return fmt.Errorf("retrieve audit entries after %d: %w", cursor, err)
		}
		if len(items) == 0 {
			logrus.Infof("audit index full sync: %d entries indexed", total)
			return nil
		}

		entries := make([]approval.AuditEntry, 0, len(items))
		for _, item := range items {
			entries = append(entries, audit.EntryFromItem(item))
		}
		if err := x.indexEntries(ctx, entries); err != nil {
			return fmt.Errorf("index audit entries after %d: %w", cursor, err)
		}
		total += len(entries)
		cursor = items[len(items)-1].ID
	}
}

// StartCron schedules periodic full syncs; spec has a leading seconds field.
func (x *AuditIndex) StartCron(spec string) (*cron.Cron, error) {
	crontab := cron.New(cron.WithSeconds())
	if _, err := crontab.AddFunc(spec, func() {
		if _, err := x.ScheduleReindex(session.SystemSession(context.Background())); err != nil {
			logrus.Warnf("audit index full sync not scheduled: %v", err)
		}
	}); err != nil {
		return nil, err
	}
	crontab.Start()
	return crontab, nil
}
