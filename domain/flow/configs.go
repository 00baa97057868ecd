package flow

import (
	"context"
	"docflow/bizerror"
	"docflow/domain/approval"
	"docflow/itemstore"
	"docflow/session"
	"encoding/json"
	"errors"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const Collection = "workflow_configs"

const (
	listLimit      = 1000
	lookupCacheTTL = 30 * time.Second
)

// ConfigRecord is the table layout of Collection.
type ConfigRecord struct {
	ID                types.ID  `gorm:"column:id;primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name              string    `gorm:"column:name;type:varchar(255)"`
	CollectionRef     string    `gorm:"column:collection_ref;type:varchar(1024)"`
	CollectionKey     string    `gorm:"column:collection_key;type:varchar(768);index"`
	Levels            int       `gorm:"column:levels"`
	Stages            string    `gorm:"column:stages;type:text"`
	TriggerEvents     string    `gorm:"column:trigger_events;type:varchar(255)"`
	RejectionBehavior string    `gorm:"column:rejection_behavior;type:varchar(32)"`
	NotifyOnSubmit    bool      `gorm:"column:notify_on_submit"`
	NotifyOnApprove   bool      `gorm:"column:notify_on_approve"`
	NotifyOnReject    bool      `gorm:"column:notify_on_reject"`
	NotifyOnDelegate  bool      `gorm:"column:notify_on_delegate"`
	NotifyOnEscalate  bool      `gorm:"column:notify_on_escalate"`
	NotifyOnComplete  bool      `gorm:"column:notify_on_complete"`
	IsActive          bool      `gorm:"column:is_active"`
	CreateTime        time.Time `gorm:"column:create_time"`
}

type ConfigRepositoryTraits interface {
	ListConfigs(s *session.Session) ([]approval.WorkflowConfig, error)
	DetailConfig(s *session.Session, id types.ID) (*approval.WorkflowConfig, error)
	CreateConfig(s *session.Session, c *approval.WorkflowConfig) (*approval.WorkflowConfig, error)
	UpdateConfig(s *session.Session, id types.ID, c *approval.WorkflowConfig) (*approval.WorkflowConfig, error)
	DeleteConfig(s *session.Session, id types.ID) error
	ToggleConfig(s *session.Session, id types.ID, active bool) (*approval.WorkflowConfig, error)
}

// ConfigRepository stores workflow configs and answers which active config
// governs a collection. Lookups are cached for a short while and the cache
// is flushed on every write through this repository.
type ConfigRepository struct {
	store  itemstore.Store
	lookup *cache.Cache
	now    func() time.Time
}

func NewConfigRepository(store itemstore.Store) *ConfigRepository {
	return &ConfigRepository{
		store:  store,
		lookup: cache.New(lookupCacheTTL, 2*lookupCacheTTL),
		now:    time.Now,
	}
}

func (r *ConfigRepository) ListConfigs(s *session.Session) ([]approval.WorkflowConfig, error) {
	items, err := r.store.Query(s.Ctx(), Collection, itemstore.Query{OrderBy: "id", Limit: listLimit})
	if err != nil {
		return nil, bizerror.NewStoreFailure("list workflow configs", err)
	}
	configs := make([]approval.WorkflowConfig, 0, len(items))
	for _, item := range items {
		c, err := ConfigFromItem(item)
		if err != nil {
			logrus.Warnf("skip unreadable workflow config %s: %v", item.ID, err)
			continue
		}
		configs = append(configs, *c)
	}
	return configs, nil
}

func (r *ConfigRepository) DetailConfig(s *session.Session, id types.ID) (*approval.WorkflowConfig, error) {
	return r.load(s.Ctx(), id)
}

// ConfigForCollection returns the active config governing collectionRef, or
// nil when there is none.
func (r *ConfigRepository) ConfigForCollection(s *session.Session, collectionRef string) (*approval.WorkflowConfig, error) {
	key := approval.NormalizeRef(collectionRef)
	if key == "" {
		return nil, nil
	}
	if cached, found := r.lookup.Get(key); found {
		c, _ := cached.(*approval.WorkflowConfig)
		return copyConfig(c), nil
	}

	items, err := r.store.Query(s.Ctx(), Collection, itemstore.Query{
		Where:   []itemstore.Predicate{itemstore.Eq("collection_key", key), itemstore.Eq("is_active", true)},
		OrderBy: "id",
		Limit:   1,
	})
	if err != nil {
		return nil, bizerror.NewStoreFailure("query workflow config", err)
	}
	var found *approval.WorkflowConfig
	if len(items) > 0 {
		if found, err = ConfigFromItem(items[0]); err != nil {
			return nil, bizerror.NewStoreFailure("decode workflow config", err)
		}
	}
	r.lookup.SetDefault(key, found)
	return copyConfig(found), nil
}

func (r *ConfigRepository) CreateConfig(s *session.Session, c *approval.WorkflowConfig) (*approval.WorkflowConfig, error) {
	if !s.Perms.IsWorkflowAdmin() {
		return nil, bizerror.ErrForbidden
	}
	config := copyConfig(c)
	config.Normalize()
	if err := config.Validate(); err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}
	if err := r.ensureCollectionFree(s.Ctx(), config.CollectionKey(), 0); err != nil {
		return nil, err
	}

	config.IsActive = true
	config.CreateTime = r.now().Round(time.Millisecond)
	fields, err := ConfigFields(config)
	if err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}
	id, err := r.store.Insert(s.Ctx(), Collection, fields)
	if err != nil {
		return nil, bizerror.NewStoreFailure("insert workflow config", err)
	}
	config.ID = id
	r.lookup.Flush()
	return config, nil
}

// UpdateConfig replaces the definition of an existing config. Rows of runs
// already in flight keep the stage layout they were created with.
func (r *ConfigRepository) UpdateConfig(s *session.Session, id types.ID, c *approval.WorkflowConfig) (*approval.WorkflowConfig, error) {
	if !s.Perms.IsWorkflowAdmin() {
		return nil, bizerror.ErrForbidden
	}
	existing, err := r.load(s.Ctx(), id)
	if err != nil {
		return nil, err
	}

	config := copyConfig(c)
	config.Normalize()
	if err := config.Validate(); err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}
	if err := r.ensureCollectionFree(s.Ctx(), config.CollectionKey(), id); err != nil {
		return nil, err
	}

	config.ID = id
	config.IsActive = existing.IsActive
	config.CreateTime = existing.CreateTime
	fields, err := ConfigFields(config)
	if err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}
	delete(fields, "create_time")
	if err := r.store.Update(s.Ctx(), Collection, id, fields); err != nil {
		return nil, configWriteError("update workflow config", err)
	}
	r.lookup.Flush()
	return config, nil
}

// DeleteConfig refuses to remove a workflow that still has active runs.
func (r *ConfigRepository) DeleteConfig(s *session.Session, id types.ID) error {
	if !s.Perms.IsWorkflowAdmin() {
		return bizerror.ErrForbidden
	}
	if _, err := r.load(s.Ctx(), id); err != nil {
		return err
	}
	active, err := r.store.Query(s.Ctx(), approval.InstanceCollection, itemstore.Query{
		Where: []itemstore.Predicate{
			itemstore.Eq("workflow_id", id),
			itemstore.In("status", string(approval.StatusPending), string(approval.StatusWaiting)),
		},
		Limit: 1,
	})
	if err != nil {
		return bizerror.NewStoreFailure("query workflow references", err)
	}
	if len(active) > 0 {
		return bizerror.ErrWorkflowIsReferenced
	}
	if err := r.store.Delete(s.Ctx(), Collection, id); err != nil {
		return configWriteError("delete workflow config", err)
	}
	r.lookup.Flush()
	return nil
}

func (r *ConfigRepository) ToggleConfig(s *session.Session, id types.ID, active bool) (*approval.WorkflowConfig, error) {
	if !s.Perms.IsWorkflowAdmin() {
		return nil, bizerror.ErrForbidden
	}
	config, err := r.load(s.Ctx(), id)
	if err != nil {
		return nil, err
	}
	if config.IsActive == active {
		return config, nil
	}
	if active {
		if err := r.ensureCollectionFree(s.Ctx(), config.CollectionKey(), id); err != nil {
			return nil, err
		}
	}
	if err := r.store.Update(s.Ctx(), Collection, id, itemstore.Fields{"is_active": active}); err != nil {
		return nil, configWriteError("toggle workflow config", err)
	}
	config.IsActive = active
	r.lookup.Flush()
	return config, nil
}

func (r *ConfigRepository) load(ctx context.Context, id types.ID) (*approval.WorkflowConfig, error) {
	item, err := r.store.GetByID(ctx, Collection, id)
	if errors.Is(err, itemstore.ErrItemNotFound) {
		return nil, bizerror.ErrNotFound
	}
	if err != nil {
		return nil, bizerror.NewStoreFailure("load workflow config", err)
	}
	c, err := ConfigFromItem(*item)
	if err != nil {
		return nil, bizerror.NewStoreFailure("decode workflow config", err)
	}
	return c, nil
}

// ensureCollectionFree fails when another active config already governs key.
func (r *ConfigRepository) ensureCollectionFree(ctx context.Context, key string, self types.ID) error {
	items, err := r.store.Query(ctx, Collection, itemstore.Query{
		Where: []itemstore.Predicate{
			itemstore.Eq("collection_key", key),
			itemstore.Eq("is_active", true),
			itemstore.Ne("id", self),
		},
		Limit: 1,
	})
	if err != nil {
		return bizerror.NewStoreFailure("query workflow config", err)
	}
	if len(items) > 0 {
		return bizerror.ErrCollectionGoverned
	}
	return nil
}

func configWriteError(op string, err error) error {
	if errors.Is(err, itemstore.ErrItemNotFound) {
		return bizerror.ErrNotFound
	}
	return bizerror.NewStoreFailure(op, err)
}

func ConfigFields(c *approval.WorkflowConfig) (itemstore.Fields, error) {
	stages, err := json.Marshal(c.Stages)
	if err != nil {
		return nil, err
	}
	triggers, err := json.Marshal(c.TriggerEvents)
	if err != nil {
		return nil, err
	}
	return itemstore.Fields{
		"name":               c.Name,
		"collection_ref":     c.CollectionRef,
		"collection_key":     c.CollectionKey(),
		"levels":             c.Levels,
		"stages":             string(stages),
		"trigger_events":     string(triggers),
		"rejection_behavior": string(c.RejectionBehavior),
		"notify_on_submit":   c.NotifyOnSubmit,
		"notify_on_approve":  c.NotifyOnApprove,
		"notify_on_reject":   c.NotifyOnReject,
		"notify_on_delegate": c.NotifyOnDelegate,
		"notify_on_escalate": c.NotifyOnEscalate,
		"notify_on_complete": c.NotifyOnComplete,
		"is_active":          c.IsActive,
		"create_time":        c.CreateTime,
	}, nil
}

func ConfigFromItem(item itemstore.Item) (*approval.WorkflowConfig, error) {
	f := item.Fields
	c := &approval.WorkflowConfig{
		ID:                item.ID,
		Name:              f.String("name"),
		CollectionRef:     f.String("collection_ref"),
		Levels:            f.Int("levels"),
		RejectionBehavior: approval.RejectionBehavior(f.String("rejection_behavior")),
		NotifyOnSubmit:    f.Bool("notify_on_submit"),
		NotifyOnApprove:   f.Bool("notify_on_approve"),
		NotifyOnReject:    f.Bool("notify_on_reject"),
		NotifyOnDelegate:  f.Bool("notify_on_delegate"),
		NotifyOnEscalate:  f.Bool("notify_on_escalate"),
		NotifyOnComplete:  f.Bool("notify_on_complete"),
		IsActive:          f.Bool("is_active"),
	}
	if t := f.Time("create_time"); t != nil {
		c.CreateTime = *t
	}
	if raw := f.String("stages"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &c.Stages); err != nil {
			return nil, err
		}
	}
	if raw := f.String("trigger_events"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &c.TriggerEvents); err != nil {
			return nil, err
		}
	}
	c.Normalize()
	return c, nil
}

func copyConfig(c *approval.WorkflowConfig) *approval.WorkflowConfig {
	if c == nil {
		return nil
	}
	dup := *c
	dup.Stages = make([]approval.Stage, len(c.Stages))
	for i, s := range c.Stages {
		s.Approvers = append([]string(nil), s.Approvers...)
		dup.Stages[i] = s
	}
	dup.TriggerEvents = append([]approval.TriggerEvent(nil), c.TriggerEvents...)
	return &dup
}
