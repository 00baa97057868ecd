package approval

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/go-playground/validator/v10"
)

type ApprovalMode string

const (
	ModeAny ApprovalMode = "Any"
	ModeAll ApprovalMode = "All"
)

type RejectionBehavior string

const (
	ReturnToSubmitter     RejectionBehavior = "ReturnToSubmitter"
	ReturnToPreviousLevel RejectionBehavior = "ReturnToPreviousLevel"
	RestartWorkflow       RejectionBehavior = "RestartWorkflow"
)

type TriggerEvent string

const (
	TriggerManual TriggerEvent = "Manual"
	TriggerUpload TriggerEvent = "Upload"
	TriggerUpdate TriggerEvent = "Update"
)

// DefaultDueInDays applies when a stage can no longer be resolved from its config.
const DefaultDueInDays = 3

type Stage struct {
	Level           int          `json:"level" validate:"min=1"`
	Approvers       []string     `json:"approvers" validate:"required,min=1,dive,required"`
	ApprovalMode    ApprovalMode `json:"approvalMode" validate:"oneof=Any All"`
	DueInDays       int          `json:"dueInDays" validate:"min=0"`
	EscalateTo      string       `json:"escalateTo"`
	AllowDelegation bool         `json:"allowDelegation"`
}

type WorkflowConfig struct {
	ID                types.ID          `json:"id"`
	Name              string            `json:"name" validate:"required"`
	CollectionRef     string            `json:"collectionRef" validate:"required"`
	Levels            int               `json:"levels" validate:"min=1"`
	Stages            []Stage           `json:"stages" validate:"required,dive"`
	TriggerEvents     []TriggerEvent    `json:"triggerEvents" validate:"dive,oneof=Manual Upload Update"`
	RejectionBehavior RejectionBehavior `json:"rejectionBehavior" validate:"oneof=ReturnToSubmitter ReturnToPreviousLevel RestartWorkflow"`

	NotifyOnSubmit   bool `json:"notifyOnSubmit"`
	NotifyOnApprove  bool `json:"notifyOnApprove"`
	NotifyOnReject   bool `json:"notifyOnReject"`
	NotifyOnDelegate bool `json:"notifyOnDelegate"`
	NotifyOnEscalate bool `json:"notifyOnEscalate"`
	NotifyOnComplete bool `json:"notifyOnComplete"`

	IsActive   bool      `json:"isActive"`
	CreateTime time.Time `json:"createTime"`
}

var configValidator = validator.New()

// Normalize applies defaults and canonical spelling of the enumerations, and
// sorts stages by level.
func (c *WorkflowConfig) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.CollectionRef = strings.TrimSpace(c.CollectionRef)
	c.RejectionBehavior = canonicalBehavior(c.RejectionBehavior)

	triggers := make([]TriggerEvent, 0, len(c.TriggerEvents))
	for _, t := range c.TriggerEvents {
		canonical := CanonicalTrigger(string(t))
		if !containsTrigger(triggers, canonical) {
			triggers = append(triggers, canonical)
		}
	}
	if len(triggers) == 0 {
		triggers = []TriggerEvent{TriggerManual}
	}
	c.TriggerEvents = triggers

	for i := range c.Stages {
		s := &c.Stages[i]
		s.ApprovalMode = canonicalMode(s.ApprovalMode)
		s.EscalateTo = strings.TrimSpace(s.EscalateTo)
		approvers := make([]string, 0, len(s.Approvers))
		for _, a := range s.Approvers {
			if a = NormalizeIdentity(a); a != "" && !containsString(approvers, a) {
				approvers = append(approvers, a)
			}
		}
		s.Approvers = approvers
	}
	sort.SliceStable(c.Stages, func(i, j int) bool { return c.Stages[i].Level < c.Stages[j].Level })
}

// Validate checks field constraints and that stage levels are exactly 1..Levels.
func (c *WorkflowConfig) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}
	if len(c.Stages) != c.Levels {
		return fmt.Errorf("workflow declares %d levels but defines %d stages", c.Levels, len(c.Stages))
	}
	seen := map[int]bool{}
	for _, s := range c.Stages {
		if s.Level < 1 || s.Level > c.Levels {
			return fmt.Errorf("stage level %d is out of range 1..%d", s.Level, c.Levels)
		}
		if seen[s.Level] {
			return fmt.Errorf("stage level %d is defined more than once", s.Level)
		}
		seen[s.Level] = true
	}
	return nil
}

func (c *WorkflowConfig) StageAt(level int) (*Stage, bool) {
	for i := range c.Stages {
		if c.Stages[i].Level == level {
			return &c.Stages[i], true
		}
	}
	return nil, false
}

func (c *WorkflowConfig) AcceptsTrigger(trigger TriggerEvent) bool {
	return containsTrigger(c.TriggerEvents, CanonicalTrigger(string(trigger)))
}

// CollectionKey is the normalized form of CollectionRef used for lookups.
func (c *WorkflowConfig) CollectionKey() string {
	return NormalizeRef(c.CollectionRef)
}

// NormalizeRef unescapes, trims and lower-cases a collection or document reference.
func NormalizeRef(ref string) string {
	if unescaped, err := url.PathUnescape(ref); err == nil {
		ref = unescaped
	}
	ref = strings.ToLower(strings.TrimSpace(ref))
	if len(ref) > 1 {
		ref = strings.TrimRight(ref, "/")
	}
	return ref
}

func NormalizeIdentity(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func SameIdentity(a, b string) bool {
	return NormalizeIdentity(a) == NormalizeIdentity(b)
}

func CanonicalTrigger(t string) TriggerEvent {
	for _, known := range []TriggerEvent{TriggerManual, TriggerUpload, TriggerUpdate} {
		if strings.EqualFold(strings.TrimSpace(t), string(known)) {
			return known
		}
	}
	return TriggerEvent(strings.TrimSpace(t))
}

func canonicalMode(m ApprovalMode) ApprovalMode {
	switch {
	case strings.TrimSpace(string(m)) == "":
		return ModeAny
	case strings.EqualFold(string(m), string(ModeAll)):
		return ModeAll
	case strings.EqualFold(string(m), string(ModeAny)):
		return ModeAny
	}
	return m
}

func canonicalBehavior(b RejectionBehavior) RejectionBehavior {
	if strings.TrimSpace(string(b)) == "" {
		return ReturnToSubmitter
	}
	for _, known := range []RejectionBehavior{ReturnToSubmitter, ReturnToPreviousLevel, RestartWorkflow} {
		if strings.EqualFold(string(b), string(known)) {
			return known
		}
	}
	return b
}

func containsTrigger(list []TriggerEvent, t TriggerEvent) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
