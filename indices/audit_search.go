package indices

import (
	"docflow/bizerror"
	"docflow/domain/approval"
	"docflow/es"
	"docflow/session"
	"encoding/json"
	"strings"
)

const (
	defaultSearchSize = 100
	maxSearchSize     = 1000
)

type AuditQuery struct {
	Text        string `form:"q" json:"q"`
	DocumentRef string `form:"documentRef" json:"documentRef"`
	Actor       string `form:"actor" json:"actor"`
	Action      string `form:"action" json:"action"`
	Size        int    `form:"size" json:"size" validate:"gte=0,lte=1000"`
}

// SearchAudit runs a full text search over indexed audit entries, newest first.
// DocumentRef matches the document itself and everything below it.
func (x *AuditIndex) SearchAudit(s *session.Session, q AuditQuery) ([]approval.AuditEntry, error) {
	if s == nil || s.NormalizedName() == "" {
		return nil, bizerror.ErrUnauthenticated
	}

	/*
		{
			"query": {"bool": {
				"must": [{"multi_match": {"query": "xxx", "fields": [...], "operator": "AND"}}],
				"filter": [
					{"term": {"actor": "alice"}},
					{"term": {"action": "Approved"}},
					{"prefix": {"documentKey": "/sites/legal"}}
				]
			}},
			"size": 100,
			"sort": [{"timestamp": {"order": "desc"}}]
		}
	*/
	must := make([]es.H, 0, 1)
	if text := strings.TrimSpace(q.Text); text != "" {
		must = append(must, es.H{"multi_match": es.H{
			"query":    text,
			"fields":   []string{"comment", "documentRef", "workflowName", "actor"},
			"operator": "AND",
		}})
	}
	filters := make([]es.H, 0, 3)
	if actor := strings.ToLower(strings.TrimSpace(q.Actor)); actor != "" {
		filters = append(filters, es.H{"term": es.H{"actor.keyword": actor}})
	}
	if action := strings.TrimSpace(q.Action); action != "" {
		filters = append(filters, es.H{"term": es.H{"action.keyword": action}})
	}
	if key := approval.NormalizeRef(q.DocumentRef); key != "" {
		filters = append(filters, es.H{"prefix": es.H{"documentKey.keyword": key}})
	}

	size := q.Size
	if size <= 0 {
		size = defaultSearchSize
	}
	if size > maxSearchSize {
		size = maxSearchSize
	}

	root := es.H{"bool": es.H{"must": must, "filter": filters}}
	sorts := []es.H{{"timestamp": es.H{"order": "desc"}}}
	r, err := x.backend.Search(s.Ctx(), AuditIndexName, es.H{"size": size, "query": root, "sort": sorts})
	if err != nil {
		return nil, err
	}

	entries := make([]approval.AuditEntry, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		doc := auditDocument{}
		if err := json.Unmarshal([]byte(hit.Source), &doc); err != nil {
			return nil, err
		}
		doc.AuditEntry.DocumentKey = doc.DocumentKey
		entries = append(entries, doc.AuditEntry)
	}
	return entries, nil
}
