package audit

import (
	"context"
	"docflow/domain/approval"
	"testing"

	. "github.com/onsi/gomega"
)

func TestInvokeHandlers(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should invoke all handlers and collect results", func(t *testing.T) {
		handlers := []Handler{
			func(ctx context.Context, e *approval.AuditEntry) *HandleResult {
				return nil
			},
			func(ctx context.Context, e *approval.AuditEntry) *HandleResult {
				return &HandleResult{Success: true, Message: "success", HandlerIdentifier: "all-success-handler"}
			},
			func(ctx context.Context, e *approval.AuditEntry) *HandleResult {
				panic("index unavailable")
			},
			func(ctx context.Context, e *approval.AuditEntry) *HandleResult {
				return &HandleResult{Success: false, Message: "failure", HandlerIdentifier: "all-failure-handler"}
			},
		}

		ret := invokeHandlers(context.Background(), handlers, &approval.AuditEntry{ID: 1, Action: approval.ActionApproved})
		Expect(ret).To(Equal([]HandleResult{
			{Success: true, Message: "success", HandlerIdentifier: "all-success-handler"},
			{Success: false, Message: "failure", HandlerIdentifier: "all-failure-handler"},
		}))
	})
}
