package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"go-proposal-review/internal/model"
)

func TestObserveTransition(t *testing.T) {
	counter := statusTransitions.WithLabelValues(string(model.ProposalDraft), string(model.ProposalPendingApproval))
	before := testutil.ToFloat64(counter)

	ObserveTransition(model.ProposalDraft, model.ProposalPendingApproval)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestObserveDecision(t *testing.T) {
	counter := approvalDecisions.WithLabelValues(string(model.ApprovalRejected))
	before := testutil.ToFloat64(counter)

	ObserveDecision(model.ApprovalRejected)
	ObserveDecision(model.ApprovalRejected)

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestObserveRequest_StatusClass(t *testing.T) {
	counter := httpRequests.WithLabelValues("GET", "/api/v1/proposals/:id", "4xx")
	before := testutil.ToFloat64(counter)

	ObserveRequest("GET", "/api/v1/proposals/:id", 404, 3*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
	assert.Equal(t, "5xx", statusClass(503))
	assert.Equal(t, "2xx", statusClass(201))
}
