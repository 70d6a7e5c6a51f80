package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRewardOutcome(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.RewardOutcomes.WithLabelValues(OutcomeRewardPaid))
	RecordRewardOutcome(OutcomeRewardPaid)
	after := testutil.ToFloat64(DefaultMetrics.RewardOutcomes.WithLabelValues(OutcomeRewardPaid))
	assert.Equal(t, before+1, after)
}

func TestRecordPayout_FailureCountsStage(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.PayoutFailures.WithLabelValues("send"))
	RecordPayout("send", 0.2, 0, 0)
	assert.Equal(t, before+1, testutil.ToFloat64(DefaultMetrics.PayoutFailures.WithLabelValues("send")))
}

func TestRecordPayout_SuccessSetsGauge(t *testing.T) {
	RecordPayout("", 1.5, 0.03, 1_700_000_000)
	assert.Equal(t, float64(1_700_000_000), testutil.ToFloat64(DefaultMetrics.LastSuccessfulPayout))
}

func TestRecordDBQuery_CountsErrors(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.DBQueryErrors.WithLabelValues("memory", "test_op"))
	RecordDBQuery("memory", "test_op", 0.01, nil)
	RecordDBQuery("memory", "test_op", 0.01, errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(DefaultMetrics.DBQueryErrors.WithLabelValues("memory", "test_op")))
}

func TestHandler_ExposesNamespace(t *testing.T) {
	RecordTip(1.25)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "tip_ledger_ledger_tips_recorded_total"))
}
