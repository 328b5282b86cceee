package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()

	m.OrderTransitioned("pending", "in_progress")
	m.OrderTransitioned("pending", "in_progress")
	m.NotificationCreated("order")
	m.PromotionResolved("accepted")
	m.ReviewCreated()
	m.TransactionRetried("create_order")
	m.TransactionFailed("create_order")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.orderTransitions.WithLabelValues("pending", "in_progress")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationsCreated.WithLabelValues("order")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.promotionResolutions.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reviewsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transactionRetries.WithLabelValues("create_order")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transactionFailures.WithLabelValues("create_order")))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	m.ReviewCreated()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "gigmarket_reviews_created_total 1")
}
