package metrics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tripstate/pkg/types"
)

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ResultOK},
		{&types.ValidationError{Entity: "trip", Field: "budget"}, ResultValidation},
		{fmt.Errorf("wrapped: %w", &types.InvalidTransitionError{}), ResultInvalidTransition},
		{&types.NotFoundError{}, ResultNotFound},
		{&types.DependentDataError{}, ResultDependentData},
		{&types.ConcurrencyConflictError{}, ResultConflict},
		{errors.New("disk full"), ResultError},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Result(tt.err))
		})
	}
}

func TestRecorderObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.Observe("create_version", time.Now(), nil)
	r.Observe("create_version", time.Now(), nil)
	r.Observe("transition_trip", time.Now(), &types.InvalidTransitionError{})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.ops.WithLabelValues("create_version", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ops.WithLabelValues("transition_trip", ResultInvalidTransition)))
	assert.Equal(t, 2, testutil.CollectAndCount(r.duration))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() { r.Observe("append", time.Now(), nil) })
}

type fakeSource struct {
	stats *types.StoreStats
	err   error
}

func (f fakeSource) Stats(context.Context) (*types.StoreStats, error) { return f.stats, f.err }

func TestStoreCollector(t *testing.T) {
	c := NewStoreCollector(fakeSource{stats: &types.StoreStats{
		Users:           2,
		TripsByStatus:   map[types.TripStatus]int{types.TripStatusDraft: 3, types.TripStatusConfirmed: 1},
		PlansByStatus:   map[types.PlanStatus]int{types.PlanStatusDraft: 4, types.PlanStatusApproved: 1},
		TripMessages:    7,
		PreTripMessages: 2,
	}})

	expected := `
# HELP tripstate_trips Stored trips by status.
# TYPE tripstate_trips gauge
tripstate_trips{status="cancelled"} 0
tripstate_trips{status="completed"} 0
tripstate_trips{status="confirmed"} 1
tripstate_trips{status="draft"} 3
tripstate_trips{status="in_progress"} 0
# HELP tripstate_chat_messages Stored chat messages by stream.
# TYPE tripstate_chat_messages gauge
tripstate_chat_messages{stream="pre_trip"} 2
tripstate_chat_messages{stream="trip"} 7
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"tripstate_trips", "tripstate_chat_messages")
	require.NoError(t, err)
	assert.Equal(t, 1+5+3+2, testutil.CollectAndCount(c))
}

func TestStoreCollectorError(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewStoreCollector(fakeSource{err: types.ErrStoreDetached}))

	_, err := reg.Gather()
	assert.ErrorContains(t, err, "store is detached")
}

func TestWriteText(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	r.Observe("append", time.Now(), nil)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, reg))
	assert.Contains(t, buf.String(), `tripstate_operations_total{op="append",result="ok"} 1`)
	assert.Contains(t, buf.String(), "# TYPE tripstate_operation_duration_seconds histogram")
}
