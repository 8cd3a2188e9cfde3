package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue sums every series of the named counter whose labels
// include want.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue series
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestImportMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewImportMetrics(reg)

	m.ObserveImport("3", nil, 20*time.Millisecond)
	m.ObserveImport("2", errors.New("boom"), time.Millisecond)
	m.AddEvents(map[string]int{"polarity": 10, "imu6": 2})
	m.AddEvents(map[string]int{"polarity": 5})
	m.AddPackets(7)
	m.AddWarnings(1)
	m.IndexCache("miss")
	m.IndexCache("save")

	assert.Equal(t, 1.0, counterValue(t, reg, "aedat_imports_total", map[string]string{"version": "3", "result": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "aedat_imports_total", map[string]string{"result": "error"}))
	assert.Equal(t, 15.0, counterValue(t, reg, "aedat_events_decoded_total", map[string]string{"kind": "polarity"}))
	assert.Equal(t, 2.0, counterValue(t, reg, "aedat_events_decoded_total", map[string]string{"kind": "imu6"}))
	assert.Equal(t, 7.0, counterValue(t, reg, "aedat_packets_indexed_total", nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "aedat_decode_warnings_total", nil))
	assert.Equal(t, 2.0, counterValue(t, reg, "aedat_index_cache_total", nil))
}

func TestImportMetrics_Nil(t *testing.T) {
	var m *ImportMetrics
	assert.NotPanics(t, func() {
		m.ObserveImport("1", nil, time.Second)
		m.AddEvents(map[string]int{"special": 1})
		m.AddPackets(1)
		m.AddWarnings(1)
		m.IndexCache("hit")
	})
}
