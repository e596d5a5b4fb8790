package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestIncRestartBumpsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	regOK.Store(false)
	require.NoError(t, Register(reg))

	IncRestart("corevars")
	IncRestart("corevars")

	mf, err := reg.Gather()
	require.NoError(t, err)

	var got float64
	for _, f := range mf {
		if f.GetName() != "procguard_record_restarts_total" {
			continue
		}
		for _, m := range f.Metric {
			if labelValue(m, "id") == "corevars" {
				got = m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(2), got)
}

func TestSetStateSecondsRecordsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	regOK.Store(false)
	require.NoError(t, Register(reg))

	SetStateSeconds("corevars", "WAITING", 3.5)

	mf, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range mf {
		if f.GetName() != "procguard_record_state_seconds" {
			continue
		}
		for _, m := range f.Metric {
			if labelValue(m, "id") == "corevars" && labelValue(m, "state") == "WAITING" {
				found = true
				assert.Equal(t, 3.5, m.GetGauge().GetValue())
			}
		}
	}
	assert.True(t, found, "expected a state_seconds sample for corevars/WAITING")
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.Label {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
