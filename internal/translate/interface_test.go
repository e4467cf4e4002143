package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/rosprobe/internal/device"
)

func TestInterfaces_NotRunningOnlyInfo(t *testing.T) {
	rec := device.Record{
		"name":       "ether5",
		"type":       "ether",
		"running":    "false",
		"disabled":   "false",
		"rx-byte":    "100",
		"tx-byte":    "200",
		"rx-packet":  "1",
		"tx-packet":  "2",
		"rx-error":   "0",
		"tx-drop":    "0",
		"actual-mtu": "1500",
	}

	out := drain(t, Interfaces(records(rec), make(Reported)))
	require.Len(t, out, 1)

	assert.Equal(t, "interface_info", out[0].Name)
	assert.Equal(t, Gauge, out[0].Kind)
	assert.Equal(t, float64(1), out[0].Value)
	assert.Equal(t, Labels{
		{"interface", "ether5"},
		{"comment", ""},
		{"type", "ether"},
	}, out[0].Labels)
}

func TestInterfaces_DisabledOnlyInfo(t *testing.T) {
	rec := device.Record{
		"name":     "wlan1",
		"running":  "true",
		"disabled": "true",
		"comment":  "guest",
	}

	out := drain(t, Interfaces(records(rec), make(Reported)))
	require.Len(t, out, 1)
	assert.Equal(t, "guest", label(out[0], "comment"))
	assert.Equal(t, "null", label(out[0], "type"))
}

func TestInterfaces_Running(t *testing.T) {
	rec := device.Record{
		"name":       "ether1",
		"type":       "ether",
		"running":    "true",
		"disabled":   "false",
		"rx-byte":    "1000",
		"tx-byte":    "2000",
		"rx-packet":  "10",
		"tx-packet":  "20",
		"rx-error":   "3",
		"tx-error":   "4",
		"rx-drop":    "5",
		"tx-drop":    "6",
		"actual-mtu": "1500",
	}

	out := drain(t, Interfaces(records(rec), make(Reported)))

	byName := map[string]Metric{}
	for _, m := range out {
		byName[m.Name+"/"+label(m, "reason")] = m
	}

	assert.Equal(t, float64(1000), byName["interface_received_bytes_total/"].Value)
	assert.Equal(t, Counter, byName["interface_received_bytes_total/"].Kind)
	assert.Equal(t, float64(2000), byName["interface_transmitted_bytes_total/"].Value)
	assert.Equal(t, float64(10), byName["interface_received_packets_total/"].Value)
	assert.Equal(t, float64(20), byName["interface_transmitted_packets_total/"].Value)
	assert.Equal(t, float64(3), byName["interface_receive_errors_total/"].Value)
	assert.Equal(t, float64(4), byName["interface_transmit_errors_total/"].Value)
	assert.Equal(t, float64(5), byName["interface_receive_errors_by_reason_total/drop"].Value)
	assert.Equal(t, float64(6), byName["interface_transmit_errors_by_reason_total/drop"].Value)
	assert.Equal(t, float64(1), byName["interface_running/"].Value)
	assert.Equal(t, Gauge, byName["interface_running/"].Kind)
	assert.Equal(t, float64(1500), byName["interface_actual_mtu_bytes/"].Value)
}

func TestInterfaces_OptionalCountersAbsent(t *testing.T) {
	rec := device.Record{
		"name":      "bridge",
		"running":   "true",
		"rx-byte":   "1",
		"tx-byte":   "1",
		"rx-packet": "1",
		"tx-packet": "1",
	}

	out := drain(t, Interfaces(records(rec), make(Reported)))

	assert.Empty(t, named(out, "interface_receive_errors_total"))
	assert.Empty(t, named(out, "interface_receive_errors_by_reason_total"))
	assert.Empty(t, named(out, "interface_actual_mtu_bytes"))
	assert.Len(t, named(out, "interface_running"), 1)
}

func TestInterfaces_MissingRequiredCounter(t *testing.T) {
	rec := device.Record{"name": "ether1", "running": "true", "rx-byte": "1"}

	_, err := drainErr(Interfaces(records(rec), make(Reported)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tx-byte")
}

func TestInterfaces_SkipsDropsReportedByEthernetStats(t *testing.T) {
	reported := make(Reported)

	stats := device.Record{"name": "ether1", "tx-drop": "9"}
	drain(t, EthernetStats(records(stats), reported))

	rec := device.Record{
		"name":      "ether1",
		"running":   "true",
		"rx-byte":   "1",
		"tx-byte":   "1",
		"rx-packet": "1",
		"tx-packet": "1",
		"tx-drop":   "9",
	}

	out := drain(t, Interfaces(records(rec), reported))
	assert.Empty(t, named(out, "interface_transmit_errors_by_reason_total"))
}

func TestEthernetStats_TypesAndReasons(t *testing.T) {
	rec := device.Record{
		"name":         "ether1",
		"rx-broadcast": "7",
		"tx-unicast":   "8",
		"rx-fcs-error": "2",
		"tx-collision": "1",
		"rx-unknown":   "100",
	}

	out := drain(t, EthernetStats(records(rec), make(Reported)))

	rxType := named(out, "interface_received_packets_by_type_total")
	require.Len(t, rxType, 1)
	assert.Equal(t, "broadcast", label(rxType[0], "type"))
	assert.Equal(t, float64(7), rxType[0].Value)

	txType := named(out, "interface_transmitted_packets_by_type_total")
	require.Len(t, txType, 1)
	assert.Equal(t, "unicast", label(txType[0], "type"))

	rxErr := named(out, "interface_receive_errors_by_reason_total")
	require.Len(t, rxErr, 1)
	assert.Equal(t, "fcs-error", label(rxErr[0], "reason"))

	txErr := named(out, "interface_transmit_errors_by_reason_total")
	require.Len(t, txErr, 1)
	assert.Equal(t, "collision", label(txErr[0], "reason"))
}

func TestPacketSizeField(t *testing.T) {
	assert.Equal(t, "tx-rx-64", packetSizeField("tx-rx", 0))
	assert.Equal(t, "tx-65-127", packetSizeField("tx", 1))
	assert.Equal(t, "rx-128-255", packetSizeField("rx", 2))
	assert.Equal(t, "rx-256-511", packetSizeField("rx", 3))
	assert.Equal(t, "rx-512-1023", packetSizeField("rx", 4))
	assert.Equal(t, "tx-rx-1024-max", packetSizeField("tx-rx", 5))
}

func TestPacketSizeBuckets_Cumulative(t *testing.T) {
	rec := device.Record{
		"name":           "ether1",
		"tx-rx-64":       "10",
		"tx-rx-65-127":   "5",
		"tx-rx-128-255":  "3",
		"tx-rx-512-1023": "2",
		"tx-rx-1024-max": "1",
		"rx-64":          "4",
		"rx-1024-max":    "6",
	}

	out := named(drain(t, EthernetStats(records(rec), make(Reported))),
		"interface_packet_size_bytes_bucket")
	require.Len(t, out, 18)

	series := map[string][]Metric{}
	for _, m := range out {
		assert.Equal(t, Counter, m.Kind)

		dir := label(m, "direction")
		series[dir] = append(series[dir], m)
	}

	les := []string{"64", "127", "255", "511", "1023", "+Inf"}

	expected := map[string][]float64{
		"tx-rx": {10, 15, 18, 18, 20, 21},
		"tx":    {0, 0, 0, 0, 0, 0},
		"rx":    {4, 4, 4, 4, 4, 10},
	}

	for dir, want := range expected {
		require.Len(t, series[dir], len(les), dir)

		prev := -1.0

		for i, m := range series[dir] {
			assert.Equal(t, les[i], label(m, "le"))
			assert.Equal(t, want[i], m.Value, "%s le=%s", dir, les[i])
			assert.GreaterOrEqual(t, m.Value, prev)
			assert.Equal(t, "ether1", label(m, "interface"))

			prev = m.Value
		}
	}
}

func TestPacketSizeBuckets_InvalidValue(t *testing.T) {
	rec := device.Record{"name": "ether1", "rx-64": "lots"}

	_, err := drainErr(EthernetStats(records(rec), make(Reported)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rx-64")
}
