package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/rosprobe/internal/device"
	"github.com/ethpandaops/rosprobe/internal/units"
)

func TestEthernetMonitor_Copper(t *testing.T) {
	rec := device.Record{"name": "ether1", "status": "link-ok", "rate": "1Gbps"}

	out := drain(t, EthernetMonitor(records(rec), units.ParseBitsPerSecond))
	require.Len(t, out, 2)

	assert.Equal(t, Metric{
		Name:   "interface_link_rate_bps",
		Kind:   Gauge,
		Value:  1e9,
		Labels: Labels{{"interface", "ether1"}},
	}, out[0])

	assert.Equal(t, "interface_status", out[1].Name)
	assert.Equal(t, float64(1), out[1].Value)
	assert.Equal(t, Labels{{"interface", "ether1"}, {"status", "link-ok"}}, out[1].Labels)
}

func TestEthernetMonitor_SFP(t *testing.T) {
	rec := device.Record{
		"name":                   "sfp-sfpplus1",
		"status":                 "link-ok",
		"rate":                   "10Gbps",
		"sfp-module-present":     "true",
		"sfp-vendor-name":        "FS",
		"sfp-vendor-part-number": "SFP-10GSR-85",
		"sfp-temperature":        "34",
		"sfp-tx-power":           "-2.364",
		"sfp-rx-power":           "-3.01",
	}

	out := drain(t, EthernetMonitor(records(rec), units.ParseBitsPerSecond))
	require.Len(t, out, 5)

	sfpLabels := Labels{
		{"interface", "sfp-sfpplus1"},
		{"sfp_vendor_name", "FS"},
		{"sfp_vendor_part_number", "SFP-10GSR-85"},
	}

	assert.Equal(t, Labels{{"interface", "sfp-sfpplus1"}}, out[0].Labels)
	assert.Equal(t, float64(10e9), out[0].Value)

	assert.Equal(t, "interface_sfp_temperature_celsius", out[1].Name)
	assert.Equal(t, float64(34), out[1].Value)
	assert.Equal(t, sfpLabels, out[1].Labels)

	assert.Equal(t, "interface_sfp_transmitted_power_dbm", out[2].Name)
	assert.Equal(t, -2.364, out[2].Value)

	assert.Equal(t, "interface_sfp_received_power_dbm", out[3].Name)
	assert.Equal(t, -3.01, out[3].Value)

	assert.Equal(t, "interface_status", out[4].Name)
	assert.Equal(t, "link-ok", label(out[4], "status"))
	assert.Equal(t, "1", label(out[4], "sfp_module_present"))
}

func TestEthernetMonitor_UnknownRateFails(t *testing.T) {
	rec := device.Record{"name": "ether1", "status": "link-ok", "rate": "fast"}

	_, err := drainErr(EthernetMonitor(records(rec), units.ParseBitsPerSecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ether1")
}

func TestEthernetMonitor_NoLink(t *testing.T) {
	rec := device.Record{"name": "ether3", "status": "no-link", "sfp-module-present": "false"}

	out := drain(t, EthernetMonitor(records(rec), units.ParseBitsPerSecond))
	require.Len(t, out, 1)
	assert.Equal(t, "0", label(out[0], "sfp_module_present"))
	assert.Equal(t, "no-link", label(out[0], "status"))
}

func TestPoEMonitor(t *testing.T) {
	rec := device.Record{
		"name":            "ether2",
		"poe-out-status":  "powered-on",
		"poe-out-voltage": "53.2",
		"poe-out-current": "500",
	}

	out := drain(t, PoEMonitor(records(rec)))
	require.Len(t, out, 3)

	assert.Equal(t, "poe_out_voltage", out[0].Name)
	assert.Equal(t, 53.2, out[0].Value)

	assert.Equal(t, "poe_out_current", out[1].Name)
	assert.Equal(t, 0.5, out[1].Value)
	assert.Equal(t, Gauge, out[1].Kind)

	assert.Equal(t, "poe_out_status", out[2].Name)
	assert.Equal(t, Labels{{"interface", "ether2"}, {"status", "powered-on"}}, out[2].Labels)
}

func TestPoEMonitor_NotPowered(t *testing.T) {
	rec := device.Record{"name": "ether3", "poe-out-status": "waiting-for-load"}

	out := drain(t, PoEMonitor(records(rec)))
	require.Len(t, out, 1)
	assert.Equal(t, "poe_out_status", out[0].Name)
}
