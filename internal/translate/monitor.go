package translate

import (
	"fmt"
	"iter"

	"github.com/ethpandaops/rosprobe/internal/device"
)

// RateParser converts a human-readable link rate to bits per second.
type RateParser func(string) (uint64, error)

// EthernetMonitor translates /interface/ethernet/monitor =once= records:
// link rate, SFP diagnostics and operational status.
func EthernetMonitor(
	records iter.Seq2[device.Record, error],
	parseRate RateParser,
) iter.Seq2[Metric, error] {
	return eachRecord(records, func(rec device.Record) (batch, error) {
		return ethernetMonitor(rec, parseRate)
	})
}

func ethernetMonitor(rec device.Record, parseRate RateParser) (batch, error) {
	name, ok := rec.Lookup("name")
	if !ok {
		return nil, fmt.Errorf("ethernet monitor record missing field %q", "name")
	}

	labels := L("interface", name)

	var b batch

	if rate, ok := rec.Lookup("rate"); ok {
		bps, err := parseRate(rate)
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", name, err)
		}

		b.gauge("interface_link_rate_bps", float64(bps), labels)
	}

	if v, ok := rec.Lookup("sfp-vendor-name"); ok {
		labels = labels.With("sfp_vendor_name", v)
	}

	if v, ok := rec.Lookup("sfp-vendor-part-number"); ok {
		labels = labels.With("sfp_vendor_part_number", v)
	}

	for _, s := range []struct{ key, metric string }{
		{"sfp-temperature", "interface_sfp_temperature_celsius"},
		{"sfp-tx-power", "interface_sfp_transmitted_power_dbm"},
		{"sfp-rx-power", "interface_sfp_received_power_dbm"},
	} {
		v, ok, err := optionalFloat(rec, s.key)
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", name, err)
		}

		if ok {
			b.gauge(s.metric, v, labels)
		}
	}

	labels = labels.With("status", rec.Get("status", ""))

	if _, ok := rec.Lookup("sfp-module-present"); ok {
		present, err := parseBool(rec, "sfp-module-present")
		if err != nil {
			return nil, err
		}

		labels = labels.With("sfp_module_present", boolString(present))
	}

	b.info("interface_status", labels)

	return b, nil
}

// PoEMonitor translates /interface/ethernet/poe/monitor =once= records.
func PoEMonitor(records iter.Seq2[device.Record, error]) iter.Seq2[Metric, error] {
	return eachRecord(records, poeMonitor)
}

func poeMonitor(rec device.Record) (batch, error) {
	name, ok := rec.Lookup("name")
	if !ok {
		return nil, fmt.Errorf("poe monitor record missing field %q", "name")
	}

	labels := L("interface", name)

	var b batch

	voltage, ok, err := optionalFloat(rec, "poe-out-voltage")
	if err != nil {
		return nil, err
	}

	if ok {
		b.gauge("poe_out_voltage", voltage, labels)
	}

	// Reported in milliamps.
	current, ok, err := optionalFloat(rec, "poe-out-current")
	if err != nil {
		return nil, err
	}

	if ok {
		b.gauge("poe_out_current", current/1000, labels)
	}

	b.info("poe_out_status", labels.With("status", rec.Get("poe-out-status", "")))

	return b, nil
}
