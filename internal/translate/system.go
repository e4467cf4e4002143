package translate

import (
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"

	"github.com/ethpandaops/rosprobe/internal/device"
)

// SystemResource translates /system/resource/print.
func SystemResource(records iter.Seq2[device.Record, error]) iter.Seq2[Metric, error] {
	return eachRecord(records, systemResource)
}

func systemResource(rec device.Record) (batch, error) {
	var b batch

	written, err := requiredFloat(rec, "write-sect-total")
	if err != nil {
		return nil, err
	}

	b.counter("system_written_sectors_total", written, nil)

	free, err := requiredFloat(rec, "free-memory")
	if err != nil {
		return nil, err
	}

	b.gauge("system_free_memory_bytes", free, nil)

	// Not reported by x86 and CHR.
	bad, ok, err := optionalFloat(rec, "bad-blocks")
	if err != nil {
		return nil, err
	}

	if ok {
		b.counter("system_bad_blocks_total", bad, nil)
	}

	var labels Labels
	for _, key := range []string{"version", "cpu", "cpu-count", "board-name", "architecture-name"} {
		labels = labels.With(strings.ReplaceAll(key, "-", "_"), rec.Get(key, ""))
	}

	b.info("system_version_info", labels)

	return b, nil
}

// Fields present on some boards that are deliberately not exported.
var ignoredHealthFields = map[string]struct{}{
	"power-consumption":   {}, // voltage * current
	"state":               {},
	"state-after-reboot":  {},
	"poe-out-consumption": {},
}

// SystemHealth translates /system/health/print. Older firmware returns a
// single record with one field per sensor, newer firmware one name/value
// record per sensor; both are normalized to the flat shape first.
//
// The whole category is buffered: an unrecognized field fails it with an
// *UnrecognizedSchemaError before any sample is yielded.
func SystemHealth(records iter.Seq2[device.Record, error]) iter.Seq2[Metric, error] {
	return func(yield func(Metric, error) bool) {
		var b batch

		for rec, err := range records {
			if err != nil {
				yield(Metric{}, err)

				return
			}

			flat := normalizeHealth(rec)

			keys := make([]string, 0, len(flat))
			for k := range flat {
				keys = append(keys, k)
			}

			slices.Sort(keys)

			for _, key := range keys {
				m, ok, err := classifyHealth(key, flat[key])
				if err != nil {
					yield(Metric{}, err)

					return
				}

				if ok {
					b = append(b, m)
				}
			}
		}

		for _, m := range b {
			if !yield(m, nil) {
				return
			}
		}
	}
}

// normalizeHealth returns the flat field->value form of a health record.
// API attributes such as .id are dropped.
func normalizeHealth(rec device.Record) device.Record {
	if name, ok := rec.Lookup("name"); ok {
		return device.Record{name: rec.Get("value", "")}
	}

	flat := make(device.Record, len(rec))
	for k, v := range rec {
		if strings.HasPrefix(k, ".") {
			continue
		}

		flat[k] = v
	}

	return flat
}

// classifyHealth maps one health field to a sample. Rules are checked in
// priority order; ok is false for ignored fields.
func classifyHealth(key, value string) (Metric, bool, error) {
	parse := func() (float64, error) {
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0, fmt.Errorf("parsing health %s=%q: %w", key, value, err)
		}

		return v, nil
	}

	gauge := func(name string, labels Labels) (Metric, bool, error) {
		v, err := parse()
		if err != nil {
			return Metric{}, false, err
		}

		return Metric{Name: name, Kind: Gauge, Value: v, Labels: labels}, true, nil
	}

	switch {
	case strings.HasPrefix(key, "board-temperature"):
		return gauge("system_health_temperature_celsius",
			L("component", "board"+strings.TrimPrefix(key, "board-temperature")))

	case key == "fan-state":
		return Metric{
			Name:   "system_health_fan_state_info",
			Kind:   Gauge,
			Value:  1,
			Labels: L("state", value),
		}, true, nil

	case strings.HasSuffix(key, "temperature"):
		component := strings.TrimSuffix(strings.TrimSuffix(key, "temperature"), "-")
		if component == "" {
			component = "system"
		}

		return gauge("system_health_temperature_celsius", L("component", component))

	case strings.HasPrefix(key, "fan") && strings.HasSuffix(key, "-speed"):
		return gauge("system_health_fan_speed_rpm",
			L("component", strings.TrimSuffix(key, "-speed")))

	case strings.HasPrefix(key, "psu") && strings.HasSuffix(key, "-state"):
		return Metric{
			Name:   "system_health_power_supply_state",
			Kind:   Gauge,
			Value:  1,
			Labels: L("state", value, "component", strings.TrimSuffix(key, "-state")),
		}, true, nil

	case strings.HasPrefix(key, "psu") && strings.HasSuffix(key, "-voltage"):
		return gauge("system_health_power_supply_voltage",
			L("component", strings.TrimSuffix(key, "-voltage")))

	case strings.HasPrefix(key, "psu") && strings.HasSuffix(key, "-current"):
		return gauge("system_health_power_supply_current",
			L("component", strings.TrimSuffix(key, "-current")))
	}

	if _, ok := ignoredHealthFields[key]; ok {
		return Metric{}, false, nil
	}

	return Metric{}, false, &UnrecognizedSchemaError{Category: "system health", Field: key}
}
