package translate

import (
	"fmt"
	"iter"
	"strconv"

	"github.com/ethpandaops/rosprobe/internal/device"
)

// Error reason suffixes reported by /interface/ethernet/print stats.
var (
	ethernetReceiveErrorReasons = []string{
		"align-error", "carrier-error", "code-error", "error-events",
		"fcs-error", "fragment", "ip-header-checksum-error", "jabber",
		"length-error", "overflow", "runt", "tcp-checksum-error",
		"too-long", "too-short", "udp-checksum-error", "unknown-op",
	}
	ethernetTransmitErrorReasons = []string{
		"align-error", "collision", "deferred", "drop",
		"excessive-collision", "excessive-deferred", "fcs-error",
		"fragment", "carrier-sense-error", "late-collision",
		"multiple-collision", "overflow", "runt", "too-short",
		"single-collision", "too-long", "underrun",
	}
	ethernetPacketTypes = []string{
		"control", "pause", "broadcast", "multicast", "unicast",
	}
)

// Packet-size histogram layout. Bound 64 is a single field, every other
// finite bound b covers (previous bound, b], +Inf starts at 1024.
var (
	packetSizeBounds     = []int{64, 127, 255, 511, 1023}
	packetSizeDirections = []string{"tx-rx", "tx", "rx"}
)

// packetSizeField returns the stats field holding the count for bucket i
// (len(packetSizeBounds) is the +Inf bucket) in the given direction.
func packetSizeField(direction string, i int) string {
	switch {
	case i == 0:
		return fmt.Sprintf("%s-%d", direction, packetSizeBounds[0])
	case i == len(packetSizeBounds):
		return fmt.Sprintf("%s-%d-max", direction, packetSizeBounds[i-1]+1)
	default:
		return fmt.Sprintf("%s-%d-%d", direction, packetSizeBounds[i-1]+1, packetSizeBounds[i])
	}
}

func packetSizeLe(i int) string {
	if i == len(packetSizeBounds) {
		return "+Inf"
	}

	return strconv.Itoa(packetSizeBounds[i])
}

type reportKey struct {
	iface string
	field string
}

// Reported records which interface counters the ethernet statistics already
// exported so the interface category does not export them twice.
type Reported map[reportKey]struct{}

func (r Reported) add(iface, field string) {
	r[reportKey{iface: iface, field: field}] = struct{}{}
}

func (r Reported) has(iface, field string) bool {
	_, ok := r[reportKey{iface: iface, field: field}]

	return ok
}

// EthernetStats translates /interface/ethernet/print =stats= records into
// per-type packet counters, per-reason error counters and cumulative
// packet-size buckets.
func EthernetStats(
	records iter.Seq2[device.Record, error],
	reported Reported,
) iter.Seq2[Metric, error] {
	return eachRecord(records, func(rec device.Record) (batch, error) {
		return ethernetStats(rec, reported)
	})
}

func ethernetStats(rec device.Record, reported Reported) (batch, error) {
	name, ok := rec.Lookup("name")
	if !ok {
		return nil, fmt.Errorf("ethernet stats record missing field %q", "name")
	}

	labels := L("interface", name)

	var b batch

	for _, tp := range ethernetPacketTypes {
		for _, dir := range []struct{ prefix, metric string }{
			{"rx", "interface_received_packets_by_type_total"},
			{"tx", "interface_transmitted_packets_by_type_total"},
		} {
			v, ok, err := optionalFloat(rec, dir.prefix+"-"+tp)
			if err != nil {
				return nil, err
			}

			if ok {
				b.counter(dir.metric, v, labels.With("type", tp))
			}
		}
	}

	for _, set := range []struct {
		prefix  string
		metric  string
		reasons []string
	}{
		{"rx", "interface_receive_errors_by_reason_total", ethernetReceiveErrorReasons},
		{"tx", "interface_transmit_errors_by_reason_total", ethernetTransmitErrorReasons},
	} {
		for _, reason := range set.reasons {
			key := set.prefix + "-" + reason

			v, ok, err := optionalFloat(rec, key)
			if err != nil {
				return nil, err
			}

			if !ok {
				continue
			}

			b.counter(set.metric, v, labels.With("reason", reason))
			reported.add(name, key)
		}
	}

	buckets, err := packetSizeBuckets(rec, labels)
	if err != nil {
		return nil, err
	}

	return append(b, buckets...), nil
}

// packetSizeBuckets accumulates per-direction counts so that each bucket
// includes every smaller bucket. Absent fields count as zero.
func packetSizeBuckets(rec device.Record, labels Labels) (batch, error) {
	var (
		b   batch
		acc = make([]float64, len(packetSizeDirections))
	)

	for i := 0; i <= len(packetSizeBounds); i++ {
		le := packetSizeLe(i)

		for d, direction := range packetSizeDirections {
			v, _, err := optionalFloat(rec, packetSizeField(direction, i))
			if err != nil {
				return nil, err
			}

			acc[d] += v

			b.counter(
				"interface_packet_size_bytes_bucket",
				acc[d],
				labels.With("direction", direction).With("le", le),
			)
		}
	}

	return b, nil
}

// Interfaces translates /interface/print =stats= records. Every interface
// gets an info gauge; counters only for enabled, running interfaces.
func Interfaces(
	records iter.Seq2[device.Record, error],
	reported Reported,
) iter.Seq2[Metric, error] {
	return eachRecord(records, func(rec device.Record) (batch, error) {
		return iface(rec, reported)
	})
}

func iface(rec device.Record, reported Reported) (batch, error) {
	name, ok := rec.Lookup("name")
	if !ok {
		return nil, fmt.Errorf("interface record missing field %q", "name")
	}

	labels := L("interface", name)

	var b batch

	b.info("interface_info", labels.
		With("comment", rec.Get("comment", "")).
		With("type", rec.Get("type", "null")))

	running, err := parseBool(rec, "running")
	if err != nil {
		return nil, err
	}

	disabled, err := parseBool(rec, "disabled")
	if err != nil {
		return nil, err
	}

	if !running || disabled {
		return b, nil
	}

	for _, c := range []struct{ key, metric string }{
		{"rx-byte", "interface_received_bytes_total"},
		{"tx-byte", "interface_transmitted_bytes_total"},
		{"rx-packet", "interface_received_packets_total"},
		{"tx-packet", "interface_transmitted_packets_total"},
	} {
		v, err := requiredFloat(rec, c.key)
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", name, err)
		}

		b.counter(c.metric, v, labels)
	}

	// Drop counters exist only on some hardware and firmware.
	for _, d := range []struct{ key, metric, reason string }{
		{"rx-drop", "interface_receive_errors_by_reason_total", "drop"},
		{"tx-drop", "interface_transmit_errors_by_reason_total", "drop"},
		{"rx-queue-drop", "interface_receive_errors_by_reason_total", "queue-drop"},
		{"tx-queue-drop", "interface_transmit_errors_by_reason_total", "queue-drop"},
	} {
		if reported.has(name, d.key) {
			continue
		}

		v, ok, err := optionalFloat(rec, d.key)
		if err != nil {
			return nil, err
		}

		if ok {
			b.counter(d.metric, v, labels.With("reason", d.reason))
		}
	}

	for _, e := range []struct{ key, metric string }{
		{"rx-error", "interface_receive_errors_total"},
		{"tx-error", "interface_transmit_errors_total"},
	} {
		v, ok, err := optionalFloat(rec, e.key)
		if err != nil {
			return nil, err
		}

		if ok {
			b.counter(e.metric, v, labels)
		}
	}

	b.gauge("interface_running", 1, labels)

	// Some virtual interfaces have no MTU.
	mtu, ok, err := optionalFloat(rec, "actual-mtu")
	if err != nil {
		return nil, err
	}

	if ok {
		b.gauge("interface_actual_mtu_bytes", mtu, labels)
	}

	return b, nil
}
