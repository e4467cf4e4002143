package translate

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"

	"github.com/ethpandaops/rosprobe/internal/device"
	"github.com/ethpandaops/rosprobe/internal/oui"
	"github.com/ethpandaops/rosprobe/internal/units"
)

// Options selects optional categories and collaborators for a scrape.
type Options struct {
	// Extended adds bridge host and ARP/IPv6 neighbor tables.
	Extended bool
	// Vendors resolves MAC addresses for the extended categories.
	Vendors oui.Resolver
	// ParseRate converts ethernet link rates to bits per second.
	// Defaults to units.ParseBitsPerSecond.
	ParseRate RateParser
}

// Identity returns the device's configured identity name.
func Identity(ctx context.Context, q device.Querier) (string, error) {
	var name string

	for rec, err := range q.Query(ctx, "/system/identity/print") {
		if err != nil {
			return "", err
		}

		name = rec.Get("name", "")
	}

	return name, nil
}

// Scrape runs every category against q in a fixed order. Queries are
// issued lazily as the sequence is consumed; stopping early issues no
// further queries.
func Scrape(ctx context.Context, q device.Querier, opts Options) iter.Seq2[Metric, error] {
	reported := make(Reported)

	parseRate := opts.ParseRate
	if parseRate == nil {
		parseRate = units.ParseBitsPerSecond
	}

	seqs := []iter.Seq2[Metric, error]{
		SystemResource(q.Query(ctx, "/system/resource/print")),
		SystemHealth(q.Query(ctx, "/system/health/print")),
		bonds(ctx, q),
		EthernetStats(q.Query(ctx, "/interface/ethernet/print", "=stats="), reported),
		Interfaces(q.Query(ctx, "/interface/print", "=stats="), reported),
		ethernetMonitors(ctx, q, parseRate),
		poeMonitors(ctx, q),
	}

	if opts.Extended {
		seqs = append(seqs,
			BridgeHosts(q.Query(ctx, "/interface/bridge/host/print"), opts.Vendors),
			ARPNeighbors(q.Query(ctx, "/ip/arp/print"), opts.Vendors),
			IPv6Neighbors(q.QueryOptional(ctx, "/ipv6/neighbor/print"), opts.Vendors),
		)
	}

	return concat(seqs...)
}

type bond struct {
	id   string
	name string
}

// bonds enumerates distinct bond interfaces and monitors each once.
func bonds(ctx context.Context, q device.Querier) iter.Seq2[Metric, error] {
	return func(yield func(Metric, error) bool) {
		var found []bond

		for rec, err := range q.Query(ctx, "/interface/bonding/print") {
			if err != nil {
				yield(Metric{}, err)

				return
			}

			id, ok := rec.Lookup(".id")
			if !ok {
				yield(Metric{}, fmt.Errorf("bonding record missing field %q", ".id"))

				return
			}

			b := bond{id: id, name: rec.Get("name", "")}
			if !slices.Contains(found, b) {
				found = append(found, b)
			}
		}

		slices.SortFunc(found, func(a, b bond) int { return strings.Compare(a.name, b.name) })

		for _, b := range found {
			monitor := q.Query(ctx, "/interface/bonding/monitor", "=.id="+b.id, "=once=")
			for m, err := range BondMonitor(b.name, monitor) {
				if !yield(m, err) || err != nil {
					return
				}
			}
		}
	}
}

// numbers builds the =numbers= argument selecting the first n items.
func numbers(n int) string {
	idx := make([]string, n)
	for i := range idx {
		idx[i] = strconv.Itoa(i)
	}

	return "=numbers=" + strings.Join(idx, ",")
}

// count drains records and returns how many there were.
func count(records iter.Seq2[device.Record, error]) (int, error) {
	n := 0

	for _, err := range records {
		if err != nil {
			return 0, err
		}

		n++
	}

	return n, nil
}

func ethernetMonitors(ctx context.Context, q device.Querier, parseRate RateParser) iter.Seq2[Metric, error] {
	return func(yield func(Metric, error) bool) {
		ports, err := count(q.Query(ctx, "/interface/ethernet/print"))
		if err != nil {
			yield(Metric{}, err)

			return
		}

		if ports == 0 {
			return
		}

		monitor := q.Query(ctx, "/interface/ethernet/monitor", "=once=", numbers(ports))
		for m, err := range EthernetMonitor(monitor, parseRate) {
			if !yield(m, err) || err != nil {
				return
			}
		}
	}
}

// poeMonitors only queries the PoE monitor when the device has PoE ports.
func poeMonitors(ctx context.Context, q device.Querier) iter.Seq2[Metric, error] {
	return func(yield func(Metric, error) bool) {
		ports, err := count(q.QueryOptional(ctx, "/interface/ethernet/poe/print"))
		if err != nil {
			yield(Metric{}, err)

			return
		}

		if ports == 0 {
			return
		}

		monitor := q.Query(ctx, "/interface/ethernet/poe/monitor", "=once=", numbers(ports))
		for m, err := range PoEMonitor(monitor) {
			if !yield(m, err) || err != nil {
				return
			}
		}
	}
}
