package translate

import (
	"fmt"
	"iter"
	"net/netip"
	"strings"

	"github.com/ethpandaops/rosprobe/internal/device"
	"github.com/ethpandaops/rosprobe/internal/oui"
)

// BondMonitor translates the /interface/bonding/monitor =once= record of one
// bond into a gauge per member port: 1 active, 0 inactive.
func BondMonitor(bond string, records iter.Seq2[device.Record, error]) iter.Seq2[Metric, error] {
	return eachRecord(records, func(rec device.Record) (batch, error) {
		labels := L(
			"parent_interface", bond,
			"lacp_system_id", strings.ToLower(rec.Get("lacp-system-id", "")),
			"lacp_partner_system_id", strings.ToLower(rec.Get("lacp-partner-system-id", "")),
		)

		var b batch

		for _, set := range []struct {
			key   string
			value float64
		}{
			{"active-ports", 1},
			{"inactive-ports", 0},
		} {
			for _, port := range strings.Split(rec.Get(set.key, ""), ",") {
				if port == "" {
					continue
				}

				b.gauge("bond_port_active", set.value, labels.With("interface", port))
			}
		}

		return b, nil
	})
}

func vendorOf(vendors oui.Resolver, mac string) string {
	if vendors == nil || mac == "" {
		return ""
	}

	vendor, _ := vendors.Vendor(mac)

	return vendor
}

// BridgeHosts translates /interface/bridge/host/print.
func BridgeHosts(
	records iter.Seq2[device.Record, error],
	vendors oui.Resolver,
) iter.Seq2[Metric, error] {
	return eachRecord(records, func(rec device.Record) (batch, error) {
		mac, ok := rec.Lookup("mac-address")
		if !ok {
			return nil, fmt.Errorf("bridge host record missing field %q", "mac-address")
		}

		var b batch

		b.info("bridge_host_info", L(
			"mac", strings.ToLower(mac),
			"interface", rec.Get("interface", ""),
			"vid", rec.Get("vid", ""),
			"vendor", vendorOf(vendors, mac),
		))

		return b, nil
	})
}

func skipNeighborStatus(status string) bool {
	switch status {
	case "failed", "incomplete", "":
		return true
	default:
		return false
	}
}

// ARPNeighbors translates /ip/arp/print, skipping unresolved entries.
func ARPNeighbors(
	records iter.Seq2[device.Record, error],
	vendors oui.Resolver,
) iter.Seq2[Metric, error] {
	return eachRecord(records, func(rec device.Record) (batch, error) {
		status := rec.Get("status", "")
		if skipNeighborStatus(status) {
			return nil, nil
		}

		return neighbor(rec, "4", rec.Get("address", ""), status, vendors), nil
	})
}

// IPv6Neighbors translates /ipv6/neighbor/print, skipping unresolved,
// link-local and multicast entries. An address that does not parse cannot
// be classified and is skipped too.
func IPv6Neighbors(
	records iter.Seq2[device.Record, error],
	vendors oui.Resolver,
) iter.Seq2[Metric, error] {
	return eachRecord(records, func(rec device.Record) (batch, error) {
		status := rec.Get("status", "")
		if skipNeighborStatus(status) {
			return nil, nil
		}

		address, _, _ := strings.Cut(rec.Get("address", ""), "/")

		addr, err := netip.ParseAddr(address)
		if err != nil || addr.IsLinkLocalUnicast() || addr.IsMulticast() {
			return nil, nil
		}

		return neighbor(rec, "6", address, status, vendors), nil
	})
}

func neighbor(
	rec device.Record,
	ipVersion, address, status string,
	vendors oui.Resolver,
) batch {
	mac := rec.Get("mac-address", "")

	var b batch

	b.info("neighbor_host_info", L(
		"address", address,
		"version", ipVersion,
		"mac", strings.ToLower(mac),
		"interface", rec.Get("interface", ""),
		"status", status,
		"vendor", vendorOf(vendors, mac),
	))

	return b
}
