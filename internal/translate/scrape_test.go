package translate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/rosprobe/internal/device"
)

func routerReplies() map[string][]device.Record {
	return map[string][]device.Record{
		"/system/identity/print": {{"name": "core-sw"}},
		"/system/resource/print": {{
			"write-sect-total": "10", "free-memory": "20", "version": "7.14",
			"cpu": "ARM", "cpu-count": "2", "board-name": "hEX", "architecture-name": "arm",
		}},
		"/system/health/print": {
			{"name": "cpu-temperature", "value": "50"},
		},
		"/interface/bonding/print": {
			{".id": "*B", "name": "bond2"},
			{".id": "*A", "name": "bond1"},
			{".id": "*A", "name": "bond1"},
		},
		"/interface/bonding/monitor =.id=*A =once=": {
			{"lacp-system-id": "AA", "active-ports": "ether1", "inactive-ports": ""},
		},
		"/interface/bonding/monitor =.id=*B =once=": {
			{"lacp-system-id": "BB", "active-ports": "", "inactive-ports": "ether4"},
		},
		"/interface/ethernet/print =stats=": {
			{"name": "ether1", "rx-64": "1", "rx-unicast": "5"},
		},
		"/interface/print =stats=": {
			{"name": "ether1", "type": "ether", "running": "true", "disabled": "false",
				"rx-byte": "1", "tx-byte": "2", "rx-packet": "3", "tx-packet": "4", "actual-mtu": "1500"},
			{"name": "ether2", "type": "ether", "running": "false", "disabled": "false"},
		},
		"/interface/ethernet/print": {{"name": "ether1"}, {"name": "ether2"}},
		"/interface/ethernet/monitor =once= =numbers=0,1": {
			{"name": "ether1", "status": "link-ok", "rate": "1Gbps"},
			{"name": "ether2", "status": "no-link"},
		},
		"/interface/ethernet/poe/print": {{"name": "ether2"}},
		"/interface/ethernet/poe/monitor =once= =numbers=0": {
			{"name": "ether2", "poe-out-status": "powered-on", "poe-out-current": "250"},
		},
		"/interface/bridge/host/print": {{"mac-address": "AA:BB:CC:DD:EE:FF", "interface": "ether1"}},
		"/ip/arp/print": {{"address": "10.0.0.1", "mac-address": "AA:BB:CC:DD:EE:FF", "interface": "bridge", "status": "reachable"}},
		"/ipv6/neighbor/print": {{"address": "2001:db8::1", "mac-address": "AA:BB:CC:DD:EE:FF", "interface": "bridge", "status": "reachable"}},
	}
}

func TestIdentity(t *testing.T) {
	q := &fakeQuerier{replies: routerReplies()}

	name, err := Identity(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "core-sw", name)
}

func TestScrape_QueryOrder(t *testing.T) {
	q := &fakeQuerier{replies: routerReplies()}

	drain(t, Scrape(context.Background(), q, Options{}))

	assert.Equal(t, []string{
		"/system/resource/print",
		"/system/health/print",
		"/interface/bonding/print",
		"/interface/bonding/monitor =.id=*A =once=",
		"/interface/bonding/monitor =.id=*B =once=",
		"/interface/ethernet/print =stats=",
		"/interface/print =stats=",
		"/interface/ethernet/print",
		"/interface/ethernet/monitor =once= =numbers=0,1",
		"/interface/ethernet/poe/print",
		"/interface/ethernet/poe/monitor =once= =numbers=0",
	}, q.issued)
}

func TestScrape_Extended(t *testing.T) {
	q := &fakeQuerier{replies: routerReplies()}

	out := drain(t, Scrape(context.Background(), q, Options{Extended: true}))

	assert.Len(t, named(out, "bridge_host_info"), 1)
	assert.Len(t, named(out, "neighbor_host_info"), 2)
	assert.Contains(t, q.issued, "/ipv6/neighbor/print")
}

func TestScrape_KindsAreConsistent(t *testing.T) {
	q := &fakeQuerier{replies: routerReplies()}

	out := drain(t, Scrape(context.Background(), q, Options{Extended: true}))
	require.NotEmpty(t, out)

	kinds := map[string]Kind{}
	for _, m := range out {
		if k, ok := kinds[m.Name]; ok {
			assert.Equal(t, k, m.Kind, m.Name)
		}

		kinds[m.Name] = m.Kind
	}
}

func TestScrape_Samples(t *testing.T) {
	q := &fakeQuerier{replies: routerReplies()}

	out := drain(t, Scrape(context.Background(), q, Options{}))

	bonds := named(out, "bond_port_active")
	require.Len(t, bonds, 2)
	assert.Equal(t, "bond1", label(bonds[0], "parent_interface"))
	assert.Equal(t, "aa", label(bonds[0], "lacp_system_id"))
	assert.Equal(t, "bond2", label(bonds[1], "parent_interface"))

	assert.Len(t, named(out, "interface_info"), 2)
	assert.Len(t, named(out, "interface_received_bytes_total"), 1)
	assert.Len(t, named(out, "interface_link_rate_bps"), 1)
	assert.Len(t, named(out, "interface_status"), 2)

	current := named(out, "poe_out_current")
	require.Len(t, current, 1)
	assert.Equal(t, 0.25, current[0].Value)
}

func TestScrape_NoPoEPorts(t *testing.T) {
	replies := routerReplies()
	delete(replies, "/interface/ethernet/poe/print")

	q := &fakeQuerier{replies: replies}

	out := drain(t, Scrape(context.Background(), q, Options{}))
	assert.Empty(t, named(out, "poe_out_status"))
	assert.NotContains(t, q.issued, "/interface/ethernet/poe/monitor =once= =numbers=0")
}

func TestScrape_StopsAtFirstError(t *testing.T) {
	q := &fakeQuerier{
		replies: routerReplies(),
		errs:    map[string]error{"/interface/bonding/print": errDevice},
	}

	out, err := drainErr(Scrape(context.Background(), q, Options{}))
	require.ErrorIs(t, err, errDevice)

	assert.NotEmpty(t, named(out, "system_version_info"))
	assert.Equal(t, "/interface/bonding/print", q.issued[len(q.issued)-1])
}

func TestScrape_ConsumerStopsEarly(t *testing.T) {
	q := &fakeQuerier{replies: routerReplies()}

	for range Scrape(context.Background(), q, Options{}) {
		break
	}

	assert.Equal(t, []string{"/system/resource/print"}, q.issued)
}

func TestNumbers(t *testing.T) {
	assert.Equal(t, "=numbers=0", numbers(1))
	assert.Equal(t, "=numbers=0,1,2", numbers(3))
}
