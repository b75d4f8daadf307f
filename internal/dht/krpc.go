package dht

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/anacrolix/torrent/bencode"

	"github.com/nao1215/dhtcrawler/internal/model"
)

// KRPC message types and query methods.
const (
	typeQuery    = "q"
	typeResponse = "r"
	typeError    = "e"

	methodPing     = "ping"
	methodFindNode = "find_node"
)

// queryMessage is an outgoing KRPC query.
type queryMessage struct {
	T string    `bencode:"t"`
	Y string    `bencode:"y"`
	Q string    `bencode:"q"`
	A queryArgs `bencode:"a"`
}

type queryArgs struct {
	ID     string `bencode:"id"`
	Target string `bencode:"target,omitempty"`
}

// responseMessage is an outgoing KRPC response.
type responseMessage struct {
	T string         `bencode:"t"`
	Y string         `bencode:"y"`
	R responseValues `bencode:"r"`
}

type responseValues struct {
	ID     string `bencode:"id"`
	Nodes  string `bencode:"nodes,omitempty"`
	Nodes6 string `bencode:"nodes6,omitempty"`
}

// message is a decoded incoming KRPC message. Only the fields the crawler
// uses are kept.
type message struct {
	T     string
	Y     string
	Q     string
	Nodes []model.Peer
}

// encodeFindNode builds a find_node query asking about target.
func encodeFindNode(tid string, self, target model.NodeID) ([]byte, error) {
	return bencode.Marshal(queryMessage{
		T: tid,
		Y: typeQuery,
		Q: methodFindNode,
		A: queryArgs{ID: string(self[:]), Target: string(target[:])},
	})
}

// encodePong builds the response to a ping.
func encodePong(tid string, self model.NodeID) ([]byte, error) {
	return bencode.Marshal(responseMessage{
		T: tid,
		Y: typeResponse,
		R: responseValues{ID: string(self[:])},
	})
}

// decodeMessage parses a datagram. It decodes into generic values rather
// than structs because real nodes send many optional keys (v, ip, token,
// values) the crawler does not care about.
func decodeMessage(data []byte) (message, error) {
	var raw map[string]any
	if err := bencode.Unmarshal(data, &raw); err != nil {
		return message{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	var msg message
	var ok bool
	if msg.T, ok = bytesValue(raw["t"]); !ok {
		return message{}, fmt.Errorf("%w: missing transaction id", ErrMalformedMessage)
	}
	if msg.Y, ok = bytesValue(raw["y"]); !ok {
		return message{}, fmt.Errorf("%w: missing message type", ErrMalformedMessage)
	}

	switch msg.Y {
	case typeQuery:
		msg.Q, _ = bytesValue(raw["q"])
	case typeResponse:
		r, _ := raw["r"].(map[string]any)
		if nodes, ok := bytesValue(r["nodes"]); ok {
			msg.Nodes = append(msg.Nodes, parseCompactNodes([]byte(nodes), 4)...)
		}
		if nodes6, ok := bytesValue(r["nodes6"]); ok {
			msg.Nodes = append(msg.Nodes, parseCompactNodes([]byte(nodes6), 16)...)
		}
	}

	return msg, nil
}

// bytesValue extracts a bencoded byte string from a generically decoded value.
func bytesValue(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}

// parseCompactNodes decodes a BEP 5 compact node list: each entry is a
// 20-byte id, the address, and a 2-byte big-endian port. ipLen is 4 for
// "nodes" and 16 for "nodes6". Trailing partial entries and entries with
// port 0 or an unspecified address are skipped.
func parseCompactNodes(b []byte, ipLen int) []model.Peer {
	size := model.NodeIDSize + ipLen + 2
	peers := make([]model.Peer, 0, len(b)/size)

	for off := 0; off+size <= len(b); off += size {
		entry := b[off : off+size]

		id, err := model.NodeIDFromBytes(entry[:model.NodeIDSize])
		if err != nil {
			continue
		}

		addrBytes := entry[model.NodeIDSize : model.NodeIDSize+ipLen]
		var addr netip.Addr
		if ipLen == 4 {
			addr = netip.AddrFrom4([4]byte(addrBytes))
		} else {
			addr = netip.AddrFrom16([16]byte(addrBytes))
		}
		port := binary.BigEndian.Uint16(entry[model.NodeIDSize+ipLen:])

		if port == 0 || addr.IsUnspecified() {
			continue
		}
		peers = append(peers, model.NewPeer(netip.AddrPortFrom(addr, port), id))
	}

	return peers
}
