package hnsw

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var graphMagic = [4]byte{'D', 'Q', 'H', 'G'}

const graphVersion uint32 = 1

type graphHeader struct {
	Magic    [4]byte
	Version  uint32
	Dim      uint32
	Entry    int32
	MaxLevel uint32
	Count    uint32
}

// export writes the graph structure and vectors in little-endian binary.
func (g *graph) export(w io.Writer) error {
	h := graphHeader{
		Magic:    graphMagic,
		Version:  graphVersion,
		Dim:      uint32(g.dim),
		Entry:    int32(g.entry),
		MaxLevel: uint32(g.maxLevel),
		Count:    uint32(len(g.nodes)),
	}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return err
	}
	for _, n := range g.nodes {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(n.links))); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, n.vec); err != nil {
			return err
		}
		for _, links := range n.links {
			if err := binary.Write(w, binary.LittleEndian, uint32(len(links))); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, links); err != nil {
				return err
			}
		}
	}
	return nil
}

var errCorruptGraph = errors.New("corrupt graph file")

// readGraphHeader reads only the header, so callers can check the dimension
// before decoding vectors.
func readGraphHeader(r io.Reader) (graphHeader, error) {
	var h graphHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return h, fmt.Errorf("%w: %w", errCorruptGraph, err)
	}
	if h.Magic != graphMagic {
		return h, fmt.Errorf("%w: bad magic %q", errCorruptGraph, h.Magic[:])
	}
	if h.Version != graphVersion {
		return h, fmt.Errorf("%w: unsupported version %d", errCorruptGraph, h.Version)
	}
	return h, nil
}

// importBody decodes the nodes that follow h into g.
func (g *graph) importBody(r io.Reader, h graphHeader) error {
	nodes := make([]node, h.Count)
	for i := range nodes {
		var levels uint32
		if err := binary.Read(r, binary.LittleEndian, &levels); err != nil {
			return fmt.Errorf("%w: node %d: %w", errCorruptGraph, i, err)
		}
		if levels == 0 || levels > h.MaxLevel+1 {
			return fmt.Errorf("%w: node %d has %d levels", errCorruptGraph, i, levels)
		}
		vec := make([]float32, h.Dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return fmt.Errorf("%w: node %d: %w", errCorruptGraph, i, err)
		}
		links := make([][]int32, levels)
		for l := range links {
			var n uint32
			if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
				return fmt.Errorf("%w: node %d: %w", errCorruptGraph, i, err)
			}
			if n > h.Count {
				return fmt.Errorf("%w: node %d has %d links", errCorruptGraph, i, n)
			}
			if n == 0 {
				continue
			}
			links[l] = make([]int32, n)
			if err := binary.Read(r, binary.LittleEndian, links[l]); err != nil {
				return fmt.Errorf("%w: node %d: %w", errCorruptGraph, i, err)
			}
			for _, id := range links[l] {
				if id < 0 || uint32(id) >= h.Count {
					return fmt.Errorf("%w: node %d links to %d", errCorruptGraph, i, id)
				}
			}
		}
		nodes[i] = node{vec: vec, links: links}
	}
	if h.Count > 0 && (h.Entry < 0 || uint32(h.Entry) >= h.Count) {
		return fmt.Errorf("%w: entry point %d", errCorruptGraph, h.Entry)
	}
	for i, n := range nodes {
		for l, links := range n.links {
			for _, id := range links {
				if len(nodes[id].links) <= l {
					return fmt.Errorf("%w: node %d links to %d above its top layer", errCorruptGraph, i, id)
				}
			}
		}
	}
	if h.Count == 0 {
		h.Entry = -1
	} else if len(nodes[h.Entry].links) != int(h.MaxLevel)+1 {
		return fmt.Errorf("%w: entry point %d is not on the top layer", errCorruptGraph, h.Entry)
	}
	g.nodes = nodes
	g.entry = int(h.Entry)
	g.maxLevel = int(h.MaxLevel)
	g.countInbound()
	return nil
}
