package hnsw

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"
)

// candidate is a node position with its distance to the current target.
type candidate struct {
	id   int
	dist float32
}

// nearestFirst is a min-heap on distance.
type nearestFirst []candidate

func (h nearestFirst) Len() int           { return len(h) }
func (h nearestFirst) Less(i, j int) bool { return h[i].dist < h[j].dist }
func (h nearestFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nearestFirst) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *nearestFirst) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

// furthestFirst is a max-heap on distance.
type furthestFirst []candidate

func (h furthestFirst) Len() int           { return len(h) }
func (h furthestFirst) Less(i, j int) bool { return h[i].dist > h[j].dist }
func (h furthestFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *furthestFirst) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *furthestFirst) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

// node is one stored vector. links[l] holds its neighbors on layer l, so a
// node lives on layers 0..len(links)-1. inbound[l] counts the nodes linking
// to it on layer l.
type node struct {
	vec     []float32
	links   [][]int32
	inbound []int32
}

// graph is a hierarchical navigable small world graph over unit vectors
// compared by cosine distance. Node ids are insertion positions.
type graph struct {
	dim            int
	m              int
	m0             int
	efConstruction int
	ml             float64
	rng            *rand.Rand

	entry    int
	maxLevel int
	nodes    []node
}

func newGraph(dim, m, efConstruction int) *graph {
	return &graph{
		dim:            dim,
		m:              m,
		m0:             2 * m,
		efConstruction: efConstruction,
		ml:             1 / math.Log(float64(m)),
		rng:            rand.New(rand.NewSource(1)),
		entry:          -1,
	}
}

func (g *graph) len() int { return len(g.nodes) }

func (g *graph) maxLinks(level int) int {
	if level == 0 {
		return g.m0
	}
	return g.m
}

func (g *graph) randomLevel() int {
	return int(-math.Log(1-g.rng.Float64()) * g.ml)
}

// unit returns a normalized copy of v. Zero vectors stay zero and sit at
// distance 1 from everything.
func unit(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func cosineDistance(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return 1 - dot
}

func (g *graph) distance(q []float32, id int) float32 {
	return cosineDistance(q, g.nodes[id].vec)
}

// insert adds vec as the next node id.
func (g *graph) insert(vec []float32) {
	q := unit(vec)
	id := len(g.nodes)
	level := g.randomLevel()
	g.nodes = append(g.nodes, node{vec: q, links: make([][]int32, level+1), inbound: make([]int32, level+1)})

	if g.entry < 0 {
		g.entry, g.maxLevel = id, level
		return
	}

	eps := []candidate{{id: g.entry, dist: g.distance(q, g.entry)}}
	for l := g.maxLevel; l > level; l-- {
		eps = g.searchLayer(q, eps, 1, l)[:1]
	}
	for l := min(level, g.maxLevel); l >= 0; l-- {
		found := g.searchLayer(q, eps, g.efConstruction, l)
		neighbors := g.selectNeighbors(found, g.m)
		links := make([]int32, len(neighbors))
		for i, c := range neighbors {
			links[i] = int32(c.id)
		}
		g.nodes[id].links[l] = links
		for _, c := range neighbors {
			g.nodes[c.id].inbound[l]++
			g.link(c.id, id, l)
		}
		eps = found
	}
	if level > g.maxLevel {
		g.entry, g.maxLevel = id, level
	}
}

// link adds to as a neighbor of from on level. When from's list overflows
// its bound the furthest neighbor is dropped, skipping neighbors that have
// no other inbound link on the layer so no node becomes unreachable.
func (g *graph) link(from, to, level int) {
	n := &g.nodes[from]
	n.links[level] = append(n.links[level], int32(to))
	g.nodes[to].inbound[level]++
	limit := g.maxLinks(level)
	if len(n.links[level]) <= limit {
		return
	}
	cands := make([]candidate, len(n.links[level]))
	for i, id := range n.links[level] {
		cands[i] = candidate{id: int(id), dist: cosineDistance(n.vec, g.nodes[id].vec)}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	drop := len(cands) - 1
	for i := len(cands) - 1; i >= 0; i-- {
		if g.nodes[cands[i].id].inbound[level] > 1 {
			drop = i
			break
		}
	}
	g.nodes[cands[drop].id].inbound[level]--
	links := make([]int32, 0, limit)
	for i, c := range cands {
		if i != drop {
			links = append(links, int32(c.id))
		}
	}
	n.links[level] = links
}

// countInbound rebuilds the inbound counters from the link lists.
func (g *graph) countInbound() {
	for i := range g.nodes {
		g.nodes[i].inbound = make([]int32, len(g.nodes[i].links))
	}
	for _, n := range g.nodes {
		for l, links := range n.links {
			for _, id := range links {
				g.nodes[id].inbound[l]++
			}
		}
	}
}

// selectNeighbors picks up to m of the ascending cands, preferring ones that
// are closer to the target than to any neighbor already picked. Pruned
// candidates fill the remaining slots.
func (g *graph) selectNeighbors(cands []candidate, m int) []candidate {
	if len(cands) <= m {
		return cands
	}
	selected := make([]candidate, 0, m)
	var pruned []candidate
	for _, c := range cands {
		if len(selected) == m {
			break
		}
		diverse := true
		for _, s := range selected {
			if cosineDistance(g.nodes[c.id].vec, g.nodes[s.id].vec) < c.dist {
				diverse = false
				break
			}
		}
		if diverse {
			selected = append(selected, c)
		} else {
			pruned = append(pruned, c)
		}
	}
	for _, c := range pruned {
		if len(selected) == m {
			break
		}
		selected = append(selected, c)
	}
	return selected
}

// searchLayer runs a best-first search on one layer, keeping the ef nearest
// nodes seen. The result is sorted nearest first.
func (g *graph) searchLayer(q []float32, eps []candidate, ef, level int) []candidate {
	visited := make(map[int]struct{}, ef*4)
	frontier := &nearestFirst{}
	results := &furthestFirst{}
	for _, ep := range eps {
		if _, seen := visited[ep.id]; seen {
			continue
		}
		visited[ep.id] = struct{}{}
		heap.Push(frontier, ep)
		heap.Push(results, ep)
		if results.Len() > ef {
			heap.Pop(results)
		}
	}

	for frontier.Len() > 0 {
		c := heap.Pop(frontier).(candidate)
		if results.Len() >= ef && c.dist > (*results)[0].dist {
			break
		}
		for _, nb := range g.nodes[c.id].links[level] {
			id := int(nb)
			if _, seen := visited[id]; seen {
				continue
			}
			visited[id] = struct{}{}
			d := g.distance(q, id)
			if results.Len() < ef || d < (*results)[0].dist {
				heap.Push(frontier, candidate{id: id, dist: d})
				heap.Push(results, candidate{id: id, dist: d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]candidate, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(candidate)
	}
	return out
}

// search returns up to k nodes nearest to vec, exploring ef candidates on
// the bottom layer.
func (g *graph) search(vec []float32, k, ef int) []candidate {
	if g.entry < 0 || k <= 0 {
		return nil
	}
	q := unit(vec)
	eps := []candidate{{id: g.entry, dist: g.distance(q, g.entry)}}
	for l := g.maxLevel; l > 0; l-- {
		eps = g.searchLayer(q, eps, 1, l)[:1]
	}
	found := g.searchLayer(q, eps, max(ef, k), 0)
	if len(found) > k {
		found = found[:k]
	}
	return found
}
