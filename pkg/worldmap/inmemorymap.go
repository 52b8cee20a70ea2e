package worldmap

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/bolidehi/trafficmanager/pkg/config"
	"github.com/bolidehi/trafficmanager/pkg/geom"
	"github.com/bolidehi/trafficmanager/pkg/simclient"
)

// InMemoryMap owns the dense topology arena plus the two spatial grids
// built over it. It is constructed once per episode via SetUp and is
// read-only, lock-free thereafter — concurrent stages may call its lookup
// methods from any goroutine without synchronisation.
type InMemoryMap struct {
	cfg config.Parameters
	log logrus.FieldLogger

	dense          []SimpleWaypoint
	vehicleGrid    *waypointGrid
	pedestrianGrid *waypointGrid
}

// New allocates an empty InMemoryMap; call SetUp to populate it.
func New(cfg config.Parameters, log logrus.FieldLogger) *InMemoryMap {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &InMemoryMap{
		cfg:            cfg,
		log:            log,
		vehicleGrid:    newWaypointGrid(cfg.VehicleGridCellSize),
		pedestrianGrid: newWaypointGrid(cfg.PedestrianGridCellSize),
	}
}

// NumWaypoints returns the size of the dense topology arena.
func (m *InMemoryMap) NumWaypoints() int { return len(m.dense) }

// Waypoint returns a copy of the SimpleWaypoint at h. Callers must treat the
// result as a snapshot; successor/lane handles remain valid regardless.
func (m *InMemoryMap) Waypoint(h Handle) SimpleWaypoint {
	return m.dense[h]
}

// chain is the per-segment interpolation result: the ordered handles from
// begin to end, plus the originating simclient.Waypoint for the entry node
// (needed for the lane-change pass).
type chain struct {
	handles []Handle
	sources []simclient.Waypoint
}

// SetUp builds the dense topology from a sparse sequence of road segments.
// It never returns an error for per-node problems (missing road data is
// logged and the affected node skipped) — only if segments is empty.
func (m *InMemoryMap) SetUp(segments []simclient.RoadSegment) error {
	if len(segments) == 0 {
		return fmt.Errorf("worldmap: SetUp requires at least one road segment")
	}

	var chains []chain
	for _, seg := range segments {
		c := m.interpolateSegment(seg)
		if len(c.handles) == 0 {
			continue
		}
		chains = append(chains, c)
	}

	m.stitchSegments(chains)
	m.tieDanglingExits(chains)
	m.indexGrids()
	m.linkLaneChanges(chains)

	return nil
}

// interpolateSegment walks begin.Next(resolution) until the segment is
// exhausted (or too short to sample at all), allocating one dense node per
// sample and chaining successors as it goes.
func (m *InMemoryMap) interpolateSegment(seg simclient.RoadSegment) chain {
	if geom.Distance(seg.Begin.Location(), seg.End.Location()) < m.cfg.StitchEpsilon {
		// Degenerate segment: still register a single node so it can
		// participate in stitching, but there is nothing to interpolate.
		h := m.addNode(seg.Begin)
		return chain{handles: []Handle{h}, sources: []simclient.Waypoint{seg.Begin}}
	}

	c := chain{}
	cur := seg.Begin
	h := m.addNode(cur)
	c.handles = append(c.handles, h)
	c.sources = append(c.sources, cur)

	for {
		next := cur.Next(m.cfg.SamplingResolution)
		if len(next) == 0 {
			break
		}
		cur = next[0]
		nh := m.addNode(cur)
		m.dense[c.handles[len(c.handles)-1]].Successors = append(
			m.dense[c.handles[len(c.handles)-1]].Successors, nh)
		c.handles = append(c.handles, nh)
		c.sources = append(c.sources, cur)
		if geom.Distance(cur.Location(), seg.End.Location()) < m.cfg.StitchEpsilon {
			break
		}
	}
	return c
}

func (m *InMemoryMap) addNode(w simclient.Waypoint) Handle {
	h := Handle(len(m.dense))
	m.dense = append(m.dense, SimpleWaypoint{
		Location:   w.Location(),
		Forward:    w.ForwardVector(),
		Junction:   w.IsJunction(),
		JunctionID: w.JunctionID(),
		LaneLeft:   Invalid,
		LaneRight:  Invalid,
	})
	return h
}

// stitchSegments connects every segment's exit node to every other
// segment's entry node within StitchEpsilon.
func (m *InMemoryMap) stitchSegments(chains []chain) {
	eps2 := m.cfg.StitchEpsilon * m.cfg.StitchEpsilon
	for i, exitChain := range chains {
		exit := exitChain.handles[len(exitChain.handles)-1]
		exitLoc := m.dense[exit].Location
		for j, entryChain := range chains {
			if i == j {
				continue
			}
			entry := entryChain.handles[0]
			if geom.DistanceSquared(exitLoc, m.dense[entry].Location) < eps2 {
				m.dense[exit].Successors = append(m.dense[exit].Successors, entry)
			}
		}
	}
}

// tieDanglingExits connects any exit node that stitching left without a
// successor to the nearest entry node, smoothing sharp incoming merges by
// advancing the target a few hops down its own chain first.
func (m *InMemoryMap) tieDanglingExits(chains []chain) {
	for _, exitChain := range chains {
		exit := exitChain.handles[len(exitChain.handles)-1]
		if len(m.dense[exit].Successors) > 0 {
			continue
		}
		nearestChainIdx, nearestHandle, ok := m.nearestEntry(chains, m.dense[exit].Location)
		if !ok {
			continue
		}

		target := nearestHandle
		exitLoc := m.dense[exit].Location
		toTarget := m.dense[target].Location.Sub(exitLoc).Normalize()
		if geom.Dot(m.dense[exit].Forward, toTarget) < m.cfg.LaneChangeAngleCos {
			target = m.advanceHops(chains[nearestChainIdx], nearestHandle, m.cfg.DanglingExitLookAhead)
		}
		m.dense[exit].Successors = append(m.dense[exit].Successors, target)
	}
}

func (m *InMemoryMap) nearestEntry(chains []chain, loc geom.Location) (chainIdx int, handle Handle, ok bool) {
	best := math.Inf(1)
	found := false
	for i, c := range chains {
		entry := c.handles[0]
		d := geom.DistanceSquared(loc, m.dense[entry].Location)
		if d < best {
			best = d
			chainIdx = i
			handle = entry
			found = true
		}
	}
	return chainIdx, handle, found
}

// advanceHops walks forward up to n hops along c starting from start,
// returning the last handle reached (clamped to the chain's exit).
func (m *InMemoryMap) advanceHops(c chain, start Handle, n int) Handle {
	idx := -1
	for i, h := range c.handles {
		if h == start {
			idx = i
			break
		}
	}
	if idx < 0 {
		return start
	}
	idx += n
	if idx >= len(c.handles) {
		idx = len(c.handles) - 1
	}
	return c.handles[idx]
}

func (m *InMemoryMap) indexGrids() {
	for h, wp := range m.dense {
		m.vehicleGrid.insert(Handle(h), wp.Location)
		m.pedestrianGrid.insert(Handle(h), wp.Location)
	}
}

// linkLaneChanges records a left/right lane-change handle for every
// non-junction node whose originating road waypoint permits the change.
// Missing/bad road data is logged and skipped, never fatal.
func (m *InMemoryMap) linkLaneChanges(chains []chain) {
	for _, c := range chains {
		for i, h := range c.handles {
			if m.dense[h].Junction {
				continue
			}
			src := c.sources[i]
			m.linkOneSide(h, src.LaneChangeLeft, func(target Handle) { m.dense[h].LaneLeft = target })
			m.linkOneSide(h, src.LaneChangeRight, func(target Handle) { m.dense[h].LaneRight = target })
		}
	}
}

func (m *InMemoryMap) linkOneSide(h Handle, lookup func() (simclient.Waypoint, bool), assign func(Handle)) {
	defer func() {
		if r := recover(); r != nil {
			m.log.WithField("waypoint", h).Warnf("worldmap: recovered from bad road data while linking lane change: %v", r)
		}
	}()

	neighbor, ok := lookup()
	if !ok {
		return
	}
	target, found := m.nearestInGrid(m.vehicleGrid, neighbor.Location())
	if !found {
		target, found = m.nearestLinear(neighbor.Location())
	}
	if !found {
		m.log.WithField("waypoint", h).Info("worldmap: no candidate node found for lane-change link")
		return
	}
	assign(target)
}

// GetWaypointInVicinity returns the nearest node in the 3x3 cell
// neighbourhood of loc's cell, filtered to the vertical band. It returns
// ok=false if no candidate lies within VerticalBand of loc.
func (m *InMemoryMap) GetWaypointInVicinity(loc geom.Location) (Handle, bool) {
	return m.nearestInGrid(m.vehicleGrid, loc)
}

func (m *InMemoryMap) nearestInGrid(grid *waypointGrid, loc geom.Location) (Handle, bool) {
	best := math.Inf(1)
	var bestHandle Handle
	found := false
	for _, h := range grid.neighbors9(loc) {
		wp := m.dense[h]
		if math.Abs(wp.Location.Z-loc.Z) > m.cfg.VerticalBand {
			continue
		}
		d := geom.DistanceSquared(wp.Location, loc)
		if d < best {
			best = d
			bestHandle = h
			found = true
		}
	}
	return bestHandle, found
}

// GetWaypoint performs a full linear scan for the nearest node, ignoring
// the vertical band. Used only as a fallback when GetWaypointInVicinity
// fails; always returns a node if the map is non-empty.
func (m *InMemoryMap) GetWaypoint(loc geom.Location) (Handle, bool) {
	return m.nearestLinear(loc)
}

func (m *InMemoryMap) nearestLinear(loc geom.Location) (Handle, bool) {
	if len(m.dense) == 0 {
		return Invalid, false
	}
	best := math.Inf(1)
	var bestHandle Handle
	for h, wp := range m.dense {
		d := geom.DistanceSquared(wp.Location, loc)
		if d < best {
			best = d
			bestHandle = Handle(h)
		}
	}
	return bestHandle, true
}
