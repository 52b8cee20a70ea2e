// Package config holds the typed record of every tunable constant the
// pipeline and the map builder need, replacing the free-floating constants
// of the original design.
package config

import "time"

// Parameters is threaded into worldmap.New (and read by its SetUp) and into
// every pipeline stage constructor. Zero value is meaningless; use Default().
type Parameters struct {
	// Map construction.
	SamplingResolution     float64 // metres between interpolated waypoints
	VehicleGridCellSize    float64 // metres, square cells
	PedestrianGridCellSize float64 // metres, square cells
	StitchEpsilon          float64 // metres, segment-join tolerance
	LaneChangeAngleCos     float64 // dot-product threshold for "too sharp to link"
	LaneChangeLookAhead    int     // hops to advance before linking a sharp merge
	DanglingExitLookAhead  int     // hops to advance before tying a sharply-angled dangling exit
	VerticalBand           float64 // metres, |Δz| tolerance for vicinity lookups

	// VicinityGrid.
	VicinityCellSize float64 // metres, square cells

	// CollisionStage.
	CollisionSearchRadius   float64
	VerticalOverlapLimit    float64
	ZeroAreaThreshold       float64
	BoundaryExtensionMin    float64
	BoundaryExtensionSquare float64
	TimeHorizon             time.Duration
	HighwaySpeed            float64 // m/s
	HighwayTimeHorizon      time.Duration
	UnregisteredSweepPeriod time.Duration

	// LocalizationStage.
	LocalizationTickPeriod    time.Duration // pacing for the free-running receiver
	WaypointTimeHorizon       time.Duration
	MinimumHorizonLength      float64
	TargetWaypointTimeHorizon time.Duration
	TargetWaypointHorizon     float64
	JunctionCheckNear         int // buffer index, "am I already in the junction"
	JunctionCheckFar          int // buffer index, "is the junction coming up"

	// TrafficLightStage.
	TicketExpiry time.Duration

	// BatchControlStage.
	CommandPeriod time.Duration // 10ms -> 100Hz cap

	// Motion planner PID gains: {Kp, Ki, Kd}.
	LongitudinalPID        [3]float64
	LongitudinalHighwayPID [3]float64
	LateralPID             [3]float64
}

// Default returns the tunables named in the spec's "Tunable constants"
// section, SI units unless noted.
func Default() Parameters {
	return Parameters{
		SamplingResolution:     1.0,
		VehicleGridCellSize:    4.0,
		PedestrianGridCellSize: 10.0,
		StitchEpsilon:          0.1,
		LaneChangeAngleCos:     0.5,
		LaneChangeLookAhead:    5,
		DanglingExitLookAhead:  5,
		VerticalBand:           1.0,

		VicinityCellSize: 10.0,

		CollisionSearchRadius:   20.0,
		VerticalOverlapLimit:    2.0,
		ZeroAreaThreshold:       1e-4,
		BoundaryExtensionMin:    2.0,
		BoundaryExtensionSquare: 7.0,
		TimeHorizon:             500 * time.Millisecond,
		HighwaySpeed:            13.89, // 50 km/h
		HighwayTimeHorizon:      5 * time.Second,
		UnregisteredSweepPeriod: 500 * time.Millisecond,

		LocalizationTickPeriod:    50 * time.Millisecond,
		WaypointTimeHorizon:       3 * time.Second,
		MinimumHorizonLength:      25.0,
		TargetWaypointTimeHorizon: 500 * time.Millisecond,
		TargetWaypointHorizon:     2.0,
		JunctionCheckNear:         2,
		JunctionCheckFar:          5,

		TicketExpiry: 2 * time.Second,

		CommandPeriod: 10 * time.Millisecond,

		LongitudinalPID:        [3]float64{0.25, 0.02, 0.01},
		LongitudinalHighwayPID: [3]float64{0.35, 0.015, 0.02},
		LateralPID:             [3]float64{1.2, 0.0, 0.05},
	}
}

// Option mutates a Parameters value; used with New to override defaults.
type Option func(*Parameters)

// New builds a Parameters from Default() with the given overrides applied.
func New(opts ...Option) Parameters {
	p := Default()
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func WithSamplingResolution(v float64) Option {
	return func(p *Parameters) { p.SamplingResolution = v }
}

func WithSearchRadius(v float64) Option {
	return func(p *Parameters) { p.CollisionSearchRadius = v }
}

func WithVicinityCellSize(v float64) Option {
	return func(p *Parameters) { p.VicinityCellSize = v }
}

func WithCommandPeriod(d time.Duration) Option {
	return func(p *Parameters) { p.CommandPeriod = d }
}

func WithTicketExpiry(d time.Duration) Option {
	return func(p *Parameters) { p.TicketExpiry = d }
}

func WithLocalizationTickPeriod(d time.Duration) Option {
	return func(p *Parameters) { p.LocalizationTickPeriod = d }
}
