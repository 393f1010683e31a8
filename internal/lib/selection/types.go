package selection

import (
	"context"
	"time"

	"github.com/dpup/routespan/internal/lib/geo"
	"github.com/dpup/routespan/internal/lib/spatial"
	"github.com/dpup/routespan/internal/lib/view"
)

// State identifies where the selection session is in its lifecycle
type State string

const (
	// No handles; the moving marker sits at the polyline start
	StateIdle State = "idle"
	// Pointer is being tracked but no handle has been placed yet
	StateAwaitingStart State = "awaiting_start"
	// One handle fixed, waiting for the second
	StateAwaitingEnd State = "awaiting_end"
	// Both handles fixed, selection computed
	StateSelected State = "selected"
	// A handle is temporarily detached from its last confirmed position
	StateDragging State = "dragging"
)

// HandleRole distinguishes the two selection handles
type HandleRole string

const (
	RoleStart HandleRole = "start"
	RoleEnd   HandleRole = "end"
)

// Handle is a persisted selection endpoint: a position plus the segment it
// was last resolved onto. Param is the clamped position along that segment,
// used to order two handles that share a segment.
type Handle struct {
	Role         HandleRole `json:"role"`
	Position     geo.Point  `json:"position"`
	SegmentStart int        `json:"segment_start"`
	SegmentEnd   int        `json:"segment_end"`
	Param        float64    `json:"param"`
}

// Marker is the transient pointer-tracking marker shown before both handles
// exist
type Marker struct {
	Position geo.Point `json:"position"`
	Visible  bool      `json:"visible"`
}

// Selection is the derived sub-polyline between the two handles. The entity
// is created once per session and its Coordinates are mutated in place on
// recompute, so consumers holding the pointer keep a live view.
type Selection struct {
	Coordinates []geo.Point `json:"coordinates"`
}

// Candidate is a resolved nearest-point result: where the pointer snapped to
// and which segment it landed on
type Candidate struct {
	Position geo.Point       `json:"position"`
	Segment  spatial.Segment `json:"segment"`
	Param    float64         `json:"param"`
	Distance float64         `json:"distance_meters"`
}

// EventKind identifies a selection notification
type EventKind string

const (
	EventSelectionStart   EventKind = "selection-start"
	EventSelectionEnd     EventKind = "selection-end"
	EventSelectionChanged EventKind = "selection-changed"
)

// Event is delivered to listeners when the selection session changes
type Event struct {
	Kind     EventKind   `json:"kind"`
	Position geo.Point   `json:"position,omitempty"`
	Coords   []geo.Point `json:"coords,omitempty"`
}

// Listener receives selection events. Listeners run synchronously on the
// event goroutine and must not call back into the engine.
type Listener func(Event)

// Navigator lets the engine suspend host map navigation for the duration of
// a handle drag (so dragging a handle does not also pan the map)
type Navigator interface {
	SuspendNavigation()
	ResumeNavigation()
}

// InputKind keys the engine's input dispatch table
type InputKind string

const (
	InputPointerMove InputKind = "pointer-move"
	InputClick       InputKind = "click"
	InputViewChanged InputKind = "view-changed"
	InputDragMove    InputKind = "drag-move"
	InputDragEnd     InputKind = "drag-end"
	InputReset       InputKind = "reset"
)

// Input is one external event delivered to Dispatch
type Input struct {
	Kind    InputKind    `json:"kind"`
	Pointer geo.Point    `json:"pointer,omitempty"`
	View    view.Context `json:"view,omitempty"`
	Handle  HandleRole   `json:"handle,omitempty"`
}

// Config carries the host-supplied interaction tuning
type Config struct {
	// Pixel hit tolerance around the pointer
	TolerancePixels float64 `yaml:"tolerance_pixels"`
	// Rendered line weight in pixels; half of it widens the hit radius
	LineWeightPixels float64 `yaml:"line_weight_pixels"`
	// How long a drag may sit idle before it is treated as released
	DragIdleTimeout time.Duration `yaml:"drag_idle_timeout"`
}

// Engine interface defines the selection state machine over one polyline
// session
type Engine interface {
	// Replace the session polyline; rebuilds the spatial index and resets state
	SetPolyline(ctx context.Context, line geo.Polyline) error

	// Deliver a new view context; recomputes the hit tolerance
	SetView(ctx context.Context, v view.Context) error

	// Route one external event through the dispatch table
	Dispatch(ctx context.Context, in Input) error

	// Resolve the polyline point nearest to p within tolerance; nil means no match
	NearestPoint(p geo.Point) (*Candidate, error)

	// Fix the next handle (start first, then end) at a resolved candidate
	PlacePoint(ctx context.Context, c Candidate) error

	// Place both handles at the given distances from the polyline start
	SelectByDistance(ctx context.Context, startMeters, endMeters float64) error

	// Move the named handle toward the pointer; no-op when nothing is nearby
	Drag(ctx context.Context, role HandleRole, pointer geo.Point) error

	// Finish an active drag explicitly
	EndDrag(ctx context.Context) error

	// Discard handles and selection, return to idle
	Reset(ctx context.Context)

	// Current selection coordinates, or false if fewer than two handles exist
	GetSelection() ([]geo.Point, bool)

	// Subscribe registers a listener for selection events
	Subscribe(l Listener)

	// Accessors for the host rendering layer
	State() State
	MovingMarker() Marker
	Handles() (start, end *Handle)
	TotalLength() float64
}

// NewEngine is implemented in engine.go
