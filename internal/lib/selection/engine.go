package selection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/routespan/internal/lib/geo"
	"github.com/dpup/routespan/internal/lib/spatial"
	"github.com/dpup/routespan/internal/lib/view"
)

const defaultDragIdleTimeout = 2 * time.Second

// session holds the per-session view and drag context threaded through every
// operation, rather than living as loose fields on the engine.
type session struct {
	view           view.Context
	tolerance      view.Tolerance
	toleranceValid bool
	dragRole       HandleRole
	navSuspended   bool
}

type handlerFunc func(ctx context.Context, in Input) error

// engine implements the Engine interface
type engine struct {
	mu sync.Mutex

	ops  geo.Ops
	calc *view.Calculator
	cfg  Config
	nav  Navigator

	// Polyline snapshot, rebuilt together on SetPolyline
	line  geo.Polyline
	index *spatial.Index
	// cum[i] is the walked length from the first vertex to vertex i
	cum   []float64
	total float64

	state     State
	startH    *Handle
	endH      *Handle
	marker    Marker
	sel       *Selection
	sess      session
	dragTimer *time.Timer

	listeners []Listener
	handlers  map[InputKind]handlerFunc
}

// EngineOption configures an Engine at construction
type EngineOption func(*engine)

// WithGeometry injects a geometry strategy; the default uses haversine
// distances
func WithGeometry(ops geo.Ops) EngineOption {
	return func(e *engine) {
		e.ops = ops
	}
}

// WithNavigator wires the host navigation hooks used during drags
func WithNavigator(nav Navigator) EngineOption {
	return func(e *engine) {
		e.nav = nav
	}
}

// NewEngine creates a selection engine with no polyline loaded
func NewEngine(cfg Config, opts ...EngineOption) Engine {
	if cfg.DragIdleTimeout <= 0 {
		cfg.DragIdleTimeout = defaultDragIdleTimeout
	}

	e := &engine{
		cfg:   cfg,
		index: spatial.NewIndex(),
		state: StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ops == nil {
		e.ops = geo.NewOps()
	}
	e.calc = view.NewCalculator(e.ops)

	// One handler per external event kind
	e.handlers = map[InputKind]handlerFunc{
		InputPointerMove: e.handlePointerMove,
		InputClick:       e.handleClick,
		InputViewChanged: e.handleViewChanged,
		InputDragMove:    e.handleDragMove,
		InputDragEnd: func(ctx context.Context, _ Input) error {
			return e.endDrag(ctx)
		},
		InputReset: func(ctx context.Context, _ Input) error {
			e.reset(ctx)
			return nil
		},
	}

	return e
}

// SetPolyline replaces the session polyline, rebuilds the spatial index and
// the length prefix sums, and resets all selection state. The rebuild is
// wholesale; nothing from the previous polyline version survives.
func (e *engine) SetPolyline(ctx context.Context, line geo.Polyline) error {
	ctx = logging.EnsureLogger(ctx)
	if len(line.Points) < 2 {
		return errors.New("polyline must have at least 2 points")
	}

	cum := make([]float64, len(line.Points))
	for i := 0; i < len(line.Points)-1; i++ {
		d, err := e.ops.Distance(line.Points[i], line.Points[i+1])
		if err != nil {
			return fmt.Errorf("invalid polyline vertex %d: %w", i, err)
		}
		cum[i+1] = cum[i] + d
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.index.Build(line); err != nil {
		return err
	}

	e.line = line
	e.cum = cum
	e.total = cum[len(cum)-1]
	e.reset(ctx)

	logging.Infow(ctx, "Selection polyline loaded",
		"vertices", len(line.Points), "segments", e.index.Len(), "length_meters", e.total)
	return nil
}

// SetView recomputes the hit tolerance for a new view context. Required after
// every pan, zoom, or resize; hit-testing against a stale tolerance is wrong.
func (e *engine) SetView(ctx context.Context, v view.Context) error {
	ctx = logging.EnsureLogger(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applyView(ctx, v)
}

// applyView recomputes the hit tolerance for v and stores it on the session.
// Callers hold the engine lock.
func (e *engine) applyView(ctx context.Context, v view.Context) error {
	tol, err := e.calc.Recompute(v, e.pixelRadius())
	if err != nil {
		return err
	}

	e.sess.view = v
	e.sess.tolerance = tol
	e.sess.toleranceValid = true

	logging.Debugw(ctx, "Selection tolerance recomputed",
		"zoom", v.Zoom, "dlat", tol.DLat, "dlng", tol.DLng)
	return nil
}

// Dispatch routes one external event through the handler table
func (e *engine) Dispatch(ctx context.Context, in Input) error {
	ctx = logging.EnsureLogger(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.handlers[in.Kind]
	if !ok {
		return fmt.Errorf("unknown input kind %q", in.Kind)
	}
	return h(ctx, in)
}

func (e *engine) handlePointerMove(ctx context.Context, in Input) error {
	// The moving marker only tracks the pointer until both handles exist
	if e.startH != nil && e.endH != nil {
		return nil
	}

	c, err := e.nearestPoint(&e.sess, in.Pointer)
	if err != nil {
		return err
	}
	if c == nil {
		return nil
	}

	e.marker.Position = c.Position
	e.marker.Visible = true
	if e.state == StateIdle {
		e.state = StateAwaitingStart
	}
	return nil
}

func (e *engine) handleClick(ctx context.Context, in Input) error {
	c, err := e.nearestPoint(&e.sess, in.Pointer)
	if err != nil {
		return err
	}
	if c == nil {
		// Click away from the line is not an error, just not a placement
		return nil
	}
	return e.placePoint(ctx, *c)
}

func (e *engine) handleViewChanged(ctx context.Context, in Input) error {
	return e.applyView(ctx, in.View)
}

func (e *engine) handleDragMove(ctx context.Context, in Input) error {
	role := in.Handle
	if role == "" && e.state == StateDragging {
		role = e.sess.dragRole
	}
	return e.drag(ctx, &e.sess, role, in.Pointer)
}

// NearestPoint resolves the polyline point nearest to p within the current
// tolerance. A nil candidate with a nil error means nothing was in range.
func (e *engine) NearestPoint(p geo.Point) (*Candidate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nearestPoint(&e.sess, p)
}

func (e *engine) nearestPoint(sess *session, p geo.Point) (*Candidate, error) {
	if !sess.toleranceValid {
		return nil, errors.New("no view context delivered yet; tolerance is unknown")
	}

	box := spatial.BoxAround(p, sess.tolerance.DLat, sess.tolerance.DLng)
	segments, err := e.index.Query(box)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, nil
	}

	// Segments arrive ordered by start index, so a strict < keeps the
	// smallest-index candidate on exact distance ties.
	var best *Candidate
	for _, seg := range segments {
		pos, param := e.ops.ClosestPointOnSegment(p, seg.Start, seg.End)
		d, err := e.ops.Distance(p, pos)
		if err != nil {
			return nil, err
		}
		if best == nil || d < best.Distance {
			best = &Candidate{Position: pos, Segment: seg, Param: param, Distance: d}
		}
	}
	return best, nil
}

// PlacePoint fixes the next handle at a resolved candidate: the start handle
// if none exists, the end handle otherwise. Placing the end handle hides the
// moving marker and computes the selection.
func (e *engine) PlacePoint(ctx context.Context, c Candidate) error {
	ctx = logging.EnsureLogger(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.placePoint(ctx, c)
}

func (e *engine) placePoint(ctx context.Context, c Candidate) error {
	switch {
	case e.startH == nil:
		e.startH = &Handle{
			Role:         RoleStart,
			Position:     c.Position,
			SegmentStart: c.Segment.StartIndex,
			SegmentEnd:   c.Segment.EndIndex,
			Param:        c.Param,
		}
		e.state = StateAwaitingEnd
		e.emit(Event{Kind: EventSelectionStart, Position: c.Position})

	case e.endH == nil:
		e.endH = &Handle{
			Role:         RoleEnd,
			Position:     c.Position,
			SegmentStart: c.Segment.StartIndex,
			SegmentEnd:   c.Segment.EndIndex,
			Param:        c.Param,
		}
		e.marker.Visible = false
		e.state = StateSelected
		e.emit(Event{Kind: EventSelectionEnd, Position: c.Position})
		e.recomputeSelection(ctx)

	default:
		// Both handles already placed; clicks are ignored until reset or drag
	}
	return nil
}

// SelectByDistance places both handles at the given distances in meters from
// the polyline start. Negative distances are rejected before any state
// changes. Distances at or beyond the total length snap to the final vertex.
func (e *engine) SelectByDistance(ctx context.Context, startMeters, endMeters float64) error {
	if startMeters < 0 || endMeters < 0 {
		return fmt.Errorf("distances must be non-negative, got %f and %f", startMeters, endMeters)
	}

	ctx = logging.EnsureLogger(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.line.Points) < 2 {
		return errors.New("no polyline loaded")
	}

	// Resolve both points before touching any state
	first := e.pointAtDistance(startMeters)
	second := e.pointAtDistance(endMeters)

	e.reset(ctx)
	if err := e.placePoint(ctx, first); err != nil {
		return err
	}
	return e.placePoint(ctx, second)
}

// pointAtDistance walks the polyline's segments accumulating length and
// interpolates within the first segment whose far end passes m. Distances
// that land exactly on a vertex, or at or beyond the total length, return
// that vertex with no interpolation so boundaries carry no floating drift.
func (e *engine) pointAtDistance(m float64) Candidate {
	points := e.line.Points
	last := len(points) - 1

	if m >= e.total {
		return e.vertexCandidate(last)
	}

	for i := 0; i < last; i++ {
		if e.cum[i] == m {
			return e.vertexCandidate(i)
		}
		if e.cum[i+1] > m {
			segLen := e.cum[i+1] - e.cum[i]
			pos := e.ops.PointAtDistanceOnSegment(points[i], points[i+1], m-e.cum[i], segLen)
			return Candidate{
				Position: pos,
				Segment: spatial.Segment{
					StartIndex: i, EndIndex: i + 1,
					Start: points[i], End: points[i+1],
				},
				Param: (m - e.cum[i]) / segLen,
			}
		}
	}
	return e.vertexCandidate(last)
}

// vertexCandidate resolves vertex i onto its containing segment with the
// smallest start index, matching the nearest-point tie-break.
func (e *engine) vertexCandidate(i int) Candidate {
	points := e.line.Points
	if i == 0 {
		return Candidate{
			Position: points[0],
			Segment: spatial.Segment{
				StartIndex: 0, EndIndex: 1,
				Start: points[0], End: points[1],
			},
			Param: 0,
		}
	}
	return Candidate{
		Position: points[i],
		Segment: spatial.Segment{
			StartIndex: i - 1, EndIndex: i,
			Start: points[i-1], End: points[i],
		},
		Param: 1,
	}
}

// normalizeOrder swaps the handles' roles, never their stored positions, so
// the start handle is always the one earlier along the polyline. Handles on
// the same segment are ordered by their position within it.
func (e *engine) normalizeOrder() {
	if e.startH == nil || e.endH == nil {
		return
	}

	flip := e.startH.SegmentStart > e.endH.SegmentStart ||
		(e.startH.SegmentStart == e.endH.SegmentStart && e.startH.Param > e.endH.Param)
	if flip {
		e.startH, e.endH = e.endH, e.startH
		e.startH.Role = RoleStart
		e.endH.Role = RoleEnd
	}
}

// recomputeSelection rebuilds the selection coordinate sequence: the start
// handle's exact position, every polyline vertex strictly enclosed between
// the handles' segments, then the end handle's exact position. The Selection
// entity is created on the first computation and mutated in place afterwards.
func (e *engine) recomputeSelection(ctx context.Context) {
	if e.startH == nil || e.endH == nil {
		return
	}

	e.normalizeOrder()

	created := false
	if e.sel == nil {
		e.sel = &Selection{}
		created = true
	}

	coords := e.sel.Coordinates[:0]
	coords = append(coords, e.startH.Position)
	for i := e.startH.SegmentStart + 1; i <= e.endH.SegmentStart; i++ {
		coords = append(coords, e.line.Points[i])
	}
	coords = append(coords, e.endH.Position)
	e.sel.Coordinates = coords

	if created {
		logging.Debugw(ctx, "Selection created", "points", len(coords))
	}
	e.emit(Event{Kind: EventSelectionChanged, Coords: e.sel.Coordinates})
}

// Drag moves the named handle toward the pointer. The first move of a drag
// suspends host navigation; each move reschedules the idle-release timer. A
// pointer with nothing in range leaves the handle where it was.
func (e *engine) Drag(ctx context.Context, role HandleRole, pointer geo.Point) error {
	ctx = logging.EnsureLogger(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drag(ctx, &e.sess, role, pointer)
}

func (e *engine) drag(ctx context.Context, sess *session, role HandleRole, pointer geo.Point) error {
	h, err := e.handleFor(role)
	if err != nil {
		return err
	}

	if e.state == StateDragging && sess.dragRole != role {
		return fmt.Errorf("handle %q is already being dragged", sess.dragRole)
	}

	// Resolve the pointer first so a failed precondition leaves the state
	// machine and host navigation untouched
	c, err := e.nearestPoint(sess, pointer)
	if err != nil {
		return err
	}

	if e.state != StateDragging {
		e.state = StateDragging
		sess.dragRole = role
		if e.nav != nil && !sess.navSuspended {
			e.nav.SuspendNavigation()
			sess.navSuspended = true
		}
	}

	if c != nil {
		h.Position = c.Position
		h.SegmentStart = c.Segment.StartIndex
		h.SegmentEnd = c.Segment.EndIndex
		h.Param = c.Param

		if e.startH != nil && e.endH != nil {
			// Live preview while the handle is in flight
			e.recomputeSelection(ctx)
		}
	}

	e.scheduleDragIdle()
	return nil
}

// scheduleDragIdle arms the debounced idle-release: each move cancels the
// previous timer, so at most one pending release exists per drag session.
func (e *engine) scheduleDragIdle() {
	if e.dragTimer != nil {
		e.dragTimer.Stop()
	}
	e.dragTimer = time.AfterFunc(e.cfg.DragIdleTimeout, func() {
		// Runs on the timer goroutine; EndDrag takes the engine lock
		_ = e.EndDrag(context.Background())
	})
}

// EndDrag finishes an active drag: restores navigation and settles back to
// the selected state. Calling it with no drag in flight is a no-op.
func (e *engine) EndDrag(ctx context.Context) error {
	ctx = logging.EnsureLogger(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.endDrag(ctx)
}

func (e *engine) endDrag(ctx context.Context) error {
	if e.state != StateDragging {
		return nil
	}

	if e.dragTimer != nil {
		e.dragTimer.Stop()
		e.dragTimer = nil
	}
	if e.nav != nil && e.sess.navSuspended {
		e.nav.ResumeNavigation()
		e.sess.navSuspended = false
	}
	e.sess.dragRole = ""

	if e.startH != nil && e.endH != nil {
		e.state = StateSelected
	} else {
		e.state = StateAwaitingEnd
	}

	logging.Debugw(ctx, "Drag finished", "state", string(e.state))
	return nil
}

// Reset discards both handles and the selection and returns the session to
// idle, with the moving marker back at the polyline's first vertex.
func (e *engine) Reset(ctx context.Context) {
	ctx = logging.EnsureLogger(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset(ctx)
}

func (e *engine) reset(ctx context.Context) {
	if e.dragTimer != nil {
		e.dragTimer.Stop()
		e.dragTimer = nil
	}
	if e.nav != nil && e.sess.navSuspended {
		e.nav.ResumeNavigation()
		e.sess.navSuspended = false
	}
	e.sess.dragRole = ""

	e.startH = nil
	e.endH = nil
	e.sel = nil
	e.state = StateIdle

	if len(e.line.Points) > 0 {
		e.marker = Marker{Position: e.line.Points[0], Visible: true}
	} else {
		e.marker = Marker{}
	}
}

// GetSelection returns the current sub-polyline, or false when fewer than two
// handles exist
func (e *engine) GetSelection() ([]geo.Point, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sel == nil {
		return nil, false
	}
	return e.sel.Coordinates, true
}

// Subscribe registers a listener for selection events
func (e *engine) Subscribe(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// State reports the current state-machine state
func (e *engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// MovingMarker reports the transient pointer-tracking marker
func (e *engine) MovingMarker() Marker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.marker
}

// Handles reports the current handles; either may be nil
func (e *engine) Handles() (start, end *Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startH, e.endH
}

// TotalLength reports the walked length of the loaded polyline in meters
func (e *engine) TotalLength() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.total
}

func (e *engine) handleFor(role HandleRole) (*Handle, error) {
	switch role {
	case RoleStart:
		if e.startH == nil {
			return nil, errors.New("no start handle to drag")
		}
		return e.startH, nil
	case RoleEnd:
		if e.endH == nil {
			return nil, errors.New("no end handle to drag")
		}
		return e.endH, nil
	default:
		return nil, fmt.Errorf("unknown handle role %q", role)
	}
}

func (e *engine) pixelRadius() float64 {
	return e.cfg.TolerancePixels + e.cfg.LineWeightPixels/2
}

func (e *engine) emit(ev Event) {
	for _, l := range e.listeners {
		l(ev)
	}
}
