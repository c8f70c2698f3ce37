package dispatch

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/passbi/ridepool/internal/models"
	"github.com/passbi/ridepool/internal/ride"
	"github.com/passbi/ridepool/internal/scheduler"
)

// ErrRideTableFull is returned when a run needs more groups than MaxRides
var ErrRideTableFull = errors.New("max demand groups reached: can't create a new group")

// Dispatcher assigns incoming demands to candidate groups, turns closed
// groups into rides and replays their events in chronological order.
//
// A Dispatcher holds the whole state of one simulation run and is not safe
// for concurrent use.
type Dispatcher struct {
	params models.Params
	limits Limits
	logger *log.Logger

	scheduler  *scheduler.EventScheduler
	rides      []*ride.Ride
	open       *Group
	groupCount int
	clock      float64

	demands    int
	rejections map[RejectReason]int
}

// Result is the outcome of a simulation run
type Result struct {
	Records    []models.RideRecord  `json:"rides"`
	Demands    int                  `json:"demands"`
	Rejections map[RejectReason]int `json:"rejections"`
}

// New creates a dispatcher for one run. A nil logger discards debug output.
func New(params models.Params, limits Limits, logger *log.Logger) (*Dispatcher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	limits = limits.withDefaults()

	return &Dispatcher{
		params:     params,
		limits:     limits,
		logger:     logger,
		scheduler:  scheduler.New(limits.MaxEvents),
		rides:      make([]*ride.Ride, 0, limits.MaxRides),
		rejections: make(map[RejectReason]int),
	}, nil
}

// Submit feeds the next demand of the input stream into the dispatcher
func (d *Dispatcher) Submit(dem models.Demand) error {
	if d.open == nil {
		if err := d.openGroup(); err != nil {
			return err
		}
	}

	verdict, err := Evaluate(d.open, dem, d.params)
	if err != nil {
		return fmt.Errorf("evaluate demand %d: %w", dem.ID, err)
	}

	if verdict.Accepted {
		if err := d.open.Add(dem); err != nil {
			return fmt.Errorf("add demand %d: %w", dem.ID, err)
		}
		d.demands++
		d.logger.Printf("Demand %d joined group %d (size %d)", dem.ID, d.groupCount-1, d.open.Len())
		return nil
	}

	d.rejections[verdict.Reason]++
	d.logger.Printf("Demand %d rejected by group %d: %s", dem.ID, d.groupCount-1, verdict.Reason)

	if err := d.closeOpen(); err != nil {
		return err
	}
	if err := d.openGroup(); err != nil {
		return err
	}
	if err := d.open.Add(dem); err != nil {
		return fmt.Errorf("add demand %d: %w", dem.ID, err)
	}
	d.demands++
	d.logger.Printf("Demand %d opened group %d", dem.ID, d.groupCount-1)
	return nil
}

// Flush closes the open group, if any. Call it once the input stream ends.
func (d *Dispatcher) Flush() error {
	return d.closeOpen()
}

// Drain replays every scheduled event in chronological order and returns
// one record per ride, in the order the rides end.
func (d *Dispatcher) Drain() ([]models.RideRecord, error) {
	records := make([]models.RideRecord, 0, len(d.rides))

	for {
		ev, err := d.scheduler.Next()
		if errors.Is(err, scheduler.ErrEmpty) {
			d.logger.Printf("End of events at t=%.2f", d.clock)
			return records, nil
		}
		if err != nil {
			return records, err
		}

		d.clock = ev.Time
		r := d.rides[ev.RideID]

		switch ev.Kind {
		case models.EventStart:
			if err := r.StartRide(); err != nil {
				return records, err
			}
		case models.EventEnd:
			r.MarkDone()
			records = append(records, r.Record())
		}
		d.logger.Printf("t=%.2f ride %d %s", ev.Time, ev.RideID, ev.Kind)
	}
}

// Rides returns the rides created so far, indexed by ride ID
func (d *Dispatcher) Rides() []*ride.Ride {
	return d.rides
}

// Clock returns the simulated time of the last processed event
func (d *Dispatcher) Clock() float64 {
	return d.clock
}

// OpenGroup returns the group currently accepting demands, or nil
func (d *Dispatcher) OpenGroup() *Group {
	return d.open
}

func (d *Dispatcher) openGroup() error {
	if d.groupCount >= d.limits.MaxRides {
		return fmt.Errorf("%w (limit %d)", ErrRideTableFull, d.limits.MaxRides)
	}
	d.open = NewGroup(d.params.Capacity)
	d.groupCount++
	return nil
}

// closeOpen finalizes the open group into a ride and schedules its events
func (d *Dispatcher) closeOpen() error {
	if d.open == nil || d.open.Empty() {
		d.open = nil
		return nil
	}

	// A solo trip has efficiency 1 by definition and is always served
	minEfficiency := d.params.MinEfficiency
	if d.open.Len() == 1 && minEfficiency > 1 {
		minEfficiency = 1
	}

	r, err := ride.Build(d.open.Members(), minEfficiency)
	if err != nil {
		return fmt.Errorf("close group %d: %w", d.groupCount-1, err)
	}
	if err := r.Schedule(d.params.Speed); err != nil {
		return err
	}
	if d.scheduler.Len()+2 > d.scheduler.Cap() {
		return fmt.Errorf("schedule ride %d: %w", len(d.rides), scheduler.ErrFull)
	}

	r.ID = len(d.rides)
	d.rides = append(d.rides, r)

	if err := d.scheduler.Schedule(models.Event{RideID: r.ID, Time: r.Start, Kind: models.EventStart}); err != nil {
		return err
	}
	if err := d.scheduler.Schedule(models.Event{RideID: r.ID, Time: r.End, Kind: models.EventEnd}); err != nil {
		return err
	}

	d.logger.Printf("Ride %d created: %d demands, distance %.2f, efficiency %.2f, start %.2f, end %.2f",
		r.ID, len(r.DemandIDs), r.Distance, r.Efficiency, r.Start, r.End)

	d.open = nil
	return nil
}

func (d *Dispatcher) result(records []models.RideRecord) *Result {
	rejections := make(map[RejectReason]int, len(d.rejections))
	for k, v := range d.rejections {
		rejections[k] = v
	}
	return &Result{
		Records:    records,
		Demands:    d.demands,
		Rejections: rejections,
	}
}

// Simulate runs a complete simulation over an ordered demand stream.
//
// If ingestion fails with a fatal error, rides that were already built are
// still replayed and returned alongside the error.
func Simulate(params models.Params, limits Limits, demands []models.Demand, logger *log.Logger) (*Result, error) {
	d, err := New(params, limits, logger)
	if err != nil {
		return nil, err
	}

	var runErr error
	for _, dem := range demands {
		if err := d.Submit(dem); err != nil {
			runErr = fmt.Errorf("demand %d: %w", dem.ID, err)
			break
		}
	}
	if runErr == nil {
		runErr = d.Flush()
	}

	records, err := d.Drain()
	if err != nil && runErr == nil {
		runErr = err
	}

	return d.result(records), runErr
}
