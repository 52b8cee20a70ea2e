package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bolidehi/trafficmanager/pkg/config"
	"github.com/bolidehi/trafficmanager/pkg/messenger"
	"github.com/bolidehi/trafficmanager/pkg/simclient"
)

// BatchControlStage is the pipeline's sole consumer: it submits every
// vehicle's command to the simulator in one round trip and caps its own
// submission rate at 100Hz.
type BatchControlStage struct {
	cfg    config.Parameters
	log    logrus.FieldLogger
	client simclient.Client

	fromPlanner *messenger.Messenger[PlannerToControlFrame]
	recvState   uint16

	lastSubmit time.Time

	tick struct {
		frame PlannerToControlFrame
	}
}

// NewBatchControlStage builds a BatchControlStage.
func NewBatchControlStage(
	cfg config.Parameters,
	log logrus.FieldLogger,
	client simclient.Client,
	fromPlanner *messenger.Messenger[PlannerToControlFrame],
) *BatchControlStage {
	return &BatchControlStage{cfg: cfg, log: log, client: client, fromPlanner: fromPlanner}
}

func (s *BatchControlStage) DataReceiver(ctx context.Context) bool {
	frame, ns, ok := s.fromPlanner.Receive(s.recvState)
	if !ok {
		return false
	}
	s.recvState = ns
	s.tick.frame = frame
	return ctx.Err() == nil
}

// NumSlots is always 0: BatchControlStage submits its whole frame in one
// RPC round trip rather than partitioning work across a pool.
func (s *BatchControlStage) NumSlots() int { return 0 }

func (s *BatchControlStage) Action(start, end int) {}

// DataSender submits the frame, then sleeps off whatever remains of the
// 10ms cap since the previous submission.
func (s *BatchControlStage) DataSender(ctx context.Context) bool {
	if len(s.tick.frame) > 0 {
		if err := s.client.ApplyBatch(s.tick.frame); err != nil {
			s.log.WithError(err).Warn("pipeline: batch control failed to apply commands")
		}
	}

	if !s.lastSubmit.IsZero() {
		elapsed := time.Since(s.lastSubmit)
		if wait := s.cfg.CommandPeriod - elapsed; wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return false
			}
		}
	}
	s.lastSubmit = time.Now()

	return ctx.Err() == nil
}
