package worker

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/jdholdren/popcorn/internal/popcorn"
	"github.com/jdholdren/popcorn/internal/scan"
)

const TaskQueue = "popcorn"

// NewWorker sets up the worker with registration of workflows, activities, and schedules.
func NewWorker(ctx context.Context, repo popcorn.Repository, cli client.Client, fanOutConcurrency int) (worker.Worker, error) {
	a := activities{
		repo:    repo,
		scanner: scan.New(repo, fanOutConcurrency),
	}

	w := worker.New(cli, TaskQueue, worker.Options{})

	if err := registerEverything(ctx, w, a, cli); err != nil {
		return nil, fmt.Errorf("error registering workflows and activities: %T, %v", err, err)
	}

	return w, nil
}

func registerEverything(ctx context.Context, w worker.Worker, a activities, cli client.Client) error {
	wfs := workflows{}
	w.RegisterWorkflow(wfs.IngestShow)
	w.RegisterWorkflow(wfs.Redeliver)
	w.RegisterWorkflow(wfs.SweepActiveShows)

	w.RegisterActivity(&a)

	// Sweep over the airing shows
	handle := cli.ScheduleClient().GetHandle(ctx, sweepScheduleID)
	if _, err := handle.Describe(ctx); err != nil {
		handle, err = cli.ScheduleClient().Create(ctx, client.ScheduleOptions{
			ID: sweepScheduleID,
			Spec: client.ScheduleSpec{
				Intervals: []client.ScheduleIntervalSpec{{Every: 15 * time.Minute}},
			},
			Action: &client.ScheduleWorkflowAction{
				ID:        sweepScheduleID,
				Workflow:  wfs.SweepActiveShows,
				TaskQueue: TaskQueue,
			},
			TriggerImmediately: true,
		})
		if err != nil {
			return err
		}
	}
	handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			return &client.ScheduleUpdate{
				Schedule: &input.Description.Schedule,
			}, nil
		},
	})

	return nil
}

const sweepScheduleID = "sweep_active_shows"

// Error types
//
// These are error types in the temporal sense, not the general "go" error types sense.
// They are used since between activities error types are marshaled and type information is lost.
const (
	errTypeInvalid  = "invalid"
	errTypeNotFound = "notFound"
)
