package worker

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	poperrs "github.com/jdholdren/popcorn/internal/errors"
	"github.com/jdholdren/popcorn/internal/popcorn"
	"github.com/jdholdren/popcorn/internal/scan"
)

type workflows struct{}

var activityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 5 * time.Second,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumAttempts:    3, // 0 is unlimited retries
	},
}

// DeliveryResult counts how many feeds an episode made it into.
type DeliveryResult struct {
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// IngestResult is what became of one scanned show.
type IngestResult struct {
	scan.SaveResult
	DeliveryResult
}

// TriggerIngestWorkflow runs an ingestion and waits for it.
//
// Ingestions are keyed by show, so triggering one while another for the same
// show is running waits on the running one.
func TriggerIngestWorkflow(ctx context.Context, c client.Client, args IngestArgs) (IngestResult, error) {
	options := client.StartWorkflowOptions{
		ID:        "ingest_" + args.Show.ID,
		TaskQueue: TaskQueue,
	}
	we, err := c.ExecuteWorkflow(ctx, options, workflows{}.IngestShow, args)
	if err != nil {
		return IngestResult{}, fmt.Errorf("unable to execute workflow: %s", err)
	}

	var res IngestResult
	err = we.Get(ctx, &res)
	popErr := &poperrs.Error{}
	if asPoperr(err, &popErr) {
		return IngestResult{}, popErr
	}
	if err != nil {
		return IngestResult{}, fmt.Errorf("error executing workflow: %s", err)
	}

	return res, nil
}

// IngestShow saves a scanned show and, if it brought a newer episode, delivers
// that episode to every subscriber.
//
// Each delivery is its own activity so a failed one is retried on its own.
func (workflows) IngestShow(ctx workflow.Context, args IngestArgs) (IngestResult, error) {
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	var saved scan.SaveResult
	if err := workflow.ExecuteActivity(ctx, acts.SaveShow, args).Get(ctx, &saved); err != nil {
		workflow.GetLogger(ctx).Error("failed to save show", "show_id", args.Show.ID, "error", err)
		return IngestResult{}, err
	}

	res := IngestResult{SaveResult: saved}
	if !saved.Advanced {
		return res, nil
	}

	delivered, err := deliver(ctx, saved.Episode)
	if err != nil {
		return res, err
	}
	res.DeliveryResult = delivered

	return res, nil
}

func TriggerRedeliverWorkflow(ctx context.Context, c client.Client, showID string) (DeliveryResult, error) {
	options := client.StartWorkflowOptions{
		TaskQueue: TaskQueue,
	}
	we, err := c.ExecuteWorkflow(ctx, options, workflows{}.Redeliver, showID)
	if err != nil {
		return DeliveryResult{}, fmt.Errorf("unable to execute workflow: %s", err)
	}

	var res DeliveryResult
	err = we.Get(ctx, &res)
	popErr := &poperrs.Error{}
	if asPoperr(err, &popErr) {
		return DeliveryResult{}, popErr
	}
	if err != nil {
		return DeliveryResult{}, fmt.Errorf("error executing workflow: %s", err)
	}

	return res, nil
}

// Redeliver pushes a show's latest episode to all of its subscribers again,
// for when an earlier fan-out only got partway.
func (workflows) Redeliver(ctx workflow.Context, showID string) (DeliveryResult, error) {
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	var ep popcorn.Episode
	if err := workflow.ExecuteActivity(ctx, acts.LatestEpisode, showID).Get(ctx, &ep); err != nil {
		workflow.GetLogger(ctx).Error("failed to fetch latest episode", "show_id", showID, "error", err)
		return DeliveryResult{}, err
	}

	return deliver(ctx, ep)
}

// SweepActiveShows records the start of a scan, checks on each airing show
// and logs a summary of what it saw.
func (workflows) SweepActiveShows(ctx workflow.Context) (SweepSummary, error) {
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	var sweep SweepResult
	if err := workflow.ExecuteActivity(ctx, acts.StartSweep).Get(ctx, &sweep); err != nil {
		workflow.GetLogger(ctx).Error("failed to start sweep", "error", err)
		return SweepSummary{}, err
	}

	summary := SweepSummary{StartedAt: sweep.StartedAt, Shows: len(sweep.Shows)}
	wg := workflow.NewWaitGroup(ctx)
	wg.Add(len(sweep.Shows))
	for _, showID := range sweep.Shows {
		workflow.Go(ctx, func(ctx workflow.Context) {
			defer wg.Done()

			var status ShowStatus
			if err := workflow.ExecuteActivity(ctx, acts.ShowStatus, showID).Get(ctx, &status); err != nil {
				workflow.GetLogger(ctx).Error("failed to check show", "show_id", showID, "error", err)
				summary.Unchecked++
				return
			}
			if status.Sien == "" {
				summary.WithoutSien++
			}
			summary.Subscriptions += status.Subscribers
		})
	}

	wg.Wait(ctx)

	if err := workflow.ExecuteActivity(ctx, acts.FinishSweep, summary).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Error("failed to finish sweep", "error", err)
		return summary, err
	}

	return summary, nil
}

// Fans the episode out to the show's subscribers. A delivery that still fails
// after its retries is counted, not returned.
func deliver(ctx workflow.Context, ep popcorn.Episode) (DeliveryResult, error) {
	var users []string
	if err := workflow.ExecuteActivity(ctx, acts.Subscribers, ep.ShowID).Get(ctx, &users); err != nil {
		workflow.GetLogger(ctx).Error("failed to list subscribers", "show_id", ep.ShowID, "error", err)
		return DeliveryResult{}, err
	}

	var res DeliveryResult
	wg := workflow.NewWaitGroup(ctx)
	wg.Add(len(users))
	for _, userID := range users {
		workflow.Go(ctx, func(ctx workflow.Context) {
			defer wg.Done()

			d := Delivery{UserID: userID, ShowID: ep.ShowID, Sien: ep.Sien}
			if err := workflow.ExecuteActivity(ctx, acts.DeliverEpisode, d).Get(ctx, nil); err != nil {
				workflow.GetLogger(ctx).Error("failed to deliver episode", "user_id", userID, "show_id", ep.ShowID, "error", err)
				res.Failed++
				return
			}
			res.Delivered++
		})
	}

	wg.Wait(ctx)

	return res, nil
}
