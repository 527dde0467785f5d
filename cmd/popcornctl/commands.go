package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jdholdren/popcorn/internal/popcorn"
	"github.com/jdholdren/popcorn/internal/scan"
)

func newShowsCommand(cctx *commandContext) *cobra.Command {
	var inactive bool

	cmd := &cobra.Command{
		Use:   "shows",
		Short: "List airing shows, or ended ones with --inactive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := cctx.store(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			list := repo.ActiveShows
			if inactive {
				list = repo.InactiveShows
			}
			showIDs, err := list(ctx)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(showIDs))
			for _, id := range showIDs {
				var title, latest string
				show, err := repo.Show(ctx, id)
				if err != nil && !errors.Is(err, popcorn.ErrNotFound) {
					return err
				}
				title = show.Title

				ep, err := repo.LatestEpisode(ctx, id)
				if err != nil && !errors.Is(err, popcorn.ErrNotFound) {
					return err
				}
				if err == nil {
					latest = episodeLabel(ep.Season, ep.Episode, ep.Sien)
				}

				subs, err := repo.Subscribers(ctx, id)
				if err != nil {
					return err
				}
				rows = append(rows, []string{id, title, latest, strconv.Itoa(len(subs))})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Latest", "Subscribers"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&inactive, "inactive", false, "List shows that are no longer airing")

	return cmd
}

func newShowCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <show-id>",
		Short: "Show a show's details and latest episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := cctx.store(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			show, err := repo.Show(ctx, args[0])
			if errors.Is(err, popcorn.ErrNotFound) {
				return fmt.Errorf("show %s not found", args[0])
			}
			if err != nil {
				return err
			}

			rows := [][]string{
				{"ID", show.ID},
				{"Title", show.Title},
				{"Active", strconv.FormatBool(show.Active)},
				{"Year", strconv.Itoa(show.Year)},
				{"Network", show.Network},
				{"Country", show.Country},
				{"Rating", strconv.FormatFloat(show.Rating, 'f', 1, 64)},
				{"Updated", formatMillis(show.Timestamp)},
			}
			ep, err := repo.LatestEpisode(ctx, show.ID)
			switch {
			case errors.Is(err, popcorn.ErrNotFound):
			case err != nil:
				return err
			default:
				rows = append(rows,
					[]string{"Latest", episodeLabel(ep.Season, ep.Episode, ep.Sien)},
					[]string{"Latest title", ep.Title},
					[]string{"First aired", formatMillis(ep.FirstAired)},
				)
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
}

func newFeedCommand(cctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "feed <user-id>",
		Short: "Print a user's feed, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := cctx.store(cmd)
			if err != nil {
				return err
			}

			entries, err := repo.Feed(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					formatMillis(e.Timestamp),
					e.Title,
					episodeLabel(e.Season, e.Episode, e.Sien),
					e.EpisodeTitle,
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Added", "Show", "Episode", "Title"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Entries to print, 0 for all")

	return cmd
}

func newSubscribersCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "subscribers <show-id>",
		Short: "List the users following a show",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := cctx.store(cmd)
			if err != nil {
				return err
			}

			users, err := repo.Subscribers(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"User"}, column(users), nil))
			return nil
		},
	}
}

func newSubscriptionsCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "subscriptions <user-id>",
		Short: "List the shows a user follows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := cctx.store(cmd)
			if err != nil {
				return err
			}

			shows, err := repo.Subscriptions(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Show"}, column(shows), nil))
			return nil
		},
	}
}

func newSubscribeCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe <user-id> <show-id>",
		Short: "Subscribe a user to a show",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := cctx.store(cmd)
			if err != nil {
				return err
			}

			if err := repo.Subscribe(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s subscribed to %s\n", args[0], args[1])
			return nil
		},
	}
}

func newUnsubscribeCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unsubscribe <user-id> <show-id>",
		Short: "Unsubscribe a user from a show and clear it from their feed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := cctx.store(cmd)
			if err != nil {
				return err
			}

			if err := repo.Unsubscribe(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s unsubscribed from %s\n", args[0], args[1])
			return nil
		},
	}
}

func newScanStatusCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan-status",
		Short: "Print when the last scan started",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := cctx.store(cmd)
			if err != nil {
				return err
			}

			started, err := repo.LatestScan(cmd.Context())
			if errors.Is(err, popcorn.ErrNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "no scan recorded")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "last scan started %s\n", formatMillis(started))
			return nil
		},
	}
}

func newRedeliverCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "redeliver <show-id>",
		Short: "Put a show's latest episode into every subscriber's feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := cctx.store(cmd)
			if err != nil {
				return err
			}

			ep, err := repo.LatestEpisode(cmd.Context(), args[0])
			if errors.Is(err, popcorn.ErrNotFound) {
				return fmt.Errorf("show %s has no latest episode", args[0])
			}
			if err != nil {
				return err
			}

			res, err := scan.New(repo, cctx.cfg.FanOutConcurrency).FanOut(cmd.Context(), args[0], ep.Sien)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "delivered %s to %d feeds, %d failed\n", ep.Sien, res.Delivered, res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("%d deliveries failed", res.Failed)
			}
			return nil
		},
	}
}

func episodeLabel(season, episode int, sien string) string {
	if season == 0 && episode == 0 {
		return "#" + sien
	}
	return fmt.Sprintf("S%02dE%02d", season, episode)
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func column(vals []string) [][]string {
	rows := make([][]string, 0, len(vals))
	for _, v := range vals {
		rows = append(rows, []string{v})
	}
	return rows
}
