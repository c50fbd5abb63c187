package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/eligibility/internal/model"
	"github.com/alfredjeanlab/eligibility/internal/service"
	"github.com/alfredjeanlab/eligibility/internal/store"
)

// resolution is everything an app serves to one client.
type resolution struct {
	AppID          string                     `json:"appId"`
	AppConfig      *model.AppConfig           `json:"appConfig,omitempty"`
	Subpopulations []*model.Subpopulation     `json:"subpopulations"`
	Topics         []*model.NotificationTopic `json:"topics"`
	Schedules      []service.PlanSchedule     `json:"schedules"`
}

var resolveFlags clientFlags

var resolveCmd = &cobra.Command{
	Use:     "resolve <app>",
	Short:   "Show the app config, consent groups, topics and schedules a client gets",
	GroupID: "eval",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cc, err := resolveFlags.context()
		if err != nil {
			return err
		}
		r, err := resolve(cmd.Context(), env.svc, args[0], cc)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(r)
		}
		printResolution(os.Stdout, r)
		return nil
	},
}

func init() {
	resolveFlags.register(resolveCmd)
}

func resolve(ctx context.Context, svc *service.Service, appID string, cc model.ClientContext) (*resolution, error) {
	r := &resolution{AppID: appID}

	ac, err := svc.AppConfigForClient(ctx, appID, cc)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		r.AppConfig = ac
	}

	if r.Subpopulations, err = svc.SubpopulationsForClient(ctx, appID, cc); err != nil {
		return nil, err
	}
	if r.Topics, err = svc.TopicsForClient(ctx, appID, cc); err != nil {
		return nil, err
	}
	if r.Schedules, err = svc.SchedulesForClient(ctx, appID, cc); err != nil {
		return nil, err
	}
	return r, nil
}
