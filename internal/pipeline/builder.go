package pipeline

import (
	"github.com/prowire/prowire/internal/app"
	"github.com/prowire/prowire/internal/config"
	"github.com/prowire/prowire/pkg/errors"
	"github.com/prowire/prowire/pkg/logger"
)

// Build assembles the ordered processing chain for the given snapshot.
// The ordering is load-bearing: idle-timeout must see raw transport events
// before framing, security must run before the session stage, and the exec
// stage is always last. Any failure aborts the whole build; a running
// transport keeps its previous chain.
func Build(snap config.Snapshot, appCtx *app.Context) (*Chain, error) {
	stages := []Stage{
		newTransportStage(),
		newIdleTimeoutStage(snap.IdleCheckIntervalMillis, snap.IdleMaxMillis),
		newFramingStage(),
	}

	sec, err := buildSecurityStage(snap)
	if err != nil {
		return nil, err
	}
	if sec != nil {
		stages = append(stages, sec)
	}

	if snap.SessionsAllowed {
		stages = append(stages, newSessionStage())
	}
	stages = append(stages, newExecStage())

	return &Chain{stages: stages, app: appCtx}, nil
}

func buildSecurityStage(snap config.Snapshot) (SecurityStage, error) {
	switch snap.Security.Kind {
	case config.SecurityNone:
		logger.Log.Info("Pipeline: configured with no security")
		return nil, nil

	case config.SecurityDefault:
		stage := NewDefaultSecurityStage()
		if err := stage.Configure(snap.Raw()); err != nil {
			return nil, errors.New(errors.ErrCodeSecurityResolve, "pipeline.build",
				"configuring built-in security stage", err)
		}
		logger.Log.Info("Pipeline: security stage enabled", "stage", stage.Name())
		return stage, nil

	case config.SecurityCustom:
		ctor, ok := resolveSecurity(snap.Security.Ref)
		if !ok {
			return nil, errors.New(errors.ErrCodeSecurityResolve, "pipeline.build",
				"unknown security stage "+snap.Security.Ref, nil)
		}
		stage, err := ctor()
		if err != nil {
			return nil, errors.New(errors.ErrCodeSecurityResolve, "pipeline.build",
				"instantiating security stage "+snap.Security.Ref, err)
		}
		if err := stage.Configure(snap.Raw()); err != nil {
			return nil, errors.New(errors.ErrCodeSecurityResolve, "pipeline.build",
				"configuring security stage "+snap.Security.Ref, err)
		}
		logger.Log.Info("Pipeline: security stage enabled", "stage", stage.Name())
		return stage, nil

	default:
		return nil, errors.New(errors.ErrCodeChainBuild, "pipeline.build",
			"unrecognized security mode", nil)
	}
}
