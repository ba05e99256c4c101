package server

import (
	"github.com/prowire/prowire/pkg/logger"
	"github.com/prowire/prowire/pkg/pool"
)

// IOStrategy decides where an accepted connection's pipeline executes: on
// the accepting goroutine or handed off to the worker pool. The choice is
// external configuration, not hardcoded.
type IOStrategy interface {
	Name() string
	Dispatch(workers *pool.Pool, serve func())
}

// StrategyCode returns a numeric code for the strategy, for attribute
// polling.
func StrategyCode(s IOStrategy) float64 {
	switch s.(type) {
	case leaderFollowerStrategy:
		return 1
	case sameThreadStrategy:
		return 2
	default:
		return 0
	}
}

type leaderFollowerStrategy struct{}

func (leaderFollowerStrategy) Name() string { return "leader-follower" }

func (leaderFollowerStrategy) Dispatch(workers *pool.Pool, serve func()) {
	if err := workers.Submit(serve); err != nil {
		// Pool is closing; finish the connection on the accept goroutine.
		serve()
	}
}

type sameThreadStrategy struct{}

func (sameThreadStrategy) Name() string { return "same-thread" }

func (sameThreadStrategy) Dispatch(_ *pool.Pool, serve func()) {
	serve()
}

// StrategyFor maps a configured strategy name to an implementation. Unknown
// names fall back to leader-follower with a warning.
func StrategyFor(name string) IOStrategy {
	switch name {
	case "leader-follower":
		return leaderFollowerStrategy{}
	case "same-thread":
		return sameThreadStrategy{}
	default:
		logger.Log.Warn("Transport: unknown IO strategy, falling back to leader-follower", "strategy", name)
		return leaderFollowerStrategy{}
	}
}
