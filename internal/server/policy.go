package server

import (
	"github.com/prowire/prowire/internal/config"
	"github.com/prowire/prowire/pkg/logger"
	"github.com/prowire/prowire/pkg/pool"
)

// poolConfigs computes the bounded executor configurations from the
// snapshot. Out-of-range sizes (max below core) are clamped rather than
// passed through, with a warning; the server must keep working under a bad
// configuration.
func poolConfigs(snap config.Snapshot) (worker, kernel pool.Config) {
	worker = pool.Config{
		Name: "worker",
		Core: snap.WorkerPoolCore,
		Max:  snap.WorkerPoolMax,
	}
	kernel = pool.Config{
		Name: "kernel",
		Core: snap.KernelPoolCore,
		Max:  snap.KernelPoolMax,
	}

	var adjusted bool
	if worker, adjusted = worker.Normalized(); adjusted {
		logger.Log.Warn("Pool: worker pool sizes out of range, clamped",
			"core", snap.WorkerPoolCore, "max", snap.WorkerPoolMax)
	}
	if kernel, adjusted = kernel.Normalized(); adjusted {
		logger.Log.Warn("Pool: kernel pool sizes out of range, clamped",
			"core", snap.KernelPoolCore, "max", snap.KernelPoolMax)
	}
	return worker, kernel
}
