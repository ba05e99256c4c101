package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/prowire/prowire/internal/app"
	"github.com/prowire/prowire/internal/config"
	"github.com/prowire/prowire/internal/control"
	"github.com/prowire/prowire/internal/monitor"
	"github.com/prowire/prowire/internal/reconfig"
	"github.com/prowire/prowire/internal/server"
	"github.com/prowire/prowire/pkg/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "prowire",
	Short: "prowire: a reconfigurable binary-protocol TCP server",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the server",
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load config
		raw, err := config.LoadFile(cfgFile)
		if err != nil {
			fmt.Printf("Error reading config: %v\n", err)
			os.Exit(1)
		}

		// 2. Init logger & metrics
		logger.InitLogger(raw.GetString("logging.level", "info"))

		// The embedding application normally supplies the executor; the
		// standalone binary wires an echo executor into the exec slot.
		appCtx := app.NewContext(app.ExecutorFunc(func(sessionID string, request []byte) ([]byte, error) {
			return request, nil
		}))
		monitor.InitMetrics(appCtx.Metrics, raw.GetString("monitoring.listen", ""))

		logger.Log.Info("Booting prowire server...")

		// 3. Start the transport lifecycle manager. Errors here are
		// startup-fatal.
		mgr := server.NewManager(raw)
		if err := mgr.Start(appCtx); err != nil {
			logger.Log.Error("Server fatal error", "err", err)
			os.Exit(1)
		}

		// 4. Wire hot reconfiguration: file watcher feeding the controller,
		// plus the control socket for operator-triggered reloads.
		watcher, err := config.NewWatcher(cfgFile)
		if err != nil {
			logger.Log.Error("Could not watch configuration file", "err", err)
			os.Exit(1)
		}
		watcher.Start()

		controller := reconfig.NewController(mgr, appCtx, watcher.Updates())
		controller.Start()

		ctl := control.NewServer(raw.GetString("control.socket-path", control.DefaultSocketPath), func() error {
			watcher.Notify()
			return nil
		})
		if err := ctl.Start(); err != nil {
			logger.Log.Error("Could not start control socket", "err", err)
			os.Exit(1)
		}

		// 5. Run until signalled.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Log.Info("Signal received, shutting down", "signal", sig.String())

		ctl.Stop()
		controller.Stop()
		watcher.Stop()
		if err := mgr.Stop(); err != nil {
			logger.Log.Error("Shutdown error", "err", err)
			os.Exit(1)
		}
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Ask a running server to re-read its configuration",
	Run: func(cmd *cobra.Command, args []string) {
		socketPath := control.DefaultSocketPath
		if raw, err := config.LoadFile(cfgFile); err == nil {
			socketPath = raw.GetString("control.socket-path", control.DefaultSocketPath)
		}
		if err := control.Reload(socketPath, 5*time.Second); err != nil {
			fmt.Printf("Reload failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Reload requested.")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "prowire.yaml", "config file path")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reloadCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
