package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/repo2txt/internal/services/api"
	"github.com/temirov/repo2txt/internal/services/stream"
)

const (
	serveUse              = "serve [path]"
	serveShortDescription = "serve workspace commands over HTTP"
	serveLongDescription  = `Start the command server. POST /commands/<name> runs a workspace command,
GET /events streams analysis and export progress as newline-delimited JSON and
GET /metrics exposes Prometheus metrics. When a path is given it is opened at startup.`
	addressFlagName        = "address"
	addressFlagDescription = "listen address, overrides server.address from configuration"
	serverListeningFormat  = "Command server listening on %s\n"
)

func createServeCommand(app *application) *cobra.Command {
	var listenAddress string

	serveCommand := &cobra.Command{
		Use:   serveUse,
		Short: serveShortDescription,
		Long:  serveLongDescription,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			initialPath := ""
			if len(arguments) > 0 {
				initialPath = arguments[0]
			}
			return startCommandServer(command.Context(), app, initialPath, listenAddress, command.ErrOrStderr())
		},
	}
	serveCommand.Flags().StringVar(&listenAddress, addressFlagName, "", addressFlagDescription)
	return serveCommand
}

// startCommandServer serves one workspace until ctx ends. The bound address is
// reported on writer once the listener is active.
func startCommandServer(ctx context.Context, app *application, initialPath string, listenAddress string, writer io.Writer) error {
	configurationRoot, rootErr := resolveRoot(initialPath)
	if rootErr != nil {
		return rootErr
	}
	appConfig, serverConfig, configErr := app.loadConfiguration(configurationRoot)
	if configErr != nil {
		return configErr
	}
	shutdownTimeout, timeoutErr := serverConfig.ShutdownDuration()
	if timeoutErr != nil {
		return timeoutErr
	}
	if listenAddress == "" {
		listenAddress = serverConfig.ListenAddress()
	}

	hub := stream.NewHub()
	logEmitter := stream.EmitterFunc(func(event stream.Event) {
		if event.Kind == stream.EventKindAnalysisCompleted {
			app.logger.Info("analysis completed", zap.Uint64("epoch", event.Epoch))
		}
	})
	service := app.newWorkspace(appConfig, stream.Fanout(hub, logEmitter))
	defer service.Close()
	if initialPath != "" {
		if _, openErr := service.Open(ctx, configurationRoot, nil); openErr != nil {
			return openErr
		}
	}

	server := api.NewServer(api.Config{
		Address:         listenAddress,
		Capabilities:    apiCapabilities(),
		Executors:       commandHandlers{app: app, service: service}.executors(),
		ShutdownTimeout: shutdownTimeout,
		Events:          hub,
		Logger:          app.logger,
	})
	runErr := server.Run(ctx, func(address string) {
		fmt.Fprintf(writer, serverListeningFormat, address)
	})
	if dropped := hub.Dropped(); dropped > 0 {
		app.logger.Info("events dropped for slow subscribers", zap.Uint64("count", dropped))
	}
	return runErr
}
