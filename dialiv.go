package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/weapp/dialiv/api"
	"github.com/weapp/dialiv/auth"
	"github.com/weapp/dialiv/clients"
	"github.com/weapp/dialiv/events"
	"github.com/weapp/dialiv/models"
	"github.com/weapp/dialiv/templates"
)

var defaultStopTimeout = 60 * time.Second

// InboundConfig describes how to receive inbound communication
type InboundConfig struct {
	SslKeyFile    string `split_words:"true" default:""`
	SslCertFile   string `split_words:"true" default:""`
	ListenAddress string `split_words:"true" required:"true"`
}

func serviceConfigProvider() (InboundConfig, error) {
	var config InboundConfig
	err := envconfig.Process("service", &config)
	if err != nil {
		return InboundConfig{}, err
	}
	return config, nil
}

func emailTemplateProvider() (models.Templates, error) {
	emailTemplates, err := templates.New()
	return emailTemplates, err
}

func serverProvider(config InboundConfig, rtr *mux.Router) *http.Server {
	return &http.Server{
		Addr:              config.ListenAddress,
		Handler:           rtr,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func loggerProvider() (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	config.EncoderConfig.FunctionKey = "function"
	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// InvocationParams are the parameters need to kick off a service
type InvocationParams struct {
	fx.In
	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Config     InboundConfig
	Server     *http.Server
	Consumer   events.EventConsumer
	Logger     *zap.SugaredLogger
}

func startEventConsumer(p InvocationParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := p.Consumer.Start(); err != nil {
					p.Logger.With(zap.Error(err)).Error("Unable to start the account deletion consumer, shutting down the service")
					if shutdownErr := p.Shutdowner.Shutdown(); shutdownErr != nil {
						log.Printf("Failed to shutdown: %v", shutdownErr)
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return p.Consumer.Stop()
		},
	})
}

func startServer(p InvocationParams) {
	p.Lifecycle.Append(
		fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					var err error
					if p.Config.SslCertFile != "" && p.Config.SslKeyFile != "" {
						err = p.Server.ListenAndServeTLS(p.Config.SslCertFile, p.Config.SslKeyFile)
					} else {
						err = p.Server.ListenAndServe()
					}
					if err != nil && !errors.Is(err, http.ErrServerClosed) {
						p.Logger.With(zap.Error(err)).Error("Server error, shutting down the service")
						if shutdownErr := p.Shutdowner.Shutdown(); shutdownErr != nil {
							log.Printf("Failed to shutdown: %v", shutdownErr)
						}
					}
				}()
				p.Logger.With(zap.String("address", p.Config.ListenAddress)).Info("dialiv listening")
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return p.Server.Shutdown(ctx)
			},
		},
	)
}

func main() {
	// a .env file is optional, the environment wins over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Loading .env: %v", err)
	}

	fx.New(
		clients.MongoModule,
		clients.NotifierModule,
		clients.TwilioModule,
		auth.Module,
		events.Module,
		api.RouterModule,
		fx.Provide(
			serviceConfigProvider,
			emailTemplateProvider,
			serverProvider,
			loggerProvider,
			api.NewApi,
		),
		fx.Invoke(startEventConsumer),
		fx.Invoke(startServer),
		fx.StopTimeout(defaultStopTimeout),
	).Run()
}
