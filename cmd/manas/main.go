package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"manas-server/pkg/analysis"
	"manas-server/pkg/config"
	"manas-server/pkg/emotion"
	"manas-server/pkg/history"
	http_server "manas-server/pkg/http"
	"manas-server/pkg/messaging"
	"manas-server/pkg/metrics"
	"manas-server/pkg/pipeline"
	"manas-server/pkg/risk"
	"manas-server/pkg/version"
)

var (
	logger       = logrus.New()
	appConfig    *config.Config
	amqpClient   *messaging.AMQPClient
	historyStore history.Store
	engine       *pipeline.Engine
	httpServer   *http_server.Server
	wsHub        *http_server.AssessmentHub

	rootCtx    context.Context
	rootCancel context.CancelFunc
)

func main() {
	// Bootstrap formatter until the config-driven one takes over.
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetOutput(os.Stdout)

	logger.WithField("version", version.Version).Info("Starting manas assessment engine")

	rootCtx, rootCancel = context.WithCancel(context.Background())
	defer rootCancel()

	if err := initialize(); err != nil {
		logger.WithError(err).Fatal("Failed to initialize server")
	}

	httpServer.Start()
	go wsHub.Run(rootCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("Received shutdown signal, cleaning up...")

	rootCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error shutting down HTTP server")
	}

	if amqpClient != nil {
		amqpClient.Disconnect()
	}

	if sqlStore, ok := historyStore.(*history.SQLStore); ok {
		if err := sqlStore.Close(); err != nil {
			logger.WithError(err).Error("Error closing history database")
		}
	}

	logger.Info("Shutdown complete")
}

func initialize() error {
	var err error
	appConfig, err = config.Load(logger)
	if err != nil {
		return err
	}
	appConfig.ApplyLogging(logger)

	metrics.StartMetrics(logger, appConfig.HTTP.EnableMetrics)

	var audit messaging.AuditSink = messaging.NoopSink{}
	if appConfig.Messaging.Enabled {
		amqpClient = messaging.NewAMQPClient(logger, messaging.AMQPConfig{
			URL:            appConfig.Messaging.URL,
			QueueName:      appConfig.Messaging.QueueName,
			ExchangeName:   appConfig.Messaging.ExchangeName,
			RoutingKey:     appConfig.Messaging.RoutingKey,
			PublishTimeout: appConfig.Messaging.PublishTimeout,
		})
		if err := amqpClient.Connect(); err != nil {
			// The engine stays correct without the audit trail, so a
			// broker outage is not fatal at startup.
			logger.WithError(err).Warn("AMQP connection failed, audit publishing degraded")
		}
		audit = amqpClient
	}

	var providers *analysis.ProviderManager
	if appConfig.Analysis.Enabled {
		providers = analysis.NewProviderManager(logger, appConfig.Analysis.DefaultProvider)
		httpProvider := analysis.NewHTTPProvider(logger, appConfig.Analysis.BaseURL, appConfig.Analysis.Timeout)
		if err := providers.RegisterProvider(httpProvider); err != nil {
			return err
		}
	} else {
		logger.Info("AI analysis disabled, text risk will be keyword-only")
	}

	if appConfig.History.Backend == "mysql" {
		sqlStore, err := history.NewSQLStore(appConfig.History.MySQL, logger)
		if err != nil {
			return err
		}
		historyStore = sqlStore
	} else {
		historyStore = history.NewMemoryStore(logger)
	}

	engine = pipeline.NewEngine(logger, pipeline.Options{
		Facial:              emotion.NewFacialClassifier(appConfig.Engine.FacialCoefficients, logger),
		Acoustic:            emotion.NewAcousticClassifier(appConfig.Engine.AcousticThresholds, logger),
		Fuser:               emotion.NewFuser(appConfig.Engine.ModalityWeights, logger),
		Scanner:             risk.NewScanner(nil, appConfig.Engine.TierWeights, appConfig.Engine.BlendWeights, logger),
		Assessor:            risk.NewAssessor(appConfig.Engine.CombinationWeights, appConfig.Engine.RiskThresholds, logger),
		Selector:            risk.NewSelector(nil, logger),
		Providers:           providers,
		ProviderName:        appConfig.Analysis.DefaultProvider,
		History:             historyStore,
		Audit:               audit,
		CollaboratorTimeout: appConfig.Engine.CollaboratorTimeout,
	})

	wsHub = http_server.NewAssessmentHub(logger)
	engine.AddResultListener(wsHub.Listener())

	httpServer = http_server.NewServer(logger, &http_server.Config{
		Port:          appConfig.HTTP.Port,
		EnableMetrics: appConfig.HTTP.EnableMetrics,
		ReadTimeout:   appConfig.HTTP.ReadTimeout,
		WriteTimeout:  appConfig.HTTP.WriteTimeout,
	})
	httpServer.SetAssessmentHub(wsHub)
	http_server.NewAssessHandler(logger, engine).Register(httpServer)

	return nil
}
