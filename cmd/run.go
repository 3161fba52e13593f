package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nvrsync/camsync/internal/broker"
	"github.com/nvrsync/camsync/internal/config"
	"github.com/nvrsync/camsync/internal/descriptor"
	camerrors "github.com/nvrsync/camsync/internal/errors"
	"github.com/nvrsync/camsync/internal/httpclient"
	"github.com/nvrsync/camsync/internal/logger"
	"github.com/nvrsync/camsync/internal/nvrapi"
	"github.com/nvrsync/camsync/internal/recording"
	"github.com/nvrsync/camsync/internal/snapshot"
	"github.com/nvrsync/camsync/internal/syncsystem"
)

func newRunCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the broker and NVR and start syncing to all configured destinations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*configPath)
		},
	}
}

func run(configPath string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := logger.Init(settings.Logging.Level, settings.Logging.Path); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	log := logger.New(camerrors.ComponentSyncSystem)

	camerrors.SetTelemetryReporter(camerrors.NewSentryReporter(settings.Telemetry.SentryEnabled))

	descriptors := make([]descriptor.Descriptor, 0, len(settings.UploadDestinations))
	for _, text := range settings.UploadDestinations {
		d, err := descriptor.Parse(text)
		if err != nil {
			return fmt.Errorf("parsing upload destination %q: %w", text, err)
		}
		descriptors = append(descriptors, d)
	}

	api := nvrapi.New(settings.NVR.APIAddress, &httpclient.Config{UserAgent: "camsync"})
	defer api.Close()

	decoder := broker.NewDecoder(broker.Config{
		Broker:   settings.MQTT.Broker,
		ClientID: settings.MQTT.ClientID,
		Username: settings.MQTT.Username,
		Password: settings.MQTT.Password,
		Prefix:   settings.MQTT.TopicPrefix,
		QoS:      settings.MQTT.QoS,
	})

	snapTask := snapshot.Task{
		Descriptors: descriptors,
		RetrySleep:  settings.Upload.RetrySleep,
	}
	newRecordingTask := func(reviewID string) *recording.Task {
		task := recording.NewTask(reviewID, descriptors, api, settings.Upload.RetrySleep)
		if settings.Recording.MaxRetryAttempts > 0 || settings.Recording.RetryDuration > 0 {
			task.MaxRetryAttempts = uint32(settings.Recording.MaxRetryAttempts)
			task.RetryDuration = settings.Recording.RetryDuration
		}
		if settings.Recording.MaxUploadAttempts > 0 {
			task.MaxUploadAttempts = settings.Recording.MaxUploadAttempts
		}
		if settings.Recording.MaxDeleteAttempts > 0 {
			task.MaxDeleteAttempts = settings.Recording.MaxDeleteAttempts
		}
		return task
	}

	sys := syncsystem.New(
		syncsystem.Config{DelayAfterStartup: settings.NVR.DelayAfterStartup},
		decoder, api, descriptors, snapTask, newRecordingTask,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	brokerDone := make(chan error, 1)
	go func() { brokerDone <- decoder.Run(ctx, log) }()

	sysDone := make(chan struct{})
	go func() { sys.Run(ctx, log); close(sysDone) }()

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-brokerDone:
		if err != nil {
			log.Error("broker connection failed at startup", logger.Err(err))
			cancel()
			<-sysDone
			return err
		}
	}

	cancel()
	<-sysDone
	log.Info("camsync stopped cleanly")
	return nil
}
