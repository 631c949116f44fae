package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"

	"message-relay/handler"
	"message-relay/internal/config"
	"message-relay/internal/integrations/channel"
	"message-relay/internal/integrations/conversations"
	"message-relay/internal/integrations/directory"
	"message-relay/internal/integrations/httpjson"
	"message-relay/internal/integrations/paramstore"
	"message-relay/internal/integrations/webhook"
	"message-relay/internal/repository"
	"message-relay/internal/server"
	"message-relay/internal/usecase"
)

const drainTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "message-relay",
		Short:         "Record inbound chat messages and forward them to a signed webhook",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP listener",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "lambda",
		Short: "Run as an AWS Lambda function behind API Gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLambda(cmd.Context())
		},
	})
	return root
}

// app holds the components shared by both run modes.
type app struct {
	cfg      config.Config
	store    *repository.Client
	sender   *channel.Client
	pipeline *usecase.Pipeline
}

func build(ctx context.Context, logger *slog.Logger) (*app, error) {
	// ---- Configuration (read only here) ----
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		return nil, err
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	// ---- Clients ----
	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.MessagesTable, repository.WithTimeout(cfg.StoreTimeout))
	if err != nil {
		return nil, err
	}

	httpClient := httpjson.NewClient(cfg.HTTPTimeout)
	dirOpts := []directory.Option{directory.WithHTTPClient(httpClient)}
	chanOpts := []channel.Option{channel.WithHTTPClient(httpClient)}
	if cfg.ParamPrefix != "" {
		params, err := paramstore.New(awsssm.NewFromConfig(awsCfg), cfg.ParamPrefix)
		if err != nil {
			return nil, err
		}
		dirOpts = append(dirOpts, directory.WithTokenSource(params.Token("directory-token")))
		chanOpts = append(chanOpts, channel.WithTokenSource(params.Token("channel-token")))
	}

	dir, err := directory.NewClient(cfg.DirectoryBaseURL, dirOpts...)
	if err != nil {
		return nil, err
	}
	convSvc, err := conversations.NewClient(cfg.ConversationBaseURL, conversations.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}
	sender, err := channel.NewClient(cfg.ChannelBaseURL, chanOpts...)
	if err != nil {
		return nil, err
	}

	// ---- Pipeline ----
	users, err := usecase.NewUserResolver(dir, logger)
	if err != nil {
		return nil, err
	}
	convs, err := usecase.NewConversationResolver(convSvc, cfg.ConversationAgent, cfg.ConversationTitle, logger)
	if err != nil {
		return nil, err
	}
	recorder, err := usecase.NewRecorder(store)
	if err != nil {
		return nil, err
	}
	dispatcher, err := usecase.NewDispatcher(store, webhook.NewClient(httpClient), logger, usecase.WithBackoff(cfg.WebhookBackoff))
	if err != nil {
		return nil, err
	}
	replies, err := usecase.NewReplyTrigger(sender, logger)
	if err != nil {
		return nil, err
	}
	pipeline, err := usecase.NewPipeline(users, convs, recorder, dispatcher, replies, logger)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, store: store, sender: sender, pipeline: pipeline}, nil
}

func runServe(ctx context.Context) error {
	logger := slog.Default()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, logger)
	if err != nil {
		return err
	}
	pool, err := usecase.NewWorkerPool(a.pipeline, a.cfg.Workers, logger)
	if err != nil {
		return err
	}
	srv, err := server.NewServer(a.cfg.Addr(), pool, a.sender, a.store, logger)
	if err != nil {
		return err
	}

	runErr := srv.Run(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := pool.Close(drainCtx); err != nil {
		logger.Error("worker pool did not drain", "err", err)
	}
	return runErr
}

func runLambda(ctx context.Context) error {
	logger := slog.Default()
	a, err := build(ctx, logger)
	if err != nil {
		return err
	}
	h, err := handler.NewHandler(a.pipeline, logger)
	if err != nil {
		return err
	}
	lambda.Start(h.Handle)
	return nil
}
