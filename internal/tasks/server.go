package tasks

import (
	"context"
	"fmt"

	"guildhub/internal/utils/logger"

	"github.com/hibiken/asynq"
)

// Server handles task processing
type Server struct {
	server  *asynq.Server
	handler *TaskHandler
	logger  *logger.Logger
}

// NewServer creates a new task processing server
func NewServer(redisAddr, username, password string, db int, concurrency int, handler *TaskHandler, logger *logger.Logger) *Server {
	if concurrency <= 0 {
		concurrency = 10
	}
	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisAddr,
			Username: username,
			Password: password,
			DB:       db,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
				QueueLow:      1,
			},
			// Higher priority queues are always drained first.
			StrictPriority: true,
		},
	)

	return &Server{
		server:  server,
		handler: handler,
		logger:  logger,
	}
}

// Start starts the task processing server
func (s *Server) Start(ctx context.Context) error {
	mux := asynq.NewServeMux()

	mux.HandleFunc(TaskTypeExpireInvitations, s.handler.HandleExpireInvitations)
	mux.HandleFunc(TaskTypeSyncDerivedGroups, s.handler.HandleSyncDerivedGroups)
	mux.HandleFunc(TaskTypeRefreshAutoRecruit, s.handler.HandleRefreshAutoRecruit)
	mux.HandleFunc(TaskTypeProcessDiscordInvite, s.handler.HandleProcessDiscordInvites)

	s.logger.Info("starting task processing server queues %v", map[string]int{
		QueueCritical: 6,
		QueueDefault:  3,
		QueueLow:      1,
	})

	if err := s.server.Start(mux); err != nil {
		return fmt.Errorf("failed to start task server: %w", err)
	}

	return nil
}

// Stop stops the task processing server
func (s *Server) Stop() {
	s.server.Stop()
	s.logger.Info("task processing server stopped")
}

// Shutdown gracefully shuts down the task processing server
func (s *Server) Shutdown() {
	s.logger.Info("shutting down task processing server")
	s.server.Shutdown()
}
