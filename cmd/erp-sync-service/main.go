package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/settlement_backend/config"
	"github.com/mmdatafocus/settlement_backend/erpsync"
	"github.com/mmdatafocus/settlement_backend/models"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8081"

// Runs the ERP payment-confirmation consumer: a Pub/Sub pull loop plus a
// small HTTP surface for the push-delivery variant and health checks.
func main() {
	port := os.Getenv("ERP_SYNC_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/pubsub/erp-confirmations", erpsync.PubSubPushHandler())

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	consumerErrCh := make(chan error, 1)
	if strings.EqualFold(strings.TrimSpace(os.Getenv("ERP_SYNC_PULL_DISABLED")), "true") {
		logger.WithFields(logrus.Fields{"field": "erpsync"}).Warn("ERP_SYNC_PULL_DISABLED=true; push endpoint only")
	} else {
		go func() {
			consumerErrCh <- erpsync.RunPullConsumer(sigCtx)
		}()
	}

	select {
	case <-sigCtx.Done():
	case err := <-consumerErrCh:
		if err != nil && sigCtx.Err() == nil {
			logger.WithFields(logrus.Fields{"field": "erpsync"}).Error(err)
		}
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
