package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mmdatafocus/settlement_backend/config"
	"github.com/mmdatafocus/settlement_backend/erpsync"
	"github.com/mmdatafocus/settlement_backend/models"
	"github.com/mmdatafocus/settlement_backend/utils"
	"github.com/mmdatafocus/settlement_backend/workflow"
)

const defaultPort = "8080"

// Admin trigger service: lets the job scheduler (or an operator with the
// shared token) fire classification, audit and unwind without shell access to
// the batch tools. The algorithmic surface stays in workflow/; this is
// transport only.
func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins: strings.Split(envOr("CORS_ORIGINS", "*"), ","),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "X-Admin-Token"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "redis": config.GetRedisDB() != nil})
	})

	// ERP confirmations arrive here when deployed with a push subscription.
	router.POST("/pubsub/erp-confirmations", erpsync.PubSubPushHandler())

	api := router.Group("/api", adminTokenGuard())
	api.POST("/classify", handleClassify)
	api.GET("/audit", handleAudit)
	api.POST("/unwind", handleUnwind)
	api.POST("/match-statements", handleMatchStatements)
	api.POST("/unlink", handleUnlink)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			config.GetLogger().WithField("error", err.Error()).Fatal("admin server failed")
		}
	}()

	// Listen first, then connect: Cloud Run needs the port open quickly.
	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	config.GetLogger().WithField("port", port).Info("settlement admin server ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func adminTokenGuard() gin.HandlerFunc {
	token := os.Getenv("ADMIN_TOKEN")
	return func(c *gin.Context) {
		if token == "" || c.GetHeader("X-Admin-Token") != token {
			c.AbortWithStatusJSON(401, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

type classifyRequest struct {
	BusinessId string `json:"business_id" binding:"required"`
	TitleIds   []int  `json:"title_ids"`
	BatchId    int    `json:"batch_id"`
}

func handleClassify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	// Shed duplicate triggers before touching the DB; the MySQL advisory lock
	// inside the run is the actual correctness guard.
	lock, err := config.ObtainRunLock(c.Request.Context(), req.BusinessId, 5*time.Minute)
	if err == redislock.ErrNotObtained {
		c.JSON(409, gin.H{"error": "a classification run is already in progress"})
		return
	}
	if lock != nil {
		defer lock.Release(c.Request.Context())
	}

	ctx := utils.SetCorrelationIdInContext(c.Request.Context(), uuid.NewString())
	ctx = utils.SetActorInContext(ctx, "admin-api")

	run, err := workflow.RunSettlementClassification(ctx, config.GetDB(), config.GetLogger(), workflow.ClassifyOptions{
		BusinessId: req.BusinessId,
		TitleIds:   req.TitleIds,
		BatchId:    req.BatchId,
	})
	if errors.Is(err, workflow.ErrBatchAlreadyClassified) {
		c.JSON(409, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		status := 500
		if run != nil && run.Status == models.RunStatusPartial {
			status = 207
		}
		c.JSON(status, gin.H{"error": err.Error(), "run": run})
		return
	}
	c.JSON(200, gin.H{"run": run})
}

func handleAudit(c *gin.Context) {
	businessId := c.Query("business_id")
	if businessId == "" {
		c.JSON(400, gin.H{"error": "business_id is required"})
		return
	}
	persist := c.Query("persist") == "true"

	findings, cid, err := workflow.RunConsistencyAudit(c.Request.Context(), config.GetDB(), config.GetLogger(),
		businessId, workflow.AuditOptions{Persist: persist})
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"correlation_id": cid, "findings": findings, "count": len(findings)})
}

type matchRequest struct {
	BusinessId string `json:"business_id" binding:"required"`
}

func handleMatchStatements(c *gin.Context) {
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	result, err := workflow.MatchStatementLines(c.Request.Context(), config.GetDB(), config.GetLogger(), req.BusinessId)
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error(), "result": result})
		return
	}
	c.JSON(200, gin.H{"result": result})
}

type unlinkRequest struct {
	BusinessId      string `json:"business_id" binding:"required"`
	TitleId         int    `json:"title_id"`
	StatementLineId int    `json:"statement_line_id"`
}

// handleUnlink is the manual-review correction: it drops the pending links
// attached to one title or one statement line so the next matching pass can
// propose again. Settled titles are out of scope here; reverting a settled
// title goes through /api/unwind.
func handleUnlink(c *gin.Context) {
	var req unlinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if (req.TitleId == 0) == (req.StatementLineId == 0) {
		c.JSON(400, gin.H{"error": "exactly one of title_id or statement_line_id is required"})
		return
	}

	err := config.GetDB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if req.TitleId != 0 {
			return models.UnlinkAllForTitle(tx, req.BusinessId, req.TitleId)
		}
		if err := models.UnlinkAllForStatementLine(tx, req.BusinessId, req.StatementLineId); err != nil {
			return err
		}
		return tx.Model(&models.BankStatementLine{}).
			Where("business_id = ? AND id = ?", req.BusinessId, req.StatementLineId).
			Updates(map[string]interface{}{
				"match_status":   models.MatchStatusPending,
				"match_score":    0,
				"match_criteria": "",
			}).Error
	})
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"status": "unlinked"})
}

type unwindRequest struct {
	BusinessId string `json:"business_id" binding:"required"`
	TitleIds   []int  `json:"title_ids"`
	BatchId    int    `json:"batch_id"`
}

func handleUnwind(c *gin.Context) {
	var req unwindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	result, err := workflow.RunReconciliationUnwind(c.Request.Context(), config.GetDB(), config.GetLogger(),
		workflow.UnwindRequest{
			BusinessId: req.BusinessId,
			TitleIds:   req.TitleIds,
			BatchId:    req.BatchId,
		})
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}

	config.GetLogger().WithFields(logrus.Fields{
		"module":      "AdminServer",
		"business_id": req.BusinessId,
		"reverted":    result.TitlesReverted,
	}).Info("unwind triggered via admin api")
	c.JSON(200, gin.H{"result": result})
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
