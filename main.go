package main

import (
	"context"
	"docflow/audit"
	"docflow/bizerror"
	"docflow/common"
	"docflow/config"
	"docflow/directory"
	"docflow/domain/approval"
	"docflow/domain/flow"
	"docflow/domain/run"
	"docflow/es"
	"docflow/escalation"
	"docflow/indices"
	"docflow/infra/tracing"
	"docflow/itemstore"
	"docflow/notify"
	"docflow/persistence"
	"docflow/servehttp"
	"docflow/session"
	"docflow/sessions"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	config.LoadDotEnv(".env", "../.env")
	settings, err := config.ParseSettingsFromEnv()
	if err != nil {
		logrus.Fatalf("parse settings failed: %v", err)
	}
	common.ConfigureLogging(settings.Release, settings.LogLevel)
	if settings.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	logrus.Info("service start")

	tracerCloser, err := tracing.InitTracer(common.GetServiceName())
	if err != nil {
		logrus.Fatalf("tracer initialization failed: %v", err)
	}
	defer tracerCloser.Close()

	store, closeStore := openStore(settings)
	defer closeStore()

	auditLog := audit.NewLogger(store)
	var auditIndex *indices.AuditIndex
	shutdownIndexer := func() {}
	if settings.ElasticsearchURL != "" {
		client, err := es.NewClient(!settings.Release, settings.ElasticsearchURL)
		if err != nil {
			logrus.Fatalf("elasticsearch client creation failed: %v", err)
		}
		auditIndex = indices.NewAuditIndex(client, store)
		indexer := audit.NewAsyncHandler(auditIndex.Handle, settings.NotifyQueueSize)
		auditLog.AddHandler(indexer.Handle)
		shutdownIndexer = indexer.Close
	}

	var dispatcher notify.Dispatcher = notify.LogDispatcher{}
	if settings.WebhookURL != "" {
		dispatcher = notify.Multi(dispatcher, notify.NewWebhookDispatcher(settings.WebhookURL, settings.WebhookRate, settings.NotifyWorkers))
	}
	notifier := notify.NewAsyncDispatcher(dispatcher, settings.NotifyWorkers, settings.NotifyQueueSize)

	var lookup directory.Lookup = directory.DomainLookup(settings.DirectoryDomain)
	if settings.DirectoryURL != "" {
		lookup = &directory.HTTPLookup{URL: settings.DirectoryURL}
	}
	resolver := directory.NewResolver(lookup, settings.DirectoryTTL)

	configs := flow.NewConfigRepository(store)
	engine := run.NewEngine(store, configs, auditLog, notifier, resolver)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), tracing.TracingIngress(), bizerror.ErrorHandling())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, common.GetServiceName())
	})

	authFilter := session.SimpleAuthFilter(session.AuthOptions{TrustRemoteUser: settings.TrustRemoteUser, AdminUsers: settings.AdminUsers})
	sessions.RegisterSessionHandler(router, authFilter)
	servehttp.RegisterWorkflowHandler(router, configs, authFilter)
	servehttp.RegisterRunHandler(router, engine, authFilter)
	servehttp.RegisterApprovalHandler(router, engine, authFilter)
	servehttp.RegisterDocumentHandler(router, engine, authFilter)
	if auditIndex != nil {
		indices.RegisterIndicesRestAPI(router, auditIndex, authFilter)
		if _, err := auditIndex.StartCron(settings.AuditReindexCron); err != nil {
			logrus.Fatalf("audit reindex schedule failed: %v", err)
		}
	}

	scheduler := escalation.NewScheduler(engine, settings.EscalationTimeout)
	if err := scheduler.Start(settings.EscalationCron); err != nil {
		logrus.Fatalf("escalation schedule failed: %v", err)
	}

	servehttp.StartHTTPServer(router, settings.HTTPAddress, scheduler.Stop, notifier.Close, shutdownIndexer)
}

// openStore returns the item store selected by the settings and its release function.
func openStore(settings *config.Settings) (itemstore.Store, func()) {
	if settings.StoreDriver == config.StoreMemory {
		logrus.Warn("using the in-memory store, data is lost on exit")
		return itemstore.NewMemoryStore(), func() {}
	}

	dbConfig := settings.Database
	// create database (no conflict)
	if dbConfig.DriverType == "mysql" {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			logrus.Fatalf("failed to prepare database: %v", err)
		}
	}

	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		logrus.Fatalf("database connection failed: %v", err)
	}

	store := itemstore.NewGormStore(ds)
	ctx := context.Background()
	// database migration (race condition)
	for collection, model := range map[string]interface{}{
		approval.InstanceCollection: &approval.ApprovalInstance{},
		audit.Collection:            &approval.AuditEntry{},
		flow.Collection:             &flow.ConfigRecord{},
	} {
		if err := store.Migrate(ctx, collection, model); err != nil {
			logrus.Fatalf("database migration of %s failed: %v", collection, err)
		}
	}
	return store, ds.Stop
}
