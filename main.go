package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	alertapp "agrowatch/internal/alerts/application"
	alertrepo "agrowatch/internal/alerts/infrastructure/postgres"
	alertinterfaces "agrowatch/internal/alerts/interfaces"
	alerthttp "agrowatch/internal/alerts/interfaces/http"
	apihttp "agrowatch/internal/api/http"
	"agrowatch/internal/audit"
	"agrowatch/internal/auth"
	evaluator "agrowatch/internal/evaluator/application"
	"agrowatch/internal/observability/metrics"
	readingrepo "agrowatch/internal/readings/infrastructure/postgres"
	"agrowatch/internal/readings/interfaces/ingest"
	thresholdrepo "agrowatch/internal/thresholds/infrastructure/postgres"
	thresholdhttp "agrowatch/internal/thresholds/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init()
	auditRepo := audit.NewRepository(db)

	thresholdRepo := thresholdrepo.NewThresholdRepository(db)
	readingRepo := readingrepo.NewReadingRepository(db)
	ledger := alertrepo.NewAlertRepository(db)

	policyCfg, err := evaluator.LoadConfig(cfg.AlertPolicyPath)
	if err != nil {
		logger.Fatalf("alert policy config error: %v", err)
	}
	classifier, err := evaluator.NewClassifier(policyCfg)
	if err != nil {
		logger.Fatalf("alert classifier error: %v", err)
	}
	evalService, err := evaluator.NewService(thresholdRepo, readingRepo, ledger, classifier, logger)
	if err != nil {
		logger.Fatalf("evaluator service error: %v", err)
	}
	scheduler := evaluator.NewScheduler(evalService, cfg.EvalInterval, logger)
	go scheduler.Start(context.Background())

	alertService, err := alertapp.NewService(ledger, alertapp.WithActiveLimit(cfg.AlertActiveLimit))
	if err != nil {
		logger.Fatalf("alert service error: %v", err)
	}
	alertHandler, err := alerthttp.NewHandler(alertService, auditRepo)
	if err != nil {
		logger.Fatalf("alert handler error: %v", err)
	}
	exportHandler, err := alertinterfaces.NewExportHandler(ledger, auditRepo)
	if err != nil {
		logger.Fatalf("export handler error: %v", err)
	}
	thresholdHandler, err := thresholdhttp.NewHandler(thresholdRepo, auditRepo)
	if err != nil {
		logger.Fatalf("threshold handler error: %v", err)
	}
	ingestHandler, err := ingest.NewHandler(readingRepo, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	sensorDataHandler, err := apihttp.NewSensorDataHandler(readingRepo)
	if err != nil {
		logger.Fatalf("sensor-data handler error: %v", err)
	}
	historyHandler, err := apihttp.NewHistoryHandler(readingRepo)
	if err != nil {
		logger.Fatalf("history handler error: %v", err)
	}
	overviewHandler, err := apihttp.NewOverviewHandler(readingRepo, ledger)
	if err != nil {
		logger.Fatalf("overview handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.IngestSecret), time.Duration(cfg.IngestSkewSeconds)*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/ingest/readings", ingestAuth.Wrap(ingestHandler))
	mux.Handle("/api/v1/thresholds", thresholdHandler)
	mux.Handle("/api/v1/alerts", alertHandler)
	mux.Handle("/api/v1/alerts/", alertHandler)
	mux.Handle("/api/v1/exports/", exportHandler)
	mux.Handle("/api/v1/sensor-data", sensorDataHandler)
	mux.Handle("/api/v1/sensor-data/history", historyHandler)
	mux.Handle("/api/v1/overview-stats", overviewHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL       string
	HTTPAddr          string
	JWTSecret         string
	IngestSecret      string
	IngestSkewSeconds int
	EvalInterval      time.Duration
	AlertActiveLimit  int
	AlertPolicyPath   string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		IngestSecret:      getenvDefault("INGEST_HMAC_SECRET", ""),
		IngestSkewSeconds: getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300),
		EvalInterval:      getenvDuration("EVAL_INTERVAL", evaluator.DefaultInterval),
		AlertActiveLimit:  getenvIntDefault("ALERT_ACTIVE_LIMIT", 50),
		AlertPolicyPath:   getenvDefault("ALERT_POLICY_CONFIG", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
