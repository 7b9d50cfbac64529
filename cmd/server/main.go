package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"courseware/internal/auth"
	"courseware/internal/config"
	"courseware/internal/domain/services"
	"courseware/internal/filetypes"
	"courseware/internal/handler"
	"courseware/internal/middleware"
	authSvc "courseware/internal/service/auth"
	libraryService "courseware/internal/service/library"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging, optionally teed into a rotating log file
	var out io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, cfg.LogMaxFiles)
		if err != nil {
			log.Fatalf("Failed to setup log file: %v", err)
		}
		defer logFile.Close()
		out = io.MultiWriter(os.Stdout, logFile)
	}
	logger := config.NewLogger(cfg.Environment, out)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"store", cfg.StoreDriver,
		"blobs", cfg.BlobDriver,
	)

	ctx := context.Background()

	// Node store
	nodeRepo, closeStore, err := openNodeStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open node store: %v", err)
	}
	defer closeStore()

	// Byte storage collaborators
	content, quota, err := openStorage(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open content storage: %v", err)
	}

	// Authentication and scope authorization
	var authorizer services.ScopeAuthorizer
	var jwtVerifier auth.JWTVerifier
	if cfg.JWKSURL != "" {
		jwtVerifier, err = auth.NewJWTVerifier(ctx, cfg.JWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer jwtVerifier.Close()
		authorizer = authSvc.NewRoleBasedAuthorizer()
	} else if cfg.Environment != "dev" {
		log.Fatalf("JWKS_URL is required outside the dev environment")
	} else {
		logger.Warn("DEV MODE: authentication disabled, every request may view and edit every scope")
	}

	// Library services
	opts, err := libraryService.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid library configuration: %v", err)
	}
	fileTypes, err := filetypes.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load file type registry: %v", err)
	}

	core := libraryService.NewCore(nodeRepo, libraryService.NewScopeLocker(), authorizer, opts, logger)
	nodeService := libraryService.NewNodeService(core, fileTypes, content, quota)
	copyService := libraryService.NewCopyService(core, quota)
	moveService := libraryService.NewMoveService(core)
	treeService := libraryService.NewTreeService(core)

	nodeHandler := handler.NewNodeHandler(nodeService, copyService, moveService, logger)
	treeHandler := handler.NewTreeHandler(treeService, logger)

	logger.Info("services initialized",
		"root_name", opts.RootName,
		"move_collision_policy", opts.MoveCollisionPolicy,
	)

	// Build middleware chain
	// Order: CORS → Recovery → Auth → Routes
	var h http.Handler = newRouter(nodeHandler, treeHandler)
	if jwtVerifier != nil {
		h = middleware.AuthMiddleware(jwtVerifier, logger, "/health")(h)
	}
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
