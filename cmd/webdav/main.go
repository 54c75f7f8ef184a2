// Command webdav runs the WebDAV front-end. It is a thin entry point:
// every request is authenticated through the user directory service, and
// the workspace tree under the configured root is served as-is.
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"golang.org/x/net/webdav"

	"github.com/workdeck/workdeck/internal/logging"
	"github.com/workdeck/workdeck/internal/server/config"
	"github.com/workdeck/workdeck/internal/server/directory"
	"github.com/workdeck/workdeck/internal/server/notify"
	"github.com/workdeck/workdeck/internal/server/repositories/repomanager"
)

func main() {

	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSONLogger(os.Stdout)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Printf("db init error: %v", err)
		return
	}
	defer db.Close()

	repos := repomanager.NewPostgresRepositoryManager()

	notifier, err := notify.NewNotifier(cfg, logger)
	if err != nil {
		log.Printf("notifier init error: %v", err)
		return
	}

	dav := &webdav.Handler{
		FileSystem: webdav.Dir(cfg.WebdavRoot),
		LockSystem: webdav.NewMemLS(),
	}

	// Basic auth delegating credential checks to the directory service;
	// identity logic is never duplicated here.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="workdeck"`)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		svc := directory.NewService(db, repos, notifier, cfg, logger, nil)
		_, err := svc.Authenticate(r.Context(), email, password)
		if err != nil {
			// the opaque auth token works as an alternate credential
			_, err = svc.AuthenticateToken(r.Context(), email, password)
		}
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="workdeck"`)
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}

		dav.ServeHTTP(w, r)
	})

	logger.Info(ctx, "Starting WebDAV server", "address", cfg.WebdavAddr, "root", cfg.WebdavRoot)

	if err := http.ListenAndServe(cfg.WebdavAddr, handler); err != nil {
		logger.Error(ctx, err.Error())
	}
}
