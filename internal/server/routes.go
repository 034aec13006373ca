package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/kadro-hq/kadro/internal/api/v1"
	"github.com/kadro-hq/kadro/internal/api/ws"
	"github.com/kadro-hq/kadro/internal/auth"
	"github.com/kadro-hq/kadro/internal/store/postgres"
	"github.com/kadro-hq/kadro/internal/task"
)

func registerAuthRoutes(api huma.API, authSvc *auth.Service) {
	v1.RegisterAuthRoutes(api, authSvc)
}

func registerAPIRoutes(api huma.API, store *postgres.Store, engine *task.Engine, hub *ws.Hub) {
	v1.RegisterUserRoutes(api, store)
	v1.RegisterGroupRoutes(api, store)
	v1.RegisterTaskRoutes(api, store, engine, hub)
	v1.RegisterNotificationRoutes(api, store)
}

func registerAdminRoutes(api huma.API, scanner *task.Scanner) {
	v1.RegisterAdminRoutes(api, scanner)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/tasks/{taskID}", hub.ServeTask)
	r.Get("/inbox", hub.ServeInbox)
}
