// Package handlers contains the HTTP endpoints of the league service and
// the middleware they share.
//
// # Health Checks
//
// Named checks run in parallel with a per-check timeout:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("postgres", handlers.NewPingCheck(pool))
//	checker.AddCheck("redis", handlers.NewPingCheck(cache))
//
// # Weekly Close
//
// POST /api/cron/weekly-points closes a league week on demand. It is guarded
// by BearerAuth, which accepts either the plain secret or a bcrypt hash of it:
//
//	auth, err := handlers.NewBearerAuth(cfg.Cron.APIKey, cfg.Cron.APIKeyHash)
//	mux.Handle("POST /api/cron/weekly-points", auth.Middleware(weekly))
package handlers
