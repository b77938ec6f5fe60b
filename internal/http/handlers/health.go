package handlers

import (
	"net/http"
	"sync"
	"time"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	var (
		wg       sync.WaitGroup
		database bool
		engine   bool
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		database = a.Store != nil && a.Store.Available(r.Context())
	}()
	go func() {
		defer wg.Done()
		engine = a.Engine != nil && a.Engine.Healthy(r.Context())
	}()
	wg.Wait()

	ok := database && engine
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	a.json(w, code, map[string]any{
		"ok":      ok,
		"version": a.Version,
		"uptime":  int64(time.Since(a.started).Seconds()),
		"services": map[string]bool{
			"database": database,
			"workflow": engine,
		},
	})
}
