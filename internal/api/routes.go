package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/atlasmap-sc/orbitscene/internal/animator"
	"github.com/atlasmap-sc/orbitscene/internal/cache"
	"github.com/atlasmap-sc/orbitscene/internal/embedding"
	"github.com/atlasmap-sc/orbitscene/internal/runstore"
	"github.com/atlasmap-sc/orbitscene/internal/service"
	"github.com/atlasmap-sc/orbitscene/pkg/colormap"
)

// maxAnimateFrames bounds ad-hoc timelines computed by POST /api/animate.
const maxAnimateFrames = 100000

// RouterConfig contains router configuration.
type RouterConfig struct {
	Registry    *SceneRegistry
	CORSOrigins []string
	JobManager  *JobManager
	Cache       *cache.Manager
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Global endpoints (not scene-scoped)
	r.Get("/api/scenes", scenesHandler(cfg.Registry))
	r.Get("/api/stats", statsHandler(cfg.Registry, cfg.Cache))
	r.Get("/api/palettes", palettesHandler)
	r.Get("/api/palettes/{name}/sample", paletteSampleHandler)
	r.Post("/api/palettes/sample", customPaletteSampleHandler)
	r.Post("/api/animate", animateHandler)

	// Scene-scoped routes: /s/{scene}/...
	r.Route("/s/{scene}", func(r chi.Router) {
		r.Use(sceneMiddleware(cfg.Registry))

		r.Get("/frames/{frame}.png", frameImageHandler)

		r.Route("/api", func(r chi.Router) {
			r.Get("/params", paramsHandler)
			r.Get("/frames", framesHandler)
			r.Get("/frames/{frame}", frameHandler)
			r.Get("/trail", trailHandler)
			r.Get("/keyframes", keyframesHandler)
			r.Get("/trace.zst", traceHandler)

			if cfg.JobManager != nil {
				r.Route("/bake/jobs", func(r chi.Router) {
					r.Post("/", bakeJobSubmitHandler(cfg.JobManager))
					r.Get("/", bakeJobListHandler(cfg.JobManager))
					r.Get("/{job_id}", bakeJobStatusHandler(cfg.JobManager))
					r.Get("/{job_id}/trail", bakeJobTrailHandler(cfg.JobManager))
					r.Get("/{job_id}/trace.zst", bakeJobTraceHandler(cfg.JobManager))
					r.Delete("/{job_id}", bakeJobCancelHandler(cfg.JobManager))
				})
			}
		})
	})

	// Embedding-scoped routes: /e/{embedding}/...
	r.Route("/e/{embedding}", func(r chi.Router) {
		r.Use(embeddingMiddleware(cfg.Registry))
		r.Get("/api/colors", embeddingColorsHandler)
		r.Get("/scatter.png", embeddingScatterHandler)
	})

	return r
}

// Context keys for scoped services
type ctxKey string

const (
	sceneServiceKey     ctxKey = "sceneService"
	embeddingServiceKey ctxKey = "embeddingService"
)

// sceneMiddleware resolves the scene from URL and injects its service into context.
func sceneMiddleware(registry *SceneRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sceneID := chi.URLParam(r, "scene")
			svc := registry.Get(sceneID)
			if svc == nil {
				http.Error(w, "scene not found: "+sceneID, http.StatusNotFound)
				return
			}
			ctx := context.WithValue(r.Context(), sceneServiceKey, svc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getSceneService(r *http.Request) *service.SceneService {
	if svc, ok := r.Context().Value(sceneServiceKey).(*service.SceneService); ok {
		return svc
	}
	return nil
}

func embeddingMiddleware(registry *SceneRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "embedding")
			svc := registry.Embedding(id)
			if svc == nil {
				http.Error(w, "embedding not found: "+id, http.StatusNotFound)
				return
			}
			ctx := context.WithValue(r.Context(), embeddingServiceKey, svc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getEmbeddingService(r *http.Request) *service.EmbeddingService {
	if svc, ok := r.Context().Value(embeddingServiceKey).(*service.EmbeddingService); ok {
		return svc
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, animator.ErrInvalidParameters),
		errors.Is(err, colormap.ErrInvalidColorFormat),
		errors.Is(err, colormap.ErrInsufficientStops),
		errors.Is(err, colormap.ErrDuplicateStop),
		errors.Is(err, service.ErrBakeTooLong),
		errors.Is(err, embedding.ErrNotCategorical):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrFrameOutOfRange),
		errors.Is(err, service.ErrUnknownPalette),
		errors.Is(err, embedding.ErrUnknownFeature):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// scenesHandler returns the list of configured scenes and embeddings.
func scenesHandler(registry *SceneRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"default":    registry.DefaultSceneID(),
			"scenes":     registry.Scenes(),
			"embeddings": registry.EmbeddingIDs(),
			"title":      registry.Title(),
		})
	}
}

type paletteInfo struct {
	Name  string               `json:"name"`
	Hex   []string             `json:"hex"`
	Stops []colormap.ColorStop `json:"stops"`
}

func statsHandler(registry *SceneRegistry, cacheManager *cache.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := map[string]interface{}{
			"scenes":     len(registry.SceneIDs()),
			"embeddings": len(registry.EmbeddingIDs()),
		}
		if cacheManager != nil {
			stats["cache"] = cacheManager.Stats()
		}
		writeJSON(w, stats)
	}
}

func palettesHandler(w http.ResponseWriter, r *http.Request) {
	names := colormap.Names()
	items := make([]paletteInfo, 0, len(names))
	for _, name := range names {
		p, ok := colormap.Lookup(name)
		if !ok {
			continue
		}
		items = append(items, paletteInfo{Name: name, Hex: p.HexStops(), Stops: p.Stops()})
	}
	writeJSON(w, map[string]interface{}{"palettes": items})
}

type sampleResult struct {
	T    float64       `json:"t"`
	RGBA colormap.RGBA `json:"rgba"`
	Hex  string        `json:"hex"`
}

func samplePalette(p *colormap.Palette, ts []float64) []sampleResult {
	out := make([]sampleResult, len(ts))
	for i, t := range ts {
		c := p.Sample(t)
		out[i] = sampleResult{T: t, RGBA: c, Hex: c.Hex()}
	}
	return out
}

// parseSamplePoints reads t values from repeated or comma-separated ?t=
// parameters, or n evenly spaced values from ?n=.
func parseSamplePoints(r *http.Request) ([]float64, error) {
	q := r.URL.Query()
	if nStr := q.Get("n"); nStr != "" {
		n, err := strconv.Atoi(nStr)
		if err != nil || n < 2 || n > 4096 {
			return nil, errors.New("n must be an integer in [2, 4096]")
		}
		ts := make([]float64, n)
		for i := range ts {
			ts[i] = float64(i) / float64(n-1)
		}
		return ts, nil
	}

	var ts []float64
	for _, raw := range q["t"] {
		for _, part := range strings.Split(raw, ",") {
			t, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil || math.IsNaN(t) || math.IsInf(t, 0) {
				return nil, errors.New("invalid t: " + part)
			}
			ts = append(ts, t)
		}
	}
	if len(ts) == 0 {
		return nil, errors.New("missing required query param: t or n")
	}
	return ts, nil
}

func paletteSampleHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, ok := colormap.Lookup(name)
	if !ok {
		http.Error(w, "palette not found: "+name, http.StatusNotFound)
		return
	}
	ts, err := parseSamplePoints(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{
		"palette": name,
		"samples": samplePalette(p, ts),
	})
}

type customSampleRequest struct {
	Colors []string  `json:"colors"`
	T      []float64 `json:"t"`
	N      int       `json:"n"`
}

func customPaletteSampleHandler(w http.ResponseWriter, r *http.Request) {
	var req customSampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	p, err := colormap.BuildPalette(req.Colors)
	if err != nil {
		writeError(w, err)
		return
	}

	ts := req.T
	if len(ts) == 0 {
		n := req.N
		if n < 2 {
			n = len(req.Colors)
		}
		if n > 4096 {
			http.Error(w, "n must be at most 4096", http.StatusBadRequest)
			return
		}
		ts = make([]float64, n)
		for i := range ts {
			ts[i] = float64(i) / float64(n-1)
		}
	}

	writeJSON(w, map[string]interface{}{
		"stops":   p.Stops(),
		"samples": samplePalette(p, ts),
	})
}

func animateHandler(w http.ResponseWriter, r *http.Request) {
	params := animator.DefaultParams()
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := params.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if params.FrameCount() > maxAnimateFrames {
		http.Error(w, "timeline too long", http.StatusBadRequest)
		return
	}
	frames, err := animator.Frames(params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"params": params,
		"frames": frames,
	})
}

// Scene-scoped handlers (get service from context)

func paramsHandler(w http.ResponseWriter, r *http.Request) {
	svc := getSceneService(r)
	if svc == nil {
		http.Error(w, "scene service not found", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"scene":   svc.ID(),
		"params":  svc.Params(),
		"palette": svc.Palette(),
	})
}

func framesHandler(w http.ResponseWriter, r *http.Request) {
	svc := getSceneService(r)
	if svc == nil {
		http.Error(w, "scene service not found", http.StatusInternalServerError)
		return
	}
	frames, err := svc.Frames()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"params": svc.Params(),
		"frames": frames,
	})
}

func parseFrameParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "frame")
	frame, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, "invalid frame: "+raw, http.StatusBadRequest)
		return 0, false
	}
	return frame, true
}

func frameHandler(w http.ResponseWriter, r *http.Request) {
	svc := getSceneService(r)
	if svc == nil {
		http.Error(w, "scene service not found", http.StatusInternalServerError)
		return
	}
	frame, ok := parseFrameParam(w, r)
	if !ok {
		return
	}
	f, err := svc.Frame(frame)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, f)
}

func trailHandler(w http.ResponseWriter, r *http.Request) {
	svc := getSceneService(r)
	if svc == nil {
		http.Error(w, "scene service not found", http.StatusInternalServerError)
		return
	}
	upto := svc.Params().FrameEnd
	if s := r.URL.Query().Get("upto"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			http.Error(w, "invalid upto: "+s, http.StatusBadRequest)
			return
		}
		upto = v
	}
	trail, err := svc.Trail(upto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"upto":   upto,
		"points": trail,
	})
}

func keyframesHandler(w http.ResponseWriter, r *http.Request) {
	svc := getSceneService(r)
	if svc == nil {
		http.Error(w, "scene service not found", http.StatusInternalServerError)
		return
	}
	dump, err := svc.Keyframes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, dump)
}

func traceHandler(w http.ResponseWriter, r *http.Request) {
	svc := getSceneService(r)
	if svc == nil {
		http.Error(w, "scene service not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/zstd")
	w.Header().Set("Content-Disposition", `attachment; filename="`+svc.ID()+`.ndjson.zst"`)
	if err := svc.WriteTrace(w); err != nil {
		// Headers are already sent.
		log.Printf("[Scene] trace for %s failed: %v", svc.ID(), err)
	}
}

func frameImageHandler(w http.ResponseWriter, r *http.Request) {
	svc := getSceneService(r)
	if svc == nil {
		http.Error(w, "scene service not found", http.StatusInternalServerError)
		return
	}
	frame, ok := parseFrameParam(w, r)
	if !ok {
		return
	}
	data, err := svc.RenderFrame(frame, r.URL.Query().Get("palette"))
	if err != nil {
		writeError(w, err)
		return
	}
	writePNG(w, data)
}

// Bake job handlers

type bakeJobSubmitRequest struct {
	WriteTrace bool             `json:"write_trace"`
	Params     *animator.Params `json:"params,omitempty"`
}

func bakeJobSubmitHandler(jm *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "job manager not configured", http.StatusNotImplemented)
			return
		}
		svc := getSceneService(r)
		if svc == nil {
			http.Error(w, "scene service not available", http.StatusInternalServerError)
			return
		}

		var req bakeJobSubmitRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
				return
			}
		}

		params := svc.Params()
		if req.Params != nil {
			params = *req.Params
		}
		if err := service.CheckBakeParams(params); err != nil {
			writeError(w, err)
			return
		}

		job, err := jm.Submit(runstore.BakeJobParams{
			SceneID:    svc.ID(),
			Animation:  params,
			WriteTrace: req.WriteTrace,
		})
		if err != nil {
			http.Error(w, "failed to create job: "+err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"job_id": job.ID,
			"status": job.Status,
		})
	}
}

func bakeJobListHandler(jm *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "job manager not configured", http.StatusNotImplemented)
			return
		}
		jobs, err := jm.List(chi.URLParam(r, "scene"))
		if err != nil {
			http.Error(w, "failed to list jobs: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if jobs == nil {
			jobs = []*runstore.BakeJob{}
		}
		writeJSON(w, map[string]interface{}{"jobs": jobs})
	}
}

// sceneJob loads a job and checks it belongs to the scene in the URL.
func sceneJob(w http.ResponseWriter, r *http.Request, jm *JobManager) *runstore.BakeJob {
	if jm == nil {
		http.Error(w, "job manager not configured", http.StatusNotImplemented)
		return nil
	}
	job := jm.Get(chi.URLParam(r, "job_id"))
	if job == nil || job.SceneID != chi.URLParam(r, "scene") {
		http.Error(w, "job not found", http.StatusNotFound)
		return nil
	}
	return job
}

func bakeJobStatusHandler(jm *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job := sceneJob(w, r, jm)
		if job == nil {
			return
		}
		writeJSON(w, job)
	}
}

func bakeJobTrailHandler(jm *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job := sceneJob(w, r, jm)
		if job == nil {
			return
		}

		offset, limit := 0, 500
		if s := r.URL.Query().Get("offset"); s != "" {
			if v, err := strconv.Atoi(s); err == nil && v >= 0 {
				offset = v
			}
		}
		if s := r.URL.Query().Get("limit"); s != "" {
			if v, err := strconv.Atoi(s); err == nil && v > 0 {
				limit = min(v, 5000)
			}
		}

		points, total, err := jm.Store().QueryTrail(job.ID, offset, limit)
		if err != nil {
			http.Error(w, "failed to query trail: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]interface{}{
			"job_id": job.ID,
			"status": job.Status,
			"offset": offset,
			"limit":  limit,
			"total":  total,
			"points": points,
		})
	}
}

func bakeJobTraceHandler(jm *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job := sceneJob(w, r, jm)
		if job == nil {
			return
		}
		if job.TracePath == "" {
			http.Error(w, "job has no trace", http.StatusNotFound)
			return
		}
		f, err := os.Open(job.TracePath)
		if err != nil {
			http.Error(w, "trace not available", http.StatusNotFound)
			return
		}
		defer f.Close()
		st, err := f.Stat()
		if err != nil {
			http.Error(w, "trace not available", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/zstd")
		w.Header().Set("Content-Disposition", `attachment; filename="`+job.ID+`.ndjson.zst"`)
		http.ServeContent(w, r, job.ID+".ndjson.zst", st.ModTime(), f)
	}
}

func bakeJobCancelHandler(jm *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job := sceneJob(w, r, jm)
		if job == nil {
			return
		}
		cancelled := jm.Cancel(job.ID)

		purged := false
		if r.URL.Query().Get("purge") == "true" && job.Status != runstore.JobStatusRunning {
			if err := jm.Delete(job.ID); err != nil {
				http.Error(w, "failed to delete job: "+err.Error(), http.StatusInternalServerError)
				return
			}
			if job.TracePath != "" {
				os.Remove(job.TracePath)
			}
			purged = true
		}

		writeJSON(w, map[string]interface{}{
			"job_id":    job.ID,
			"cancelled": cancelled,
			"purged":    purged,
		})
	}
}

// Embedding-scoped handlers

func embeddingColorsHandler(w http.ResponseWriter, r *http.Request) {
	svc := getEmbeddingService(r)
	if svc == nil {
		http.Error(w, "embedding service not found", http.StatusInternalServerError)
		return
	}
	q := r.URL.Query()
	res, err := svc.Colors(q.Get("feature"), q.Get("palette"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func embeddingScatterHandler(w http.ResponseWriter, r *http.Request) {
	svc := getEmbeddingService(r)
	if svc == nil {
		http.Error(w, "embedding service not found", http.StatusInternalServerError)
		return
	}
	q := r.URL.Query()
	data, err := svc.Scatter(q.Get("feature"), q.Get("palette"))
	if err != nil {
		writeError(w, err)
		return
	}
	writePNG(w, data)
}
