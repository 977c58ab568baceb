package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lessonweaver/common"
	"lessonweaver/pipelines/lesson"
)

type JobOutputs struct {
	Text     string `json:"text,omitempty"`
	JSON     string `json:"json,omitempty"`
	Markdown string `json:"markdown,omitempty"`
}

type JobStatus struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	Pipeline  string     `json:"pipeline"`
	Error     string     `json:"error,omitempty"`
	Rules     []string   `json:"rules_applied,omitempty"`
	Audios    []string   `json:"audios,omitempty"`
	Images    []string   `json:"images,omitempty"`
	Outputs   JobOutputs `json:"outputs,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	DoneAt    *time.Time `json:"done_at,omitempty"`
}

type Job struct {
	ID    string
	Opts  lesson.Options
	State lesson.State
}

// WorkerPool runs pipeline invocations off the request path. Each job owns
// its own State, so workers never share mutable pipeline data.
type WorkerPool struct {
	log        *common.Logger
	deps       lesson.Deps
	jobs       chan *Job
	results    map[string]*JobStatus
	mu         sync.RWMutex
	wg         sync.WaitGroup
	numWorkers int
}

func NewWorkerPool(log *common.Logger, deps lesson.Deps, numWorkers, bufferSize int) *WorkerPool {
	pool := &WorkerPool{
		log:        log,
		deps:       deps,
		jobs:       make(chan *Job, bufferSize),
		results:    make(map[string]*JobStatus),
		numWorkers: numWorkers,
	}
	pool.start()
	return pool
}

func (p *WorkerPool) start() {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Info("workers started", "count", p.numWorkers)
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		p.log.Info("processing job", "worker", id, "job", job.ID)
		p.processJob(job)
	}
	p.log.Info("worker shutting down", "worker", id)
}

func (p *WorkerPool) processJob(job *Job) {
	p.setStatus(job.ID, "processing", nil, nil)

	pipe := lesson.New(p.deps, job.Opts)
	final, err := pipe.Run(context.Background(), job.State)
	if err != nil {
		p.setStatus(job.ID, "failed", err, nil)
		return
	}
	p.setStatus(job.ID, "completed", nil, &final)
}

func (p *WorkerPool) setStatus(jobID, status string, err error, final *lesson.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, exists := p.results[jobID]
	if !exists {
		return
	}
	st.Status = status
	if err != nil {
		st.Error = err.Error()
	}
	if final != nil {
		st.Rules = final.Rules
		st.Audios = publicURLs(p.deps.PublicBaseURL, "/audio", final.AudioPaths)
		st.Images = publicURLs(p.deps.PublicBaseURL, "/images", final.ImagePaths)
		st.Outputs = JobOutputs{
			Text:     publicURL(p.deps.PublicBaseURL, "/files", final.FinalTextPath),
			JSON:     publicURL(p.deps.PublicBaseURL, "/json", final.FinalJSONPath),
			Markdown: publicURL(p.deps.PublicBaseURL, "/markdown", final.FinalMarkdownPath),
		}
	}
	if status == "completed" || status == "failed" {
		now := time.Now()
		st.DoneAt = &now
	}
}

func (p *WorkerPool) Submit(job *Job, pipeline string) {
	p.mu.Lock()
	p.results[job.ID] = &JobStatus{
		ID:        job.ID,
		Status:    "queued",
		Pipeline:  pipeline,
		StartedAt: time.Now(),
	}
	p.mu.Unlock()

	p.jobs <- job
}

func (p *WorkerPool) GetStatus(jobID string) (*JobStatus, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	status, ok := p.results[jobID]
	return status, ok
}

func (p *WorkerPool) Shutdown() {
	close(p.jobs)
	p.wg.Wait()
}

func publicURL(base, mount, path string) string {
	if path == "" {
		return ""
	}
	return base + mount + "/" + filepath.Base(path)
}

func publicURLs(base, mount string, paths []string) []string {
	urls := make([]string, 0, len(paths))
	for _, p := range paths {
		urls = append(urls, publicURL(base, mount, p))
	}
	return urls
}

type fullPipelineRequest struct {
	StudentProfile lesson.StudentProfile `json:"student_profile" binding:"required"`
	LessonURL      string                `json:"lesson_url" binding:"required,url"`
}

type modifyLessonRequest struct {
	Rules     []string `json:"rules" binding:"required"`
	LessonURL string   `json:"lesson_url" binding:"required,url"`
}

type Server struct {
	cfg  common.Config
	log  *common.Logger
	deps lesson.Deps
	pool *WorkerPool
}

func (s *Server) handleFullPipeline(c *gin.Context) {
	var req fullPipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job := &Job{
		ID:   uuid.New().String(),
		Opts: lesson.Options{DeriveRules: true, WithMedia: true},
		State: lesson.State{
			Profile:   req.StudentProfile,
			LessonURL: req.LessonURL,
		},
	}
	s.pool.Submit(job, "lesson")

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": "queued"})
}

func (s *Server) handleModifyLesson(c *gin.Context) {
	var req modifyLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job := &Job{
		ID:   uuid.New().String(),
		Opts: lesson.Options{DeriveRules: false, WithMedia: true},
		State: lesson.State{
			Rules:     req.Rules,
			LessonURL: req.LessonURL,
		},
	}
	s.pool.Submit(job, "lesson-from-rules")

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": "queued"})
}

func (s *Server) handleStatus(c *gin.Context) {
	jobID := c.Query("id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing job id"})
		return
	}
	status, ok := s.pool.GetStatus(jobID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"workers":     s.pool.numWorkers,
		"queued_jobs": len(s.pool.jobs),
	})
}

// handleSearchImages exposes ad hoc image search for the front-end editor's
// placeholder replacement.
func (s *Server) handleSearchImages(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query"})
		return
	}
	urls, err := s.deps.Searcher.Search(c.Request.Context(), query, 5)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": urls})
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.POST("/full-pipeline", s.handleFullPipeline)
	r.POST("/modify-lesson", s.handleModifyLesson)
	r.GET("/status", s.handleStatus)
	r.GET("/health", s.handleHealth)
	r.GET("/api/search_images", s.handleSearchImages)

	r.Static("/files", s.cfg.FinalDir())
	r.Static("/json", s.cfg.JSONDir())
	r.Static("/markdown", s.cfg.MarkdownDir())
	r.Static("/audio", s.cfg.AudioDir())
	r.Static("/images", s.cfg.ImageDir())

	return r
}

func StartServer(cfg common.Config, log *common.Logger, deps lesson.Deps) {
	server := &Server{
		cfg:  cfg,
		log:  log,
		deps: deps,
		pool: NewWorkerPool(log, deps, cfg.Workers, 100),
	}
	defer server.pool.Shutdown()

	log.Info("server starting", "addr", cfg.Addr, "workers", cfg.Workers)
	if err := server.router().Run(cfg.Addr); err != nil {
		log.Fatal(fmt.Sprintf("server failed: %v", err))
	}
}
