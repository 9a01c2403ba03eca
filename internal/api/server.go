package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"aiflow/internal/config"
	"aiflow/internal/models"
	"aiflow/internal/providers"
	"aiflow/internal/storage"
	"aiflow/internal/util"
	"aiflow/internal/vector"
	"aiflow/internal/workflows"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
)

type Server struct {
	cfg          config.Config
	db           *storage.DB
	documentRepo *storage.DocumentRepo
	drawingRepo  *storage.DrawingRepo
	analysisRepo *storage.AnalysisRepo
	store        *vector.Store
	hydrator     *vector.Hydrator
	providers    *providers.Manager
	temporal     tclient.Client
}

func NewServer(cfg config.Config) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}
	documentRepo := storage.NewDocumentRepo(db)
	store := vector.NewStore(0)
	return &Server{
		cfg:          cfg,
		db:           db,
		documentRepo: documentRepo,
		drawingRepo:  storage.NewDrawingRepo(db),
		analysisRepo: storage.NewAnalysisRepo(db),
		store:        store,
		hydrator:     vector.NewHydrator(store, documentRepo, 0),
		providers:    pm,
		temporal:     tc,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/documents", s.handleDocuments)
	mux.HandleFunc("/documents/", s.handleDocumentsScoped)
	mux.HandleFunc("/drawings", s.handleDrawings)
	mux.HandleFunc("/drawings/", s.handleDrawingsScoped)
	mux.HandleFunc("/context", s.handleContext)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		docs, err := s.documentRepo.ListDocuments(r.Context())
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
	case http.MethodPost:
		s.handleDocumentUpload(w, r)
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleDocumentUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(128 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	fh, ok := firstSingleFile(r.MultipartForm.File)
	if !ok {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("reference documents must be pdf"))
		return
	}
	title := strings.TrimSpace(r.FormValue("title"))
	category := strings.TrimSpace(r.FormValue("category"))
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(fh.Filename), filepath.Ext(fh.Filename))
	}

	inDir := filepath.Join(s.cfg.DataInRoot, "documents")
	savedPath, err := saveUploadedFile(inDir, fh)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	documentID := uuid.NewString()
	if err := s.documentRepo.UpsertDocument(r.Context(), models.ReferenceDocument{
		DocumentID: documentID,
		Filename:   filepath.Base(savedPath),
		Title:      title,
		Category:   category,
		Status:     "pending",
		Active:     true,
	}); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                    "ingest-" + documentID,
		TaskQueue:             s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}, workflows.ReferenceIngestWorkflow, workflows.ReferenceIngestInput{
		DocumentID:      documentID,
		Path:            savedPath,
		Filename:        filepath.Base(savedPath),
		Title:           title,
		Category:        category,
		ChunkSize:       s.cfg.ChunkSize,
		ChunkOverlap:    s.cfg.ChunkOverlap,
		EmbedProviders:  s.providers.EmbedCount(),
		CooldownSeconds: s.cfg.ProviderCooldownSecs,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"document_id": documentID,
		"filename":    filepath.Base(savedPath),
		"workflow_id": we.GetID(),
		"run_id":      we.GetRunID(),
	})
}

func (s *Server) handleDocumentsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/documents/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	documentID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodDelete {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		if err := s.documentRepo.DeactivateDocument(r.Context(), documentID); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		// Deactivation drops the document from the next hydration;
		// remove it from this process's collection right away.
		s.store.Remove(documentID)
		s.hydrator.Invalidate()
		writeJSON(w, http.StatusOK, map[string]any{"document_id": documentID, "active": false})
		return
	}

	if len(parts) == 2 && parts[1] == "progress" {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		var status workflows.IngestStatus
		resp, err := s.temporal.QueryWorkflow(r.Context(), "ingest-"+documentID, "", workflows.QueryGetIngestStatus)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		if err := resp.Get(&status); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) handleDrawings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		drawings, err := s.drawingRepo.ListDrawings(r.Context())
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"drawings": drawings})
	case http.MethodPost:
		s.handleDrawingUpload(w, r)
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleDrawingUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(128 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	fh, ok := firstSingleFile(r.MultipartForm.File)
	if !ok {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}
	switch strings.ToLower(filepath.Ext(fh.Filename)) {
	case ".pdf", ".png", ".jpg", ".jpeg":
	default:
		writeErr(w, http.StatusBadRequest, fmt.Errorf("drawings must be pdf, png or jpeg"))
		return
	}
	drawingNumber := strings.TrimSpace(r.FormValue("drawing_number"))

	inDir := filepath.Join(s.cfg.DataInRoot, "drawings")
	savedPath, err := saveUploadedFile(inDir, fh)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	drawingID := uuid.NewString()
	if err := s.drawingRepo.UpsertDrawing(r.Context(), models.Drawing{
		DrawingID:     drawingID,
		DrawingNumber: drawingNumber,
		Filename:      filepath.Base(savedPath),
		Status:        "pending",
	}); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                    "analyze-" + drawingID,
		TaskQueue:             s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}, workflows.DrawingAnalysisWorkflow, workflows.DrawingAnalysisInput{
		DrawingID:       drawingID,
		Path:            savedPath,
		Filename:        filepath.Base(savedPath),
		DrawingNumber:   drawingNumber,
		TopK:            s.cfg.RAGTopK,
		Threshold:       s.cfg.SimilarityThreshold,
		MinIssues:       s.cfg.MinIssuesRequired,
		StrictMinIssues: s.cfg.StrictMinIssues,
		EmbedProviders:  s.providers.EmbedCount(),
		LLMProviders:    s.providers.LLMCount(),
		LLMProviderRef:  strings.TrimSpace(r.FormValue("provider")),
		CooldownSeconds: s.cfg.ProviderCooldownSecs,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"drawing_id":  drawingID,
		"filename":    filepath.Base(savedPath),
		"workflow_id": we.GetID(),
		"run_id":      we.GetRunID(),
	})
}

func (s *Server) handleDrawingsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/drawings/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	drawingID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		d, err := s.drawingRepo.GetDrawing(r.Context(), drawingID)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
		return
	}

	switch parts[1] {
	case "analysis":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		a, err := s.analysisRepo.LatestAnalysis(r.Context(), drawingID)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		var result any
		if err := json.Unmarshal([]byte(a.ResultJSON), &result); err != nil {
			writeErr(w, http.StatusInternalServerError, fmt.Errorf("decode stored analysis: %w", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"analysis_id":     a.AnalysisID,
			"drawing_id":      a.DrawingID,
			"recovery_status": a.RecoveryStatus,
			"issue_count":     a.IssueCount,
			"result":          result,
			"provider":        a.ProviderName,
			"model":           a.Model,
			"created_at":      a.CreatedAt,
		})
	case "analyses":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		analyses, err := s.analysisRepo.ListAnalyses(r.Context(), drawingID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"analyses": analyses})
	case "progress":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		var status workflows.AnalysisStatus
		resp, err := s.temporal.QueryWorkflow(r.Context(), "analyze-"+drawingID, "", workflows.QueryGetAnalysisStatus)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		if err := resp.Get(&status); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

// handleContext answers ad-hoc similarity queries against the reference
// collection, mostly for debugging what a drawing review would retrieve.
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Query     string  `json:"query"`
		TopK      int     `json:"top_k"`
		Threshold float64 `json:"threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("query is required"))
		return
	}
	if req.TopK <= 0 {
		req.TopK = s.cfg.RAGTopK
	}
	if req.Threshold <= 0 {
		req.Threshold = s.cfg.SimilarityThreshold
	}

	var (
		vectors [][]float32
		err     error
	)
	for i := 0; i < s.providers.EmbedCount(); i++ {
		p, _ := s.providers.EmbedProviderByIndex(i)
		vectors, _, err = p.Embed(r.Context(), providers.EmbedRequest{
			Operation: "context_query_embed",
			Inputs:    []string{req.Query},
			Dimension: s.cfg.EmbedDim,
		})
		if err == nil && len(vectors) > 0 {
			break
		}
	}
	if err != nil || len(vectors) == 0 {
		writeErr(w, http.StatusBadGateway, fmt.Errorf("embedding providers unavailable"))
		return
	}

	if err := s.hydrator.Ensure(r.Context()); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	results := s.store.Query(vectors[0], req.TopK, req.Threshold)
	chunks := make([]models.ContextChunk, 0, len(results))
	for _, res := range results {
		snippet := res.Chunk.Text
		if len(snippet) > 420 {
			snippet = snippet[:420] + "..."
		}
		chunks = append(chunks, models.ContextChunk{
			DocumentID: res.Chunk.DocumentID,
			ChunkID:    res.Chunk.ChunkID,
			Title:      res.Chunk.Metadata["title"],
			Category:   res.Chunk.Metadata["category"],
			Snippet:    snippet,
			Score:      res.Score,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chunks":          chunks,
		"retrieved_count": len(chunks),
	})
}

func saveUploadedFile(dstDir string, fh *multipart.FileHeader) (string, error) {
	if err := util.EnsureDir(dstDir); err != nil {
		return "", err
	}
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dstDir, "upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
	}()

	if _, err := io.Copy(tmp, src); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	finalPath := util.SafeJoin(dstDir, fh.Filename)
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return "", fmt.Errorf("atomic move upload: %w", err)
	}
	return finalPath, nil
}

func firstSingleFile(m map[string][]*multipart.FileHeader) (*multipart.FileHeader, bool) {
	for _, key := range []string{"file", "files"} {
		if v := m[key]; len(v) > 0 {
			return v[0], true
		}
	}
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "AF-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "AF-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "AF-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "AF-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "AF-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "AF-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "AF-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "AF-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusBadGateway:
		code = "AF-API-5020"
		msg = "Upstream provider unavailable. Retry shortly."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		low := strings.ToLower(err.Error())
		switch {
		case strings.Contains(low, "no files provided"):
			msg = "No files were provided."
		case strings.Contains(low, "must be pdf"):
			msg = "Unsupported file type for this upload."
		case strings.Contains(low, "query is required"):
			msg = "A query string is required."
		case strings.Contains(low, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
