package activities

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"aiflow/internal/analysis"
	"aiflow/internal/config"
	"aiflow/internal/models"
	"aiflow/internal/providers"
	"aiflow/internal/storage"
	"aiflow/internal/util"
	"aiflow/internal/vector"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

type Activities struct {
	cfg          config.Config
	documentRepo *storage.DocumentRepo
	drawingRepo  *storage.DrawingRepo
	analysisRepo *storage.AnalysisRepo
	llmAuditRepo *storage.LLMAuditRepo
	store        *vector.Store
	hydrator     *vector.Hydrator
	providers    *providers.Manager
}

func New(cfg config.Config, db *storage.DB) (*Activities, error) {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	documentRepo := storage.NewDocumentRepo(db)
	store := vector.NewStore(0)
	return &Activities{
		cfg:          cfg,
		documentRepo: documentRepo,
		drawingRepo:  storage.NewDrawingRepo(db),
		analysisRepo: storage.NewAnalysisRepo(db),
		llmAuditRepo: storage.NewLLMAuditRepo(db),
		store:        store,
		hydrator:     vector.NewHydrator(store, documentRepo, 0),
		providers:    pm,
	}, nil
}

func (a *Activities) ExtractTextActivity(ctx context.Context, in ExtractTextInput) (ExtractTextOutput, error) {
	_ = ctx
	f, r, err := pdf.Open(in.Path)
	if err != nil {
		return ExtractTextOutput{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return ExtractTextOutput{}, fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return ExtractTextOutput{}, fmt.Errorf("read extracted text: %w", err)
	}
	text := util.SanitizeText(strings.TrimSpace(buf.String()))
	if text == "" {
		return ExtractTextOutput{}, util.ErrNoExtractableText
	}
	return ExtractTextOutput{Text: text}, nil
}

// PrepareDrawingInputActivity readies an uploaded drawing for the vision
// model: PNG/JPEG uploads are passed through as base64 page images, PDF
// uploads fall back to extracted text.
func (a *Activities) PrepareDrawingInputActivity(ctx context.Context, in PrepareDrawingInput) (PrepareDrawingOutput, error) {
	switch strings.ToLower(filepath.Ext(in.Path)) {
	case ".png", ".jpg", ".jpeg":
		raw, err := os.ReadFile(in.Path)
		if err != nil {
			return PrepareDrawingOutput{}, fmt.Errorf("read drawing image: %w", err)
		}
		return PrepareDrawingOutput{Images: []string{base64.StdEncoding.EncodeToString(raw)}}, nil
	default:
		out, err := a.ExtractTextActivity(ctx, ExtractTextInput{Path: in.Path})
		if err != nil {
			return PrepareDrawingOutput{}, err
		}
		return PrepareDrawingOutput{Text: out.Text}, nil
	}
}

func (a *Activities) ChunkTextActivity(ctx context.Context, in ChunkTextInput) (ChunkTextOutput, error) {
	_ = ctx
	if in.ChunkSize <= 0 {
		in.ChunkSize = a.cfg.ChunkSize
	}
	if in.ChunkOverlap < 0 || in.ChunkOverlap >= in.ChunkSize {
		in.ChunkOverlap = a.cfg.ChunkOverlap
	}

	rawChunks := util.ChunkText(in.Text, in.ChunkSize, in.ChunkOverlap)
	chunks := make([]vector.Chunk, 0, len(rawChunks))
	for idx, part := range rawChunks {
		part = util.SanitizeText(part)
		if part == "" {
			continue
		}
		chunkHash := util.SHA256Hex([]byte(part))
		chunks = append(chunks, vector.Chunk{
			ChunkID:    util.SHA256Hex([]byte(fmt.Sprintf("%s:%d:%s", in.DocumentID, idx, chunkHash))),
			DocumentID: in.DocumentID,
			Text:       part,
			Metadata: map[string]string{
				"title":         in.Title,
				"category":      in.Category,
				"document_id":   in.DocumentID,
				"chunk_index":   fmt.Sprintf("%d", idx),
				"embed_version": a.cfg.EmbedVersion,
			},
		})
	}
	return ChunkTextOutput{Chunks: chunks}, nil
}

func (a *Activities) EmbedChunksActivity(ctx context.Context, in EmbedChunksInput) (EmbedChunksOutput, error) {
	provider, _ := a.providers.EmbedProviderByIndex(in.ProviderIndex)
	vectors, info, err := provider.Embed(ctx, providers.EmbedRequest{
		Operation: in.Operation,
		Inputs:    in.Texts,
		Dimension: a.cfg.EmbedDim,
	})
	if err != nil {
		return EmbedChunksOutput{}, err
	}
	if len(vectors) != len(in.Texts) {
		return EmbedChunksOutput{}, fmt.Errorf("embedding provider returned %d vectors for %d inputs", len(vectors), len(in.Texts))
	}
	return EmbedChunksOutput{Vectors: vectors, ProviderName: info.Name, Model: info.Model}, nil
}

// IndexChunksActivity persists a document's chunk payloads and marks the
// retrieval collection stale so the next query picks them up.
func (a *Activities) IndexChunksActivity(ctx context.Context, in IndexChunksInput) error {
	if err := a.documentRepo.ReplaceChunks(ctx, in.DocumentID, in.Chunks); err != nil {
		return err
	}
	a.hydrator.Invalidate()
	return nil
}

func (a *Activities) UpdateDocumentStatusActivity(ctx context.Context, in UpdateDocumentStatusInput) error {
	if in.Filename == "" {
		return a.documentRepo.UpdateDocumentStatus(ctx, in.DocumentID, in.Status, in.FailReason)
	}
	return a.documentRepo.UpsertDocument(ctx, models.ReferenceDocument{
		DocumentID: in.DocumentID,
		Filename:   in.Filename,
		Title:      in.Title,
		Category:   in.Category,
		Status:     in.Status,
		FailReason: in.FailReason,
		Active:     in.Active,
		ChunkCount: in.ChunkCount,
	})
}

func (a *Activities) EmbedQueryActivity(ctx context.Context, in EmbedQueryInput) (EmbedQueryOutput, error) {
	provider, _ := a.providers.EmbedProviderByIndex(in.ProviderIndex)
	vectors, info, err := provider.Embed(ctx, providers.EmbedRequest{
		Operation: in.Operation,
		Inputs:    []string{in.Text},
		Dimension: a.cfg.EmbedDim,
	})
	if err != nil {
		return EmbedQueryOutput{}, err
	}
	if len(vectors) == 0 {
		return EmbedQueryOutput{}, fmt.Errorf("embedding provider returned empty vectors")
	}
	return EmbedQueryOutput{Vector: vectors[0], ProviderName: info.Name, Model: info.Model}, nil
}

func (a *Activities) RetrieveContextActivity(ctx context.Context, in RetrieveContextInput) (RetrieveContextOutput, error) {
	if err := a.hydrator.Ensure(ctx); err != nil {
		return RetrieveContextOutput{}, fmt.Errorf("hydrate retrieval collection: %w", err)
	}
	topK := in.TopK
	if topK <= 0 {
		topK = a.cfg.RAGTopK
	}
	results := a.store.Query(in.QueryVec, topK, in.Threshold)
	hits := make([]ContextHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, ContextHit{
			DocumentID: r.Chunk.DocumentID,
			ChunkID:    r.Chunk.ChunkID,
			Title:      r.Chunk.Metadata["title"],
			Category:   r.Chunk.Metadata["category"],
			Score:      r.Score,
		})
	}
	return RetrieveContextOutput{Context: vector.FormatContext(results), Hits: hits}, nil
}

func (a *Activities) AnalyzeDrawingActivity(ctx context.Context, in AnalyzeDrawingInput) (AnalyzeDrawingOutput, error) {
	if in.ProviderRef != "" {
		if idx := a.providers.FindLLMProviderIndex(in.ProviderRef); idx >= 0 {
			in.ProviderIndex = idx
		} else {
			return AnalyzeDrawingOutput{}, fmt.Errorf("llm provider ref not configured in worker: %s", in.ProviderRef)
		}
	}
	provider, ref := a.providers.LLMProviderByIndex(in.ProviderIndex)
	resp, info, err := provider.Generate(ctx, providers.GenerateRequest{
		Operation:   in.Operation,
		Prompt:      in.Prompt,
		Images:      in.Images,
		ForceJSON:   true,
		MaxTokens:   a.cfg.AnalysisMaxTokens,
		Temperature: a.cfg.AnalysisTemperature,
	})
	if err != nil {
		return AnalyzeDrawingOutput{}, fmt.Errorf("drawing analysis via %s failed: %w", ref.Raw, err)
	}
	return AnalyzeDrawingOutput{
		Text:         resp.Text,
		ProviderName: info.Name,
		Model:        info.Model,
		TokensUsed:   resp.TokensUsed,
	}, nil
}

// SaveAnalysisActivity runs the recovery parser over the raw model output
// and persists whatever it yields. The parser has no failure path, so an
// analysis row is written for every model response, however malformed.
func (a *Activities) SaveAnalysisActivity(ctx context.Context, in SaveAnalysisInput) (SaveAnalysisOutput, error) {
	result := analysis.Parse(in.RawText)
	if result.RecoveryStatus != analysis.RecoveryOK {
		log.Printf("analysis parse degraded drawing=%s recovery_status=%s issues=%d diagnostic=%q",
			in.DrawingID, result.RecoveryStatus, len(result.Issues), result.Diagnostic)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return SaveAnalysisOutput{}, fmt.Errorf("encode analysis result: %w", err)
	}
	analysisID := uuid.NewString()
	outDir := filepath.Join(a.cfg.DataOutRoot, "analyses", in.DrawingID)
	if err := util.WriteJSONAtomic(filepath.Join(outDir, analysisID+".json"), result); err != nil {
		return SaveAnalysisOutput{}, err
	}
	if err := util.WriteTextAtomic(filepath.Join(outDir, analysisID+".raw.txt"), in.RawText); err != nil {
		return SaveAnalysisOutput{}, err
	}
	if err := a.analysisRepo.InsertAnalysis(ctx, models.Analysis{
		AnalysisID:     analysisID,
		DrawingID:      in.DrawingID,
		RecoveryStatus: string(result.RecoveryStatus),
		IssueCount:     len(result.Issues),
		ResultJSON:     string(resultJSON),
		ProviderName:   in.ProviderName,
		Model:          in.Model,
	}); err != nil {
		return SaveAnalysisOutput{}, err
	}
	return SaveAnalysisOutput{
		AnalysisID:     analysisID,
		RecoveryStatus: string(result.RecoveryStatus),
		IssueCount:     len(result.Issues),
	}, nil
}

func (a *Activities) UpdateDrawingStatusActivity(ctx context.Context, in UpdateDrawingStatusInput) error {
	if in.Filename == "" {
		return a.drawingRepo.UpdateDrawingStatus(ctx, in.DrawingID, in.Status, in.FailReason)
	}
	return a.drawingRepo.UpsertDrawing(ctx, models.Drawing{
		DrawingID:     in.DrawingID,
		DrawingNumber: in.DrawingNumber,
		Filename:      in.Filename,
		Status:        in.Status,
		FailReason:    in.FailReason,
	})
}

func (a *Activities) LogLLMCallActivity(ctx context.Context, in LogLLMCallInput) error {
	return a.llmAuditRepo.Insert(ctx, storage.LLMCallRecord{
		CallID:         in.CallID,
		Operation:      in.Operation,
		DrawingID:      in.DrawingID,
		DocumentID:     in.DocumentID,
		ProviderName:   in.ProviderName,
		Model:          in.Model,
		Status:         in.Status,
		ErrorType:      in.ErrorType,
		RecoveryStatus: in.RecoveryStatus,
		TokensUsed:     in.TokensUsed,
	})
}
