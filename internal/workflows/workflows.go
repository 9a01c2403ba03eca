package workflows

import (
	"fmt"
	"strings"
	"time"

	"aiflow/internal/activities"
	"aiflow/internal/analysis"
	"aiflow/internal/providers"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	QueryGetIngestStatus   = "GetIngestStatus"
	QueryGetAnalysisStatus = "GetAnalysisStatus"
)

// How much extracted drawing text seeds the retrieval query when the
// drawing arrived as a PDF rather than page images.
const retrievalQueryTextHead = 2000

type providerState struct {
	disabledUntil map[int]time.Time
	retries       map[string]int
}

func newProviderState() providerState {
	return providerState{disabledUntil: map[int]time.Time{}, retries: map[string]int{}}
}

// ReferenceIngestWorkflow turns one uploaded reference document into
// embedded chunks in the retrieval collection: extract text, chunk,
// embed, persist. A document with no extractable text fails cleanly
// with a recorded reason instead of erroring the workflow.
func ReferenceIngestWorkflow(ctx workflow.Context, input ReferenceIngestInput) (string, error) {
	status := IngestStatus{
		DocumentID:  input.DocumentID,
		CurrentStep: "init",
		Status:      "processing",
		RetryCounts: map[string]int{},
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetIngestStatus, func() (IngestStatus, error) {
		return status, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	cooldown := durationOrDefault(input.CooldownSeconds, 900)
	providerCount := defaultCount(input.EmbedProviders)
	state := newProviderState()

	_ = workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{
		DocumentID: input.DocumentID,
		Filename:   input.Filename,
		Title:      input.Title,
		Category:   input.Category,
		Status:     "processing",
		Active:     true,
	}).Get(ctx, nil)

	status.CurrentStep = "extract_text"
	status.Steps[status.CurrentStep] = "processing"
	var textOut activities.ExtractTextOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractTextActivity", activities.ExtractTextInput{Path: input.Path}).Get(ctx, &textOut); err != nil {
		if isNoTextError(err) {
			status.Status = "failed"
			status.FailReason = "no extractable text found (OCR not enabled)"
			status.Steps[status.CurrentStep] = "failed"
			_ = workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{
				DocumentID: input.DocumentID,
				Filename:   input.Filename,
				Title:      input.Title,
				Category:   input.Category,
				Status:     "failed",
				FailReason: status.FailReason,
				Active:     false,
			}).Get(ctx, nil)
			return status.Status, nil
		}
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "chunk_text"
	status.Steps[status.CurrentStep] = "processing"
	var chunkOut activities.ChunkTextOutput
	if err := workflow.ExecuteActivity(ctx, "ChunkTextActivity", activities.ChunkTextInput{
		DocumentID:   input.DocumentID,
		Text:         textOut.Text,
		Title:        input.Title,
		Category:     input.Category,
		ChunkSize:    input.ChunkSize,
		ChunkOverlap: input.ChunkOverlap,
	}).Get(ctx, &chunkOut); err != nil {
		return "", err
	}
	status.ChunkCount = len(chunkOut.Chunks)
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "embed_chunks"
	status.Steps[status.CurrentStep] = "processing"
	texts := make([]string, 0, len(chunkOut.Chunks))
	for _, c := range chunkOut.Chunks {
		texts = append(texts, c.Text)
	}
	embedOut, err := callEmbedChunksWithFailover(ctx, &state, providerCount, cooldown, activities.EmbedChunksInput{
		Operation: "reference_embed",
		Texts:     texts,
	}, input.DocumentID, status.RetryCounts)
	if err != nil {
		return "", err
	}
	for i := range chunkOut.Chunks {
		chunkOut.Chunks[i].Embedding = embedOut.Vectors[i]
	}
	status.Providers = append(status.Providers, embedOut.ProviderName)
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "index_chunks"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "IndexChunksActivity", activities.IndexChunksInput{
		DocumentID: input.DocumentID,
		Chunks:     chunkOut.Chunks,
	}).Get(ctx, nil); err != nil {
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "mark_completed"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{
		DocumentID: input.DocumentID,
		Filename:   input.Filename,
		Title:      input.Title,
		Category:   input.Category,
		Status:     "completed",
		Active:     true,
		ChunkCount: len(chunkOut.Chunks),
	}).Get(ctx, nil); err != nil {
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"
	status.CurrentStep = "done"
	status.Status = "completed"
	return status.Status, nil
}

// DrawingAnalysisWorkflow reviews one uploaded drawing: prepare the
// model input (page images or extracted text), retrieve reference
// context, run the vision/LLM analysis, and persist whatever the
// recovery parser makes of the response. Only infrastructure failures
// error the workflow; malformed model output still yields an analysis.
func DrawingAnalysisWorkflow(ctx workflow.Context, input DrawingAnalysisInput) (string, error) {
	status := AnalysisStatus{
		DrawingID:   input.DrawingID,
		CurrentStep: "init",
		Status:      "processing",
		RetryCounts: map[string]int{},
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetAnalysisStatus, func() (AnalysisStatus, error) {
		return status, nil
	}); err != nil {
		return "", err
	}
	logger := workflow.GetLogger(ctx)

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	cooldown := durationOrDefault(input.CooldownSeconds, 900)
	embedProviders := defaultCount(input.EmbedProviders)
	llmProviders := defaultCount(input.LLMProviders)
	embedState := newProviderState()
	llmState := newProviderState()

	_ = workflow.ExecuteActivity(ctx, "UpdateDrawingStatusActivity", activities.UpdateDrawingStatusInput{
		DrawingID:     input.DrawingID,
		DrawingNumber: input.DrawingNumber,
		Filename:      input.Filename,
		Status:        "processing",
	}).Get(ctx, nil)

	status.CurrentStep = "prepare_input"
	status.Steps[status.CurrentStep] = "processing"
	var prepOut activities.PrepareDrawingOutput
	if err := workflow.ExecuteActivity(ctx, "PrepareDrawingInputActivity", activities.PrepareDrawingInput{Path: input.Path}).Get(ctx, &prepOut); err != nil {
		if isNoTextError(err) {
			status.Status = "failed"
			status.FailReason = "no extractable text found (OCR not enabled)"
			status.Steps[status.CurrentStep] = "failed"
			_ = workflow.ExecuteActivity(ctx, "UpdateDrawingStatusActivity", activities.UpdateDrawingStatusInput{
				DrawingID:  input.DrawingID,
				Status:     "failed",
				FailReason: status.FailReason,
			}).Get(ctx, nil)
			return status.Status, nil
		}
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "retrieve_context"
	status.Steps[status.CurrentStep] = "processing"
	contextText := ""
	queryText := retrievalQueryText(input, prepOut)
	if queryText != "" {
		eq, err := callEmbedQueryWithFailover(ctx, &embedState, embedProviders, cooldown, activities.EmbedQueryInput{
			Operation: "drawing_query_embed",
			Text:      queryText,
		}, status.RetryCounts)
		if err != nil {
			// Analysis proceeds without reference context rather
			// than failing the whole review.
			logger.Warn("query embedding failed, analyzing without context", "drawing_id", input.DrawingID, "error", err)
			status.Steps[status.CurrentStep] = "skipped"
		} else {
			status.Providers = append(status.Providers, eq.ProviderName)
			var retrieved activities.RetrieveContextOutput
			if err := workflow.ExecuteActivity(ctx, "RetrieveContextActivity", activities.RetrieveContextInput{
				QueryVec:  eq.Vector,
				TopK:      input.TopK,
				Threshold: input.Threshold,
			}).Get(ctx, &retrieved); err != nil {
				logger.Warn("context retrieval failed, analyzing without context", "drawing_id", input.DrawingID, "error", err)
				status.Steps[status.CurrentStep] = "skipped"
			} else {
				contextText = retrieved.Context
				status.ContextHits = len(retrieved.Hits)
				status.Steps[status.CurrentStep] = "done"
			}
		}
	} else {
		status.Steps[status.CurrentStep] = "skipped"
	}

	status.CurrentStep = "analyze"
	status.Steps[status.CurrentStep] = "processing"
	prompt := analysis.BuildAugmentedPrompt(analysis.BuildAnalysisPrompt(input.MinIssues), contextText)
	if prepOut.Text != "" {
		prompt += "\n\nDRAWING TEXT (extracted from PDF):\n" + prepOut.Text
	}
	analyzeOut, err := callAnalyzeWithFailover(ctx, &llmState, llmProviders, cooldown, activities.AnalyzeDrawingInput{
		Operation:   "drawing_analysis",
		Prompt:      prompt,
		Images:      prepOut.Images,
		ProviderRef: input.LLMProviderRef,
	}, input.DrawingID, status.RetryCounts)
	if err != nil {
		status.Status = "failed"
		status.FailReason = "all analysis providers exhausted"
		status.Steps[status.CurrentStep] = "failed"
		_ = workflow.ExecuteActivity(ctx, "UpdateDrawingStatusActivity", activities.UpdateDrawingStatusInput{
			DrawingID:  input.DrawingID,
			Status:     "failed",
			FailReason: status.FailReason,
		}).Get(ctx, nil)
		return status.Status, nil
	}
	status.Providers = append(status.Providers, analyzeOut.ProviderName)
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "save_analysis"
	status.Steps[status.CurrentStep] = "processing"
	var saved activities.SaveAnalysisOutput
	if err := workflow.ExecuteActivity(ctx, "SaveAnalysisActivity", activities.SaveAnalysisInput{
		DrawingID:    input.DrawingID,
		RawText:      analyzeOut.Text,
		ProviderName: analyzeOut.ProviderName,
		Model:        analyzeOut.Model,
	}).Get(ctx, &saved); err != nil {
		return "", err
	}
	status.AnalysisID = saved.AnalysisID
	status.RecoveryStatus = saved.RecoveryStatus
	status.IssueCount = saved.IssueCount
	status.Steps[status.CurrentStep] = "done"

	_ = workflow.ExecuteActivity(ctx, "LogLLMCallActivity", activities.LogLLMCallInput{
		CallID:         fmt.Sprintf("drawing_analysis-%s-%s", input.DrawingID, saved.AnalysisID),
		Operation:      "drawing_analysis",
		DrawingID:      input.DrawingID,
		ProviderName:   analyzeOut.ProviderName,
		Model:          analyzeOut.Model,
		Status:         "ok",
		RecoveryStatus: saved.RecoveryStatus,
		TokensUsed:     analyzeOut.TokensUsed,
	}).Get(ctx, nil)

	if input.MinIssues > 0 && saved.IssueCount < input.MinIssues {
		logger.Warn("analysis found fewer issues than the configured target",
			"drawing_id", input.DrawingID, "issues", saved.IssueCount, "target", input.MinIssues)
		if input.StrictMinIssues {
			// Strict mode fails the review while keeping the persisted
			// analysis available for inspection.
			status.Status = "failed"
			status.FailReason = fmt.Sprintf("analysis found %d issues, below required %d", saved.IssueCount, input.MinIssues)
			_ = workflow.ExecuteActivity(ctx, "UpdateDrawingStatusActivity", activities.UpdateDrawingStatusInput{
				DrawingID:  input.DrawingID,
				Status:     "failed",
				FailReason: status.FailReason,
			}).Get(ctx, nil)
			return status.Status, nil
		}
	}

	status.CurrentStep = "mark_completed"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "UpdateDrawingStatusActivity", activities.UpdateDrawingStatusInput{
		DrawingID: input.DrawingID,
		Status:    "completed",
	}).Get(ctx, nil); err != nil {
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"
	status.CurrentStep = "done"
	status.Status = "completed"
	return status.Status, nil
}

func callEmbedChunksWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, input activities.EmbedChunksInput, documentID string, retryCounts map[string]int) (activities.EmbedChunksOutput, error) {
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	var lastErr error
	for attempt := 0; attempt < providerCount*4; attempt++ {
		idx := attempt % providerCount
		if isProviderDisabled(ctx, state, idx) {
			continue
		}
		input.ProviderIndex = idx
		var out activities.EmbedChunksOutput
		err := workflow.ExecuteActivity(ctx, "EmbedChunksActivity", input).Get(ctx, &out)
		if err == nil {
			_ = workflow.ExecuteActivity(ctx, "LogLLMCallActivity", activities.LogLLMCallInput{
				CallID:       fmt.Sprintf("%s-%s-%d", input.Operation, documentID, attempt),
				Operation:    input.Operation,
				DocumentID:   documentID,
				ProviderName: out.ProviderName,
				Model:        out.Model,
				Status:       "ok",
			}).Get(ctx, nil)
			return out, nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		_ = workflow.ExecuteActivity(ctx, "LogLLMCallActivity", activities.LogLLMCallInput{
			CallID:       fmt.Sprintf("%s-%s-%d", input.Operation, documentID, attempt),
			Operation:    input.Operation,
			DocumentID:   documentID,
			ProviderName: fmt.Sprintf("provider-%d", idx),
			Status:       "failed",
			ErrorType:    string(errType),
		}).Get(ctx, nil)
		key := fmt.Sprintf("embed-%d", idx)
		retryCounts[key]++
		switch errType {
		case providers.ErrorQuota:
			disableProviderUntil(ctx, state, idx, cooldown)
		case providers.ErrorRate:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key]*2)*time.Second)
				attempt--
			} else {
				disableProviderUntil(ctx, state, idx, 2*time.Minute)
			}
		case providers.ErrorTransient:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				attempt--
			}
		default:
			disableProviderUntil(ctx, state, idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all embed providers exhausted")
	}
	return activities.EmbedChunksOutput{}, lastErr
}

func callEmbedQueryWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, input activities.EmbedQueryInput, retryCounts map[string]int) (activities.EmbedQueryOutput, error) {
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	var lastErr error
	for attempt := 0; attempt < providerCount*4; attempt++ {
		idx := attempt % providerCount
		if isProviderDisabled(ctx, state, idx) {
			continue
		}
		input.ProviderIndex = idx
		var out activities.EmbedQueryOutput
		err := workflow.ExecuteActivity(ctx, "EmbedQueryActivity", input).Get(ctx, &out)
		if err == nil {
			return out, nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		key := fmt.Sprintf("eq-%d", idx)
		retryCounts[key]++
		switch errType {
		case providers.ErrorQuota:
			disableProviderUntil(ctx, state, idx, cooldown)
		case providers.ErrorRate, providers.ErrorTransient:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				attempt--
			} else {
				disableProviderUntil(ctx, state, idx, 2*time.Minute)
			}
		default:
			disableProviderUntil(ctx, state, idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all embed query providers exhausted")
	}
	return activities.EmbedQueryOutput{}, lastErr
}

func callAnalyzeWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, input activities.AnalyzeDrawingInput, drawingID string, retryCounts map[string]int) (activities.AnalyzeDrawingOutput, error) {
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	// A pinned provider ref disables rotation; retries stay on that
	// provider.
	pinned := strings.TrimSpace(input.ProviderRef) != ""
	maxAttempts := providerCount * 4
	if pinned {
		maxAttempts = 4
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		idx := 0
		if !pinned {
			idx = attempt % providerCount
			if isProviderDisabled(ctx, state, idx) {
				continue
			}
		}
		input.ProviderIndex = idx
		var out activities.AnalyzeDrawingOutput
		err := workflow.ExecuteActivity(ctx, "AnalyzeDrawingActivity", input).Get(ctx, &out)
		if err == nil {
			return out, nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		_ = workflow.ExecuteActivity(ctx, "LogLLMCallActivity", activities.LogLLMCallInput{
			CallID:       fmt.Sprintf("%s-%s-%d", input.Operation, drawingID, attempt),
			Operation:    input.Operation,
			DrawingID:    drawingID,
			ProviderName: fmt.Sprintf("provider-%d", idx),
			Status:       "failed",
			ErrorType:    string(errType),
		}).Get(ctx, nil)
		key := fmt.Sprintf("llm-%d", idx)
		retryCounts[key]++
		switch errType {
		case providers.ErrorQuota:
			disableProviderUntil(ctx, state, idx, cooldown)
		case providers.ErrorRate:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key]*2)*time.Second)
				if !pinned {
					attempt--
				}
			} else {
				disableProviderUntil(ctx, state, idx, 2*time.Minute)
			}
		case providers.ErrorTransient:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				if !pinned {
					attempt--
				}
			}
		default:
			disableProviderUntil(ctx, state, idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all llm providers exhausted")
	}
	return activities.AnalyzeDrawingOutput{}, lastErr
}

func isProviderDisabled(ctx workflow.Context, state *providerState, idx int) bool {
	until, ok := state.disabledUntil[idx]
	if !ok {
		return false
	}
	return workflow.Now(ctx).Before(until)
}

func disableProviderUntil(ctx workflow.Context, state *providerState, idx int, d time.Duration) {
	state.disabledUntil[idx] = workflow.Now(ctx).Add(d)
}

// retrievalQueryText builds the similarity query from what we know about
// the drawing: the drawing number plus the head of any extracted text.
func retrievalQueryText(input DrawingAnalysisInput, prep activities.PrepareDrawingOutput) string {
	parts := make([]string, 0, 2)
	if strings.TrimSpace(input.DrawingNumber) != "" {
		parts = append(parts, strings.TrimSpace(input.DrawingNumber))
	}
	text := strings.TrimSpace(prep.Text)
	if text != "" {
		head := []rune(text)
		if len(head) > retrievalQueryTextHead {
			head = head[:retrievalQueryTextHead]
		}
		parts = append(parts, string(head))
	}
	if len(parts) == 0 && strings.TrimSpace(input.Filename) != "" {
		parts = append(parts, strings.TrimSpace(input.Filename))
	}
	return strings.Join(parts, "\n")
}

func isNoTextError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "no extractable text")
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

func defaultCount(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
