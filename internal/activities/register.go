package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ExtractTextActivity)
	w.RegisterActivity(a.PrepareDrawingInputActivity)
	w.RegisterActivity(a.ChunkTextActivity)
	w.RegisterActivity(a.EmbedChunksActivity)
	w.RegisterActivity(a.IndexChunksActivity)
	w.RegisterActivity(a.UpdateDocumentStatusActivity)
	w.RegisterActivity(a.EmbedQueryActivity)
	w.RegisterActivity(a.RetrieveContextActivity)
	w.RegisterActivity(a.AnalyzeDrawingActivity)
	w.RegisterActivity(a.SaveAnalysisActivity)
	w.RegisterActivity(a.UpdateDrawingStatusActivity)
	w.RegisterActivity(a.LogLLMCallActivity)
}
