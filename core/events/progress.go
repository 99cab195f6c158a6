package events

const (
	// KindPromptProcessingProgress identifies prompt processing progress.
	KindPromptProcessingProgress Kind = "prompt_processing.progress"
	// KindModelLoadProgress identifies model load progress.
	KindModelLoadProgress Kind = "model_load.progress"
)

// PromptProcessingProgress reports how much of the prompt has been processed,
// as a fraction in [0, 1].
type PromptProcessingProgress struct {
	Base
	Progress float64
}

// NewPromptProcessingProgress creates a prompt processing progress event.
func NewPromptProcessingProgress(progress float64) PromptProcessingProgress {
	return PromptProcessingProgress{Base: NewBase(KindPromptProcessingProgress), Progress: clampProgress(progress)}
}

// ModelLoadProgress reports how much of the model has been loaded, as a
// fraction in [0, 1].
type ModelLoadProgress struct {
	Base
	Progress float64
}

// NewModelLoadProgress creates a model load progress event.
func NewModelLoadProgress(progress float64) ModelLoadProgress {
	return ModelLoadProgress{Base: NewBase(KindModelLoadProgress), Progress: clampProgress(progress)}
}

// Percent returns the progress as a whole percentage.
func (p PromptProcessingProgress) Percent() int { return int(p.Progress*100 + 0.5) }

// Percent returns the progress as a whole percentage.
func (p ModelLoadProgress) Percent() int { return int(p.Progress*100 + 0.5) }

func clampProgress(progress float64) float64 {
	// Some servers report percentages instead of fractions.
	if progress > 1 {
		progress = progress / 100
	}
	return max(0, min(progress, 1))
}
