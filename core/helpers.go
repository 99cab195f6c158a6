package orchestration

import (
	"context"
	"fmt"
	"runtime/debug"
)

func (o *Orchestrator) currentResponsePipeline() *responsePipeline {
	if o == nil {
		return nil
	}

	return o.responsePipeline.Load()
}

// responseStage is one of the concurrent halves of a response, generation
// or speech.
type responseStage func(context.Context) error

// guardStage recovers a panic in run into an error naming the stage and the
// response.
func guardStage(responseID, stage string, run responseStage) responseStage {
	return func(ctx context.Context) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logger.Error("response stage panicked",
					"response_id", responseID,
					"stage", stage,
					"panic", recovered,
					"stack", string(debug.Stack()))
				err = fmt.Errorf("%s of response %s panicked: %v", stage, responseID, recovered)
			}
		}()

		if err = run(ctx); err != nil {
			return fmt.Errorf("%s of response %s: %w", stage, responseID, err)
		}
		return nil
	}
}
