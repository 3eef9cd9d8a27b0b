package noema

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
)

// reason fans the turn out to every reasoner concurrently. Each candidate
// gets its own deep copy of the turn and its own timeout, so one slow or
// failing reasoner never starves the others. All failures are recorded on
// the candidate; arbitration decides later whether the turn degrades.
func (l *CognitiveLoop) reason(ctx context.Context, t *Turn) (*Turn, error) {
	candidates := make([]Candidate, len(l.reasoners))
	var wg sync.WaitGroup

	for i, r := range l.reasoners {
		wg.Add(1)
		go func(i int, r Reasoner) {
			defer wg.Done()

			candidateCtx, cancel := context.WithTimeout(ctx, l.reasoningTimeout)
			defer cancel()

			snapshot := t.Clone()
			start := time.Now()
			text, err := r.Respond(candidateCtx, snapshot)

			candidates[i] = Candidate{
				Reasoner: r.Name(),
				Text:     text,
				Err:      err,
				Elapsed:  time.Since(start),
			}

			if err != nil {
				capitan.Error(ctx, CandidateFailed,
					FieldIdentity.Field(t.Identity),
					FieldTurnID.Field(t.ID.String()),
					FieldReasoner.Field(r.Name()),
					FieldError.Field(err),
				)
				return
			}
			capitan.Emit(ctx, CandidateProduced,
				FieldIdentity.Field(t.Identity),
				FieldTurnID.Field(t.ID.String()),
				FieldReasoner.Field(r.Name()),
				FieldStageDuration.Field(candidates[i].Elapsed),
			)
		}(i, r)
	}
	wg.Wait()

	t.Candidates = candidates
	return t, nil
}
