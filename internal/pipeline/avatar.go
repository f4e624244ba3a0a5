package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jwulff/voiceclone/internal/backend"
)

// AnimationStatuser reports the state of an avatar animation job.
type AnimationStatuser interface {
	AnimationStatus(ctx context.Context, id int) (backend.Animation, error)
}

// PollAnimation waits for an avatar animation to finish, with the same
// sequential polling as clip jobs.
func PollAnimation(ctx context.Context, client AnimationStatuser, id int, interval time.Duration) (backend.Animation, error) {
	anim, err := Poll(ctx, interval, func(ctx context.Context) (backend.Animation, bool, error) {
		a, err := client.AnimationStatus(ctx, id)
		if err != nil {
			return a, false, err
		}
		return a, a.Status.Terminal(), nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return anim, err
		}
		return anim, fmt.Errorf("%w: animation %d: %v", ErrStatusCheckFailed, id, err)
	}
	if anim.Status == backend.StateFailed {
		return anim, fmt.Errorf("%w: animation %d", ErrProcessingFailed, id)
	}
	return anim, nil
}
