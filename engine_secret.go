package authcore

import (
	"context"
	"fmt"
)

// RotateSigningSecret replaces the shared signing secret and returns the
// committed value. Every token signed under the previous secret fails
// verification afterwards, which is the point: rotation is the kill
// switch for a leaked secret. Passing nil generates a fresh random
// secret.
func (e *Engine) RotateSigningSecret(ctx context.Context, newSecret []byte) ([]byte, error) {
	if e == nil || e.secrets == nil {
		return nil, ErrEngineNotReady
	}

	committed, err := e.secrets.Rotate(ctx, newSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	e.logger.Info().Msg("signing secret rotated")
	return committed, nil
}
