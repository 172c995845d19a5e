package coordinator

import (
	"context"

	"chatdesk/internal/logger"
	"chatdesk/state"
)

// SelectModel changes the model used for subsequent chat and generation calls.
func (c *Coordinator) SelectModel(ctx context.Context, modelID string) error {
	err := c.store.Update(func(tx *state.Tx) error {
		return tx.Registry.Select(modelID)
	})
	if err != nil {
		return c.fail(ctx, KindValidation, OpSelectModel, "", err, "Unknown model")
	}
	logger.DebugWithFields("model selected", logger.Fields{"model": modelID})
	return nil
}
