package handler

import (
	"context"
	"math/rand/v2"
	"sync/atomic"

	"github.com/timeguessr-liga/timeguessr-bot/internal/interface/telegram/presenter"
)

// PetRecorder counts pets in metrics.
type PetRecorder interface {
	RecordPet()
}

// PetHandler handles !pet. The count lives in this process only and
// restarts from zero with the bot.
type PetHandler struct {
	count    atomic.Int64
	recorder PetRecorder
	pick     func(n int) int
}

// NewPetHandler creates a new PetHandler. recorder may be nil.
func NewPetHandler(recorder PetRecorder) *PetHandler {
	return &PetHandler{
		recorder: recorder,
		pick:     rand.IntN,
	}
}

// Handle processes the !pet command.
func (h *PetHandler) Handle(_ context.Context, _ Request) (*Response, error) {
	n := h.count.Add(1)
	if h.recorder != nil {
		h.recorder.RecordPet()
	}
	return Reply(presenter.Pet(h.pick(presenter.PetReplyCount), n)), nil
}

// Count returns the number of pets since start.
func (h *PetHandler) Count() int64 {
	return h.count.Load()
}
