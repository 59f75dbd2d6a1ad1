package ingest

import (
	"fmt"

	"github.com/google/uuid"

	models "assetdrop/internal/domain/models/ingest"
)

// IDGenerator hands out identifiers for both namespaces.
type IDGenerator interface {
	NewTempID() models.TempID
	NewFinalID() models.FinalID
	NewBatchID() models.BatchID
}

// uuidGenerator uses UUIDv7: a millisecond timestamp followed by random bits.
// The library keeps v7 values monotonic within the process, so final ids
// sort in the order they were assigned.
type uuidGenerator struct{}

// NewIDGenerator returns the default UUIDv7-based generator.
func NewIDGenerator() IDGenerator {
	return uuidGenerator{}
}

func (uuidGenerator) NewTempID() models.TempID {
	return models.TempID("tmp_" + mustV7().String())
}

func (uuidGenerator) NewFinalID() models.FinalID {
	return models.FinalID(mustV7().String())
}

func (uuidGenerator) NewBatchID() models.BatchID {
	return models.BatchID(mustV7().String())
}

// mustV7 falls back to a random v4 if the clock-based generator fails,
// which only happens when the system random source is broken.
func mustV7() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// sequenceGenerator yields predictable ids; used by tests and dry runs.
type sequenceGenerator struct {
	temp, final, batch int
}

// NewSequenceGenerator returns a generator producing tmp-1, tmp-2, ... and rec-1, rec-2, ...
// It is not safe for concurrent use.
func NewSequenceGenerator() IDGenerator {
	return &sequenceGenerator{}
}

func (g *sequenceGenerator) NewTempID() models.TempID {
	g.temp++
	return models.TempID(fmt.Sprintf("tmp-%d", g.temp))
}

func (g *sequenceGenerator) NewFinalID() models.FinalID {
	g.final++
	return models.FinalID(fmt.Sprintf("rec-%d", g.final))
}

func (g *sequenceGenerator) NewBatchID() models.BatchID {
	g.batch++
	return models.BatchID(fmt.Sprintf("batch-%d", g.batch))
}
