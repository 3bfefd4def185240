package terrain

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"time"

	"github.com/siohaza/terragen/pkg/noise"
	"github.com/siohaza/terragen/pkg/palette"
)

type Stage string

const (
	StageValidate Stage = "validate"
	StageNoise    Stage = "noise"
	StageSmooth   Stage = "smooth"
	StageFlatten  Stage = "flatten"
	StageWater    Stage = "water"
	StageColor    Stage = "color"
)

// ProgressFunc is called synchronously after every row batch with a copy of
// the run's params.
type ProgressFunc func(p Params, stage Stage, done, total int)

type Pipeline struct {
	logger    *slog.Logger
	batchRows int
	progress  ProgressFunc
	now       func() time.Time
}

func NewPipeline(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		logger:    logger,
		batchRows: DefaultBatchRows,
		now:       time.Now,
	}
}

func (pl *Pipeline) SetBatchRows(n int) {
	if n < 1 {
		n = 1
	}
	pl.batchRows = n
}

func (pl *Pipeline) SetProgress(fn ProgressFunc) {
	pl.progress = fn
}

// Run validates p, then runs noise, heightmap, water and colour stages in
// order. It returns either a complete model or an error, never both.
func (pl *Pipeline) Run(ctx context.Context, p Params, width, height int) (model *Model, err error) {
	p = p.Clone()

	if err := ValidateGrid(width, height); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.Bands = palette.Normalize(p.Bands)
	p.Basis, _ = noise.ParseBasis(string(p.Basis))

	stage := StageValidate
	defer func() {
		if rec := recover(); rec != nil {
			model = nil
			err = fault(stage, fmt.Errorf("panic: %v", rec))
		}
	}()

	start := pl.now()
	r := &run{
		ctx:       ctx,
		params:    p,
		batchRows: pl.batchRows,
		progress:  pl.progress,
	}

	stage = StageNoise
	field, err := noise.New(p.Basis, p.Seed)
	if err != nil {
		return nil, fault(stage, err)
	}

	hm, err := r.heightmap(field, width, height)
	if err != nil {
		return nil, pl.stageError(stage, err)
	}
	if err := hm.checkFinite(); err != nil {
		return nil, fault(StageFlatten, err)
	}

	stage = StageWater
	hm, mask, sea, err := r.water(hm, p.WaterEnabled)
	if err != nil {
		return nil, pl.stageError(stage, err)
	}

	stage = StageColor
	lo, hi := hm.Range()
	mapper := palette.NewMapper(p.Bands, p.ColorEnabled, p.Blend, lo, hi)
	colors := make([]color.RGBA, len(hm.data))
	err = r.rows(stage, hm.height, func(row int) {
		base := row * hm.width
		for col := 0; col < hm.width; col++ {
			colors[base+col] = mapper.ColorFor(hm.data[base+col])
		}
	})
	if err != nil {
		return nil, pl.stageError(stage, err)
	}

	waterCells := 0
	for _, w := range mask {
		if w {
			waterCells++
		}
	}

	model = &Model{
		heightmap:   hm,
		colors:      colors,
		water:       mask,
		min:         lo,
		max:         hi,
		seaLevel:    sea,
		waterCells:  waterCells,
		params:      p,
		generatedAt: pl.now(),
	}

	pl.logger.Debug("terrain generated",
		"seed", p.Seed,
		"width", width,
		"height", height,
		"min", lo,
		"max", hi,
		"water_cells", waterCells,
		"elapsed", pl.now().Sub(start),
	)

	return model, nil
}

// stageError passes cancellation through and turns anything else into a
// fault, since validated input cannot fail a stage.
func (pl *Pipeline) stageError(stage Stage, err error) error {
	if isCancelled(err) {
		pl.logger.Debug("terrain generation cancelled", "stage", stage)
		return err
	}
	return fault(stage, err)
}
