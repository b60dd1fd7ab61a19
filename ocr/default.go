package ocr

import (
	"context"
	"fmt"
	"image"
)

var defaultEngine Engine = &noopEngine{}

// DefaultEngine returns the library's default OCR engine (Tesseract, once the
// tesseract subpackage is linked in).
func DefaultEngine() Engine {
	return defaultEngine
}

// SetDefaultEngine sets the library's default OCR engine.
func SetDefaultEngine(engine Engine) {
	defaultEngine = engine
}

// RecognizePages converts rendered page bitmaps to OCR inputs and invokes the
// provided engine. If the engine supports batch operation, it is used;
// otherwise calls are executed sequentially. The pages map is keyed by page
// index; scale is the render scale all bitmaps share.
func RecognizePages(ctx context.Context, engine Engine, scale float64, pages map[int]image.Image, opts ...InputOption) ([]Result, error) {
	inputs := make([]Input, 0, len(pages))
	for page, img := range pages {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		in, err := InputFromImage(page, scale, img, opts...)
		if err != nil {
			return nil, fmt.Errorf("build input for page %d: %w", page, err)
		}
		inputs = append(inputs, in)
	}
	if b, ok := engine.(BatchEngine); ok {
		return b.RecognizeBatch(ctx, inputs)
	}
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		res, err := engine.Recognize(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

type noopEngine struct{}

func (n noopEngine) Name() string {
	return "noop"
}

func (n noopEngine) Recognize(ctx context.Context, input Input) (Result, error) {
	return Result{InputID: input.ID}, nil
}
