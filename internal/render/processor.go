package render

import "image"

// Options controls the post-processing pipeline.
type Options struct {
	// Raw bypasses both engines; the bitmap passes through untouched.
	Raw bool
}

// Processor sequences the decluttering and annotation engines over one
// capture at a time. It holds only immutable configuration, so a single
// instance serves the whole process.
type Processor struct {
	cat   Catalog
	fonts *FontSet
}

// NewProcessor validates the catalog once and builds a processor.
func NewProcessor(cat Catalog, fonts *FontSet) (*Processor, error) {
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &Processor{cat: cat, fonts: fonts}, nil
}

// Catalog returns the region catalog the processor was built with.
func (p *Processor) Catalog() Catalog {
	return p.cat
}

// Process runs the pipeline: raw mode returns the bitmap unmodified,
// otherwise the clutter regions are erased and the annotations drawn. The
// returned bitmap is the input, mutated in place; on error the bitmap may
// be partially processed and must not be persisted.
func (p *Processor) Process(img *image.RGBA, spec Spec, opts Options) (*image.RGBA, error) {
	if opts.Raw {
		return img, nil
	}
	if err := Declutter(img, p.cat); err != nil {
		return nil, err
	}
	if err := Annotate(img, spec, p.cat, p.fonts); err != nil {
		return nil, err
	}
	return img, nil
}
