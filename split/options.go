package split

// Layout names the parts of a NeXus master file that are split.
type Layout struct {
	// DataGroup holds the block links and the assembled dataset.
	DataGroup string

	// BlockPrefix marks the links to bulk data blocks.
	BlockPrefix string

	// DataName is the name of the virtual dataset installed in DataGroup.
	DataName string

	// AuxArrays are the per-frame arrays sliced with each partition.
	AuxArrays []string
}

// DefaultLayout returns the layout of a NeXus/NXmx master file.
func DefaultLayout() Layout {
	return Layout{
		DataGroup:   "/entry/data",
		BlockPrefix: "data_",
		DataName:    "data",
		AuxArrays: []string{
			"/entry/data/omega",
			"/entry/sample/transformations/omega",
			"/entry/sample/transformations/omega_increment_set",
		},
	}
}

// DefaultFillValue is the value of frames no block covers.
const DefaultFillValue = -1

type options struct {
	workers int
	layout  Layout
	fill    int64
	logger  *Logger
	dryRun  bool
}

func defaultOptions() *options {
	return &options{
		workers: 1,
		layout:  DefaultLayout(),
		fill:    DefaultFillValue,
		logger:  NoopLogger(),
	}
}

// Option configures a Splitter.
type Option func(*options)

// WithWorkers sets how many partitions are written at once. Values below 1
// mean 1.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = max(n, 1)
	}
}

// WithLayout sets the master file layout.
func WithLayout(l Layout) Option {
	return func(o *options) {
		o.layout = l
	}
}

// WithFillValue sets the fill value of the virtual dataset. It is encoded
// into the element type, so -1 becomes the largest value of unsigned types.
func WithFillValue(v int64) Option {
	return func(o *options) {
		o.fill = v
	}
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithDryRun plans the split without writing any output.
func WithDryRun(dry bool) Option {
	return func(o *options) {
		o.dryRun = dry
	}
}
