package bitkeep

import "time"

// Options holds every tunable in the config table, set via functional
// Option values passed to Open.
type Options struct {
	MaxDataFileSize        int64
	FlushBatchSize         int
	FlushIntervalUsecs     int
	CompactionIntervalSecs int
	CompactDeadRatio       float64
	MergeMinDataFileRatio  float64
	FsyncMode              bool
	QueueCapacity          int
	HintFiles              bool
}

func defaultOptions() Options {
	return Options{
		MaxDataFileSize:        512 << 20,
		FlushBatchSize:         8 << 20,
		FlushIntervalUsecs:     50,
		CompactionIntervalSecs: 0,
		CompactDeadRatio:       0.4,
		MergeMinDataFileRatio:  0.3,
		FsyncMode:              false,
		QueueCapacity:          1024,
		HintFiles:              true,
	}
}

// Option mutates Options; pass any number to Open.
type Option func(*Options)

// WithMaxDataFileSize sets the rotation threshold, in bytes.
func WithMaxDataFileSize(n int64) Option {
	return func(o *Options) { o.MaxDataFileSize = n }
}

// WithFlushBatchSize sets the max payload bytes accumulated before the
// flusher writes a batch early.
func WithFlushBatchSize(n int) Option {
	return func(o *Options) { o.FlushBatchSize = n }
}

// WithFlushIntervalUsecs sets the max time a partial batch waits before
// being flushed anyway.
func WithFlushIntervalUsecs(usecs int) Option {
	return func(o *Options) { o.FlushIntervalUsecs = usecs }
}

// WithCompactionIntervalSecs sets the background compactor's run period.
// Zero disables the background loop (Store.Compact can still be called
// directly).
func WithCompactionIntervalSecs(secs int) Option {
	return func(o *Options) { o.CompactionIntervalSecs = secs }
}

// WithCompactDeadRatio sets the per-file admission filter: a sealed file
// is only compacted once dead_records/num_records reaches this ratio.
func WithCompactDeadRatio(ratio float64) Option {
	return func(o *Options) { o.CompactDeadRatio = ratio }
}

// WithMergeMinDataFileRatio sets the whole-run admission filter: a
// compaction pass is skipped entirely unless sealed-file bytes are at
// least this fraction of the active file's size.
func WithMergeMinDataFileRatio(ratio float64) Option {
	return func(o *Options) { o.MergeMinDataFileRatio = ratio }
}

// WithFsyncMode enables fsync of the active file after every flushed
// batch.
func WithFsyncMode(enabled bool) Option {
	return func(o *Options) { o.FsyncMode = enabled }
}

// WithQueueCapacity sets the bound on the flusher's request channel.
func WithQueueCapacity(n int) Option {
	return func(o *Options) { o.QueueCapacity = n }
}

// WithHintFiles toggles hint-file-assisted recovery and compaction output.
func WithHintFiles(enabled bool) Option {
	return func(o *Options) { o.HintFiles = enabled }
}

func (o Options) flushInterval() time.Duration {
	return time.Duration(o.FlushIntervalUsecs) * time.Microsecond
}

func (o Options) compactionInterval() time.Duration {
	return time.Duration(o.CompactionIntervalSecs) * time.Second
}
