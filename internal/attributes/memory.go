package attributes

import (
	"strconv"

	"github.com/prometheus/procfs"
	"github.com/rs/zerolog"
)

type meminfoField struct {
	attribute string
	value     func(procfs.Meminfo) *uint64
}

// meminfoFields maps /proc/meminfo entries (kB) to attribute names
var meminfoFields = [...]meminfoField{
	{"system.memory.total", func(m procfs.Meminfo) *uint64 { return m.MemTotal }},
	{"system.memory.free", func(m procfs.Meminfo) *uint64 { return m.MemFree }},
	{"system.memory.available", func(m procfs.Meminfo) *uint64 { return m.MemAvailable }},
	{"system.memory.buffers", func(m procfs.Meminfo) *uint64 { return m.Buffers }},
	{"system.memory.cached", func(m procfs.Meminfo) *uint64 { return m.Cached }},
	{"system.memory.swap.cached", func(m procfs.Meminfo) *uint64 { return m.SwapCached }},
	{"system.memory.active", func(m procfs.Meminfo) *uint64 { return m.Active }},
	{"system.memory.inactive", func(m procfs.Meminfo) *uint64 { return m.Inactive }},
	{"system.memory.swap.total", func(m procfs.Meminfo) *uint64 { return m.SwapTotal }},
	{"system.memory.swap.free", func(m procfs.Meminfo) *uint64 { return m.SwapFree }},
	{"system.memory.dirty", func(m procfs.Meminfo) *uint64 { return m.Dirty }},
	{"system.memory.writeback", func(m procfs.Meminfo) *uint64 { return m.Writeback }},
	{"system.memory.slab", func(m procfs.Meminfo) *uint64 { return m.Slab }},
	{"system.memory.vmalloc.total", func(m procfs.Meminfo) *uint64 { return m.VmallocTotal }},
	{"system.memory.vmalloc.used", func(m procfs.Meminfo) *uint64 { return m.VmallocUsed }},
	{"system.memory.vmalloc.chunk", func(m procfs.Meminfo) *uint64 { return m.VmallocChunk }},
}

// MemoryProvider reports system wide memory usage in bytes
type MemoryProvider struct {
	fs     procfs.FS
	err    error
	logger zerolog.Logger
}

// NewMemoryProvider reads /proc/meminfo
func NewMemoryProvider(logger zerolog.Logger) *MemoryProvider {
	fs, err := procfs.NewDefaultFS()
	return &MemoryProvider{
		fs:     fs,
		err:    err,
		logger: logger.With().Str("component", "attributes").Logger(),
	}
}

// NewMemoryProviderFS reads meminfo from the proc filesystem mounted at fs
func NewMemoryProviderFS(fs procfs.FS, logger zerolog.Logger) *MemoryProvider {
	return &MemoryProvider{
		fs:     fs,
		logger: logger.With().Str("component", "attributes").Logger(),
	}
}

// Get implements Provider
func (p *MemoryProvider) Get() map[string]string {
	attrs := map[string]string{}
	if p.err != nil {
		p.logger.Debug().Err(p.err).Msg("Cannot read memory information")
		return attrs
	}

	info, err := p.fs.Meminfo()
	if err != nil {
		p.logger.Debug().Err(err).Msg("Cannot read memory information")
		return attrs
	}

	for _, field := range meminfoFields {
		if v := field.value(info); v != nil {
			attrs[field.attribute] = strconv.FormatUint(*v*1024, 10)
		}
	}
	return attrs
}
