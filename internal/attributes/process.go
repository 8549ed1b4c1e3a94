package attributes

import (
	"os"
	"strconv"

	"github.com/prometheus/procfs"
	"github.com/rs/zerolog"
)

type statusField struct {
	attribute string
	value     func(procfs.ProcStatus) uint64
}

// statusFields maps /proc/<pid>/status values to attribute names. Memory
// values are reported in bytes.
var statusFields = [...]statusField{
	{"vm.vma.peak", func(s procfs.ProcStatus) uint64 { return s.VmPeak }},
	{"vm.vma.size", func(s procfs.ProcStatus) uint64 { return s.VmSize }},
	{"vm.locked.size", func(s procfs.ProcStatus) uint64 { return s.VmLck }},
	{"vm.rss.peak", func(s procfs.ProcStatus) uint64 { return s.VmHWM }},
	{"vm.rss.size", func(s procfs.ProcStatus) uint64 { return s.VmRSS }},
	{"vm.stack.size", func(s procfs.ProcStatus) uint64 { return s.VmStk }},
	{"vm.data", func(s procfs.ProcStatus) uint64 { return s.VmData }},
	{"vm.exe", func(s procfs.ProcStatus) uint64 { return s.VmExe }},
	{"vm.shared.size", func(s procfs.ProcStatus) uint64 { return s.VmLib }},
	{"vm.pte.size", func(s procfs.ProcStatus) uint64 { return s.VmPTE }},
	{"vm.swap.size", func(s procfs.ProcStatus) uint64 { return s.VmSwap }},
	{"sched.cs.voluntary", func(s procfs.ProcStatus) uint64 { return s.VoluntaryCtxtSwitches }},
	{"sched.cs.involuntary", func(s procfs.ProcStatus) uint64 { return s.NonVoluntaryCtxtSwitches }},
}

// ProcessProvider reports status information about a single process
type ProcessProvider struct {
	fs     procfs.FS
	pid    int
	err    error
	logger zerolog.Logger
}

// NewProcessProvider describes the current process through /proc
func NewProcessProvider(logger zerolog.Logger) *ProcessProvider {
	fs, err := procfs.NewDefaultFS()
	return &ProcessProvider{
		fs:     fs,
		pid:    os.Getpid(),
		err:    err,
		logger: logger.With().Str("component", "attributes").Logger(),
	}
}

// NewProcessProviderFS describes pid using the proc filesystem mounted at fs
func NewProcessProviderFS(fs procfs.FS, pid int, logger zerolog.Logger) *ProcessProvider {
	return &ProcessProvider{
		fs:     fs,
		pid:    pid,
		logger: logger.With().Str("component", "attributes").Logger(),
	}
}

// Get implements Provider
func (p *ProcessProvider) Get() map[string]string {
	attrs := map[string]string{}
	if p.pid < 0 {
		p.logger.Debug().Msg("Failed to read process id")
		return attrs
	}
	attrs["process.id"] = strconv.Itoa(p.pid)

	if p.err != nil {
		p.logger.Debug().Err(p.err).Msg("Cannot read process information")
		return attrs
	}

	proc, err := p.fs.Proc(p.pid)
	if err != nil {
		p.logger.Debug().Err(err).Int("pid", p.pid).Msg("Cannot read process information")
		return attrs
	}

	if status, err := proc.NewStatus(); err == nil {
		for _, field := range statusFields {
			attrs[field.attribute] = strconv.FormatUint(field.value(status), 10)
		}
	} else {
		p.logger.Debug().Err(err).Msg("Cannot read process status")
	}

	if stat, err := proc.Stat(); err == nil {
		attrs["state"] = stat.State
		attrs["vm.threads"] = strconv.Itoa(stat.NumThreads)
	} else {
		p.logger.Debug().Err(err).Msg("Cannot read process stat")
	}

	if count, err := proc.FileDescriptorsLen(); err == nil {
		attrs["descriptor.count"] = strconv.Itoa(count)
	} else {
		p.logger.Debug().Err(err).Msg("Cannot count file descriptors")
	}

	return attrs
}
