package hotspot

import "time"

// Stats holds process-wide execution counters. Values are observability
// only and are reset by an explicit reset. The owner serializes updates and
// fills Evictions, BusyRejections and CacheEntries when taking a snapshot.
type Stats struct {
	TotalExecutions       uint64        `json:"total_executions" yaml:"total_executions"`
	CompiledExecutions    uint64        `json:"compiled_executions" yaml:"compiled_executions"`
	InterpretedExecutions uint64        `json:"interpreted_executions" yaml:"interpreted_executions"`
	FailedExecutions      uint64        `json:"failed_executions" yaml:"failed_executions"`
	TotalCompilations     uint64        `json:"total_compilations" yaml:"total_compilations"`
	CompileFailures       uint64        `json:"compile_failures" yaml:"compile_failures"`
	Evictions             uint64        `json:"evictions" yaml:"evictions"`
	BusyRejections        uint64        `json:"busy_rejections" yaml:"busy_rejections"`
	CacheEntries          int           `json:"cache_entries" yaml:"cache_entries"`
	TotalExecutionTime    time.Duration `json:"total_execution_time_ns" yaml:"total_execution_time"`
	TotalCompilationTime  time.Duration `json:"total_compilation_time_ns" yaml:"total_compilation_time"`
}

// RecordExecution counts one execution and its duration. Failed executions
// still count toward the totals.
func (s *Stats) RecordExecution(d time.Duration, compiled bool, failed bool) {
	s.TotalExecutions++
	s.TotalExecutionTime += d
	if compiled {
		s.CompiledExecutions++
	} else {
		s.InterpretedExecutions++
	}
	if failed {
		s.FailedExecutions++
	}
}

// RecordCompilation counts one compile attempt that produced installed code.
func (s *Stats) RecordCompilation(d time.Duration) {
	s.TotalCompilations++
	s.TotalCompilationTime += d
}

// RecordCompileFailure counts one compile attempt that was abandoned.
func (s *Stats) RecordCompileFailure(d time.Duration) {
	s.CompileFailures++
	s.TotalCompilationTime += d
}

// AverageExecutionTime returns the mean execution time, or zero.
func (s Stats) AverageExecutionTime() time.Duration {
	if s.TotalExecutions == 0 {
		return 0
	}
	return s.TotalExecutionTime / time.Duration(s.TotalExecutions)
}

// AverageCompilationTime returns the mean time of a compile attempt, or zero.
func (s Stats) AverageCompilationTime() time.Duration {
	attempts := s.TotalCompilations + s.CompileFailures
	if attempts == 0 {
		return 0
	}
	return s.TotalCompilationTime / time.Duration(attempts)
}

// CompiledRatio returns the fraction of executions that ran compiled code.
func (s Stats) CompiledRatio() float64 {
	if s.TotalExecutions == 0 {
		return 0
	}
	return float64(s.CompiledExecutions) / float64(s.TotalExecutions)
}
