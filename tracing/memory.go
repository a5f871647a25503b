package tracing

// MemoryTraceWriter keeps records in memory.
type MemoryTraceWriter struct {
	Records []Record
}

// Init does nothing.
func (w *MemoryTraceWriter) Init() error {
	return nil
}

// Write appends the record.
func (w *MemoryTraceWriter) Write(r Record) error {
	w.Records = append(w.Records, r)
	return nil
}

// Flush does nothing.
func (w *MemoryTraceWriter) Flush() error {
	return nil
}
