package otlp

// Stopped reports whether Shutdown has begun on bp.
func Stopped(bp *BatchProcessor) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.stopped
}
