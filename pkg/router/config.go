package router

// RouterConfig tunes a BaseMessageRouter.
type RouterConfig struct {
	MaxHandlers              int
	MessageTimeoutMS         uint64
	EnableDuplicateDetection bool
	DuplicateWindowSize      int
	EnableStats              bool
	StatsRetentionMS         uint64
}

// DefaultRouterConfig mirrors the original router's Default impl.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		MaxHandlers:              64,
		MessageTimeoutMS:         5000,
		EnableDuplicateDetection: true,
		DuplicateWindowSize:      1000,
		EnableStats:              true,
		StatsRetentionMS:         3_600_000,
	}
}

// RouterStats accumulates router-wide counters and handler timing.
type RouterStats struct {
	TotalMessages         uint64
	RoutedMessages        uint64
	UnroutedMessages      uint64
	FailedMessages        uint64
	DuplicateMessages     uint64
	RegisteredHandlers    int
	AverageProcessingMS   float64
	MaxProcessingMS       uint64
	MinProcessingMS       uint64
	totalProcessingMS     uint64
	processedMessageCount uint64
}

// SuccessRate is routed / total, or 0 with no messages processed yet.
func (s RouterStats) SuccessRate() float64 {
	if s.TotalMessages == 0 {
		return 0
	}
	return float64(s.RoutedMessages) / float64(s.TotalMessages)
}

// AverageHandlerLoad is routed messages per registered handler.
func (s RouterStats) AverageHandlerLoad() float64 {
	if s.RegisteredHandlers == 0 {
		return 0
	}
	return float64(s.RoutedMessages) / float64(s.RegisteredHandlers)
}

func (s *RouterStats) recordProcessing(ms uint64) {
	s.totalProcessingMS += ms
	s.processedMessageCount++
	s.AverageProcessingMS = float64(s.totalProcessingMS) / float64(s.processedMessageCount)
	if s.MaxProcessingMS == 0 || ms > s.MaxProcessingMS {
		s.MaxProcessingMS = ms
	}
	if s.MinProcessingMS == 0 || ms < s.MinProcessingMS {
		s.MinProcessingMS = ms
	}
}
