package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
	Red    = "\033[31m"

	// Bright variants for more color variety
	BrightGreen   = "\033[92m"
	BrightBlue    = "\033[94m"
	BrightMagenta = "\033[95m"
	BrightCyan    = "\033[96m"
	BrightRed     = "\033[91m"
)

// Cache-related log prefixes
const (
	LogCacheInit    = Blue + "[Cache:Init]" + Reset
	LogCache        = Blue + "[Cache]" + Reset
	LogCacheClear   = Blue + "[Cache:Clear]" + Reset
	LogCacheSearch  = Green + "[Cache:Search]" + Reset
	LogCacheContent = Green + "[Cache:Content]" + Reset
	LogCacheStale   = Cyan + "[Cache:Stale]" + Reset
)

// Rate limiting and admission log prefixes
const (
	LogRateLimit = Purple + "[RateLimit]" + Reset
	LogAPIKey    = Purple + "[APIKey]" + Reset
	LogThrottle  = Purple + "[Throttle]" + Reset
	LogRetry     = Purple + "[Retry]" + Reset
)

// CircuitBreakerPrefix returns a colored circuit breaker prefix with the given name
func CircuitBreakerPrefix(name string) string {
	return Purple + "[CircuitBreaker:" + name + "]" + Reset
}

// Server/Init log prefixes
const (
	LogServer = Green + "[Server]" + Reset
	LogConfig = Cyan + "[Config]" + Reset
	LogStats  = Blue + "[Stats]" + Reset
)

// Notification log prefixes
const (
	LogNotifier = Cyan + "[Notifier]" + Reset
)

// Gateway and supplier log prefixes
const (
	LogRequest        = Purple + "[Request]" + Reset
	LogSearch         = Blue + "[Search]" + Reset
	LogSuggest        = Blue + "[Suggest]" + Reset
	LogHotel          = Blue + "[Hotel]" + Reset
	LogHTTP           = Cyan + "[HTTP]" + Reset
	LogSupplier       = Cyan + "[Supplier]" + Reset
	LogEnrich         = Green + "[Enrich]" + Reset
	LogContent        = Blue + "[Content]" + Reset
	LogRoomMatch      = Green + "[RoomMatch]" + Reset
	LogBooking        = Green + "[Booking]" + Reset
	LogPrebook        = Blue + "[Prebook]" + Reset
	LogSandbox        = Cyan + "[Sandbox]" + Reset
	LogFallback       = Cyan + "[Fallback]" + Reset
	LogCircuitBreaker = Purple + "[CircuitBreaker]" + Reset
	LogWarning        = Red + "[Warning]" + Reset
)
