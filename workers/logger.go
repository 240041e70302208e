package workers

import "we_listings/models"

// LogFunc forwards a worker summary line to the operational log table.
type LogFunc func(level models.LogLevel, source, message string)

// NoOpLogger does nothing (default until main wires the store in).
var NoOpLogger LogFunc = func(level models.LogLevel, source, message string) {}
