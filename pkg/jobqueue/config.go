package jobqueue

import "time"

// Config holds worker loop settings for the composition root.
type Config struct {
	PopTimeout   time.Duration `env:"JOBQUEUE_POP_TIMEOUT" envDefault:"5s"`
	JobTimeout   time.Duration `env:"JOBQUEUE_JOB_TIMEOUT" envDefault:"5m"`
	ErrorBackoff time.Duration `env:"JOBQUEUE_ERROR_BACKOFF" envDefault:"5s"`
	StatusTTL    time.Duration `env:"JOBQUEUE_STATUS_TTL" envDefault:"168h"`
}
