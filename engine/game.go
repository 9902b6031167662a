package engine

type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnPrepare         Prepare
	FnShutdown        Shutdown
}

// Initialize runs once the cache is warm and the shader library is indexed.
type Initialize func(e *Engine) error

// Prepare requests every object the application renders with.
type Prepare func(e *Engine) error

type Shutdown func(e *Engine) error
