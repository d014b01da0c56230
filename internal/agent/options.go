package agent

import "time"

const (
	// EarlyStopForce devolve uma mensagem fixa quando o limite de iterações estoura
	EarlyStopForce = "force"
	// EarlyStopGenerate faz uma última chamada pedindo a resposta final
	EarlyStopGenerate = "generate"

	DefaultMaxIterations = 10
	DefaultTimeout       = 3 * time.Minute

	stoppedMessage = "Agent stopped due to iteration limit or time limit."
)

type options struct {
	prefix              string
	maxIterations       int
	earlyStopping       string
	handleParsingErrors bool
	timeout             time.Duration
	handlers            handlers
}

func defaultOptions() options {
	return options{
		prefix:              defaultPrefix,
		maxIterations:       DefaultMaxIterations,
		earlyStopping:       EarlyStopGenerate,
		handleParsingErrors: true,
		timeout:             DefaultTimeout,
	}
}

type Option func(*options)

// WithPrefix troca a mensagem de sistema que abre o prompt
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

func WithMaxIterations(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

func WithEarlyStopping(method string) Option {
	return func(o *options) {
		if method == EarlyStopForce || method == EarlyStopGenerate {
			o.earlyStopping = method
		}
	}
}

func WithHandleParsingErrors(on bool) Option {
	return func(o *options) {
		o.handleParsingErrors = on
	}
}

// WithTimeout vale apenas quando o contexto recebido não tem deadline
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithCallbacks(hs ...Handler) Option {
	return func(o *options) {
		o.handlers = append(o.handlers, hs...)
	}
}
