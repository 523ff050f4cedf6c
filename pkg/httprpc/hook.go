package httprpc

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ExecutionHook observes every request execution. Implementations must be safe for
// concurrent use; for async calls OnExecuteEnd runs on the transport goroutine.
type ExecutionHook interface {
	OnExecuteStart(ctx context.Context, info ExecutionInfo) (context.Context, HookToken)
	OnExecuteEnd(ctx context.Context, token HookToken, info ExecutionInfo, result ExecutionResult)
}

// HookToken is an opaque value returned by OnExecuteStart and passed back to OnExecuteEnd.
type HookToken any

// ExecutionInfo describes the request being executed.
type ExecutionInfo struct {
	Method    string // service.method
	Verb      Verb
	URL       string
	RequestID string
	Async     bool
	// Headers are the outgoing request headers. Entries added in OnExecuteStart are sent.
	Headers map[string]string
	// Bindings lists the bound arguments in parameter order. Nil arguments are absent and
	// signing keys carry no value.
	Bindings []Binding
}

// ExecutionResult is the outcome of an execution.
type ExecutionResult struct {
	StatusCode int
	Latency    time.Duration
	Err        error
}

type hookState struct {
	hook  ExecutionHook
	ctx   context.Context
	token HookToken
}

// startHooks runs OnExecuteStart for every hook. A panicking hook is logged and skipped.
func startHooks(ctx context.Context, logger zerolog.Logger, hooks []ExecutionHook, info ExecutionInfo) (context.Context, []hookState) {
	if len(hooks) == 0 {
		return ctx, nil
	}
	states := make([]hookState, 0, len(hooks))
	for _, h := range hooks {
		func() {
			defer func() {
				if rv := recover(); rv != nil {
					logger.Error().Interface("panic", rv).Str("method", info.Method).Msg("execution hook start panic")
				}
			}()
			hctx, token := h.OnExecuteStart(ctx, info)
			if hctx != nil {
				ctx = hctx
			}
			states = append(states, hookState{hook: h, ctx: ctx, token: token})
		}()
	}
	return ctx, states
}

func endHooks(logger zerolog.Logger, states []hookState, info ExecutionInfo, result ExecutionResult) {
	for i := len(states) - 1; i >= 0; i-- {
		s := states[i]
		func() {
			defer func() {
				if rv := recover(); rv != nil {
					logger.Error().Interface("panic", rv).Str("method", info.Method).Msg("execution hook end panic")
				}
			}()
			s.hook.OnExecuteEnd(s.ctx, s.token, info, result)
		}()
	}
}
