package redisx

import (
	"context"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
)

// script implements the {unknown -> loaded_sha} state machine from the
// design notes: try EVALSHA first, and on a NOSCRIPT reply load the source
// once and retry exactly once via the freshly learned SHA.
type script struct {
	name   string
	source string

	mu  sync.Mutex
	sha string
}

func newScript(name, source string) *script {
	return &script{name: name, source: source}
}

// flush clears the cached SHA, forcing the next Run to reload the script.
// Exercised by tests that verify the SCRIPT LOAD reload path.
func (s *script) flush() {
	s.mu.Lock()
	s.sha = ""
	s.mu.Unlock()
}

func (s *script) Run(ctx context.Context, rdb *redis.Client, keys []string, args ...interface{}) (interface{}, error) {
	s.mu.Lock()
	sha := s.sha
	s.mu.Unlock()

	if sha != "" {
		res, err := rdb.EvalSha(ctx, sha, keys, args...).Result()
		if err == nil || !isNoScript(err) {
			return res, err
		}
	}

	loaded, err := rdb.ScriptLoad(ctx, s.source).Result()
	if err != nil {
		// The proxy/server may not support SCRIPT LOAD at all; fall all
		// the way back to a single-shot EVAL carrying the full source.
		return rdb.Eval(ctx, s.source, keys, args...).Result()
	}

	s.mu.Lock()
	s.sha = loaded
	s.mu.Unlock()

	return rdb.EvalSha(ctx, loaded, keys, args...).Result()
}

func isNoScript(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "NOSCRIPT")
}
