package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Lookup has the signature of os.LookupEnv.
type Lookup func(key string) (string, bool)

// env reads typed values through a Lookup and collects every problem so a
// misconfigured process reports all of them at once.
type env struct {
	lookup   Lookup
	problems []string
}

func newEnv(lookup Lookup) *env {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &env{lookup: lookup}
}

func (e *env) get(key string) string {
	v, _ := e.lookup(key)
	return strings.TrimSpace(v)
}

// must retrieves a required variable.  Unset or empty values are recorded.
func (e *env) must(key string) string {
	v := e.get(key)
	if v == "" {
		e.problems = append(e.problems, "missing required env var: "+key)
	}
	return v
}

func (e *env) str(key, def string) string {
	if v := e.get(key); v != "" {
		return v
	}
	return def
}

func (e *env) boolean(key string, def bool) bool {
	v := e.get(key)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	e.problems = append(e.problems, fmt.Sprintf("invalid bool for %s: %q", key, v))
	return def
}

func (e *env) integer(key string, def int) int {
	v := e.get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("invalid int for %s: %q", key, v))
		return def
	}
	return n
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := e.get(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("invalid duration for %s: %q", key, v))
		return def
	}
	return d
}

func (e *env) list(key, def string) []string {
	var out []string
	for _, p := range strings.Split(e.str(key, def), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (e *env) err() error {
	if len(e.problems) == 0 {
		return nil
	}
	return fmt.Errorf("config: %s", strings.Join(e.problems, "; "))
}
