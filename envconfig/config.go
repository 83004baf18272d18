package envconfig

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultModel   = "llama3.1"
	DefaultPrompt  = "Give me 3 healthy breakfast ideas."
	DefaultTimeout = 5 * time.Minute

	defaultHost = "localhost"
	defaultPort = "11434"
)

// Host returns the scheme and host. Host can be configured via the OLLAMA_HOST environment variable.
// Default is scheme "http" and host "localhost:11434"
func Host() *url.URL {
	defaultPort := defaultPort

	s := strings.TrimSpace(Var("OLLAMA_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = defaultHost, defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// Model returns the model to generate with. Model can be configured via the OLLAMA_MODEL environment variable.
func Model() string {
	if s := Var("OLLAMA_MODEL"); s != "" {
		return s
	}
	return DefaultModel
}

// Prompt returns the prompt used when none is given on the command line or stdin.
// Prompt can be configured via the OLLAMA_PROMPT environment variable.
func Prompt() string {
	if s := Var("OLLAMA_PROMPT"); s != "" {
		return s
	}
	return DefaultPrompt
}

// Timeout bounds the whole generate request. Timeout can be configured via the OLLAMA_TIMEOUT
// environment variable as a duration ("90s") or a number of seconds. Zero or a negative
// value disables the timeout, in which case 0 is returned.
func Timeout() time.Duration {
	timeout := DefaultTimeout
	if s := Var("OLLAMA_TIMEOUT"); s != "" {
		if t, err := time.ParseDuration(s); err == nil {
			timeout = t
		} else if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			timeout = time.Duration(n) * time.Second
		} else {
			slog.Warn("invalid timeout, using default", "OLLAMA_TIMEOUT", s, "default", DefaultTimeout)
		}
	}

	if timeout < 0 {
		return 0
	}
	return timeout
}

// LogLevel returns the log level for the application.
// Values are 0 or false INFO (Default), 1 or true DEBUG, 2 TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("OLLAMA_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"OLLAMA_CONFIG":  {"OLLAMA_CONFIG", ConfigPath(), "Path to a oneshot.toml or oneshot.yaml config file"},
		"OLLAMA_DEBUG":   {"OLLAMA_DEBUG", LogLevel(), "Show additional debug information (e.g. OLLAMA_DEBUG=1)"},
		"OLLAMA_HOST":    {"OLLAMA_HOST", Host(), "Address of the ollama server (default localhost:11434)"},
		"OLLAMA_MODEL":   {"OLLAMA_MODEL", Model(), fmt.Sprintf("Model to generate with (default %q)", DefaultModel)},
		"OLLAMA_PROMPT":  {"OLLAMA_PROMPT", Prompt(), "Prompt used when none is given"},
		"OLLAMA_TIMEOUT": {"OLLAMA_TIMEOUT", Timeout(), fmt.Sprintf("Request timeout, 0 to wait forever (default %q)", DefaultTimeout)},
	}
}

var (
	overridesMu sync.RWMutex
	overrides   = map[string]string{}
)

// Override makes key resolve to value ahead of the environment and the
// config file. Command line flags use it instead of mutating the process
// environment.
func Override(key, value string) {
	overridesMu.Lock()
	defer overridesMu.Unlock()
	overrides[key] = value
}

// ClearOverrides drops every value set with Override.
func ClearOverrides() {
	overridesMu.Lock()
	defer overridesMu.Unlock()
	clear(overrides)
}

// Var returns an environment variable stripped of leading and trailing quotes or spaces.
// Overrides win over the environment; unset variables fall back to the config file.
func Var(key string) string {
	overridesMu.RLock()
	s, ok := overrides[key]
	overridesMu.RUnlock()
	if ok {
		return s
	}

	if s := strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'"); s != "" {
		return s
	}
	return fileValue(key)
}
