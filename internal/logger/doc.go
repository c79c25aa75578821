// Package logger provides structured logging for the tunelift engine.
//
// Features:
//   - Multiple log levels (TRACE, DEBUG, INFO, WARN, ERROR)
//   - Component-based filtering
//   - Multiple output formats (text, JSON, color)
//   - Thread-safe operations
//
// Usage:
//
//	log := logger.WithComponent(logger.ComponentMatch)
//	log.Debug("provider failed", map[string]any{"source": "kuwo"})
//
// Components:
//   - ComponentApp: host binary logs
//   - ComponentPipeline: request/response interception logs
//   - ComponentMatch: provider fan-out and scoring logs
//   - ComponentResolver: track identity resolution logs
//   - ComponentProvider: individual provider logs
//   - ComponentCrypto: wire codec logs
//   - ComponentClient: HTTP client logs
//   - ComponentCache: cache logs
package logger
